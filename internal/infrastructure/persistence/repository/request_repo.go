package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/docflow/internal/application/port"
	"github.com/garyjia/docflow/internal/domain/entity"
	"github.com/garyjia/docflow/internal/infrastructure/persistence/sqlite"
)

// RequestRepository implements port.RequestRepository
type RequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sql.DB, logger *zap.Logger) port.RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

const requestColumns = `
	id, form_id, form_title, form_data, submitted_by, submitter_name, submitter_email,
	department, status, priority, current_approver, approval_chain, comments, attachments,
	version, created_at, updated_at, due_date, completed_at`

// requestRow holds the column values of one request
type requestRow struct {
	formData, approver, chain, comments, attachments sql.NullString
	createdAt, updatedAt                             string
	dueDate, completedAt                             sql.NullString
}

// Create inserts a new request
func (r *RequestRepository) Create(ctx context.Context, req *entity.Request) error {
	args, err := r.writeArgs(req)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO requests (
			form_title, form_data, status, priority, priority_rank,
			current_approver_id, current_approver, approval_chain, comments, attachments,
			version, updated_at, due_date, completed_at,
			id, form_id, submitted_by, submitter_name, submitter_email, department, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	args = append(args,
		req.ID, req.FormID, req.SubmittedBy, req.SubmitterName, req.SubmitterEmail,
		req.Department, formatTime(req.CreatedAt),
	)

	if _, err := r.getExecutor(ctx).ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: request %s already exists", entity.ErrConflict, req.ID)
		}
		r.logger.Error("Failed to create request",
			zap.String("request_id", req.ID),
			zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}

	return nil
}

// GetByID retrieves a request by ID
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*entity.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = ?`

	req, err := r.scanRequest(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(err, "request", id)
	}
	if err != nil {
		r.logger.Error("Failed to get request", zap.String("request_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

// Update writes every mutable column when the stored version matches expectedVersion
func (r *RequestRepository) Update(ctx context.Context, req *entity.Request, expectedVersion int) error {
	args, err := r.writeArgs(req)
	if err != nil {
		return err
	}

	query := `
		UPDATE requests SET
			form_title = ?, form_data = ?, status = ?, priority = ?, priority_rank = ?,
			current_approver_id = ?, current_approver = ?, approval_chain = ?, comments = ?, attachments = ?,
			version = ?, updated_at = ?, due_date = ?, completed_at = ?
		WHERE id = ? AND version = ?
	`
	args = append(args, req.ID, expectedVersion)

	exec := r.getExecutor(ctx)
	result, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update request",
			zap.String("request_id", req.ID),
			zap.Error(err))
		return fmt.Errorf("failed to update request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var current int
	err = exec.QueryRowContext(ctx, `SELECT version FROM requests WHERE id = ?`, req.ID).Scan(&current)
	if err != nil {
		return notFound(err, "request", req.ID)
	}
	return fmt.Errorf("%w: request %s is at version %d, write expected %d",
		entity.ErrConflict, req.ID, current, expectedVersion)
}

// Delete removes a request
func (r *RequestRepository) Delete(ctx context.Context, id string) error {
	result, err := r.getExecutor(ctx).ExecContext(ctx, `DELETE FROM requests WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete request", zap.String("request_id", id), zap.Error(err))
		return fmt.Errorf("failed to delete request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: request %s", entity.ErrNotFound, id)
	}
	return nil
}

// List returns one page of requests matching filter and the total match count
func (r *RequestRepository) List(ctx context.Context, filter port.RequestFilter, sort port.RequestSort, page port.Page) ([]*entity.Request, int, error) {
	where, args := buildRequestWhere(filter)
	exec := r.getExecutor(ctx)

	var total int
	if err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM requests`+where, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count requests", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count requests: %w", err)
	}

	page = page.Normalize()
	query := `SELECT ` + requestColumns + ` FROM requests` + where + orderBy(sort) + ` LIMIT ? OFFSET ?`
	rows, err := exec.QueryContext(ctx, query, append(args, page.Limit, page.Offset())...)
	if err != nil {
		r.logger.Error("Failed to list requests", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	requests := make([]*entity.Request, 0, page.Limit)
	for rows.Next() {
		req, err := r.scanRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating requests: %w", err)
	}

	return requests, total, nil
}

// CountByStatus groups matching requests by status
func (r *RequestRepository) CountByStatus(ctx context.Context, filter port.RequestFilter) (map[string]int, error) {
	where, args := buildRequestWhere(filter)
	rows, err := r.getExecutor(ctx).QueryContext(ctx,
		`SELECT status, COUNT(*) FROM requests`+where+` GROUP BY status`, args...)
	if err != nil {
		r.logger.Error("Failed to count requests by status", zap.Error(err))
		return nil, fmt.Errorf("failed to count requests: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// writeArgs encodes the mutable columns in the order shared by Create and Update
func (r *RequestRepository) writeArgs(req *entity.Request) ([]interface{}, error) {
	formData := req.FormData
	if formData == nil {
		formData = entity.FormData{}
	}
	formJSON, err := encodeJSON(formData)
	if err != nil {
		return nil, fmt.Errorf("failed to encode form data: %w", err)
	}

	var approverID, approverJSON sql.NullString
	if req.CurrentApprover != nil {
		s, err := encodeJSON(req.CurrentApprover)
		if err != nil {
			return nil, fmt.Errorf("failed to encode current approver: %w", err)
		}
		approverID = sql.NullString{String: req.CurrentApprover.ID, Valid: true}
		approverJSON = sql.NullString{String: s, Valid: true}
	}

	chain, err := encodeJSON(nonNilSteps(req.ApprovalChain))
	if err != nil {
		return nil, fmt.Errorf("failed to encode approval chain: %w", err)
	}
	comments, err := encodeJSON(nonNilComments(req.Comments))
	if err != nil {
		return nil, fmt.Errorf("failed to encode comments: %w", err)
	}
	attachments, err := encodeJSON(nonNilAttachments(req.Attachments))
	if err != nil {
		return nil, fmt.Errorf("failed to encode attachments: %w", err)
	}

	return []interface{}{
		req.FormTitle, formJSON, req.Status, req.Priority, entity.PriorityRank(req.Priority),
		approverID, approverJSON, chain, comments, attachments,
		req.Version, formatTime(req.UpdatedAt), formatTimePtr(req.DueDate), formatTimePtr(req.CompletedAt),
	}, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *RequestRepository) scanRequest(s rowScanner) (*entity.Request, error) {
	var req entity.Request
	var row requestRow

	err := s.Scan(
		&req.ID,
		&req.FormID,
		&req.FormTitle,
		&row.formData,
		&req.SubmittedBy,
		&req.SubmitterName,
		&req.SubmitterEmail,
		&req.Department,
		&req.Status,
		&req.Priority,
		&row.approver,
		&row.chain,
		&row.comments,
		&row.attachments,
		&req.Version,
		&row.createdAt,
		&row.updatedAt,
		&row.dueDate,
		&row.completedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := decodeJSON(row.formData.String, &req.FormData); err != nil {
		return nil, fmt.Errorf("failed to decode form data: %w", err)
	}
	if row.approver.Valid {
		var a entity.Approver
		if err := decodeJSON(row.approver.String, &a); err != nil {
			return nil, fmt.Errorf("failed to decode current approver: %w", err)
		}
		req.CurrentApprover = &a
	}
	req.ApprovalChain = []entity.ApprovalStep{}
	if err := decodeJSON(row.chain.String, &req.ApprovalChain); err != nil {
		return nil, fmt.Errorf("failed to decode approval chain: %w", err)
	}
	req.Comments = []entity.Comment{}
	if err := decodeJSON(row.comments.String, &req.Comments); err != nil {
		return nil, fmt.Errorf("failed to decode comments: %w", err)
	}
	req.Attachments = []entity.Attachment{}
	if err := decodeJSON(row.attachments.String, &req.Attachments); err != nil {
		return nil, fmt.Errorf("failed to decode attachments: %w", err)
	}

	if req.CreatedAt, err = parseTime(row.createdAt); err != nil {
		return nil, err
	}
	if req.UpdatedAt, err = parseTime(row.updatedAt); err != nil {
		return nil, err
	}
	if req.DueDate, err = parseTimePtr(row.dueDate); err != nil {
		return nil, err
	}
	if req.CompletedAt, err = parseTimePtr(row.completedAt); err != nil {
		return nil, err
	}

	return &req, nil
}

func buildRequestWhere(f port.RequestFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	eq := func(column, value string) {
		if value != "" {
			clauses = append(clauses, column+" = ?")
			args = append(args, value)
		}
	}
	eq("submitted_by", f.SubmittedBy)
	eq("status", f.Status)
	eq("form_id", f.FormID)
	eq("department", f.Department)
	eq("current_approver_id", f.CurrentApproverID)
	eq("priority", f.Priority)

	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := escapeLike(s)
		clauses = append(clauses, `(LOWER(submitter_name) LIKE ? ESCAPE '\' OR LOWER(form_title) LIKE ? ESCAPE '\' OR LOWER(form_id) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}
	if f.CreatedFrom != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, formatTime(*f.CreatedFrom))
	}
	if f.CreatedTo != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, formatTime(*f.CreatedTo))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func orderBy(s port.RequestSort) string {
	dir := "DESC"
	if s.Asc {
		dir = "ASC"
	}

	switch s.Field {
	case port.SortByUpdatedAt:
		return " ORDER BY updated_at " + dir + ", rowid " + dir
	case port.SortByPriority:
		return " ORDER BY priority_rank " + dir + ", created_at DESC, rowid DESC"
	case port.SortByDueDate:
		// requests without a due date go last either way
		return " ORDER BY due_date IS NULL, due_date " + dir + ", rowid " + dir
	default:
		return " ORDER BY created_at " + dir + ", rowid " + dir
	}
}

func nonNilSteps(s []entity.ApprovalStep) []entity.ApprovalStep {
	if s == nil {
		return []entity.ApprovalStep{}
	}
	return s
}

func nonNilComments(c []entity.Comment) []entity.Comment {
	if c == nil {
		return []entity.Comment{}
	}
	return c
}

func nonNilAttachments(a []entity.Attachment) []entity.Attachment {
	if a == nil {
		return []entity.Attachment{}
	}
	return a
}

// getExecutor returns appropriate executor based on context
func (r *RequestRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.RequestRepository = (*RequestRepository)(nil)
