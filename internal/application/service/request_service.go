package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/docflow/internal/application/dispatcher"
	"github.com/garyjia/docflow/internal/application/port"
	"github.com/garyjia/docflow/internal/application/workflow"
	"github.com/garyjia/docflow/internal/domain/entity"
	"github.com/garyjia/docflow/internal/domain/event"
	"github.com/garyjia/docflow/pkg/utils"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// CreateRequestInput is a new submission
type CreateRequestInput struct {
	FormID          string           `json:"formId" validate:"required"`
	FormTitle       string           `json:"formTitle" validate:"max=200"`
	FormData        entity.FormData  `json:"formData" validate:"required"`
	SubmittedBy     string           `json:"submittedBy" validate:"required"`
	SubmitterName   string           `json:"submitterName" validate:"required"`
	SubmitterEmail  string           `json:"submitterEmail" validate:"required,email"`
	Department      string           `json:"department" validate:"required"`
	Priority        string           `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	CurrentApprover *entity.Approver `json:"currentApprover"`
	DueDate         *time.Time       `json:"dueDate"`
}

// RequestPatch lists the directly editable fields of a request. Nil fields are
// left alone. Status is not among them: it only moves through the workflow engine.
type RequestPatch struct {
	FormData        entity.FormData  `json:"formData"`
	Priority        *string          `json:"priority"`
	DueDate         *time.Time       `json:"dueDate"`
	CurrentApprover *entity.Approver `json:"currentApprover"`
}

// IsEmpty reports whether the patch changes nothing
func (p RequestPatch) IsEmpty() bool {
	return p.FormData == nil && p.Priority == nil && p.DueDate == nil && p.CurrentApprover == nil
}

// Revision is a combined edit: a patch, a status change, or both
type Revision struct {
	Patch   RequestPatch
	Status  string
	Comment string
	Version int
}

// AttachmentInput describes an uploaded file reference
type AttachmentInput struct {
	Name     string `json:"name" validate:"required"`
	URL      string `json:"url" validate:"required,url"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size" validate:"min=0"`
}

// RequestList is one page of requests
type RequestList struct {
	Items []*entity.Request
	Total int
	Page  port.Page
}

// RequestStats counts requests per status
type RequestStats struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus"`
}

// RequestService manages the request store
type RequestService interface {
	Create(ctx context.Context, in CreateRequestInput) (*entity.Request, error)
	Get(ctx context.Context, id string) (*entity.Request, error)
	Update(ctx context.Context, id string, patch RequestPatch, expectedVersion int, actor entity.Actor) (*entity.Request, error)
	// Revise applies rev.Patch and moves the request to rev.Status in one write.
	// If either part is refused nothing is stored.
	Revise(ctx context.Context, id string, rev Revision, actor entity.Actor) (*entity.Request, error)
	Delete(ctx context.Context, id string, actor entity.Actor) error
	List(ctx context.Context, filter port.RequestFilter, sort port.RequestSort, page port.Page) (*RequestList, error)
	ListByUser(ctx context.Context, userID string, page port.Page) (*RequestList, error)
	AddComment(ctx context.Context, id string, actor entity.Actor, text string) (*entity.Request, error)
	AddAttachment(ctx context.Context, id string, actor entity.Actor, in AttachmentInput) (*entity.Request, error)
	Stats(ctx context.Context, filter port.RequestFilter) (*RequestStats, error)
	Export(ctx context.Context, filter port.RequestFilter, w io.Writer) (int, error)
}

type requestServiceImpl struct {
	requestRepo port.RequestRepository
	txManager   port.TransactionManager
	forms       port.FormSchemaRegistry
	exporter    port.RequestExporter
	dispatcher  dispatcher.Dispatcher
	workflow    workflow.WorkflowEngine
	logger      Logger
	now         func() time.Time
}

// RequestServiceOption configures the request service
type RequestServiceOption func(*requestServiceImpl)

// WithFormRegistry enables required-field checks per form template
func WithFormRegistry(r port.FormSchemaRegistry) RequestServiceOption {
	return func(s *requestServiceImpl) { s.forms = r }
}

// WithExporter sets the listing exporter
func WithExporter(e port.RequestExporter) RequestServiceOption {
	return func(s *requestServiceImpl) { s.exporter = e }
}

// WithEventDispatcher sets where request events are published
func WithEventDispatcher(d dispatcher.Dispatcher) RequestServiceOption {
	return func(s *requestServiceImpl) { s.dispatcher = d }
}

// WithWorkflowEngine sets the engine that carries status changes made by Revise
func WithWorkflowEngine(e workflow.WorkflowEngine) RequestServiceOption {
	return func(s *requestServiceImpl) { s.workflow = e }
}

// WithRequestClock overrides the time source
func WithRequestClock(now func() time.Time) RequestServiceOption {
	return func(s *requestServiceImpl) { s.now = now }
}

// NewRequestService creates a new RequestService
func NewRequestService(
	requestRepo port.RequestRepository,
	txManager port.TransactionManager,
	logger Logger,
	opts ...RequestServiceOption,
) RequestService {
	s := &requestServiceImpl{
		requestRepo: requestRepo,
		txManager:   txManager,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *requestServiceImpl) Create(ctx context.Context, in CreateRequestInput) (*entity.Request, error) {
	in.FormID = strings.TrimSpace(in.FormID)
	in.SubmittedBy = strings.TrimSpace(in.SubmittedBy)
	in.SubmitterEmail = strings.TrimSpace(in.SubmitterEmail)

	if err := utils.ValidateStruct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}
	if err := in.FormData.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkRequiredFields(in.FormID, in.FormData); err != nil {
		return nil, err
	}

	priority := in.Priority
	if priority == "" {
		priority = entity.PriorityMedium
	}

	now := s.now().UTC()
	req := &entity.Request{
		ID:              uuid.NewString(),
		FormID:          in.FormID,
		FormTitle:       in.FormTitle,
		FormData:        in.FormData.Clone(),
		SubmittedBy:     in.SubmittedBy,
		SubmitterName:   in.SubmitterName,
		SubmitterEmail:  in.SubmitterEmail,
		Department:      in.Department,
		Status:          entity.StatusPending,
		Priority:        priority,
		CurrentApprover: in.CurrentApprover,
		ApprovalChain:   []entity.ApprovalStep{},
		Comments:        []entity.Comment{},
		Attachments:     []entity.Attachment{},
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
		DueDate:         utcPtr(in.DueDate),
	}

	if err := s.requestRepo.Create(ctx, req); err != nil {
		s.logger.Error("Failed to create request", "error", err, "form_id", in.FormID)
		return nil, fmt.Errorf("create request: %w", err)
	}

	s.logger.Info("Request created",
		"request_id", req.ID,
		"form_id", req.FormID,
		"submitted_by", req.SubmittedBy,
	)
	s.publish(ctx, event.TypeRequestCreated, req, req.SubmittedBy, nil)

	return req, nil
}

func (s *requestServiceImpl) Get(ctx context.Context, id string) (*entity.Request, error) {
	return s.requestRepo.GetByID(ctx, id)
}

func (s *requestServiceImpl) Update(ctx context.Context, id string, patch RequestPatch, expectedVersion int, actor entity.Actor) (*entity.Request, error) {
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	var updated *entity.Request
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.requestRepo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if expectedVersion > 0 && expectedVersion != current.Version {
			return fmt.Errorf("%w: request %s is at version %d, caller has %d",
				entity.ErrConflict, id, current.Version, expectedVersion)
		}
		if patch.FormData != nil {
			if !current.IsEditable() {
				return fmt.Errorf("%w: formData can only change while %s or %s, request is %s",
					entity.ErrValidation, entity.StatusPending, entity.StatusNeedsCorrection, current.Status)
			}
			if err := s.checkRequiredFields(current.FormID, patch.FormData); err != nil {
				return err
			}
		}

		next := current.Clone()
		applyPatch(next, patch)
		s.bump(next, current)

		if err := s.requestRepo.Update(txCtx, next, current.Version); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Request updated", "request_id", id, "version", updated.Version, "actor_id", actor.ID)
	s.publish(ctx, event.TypeRequestUpdated, updated, actor.ID, nil)

	return updated, nil
}

func (s *requestServiceImpl) Revise(ctx context.Context, id string, rev Revision, actor entity.Actor) (*entity.Request, error) {
	target := strings.TrimSpace(rev.Status)
	if target == "" {
		return s.Update(ctx, id, rev.Patch, rev.Version, actor)
	}
	if !rev.Patch.IsEmpty() {
		if err := validatePatch(rev.Patch); err != nil {
			return nil, err
		}
	}

	current, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if target == current.Status {
		if rev.Patch.IsEmpty() {
			return current, nil
		}
		return s.Update(ctx, id, rev.Patch, rev.Version, actor)
	}
	if s.workflow == nil {
		return nil, fmt.Errorf("status change requested but no workflow engine is configured")
	}

	cmd := workflow.TransitionCommand{
		RequestID:       id,
		TargetStatus:    target,
		Actor:           actor,
		Comment:         rev.Comment,
		ExpectedVersion: rev.Version,
	}
	if !rev.Patch.IsEmpty() {
		cmd.Edit = s.patchEditor(rev.Patch)
	}

	updated, err := s.workflow.Transition(ctx, cmd)
	if err != nil {
		return nil, err
	}

	if !rev.Patch.IsEmpty() {
		s.logger.Info("Request updated", "request_id", id, "version", updated.Version, "actor_id", actor.ID)
		s.publish(ctx, event.TypeRequestUpdated, updated, actor.ID, nil)
	}
	return updated, nil
}

// patchEditor returns patch as an edit the workflow engine applies before the status moves
func (s *requestServiceImpl) patchEditor(patch RequestPatch) func(context.Context, *entity.Request) error {
	return func(_ context.Context, req *entity.Request) error {
		if patch.FormData != nil {
			if !req.IsEditable() {
				return fmt.Errorf("%w: formData can only change while %s or %s, request is %s",
					entity.ErrValidation, entity.StatusPending, entity.StatusNeedsCorrection, req.Status)
			}
			if err := s.checkRequiredFields(req.FormID, patch.FormData); err != nil {
				return err
			}
		}
		applyPatch(req, patch)
		return nil
	}
}

func (s *requestServiceImpl) Delete(ctx context.Context, id string, actor entity.Actor) error {
	req, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.requestRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Request deleted", "request_id", id, "actor_id", actor.ID)
	s.publish(ctx, event.TypeRequestDeleted, req, actor.ID, nil)
	return nil
}

func (s *requestServiceImpl) List(ctx context.Context, filter port.RequestFilter, sort port.RequestSort, page port.Page) (*RequestList, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	if err := validateSort(sort); err != nil {
		return nil, err
	}

	page = page.Normalize()
	items, total, err := s.requestRepo.List(ctx, filter, sort, page)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return &RequestList{Items: items, Total: total, Page: page}, nil
}

func (s *requestServiceImpl) ListByUser(ctx context.Context, userID string, page port.Page) (*RequestList, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: userId is required", entity.ErrValidation)
	}
	return s.List(ctx, port.RequestFilter{SubmittedBy: userID}, port.RequestSort{Field: port.SortByCreatedAt}, page)
}

func (s *requestServiceImpl) AddComment(ctx context.Context, id string, actor entity.Actor, text string) (*entity.Request, error) {
	text = strings.TrimSpace(utils.SanitizeString(text))
	if text == "" {
		return nil, fmt.Errorf("%w: comment text is required", entity.ErrValidation)
	}
	if actor.ID == "" {
		return nil, fmt.Errorf("%w: acting user is required", entity.ErrForbidden)
	}

	comment := entity.Comment{
		ID:         uuid.NewString(),
		AuthorID:   actor.ID,
		AuthorName: actor.Name,
		Text:       text,
		CreatedAt:  s.now().UTC(),
	}

	updated, err := s.appendRecord(ctx, id, func(next *entity.Request) {
		next.Comments = append(append([]entity.Comment{}, next.Comments...), comment)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, event.TypeRequestCommented, updated, actor.ID, map[string]interface{}{
		event.KeyComment:    text,
		event.KeyAuthorID:   actor.ID,
		event.KeyAuthorName: actor.Name,
	})
	return updated, nil
}

func (s *requestServiceImpl) AddAttachment(ctx context.Context, id string, actor entity.Actor, in AttachmentInput) (*entity.Request, error) {
	if err := utils.ValidateStruct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}
	if actor.ID == "" {
		return nil, fmt.Errorf("%w: acting user is required", entity.ErrForbidden)
	}

	att := entity.Attachment{
		ID:         uuid.NewString(),
		Name:       in.Name,
		URL:        in.URL,
		MimeType:   in.MimeType,
		Size:       in.Size,
		UploadedBy: actor.ID,
		UploadedAt: s.now().UTC(),
	}

	updated, err := s.appendRecord(ctx, id, func(next *entity.Request) {
		next.Attachments = append(append([]entity.Attachment{}, next.Attachments...), att)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, event.TypeRequestUpdated, updated, actor.ID, nil)
	return updated, nil
}

func (s *requestServiceImpl) Stats(ctx context.Context, filter port.RequestFilter) (*RequestStats, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	counts, err := s.requestRepo.CountByStatus(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count requests: %w", err)
	}

	stats := &RequestStats{ByStatus: make(map[string]int, len(counts))}
	for status, n := range counts {
		stats.ByStatus[status] = n
		stats.Total += n
	}
	return stats, nil
}

// Export writes every request matching filter and returns how many were written
func (s *requestServiceImpl) Export(ctx context.Context, filter port.RequestFilter, w io.Writer) (int, error) {
	if s.exporter == nil {
		return 0, fmt.Errorf("export is not configured")
	}
	if err := validateFilter(filter); err != nil {
		return 0, err
	}

	var all []*entity.Request
	sort := port.RequestSort{Field: port.SortByCreatedAt}
	for page := (port.Page{Page: 1, Limit: port.MaxPageLimit}); ; page.Page++ {
		items, total, err := s.requestRepo.List(ctx, filter, sort, page)
		if err != nil {
			return 0, fmt.Errorf("list requests for export: %w", err)
		}
		all = append(all, items...)
		if len(items) == 0 || len(all) >= total {
			break
		}
	}

	if err := s.exporter.Export(w, all); err != nil {
		return 0, fmt.Errorf("export requests: %w", err)
	}
	return len(all), nil
}

// appendRecord applies mutate to a fresh copy of the request and writes it
// guarded by the version that was read
func (s *requestServiceImpl) appendRecord(ctx context.Context, id string, mutate func(*entity.Request)) (*entity.Request, error) {
	var updated *entity.Request
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.requestRepo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		next := current.Clone()
		mutate(next)
		s.bump(next, current)
		if err := s.requestRepo.Update(txCtx, next, current.Version); err != nil {
			return err
		}
		updated = next
		return nil
	})
	return updated, err
}

// bump advances version and updatedAt, never moving updatedAt backwards
func (s *requestServiceImpl) bump(next, current *entity.Request) {
	now := s.now().UTC()
	if now.Before(current.UpdatedAt) {
		now = current.UpdatedAt
	}
	next.Version = current.Version + 1
	next.UpdatedAt = now
}

func (s *requestServiceImpl) checkRequiredFields(formID string, data entity.FormData) error {
	if s.forms == nil {
		return nil
	}
	required, ok := s.forms.RequiredFields(formID)
	if !ok {
		return nil
	}

	var missing []string
	for _, field := range required {
		v, present := data[field]
		if !present || v == nil {
			missing = append(missing, field)
			continue
		}
		if str, isStr := v.(string); isStr && strings.TrimSpace(str) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: form %s requires %s", entity.ErrValidation, formID, strings.Join(missing, ", "))
	}
	return nil
}

func (s *requestServiceImpl) publish(ctx context.Context, t event.Type, req *entity.Request, actorID string, payload map[string]interface{}) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.DispatchAsync(ctx, event.NewEvent(t, req, actorID, payload))
}

func validatePatch(p RequestPatch) error {
	if p.IsEmpty() {
		return fmt.Errorf("%w: patch changes nothing", entity.ErrValidation)
	}
	if p.Priority != nil && !entity.IsValidPriority(*p.Priority) {
		return fmt.Errorf("%w: unknown priority %q", entity.ErrValidation, *p.Priority)
	}
	if p.CurrentApprover != nil && strings.TrimSpace(p.CurrentApprover.ID) == "" {
		return fmt.Errorf("%w: currentApprover.id is required", entity.ErrValidation)
	}
	if p.FormData != nil {
		return p.FormData.Validate()
	}
	return nil
}

func applyPatch(req *entity.Request, p RequestPatch) {
	if p.FormData != nil {
		req.FormData = p.FormData.Clone()
	}
	if p.Priority != nil {
		req.Priority = *p.Priority
	}
	if p.DueDate != nil {
		req.DueDate = utcPtr(p.DueDate)
	}
	if p.CurrentApprover != nil {
		a := *p.CurrentApprover
		req.CurrentApprover = &a
	}
}

func validateFilter(f port.RequestFilter) error {
	if f.Status != "" && !entity.IsValidStatus(f.Status) {
		return fmt.Errorf("%w: unknown status filter %q", entity.ErrValidation, f.Status)
	}
	if f.Priority != "" && !entity.IsValidPriority(f.Priority) {
		return fmt.Errorf("%w: unknown priority filter %q", entity.ErrValidation, f.Priority)
	}
	if f.CreatedFrom != nil && f.CreatedTo != nil && f.CreatedTo.Before(*f.CreatedFrom) {
		return fmt.Errorf("%w: createdTo is before createdFrom", entity.ErrValidation)
	}
	return nil
}

func validateSort(s port.RequestSort) error {
	switch s.Field {
	case "", port.SortByCreatedAt, port.SortByUpdatedAt, port.SortByPriority, port.SortByDueDate:
		return nil
	default:
		return fmt.Errorf("%w: cannot sort by %q", entity.ErrValidation, s.Field)
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
