package port

import (
	"context"
	"time"

	"github.com/garyjia/docflow/internal/domain/entity"
)

// RequestRepository defines persistence operations for Request
type RequestRepository interface {
	// Create inserts a new request. CreatedAt/UpdatedAt are kept when already set.
	Create(ctx context.Context, req *entity.Request) error

	// GetByID returns entity.ErrNotFound when no request has the id
	GetByID(ctx context.Context, id string) (*entity.Request, error)

	// Update writes req only if the stored version still equals expectedVersion.
	// Returns entity.ErrConflict on a version mismatch and entity.ErrNotFound when the row is gone.
	Update(ctx context.Context, req *entity.Request, expectedVersion int) error

	// Delete returns entity.ErrNotFound when no request has the id
	Delete(ctx context.Context, id string) error

	List(ctx context.Context, filter RequestFilter, sort RequestSort, page Page) ([]*entity.Request, int, error)

	// CountByStatus returns the number of matching requests per status
	CountByStatus(ctx context.Context, filter RequestFilter) (map[string]int, error)
}

// NotificationRepository defines persistence operations for Notification
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
	GetByID(ctx context.Context, id string) (*entity.Notification, error)

	// MarkRead returns entity.ErrNotFound when no notification has the id
	MarkRead(ctx context.Context, id string) error

	// MarkAllRead flips every unread notification of the user and returns how many changed
	MarkAllRead(ctx context.Context, userID string) (int, error)

	MarkDelivered(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, page Page) ([]*entity.Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) (int, error)

	// Archive deletes all but the keep most recent notifications of the user
	Archive(ctx context.Context, userID string, keep int) (int, error)

	// DeleteExpired removes notifications whose expiry is at or before now
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// RequestFilter narrows a request listing. Zero values mean "no constraint".
type RequestFilter struct {
	SubmittedBy       string
	Status            string
	FormID            string
	Department        string
	CurrentApproverID string
	Priority          string
	Search            string
	CreatedFrom       *time.Time
	CreatedTo         *time.Time
}

// Sortable request fields
const (
	SortByCreatedAt = "createdAt"
	SortByUpdatedAt = "updatedAt"
	SortByPriority  = "priority"
	SortByDueDate   = "dueDate"
)

// RequestSort orders a request listing
type RequestSort struct {
	Field string
	Asc   bool
}

// Page selects one page of a listing
type Page struct {
	Page  int
	Limit int
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalize clamps the page into valid bounds
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Offset returns the row offset of the page
func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// Pages returns the number of pages needed for total rows
func (p Page) Pages(total int) int {
	n := p.Normalize()
	if total == 0 {
		return 0
	}
	return (total + n.Limit - 1) / n.Limit
}
