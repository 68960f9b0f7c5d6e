package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/docflow/internal/application/port"
	"github.com/garyjia/docflow/internal/domain/entity"
	"github.com/garyjia/docflow/pkg/utils"
)

// NotifyInput describes a notification to create
type NotifyInput struct {
	UserID    string                  `json:"userId" validate:"required"`
	Type      entity.NotificationType `json:"type" validate:"required"`
	Title     string                  `json:"title" validate:"required,max=200"`
	Message   string                  `json:"message" validate:"required"`
	RequestID string                  `json:"requestId"`
	Priority  string                  `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
}

// NotificationList is one page of a user's notifications
type NotificationList struct {
	Items  []*entity.Notification
	Total  int
	Unread int
	Page   port.Page
}

// NotificationService manages per-user notifications
type NotificationService interface {
	// Notify stores a notification and attempts a live push. Push failures are
	// logged and leave the notification undelivered; they never fail the call.
	Notify(ctx context.Context, in NotifyInput) (*entity.Notification, error)

	MarkRead(ctx context.Context, id string) (*entity.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
	List(ctx context.Context, userID string, unreadOnly bool, page port.Page) (*NotificationList, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context, userID string) (int, error)

	// Archive keeps the keep most recent notifications of the user and returns how many were deleted
	Archive(ctx context.Context, userID string, keep int) (int, error)

	// DeleteExpired removes notifications past their expiry
	DeleteExpired(ctx context.Context) (int, error)
}

type notificationServiceImpl struct {
	notificationRepo port.NotificationRepository
	pusher           port.Pusher
	metrics          port.Metrics
	logger           Logger
	ttl              time.Duration
	pushTimeout      time.Duration
	now              func() time.Time
}

// NotificationOption configures the notification service
type NotificationOption func(*notificationServiceImpl)

// WithPusher sets the live delivery channel
func WithPusher(p port.Pusher) NotificationOption {
	return func(s *notificationServiceImpl) { s.pusher = p }
}

// WithTTL sets how long notifications live before expiring
func WithTTL(ttl time.Duration) NotificationOption {
	return func(s *notificationServiceImpl) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithPushTimeout bounds a single push attempt
func WithPushTimeout(d time.Duration) NotificationOption {
	return func(s *notificationServiceImpl) {
		if d > 0 {
			s.pushTimeout = d
		}
	}
}

// WithNotificationMetrics sets the metrics sink
func WithNotificationMetrics(m port.Metrics) NotificationOption {
	return func(s *notificationServiceImpl) { s.metrics = m }
}

// WithNotificationClock overrides the time source
func WithNotificationClock(now func() time.Time) NotificationOption {
	return func(s *notificationServiceImpl) { s.now = now }
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	notificationRepo port.NotificationRepository,
	logger Logger,
	opts ...NotificationOption,
) NotificationService {
	s := &notificationServiceImpl{
		notificationRepo: notificationRepo,
		metrics:          port.NoopMetrics{},
		logger:           logger,
		ttl:              entity.DefaultNotificationTTL,
		pushTimeout:      5 * time.Second,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Push outcome labels reported to metrics
const (
	pushDelivered = "delivered"
	pushFailed    = "failed"
	pushSkipped   = "skipped"
)

func (s *notificationServiceImpl) Notify(ctx context.Context, in NotifyInput) (*entity.Notification, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	if err := utils.ValidateStruct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}
	if !in.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown notification type %q", entity.ErrValidation, in.Type)
	}
	if in.Priority == "" {
		in.Priority = entity.PriorityMedium
	}

	now := s.now().UTC()
	n := &entity.Notification{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Type:      in.Type,
		Title:     in.Title,
		Message:   in.Message,
		RequestID: in.RequestID,
		Priority:  in.Priority,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := s.notificationRepo.Create(ctx, n); err != nil {
		s.logger.Error("Failed to create notification", "error", err, "user_id", n.UserID)
		return nil, fmt.Errorf("create notification: %w", err)
	}

	s.push(ctx, n)
	return n, nil
}

// push attempts live delivery and records the outcome on n
func (s *notificationServiceImpl) push(ctx context.Context, n *entity.Notification) {
	if s.pusher == nil {
		s.metrics.PushRecorded(pushSkipped)
		return
	}

	pctx, cancel := context.WithTimeout(ctx, s.pushTimeout)
	defer cancel()

	if err := s.pusher.Push(pctx, n.UserID, n); err != nil {
		s.metrics.PushRecorded(pushFailed)
		s.logger.Info("Notification push not delivered",
			"notification_id", n.ID,
			"user_id", n.UserID,
			"reason", err.Error(),
		)
		return
	}

	if err := s.notificationRepo.MarkDelivered(ctx, n.ID); err != nil {
		s.logger.Error("Failed to mark notification delivered", "error", err, "notification_id", n.ID)
		return
	}
	n.Delivered = true
	s.metrics.PushRecorded(pushDelivered)
}

func (s *notificationServiceImpl) MarkRead(ctx context.Context, id string) (*entity.Notification, error) {
	if err := s.notificationRepo.MarkRead(ctx, id); err != nil {
		return nil, err
	}
	return s.notificationRepo.GetByID(ctx, id)
}

func (s *notificationServiceImpl) MarkAllRead(ctx context.Context, userID string) (int, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	n, err := s.notificationRepo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return n, nil
}

func (s *notificationServiceImpl) List(ctx context.Context, userID string, unreadOnly bool, page port.Page) (*NotificationList, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	page = page.Normalize()
	items, total, err := s.notificationRepo.ListByUser(ctx, userID, unreadOnly, page)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	unread, err := s.notificationRepo.CountUnread(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count unread: %w", err)
	}
	return &NotificationList{Items: items, Total: total, Unread: unread, Page: page}, nil
}

func (s *notificationServiceImpl) UnreadCount(ctx context.Context, userID string) (int, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	return s.notificationRepo.CountUnread(ctx, userID)
}

func (s *notificationServiceImpl) Delete(ctx context.Context, id string) error {
	return s.notificationRepo.Delete(ctx, id)
}

func (s *notificationServiceImpl) Clear(ctx context.Context, userID string) (int, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	n, err := s.notificationRepo.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("clear notifications: %w", err)
	}
	s.logger.Info("Notifications cleared", "user_id", userID, "deleted", n)
	return n, nil
}

func (s *notificationServiceImpl) Archive(ctx context.Context, userID string, keep int) (int, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	if keep < 0 {
		return 0, fmt.Errorf("%w: keep must not be negative", entity.ErrValidation)
	}

	n, err := s.notificationRepo.Archive(ctx, userID, keep)
	if err != nil {
		return 0, fmt.Errorf("archive notifications: %w", err)
	}
	s.logger.Info("Notifications archived", "user_id", userID, "keep", keep, "deleted", n)
	return n, nil
}

func (s *notificationServiceImpl) DeleteExpired(ctx context.Context) (int, error) {
	n, err := s.notificationRepo.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired notifications: %w", err)
	}
	s.metrics.NotificationsSwept(n)
	return n, nil
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: userId is required", entity.ErrValidation)
	}
	return nil
}
