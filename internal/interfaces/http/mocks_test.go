package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/garyjia/docflow/internal/application/port"
	"github.com/garyjia/docflow/internal/application/service"
	"github.com/garyjia/docflow/internal/application/workflow"
	"github.com/garyjia/docflow/internal/domain/entity"
)

var errNotMocked = errors.New("not mocked")

type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) errorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

type mockRequestService struct {
	createFunc        func(ctx context.Context, in service.CreateRequestInput) (*entity.Request, error)
	getFunc           func(ctx context.Context, id string) (*entity.Request, error)
	updateFunc        func(ctx context.Context, id string, patch service.RequestPatch, expectedVersion int, actor entity.Actor) (*entity.Request, error)
	reviseFunc        func(ctx context.Context, id string, rev service.Revision, actor entity.Actor) (*entity.Request, error)
	deleteFunc        func(ctx context.Context, id string, actor entity.Actor) error
	listFunc          func(ctx context.Context, filter port.RequestFilter, sort port.RequestSort, page port.Page) (*service.RequestList, error)
	listByUserFunc    func(ctx context.Context, userID string, page port.Page) (*service.RequestList, error)
	addCommentFunc    func(ctx context.Context, id string, actor entity.Actor, text string) (*entity.Request, error)
	addAttachmentFunc func(ctx context.Context, id string, actor entity.Actor, in service.AttachmentInput) (*entity.Request, error)
	statsFunc         func(ctx context.Context, filter port.RequestFilter) (*service.RequestStats, error)
	exportFunc        func(ctx context.Context, filter port.RequestFilter, w io.Writer) (int, error)
}

func (m *mockRequestService) Create(ctx context.Context, in service.CreateRequestInput) (*entity.Request, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, in)
	}
	return nil, errNotMocked
}

func (m *mockRequestService) Get(ctx context.Context, id string) (*entity.Request, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, errNotMocked
}

func (m *mockRequestService) Update(ctx context.Context, id string, patch service.RequestPatch, expectedVersion int, actor entity.Actor) (*entity.Request, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, patch, expectedVersion, actor)
	}
	return nil, errNotMocked
}

func (m *mockRequestService) Revise(ctx context.Context, id string, rev service.Revision, actor entity.Actor) (*entity.Request, error) {
	if m.reviseFunc != nil {
		return m.reviseFunc(ctx, id, rev, actor)
	}
	return nil, errNotMocked
}

func (m *mockRequestService) Delete(ctx context.Context, id string, actor entity.Actor) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id, actor)
	}
	return errNotMocked
}

func (m *mockRequestService) List(ctx context.Context, filter port.RequestFilter, sort port.RequestSort, page port.Page) (*service.RequestList, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter, sort, page)
	}
	return nil, errNotMocked
}

func (m *mockRequestService) ListByUser(ctx context.Context, userID string, page port.Page) (*service.RequestList, error) {
	if m.listByUserFunc != nil {
		return m.listByUserFunc(ctx, userID, page)
	}
	return nil, errNotMocked
}

func (m *mockRequestService) AddComment(ctx context.Context, id string, actor entity.Actor, text string) (*entity.Request, error) {
	if m.addCommentFunc != nil {
		return m.addCommentFunc(ctx, id, actor, text)
	}
	return nil, errNotMocked
}

func (m *mockRequestService) AddAttachment(ctx context.Context, id string, actor entity.Actor, in service.AttachmentInput) (*entity.Request, error) {
	if m.addAttachmentFunc != nil {
		return m.addAttachmentFunc(ctx, id, actor, in)
	}
	return nil, errNotMocked
}

func (m *mockRequestService) Stats(ctx context.Context, filter port.RequestFilter) (*service.RequestStats, error) {
	if m.statsFunc != nil {
		return m.statsFunc(ctx, filter)
	}
	return nil, errNotMocked
}

func (m *mockRequestService) Export(ctx context.Context, filter port.RequestFilter, w io.Writer) (int, error) {
	if m.exportFunc != nil {
		return m.exportFunc(ctx, filter, w)
	}
	return 0, errNotMocked
}

type mockNotificationService struct {
	notifyFunc      func(ctx context.Context, in service.NotifyInput) (*entity.Notification, error)
	markReadFunc    func(ctx context.Context, id string) (*entity.Notification, error)
	markAllReadFunc func(ctx context.Context, userID string) (int, error)
	listFunc        func(ctx context.Context, userID string, unreadOnly bool, page port.Page) (*service.NotificationList, error)
	unreadFunc      func(ctx context.Context, userID string) (int, error)
	deleteFunc      func(ctx context.Context, id string) error
	clearFunc       func(ctx context.Context, userID string) (int, error)
	archiveFunc     func(ctx context.Context, userID string, keep int) (int, error)
}

func (m *mockNotificationService) Notify(ctx context.Context, in service.NotifyInput) (*entity.Notification, error) {
	if m.notifyFunc != nil {
		return m.notifyFunc(ctx, in)
	}
	return nil, errNotMocked
}

func (m *mockNotificationService) MarkRead(ctx context.Context, id string) (*entity.Notification, error) {
	if m.markReadFunc != nil {
		return m.markReadFunc(ctx, id)
	}
	return nil, errNotMocked
}

func (m *mockNotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	if m.markAllReadFunc != nil {
		return m.markAllReadFunc(ctx, userID)
	}
	return 0, errNotMocked
}

func (m *mockNotificationService) List(ctx context.Context, userID string, unreadOnly bool, page port.Page) (*service.NotificationList, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, userID, unreadOnly, page)
	}
	return nil, errNotMocked
}

func (m *mockNotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	if m.unreadFunc != nil {
		return m.unreadFunc(ctx, userID)
	}
	return 0, errNotMocked
}

func (m *mockNotificationService) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return errNotMocked
}

func (m *mockNotificationService) Clear(ctx context.Context, userID string) (int, error) {
	if m.clearFunc != nil {
		return m.clearFunc(ctx, userID)
	}
	return 0, errNotMocked
}

func (m *mockNotificationService) Archive(ctx context.Context, userID string, keep int) (int, error) {
	if m.archiveFunc != nil {
		return m.archiveFunc(ctx, userID, keep)
	}
	return 0, errNotMocked
}

func (m *mockNotificationService) DeleteExpired(ctx context.Context) (int, error) {
	return 0, errNotMocked
}

type mockEngine struct {
	transitionFunc func(ctx context.Context, cmd workflow.TransitionCommand) (*entity.Request, error)
	historyFunc    func(ctx context.Context, requestID string) ([]entity.ApprovalStep, error)
	permittedFunc  func(ctx context.Context, requestID string) ([]string, error)
}

func (m *mockEngine) Transition(ctx context.Context, cmd workflow.TransitionCommand) (*entity.Request, error) {
	if m.transitionFunc != nil {
		return m.transitionFunc(ctx, cmd)
	}
	return nil, errNotMocked
}

func (m *mockEngine) History(ctx context.Context, requestID string) ([]entity.ApprovalStep, error) {
	if m.historyFunc != nil {
		return m.historyFunc(ctx, requestID)
	}
	return nil, errNotMocked
}

func (m *mockEngine) PermittedTargets(ctx context.Context, requestID string) ([]string, error) {
	if m.permittedFunc != nil {
		return m.permittedFunc(ctx, requestID)
	}
	return nil, errNotMocked
}

type mockLive struct {
	userID string
}

func (m *mockLive) Serve(w http.ResponseWriter, r *http.Request, userID string) error {
	m.userID = userID
	w.WriteHeader(http.StatusNoContent)
	return nil
}

type fixedFormat struct{}

func (fixedFormat) ContentType() string   { return "text/csv" }
func (fixedFormat) FileExtension() string { return ".csv" }
