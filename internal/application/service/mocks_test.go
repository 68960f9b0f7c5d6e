package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/docflow/internal/application/dispatcher"
	"github.com/garyjia/docflow/internal/application/port"
	"github.com/garyjia/docflow/internal/domain/entity"
	"github.com/garyjia/docflow/internal/domain/event"
)

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

// mockRequestRepo is an in-memory store; func fields override single methods
type mockRequestRepo struct {
	mu       sync.Mutex
	requests map[string]*entity.Request

	createFunc func(ctx context.Context, req *entity.Request) error
	listFunc   func(ctx context.Context, filter port.RequestFilter, sort port.RequestSort, page port.Page) ([]*entity.Request, int, error)
	countFunc  func(ctx context.Context, filter port.RequestFilter) (map[string]int, error)
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{requests: make(map[string]*entity.Request)}
}

func (m *mockRequestRepo) Create(ctx context.Context, req *entity.Request) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, req)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = req.Clone()
	return nil
}

func (m *mockRequestRepo) GetByID(ctx context.Context, id string) (*entity.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return req.Clone(), nil
}

func (m *mockRequestRepo) Update(ctx context.Context, req *entity.Request, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.requests[req.ID]
	if !ok {
		return entity.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return entity.ErrConflict
	}
	m.requests[req.ID] = req.Clone()
	return nil
}

func (m *mockRequestRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[id]; !ok {
		return entity.ErrNotFound
	}
	delete(m.requests, id)
	return nil
}

func (m *mockRequestRepo) List(ctx context.Context, filter port.RequestFilter, s port.RequestSort, page port.Page) ([]*entity.Request, int, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter, s, page)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*entity.Request
	for _, r := range m.requests {
		if filter.SubmittedBy != "" && r.SubmittedBy != filter.SubmittedBy {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		matched = append(matched, r.Clone())
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	start := page.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + page.Normalize().Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], len(matched), nil
}

func (m *mockRequestRepo) CountByStatus(ctx context.Context, filter port.RequestFilter) (map[string]int, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx, filter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int)
	for _, r := range m.requests {
		out[r.Status]++
	}
	return out, nil
}

type mockTxManager struct {
	mu sync.Mutex
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx)
}

// mockNotificationRepo is an in-memory store
type mockNotificationRepo struct {
	mu            sync.Mutex
	notifications map[string]*entity.Notification
	createErr     error
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{notifications: make(map[string]*entity.Notification)}
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *n
	m.notifications[n.ID] = &c
	return nil
}

func (m *mockNotificationRepo) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	c := *n
	return &c, nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return entity.ErrNotFound
	}
	n.Read = true
	return nil
}

func (m *mockNotificationRepo) MarkAllRead(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := 0
	for _, n := range m.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			changed++
		}
	}
	return changed, nil
}

func (m *mockNotificationRepo) MarkDelivered(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.notifications[id]; ok {
		n.Delivered = true
		return nil
	}
	return entity.ErrNotFound
}

func (m *mockNotificationRepo) byUser(userID string) []*entity.Notification {
	var out []*entity.Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *mockNotificationRepo) ListByUser(ctx context.Context, userID string, unreadOnly bool, page port.Page) ([]*entity.Notification, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Notification
	for _, n := range m.byUser(userID) {
		if unreadOnly && n.Read {
			continue
		}
		c := *n
		out = append(out, &c)
	}
	return out, len(out), nil
}

func (m *mockNotificationRepo) CountUnread(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.byUser(userID) {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (m *mockNotificationRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notifications[id]; !ok {
		return entity.ErrNotFound
	}
	delete(m.notifications, id)
	return nil
}

func (m *mockNotificationRepo) DeleteByUser(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.byUser(userID)
	for _, n := range list {
		delete(m.notifications, n.ID)
	}
	return len(list), nil
}

func (m *mockNotificationRepo) Archive(ctx context.Context, userID string, keep int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.byUser(userID)
	if len(list) <= keep {
		return 0, nil
	}
	for _, n := range list[keep:] {
		delete(m.notifications, n.ID)
	}
	return len(list) - keep, nil
}

func (m *mockNotificationRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for id, n := range m.notifications {
		if !n.ExpiresAt.After(now) {
			delete(m.notifications, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *mockNotificationRepo) all() []*entity.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Notification
	for _, n := range m.notifications {
		c := *n
		out = append(out, &c)
	}
	return out
}

type mockPusher struct {
	pushFunc func(ctx context.Context, userID string, payload interface{}) error
	mu       sync.Mutex
	pushed   []string
}

func (m *mockPusher) Push(ctx context.Context, userID string, payload interface{}) error {
	m.mu.Lock()
	m.pushed = append(m.pushed, userID)
	m.mu.Unlock()
	if m.pushFunc != nil {
		return m.pushFunc(ctx, userID, payload)
	}
	return nil
}

var errNotConnected = errors.New("user not connected")

type mockFormRegistry struct {
	forms map[string][]string
}

func (m *mockFormRegistry) RequiredFields(formID string) ([]string, bool) {
	f, ok := m.forms[formID]
	return f, ok
}

type mockExporter struct {
	exported []*entity.Request
}

func (m *mockExporter) Export(w io.Writer, requests []*entity.Request) error {
	m.exported = requests
	_, err := io.Copy(w, bytes.NewBufferString("xlsx"))
	return err
}

func (m *mockExporter) ContentType() string   { return "application/octet-stream" }
func (m *mockExporter) FileExtension() string { return "xlsx" }

// recordingDispatcher runs handlers synchronously so tests can observe fan-out
type recordingDispatcher struct {
	dispatcher.Dispatcher
	mu     sync.Mutex
	events []*event.Event
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{Dispatcher: dispatcher.NewDispatcher()}
}

func (r *recordingDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
	_ = r.Dispatcher.Dispatch(ctx, evt)
}

func (r *recordingDispatcher) types() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
