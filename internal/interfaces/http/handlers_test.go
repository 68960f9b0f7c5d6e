package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/docflow/internal/application/port"
	"github.com/garyjia/docflow/internal/application/service"
	"github.com/garyjia/docflow/internal/application/workflow"
	"github.com/garyjia/docflow/internal/domain/entity"
	domainwf "github.com/garyjia/docflow/internal/domain/workflow"
)

type testEnv struct {
	requests      *mockRequestService
	notifications *mockNotificationService
	engine        *mockEngine
	live          *mockLive
	logger        *mockLogger
	server        *Server
}

func newTestEnv(t *testing.T, mutate ...func(*Dependencies)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		requests:      &mockRequestService{},
		notifications: &mockNotificationService{},
		engine:        &mockEngine{},
		live:          &mockLive{},
		logger:        &mockLogger{},
	}
	deps := Dependencies{
		Requests:      env.requests,
		Notifications: env.notifications,
		Workflow:      env.engine,
		Live:          env.live,
		ExportFormat:  fixedFormat{},
	}
	for _, m := range mutate {
		m(&deps)
	}

	cfg := DefaultServerConfig()
	cfg.Mode = gin.TestMode
	cfg.ArchiveKeep = 100
	env.server = NewServer(cfg, deps, env.logger)
	return env
}

func (e *testEnv) do(method, path string, body interface{}, userID string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			raw, _ := json.Marshal(b)
			reader = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
		req.Header.Set(HeaderUserName, "Alice")
		req.Header.Set(HeaderUserEmail, "alice@example.com")
		req.Header.Set(HeaderUserDepartment, "finance")
		req.Header.Set(HeaderUserRole, "Approver")
	}
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Total   int             `json:"total"`
	Page    int             `json:"page"`
	Pages   int             `json:"pages"`
	Limit   int             `json:"limit"`
	Unread  *int            `json:"unread"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func sampleRequest(status string, version int) *entity.Request {
	return &entity.Request{
		ID:            "req-1",
		FormID:        "leave",
		SubmittedBy:   "bob",
		Status:        status,
		Priority:      entity.PriorityMedium,
		Version:       version,
		ApprovalChain: []entity.ApprovalStep{},
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
		wantLogged  bool
	}{
		{"validation", fmt.Errorf("%w: formId is required", entity.ErrValidation), http.StatusBadRequest, CodeValidation, "validation failed: formId is required", false},
		{"invalid transition", fmt.Errorf("%w: completed to pending", domainwf.ErrInvalidTransition), http.StatusBadRequest, CodeInvalidTransition, "invalid state transition: completed to pending", false},
		{"guard failed", domainwf.ErrGuardFailed, http.StatusBadRequest, CodeInvalidTransition, "guard condition failed", false},
		{"not found", fmt.Errorf("request req-1: %w", entity.ErrNotFound), http.StatusNotFound, CodeNotFound, "request req-1: not found", false},
		{"conflict", entity.ErrConflict, http.StatusConflict, CodeConflict, "version conflict", false},
		{"forbidden", entity.ErrForbidden, http.StatusForbidden, CodeForbidden, "forbidden", false},
		{"infrastructure", errors.New("disk I/O error at /var/lib/docflow.db"), http.StatusInternalServerError, CodeInternal, internalErrorMessage, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.requests.getFunc = func(ctx context.Context, id string) (*entity.Request, error) {
				return nil, tt.err
			}

			w := env.do(http.MethodGet, "/api/v1/requests/req-1", nil, "")

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decode(t, w)
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantCode, body.Error)
			assert.Equal(t, tt.wantMessage, body.Message)
			assert.Equal(t, tt.wantLogged, env.logger.errorCount() > 0)
		})
	}
}

func TestMutatingRoutesRequireUser(t *testing.T) {
	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/requests"},
		{http.MethodPut, "/api/v1/requests/req-1"},
		{http.MethodDelete, "/api/v1/requests/req-1"},
		{http.MethodPost, "/api/v1/requests/req-1/transitions"},
		{http.MethodPost, "/api/v1/requests/req-1/comments"},
		{http.MethodPost, "/api/v1/requests/req-1/attachments"},
		{http.MethodPost, "/api/v1/notifications"},
		{http.MethodPut, "/api/v1/notifications/n-1/read"},
		{http.MethodPut, "/api/v1/notifications/user/bob/read-all"},
		{http.MethodPost, "/api/v1/notifications/user/bob/archive"},
		{http.MethodDelete, "/api/v1/notifications/n-1"},
		{http.MethodDelete, "/api/v1/notifications/user/bob"},
	}

	env := newTestEnv(t)
	for _, r := range routes {
		t.Run(r.method+" "+r.path, func(t *testing.T) {
			w := env.do(r.method, r.path, map[string]string{}, "")
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, CodeUnauthorized, decode(t, w).Error)
		})
	}
}

func TestCreateRequest(t *testing.T) {
	t.Run("fills submitter from identity", func(t *testing.T) {
		env := newTestEnv(t)
		var got service.CreateRequestInput
		env.requests.createFunc = func(ctx context.Context, in service.CreateRequestInput) (*entity.Request, error) {
			got = in
			req := sampleRequest(entity.StatusPending, 1)
			req.SubmittedBy = in.SubmittedBy
			return req, nil
		}

		w := env.do(http.MethodPost, "/api/v1/requests", map[string]interface{}{
			"formId":   "leave",
			"formData": map[string]interface{}{"days": 3},
		}, "alice")

		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "alice", got.SubmittedBy)
		assert.Equal(t, "Alice", got.SubmitterName)
		assert.Equal(t, "alice@example.com", got.SubmitterEmail)
		assert.Equal(t, "finance", got.Department)
		assert.Equal(t, float64(3), got.FormData["days"])

		body := decode(t, w)
		assert.True(t, body.Success)
		var req entity.Request
		require.NoError(t, json.Unmarshal(body.Data, &req))
		assert.Equal(t, "req-1", req.ID)
		assert.Equal(t, "alice", req.SubmittedBy)
	})

	t.Run("explicit submitter wins", func(t *testing.T) {
		env := newTestEnv(t)
		var got service.CreateRequestInput
		env.requests.createFunc = func(ctx context.Context, in service.CreateRequestInput) (*entity.Request, error) {
			got = in
			return sampleRequest(entity.StatusPending, 1), nil
		}

		w := env.do(http.MethodPost, "/api/v1/requests", map[string]interface{}{
			"formId":      "leave",
			"formData":    map[string]interface{}{},
			"submittedBy": "bob",
		}, "alice")

		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "bob", got.SubmittedBy)
	})

	t.Run("malformed body", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(http.MethodPost, "/api/v1/requests", "{not json", "alice")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, CodeValidation, decode(t, w).Error)
	})
}

func TestListRequests(t *testing.T) {
	t.Run("parses filters and paginates", func(t *testing.T) {
		env := newTestEnv(t)
		var gotFilter port.RequestFilter
		var gotSort port.RequestSort
		var gotPage port.Page
		env.requests.listFunc = func(ctx context.Context, filter port.RequestFilter, sort port.RequestSort, page port.Page) (*service.RequestList, error) {
			gotFilter, gotSort, gotPage = filter, sort, page
			return &service.RequestList{
				Items: []*entity.Request{sampleRequest(entity.StatusPending, 1)},
				Total: 45,
				Page:  page,
			}, nil
		}

		w := env.do(http.MethodGet,
			"/api/v1/requests?status=pending&formId=leave&search=trip&priority=high&sort=priority&order=asc&page=2&limit=20&createdFrom=2026-01-01&createdTo=2026-01-31",
			nil, "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "pending", gotFilter.Status)
		assert.Equal(t, "leave", gotFilter.FormID)
		assert.Equal(t, "trip", gotFilter.Search)
		assert.Equal(t, "high", gotFilter.Priority)
		require.NotNil(t, gotFilter.CreatedFrom)
		require.NotNil(t, gotFilter.CreatedTo)
		assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), *gotFilter.CreatedFrom)
		assert.Equal(t, time.Date(2026, 1, 31, 23, 59, 59, 999999999, time.UTC), *gotFilter.CreatedTo)
		assert.Equal(t, port.RequestSort{Field: port.SortByPriority, Asc: true}, gotSort)
		assert.Equal(t, port.Page{Page: 2, Limit: 20}, gotPage)

		body := decode(t, w)
		assert.True(t, body.Success)
		assert.Equal(t, 45, body.Total)
		assert.Equal(t, 2, body.Page)
		assert.Equal(t, 3, body.Pages)
		assert.Equal(t, 20, body.Limit)
		assert.Nil(t, body.Unread)
	})

	t.Run("defaults", func(t *testing.T) {
		env := newTestEnv(t)
		var gotSort port.RequestSort
		var gotPage port.Page
		env.requests.listFunc = func(ctx context.Context, filter port.RequestFilter, sort port.RequestSort, page port.Page) (*service.RequestList, error) {
			gotSort, gotPage = sort, page
			return &service.RequestList{Items: []*entity.Request{}, Page: page}, nil
		}

		w := env.do(http.MethodGet, "/api/v1/requests", nil, "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, port.RequestSort{Field: port.SortByCreatedAt}, gotSort)
		assert.Equal(t, port.Page{Page: 1, Limit: port.DefaultPageLimit}, gotPage)
		body := decode(t, w)
		assert.Equal(t, 0, body.Total)
		assert.Equal(t, 0, body.Pages)
		assert.JSONEq(t, `[]`, string(body.Data))
	})

	bad := []struct {
		name  string
		query string
	}{
		{"order", "order=sideways"},
		{"page", "page=0"},
		{"limit", "limit=abc"},
		{"createdFrom", "createdFrom=yesterday"},
	}
	for _, tt := range bad {
		t.Run("invalid "+tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.do(http.MethodGet, "/api/v1/requests?"+tt.query, nil, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, CodeValidation, decode(t, w).Error)
		})
	}
}

func TestListUserRequests(t *testing.T) {
	env := newTestEnv(t)
	var gotUser string
	env.requests.listByUserFunc = func(ctx context.Context, userID string, page port.Page) (*service.RequestList, error) {
		gotUser = userID
		return &service.RequestList{Items: []*entity.Request{}, Total: 5, Page: page}, nil
	}

	w := env.do(http.MethodGet, "/api/v1/requests/user/bob?limit=2", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bob", gotUser)
	body := decode(t, w)
	assert.Equal(t, 5, body.Total)
	assert.Equal(t, 3, body.Pages)
	assert.Equal(t, 2, body.Limit)
}

func TestUpdateRequest(t *testing.T) {
	high := entity.PriorityHigh

	tests := []struct {
		name       string
		body       interface{}
		reviseErr  error
		wantStatus int
		wantCode   string
		wantRevise bool
		wantRev    service.Revision
	}{
		{
			name:       "patch only",
			body:       map[string]interface{}{"priority": high, "version": 3},
			wantStatus: http.StatusOK,
			wantRevise: true,
			wantRev:    service.Revision{Patch: service.RequestPatch{Priority: &high}, Version: 3},
		},
		{
			name:       "status only",
			body:       map[string]interface{}{"status": entity.StatusApproved, "comment": "ok", "version": 3},
			wantStatus: http.StatusOK,
			wantRevise: true,
			wantRev:    service.Revision{Status: entity.StatusApproved, Comment: "ok", Version: 3},
		},
		{
			name:       "patch and status travel together",
			body:       map[string]interface{}{"priority": high, "status": " approved ", "version": 3},
			wantStatus: http.StatusOK,
			wantRevise: true,
			wantRev: service.Revision{
				Patch:   service.RequestPatch{Priority: &high},
				Status:  entity.StatusApproved,
				Version: 3,
			},
		},
		{
			name:       "empty body",
			body:       map[string]interface{}{},
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeValidation,
		},
		{
			name:       "unreachable status",
			body:       map[string]interface{}{"priority": high, "status": entity.StatusCompleted},
			reviseErr:  domainwf.ErrInvalidTransition,
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidTransition,
			wantRevise: true,
		},
		{
			name:       "stale version",
			body:       map[string]interface{}{"priority": high, "version": 2},
			reviseErr:  entity.ErrConflict,
			wantStatus: http.StatusConflict,
			wantCode:   CodeConflict,
			wantRevise: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			var revised bool
			var rev service.Revision

			env.requests.reviseFunc = func(ctx context.Context, id string, r service.Revision, actor entity.Actor) (*entity.Request, error) {
				revised = true
				rev = r
				assert.Equal(t, "req-1", id)
				assert.Equal(t, "alice", actor.ID)
				assert.Equal(t, "approver", actor.Role)
				if tt.reviseErr != nil {
					return nil, tt.reviseErr
				}
				next := sampleRequest(entity.StatusPending, r.Version+1)
				if r.Status != "" {
					next.Status = r.Status
				}
				return next, nil
			}

			w := env.do(http.MethodPut, "/api/v1/requests/req-1", tt.body, "alice")

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.wantRevise, revised)
			body := decode(t, w)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body.Error)
				return
			}
			assert.Equal(t, tt.wantRev, rev)

			var req entity.Request
			require.NoError(t, json.Unmarshal(body.Data, &req))
			if tt.wantRev.Status != "" {
				assert.Equal(t, tt.wantRev.Status, req.Status)
			}
		})
	}
}

func TestTransitionRequest(t *testing.T) {
	t.Run("applies transition", func(t *testing.T) {
		env := newTestEnv(t)
		var cmd workflow.TransitionCommand
		env.engine.transitionFunc = func(ctx context.Context, c workflow.TransitionCommand) (*entity.Request, error) {
			cmd = c
			req := sampleRequest(entity.StatusRejected, 2)
			req.AppendStep(entity.ApprovalStep{ApproverID: "alice", Status: entity.StepStatusRejected, ToStatus: entity.StatusRejected})
			return req, nil
		}

		w := env.do(http.MethodPost, "/api/v1/requests/req-1/transitions",
			map[string]interface{}{"status": " rejected ", "comment": "missing receipt"}, "alice")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, entity.StatusRejected, cmd.TargetStatus)
		assert.Equal(t, "missing receipt", cmd.Comment)
		assert.Equal(t, 0, cmd.ExpectedVersion)
	})

	t.Run("status required", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(http.MethodPost, "/api/v1/requests/req-1/transitions", map[string]interface{}{}, "alice")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("forbidden", func(t *testing.T) {
		env := newTestEnv(t)
		env.engine.transitionFunc = func(ctx context.Context, c workflow.TransitionCommand) (*entity.Request, error) {
			return nil, fmt.Errorf("%w: alice is not the current approver", entity.ErrForbidden)
		}
		w := env.do(http.MethodPost, "/api/v1/requests/req-1/transitions", map[string]interface{}{"status": "approved"}, "alice")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, CodeForbidden, decode(t, w).Error)
	})
}

func TestHistoryAndPermittedTargets(t *testing.T) {
	env := newTestEnv(t)
	env.engine.historyFunc = func(ctx context.Context, id string) ([]entity.ApprovalStep, error) {
		return nil, nil
	}
	env.engine.permittedFunc = func(ctx context.Context, id string) ([]string, error) {
		return nil, nil
	}

	w := env.do(http.MethodGet, "/api/v1/requests/req-1/history", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(decode(t, w).Data))

	w = env.do(http.MethodGet, "/api/v1/requests/req-1/transitions", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(decode(t, w).Data))

	env.engine.permittedFunc = func(ctx context.Context, id string) ([]string, error) {
		return []string{entity.StatusApproved, entity.StatusRejected}, nil
	}
	w = env.do(http.MethodGet, "/api/v1/requests/req-1/transitions", nil, "")
	assert.JSONEq(t, `["approved","rejected"]`, string(decode(t, w).Data))
}

func TestCommentsAndAttachments(t *testing.T) {
	env := newTestEnv(t)
	var gotText string
	var gotAttachment service.AttachmentInput
	env.requests.addCommentFunc = func(ctx context.Context, id string, actor entity.Actor, text string) (*entity.Request, error) {
		gotText = text
		return sampleRequest(entity.StatusPending, 2), nil
	}
	env.requests.addAttachmentFunc = func(ctx context.Context, id string, actor entity.Actor, in service.AttachmentInput) (*entity.Request, error) {
		gotAttachment = in
		return sampleRequest(entity.StatusPending, 3), nil
	}

	w := env.do(http.MethodPost, "/api/v1/requests/req-1/comments", map[string]string{"text": "see attached"}, "alice")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "see attached", gotText)

	w = env.do(http.MethodPost, "/api/v1/requests/req-1/comments", map[string]string{}, "alice")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/v1/requests/req-1/attachments",
		map[string]interface{}{"name": "receipt.pdf", "url": "https://files.example.com/r.pdf", "size": 1024}, "alice")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "receipt.pdf", gotAttachment.Name)
	assert.Equal(t, int64(1024), gotAttachment.Size)
}

func TestDeleteRequest(t *testing.T) {
	env := newTestEnv(t)
	env.requests.deleteFunc = func(ctx context.Context, id string, actor entity.Actor) error {
		if id == "missing" {
			return entity.ErrNotFound
		}
		return nil
	}

	w := env.do(http.MethodDelete, "/api/v1/requests/req-1", nil, "alice")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "request deleted", decode(t, w).Message)

	w = env.do(http.MethodDelete, "/api/v1/requests/missing", nil, "alice")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequestStats(t *testing.T) {
	env := newTestEnv(t)
	var gotFilter port.RequestFilter
	env.requests.statsFunc = func(ctx context.Context, filter port.RequestFilter) (*service.RequestStats, error) {
		gotFilter = filter
		return &service.RequestStats{Total: 3, ByStatus: map[string]int{"pending": 2, "approved": 1}}, nil
	}

	w := env.do(http.MethodGet, "/api/v1/requests/stats?department=finance", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "finance", gotFilter.Department)
	assert.JSONEq(t, `{"total":3,"byStatus":{"pending":2,"approved":1}}`, string(decode(t, w).Data))
}

func TestExportRequests(t *testing.T) {
	env := newTestEnv(t)
	env.server.handlers.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }
	env.requests.exportFunc = func(ctx context.Context, filter port.RequestFilter, w io.Writer) (int, error) {
		_, err := io.WriteString(w, "id,status\nreq-1,pending\n")
		return 1, err
	}

	w := env.do(http.MethodGet, "/api/v1/requests/export?status=pending", nil, "alice")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="requests-20260304-050607.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "id,status\nreq-1,pending\n", w.Body.String())

	env.requests.exportFunc = func(ctx context.Context, filter port.RequestFilter, w io.Writer) (int, error) {
		return 0, errors.New("export is not configured")
	}
	w = env.do(http.MethodGet, "/api/v1/requests/export", nil, "alice")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, internalErrorMessage, decode(t, w).Message)
}

func TestNotificationRoutes(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		env := newTestEnv(t)
		var got service.NotifyInput
		env.notifications.notifyFunc = func(ctx context.Context, in service.NotifyInput) (*entity.Notification, error) {
			got = in
			return &entity.Notification{ID: "n-1", UserID: in.UserID, Type: in.Type, Title: in.Title}, nil
		}

		w := env.do(http.MethodPost, "/api/v1/notifications", map[string]string{
			"userId": "bob", "type": "info", "title": "Hello", "message": "World",
		}, "alice")

		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, entity.NotificationInfo, got.Type)
		assert.Equal(t, "bob", got.UserID)
	})

	t.Run("list carries unread count", func(t *testing.T) {
		env := newTestEnv(t)
		var gotUnreadOnly bool
		env.notifications.listFunc = func(ctx context.Context, userID string, unreadOnly bool, page port.Page) (*service.NotificationList, error) {
			gotUnreadOnly = unreadOnly
			return &service.NotificationList{
				Items:  []*entity.Notification{{ID: "n-2"}, {ID: "n-1"}},
				Total:  2,
				Unread: 1,
				Page:   page,
			}, nil
		}

		w := env.do(http.MethodGet, "/api/v1/notifications/user/bob?unread=true", nil, "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, gotUnreadOnly)
		body := decode(t, w)
		assert.Equal(t, 2, body.Total)
		require.NotNil(t, body.Unread)
		assert.Equal(t, 1, *body.Unread)

		w = env.do(http.MethodGet, "/api/v1/notifications/user/bob?unread=maybe", nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unread count", func(t *testing.T) {
		env := newTestEnv(t)
		env.notifications.unreadFunc = func(ctx context.Context, userID string) (int, error) { return 7, nil }

		w := env.do(http.MethodGet, "/api/v1/notifications/user/bob/unread-count", nil, "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"count":7}`, string(decode(t, w).Data))
	})

	t.Run("mark read and read all", func(t *testing.T) {
		env := newTestEnv(t)
		env.notifications.markReadFunc = func(ctx context.Context, id string) (*entity.Notification, error) {
			if id == "missing" {
				return nil, entity.ErrNotFound
			}
			return &entity.Notification{ID: id, Read: true}, nil
		}
		env.notifications.markAllReadFunc = func(ctx context.Context, userID string) (int, error) { return 4, nil }

		w := env.do(http.MethodPut, "/api/v1/notifications/n-1/read", nil, "bob")
		assert.Equal(t, http.StatusOK, w.Code)

		w = env.do(http.MethodPut, "/api/v1/notifications/missing/read", nil, "bob")
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = env.do(http.MethodPut, "/api/v1/notifications/user/bob/read-all", nil, "bob")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"updated":4}`, string(decode(t, w).Data))
	})

	t.Run("delete and clear", func(t *testing.T) {
		env := newTestEnv(t)
		env.notifications.deleteFunc = func(ctx context.Context, id string) error { return nil }
		env.notifications.clearFunc = func(ctx context.Context, userID string) (int, error) { return 12, nil }

		w := env.do(http.MethodDelete, "/api/v1/notifications/n-1", nil, "bob")
		assert.Equal(t, http.StatusOK, w.Code)

		w = env.do(http.MethodDelete, "/api/v1/notifications/user/bob", nil, "bob")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"deleted":12}`, string(decode(t, w).Data))
	})
}

func TestArchiveNotifications(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		body       interface{}
		wantStatus int
		wantKeep   int
	}{
		{"default keep", "", nil, http.StatusOK, 100},
		{"query keep", "?keep=10", nil, http.StatusOK, 10},
		{"body keep", "", map[string]int{"keep": 25}, http.StatusOK, 25},
		{"query wins over body", "?keep=5", map[string]int{"keep": 25}, http.StatusOK, 5},
		{"invalid keep", "?keep=many", nil, http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			gotKeep := -1
			env.notifications.archiveFunc = func(ctx context.Context, userID string, keep int) (int, error) {
				gotKeep = keep
				return 50, nil
			}

			w := env.do(http.MethodPost, "/api/v1/notifications/user/bob/archive"+tt.query, tt.body, "bob")

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus != http.StatusOK {
				assert.Equal(t, -1, gotKeep)
				return
			}
			assert.Equal(t, tt.wantKeep, gotKeep)
			assert.JSONEq(t, fmt.Sprintf(`{"deleted":50,"keep":%d}`, tt.wantKeep), string(decode(t, w).Data))
		})
	}
}

func TestHealthCheck(t *testing.T) {
	t.Run("healthy without checker", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(http.MethodGet, "/health", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decode(t, w).Success)
	})

	t.Run("unhealthy component", func(t *testing.T) {
		env := newTestEnv(t, func(d *Dependencies) {
			d.Health = func(ctx context.Context) (bool, interface{}) {
				return false, map[string]string{"database": "ping failed"}
			}
		})
		w := env.do(http.MethodGet, "/health", nil, "")
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		body := decode(t, w)
		assert.False(t, body.Success)
		assert.Contains(t, string(body.Data), "ping failed")
	})
}

func TestLiveAndMetricsRoutes(t *testing.T) {
	t.Run("live channel keyed by header or query", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(http.MethodGet, "/ws", nil, "alice")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "alice", env.live.userID)

		w = env.do(http.MethodGet, "/ws?userId=bob", nil, "")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "bob", env.live.userID)

		w = env.do(http.MethodGet, "/ws", nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("metrics handler mounted when configured", func(t *testing.T) {
		env := newTestEnv(t, func(d *Dependencies) {
			d.Metrics = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, "docflow_transitions_total 0\n")
			})
		})
		w := env.do(http.MethodGet, "/metrics", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "docflow_transitions_total")
	})

	t.Run("optional routes absent", func(t *testing.T) {
		env := newTestEnv(t, func(d *Dependencies) { d.Live = nil })
		assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/ws", nil, "alice").Code)
		assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/metrics", nil, "").Code)
	})
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodOptions, "/api/v1/requests/req-1", nil, "")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), HeaderUserID)
}
