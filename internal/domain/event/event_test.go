package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/docflow/internal/domain/entity"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		eventType Type
		want      bool
	}{
		{TypeRequestCreated, true},
		{TypeRequestUpdated, true},
		{TypeRequestTransitioned, true},
		{TypeRequestCommented, true},
		{TypeRequestDeleted, true},
		{Type("request.archived"), false},
		{Type(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.eventType.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.eventType.IsValid())
		})
	}
}

func TestNewEvent_SnapshotsRequest(t *testing.T) {
	req := &entity.Request{
		ID:       "req-1",
		Status:   entity.StatusPending,
		FormData: entity.FormData{"amount": 10.0},
	}

	e := NewEvent(TypeRequestCreated, req, "user-1", nil)

	require.NotNil(t, e.Request)
	assert.NotEmpty(t, e.ID)
	assert.NotEmpty(t, e.CorrelationID)
	assert.Equal(t, "req-1", e.RequestID)
	assert.Equal(t, "user-1", e.ActorID)
	assert.NotNil(t, e.Payload)

	req.Status = entity.StatusApproved
	req.FormData["amount"] = 99.0
	assert.Equal(t, entity.StatusPending, e.Request.Status)
	assert.Equal(t, 10.0, e.Request.FormData["amount"])
}

func TestNewEvent_WithoutRequest(t *testing.T) {
	e := NewEvent(TypeRequestDeleted, nil, "", map[string]interface{}{KeyComment: "gone"})

	assert.Empty(t, e.RequestID)
	assert.Nil(t, e.Request)
	assert.Equal(t, "gone", e.GetPayloadString(KeyComment))
}

func TestEvent_WithPayload(t *testing.T) {
	original := NewEvent(TypeRequestTransitioned, &entity.Request{ID: "r"}, "a", map[string]interface{}{
		KeyFromStatus: entity.StatusPending,
	})

	updated := original.WithPayload(KeyToStatus, entity.StatusApproved)

	assert.Equal(t, entity.StatusApproved, updated.GetPayloadString(KeyToStatus))
	assert.Equal(t, entity.StatusPending, updated.GetPayloadString(KeyFromStatus))
	assert.Empty(t, original.GetPayloadString(KeyToStatus), "original payload must not change")
	assert.Equal(t, original.ID, updated.ID)
}

func TestEvent_WithCorrelation(t *testing.T) {
	original := NewEvent(TypeRequestCommented, &entity.Request{ID: "r"}, "a", nil)

	linked := original.WithCorrelation("chain-1")

	assert.Equal(t, "chain-1", linked.CorrelationID)
	assert.NotEqual(t, "chain-1", original.CorrelationID)
}

func TestEvent_GetPayloadString_NonString(t *testing.T) {
	e := NewEvent(TypeRequestUpdated, nil, "", map[string]interface{}{"n": 5})
	assert.Empty(t, e.GetPayloadString("n"))
	assert.Empty(t, e.GetPayloadString("missing"))
}
