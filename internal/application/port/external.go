package port

import (
	"context"
	"io"

	"github.com/garyjia/docflow/internal/domain/entity"
)

// Pusher delivers a payload to a user's live channel
type Pusher interface {
	Push(ctx context.Context, userID string, payload interface{}) error
}

// FormSchemaRegistry resolves the field requirements of a form template
type FormSchemaRegistry interface {
	// RequiredFields returns the required field names of formID and false when the form is unknown
	RequiredFields(formID string) ([]string, bool)
}

// RequestExporter renders a request listing into a document
type RequestExporter interface {
	Export(w io.Writer, requests []*entity.Request) error
	ContentType() string
	FileExtension() string
}

// Metrics records workflow outcomes
type Metrics interface {
	TransitionRecorded(from, to, result string)
	PushRecorded(result string)
	NotificationsSwept(count int)
}

// NoopMetrics discards all observations
type NoopMetrics struct{}

func (NoopMetrics) TransitionRecorded(from, to, result string) {}
func (NoopMetrics) PushRecorded(result string) {}
func (NoopMetrics) NotificationsSwept(count int) {}
