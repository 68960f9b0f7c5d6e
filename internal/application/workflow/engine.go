package workflow

import (
	"context"

	"github.com/garyjia/docflow/internal/domain/entity"
)

// TransitionCommand asks the engine to move a request to TargetStatus
type TransitionCommand struct {
	RequestID    string
	TargetStatus string
	Actor        entity.Actor
	Comment      string

	// ExpectedVersion is the version the caller last read. Zero means the
	// engine guards the write with the version it reads itself.
	ExpectedVersion int

	// Edit, when set, changes a copy of the stored request inside the
	// transition's transaction, after the transition has been checked. The
	// edit and the status change land in one write; an Edit error stores nothing.
	Edit func(ctx context.Context, req *entity.Request) error
}

// WorkflowEngine applies guarded status transitions to requests
type WorkflowEngine interface {
	// Transition validates and applies cmd atomically and returns the updated request
	Transition(ctx context.Context, cmd TransitionCommand) (*entity.Request, error)

	// History returns the approval chain of a request, oldest first
	History(ctx context.Context, requestID string) ([]entity.ApprovalStep, error)

	// PermittedTargets returns the statuses the request may move to next
	PermittedTargets(ctx context.Context, requestID string) ([]string, error)
}
