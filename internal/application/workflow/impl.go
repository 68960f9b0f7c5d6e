package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/docflow/internal/application/dispatcher"
	"github.com/garyjia/docflow/internal/application/port"
	"github.com/garyjia/docflow/internal/domain/entity"
	"github.com/garyjia/docflow/internal/domain/event"
	domainwf "github.com/garyjia/docflow/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Transition outcome labels reported to metrics
const (
	resultOK        = "ok"
	resultInvalid   = "invalid"
	resultConflict  = "conflict"
	resultForbidden = "forbidden"
	resultNotFound  = "not_found"
	resultError     = "error"
)

type engineImpl struct {
	requestRepo     port.RequestRepository
	txManager       port.TransactionManager
	dispatcher      dispatcher.Dispatcher
	metrics         port.Metrics
	logger          Logger
	allowCorrection bool
	now             func() time.Time
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m port.Metrics) EngineOption {
	return func(e *engineImpl) {
		e.metrics = m
	}
}

// WithLogger sets the engine logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithCorrectionLoop enables the needs-correction state
func WithCorrectionLoop(enabled bool) EngineOption {
	return func(e *engineImpl) {
		e.allowCorrection = enabled
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	requestRepo port.RequestRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) WorkflowEngine {
	e := &engineImpl{
		requestRepo: requestRepo,
		txManager:   txManager,
		metrics:     port.NoopMetrics{},
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *engineImpl) Transition(ctx context.Context, cmd TransitionCommand) (*entity.Request, error) {
	target := domainwf.State(cmd.TargetStatus)
	if !target.IsValid() {
		e.metrics.TransitionRecorded("", cmd.TargetStatus, resultInvalid)
		return nil, fmt.Errorf("%w: %w: unknown status %q", entity.ErrValidation, domainwf.ErrInvalidTransition, cmd.TargetStatus)
	}
	if cmd.Actor.ID == "" {
		e.metrics.TransitionRecorded("", cmd.TargetStatus, resultForbidden)
		return nil, fmt.Errorf("%w: acting user is required", entity.ErrForbidden)
	}

	trigger, err := domainwf.TriggerFor(target)
	if err != nil {
		return nil, err
	}

	var (
		updated *entity.Request
		from    string
	)

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := e.requestRepo.GetByID(txCtx, cmd.RequestID)
		if err != nil {
			return err
		}
		from = current.Status

		if cmd.ExpectedVersion > 0 && cmd.ExpectedVersion != current.Version {
			return fmt.Errorf("%w: request %s is at version %d, caller has %d",
				entity.ErrConflict, current.ID, current.Version, cmd.ExpectedVersion)
		}

		if err := authorize(current, cmd.Actor, trigger); err != nil {
			return err
		}

		state := domainwf.State(current.Status)
		if !state.IsValid() {
			return fmt.Errorf("request %s has corrupt status %q", current.ID, current.Status)
		}

		machine := BuildRequestStateMachine(state, e.allowCorrection)
		if err := machine.Fire(txCtx, trigger); err != nil {
			return fmt.Errorf("cannot move request from %s to %s: %w", current.Status, target, err)
		}
		if machine.State() != target {
			return fmt.Errorf("%w: %s from %s landed in %s", domainwf.ErrInvalidTransition, trigger, current.Status, machine.State())
		}

		base := current
		if cmd.Edit != nil {
			base = current.Clone()
			if err := cmd.Edit(txCtx, base); err != nil {
				return err
			}
			// status, version and chain stay engine-owned
			base.Status = current.Status
			base.Version = current.Version
			base.ApprovalChain = current.ApprovalChain
		}

		next := applyTransition(base, target, cmd, e.now().UTC())
		if err := e.requestRepo.Update(txCtx, next, current.Version); err != nil {
			return err
		}

		updated = next
		return nil
	})

	if err != nil {
		e.metrics.TransitionRecorded(from, cmd.TargetStatus, classify(err))
		return nil, err
	}

	e.metrics.TransitionRecorded(from, updated.Status, resultOK)

	if e.logger != nil {
		e.logger.Info("Request transitioned",
			"request_id", updated.ID,
			"from", from,
			"to", updated.Status,
			"actor_id", cmd.Actor.ID,
			"version", updated.Version,
		)
	}

	if e.dispatcher != nil {
		evt := event.NewEvent(event.TypeRequestTransitioned, updated, cmd.Actor.ID, map[string]interface{}{
			event.KeyFromStatus: from,
			event.KeyToStatus:   updated.Status,
			event.KeyComment:    cmd.Comment,
		})
		e.dispatcher.DispatchAsync(ctx, evt)
	}

	return updated, nil
}

func (e *engineImpl) History(ctx context.Context, requestID string) ([]entity.ApprovalStep, error) {
	req, err := e.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return append([]entity.ApprovalStep{}, req.ApprovalChain...), nil
}

func (e *engineImpl) PermittedTargets(ctx context.Context, requestID string) ([]string, error) {
	req, err := e.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	state := domainwf.State(req.Status)
	if !state.IsValid() {
		return nil, fmt.Errorf("request %s has corrupt status %q", req.ID, req.Status)
	}

	reachable := BuildRequestStateMachine(state, e.allowCorrection).Reachable()
	targets := make([]string, len(reachable))
	for i, s := range reachable {
		targets[i] = s.String()
	}
	return targets, nil
}

// authorize checks that the actor may fire trigger on req
func authorize(req *entity.Request, actor entity.Actor, trigger domainwf.Trigger) error {
	if req.IsCurrentApprover(actor.ID) || actor.IsPrivileged() {
		return nil
	}
	if trigger == domainwf.TriggerResubmit && actor.ID == req.SubmittedBy {
		return nil
	}
	return fmt.Errorf("%w: user %s may not act on request %s", entity.ErrForbidden, actor.ID, req.ID)
}

// applyTransition returns a copy of req moved to target with a new approval step appended
func applyTransition(req *entity.Request, target domainwf.State, cmd TransitionCommand, now time.Time) *entity.Request {
	next := req.Clone()
	next.Status = target.String()
	next.AppendStep(entity.ApprovalStep{
		ApproverID:    cmd.Actor.ID,
		ApproverName:  cmd.Actor.Name,
		ApproverEmail: cmd.Actor.Email,
		Status:        entity.StepStatusFor(target.String()),
		FromStatus:    req.Status,
		ToStatus:      target.String(),
		Comment:       cmd.Comment,
		DecidedAt:     now,
	})
	next.Version = req.Version + 1
	next.UpdatedAt = now
	if target == domainwf.StateCompleted {
		next.CompletedAt = &now
	}
	return next
}

func classify(err error) string {
	switch {
	case errors.Is(err, entity.ErrConflict):
		return resultConflict
	case errors.Is(err, entity.ErrForbidden):
		return resultForbidden
	case errors.Is(err, entity.ErrNotFound):
		return resultNotFound
	case errors.Is(err, domainwf.ErrInvalidTransition), errors.Is(err, domainwf.ErrGuardFailed), errors.Is(err, entity.ErrValidation):
		return resultInvalid
	default:
		return resultError
	}
}
