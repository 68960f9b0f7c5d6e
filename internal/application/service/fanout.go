package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/docflow/internal/application/dispatcher"
	"github.com/garyjia/docflow/internal/domain/entity"
	"github.com/garyjia/docflow/internal/domain/event"
)

// FanOut turns request events into user notifications
type FanOut struct {
	notifications NotificationService
	logger        Logger
}

// NewFanOut creates the notification fan-out handlers
func NewFanOut(notifications NotificationService, logger Logger) *FanOut {
	return &FanOut{notifications: notifications, logger: logger}
}

// Register subscribes the fan-out handlers on d
func (f *FanOut) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeRequestCreated, "fanout.new_request",
		"notify the current approver of a new submission", f.OnRequestCreated)
	d.SubscribeNamed(event.TypeRequestTransitioned, "fanout.status",
		"notify the submitter of a status change", f.OnRequestTransitioned)
	d.SubscribeNamed(event.TypeRequestCommented, "fanout.comment",
		"notify the submitter of a comment by someone else", f.OnRequestCommented)
}

func (f *FanOut) OnRequestCreated(ctx context.Context, evt *event.Event) error {
	req := evt.Request
	if req == nil || req.CurrentApprover == nil || req.CurrentApprover.ID == "" {
		return nil
	}

	_, err := f.notifications.Notify(ctx, NotifyInput{
		UserID:    req.CurrentApprover.ID,
		Type:      entity.NotificationNewRequest,
		Title:     "New request awaiting review",
		Message:   fmt.Sprintf("%s submitted %s", req.SubmitterName, formLabel(req)),
		RequestID: req.ID,
		Priority:  req.Priority,
	})
	return err
}

func (f *FanOut) OnRequestTransitioned(ctx context.Context, evt *event.Event) error {
	req := evt.Request
	if req == nil {
		return nil
	}
	to := evt.GetPayloadString(event.KeyToStatus)
	from := evt.GetPayloadString(event.KeyFromStatus)

	var errs []error

	// the submitter hears about every transition, their own included
	if req.SubmittedBy != "" {
		msg := fmt.Sprintf("Your request %s moved from %s to %s", formLabel(req), from, to)
		if c := evt.GetPayloadString(event.KeyComment); c != "" {
			msg += ": " + c
		}
		if _, err := f.notifications.Notify(ctx, NotifyInput{
			UserID:    req.SubmittedBy,
			Type:      entity.NotificationTypeForStatus(to),
			Title:     statusTitle(to),
			Message:   msg,
			RequestID: req.ID,
			Priority:  req.Priority,
		}); err != nil {
			errs = append(errs, err)
		}
	}

	// a resubmission goes back to the approver's queue
	if to == entity.StatusPending && req.CurrentApprover != nil &&
		req.CurrentApprover.ID != "" && req.CurrentApprover.ID != req.SubmittedBy {
		if _, err := f.notifications.Notify(ctx, NotifyInput{
			UserID:    req.CurrentApprover.ID,
			Type:      entity.NotificationNewRequest,
			Title:     "Request resubmitted",
			Message:   fmt.Sprintf("%s resubmitted %s", req.SubmitterName, formLabel(req)),
			RequestID: req.ID,
			Priority:  req.Priority,
		}); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (f *FanOut) OnRequestCommented(ctx context.Context, evt *event.Event) error {
	req := evt.Request
	author := evt.GetPayloadString(event.KeyAuthorID)
	if req == nil || req.SubmittedBy == "" || req.SubmittedBy == author {
		return nil
	}

	name := evt.GetPayloadString(event.KeyAuthorName)
	if name == "" {
		name = author
	}

	_, err := f.notifications.Notify(ctx, NotifyInput{
		UserID:    req.SubmittedBy,
		Type:      entity.NotificationInfo,
		Title:     "New comment on your request",
		Message:   fmt.Sprintf("%s commented on %s: %s", name, formLabel(req), evt.GetPayloadString(event.KeyComment)),
		RequestID: req.ID,
		Priority:  req.Priority,
	})
	return err
}

func statusTitle(status string) string {
	switch status {
	case entity.StatusApproved:
		return "Request approved"
	case entity.StatusRejected:
		return "Request rejected"
	case entity.StatusNeedsCorrection:
		return "Correction needed"
	case entity.StatusCompleted:
		return "Request completed"
	case entity.StatusInProgress:
		return "Request in progress"
	default:
		return "Request status updated"
	}
}

func formLabel(req *entity.Request) string {
	if req.FormTitle != "" {
		return req.FormTitle
	}
	return req.FormID
}
