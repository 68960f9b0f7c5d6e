package push

import (
	"context"
	"errors"

	"github.com/garyjia/docflow/internal/application/port"
)

// Multi pushes to every channel and succeeds when at least one delivers
type Multi []port.Pusher

func (m Multi) Push(ctx context.Context, userID string, payload interface{}) error {
	if len(m) == 0 {
		return ErrNotConnected
	}

	var errs []error
	delivered := false
	for _, p := range m {
		if err := p.Push(ctx, userID, payload); err != nil {
			errs = append(errs, err)
			continue
		}
		delivered = true
	}
	if delivered {
		return nil
	}
	return errors.Join(errs...)
}
