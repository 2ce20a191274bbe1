package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirenwatch/siren-backend/internal/sirens"
)

var (
	// ErrTransport marks an inbound event that could not be decoded. The event
	// is dropped and the connection stays open.
	ErrTransport = errors.New("malformed event payload")

	// ErrPersistence wraps registry failures. The relay logs them and still
	// emits the in-memory event.
	ErrPersistence = errors.New("registry write failed")

	// ErrPersistenceTimeout is returned when RELAY_PERSIST_TIMEOUT elapses.
	ErrPersistenceTimeout = errors.New("registry write timed out")

	ErrInvalidCommand = errors.New("command has no target siren")
)

// Registry is the persisted side of the device registry. sirens.Store is the
// production implementation.
type Registry interface {
	UpdateState(ctx context.Context, id string, patch sirens.StatePatch) error
	Find(ctx context.Context, id string) (*sirens.Siren, error)
	List(ctx context.Context) ([]sirens.Siren, error)
}

// classify maps a registry error onto the relay's error kinds. Not-found and
// stale errors pass through unchanged.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sirens.ErrNotFound), errors.Is(err, sirens.ErrStale):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrPersistenceTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
}
