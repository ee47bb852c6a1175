package future

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrCorrelatorClosed = errors.New("correlator is closed")

// UnknownFutureError is reported for a reply whose id has no pending entry:
// already resolved, cancelled, timed out or never issued. It is not fatal.
type UnknownFutureError struct {
	ID uuid.UUID
}

func (e UnknownFutureError) Error() string {
	return fmt.Sprintf("no pending future with id %s", e.ID)
}

type TimeoutError struct {
	ID    uuid.UUID
	After time.Duration
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("future %s was not resolved within %s", e.ID, e.After)
}

// CorrelatorExhaustedError means no unused id could be generated. The correlator
// does not register anything after this.
type CorrelatorExhaustedError struct {
	Attempts int
}

func (e CorrelatorExhaustedError) Error() string {
	return fmt.Sprintf("could not allocate an unused future id after %d attempts", e.Attempts)
}

type ClientDisconnectedError struct {
	ID       uuid.UUID
	PlayerID uint64
}

func (e ClientDisconnectedError) Error() string {
	return fmt.Sprintf("player %d disconnected before resolving future %s", e.PlayerID, e.ID)
}

type CancelledError struct {
	ID     uuid.UUID
	Reason string
}

func (e CancelledError) Error() string {
	return fmt.Sprintf("future %s cancelled: %s", e.ID, e.Reason)
}

// WrongPlayerError is reported when a player replies to a future issued to someone else.
type WrongPlayerError struct {
	ID       uuid.UUID
	PlayerID uint64
}

func (e WrongPlayerError) Error() string {
	return fmt.Sprintf("player %d cannot resolve future %s", e.PlayerID, e.ID)
}
