package dispatch

import (
	"github.com/pkg/errors"
)

var ErrPlayerNotConnected = errors.New("player is not connected")

// Transport moves encoded messages to the players of one table. Implementations
// must never deliver a SendToPlayer payload to anyone but playerID.
type Transport interface {
	SendToPlayer(playerID uint64, data []byte) error
	SendToAll(data []byte) error
}
