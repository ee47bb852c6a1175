package dispatch

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var ErrInboxFull = errors.New("player inbox is full")

// Inproc is a Transport for players living in the same process, used by tests
// and local simulations. Each connected player has a buffered inbox.
type Inproc struct {
	lock    sync.RWMutex
	inboxes map[uint64]chan []byte
	size    int
}

func NewInproc(inboxSize int) *Inproc {
	if inboxSize <= 0 {
		inboxSize = 64
	}
	return &Inproc{
		inboxes: make(map[uint64]chan []byte),
		size:    inboxSize,
	}
}

// Connect returns the inbox of playerID. A player that reconnects gets a new inbox;
// the old one is closed.
func (t *Inproc) Connect(playerID uint64) <-chan []byte {
	t.lock.Lock()
	defer t.lock.Unlock()
	if old, ok := t.inboxes[playerID]; ok {
		close(old)
	}
	inbox := make(chan []byte, t.size)
	t.inboxes[playerID] = inbox
	return inbox
}

func (t *Inproc) Disconnect(playerID uint64) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if inbox, ok := t.inboxes[playerID]; ok {
		close(inbox)
		delete(t.inboxes, playerID)
	}
}

func (t *Inproc) Players() []uint64 {
	t.lock.RLock()
	defer t.lock.RUnlock()
	players := make([]uint64, 0, len(t.inboxes))
	for playerID := range t.inboxes {
		players = append(players, playerID)
	}
	sort.Slice(players, func(i, j int) bool { return players[i] < players[j] })
	return players
}

func (t *Inproc) SendToPlayer(playerID uint64, data []byte) error {
	t.lock.RLock()
	defer t.lock.RUnlock()
	inbox, ok := t.inboxes[playerID]
	if !ok {
		return errors.Wrapf(ErrPlayerNotConnected, "player %d", playerID)
	}
	return deliver(inbox, data, playerID)
}

func (t *Inproc) SendToAll(data []byte) error {
	t.lock.RLock()
	defer t.lock.RUnlock()
	var firstErr error
	for playerID, inbox := range t.inboxes {
		if err := deliver(inbox, data, playerID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func deliver(inbox chan []byte, data []byte, playerID uint64) error {
	copied := make([]byte, len(data))
	copy(copied, data)
	select {
	case inbox <- copied:
		return nil
	default:
		return errors.Wrapf(ErrInboxFull, "player %d", playerID)
	}
}
