package table

import (
	"sort"
)

// SetPlayers replaces the players seated at the table. The network check pings them.
func (t *Table) SetPlayers(playerIDs []uint64) {
	seated := make([]uint64, 0, len(playerIDs))
	seen := make(map[uint64]bool, len(playerIDs))
	for _, id := range playerIDs {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		seated = append(seated, id)
	}
	sort.Slice(seated, func(i, j int) bool { return seated[i] < seated[j] })

	t.lock.Lock()
	t.players = seated
	fn := t.onPlayersChanged
	t.lock.Unlock()

	t.logger.Info().Msgf("Seated players: %v", seated)
	if fn != nil {
		fn(append([]uint64(nil), seated...))
	}
}

func (t *Table) Players() []uint64 {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return append([]uint64(nil), t.players...)
}

func (t *Table) OnPlayersChanged(fn func(playerIDs []uint64)) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.onPlayersChanged = fn
}
