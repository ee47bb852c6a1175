package dispatch

import (
	"sync"
)

type MemoryMessageLog struct {
	lock sync.Mutex
	logs map[string][]string
}

func NewMemoryMessageLog() *MemoryMessageLog {
	return &MemoryMessageLog{
		logs: make(map[string][]string),
	}
}

func (m *MemoryMessageLog) Append(gameCode string, line string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	lines := append(m.logs[gameCode], line)
	if len(lines) > maxLogLines {
		lines = lines[len(lines)-maxLogLines:]
	}
	m.logs[gameCode] = lines
	return nil
}

// Load returns a copy of the log. An unknown game has an empty log.
func (m *MemoryMessageLog) Load(gameCode string) ([]string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	lines := make([]string, len(m.logs[gameCode]))
	copy(lines, m.logs[gameCode])
	return lines, nil
}

func (m *MemoryMessageLog) Remove(gameCode string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.logs, gameCode)
	return nil
}
