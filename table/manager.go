package table

import (
	"sort"

	cmap "github.com/orcaman/concurrent-map"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"voyager.com/comm/dispatch"
	"voyager.com/comm/logging"
	"voyager.com/comm/util"
)

var managerLogger = log.With().Str("logger_name", "table::manager").Logger()

// TransportFactory creates the transport a new table sends through. It must not
// publish the transport anywhere; OnTableCreated sees the transports that are used.
type TransportFactory func(gameCode string) (dispatch.Transport, error)

// closer is implemented by transports holding resources, such as *session.Hub.
type closer interface {
	Close()
}

// Manager keeps the active tables by game code.
type Manager struct {
	tables         cmap.ConcurrentMap
	newTransport   TransportFactory
	cfg            Config
	onTableCreated func(t *Table, transport dispatch.Transport)
	onTableEnded   func(gameCode string)
}

func NewManager(newTransport TransportFactory, cfg Config) *Manager {
	return &Manager{
		tables:       cmap.New(),
		newTransport: newTransport,
		cfg:          cfg,
	}
}

// OnTableCreated is called for every new table with the transport it uses, e.g. to
// start a listener for it.
func (m *Manager) OnTableCreated(fn func(t *Table, transport dispatch.Transport)) {
	m.onTableCreated = fn
}

func (m *Manager) OnTableEnded(fn func(gameCode string)) {
	m.onTableEnded = fn
}

// CreateTable returns the existing table for gameCode or creates it.
func (m *Manager) CreateTable(gameCode string) (*Table, error) {
	if t, ok := m.tables.Get(gameCode); ok {
		return t.(*Table), nil
	}
	transport, err := m.newTransport(gameCode)
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to create transport for game %s", gameCode)
	}
	t, err := New(gameCode, transport, m.cfg)
	if err != nil {
		return nil, err
	}
	if !m.tables.SetIfAbsent(gameCode, t) {
		// lost a race with another creator
		t.discard()
		if c, ok := transport.(closer); ok {
			c.Close()
		}
		managerLogger.Debug().Str(logging.GameCodeKey, gameCode).Msg("Discarded duplicate table")
		existing, ok := m.tables.Get(gameCode)
		if !ok {
			return nil, errors.Wrapf(ErrTableNotFound, "game %s ended while being created", gameCode)
		}
		return existing.(*Table), nil
	}
	if m.onTableCreated != nil {
		m.onTableCreated(t, transport)
	}
	util.Metrics.SetActiveTablesCount(m.tables.Count())
	managerLogger.Info().Str(logging.GameCodeKey, gameCode).Msg("Table created")
	return t, nil
}

func (m *Manager) GetTable(gameCode string) (*Table, error) {
	t, ok := m.tables.Get(gameCode)
	if !ok {
		return nil, errors.Wrapf(ErrTableNotFound, "game %s", gameCode)
	}
	return t.(*Table), nil
}

func (m *Manager) EndTable(gameCode string) error {
	t, ok := m.tables.Pop(gameCode)
	if !ok {
		return errors.Wrapf(ErrTableNotFound, "game %s", gameCode)
	}
	t.(*Table).Close()
	if m.onTableEnded != nil {
		m.onTableEnded(gameCode)
	}
	util.Metrics.SetActiveTablesCount(m.tables.Count())
	managerLogger.Info().Str(logging.GameCodeKey, gameCode).Msg("Table ended")
	return nil
}

// Tables returns the active game codes in sorted order.
func (m *Manager) Tables() []string {
	codes := m.tables.Keys()
	sort.Strings(codes)
	return codes
}

func (m *Manager) CloseAll() {
	for _, gameCode := range m.Tables() {
		m.EndTable(gameCode)
	}
}
