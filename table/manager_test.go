package table

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"voyager.com/comm/dispatch"
	"voyager.com/comm/poker"
)

func TestManager(t *testing.T) {
	created := 0
	m := NewManager(func(gameCode string) (dispatch.Transport, error) {
		created++
		return dispatch.NewInproc(4), nil
	}, Config{ActionTimeout: time.Second})
	var ended []string
	m.OnTableEnded(func(gameCode string) { ended = append(ended, gameCode) })

	t1, err := m.CreateTable("zzz")
	require.NoError(t, err)
	again, err := m.CreateTable("zzz")
	require.NoError(t, err)
	assert.Same(t, t1, again)
	_, err = m.CreateTable("aaa")
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.Equal(t, []string{"aaa", "zzz"}, m.Tables())

	got, err := m.GetTable("zzz")
	require.NoError(t, err)
	assert.Same(t, t1, got)

	require.NoError(t, m.EndTable("zzz"))
	_, err = m.GetTable("zzz")
	assert.True(t, errors.Is(err, ErrTableNotFound))
	assert.True(t, errors.Is(m.EndTable("zzz"), ErrTableNotFound))
	assert.Equal(t, []string{"zzz"}, ended)

	m.CloseAll()
	assert.Empty(t, m.Tables())
}

func TestManagerTransportError(t *testing.T) {
	m := NewManager(func(gameCode string) (dispatch.Transport, error) {
		return nil, errors.New("no broker")
	}, Config{ActionTimeout: time.Second})
	_, err := m.CreateTable("abc")
	assert.Error(t, err)
	assert.Empty(t, m.Tables())
}

type closableInproc struct {
	*dispatch.Inproc
	lock   sync.Mutex
	closed bool
}

func (c *closableInproc) Close() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.closed = true
}

func (c *closableInproc) isClosed() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.closed
}

func TestManagerCreateRace(t *testing.T) {
	msgLog := dispatch.NewMemoryMessageLog()
	entered := make(chan struct{})
	release := make(chan struct{})
	var lock sync.Mutex
	var transports []*closableInproc
	m := NewManager(func(gameCode string) (dispatch.Transport, error) {
		tr := &closableInproc{Inproc: dispatch.NewInproc(4)}
		lock.Lock()
		transports = append(transports, tr)
		first := len(transports) == 1
		lock.Unlock()
		if first {
			close(entered)
			<-release
		}
		return tr, nil
	}, Config{ActionTimeout: time.Second, MessageLog: msgLog})
	defer m.CloseAll()
	var created []dispatch.Transport
	m.OnTableCreated(func(_ *Table, transport dispatch.Transport) {
		created = append(created, transport)
	})

	lateResult := make(chan *Table)
	go func() {
		late, err := m.CreateTable("abc")
		assert.NoError(t, err)
		lateResult <- late
	}()
	<-entered

	winner, err := m.CreateTable("abc")
	require.NoError(t, err)
	require.NoError(t, winner.BroadcastState(poker.GameState_FLOP))
	lines, err := winner.MessageLog()
	require.NoError(t, err)
	require.Len(t, lines, 1)

	close(release)
	var late *Table
	select {
	case late = <-lateResult:
	case <-time.After(2 * time.Second):
		t.Fatal("second creator did not return")
	}
	assert.Same(t, winner, late)

	lines, err = winner.MessageLog()
	require.NoError(t, err)
	assert.Len(t, lines, 1)

	lock.Lock()
	defer lock.Unlock()
	require.Len(t, transports, 2)
	assert.True(t, transports[0].isClosed())
	assert.False(t, transports[1].isClosed())
	require.Len(t, created, 1)
	assert.Same(t, transports[1], created[0])
}
