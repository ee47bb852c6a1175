package future

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"voyager.com/comm/logging"
	"voyager.com/comm/util"
)

var correlatorLogger = log.With().Str("logger_name", "future::correlator").Logger()

const (
	defaultSettledCacheSize = 1024
	maxIDAttempts           = 8
)

type outcome struct {
	value interface{}
	err   error
}

type entry struct {
	id        uuid.UUID
	playerID  uint64
	hasPlayer bool
	createdAt time.Time
	// Exactly one outcome is ever sent, always under the correlator lock.
	ch chan outcome
	// taken is set and consumed closed once a waiter has received the outcome.
	taken    bool
	consumed chan struct{}
}

// PendingInfo describes an outstanding request.
type PendingInfo struct {
	ID       uuid.UUID
	PlayerID uint64
	Age      time.Duration
}

// Correlator matches each reply to the request that asked for it.
//
// Every pending entry is settled exactly once: by Resolve, Cancel, CancelSession,
// an Await timeout or Close. Whatever comes second finds no pending entry and is a
// no-op. Settled entries are remembered in a bounded LRU so that a waiter arriving
// after the reply still gets it and a recently used id is never handed out again.
//
// One Correlator belongs to one table and is torn down with it.
type Correlator struct {
	lock      sync.Mutex
	pending   map[uuid.UUID]*entry
	settled   *lru.Cache
	newID     func() (uuid.UUID, error)
	now       func() time.Time
	logger    zerolog.Logger
	exhausted error
	closed    bool

	settledCacheSize int
}

type Option func(c *Correlator)

// WithIDGenerator replaces the random v4 generator.
func WithIDGenerator(gen func() (uuid.UUID, error)) Option {
	return func(c *Correlator) {
		c.newID = gen
	}
}

func WithSettledCacheSize(size int) Option {
	return func(c *Correlator) {
		c.settledCacheSize = size
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Correlator) {
		c.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Correlator) {
		c.now = now
	}
}

func NewCorrelator(opts ...Option) (*Correlator, error) {
	c := &Correlator{
		pending:          make(map[uuid.UUID]*entry),
		newID:            uuid.NewRandom,
		now:              time.Now,
		logger:           correlatorLogger,
		settledCacheSize: defaultSettledCacheSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	settled, err := lru.New(c.settledCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "Unable to initialize settled future cache")
	}
	c.settled = settled
	return c, nil
}

// Register allocates a fresh future id that is not tied to any player session.
func (c *Correlator) Register() (uuid.UUID, error) {
	return c.register(0, false)
}

// RegisterFor allocates a fresh future id owned by playerID. CancelSession(playerID)
// settles it with a ClientDisconnectedError.
func (c *Correlator) RegisterFor(playerID uint64) (uuid.UUID, error) {
	return c.register(playerID, true)
}

func (c *Correlator) register(playerID uint64, hasPlayer bool) (uuid.UUID, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed {
		return uuid.Nil, ErrCorrelatorClosed
	}
	if c.exhausted != nil {
		return uuid.Nil, c.exhausted
	}

	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		id, err := c.newID()
		if err != nil {
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("Future id generator failed")
			continue
		}
		if id == uuid.Nil || c.pending[id] != nil || c.settled.Contains(id) {
			c.logger.Warn().Str(logging.FutureIDKey, id.String()).Int("attempt", attempt).Msg("Future id collision")
			continue
		}
		c.pending[id] = &entry{
			id:        id,
			playerID:  playerID,
			hasPlayer: hasPlayer,
			createdAt: c.now(),
			ch:        make(chan outcome, 1),
			consumed:  make(chan struct{}),
		}
		util.Metrics.FutureRegistered()
		c.logger.Debug().Str(logging.FutureIDKey, id.String()).Uint64(logging.PlayerIDKey, playerID).Msg("Future registered")
		return id, nil
	}

	c.exhausted = CorrelatorExhaustedError{Attempts: maxIDAttempts}
	c.logger.Error().Err(c.exhausted).Msg("Correlator cannot allocate future ids")
	return uuid.Nil, c.exhausted
}

// settleLocked removes a pending entry and hands it its outcome.
// c.lock must be held.
func (c *Correlator) settleLocked(e *entry, o outcome) {
	delete(c.pending, e.id)
	c.settled.Add(e.id, e)
	e.ch <- o
}

// Resolve delivers value to the waiter of id. It returns UnknownFutureError if id is
// not pending; the caller should log it and move on.
func (c *Correlator) Resolve(id uuid.UUID, value interface{}) error {
	return c.resolve(id, value, 0, false)
}

// ResolveFor is Resolve for a reply that arrived from playerID. A future registered
// for a different player is left pending and WrongPlayerError returned.
func (c *Correlator) ResolveFor(playerID uint64, id uuid.UUID, value interface{}) error {
	return c.resolve(id, value, playerID, true)
}

func (c *Correlator) resolve(id uuid.UUID, value interface{}, playerID uint64, checkPlayer bool) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed {
		return ErrCorrelatorClosed
	}
	e := c.pending[id]
	if e == nil {
		util.Metrics.UnknownFutureReply()
		return UnknownFutureError{ID: id}
	}
	if checkPlayer && e.hasPlayer && e.playerID != playerID {
		return WrongPlayerError{ID: id, PlayerID: playerID}
	}
	c.settleLocked(e, outcome{value: value})
	util.Metrics.FutureResolved()
	c.logger.Debug().Str(logging.FutureIDKey, id.String()).Msg("Future resolved")
	return nil
}

// Cancel settles id without a value. Cancelling an id that is not pending does nothing.
func (c *Correlator) Cancel(id uuid.UUID) {
	c.cancel(id, CancelledError{ID: id, Reason: "cancelled"})
}

func (c *Correlator) cancel(id uuid.UUID, err error) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	e := c.pending[id]
	if e == nil {
		return false
	}
	c.settleLocked(e, outcome{err: err})
	util.Metrics.FutureCancelled()
	c.logger.Debug().Str(logging.FutureIDKey, id.String()).Err(err).Msg("Future cancelled")
	return true
}

// CancelSession settles every future owned by playerID with a ClientDisconnectedError
// and returns how many there were.
func (c *Correlator) CancelSession(playerID uint64) int {
	c.lock.Lock()
	defer c.lock.Unlock()

	count := 0
	for _, e := range c.pending {
		if !e.hasPlayer || e.playerID != playerID {
			continue
		}
		c.settleLocked(e, outcome{err: ClientDisconnectedError{ID: e.id, PlayerID: playerID}})
		util.Metrics.FutureCancelled()
		count++
	}
	if count > 0 {
		c.logger.Info().Uint64(logging.PlayerIDKey, playerID).Int("futures", count).Msg("Cancelled futures of disconnected player")
	}
	return count
}

// markTaken records that a waiter received e's outcome and wakes any other waiter
// on the same id.
func (c *Correlator) markTaken(e *entry) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !e.taken {
		e.taken = true
		close(e.consumed)
	}
}

// Await blocks until id is settled, timeout elapses or ctx is done. On timeout the
// entry is cancelled and TimeoutError returned; when ctx ends first the entry is
// cancelled with a CancelledError. A reply that wins the race against either is
// still returned. A zero timeout waits for ctx only.
//
// The outcome is handed out once. Awaiting an id whose outcome was already taken
// returns UnknownFutureError without waiting.
func (c *Correlator) Await(ctx context.Context, id uuid.UUID, timeout time.Duration) (interface{}, error) {
	c.lock.Lock()
	e := c.pending[id]
	if e == nil {
		if v, ok := c.settled.Get(id); ok {
			e = v.(*entry)
		}
	}
	if e != nil && e.taken {
		e = nil
	}
	closed := c.closed
	c.lock.Unlock()

	if e == nil {
		if closed {
			return nil, ErrCorrelatorClosed
		}
		return nil, UnknownFutureError{ID: id}
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case o := <-e.ch:
		c.markTaken(e)
		return o.value, o.err
	case <-e.consumed:
		return nil, UnknownFutureError{ID: id}
	case <-expired:
		if c.cancel(id, TimeoutError{ID: id, After: timeout}) {
			util.Metrics.FutureTimedOut()
			c.logger.Info().Str(logging.FutureIDKey, id.String()).Dur("after", timeout).Msg("Future timed out")
		}
	case <-ctx.Done():
		c.cancel(id, CancelledError{ID: id, Reason: ctx.Err().Error()})
	}

	// The outcome is in the channel now, ours or the one that beat us, unless
	// another waiter on the same id already took it.
	select {
	case o := <-e.ch:
		c.markTaken(e)
		return o.value, o.err
	default:
		return nil, UnknownFutureError{ID: id}
	}
}

// Pending lists the outstanding requests.
func (c *Correlator) Pending() []PendingInfo {
	c.lock.Lock()
	defer c.lock.Unlock()

	now := c.now()
	infos := make([]PendingInfo, 0, len(c.pending))
	for _, e := range c.pending {
		infos = append(infos, PendingInfo{ID: e.id, PlayerID: e.playerID, Age: now.Sub(e.createdAt)})
	}
	return infos
}

func (c *Correlator) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.pending)
}

// Close cancels everything still pending. Register and Resolve fail with
// ErrCorrelatorClosed afterwards.
func (c *Correlator) Close() {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	for _, e := range c.pending {
		c.settleLocked(e, outcome{err: CancelledError{ID: e.id, Reason: "correlator closed"}})
		util.Metrics.FutureCancelled()
	}
}
