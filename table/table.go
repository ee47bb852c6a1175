package table

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"voyager.com/comm/dispatch"
	"voyager.com/comm/future"
	"voyager.com/comm/logging"
	"voyager.com/comm/message"
	"voyager.com/comm/poker"
	"voyager.com/comm/util"
)

var tableLogger = log.With().Str("logger_name", "table::table").Logger()

type Config struct {
	// ActionTimeout is how long a player has to answer an action request.
	ActionTimeout    time.Duration
	SettledCacheSize int
	Codec            message.Codec
	// MessageLog is optional.
	MessageLog dispatch.MessageLog
}

// ClientActionHandler receives the actions players announce with ClientActionMessage.
type ClientActionHandler func(playerID uint64, m *message.ClientActionMessage)

// Table is the communication side of one game: it owns the correlator for the
// game's action requests, sends messages through the dispatcher and routes what
// the players send back.
type Table struct {
	gameCode      string
	correlator    *future.Correlator
	dispatcher    *dispatch.Dispatcher
	codec         message.Codec
	actionTimeout time.Duration
	msgLog        dispatch.MessageLog
	logger        zerolog.Logger

	lock             sync.RWMutex
	onAction         ClientActionHandler
	players          []uint64
	onPlayersChanged func(playerIDs []uint64)
}

func New(gameCode string, transport dispatch.Transport, cfg Config) (*Table, error) {
	if gameCode == "" {
		return nil, errors.New("game code is required")
	}
	if cfg.ActionTimeout <= 0 {
		return nil, errors.Errorf("invalid action timeout %s", cfg.ActionTimeout)
	}
	if cfg.Codec == nil {
		cfg.Codec = message.NewJSONCodec()
	}
	logger := tableLogger.With().Str(logging.GameCodeKey, gameCode).Logger()

	opts := []future.Option{future.WithLogger(logger)}
	if cfg.SettledCacheSize > 0 {
		opts = append(opts, future.WithSettledCacheSize(cfg.SettledCacheSize))
	}
	correlator, err := future.NewCorrelator(opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to create correlator for game %s", gameCode)
	}

	return &Table{
		gameCode:      gameCode,
		correlator:    correlator,
		dispatcher:    dispatch.NewDispatcher(gameCode, transport, cfg.Codec, cfg.MessageLog),
		codec:         cfg.Codec,
		actionTimeout: cfg.ActionTimeout,
		msgLog:        cfg.MessageLog,
		logger:        logger,
	}, nil
}

func (t *Table) GameCode() string {
	return t.gameCode
}

func (t *Table) Codec() message.Codec {
	return t.codec
}

func (t *Table) Pending() []future.PendingInfo {
	return t.correlator.Pending()
}

// MessageLog returns what was sent to the table so far, or nil without a log.
func (t *Table) MessageLog() ([]string, error) {
	if t.msgLog == nil {
		return nil, nil
	}
	return t.msgLog.Load(t.gameCode)
}

func (t *Table) OnClientAction(fn ClientActionHandler) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.onAction = fn
}

func (t *Table) clientActionHandler() ClientActionHandler {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.onAction
}

func (t *Table) BroadcastState(state poker.GameState) error {
	return t.dispatcher.BroadcastStateChange(message.NewStateChangeMessage(state))
}

func (t *Table) BroadcastPublicCards(cards []poker.Card) error {
	m, err := message.NewReceivePublicCards(cards)
	if err != nil {
		return err
	}
	return t.dispatcher.BroadcastPublicCards(m)
}

func (t *Table) DealHoleCards(playerID uint64, card1, card2 poker.Card) error {
	return t.dispatcher.SendHoleCards(playerID, message.NewReceiveHoleCardsMessage(card1, card2))
}

// CancelFuture withdraws an outstanding action request. The waiting requester gets
// a CancelledError.
func (t *Table) CancelFuture(id string) error {
	futureID, err := parseFutureID(id)
	if err != nil {
		return err
	}
	t.correlator.Cancel(futureID)
	return nil
}

// PlayerDisconnected settles the player's outstanding requests; their requesters
// fall back as if the player had not answered.
func (t *Table) PlayerDisconnected(playerID uint64) {
	count := t.correlator.CancelSession(playerID)
	util.Metrics.ConnectivityLost()
	t.logger.Info().Uint64(logging.PlayerIDKey, playerID).Int("pending", count).Msg("Player disconnected")
}

// PlayerRestored is called for players that answer again after PlayerDisconnected.
// Their next action request is sent and awaited as usual.
func (t *Table) PlayerRestored(playerIDs []uint64) {
	for _, playerID := range playerIDs {
		util.Metrics.ConnectivityRestored()
		t.logger.Info().Uint64(logging.PlayerIDKey, playerID).Msg("Player connectivity restored")
	}
}

// Close cancels every outstanding request and removes the table's message log.
func (t *Table) Close() {
	t.discard()
	if t.msgLog != nil {
		if err := t.msgLog.Remove(t.gameCode); err != nil {
			t.logger.Warn().Err(err).Msg("Unable to remove message log")
		}
	}
}

// discard tears down a table that never went live. The message log is keyed by
// game code and may belong to the table that did, so it stays.
func (t *Table) discard() {
	t.correlator.Close()
}
