package session

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
	"voyager.com/comm/dispatch"
	"voyager.com/comm/logging"
	"voyager.com/comm/util"
)

var hubLogger = log.With().Str("logger_name", "session::hub").Logger()

const (
	sendBufferSize = 64
	readLimitBytes = 64 * 1024
)

// Handler receives what the players of a table send and learns when they leave.
// *table.Table implements it.
type Handler interface {
	HandleInbound(playerID uint64, data []byte) error
	PlayerDisconnected(playerID uint64)
}

type Config struct {
	// Binary selects binary websocket frames (proto codec) instead of text (json codec).
	Binary            bool
	WriteTimeout      time.Duration
	InboundRatePerSec float64
	InboundBurst      int
}

// Hub holds the websocket sessions of one table and implements dispatch.Transport
// on top of them. Each player has at most one session; a new connection replaces
// the old one.
type Hub struct {
	gameCode string
	sessions cmap.ConcurrentMap
	cfg      Config
	msgType  websocket.MessageType
	logger   zerolog.Logger
}

type session struct {
	playerID  uint64
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (s *session) close(code websocket.StatusCode, reason string) {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close(code, reason)
	})
}

func NewHub(gameCode string, cfg Config) *Hub {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.InboundRatePerSec <= 0 {
		cfg.InboundRatePerSec = 20
	}
	if cfg.InboundBurst <= 0 {
		cfg.InboundBurst = 40
	}
	msgType := websocket.MessageText
	if cfg.Binary {
		msgType = websocket.MessageBinary
	}
	return &Hub{
		gameCode: gameCode,
		sessions: cmap.New(),
		cfg:      cfg,
		msgType:  msgType,
		logger:   hubLogger.With().Str(logging.GameCodeKey, gameCode).Logger(),
	}
}

func sessionKey(playerID uint64) string {
	return strconv.FormatUint(playerID, 10)
}

// Accept upgrades the request and serves the connection until it ends.
func (h *Hub) Accept(w http.ResponseWriter, r *http.Request, playerID uint64, handler Handler) error {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return errors.Wrap(err, "websocket upgrade")
	}
	return h.Serve(r.Context(), conn, playerID, handler)
}

// Serve runs the session of playerID on conn: one writer goroutine draining the
// send queue and the read loop in the calling goroutine. When it returns the
// session is gone and, unless it was replaced by a newer one, the handler is told
// that the player disconnected.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, playerID uint64, handler Handler) error {
	conn.SetReadLimit(readLimitBytes)
	s := &session{
		playerID: playerID,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
	}
	logger := h.logger.With().Uint64(logging.PlayerIDKey, playerID).Logger()

	key := sessionKey(playerID)
	var replaced *session
	h.sessions.Upsert(key, s, func(exists bool, old interface{}, newValue interface{}) interface{} {
		if exists {
			replaced = old.(*session)
		}
		return newValue
	})
	if replaced != nil {
		logger.Info().Msg("Player reconnected. Closing the previous session.")
		replaced.close(websocket.StatusPolicyViolation, "replaced by a new connection")
	}
	util.Metrics.SessionOpened()
	logger.Info().Msg("Player connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go h.writeLoop(ctx, s, logger)

	err := h.readLoop(ctx, s, handler, logger)

	s.close(websocket.StatusNormalClosure, "")
	util.Metrics.SessionClosed()
	current := h.sessions.RemoveCb(key, func(key string, v interface{}, exists bool) bool {
		return exists && v.(*session) == s
	})
	if current {
		logger.Info().Msg("Player disconnected")
		handler.PlayerDisconnected(playerID)
	}

	if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
		websocket.CloseStatus(err) == websocket.StatusGoingAway ||
		errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (h *Hub) readLoop(ctx context.Context, s *session, handler Handler, logger zerolog.Logger) error {
	limiter := rate.NewLimiter(rate.Limit(h.cfg.InboundRatePerSec), h.cfg.InboundBurst)
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			select {
			case <-s.done:
				// closed by us (replaced or hub closed)
				return nil
			default:
				return err
			}
		}
		if !limiter.Allow() {
			util.Metrics.InboundDropped("rate_limited")
			logger.Warn().Msg("Player is sending too fast. Message dropped.")
			continue
		}
		if err := handler.HandleInbound(s.playerID, data); err != nil {
			logger.Warn().Err(err).Msg("Inbound message rejected")
		}
	}
}

func (h *Hub) writeLoop(ctx context.Context, s *session, logger zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case data := <-s.send:
			writeCtx, cancel := context.WithTimeout(ctx, h.cfg.WriteTimeout)
			err := s.conn.Write(writeCtx, h.msgType, data)
			cancel()
			if err != nil {
				logger.Warn().Err(err).Msg("Write failed. Closing session.")
				s.close(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}

func (h *Hub) enqueue(s *session, data []byte) error {
	select {
	case <-s.done:
		return errors.Wrapf(dispatch.ErrPlayerNotConnected, "player %d", s.playerID)
	default:
	}
	select {
	case s.send <- data:
		return nil
	default:
		// a client that cannot keep up is dropped rather than blocking the table
		s.close(websocket.StatusPolicyViolation, "connection too slow to keep up with messages")
		return errors.Wrapf(dispatch.ErrPlayerNotConnected, "player %d is too slow", s.playerID)
	}
}

func (h *Hub) SendToPlayer(playerID uint64, data []byte) error {
	v, ok := h.sessions.Get(sessionKey(playerID))
	if !ok {
		return errors.Wrapf(dispatch.ErrPlayerNotConnected, "player %d", playerID)
	}
	return h.enqueue(v.(*session), data)
}

func (h *Hub) SendToAll(data []byte) error {
	var firstErr error
	for _, v := range h.sessions.Items() {
		if err := h.enqueue(v.(*session), data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *Hub) Players() []uint64 {
	players := make([]uint64, 0, h.sessions.Count())
	for _, v := range h.sessions.Items() {
		players = append(players, v.(*session).playerID)
	}
	return players
}

// Close ends every session of the table.
func (h *Hub) Close() {
	for _, v := range h.sessions.Items() {
		v.(*session).close(websocket.StatusGoingAway, "game ended")
	}
}
