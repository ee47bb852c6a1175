package nats

import (
	"fmt"

	natsgo "github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"voyager.com/comm/logging"
)

var listenerLogger = log.With().Str("logger_name", "nats::listener").Logger()

// InboundHandler is implemented by *table.Table.
type InboundHandler interface {
	HandleInbound(playerID uint64, data []byte) error
}

// Listener receives what the players of one table publish on
// player.<gameCode>.comm.<playerID> and hands it to the table.
type Listener struct {
	gameCode string
	handler  InboundHandler
	sub      *natsgo.Subscription
	logger   zerolog.Logger
}

func NewListener(nc *natsgo.Conn, gameCode string, handler InboundHandler) (*Listener, error) {
	l := &Listener{
		gameCode: gameCode,
		handler:  handler,
		logger:   listenerLogger.With().Str(logging.GameCodeKey, gameCode).Logger(),
	}
	subject := GetPlayer2CommWildcard(gameCode)
	sub, err := nc.Subscribe(subject, l.player2Comm)
	if err != nil {
		l.logger.Error().Msg(fmt.Sprintf("Failed to subscribe to %s", subject))
		return nil, errors.Wrapf(err, "subscribing to %s", subject)
	}
	l.sub = sub
	return l, nil
}

func (l *Listener) player2Comm(msg *natsgo.Msg) {
	playerID, err := playerIDFromSubject(msg.Subject)
	if err != nil {
		l.logger.Warn().Err(err).Msg("Dropping message")
		return
	}
	if err := l.handler.HandleInbound(playerID, msg.Data); err != nil {
		l.logger.Warn().Err(err).Uint64(logging.PlayerIDKey, playerID).
			Str(logging.SubjectKey, msg.Subject).Msg("Inbound message rejected")
	}
}

func (l *Listener) Close() error {
	return l.sub.Unsubscribe()
}
