package dispatch

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"voyager.com/comm/logging"
	"voyager.com/comm/message"
	"voyager.com/comm/util"
)

var dispatchLogger = log.With().Str("logger_name", "dispatch::dispatcher").Logger()

const allPlayers = "all"

// Dispatcher encodes messages and hands them to the transport with the audience
// each variant allows. Public messages only have broadcast methods and private ones
// only have per-player methods, so hole cards cannot be broadcast by mistake.
type Dispatcher struct {
	gameCode  string
	transport Transport
	codec     message.Codec
	msgLog    MessageLog
	logger    zerolog.Logger
}

// NewDispatcher returns a dispatcher for one table. msgLog may be nil.
func NewDispatcher(gameCode string, transport Transport, codec message.Codec, msgLog MessageLog) *Dispatcher {
	return &Dispatcher{
		gameCode:  gameCode,
		transport: transport,
		codec:     codec,
		msgLog:    msgLog,
		logger:    dispatchLogger.With().Str(logging.GameCodeKey, gameCode).Logger(),
	}
}

func (d *Dispatcher) Codec() message.Codec {
	return d.codec
}

func (d *Dispatcher) BroadcastStateChange(m *message.StateChangeMessage) error {
	return d.toAll(m)
}

func (d *Dispatcher) BroadcastPublicCards(m *message.ReceivePublicCards) error {
	return d.toAll(m)
}

func (d *Dispatcher) SendHoleCards(playerID uint64, m *message.ReceiveHoleCardsMessage) error {
	return d.toPlayer(playerID, m)
}

func (d *Dispatcher) SendActionRequest(playerID uint64, m *message.RequestClientActionFutureMessage) error {
	return d.toPlayer(playerID, m)
}

func (d *Dispatcher) SendFutureReply(playerID uint64, m *message.FutureMessage) error {
	return d.toPlayer(playerID, m)
}

func (d *Dispatcher) SendClientAction(playerID uint64, m *message.ClientActionMessage) error {
	return d.toPlayer(playerID, m)
}

func (d *Dispatcher) toAll(m message.Message) error {
	data, err := d.codec.Encode(m)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", m.Kind())
	}
	d.logger.Debug().Str(logging.MsgTypeKey, m.Kind().String()).Msg(fmt.Sprintf("S->A: %s", m))
	if err := d.transport.SendToAll(data); err != nil {
		return errors.Wrapf(err, "broadcasting %s", m.Kind())
	}
	d.sent(allPlayers, m)
	return nil
}

func (d *Dispatcher) toPlayer(playerID uint64, m message.Message) error {
	data, err := d.codec.Encode(m)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", m.Kind())
	}
	d.logger.Debug().Str(logging.MsgTypeKey, m.Kind().String()).Uint64(logging.PlayerIDKey, playerID).
		Msg(fmt.Sprintf("S->P: %s", m))
	if err := d.transport.SendToPlayer(playerID, data); err != nil {
		return errors.Wrapf(err, "sending %s to player %d", m.Kind(), playerID)
	}
	d.sent(fmt.Sprintf("player:%d", playerID), m)
	return nil
}

func (d *Dispatcher) sent(audience string, m message.Message) {
	util.Metrics.MessageSent(m.Kind().String())
	if d.msgLog == nil {
		return
	}
	if err := d.msgLog.Append(d.gameCode, audience+" "+m.String()); err != nil {
		d.logger.Warn().Err(err).Msg("Unable to append to message log")
	}
}
