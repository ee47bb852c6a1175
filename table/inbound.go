package table

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"voyager.com/comm/future"
	"voyager.com/comm/logging"
	"voyager.com/comm/message"
	"voyager.com/comm/util"
)

// HandleInbound decodes bytes received from playerID and routes the message.
func (t *Table) HandleInbound(playerID uint64, data []byte) error {
	m, err := t.codec.Decode(data)
	if err != nil {
		util.Metrics.InboundDropped("decode")
		return err
	}
	return t.HandleMessage(playerID, m)
}

// HandleMessage routes a message received from playerID. Late or duplicate replies
// are logged and dropped without an error. Messages a player is not allowed to send
// return InvalidMessageError.
func (t *Table) HandleMessage(playerID uint64, m message.Message) error {
	if m == nil {
		return InvalidMessageError{Msg: "nil message"}
	}
	logger := t.logger.With().Uint64(logging.PlayerIDKey, playerID).Str(logging.MsgTypeKey, m.Kind().String()).Logger()
	logger.Debug().Msg(fmt.Sprintf("P->S: %s", m))
	return message.Visit(m, &inboundVisitor{table: t, playerID: playerID, logger: logger})
}

type inboundVisitor struct {
	table    *Table
	playerID uint64
	logger   zerolog.Logger
}

func (v *inboundVisitor) VisitFuture(m *message.FutureMessage) error {
	err := v.table.correlator.ResolveFor(v.playerID, m.FutureID(), m.FutureValue())
	if err == nil {
		return nil
	}
	var unknown future.UnknownFutureError
	var wrongPlayer future.WrongPlayerError
	switch {
	case errors.As(err, &unknown):
		v.logger.Warn().Str(logging.FutureIDKey, m.FutureID().String()).Msg("Reply for a future that is not pending. Dropped.")
		return nil
	case errors.As(err, &wrongPlayer):
		util.Metrics.InboundDropped("wrong_player")
		return InvalidMessageError{Msg: err.Error()}
	default:
		return err
	}
}

func (v *inboundVisitor) VisitClientAction(m *message.ClientActionMessage) error {
	if m.UserID() != v.playerID {
		util.Metrics.InboundDropped("wrong_player")
		return InvalidMessageError{
			Msg: fmt.Sprintf("Player %d sent an action on behalf of player %d", v.playerID, m.UserID()),
		}
	}
	v.logger.Info().Msg(fmt.Sprintf("Player acted: %s", m.Action()))
	if fn := v.table.clientActionHandler(); fn != nil {
		fn(v.playerID, m)
	}
	return nil
}

func (v *inboundVisitor) VisitStateChange(m *message.StateChangeMessage) error {
	return v.serverOnly(m)
}

func (v *inboundVisitor) VisitReceiveHoleCards(m *message.ReceiveHoleCardsMessage) error {
	return v.serverOnly(m)
}

func (v *inboundVisitor) VisitReceivePublicCards(m *message.ReceivePublicCards) error {
	return v.serverOnly(m)
}

func (v *inboundVisitor) VisitRequestClientActionFuture(m *message.RequestClientActionFutureMessage) error {
	return v.serverOnly(m)
}

func (v *inboundVisitor) serverOnly(m message.Message) error {
	util.Metrics.InboundDropped("direction")
	return InvalidMessageError{Msg: fmt.Sprintf("%s is only sent by the server", m.Kind())}
}
