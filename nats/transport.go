package nats

import (
	natsgo "github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var natsLogger = log.With().Str("logger_name", "nats::transport").Logger()

// Transport publishes a table's messages on NATS. Every player subscribes to the
// table's broadcast subject and to a subject of its own:
//
//	hand.<gameCode>.player.all   messages for every player
//	hand.<gameCode>.player.<id>  messages for one player only
type Transport struct {
	gameCode        string
	nc              *natsgo.Conn
	hand2AllPlayers string
}

func NewTransport(nc *natsgo.Conn, gameCode string) *Transport {
	return &Transport{
		gameCode:        gameCode,
		nc:              nc,
		hand2AllPlayers: GetHand2AllPlayerSubject(gameCode),
	}
}

func (t *Transport) SendToPlayer(playerID uint64, data []byte) error {
	subject := GetHand2PlayerSubject(t.gameCode, playerID)
	if err := t.nc.Publish(subject, data); err != nil {
		natsLogger.Error().Err(err).Str("subject", subject).Msg("Publish failed")
		return errors.Wrapf(err, "publishing to %s", subject)
	}
	return nil
}

func (t *Transport) SendToAll(data []byte) error {
	if err := t.nc.Publish(t.hand2AllPlayers, data); err != nil {
		natsLogger.Error().Err(err).Str("subject", t.hand2AllPlayers).Msg("Publish failed")
		return errors.Wrapf(err, "publishing to %s", t.hand2AllPlayers)
	}
	return nil
}
