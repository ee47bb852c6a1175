package bot

import (
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"
	natsgo "github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"voyager.com/comm/logging"
	"voyager.com/comm/message"
	commnats "voyager.com/comm/nats"
	"voyager.com/comm/poker"
)

var botPlayerLogger = log.With().Str("logger_name", "bot::player").Logger()

// Decider picks the action the bot answers an action request with.
type Decider func(view View) message.ClientAction

// AlwaysCheck is the default Decider.
func AlwaysCheck(View) message.ClientAction {
	return message.Check()
}

// View is what the bot has seen of the current hand.
type View struct {
	State       poker.GameState
	HoleCards   []poker.Card
	PublicCards []poker.Card
}

func (v View) String() string {
	return fmt.Sprintf("%s hole %s board %s", v.State, poker.PrintCards(v.HoleCards), poker.PrintCards(v.PublicCards))
}

// PlayerBot plays one seat of one table over NATS. It answers every action
// request with a ClientActionMessage followed by the FutureMessage that resolves
// the request, and answers every ping with a pong.
type PlayerBot struct {
	playerID uint64
	gameCode string
	nc       *natsgo.Conn
	ownsConn bool
	codec    message.Codec
	decide   Decider
	logger   zerolog.Logger

	player2CommSubject string
	pongSubject        string
	subs               []*natsgo.Subscription

	lock     sync.Mutex
	view     View
	received []message.Message
	replies  int
}

func NewPlayerBot(natsURL string, gameCode string, playerID uint64, codec message.Codec) (*PlayerBot, error) {
	nc, err := natsgo.Connect(natsURL)
	if err != nil {
		botPlayerLogger.Error().Msg(fmt.Sprintf("Error connecting to NATS server, error: %v", err))
		return nil, err
	}
	bot := NewPlayerBotWithConn(nc, gameCode, playerID, codec)
	bot.ownsConn = true
	return bot, nil
}

func NewPlayerBotWithConn(nc *natsgo.Conn, gameCode string, playerID uint64, codec message.Codec) *PlayerBot {
	if codec == nil {
		codec = message.NewJSONCodec()
	}
	return &PlayerBot{
		playerID:           playerID,
		gameCode:           gameCode,
		nc:                 nc,
		codec:              codec,
		decide:             AlwaysCheck,
		logger:             botPlayerLogger.With().Str(logging.GameCodeKey, gameCode).Uint64(logging.PlayerIDKey, playerID).Logger(),
		player2CommSubject: commnats.GetPlayer2CommSubject(gameCode, playerID),
		pongSubject:        commnats.GetPongSubject(gameCode),
	}
}

func (p *PlayerBot) SetDecider(decide Decider) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.decide = decide
}

// JoinTable subscribes to the table's broadcast, private and ping subjects.
func (p *PlayerBot) JoinTable() error {
	subjects := []struct {
		subject string
		handler natsgo.MsgHandler
	}{
		{commnats.GetHand2AllPlayerSubject(p.gameCode), p.hand2Player},
		{commnats.GetHand2PlayerSubject(p.gameCode, p.playerID), p.hand2Player},
		{commnats.GetPingSubject(p.gameCode), p.ping},
	}
	for _, s := range subjects {
		sub, err := p.nc.Subscribe(s.subject, s.handler)
		if err != nil {
			p.logger.Error().Msg(fmt.Sprintf("Subscription to %s failed. Error: %v", s.subject, err))
			p.unsubscribe()
			return errors.Wrapf(err, "subscribing to %s", s.subject)
		}
		p.subs = append(p.subs, sub)
	}
	if err := p.nc.Flush(); err != nil {
		p.unsubscribe()
		return err
	}
	p.logger.Info().Msg("Joined table")
	return nil
}

func (p *PlayerBot) LeaveTable() {
	p.unsubscribe()
	if p.ownsConn {
		p.nc.Close()
	}
}

func (p *PlayerBot) unsubscribe() {
	for _, sub := range p.subs {
		sub.Unsubscribe()
	}
	p.subs = nil
}

func (p *PlayerBot) View() View {
	p.lock.Lock()
	defer p.lock.Unlock()
	return View{
		State:       p.view.State,
		HoleCards:   append([]poker.Card(nil), p.view.HoleCards...),
		PublicCards: append([]poker.Card(nil), p.view.PublicCards...),
	}
}

// Received returns every message the bot decoded, in arrival order.
func (p *PlayerBot) Received() []message.Message {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]message.Message(nil), p.received...)
}

// Replies is the number of action requests the bot answered.
func (p *PlayerBot) Replies() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.replies
}

func (p *PlayerBot) hand2Player(msg *natsgo.Msg) {
	m, err := p.codec.Decode(msg.Data)
	if err != nil {
		p.logger.Error().Err(err).Str(logging.SubjectKey, msg.Subject).Msg("Unable to decode message")
		return
	}
	p.logger.Debug().Msg(fmt.Sprintf("Message from %s: %s", msg.Subject, m))
	if err := message.Visit(m, p); err != nil {
		p.logger.Error().Err(err).Msg("Unable to handle message")
	}
}

func (p *PlayerBot) record(m message.Message) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.received = append(p.received, m)
}

func (p *PlayerBot) VisitStateChange(m *message.StateChangeMessage) error {
	p.record(m)
	p.lock.Lock()
	defer p.lock.Unlock()
	p.view.State = m.NewState()
	if m.NewState() == poker.GameState_PREFLOP {
		p.view.PublicCards = nil
	}
	return nil
}

func (p *PlayerBot) VisitReceiveHoleCards(m *message.ReceiveHoleCardsMessage) error {
	p.record(m)
	p.lock.Lock()
	defer p.lock.Unlock()
	p.view.HoleCards = []poker.Card{m.Card1(), m.Card2()}
	return nil
}

func (p *PlayerBot) VisitReceivePublicCards(m *message.ReceivePublicCards) error {
	p.record(m)
	p.lock.Lock()
	defer p.lock.Unlock()
	p.view.PublicCards = append(p.view.PublicCards, m.Cards()...)
	return nil
}

func (p *PlayerBot) VisitRequestClientActionFuture(m *message.RequestClientActionFutureMessage) error {
	p.record(m)
	p.lock.Lock()
	decide := p.decide
	p.lock.Unlock()

	view := p.View()
	action := decide(view)
	p.logger.Info().Msg(fmt.Sprintf("%s -> %s", view, action))
	announce, err := message.NewClientActionMessage(p.playerID, action)
	if err != nil {
		return err
	}
	reply, err := message.NewFutureMessage(m.FutureID(), action)
	if err != nil {
		return err
	}
	for _, out := range []message.Message{announce, reply} {
		if err := p.publish(out); err != nil {
			return err
		}
	}
	p.lock.Lock()
	p.replies++
	p.lock.Unlock()
	return nil
}

func (p *PlayerBot) VisitFuture(m *message.FutureMessage) error {
	p.record(m)
	return nil
}

func (p *PlayerBot) VisitClientAction(m *message.ClientActionMessage) error {
	p.record(m)
	return nil
}

func (p *PlayerBot) publish(m message.Message) error {
	data, err := p.codec.Encode(m)
	if err != nil {
		return err
	}
	p.logger.Debug().Msg(fmt.Sprintf("P->S: %s", m))
	return p.nc.Publish(p.player2CommSubject, data)
}

func (p *PlayerBot) ping(msg *natsgo.Msg) {
	var ping commnats.PingPongMessage
	if err := jsoniter.Unmarshal(msg.Data, &ping); err != nil {
		p.logger.Error().Err(err).Msg("Invalid ping message")
		return
	}
	ping.PlayerID = p.playerID
	data, err := jsoniter.Marshal(ping)
	if err != nil {
		return
	}
	p.nc.Publish(p.pongSubject, data)
}
