package message

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"voyager.com/comm/poker"
)

/**
The protocol between the game server and the players is a closed set of six
messages. Every consumer handles all of them through Visit; a new variant is a
protocol change and has to be added to Visitor, both codecs and every handler.

	server -> all players : StateChangeMessage, ReceivePublicCards
	server -> one player  : ReceiveHoleCardsMessage, RequestClientActionFutureMessage
	point-to-point        : FutureMessage, ClientActionMessage

Messages are immutable once built.
**/

type Kind uint8

const (
	KindStateChange Kind = iota + 1
	KindReceiveHoleCards
	KindReceivePublicCards
	KindFuture
	KindRequestClientActionFuture
	KindClientAction
)

var Kind_name = map[Kind]string{
	KindStateChange:               "StateChangeMessage",
	KindReceiveHoleCards:          "ReceiveHoleCardsMessage",
	KindReceivePublicCards:        "ReceivePublicCards",
	KindFuture:                    "FutureMessage",
	KindRequestClientActionFuture: "RequestClientActionFutureMessage",
	KindClientAction:              "ClientActionMessage",
}

func (k Kind) String() string {
	if name, ok := Kind_name[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

type Message interface {
	Kind() Kind
	// Timestamp is the creation time in milliseconds since the epoch.
	Timestamp() int64
	String() string

	isMessage()
}

type timestamped struct {
	timestamp int64
}

func (t timestamped) Timestamp() int64 {
	return t.timestamp
}

func (t timestamped) isMessage() {}

func (t timestamped) base(k Kind) string {
	return k.String() + "@" + strconv.FormatInt(t.timestamp, 10)
}

type StateChangeMessage struct {
	timestamped
	newState poker.GameState
}

func NewStateChangeMessage(newState poker.GameState) *StateChangeMessage {
	return NewStateChangeMessageAt(defaultClock.Millis(), newState)
}

// NewStateChangeMessageAt keeps a timestamp that was stamped elsewhere, e.g. by the sender of a decoded message.
func NewStateChangeMessageAt(ts int64, newState poker.GameState) *StateChangeMessage {
	return &StateChangeMessage{timestamped: timestamped{ts}, newState: newState}
}

func (m *StateChangeMessage) Kind() Kind                { return KindStateChange }
func (m *StateChangeMessage) NewState() poker.GameState { return m.newState }

func (m *StateChangeMessage) String() string {
	return m.base(m.Kind()) + ": State change to " + m.newState.String()
}

// ReceiveHoleCardsMessage is private to one player.
type ReceiveHoleCardsMessage struct {
	timestamped
	card1 poker.Card
	card2 poker.Card
}

func NewReceiveHoleCardsMessage(card1, card2 poker.Card) *ReceiveHoleCardsMessage {
	return NewReceiveHoleCardsMessageAt(defaultClock.Millis(), card1, card2)
}

func NewReceiveHoleCardsMessageAt(ts int64, card1, card2 poker.Card) *ReceiveHoleCardsMessage {
	return &ReceiveHoleCardsMessage{timestamped: timestamped{ts}, card1: card1, card2: card2}
}

func (m *ReceiveHoleCardsMessage) Kind() Kind        { return KindReceiveHoleCards }
func (m *ReceiveHoleCardsMessage) Card1() poker.Card { return m.card1 }
func (m *ReceiveHoleCardsMessage) Card2() poker.Card { return m.card2 }

func (m *ReceiveHoleCardsMessage) String() string {
	return m.base(m.Kind()) + ": Receive cards [" + m.card1.String() + ", " + m.card2.String() + "]"
}

type ReceivePublicCards struct {
	timestamped
	cards []poker.Card
}

func NewReceivePublicCards(cards []poker.Card) (*ReceivePublicCards, error) {
	return NewReceivePublicCardsAt(defaultClock.Millis(), cards)
}

func NewReceivePublicCardsAt(ts int64, cards []poker.Card) (*ReceivePublicCards, error) {
	if len(cards) == 0 {
		return nil, ValidationError{Field: "cards", Reason: "public cards must not be empty"}
	}
	copied := make([]poker.Card, len(cards))
	copy(copied, cards)
	return &ReceivePublicCards{timestamped: timestamped{ts}, cards: copied}, nil
}

func (m *ReceivePublicCards) Kind() Kind { return KindReceivePublicCards }

// Cards returns a copy of the public cards in deal order.
func (m *ReceivePublicCards) Cards() []poker.Card {
	cards := make([]poker.Card, len(m.cards))
	copy(cards, m.cards)
	return cards
}

func (m *ReceivePublicCards) String() string {
	var b strings.Builder
	b.WriteString(m.base(m.Kind()))
	b.WriteString(": Receive cards [")
	for i, c := range m.cards {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.String())
	}
	b.WriteString("]")
	return b.String()
}

// FutureMessage resolves an earlier RequestClientActionFutureMessage with the same id.
type FutureMessage struct {
	timestamped
	futureID    uuid.UUID
	futureValue interface{}
}

func NewFutureMessage(futureID uuid.UUID, futureValue interface{}) (*FutureMessage, error) {
	return NewFutureMessageAt(defaultClock.Millis(), futureID, futureValue)
}

func NewFutureMessageAt(ts int64, futureID uuid.UUID, futureValue interface{}) (*FutureMessage, error) {
	if futureID == uuid.Nil {
		return nil, ValidationError{Field: "futureId", Reason: "future id must be set"}
	}
	if action, ok := futureValue.(ClientAction); ok {
		if err := action.Validate(); err != nil {
			return nil, errors.Wrap(err, "future value")
		}
	}
	return &FutureMessage{timestamped: timestamped{ts}, futureID: futureID, futureValue: futureValue}, nil
}

func (m *FutureMessage) Kind() Kind               { return KindFuture }
func (m *FutureMessage) FutureID() uuid.UUID      { return m.futureID }
func (m *FutureMessage) FutureValue() interface{} { return m.futureValue }

func (m *FutureMessage) String() string {
	return m.base(m.Kind()) + ": Resolve " + m.futureID.String() + " with " + renderValue(m.futureValue)
}

type RequestClientActionFutureMessage struct {
	timestamped
	futureID uuid.UUID
}

func NewRequestClientActionFutureMessage(futureID uuid.UUID) (*RequestClientActionFutureMessage, error) {
	return NewRequestClientActionFutureMessageAt(defaultClock.Millis(), futureID)
}

func NewRequestClientActionFutureMessageAt(ts int64, futureID uuid.UUID) (*RequestClientActionFutureMessage, error) {
	if futureID == uuid.Nil {
		return nil, ValidationError{Field: "futureId", Reason: "future id must be set"}
	}
	return &RequestClientActionFutureMessage{timestamped: timestamped{ts}, futureID: futureID}, nil
}

func (m *RequestClientActionFutureMessage) Kind() Kind          { return KindRequestClientActionFuture }
func (m *RequestClientActionFutureMessage) FutureID() uuid.UUID { return m.futureID }

func (m *RequestClientActionFutureMessage) String() string {
	return m.base(m.Kind()) + ": Future message for " + m.futureID.String()
}

// ClientActionMessage tells which player acted and how.
type ClientActionMessage struct {
	timestamped
	userID uint64
	action ClientAction
}

func NewClientActionMessage(userID uint64, action ClientAction) (*ClientActionMessage, error) {
	return NewClientActionMessageAt(defaultClock.Millis(), userID, action)
}

func NewClientActionMessageAt(ts int64, userID uint64, action ClientAction) (*ClientActionMessage, error) {
	if err := action.Validate(); err != nil {
		return nil, errors.Wrap(err, "client action")
	}
	return &ClientActionMessage{timestamped: timestamped{ts}, userID: userID, action: action}, nil
}

func (m *ClientActionMessage) Kind() Kind           { return KindClientAction }
func (m *ClientActionMessage) UserID() uint64       { return m.userID }
func (m *ClientActionMessage) Action() ClientAction { return m.action }

func (m *ClientActionMessage) String() string {
	return m.base(m.Kind()) + ": Client action information message, client" +
		strconv.FormatUint(m.userID, 10) + " -> " + m.action.String()
}

func renderValue(v interface{}) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprint(v)
}

// Visitor has one method per message variant. Implementing it is how a consumer
// proves it handles the whole vocabulary.
type Visitor interface {
	VisitStateChange(m *StateChangeMessage) error
	VisitReceiveHoleCards(m *ReceiveHoleCardsMessage) error
	VisitReceivePublicCards(m *ReceivePublicCards) error
	VisitFuture(m *FutureMessage) error
	VisitRequestClientActionFuture(m *RequestClientActionFutureMessage) error
	VisitClientAction(m *ClientActionMessage) error
}

func Visit(m Message, v Visitor) error {
	switch msg := m.(type) {
	case *StateChangeMessage:
		return v.VisitStateChange(msg)
	case *ReceiveHoleCardsMessage:
		return v.VisitReceiveHoleCards(msg)
	case *ReceivePublicCards:
		return v.VisitReceivePublicCards(msg)
	case *FutureMessage:
		return v.VisitFuture(msg)
	case *RequestClientActionFutureMessage:
		return v.VisitRequestClientActionFuture(msg)
	case *ClientActionMessage:
		return v.VisitClientAction(msg)
	default:
		return errors.Errorf("unhandled message %T", m)
	}
}
