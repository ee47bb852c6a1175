package message

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/reflect/protoreflect"
	"voyager.com/comm/poker"
)

// ProtoCodec encodes messages with the schema in wire.proto. Every message goes out
// in an Envelope whose body holds the message for its kind. Decoders skip fields
// they do not know, so fields can be added later without bumping WireVersion.
type ProtoCodec struct{}

const futureValueClientAction = 1

func NewProtoCodec() *ProtoCodec {
	return &ProtoCodec{}
}

func (c *ProtoCodec) Name() string {
	return ProtoCodecName
}

func (c *ProtoCodec) Encode(m Message) ([]byte, error) {
	var body wireMessage
	switch msg := m.(type) {
	case *StateChangeMessage:
		body = stateChangeToWire(msg)
	case *ReceiveHoleCardsMessage:
		body = holeCardsToWire(msg)
	case *ReceivePublicCards:
		body = publicCardsToWire(msg)
	case *FutureMessage:
		var err error
		if body, err = futureToWire(msg); err != nil {
			return nil, err
		}
	case *RequestClientActionFutureMessage:
		body = newWire("RequestClientActionFuture")
		body.setBytes("future_id", msg.futureID[:])
	case *ClientActionMessage:
		body = newWire("ClientAction")
		body.setUint("user_id", msg.userID)
		body.setMessage("action", actionToWire(msg.action))
	default:
		return nil, fmt.Errorf("cannot encode message %T", m)
	}

	bodyData, err := body.marshal()
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %s", m.Kind())
	}
	env := newWire("Envelope")
	env.setUint("version", WireVersion)
	env.setUint("kind", uint64(m.Kind()))
	env.setInt("timestamp", m.Timestamp())
	env.setBytes("body", bodyData)
	return env.marshal()
}

func (c *ProtoCodec) Decode(data []byte) (Message, error) {
	m, err := c.decode(data)
	if err != nil {
		return nil, DecodeError{Codec: ProtoCodecName, Err: err}
	}
	return m, nil
}

// wireBodies names the body message of every kind.
var wireBodies = map[Kind]protoreflect.Name{
	KindStateChange:               "StateChange",
	KindReceiveHoleCards:          "HoleCards",
	KindReceivePublicCards:        "PublicCards",
	KindFuture:                    "Future",
	KindRequestClientActionFuture: "RequestClientActionFuture",
	KindClientAction:              "ClientAction",
}

func (c *ProtoCodec) decode(data []byte) (Message, error) {
	env := newWire("Envelope")
	if err := env.unmarshal(data); err != nil {
		return nil, errors.Wrap(err, "envelope")
	}
	if version := env.getUint("version"); version != WireVersion {
		return nil, fmt.Errorf("unsupported wire version %d", version)
	}
	rawKind := env.getUint("kind")
	if rawKind > math.MaxUint8 {
		return nil, fmt.Errorf("unknown message kind %d", rawKind)
	}
	kind := Kind(rawKind)
	bodyName, ok := wireBodies[kind]
	if !ok {
		return nil, fmt.Errorf("unknown message kind %d", rawKind)
	}
	if !env.has("body") {
		return nil, fmt.Errorf("%s has no body", kind)
	}
	body := newWire(bodyName)
	if err := body.unmarshal(env.getBytes("body")); err != nil {
		return nil, errors.Wrapf(err, "%s body", kind)
	}
	ts := env.getInt("timestamp")

	switch kind {
	case KindStateChange:
		return stateChangeFromWire(ts, body)
	case KindReceiveHoleCards:
		return holeCardsFromWire(ts, body)
	case KindReceivePublicCards:
		return publicCardsFromWire(ts, body)
	case KindFuture:
		return futureFromWire(ts, body)
	case KindRequestClientActionFuture:
		id, err := futureIDFromWire(body)
		if err != nil {
			return nil, err
		}
		return NewRequestClientActionFutureMessageAt(ts, id)
	case KindClientAction:
		if !body.has("action") {
			return nil, fmt.Errorf("client action message has no action")
		}
		action, err := actionFromWire(body.getMessage("action"))
		if err != nil {
			return nil, err
		}
		return NewClientActionMessageAt(ts, body.getUint("user_id"), action)
	}
	return nil, fmt.Errorf("unknown message kind %d", rawKind)
}

func stateChangeToWire(m *StateChangeMessage) wireMessage {
	w := newWire("StateChange")
	w.setUint("state", uint64(m.newState))
	return w
}

func stateChangeFromWire(ts int64, w wireMessage) (Message, error) {
	state := w.getUint("state")
	gameState := poker.GameState(state)
	if state > math.MaxInt32 || !gameState.IsValid() {
		return nil, fmt.Errorf("invalid game state %d", state)
	}
	return NewStateChangeMessageAt(ts, gameState), nil
}

func holeCardsToWire(m *ReceiveHoleCardsMessage) wireMessage {
	w := newWire("HoleCards")
	w.setUint("card1", uint64(m.card1.GetByte()))
	w.setUint("card2", uint64(m.card2.GetByte()))
	return w
}

func holeCardsFromWire(ts int64, w wireMessage) (Message, error) {
	if !w.has("card1") || !w.has("card2") {
		return nil, fmt.Errorf("hole cards need two cards")
	}
	card1, err := cardFromWire(w.getUint("card1"))
	if err != nil {
		return nil, err
	}
	card2, err := cardFromWire(w.getUint("card2"))
	if err != nil {
		return nil, err
	}
	return NewReceiveHoleCardsMessageAt(ts, card1, card2), nil
}

func publicCardsToWire(m *ReceivePublicCards) wireMessage {
	cards := make([]byte, 0, len(m.cards))
	for _, card := range m.cards {
		cards = append(cards, card.GetByte())
	}
	w := newWire("PublicCards")
	w.setBytes("cards", cards)
	return w
}

func publicCardsFromWire(ts int64, w wireMessage) (Message, error) {
	raw := w.getBytes("cards")
	cards := make([]poker.Card, 0, len(raw))
	for _, b := range raw {
		card, err := poker.NewCardFromByte(b)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return NewReceivePublicCardsAt(ts, cards)
}

func futureToWire(m *FutureMessage) (wireMessage, error) {
	w := newWire("Future")
	w.setBytes("future_id", m.futureID[:])
	if m.futureValue != nil {
		action, ok := m.futureValue.(ClientAction)
		if !ok {
			return wireMessage{}, UnsupportedValueError{Value: m.futureValue}
		}
		value := newWire("FutureValue")
		value.setUint("kind", futureValueClientAction)
		value.setMessage("action", actionToWire(action))
		w.setMessage("value", value)
	}
	return w, nil
}

func futureFromWire(ts int64, w wireMessage) (Message, error) {
	id, err := futureIDFromWire(w)
	if err != nil {
		return nil, err
	}
	var value interface{}
	if w.has("value") {
		fv := w.getMessage("value")
		if kind := fv.getUint("kind"); kind != futureValueClientAction {
			return nil, fmt.Errorf("unknown future value kind %d", kind)
		}
		action, err := actionFromWire(fv.getMessage("action"))
		if err != nil {
			return nil, errors.Wrap(err, "future value")
		}
		value = action
	}
	return NewFutureMessageAt(ts, id, value)
}

func futureIDFromWire(w wireMessage) (uuid.UUID, error) {
	if !w.has("future_id") {
		return uuid.Nil, nil
	}
	id, err := uuid.FromBytes(w.getBytes("future_id"))
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "futureId")
	}
	return id, nil
}

func actionToWire(a ClientAction) wireMessage {
	w := newWire("Action")
	w.setInt("type", int64(a.Type))
	w.setInt("extra", int64(a.Extra))
	return w
}

func actionFromWire(w wireMessage) (ClientAction, error) {
	typ := w.getInt("type")
	if typ < 0 || typ > math.MaxInt32 {
		return ClientAction{}, fmt.Errorf("action type %d out of range", typ)
	}
	action := ClientAction{Type: ActionType(typ), Extra: int(w.getInt("extra"))}
	if err := action.Validate(); err != nil {
		return ClientAction{}, err
	}
	return action, nil
}

func cardFromWire(v uint64) (poker.Card, error) {
	if v > math.MaxUint8 {
		return 0, fmt.Errorf("invalid card byte %d", v)
	}
	return poker.NewCardFromByte(uint8(v))
}
