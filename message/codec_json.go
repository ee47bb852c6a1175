package message

import (
	"fmt"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"voyager.com/comm/poker"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type jsonEnvelope struct {
	Version int                 `json:"v"`
	Type    string              `json:"type"`
	Ts      int64               `json:"ts"`
	Body    jsoniter.RawMessage `json:"body"`
}

type jsonStateChange struct {
	NewState string `json:"newState"`
}

type jsonHoleCards struct {
	Card1 string `json:"card1"`
	Card2 string `json:"card2"`
}

type jsonPublicCards struct {
	Cards []string `json:"cards"`
}

type jsonAction struct {
	Type  string `json:"type"`
	Extra int    `json:"extra"`
}

type jsonFutureValue struct {
	Kind   string      `json:"kind"`
	Action *jsonAction `json:"action,omitempty"`
}

type jsonFuture struct {
	FutureID    string           `json:"futureId"`
	FutureValue *jsonFutureValue `json:"futureValue"`
}

type jsonRequest struct {
	FutureID string `json:"futureId"`
}

type jsonClientAction struct {
	UserID uint64     `json:"userId"`
	Action jsonAction `json:"action"`
}

const clientActionValueKind = "ClientAction"

// JSONCodec is the text encoding used on the websocket and by the bots.
//
//	{"v":1,"type":"ClientActionMessage","ts":1620000000000,"body":{"userId":7,"action":{"type":"RaiseTo","extra":50}}}
type JSONCodec struct{}

func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

func (c *JSONCodec) Name() string {
	return JSONCodecName
}

func (c *JSONCodec) Encode(m Message) ([]byte, error) {
	var body interface{}
	switch msg := m.(type) {
	case *StateChangeMessage:
		body = jsonStateChange{NewState: msg.newState.String()}
	case *ReceiveHoleCardsMessage:
		body = jsonHoleCards{Card1: msg.card1.String(), Card2: msg.card2.String()}
	case *ReceivePublicCards:
		cards := make([]string, 0, len(msg.cards))
		for _, card := range msg.cards {
			cards = append(cards, card.String())
		}
		body = jsonPublicCards{Cards: cards}
	case *FutureMessage:
		value, err := encodeJSONFutureValue(msg.futureValue)
		if err != nil {
			return nil, err
		}
		body = jsonFuture{FutureID: msg.futureID.String(), FutureValue: value}
	case *RequestClientActionFutureMessage:
		body = jsonRequest{FutureID: msg.futureID.String()}
	case *ClientActionMessage:
		body = jsonClientAction{UserID: msg.userID, Action: toJSONAction(msg.action)}
	default:
		return nil, fmt.Errorf("cannot encode message %T", m)
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %s body", m.Kind())
	}
	data, err := json.Marshal(jsonEnvelope{
		Version: WireVersion,
		Type:    m.Kind().String(),
		Ts:      m.Timestamp(),
		Body:    raw,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %s envelope", m.Kind())
	}
	return data, nil
}

func (c *JSONCodec) Decode(data []byte) (Message, error) {
	m, err := c.decode(data)
	if err != nil {
		return nil, DecodeError{Codec: JSONCodecName, Err: err}
	}
	return m, nil
}

func (c *JSONCodec) decode(data []byte) (Message, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(err, "envelope")
	}
	if env.Version != WireVersion {
		return nil, fmt.Errorf("unsupported wire version %d", env.Version)
	}
	kind, ok := kindByName(env.Type)
	if !ok {
		return nil, fmt.Errorf("unknown message type [%s]", env.Type)
	}
	if len(env.Body) == 0 {
		return nil, fmt.Errorf("%s has no body", env.Type)
	}

	switch kind {
	case KindStateChange:
		var body jsonStateChange
		if err := json.Unmarshal(env.Body, &body); err != nil {
			return nil, errors.Wrap(err, "state change body")
		}
		state, err := poker.ParseGameState(body.NewState)
		if err != nil {
			return nil, err
		}
		return NewStateChangeMessageAt(env.Ts, state), nil

	case KindReceiveHoleCards:
		var body jsonHoleCards
		if err := json.Unmarshal(env.Body, &body); err != nil {
			return nil, errors.Wrap(err, "hole cards body")
		}
		card1, err := poker.ParseCard(body.Card1)
		if err != nil {
			return nil, err
		}
		card2, err := poker.ParseCard(body.Card2)
		if err != nil {
			return nil, err
		}
		return NewReceiveHoleCardsMessageAt(env.Ts, card1, card2), nil

	case KindReceivePublicCards:
		var body jsonPublicCards
		if err := json.Unmarshal(env.Body, &body); err != nil {
			return nil, errors.Wrap(err, "public cards body")
		}
		cards := make([]poker.Card, 0, len(body.Cards))
		for _, s := range body.Cards {
			card, err := poker.ParseCard(s)
			if err != nil {
				return nil, err
			}
			cards = append(cards, card)
		}
		return NewReceivePublicCardsAt(env.Ts, cards)

	case KindFuture:
		var body jsonFuture
		if err := json.Unmarshal(env.Body, &body); err != nil {
			return nil, errors.Wrap(err, "future body")
		}
		id, err := uuid.Parse(body.FutureID)
		if err != nil {
			return nil, errors.Wrap(err, "futureId")
		}
		value, err := decodeJSONFutureValue(body.FutureValue)
		if err != nil {
			return nil, err
		}
		return NewFutureMessageAt(env.Ts, id, value)

	case KindRequestClientActionFuture:
		var body jsonRequest
		if err := json.Unmarshal(env.Body, &body); err != nil {
			return nil, errors.Wrap(err, "request body")
		}
		id, err := uuid.Parse(body.FutureID)
		if err != nil {
			return nil, errors.Wrap(err, "futureId")
		}
		return NewRequestClientActionFutureMessageAt(env.Ts, id)

	case KindClientAction:
		var body jsonClientAction
		if err := json.Unmarshal(env.Body, &body); err != nil {
			return nil, errors.Wrap(err, "client action body")
		}
		action, err := fromJSONAction(body.Action)
		if err != nil {
			return nil, err
		}
		return NewClientActionMessageAt(env.Ts, body.UserID, action)
	}
	return nil, fmt.Errorf("unknown message type [%s]", env.Type)
}

func toJSONAction(a ClientAction) jsonAction {
	return jsonAction{Type: a.Type.String(), Extra: a.Extra}
}

func fromJSONAction(a jsonAction) (ClientAction, error) {
	t, err := ParseActionType(a.Type)
	if err != nil {
		return ClientAction{}, err
	}
	return NewClientAction(t, a.Extra)
}

func encodeJSONFutureValue(v interface{}) (*jsonFutureValue, error) {
	switch value := v.(type) {
	case nil:
		return nil, nil
	case ClientAction:
		action := toJSONAction(value)
		return &jsonFutureValue{Kind: clientActionValueKind, Action: &action}, nil
	default:
		return nil, UnsupportedValueError{Value: v}
	}
}

func decodeJSONFutureValue(v *jsonFutureValue) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if v.Kind != clientActionValueKind {
		return nil, fmt.Errorf("unknown future value kind [%s]", v.Kind)
	}
	if v.Action == nil {
		return nil, fmt.Errorf("future value %s has no action", v.Kind)
	}
	return fromJSONAction(*v.Action)
}
