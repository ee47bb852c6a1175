package dispatch

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"voyager.com/comm/message"
	"voyager.com/comm/poker"
)

func drain(inbox <-chan []byte) [][]byte {
	var got [][]byte
	for {
		select {
		case data, ok := <-inbox:
			if !ok {
				return got
			}
			got = append(got, data)
		default:
			return got
		}
	}
}

func TestHoleCardsReachOnlyTheirPlayer(t *testing.T) {
	transport := NewInproc(16)
	inboxes := map[uint64]<-chan []byte{
		1: transport.Connect(1),
		2: transport.Connect(2),
		3: transport.Connect(3),
	}
	codec := message.NewJSONCodec()
	d := NewDispatcher("abc", transport, codec, nil)

	require.NoError(t, d.SendHoleCards(2, message.NewReceiveHoleCardsMessage(poker.NewCard("Ah"), poker.NewCard("As"))))
	require.NoError(t, d.BroadcastStateChange(message.NewStateChangeMessage(poker.GameState_PREFLOP)))

	for playerID, inbox := range inboxes {
		var kinds []message.Kind
		for _, data := range drain(inbox) {
			m, err := codec.Decode(data)
			require.NoError(t, err)
			kinds = append(kinds, m.Kind())
		}
		if playerID == 2 {
			assert.Equal(t, []message.Kind{message.KindReceiveHoleCards, message.KindStateChange}, kinds)
		} else {
			assert.Equal(t, []message.Kind{message.KindStateChange}, kinds, "player %d", playerID)
		}
	}
}

func TestSendToDisconnectedPlayer(t *testing.T) {
	transport := NewInproc(1)
	transport.Connect(1)
	transport.Disconnect(1)
	d := NewDispatcher("abc", transport, message.NewProtoCodec(), nil)

	request, err := message.NewRequestClientActionFutureMessage(uuid.New())
	require.NoError(t, err)
	err = d.SendActionRequest(1, request)
	assert.True(t, errors.Is(err, ErrPlayerNotConnected))
	assert.Empty(t, transport.Players())
}

func TestInboxFull(t *testing.T) {
	transport := NewInproc(1)
	transport.Connect(5)
	require.NoError(t, transport.SendToPlayer(5, []byte("one")))
	err := transport.SendToPlayer(5, []byte("two"))
	assert.True(t, errors.Is(err, ErrInboxFull))
}

func TestReconnectClosesOldInbox(t *testing.T) {
	transport := NewInproc(4)
	old := transport.Connect(9)
	fresh := transport.Connect(9)
	_, ok := <-old
	assert.False(t, ok)

	require.NoError(t, transport.SendToPlayer(9, []byte("x")))
	assert.Len(t, drain(fresh), 1)
}

func TestMessageLog(t *testing.T) {
	transport := NewInproc(8)
	transport.Connect(7)
	msgLog := NewMemoryMessageLog()
	d := NewDispatcher("abc", transport, message.NewJSONCodec(), msgLog)

	state := message.NewStateChangeMessage(poker.GameState_FLOP)
	require.NoError(t, d.BroadcastStateChange(state))
	raise, _ := message.RaiseTo(50)
	action, err := message.NewClientActionMessage(7, raise)
	require.NoError(t, err)
	require.NoError(t, d.SendClientAction(7, action))

	lines, err := msgLog.Load("abc")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"all " + state.String(),
		"player:7 " + action.String(),
	}, lines)

	require.NoError(t, msgLog.Remove("abc"))
	lines, err = msgLog.Load("abc")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestMemoryMessageLogIsBounded(t *testing.T) {
	msgLog := NewMemoryMessageLog()
	for i := 0; i < maxLogLines+10; i++ {
		require.NoError(t, msgLog.Append("abc", fmt.Sprintf("line %d", i)))
	}
	lines, err := msgLog.Load("abc")
	require.NoError(t, err)
	assert.Len(t, lines, maxLogLines)
	assert.Equal(t, "line 10", lines[0])
}

func TestUnsupportedValueIsNotSent(t *testing.T) {
	transport := NewInproc(4)
	inbox := transport.Connect(1)
	d := NewDispatcher("abc", transport, message.NewJSONCodec(), nil)

	reply, err := message.NewFutureMessage(uuid.New(), time.Second)
	require.NoError(t, err)
	err = d.SendFutureReply(1, reply)
	assert.True(t, errors.As(err, &message.UnsupportedValueError{}))
	assert.Empty(t, drain(inbox))
}

func TestRedisMessageLog(t *testing.T) {
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		t.Skip("REDIS_HOST is not set")
	}
	msgLog := NewRedisMessageLog(host+":6379", os.Getenv("REDIS_PW"), 0)
	defer msgLog.Close()

	gameCode := "test-" + strings.ReplaceAll(uuid.New().String(), "-", "")
	defer msgLog.Remove(gameCode)

	require.NoError(t, msgLog.Append(gameCode, "all one"))
	require.NoError(t, msgLog.Append(gameCode, "player:1 two"))
	lines, err := msgLog.Load(gameCode)
	require.NoError(t, err)
	assert.Equal(t, []string{"all one", "player:1 two"}, lines)
}
