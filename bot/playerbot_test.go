package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/test"
	natsgo "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"voyager.com/comm/message"
	commnats "voyager.com/comm/nats"
	"voyager.com/comm/poker"
	"voyager.com/comm/table"
)

func startTable(t *testing.T, codec message.Codec) (*natsgo.Conn, string, *table.Table) {
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	s := natsserver.RunServer(&opts)
	nc, err := natsgo.Connect(s.ClientURL())
	require.NoError(t, err)

	tbl, err := table.New("abc", commnats.NewTransport(nc, "abc"), table.Config{
		ActionTimeout: 2 * time.Second,
		Codec:         codec,
	})
	require.NoError(t, err)
	listener, err := commnats.NewListener(nc, "abc", tbl)
	require.NoError(t, err)
	t.Cleanup(func() {
		listener.Close()
		tbl.Close()
		nc.Close()
		s.Shutdown()
	})
	return nc, s.ClientURL(), tbl
}

func waitFor(t *testing.T, cond func() bool) {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestBotAnswersActionRequest(t *testing.T) {
	for _, codec := range []message.Codec{message.NewJSONCodec(), message.NewProtoCodec()} {
		t.Run(codec.Name(), func(t *testing.T) {
			_, url, tbl := startTable(t, codec)
			var announced []message.ClientAction
			announcedCh := make(chan struct{}, 1)
			tbl.OnClientAction(func(playerID uint64, m *message.ClientActionMessage) {
				announced = append(announced, m.Action())
				announcedCh <- struct{}{}
			})

			b, err := NewPlayerBot(url, "abc", 7, codec)
			require.NoError(t, err)
			defer b.LeaveTable()
			raise, err := message.RaiseTo(50)
			require.NoError(t, err)
			b.SetDecider(func(View) message.ClientAction { return raise })
			require.NoError(t, b.JoinTable())

			result, err := tbl.RequestAction(context.Background(), 7, false)
			require.NoError(t, err)
			assert.Equal(t, raise, result.Action)
			assert.False(t, result.IsFallback())
			<-announcedCh
			assert.Equal(t, []message.ClientAction{raise}, announced)
			assert.Equal(t, 1, b.Replies())
		})
	}
}

func TestBotTracksHand(t *testing.T) {
	_, url, tbl := startTable(t, nil)
	b1, err := NewPlayerBot(url, "abc", 1, nil)
	require.NoError(t, err)
	defer b1.LeaveTable()
	require.NoError(t, b1.JoinTable())
	b2, err := NewPlayerBot(url, "abc", 2, nil)
	require.NoError(t, err)
	defer b2.LeaveTable()
	require.NoError(t, b2.JoinTable())

	require.NoError(t, tbl.BroadcastState(poker.GameState_PREFLOP))
	require.NoError(t, tbl.DealHoleCards(1, poker.NewCard("Ah"), poker.NewCard("Kh")))
	require.NoError(t, tbl.BroadcastState(poker.GameState_FLOP))
	require.NoError(t, tbl.BroadcastPublicCards([]poker.Card{poker.NewCard("Qs"), poker.NewCard("Js"), poker.NewCard("Ts")}))

	waitFor(t, func() bool { return len(b1.Received()) == 4 && len(b2.Received()) == 3 })

	view := b1.View()
	assert.Equal(t, poker.GameState_FLOP, view.State)
	assert.Equal(t, "[Ah Kh]", cardStrings(view.HoleCards))
	assert.Equal(t, "[Qs Js Ts]", cardStrings(view.PublicCards))

	// hole cards are private
	assert.Empty(t, b2.View().HoleCards)
	assert.Len(t, b2.View().PublicCards, 3)
}

func cardStrings(cards []poker.Card) string {
	s := make([]string, 0, len(cards))
	for _, c := range cards {
		s = append(s, c.String())
	}
	return "[" + strings.Join(s, " ") + "]"
}

func TestBotAnswersPing(t *testing.T) {
	nc, url, tbl := startTable(t, nil)
	b, err := NewPlayerBot(url, "abc", 4, nil)
	require.NoError(t, err)
	defer b.LeaveTable()
	require.NoError(t, b.JoinTable())

	check, err := commnats.NewNetworkCheck(nc, "abc", 20*time.Millisecond, tbl)
	require.NoError(t, err)
	check.SetPingTimeout(200 * time.Millisecond)
	check.SetPlayerIDs([]uint64{4})

	pongs, err := nc.SubscribeSync(commnats.GetPongSubject("abc"))
	require.NoError(t, err)
	check.Run()
	defer check.Destroy()

	msg, err := pongs.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Contains(t, string(msg.Data), `"playerId":4`)
}

func TestViewString(t *testing.T) {
	view := View{
		State:       poker.GameState_FLOP,
		HoleCards:   []poker.Card{poker.NewCard("Ah"), poker.NewCard("Kh")},
		PublicCards: []poker.Card{poker.NewCard("Qs"), poker.NewCard("Jd"), poker.NewCard("Tc")},
	}
	assert.Equal(t, "FLOP hole [ A❤  K❤ ] board [ Q♠  J♦  T♣ ]", view.String())
	assert.Equal(t, "STOPPED hole [] board []", View{}.String())
}
