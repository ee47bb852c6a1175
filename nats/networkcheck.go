package nats

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	natsgo "github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"voyager.com/comm/logging"
	"voyager.com/comm/util"
)

var networkCheckLogger = log.With().Str("logger_name", "nats::networkcheck").Logger()

// PingPongMessage goes out on ping.<gameCode> and comes back from every player on
// pong.<gameCode> with the same Seq and the player's id.
type PingPongMessage struct {
	GameCode string `json:"gameCode"`
	PlayerID uint64 `json:"playerId"`
	Seq      uint32 `json:"seq"`
}

type playerPingState struct {
	pongSeq      uint32
	pongRecvTime time.Time
	connLost     bool
}

// ConnectivityHandler learns which players stopped answering pings and which came
// back. *table.Table has PlayerDisconnected; main wires the rest.
type ConnectivityHandler interface {
	PlayerDisconnected(playerID uint64)
}

type NetworkCheck struct {
	logger                 zerolog.Logger
	gameCode               string
	nc                     *natsgo.Conn
	pongSub                *natsgo.Subscription
	chEndLoop              chan bool
	endOnce                sync.Once
	playerIDsToPing        atomic.Value // []uint64
	pingInterval           time.Duration
	pingTimeout            time.Duration
	pingStates             map[uint64]*playerPingState
	lastPingSeq            uint32
	pingStatesLock         sync.Mutex
	debugConnectivityCheck bool
	handler                ConnectivityHandler
	onRestored             func(playerIDs []uint64)
}

func NewNetworkCheck(nc *natsgo.Conn, gameCode string, pingInterval time.Duration, handler ConnectivityHandler) (*NetworkCheck, error) {
	n := &NetworkCheck{
		logger:                 networkCheckLogger.With().Str(logging.GameCodeKey, gameCode).Logger(),
		gameCode:               gameCode,
		nc:                     nc,
		chEndLoop:              make(chan bool),
		pingInterval:           pingInterval,
		pingTimeout:            time.Duration(util.Env.GetPingTimeout()) * time.Second,
		pingStates:             make(map[uint64]*playerPingState),
		debugConnectivityCheck: util.Env.ShouldDebugConnectivityCheck(),
		handler:                handler,
	}
	pongSubject := GetPongSubject(gameCode)
	sub, err := nc.Subscribe(pongSubject, n.player2Pong)
	if err != nil {
		n.logger.Error().Msg(fmt.Sprintf("Failed to subscribe to %s", pongSubject))
		return nil, errors.Wrapf(err, "subscribing to %s", pongSubject)
	}
	n.pongSub = sub
	return n, nil
}

// SetPingTimeout overrides PING_TIMEOUT.
func (n *NetworkCheck) SetPingTimeout(timeout time.Duration) {
	n.pingTimeout = timeout
}

// OnRestored is called with players that answer again after being reported lost.
func (n *NetworkCheck) OnRestored(fn func(playerIDs []uint64)) {
	n.onRestored = fn
}

func (n *NetworkCheck) Run() {
	go n.loop()
}

func (n *NetworkCheck) Destroy() {
	n.endOnce.Do(func() {
		close(n.chEndLoop)
		n.pongSub.Unsubscribe()
	})
}

func (n *NetworkCheck) loop() {
	defer n.logger.Info().Msg("Network check loop returning")

	var currentPingSeq uint32
	for {
		currentPingSeq++
		if !n.doPingCheck(currentPingSeq, n.getPlayerIDs()) {
			return
		}
		select {
		case <-n.chEndLoop:
			return
		case <-time.After(n.pingInterval):
		}
	}
}

func (n *NetworkCheck) SetPlayerIDs(playerIDs []uint64) {
	n.playerIDsToPing.Store(playerIDs)
}

func (n *NetworkCheck) getPlayerIDs() []uint64 {
	var playerIDs []uint64
	v := n.playerIDsToPing.Load()
	if v != nil {
		playerIDs = v.([]uint64)
	}
	return playerIDs
}

// doPingCheck pings, waits for the pongs and reports players that newly went silent.
// It returns false when the check was destroyed while waiting.
func (n *NetworkCheck) doPingCheck(pingSeq uint32, playerIDs []uint64) bool {
	if len(playerIDs) == 0 {
		return true
	}

	pingSentTime := func() time.Time {
		n.pingStatesLock.Lock()
		defer n.pingStatesLock.Unlock()
		pingStates := make(map[uint64]*playerPingState)
		for _, playerID := range playerIDs {
			ps, exists := n.pingStates[playerID]
			if !exists {
				ps = &playerPingState{}
			}
			pingStates[playerID] = ps
		}
		n.pingStates = pingStates
		n.lastPingSeq = pingSeq
		return time.Now()
	}()
	if err := n.broadcastPing(pingSeq); err != nil {
		n.logger.Error().Err(err).Msg("Unable to broadcast ping")
		return true
	}

	select {
	case <-n.chEndLoop:
		return false
	case <-time.After(n.pingTimeout):
	}

	var connLostPlayers []uint64
	func() {
		n.pingStatesLock.Lock()
		defer n.pingStatesLock.Unlock()
		for _, playerID := range playerIDs {
			ps := n.pingStates[playerID]
			if ps.pongSeq == pingSeq {
				if n.debugConnectivityCheck {
					n.logger.Info().Msgf("Player %d pong response time: %.3f seconds", playerID, ps.pongRecvTime.Sub(pingSentTime).Seconds())
				}
			} else if !ps.connLost {
				ps.connLost = true
				connLostPlayers = append(connLostPlayers, playerID)
			}
		}
	}()

	if len(connLostPlayers) > 0 {
		sort.Slice(connLostPlayers, func(i, j int) bool { return connLostPlayers[i] < connLostPlayers[j] })
		n.logger.Info().Msg(fmt.Sprintf("Connectivity lost: %v", connLostPlayers))
		for _, playerID := range connLostPlayers {
			n.handler.PlayerDisconnected(playerID)
		}
	}
	return true
}

func (n *NetworkCheck) broadcastPing(pingSeq uint32) error {
	data, err := jsoniter.Marshal(PingPongMessage{GameCode: n.gameCode, Seq: pingSeq})
	if err != nil {
		return err
	}
	if n.debugConnectivityCheck {
		n.logger.Info().Str(logging.SubjectKey, GetPingSubject(n.gameCode)).Msg(fmt.Sprintf("Ping->All: %s", string(data)))
	}
	return n.nc.Publish(GetPingSubject(n.gameCode), data)
}

func (n *NetworkCheck) player2Pong(msg *natsgo.Msg) {
	var pong PingPongMessage
	if err := jsoniter.Unmarshal(msg.Data, &pong); err != nil {
		n.logger.Warn().Err(err).Msg("Invalid pong message")
		return
	}
	n.onPlayerResponse(&pong)
}

func (n *NetworkCheck) onPlayerResponse(pong *PingPongMessage) {
	pongRecvTime := time.Now()
	if n.debugConnectivityCheck {
		n.logger.Info().Msgf("PONG %d from player %d at %s", pong.Seq, pong.PlayerID, pongRecvTime.Format(time.RFC3339))
	}

	restored := func() bool {
		n.pingStatesLock.Lock()
		defer n.pingStatesLock.Unlock()

		ps, exists := n.pingStates[pong.PlayerID]
		if !exists {
			return false
		}
		if pong.Seq > ps.pongSeq {
			ps.pongSeq = pong.Seq
			ps.pongRecvTime = pongRecvTime
		}
		// A late pong for an earlier ping says nothing about the player now.
		if ps.connLost && pong.Seq == n.lastPingSeq {
			ps.connLost = false
			return true
		}
		return false
	}()

	if restored {
		n.logger.Info().Uint64(logging.PlayerIDKey, pong.PlayerID).Msg("Connectivity restored")
		if n.onRestored != nil {
			n.onRestored([]uint64{pong.PlayerID})
		}
	}
}
