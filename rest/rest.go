package rest

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"voyager.com/comm/future"
	"voyager.com/comm/message"
	"voyager.com/comm/poker"
	"voyager.com/comm/session"
	"voyager.com/comm/table"
)

var restLogger = log.With().Str("logger_name", "comm::rest").Logger()

//
// APP error definition
//
type appError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// HubLookup returns the websocket hub of a table. It is nil when players connect
// over NATS.
type HubLookup func(gameCode string) (*session.Hub, bool)

type server struct {
	manager *table.Manager
	hubFor  HubLookup
}

type gameRequest struct {
	GameCode string `json:"gameCode" binding:"required"`
}

type stateRequest struct {
	State string `json:"state" binding:"required"`
}

type cardsRequest struct {
	PlayerID uint64   `json:"playerId"`
	Cards    []string `json:"cards"`
}

type actionRequest struct {
	PlayerID uint64 `json:"playerId" binding:"required"`
	CanCheck bool   `json:"canCheck"`
}

type playersRequest struct {
	PlayerIDs []uint64 `json:"playerIds"`
}

type cancelRequest struct {
	FutureID string `json:"futureId" binding:"required"`
}

type actionJSON struct {
	Type  string `json:"type"`
	Extra int    `json:"extra"`
}

type actionResponse struct {
	FutureID     string     `json:"futureId"`
	Action       actionJSON `json:"action"`
	Rendered     string     `json:"rendered"`
	TimedOut     bool       `json:"timedOut"`
	Disconnected bool       `json:"disconnected"`
}

type pendingJSON struct {
	FutureID string `json:"futureId"`
	PlayerID uint64 `json:"playerId"`
	AgeMs    int64  `json:"ageMs"`
}

// NewRouter builds the HTTP surface the rules engine drives the tables through.
func NewRouter(manager *table.Manager, hubFor HubLookup) *gin.Engine {
	s := &server{manager: manager, hubFor: hubFor}
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "tables": len(manager.Tables())})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws/:gameCode/:playerID", s.connect)
	r.POST("/new-game", s.newGame)
	r.POST("/end-game", s.endGame)

	tables := r.Group("/tables/:gameCode")
	tables.POST("/players", s.setPlayers)
	tables.GET("/players", s.players)
	tables.POST("/state", s.state)
	tables.POST("/public-cards", s.publicCards)
	tables.POST("/hole-cards", s.holeCards)
	tables.POST("/request-action", s.requestAction)
	tables.POST("/cancel-future", s.cancelFuture)
	tables.GET("/pending", s.pending)
	tables.GET("/message-log", s.messageLog)
	return r
}

func RunRestServer(addr string, manager *table.Manager, hubFor HubLookup) error {
	restLogger.Info().Msg(fmt.Sprintf("Listening on %s", addr))
	return NewRouter(manager, hubFor).Run(addr)
}

func fail(c *gin.Context, code int, err error) {
	restLogger.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	c.AbortWithStatusJSON(code, appError{Code: code, Message: err.Error()})
}

func statusOf(err error) int {
	var invalid table.InvalidMessageError
	var validation message.ValidationError
	var cancelled future.CancelledError
	switch {
	case errors.Is(err, table.ErrTableNotFound):
		return http.StatusNotFound
	case errors.As(err, &invalid), errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &cancelled):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) table(c *gin.Context) (*table.Table, bool) {
	t, err := s.manager.GetTable(c.Param("gameCode"))
	if err != nil {
		fail(c, http.StatusNotFound, err)
		return nil, false
	}
	return t, true
}

func (s *server) connect(c *gin.Context) {
	if s.hubFor == nil {
		fail(c, http.StatusNotFound, errors.New("websocket sessions are not enabled"))
		return
	}
	gameCode := c.Param("gameCode")
	playerID, err := strconv.ParseUint(c.Param("playerID"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, errors.Errorf("invalid player id [%s]", c.Param("playerID")))
		return
	}
	t, ok := s.table(c)
	if !ok {
		return
	}
	hub, ok := s.hubFor(gameCode)
	if !ok {
		fail(c, http.StatusNotFound, errors.Wrapf(table.ErrTableNotFound, "game %s", gameCode))
		return
	}
	if err := hub.Accept(c.Writer, c.Request, playerID, t); err != nil {
		restLogger.Info().Err(err).Str("gameCode", gameCode).Uint64("playerID", playerID).Msg("Session ended")
	}
}

func (s *server) newGame(c *gin.Context) {
	var req gameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	t, err := s.manager.CreateTable(req.GameCode)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gameCode": t.GameCode(), "codec": t.Codec().Name()})
}

func (s *server) endGame(c *gin.Context) {
	var req gameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if err := s.manager.EndTable(req.GameCode); err != nil {
		fail(c, statusOf(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gameCode": req.GameCode, "status": "ended"})
}

func (s *server) setPlayers(c *gin.Context) {
	t, ok := s.table(c)
	if !ok {
		return
	}
	var req playersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	t.SetPlayers(req.PlayerIDs)
	c.JSON(http.StatusOK, playersRequest{PlayerIDs: t.Players()})
}

func (s *server) players(c *gin.Context) {
	t, ok := s.table(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, playersRequest{PlayerIDs: t.Players()})
}

func (s *server) state(c *gin.Context) {
	t, ok := s.table(c)
	if !ok {
		return
	}
	var req stateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	state, err := poker.ParseGameState(req.State)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if err := t.BroadcastState(state); err != nil {
		fail(c, statusOf(err), err)
		return
	}
	c.Status(http.StatusNoContent)
}

func parseCards(names []string) ([]poker.Card, error) {
	cards := make([]poker.Card, 0, len(names))
	for _, name := range names {
		card, err := poker.ParseCard(name)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

func (s *server) publicCards(c *gin.Context) {
	t, ok := s.table(c)
	if !ok {
		return
	}
	var req cardsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	cards, err := parseCards(req.Cards)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if err := t.BroadcastPublicCards(cards); err != nil {
		fail(c, statusOf(err), err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) holeCards(c *gin.Context) {
	t, ok := s.table(c)
	if !ok {
		return
	}
	var req cardsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if len(req.Cards) != 2 {
		fail(c, http.StatusBadRequest, errors.Errorf("expected 2 hole cards, got %d", len(req.Cards)))
		return
	}
	cards, err := parseCards(req.Cards)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if err := t.DealHoleCards(req.PlayerID, cards[0], cards[1]); err != nil {
		fail(c, statusOf(err), err)
		return
	}
	c.Status(http.StatusNoContent)
}

// requestAction blocks until the player answers or the fallback applies. Closing the
// HTTP request withdraws the action request.
func (s *server) requestAction(c *gin.Context) {
	t, ok := s.table(c)
	if !ok {
		return
	}
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	result, err := t.RequestAction(c.Request.Context(), req.PlayerID, req.CanCheck)
	if err != nil {
		fail(c, statusOf(err), err)
		return
	}
	c.JSON(http.StatusOK, actionResponse{
		FutureID:     result.FutureID.String(),
		Action:       actionJSON{Type: result.Action.Type.String(), Extra: result.Action.Extra},
		Rendered:     result.Action.String(),
		TimedOut:     result.TimedOut,
		Disconnected: result.Disconnected,
	})
}

func (s *server) cancelFuture(c *gin.Context) {
	t, ok := s.table(c)
	if !ok {
		return
	}
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if err := t.CancelFuture(req.FutureID); err != nil {
		fail(c, statusOf(err), err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) pending(c *gin.Context) {
	t, ok := s.table(c)
	if !ok {
		return
	}
	pending := t.Pending()
	out := make([]pendingJSON, 0, len(pending))
	for _, p := range pending {
		out = append(out, pendingJSON{FutureID: p.ID.String(), PlayerID: p.PlayerID, AgeMs: p.Age.Milliseconds()})
	}
	c.JSON(http.StatusOK, out)
}

func (s *server) messageLog(c *gin.Context) {
	t, ok := s.table(c)
	if !ok {
		return
	}
	lines, err := t.MessageLog()
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	if lines == nil {
		lines = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"gameCode": t.GameCode(), "lines": lines})
}
