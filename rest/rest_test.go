package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"voyager.com/comm/dispatch"
	"voyager.com/comm/message"
	"voyager.com/comm/session"
	"voyager.com/comm/table"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type inprocTransports struct {
	lock       sync.Mutex
	transports map[string]*dispatch.Inproc
}

func (i *inprocTransports) factory(gameCode string) (dispatch.Transport, error) {
	i.lock.Lock()
	defer i.lock.Unlock()
	t := dispatch.NewInproc(16)
	i.transports[gameCode] = t
	return t, nil
}

func (i *inprocTransports) get(gameCode string) *dispatch.Inproc {
	i.lock.Lock()
	defer i.lock.Unlock()
	return i.transports[gameCode]
}

func newTestRouter(t *testing.T, timeout time.Duration) (*gin.Engine, *table.Manager, *inprocTransports) {
	transports := &inprocTransports{transports: make(map[string]*dispatch.Inproc)}
	manager := table.NewManager(transports.factory, table.Config{
		ActionTimeout: timeout,
		MessageLog:    dispatch.NewMemoryMessageLog(),
	})
	t.Cleanup(manager.CloseAll)
	return NewRouter(manager, nil), manager, transports
}

func do(r http.Handler, method string, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func nextMessage(t *testing.T, inbox <-chan []byte) message.Message {
	select {
	case data := <-inbox:
		m, err := message.NewJSONCodec().Decode(data)
		require.NoError(t, err)
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no message arrived")
		return nil
	}
}

func TestReadyAndMetrics(t *testing.T) {
	r, _, _ := newTestRouter(t, time.Second)
	w := do(r, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","tables":0}`, w.Body.String())

	w = do(r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGameLifecycle(t *testing.T) {
	r, manager, _ := newTestRouter(t, time.Second)

	w := do(r, http.MethodPost, "/new-game", gin.H{"gameCode": "abc"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"gameCode":"abc","codec":"json"}`, w.Body.String())
	assert.Equal(t, []string{"abc"}, manager.Tables())

	w = do(r, http.MethodPost, "/new-game", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/end-game", gin.H{"gameCode": "abc"})
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodPost, "/end-game", gin.H{"gameCode": "abc"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPost, "/tables/abc/state", gin.H{"state": "FLOP"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlayers(t *testing.T) {
	r, _, _ := newTestRouter(t, time.Second)
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/new-game", gin.H{"gameCode": "abc"}).Code)

	w := do(r, http.MethodPost, "/tables/abc/players", gin.H{"playerIds": []uint64{4, 2, 4}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"playerIds":[2,4]}`, w.Body.String())

	w = do(r, http.MethodGet, "/tables/abc/players", nil)
	assert.JSONEq(t, `{"playerIds":[2,4]}`, w.Body.String())
}

func TestTableMessages(t *testing.T) {
	r, _, transports := newTestRouter(t, time.Second)
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/new-game", gin.H{"gameCode": "abc"}).Code)
	p1 := transports.get("abc").Connect(1)
	p2 := transports.get("abc").Connect(2)

	tests := []struct {
		path string
		body interface{}
		code int
	}{
		{"/tables/abc/hole-cards", gin.H{"playerId": 1, "cards": []string{"Ah", "Kh"}}, http.StatusNoContent},
		{"/tables/abc/state", gin.H{"state": "FLOP"}, http.StatusNoContent},
		{"/tables/abc/public-cards", gin.H{"cards": []string{"Qs", "Js", "Ts"}}, http.StatusNoContent},
		{"/tables/abc/state", gin.H{"state": "SHOWDOWN"}, http.StatusBadRequest},
		{"/tables/abc/public-cards", gin.H{"cards": []string{}}, http.StatusBadRequest},
		{"/tables/abc/public-cards", gin.H{"cards": []string{"Zz"}}, http.StatusBadRequest},
		{"/tables/abc/hole-cards", gin.H{"playerId": 1, "cards": []string{"Ah"}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := do(r, http.MethodPost, tt.path, tt.body)
		assert.Equal(t, tt.code, w.Code, "%s %v: %s", tt.path, tt.body, w.Body.String())
	}

	assert.Equal(t, message.KindReceiveHoleCards, nextMessage(t, p1).Kind())
	assert.Equal(t, message.KindStateChange, nextMessage(t, p1).Kind())
	assert.Equal(t, message.KindReceivePublicCards, nextMessage(t, p1).Kind())
	assert.Equal(t, message.KindStateChange, nextMessage(t, p2).Kind())
	assert.Equal(t, message.KindReceivePublicCards, nextMessage(t, p2).Kind())

	w := do(r, http.MethodGet, "/tables/abc/message-log", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Lines []string `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Lines, 3)
	assert.True(t, strings.HasPrefix(body.Lines[0], "player:1 ReceiveHoleCardsMessage@"))
	assert.True(t, strings.HasPrefix(body.Lines[1], "all StateChangeMessage@"))
}

func TestRequestAction(t *testing.T) {
	r, manager, transports := newTestRouter(t, 2*time.Second)
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/new-game", gin.H{"gameCode": "abc"}).Code)
	tbl, err := manager.GetTable("abc")
	require.NoError(t, err)
	inbox := transports.get("abc").Connect(7)

	go func() {
		request := nextMessage(t, inbox).(*message.RequestClientActionFutureMessage)
		call, _ := message.CallAt(20)
		reply, _ := message.NewFutureMessage(request.FutureID(), call)
		assert.NoError(t, tbl.HandleMessage(7, reply))
	}()

	w := do(r, http.MethodPost, "/tables/abc/request-action", gin.H{"playerId": 7})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp actionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "CallAt", resp.Action.Type)
	assert.Equal(t, 20, resp.Action.Extra)
	assert.Equal(t, "CallAt(20)", resp.Rendered)
	assert.False(t, resp.TimedOut)
}

func TestRequestActionFallback(t *testing.T) {
	r, _, transports := newTestRouter(t, 30*time.Millisecond)
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/new-game", gin.H{"gameCode": "abc"}).Code)
	transports.get("abc").Connect(7)

	w := do(r, http.MethodPost, "/tables/abc/request-action", gin.H{"playerId": 7, "canCheck": true})
	require.Equal(t, http.StatusOK, w.Code)
	var resp actionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Check", resp.Rendered)
	assert.True(t, resp.TimedOut)

	w = do(r, http.MethodPost, "/tables/abc/request-action", gin.H{"playerId": 8})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Fold", resp.Rendered)
	assert.True(t, resp.Disconnected)
}

func TestPendingAndCancel(t *testing.T) {
	r, _, transports := newTestRouter(t, time.Minute)
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/new-game", gin.H{"gameCode": "abc"}).Code)
	transports.get("abc").Connect(7)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- do(r, http.MethodPost, "/tables/abc/request-action", gin.H{"playerId": 7})
	}()

	var pending []pendingJSON
	deadline := time.Now().Add(2 * time.Second)
	for len(pending) == 0 && time.Now().Before(deadline) {
		w := do(r, http.MethodGet, "/tables/abc/pending", nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pending))
		time.Sleep(5 * time.Millisecond)
	}
	require.Len(t, pending, 1)
	assert.EqualValues(t, 7, pending[0].PlayerID)

	w := do(r, http.MethodPost, "/tables/abc/cancel-future", gin.H{"futureId": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r, http.MethodPost, "/tables/abc/cancel-future", gin.H{"futureId": pending[0].FutureID})
	assert.Equal(t, http.StatusNoContent, w.Code)

	select {
	case w := <-done:
		assert.Equal(t, http.StatusConflict, w.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("request-action did not return")
	}
}

func TestWebsocketDisabled(t *testing.T) {
	r, _, _ := newTestRouter(t, time.Second)
	w := do(r, http.MethodGet, "/ws/abc/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebsocketSession(t *testing.T) {
	var hubs sync.Map
	manager := table.NewManager(func(gameCode string) (dispatch.Transport, error) {
		return session.NewHub(gameCode, session.Config{}), nil
	}, table.Config{ActionTimeout: 2 * time.Second})
	manager.OnTableCreated(func(t *table.Table, transport dispatch.Transport) {
		hubs.Store(t.GameCode(), transport)
	})
	defer manager.CloseAll()
	hubFor := func(gameCode string) (*session.Hub, bool) {
		hub, ok := hubs.Load(gameCode)
		if !ok {
			return nil, false
		}
		return hub.(*session.Hub), true
	}
	srv := httptest.NewServer(NewRouter(manager, hubFor))
	defer srv.Close()

	tbl, err := manager.CreateTable("abc")
	require.NoError(t, err)
	hub, _ := hubFor("abc")
	defer hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/abc/7"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	go func() {
		_, data, err := conn.Read(ctx)
		if !assert.NoError(t, err) {
			return
		}
		m, err := tbl.Codec().Decode(data)
		if !assert.NoError(t, err) {
			return
		}
		request := m.(*message.RequestClientActionFutureMessage)
		reply, _ := message.NewFutureMessage(request.FutureID(), message.Fold())
		out, _ := tbl.Codec().Encode(reply)
		assert.NoError(t, conn.Write(ctx, websocket.MessageText, out))
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(hub.Players()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	result, err := tbl.RequestAction(ctx, 7, false)
	require.NoError(t, err)
	assert.Equal(t, message.Fold(), result.Action)
	assert.False(t, result.IsFallback())

	_, _, err = websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/nope/7", nil)
	assert.Error(t, err)
}
