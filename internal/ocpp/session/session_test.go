package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocpp-central/central-system/internal/ocpp/codec"
	"github.com/ocpp-central/central-system/internal/ocpperrors"
)

// fakeDispatcher maps actions to handlers for tests, mirroring the real
// handlers.Handlers dispatch table without its dependencies.
type fakeDispatcher struct {
	table map[codec.Action]Handler
}

func (f *fakeDispatcher) Dispatch(action codec.Action) (Handler, bool) {
	h, ok := f.table[action]
	return h, ok
}

func newTestServer(t *testing.T, dispatch Dispatcher) (*httptest.Server, *Session) {
	t.Helper()
	upgrader := websocket.Upgrader{
		Subprotocols: []string{"ocpp1.6"},
	}
	var sess *Session
	sessCh := make(chan *Session, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		s := New("CP-1", conn, dispatch, DefaultConfig(), zerolog.Nop())
		sessCh <- s
		s.Run()
	}))
	sess = <-sessCh
	return server, sess
}

func dialClient(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/"
	dialer := websocket.Dialer{Subprotocols: []string{"ocpp1.6"}}
	conn, _, err := dialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestSession_HandlesCallAndRespondsWithResult(t *testing.T) {
	dispatch := &fakeDispatcher{table: map[codec.Action]Handler{
		codec.ActionHeartbeat: func(ctx context.Context, s *Session, raw json.RawMessage) (interface{}, *ocpperrors.CallError) {
			return codec.HeartbeatResp{CurrentTime: codec.NewDateTime(time.Now())}, nil
		},
	}}
	server, _ := newTestServer(t, dispatch)
	defer server.Close()

	client := dialClient(t, server)
	defer client.Close()

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`[2,"msg-1","Heartbeat",{}]`)))

	_, raw, err := client.ReadMessage()
	require.NoError(t, err)

	frame, err := codec.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, codec.CallResult, frame.Type)
	assert.Equal(t, "msg-1", frame.MessageID)
}

func TestSession_UnknownActionReturnsCallError(t *testing.T) {
	dispatch := &fakeDispatcher{table: map[codec.Action]Handler{}}
	server, _ := newTestServer(t, dispatch)
	defer server.Close()

	client := dialClient(t, server)
	defer client.Close()

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`[2,"msg-1","SomeUnknownAction",{}]`)))

	_, raw, err := client.ReadMessage()
	require.NoError(t, err)

	frame, err := codec.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, codec.CallError, frame.Type)
	assert.Equal(t, "NotImplemented", frame.ErrCode)
}

func TestSession_MalformedFrameReturnsFormationViolation(t *testing.T) {
	dispatch := &fakeDispatcher{table: map[codec.Action]Handler{}}
	server, _ := newTestServer(t, dispatch)
	defer server.Close()

	client := dialClient(t, server)
	defer client.Close()

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`not json at all`)))

	_, raw, err := client.ReadMessage()
	require.NoError(t, err)

	frame, err := codec.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, codec.CallError, frame.Type)
	assert.Equal(t, "FormationViolation", frame.ErrCode)
}

func TestSession_PanicInHandlerBecomesInternalError(t *testing.T) {
	dispatch := &fakeDispatcher{table: map[codec.Action]Handler{
		codec.ActionHeartbeat: func(ctx context.Context, s *Session, raw json.RawMessage) (interface{}, *ocpperrors.CallError) {
			panic("boom")
		},
	}}
	server, _ := newTestServer(t, dispatch)
	defer server.Close()

	client := dialClient(t, server)
	defer client.Close()

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`[2,"msg-1","Heartbeat",{}]`)))

	_, raw, err := client.ReadMessage()
	require.NoError(t, err)

	frame, err := codec.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, codec.CallError, frame.Type)
	assert.Equal(t, "InternalError", frame.ErrCode)
}

func TestSession_SurvivesBadMessage(t *testing.T) {
	dispatch := &fakeDispatcher{table: map[codec.Action]Handler{
		codec.ActionHeartbeat: func(ctx context.Context, s *Session, raw json.RawMessage) (interface{}, *ocpperrors.CallError) {
			return codec.HeartbeatResp{CurrentTime: codec.NewDateTime(time.Now())}, nil
		},
	}}
	server, sess := newTestServer(t, dispatch)
	defer server.Close()

	client := dialClient(t, server)
	defer client.Close()

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`garbage`)))
	_, _, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, Active, sess.State())

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`[2,"msg-2","Heartbeat",{}]`)))
	_, raw, err := client.ReadMessage()
	require.NoError(t, err)
	frame, err := codec.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, codec.CallResult, frame.Type)
	assert.Equal(t, Active, sess.State())
}

func TestSession_EvictWithCodeClosesSocket(t *testing.T) {
	dispatch := &fakeDispatcher{table: map[codec.Action]Handler{}}
	server, sess := newTestServer(t, dispatch)
	defer server.Close()

	client := dialClient(t, server)
	defer client.Close()

	sess.EvictWithCode(1012, "superseded by new connection")

	_, _, err := client.ReadMessage()
	assert.Error(t, err)
	closeErr, ok := err.(*websocket.CloseError)
	if ok {
		assert.Equal(t, 1012, closeErr.Code)
	}

	require.Eventually(t, func() bool {
		return sess.State() == Closed
	}, time.Second, 10*time.Millisecond)
}

func TestSession_DuplicateMessageIDFromStationHandledTwice(t *testing.T) {
	callCount := 0
	dispatch := &fakeDispatcher{table: map[codec.Action]Handler{
		codec.ActionHeartbeat: func(ctx context.Context, s *Session, raw json.RawMessage) (interface{}, *ocpperrors.CallError) {
			callCount++
			return codec.HeartbeatResp{CurrentTime: codec.NewDateTime(time.Now())}, nil
		},
	}}
	server, _ := newTestServer(t, dispatch)
	defer server.Close()

	client := dialClient(t, server)
	defer client.Close()

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`[2,"dup-1","Heartbeat",{}]`)))
	_, _, err := client.ReadMessage()
	require.NoError(t, err)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`[2,"dup-1","Heartbeat",{}]`)))
	_, raw, err := client.ReadMessage()
	require.NoError(t, err)

	frame, err := codec.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "dup-1", frame.MessageID)
	assert.Equal(t, 2, callCount)
}
