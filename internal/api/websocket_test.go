package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/SceneNovel/internal/models"
)

type wsFrame struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	Code      string          `json:"code"`
}

func dialSession(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/" + id
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f wsFrame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

// readUntil skips frames until one of type want arrives and returns it along
// with the frames skipped.
func readUntil(t *testing.T, conn *websocket.Conn, want string) (wsFrame, []wsFrame) {
	t.Helper()
	var skipped []wsFrame
	for i := 0; i < 10; i++ {
		f := readFrame(t, conn)
		if f.Type == want {
			return f, skipped
		}
		skipped = append(skipped, f)
	}
	t.Fatalf("no %q frame received", want)
	return wsFrame{}, nil
}

func TestWebSocketNavigation(t *testing.T) {
	s := newTestServer(t, nil)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	id, _, err := s.sessions.Create()
	require.NoError(t, err)
	conn := dialSession(t, srv, id)

	assert.Equal(t, MessageConnected, readFrame(t, conn).Type)
	f := readFrame(t, conn)
	require.Equal(t, MessageRender, f.Type)
	assert.Equal(t, id, f.SessionID)
	var r models.RenderDescriptor
	require.NoError(t, json.Unmarshal(f.Data, &r))
	assert.Equal(t, 0, r.SceneIndex)

	require.NoError(t, conn.WriteJSON(WSCommand{Action: ActionChoice, Index: intPtr(1)}))
	f, skipped := readUntil(t, conn, MessageRender)
	require.NoError(t, json.Unmarshal(f.Data, &r))
	assert.Equal(t, 3, r.SceneIndex)

	require.Len(t, skipped, 1, "effects precede the render")
	assert.Equal(t, MessageEffects, skipped[0].Type)
	var fx models.SideEffects
	require.NoError(t, json.Unmarshal(skipped[0].Data, &fx))
	assert.Equal(t, "sad.wav", fx.AudioFile)

	require.NoError(t, conn.WriteJSON(WSCommand{Action: ActionAdvance, Direction: -1}))
	f = readFrame(t, conn)
	require.Equal(t, MessageRender, f.Type, "scene 0 has no effects to push")
	require.NoError(t, json.Unmarshal(f.Data, &r))
	assert.Equal(t, 0, r.SceneIndex)

	require.NoError(t, conn.WriteJSON(WSCommand{Action: ActionCurrent}))
	assert.Equal(t, MessageRender, readFrame(t, conn).Type)

	require.NoError(t, conn.WriteJSON(WSCommand{Action: ActionPing}))
	assert.Equal(t, MessagePong, readFrame(t, conn).Type)
}

func TestWebSocketInput(t *testing.T) {
	s := newTestServer(t, nil)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	id, _, err := s.sessions.Create()
	require.NoError(t, err)
	_, err = s.sessions.SelectChoice(id, 0)
	require.NoError(t, err)

	conn := dialSession(t, srv, id)
	readUntil(t, conn, MessageRender)

	require.NoError(t, conn.WriteJSON(WSCommand{Action: ActionInput, Value: "Mara"}))
	f, _ := readUntil(t, conn, MessageRender)
	var r models.RenderDescriptor
	require.NoError(t, json.Unmarshal(f.Data, &r))
	assert.Equal(t, "Hi Mara", r.Text)
}

func TestWebSocketErrors(t *testing.T) {
	s := newTestServer(t, nil)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	id, _, err := s.sessions.Create()
	require.NoError(t, err)
	conn := dialSession(t, srv, id)
	readUntil(t, conn, MessageRender)

	require.NoError(t, conn.WriteJSON(WSCommand{Action: "jump"}))
	f := readFrame(t, conn)
	assert.Equal(t, MessageError, f.Type)
	assert.Equal(t, ErrorUnknownAction, f.Code)

	require.NoError(t, conn.WriteJSON(WSCommand{Action: ActionChoice}))
	f = readFrame(t, conn)
	assert.Equal(t, ErrorChoiceInvalid, f.Code)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	f = readFrame(t, conn)
	assert.Equal(t, ErrorMessageFormat, f.Code)
}

func TestWebSocketUnknownSession(t *testing.T) {
	s := newTestServer(t, nil)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteClosesWebSocket(t *testing.T) {
	s := newTestServer(t, nil)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	id, _, err := s.sessions.Create()
	require.NoError(t, err)
	conn := dialSession(t, srv, id)
	readUntil(t, conn, MessageRender)
	assert.Equal(t, 1, s.ws.ClientCount(id))

	w, _ := s.do(t, http.MethodDelete, "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.Eventually(t, func() bool { return s.ws.ClientCount(id) == 0 }, time.Second, 10*time.Millisecond)
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	s := newTestServer(t, nil)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	id, _, err := s.sessions.Create()
	require.NoError(t, err)
	a := dialSession(t, srv, id)
	b := dialSession(t, srv, id)
	readUntil(t, a, MessageRender)
	readUntil(t, b, MessageRender)

	s.ws.DispatchEffects(id, models.SideEffects{SceneIndex: 9, AudioFile: "x.wav"})
	for _, conn := range []*websocket.Conn{a, b} {
		f := readFrame(t, conn)
		assert.Equal(t, MessageEffects, f.Type)
		assert.Equal(t, id, f.SessionID)
	}
	assert.Equal(t, 0, s.ws.BroadcastToSession("other", WSMessage{Type: MessageEffects}))
}

func TestClientExpiry(t *testing.T) {
	c := &WebSocketClient{done: make(chan struct{})}
	c.UpdatePing()
	assert.False(t, c.IsExpired(time.Minute))
	assert.True(t, c.IsExpired(0))

	c.Close()
	c.Close()
	assert.True(t, c.IsClosed())
	assert.False(t, c.SendMessage(WSMessage{Type: MessagePong}))
}

func intPtr(i int) *int { return &i }
