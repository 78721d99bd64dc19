package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/SceneNovel/internal/config"
	"github.com/Corphon/SceneNovel/internal/models"
	"github.com/Corphon/SceneNovel/internal/services"
	"github.com/Corphon/SceneNovel/internal/story"
	"github.com/Corphon/SceneNovel/internal/utils"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	utils.GetLogger().SetLogLevel(utils.ERROR)
	os.Exit(m.Run())
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	RequestID string          `json:"request_id"`
}

type testServer struct {
	router   *gin.Engine
	sessions *services.SessionService
	ws       *WebSocketManager
	limiter  *RateLimiter
}

// branchGraph: a choice at 0 leads to an accept branch (input, greeting) or a
// decline branch (sound).
func branchGraph(t *testing.T) *story.Graph {
	t.Helper()
	b := story.NewBuilder().WithLogger(utils.NewLogger(io.Discard, utils.ERROR))
	b.Dialogue("Ari", "Will you help?")
	b.AddChoice("Yes", 1)
	b.AddChoice("No", 3)
	b.SetPath("accept")
	b.RequestInput("Your name?", "n")
	b.Dialogue("Ari", "Hi {n}")
	b.SetPath("decline")
	b.PlaySound("sad.wav")
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}
	sessions := services.NewSessionService(branchGraph(t), services.SessionOptions{})
	ws := NewWebSocketManager(cfg.OriginAllowed)
	t.Cleanup(ws.Shutdown)
	sessions.SetDispatcher(ws)

	handler := NewHandler(sessions, ws, utils.NewMetricsCollector())
	return &testServer{router: NewRouter(cfg, handler), sessions: sessions, ws: ws, limiter: handler.Limiter}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestServer(t, nil)

	w, env := s.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeData[CreateSessionResponse](t, env)
	require.NotEmpty(t, created.SessionID)
	assert.Equal(t, 0, created.Render.SceneIndex)
	assert.Len(t, created.Render.Choices, 2)
	assert.NotEmpty(t, env.RequestID)

	base := "/api/sessions/" + created.SessionID

	w, env = s.do(t, http.MethodPost, base+"/choice", gin.H{"index": 0})
	require.Equal(t, http.StatusOK, w.Code)
	r := decodeData[models.RenderDescriptor](t, env)
	assert.Equal(t, 1, r.SceneIndex)
	require.NotNil(t, r.InputPrompt)
	assert.False(t, r.NavEnabled)

	w, env = s.do(t, http.MethodPost, base+"/input", gin.H{"value": "Sam"})
	require.Equal(t, http.StatusOK, w.Code)
	r = decodeData[models.RenderDescriptor](t, env)
	assert.Equal(t, 2, r.SceneIndex)
	assert.Equal(t, "Hi Sam", r.Text)

	_, env = s.do(t, http.MethodPost, base+"/advance", gin.H{"direction": 1})
	r = decodeData[models.RenderDescriptor](t, env)
	assert.Equal(t, 2, r.SceneIndex, "decline scene stays gated")

	_, env = s.do(t, http.MethodPost, base+"/advance", gin.H{"direction": -5})
	r = decodeData[models.RenderDescriptor](t, env)
	assert.Equal(t, 1, r.SceneIndex)

	_, env = s.do(t, http.MethodGet, base+"/state", nil)
	var st struct {
		Index       int               `json:"index"`
		Variables   map[string]string `json:"variables"`
		ActivePaths []string          `json:"active_paths"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, 1, st.Index)
	assert.Equal(t, map[string]string{"n": "Sam"}, st.Variables)
	assert.Equal(t, []string{"accept"}, st.ActivePaths)

	_, env = s.do(t, http.MethodGet, base, nil)
	r = decodeData[models.RenderDescriptor](t, env)
	assert.Equal(t, 1, r.SceneIndex)

	_, env = s.do(t, http.MethodGet, base+"/info", nil)
	info := decodeData[services.SessionInfo](t, env)
	assert.Equal(t, created.SessionID, info.ID)
	assert.Equal(t, 4, info.SceneCount)

	w, env = s.do(t, http.MethodPost, base+"/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	r = decodeData[models.RenderDescriptor](t, env)
	assert.Equal(t, 0, r.SceneIndex)

	w, _ = s.do(t, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrorSessionNotFound, env.Error.Code)
}

func TestEffectsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	id, _, err := s.sessions.Create()
	require.NoError(t, err)

	_, err = s.sessions.SelectChoice(id, 1)
	require.NoError(t, err)

	w, env := s.do(t, http.MethodGet, "/api/sessions/"+id+"/effects", nil)
	require.Equal(t, http.StatusOK, w.Code)
	fx := decodeData[models.SideEffects](t, env)
	assert.Equal(t, 3, fx.SceneIndex)
	assert.Equal(t, "sad.wav", fx.AudioFile)
	assert.Empty(t, fx.Motors)
}

func TestBadRequests(t *testing.T) {
	s := newTestServer(t, nil)
	id, _, err := s.sessions.Create()
	require.NoError(t, err)
	base := "/api/sessions/" + id

	tests := []struct {
		name string
		path string
		body interface{}
	}{
		{"advance without direction", base + "/advance", gin.H{}},
		{"advance malformed", base + "/advance", "{"},
		{"choice without index", base + "/choice", gin.H{"idx": 1}},
		{"choice wrong type", base + "/choice", gin.H{"index": "one"}},
		{"input without value", base + "/input", gin.H{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := s.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, ErrorBadRequest, env.Error.Code)
			assert.False(t, env.Success)
		})
	}

	w, env := s.do(t, http.MethodPost, "/api/sessions/missing/advance", gin.H{"direction": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrorSessionNotFound, env.Error.Code)

	w, env = s.do(t, http.MethodDelete, "/api/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrorSessionNotFound, env.Error.Code)
}

func TestOutOfRangeChoiceRerenders(t *testing.T) {
	s := newTestServer(t, nil)
	id, _, err := s.sessions.Create()
	require.NoError(t, err)

	w, env := s.do(t, http.MethodPost, "/api/sessions/"+id+"/choice", gin.H{"index": 7})
	require.Equal(t, http.StatusOK, w.Code)
	r := decodeData[models.RenderDescriptor](t, env)
	assert.Equal(t, 0, r.SceneIndex)
}

func TestSessionLimitIsConflict(t *testing.T) {
	sessions := services.NewSessionService(branchGraph(t), services.SessionOptions{MaxSessions: 1})
	router := NewRouter(&config.Config{}, NewHandler(sessions, nil, utils.NewMetricsCollector()))
	s := &testServer{router: router, sessions: sessions}

	w, _ := s.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w, env := s.do(t, http.MethodPost, "/api/sessions", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, ErrorSessionLimit, env.Error.Code)

	w, _ = s.do(t, http.MethodGet, "/ws/sessions/x", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "websocket disabled without a manager")
}

func TestStoryHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	w, env := s.do(t, http.MethodGet, "/api/story", nil)
	require.Equal(t, http.StatusOK, w.Code)
	sum := decodeData[story.Summary](t, env)
	assert.Equal(t, 4, sum.SceneCount)
	assert.Equal(t, []string{"accept", "decline"}, sum.Paths)
	assert.Equal(t, []int{1, 3}, sum.Scenes[0].Targets)

	_, _, err := s.sessions.Create()
	require.NoError(t, err)

	_, env = s.do(t, http.MethodGet, "/api/health", nil)
	health := decodeData[map[string]interface{}](t, env)
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 4, health["scenes"])
	assert.EqualValues(t, 1, health["sessions"])

	w, _ = s.do(t, http.MethodGet, "/api/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(t, http.MethodGet, "/api/ws/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	status := decodeData[map[string]interface{}](t, env)
	assert.EqualValues(t, 0, status["total_connections"])
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, &config.Config{AllowedOrigins: []string{"http://ok.test"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	req.Header.Set("Origin", "http://ok.test")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://ok.test", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://evil.test")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "req-42", env.RequestID)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }

	ok, remaining, _ := rl.Allow("a")
	assert.True(t, ok)
	assert.Equal(t, 1, remaining)
	ok, _, _ = rl.Allow("a")
	assert.True(t, ok)
	ok, _, _ = rl.Allow("a")
	assert.False(t, ok)

	ok, _, _ = rl.Allow("b")
	assert.True(t, ok, "keys are independent")

	clock = clock.Add(2 * time.Minute)
	assert.Equal(t, 2, rl.Cleanup())
	ok, _, _ = rl.Allow("a")
	assert.True(t, ok)
}

func TestRateLimiterCleanupRunsOnTicker(t *testing.T) {
	rl := NewRateLimiter(5, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl.StartCleanup(ctx, 5*time.Millisecond)

	for i := 0; i < 1000; i++ {
		rl.Allow(strconv.Itoa(i))
	}
	assert.Eventually(t, func() bool { return rl.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestRouterUsesHandlerLimiter(t *testing.T) {
	s := newTestServer(t, nil)
	assert.Equal(t, 0, s.limiter.Len())

	w, _ := s.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, s.limiter.Len())
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(NewRateLimiter(1, time.Minute), func(*gin.Context) string { return "k" }))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}
