// internal/api/handlers.go
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/SceneNovel/internal/models"
	"github.com/Corphon/SceneNovel/internal/services"
	"github.com/Corphon/SceneNovel/internal/utils"
)

// Handler serves the session HTTP API.
type Handler struct {
	Sessions         *services.SessionService
	WebSocket        *WebSocketManager
	WebSocketHandler *WebSocketHandler
	Metrics          *utils.MetricsCollector
	Response         *ResponseHelper
	Limiter          *RateLimiter
	startedAt        time.Time
}

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// AdvanceRequest moves a session; only the sign of Direction matters.
type AdvanceRequest struct {
	Direction *int `json:"direction" binding:"required"`
}

// ChoiceRequest selects a choice of the current scene.
type ChoiceRequest struct {
	Index *int `json:"index" binding:"required"`
}

// InputRequest answers an input request. An empty value advances without storing.
type InputRequest struct {
	Value *string `json:"value" binding:"required"`
}

// CreateSessionResponse is returned by CreateSession.
type CreateSessionResponse struct {
	SessionID string                  `json:"session_id"`
	Render    models.RenderDescriptor `json:"render"`
}

// NewHandler creates a handler. ws may be nil when WebSocket push is disabled.
func NewHandler(sessions *services.SessionService, ws *WebSocketManager, metrics *utils.MetricsCollector) *Handler {
	h := &Handler{
		Sessions:  sessions,
		WebSocket: ws,
		Metrics:   metrics,
		Response:  NewResponseHelper(),
		Limiter:   NewDefaultRateLimiter(),
		startedAt: time.Now(),
	}
	if ws != nil {
		h.WebSocketHandler = NewWebSocketHandler(sessions, ws)
	}
	return h
}

// Health reports liveness and the size of the served story.
func (h *Handler) Health(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"status":   "ok",
		"scenes":   h.Sessions.Graph().Len(),
		"sessions": h.Sessions.Count(),
		"uptime":   time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// GetStory outlines the story graph served to new sessions.
func (h *Handler) GetStory(c *gin.Context) {
	h.Response.Success(c, h.Sessions.Graph().Summary())
}

// CreateSession starts a session at scene 0.
func (h *Handler) CreateSession(c *gin.Context) {
	id, render, err := h.Sessions.Create()
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Created(c, CreateSessionResponse{SessionID: id, Render: render}, "session created")
}

// GetSession renders the current scene.
func (h *Handler) GetSession(c *gin.Context) {
	h.respondRender(c, func(id string) (models.RenderDescriptor, error) {
		return h.Sessions.Current(id)
	})
}

// Advance moves a session forward or backward.
func (h *Handler) Advance(c *gin.Context) {
	var req AdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "direction is required", err.Error())
		return
	}
	h.respondRender(c, func(id string) (models.RenderDescriptor, error) {
		return h.Sessions.Advance(id, *req.Direction)
	})
}

// SelectChoice follows a choice of the current scene. An index without a
// matching choice re-renders the current scene.
func (h *Handler) SelectChoice(c *gin.Context) {
	var req ChoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "index is required", err.Error())
		return
	}
	h.respondRender(c, func(id string) (models.RenderDescriptor, error) {
		return h.Sessions.SelectChoice(id, *req.Index)
	})
}

// SubmitInput answers the current input request.
func (h *Handler) SubmitInput(c *gin.Context) {
	var req InputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "value is required", err.Error())
		return
	}
	h.respondRender(c, func(id string) (models.RenderDescriptor, error) {
		return h.Sessions.SubmitInput(id, *req.Value)
	})
}

// GetEffects returns the side effects of the current scene.
func (h *Handler) GetEffects(c *gin.Context) {
	fx, err := h.Sessions.Effects(c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, fx)
}

// GetState returns a copy of the navigation state.
func (h *Handler) GetState(c *gin.Context) {
	st, err := h.Sessions.State(c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, st)
}

// GetSessionInfo describes a session without rendering it.
func (h *Handler) GetSessionInfo(c *gin.Context) {
	info, err := h.Sessions.Info(c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, info)
}

// ResetSession restarts a session from scene 0.
func (h *Handler) ResetSession(c *gin.Context) {
	h.respondRender(c, func(id string) (models.RenderDescriptor, error) {
		return h.Sessions.Reset(id)
	})
}

// DeleteSession ends a session and disconnects its WebSocket clients.
func (h *Handler) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.Sessions.Delete(id); err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"session_id": id}, "session deleted")
}

// GetMetrics exposes the metrics collector.
func (h *Handler) GetMetrics(c *gin.Context) {
	h.Response.Success(c, h.Metrics.GetMetrics())
}

// GetWebSocketStatus summarizes open WebSocket connections.
func (h *Handler) GetWebSocketStatus(c *gin.Context) {
	if h.WebSocket == nil {
		h.Response.Error(c, http.StatusNotFound, ErrorNotFound, "websocket push is disabled")
		return
	}
	h.Response.Success(c, h.WebSocket.GetStatus())
}

// SessionWebSocket serves /ws/sessions/:id.
func (h *Handler) SessionWebSocket(c *gin.Context) {
	if h.WebSocketHandler == nil {
		h.Response.Error(c, http.StatusNotFound, ErrorNotFound, "websocket push is disabled")
		return
	}
	h.WebSocketHandler.SessionWebSocket(c)
}

func (h *Handler) respondRender(c *gin.Context, op func(id string) (models.RenderDescriptor, error)) {
	render, err := op(c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, render)
}
