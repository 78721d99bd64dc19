// internal/api/websocket_handlers.go
package api

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	apperrors "github.com/Corphon/SceneNovel/internal/errors"
	"github.com/Corphon/SceneNovel/internal/models"
	"github.com/Corphon/SceneNovel/internal/services"
	"github.com/Corphon/SceneNovel/internal/utils"
)

// Incoming actions.
const (
	ActionAdvance = "advance"
	ActionChoice  = "choice"
	ActionInput   = "input"
	ActionCurrent = "current"
	ActionPing    = "ping"
)

// WSCommand is a navigation request sent by a client.
type WSCommand struct {
	Action    string `json:"action"`
	Direction int    `json:"direction"`
	Index     *int   `json:"index"`
	Value     string `json:"value"`
}

// WebSocketHandler drives sessions over WebSocket connections.
type WebSocketHandler struct {
	sessions *services.SessionService
	manager  *WebSocketManager
	response *ResponseHelper
	logger   *utils.Logger
}

// NewWebSocketHandler creates a handler bound to a session service and manager.
func NewWebSocketHandler(sessions *services.SessionService, manager *WebSocketManager) *WebSocketHandler {
	return &WebSocketHandler{
		sessions: sessions,
		manager:  manager,
		response: NewResponseHelper(),
		logger:   utils.GetLogger(),
	}
}

// SessionWebSocket upgrades the request and serves one session until the
// client disconnects. The current render is sent right after the upgrade.
func (wh *WebSocketHandler) SessionWebSocket(c *gin.Context) {
	sessionID := c.Param("id")
	if !wh.sessions.Exists(sessionID) {
		wh.response.NotFound(c, "session")
		return
	}

	conn, err := wh.manager.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		wh.logger.Warn("websocket upgrade failed", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return
	}

	client := newWebSocketClient(conn, sessionID)
	wh.manager.registerClient(client)
	defer wh.manager.unregisterClient(client)

	go client.writePump()

	client.SendMessage(WSMessage{Type: MessageConnected, SessionID: sessionID})
	wh.reply(client, func() (models.RenderDescriptor, error) {
		return wh.sessions.Current(sessionID)
	})

	wh.readPump(client)
}

func (wh *WebSocketHandler) readPump(client *WebSocketClient) {
	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wh.logger.Warn("websocket read failed", map[string]interface{}{
					"session_id": client.sessionID,
					"error":      err.Error(),
				})
			}
			return
		}
		client.UpdatePing()
		client.conn.SetReadDeadline(time.Now().Add(pongWait))

		var cmd WSCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			client.SendError(ErrorMessageFormat, "message is not a JSON command")
			continue
		}
		wh.handleCommand(client, cmd)
	}
}

// handleCommand runs one command. Side effects reach the client through the
// manager's dispatch before the render reply.
func (wh *WebSocketHandler) handleCommand(client *WebSocketClient, cmd WSCommand) {
	id := client.sessionID

	switch cmd.Action {
	case ActionAdvance:
		wh.reply(client, func() (models.RenderDescriptor, error) {
			return wh.sessions.Advance(id, cmd.Direction)
		})
	case ActionChoice:
		if cmd.Index == nil {
			client.SendError(ErrorChoiceInvalid, "choice needs an index")
			return
		}
		wh.reply(client, func() (models.RenderDescriptor, error) {
			return wh.sessions.SelectChoice(id, *cmd.Index)
		})
	case ActionInput:
		wh.reply(client, func() (models.RenderDescriptor, error) {
			return wh.sessions.SubmitInput(id, cmd.Value)
		})
	case ActionCurrent:
		wh.reply(client, func() (models.RenderDescriptor, error) {
			return wh.sessions.Current(id)
		})
	case ActionPing:
		client.SendMessage(WSMessage{Type: MessagePong, SessionID: id})
	default:
		client.SendError(ErrorUnknownAction, "unknown action "+cmd.Action)
	}
}

func (wh *WebSocketHandler) reply(client *WebSocketClient, op func() (models.RenderDescriptor, error)) {
	render, err := op()
	if err != nil {
		code := ErrorInternalError
		if apperrors.IsNotFoundError(err) {
			code = ErrorSessionNotFound
		}
		client.SendError(code, err.Error())
		return
	}
	client.SendMessage(WSMessage{Type: MessageRender, SessionID: client.sessionID, Data: render})
}
