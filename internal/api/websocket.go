// internal/api/websocket.go
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Corphon/SceneNovel/internal/models"
	"github.com/Corphon/SceneNovel/internal/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendQueueSize  = 64
	cleanupPeriod  = 30 * time.Second
	maxMessageSize = 4096
)

// Outgoing message types.
const (
	MessageRender    = "render"
	MessageEffects   = "effects"
	MessageError     = "error"
	MessageConnected = "connected"
	MessagePong      = "pong"
)

// WSMessage is every frame the server sends.
type WSMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Code      string      `json:"code,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// WebSocketClient is one connection subscribed to one session.
type WebSocketClient struct {
	conn      *websocket.Conn
	sessionID string
	send      chan []byte
	done      chan struct{}
	closed    int32 // 0 open, 1 closed
	lastPing  int64 // unix nanos
	createdAt time.Time
}

func newWebSocketClient(conn *websocket.Conn, sessionID string) *WebSocketClient {
	now := time.Now()
	return &WebSocketClient{
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan []byte, sendQueueSize),
		done:      make(chan struct{}),
		lastPing:  now.UnixNano(),
		createdAt: now,
	}
}

// Close signals the write pump to send a close frame and drop the connection.
func (client *WebSocketClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		close(client.done)
	}
}

// IsClosed reports whether Close ran.
func (client *WebSocketClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// UpdatePing marks the client alive.
func (client *WebSocketClient) UpdatePing() {
	atomic.StoreInt64(&client.lastPing, time.Now().UnixNano())
}

// IsExpired reports whether the client has been silent for longer than timeout.
func (client *WebSocketClient) IsExpired(timeout time.Duration) bool {
	if timeout <= 0 {
		return true
	}
	last := time.Unix(0, atomic.LoadInt64(&client.lastPing))
	return time.Since(last) > timeout
}

// SendMessage queues msg without blocking. A client whose queue is full is
// too slow to keep up and gets closed.
func (client *WebSocketClient) SendMessage(msg WSMessage) bool {
	if client.IsClosed() {
		return false
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		utils.GetLogger().Error("websocket message encode failed", map[string]interface{}{
			"type":  msg.Type,
			"error": err.Error(),
		})
		return false
	}
	return client.enqueue(payload)
}

// SendError queues an error frame.
func (client *WebSocketClient) SendError(code, message string) {
	client.SendMessage(WSMessage{Type: MessageError, SessionID: client.sessionID, Code: code, Error: message})
}

func (client *WebSocketClient) enqueue(payload []byte) bool {
	select {
	case <-client.done:
		return false
	case client.send <- payload:
		return true
	default:
		utils.GetLogger().Warn("websocket send queue full, closing client", map[string]interface{}{
			"session_id": client.sessionID,
		})
		client.Close()
		return false
	}
}

// writePump owns all writes to the connection.
func (client *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Close()
		client.conn.Close()
	}()

	for {
		select {
		case <-client.done:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			client.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case message := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// WebSocketManager tracks the connections of every session and pushes side
// effects to them. It implements services.EffectDispatcher.
type WebSocketManager struct {
	connections map[string]map[*WebSocketClient]struct{} // sessionID -> clients
	stop        chan struct{}
	stopOnce    sync.Once
	mutex       sync.RWMutex
	pingTimeout time.Duration
	upgrader    websocket.Upgrader
	logger      *utils.Logger
}

// NewWebSocketManager starts a manager. allowOrigin may be nil to accept any origin.
func NewWebSocketManager(allowOrigin func(origin string) bool) *WebSocketManager {
	manager := &WebSocketManager{
		connections: make(map[string]map[*WebSocketClient]struct{}),
		stop:        make(chan struct{}),
		pingTimeout: pongWait,
		logger:      utils.GetLogger(),
	}
	manager.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowOrigin == nil {
				return true
			}
			return allowOrigin(r.Header.Get("Origin"))
		},
	}
	go manager.run()
	return manager
}

func (manager *WebSocketManager) run() {
	ticker := time.NewTicker(cleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			manager.cleanupExpiredConnections()

		case <-manager.stop:
			manager.shutdown()
			return
		}
	}
}

func (manager *WebSocketManager) registerClient(client *WebSocketClient) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if manager.connections[client.sessionID] == nil {
		manager.connections[client.sessionID] = make(map[*WebSocketClient]struct{})
	}
	manager.connections[client.sessionID][client] = struct{}{}

	manager.logger.Info("websocket client connected", map[string]interface{}{
		"session_id": client.sessionID,
		"clients":    len(manager.connections[client.sessionID]),
	})
}

func (manager *WebSocketManager) unregisterClient(client *WebSocketClient) {
	manager.mutex.Lock()
	if clients, ok := manager.connections[client.sessionID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(manager.connections, client.sessionID)
		}
	}
	manager.mutex.Unlock()

	client.Close()
	manager.logger.Debug("websocket client disconnected", map[string]interface{}{
		"session_id": client.sessionID,
	})
}

func (manager *WebSocketManager) cleanupExpiredConnections() {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	for sessionID, clients := range manager.connections {
		for client := range clients {
			if client.IsClosed() || client.IsExpired(manager.pingTimeout) {
				delete(clients, client)
				client.Close()
			}
		}
		if len(clients) == 0 {
			delete(manager.connections, sessionID)
		}
	}
}

func (manager *WebSocketManager) shutdown() {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	for _, clients := range manager.connections {
		for client := range clients {
			client.Close()
		}
	}
	manager.connections = make(map[string]map[*WebSocketClient]struct{})
}

// Shutdown closes every connection and stops the manager.
func (manager *WebSocketManager) Shutdown() {
	manager.stopOnce.Do(func() { close(manager.stop) })
}

// clients snapshots the open clients of a session.
func (manager *WebSocketManager) clients(sessionID string) []*WebSocketClient {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	list := make([]*WebSocketClient, 0, len(manager.connections[sessionID]))
	for client := range manager.connections[sessionID] {
		if !client.IsClosed() {
			list = append(list, client)
		}
	}
	return list
}

// BroadcastToSession sends msg to every client of a session and returns how many
// accepted it.
func (manager *WebSocketManager) BroadcastToSession(sessionID string, msg WSMessage) int {
	clients := manager.clients(sessionID)
	if len(clients) == 0 {
		return 0
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	msg.SessionID = sessionID
	payload, err := json.Marshal(msg)
	if err != nil {
		manager.logger.Error("websocket broadcast encode failed", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return 0
	}

	sent := 0
	for _, client := range clients {
		if client.enqueue(payload) {
			sent++
		}
	}
	return sent
}

// DispatchEffects pushes a session's side effects to its subscribers.
func (manager *WebSocketManager) DispatchEffects(sessionID string, fx models.SideEffects) {
	manager.BroadcastToSession(sessionID, WSMessage{Type: MessageEffects, Data: fx})
}

// CloseSession disconnects every client of a session.
func (manager *WebSocketManager) CloseSession(sessionID string) {
	manager.mutex.Lock()
	clients := manager.connections[sessionID]
	delete(manager.connections, sessionID)
	manager.mutex.Unlock()

	for client := range clients {
		client.Close()
	}
}

// ClientCount is the number of open clients of a session.
func (manager *WebSocketManager) ClientCount(sessionID string) int {
	return len(manager.clients(sessionID))
}

// GetStatus summarizes the open connections.
func (manager *WebSocketManager) GetStatus() map[string]interface{} {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	sessions := make(map[string]int, len(manager.connections))
	total := 0
	for sessionID, clients := range manager.connections {
		sessions[sessionID] = len(clients)
		total += len(clients)
	}
	return map[string]interface{}{
		"total_sessions":    len(manager.connections),
		"total_connections": total,
		"sessions":          sessions,
	}
}
