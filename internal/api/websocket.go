// internal/api/websocket.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Corphon/BookRunner/internal/services"
	"github.com/Corphon/BookRunner/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the UI is served from another origin during development
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamMessage is what UI clients of a chapter receive.
type StreamMessage struct {
	Type        string    `json:"type"`
	ChapterPath string    `json:"chapterPath"`
	EntryID     string    `json:"entryId,omitempty"`
	Content     string    `json:"content,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// WebSocketClient is one UI connection following a chapter.
type WebSocketClient struct {
	conn      *websocket.Conn
	chapter   string
	send      chan []byte
	done      chan struct{}
	closed    int32
	lastPing  atomic.Int64
	createdAt time.Time
}

func newWebSocketClient(conn *websocket.Conn, chapter string) *WebSocketClient {
	client := &WebSocketClient{
		conn:      conn,
		chapter:   chapter,
		send:      make(chan []byte, sendBufferSize),
		done:      make(chan struct{}),
		createdAt: time.Now(),
	}
	client.UpdatePing()
	return client
}

// Close closes the connection once.
func (client *WebSocketClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		close(client.done)
		client.conn.Close()
	}
}

func (client *WebSocketClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

func (client *WebSocketClient) UpdatePing() {
	client.lastPing.Store(time.Now().UnixNano())
}

func (client *WebSocketClient) IsExpired(timeout time.Duration) bool {
	return time.Since(time.Unix(0, client.lastPing.Load())) > timeout
}

// enqueue drops the message when the client is closed or too slow.
func (client *WebSocketClient) enqueue(message []byte) bool {
	if client.IsClosed() {
		return false
	}
	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// WebSocketManager fans run events out to the UI clients of each chapter.
type WebSocketManager struct {
	connections map[string]map[*WebSocketClient]struct{} // chapter -> clients
	mutex       sync.RWMutex
	pingTimeout time.Duration
	logger      *utils.Logger
}

func NewWebSocketManager() *WebSocketManager {
	return &WebSocketManager{
		connections: make(map[string]map[*WebSocketClient]struct{}),
		pingTimeout: 60 * time.Second,
		logger:      utils.GetLogger(),
	}
}

// Run drops expired connections until ctx is done, then closes every
// connection.
func (manager *WebSocketManager) Run(ctx context.Context) {
	ticker := time.NewTicker(manager.pingTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			manager.cleanupExpiredConnections()
		case <-ctx.Done():
			manager.shutdown()
			return
		}
	}
}

func (manager *WebSocketManager) registerClient(client *WebSocketClient) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if manager.connections[client.chapter] == nil {
		manager.connections[client.chapter] = make(map[*WebSocketClient]struct{})
	}
	manager.connections[client.chapter][client] = struct{}{}

	manager.logger.Info("WebSocket client connected", map[string]interface{}{
		"chapter": client.chapter,
		"clients": len(manager.connections[client.chapter]),
	})
}

func (manager *WebSocketManager) unregisterClient(client *WebSocketClient) {
	manager.mutex.Lock()
	if clients, exists := manager.connections[client.chapter]; exists {
		delete(clients, client)
		if len(clients) == 0 {
			delete(manager.connections, client.chapter)
		}
	}
	manager.mutex.Unlock()

	client.Close()
	manager.logger.Info("WebSocket client disconnected", map[string]interface{}{
		"chapter": client.chapter,
	})
}

func (manager *WebSocketManager) cleanupExpiredConnections() {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	for chapter, clients := range manager.connections {
		for client := range clients {
			if client.IsClosed() || client.IsExpired(manager.pingTimeout) {
				delete(clients, client)
				client.Close()
			}
		}
		if len(clients) == 0 {
			delete(manager.connections, chapter)
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
	manager.logger.Info("WebSocket manager stopped", nil)
}

// PublishRunEvent sends the event to every client of its chapter.
func (manager *WebSocketManager) PublishRunEvent(event services.RunEvent) {
	manager.BroadcastToChapter(event.ChapterPath, StreamMessage{
		Type:        event.Kind,
		ChapterPath: event.ChapterPath,
		EntryID:     event.EntryID,
		Content:     event.Content,
		Timestamp:   time.Now(),
	})
}

// BroadcastToChapter sends message to every client of chapter. Clients
// whose queue is full are disconnected.
func (manager *WebSocketManager) BroadcastToChapter(chapter string, message StreamMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		manager.logger.Error("Failed to encode stream message", map[string]interface{}{"error": err})
		return
	}

	manager.mutex.RLock()
	clients := make([]*WebSocketClient, 0, len(manager.connections[chapter]))
	for client := range manager.connections[chapter] {
		clients = append(clients, client)
	}
	manager.mutex.RUnlock()

	for _, client := range clients {
		if !client.enqueue(data) && !client.IsClosed() {
			manager.logger.Warn("WebSocket client too slow, disconnecting", map[string]interface{}{
				"chapter": chapter,
			})
			client.Close()
		}
	}
}

// GetStatus reports the connected clients per chapter.
func (manager *WebSocketManager) GetStatus() map[string]interface{} {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	chapters := make(map[string]interface{}, len(manager.connections))
	total := 0
	for chapter, clients := range manager.connections {
		active := 0
		for client := range clients {
			if !client.IsClosed() {
				active++
			}
		}
		chapters[chapter] = map[string]interface{}{"client_count": active}
		total += active
	}

	return map[string]interface{}{
		"total_chapters":    len(manager.connections),
		"total_connections": total,
		"chapters":          chapters,
	}
}

// ServeChapter upgrades the request and streams the run events of the
// chapter until the client goes away.
func (manager *WebSocketManager) ServeChapter(c *gin.Context) {
	chapter := c.Param("chapter")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		manager.logger.Warn("WebSocket upgrade failed", map[string]interface{}{
			"chapter": chapter,
			"error":   err,
		})
		return
	}

	client := newWebSocketClient(conn, chapter)
	manager.registerClient(client)
	defer manager.unregisterClient(client)

	go manager.writePump(client)

	welcome, _ := json.Marshal(StreamMessage{Type: "connected", ChapterPath: chapter, Timestamp: time.Now()})
	client.enqueue(welcome)

	manager.readPump(client)
}

// readPump consumes client frames so that pongs and close frames are seen.
func (manager *WebSocketManager) readPump(client *WebSocketClient) {
	client.conn.SetReadDeadline(time.Now().Add(manager.pingTimeout))
	client.conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		return client.conn.SetReadDeadline(time.Now().Add(manager.pingTimeout))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				manager.logger.Debug("WebSocket read failed", map[string]interface{}{
					"chapter": client.chapter,
					"error":   err,
				})
			}
			return
		}
		client.UpdatePing()
	}
}

func (manager *WebSocketManager) writePump(client *WebSocketClient) {
	ticker := time.NewTicker(manager.pingTimeout * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case <-client.done:
			return
		case message := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				client.Close()
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				client.Close()
				return
			}
		}
	}
}
