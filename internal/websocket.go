package internal

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// 推送事件類型
const (
	EventState      = "state"
	EventRoomClosed = "room_closed"
	EventPong       = "pong"
)

// WatchEvent 推送給觀察者的訊息
type WatchEvent struct {
	Type   string      `json:"type"`
	RoomID string      `json:"room_id,omitempty"`
	Data   *PollResult `json:"data,omitempty"`
}

// WebSocketHub 觀察者連接中心
//
// 協調器本身只提供輪詢；Hub 定期替每個連接呼叫 Poll，結果有變化才推送。
// 房間消失時推送 room_closed 並關閉連接。
type WebSocketHub struct {
	manager     *Manager
	logger      *slog.Logger
	upgrader    websocket.Upgrader
	interval    time.Duration
	connections map[string]map[string]*Connection // roomID -> playerID -> Connection
	mu          sync.RWMutex
	stopCh      chan struct{}
	wg          sync.WaitGroup
	stopOnce    sync.Once
}

// Connection 一個觀察者連接
type Connection struct {
	PlayerID string
	RoomID   string
	Conn     *websocket.Conn
	Send     chan []byte
	Hub      *WebSocketHub

	mu         sync.Mutex
	lastChatID int64
	lastState  []byte
	closeOnce  sync.Once // 確保 channel 只關閉一次
}

// NewWebSocketHub 創建 Hub 並啟動推送循環
func NewWebSocketHub(manager *Manager, interval time.Duration, logger *slog.Logger) *WebSocketHub {
	hub := &WebSocketHub{
		manager:  manager,
		logger:   logger,
		interval: interval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 在生產環境應該檢查來源
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[string]map[string]*Connection),
		stopCh:      make(chan struct{}),
	}

	hub.wg.Add(1)
	go hub.watchLoop()

	return hub
}

// ServeWS 處理 WebSocket 連接
func (hub *WebSocketHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("player_id")
	if playerID == "" {
		http.Error(w, "缺少玩家 ID", http.StatusBadRequest)
		return
	}

	room, err := hub.manager.GetRoom(r.PathValue("room_id"))
	if err != nil {
		http.Error(w, "房間不存在", http.StatusNotFound)
		return
	}

	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	connection := &Connection{
		PlayerID: playerID,
		RoomID:   room.ID,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Hub:      hub,
	}

	hub.register(connection)

	go connection.writePump()
	go connection.readPump()

	// 連上後立即推送一次目前狀態
	hub.push(connection)

	hub.logger.Info("WebSocket 連接建立",
		"room_id", room.ID,
		"player_id", playerID)
}

// register 註冊連接，同一玩家的舊連接會被關閉
func (hub *WebSocketHub) register(conn *Connection) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if hub.connections[conn.RoomID] == nil {
		hub.connections[conn.RoomID] = make(map[string]*Connection)
	}

	if old, exists := hub.connections[conn.RoomID][conn.PlayerID]; exists {
		old.closeSend()
	}

	hub.connections[conn.RoomID][conn.PlayerID] = conn
}

// unregister 取消註冊連接
func (hub *WebSocketHub) unregister(conn *Connection) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	roomConns, exists := hub.connections[conn.RoomID]
	if !exists {
		return
	}
	if actual, ok := roomConns[conn.PlayerID]; ok && actual == conn {
		delete(roomConns, conn.PlayerID)
		if len(roomConns) == 0 {
			delete(hub.connections, conn.RoomID)
		}
	}
	conn.closeSend()
}

func (c *Connection) closeSend() {
	c.closeOnce.Do(func() {
		close(c.Send)
	})
}

// watchLoop 定期輪詢所有連接
func (hub *WebSocketHub) watchLoop() {
	defer hub.wg.Done()

	ticker := time.NewTicker(hub.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, conn := range hub.snapshot() {
				hub.push(conn)
			}
		case <-hub.stopCh:
			return
		}
	}
}

func (hub *WebSocketHub) snapshot() []*Connection {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	out := make([]*Connection, 0)
	for _, roomConns := range hub.connections {
		for _, conn := range roomConns {
			out = append(out, conn)
		}
	}
	return out
}

// push 為單一連接輪詢並在狀態變化時推送
func (hub *WebSocketHub) push(conn *Connection) {
	conn.mu.Lock()
	defer conn.mu.Unlock()

	result, err := hub.manager.Poll(conn.RoomID, conn.PlayerID, conn.lastChatID)
	if errors.Is(err, ErrRoomNotFound) {
		hub.send(conn, WatchEvent{Type: EventRoomClosed, RoomID: conn.RoomID})
		hub.unregister(conn)
		return
	}
	if err != nil {
		hub.logger.Error("輪詢房間失敗", "room_id", conn.RoomID, "error", err)
		return
	}

	// 比對時不含訊息：訊息只會是增量，有就一定推送
	messages := result.Messages
	result.Messages = nil
	fingerprint, err := json.Marshal(result)
	if err != nil {
		hub.logger.Error("序列化狀態失敗", "error", err)
		return
	}
	if len(messages) == 0 && bytes.Equal(fingerprint, conn.lastState) {
		return
	}

	result.Messages = messages
	if n := len(messages); n > 0 {
		conn.lastChatID = messages[n-1].ID
	}
	conn.lastState = fingerprint
	hub.send(conn, WatchEvent{Type: EventState, RoomID: conn.RoomID, Data: &result})
}

// send 非阻塞寫入；連接已關閉或緩衝區滿時丟棄
func (hub *WebSocketHub) send(conn *Connection, event WatchEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		hub.logger.Error("序列化事件失敗", "error", err)
		return
	}

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.connections[conn.RoomID][conn.PlayerID] != conn {
		return
	}
	select {
	case conn.Send <- data:
	default:
		hub.logger.Warn("連接緩衝區滿",
			"room_id", conn.RoomID,
			"player_id", conn.PlayerID)
	}
}

// Stop 停止推送並關閉所有連接
func (hub *WebSocketHub) Stop() {
	hub.stopOnce.Do(func() {
		close(hub.stopCh)
		hub.wg.Wait()

		hub.mu.Lock()
		for _, roomConns := range hub.connections {
			for _, conn := range roomConns {
				conn.closeSend()
			}
		}
		hub.connections = make(map[string]map[string]*Connection)
		hub.mu.Unlock()

		hub.logger.Info("WebSocket Hub 已停止")
	})
}

// ConnectionCount 每個房間的連接數
func (hub *WebSocketHub) ConnectionCount() map[string]int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	result := make(map[string]int, len(hub.connections))
	for roomID, conns := range hub.connections {
		result[roomID] = len(conns)
	}
	return result
}

// readPump 讀取客戶端消息
//
// 60 秒內沒有收到任何訊息（包括 Pong）就關閉連接，配合 writePump 每 54 秒的 Ping。
func (c *Connection) readPump() {
	defer func() {
		c.Hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(4096)
	if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.Hub.logger.Error("設置讀取期限失敗", "error", err)
	}
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Error("WebSocket 讀取錯誤",
					"error", err,
					"room_id", c.RoomID,
					"player_id", c.PlayerID)
			}
			return
		}

		if messageType == websocket.TextMessage {
			c.handleMessage(message)
		}
	}
}

// writePump 寫入消息到客戶端
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.Hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if !ok {
				// Hub 關閉了通道，嘗試送出關閉訊息
				_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.Hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 處理客戶端消息，目前只有應用層心跳
func (c *Connection) handleMessage(message []byte) {
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		c.Hub.logger.Debug("解析客戶端消息失敗",
			"error", err,
			"room_id", c.RoomID,
			"player_id", c.PlayerID)
		return
	}

	switch msg.Type {
	case "ping":
		c.Hub.send(c, WatchEvent{Type: EventPong})
	default:
		c.Hub.logger.Debug("收到未知消息類型",
			"type", msg.Type,
			"room_id", c.RoomID,
			"player_id", c.PlayerID)
	}
}
