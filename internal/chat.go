package internal

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"
	"unicode/utf8"
)

// ChatMessage 聊天訊息
//
// ID 在整個行程內嚴格遞增（不分房間），輪詢端可以用「ID 大於 N」增量拉取。
type ChatMessage struct {
	ID         int64     `json:"id"`
	RoomID     string    `json:"room_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Role       Color     `json:"role"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChatStore 每個房間一個有界緩衝區，超過上限時淘汰最舊訊息
type ChatStore struct {
	rooms     map[string][]ChatMessage
	mu        sync.RWMutex
	nextID    atomic.Int64
	capacity  int
	maxLength int
}

// NewChatStore 創建聊天緩衝區
func NewChatStore(capacity, maxLength int) *ChatStore {
	return &ChatStore{
		rooms:     make(map[string][]ChatMessage),
		capacity:  capacity,
		maxLength: maxLength,
	}
}

// Append 追加訊息
//
// 呼叫者負責驗證發言權限（見 Room.Say）。內容去除開頭空白後不得為空。
func (s *ChatStore) Append(roomID, authorID, authorName string, role Color, content string, now time.Time) (ChatMessage, error) {
	content = strings.TrimLeftFunc(content, unicode.IsSpace)
	if strings.TrimSpace(content) == "" {
		return ChatMessage{}, ErrInvalidRequest.WithDetails("empty chat message")
	}
	if s.maxLength > 0 && utf8.RuneCountInString(content) > s.maxLength {
		return ChatMessage{}, ErrInvalidRequest.WithDetails("chat message longer than %d characters", s.maxLength)
	}
	if authorName == "" {
		authorName = authorID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 在鎖內取號，保證同一房間內的順序與 ID 一致
	msg := ChatMessage{
		ID:         s.nextID.Add(1),
		RoomID:     roomID,
		AuthorID:   authorID,
		AuthorName: authorName,
		Role:       role,
		Content:    content,
		CreatedAt:  now,
	}

	buf := s.rooms[roomID]
	if s.capacity > 0 && len(buf) >= s.capacity {
		drop := len(buf) - s.capacity + 1
		buf = append(buf[:0:0], buf[drop:]...)
	}
	s.rooms[roomID] = append(buf, msg)

	return msg, nil
}

// Since 回傳 ID 大於 afterID 的訊息（afterID 為 0 時回傳全部）
func (s *ChatStore) Since(roomID string, afterID int64) []ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buf := s.rooms[roomID]
	out := make([]ChatMessage, 0, len(buf))
	for _, m := range buf {
		if m.ID > afterID {
			out = append(out, m)
		}
	}
	return out
}

// Clear 清除房間的聊天紀錄（只由銷毀房間呼叫）
func (s *ChatStore) Clear(roomID string) {
	s.mu.Lock()
	delete(s.rooms, roomID)
	s.mu.Unlock()
}

// Len 房間目前保留的訊息數
func (s *ChatStore) Len(roomID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms[roomID])
}

// RoomCount 持有聊天紀錄的房間數
func (s *ChatStore) RoomCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
