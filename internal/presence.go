package internal

import (
	"sync"
	"time"
)

// PresenceTracker 記錄每位玩家最後活動時間
//
// 存在即代表在線：過期項目由清理排程移除。
type PresenceTracker struct {
	lastSeen map[string]time.Time
	mu       sync.RWMutex
}

// PresenceSnapshot 在線人數統計
type PresenceSnapshot struct {
	Online   int `json:"online"`
	InRoom   int `json:"in_room"`
	Matching int `json:"matching"`
	Idle     int `json:"idle"`
}

// NewPresenceTracker 創建在線狀態追蹤器
func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		lastSeen: make(map[string]time.Time),
	}
}

// Touch 更新最後活動時間
func (p *PresenceTracker) Touch(playerID string, now time.Time) {
	if playerID == "" {
		return
	}
	p.mu.Lock()
	p.lastSeen[playerID] = now
	p.mu.Unlock()
}

// IsOnline 玩家是否在線
func (p *PresenceTracker) IsOnline(playerID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.lastSeen[playerID]
	return ok
}

// Prune 移除閒置超過 idle 的項目，回傳移除數
func (p *PresenceTracker) Prune(now time.Time, idle time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	for id, seen := range p.lastSeen {
		if now.Sub(seen) > idle {
			delete(p.lastSeen, id)
			removed++
		}
	}
	return removed
}

// Snapshot 以集合差計算統計：房內 → 配對中 → 其餘為閒置
//
// inRoom 與 matching 由呼叫者在當下收集，不做增量維護。
func (p *PresenceTracker) Snapshot(inRoom, matching map[string]struct{}) PresenceSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var s PresenceSnapshot
	s.Online = len(p.lastSeen)
	for id := range p.lastSeen {
		if _, ok := inRoom[id]; ok {
			s.InRoom++
			continue
		}
		if _, ok := matching[id]; ok {
			s.Matching++
			continue
		}
		s.Idle++
	}
	return s
}
