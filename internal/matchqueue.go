package internal

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MatchQueueEntry 排隊中的玩家
type MatchQueueEntry struct {
	PlayerID   string    `json:"player_id"`
	Token      string    `json:"token"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// MatchNotice 配對結果
//
// 配對由後到的一方完成；先到的一方在下次輪詢時取走留給他的通知。
type MatchNotice struct {
	RoomID    string    `json:"room_id"`
	Role      Color     `json:"role"`
	Opponent  string    `json:"opponent"`
	MatchedAt time.Time `json:"matched_at"`
}

// PairFunc 在佇列鎖內建立對局，回傳給呼叫者與等待方的通知
type PairFunc func(waiting MatchQueueEntry) (callerNotice, waitingNotice MatchNotice, err error)

// MatchResult 一次快速配對的結果
type MatchResult struct {
	Matched bool
	Notice  MatchNotice     // Matched 時有效
	Entry   MatchQueueEntry // 仍在等待時的排隊項目
}

// MatchQueue 快速配對佇列（先進先出）
//
// 同一玩家同時最多出現一次。過期在掃描時順帶處理，佇列本身沒有計時器。
type MatchQueue struct {
	entries []MatchQueueEntry
	notices map[string]MatchNotice // playerID -> 尚未取走的配對結果
	mu      sync.Mutex
}

// NewMatchQueue 創建配對佇列
func NewMatchQueue() *MatchQueue {
	return &MatchQueue{
		notices: make(map[string]MatchNotice),
	}
}

// Enqueue 加入佇列；已在佇列中則回傳原項目
func (q *MatchQueue) Enqueue(playerID string, now time.Time) MatchQueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.enqueueLocked(playerID, now)
}

// TryMatch 找出最早排隊的其他玩家
//
// 找到時同時移除對方與呼叫者自己的項目；佇列中除了呼叫者沒有別人時回傳 false。
func (q *MatchQueue) TryMatch(playerID string) (MatchQueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tryMatchLocked(playerID, nil)
}

// MatchOrEnqueue 快速配對：取走既有通知、與最早的等待者配對，或加入佇列
//
// 整個過程在同一把鎖內完成，兩個玩家不論先後呼叫都只會產生一個房間。
// pair 回傳錯誤時佇列保持不變。
func (q *MatchQueue) MatchOrEnqueue(playerID string, now time.Time, window time.Duration, pair PairFunc) (MatchResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.expireLocked(now, window)

	if n, ok := q.notices[playerID]; ok {
		delete(q.notices, playerID)
		q.removePlayer(playerID)
		return MatchResult{Matched: true, Notice: n}, nil
	}

	var (
		callerNotice, waitingNotice MatchNotice
		pairErr                     error
	)
	waiting, ok := q.tryMatchLocked(playerID, func(e MatchQueueEntry) bool {
		callerNotice, waitingNotice, pairErr = pair(e)
		return pairErr == nil
	})
	if pairErr != nil {
		return MatchResult{}, pairErr
	}
	if ok {
		q.notices[waiting.PlayerID] = waitingNotice
		return MatchResult{Matched: true, Notice: callerNotice}, nil
	}

	return MatchResult{Entry: q.enqueueLocked(playerID, now)}, nil
}

// Remove 移除玩家的排隊項目與未讀通知
func (q *MatchQueue) Remove(playerID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	_, hadNotice := q.notices[playerID]
	delete(q.notices, playerID)
	return q.removePlayer(playerID) || hadNotice
}

// Expire 移除排隊超過 window 的項目與通知，回傳移除的排隊項目數
func (q *MatchQueue) Expire(now time.Time, window time.Duration) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.expireLocked(now, window)
}

// Players 排隊中玩家的集合
func (q *MatchQueue) Players() map[string]struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make(map[string]struct{}, len(q.entries))
	for _, e := range q.entries {
		out[e.PlayerID] = struct{}{}
	}
	return out
}

// Len 排隊人數
func (q *MatchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Contains 玩家是否在佇列中
func (q *MatchQueue) Contains(playerID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.indexOf(playerID) >= 0
}

// PendingNotices 尚未取走的通知數
func (q *MatchQueue) PendingNotices() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.notices)
}

func (q *MatchQueue) enqueueLocked(playerID string, now time.Time) MatchQueueEntry {
	if i := q.indexOf(playerID); i >= 0 {
		return q.entries[i]
	}
	entry := MatchQueueEntry{
		PlayerID:   playerID,
		Token:      uuid.NewString(),
		EnqueuedAt: now,
	}
	q.entries = append(q.entries, entry)
	return entry
}

func (q *MatchQueue) expireLocked(now time.Time, window time.Duration) int {
	kept := make([]MatchQueueEntry, 0, len(q.entries))
	for _, e := range q.entries {
		if now.Sub(e.EnqueuedAt) <= window {
			kept = append(kept, e)
		}
	}
	removed := len(q.entries) - len(kept)
	q.entries = kept

	for id, n := range q.notices {
		if now.Sub(n.MatchedAt) > window {
			delete(q.notices, id)
		}
	}
	return removed
}

// tryMatchLocked 找出最早排隊的其他玩家並移除雙方項目（需持有鎖）
//
// accept 不為 nil 時先交給它確認，回傳 false 則佇列保持不變。
func (q *MatchQueue) tryMatchLocked(playerID string, accept func(MatchQueueEntry) bool) (MatchQueueEntry, bool) {
	i := q.firstOther(playerID)
	if i < 0 {
		return MatchQueueEntry{}, false
	}
	e := q.entries[i]
	if accept != nil && !accept(e) {
		return MatchQueueEntry{}, false
	}
	q.removeAt(i)
	q.removePlayer(playerID)
	return e, true
}

func (q *MatchQueue) firstOther(playerID string) int {
	for i, e := range q.entries {
		if e.PlayerID != playerID {
			return i
		}
	}
	return -1
}

func (q *MatchQueue) indexOf(playerID string) int {
	for i, e := range q.entries {
		if e.PlayerID == playerID {
			return i
		}
	}
	return -1
}

func (q *MatchQueue) removeAt(i int) {
	q.entries = append(q.entries[:i:i], q.entries[i+1:]...)
}

func (q *MatchQueue) removePlayer(playerID string) bool {
	if i := q.indexOf(playerID); i >= 0 {
		q.removeAt(i)
		return true
	}
	return false
}
