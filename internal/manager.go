package internal

import (
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"time"
)

// Manager 房間協調器
//
// 持有所有進行中的房間、配對佇列、聊天緩衝與在線狀態。
//
// 系統設計考量：
//
//  1. 兩層鎖：
//     - mu（RWMutex）只保護房間表的插入、查詢與刪除，查詢走讀鎖
//     - 房間內的操作由房間自己的鎖序列化，持有 mu 期間不做對局邏輯
//     - 鎖順序：queue.mu → mu → room.mu → chat.mu，反向取得一律禁止
//
//  2. 清理（cleanupLoop + Cleanup）：
//     - 先在房間鎖內判定並標記銷毀，再從房間表移除
//     - 移除時比對指標，同名的新房間不會被誤刪
//     - 空房超過寬限、已結束且無人、等待超過上限，三條規則任一成立即回收
//     - 清理是被放棄房間的最後防線，玩家不必主動離開
//
//  3. 對局結果：
//     - 在釋放房間鎖後才交給 OutcomeRecorder，發布延遲不會卡住對局
//     - 發布失敗只記錄日誌，不影響落子結果
type Manager struct {
	rooms    map[string]*Room // roomID -> Room
	mu       sync.RWMutex
	queue    *MatchQueue
	chat     *ChatStore
	presence *PresenceTracker
	outcomes OutcomeRecorder

	cfg       CoordinatorConfig
	policy    EvictionPolicy
	logger    *slog.Logger
	now       func() time.Time
	firstHand func() Color

	stopCh    chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// Option 協調器選項
type Option func(*Manager)

// WithClock 替換時間來源（測試使用）
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithOutcomeRecorder 設定對局結果接收者
func WithOutcomeRecorder(r OutcomeRecorder) Option {
	return func(m *Manager) { m.outcomes = r }
}

// WithFirstHandPicker 替換配對房間的先手選擇（預設隨機）
func WithFirstHandPicker(pick func() Color) Option {
	return func(m *Manager) { m.firstHand = pick }
}

// NewManager 創建房間協調器，清理排程需另外呼叫 Start
func NewManager(cfg CoordinatorConfig, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		rooms:     make(map[string]*Room),
		queue:     NewMatchQueue(),
		chat:      NewChatStore(cfg.ChatHistory, cfg.ChatMaxLength),
		presence:  NewPresenceTracker(),
		cfg:       cfg,
		policy:    cfg.EvictionPolicy(),
		logger:    logger,
		now:       time.Now,
		firstHand: randomColor,
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.outcomes == nil {
		m.outcomes = NewLogOutcomeRecorder(logger)
	}
	return m
}

func randomColor() Color {
	if rand.IntN(2) == 0 {
		return ColorBlack
	}
	return ColorWhite
}

// RoomEntry 建立或加入房間的回應
type RoomEntry struct {
	RoomID         string     `json:"room_id"`
	Role           Color      `json:"role"`
	Board          Board      `json:"board"`
	Status         RoomStatus `json:"status"`
	OpponentJoined bool       `json:"opponent_joined"`
}

// LeaveResult 離開房間的回應
type LeaveResult struct {
	Destroyed bool `json:"destroyed"`
}

// QuickMatch 狀態
const (
	MatchStatusWaiting = "waiting"
	MatchStatusMatched = "matched"
)

// QuickMatchResult 快速配對的回應
type QuickMatchResult struct {
	Status   string `json:"status"`
	Token    string `json:"token,omitempty"`
	RoomID   string `json:"room_id,omitempty"`
	Role     Color  `json:"role,omitempty"`
	Opponent string `json:"opponent,omitempty"`
}

// PollResult 輪詢回應
type PollResult struct {
	State          GameState     `json:"state"`
	Role           Color         `json:"role,omitempty"`
	OpponentOnline bool          `json:"opponent_online"`
	OpponentInRoom bool          `json:"opponent_in_room"`
	Messages       []ChatMessage `json:"messages"`
}

// CleanupReport 一次清理的統計
type CleanupReport struct {
	RoomsRemoved    int `json:"rooms_removed"`
	QueueRemoved    int `json:"queue_removed"`
	PresenceRemoved int `json:"presence_removed"`
}

// CreateRoom 創建房間
//
// roomID 為空時自動生成代碼；firstHand 未指定時預設執黑。創建者取得先手角色。
func (m *Manager) CreateRoom(creatorID, roomID string, firstHand Color) (RoomEntry, error) {
	if creatorID == "" {
		return RoomEntry{}, ErrUnauthorized
	}
	if firstHand != ColorNone && !firstHand.Valid() {
		return RoomEntry{}, ErrInvalidRequest.WithDetails("unknown color %q", firstHand)
	}

	custom := roomID != ""
	if custom {
		id, err := validateRoomID(roomID)
		if err != nil {
			return RoomEntry{}, err
		}
		roomID = id
	}

	now := m.now()

	m.mu.Lock()
	if !custom {
		roomID = m.unusedCodeLocked()
	} else if existing, ok := m.rooms[roomID]; ok {
		if !existing.IsDestroyed() {
			m.mu.Unlock()
			return RoomEntry{}, ErrRoomAlreadyExists.WithDetails("%s", roomID)
		}
		// 舊房間已標記銷毀但尚未移出房間表
		m.chat.Clear(roomID)
	}
	if firstHand == ColorNone {
		firstHand = ColorBlack
	}
	m.rooms[roomID] = newRoom(roomID, creatorID, firstHand, now)
	m.mu.Unlock()

	m.presence.Touch(creatorID, now)

	m.logger.Info("房間已創建",
		"room_id", roomID,
		"creator", creatorID,
		"first_hand", firstHand)

	return RoomEntry{
		RoomID: roomID,
		Role:   firstHand,
		Board:  EmptyBoard(),
		Status: StatusWaiting,
	}, nil
}

// unusedCodeLocked 生成未被佔用的房間代碼（需持有寫鎖）
func (m *Manager) unusedCodeLocked() string {
	for {
		code := generateRoomCode()
		if r, exists := m.rooms[code]; !exists || r.IsDestroyed() {
			return code
		}
	}
}

// GetRoom 獲取房間
func (m *Manager) GetRoom(roomID string) (*Room, error) {
	roomID = normalizeRoomID(roomID)

	m.mu.RLock()
	room, exists := m.rooms[roomID]
	m.mu.RUnlock()

	if !exists || room.IsDestroyed() {
		return nil, ErrRoomNotFound.WithDetails("%s", roomID)
	}
	return room, nil
}

// JoinRoom 加入房間
func (m *Manager) JoinRoom(roomID, joinerID string) (RoomEntry, error) {
	if joinerID == "" {
		return RoomEntry{}, ErrUnauthorized
	}
	room, err := m.GetRoom(roomID)
	if err != nil {
		return RoomEntry{}, err
	}

	now := m.now()
	role, err := room.Join(joinerID, now)
	if err != nil {
		return RoomEntry{}, err
	}
	m.presence.Touch(joinerID, now)

	state := room.State()
	m.logger.Info("玩家加入房間",
		"room_id", room.ID,
		"player_id", joinerID,
		"role", role,
		"status", state.Status)

	return RoomEntry{
		RoomID:         room.ID,
		Role:           role,
		Board:          state.Board,
		Status:         state.Status,
		OpponentJoined: opponentOf(state, role) != "",
	}, nil
}

// Move 落子
func (m *Manager) Move(roomID, moverID string, row, col int) (GameState, error) {
	room, err := m.GetRoom(roomID)
	if err != nil {
		return GameState{}, err
	}

	now := m.now()
	state, outcome, err := room.ApplyMove(moverID, row, col, now)
	if err != nil {
		return GameState{}, err
	}
	m.presence.Touch(moverID, now)

	if outcome != nil {
		m.recordOutcome(*outcome)
	}
	return state, nil
}

// recordOutcome 交出對局結果；失敗只記錄日誌
func (m *Manager) recordOutcome(o GameOutcome) {
	if err := m.outcomes.RecordOutcome(o); err != nil {
		m.logger.Error("記錄對局結果失敗", "room_id", o.RoomID, "error", err)
	}
}

// VoteRematch 再戰投票
func (m *Manager) VoteRematch(roomID, voterID string) (VoteResult, error) {
	room, err := m.GetRoom(roomID)
	if err != nil {
		return VoteResult{}, err
	}

	now := m.now()
	res, err := room.VoteRematch(voterID, now)
	if err != nil {
		return VoteResult{}, err
	}
	m.presence.Touch(voterID, now)

	if res.Restarted {
		m.logger.Info("再戰開始", "room_id", room.ID, "first_hand", res.State.FirstHand)
	}
	return res, nil
}

// LeaveRoom 離開房間
//
// 對局結束後雙方都離開時房間立即銷毀，回傳 Destroyed 讓呼叫者通知觀察者。
func (m *Manager) LeaveRoom(roomID, playerID string) (LeaveResult, error) {
	room, err := m.GetRoom(roomID)
	if err != nil {
		return LeaveResult{}, err
	}

	now := m.now()
	destroyed, err := room.Leave(playerID, now)
	if err != nil {
		return LeaveResult{}, err
	}
	m.presence.Touch(playerID, now)

	m.logger.Info("玩家離開房間",
		"room_id", room.ID,
		"player_id", playerID,
		"destroyed", destroyed)

	if destroyed {
		m.removeRoom(room, ReasonAllLeft)
	}
	return LeaveResult{Destroyed: destroyed}, nil
}

// DestroyRoom 銷毀房間（冪等，不存在時靜默略過）
func (m *Manager) DestroyRoom(roomID, reason string) bool {
	roomID = normalizeRoomID(roomID)

	m.mu.RLock()
	room, exists := m.rooms[roomID]
	m.mu.RUnlock()
	if !exists {
		return false
	}

	marked := room.markDestroyed()
	m.removeRoom(room, reason)
	return marked
}

// removeRoom 將已標記銷毀的房間移出房間表並清除聊天紀錄
func (m *Manager) removeRoom(room *Room, reason string) {
	m.mu.Lock()
	removed := false
	if current, ok := m.rooms[room.ID]; ok && current == room {
		delete(m.rooms, room.ID)
		m.chat.Clear(room.ID)
		removed = true
	}
	m.mu.Unlock()

	if removed {
		m.logger.Info("房間已移除", "room_id", room.ID, "reason", reason)
	}
}

// QuickMatch 快速配對
//
// 嘗試一次：有人等待就立即開房（雙方角色已定、直接開始），否則加入佇列。
// 等待方再次呼叫時取得配對結果。不會阻塞等待對手。
func (m *Manager) QuickMatch(playerID string) (QuickMatchResult, error) {
	if playerID == "" {
		return QuickMatchResult{}, ErrUnauthorized
	}

	now := m.now()
	m.presence.Touch(playerID, now)

	for attempt := 0; attempt < 2; attempt++ {
		res, err := m.queue.MatchOrEnqueue(playerID, now, m.cfg.MatchWaitWindow, func(waiting MatchQueueEntry) (MatchNotice, MatchNotice, error) {
			return m.createMatchedRoom(waiting.PlayerID, playerID, now)
		})
		if err != nil {
			return QuickMatchResult{}, err
		}

		if !res.Matched {
			return QuickMatchResult{Status: MatchStatusWaiting, Token: res.Entry.Token}, nil
		}

		// 等待期間房間可能已被清理，此時重新配對一次
		room, err := m.GetRoom(res.Notice.RoomID)
		if err != nil {
			continue
		}
		if _, err := room.Join(playerID, now); err != nil {
			continue
		}
		return QuickMatchResult{
			Status:   MatchStatusMatched,
			RoomID:   res.Notice.RoomID,
			Role:     res.Notice.Role,
			Opponent: res.Notice.Opponent,
		}, nil
	}

	entry := m.queue.Enqueue(playerID, now)
	return QuickMatchResult{Status: MatchStatusWaiting, Token: entry.Token}, nil
}

// createMatchedRoom 等待方執黑、後到者執白，先手隨機
func (m *Manager) createMatchedRoom(waitingID, callerID string, now time.Time) (MatchNotice, MatchNotice, error) {
	first := m.firstHand()

	m.mu.Lock()
	code := m.unusedCodeLocked()
	m.chat.Clear(code)
	room := newMatchedRoom(code, waitingID, callerID, first, now)
	m.rooms[code] = room
	m.mu.Unlock()

	m.logger.Info("配對成功",
		"room_id", code,
		"black", waitingID,
		"white", callerID,
		"first_hand", first)

	caller := MatchNotice{RoomID: code, Role: ColorWhite, Opponent: waitingID, MatchedAt: now}
	waiting := MatchNotice{RoomID: code, Role: ColorBlack, Opponent: callerID, MatchedAt: now}
	return caller, waiting, nil
}

// CancelMatch 取消排隊
func (m *Manager) CancelMatch(playerID string) bool {
	m.presence.Touch(playerID, m.now())
	return m.queue.Remove(playerID)
}

// SendChat 發送聊天訊息
func (m *Manager) SendChat(roomID, authorID, authorName, content string) (ChatMessage, error) {
	room, err := m.GetRoom(roomID)
	if err != nil {
		return ChatMessage{}, err
	}

	now := m.now()
	msg, err := room.Say(m.chat, authorID, authorName, content, now)
	if err != nil {
		return ChatMessage{}, err
	}
	m.presence.Touch(authorID, now)
	return msg, nil
}

// ChatSince 讀取房間中 ID 大於 afterID 的訊息
func (m *Manager) ChatSince(roomID string, afterID int64) ([]ChatMessage, error) {
	room, err := m.GetRoom(roomID)
	if err != nil {
		return nil, err
	}
	return m.chat.Since(room.ID, afterID), nil
}

// Poll 輪詢房間狀態、對手在線狀態與新訊息
//
// playerID 可以為空（旁觀），此時不更新在線狀態。
func (m *Manager) Poll(roomID, playerID string, afterID int64) (PollResult, error) {
	room, err := m.GetRoom(roomID)
	if err != nil {
		return PollResult{}, err
	}

	state, role, err := room.View(playerID)
	if err != nil {
		return PollResult{}, err
	}
	m.presence.Touch(playerID, m.now())

	res := PollResult{
		State:    state,
		Role:     role,
		Messages: m.chat.Since(room.ID, afterID),
	}
	if opp := opponentOf(state, role); opp != "" {
		res.OpponentOnline = m.presence.IsOnline(opp)
		for _, id := range state.PlayersInRoom {
			if id == opp {
				res.OpponentInRoom = true
				break
			}
		}
	}
	return res, nil
}

// opponentOf 依角色找出對手
func opponentOf(s GameState, role Color) string {
	switch role {
	case ColorBlack:
		return s.White
	case ColorWhite:
		return s.Black
	default:
		return ""
	}
}

// IsOnline 玩家是否在線
func (m *Manager) IsOnline(playerID string) bool {
	return m.presence.IsOnline(playerID)
}

// Start 啟動清理排程
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		m.wg.Add(1)
		go m.cleanupLoop()
		m.logger.Info("清理排程已啟動", "interval", m.cfg.SweepInterval)
	})
}

// cleanupLoop 定期清理
func (m *Manager) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Cleanup()
		case <-m.stopCh:
			return
		}
	}
}

// Cleanup 執行一次清理（排程與管理介面共用）
//
// 依策略銷毀房間，再過濾配對佇列與在線狀態。
func (m *Manager) Cleanup() CleanupReport {
	now := m.now()

	m.mu.RLock()
	candidates := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		candidates = append(candidates, room)
	}
	m.mu.RUnlock()

	var report CleanupReport
	for _, room := range candidates {
		reason, ok := room.markEvictable(now, m.policy)
		if !ok {
			continue
		}
		m.removeRoom(room, reason)
		report.RoomsRemoved++
	}

	report.QueueRemoved = m.queue.Expire(now, m.cfg.MatchWaitWindow)
	report.PresenceRemoved = m.presence.Prune(now, m.cfg.PresenceIdle)

	if report != (CleanupReport{}) {
		m.logger.Info("清理完成",
			"rooms_removed", report.RoomsRemoved,
			"queue_removed", report.QueueRemoved,
			"presence_removed", report.PresenceRemoved)
	}
	return report
}

// Stop 停止清理排程並關閉所有房間
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()

		m.mu.RLock()
		rooms := make([]*Room, 0, len(m.rooms))
		for _, room := range m.rooms {
			rooms = append(rooms, room)
		}
		m.mu.RUnlock()

		for _, room := range rooms {
			room.markDestroyed()
			m.removeRoom(room, ReasonShutdown)
		}

		m.logger.Info("房間協調器已停止")
	})
}

// RoomSummary 房間摘要（管理介面）
type RoomSummary struct {
	RoomID     string     `json:"room_id"`
	Status     RoomStatus `json:"status"`
	Black      string     `json:"black,omitempty"`
	White      string     `json:"white,omitempty"`
	InRoom     int        `json:"in_room"`
	MoveCount  int        `json:"move_count"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUpdate time.Time  `json:"last_update"`
}

// ListRooms 列出所有房間（依創建時間排序）
func (m *Manager) ListRooms() []RoomSummary {
	m.mu.RLock()
	result := make([]RoomSummary, 0, len(m.rooms))
	for _, room := range m.rooms {
		if room.IsDestroyed() {
			continue
		}
		s := room.State()
		result = append(result, RoomSummary{
			RoomID:     s.RoomID,
			Status:     s.Status,
			Black:      s.Black,
			White:      s.White,
			InRoom:     len(s.PlayersInRoom),
			MoveCount:  s.MoveCount,
			CreatedAt:  s.CreatedAt,
			LastUpdate: s.UpdatedAt,
		})
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].RoomID < result[j].RoomID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Stats 統計資訊
type Stats struct {
	TotalRooms int                `json:"total_rooms"`
	ByStatus   map[RoomStatus]int `json:"by_status"`
	Queued     int                `json:"queued"`
	Presence   PresenceSnapshot   `json:"presence"`
}

// PresenceSnapshot 在線人數（房內 / 配對中 / 閒置）
func (m *Manager) PresenceSnapshot() PresenceSnapshot {
	inRoom := make(map[string]struct{})

	m.mu.RLock()
	for _, room := range m.rooms {
		if room.IsDestroyed() {
			continue
		}
		for _, id := range room.presentPlayers() {
			inRoom[id] = struct{}{}
		}
	}
	m.mu.RUnlock()

	return m.presence.Snapshot(inRoom, m.queue.Players())
}

// Stats 獲取統計資訊
func (m *Manager) Stats() Stats {
	byStatus := make(map[RoomStatus]int)

	m.mu.RLock()
	total := 0
	for _, room := range m.rooms {
		if room.IsDestroyed() {
			continue
		}
		total++
		byStatus[room.State().Status]++
	}
	m.mu.RUnlock()

	return Stats{
		TotalRooms: total,
		ByStatus:   byStatus,
		Queued:     m.queue.Len(),
		Presence:   m.PresenceSnapshot(),
	}
}
