package internal

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// RoomStatus 房間狀態
//
// 狀態轉換：
//
//	waiting → playing → ended
//	             ↑________↓ （雙方同意再戰）
//
// 所有玩家離開時 playing 退回 waiting；ended 且無人在房內則直接銷毀。
type RoomStatus string

const (
	StatusWaiting RoomStatus = "waiting" // 等待對手加入
	StatusPlaying RoomStatus = "playing" // 對局中
	StatusEnded   RoomStatus = "ended"   // 對局結束（勝負或和局）
)

// 銷毀原因
const (
	ReasonTimeout     = "timeout"
	ReasonGameOver    = "game_over"
	ReasonNeverFilled = "never_filled"
	ReasonAllLeft     = "all_left_after_game"
	ReasonAdmin       = "admin"
	ReasonShutdown    = "server_shutdown"
)

// Move 一手棋
type Move struct {
	Row   int   `json:"row"`
	Col   int   `json:"col"`
	Color Color `json:"color"`
}

// RematchVotes 再戰投票（每局開始時重置）
type RematchVotes struct {
	Black bool `json:"black"`
	White bool `json:"white"`
}

func (v *RematchVotes) set(c Color) {
	switch c {
	case ColorBlack:
		v.Black = true
	case ColorWhite:
		v.White = true
	}
}

// EvictionPolicy 清理策略
type EvictionPolicy struct {
	EmptyGrace time.Duration // 空房間的寬限時間
	WaitingTTL time.Duration // 等待中房間的最長存活時間
}

// Room 一局五子棋
//
// 系統設計考量：
//
//  1. 並發控制（每房一把 Mutex）：
//     問題：雙方同時落子、投票或離開同一房間
//     方案：所有讀寫都在 r.mu 內完成，不同房間互不阻塞
//     - 輪次、棋盤與狀態在同一臨界區內檢查並更新
//     - State/View 回傳副本，呼叫端拿到的資料不會再變動
//
//  2. 銷毀標記（destroyed）：
//     問題：請求已從房間表取得指標，房間隨後被清理
//     方案：destroyed 只在持有 r.mu 時設定
//     - 晚到的請求進入鎖後看到標記，回傳 ErrRoomNotFound
//     - markDestroyed 以 CAS 保證只有一次銷毀生效
//
//  3. 在房名單（present）與角色分離：
//     - 角色（Black/White）決定誰能落子，離開後仍保留以便重新加入
//     - present 只記錄目前真正在房內的玩家，清理規則依它判斷房間是否為空
//     - 配對房間的等待方要等取走配對通知才入座，否則沒人回來的房間永遠不會被視為空房
type Room struct {
	ID          string
	Black       string // 執黑玩家，空字串代表尚未分配
	White       string // 執白玩家
	Board       Board
	CurrentTurn Color
	Status      RoomStatus
	Winner      Color
	LastMove    *Move
	FirstHand   Color // 本局先手
	Votes       RematchVotes
	MoveCount   int
	CreatedAt   time.Time
	LastUpdate  time.Time

	present   map[string]struct{} // 目前在房內的玩家（與角色分配分開）
	mu        sync.Mutex
	destroyed atomic.Bool
}

// GameState 房間狀態快照
type GameState struct {
	RoomID        string       `json:"room_id"`
	Black         string       `json:"black,omitempty"`
	White         string       `json:"white,omitempty"`
	Board         Board        `json:"board"`
	CurrentTurn   Color        `json:"current_turn"`
	Status        RoomStatus   `json:"status"`
	Winner        Color        `json:"winner,omitempty"`
	LastMove      *Move        `json:"last_move,omitempty"`
	FirstHand     Color        `json:"first_hand"`
	RematchVotes  RematchVotes `json:"rematch_votes"`
	PlayersInRoom []string     `json:"players_in_room"`
	MoveCount     int          `json:"move_count"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// GameOutcome 對局結果（交給外部協作者記錄戰績）
type GameOutcome struct {
	RoomID    string    `json:"room_id"`
	Black     string    `json:"black"`
	White     string    `json:"white"`
	Winner    Color     `json:"winner,omitempty"` // 空值代表和局
	FirstHand Color     `json:"first_hand"`
	Moves     int       `json:"moves"`
	EndedAt   time.Time `json:"ended_at"`
}

// newRoom 創建房間，creator 取得 firstHand 角色
func newRoom(id, creatorID string, firstHand Color, now time.Time) *Room {
	if !firstHand.Valid() {
		firstHand = ColorBlack
	}
	r := &Room{
		ID:          id,
		Board:       EmptyBoard(),
		CurrentTurn: firstHand,
		Status:      StatusWaiting,
		FirstHand:   firstHand,
		CreatedAt:   now,
		LastUpdate:  now,
		present:     make(map[string]struct{}),
	}
	r.assign(firstHand, creatorID)
	r.present[creatorID] = struct{}{}
	return r
}

// newMatchedRoom 配對成功的房間：雙方角色已定，直接進入 playing
//
// 只有完成配對的呼叫者入座；等待方取走配對通知時才算進入房間。
func newMatchedRoom(id, blackID, whiteID string, firstHand Color, now time.Time) *Room {
	r := newRoom(id, whiteID, ColorWhite, now)
	r.assign(ColorBlack, blackID)
	r.FirstHand = firstHand
	r.CurrentTurn = firstHand
	r.Status = StatusPlaying
	return r
}

func (r *Room) assign(c Color, playerID string) {
	switch c {
	case ColorBlack:
		r.Black = playerID
	case ColorWhite:
		r.White = playerID
	}
}

func (r *Room) holder(c Color) string {
	switch c {
	case ColorBlack:
		return r.Black
	case ColorWhite:
		return r.White
	default:
		return ""
	}
}

// roleOf 玩家在本房間的角色（需持有鎖）
func (r *Room) roleOf(playerID string) Color {
	switch {
	case playerID == "":
		return ColorNone
	case r.Black == playerID:
		return ColorBlack
	case r.White == playerID:
		return ColorWhite
	default:
		return ColorNone
	}
}

func (r *Room) bothAssigned() bool {
	return r.Black != "" && r.White != ""
}

// Join 加入房間
//
// 已有角色的玩家視為重新進入：回到座位、不重新分配。
// 第二個角色分配完成時 waiting → playing。
func (r *Room) Join(playerID string, now time.Time) (Color, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.destroyed.Load() {
		return ColorNone, ErrRoomNotFound
	}

	role := r.roleOf(playerID)
	if role == ColorNone {
		switch {
		case r.Black == "":
			role = ColorBlack
		case r.White == "":
			role = ColorWhite
		default:
			return ColorNone, ErrRoomFull
		}
		r.assign(role, playerID)
	}

	r.present[playerID] = struct{}{}
	if r.Status == StatusWaiting && r.bothAssigned() {
		r.Status = StatusPlaying
	}
	r.LastUpdate = now

	return role, nil
}

// ApplyMove 落子
//
// 檢查順序：無角色 → 狀態 → 輪次 → 合法性。獲勝或滿盤時回傳對局結果。
func (r *Room) ApplyMove(playerID string, row, col int, now time.Time) (GameState, *GameOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.destroyed.Load() {
		return GameState{}, nil, ErrRoomNotFound
	}

	role := r.roleOf(playerID)
	if role == ColorNone {
		return GameState{}, nil, ErrNotYourTurn.WithDetails("player %s holds no role", playerID)
	}
	if r.Status != StatusPlaying {
		return GameState{}, nil, ErrGameNotInProgress.WithDetails("status is %s", r.Status)
	}
	if role != r.CurrentTurn {
		return GameState{}, nil, ErrNotYourTurn
	}
	if !IsLegalMove(&r.Board, row, col) {
		return GameState{}, nil, ErrIllegalMove.WithDetails("(%d, %d)", row, col)
	}

	r.Board = ApplyMove(r.Board, row, col, role)
	r.LastMove = &Move{Row: row, Col: col, Color: role}
	r.MoveCount++
	r.CurrentTurn = role.Opposite()
	r.LastUpdate = now

	var outcome *GameOutcome
	if winner := CheckWin(&r.Board, row, col, role); winner != ColorNone {
		r.Status = StatusEnded
		r.Winner = winner
		outcome = r.outcome(now)
	} else if IsBoardFull(&r.Board) {
		r.Status = StatusEnded
		r.Winner = ColorNone
		outcome = r.outcome(now)
	}

	return r.stateLocked(), outcome, nil
}

func (r *Room) outcome(now time.Time) *GameOutcome {
	return &GameOutcome{
		RoomID:    r.ID,
		Black:     r.Black,
		White:     r.White,
		Winner:    r.Winner,
		FirstHand: r.FirstHand,
		Moves:     r.MoveCount,
		EndedAt:   now,
	}
}

// VoteResult 再戰投票結果
type VoteResult struct {
	Restarted bool       `json:"restarted"`
	WaitingOn Color      `json:"waiting_on,omitempty"`
	State     *GameState `json:"state,omitempty"`
}

// VoteRematch 再戰投票，雙方都同意時交換先手重開
func (r *Room) VoteRematch(playerID string, now time.Time) (VoteResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.destroyed.Load() {
		return VoteResult{}, ErrRoomNotFound
	}
	if r.Status != StatusEnded {
		return VoteResult{}, ErrGameNotInProgress.WithDetails("status is %s", r.Status)
	}
	role := r.roleOf(playerID)
	if role == ColorNone {
		return VoteResult{}, ErrUnauthorized
	}

	r.Votes.set(role)
	r.LastUpdate = now

	if !(r.Votes.Black && r.Votes.White) {
		return VoteResult{WaitingOn: role.Opposite()}, nil
	}

	r.FirstHand = r.FirstHand.Opposite()
	r.Board = EmptyBoard()
	r.Status = StatusPlaying
	r.CurrentTurn = r.FirstHand
	r.Winner = ColorNone
	r.LastMove = nil
	r.MoveCount = 0
	r.Votes = RematchVotes{}

	state := r.stateLocked()
	return VoteResult{Restarted: true, State: &state}, nil
}

// Leave 離開房間，保留角色以便回座
//
// 房內無人時：已結束的對局直接銷毀（回傳 true），否則退回 waiting。
func (r *Room) Leave(playerID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.destroyed.Load() {
		return false, ErrRoomNotFound
	}
	if r.roleOf(playerID) == ColorNone {
		if _, ok := r.present[playerID]; !ok {
			return false, ErrUnauthorized
		}
	}

	delete(r.present, playerID)
	r.LastUpdate = now

	if len(r.present) > 0 {
		return false, nil
	}
	if r.Status == StatusEnded {
		r.destroyed.Store(true)
		return true, nil
	}
	r.Status = StatusWaiting
	return false, nil
}

// Say 發送聊天訊息，只有持有角色的玩家可以發言
func (r *Room) Say(chat *ChatStore, authorID, authorName, content string, now time.Time) (ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.destroyed.Load() {
		return ChatMessage{}, ErrRoomNotFound
	}
	role := r.roleOf(authorID)
	if role == ColorNone {
		return ChatMessage{}, ErrUnauthorized
	}

	msg, err := chat.Append(r.ID, authorID, authorName, role, content, now)
	if err != nil {
		return ChatMessage{}, err
	}
	r.LastUpdate = now
	return msg, nil
}

// View 讀取快照與呼叫者角色
func (r *Room) View(playerID string) (GameState, Color, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.destroyed.Load() {
		return GameState{}, ColorNone, ErrRoomNotFound
	}
	return r.stateLocked(), r.roleOf(playerID), nil
}

// State 房間狀態快照
func (r *Room) State() GameState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

func (r *Room) stateLocked() GameState {
	players := make([]string, 0, len(r.present))
	for id := range r.present {
		players = append(players, id)
	}
	sort.Strings(players)

	var last *Move
	if r.LastMove != nil {
		m := *r.LastMove
		last = &m
	}

	return GameState{
		RoomID:        r.ID,
		Black:         r.Black,
		White:         r.White,
		Board:         r.Board,
		CurrentTurn:   r.CurrentTurn,
		Status:        r.Status,
		Winner:        r.Winner,
		LastMove:      last,
		FirstHand:     r.FirstHand,
		RematchVotes:  r.Votes,
		PlayersInRoom: players,
		MoveCount:     r.MoveCount,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.LastUpdate,
	}
}

// IsPresent 玩家是否在房內
func (r *Room) IsPresent(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.present[playerID]
	return ok
}

// presentPlayers 在房內玩家的複本
func (r *Room) presentPlayers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.present))
	for id := range r.present {
		out = append(out, id)
	}
	return out
}

// evictionReason 依序套用清理策略（需持有鎖）
//
//  1. 空房間且閒置超過寬限 → timeout
//  2. 已結束且空房 → game_over（不看寬限）
//  3. 等待中且存活超過上限 → never_filled
func (r *Room) evictionReason(now time.Time, p EvictionPolicy) (string, bool) {
	empty := len(r.present) == 0
	switch {
	case empty && now.Sub(r.LastUpdate) > p.EmptyGrace:
		return ReasonTimeout, true
	case r.Status == StatusEnded && empty:
		return ReasonGameOver, true
	case r.Status == StatusWaiting && now.Sub(r.CreatedAt) > p.WaitingTTL:
		return ReasonNeverFilled, true
	default:
		return "", false
	}
}

// markEvictable 在鎖內判定並標記銷毀，回傳原因
func (r *Room) markEvictable(now time.Time, p EvictionPolicy) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.destroyed.Load() {
		return "", false
	}
	reason, ok := r.evictionReason(now, p)
	if ok {
		r.destroyed.Store(true)
	}
	return reason, ok
}

// markDestroyed 標記銷毀，只有第一次呼叫回傳 true
func (r *Room) markDestroyed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroyed.CompareAndSwap(false, true)
}

// IsDestroyed 房間是否已被銷毀
func (r *Room) IsDestroyed() bool {
	return r.destroyed.Load()
}
