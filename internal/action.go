package internal

import (
	"bytes"
	"encoding/json"
	"strings"
)

// 動作名稱
const (
	ActionCreateRoom  = "create_room"
	ActionJoinRoom    = "join_room"
	ActionMove        = "move"
	ActionVoteNewGame = "vote_new_game"
	ActionLeaveRoom   = "leave_room"
	ActionQuickMatch  = "quick_match"
	ActionCancelMatch = "cancel_match"
	ActionSendChat    = "send_chat"
	ActionPoll        = "poll"
)

// Action 一個請求變體，每種動作各自宣告必要欄位
type Action interface {
	Name() string
	Validate() error
}

// CreateRoomAction 創建房間
type CreateRoomAction struct {
	RoomID    string `json:"room_id,omitempty"`
	FirstHand Color  `json:"first_hand,omitempty"`
}

// JoinRoomAction 加入房間
type JoinRoomAction struct {
	RoomID string `json:"room_id"`
}

// MoveAction 落子（座標用指標區分「未提供」與 0）
type MoveAction struct {
	RoomID string `json:"room_id"`
	Row    *int   `json:"row"`
	Col    *int   `json:"col"`
}

// VoteNewGameAction 再戰投票
type VoteNewGameAction struct {
	RoomID string `json:"room_id"`
}

// LeaveRoomAction 離開房間
type LeaveRoomAction struct {
	RoomID string `json:"room_id"`
}

// QuickMatchAction 快速配對
type QuickMatchAction struct{}

// CancelMatchAction 取消配對
type CancelMatchAction struct{}

// SendChatAction 發送聊天
type SendChatAction struct {
	RoomID  string `json:"room_id"`
	Content string `json:"content"`
}

// PollAction 輪詢
type PollAction struct {
	RoomID  string `json:"room_id"`
	AfterID int64  `json:"after_id,omitempty"`
}

func (CreateRoomAction) Name() string  { return ActionCreateRoom }
func (JoinRoomAction) Name() string    { return ActionJoinRoom }
func (MoveAction) Name() string        { return ActionMove }
func (VoteNewGameAction) Name() string { return ActionVoteNewGame }
func (LeaveRoomAction) Name() string   { return ActionLeaveRoom }
func (QuickMatchAction) Name() string  { return ActionQuickMatch }
func (CancelMatchAction) Name() string { return ActionCancelMatch }
func (SendChatAction) Name() string    { return ActionSendChat }
func (PollAction) Name() string        { return ActionPoll }

func (a CreateRoomAction) Validate() error {
	if a.FirstHand != ColorNone && !a.FirstHand.Valid() {
		return ErrInvalidRequest.WithDetails("first_hand must be black or white")
	}
	return nil
}

func (a JoinRoomAction) Validate() error    { return requireRoomID(a.RoomID) }
func (a VoteNewGameAction) Validate() error { return requireRoomID(a.RoomID) }
func (a LeaveRoomAction) Validate() error   { return requireRoomID(a.RoomID) }
func (QuickMatchAction) Validate() error    { return nil }
func (CancelMatchAction) Validate() error   { return nil }

func (a MoveAction) Validate() error {
	if err := requireRoomID(a.RoomID); err != nil {
		return err
	}
	if a.Row == nil || a.Col == nil {
		return ErrInvalidRequest.WithDetails("row and col are required")
	}
	return nil
}

func (a SendChatAction) Validate() error {
	if err := requireRoomID(a.RoomID); err != nil {
		return err
	}
	if strings.TrimSpace(a.Content) == "" {
		return ErrInvalidRequest.WithDetails("content is required")
	}
	return nil
}

func (a PollAction) Validate() error {
	if err := requireRoomID(a.RoomID); err != nil {
		return err
	}
	if a.AfterID < 0 {
		return ErrInvalidRequest.WithDetails("after_id must not be negative")
	}
	return nil
}

func requireRoomID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidRequest.WithDetails("room_id is required")
	}
	return nil
}

// DecodeAction 依名稱解碼 payload 為對應變體
//
// 未知動作、未知欄位、缺少必要欄位都回傳 ErrInvalidRequest。
func DecodeAction(name string, payload json.RawMessage) (Action, error) {
	var a Action
	switch name {
	case ActionCreateRoom:
		a = &CreateRoomAction{}
	case ActionJoinRoom:
		a = &JoinRoomAction{}
	case ActionMove:
		a = &MoveAction{}
	case ActionVoteNewGame:
		a = &VoteNewGameAction{}
	case ActionLeaveRoom:
		a = &LeaveRoomAction{}
	case ActionQuickMatch:
		a = &QuickMatchAction{}
	case ActionCancelMatch:
		a = &CancelMatchAction{}
	case ActionSendChat:
		a = &SendChatAction{}
	case ActionPoll:
		a = &PollAction{}
	default:
		return nil, ErrInvalidRequest.WithDetails("unknown action %q", name)
	}

	if len(bytes.TrimSpace(payload)) > 0 && !bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(payload))
		dec.DisallowUnknownFields()
		if err := dec.Decode(a); err != nil {
			return nil, ErrInvalidRequest.WithDetails("decode %s payload: %v", name, err)
		}
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// CancelMatchResult 取消配對的回應
type CancelMatchResult struct {
	Cancelled bool `json:"cancelled"`
}

// Dispatch 執行一個動作，回傳該動作的成功結果
//
// 呼叫者身分由外部驗證提供；playerName 只用於聊天顯示。
func (m *Manager) Dispatch(playerID, playerName string, a Action) (any, error) {
	if playerID == "" {
		return nil, ErrUnauthorized
	}

	switch act := a.(type) {
	case *CreateRoomAction:
		return m.CreateRoom(playerID, act.RoomID, act.FirstHand)
	case *JoinRoomAction:
		return m.JoinRoom(act.RoomID, playerID)
	case *MoveAction:
		return m.Move(act.RoomID, playerID, *act.Row, *act.Col)
	case *VoteNewGameAction:
		return m.VoteRematch(act.RoomID, playerID)
	case *LeaveRoomAction:
		return m.LeaveRoom(act.RoomID, playerID)
	case *QuickMatchAction:
		return m.QuickMatch(playerID)
	case *CancelMatchAction:
		return CancelMatchResult{Cancelled: m.CancelMatch(playerID)}, nil
	case *SendChatAction:
		return m.SendChat(act.RoomID, playerID, playerName, act.Content)
	case *PollAction:
		return m.Poll(act.RoomID, playerID, act.AfterID)
	default:
		return nil, ErrInvalidRequest.WithDetails("unsupported action %T", a)
	}
}
