package internal

import (
	"errors"
	"fmt"
)

// 錯誤碼
const (
	ErrCodeRoomNotFound      = "ROOM_NOT_FOUND"
	ErrCodeRoomAlreadyExists = "ROOM_ALREADY_EXISTS"
	ErrCodeRoomFull          = "ROOM_FULL"
	ErrCodeNotYourTurn       = "NOT_YOUR_TURN"
	ErrCodeGameNotInProgress = "GAME_NOT_IN_PROGRESS"
	ErrCodeIllegalMove       = "ILLEGAL_MOVE"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
)

// AppError 協調器錯誤
//
// 所有操作只會回傳成功結果或其中一種錯誤碼，不存在部分成功。
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
}

// Error 實現 error 介面
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 實現 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 以錯誤碼比對，讓 errors.Is(err, ErrRoomNotFound) 對帶細節的錯誤也成立
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError 創建新的協調器錯誤
func NewError(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// WithDetails 複製錯誤並附加細節，不修改共用的預定義錯誤
func (e *AppError) WithDetails(format string, args ...any) *AppError {
	cp := *e
	cp.Details = fmt.Sprintf(format, args...)
	return &cp
}

// 預定義錯誤
var (
	ErrRoomNotFound      = NewError(ErrCodeRoomNotFound, "room not found")
	ErrRoomAlreadyExists = NewError(ErrCodeRoomAlreadyExists, "room already exists")
	ErrRoomFull          = NewError(ErrCodeRoomFull, "room is full")
	ErrNotYourTurn       = NewError(ErrCodeNotYourTurn, "not your turn")
	ErrGameNotInProgress = NewError(ErrCodeGameNotInProgress, "game is not in the required state")
	ErrIllegalMove       = NewError(ErrCodeIllegalMove, "illegal move")
	ErrUnauthorized      = NewError(ErrCodeUnauthorized, "caller holds no role in this room")
	ErrInvalidRequest    = NewError(ErrCodeInvalidRequest, "invalid request")
)

// ErrorCode 取出錯誤碼，非 AppError 回傳空字串
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
