package internal

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"
	"time"
)

const (
	roomCodeChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeLength = 6
)

var roomIDPattern = regexp.MustCompile(`^[A-Z0-9_-]{1,16}$`)

// generateRoomCode 生成簡短的房間代碼（如 "K3F9QZ"）
func generateRoomCode() string {
	b := make([]byte, roomCodeLength)
	for i := range b {
		b[i] = roomCodeChars[randInt(len(roomCodeChars))]
	}
	return string(b)
}

// randInt 生成 [0, max) 的隨機數
func randInt(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		// 如果隨機讀取失敗，使用時間作為隨機源
		return int(time.Now().UnixNano() % int64(max))
	}
	return int(n.Int64())
}

// normalizeRoomID 房間代碼不分大小寫，忽略前後空白
func normalizeRoomID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// validateRoomID 檢查自訂房間代碼
func validateRoomID(id string) (string, error) {
	id = normalizeRoomID(id)
	if !roomIDPattern.MatchString(id) {
		return "", ErrInvalidRequest.WithDetails("room id must match %s", roomIDPattern.String())
	}
	return id, nil
}
