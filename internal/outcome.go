package internal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// OutcomeRecorder 接收已結束的對局
//
// 戰績與積分的持久化屬於外部協作者，協調器只負責交出結果。
type OutcomeRecorder interface {
	RecordOutcome(outcome GameOutcome) error
}

// LogOutcomeRecorder 只寫日誌（未設定 NATS 時的預設實作）
type LogOutcomeRecorder struct {
	logger *slog.Logger
}

// NewLogOutcomeRecorder 創建日誌記錄器
func NewLogOutcomeRecorder(logger *slog.Logger) *LogOutcomeRecorder {
	return &LogOutcomeRecorder{logger: logger}
}

// RecordOutcome 實現 OutcomeRecorder
func (r *LogOutcomeRecorder) RecordOutcome(o GameOutcome) error {
	r.logger.Info("對局結束",
		"room_id", o.RoomID,
		"black", o.Black,
		"white", o.White,
		"winner", o.Winner,
		"moves", o.Moves)
	return nil
}

// Publisher 發布訊息的最小介面，*nats.Conn 即滿足
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSOutcomeRecorder 以 JSON 發布對局結果到 NATS subject
type NATSOutcomeRecorder struct {
	pub     Publisher
	subject string
	logger  *slog.Logger
}

// NewNATSOutcomeRecorder 創建 NATS 記錄器
func NewNATSOutcomeRecorder(pub Publisher, subject string, logger *slog.Logger) *NATSOutcomeRecorder {
	return &NATSOutcomeRecorder{
		pub:     pub,
		subject: subject,
		logger:  logger,
	}
}

// RecordOutcome 實現 OutcomeRecorder
func (r *NATSOutcomeRecorder) RecordOutcome(o GameOutcome) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	if err := r.pub.Publish(r.subject, data); err != nil {
		return fmt.Errorf("publish outcome: %w", err)
	}
	r.logger.Debug("對局結果已發布", "room_id", o.RoomID, "subject", r.subject)
	return nil
}

// ConnectNATS 連接 NATS（斷線無限重連）
func ConnectNATS(url string, logger *slog.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(
		url,
		nats.Name("gomoku-coordinator"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS 連線中斷", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS 已重新連線", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("連接 NATS 失敗: %w", err)
	}
	return conn, nil
}
