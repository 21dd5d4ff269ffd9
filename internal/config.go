package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 整個應用的配置
type Config struct {
	Server struct {
		Port         int           `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		IdleTimeout  time.Duration `yaml:"idle_timeout"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Coordinator CoordinatorConfig `yaml:"coordinator"`

	Watch struct {
		Interval time.Duration `yaml:"interval"` // WebSocket 推送的輪詢間隔
	} `yaml:"watch"`

	NATS struct {
		URL     string `yaml:"url"` // 空字串代表不發布對局結果
		Subject string `yaml:"subject"`
	} `yaml:"nats"`
}

// CoordinatorConfig 房間協調器的策略參數
type CoordinatorConfig struct {
	SweepInterval   time.Duration `yaml:"sweep_interval"`    // 清理週期
	EmptyRoomGrace  time.Duration `yaml:"empty_room_grace"`  // 空房間寬限
	WaitingRoomTTL  time.Duration `yaml:"waiting_room_ttl"`  // 未湊滿房間的存活上限
	MatchWaitWindow time.Duration `yaml:"match_wait_window"` // 配對排隊時限
	PresenceIdle    time.Duration `yaml:"presence_idle"`     // 在線判定閒置上限
	ChatHistory     int           `yaml:"chat_history"`      // 每房保留訊息數
	ChatMaxLength   int           `yaml:"chat_max_length"`   // 單則訊息字數上限
}

// DefaultCoordinatorConfig 預設策略
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		SweepInterval:   1 * time.Minute,
		EmptyRoomGrace:  30 * time.Second,
		WaitingRoomTTL:  1 * time.Hour,
		MatchWaitWindow: 30 * time.Second,
		PresenceIdle:    5 * time.Minute,
		ChatHistory:     50,
		ChatMaxLength:   500,
	}
}

// DefaultConfig 返回預設配置
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 15 * time.Second
	cfg.Server.IdleTimeout = 60 * time.Second
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Coordinator = DefaultCoordinatorConfig()
	cfg.Watch.Interval = 1 * time.Second
	cfg.NATS.Subject = "gomoku.outcomes"
	return cfg
}

// LoadConfig 載入配置檔案，未出現的欄位沿用預設值
//
// path 為空時只套用預設值與環境變數。
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		// #nosec G304 - path 來自啟動參數
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// 支援環境變數覆蓋（部署時常用）
	if v := os.Getenv("GOMOKU_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse GOMOKU_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("GOMOKU_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 檢查配置
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be positive")
	}
	if c.NATS.URL != "" && c.NATS.Subject == "" {
		return fmt.Errorf("nats.subject is required when nats.url is set")
	}
	return c.Coordinator.Validate()
}

// Validate 檢查策略參數
func (c CoordinatorConfig) Validate() error {
	durations := map[string]time.Duration{
		"sweep_interval":    c.SweepInterval,
		"empty_room_grace":  c.EmptyRoomGrace,
		"waiting_room_ttl":  c.WaitingRoomTTL,
		"match_wait_window": c.MatchWaitWindow,
		"presence_idle":     c.PresenceIdle,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("coordinator.%s must be positive", name)
		}
	}
	if c.ChatHistory <= 0 {
		return fmt.Errorf("coordinator.chat_history must be positive")
	}
	if c.ChatMaxLength <= 0 {
		return fmt.Errorf("coordinator.chat_max_length must be positive")
	}
	return nil
}

// EvictionPolicy 轉換為房間清理策略
func (c CoordinatorConfig) EvictionPolicy() EvictionPolicy {
	return EvictionPolicy{
		EmptyGrace: c.EmptyRoomGrace,
		WaitingTTL: c.WaitingRoomTTL,
	}
}
