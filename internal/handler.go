package internal

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// 身分標頭（由前置的驗證代理設定）
const (
	HeaderPlayerID   = "X-Player-ID"
	HeaderPlayerName = "X-Player-Name"
	HeaderRequestID  = "X-Request-ID"
)

const maxBodyBytes = 64 << 10

// Handler HTTP 請求處理器
type Handler struct {
	manager *Manager
	logger  *slog.Logger
}

// NewHandler 創建 HTTP 處理器
func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		logger:  logger,
	}
}

// Routes 設定路由
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	// 中間件鏈
	wrap := func(handler http.HandlerFunc) http.HandlerFunc {
		return h.recoverer(h.loggerMiddleware(handler))
	}

	// 動作 API
	mux.HandleFunc("POST /api/v1/actions", wrap(h.action))
	mux.HandleFunc("GET /api/v1/rooms/{room_id}", wrap(h.poll))

	// 管理 API
	mux.HandleFunc("POST /api/v1/admin/cleanup", wrap(h.cleanup))
	mux.HandleFunc("DELETE /api/v1/admin/rooms/{room_id}", wrap(h.destroyRoom))
	mux.HandleFunc("GET /api/v1/admin/rooms", wrap(h.listRooms))

	// 健康檢查
	mux.HandleFunc("GET /health", wrap(h.health))
	mux.HandleFunc("GET /stats", wrap(h.stats))

	return mux
}

// actionRequest 動作信封
type actionRequest struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// action 執行一個動作
func (h *Handler) action(w http.ResponseWriter, r *http.Request) {
	playerID := r.Header.Get(HeaderPlayerID)
	if playerID == "" {
		h.errorResponse(w, ErrUnauthorized.WithDetails("missing %s header", HeaderPlayerID), http.StatusUnauthorized)
		return
	}

	var req actionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, ErrInvalidRequest.WithDetails("decode request: %v", err))
		return
	}

	act, err := DecodeAction(req.Action, req.Payload)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.manager.Dispatch(playerID, r.Header.Get(HeaderPlayerName), act)
	if err != nil {
		h.logger.Debug("動作失敗",
			"action", act.Name(),
			"player_id", playerID,
			"error", err)
		h.writeError(w, err)
		return
	}

	status := http.StatusOK
	if act.Name() == ActionCreateRoom {
		status = http.StatusCreated
	}
	h.jsonResponse(w, result, status)
}

// poll 輪詢房間（未帶身分時以旁觀者讀取）
func (h *Handler) poll(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room_id")

	var after int64
	if v := r.URL.Query().Get("after"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			h.writeError(w, ErrInvalidRequest.WithDetails("after must be a non-negative integer"))
			return
		}
		after = n
	}

	result, err := h.manager.Poll(roomID, r.Header.Get(HeaderPlayerID), after)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.jsonResponse(w, result, http.StatusOK)
}

// cleanup 手動觸發清理
func (h *Handler) cleanup(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, h.manager.Cleanup(), http.StatusOK)
}

// destroyRoom 強制銷毀房間
func (h *Handler) destroyRoom(w http.ResponseWriter, r *http.Request) {
	roomID := normalizeRoomID(r.PathValue("room_id"))
	destroyed := h.manager.DestroyRoom(roomID, ReasonAdmin)

	h.jsonResponse(w, map[string]any{
		"room_id":   roomID,
		"destroyed": destroyed,
	}, http.StatusOK)
}

// listRooms 列出房間
func (h *Handler) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.manager.ListRooms()

	if status := RoomStatus(r.URL.Query().Get("status")); status != "" {
		filtered := rooms[:0]
		for _, s := range rooms {
			if s.Status == status {
				filtered = append(filtered, s)
			}
		}
		rooms = filtered
	}

	h.jsonResponse(w, map[string]any{
		"rooms": rooms,
		"total": len(rooms),
	}, http.StatusOK)
}

// health 健康檢查
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]any{
		"status": "healthy",
		"time":   time.Now().Unix(),
	}, http.StatusOK)
}

// stats 統計資訊
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, h.manager.Stats(), http.StatusOK)
}

// StatusFor 錯誤碼對應的 HTTP 狀態碼
func StatusFor(err error) int {
	switch ErrorCode(err) {
	case ErrCodeRoomNotFound:
		return http.StatusNotFound
	case ErrCodeRoomAlreadyExists, ErrCodeRoomFull, ErrCodeNotYourTurn, ErrCodeGameNotInProgress:
		return http.StatusConflict
	case ErrCodeIllegalMove:
		return http.StatusUnprocessableEntity
	case ErrCodeUnauthorized:
		return http.StatusForbidden
	case ErrCodeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError 依錯誤碼返回錯誤響應
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	h.errorResponse(w, err, StatusFor(err))
}

// jsonResponse 返回 JSON 響應
func (h *Handler) jsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("編碼 JSON 失敗", "error", err)
	}
}

// errorResponse 返回錯誤響應
func (h *Handler) errorResponse(w http.ResponseWriter, err error, status int) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		h.logger.Error("未預期的錯誤", "error", err)
		appErr = NewError("INTERNAL", "內部伺服器錯誤")
	}
	h.jsonResponse(w, map[string]any{
		"error": appErr,
	}, status)
}

// loggerMiddleware 日誌中間件
func (h *Handler) loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, requestID)

		// 包裝 ResponseWriter 以獲取狀態碼
		ww := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next(ww, r)

		h.logger.Info("HTTP 請求",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"player_id", r.Header.Get(HeaderPlayerID),
			"status", ww.statusCode,
			"duration", time.Since(start))
	}
}

// recoverer panic 恢復中間件
func (h *Handler) recoverer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.logger.Error("處理請求時發生 panic",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path)

				h.errorResponse(w, NewError("INTERNAL", "內部伺服器錯誤"), http.StatusInternalServerError)
			}
		}()

		next(w, r)
	}
}

// responseWriter 包裝 ResponseWriter 以獲取狀態碼
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
