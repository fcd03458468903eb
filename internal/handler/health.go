package handler

import (
	"database/sql"
	"net/http"
	"time"
)

// HealthHandler はヘルスチェックのHTTPハンドラー。
// DB接続の疎通を確認する。
type HealthHandler struct {
	db *sql.DB
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Check はサーバーとDBの稼働状態を返す。
// GET /healthz
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}

	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			status["status"] = "degraded"
			status["database"] = "unreachable"
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		status["database"] = "ok"
	}

	writeJSON(w, http.StatusOK, status)
}
