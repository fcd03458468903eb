package handler

import (
	"context"
	"net/http"

	"github.com/cyberclock/server/internal/middleware"
	"github.com/cyberclock/server/internal/model"
)

// CounterServiceInterface はカウンターハンドラーが必要とするサービスインターフェース。
type CounterServiceInterface interface {
	// Get は現在のカウンター値を返す。未記録の場合は0。
	Get(ctx context.Context, userID string) (int, error)
	// Increment はカウンターを1加算し、加算後の値を返す。
	Increment(ctx context.Context, userID string) (int, error)
	// Decrement はカウンターを1減算し、減算後の値を返す。0を下回らない。
	Decrement(ctx context.Context, userID string) (int, error)
}

// CounterHandler はユーザーごとのカウンターのHTTPハンドラー。
type CounterHandler struct {
	service CounterServiceInterface
}

// NewCounterHandler はCounterHandlerを生成する。
func NewCounterHandler(service CounterServiceInterface) *CounterHandler {
	return &CounterHandler{service: service}
}

// counterResponse はカウンター値のAPIレスポンス。
type counterResponse struct {
	Count int `json:"count"`
}

// Get は現在のカウンター値を取得する。
// GET /api/v1/counter
func (h *CounterHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	count, err := h.service.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, counterResponse{Count: count})
}

// Increment はカウンターを1加算する。
// POST /api/v1/counter/increment
func (h *CounterHandler) Increment(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	count, err := h.service.Increment(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, counterResponse{Count: count})
}

// Decrement はカウンターを1減算する。0を下回らない。
// POST /api/v1/counter/decrement
func (h *CounterHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	count, err := h.service.Decrement(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, counterResponse{Count: count})
}
