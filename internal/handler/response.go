package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cyberclock/server/internal/model"
)

// apiErrorResponse はエラーレスポンスのJSON表現。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSON(w, statusCode, apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrUnknownProvider):
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUnknownProviderError(""))
	case errors.Is(err, model.ErrStateMismatch):
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidStateError())
	case errors.Is(err, model.ErrUpstreamAuthFailure),
		errors.Is(err, model.ErrProviderUnavailable):
		// プロバイダー側のエラー内容はログのみに残し、クライアントには返さない
		slog.Error("upstream auth error", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewAuthFailedError())
	case errors.Is(err, model.ErrSessionNotFound), errors.Is(err, model.ErrSessionExpired):
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
	default:
		// 分類できないエラーは内部サーバーエラーとして扱う
		slog.Error("internal server error", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
			Code:     "INTERNAL_ERROR",
			Message:  "内部エラーが発生しました。",
			Category: "system",
			Action:   "しばらく待ってから再度お試しください。",
		})
	}
}
