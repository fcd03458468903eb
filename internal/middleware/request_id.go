package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// requestIDHeader はクライアント・プロキシとの間でリクエストIDを受け渡すヘッダー。
const requestIDHeader = "X-Request-ID"

// NewRequestIDMiddleware はリクエストごとに一意なIDを付与するミドルウェアを返す。
// クライアントがX-Request-IDヘッダーを送ってきた場合はそれを引き継ぎ、
// なければUUIDv4を生成する。IDはコンテキストとレスポンスヘッダーに設定する。
func NewRequestIDMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			w.Header().Set(requestIDHeader, requestID)
			ctx := context.WithValue(r.Context(), requestIDContextKey, requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
