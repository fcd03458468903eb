// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"

	"github.com/cyberclock/server/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var userContextKey = contextKey("user")

// requestIDContextKey はリクエストコンテキストにリクエストIDを格納するためのキー。
var requestIDContextKey = contextKey("request_id")

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, error) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, fmt.Errorf("user not found in context")
	}
	return user, nil
}

// UserIDFromContext はリクエストコンテキストから認証済みユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	user, err := UserFromContext(ctx)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// RequestIDFromContext はリクエストコンテキストからリクエストIDを取得する。
// 未設定の場合は空文字列を返す。
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}
