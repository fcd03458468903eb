// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// 認証・セッションのセンチネルエラー。
// サービス層からハンドラーまでerrors.Isで分岐できるよう定義する。
var (
	// ErrUnknownProvider は未登録のプロバイダー名が指定されたことを示す。
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrStateMismatch はOAuthコールバックのstateが一致しないことを示す。
	// CSRF攻撃の可能性があるため、詳細はクライアントに返さない。
	ErrStateMismatch = errors.New("oauth state mismatch")
	// ErrUpstreamAuthFailure はプロバイダーへのトークン交換または
	// ユーザー情報取得が失敗したことを示す。
	ErrUpstreamAuthFailure = errors.New("upstream auth failure")
	// ErrProviderUnavailable はデバイスフロー開始リクエストが
	// 非2xxで失敗したことを示す。
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrSessionNotFound はセッションが存在しないことを示す。
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired はセッションが期限切れであることを示す。
	ErrSessionExpired = errors.New("session expired")
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnknownProvider = "UNKNOWN_PROVIDER"
	ErrCodeInvalidState    = "INVALID_STATE"
	ErrCodeAuthFailed      = "AUTH_FAILED"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
)

// NewUnknownProviderError は未対応プロバイダーエラーを生成する。
func NewUnknownProviderError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownProvider,
		Message:  fmt.Sprintf("対応していないプロバイダーです: %s", provider),
		Category: "validation",
		Action:   "github または google を指定してください。",
	}
}

// NewInvalidStateError はstate検証失敗エラーを生成する。
// CSRF対策のため失敗理由の詳細は含めない。
func NewInvalidStateError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidState,
		Message:  "認証リクエストを検証できませんでした。",
		Category: "auth",
		Action:   "最初からログインをやり直してください。",
	}
}

// NewAuthFailedError は認証失敗エラーを生成する。
// プロバイダー側のエラー内容はログのみに記録し、クライアントには返さない。
func NewAuthFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthFailed,
		Message:  "認証に失敗しました。",
		Category: "auth",
		Action:   "しばらく待ってから再度ログインしてください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewInvalidRequestError はリクエスト形式エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}
