package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cyberclock/server/internal/model"
)

const sessionCookieName = "session"

// LoginPath は未認証のブラウザリクエストのリダイレクト先。
const LoginPath = "/auth/login"

// publicPathPrefixes は認証ミドルウェアを完全にバイパスするパスの接頭辞。
// ログイン入口、OAuthの開始・コールバック、デバイスフロー、
// ヘルスチェック、メトリクス、静的アセットが該当する。
var publicPathPrefixes = []string{
	"/auth/",
	"/healthz",
	"/metrics",
	"/styles/",
}

// IsPublicPath は認証なしでアクセス可能なパスかを返す。
// ルーターはこの述語を参照して公開ルートを構成する。
func IsPublicPath(path string) bool {
	for _, prefix := range publicPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Authenticator は認証ミドルウェアが必要とする認証操作のインターフェース。
// auth.Serviceの部分集合として定義する。
type Authenticator interface {
	// AuthenticateToken はBearerトークンをプロバイダーで直接検証する。
	AuthenticateToken(ctx context.Context, token string) (*model.User, error)
	// ValidateSession はセッションCookieの有効性を検証する。
	ValidateSession(ctx context.Context, sessionID string) (*model.Session, *model.User, error)
}

// NewAuthMiddleware はリクエストの認証を行うミドルウェアを返す。
//
// 解決順序:
//  1. Authorization: Bearerヘッダーがあればプロバイダーで直接検証する
//     （デバイスフロー認証済みの非ブラウザクライアント向け。セッションストアは参照しない）
//  2. セッションCookieがあればセッションストアで検証する
//  3. いずれも成立しない場合、APIクライアントには401、
//     ハイパーメディアリクエスト（HX-RequestヘッダーまたはAccept: text/html）には
//     ログイン入口へのリダイレクトを返す
//
// 公開パス（IsPublicPath）はこのミドルウェアを素通りする。
// 認証済みユーザーはリクエストコンテキストに注入される。
func NewAuthMiddleware(authenticator Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			// 1. Bearerトークン認証
			if token := extractBearerToken(r); token != "" {
				user, err := authenticator.AuthenticateToken(r.Context(), token)
				if err != nil {
					slog.Warn("bearer token authentication failed",
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)
					rejectUnauthenticated(w, r)
					return
				}
				next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
				return
			}

			// 2. セッションCookie認証
			cookie, err := r.Cookie(sessionCookieName)
			if err != nil || cookie.Value == "" {
				rejectUnauthenticated(w, r)
				return
			}

			_, user, err := authenticator.ValidateSession(r.Context(), cookie.Value)
			if err != nil {
				if !isSessionRejection(err) {
					slog.Error("failed to validate session",
						slog.String("error", err.Error()),
					)
				}
				rejectUnauthenticated(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// extractBearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// Bearer形式でない場合は空文字列を返す。
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// isSessionRejection はセッション検証の正常な拒否（サーバーエラーではない）かを返す。
func isSessionRejection(err error) bool {
	return errors.Is(err, model.ErrSessionNotFound) || errors.Is(err, model.ErrSessionExpired)
}

// rejectUnauthenticated は未認証レスポンスを書き込む。
// 呼び出し側の種別はハイパーメディアリクエストのマーカーで判別する。
func rejectUnauthenticated(w http.ResponseWriter, r *http.Request) {
	if isHypermediaRequest(r) {
		http.Redirect(w, r, LoginPath, http.StatusFound)
		return
	}
	WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
}

// isHypermediaRequest はブラウザ系クライアントからの対話的リクエストかを返す。
func isHypermediaRequest(r *http.Request) bool {
	if r.Header.Get("HX-Request") != "" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
