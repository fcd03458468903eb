// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cyberclock/server/internal/auth"
	"github.com/cyberclock/server/internal/model"
)

const (
	sessionCookieName = "session"
	oauthStateCookie  = "oauth_state"

	// stateCookieMaxAge はstate Cookieの有効期間（秒）。1往復分のみ有効。
	stateCookieMaxAge = 600
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Providers() []string
	LoginURL(provider, state string) (string, error)
	HandleCallback(ctx context.Context, provider, code string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// DeviceFlowInterface はデバイス認可フローのハンドラーが必要とするインターフェース。
type DeviceFlowInterface interface {
	Initiate(ctx context.Context, provider string) (*model.DeviceAuthorization, error)
	Poll(ctx context.Context, provider, deviceCode string) (*auth.PollResult, error)
}

// DevicePollRecorder はデバイスフローのポーリング結果を記録するインターフェース。
type DevicePollRecorder interface {
	RecordDevicePoll(provider, status string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	device  DeviceFlowInterface
	metrics DevicePollRecorder
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。metricsはnilでもよい。
func NewAuthHandler(service AuthServiceInterface, device DeviceFlowInterface, metrics DevicePollRecorder, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		device:  device,
		metrics: metrics,
		config:  config,
	}
}

// SignIn はOAuth認可コードフローを開始する。
// GET /auth/{provider}/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		handleServiceError(w, err)
		return
	}

	url, err := h.service.LoginURL(provider, state)
	if err != nil {
		if errors.Is(err, model.ErrUnknownProvider) {
			writeAPIErrorResponse(w, http.StatusNotFound, model.NewUnknownProviderError(provider))
			return
		}
		handleServiceError(w, err)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   stateCookieMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/{provider}/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch", slog.String("provider", provider))
		h.clearStateCookie(w)
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidStateError())
		return
	}

	// stateクッキーは1往復で使い捨てる
	h.clearStateCookie(w)

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("認可コードがありません"))
		return
	}

	// 3. トークン交換とユーザー情報取得、セッション発行
	session, err := h.service.HandleCallback(r.Context(), provider, code)
	if err != nil {
		slog.Error("oauth callback failed",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		handleServiceError(w, err)
		return
	}

	// 4. セッションCookieを設定（HTTP Only）
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 5. アプリケーショントップにリダイレクト
	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// SignOut はセッションを破棄する。
// セッションが存在しなくても成功として扱う（冪等）。
// POST /auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to sign out", slog.String("error", logoutErr.Error()))
			// サインアウト失敗してもCookieはクリアする
		}
	}

	// セッションCookieをクリア
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// LoginEntry は利用可能なプロバイダーの一覧を返す。
// 未認証リクエストのリダイレクト先となるログイン入口。
// GET /auth/login
func (h *AuthHandler) LoginEntry(w http.ResponseWriter, r *http.Request) {
	providers := h.service.Providers()

	type providerEntry struct {
		Name      string `json:"name"`
		SignInURL string `json:"signin_url"`
	}

	entries := make([]providerEntry, len(providers))
	for i, name := range providers {
		entries[i] = providerEntry{
			Name:      name,
			SignInURL: "/auth/" + name + "/signin",
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"providers": entries,
	})
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), cookie.Value)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":       user.ID,
		"name":     user.Name,
		"email":    user.Email,
		"provider": user.Provider,
	})
}

// deviceInitiateRequest はデバイスフロー開始リクエストのボディ。
type deviceInitiateRequest struct {
	Provider string `json:"provider"`
}

// DeviceInitiate はデバイス認可フローを開始し、ユーザーコードと
// 検証URLをクライアントに返す。
// POST /auth/device/initiate
func (h *AuthHandler) DeviceInitiate(w http.ResponseWriter, r *http.Request) {
	var req deviceInitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}
	if req.Provider == "" {
		req.Provider = "google"
	}

	authz, err := h.device.Initiate(r.Context(), req.Provider)
	if err != nil {
		if errors.Is(err, model.ErrUnknownProvider) {
			writeAPIErrorResponse(w, http.StatusNotFound, model.NewUnknownProviderError(req.Provider))
			return
		}
		slog.Error("device flow initiation failed",
			slog.String("provider", req.Provider),
			slog.String("error", err.Error()),
		)
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authz)
}

// devicePollRequest はデバイスフローのポーリングリクエストのボディ。
type devicePollRequest struct {
	Provider   string `json:"provider"`
	DeviceCode string `json:"device_code"`
}

// DevicePoll はトークンエンドポイントへのポーリングを1回だけ代行する。
// ポーリングのループと間隔管理はクライアントが所有する。
// POST /auth/device/poll
func (h *AuthHandler) DevicePoll(w http.ResponseWriter, r *http.Request) {
	var req devicePollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}
	if req.Provider == "" {
		req.Provider = "google"
	}
	if req.DeviceCode == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("device_codeがありません"))
		return
	}

	result, err := h.device.Poll(r.Context(), req.Provider, req.DeviceCode)
	if err != nil {
		if errors.Is(err, model.ErrUnknownProvider) {
			writeAPIErrorResponse(w, http.StatusNotFound, model.NewUnknownProviderError(req.Provider))
			return
		}
		slog.Error("device flow poll failed",
			slog.String("provider", req.Provider),
			slog.String("error", err.Error()),
		)
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordDevicePoll(req.Provider, string(result.Status))
	}

	switch result.Status {
	case auth.PollApproved:
		writeJSON(w, http.StatusOK, map[string]any{
			"status":       string(result.Status),
			"access_token": result.Token.AccessToken,
			"token_type":   result.Token.TokenType,
			"scope":        result.Token.Scope,
		})
	case auth.PollPending, auth.PollSlowDown:
		// 継続状態。クライアントはinterval（slow_downの場合は+5秒）後に再試行する。
		writeJSON(w, http.StatusOK, map[string]any{
			"status": string(result.Status),
			"error":  result.ErrorCode,
		})
	default:
		// denied / expired は最終状態
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"status":            string(result.Status),
			"error":             result.ErrorCode,
			"error_description": result.ErrorDescription,
		})
	}
}

// clearStateCookie はOAuth state Cookieを削除する。
func (h *AuthHandler) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
