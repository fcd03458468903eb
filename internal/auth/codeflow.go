package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cyberclock/server/internal/model"
)

// ProviderUserInfo はIdPから取得したユーザー情報の共通形式を表す。
// プロバイダーごとのレスポンス形状の差異はparse関数で吸収する。
type ProviderUserInfo struct {
	Provider       string
	ProviderUserID string
	Name           string
	Email          string
}

// CodeFlow は認可コードフロー（ブラウザリダイレクト方式）のエンジン。
// 認可URL生成、コードとトークンの交換、ユーザー情報の取得と正規化を行う。
type CodeFlow struct {
	registry *Registry
	client   *http.Client
}

// NewCodeFlow はCodeFlowを生成する。clientがnilの場合は10秒タイムアウトの
// クライアントを使用する。
func NewCodeFlow(registry *Registry, client *http.Client) *CodeFlow {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &CodeFlow{registry: registry, client: client}
}

// LoginURL は指定プロバイダーの認可URLを生成する。
// stateはCSRF対策のため呼び出し側で生成し、コールバックで再検証すること。
func (f *CodeFlow) LoginURL(provider, state string) (string, error) {
	cfg, err := f.registry.Get(provider)
	if err != nil {
		return "", err
	}

	params := url.Values{
		"client_id":     {cfg.ClientID},
		"redirect_uri":  {cfg.RedirectURL},
		"response_type": {"code"},
		"scope":         {strings.Join(cfg.Scopes, " ")},
		"state":         {state},
	}
	return cfg.AuthURL + "?" + params.Encode(), nil
}

// Exchange は認可コードをアクセストークンに交換し、ユーザー情報を取得する。
// トークン交換・ユーザー情報取得のいずれかが失敗した場合は
// model.ErrUpstreamAuthFailureをラップしたエラーを返す。
// アクセストークンがエラーメッセージやログに漏れないよう、
// 失敗時はステータスコードのみを含める。
func (f *CodeFlow) Exchange(ctx context.Context, provider, code string) (*ProviderUserInfo, error) {
	cfg, err := f.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	token, err := f.exchangeToken(ctx, cfg, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	return f.FetchUserInfo(ctx, provider, token.AccessToken)
}

// tokenResponse はトークンエンドポイントのレスポンス。
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

// exchangeToken は認可コードをアクセストークンに交換する。
func (f *CodeFlow) exchangeToken(ctx context.Context, cfg *ProviderConfig, code string) (*model.TokenPayload, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {cfg.ClientID},
		"client_secret": {cfg.ClientSecret},
		"redirect_uri":  {cfg.RedirectURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// GitHubはAcceptヘッダーがない場合form-encodedで応答する
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", model.ErrUpstreamAuthFailure)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", model.ErrUpstreamAuthFailure)
	}

	// レスポンスボディにはトークンが含まれるため、エラーには載せない
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token exchange returned status %d: %w", resp.StatusCode, model.ErrUpstreamAuthFailure)
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", model.ErrUpstreamAuthFailure)
	}

	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response: %w", model.ErrUpstreamAuthFailure)
	}

	return &model.TokenPayload{
		AccessToken: tokenResp.AccessToken,
		TokenType:   tokenResp.TokenType,
		Scope:       tokenResp.Scope,
	}, nil
}

// FetchUserInfo はアクセストークンでユーザー情報を取得し、共通形式に正規化する。
// 認可コードフローとデバイスフローの承認後の両方から共用される。
func (f *CodeFlow) FetchUserInfo(ctx context.Context, provider, accessToken string) (*ProviderUserInfo, error) {
	cfg, err := f.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request failed: %w", model.ErrUpstreamAuthFailure)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read user info response: %w", model.ErrUpstreamAuthFailure)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info fetch returned status %d: %w", resp.StatusCode, model.ErrUpstreamAuthFailure)
	}

	info, err := parseProfile(provider, body)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, model.ErrUpstreamAuthFailure)
	}

	return info, nil
}

// parseProfile はプロバイダーごとのプロフィール形状を共通形式に変換する。
// フィールド名の差異（GitHubは数値id/login、Googleはsub/name）はここで吸収する。
func parseProfile(provider string, body []byte) (*ProviderUserInfo, error) {
	switch provider {
	case "github":
		return parseGitHubProfile(body)
	case "google":
		return parseGoogleProfile(body)
	default:
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownProvider, provider)
	}
}
