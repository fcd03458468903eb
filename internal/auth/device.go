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

// PollStatus はデバイスフローの1回のポーリング結果の分類を表す。
type PollStatus string

const (
	// PollApproved はユーザーが承認し、トークンが発行されたことを示す。
	PollApproved PollStatus = "approved"
	// PollPending はユーザーの承認待ちであることを示す。
	// 呼び出し側はinterval秒以上待ってから再ポーリングすること。
	PollPending PollStatus = "pending"
	// PollSlowDown はポーリングが速すぎることを示す。
	// 呼び出し側はintervalにSlowDownStep秒を加算すること。
	PollSlowDown PollStatus = "slow_down"
	// PollDenied はユーザーが承認を拒否したことを示す。再試行しない。
	PollDenied PollStatus = "denied"
	// PollExpired はデバイスコードが期限切れになったことを示す。再試行しない。
	PollExpired PollStatus = "expired"
)

// SlowDownStep はslow_down受信時にポーリング間隔へ加算すべき秒数。
const SlowDownStep = 5

// PollResult はデバイスフローの1回のポーリング結果を表す。
// Denied/Expiredの場合、ErrorCode/ErrorDescriptionには
// プロバイダーのエラーをそのまま保持する（機械可読な呼び出し側向け）。
type PollResult struct {
	Status           PollStatus
	Token            *model.TokenPayload
	ErrorCode        string
	ErrorDescription string
}

// Terminal はこれ以上ポーリングすべきでない最終状態かを返す。
func (r *PollResult) Terminal() bool {
	return r.Status == PollApproved || r.Status == PollDenied || r.Status == PollExpired
}

// DeviceFlow はデバイス認可フロー（非対話クライアント向け）のエンジン。
// ポーリングは1回分の操作のみを公開し、スリープやタイマーは一切持たない。
// ループと間隔・全体タイムアウトの管理は呼び出し側が所有する。
type DeviceFlow struct {
	registry *Registry
	client   *http.Client
}

// NewDeviceFlow はDeviceFlowを生成する。clientがnilの場合は10秒タイムアウトの
// クライアントを使用する。
func NewDeviceFlow(registry *Registry, client *http.Client) *DeviceFlow {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &DeviceFlow{registry: registry, client: client}
}

// Initiate はデバイスコードとユーザーコードの発行をプロバイダーへ要求する。
// 非2xxレスポンスの場合はmodel.ErrProviderUnavailableをラップして返す。
func (d *DeviceFlow) Initiate(ctx context.Context, provider string) (*model.DeviceAuthorization, error) {
	cfg, err := d.registry.Get(provider)
	if err != nil {
		return nil, err
	}
	if cfg.DeviceAuthURL == "" {
		return nil, fmt.Errorf("provider %s has no device authorization endpoint: %w", provider, model.ErrProviderUnavailable)
	}

	scopes := cfg.DeviceScopes
	if len(scopes) == 0 {
		scopes = cfg.Scopes
	}
	data := url.Values{
		"client_id": {cfg.ClientID},
		"scope":     {strings.Join(scopes, " ")},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.DeviceAuthURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create device code request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("device code request failed: %w", model.ErrProviderUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read device code response: %w", model.ErrProviderUnavailable)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("device code request returned status %d: %w", resp.StatusCode, model.ErrProviderUnavailable)
	}

	var initResp deviceInitiateResponse
	if err := json.Unmarshal(body, &initResp); err != nil {
		return nil, fmt.Errorf("failed to parse device code response: %w", model.ErrProviderUnavailable)
	}

	authz := model.DeviceAuthorization{
		DeviceCode:      initResp.DeviceCode,
		UserCode:        initResp.UserCode,
		VerificationURI: initResp.VerificationURI,
		ExpiresIn:       initResp.ExpiresIn,
		Interval:        initResp.Interval,
	}
	if authz.VerificationURI == "" {
		authz.VerificationURI = initResp.VerificationURL
	}
	if authz.DeviceCode == "" || authz.UserCode == "" || authz.VerificationURI == "" {
		return nil, fmt.Errorf("incomplete device code response: %w", model.ErrProviderUnavailable)
	}
	if authz.Interval <= 0 {
		authz.Interval = 5
	}

	return &authz, nil
}

// deviceInitiateResponse はデバイス認可エンドポイントのレスポンス。
// 検証URLのキーはGitHubがverification_uri、Googleがverification_urlと
// 異なるため、両方を受け付けて正規化する。
type deviceInitiateResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	VerificationURL string `json:"verification_url"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// devicePollResponse はデバイスフローのトークンエンドポイントのレスポンス。
// GitHubは200でerrorフィールドを返し、Googleは4xxでerrorフィールドを返すため、
// ステータスコードではなくボディで判定する。
type devicePollResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Poll はトークンエンドポイントへのポーリングを1回だけ実行し、結果を分類する。
// ネットワーク障害はエラーとして返す（コア内部では再試行しない）。
func (d *DeviceFlow) Poll(ctx context.Context, provider, deviceCode string) (*PollResult, error) {
	cfg, err := d.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	data := url.Values{
		"client_id":     {cfg.ClientID},
		"client_secret": {cfg.ClientSecret},
		"device_code":   {deviceCode},
		"grant_type":    {"urn:ietf:params:oauth:grant-type:device_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create poll request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read poll response: %w", err)
	}

	var pollResp devicePollResponse
	if err := json.Unmarshal(body, &pollResp); err != nil {
		return nil, fmt.Errorf("failed to parse poll response (status %d): %w", resp.StatusCode, err)
	}

	return classifyPoll(&pollResp), nil
}

// classifyPoll はトークンエンドポイントのレスポンスを状態遷移に対応付ける。
// authorization_pending/slow_downはPENDING系の継続状態、
// それ以外のエラーコードは最終状態として扱う。
func classifyPoll(resp *devicePollResponse) *PollResult {
	switch resp.Error {
	case "":
		if resp.AccessToken == "" {
			return &PollResult{
				Status:           PollDenied,
				ErrorCode:        "invalid_response",
				ErrorDescription: "token endpoint returned neither a token nor an error",
			}
		}
		return &PollResult{
			Status: PollApproved,
			Token: &model.TokenPayload{
				AccessToken: resp.AccessToken,
				TokenType:   resp.TokenType,
				Scope:       resp.Scope,
			},
		}
	case "authorization_pending":
		return &PollResult{Status: PollPending, ErrorCode: resp.Error, ErrorDescription: resp.ErrorDescription}
	case "slow_down":
		return &PollResult{Status: PollSlowDown, ErrorCode: resp.Error, ErrorDescription: resp.ErrorDescription}
	case "expired_token":
		return &PollResult{Status: PollExpired, ErrorCode: resp.Error, ErrorDescription: resp.ErrorDescription}
	default:
		// access_denied およびその他のエラーコード
		return &PollResult{Status: PollDenied, ErrorCode: resp.Error, ErrorDescription: resp.ErrorDescription}
	}
}
