package auth

import (
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	defaultGitHubAuthURL       = "https://github.com/login/oauth/authorize"
	defaultGitHubTokenURL      = "https://github.com/login/oauth/access_token"
	defaultGitHubDeviceAuthURL = "https://github.com/login/device/code"
	defaultGitHubUserInfoURL   = "https://api.github.com/user"
)

// NewGitHubConfig はGitHub用のProviderConfigを生成する。
// 各エンドポイントURLはGitHub.comの既定値で埋める。
func NewGitHubConfig(clientID, clientSecret, redirectURL string) *ProviderConfig {
	return &ProviderConfig{
		Name:          "github",
		AuthURL:       defaultGitHubAuthURL,
		TokenURL:      defaultGitHubTokenURL,
		DeviceAuthURL: defaultGitHubDeviceAuthURL,
		UserInfoURL:   defaultGitHubUserInfoURL,
		ClientID:      clientID,
		ClientSecret:  clientSecret,
		RedirectURL:   redirectURL,
		Scopes:        []string{"read:user", "user:email"},
	}
}

// githubProfile はGitHubのユーザー情報エンドポイントのレスポンス。
// idは数値、nameとemailはnullの場合がある。
type githubProfile struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// parseGitHubProfile はGitHubのプロフィールレスポンスを共通形式に正規化する。
// 表示名が未設定のユーザーはloginで代替する。
func parseGitHubProfile(body []byte) (*ProviderUserInfo, error) {
	var profile githubProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse github profile: %w", err)
	}
	if profile.ID == 0 {
		return nil, fmt.Errorf("missing id in github profile")
	}

	name := profile.Name
	if name == "" {
		name = profile.Login
	}

	return &ProviderUserInfo{
		Provider:       "github",
		ProviderUserID: strconv.FormatInt(profile.ID, 10),
		Name:           name,
		Email:          profile.Email,
	}, nil
}
