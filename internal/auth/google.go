package auth

import (
	"encoding/json"
	"fmt"
)

const (
	defaultGoogleAuthURL       = "https://accounts.google.com/o/oauth2/auth"
	defaultGoogleTokenURL      = "https://oauth2.googleapis.com/token"
	defaultGoogleDeviceAuthURL = "https://oauth2.googleapis.com/device/code"
	defaultGoogleUserInfoURL   = "https://www.googleapis.com/oauth2/v3/userinfo"
)

// NewGoogleConfig はGoogle用のProviderConfigを生成する。
// デバイスフローはopenidスコープを受け付けないため、
// DeviceScopesにはフルURL形式のスコープを指定する。
func NewGoogleConfig(clientID, clientSecret, redirectURL string) *ProviderConfig {
	return &ProviderConfig{
		Name:          "google",
		AuthURL:       defaultGoogleAuthURL,
		TokenURL:      defaultGoogleTokenURL,
		DeviceAuthURL: defaultGoogleDeviceAuthURL,
		UserInfoURL:   defaultGoogleUserInfoURL,
		ClientID:      clientID,
		ClientSecret:  clientSecret,
		RedirectURL:   redirectURL,
		Scopes:        []string{"openid", "email", "profile"},
		DeviceScopes: []string{
			"https://www.googleapis.com/auth/userinfo.profile",
			"https://www.googleapis.com/auth/userinfo.email",
		},
	}
}

// googleProfile はGoogleのユーザー情報エンドポイントのレスポンス。
type googleProfile struct {
	Sub   string `json:"sub"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// parseGoogleProfile はGoogleのプロフィールレスポンスを共通形式に正規化する。
func parseGoogleProfile(body []byte) (*ProviderUserInfo, error) {
	var profile googleProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse google profile: %w", err)
	}
	if profile.Sub == "" {
		return nil, fmt.Errorf("missing sub in google profile")
	}

	return &ProviderUserInfo{
		Provider:       "google",
		ProviderUserID: profile.Sub,
		Name:           profile.Name,
		Email:          profile.Email,
	}, nil
}
