// Package auth はOAuth認証フロー、セッション管理を提供する。
package auth

import (
	"fmt"

	"github.com/cyberclock/server/internal/model"
)

// ProviderConfig は1つのIdPの静的な記述を保持する。
// プロセス起動後はイミュータブルとして扱う。
// 各URLはテスト用にオーバーライド可能。
type ProviderConfig struct {
	Name          string
	AuthURL       string
	TokenURL      string
	DeviceAuthURL string
	UserInfoURL   string
	ClientID      string
	ClientSecret  string
	RedirectURL   string
	Scopes        []string
	// DeviceScopes はデバイスフロー開始時に要求するスコープ。
	// 未設定の場合はScopesを使用する。
	DeviceScopes []string
}

// Registry は設定済みプロバイダーの名前引きを提供する。
type Registry struct {
	providers map[string]*ProviderConfig
	order     []string
}

// NewRegistry はRegistryを生成する。
// 認証情報が不完全なプロバイダーが含まれる場合はエラーを返す。
// 不完全な設定はログイン経路を静かに無効化するため、起動時に失敗させる。
func NewRegistry(configs ...*ProviderConfig) (*Registry, error) {
	r := &Registry{
		providers: make(map[string]*ProviderConfig, len(configs)),
	}

	for _, cfg := range configs {
		if cfg.Name == "" {
			return nil, fmt.Errorf("provider name is required")
		}
		if cfg.ClientID == "" || cfg.ClientSecret == "" {
			return nil, fmt.Errorf("provider %s is misconfigured: client credentials are incomplete", cfg.Name)
		}
		if _, exists := r.providers[cfg.Name]; exists {
			return nil, fmt.Errorf("provider %s is registered twice", cfg.Name)
		}
		r.providers[cfg.Name] = cfg
		r.order = append(r.order, cfg.Name)
	}

	if len(r.providers) == 0 {
		return nil, fmt.Errorf("at least one provider must be configured")
	}

	return r, nil
}

// Get は指定名のプロバイダー設定を返す。
// 未登録の場合はmodel.ErrUnknownProviderを返す。
func (r *Registry) Get(name string) (*ProviderConfig, error) {
	cfg, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownProvider, name)
	}
	return cfg, nil
}

// Names は登録順のプロバイダー名一覧を返す。
// Bearerトークン検証の試行順やログイン画面の列挙に使用する。
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}
