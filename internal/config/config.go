// Package config は環境変数からのアプリケーション設定読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ProviderCredentials は1つのIdPのクライアント認証情報を保持する。
type ProviderCredentials struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Configured は認証情報が設定されているかを返す。
func (p ProviderCredentials) Configured() bool {
	return p.ClientID != "" || p.ClientSecret != ""
}

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth
	GitHub ProviderCredentials
	Google ProviderCredentials

	// Session
	SessionMaxAge int // セッション有効期間（秒）

	// Bearerトークン認証時にもセッションレコードを作成するか
	BearerCreatesSession bool

	// Rate Limit
	RateLimitGeneral int // 認証済みAPIのレート（req/min/user）

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// プロバイダー認証情報の部分的な設定（IDのみ、シークレットのみ）は
// ログイン経路を静かに無効化してしまうため、起動時エラーとして扱う。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.GitHub = ProviderCredentials{
		ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		RedirectURL:  getEnvString("GITHUB_REDIRECT_URL", cfg.BaseURL+"/auth/github/callback"),
	}
	cfg.Google = ProviderCredentials{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		RedirectURL:  getEnvString("GOOGLE_REDIRECT_URL", cfg.BaseURL+"/auth/google/callback"),
	}

	if !cfg.GitHub.Configured() && !cfg.Google.Configured() {
		return nil, fmt.Errorf("no OAuth provider is configured: set GITHUB_CLIENT_ID/GITHUB_CLIENT_SECRET or GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET")
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 604800) // 7日
	cfg.BearerCreatesSession = getEnvBool("BEARER_CREATES_SESSION", false)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// SessionLifetime はセッション有効期間をtime.Durationで返す。
func (c *Config) SessionLifetime() time.Duration {
	return time.Duration(c.SessionMaxAge) * time.Second
}
