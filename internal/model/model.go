// Package model はドメインモデルを定義する。
package model

import "time"

// User は外部IdPで認証されたサービス利用ユーザーを表す。
// IDは「provider:プロバイダー側ユーザーID」形式のプロバイダー修飾IDとする。
// 初回ログイン時に作成され、以降のログインでLastLoginAtのみ更新される。
type User struct {
	ID             string
	Name           string
	Email          string
	Provider       string // "github" または "google"
	ProviderUserID string
	CreatedAt      time.Time
	LastLoginAt    time.Time
}

// Session はユーザーのログインセッションを表す。
// IDは128ビット以上のエントロピーを持つ推測不能なランダム文字列。
// 不変条件: ExpiresAt > CreatedAt。
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// DeviceAuthorization はデバイス認可フローの開始レスポンスを表す。
// 永続化せず、1回の認証試行の間だけ呼び出し側のメモリに保持する。
type DeviceAuthorization struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// TokenPayload はトークンエンドポイントが返すアクセストークンを表す。
type TokenPayload struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}
