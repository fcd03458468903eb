// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/cyberclock/server/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Upsert はユーザーを冪等に作成・更新する。
	// 既存ユーザーの場合はcreated_atを維持したままname、email、
	// last_login_atのみ更新する。更新後のユーザーを返す。
	Upsert(ctx context.Context, user *model.User) (*model.User, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するsessions、countersはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
// 同一セッションIDへの同時アクセス（複数タブ等）に対して安全であること。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindByID は指定IDのセッションを期限を問わず取得する。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)

	// Validate はセッションの有効性を検証する。
	// 存在しない場合はmodel.ErrSessionNotFoundを返す。
	// 期限切れの場合はレコードを削除した上でmodel.ErrSessionExpiredを返す。
	Validate(ctx context.Context, id string) (*model.Session, error)

	// DeleteByID は指定IDのセッションを削除する。存在しなくてもエラーにしない。
	DeleteByID(ctx context.Context, id string) error

	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// CounterRepository はユーザーごとのカウンター値の永続化インターフェース。
type CounterRepository interface {
	// Get は指定ユーザーのカウンター値を返す。レコードがない場合は0を返す。
	Get(ctx context.Context, userID string) (int, error)

	// Add はカウンター値にdeltaを加算し、加算後の値を返す。
	// 結果は0未満にならないよう切り下げる。
	Add(ctx context.Context, userID string, delta int) (int, error)
}
