package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cyberclock/server/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, provider, provider_user_id, created_at, last_login_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Name, &user.Email, &user.Provider, &user.ProviderUserID,
		&user.CreatedAt, &user.LastLoginAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// Upsert はユーザーを冪等に作成・更新する。
// 初回ログインで作成し、2回目以降はcreated_atを維持したまま
// name、email、last_login_atのみ更新する。
func (r *PostgresUserRepo) Upsert(ctx context.Context, user *model.User) (*model.User, error) {
	result := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, name, email, provider, provider_user_id, created_at, last_login_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE
		 SET name = EXCLUDED.name,
		     email = EXCLUDED.email,
		     last_login_at = EXCLUDED.last_login_at
		 RETURNING id, name, email, provider, provider_user_id, created_at, last_login_at`,
		user.ID, user.Name, user.Email, user.Provider, user.ProviderUserID,
		user.CreatedAt, user.LastLoginAt,
	).Scan(&result.ID, &result.Name, &result.Email, &result.Provider, &result.ProviderUserID,
		&result.CreatedAt, &result.LastLoginAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return result, nil
}

// DeleteByID は指定IDのユーザーを削除する。
// 関連するsessions、countersはCASCADE削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
