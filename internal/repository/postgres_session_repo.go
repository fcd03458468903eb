package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cyberclock/server/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB

	// nowはテストで時刻を固定するためのフック。通常はtime.Now。
	now func() time.Time
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db, now: time.Now}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		session.ID, session.UserID, session.CreatedAt, session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを期限を問わず取得する。
// 見つからない場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	session := &model.Session{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, expires_at
		 FROM sessions
		 WHERE id = $1`,
		id,
	).Scan(&session.ID, &session.UserID, &session.CreatedAt, &session.ExpiresAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return session, nil
}

// Validate はセッションの有効性を検証する。
// 期限切れを観測した時点でレコードを削除する（遅延削除）。
func (r *PostgresSessionRepo) Validate(ctx context.Context, id string) (*model.Session, error) {
	session, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, model.ErrSessionNotFound
	}

	if !r.now().Before(session.ExpiresAt) {
		if err := r.DeleteByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, model.ErrSessionExpired
	}

	return session, nil
}

// DeleteByID は指定IDのセッションを削除する。存在しなくてもエラーにしない。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (r *PostgresSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
