package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresCounterRepo はPostgreSQLを使用したカウンターリポジトリ。
type PostgresCounterRepo struct {
	db *sql.DB
}

// NewPostgresCounterRepo はPostgresCounterRepoを生成する。
func NewPostgresCounterRepo(db *sql.DB) *PostgresCounterRepo {
	return &PostgresCounterRepo{db: db}
}

// Get は指定ユーザーのカウンター値を返す。レコードがない場合は0を返す。
func (r *PostgresCounterRepo) Get(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count FROM counters WHERE user_id = $1`,
		userID,
	).Scan(&count)

	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get counter: %w", err)
	}

	return count, nil
}

// Add はカウンター値にdeltaを加算し、加算後の値を返す。
// UPSERTを1文で行うため、同時リクエストでも更新が失われない。
// 結果は0未満にならないよう切り下げる。
func (r *PostgresCounterRepo) Add(ctx context.Context, userID string, delta int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO counters (user_id, count, updated_at)
		 VALUES ($1, GREATEST($2, 0), $3)
		 ON CONFLICT (user_id) DO UPDATE
		 SET count = GREATEST(counters.count + $2, 0),
		     updated_at = EXCLUDED.updated_at
		 RETURNING count`,
		userID, delta, time.Now(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to update counter: %w", err)
	}

	return count, nil
}

// compile-time interface check
var _ CounterRepository = (*PostgresCounterRepo)(nil)
