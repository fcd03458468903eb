// Package counter はユーザーごとのカウンターのドメインロジックを提供する。
package counter

import (
	"context"
	"fmt"

	"github.com/cyberclock/server/internal/repository"
)

// Service はカウンター操作のサービス層。
// カウンター値は0未満にならない。
type Service struct {
	counters repository.CounterRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(counters repository.CounterRepository) *Service {
	return &Service{counters: counters}
}

// Get は指定ユーザーの現在のカウンター値を返す。未記録の場合は0。
func (s *Service) Get(ctx context.Context, userID string) (int, error) {
	count, err := s.counters.Get(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("カウンターの取得に失敗しました: %w", err)
	}
	return count, nil
}

// Increment はカウンターを1加算し、加算後の値を返す。
func (s *Service) Increment(ctx context.Context, userID string) (int, error) {
	count, err := s.counters.Add(ctx, userID, 1)
	if err != nil {
		return 0, fmt.Errorf("カウンターの加算に失敗しました: %w", err)
	}
	return count, nil
}

// Decrement はカウンターを1減算し、減算後の値を返す。0を下回らない。
func (s *Service) Decrement(ctx context.Context, userID string) (int, error) {
	count, err := s.counters.Add(ctx, userID, -1)
	if err != nil {
		return 0, fmt.Errorf("カウンターの減算に失敗しました: %w", err)
	}
	return count, nil
}
