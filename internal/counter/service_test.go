package counter

import (
	"context"
	"errors"
	"testing"

	"github.com/cyberclock/server/internal/repository"
)

// --- モック定義 ---

type mockCounterRepo struct {
	getFn func(ctx context.Context, userID string) (int, error)
	addFn func(ctx context.Context, userID string, delta int) (int, error)
}

func (m *mockCounterRepo) Get(ctx context.Context, userID string) (int, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return 0, nil
}

func (m *mockCounterRepo) Add(ctx context.Context, userID string, delta int) (int, error) {
	if m.addFn != nil {
		return m.addFn(ctx, userID, delta)
	}
	return delta, nil
}

var _ repository.CounterRepository = (*mockCounterRepo)(nil)

// --- テスト ---

func TestGet_ReturnsRepositoryValue(t *testing.T) {
	repo := &mockCounterRepo{
		getFn: func(ctx context.Context, userID string) (int, error) {
			if userID != "github:7" {
				t.Errorf("userID = %q, want github:7", userID)
			}
			return 42, nil
		},
	}
	svc := NewService(repo)

	count, err := svc.Get(context.Background(), "github:7")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if count != 42 {
		t.Errorf("count = %d, want 42", count)
	}
}

func TestIncrement_AddsOne(t *testing.T) {
	var gotDelta int
	repo := &mockCounterRepo{
		addFn: func(ctx context.Context, userID string, delta int) (int, error) {
			gotDelta = delta
			return 43, nil
		},
	}
	svc := NewService(repo)

	count, err := svc.Increment(context.Background(), "github:7")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotDelta != 1 {
		t.Errorf("delta = %d, want 1", gotDelta)
	}
	if count != 43 {
		t.Errorf("count = %d, want 43", count)
	}
}

func TestDecrement_SubtractsOne(t *testing.T) {
	var gotDelta int
	repo := &mockCounterRepo{
		addFn: func(ctx context.Context, userID string, delta int) (int, error) {
			gotDelta = delta
			return 0, nil
		},
	}
	svc := NewService(repo)

	count, err := svc.Decrement(context.Background(), "github:7")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotDelta != -1 {
		t.Errorf("delta = %d, want -1", gotDelta)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestGet_RepositoryError_Wrapped(t *testing.T) {
	repoErr := errors.New("connection refused")
	repo := &mockCounterRepo{
		getFn: func(ctx context.Context, userID string) (int, error) {
			return 0, repoErr
		},
	}
	svc := NewService(repo)

	_, err := svc.Get(context.Background(), "github:7")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, repoErr) {
		t.Errorf("error should wrap the repository error, got %v", err)
	}
}

func TestIncrement_RepositoryError_Wrapped(t *testing.T) {
	repoErr := errors.New("connection refused")
	repo := &mockCounterRepo{
		addFn: func(ctx context.Context, userID string, delta int) (int, error) {
			return 0, repoErr
		},
	}
	svc := NewService(repo)

	_, err := svc.Increment(context.Background(), "github:7")
	if !errors.Is(err, repoErr) {
		t.Errorf("error should wrap the repository error, got %v", err)
	}
}
