package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cyberclock/server/internal/model"
	"github.com/cyberclock/server/internal/repository"
)

// MetricsRecorder は認証サービスが記録するメトリクスのインターフェース。
// nilを渡した場合は何も記録しない。
type MetricsRecorder interface {
	RecordLogin(provider, flow string)
	RecordLoginFailure(provider, reason string)
	RecordSessionValidation(result string)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	// SessionLifetime はセッション作成時に適用する固定の有効期間。
	SessionLifetime time.Duration
	// BearerCreatesSession はBearerトークン認証時にも
	// セッションレコードを作成するかを制御する。
	BearerCreatesSession bool
}

// Service は認証に関するビジネスロジックを提供する。
// 認可コードフローの完了、Bearerトークンの検証、セッションの発行・破棄を担う。
type Service struct {
	registry *Registry
	flow     *CodeFlow
	users    repository.UserRepository
	sessions repository.SessionRepository
	metrics  MetricsRecorder
	config   ServiceConfig

	// nowはテストで時刻を固定するためのフック。通常はtime.Now。
	now func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	registry *Registry,
	flow *CodeFlow,
	users repository.UserRepository,
	sessions repository.SessionRepository,
	metrics MetricsRecorder,
	config ServiceConfig,
) *Service {
	return &Service{
		registry: registry,
		flow:     flow,
		users:    users,
		sessions: sessions,
		metrics:  metrics,
		config:   config,
		now:      time.Now,
	}
}

// Providers は登録順のプロバイダー名一覧を返す。
func (s *Service) Providers() []string {
	return s.registry.Names()
}

// LoginURL は指定プロバイダーの認可URLを生成する。
func (s *Service) LoginURL(provider, state string) (string, error) {
	return s.flow.LoginURL(provider, state)
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// 認可コードをトークンに交換し、ユーザー情報を取得・正規化した上で、
// ユーザーを冪等にUPSERTする（初回はcreated_atを設定、以降は
// last_login_atのみ更新）。失敗した場合はセッションを作成しない。
func (s *Service) HandleCallback(ctx context.Context, provider, code string) (*model.Session, error) {
	info, err := s.flow.Exchange(ctx, provider, code)
	if err != nil {
		s.recordLoginFailure(provider, "exchange")
		return nil, fmt.Errorf("failed to complete oauth callback: %w", err)
	}

	user, err := s.upsertUser(ctx, info)
	if err != nil {
		s.recordLoginFailure(provider, "upsert")
		return nil, err
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		s.recordLoginFailure(provider, "session")
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordLogin(provider, "code")
	}
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("provider", provider),
		slog.String("flow", "code"),
	)

	return session, nil
}

// AuthenticateToken はBearerトークンをプロバイダーのユーザー情報エンドポイントで
// 直接検証し、対応するユーザーを返す。セッションストアは参照しない。
// どのプロバイダーでも検証できない場合はmodel.ErrUpstreamAuthFailureを返す。
// 設定によりセッションレコードの作成も行う（デバイスフロー認証の持続化用）。
func (s *Service) AuthenticateToken(ctx context.Context, token string) (*model.User, error) {
	for _, provider := range s.registry.Names() {
		info, err := s.flow.FetchUserInfo(ctx, provider, token)
		if err != nil {
			continue
		}

		user, err := s.upsertUser(ctx, info)
		if err != nil {
			return nil, err
		}

		if s.config.BearerCreatesSession {
			if _, err := s.createSession(ctx, user.ID); err != nil {
				return nil, err
			}
		}

		if s.metrics != nil {
			s.metrics.RecordLogin(provider, "bearer")
		}
		return user, nil
	}

	return nil, fmt.Errorf("bearer token was not accepted by any provider: %w", model.ErrUpstreamAuthFailure)
}

// ValidateSession はセッションの有効性を検証し、セッションとユーザーを返す。
// 期限切れはmodel.ErrSessionExpired、未存在はmodel.ErrSessionNotFoundを返す。
func (s *Service) ValidateSession(ctx context.Context, sessionID string) (*model.Session, *model.User, error) {
	session, err := s.sessions.Validate(ctx, sessionID)
	if err != nil {
		s.recordSessionValidation(err)
		return nil, nil, err
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find session user: %w", err)
	}
	if user == nil {
		// ユーザーが削除済みのセッションは無効として扱う
		if err := s.sessions.DeleteByID(ctx, sessionID); err != nil {
			return nil, nil, err
		}
		s.recordSessionValidation(model.ErrSessionNotFound)
		return nil, nil, model.ErrSessionNotFound
	}

	if s.metrics != nil {
		s.metrics.RecordSessionValidation("valid")
	}
	return session, user, nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, model.ErrSessionNotFound
	}
	_, user, err := s.ValidateSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Logout はセッションを破棄する。
// セッションが存在しない場合、すでにログアウト済みの場合も成功として扱う（冪等）。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := s.sessions.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// upsertUser はプロバイダーのユーザー情報をドメインのUserに対応付けて永続化する。
// IDは「provider:プロバイダー側ユーザーID」のプロバイダー修飾形式。
func (s *Service) upsertUser(ctx context.Context, info *ProviderUserInfo) (*model.User, error) {
	now := s.now()
	user := &model.User{
		ID:             info.Provider + ":" + info.ProviderUserID,
		Name:           info.Name,
		Email:          info.Email,
		Provider:       info.Provider,
		ProviderUserID: info.ProviderUserID,
		CreatedAt:      now,
		LastLoginAt:    now,
	}

	result, err := s.users.Upsert(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return result, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.SessionLifetime),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

func (s *Service) recordLoginFailure(provider, reason string) {
	if s.metrics != nil {
		s.metrics.RecordLoginFailure(provider, reason)
	}
}

func (s *Service) recordSessionValidation(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case errors.Is(err, model.ErrSessionExpired):
		s.metrics.RecordSessionValidation("expired")
	case errors.Is(err, model.ErrSessionNotFound):
		s.metrics.RecordSessionValidation("not_found")
	default:
		s.metrics.RecordSessionValidation("error")
	}
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
// 32バイト（256ビット）のランダム値をhexエンコードする。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
