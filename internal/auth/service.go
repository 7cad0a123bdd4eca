// Package auth はログインセッションの発行・破棄を提供する。
// 「誰がログインしているか」の唯一の真実はセッションリポジトリであり、
// 本パッケージはその書き込みを仲介する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/invoiceadmin/internal/model"
	"github.com/hitoshi/invoiceadmin/internal/repository"
	"github.com/hitoshi/invoiceadmin/internal/role"
	"github.com/hitoshi/invoiceadmin/internal/upstream"
)

// UpstreamAuth は認証サービスが必要とするバックエンド認証のインターフェース。
// upstream.Clientの部分集合として定義する。
type UpstreamAuth interface {
	Login(ctx context.Context, email, password string) (*upstream.LoginResult, error)
	Logout(ctx context.Context, sess *model.Session) error
}

// CacheInvalidator はセッション破棄時のキャッシュ無効化インターフェース。
type CacheInvalidator interface {
	InvalidateSession(sessionID string)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	upstream UpstreamAuth
	sessions repository.SessionRepository
	cache    CacheInvalidator
	config   ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	up UpstreamAuth,
	sessions repository.SessionRepository,
	cache CacheInvalidator,
	config ServiceConfig,
) *Service {
	return &Service{
		upstream: up,
		sessions: sessions,
		cache:    cache,
		config:   config,
	}
}

// Login は資格情報をバックエンドと交換し、ローカルセッションを発行する。
// セッション行はアクターの身元・ロール・アクセストークン・リフレッシュCookieを
// まとめて保持する。返り値のmessageはバックエンドのログインメッセージ。
func (s *Service) Login(ctx context.Context, email, password string) (*model.Session, string, error) {
	result, err := s.upstream.Login(ctx, email, password)
	if err != nil {
		return nil, "", err
	}

	userRole, ok := role.Parse(result.User.Role)
	if !ok {
		// 未知のロールは最小権限として保持する。プレフィックス解決側の
		// フォールバックと整合する。
		slog.Warn("unknown role in login response",
			slog.String("role", result.User.Role),
			slog.String("user_id", result.User.ID),
		)
		userRole = role.User
	}

	sessionID, err := generateSessionID()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:            sessionID,
		UserID:        result.User.ID,
		Name:          result.User.Name,
		Email:         result.User.Email,
		Role:          userRole,
		AvatarURL:     result.User.AvatarURL,
		AccessToken:   result.User.AccessToken,
		RefreshCookie: result.RefreshCookie,
		ExpiresAt:     now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt:     now,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", fmt.Errorf("failed to save session: %w", err)
	}

	slog.Info("user logged in",
		slog.String("user_id", session.UserID),
		slog.String("role", string(session.Role)),
	)

	return session, result.Message, nil
}

// Logout はセッションを破棄する。
// バックエンドのログアウトは失敗してもローカルのセッション行と
// キャッシュは必ず破棄する。ログアウト後のロール・トークン読み出しは
// 空を返し、破棄前のコレクションキャッシュは配信されない。
func (s *Service) Logout(ctx context.Context, sess *model.Session) error {
	if sess == nil {
		return fmt.Errorf("session is required")
	}

	if err := s.upstream.Logout(ctx, sess); err != nil {
		slog.Warn("upstream logout failed",
			slog.String("session_id", sess.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.sessions.DeleteByID(ctx, sess.ID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.cache.InvalidateSession(sess.ID)

	slog.Info("user logged out", slog.String("session_id", sess.ID))
	return nil
}

// ForceLogout はバックエンドを呼ばずにローカルのセッションだけを破棄する。
// アカウント停止・リフレッシュ失敗を検知した場合の強制ログアウトに使用する。
func (s *Service) ForceLogout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessions.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.cache.InvalidateSession(sessionID)

	slog.Info("session force-cleared", slog.String("session_id", sessionID))
	return nil
}

// CurrentSession はセッションIDから現在のセッションを取得する。
// 不存在・期限切れの場合はnilを返す。
func (s *Service) CurrentSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
