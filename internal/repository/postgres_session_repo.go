package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/invoiceadmin/internal/model"
	"github.com/hitoshi/invoiceadmin/internal/role"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, name, email, role, avatar_url,
		                       access_token, refresh_cookie, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		session.ID, session.UserID, session.Name, session.Email, string(session.Role),
		session.AvatarURL, session.AccessToken, session.RefreshCookie,
		session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	session := &model.Session{}
	var roleStr string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, email, role, avatar_url,
		        access_token, refresh_cookie, expires_at, created_at
		 FROM sessions
		 WHERE id = $1 AND expires_at > now()`,
		id,
	).Scan(&session.ID, &session.UserID, &session.Name, &session.Email, &roleStr,
		&session.AvatarURL, &session.AccessToken, &session.RefreshCookie,
		&session.ExpiresAt, &session.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	// ロール列が未知の値でもセッション自体は返す。
	// BasePrefixのフォールバックにより最小権限として扱われる。
	session.Role = role.Role(roleStr)
	return session, nil
}

// DeleteByID は指定IDのセッションを削除する。
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

// UpdateAccessToken はリフレッシュで得た新しいアクセストークンを永続化する。
func (r *PostgresSessionRepo) UpdateAccessToken(ctx context.Context, id, accessToken string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET access_token = $2 WHERE id = $1`,
		id, accessToken,
	)
	if err != nil {
		return fmt.Errorf("failed to update access token: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
