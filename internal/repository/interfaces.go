// Package repository はデータ永続化層を提供する。
package repository

import (
	"context"

	"github.com/hitoshi/invoiceadmin/internal/model"
)

// SessionRepository はログインセッションの永続化インターフェース。
// セッション行はアクターの身元・ロール・アクセストークンを保持する
// 唯一の永続状態であり、書き込みはログイン/ログアウトのフローと
// ゲートウェイのトークンリフレッシュに限られる。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れ・不存在の場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// UpdateAccessToken はリフレッシュで得た新しいアクセストークンを永続化する。
	UpdateAccessToken(ctx context.Context, id, accessToken string) error
}
