package model

import (
	"time"

	"github.com/hitoshi/invoiceadmin/internal/role"
)

// Session は認証済みアクターのログインセッションを表す。
// バックエンドが発行したアクセストークンとリフレッシュ用Cookieを
// サーバー側で保持し、ブラウザにはセッションIDのみを渡す。
// Cookieスロットごとに高々1行が存在する。
type Session struct {
	ID            string
	UserID        string
	Name          string
	Email         string
	Role          role.Role
	AvatarURL     string
	AccessToken   string
	RefreshCookie string
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

// Authenticated はセッションが有効なアクセストークンを持つかを返す。
// nilレシーバーは未認証として扱う。
func (s *Session) Authenticated() bool {
	return s != nil && s.AccessToken != ""
}

// CurrentRole はセッションのロールを返す。未認証の場合は空のロールを返す。
func (s *Session) CurrentRole() role.Role {
	if s == nil {
		return ""
	}
	return s.Role
}
