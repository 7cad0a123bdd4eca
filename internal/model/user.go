// Package model はドメインモデルを定義する。
package model

import "github.com/hitoshi/invoiceadmin/internal/role"

// User はバックエンドAPIが管理するユーザーレコードを表す。
type User struct {
	ID         string    `json:"_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       role.Role `json:"role"`
	Group      string    `json:"group,omitempty"`
	Status     string    `json:"status,omitempty"`
	AvatarURL  string    `json:"profilePicture,omitempty"`
	CreatedBy  string    `json:"createdBy,omitempty"`
	CreatedAt  string    `json:"createdAt,omitempty"`
	UpdatedAt  string    `json:"updatedAt,omitempty"`
}

// UserQuery はユーザー一覧取得のクエリパラメータ。
// ゼロ値のフィールドはクエリ文字列に含めない。
type UserQuery struct {
	Page      int
	Limit     int
	Search    string
	Role      role.Role
	Status    string
	Group     string
	SortBy    string
	SortOrder string
}

// CreateUserInput は下位ロールユーザー作成の入力。
// 作成されるロールは呼び出し側のロールから隣接表で導出されるため含まない。
type CreateUserInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Group    string `json:"group,omitempty"`
}

// UserList はユーザー一覧取得結果のページング付きコレクション。
type UserList struct {
	Data       []User `json:"data"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	TotalPages int    `json:"totalPages"`
}
