// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeSessionExpired   = "SESSION_EXPIRED"
	ErrCodeAccountSuspended = "ACCOUNT_SUSPENDED"
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeUpstreamFailed   = "UPSTREAM_FAILED"
	ErrCodeInvalidAvatarURL = "INVALID_AVATAR_URL"
	ErrCodeRoleNotCreatable = "ROLE_NOT_CREATABLE"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を実行する権限がありません。",
		Category: "auth",
		Action:   "権限のあるアカウントでログインし直してください。",
	}
}

// NewSessionExpiredError はセッション失効エラーを生成する。
// アクセストークンのリフレッシュに失敗した場合に使用する。
func NewSessionExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionExpired,
		Message:  "セッションの有効期限が切れました。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewAccountSuspendedError はアカウント停止エラーを生成する。
func NewAccountSuspendedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountSuspended,
		Message:  "アカウントが停止されています。",
		Category: "auth",
		Action:   "管理者に問い合わせてください。",
	}
}

// NewUpstreamError はバックエンドAPIのエラーをそのまま伝播するエラーを生成する。
// messageにはバックエンドが返したメッセージを渡す。
func NewUpstreamError(message string) *APIError {
	if message == "" {
		message = "バックエンドAPIの呼び出しに失敗しました。"
	}
	return &APIError{
		Code:     ErrCodeUpstreamFailed,
		Message:  message,
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidAvatarURLError はアバターURLが不正な場合のエラーを生成する。
func NewInvalidAvatarURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAvatarURL,
		Message:  fmt.Sprintf("アバターURLが不正です: %s", reason),
		Category: "validation",
		Action:   "http:// または https:// で始まる公開URLを指定してください。",
	}
}

// NewRoleNotCreatableError は作成権限のないロールでユーザー作成を試みた場合のエラーを生成する。
func NewRoleNotCreatableError(creatorRole string) *APIError {
	return &APIError{
		Code:     ErrCodeRoleNotCreatable,
		Message:  fmt.Sprintf("ロール %s にはユーザー作成権限がありません。", creatorRole),
		Category: "auth",
		Action:   "作成権限を持つロールでログインし直してください。",
	}
}
