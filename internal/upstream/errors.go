package upstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// バックエンドAPIが401のエラーボディで返す識別コード。
const (
	// CodeInvalidAccessToken はアクセストークンの失効・不正を示す。
	// このコードの場合のみゲートウェイがリフレッシュを試みる。
	CodeInvalidAccessToken = "InvalidAccessToken"
	// CodeAccountSuspended はアカウント停止を示す。リフレッシュ対象外。
	CodeAccountSuspended = "AccountSuspended"
)

// validationMessage はバックエンドがフィールドエラーを伴う場合に返す固定メッセージ。
const validationMessage = "Validation error"

// FieldError はバリデーションエラーのフィールド単位の内訳。
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError はバックエンドのバリデーション失敗を表すタグ付きエラー。
// フォームのフィールド単位エラーとして呼び出し元に伝播する。
type ValidationError struct {
	Fields []FieldError
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error (%d fields)", len(e.Fields))
}

// APIError はバックエンドAPIのバリデーション以外の失敗を表すタグ付きエラー。
type APIError struct {
	Status  int    // HTTPステータスコード
	Code    string // errorCode（存在する場合）
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("upstream %d [%s]: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("upstream %d: %s", e.Status, e.Message)
}

// errorBody はバックエンドのエラーレスポンスのワイヤ形式。
type errorBody struct {
	Message   string       `json:"message"`
	ErrorCode string       `json:"errorCode"`
	Errors    []FieldError `json:"errors"`
}

// parseError はエラーレスポンスのボディをタグ付きエラーに変換する。
// message == "Validation error" かつフィールドエラーを伴う場合はValidationError、
// それ以外はAPIErrorを返す。ボディが壊れている場合もAPIErrorに落とす。
func parseError(statusCode int, body []byte) error {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return &APIError{
			Status:  statusCode,
			Message: http.StatusText(statusCode),
		}
	}

	if eb.Message == validationMessage && len(eb.Errors) > 0 {
		return &ValidationError{Fields: eb.Errors}
	}

	msg := eb.Message
	if msg == "" {
		msg = http.StatusText(statusCode)
	}
	return &APIError{
		Status:  statusCode,
		Code:    eb.ErrorCode,
		Message: msg,
	}
}

// IsInvalidAccessToken はエラーがアクセストークン失効（リフレッシュ対象）かを返す。
func IsInvalidAccessToken(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusUnauthorized && apiErr.Code == CodeInvalidAccessToken
	}
	return false
}

// IsAccountSuspended はエラーがアカウント停止かを返す。
func IsAccountSuspended(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusUnauthorized && apiErr.Code == CodeAccountSuspended
	}
	return false
}

// IsUnauthorized はエラーが401系（原因を問わない）かを返す。
// リフレッシュ後もなお認証が通らない場合の強制ログアウト判定に使用する。
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusUnauthorized
	}
	return false
}

// AsValidationError はエラーがValidationErrorの場合にそれを取り出す。
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
