// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/invoiceadmin/internal/middleware"
	"github.com/hitoshi/invoiceadmin/internal/model"
	"github.com/hitoshi/invoiceadmin/internal/role"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*model.Session, string, error)
	Logout(ctx context.Context, sess *model.Session) error
}

// AuthHandler はログイン・ログアウト・現在ユーザー取得のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	errors  *upstreamErrorResponder
	cookies CookieConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, errors *upstreamErrorResponder, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		errors:  errors,
		cookies: cookies,
	}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// sessionUserResponse はセッションに紐づくユーザー情報のレスポンス。
type sessionUserResponse struct {
	ID        string `json:"_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	AvatarURL string `json:"profilePicture,omitempty"`
}

// loginResponse はログイン成功レスポンス。
// landingPathはロール別のログイン後遷移先。
type loginResponse struct {
	Success     bool                `json:"success"`
	Message     string              `json:"message"`
	User        sessionUserResponse `json:"user"`
	LandingPath string              `json:"landingPath"`
}

// Login は資格情報でログインし、セッションCookieを発行する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeValidation,
			Message:  "メールアドレスとパスワードを入力してください。",
			Category: "validation",
			Action:   "両方のフィールドを入力してください。",
		})
		return
	}

	session, message, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		// ログイン前なので破棄するセッションはない
		h.errors.respond(w, r, "", err)
		return
	}

	setSessionCookie(w, h.cookies, session.ID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loginResponse{
		Success:     true,
		Message:     message,
		User:        toSessionUserResponse(session),
		LandingPath: role.LandingPath(session.Role),
	})
}

// Logout はセッションを破棄する。
// バックエンドのログアウト可否にかかわらずCookieは必ずクリアする。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := middleware.OptionalSessionFromContext(r.Context())
	if session != nil {
		if err := h.service.Logout(r.Context(), session); err != nil {
			slog.Error("failed to logout",
				slog.String("session_id", session.ID),
				slog.String("error", err.Error()),
			)
			// ログアウト失敗してもCookieはクリアする
		}
	}

	clearSessionCookie(w, h.cookies)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"message": "ログアウトしました。",
	})
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session := middleware.OptionalSessionFromContext(r.Context())
	if session == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"user":        toSessionUserResponse(session),
		"landingPath": role.LandingPath(session.Role),
	})
}

// toSessionUserResponse はセッションからユーザー情報レスポンスに変換する。
func toSessionUserResponse(session *model.Session) sessionUserResponse {
	return sessionUserResponse{
		ID:        session.UserID,
		Name:      session.Name,
		Email:     session.Email,
		Role:      string(session.Role),
		AvatarURL: session.AvatarURL,
	}
}
