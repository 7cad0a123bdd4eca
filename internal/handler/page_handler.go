package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/invoiceadmin/internal/guard"
	"github.com/hitoshi/invoiceadmin/internal/middleware"
	"github.com/hitoshi/invoiceadmin/internal/role"
)

// PageHandler は画面ルートのナビゲーション判定を行うHTTPハンドラー。
// 可否判定はguardパッケージの純粋関数に委譲し、ここではその結果を
// リダイレクトまたはページ記述のJSONに変換するだけにする。
type PageHandler struct{}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler() *PageHandler {
	return &PageHandler{}
}

// pageResponse は画面描画に必要な最小限のページ記述。
type pageResponse struct {
	Page        string               `json:"page"`
	User        *sessionUserResponse `json:"user,omitempty"`
	LandingPath string               `json:"landingPath,omitempty"`
}

// LoginPage はログイン画面への到達可否を判定する。
// 認証済みアクターはロール別のランディング画面へ短絡させる。
// GET /
func (h *PageHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	session := middleware.OptionalSessionFromContext(r.Context())

	decision := guard.DecidePublic(session)
	if decision.Action == guard.RedirectToLanding {
		http.Redirect(w, r, decision.Target, http.StatusTemporaryRedirect)
		return
	}

	writePage(w, pageResponse{Page: "login"})
}

// Dashboard はダッシュボード画面への到達可否を判定する。
// GET /dashboard
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.protectedPage(w, r, role.PathDashboard, "dashboard")
}

// Invoice は請求書画面への到達可否を判定する。
// GET /invoice
func (h *PageHandler) Invoice(w http.ResponseWriter, r *http.Request) {
	h.protectedPage(w, r, role.PathInvoice, "invoice")
}

// Unauthorized は権限不足画面を返す。全アクターが到達できる。
// GET /unauthorized
func (h *PageHandler) Unauthorized(w http.ResponseWriter, r *http.Request) {
	resp := pageResponse{Page: "unauthorized"}
	if session := middleware.OptionalSessionFromContext(r.Context()); session != nil {
		user := toSessionUserResponse(session)
		resp.User = &user
		resp.LandingPath = role.LandingPath(session.Role)
	}
	writePage(w, resp)
}

// protectedPage は保護対象画面の共通判定処理。
// 未認証はログイン画面へ、権限不足は拒否画面へリダイレクトする。
func (h *PageHandler) protectedPage(w http.ResponseWriter, r *http.Request, path, page string) {
	session := middleware.OptionalSessionFromContext(r.Context())

	decision := guard.Decide(session, role.BindingFor(path))
	switch decision.Action {
	case guard.RedirectToLogin, guard.RedirectToUnauthorized:
		http.Redirect(w, r, decision.Target, http.StatusTemporaryRedirect)
		return
	}

	user := toSessionUserResponse(session)
	writePage(w, pageResponse{
		Page:        page,
		User:        &user,
		LandingPath: role.LandingPath(session.Role),
	})
}

// writePage はページ記述のJSONを書き込む。
func writePage(w http.ResponseWriter, resp pageResponse) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
