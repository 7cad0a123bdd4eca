package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/invoiceadmin/internal/middleware"
	"github.com/hitoshi/invoiceadmin/internal/model"
	"github.com/hitoshi/invoiceadmin/internal/upstream"
)

// SessionClearer はローカルセッションの強制破棄インターフェース。
// auth.Serviceの部分集合として定義する。
type SessionClearer interface {
	ForceLogout(ctx context.Context, sessionID string) error
}

// ForcedLogoutRecorder は強制ログアウトのメトリクス記録インターフェース。
type ForcedLogoutRecorder interface {
	RecordForcedLogout()
}

// nopForcedLogoutRecorder はメトリクス未設定時のno-op実装。
type nopForcedLogoutRecorder struct{}

func (nopForcedLogoutRecorder) RecordForcedLogout() {}

// CookieConfig はセッションCookieの属性設定。
type CookieConfig struct {
	Domain string
	Secure bool
	MaxAge int // 有効期間（秒）
}

// setSessionCookie はセッションIDをHTTP Only Cookieとして設定する。
func setSessionCookie(w http.ResponseWriter, config CookieConfig, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   config.MaxAge,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie はセッションCookieを無効化する。
func clearSessionCookie(w http.ResponseWriter, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// upstreamErrorResponder はバックエンド呼び出しの失敗をHTTPレスポンスに変換する。
// アカウント停止、またはリフレッシュ後もなお401が返る場合は
// ローカルセッションを強制破棄し、Cookieをクリアしてから401を返す。
type upstreamErrorResponder struct {
	auth    SessionClearer
	metrics ForcedLogoutRecorder
	cookies CookieConfig
}

// newUpstreamErrorResponder はupstreamErrorResponderを生成する。
// metricsがnilの場合はno-opにフォールバックする。
func newUpstreamErrorResponder(auth SessionClearer, metrics ForcedLogoutRecorder, cookies CookieConfig) *upstreamErrorResponder {
	if metrics == nil {
		metrics = nopForcedLogoutRecorder{}
	}
	return &upstreamErrorResponder{
		auth:    auth,
		metrics: metrics,
		cookies: cookies,
	}
}

// respond はバックエンド呼び出しのエラーを適切なレスポンスに変換して書き込む。
// sessionIDは強制ログアウト時に破棄する対象のセッションID。
func (er *upstreamErrorResponder) respond(w http.ResponseWriter, r *http.Request, sessionID string, err error) {
	// フィールド単位のバリデーションエラーはそのまま伝播する
	if ve, ok := upstream.AsValidationError(err); ok {
		middleware.WriteValidationErrorResponse(w, ve)
		return
	}

	// アカウント停止: ローカルセッションを破棄して401を返す
	if upstream.IsAccountSuspended(err) {
		er.forceLogout(r.Context(), w, sessionID, "account suspended")
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewAccountSuspendedError())
		return
	}

	// リフレッシュを経てもなお401: セッション失効として扱う
	if upstream.IsUnauthorized(err) {
		er.forceLogout(r.Context(), w, sessionID, "session expired")
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewSessionExpiredError())
		return
	}

	// バックエンドのその他のエラーはステータスとメッセージを透過する
	var upErr *upstream.APIError
	if errors.As(err, &upErr) {
		middleware.WriteErrorResponse(w, upErr.Status, model.NewUpstreamError(upErr.Message))
		return
	}

	// ローカルで生成されたAPIError（作成権限なし等）
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// forceLogout はローカルセッションとCookieを破棄し、メトリクスを記録する。
func (er *upstreamErrorResponder) forceLogout(ctx context.Context, w http.ResponseWriter, sessionID, reason string) {
	if sessionID != "" && er.auth != nil {
		if err := er.auth.ForceLogout(ctx, sessionID); err != nil {
			slog.Error("failed to force logout",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
		}
	}
	clearSessionCookie(w, er.cookies)
	er.metrics.RecordForcedLogout()

	slog.Warn("forced logout",
		slog.String("session_id", sessionID),
		slog.String("reason", reason),
	)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized, model.ErrCodeSessionExpired, model.ErrCodeAccountSuspended:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden, model.ErrCodeRoleNotCreatable:
		return http.StatusForbidden
	case model.ErrCodeValidation, model.ErrCodeInvalidAvatarURL:
		return http.StatusBadRequest
	case model.ErrCodeUpstreamFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
