package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/invoiceadmin/internal/model"
	"github.com/hitoshi/invoiceadmin/internal/role"
)

// RequireRoles は許可リストによるロール検証ミドルウェアを返す。
// セッションミドルウェアの後に配置すること。
// 許可リストが空の場合は全ロールを拒否する（フェイルクローズド）。
func RequireRoles(allowed ...role.Role) func(next http.Handler) http.Handler {
	binding := role.RouteBinding{AllowedRoles: allowed}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := SessionFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			if !binding.Allows(session.Role) {
				slog.Warn("role not allowed",
					slog.String("user_id", session.UserID),
					slog.String("role", string(session.Role)),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
