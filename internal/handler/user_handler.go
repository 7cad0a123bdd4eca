package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/invoiceadmin/internal/cache"
	"github.com/hitoshi/invoiceadmin/internal/middleware"
	"github.com/hitoshi/invoiceadmin/internal/model"
	"github.com/hitoshi/invoiceadmin/internal/role"
)

// UserGatewayInterface はユーザーハンドラーが必要とするバックエンド呼び出しインターフェース。
// upstream.Clientの部分集合として定義する。
type UserGatewayInterface interface {
	ListUsers(ctx context.Context, sess *model.Session, q model.UserQuery) (*model.UserList, error)
	DeleteUser(ctx context.Context, sess *model.Session, userID string) (string, error)
	CreateSubordinate(ctx context.Context, sess *model.Session, input model.CreateUserInput) (string, error)
	UpdateUserRole(ctx context.Context, sess *model.Session, userID string, newRole role.Role) (string, error)
}

// CollectionCache はコレクションレスポンスのキャッシュインターフェース。
// cache.Storeの部分集合として定義する。
type CollectionCache interface {
	Get(sessionID, tag, query string) ([]byte, bool)
	Put(sessionID, tag, query string, body []byte)
	InvalidateTag(sessionID, tag string)
}

// CacheMetricsRecorder はキャッシュのヒット・ミスを記録するインターフェース。
type CacheMetricsRecorder interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// nopCacheMetrics はメトリクス未設定時のno-op実装。
type nopCacheMetrics struct{}

func (nopCacheMetrics) RecordCacheHit()  {}
func (nopCacheMetrics) RecordCacheMiss() {}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	gateway UserGatewayInterface
	cache   CollectionCache
	metrics CacheMetricsRecorder
	errors  *upstreamErrorResponder
}

// NewUserHandler はUserHandlerを生成する。
// metricsがnilの場合はno-opにフォールバックする。
func NewUserHandler(gateway UserGatewayInterface, cache CollectionCache, metrics CacheMetricsRecorder, errors *upstreamErrorResponder) *UserHandler {
	if metrics == nil {
		metrics = nopCacheMetrics{}
	}
	return &UserHandler{
		gateway: gateway,
		cache:   cache,
		metrics: metrics,
		errors:  errors,
	}
}

// createUserRequest は下位ロールユーザー作成リクエストのボディ。
type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Group    string `json:"group,omitempty"`
}

// updateRoleRequest はロール変更リクエストのボディ。
type updateRoleRequest struct {
	Role string `json:"role"`
}

// mutationResult はミューテーション成功レスポンス。
type mutationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// List はユーザー一覧を取得する。
// 同一セッション・同一クエリのレスポンスはTTL内でキャッシュから配信する。
// GET /api/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	q, apiErr := parseUserQuery(r)
	if apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	// クエリ文字列はEncode()でキー順に正規化される
	queryKey := r.URL.Query().Encode()
	if body, ok := h.cache.Get(session.ID, cache.TagUsers, queryKey); ok {
		h.metrics.RecordCacheHit()
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
		return
	}
	h.metrics.RecordCacheMiss()

	list, err := h.gateway.ListUsers(r.Context(), session, q)
	if err != nil {
		h.errors.respond(w, r, session.ID, err)
		return
	}

	body, err := json.Marshal(list)
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}
	h.cache.Put(session.ID, cache.TagUsers, queryKey, body)

	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// Create は呼び出し側ロールの1段下のロールでユーザーを作成する。
// 作成成功時はユーザーコレクションのキャッシュを無効化する。
// POST /api/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeValidation,
			Message:  "名前・メールアドレス・パスワードは必須です。",
			Category: "validation",
			Action:   "すべての必須フィールドを入力してください。",
		})
		return
	}

	message, err := h.gateway.CreateSubordinate(r.Context(), session, model.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Group:    req.Group,
	})
	if err != nil {
		h.errors.respond(w, r, session.ID, err)
		return
	}

	h.cache.InvalidateTag(session.ID, cache.TagUsers)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(mutationResult{Success: true, Message: message})
}

// Delete は指定ユーザーを削除する。
// 削除成功時はユーザーコレクションのキャッシュを無効化する。
// DELETE /api/users/:id
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	userID := chi.URLParam(r, "id")
	if userID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeValidation,
			Message:  "ユーザーIDが指定されていません。",
			Category: "validation",
			Action:   "ユーザーIDを指定してください。",
		})
		return
	}

	message, err := h.gateway.DeleteUser(r.Context(), session, userID)
	if err != nil {
		h.errors.respond(w, r, session.ID, err)
		return
	}

	h.cache.InvalidateTag(session.ID, cache.TagUsers)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(mutationResult{Success: true, Message: message})
}

// UpdateRole は指定ユーザーのロールを変更する。
// 変更成功時はユーザーコレクションのキャッシュを無効化する。
// POST /api/users/:id/role
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	userID := chi.URLParam(r, "id")

	var req updateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	newRole, ok := role.Parse(req.Role)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeValidation,
			Message:  "不正なロールが指定されました。",
			Category: "validation",
			Action:   "SUPER_ADMIN, ADMIN, UNIT_MANAGER, USER のいずれかを指定してください。",
		})
		return
	}

	message, err := h.gateway.UpdateUserRole(r.Context(), session, userID, newRole)
	if err != nil {
		h.errors.respond(w, r, session.ID, err)
		return
	}

	h.cache.InvalidateTag(session.ID, cache.TagUsers)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(mutationResult{Success: true, Message: message})
}

// parseUserQuery はユーザー一覧取得のクエリパラメータを解析・検証する。
func parseUserQuery(r *http.Request) (model.UserQuery, *model.APIError) {
	values := r.URL.Query()
	q := model.UserQuery{
		Search:    values.Get("search"),
		Status:    values.Get("status"),
		Group:     values.Get("group"),
		SortBy:    values.Get("sortBy"),
		SortOrder: values.Get("sortOrder"),
	}

	if page := values.Get("page"); page != "" {
		n, err := strconv.Atoi(page)
		if err != nil || n < 1 {
			return q, invalidQueryError("page")
		}
		q.Page = n
	}
	if limit := values.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			return q, invalidQueryError("limit")
		}
		q.Limit = n
	}
	if roleParam := values.Get("role"); roleParam != "" {
		parsed, ok := role.Parse(roleParam)
		if !ok {
			return q, invalidQueryError("role")
		}
		q.Role = parsed
	}
	if q.SortOrder != "" && q.SortOrder != "asc" && q.SortOrder != "desc" {
		return q, invalidQueryError("sortOrder")
	}

	return q, nil
}

// invalidRequestError はJSONボディ解析失敗の共通エラーを生成する。
func invalidRequestError() *model.APIError {
	return &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// invalidQueryError はクエリパラメータ不正の共通エラーを生成する。
func invalidQueryError(param string) *model.APIError {
	return &model.APIError{
		Code:     model.ErrCodeValidation,
		Message:  "クエリパラメータ " + param + " が不正です。",
		Category: "validation",
		Action:   "パラメータの値を確認してください。",
	}
}
