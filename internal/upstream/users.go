package upstream

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/invoiceadmin/internal/model"
	"github.com/hitoshi/invoiceadmin/internal/role"
)

// userListEnvelope はユーザー一覧レスポンスのエンベロープ。
type userListEnvelope struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message"`
	Response model.UserList `json:"response"`
}

// mutationResponse はミューテーション系エンドポイントの共通レスポンス。
type mutationResponse struct {
	Message string `json:"message"`
}

// ListUsers は現在のロールのプレフィックス配下からユーザー一覧を取得する。
// GET {prefix}/get-all-users
func (c *Client) ListUsers(ctx context.Context, sess *model.Session, q model.UserQuery) (*model.UserList, error) {
	query := url.Values{}
	if q.Page > 0 {
		query.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Search != "" {
		query.Set("search", q.Search)
	}
	if q.Role != "" {
		query.Set("role", string(q.Role))
	}
	if q.Status != "" {
		query.Set("status", q.Status)
	}
	if q.Group != "" {
		query.Set("group", q.Group)
	}
	if q.SortBy != "" {
		query.Set("sortBy", q.SortBy)
	}
	if q.SortOrder != "" {
		query.Set("sortOrder", q.SortOrder)
	}

	var envelope userListEnvelope
	err := c.Do(ctx, sess, Request{
		Method: http.MethodGet,
		Path:   "/get-all-users",
		Query:  query,
	}, &envelope)
	if err != nil {
		return nil, err
	}
	return &envelope.Response, nil
}

// DeleteUser は指定ユーザーを削除する。
// DELETE {prefix}/delete-user
func (c *Client) DeleteUser(ctx context.Context, sess *model.Session, userID string) (string, error) {
	var resp mutationResponse
	err := c.Do(ctx, sess, Request{
		Method: http.MethodDelete,
		Path:   "/delete-user",
		Body:   map[string]string{"userId": userID},
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// CreateSubordinate は呼び出し側ロールの1段下のロールでユーザーを作成する。
// 作成対象ロールと作成エンドポイントは隣接表から導出するため、
// 作成規則の定義はroleパッケージの1箇所に集約される。
// POST {prefix}/create-admin | /create-unit-manager | /create-user
func (c *Client) CreateSubordinate(ctx context.Context, sess *model.Session, input model.CreateUserInput) (string, error) {
	created, ok := role.CreatesRole(sess.CurrentRole())
	if !ok {
		return "", model.NewRoleNotCreatableError(string(sess.CurrentRole()))
	}
	path, ok := role.CreatePath(created)
	if !ok {
		return "", model.NewRoleNotCreatableError(string(sess.CurrentRole()))
	}

	body := map[string]string{
		"name":     input.Name,
		"email":    input.Email,
		"password": input.Password,
		"role":     string(created),
	}
	if input.Group != "" {
		body["group"] = input.Group
	}

	var resp mutationResponse
	err := c.Do(ctx, sess, Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// UpdateUserRole は指定ユーザーのロールを変更する。
// エンドポイントはロールプレフィックスを持たない固定パス。
// POST /admin/update-role
func (c *Client) UpdateUserRole(ctx context.Context, sess *model.Session, userID string, newRole role.Role) (string, error) {
	var resp mutationResponse
	err := c.Do(ctx, sess, Request{
		Method:     http.MethodPost,
		Path:       "/admin/update-role",
		Body:       map[string]string{"userId": userID, "role": string(newRole)},
		Unprefixed: true,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}
