package upstream

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hitoshi/invoiceadmin/internal/model"
)

// LoginUser はログインレスポンスに含まれるユーザー情報のワイヤ形式。
type LoginUser struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	AvatarURL   string `json:"profilePicture"`
	AccessToken string `json:"accessToken"`
}

// LoginResult はログイン交換の結果。
// RefreshCookieはバックエンドがSet-Cookieで発行したリフレッシュ資格情報で、
// 以降の/refresh呼び出しにそのまま送り返す。
type LoginResult struct {
	User          LoginUser
	Message       string
	RefreshCookie string
}

// loginEnvelope はログインレスポンスのエンベロープ。
type loginEnvelope struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message"`
	Response LoginUser `json:"response"`
}

// Login は資格情報をバックエンドに渡し、アクセストークン付きの
// ユーザー情報とリフレッシュCookieを取得する。
// POST /login（プレフィックスなし）
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	req := Request{
		Method:     http.MethodPost,
		Path:       "/login",
		Body:       map[string]string{"email": email, "password": password},
		Unprefixed: true,
	}

	// ログインは未認証で実行するためセッションを渡さない
	resp, body, err := c.send(ctx, nil, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(resp.StatusCode, body)
	}

	var envelope loginEnvelope
	if err := decodeInto(body, &envelope); err != nil {
		return nil, err
	}
	if envelope.Response.AccessToken == "" {
		return nil, fmt.Errorf("ログインレスポンスにアクセストークンが含まれていません")
	}

	return &LoginResult{
		User:          envelope.Response,
		Message:       envelope.Message,
		RefreshCookie: joinCookies(resp),
	}, nil
}

// Logout はバックエンド側のセッションを破棄する。
// GET /logout（プレフィックスなし）
func (c *Client) Logout(ctx context.Context, sess *model.Session) error {
	req := Request{
		Method:     http.MethodGet,
		Path:       "/logout",
		Unprefixed: true,
	}
	return c.Do(ctx, sess, req, nil)
}

// joinCookies はレスポンスのSet-Cookieを後続リクエストの
// Cookieヘッダー形式（"name=value; name2=value2"）に変換する。
func joinCookies(resp *http.Response) string {
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(cookies))
	for _, c := range cookies {
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return strings.Join(pairs, "; ")
}
