// Package upstream はバックエンドAPIへの認証付きゲートウェイを提供する。
// 全リクエストにベアラートークンを付与し、トークン失効時は
// リクエストあたり1回だけリフレッシュと再試行を行う。
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/invoiceadmin/internal/model"
	"github.com/hitoshi/invoiceadmin/internal/role"
)

// refreshPath はトークン再発行の固定エンドポイント。ロールプレフィックスを持たない。
const refreshPath = "/refresh"

// maxResponseSize はバックエンドレスポンスボディの読み取り上限（10MiB）。
const maxResponseSize = 10 * 1024 * 1024

// TokenSaver はリフレッシュで得た新トークンの永続化に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type TokenSaver interface {
	UpdateAccessToken(ctx context.Context, sessionID, accessToken string) error
}

// MetricsRecorder はゲートウェイが記録するメトリクスのインターフェース。
type MetricsRecorder interface {
	RecordUpstreamRequest(method string, statusCode int, duration time.Duration)
	RecordTokenRefresh(success bool)
}

// nopMetrics はメトリクス未設定時のフォールバック。
type nopMetrics struct{}

func (nopMetrics) RecordUpstreamRequest(string, int, time.Duration) {}
func (nopMetrics) RecordTokenRefresh(bool)                          {}

// Request はバックエンドへのリクエスト記述子。
// Pathはロールプレフィックスからの相対パス（例: "/get-all-users"）。
// Unprefixedがtrueの場合はプレフィックス解決を行わない
// （/login, /logout, /refresh, /admin/update-role が該当）。
type Request struct {
	Method     string
	Path       string
	Query      url.Values
	Body       any
	Unprefixed bool
}

// Client はバックエンドAPIの認証付きクライアント。
// ロール別プレフィックスの解決はリクエストごとに行い、
// ログアウト・再ログインによるロール変更を即座に反映する。
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSaver
	metrics    MetricsRecorder
	logger     *slog.Logger

	// refreshGroup は同一セッションの同時リフレッシュを1回に合流させる。
	refreshGroup singleflight.Group
}

// NewClient はClientを生成する。metricsがnilの場合は何も記録しない。
func NewClient(baseURL string, httpClient *http.Client, tokens TokenSaver, metrics MetricsRecorder, logger *slog.Logger) *Client {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		tokens:     tokens,
		metrics:    metrics,
		logger:     logger,
	}
}

// Do はリクエストを実行し、成功時はレスポンスボディをoutにデコードする。
// 401 + InvalidAccessToken の場合のみ、リフレッシュと再試行を1回だけ行う。
// 再試行は再帰しない。リフレッシュ自体が失敗した場合は元のリクエストの
// エラーをそのまま返す（セッションの扱いは呼び出し側の方針に委ねる）。
func (c *Client) Do(ctx context.Context, sess *model.Session, req Request, out any) error {
	resp, body, err := c.send(ctx, sess, req)
	if err != nil {
		return err
	}

	if resp.StatusCode < http.StatusBadRequest {
		return decodeInto(body, out)
	}

	origErr := parseError(resp.StatusCode, body)

	if !sess.Authenticated() || !IsInvalidAccessToken(origErr) {
		return origErr
	}

	// トークン失効: 1回だけリフレッシュして再試行する
	newToken, refreshErr := c.refresh(ctx, sess)
	if refreshErr != nil {
		c.logger.Warn("token refresh failed",
			slog.String("session_id", sess.ID),
			slog.String("error", refreshErr.Error()),
		)
		return origErr
	}
	sess.AccessToken = newToken

	resp, body, err = c.send(ctx, sess, req)
	if err != nil {
		return err
	}
	if resp.StatusCode < http.StatusBadRequest {
		return decodeInto(body, out)
	}
	return parseError(resp.StatusCode, body)
}

// send はリクエストを1回だけ実行し、レスポンスとボディを返す。
// URLはリクエストごとにロールプレフィックスを解決して構築する。
func (c *Client) send(ctx context.Context, sess *model.Session, req Request) (*http.Response, []byte, error) {
	reqURL := c.baseURL
	if !req.Unprefixed {
		reqURL += role.BasePrefix(sess.CurrentRole())
	}
	reqURL += req.Path
	if len(req.Query) > 0 {
		reqURL += "?" + req.Query.Encode()
	}

	var bodyReader io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, reqURL, bodyReader)
	if err != nil {
		return nil, nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if sess.Authenticated() {
		httpReq.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("バックエンドAPIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.RecordUpstreamRequest(req.Method, resp.StatusCode, time.Since(start))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	return resp, body, nil
}

// refreshResponse はリフレッシュエンドポイントのワイヤ形式。
type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// refresh は新しいアクセストークンを取得し、セッションストアに永続化する。
// 同一セッションに対する同時リフレッシュはsingleflightで1回の交換に合流する。
// リフレッシュの再試行は、リフレッシュが解決するまで発行されない。
func (c *Client) refresh(ctx context.Context, sess *model.Session) (string, error) {
	v, err, _ := c.refreshGroup.Do(sess.ID, func() (any, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+refreshPath, nil)
		if err != nil {
			return "", fmt.Errorf("リフレッシュリクエストの作成に失敗しました: %w", err)
		}
		if sess.RefreshCookie != "" {
			httpReq.Header.Set("Cookie", sess.RefreshCookie)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			c.metrics.RecordTokenRefresh(false)
			return "", fmt.Errorf("リフレッシュエンドポイントの呼び出しに失敗しました: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			c.metrics.RecordTokenRefresh(false)
			return "", fmt.Errorf("リフレッシュレスポンスの読み取りに失敗しました: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			c.metrics.RecordTokenRefresh(false)
			return "", parseError(resp.StatusCode, body)
		}

		var rr refreshResponse
		if err := json.Unmarshal(body, &rr); err != nil || rr.AccessToken == "" {
			c.metrics.RecordTokenRefresh(false)
			return "", fmt.Errorf("リフレッシュレスポンスのパースに失敗しました")
		}

		// 新トークンを先に永続化してから再試行させる
		if c.tokens != nil {
			if err := c.tokens.UpdateAccessToken(ctx, sess.ID, rr.AccessToken); err != nil {
				c.logger.Error("failed to persist refreshed token",
					slog.String("session_id", sess.ID),
					slog.String("error", err.Error()),
				)
			}
		}

		c.metrics.RecordTokenRefresh(true)
		c.logger.Info("access token refreshed", slog.String("session_id", sess.ID))
		return rr.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// decodeInto はレスポンスボディをoutにデコードする。outがnilの場合は何もしない。
func decodeInto(body []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}
