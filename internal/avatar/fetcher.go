// Package avatar はプロフィール画像の取得プロキシを提供する。
// アバター参照はユーザーが持ち込んだ任意のURLであるため、
// SSRF防止付きクライアントを経由してのみ取得する。
package avatar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/invoiceadmin/internal/security"
)

// Fetcher はアバター画像をSSRF防止付きで取得する。
type Fetcher struct {
	guard   security.SSRFGuardService
	timeout time.Duration
	maxSize int64
}

// NewFetcher はFetcherを生成する。
func NewFetcher(guard security.SSRFGuardService, timeout time.Duration, maxSize int64) *Fetcher {
	return &Fetcher{
		guard:   guard,
		timeout: timeout,
		maxSize: maxSize,
	}
}

// Fetch は指定URLの画像を取得し、ボディとContent-Typeを返す。
// URL検証・画像以外のContent-Type・サイズ超過はエラーになる。
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	if err := f.guard.ValidateURL(rawURL); err != nil {
		return nil, "", fmt.Errorf("アバターURLの検証に失敗しました: %w", err)
	}

	client := f.guard.NewSafeClient(f.timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("アバター画像の取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("アバター画像の取得がステータス %d で失敗しました", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("画像以外のContent-Typeです: %s", contentType)
	}

	// maxSizeを1バイト超えて読めた場合はサイズ超過と判定する
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("アバター画像の読み取りに失敗しました: %w", err)
	}
	if int64(len(body)) > f.maxSize {
		return nil, "", fmt.Errorf("アバター画像がサイズ上限（%dバイト）を超えています", f.maxSize)
	}

	return body, contentType, nil
}
