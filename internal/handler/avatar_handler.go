package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/hitoshi/invoiceadmin/internal/middleware"
	"github.com/hitoshi/invoiceadmin/internal/model"
)

// AvatarFetcherInterface はアバタープロキシが必要とする取得インターフェース。
// avatar.Fetcherの部分集合として定義する。
type AvatarFetcherInterface interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, string, error)
}

// AvatarHandler はプロフィール画像の取得プロキシのHTTPハンドラー。
// 取得元URLはユーザーが持ち込んだ値であるため、SSRF防止付きの
// フェッチャー経由でのみアクセスする。
type AvatarHandler struct {
	fetcher AvatarFetcherInterface
}

// NewAvatarHandler はAvatarHandlerを生成する。
func NewAvatarHandler(fetcher AvatarFetcherInterface) *AvatarHandler {
	return &AvatarHandler{fetcher: fetcher}
}

// Proxy は指定URLの画像を取得して返す。
// GET /api/avatar?url=xxx
func (h *AvatarHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidAvatarURLError("URLが指定されていません"))
		return
	}

	body, contentType, err := h.fetcher.Fetch(r.Context(), rawURL)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidAvatarURLError(err.Error()))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Write(body)
}
