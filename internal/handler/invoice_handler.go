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
)

// InvoiceGatewayInterface は請求書ハンドラーが必要とするバックエンド呼び出しインターフェース。
// upstream.Clientの部分集合として定義する。
type InvoiceGatewayInterface interface {
	ListInvoices(ctx context.Context, sess *model.Session, q model.InvoiceQuery) (*model.InvoiceList, error)
	CreateInvoice(ctx context.Context, sess *model.Session, input model.InvoiceInput) (string, error)
	UpdateInvoice(ctx context.Context, sess *model.Session, input model.InvoiceInput) (string, error)
	DeleteInvoice(ctx context.Context, sess *model.Session, invoiceID string) (string, error)
}

// InvoiceHandler は請求書管理のHTTPハンドラー。
type InvoiceHandler struct {
	gateway InvoiceGatewayInterface
	cache   CollectionCache
	metrics CacheMetricsRecorder
	errors  *upstreamErrorResponder
}

// NewInvoiceHandler はInvoiceHandlerを生成する。
// metricsがnilの場合はno-opにフォールバックする。
func NewInvoiceHandler(gateway InvoiceGatewayInterface, cache CollectionCache, metrics CacheMetricsRecorder, errors *upstreamErrorResponder) *InvoiceHandler {
	if metrics == nil {
		metrics = nopCacheMetrics{}
	}
	return &InvoiceHandler{
		gateway: gateway,
		cache:   cache,
		metrics: metrics,
		errors:  errors,
	}
}

// invoiceRequest は請求書作成・更新リクエストのボディ。
type invoiceRequest struct {
	InvoiceNumber string  `json:"invoiceNumber"`
	InvoiceDate   string  `json:"invoiceDate"`
	InvoiceAmount float64 `json:"invoiceAmount"`
	Type          string  `json:"type,omitempty"`
	Description   string  `json:"description,omitempty"`
}

// List は請求書一覧を取得する。
// 同一セッション・同一クエリのレスポンスはTTL内でキャッシュから配信する。
// GET /api/invoices
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	q, apiErr := parseInvoiceQuery(r)
	if apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	queryKey := r.URL.Query().Encode()
	if body, ok := h.cache.Get(session.ID, cache.TagInvoices, queryKey); ok {
		h.metrics.RecordCacheHit()
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
		return
	}
	h.metrics.RecordCacheMiss()

	list, err := h.gateway.ListInvoices(r.Context(), session, q)
	if err != nil {
		h.errors.respond(w, r, session.ID, err)
		return
	}

	body, err := json.Marshal(list)
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}
	h.cache.Put(session.ID, cache.TagInvoices, queryKey, body)

	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// Create は請求書を作成する。
// 作成成功時は請求書コレクションのキャッシュを無効化する。
// POST /api/invoices
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	req, apiErr := decodeInvoiceRequest(r)
	if apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	message, err := h.gateway.CreateInvoice(r.Context(), session, toInvoiceInput("", req))
	if err != nil {
		h.errors.respond(w, r, session.ID, err)
		return
	}

	h.cache.InvalidateTag(session.ID, cache.TagInvoices)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(mutationResult{Success: true, Message: message})
}

// Update は既存の請求書を更新する。
// 更新成功時は請求書コレクションのキャッシュを無効化する。
// PATCH /api/invoices/:id
func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	invoiceID := chi.URLParam(r, "id")

	req, apiErr := decodeInvoiceRequest(r)
	if apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	message, err := h.gateway.UpdateInvoice(r.Context(), session, toInvoiceInput(invoiceID, req))
	if err != nil {
		h.errors.respond(w, r, session.ID, err)
		return
	}

	h.cache.InvalidateTag(session.ID, cache.TagInvoices)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(mutationResult{Success: true, Message: message})
}

// Delete は指定請求書を削除する。
// 削除成功時は請求書コレクションのキャッシュを無効化する。
// DELETE /api/invoices/:id
func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	invoiceID := chi.URLParam(r, "id")
	if invoiceID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeValidation,
			Message:  "請求書IDが指定されていません。",
			Category: "validation",
			Action:   "請求書IDを指定してください。",
		})
		return
	}

	message, err := h.gateway.DeleteInvoice(r.Context(), session, invoiceID)
	if err != nil {
		h.errors.respond(w, r, session.ID, err)
		return
	}

	h.cache.InvalidateTag(session.ID, cache.TagInvoices)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(mutationResult{Success: true, Message: message})
}

// decodeInvoiceRequest は請求書リクエストのボディを解析・検証する。
func decodeInvoiceRequest(r *http.Request) (invoiceRequest, *model.APIError) {
	var req invoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, invalidRequestError()
	}

	req.InvoiceNumber = strings.TrimSpace(req.InvoiceNumber)
	if req.InvoiceNumber == "" || req.InvoiceDate == "" {
		return req, &model.APIError{
			Code:     model.ErrCodeValidation,
			Message:  "請求書番号と請求日は必須です。",
			Category: "validation",
			Action:   "すべての必須フィールドを入力してください。",
		}
	}
	if req.InvoiceAmount <= 0 {
		return req, &model.APIError{
			Code:     model.ErrCodeValidation,
			Message:  "請求金額は0より大きい値を指定してください。",
			Category: "validation",
			Action:   "請求金額を確認してください。",
		}
	}
	if req.Type != "" && !model.ValidInvoiceType(req.Type) {
		return req, invalidQueryError("type")
	}

	return req, nil
}

// toInvoiceInput はリクエストボディからバックエンド入力に変換する。
func toInvoiceInput(id string, req invoiceRequest) model.InvoiceInput {
	return model.InvoiceInput{
		ID:            id,
		InvoiceNumber: req.InvoiceNumber,
		InvoiceDate:   req.InvoiceDate,
		InvoiceAmount: req.InvoiceAmount,
		Type:          model.InvoiceType(req.Type),
		Description:   req.Description,
	}
}

// parseInvoiceQuery は請求書一覧取得のクエリパラメータを解析・検証する。
func parseInvoiceQuery(r *http.Request) (model.InvoiceQuery, *model.APIError) {
	values := r.URL.Query()
	q := model.InvoiceQuery{
		Search:        values.Get("search"),
		SortBy:        values.Get("sortBy"),
		SortOrder:     values.Get("sortOrder"),
		FromDate:      values.Get("fromDate"),
		ToDate:        values.Get("toDate"),
		CreatedByRole: values.Get("createdByRole"),
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
	if typeParam := values.Get("type"); typeParam != "" {
		if !model.ValidInvoiceType(typeParam) {
			return q, invalidQueryError("type")
		}
		q.Type = model.InvoiceType(typeParam)
	}
	if q.SortBy != "" && q.SortBy != "invoiceDate" && q.SortBy != "invoiceAmount" {
		return q, invalidQueryError("sortBy")
	}
	if q.SortOrder != "" && q.SortOrder != "asc" && q.SortOrder != "desc" {
		return q, invalidQueryError("sortOrder")
	}

	return q, nil
}
