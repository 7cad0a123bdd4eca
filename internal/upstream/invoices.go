package upstream

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/invoiceadmin/internal/model"
)

// invoiceListEnvelope は請求書一覧レスポンスのエンベロープ。
type invoiceListEnvelope struct {
	Success  bool              `json:"success"`
	Message  string            `json:"message"`
	Response model.InvoiceList `json:"response"`
}

// ListInvoices は現在のロールのプレフィックス配下から請求書一覧を取得する。
// GET {prefix}/get-invoices
func (c *Client) ListInvoices(ctx context.Context, sess *model.Session, q model.InvoiceQuery) (*model.InvoiceList, error) {
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
	if q.SortBy != "" {
		query.Set("sortBy", q.SortBy)
	}
	if q.SortOrder != "" {
		query.Set("sortOrder", q.SortOrder)
	}
	if q.Type != "" {
		query.Set("type", string(q.Type))
	}
	if q.FromDate != "" {
		query.Set("fromDate", q.FromDate)
	}
	if q.ToDate != "" {
		query.Set("toDate", q.ToDate)
	}
	if q.CreatedByRole != "" {
		query.Set("createdByRole", q.CreatedByRole)
	}

	var envelope invoiceListEnvelope
	err := c.Do(ctx, sess, Request{
		Method: http.MethodGet,
		Path:   "/get-invoices",
		Query:  query,
	}, &envelope)
	if err != nil {
		return nil, err
	}
	return &envelope.Response, nil
}

// CreateInvoice は請求書を作成する。
// POST {prefix}/create-invoice
func (c *Client) CreateInvoice(ctx context.Context, sess *model.Session, input model.InvoiceInput) (string, error) {
	var resp mutationResponse
	err := c.Do(ctx, sess, Request{
		Method: http.MethodPost,
		Path:   "/create-invoice",
		Body:   input,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// UpdateInvoice は既存の請求書を更新する。
// PATCH {prefix}/update-invoice
func (c *Client) UpdateInvoice(ctx context.Context, sess *model.Session, input model.InvoiceInput) (string, error) {
	var resp mutationResponse
	err := c.Do(ctx, sess, Request{
		Method: http.MethodPatch,
		Path:   "/update-invoice",
		Body:   input,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// DeleteInvoice は指定請求書を削除する。
// DELETE {prefix}/delete-invoice
func (c *Client) DeleteInvoice(ctx context.Context, sess *model.Session, invoiceID string) (string, error) {
	var resp mutationResponse
	err := c.Do(ctx, sess, Request{
		Method: http.MethodDelete,
		Path:   "/delete-invoice",
		Body:   map[string]string{"invoiceId": invoiceID},
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}
