package model

import "github.com/hitoshi/invoiceadmin/internal/role"

// InvoiceType は請求書の種別を表す閉じた列挙。
type InvoiceType string

const (
	InvoiceStandard   InvoiceType = "STANDARD"
	InvoiceProforma   InvoiceType = "PROFORMA"
	InvoiceCredit     InvoiceType = "CREDIT"
	InvoiceDebit      InvoiceType = "DEBIT"
	InvoiceRecurring  InvoiceType = "RECURRING"
	InvoiceTimesheet  InvoiceType = "TIMESHEET"
	InvoiceFinal      InvoiceType = "FINAL"
	InvoiceInterim    InvoiceType = "INTERIM"
	InvoiceCommercial InvoiceType = "COMMERCIAL"
)

// ValidInvoiceType は文字列が定義済みの請求書種別かを返す。
func ValidInvoiceType(s string) bool {
	switch InvoiceType(s) {
	case InvoiceStandard, InvoiceProforma, InvoiceCredit, InvoiceDebit,
		InvoiceRecurring, InvoiceTimesheet, InvoiceFinal, InvoiceInterim,
		InvoiceCommercial:
		return true
	default:
		return false
	}
}

// Invoice はバックエンドAPIが管理する請求書レコードを表す。
type Invoice struct {
	ID            string      `json:"_id"`
	InvoiceNumber string      `json:"invoiceNumber"`
	InvoiceDate   string      `json:"invoiceDate"`
	InvoiceAmount float64     `json:"invoiceAmount"`
	Type          InvoiceType `json:"type"`
	FinancialYear string      `json:"financialYear,omitempty"`
	CreatedBy     string      `json:"createdBy,omitempty"`
	CreatedByRole role.Role   `json:"createdByRole,omitempty"`
	Description   string      `json:"description,omitempty"`
}

// InvoiceQuery は請求書一覧取得のクエリパラメータ。
// ゼロ値のフィールドはクエリ文字列に含めない。
type InvoiceQuery struct {
	Page          int
	Limit         int
	Search        string
	SortBy        string // invoiceDate | invoiceAmount
	SortOrder     string // asc | desc
	Type          InvoiceType
	FromDate      string
	ToDate        string
	CreatedByRole string
}

// InvoiceInput は請求書の作成・更新の入力。
// 更新時のみIDを設定する。
type InvoiceInput struct {
	ID            string      `json:"_id,omitempty"`
	InvoiceNumber string      `json:"invoiceNumber"`
	InvoiceDate   string      `json:"invoiceDate"`
	InvoiceAmount float64     `json:"invoiceAmount"`
	Type          InvoiceType `json:"type,omitempty"`
	Description   string      `json:"description,omitempty"`
}

// InvoiceList は請求書一覧取得結果のページング付きコレクション。
type InvoiceList struct {
	Data       []Invoice `json:"data"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	TotalPages int       `json:"totalPages"`
}
