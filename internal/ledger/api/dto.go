package api

import (
	"time"

	"github.com/kasaflow/kasaflow/internal/ledger/domain"
)

// TransactionReq is the wire form of a create/update request. Monetary
// values are strings end to end; floats never touch money.
type TransactionReq struct {
	Type     string    `json:"type" binding:"required"`
	Amount   string    `json:"amount" binding:"required"`
	Currency string    `json:"currency" binding:"required,len=3"`
	Date     time.Time `json:"date" binding:"required"`

	Method           string `json:"method" binding:"omitempty,oneof=cash account"`
	AccountID        *int64 `json:"account_id"`
	CounterAccountID *int64 `json:"counter_account_id"`

	Description string `json:"description"`
	Fee         string `json:"fee"`
	Status      string `json:"status" binding:"omitempty,oneof=pending completed overdue cancelled"`

	CategoryID  *int64 `json:"category_id"`
	CustomerID  *int64 `json:"customer_id"`
	SupplierID  *int64 `json:"supplier_id"`
	DebtID      *int64 `json:"debt_id"`
	ReferenceID *int64 `json:"reference_id"`

	ManualRate   string `json:"manual_rate"`
	Installments int    `json:"installments" binding:"omitempty,min=0,max=48"`

	Taxable         bool   `json:"taxable"`
	TaxRate         string `json:"tax_rate"`
	Withholding     bool   `json:"withholding"`
	WithholdingRate string `json:"withholding_rate"`

	Subscription    bool      `json:"subscription"`
	Period          string    `json:"period"`
	NextPaymentDate time.Time `json:"next_payment_date"`
}

type TransferReq struct {
	SourceAccountID      int64     `json:"source_account_id" binding:"required"`
	DestinationAccountID int64     `json:"destination_account_id" binding:"required"`
	Amount               string    `json:"amount" binding:"required"`
	Date                 time.Time `json:"date" binding:"required"`
	TargetAmount         string    `json:"target_amount"`
	ExplicitRate         string    `json:"explicit_rate"`
	Description          string    `json:"description"`
}

type AccountReq struct {
	Name     string `json:"name" binding:"required"`
	Kind     string `json:"kind" binding:"required,oneof=bank credit_card crypto_wallet virtual_pos cash"`
	Currency string `json:"currency" binding:"required,len=3"`
	Balance  string `json:"balance"`

	IBAN         string `json:"iban"`
	Branch       string `json:"branch"`
	CardLimit    string `json:"card_limit"`
	StatementDay int    `json:"statement_day" binding:"omitempty,min=1,max=31"`
}

type DebtReq struct {
	Type       string    `json:"type" binding:"required,oneof=receivable payable"`
	CustomerID *int64    `json:"customer_id"`
	SupplierID *int64    `json:"supplier_id"`
	Amount     string    `json:"amount" binding:"required"`
	Currency   string    `json:"currency" binding:"required,len=3"`
	DueDate    time.Time `json:"due_date" binding:"required"`
}

type SweepReq struct {
	AsOf time.Time `json:"as_of"`
}

// TransactionResp mirrors a persisted transaction row.
type TransactionResp struct {
	ID                    int64      `json:"id"`
	Type                  string     `json:"type"`
	Status                string     `json:"status"`
	Amount                string     `json:"amount"`
	Currency              string     `json:"currency"`
	ExchangeRate          string     `json:"exchange_rate"`
	BaseAmount            string     `json:"base_amount"`
	Fee                   string     `json:"fee"`
	Date                  time.Time  `json:"date"`
	Description           string     `json:"description,omitempty"`
	SourceAccountID       *int64     `json:"source_account_id,omitempty"`
	DestinationAccountID  *int64     `json:"destination_account_id,omitempty"`
	ReferenceID           *int64     `json:"reference_id,omitempty"`
	DebtID                *int64     `json:"debt_id,omitempty"`
	GroupID               string     `json:"group_id,omitempty"`
	Installments          *int       `json:"installments,omitempty"`
	RemainingInstallments *int       `json:"remaining_installments,omitempty"`
	MonthlyAmount         string     `json:"monthly_amount,omitempty"`
	TaxAmount             string     `json:"tax_amount,omitempty"`
	WithholdingAmount     string     `json:"withholding_amount,omitempty"`
	NextPaymentDate       *time.Time `json:"next_payment_date,omitempty"`
}

func toTransactionResp(t *domain.Transaction) TransactionResp {
	resp := TransactionResp{
		ID:                   t.ID,
		Type:                 string(t.Type),
		Status:               string(t.Status),
		Amount:               t.Amount.String(),
		Currency:             t.Currency,
		ExchangeRate:         t.ExchangeRate.String(),
		BaseAmount:           t.BaseAmount.String(),
		Fee:                  t.Fee.String(),
		Date:                 t.Date,
		Description:          t.Description,
		SourceAccountID:      t.SourceAccountID,
		DestinationAccountID: t.DestinationAccountID,
		ReferenceID:          t.ReferenceID,
		DebtID:               t.DebtID,
		GroupID:              t.GroupID,
	}
	if t.Installment != nil {
		resp.Installments = &t.Installment.Count
		resp.RemainingInstallments = &t.Installment.Remaining
		resp.MonthlyAmount = t.Installment.MonthlyAmount.String()
	}
	if t.Tax != nil {
		resp.TaxAmount = t.Tax.Amount.String()
		if t.Tax.WithholdingAmount != nil {
			resp.WithholdingAmount = t.Tax.WithholdingAmount.String()
		}
	}
	if t.Subscription != nil {
		resp.NextPaymentDate = &t.Subscription.NextPaymentDate
	}
	return resp
}
