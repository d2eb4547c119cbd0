package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kasaflow/kasaflow/internal/ledger/domain"
	"github.com/kasaflow/kasaflow/internal/ledger/service"
)

// ownerIDKey is the gin context key set by the identity middleware.
const ownerIDKey = "owner_id"

// timeNow is swappable in tests.
var timeNow = time.Now

type LedgerHandler struct {
	ledger        *service.LedgerService
	transfers     *service.TransferService
	subscriptions *service.SubscriptionService
	sweep         *service.SweepService
	accounts      *service.AccountService
	debts         *service.DebtService
}

func NewLedgerHandler(
	ledger *service.LedgerService,
	transfers *service.TransferService,
	subscriptions *service.SubscriptionService,
	sweep *service.SweepService,
	accounts *service.AccountService,
	debts *service.DebtService,
) *LedgerHandler {
	return &LedgerHandler{
		ledger:        ledger,
		transfers:     transfers,
		subscriptions: subscriptions,
		sweep:         sweep,
		accounts:      accounts,
		debts:         debts,
	}
}

func (h *LedgerHandler) RegisterRoutes(r *gin.RouterGroup) {
	ledgerGroup := r.Group("/ledger")
	ledgerGroup.Use(identity())
	{
		ledgerGroup.POST("/transactions", h.CreateTransaction)
		ledgerGroup.PUT("/transactions/:id", h.UpdateTransaction)
		ledgerGroup.DELETE("/transactions/:id", h.DeleteTransaction)
		ledgerGroup.POST("/transfers", h.Transfer)
		ledgerGroup.POST("/subscriptions/:id/roll", h.RollSubscription)
		ledgerGroup.POST("/subscriptions/:id/end", h.EndSubscription)
		ledgerGroup.POST("/sweep", h.RunSweep)
		ledgerGroup.POST("/accounts", h.CreateAccount)
		ledgerGroup.GET("/accounts/:id/balance", h.GetBalance)
		ledgerGroup.POST("/debts", h.CreateDebt)
		ledgerGroup.GET("/debts/:id", h.GetDebt)
	}
}

// identity resolves the acting owner from the X-Owner-ID header until real
// auth lands. Services receive the id explicitly; nothing reads it globally.
func identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-Owner-ID")
		ownerID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ownerID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "valid X-Owner-ID header required"})
			return
		}
		c.Set(ownerIDKey, ownerID)
		c.Next()
	}
}

func ownerID(c *gin.Context) int64 {
	return c.GetInt64(ownerIDKey)
}

func (h *LedgerHandler) CreateTransaction(c *gin.Context) {
	var req TransactionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	t, err := h.ledger.CreateTransaction(c.Request.Context(), toServiceReq(req, ownerID(c)))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toTransactionResp(t))
}

func (h *LedgerHandler) UpdateTransaction(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req TransactionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	t, err := h.ledger.UpdateTransaction(c.Request.Context(), id, toServiceReq(req, ownerID(c)))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransactionResp(t))
}

func (h *LedgerHandler) DeleteTransaction(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.ledger.DeleteTransaction(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *LedgerHandler) Transfer(c *gin.Context) {
	var req TransferReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	result, err := h.transfers.Transfer(c.Request.Context(), service.TransferRequest{
		OwnerID:              ownerID(c),
		SourceAccountID:      req.SourceAccountID,
		DestinationAccountID: req.DestinationAccountID,
		Amount:               req.Amount,
		Date:                 req.Date,
		Description:          req.Description,
		TargetAmount:         req.TargetAmount,
		ExplicitRate:         req.ExplicitRate,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"outgoing": toTransactionResp(result.Outgoing),
		"incoming": toTransactionResp(result.Incoming),
	})
}

func (h *LedgerHandler) RollSubscription(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.subscriptions.RollForward(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *LedgerHandler) EndSubscription(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.subscriptions.End(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *LedgerHandler) RunSweep(c *gin.Context) {
	var req SweepReq
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = timeNow()
	}

	count, err := h.sweep.Run(c.Request.Context(), asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	advanced, err := h.sweep.AdvanceInstallments(c.Request.Context(), asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"overdue": count, "installments_advanced": advanced})
}

func (h *LedgerHandler) CreateAccount(c *gin.Context) {
	var req AccountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	detail, err := toAccountDetail(req)
	if err != nil {
		respondError(c, err)
		return
	}
	account, err := h.accounts.Create(c.Request.Context(), service.CreateAccountRequest{
		OwnerID:  ownerID(c),
		Name:     req.Name,
		Kind:     domain.AccountKind(req.Kind),
		Currency: req.Currency,
		Balance:  req.Balance,
		Detail:   detail,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":       account.ID,
		"kind":     account.Kind,
		"currency": account.Currency,
		"balance":  account.Balance.String(),
	})
}

func (h *LedgerHandler) GetBalance(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	balance, err := h.accounts.GetBalance(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_id": id, "balance": balance.String()})
}

func (h *LedgerHandler) CreateDebt(c *gin.Context) {
	var req DebtReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	debt, err := h.debts.Create(c.Request.Context(), service.CreateDebtRequest{
		OwnerID:    ownerID(c),
		Type:       domain.DebtType(req.Type),
		CustomerID: req.CustomerID,
		SupplierID: req.SupplierID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		DueDate:    req.DueDate,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": debt.ID, "status": debt.Status})
}

func (h *LedgerHandler) GetDebt(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	debt, err := h.debts.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	remaining, err := h.debts.Remaining(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":        debt.ID,
		"type":      debt.Type,
		"amount":    debt.Amount.String(),
		"currency":  debt.Currency,
		"due_date":  debt.DueDate,
		"status":    debt.Status,
		"remaining": remaining.String(),
	})
}

func toServiceReq(req TransactionReq, owner int64) service.CreateTransactionRequest {
	method := domain.PaymentMethod(req.Method)
	if method == "" {
		method = domain.MethodAccount
	}
	return service.CreateTransactionRequest{
		OwnerID:          owner,
		Type:             domain.TransactionType(req.Type),
		Amount:           req.Amount,
		Currency:         req.Currency,
		Date:             req.Date,
		Method:           method,
		AccountID:        req.AccountID,
		CounterAccountID: req.CounterAccountID,
		Description:      req.Description,
		Fee:              req.Fee,
		Status:           domain.TransactionStatus(req.Status),
		CategoryID:       req.CategoryID,
		CustomerID:       req.CustomerID,
		SupplierID:       req.SupplierID,
		DebtID:           req.DebtID,
		ReferenceID:      req.ReferenceID,
		ManualRate:       req.ManualRate,
		Installments:     req.Installments,
		Taxable:          req.Taxable,
		TaxRate:          req.TaxRate,
		Withholding:      req.Withholding,
		WithholdingRate:  req.WithholdingRate,
		Subscription:     req.Subscription,
		Period:           domain.SubscriptionPeriod(req.Period),
		NextPaymentDate:  req.NextPaymentDate,
	}
}

func toAccountDetail(req AccountReq) (*domain.AccountDetail, error) {
	switch domain.AccountKind(req.Kind) {
	case domain.KindBank:
		if req.IBAN == "" {
			return nil, nil
		}
		return &domain.AccountDetail{Bank: &domain.BankDetail{IBAN: req.IBAN, Branch: req.Branch}}, nil
	case domain.KindCreditCard:
		limit := decimal.Zero
		if req.CardLimit != "" {
			parsed, err := decimal.NewFromString(req.CardLimit)
			if err != nil {
				return nil, domain.ErrValidation
			}
			limit = parsed
		}
		return &domain.AccountDetail{Card: &domain.CardDetail{Limit: limit, StatementDay: req.StatementDay}}, nil
	}
	return nil, nil
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// respondError maps domain sentinels onto HTTP statuses. The message always
// carries the specific, actionable reason from the service layer.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidInstallmentContext):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrRateUnavailable):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrDeletionNotAllowed),
		errors.Is(err, domain.ErrConcurrentUpdate):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
