package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kasaflow/kasaflow/internal/ledger/domain"
	"github.com/kasaflow/kasaflow/internal/rates"
)

var testDate = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func TestCreateTransaction_TaxDerivation(t *testing.T) {
	f := newFixture(t, defaultProvider())
	owner := f.mustOwner(t, "0")
	bank := f.mustAccount(t, owner.ID, domain.KindBank, "TRY", "1000")

	tx, err := f.ledger.CreateTransaction(context.Background(), CreateTransactionRequest{
		OwnerID:   owner.ID,
		Type:      domain.TypeExpense,
		Amount:    "118.00",
		Currency:  "TRY",
		Date:      testDate,
		AccountID: &bank.ID,
		Taxable:   true,
		TaxRate:   "18",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tx.Tax == nil {
		t.Fatal("expected tax detail")
	}
	assertDecimal(t, tx.Tax.Amount, "18.00")
	assertDecimal(t, f.balance(t, bank.ID), "882")
}

func TestCreateTransaction_Withholding(t *testing.T) {
	f := newFixture(t, defaultProvider())
	owner := f.mustOwner(t, "0")
	bank := f.mustAccount(t, owner.ID, domain.KindBank, "TRY", "5000")

	tx, err := f.ledger.CreateTransaction(context.Background(), CreateTransactionRequest{
		OwnerID:         owner.ID,
		Type:            domain.TypeIncome,
		Amount:          "1000",
		Currency:        "TRY",
		Date:            testDate,
		AccountID:       &bank.ID,
		Taxable:         true,
		TaxRate:         "20",
		Withholding:     true,
		WithholdingRate: "5",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tx.Tax == nil || tx.Tax.WithholdingAmount == nil {
		t.Fatal("expected withholding detail")
	}
	assertDecimal(t, *tx.Tax.WithholdingAmount, "50.00")
}

func TestCreateTransaction_NegativeRatesRejected(t *testing.T) {
	f := newFixture(t, defaultProvider())
	owner := f.mustOwner(t, "0")
	bank := f.mustAccount(t, owner.ID, domain.KindBank, "TRY", "1000")

	// -100 in particular would make the gross-to-net divisor zero.
	for _, rate := range []string{"-100", "-18"} {
		_, err := f.ledger.CreateTransaction(context.Background(), CreateTransactionRequest{
			OwnerID:   owner.ID,
			Type:      domain.TypeExpense,
			Amount:    "118.00",
			Currency:  "TRY",
			Date:      testDate,
			AccountID: &bank.ID,
			Taxable:   true,
			TaxRate:   rate,
		})
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("tax rate %s: err = %v, want ErrValidation", rate, err)
		}
	}

	_, err := f.ledger.CreateTransaction(context.Background(), CreateTransactionRequest{
		OwnerID:         owner.ID,
		Type:            domain.TypeIncome,
		Amount:          "1000",
		Currency:        "TRY",
		Date:            testDate,
		AccountID:       &bank.ID,
		Taxable:         true,
		TaxRate:         "20",
		Withholding:     true,
		WithholdingRate: "-5",
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("withholding rate: err = %v, want ErrValidation", err)
	}
	assertDecimal(t, f.balance(t, bank.ID), "1000")
}

func TestCreateTransaction_InstallmentsOnCreditCard(t *testing.T) {
	f := newFixture(t, defaultProvider())
	owner := f.mustOwner(t, "0")
	card := f.mustAccount(t, owner.ID, domain.KindCreditCard, "TRY", "0")

	tx, err := f.ledger.CreateTransaction(context.Background(), CreateTransactionRequest{
		OwnerID:      owner.ID,
		Type:         domain.TypeExpense,
		Amount:       "1200",
		Currency:     "TRY",
		Date:         testDate,
		AccountID:    &card.ID,
		Installments: 12,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tx.Installment == nil {
		t.Fatal("expected installment plan")
	}
	if tx.Installment.Remaining != 12 {
		t.Fatalf("remaining = %d, want 12", tx.Installment.Remaining)
	}
	assertDecimal(t, tx.Installment.MonthlyAmount, "100.00")
	// Card balance is outstanding debt: the purchase grows it.
	assertDecimal(t, f.balance(t, card.ID), "1200")
}

func TestCreateTransaction_InstallmentsRejectedOnBank(t *testing.T) {
	f := newFixture(t, defaultProvider())
	owner := f.mustOwner(t, "0")
	bank := f.mustAccount(t, owner.ID, domain.KindBank, "TRY", "5000")

	_, err := f.ledger.CreateTransaction(context.Background(), CreateTransactionRequest{
		OwnerID:      owner.ID,
		Type:         domain.TypeExpense,
		Amount:       "600",
		Currency:     "TRY",
		Date:         testDate,
		AccountID:    &bank.ID,
		Installments: 6,
	})
	if !errors.Is(err, domain.ErrInvalidInstallmentContext) {
		t.Fatalf("err = %v, want ErrInvalidInstallmentContext", err)
	}
	// Rejection happens before the unit of work: no balance change.
	assertDecimal(t, f.balance(t, bank.ID), "5000")
}

func TestCreateTransaction_BaseEquivalent(t *testing.T) {
	f := newFixture(t, defaultProvider())
	owner := f.mustOwner(t, "0")
	bank := f.mustAccount(t, owner.ID, domain.KindBank, "USD", "0")

	tx, err := f.ledger.CreateTransaction(context.Background(), CreateTransactionRequest{
		OwnerID:   owner.ID,
		Type:      domain.TypeIncome,
		Amount:    "500",
		Currency:  "USD",
		Date:      testDate,
		AccountID: &bank.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	assertDecimal(t, tx.ExchangeRate, "32")
	assertDecimal(t, tx.BaseAmount, "16000.00")
}

func TestCreateTransaction_BaseCurrencySkipsProvider(t *testing.T) {
	counting := &countingProvider{inner: defaultProvider()}
	f := newFixture(t, counting)
	owner := f.mustOwner(t, "0")
	bank := f.mustAccount(t, owner.ID, domain.KindBank, "TRY", "0")

	tx, err := f.ledger.CreateTransaction(context.Background(), CreateTransactionRequest{
		OwnerID:   owner.ID,
		Type:      domain.TypeIncome,
		Amount:    "250",
		Currency:  "TRY",
		Date:      testDate,
		AccountID: &bank.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	assertDecimal(t, tx.ExchangeRate, "1")
	assertDecimal(t, tx.BaseAmount, "250")
	if counting.calls != 0 {
		t.Fatalf("provider consulted %d times for the base currency", counting.calls)
	}
}

func TestCreateTransaction_RateUnavailable(t *testing.T) {
	f := newFixture(t, &rates.StaticProvider{Quotes: map[string]domain.Quote{}})
	owner := f.mustOwner(t, "0")
	bank := f.mustAccount(t, owner.ID, domain.KindBank, "GBP", "0")

	req := CreateTransactionRequest{
		OwnerID:   owner.ID,
		Type:      domain.TypeIncome,
		Amount:    "100",
		Currency:  "GBP",
		Date:      testDate,
		AccountID: &bank.ID,
	}
	_, err := f.ledger.CreateTransaction(context.Background(), req)
	if !errors.Is(err, domain.ErrRateUnavailable) {
		t.Fatalf("err = %v, want ErrRateUnavailable", err)
	}
	assertDecimal(t, f.balance(t, bank.ID), "0")

	// A manual rate unblocks the same request.
	req.ManualRate = "41.5"
	tx, err := f.ledger.CreateTransaction(context.Background(), req)
	if err != nil {
		t.Fatalf("create with manual rate: %v", err)
	}
	assertDecimal(t, tx.BaseAmount, "4150.00")
}

func TestCreateTransaction_CashAutoProvisioning(t *testing.T) {
	f := newFixture(t, defaultProvider())
	owner := f.mustOwner(t, "0")

	tx, err := f.ledger.CreateTransaction(context.Background(), CreateTransactionRequest{
		OwnerID:  owner.ID,
		Type:     domain.TypeIncome,
		Amount:   "300",
		Currency: "TRY",
		Date:     testDate,
		Method:   domain.MethodCash,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tx.DestinationAccountID == nil {
		t.Fatal("expected a provisioned cash destination")
	}
	cash, err := f.accounts.FindCash(context.Background(), owner.ID, "TRY")
	if err != nil {
		t.Fatalf("find cash: %v", err)
	}
	assertDecimal(t, cash.Balance, "300")

	// The second cash transaction reuses the same account.
	if _, err := f.ledger.CreateTransaction(context.Background(), CreateTransactionRequest{
		OwnerID:  owner.ID,
		Type:     domain.TypeExpense,
		Amount:   "50",
		Currency: "TRY",
		Date:     testDate,
		Method:   domain.MethodCash,
	}); err != nil {
		t.Fatalf("second create: %v", err)
	}
	assertDecimal(t, f.balance(t, cash.ID), "250")
}

func TestDeleteTransaction_RestoresBalance(t *testing.T) {
	f := newFixture(t, defaultProvider())
	owner := f.mustOwner(t, "0")
	bank := f.mustAccount(t, owner.ID, domain.KindBank, "TRY", "1000")

	tx, err := f.ledger.CreateTransaction(context.Background(), CreateTransactionRequest{
		OwnerID:   owner.ID,
		Type:      domain.TypeExpense,
		Amount:    "100",
		Currency:  "TRY",
		Date:      testDate,
		AccountID: &bank.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	assertDecimal(t, f.balance(t, bank.ID), "900")

	if err := f.ledger.DeleteTransaction(context.Background(), tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	assertDecimal(t, f.balance(t, bank.ID), "1000")
}

func TestDeleteTransaction_RefusedForPairedTypes(t *testing.T) {
	f := newFixture(t, defaultProvider())
	owner := f.mustOwner(t, "0")
	src := f.mustAccount(t, owner.ID, domain.KindBank, "TRY", "1000")
	dst := f.mustAccount(t, owner.ID, domain.KindBank, "TRY", "0")

	result, err := f.transfers.Transfer(context.Background(), TransferRequest{
		OwnerID:              owner.ID,
		SourceAccountID:      src.ID,
		DestinationAccountID: dst.ID,
		Amount:               "100",
		Date:                 testDate,
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	err = f.ledger.DeleteTransaction(context.Background(), result.Outgoing.ID)
	if !errors.Is(err, domain.ErrDeletionNotAllowed) {
		t.Fatalf("err = %v, want ErrDeletionNotAllowed", err)
	}
}

func TestUpdateTransaction_ReappliesDeltaOnly(t *testing.T) {
	f := newFixture(t, defaultProvider())
	owner := f.mustOwner(t, "0")
	bank := f.mustAccount(t, owner.ID, domain.KindBank, "TRY", "1000")

	tx, err := f.ledger.CreateTransaction(context.Background(), CreateTransactionRequest{
		OwnerID:   owner.ID,
		Type:      domain.TypeExpense,
		Amount:    "100",
		Currency:  "TRY",
		Date:      testDate,
		AccountID: &bank.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := f.ledger.UpdateTransaction(context.Background(), tx.ID, CreateTransactionRequest{
		OwnerID:   owner.ID,
		Type:      domain.TypeExpense,
		Amount:    "150",
		Currency:  "TRY",
		Date:      testDate,
		AccountID: &bank.ID,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	assertDecimal(t, updated.Amount, "150")
	assertDecimal(t, f.balance(t, bank.ID), "850")
}

func TestUpdateTransaction_RefusedForImmutableTypes(t *testing.T) {
	f := newFixture(t, defaultProvider())
	owner := f.mustOwner(t, "0")
	src := f.mustAccount(t, owner.ID, domain.KindBank, "TRY", "1000")
	dst := f.mustAccount(t, owner.ID, domain.KindBank, "TRY", "0")

	result, err := f.transfers.Transfer(context.Background(), TransferRequest{
		OwnerID:              owner.ID,
		SourceAccountID:      src.ID,
		DestinationAccountID: dst.ID,
		Amount:               "10",
		Date:                 testDate,
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	_, err = f.ledger.UpdateTransaction(context.Background(), result.Incoming.ID, CreateTransactionRequest{
		OwnerID:  owner.ID,
		Type:     domain.TypeTransfer,
		Amount:   "20",
		Currency: "TRY",
		Date:     testDate,
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestCreditCardPayment_ReducesDebtAndClamps(t *testing.T) {
	f := newFixture(t, defaultProvider())
	owner := f.mustOwner(t, "0")
	bank := f.mustAccount(t, owner.ID, domain.KindBank, "TRY", "1000")
	card := f.mustAccount(t, owner.ID, domain.KindCreditCard, "TRY", "120")

	_, err := f.ledger.CreateTransaction(context.Background(), CreateTransactionRequest{
		OwnerID:          owner.ID,
		Type:             domain.TypeCreditCardPayment,
		Amount:           "200",
		Currency:         "TRY",
		Date:             testDate,
		AccountID:        &bank.ID,
		CounterAccountID: &card.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	assertDecimal(t, f.balance(t, bank.ID), "800")
	// Paying more than the outstanding debt clamps at zero, never negative.
	assertDecimal(t, f.balance(t, card.ID), "0")
}

func TestCreateIncome_RecordsCommission(t *testing.T) {
	f := newFixture(t, defaultProvider())
	owner := f.mustOwner(t, "10")
	bank := f.mustAccount(t, owner.ID, domain.KindBank, "TRY", "0")

	tx, err := f.ledger.CreateTransaction(context.Background(), CreateTransactionRequest{
		OwnerID:   owner.ID,
		Type:      domain.TypeIncome,
		Amount:    "500",
		Currency:  "TRY",
		Date:      testDate,
		AccountID: &bank.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	commission, err := f.commissions.FindByTransaction(context.Background(), tx.ID)
	if err != nil {
		t.Fatalf("find commission: %v", err)
	}
	assertDecimal(t, commission.Amount, "50.00")
}

func TestDebtPayment_CompletesDebt(t *testing.T) {
	f := newFixture(t, defaultProvider())
	owner := f.mustOwner(t, "0")
	bank := f.mustAccount(t, owner.ID, domain.KindBank, "TRY", "0")
	customer := &domain.Customer{Name: "Lale Ltd"}
	if err := f.db.Create(customer).Error; err != nil {
		t.Fatalf("create customer: %v", err)
	}

	debt, err := f.debts.Create(context.Background(), CreateDebtRequest{
		OwnerID:    owner.ID,
		Type:       domain.DebtReceivable,
		CustomerID: &customer.ID,
		Amount:     "400",
		Currency:   "TRY",
		DueDate:    testDate.AddDate(0, 1, 0),
	})
	if err != nil {
		t.Fatalf("create debt: %v", err)
	}

	if _, err := f.ledger.CreateTransaction(context.Background(), CreateTransactionRequest{
		OwnerID:   owner.ID,
		Type:      domain.TypeDebtPayment,
		Amount:    "400",
		Currency:  "TRY",
		Date:      testDate,
		AccountID: &bank.ID,
		DebtID:    &debt.ID,
	}); err != nil {
		t.Fatalf("create payment: %v", err)
	}

	// A receivable collection lands on the destination side.
	assertDecimal(t, f.balance(t, bank.ID), "400")

	refreshed, err := f.debts.Get(context.Background(), debt.ID)
	if err != nil {
		t.Fatalf("get debt: %v", err)
	}
	if refreshed.Status != domain.StatusCompleted {
		t.Fatalf("debt status = %s, want completed", refreshed.Status)
	}
	remaining, err := f.debts.Remaining(context.Background(), debt.ID)
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	assertDecimal(t, remaining, "0")
}

func TestUpdateDebtPayment_RelinkRefreshesBothDebts(t *testing.T) {
	f := newFixture(t, defaultProvider())
	owner := f.mustOwner(t, "0")
	bank := f.mustAccount(t, owner.ID, domain.KindBank, "TRY", "0")
	customer := &domain.Customer{Name: "Lale Ltd"}
	if err := f.db.Create(customer).Error; err != nil {
		t.Fatalf("create customer: %v", err)
	}

	newDebt := func(amount string) *domain.Debt {
		debt, err := f.debts.Create(context.Background(), CreateDebtRequest{
			OwnerID:    owner.ID,
			Type:       domain.DebtReceivable,
			CustomerID: &customer.ID,
			Amount:     amount,
			Currency:   "TRY",
			DueDate:    testDate.AddDate(0, 1, 0),
		})
		if err != nil {
			t.Fatalf("create debt: %v", err)
		}
		return debt
	}
	first := newDebt("400")
	second := newDebt("400")

	payment, err := f.ledger.CreateTransaction(context.Background(), CreateTransactionRequest{
		OwnerID:   owner.ID,
		Type:      domain.TypeDebtPayment,
		Amount:    "400",
		Currency:  "TRY",
		Date:      testDate,
		AccountID: &bank.ID,
		DebtID:    &first.ID,
	})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	completed, _ := f.debts.Get(context.Background(), first.ID)
	if completed.Status != domain.StatusCompleted {
		t.Fatalf("first debt status = %s, want completed", completed.Status)
	}

	// Re-link the payment to the second debt: the first one no longer has a
	// payment counting toward it and must reopen.
	if _, err := f.ledger.UpdateTransaction(context.Background(), payment.ID, CreateTransactionRequest{
		OwnerID:   owner.ID,
		Type:      domain.TypeDebtPayment,
		Amount:    "400",
		Currency:  "TRY",
		Date:      testDate,
		AccountID: &bank.ID,
		DebtID:    &second.ID,
	}); err != nil {
		t.Fatalf("relink payment: %v", err)
	}

	reopened, _ := f.debts.Get(context.Background(), first.ID)
	if reopened.Status != domain.StatusPending {
		t.Fatalf("first debt status = %s, want pending after relink", reopened.Status)
	}
	settled, _ := f.debts.Get(context.Background(), second.ID)
	if settled.Status != domain.StatusCompleted {
		t.Fatalf("second debt status = %s, want completed", settled.Status)
	}
}

func TestCreateTransaction_RejectsUnknownCategory(t *testing.T) {
	f := newFixture(t, defaultProvider())
	owner := f.mustOwner(t, "0")
	bank := f.mustAccount(t, owner.ID, domain.KindBank, "TRY", "100")
	missing := int64(999)

	_, err := f.ledger.CreateTransaction(context.Background(), CreateTransactionRequest{
		OwnerID:    owner.ID,
		Type:       domain.TypeExpense,
		Amount:     "10",
		Currency:   "TRY",
		Date:       testDate,
		AccountID:  &bank.ID,
		CategoryID: &missing,
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestCreateSubscription_CopyRollsOriginalForward(t *testing.T) {
	f := newFixture(t, defaultProvider())
	owner := f.mustOwner(t, "0")
	bank := f.mustAccount(t, owner.ID, domain.KindBank, "TRY", "1000")

	original, err := f.ledger.CreateTransaction(context.Background(), CreateTransactionRequest{
		OwnerID:         owner.ID,
		Type:            domain.TypeExpense,
		Amount:          "99",
		Currency:        "TRY",
		Date:            testDate,
		AccountID:       &bank.ID,
		Subscription:    true,
		Period:          domain.PeriodMonthly,
		NextPaymentDate: testDate.AddDate(0, 1, 0),
	})
	if err != nil {
		t.Fatalf("create original: %v", err)
	}

	if _, err := f.ledger.CreateTransaction(context.Background(), CreateTransactionRequest{
		OwnerID:     owner.ID,
		Type:        domain.TypeExpense,
		Amount:      "99",
		Currency:    "TRY",
		Date:        testDate.AddDate(0, 1, 0),
		AccountID:   &bank.ID,
		ReferenceID: &original.ID,
	}); err != nil {
		t.Fatalf("create copy: %v", err)
	}

	rolled, err := f.transactions.FindByID(context.Background(), original.ID)
	if err != nil {
		t.Fatalf("reload original: %v", err)
	}
	want := testDate.AddDate(0, 2, 0)
	if !rolled.Subscription.NextPaymentDate.Equal(want) {
		t.Fatalf("next payment = %s, want %s", rolled.Subscription.NextPaymentDate, want)
	}
}
