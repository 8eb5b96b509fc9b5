package payments

import (
	"context"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheusmosca/order-fulfillment/internal/apperr"
)

const paymentID = "6b1f7c52-0d3e-4f8a-9c21-5e4d3b2a1f00"

var paymentColumns = []string{
	"id", "order_id", "amount", "currency", "payment_method", "status",
	"payment_details", "transaction_id", "refund_pending", "created_at", "updated_at",
}

func newPgxMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	db, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestPostgresPaymentRepository_MalformedIDIsNotFound(t *testing.T) {
	// Arrange
	db := newPgxMock(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	// Act
	_, getErr := repo.GetPayment(ctx, "not-a-uuid")
	_, historyErr := repo.ListHistory(ctx, "42")

	// Assert
	assert.ErrorIs(t, getErr, apperr.ErrNotFound)
	assert.ErrorIs(t, historyErr, apperr.ErrNotFound)
	assert.NoError(t, db.ExpectationsWereMet())
}

func TestPostgresPaymentRepository_GetPayment(t *testing.T) {
	// Arrange
	db := newPgxMock(t)
	repo := NewPaymentRepository(db)
	db.ExpectQuery(regexp.QuoteMeta("FROM payments")).
		WithArgs(paymentID).
		WillReturnRows(db.NewRows(paymentColumns).AddRow(
			paymentID, "order-1", "99.90", "BRL", MethodCreditCard, StatusCompleted,
			`{"method":"credit_card","card_number":"************1111"}`, "txn-1", true, fixedNow, fixedNow,
		))

	// Act
	payment, err := repo.GetPayment(context.Background(), paymentID)

	// Assert
	require.NoError(t, err)
	assert.True(t, payment.Amount.Equal(decimal.RequireFromString("99.90")))
	assert.Equal(t, StatusCompleted, payment.Status)
	assert.Equal(t, "txn-1", payment.TransactionID)
	assert.True(t, payment.RefundPending)
	assert.Equal(t, "************1111", payment.Details.CardNumber)
	assert.NoError(t, db.ExpectationsWereMet())
}

func TestPostgresPaymentRepository_GetPaymentMissing(t *testing.T) {
	db := newPgxMock(t)
	repo := NewPaymentRepository(db)
	db.ExpectQuery(regexp.QuoteMeta("FROM payments")).
		WithArgs(paymentID).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetPayment(context.Background(), paymentID)

	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, db.ExpectationsWereMet())
}

func TestPostgresPaymentRepository_ClaimRefundInTransaction(t *testing.T) {
	// Arrange
	db := newPgxMock(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	db.ExpectBegin()
	db.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 FOR UPDATE")).
		WithArgs(paymentID).
		WillReturnRows(db.NewRows(paymentColumns).AddRow(
			paymentID, "order-1", "50.00", "BRL", MethodBankTransfer, StatusCompleted,
			"", "txn-1", false, fixedNow, fixedNow,
		))
	db.ExpectExec(regexp.QuoteMeta("UPDATE payments")).
		WithArgs(paymentID, StatusCompleted, "txn-1", true, fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	db.ExpectCommit()

	// Act
	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	payment, err := repo.GetPaymentForUpdate(ctx, tx, paymentID)
	require.NoError(t, err)
	payment.RefundPending = true
	require.NoError(t, repo.UpdatePayment(ctx, tx, payment))

	// Assert
	assert.NoError(t, tx.Commit())
	assert.NoError(t, db.ExpectationsWereMet())
}

func TestPostgresPaymentRepository_CreatePayment(t *testing.T) {
	db := newPgxMock(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()
	payment := &Payment{
		ID:            paymentID,
		OrderID:       "order-1",
		Amount:        decimal.RequireFromString("10.50"),
		Currency:      "BRL",
		PaymentMethod: MethodBankTransfer,
		Status:        StatusPending,
		Details:       PaymentDetails{Method: MethodBankTransfer},
		CreatedAt:     fixedNow,
		UpdatedAt:     fixedNow,
	}

	db.ExpectBegin()
	db.ExpectExec(regexp.QuoteMeta("INSERT INTO payments")).
		WithArgs(paymentID, "order-1", "10.5", "BRL", MethodBankTransfer, StatusPending,
			pgxmock.AnyArg(), "", fixedNow, fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	db.ExpectRollback()

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	err = repo.CreatePayment(ctx, tx, payment)

	require.NoError(t, err)
	assert.NoError(t, tx.Rollback())
	assert.NoError(t, db.ExpectationsWereMet())
}
