package payments

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/matheusmosca/order-fulfillment/internal/apperr"
	"github.com/matheusmosca/order-fulfillment/internal/ledger"
	"github.com/matheusmosca/order-fulfillment/internal/postgres"
)

// Schema é o DDL do banco de pagamentos
//
//go:embed schema.sql
var Schema string

// Tx interface para transações
type Tx interface {
	Commit() error
	Rollback() error
}

// PaymentRepository define a interface para operações de banco de dados de pagamentos
type PaymentRepository interface {
	BeginTx(ctx context.Context) (Tx, error)
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
	GetPaymentForUpdate(ctx context.Context, tx Tx, paymentID string) (*Payment, error)

	// ListPayments devolve as tentativas de pagamento de um pedido, da mais nova para a mais antiga
	ListPayments(ctx context.Context, orderID string) ([]Payment, error)

	CreatePayment(ctx context.Context, tx Tx, payment *Payment) error
	UpdatePayment(ctx context.Context, tx Tx, payment *Payment) error
	AppendHistory(ctx context.Context, tx Tx, paymentID string, entry ledger.Entry) error
	ListHistory(ctx context.Context, paymentID string) ([]ledger.Entry, error)
}

var historyTable = ledger.Table{Name: "payment_history", EntityColumn: "payment_id"}

// PostgresPaymentRepository implementa PaymentRepository usando PostgreSQL
type PostgresPaymentRepository struct {
	db postgres.DB
}

// NewPaymentRepository cria uma nova instância de PostgresPaymentRepository
func NewPaymentRepository(db postgres.DB) PaymentRepository {
	return &PostgresPaymentRepository{
		db: db,
	}
}

// BeginTx inicia uma nova transação
func (r *PostgresPaymentRepository) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := postgres.Begin(ctx, r.db)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

const selectPayment = `
	SELECT id, order_id, amount::text, currency, payment_method, status,
	       COALESCE(payment_details::text, ''), COALESCE(transaction_id, ''),
	       refund_pending, created_at, updated_at
	FROM payments
`

func scanPayment(row pgx.Row) (*Payment, error) {
	var (
		payment        Payment
		amount, detail string
	)

	err := row.Scan(
		&payment.ID,
		&payment.OrderID,
		&amount,
		&payment.Currency,
		&payment.PaymentMethod,
		&payment.Status,
		&detail,
		&payment.TransactionID,
		&payment.RefundPending,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if payment.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid amount for payment %s: %w", payment.ID, err)
	}
	if detail != "" {
		if err := json.Unmarshal([]byte(detail), &payment.Details); err != nil {
			return nil, fmt.Errorf("invalid payment_details for payment %s: %w", payment.ID, err)
		}
	}
	return &payment, nil
}

// GetPayment busca um pagamento pelo ID
func (r *PostgresPaymentRepository) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if err := postgres.CheckID("Payment", paymentID); err != nil {
		return nil, err
	}

	payment, err := scanPayment(r.db.QueryRow(ctx, selectPayment+" WHERE id = $1", paymentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("Payment", paymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}

// GetPaymentForUpdate obtém o pagamento com lock pessimista (FOR UPDATE)
func (r *PostgresPaymentRepository) GetPaymentForUpdate(ctx context.Context, tx Tx, paymentID string) (*Payment, error) {
	if err := postgres.CheckID("Payment", paymentID); err != nil {
		return nil, err
	}

	pgTx, err := postgres.Unwrap(tx)
	if err != nil {
		return nil, err
	}

	payment, err := scanPayment(pgTx.QueryRow(ctx, selectPayment+" WHERE id = $1 FOR UPDATE", paymentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("Payment", paymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment with lock: %w", err)
	}
	return payment, nil
}

// ListPayments lista os pagamentos de um pedido
func (r *PostgresPaymentRepository) ListPayments(ctx context.Context, orderID string) ([]Payment, error) {
	rows, err := r.db.Query(ctx, selectPayment+" WHERE order_id = $1 ORDER BY created_at DESC", orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	payments := make([]Payment, 0)
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *payment)
	}
	return payments, rows.Err()
}

// CreatePayment insere o pagamento
func (r *PostgresPaymentRepository) CreatePayment(ctx context.Context, tx Tx, payment *Payment) error {
	pgTx, err := postgres.Unwrap(tx)
	if err != nil {
		return err
	}

	details, err := json.Marshal(payment.Details)
	if err != nil {
		return err
	}

	_, err = pgTx.Exec(ctx, `
		INSERT INTO payments (id, order_id, amount, currency, payment_method, status,
		                      payment_details, transaction_id, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7::jsonb, NULLIF($8, ''), $9, $10)
	`, payment.ID, payment.OrderID, payment.Amount.String(), payment.Currency, payment.PaymentMethod,
		payment.Status, string(details), payment.TransactionID, payment.CreatedAt, payment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// UpdatePayment grava status, transaction_id e a marca de estorno em andamento
func (r *PostgresPaymentRepository) UpdatePayment(ctx context.Context, tx Tx, payment *Payment) error {
	pgTx, err := postgres.Unwrap(tx)
	if err != nil {
		return err
	}

	_, err = pgTx.Exec(ctx, `
		UPDATE payments
		SET status = $2, transaction_id = NULLIF($3, ''), refund_pending = $4, updated_at = $5
		WHERE id = $1
	`, payment.ID, payment.Status, payment.TransactionID, payment.RefundPending, payment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	return nil
}

// AppendHistory registra a entrada na mesma transação do pagamento
func (r *PostgresPaymentRepository) AppendHistory(ctx context.Context, tx Tx, paymentID string, entry ledger.Entry) error {
	pgTx, err := postgres.Unwrap(tx)
	if err != nil {
		return err
	}
	return historyTable.Append(ctx, pgTx, paymentID, entry)
}

// ListHistory devolve o histórico do pagamento
func (r *PostgresPaymentRepository) ListHistory(ctx context.Context, paymentID string) ([]ledger.Entry, error) {
	if err := postgres.CheckID("Payment", paymentID); err != nil {
		return nil, err
	}
	return historyTable.List(ctx, r.db, paymentID)
}
