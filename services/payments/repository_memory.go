package payments

import (
	"context"
	"fmt"
	"sort"

	"github.com/matheusmosca/order-fulfillment/internal/apperr"
	"github.com/matheusmosca/order-fulfillment/internal/ledger"
	"github.com/matheusmosca/order-fulfillment/internal/memstore"
)

// MemoryPaymentRepository implementa PaymentRepository em memória
type MemoryPaymentRepository struct {
	store *memstore.Store[Payment]
}

// NewMemoryPaymentRepository cria uma nova instância de MemoryPaymentRepository
func NewMemoryPaymentRepository() *MemoryPaymentRepository {
	return &MemoryPaymentRepository{store: memstore.New[Payment](nil)}
}

func (r *MemoryPaymentRepository) BeginTx(ctx context.Context) (Tx, error) {
	return r.store.Begin(), nil
}

func (r *MemoryPaymentRepository) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	payment, ok := r.store.Get(paymentID)
	if !ok {
		return nil, apperr.NotFound("Payment", paymentID)
	}
	return &payment, nil
}

func (r *MemoryPaymentRepository) GetPaymentForUpdate(ctx context.Context, tx Tx, paymentID string) (*Payment, error) {
	mtx, err := memTx(tx)
	if err != nil {
		return nil, err
	}

	payment, ok := mtx.Get(paymentID)
	if !ok {
		return nil, apperr.NotFound("Payment", paymentID)
	}
	return &payment, nil
}

func (r *MemoryPaymentRepository) ListPayments(ctx context.Context, orderID string) ([]Payment, error) {
	payments := r.store.Find(func(p Payment) bool { return p.OrderID == orderID })
	sort.SliceStable(payments, func(i, j int) bool {
		return payments[i].CreatedAt.After(payments[j].CreatedAt)
	})
	return payments, nil
}

func (r *MemoryPaymentRepository) CreatePayment(ctx context.Context, tx Tx, payment *Payment) error {
	return r.UpdatePayment(ctx, tx, payment)
}

func (r *MemoryPaymentRepository) UpdatePayment(ctx context.Context, tx Tx, payment *Payment) error {
	mtx, err := memTx(tx)
	if err != nil {
		return err
	}
	mtx.Put(payment.ID, *payment)
	return nil
}

func (r *MemoryPaymentRepository) AppendHistory(ctx context.Context, tx Tx, paymentID string, entry ledger.Entry) error {
	mtx, err := memTx(tx)
	if err != nil {
		return err
	}
	mtx.Append(paymentID, entry)
	return nil
}

func (r *MemoryPaymentRepository) ListHistory(ctx context.Context, paymentID string) ([]ledger.Entry, error) {
	return r.store.History(paymentID), nil
}

func memTx(tx Tx) (*memstore.Tx[Payment], error) {
	mtx, ok := tx.(*memstore.Tx[Payment])
	if !ok {
		return nil, fmt.Errorf("unexpected transaction type %T", tx)
	}
	return mtx, nil
}
