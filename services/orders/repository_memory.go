package orders

import (
	"context"
	"fmt"

	"github.com/matheusmosca/order-fulfillment/internal/apperr"
	"github.com/matheusmosca/order-fulfillment/internal/ledger"
	"github.com/matheusmosca/order-fulfillment/internal/memstore"
)

// MemoryOrderRepository implementa Repository em memória
type MemoryOrderRepository struct {
	store *memstore.Store[Order]
}

// NewMemoryOrderRepository cria uma nova instância de MemoryOrderRepository
func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{
		store: memstore.New(Order.Clone),
	}
}

func (r *MemoryOrderRepository) BeginTx(ctx context.Context) (Tx, error) {
	return r.store.Begin(), nil
}

func (r *MemoryOrderRepository) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	order, ok := r.store.Get(orderID)
	if !ok {
		return nil, apperr.NotFound("Order", orderID)
	}
	return &order, nil
}

func (r *MemoryOrderRepository) GetOrderForUpdate(ctx context.Context, tx Tx, orderID string) (*Order, error) {
	mtx, err := memTx(tx)
	if err != nil {
		return nil, err
	}

	order, ok := mtx.Get(orderID)
	if !ok {
		return nil, apperr.NotFound("Order", orderID)
	}
	return &order, nil
}

func (r *MemoryOrderRepository) CreateOrder(ctx context.Context, tx Tx, order *Order) error {
	return r.UpdateOrder(ctx, tx, order)
}

func (r *MemoryOrderRepository) UpdateOrder(ctx context.Context, tx Tx, order *Order) error {
	mtx, err := memTx(tx)
	if err != nil {
		return err
	}
	mtx.Put(order.ID, *order)
	return nil
}

func (r *MemoryOrderRepository) AppendHistory(ctx context.Context, tx Tx, orderID string, entry ledger.Entry) error {
	mtx, err := memTx(tx)
	if err != nil {
		return err
	}
	mtx.Append(orderID, entry)
	return nil
}

func (r *MemoryOrderRepository) ListHistory(ctx context.Context, orderID string) ([]ledger.Entry, error) {
	return r.store.History(orderID), nil
}

func (r *MemoryOrderRepository) OrderNumberExists(ctx context.Context, orderNumber string) (bool, error) {
	found := r.store.Find(func(o Order) bool { return o.OrderNumber == orderNumber })
	return len(found) > 0, nil
}

func memTx(tx Tx) (*memstore.Tx[Order], error) {
	mtx, ok := tx.(*memstore.Tx[Order])
	if !ok {
		return nil, fmt.Errorf("unexpected transaction type %T", tx)
	}
	return mtx, nil
}
