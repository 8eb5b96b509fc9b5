package orders

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// InventoryRestorer é chamado depois que um pedido vai para CANCELED.
// Falhas são logadas; o cancelamento já foi commitado.
type InventoryRestorer interface {
	Restore(ctx context.Context, order Order) error
}

// NoopRestorer não devolve nada ao estoque. É o padrão.
type NoopRestorer struct{}

func (NoopRestorer) Restore(context.Context, Order) error {
	return nil
}

// CatalogRestorer devolve ao catálogo a quantidade de cada item.
// Ativado com orders.restore_inventory_on_cancel.
type CatalogRestorer struct {
	catalog ProductCatalog
	log     *zap.Logger
}

// NewCatalogRestorer cria uma nova instância de CatalogRestorer
func NewCatalogRestorer(catalog ProductCatalog, log *zap.Logger) *CatalogRestorer {
	return &CatalogRestorer{catalog: catalog, log: log}
}

func (r *CatalogRestorer) Restore(ctx context.Context, order Order) error {
	var errs []error
	for _, item := range order.Items {
		if err := r.catalog.UpdateStock(ctx, item.ProductType, item.ProductID, item.Quantity); err != nil {
			r.log.Warn("❌ Failed to restore inventory",
				zap.String("order_id", order.ID),
				zap.String("product_id", item.ProductID),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
