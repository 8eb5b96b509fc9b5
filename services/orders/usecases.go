package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/matheusmosca/order-fulfillment/internal/apperr"
	"github.com/matheusmosca/order-fulfillment/internal/config"
	"github.com/matheusmosca/order-fulfillment/internal/idgen"
	"github.com/matheusmosca/order-fulfillment/internal/ledger"
	"github.com/matheusmosca/order-fulfillment/internal/money"
	"github.com/matheusmosca/order-fulfillment/internal/notifier"
	"github.com/matheusmosca/order-fulfillment/internal/redisx"
	"github.com/matheusmosca/order-fulfillment/internal/telemetry"
	"github.com/matheusmosca/order-fulfillment/internal/transition"
)

// StatusCache guarda o status atual do pedido para GET /orders/{id}/status/
type StatusCache interface {
	Set(ctx context.Context, orderID string, status redisx.CachedStatus) error
	Get(ctx context.Context, orderID string) (redisx.CachedStatus, bool, error)
}

type noopCache struct{}

func (noopCache) Set(context.Context, string, redisx.CachedStatus) error { return nil }

func (noopCache) Get(context.Context, string) (redisx.CachedStatus, bool, error) {
	return redisx.CachedStatus{}, false, nil
}

// CreateOrderInput representa a requisição para criar um pedido
type CreateOrderInput struct {
	CustomerID      string          `json:"customer_id" binding:"required"`
	Items           []ItemInput     `json:"items" binding:"required,min=1,dive"`
	ShippingAddress json.RawMessage `json:"shipping_address"`
	BillingAddress  json.RawMessage `json:"billing_address"`
	PaymentMethod   string          `json:"payment_method"`
	Notes           string          `json:"notes"`
}

// ItemInput é um item pedido pelo cliente. UnitPrice só é usado quando o
// catálogo está indisponível.
type ItemInput struct {
	ProductID   string          `json:"product_id" binding:"required"`
	ProductType string          `json:"product_type" binding:"required"`
	Quantity    int             `json:"quantity" binding:"required,gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// UpdateItemInput altera quantidade e/ou preço de um item
type UpdateItemInput struct {
	Quantity  *int             `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

// OrderDetails é o pedido com o histórico, do mais novo para o mais antigo
type OrderDetails struct {
	*Order
	StatusHistory []ledger.Entry `json:"status_history"`
}

// OrderUseCase contém a lógica de negócio de pedidos
type OrderUseCase struct {
	repository  Repository
	customers   CustomerDirectory
	catalog     ProductCatalog
	restorer    InventoryRestorer
	transitions transition.Validator
	cache       StatusCache
	cfg         config.OrdersConfig
	log         *zap.Logger
	random      idgen.Random
	now         func() time.Time

	ordersCreated     metric.Int64Counter
	statusTransitions metric.Int64Counter
	notifications     metric.Int64Counter
}

// NewOrderUseCase cria uma nova instância de OrderUseCase. Transições são
// permissivas, sem cache; o estoque só é devolvido no cancelamento quando
// cfg.RestoreInventoryOnCancel está ligado.
func NewOrderUseCase(
	repository Repository,
	customers CustomerDirectory,
	catalog ProductCatalog,
	cfg config.OrdersConfig,
	log *zap.Logger,
) *OrderUseCase {
	var restorer InventoryRestorer = NoopRestorer{}
	if cfg.RestoreInventoryOnCancel {
		restorer = NewCatalogRestorer(catalog, log)
	}
	if cfg.NumberAttempts < 1 {
		cfg.NumberAttempts = 1
	}

	return &OrderUseCase{
		repository:  repository,
		customers:   customers,
		catalog:     catalog,
		restorer:    restorer,
		transitions: transition.Permissive{},
		cache:       noopCache{},
		cfg:         cfg,
		log:         log,
		random:      idgen.DefaultRandom,
		now:         time.Now,

		ordersCreated:     telemetry.Counter("orders-service", "orders_created_total", "Pedidos criados"),
		statusTransitions: telemetry.Counter("orders-service", "order_status_transitions_total", "Mudanças de status de pedido"),
		notifications:     telemetry.Counter("orders-service", "order_notifications_received_total", "Notificações de pagamento/entrega recebidas"),
	}
}

// WithStatusCache liga o cache de status
func (uc *OrderUseCase) WithStatusCache(cache StatusCache) *OrderUseCase {
	uc.cache = cache
	return uc
}

// WithRestorer troca o hook de devolução de estoque
func (uc *OrderUseCase) WithRestorer(restorer InventoryRestorer) *OrderUseCase {
	uc.restorer = restorer
	return uc
}

// WithTransitions troca a regra de transição de status
func (uc *OrderUseCase) WithTransitions(v transition.Validator) *OrderUseCase {
	uc.transitions = v
	return uc
}

// CreateOrder valida cliente e produtos, tira o snapshot dos produtos e
// grava o pedido com status CREATED
func (uc *OrderUseCase) CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error) {
	if in.CustomerID == "" {
		return nil, apperr.Validation("customer_id is required")
	}
	if len(in.Items) == 0 {
		return nil, apperr.Validation("at least one item is required")
	}

	if err := uc.validateCustomer(ctx, in.CustomerID); err != nil {
		return nil, err
	}

	items := make([]OrderItem, 0, len(in.Items))
	var invalid []apperr.Detail
	for i, itemIn := range in.Items {
		item, detail, err := uc.resolveItem(ctx, itemIn)
		if err != nil {
			return nil, err
		}
		if detail != "" {
			invalid = append(invalid, apperr.Detail{Path: fmt.Sprintf("items[%d]", i), Info: detail})
			continue
		}
		items = append(items, item)
	}
	if len(invalid) > 0 {
		return nil, apperr.ValidationWithDetails("Invalid products", invalid)
	}

	now := uc.now()
	orderNumber, err := idgen.Unique(ctx, uc.cfg.NumberAttempts,
		func() string { return idgen.OrderNumber(now, uc.random) },
		uc.repository.OrderNumberExists,
	)
	if err != nil {
		return nil, err
	}

	order := NewOrder(orderNumber, in.CustomerID, items, now)
	order.ShippingAddress = in.ShippingAddress
	order.BillingAddress = in.BillingAddress
	order.PaymentMethod = in.PaymentMethod
	order.Notes = in.Notes

	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := uc.repository.CreateOrder(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := uc.repository.AppendHistory(ctx, tx, order.ID, ledger.NewEntry(StatusCreated, "Order created", now)); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}

	uc.cacheStatus(ctx, order)
	telemetry.Inc(ctx, uc.ordersCreated, "created")
	uc.log.Info("✅ Order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)),
	)
	return order, nil
}

// validateCustomer falha apenas quando o serviço de clientes responde que o
// cliente não existe
func (uc *OrderUseCase) validateCustomer(ctx context.Context, customerID string) error {
	exists, err := uc.customers.CustomerExists(ctx, customerID)
	if err != nil {
		uc.log.Warn("ℹ️ Customer service unavailable, assuming customer exists",
			zap.String("customer_id", customerID),
			zap.Error(err),
		)
		return nil
	}
	if !exists {
		return apperr.Validation("Customer not found")
	}
	return nil
}

// resolveItem consulta o catálogo e monta o item. detail != "" indica item
// inválido (produto inexistente ou estoque insuficiente).
func (uc *OrderUseCase) resolveItem(ctx context.Context, in ItemInput) (OrderItem, string, error) {
	if in.Quantity <= 0 {
		return OrderItem{}, "quantity must be greater than 0", nil
	}

	product, err := uc.catalog.GetProduct(ctx, in.ProductType, in.ProductID)
	switch {
	case errors.Is(err, ErrProductNotFound):
		return OrderItem{}, "Product not found", nil

	case err != nil:
		// catálogo indisponível: segue com snapshot provisório e o preço do cliente
		uc.log.Warn("ℹ️ Product service unavailable, using placeholder snapshot",
			zap.String("product_id", in.ProductID),
			zap.Error(err),
		)
		if in.UnitPrice.LessThanOrEqual(decimal.Zero) {
			return OrderItem{}, "", apperr.Validation("unit_price is required for product %s while the product catalog is unavailable", in.ProductID)
		}
		if !money.Exact(in.UnitPrice) {
			return OrderItem{}, "unit_price must have at most 2 decimal places", nil
		}
		snapshot := ProductSnapshot{ID: in.ProductID, Name: "Unknown Product"}
		return NewOrderItem(in.ProductID, in.ProductType, in.Quantity, in.UnitPrice, snapshot), "", nil
	}

	if product.StockQuantity < in.Quantity {
		return OrderItem{}, fmt.Sprintf("Insufficient stock (available: %d, requested: %d)", product.StockQuantity, in.Quantity), nil
	}

	// preços do catálogo com mais casas são arredondados para a escala gravada
	price := product.Price.Round(money.Places)
	snapshot := ProductSnapshot{
		ID:       product.ID,
		Name:     product.Name,
		Price:    &price,
		Category: product.Category,
	}
	return NewOrderItem(in.ProductID, in.ProductType, in.Quantity, price, snapshot), "", nil
}

// GetOrder devolve o pedido com o histórico
func (uc *OrderUseCase) GetOrder(ctx context.Context, orderID string) (*OrderDetails, error) {
	order, err := uc.repository.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	history, err := uc.repository.ListHistory(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return &OrderDetails{Order: order, StatusHistory: history}, nil
}

// GetHistory devolve o histórico do pedido, do mais novo para o mais antigo
func (uc *OrderUseCase) GetHistory(ctx context.Context, orderID string) ([]ledger.Entry, error) {
	if _, err := uc.repository.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return uc.repository.ListHistory(ctx, orderID)
}

// GetStatus lê o status do cache e cai para o banco quando não encontra
func (uc *OrderUseCase) GetStatus(ctx context.Context, orderID string) (redisx.CachedStatus, error) {
	cached, found, err := uc.cache.Get(ctx, orderID)
	if err != nil {
		uc.log.Warn("ℹ️ Status cache unavailable", zap.String("order_id", orderID), zap.Error(err))
	}
	if found {
		return cached, nil
	}

	order, err := uc.repository.GetOrder(ctx, orderID)
	if err != nil {
		return redisx.CachedStatus{}, err
	}

	uc.cacheStatus(ctx, order)
	return redisx.CachedStatus{Status: order.Status, UpdatedAt: order.UpdatedAt}, nil
}

// Transition muda o status do pedido e sempre registra no histórico.
// CANCELED aciona a devolução de estoque depois do commit.
func (uc *OrderUseCase) Transition(ctx context.Context, orderID string, newStatus string, comment string) (*Order, error) {
	if !IsValidStatus(newStatus) {
		return nil, apperr.Validation("invalid order status %q", newStatus)
	}

	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order, err := uc.repository.GetOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if err := uc.transitions.Validate("Order", order.Status, newStatus); err != nil {
		return nil, err
	}

	previous := order.Status
	now := uc.now()
	order.Status = newStatus
	order.UpdatedAt = now

	if err := uc.repository.UpdateOrder(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := uc.repository.AppendHistory(ctx, tx, order.ID, ledger.NewEntry(newStatus, comment, now)); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit status change: %w", err)
	}

	uc.cacheStatus(ctx, order)
	telemetry.Inc(ctx, uc.statusTransitions, newStatus)
	uc.log.Info("✅ Order status updated",
		zap.String("order_id", order.ID),
		zap.String("from", previous),
		zap.String("to", newStatus),
	)

	if newStatus == StatusCanceled {
		if err := uc.restorer.Restore(ctx, *order); err != nil {
			uc.log.Warn("❌ Inventory restoration incomplete", zap.String("order_id", order.ID), zap.Error(err))
		}
	}

	return order, nil
}

// AddItem adiciona um item ao pedido e recalcula o total
func (uc *OrderUseCase) AddItem(ctx context.Context, orderID string, in ItemInput) (*Order, error) {
	item, detail, err := uc.resolveItem(ctx, in)
	if err != nil {
		return nil, err
	}
	if detail != "" {
		return nil, apperr.ValidationWithDetails("Invalid products", []apperr.Detail{{Path: "item", Info: detail}})
	}

	return uc.mutateItems(ctx, orderID, func(order *Order) error {
		order.AddItem(item)
		return nil
	})
}

// UpdateItem altera um item do pedido e recalcula o total
func (uc *OrderUseCase) UpdateItem(ctx context.Context, orderID string, itemID string, in UpdateItemInput) (*Order, error) {
	if in.Quantity != nil && *in.Quantity <= 0 {
		return nil, apperr.Validation("quantity must be greater than 0")
	}
	if in.UnitPrice != nil && in.UnitPrice.IsNegative() {
		return nil, apperr.Validation("unit_price must not be negative")
	}
	if in.UnitPrice != nil && !money.Exact(*in.UnitPrice) {
		return nil, apperr.Validation("unit_price must have at most 2 decimal places")
	}

	return uc.mutateItems(ctx, orderID, func(order *Order) error {
		return order.UpdateItem(itemID, in.Quantity, in.UnitPrice)
	})
}

// RemoveItem remove um item do pedido e recalcula o total
func (uc *OrderUseCase) RemoveItem(ctx context.Context, orderID string, itemID string) (*Order, error) {
	return uc.mutateItems(ctx, orderID, func(order *Order) error {
		_, err := order.RemoveItem(itemID)
		return err
	})
}

func (uc *OrderUseCase) mutateItems(ctx context.Context, orderID string, mutate func(order *Order) error) (*Order, error) {
	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order, err := uc.repository.GetOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if err := mutate(order); err != nil {
		return nil, err
	}
	order.RecomputeTotal()
	order.UpdatedAt = uc.now()

	if err := uc.repository.UpdateOrder(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit item change: %w", err)
	}

	uc.log.Info("✅ Order items updated",
		zap.String("order_id", order.ID),
		zap.Int("items", len(order.Items)),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)),
	)
	return order, nil
}

// ApplyPaymentUpdate grava o resumo do pagamento (last-write-wins) e move o
// pedido quando o status do pagamento tem correspondência
func (uc *OrderUseCase) ApplyPaymentUpdate(ctx context.Context, orderID string, update notifier.PaymentUpdate) (*Order, error) {
	return uc.applyNotification(ctx, orderID, "payment", func(order *Order, now time.Time) (string, string) {
		order.Payment = &PaymentSummary{
			PaymentID:     update.PaymentID,
			Status:        update.Status,
			TransactionID: update.TransactionID,
			UpdatedAt:     now,
		}
		return paymentStatusMapping[update.Status], fmt.Sprintf("Payment %s (payment %s)", update.Status, update.PaymentID)
	})
}

// ApplyShipmentUpdate grava o resumo da entrega (last-write-wins) e move o
// pedido quando o status da entrega tem correspondência
func (uc *OrderUseCase) ApplyShipmentUpdate(ctx context.Context, orderID string, update notifier.ShipmentUpdate) (*Order, error) {
	return uc.applyNotification(ctx, orderID, "shipment", func(order *Order, now time.Time) (string, string) {
		order.Shipment = &ShipmentSummary{
			ShipmentID:        update.ShipmentID,
			Status:            update.Status,
			TrackingNumber:    update.TrackingNumber,
			ShippingDate:      update.ShippingDate,
			EstimatedDelivery: update.EstimatedDelivery,
			ActualDelivery:    update.ActualDelivery,
			TrackingURL:       update.TrackingURL,
			UpdatedAt:         now,
		}
		return shipmentStatusMapping[update.Status], fmt.Sprintf("Shipment %s (tracking %s)", update.Status, update.TrackingNumber)
	})
}

// applyNotification aplica uma notificação recebida. apply grava o resumo e
// devolve o status de pedido correspondente ("" quando não há) e a nota do
// histórico. Sem mudança de status, nada entra no histórico.
func (uc *OrderUseCase) applyNotification(ctx context.Context, orderID string, kind string, apply func(order *Order, now time.Time) (string, string)) (*Order, error) {
	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order, err := uc.repository.GetOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	target, note := apply(order, now)
	order.UpdatedAt = now

	changed := false
	if target != "" && target != order.Status {
		if err := uc.transitions.Validate("Order", order.Status, target); err != nil {
			uc.log.Info("ℹ️ Notification does not move order",
				zap.String("order_id", order.ID),
				zap.String("kind", kind),
				zap.Error(err),
			)
		} else {
			order.Status = target
			changed = true
		}
	}

	if err := uc.repository.UpdateOrder(ctx, tx, order); err != nil {
		return nil, err
	}
	if changed {
		if err := uc.repository.AppendHistory(ctx, tx, order.ID, ledger.NewEntry(target, note, now)); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit %s notification: %w", kind, err)
	}

	if changed {
		uc.cacheStatus(ctx, order)
	}
	telemetry.Inc(ctx, uc.notifications, kind)
	uc.log.Info("✅ Order notification applied",
		zap.String("order_id", order.ID),
		zap.String("kind", kind),
		zap.String("status", order.Status),
		zap.Bool("status_changed", changed),
	)
	return order, nil
}

func (uc *OrderUseCase) cacheStatus(ctx context.Context, order *Order) {
	status := redisx.CachedStatus{Status: order.Status, UpdatedAt: order.UpdatedAt}
	if err := uc.cache.Set(ctx, order.ID, status); err != nil {
		uc.log.Warn("ℹ️ Failed to cache order status", zap.String("order_id", order.ID), zap.Error(err))
	}
}
