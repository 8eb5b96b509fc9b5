package orders

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

// Schema é o DDL do banco de pedidos
//
//go:embed schema.sql
var Schema string

// Tx interface para transações
type Tx interface {
	Commit() error
	Rollback() error
}

// Repository define a interface para operações de banco de dados de pedidos
type Repository interface {
	BeginTx(ctx context.Context) (Tx, error)

	// GetOrder busca um pedido pelo ID, com itens
	GetOrder(ctx context.Context, orderID string) (*Order, error)

	// GetOrderForUpdate busca o pedido com lock pessimista (FOR UPDATE)
	GetOrderForUpdate(ctx context.Context, tx Tx, orderID string) (*Order, error)

	CreateOrder(ctx context.Context, tx Tx, order *Order) error

	// UpdateOrder grava o pedido e substitui a lista de itens
	UpdateOrder(ctx context.Context, tx Tx, order *Order) error

	AppendHistory(ctx context.Context, tx Tx, orderID string, entry ledger.Entry) error

	// ListHistory devolve o histórico do mais novo para o mais antigo
	ListHistory(ctx context.Context, orderID string) ([]ledger.Entry, error)

	OrderNumberExists(ctx context.Context, orderNumber string) (bool, error)
}

var historyTable = ledger.Table{Name: "order_status_history", EntityColumn: "order_id"}

// PostgresOrderRepository implementa Repository usando PostgreSQL
type PostgresOrderRepository struct {
	db postgres.DB
}

// NewOrderRepository cria uma nova instância de PostgresOrderRepository
func NewOrderRepository(db postgres.DB) Repository {
	return &PostgresOrderRepository{
		db: db,
	}
}

// BeginTx inicia uma nova transação
func (r *PostgresOrderRepository) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := postgres.Begin(ctx, r.db)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

const selectOrder = `
	SELECT id, order_number, customer_id, status, total_amount::text,
	       COALESCE(shipping_address::text, ''), COALESCE(billing_address::text, ''),
	       COALESCE(payment_method, ''), COALESCE(notes, ''),
	       COALESCE(payment_summary::text, ''), COALESCE(shipment_summary::text, ''),
	       created_at, updated_at
	FROM orders
	WHERE id = $1
`

// GetOrder busca um pedido pelo ID
func (r *PostgresOrderRepository) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return r.getOrder(ctx, r.db, orderID, selectOrder)
}

// GetOrderForUpdate obtém o pedido com lock pessimista (FOR UPDATE)
func (r *PostgresOrderRepository) GetOrderForUpdate(ctx context.Context, tx Tx, orderID string) (*Order, error) {
	pgTx, err := postgres.Unwrap(tx)
	if err != nil {
		return nil, err
	}
	return r.getOrder(ctx, pgTx, orderID, selectOrder+" FOR UPDATE")
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *PostgresOrderRepository) getOrder(ctx context.Context, q querier, orderID string, query string) (*Order, error) {
	if err := postgres.CheckID("Order", orderID); err != nil {
		return nil, err
	}

	var (
		order                           Order
		total                           string
		shipping, billing               string
		paymentSummary, shipmentSummary string
	)

	err := q.QueryRow(ctx, query, orderID).Scan(
		&order.ID,
		&order.OrderNumber,
		&order.CustomerID,
		&order.Status,
		&total,
		&shipping,
		&billing,
		&order.PaymentMethod,
		&order.Notes,
		&paymentSummary,
		&shipmentSummary,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("Order", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if order.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("invalid total_amount for order %s: %w", orderID, err)
	}
	order.ShippingAddress = rawOrNil(shipping)
	order.BillingAddress = rawOrNil(billing)

	if paymentSummary != "" {
		order.Payment = &PaymentSummary{}
		if err := json.Unmarshal([]byte(paymentSummary), order.Payment); err != nil {
			return nil, fmt.Errorf("invalid payment_summary for order %s: %w", orderID, err)
		}
	}
	if shipmentSummary != "" {
		order.Shipment = &ShipmentSummary{}
		if err := json.Unmarshal([]byte(shipmentSummary), order.Shipment); err != nil {
			return nil, fmt.Errorf("invalid shipment_summary for order %s: %w", orderID, err)
		}
	}

	items, err := r.listItems(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return &order, nil
}

func (r *PostgresOrderRepository) listItems(ctx context.Context, q querier, orderID string) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, product_id, product_type, quantity, unit_price::text, subtotal::text,
		       COALESCE(product_data::text, '')
		FROM order_items
		WHERE order_id = $1
		ORDER BY position
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	items := make([]OrderItem, 0)
	for rows.Next() {
		var (
			item                      OrderItem
			unitPrice, subtotal, data string
		)
		if err := rows.Scan(&item.ID, &item.ProductID, &item.ProductType, &item.Quantity, &unitPrice, &subtotal, &data); err != nil {
			return nil, err
		}
		if item.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return nil, err
		}
		if item.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
			return nil, err
		}
		if data != "" {
			if err := json.Unmarshal([]byte(data), &item.ProductData); err != nil {
				return nil, err
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CreateOrder insere o pedido e seus itens
func (r *PostgresOrderRepository) CreateOrder(ctx context.Context, tx Tx, order *Order) error {
	pgTx, err := postgres.Unwrap(tx)
	if err != nil {
		return err
	}

	args, err := orderArgs(order)
	if err != nil {
		return err
	}

	_, err = pgTx.Exec(ctx, `
		INSERT INTO orders (id, order_number, customer_id, status, total_amount,
		                    shipping_address, billing_address, payment_method, notes,
		                    payment_summary, shipment_summary, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::jsonb, $7::jsonb, $8, $9, $10::jsonb, $11::jsonb, $12, $13)
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	return r.insertItems(ctx, pgTx, order)
}

// UpdateOrder atualiza o pedido e regrava os itens
func (r *PostgresOrderRepository) UpdateOrder(ctx context.Context, tx Tx, order *Order) error {
	pgTx, err := postgres.Unwrap(tx)
	if err != nil {
		return err
	}

	args, err := orderArgs(order)
	if err != nil {
		return err
	}

	_, err = pgTx.Exec(ctx, `
		UPDATE orders
		SET order_number = $2, customer_id = $3, status = $4, total_amount = $5::numeric,
		    shipping_address = $6::jsonb, billing_address = $7::jsonb, payment_method = $8,
		    notes = $9, payment_summary = $10::jsonb, shipment_summary = $11::jsonb,
		    created_at = $12, updated_at = $13
		WHERE id = $1
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	if _, err := pgTx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, order.ID); err != nil {
		return fmt.Errorf("failed to clear order items: %w", err)
	}
	return r.insertItems(ctx, pgTx, order)
}

func (r *PostgresOrderRepository) insertItems(ctx context.Context, pgTx pgx.Tx, order *Order) error {
	for position, item := range order.Items {
		data, err := json.Marshal(item.ProductData)
		if err != nil {
			return err
		}

		_, err = pgTx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, position, product_id, product_type, quantity, unit_price, subtotal, product_data)
			VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9::jsonb)
		`, item.ID, order.ID, position, item.ProductID, item.ProductType, item.Quantity,
			item.UnitPrice.String(), item.Subtotal.String(), string(data))
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	return nil
}

// AppendHistory registra a mudança de status na mesma transação do pedido
func (r *PostgresOrderRepository) AppendHistory(ctx context.Context, tx Tx, orderID string, entry ledger.Entry) error {
	pgTx, err := postgres.Unwrap(tx)
	if err != nil {
		return err
	}
	return historyTable.Append(ctx, pgTx, orderID, entry)
}

// ListHistory devolve o histórico do pedido
func (r *PostgresOrderRepository) ListHistory(ctx context.Context, orderID string) ([]ledger.Entry, error) {
	if err := postgres.CheckID("Order", orderID); err != nil {
		return nil, err
	}
	return historyTable.List(ctx, r.db, orderID)
}

// OrderNumberExists verifica se o número do pedido já foi usado
func (r *PostgresOrderRepository) OrderNumberExists(ctx context.Context, orderNumber string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM orders WHERE order_number = $1)", orderNumber).Scan(&exists)
	return exists, err
}

func orderArgs(order *Order) ([]any, error) {
	paymentSummary, err := jsonOrNil(order.Payment)
	if err != nil {
		return nil, err
	}
	shipmentSummary, err := jsonOrNil(order.Shipment)
	if err != nil {
		return nil, err
	}

	return []any{
		order.ID,
		order.OrderNumber,
		order.CustomerID,
		order.Status,
		order.TotalAmount.String(),
		textOrNil(order.ShippingAddress),
		textOrNil(order.BillingAddress),
		order.PaymentMethod,
		order.Notes,
		paymentSummary,
		shipmentSummary,
		order.CreatedAt,
		order.UpdatedAt,
	}, nil
}

// jsonOrNil serializa v; ponteiro nil vira NULL
func jsonOrNil[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func textOrNil(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func rawOrNil(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	return json.RawMessage(s)
}
