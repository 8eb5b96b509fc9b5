package shipments

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/matheusmosca/order-fulfillment/internal/apperr"
	"github.com/matheusmosca/order-fulfillment/internal/ledger"
	"github.com/matheusmosca/order-fulfillment/internal/postgres"
)

// Schema é o DDL do banco de entregas
//
//go:embed schema.sql
var Schema string

// Tx interface para transações
type Tx interface {
	Commit() error
	Rollback() error
}

// Filter restringe a listagem de entregas. Campos vazios não filtram.
type Filter struct {
	OrderID        string
	Status         string
	TrackingNumber string
}

// ShipmentRepository define a interface para operações de banco de dados de entregas
type ShipmentRepository interface {
	BeginTx(ctx context.Context) (Tx, error)
	GetShipment(ctx context.Context, shipmentID string) (*Shipment, error)
	GetShipmentForUpdate(ctx context.Context, tx Tx, shipmentID string) (*Shipment, error)
	ListShipments(ctx context.Context, filter Filter) ([]Shipment, error)
	TrackingNumberExists(ctx context.Context, trackingNumber string) (bool, error)

	CreateShipment(ctx context.Context, tx Tx, shipment *Shipment) error
	UpdateShipment(ctx context.Context, tx Tx, shipment *Shipment) error
	AppendHistory(ctx context.Context, tx Tx, shipmentID string, entry ledger.Entry) error
	ListHistory(ctx context.Context, shipmentID string) ([]ledger.Entry, error)
}

var historyTable = ledger.Table{Name: "shipment_updates", EntityColumn: "shipment_id"}

// PostgresShipmentRepository implementa ShipmentRepository usando PostgreSQL
type PostgresShipmentRepository struct {
	db postgres.DB
}

// NewShipmentRepository cria uma nova instância de PostgresShipmentRepository
func NewShipmentRepository(db postgres.DB) ShipmentRepository {
	return &PostgresShipmentRepository{
		db: db,
	}
}

// BeginTx inicia uma nova transação
func (r *PostgresShipmentRepository) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := postgres.Begin(ctx, r.db)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

const selectShipment = `
	SELECT id, order_id, tracking_number, status, shipping_provider,
	       shipping_address::text, shipping_date, estimated_delivery, actual_delivery,
	       COALESCE(weight::text, ''), COALESCE(dimensions::text, ''), COALESCE(notes, ''),
	       created_at, updated_at
	FROM shipments
`

func scanShipment(row pgx.Row) (*Shipment, error) {
	var (
		shipment                   Shipment
		address, weight, dimension string
	)

	err := row.Scan(
		&shipment.ID,
		&shipment.OrderID,
		&shipment.TrackingNumber,
		&shipment.Status,
		&shipment.ShippingProvider,
		&address,
		&shipment.ShippingDate,
		&shipment.EstimatedDelivery,
		&shipment.ActualDelivery,
		&weight,
		&dimension,
		&shipment.Notes,
		&shipment.CreatedAt,
		&shipment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	shipment.ShippingAddress = rawOrNil(address)
	shipment.Dimensions = rawOrNil(dimension)
	if weight != "" {
		w, err := decimal.NewFromString(weight)
		if err != nil {
			return nil, fmt.Errorf("invalid weight for shipment %s: %w", shipment.ID, err)
		}
		shipment.Weight = &w
	}
	return &shipment, nil
}

// GetShipment busca uma entrega pelo ID
func (r *PostgresShipmentRepository) GetShipment(ctx context.Context, shipmentID string) (*Shipment, error) {
	if err := postgres.CheckID("Shipment", shipmentID); err != nil {
		return nil, err
	}
	shipment, err := scanShipment(r.db.QueryRow(ctx, selectShipment+" WHERE id = $1", shipmentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("Shipment", shipmentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shipment: %w", err)
	}
	return shipment, nil
}

// GetShipmentForUpdate obtém a entrega com lock pessimista (FOR UPDATE)
func (r *PostgresShipmentRepository) GetShipmentForUpdate(ctx context.Context, tx Tx, shipmentID string) (*Shipment, error) {
	if err := postgres.CheckID("Shipment", shipmentID); err != nil {
		return nil, err
	}
	pgTx, err := postgres.Unwrap(tx)
	if err != nil {
		return nil, err
	}

	shipment, err := scanShipment(pgTx.QueryRow(ctx, selectShipment+" WHERE id = $1 FOR UPDATE", shipmentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("Shipment", shipmentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shipment with lock: %w", err)
	}
	return shipment, nil
}

// ListShipments lista as entregas, da mais nova para a mais antiga
func (r *PostgresShipmentRepository) ListShipments(ctx context.Context, filter Filter) ([]Shipment, error) {
	var (
		conditions []string
		args       []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("order_id", filter.OrderID)
	add("status", filter.Status)
	add("tracking_number", filter.TrackingNumber)

	query := selectShipment
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list shipments: %w", err)
	}
	defer rows.Close()

	shipments := make([]Shipment, 0)
	for rows.Next() {
		shipment, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		shipments = append(shipments, *shipment)
	}
	return shipments, rows.Err()
}

// TrackingNumberExists verifica se o número de rastreio já foi usado
func (r *PostgresShipmentRepository) TrackingNumberExists(ctx context.Context, trackingNumber string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM shipments WHERE tracking_number = $1)", trackingNumber,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check tracking number: %w", err)
	}
	return exists, nil
}

// CreateShipment insere a entrega
func (r *PostgresShipmentRepository) CreateShipment(ctx context.Context, tx Tx, shipment *Shipment) error {
	pgTx, err := postgres.Unwrap(tx)
	if err != nil {
		return err
	}

	_, err = pgTx.Exec(ctx, `
		INSERT INTO shipments (id, order_id, tracking_number, status, shipping_provider,
		                       shipping_address, shipping_date, estimated_delivery, actual_delivery,
		                       weight, dimensions, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9, $10::numeric, $11::jsonb, NULLIF($12, ''), $13, $14)
	`, shipment.ID, shipment.OrderID, shipment.TrackingNumber, shipment.Status, shipment.ShippingProvider,
		textOrNil(shipment.ShippingAddress), shipment.ShippingDate, shipment.EstimatedDelivery, shipment.ActualDelivery,
		weightOrNil(shipment.Weight), textOrNil(shipment.Dimensions), shipment.Notes,
		shipment.CreatedAt, shipment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert shipment: %w", err)
	}
	return nil
}

// UpdateShipment grava status e datas derivadas
func (r *PostgresShipmentRepository) UpdateShipment(ctx context.Context, tx Tx, shipment *Shipment) error {
	pgTx, err := postgres.Unwrap(tx)
	if err != nil {
		return err
	}

	_, err = pgTx.Exec(ctx, `
		UPDATE shipments
		SET status = $2, shipping_date = $3, estimated_delivery = $4, actual_delivery = $5, updated_at = $6
		WHERE id = $1
	`, shipment.ID, shipment.Status, shipment.ShippingDate, shipment.EstimatedDelivery,
		shipment.ActualDelivery, shipment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update shipment: %w", err)
	}
	return nil
}

// AppendHistory registra a atualização na mesma transação da entrega
func (r *PostgresShipmentRepository) AppendHistory(ctx context.Context, tx Tx, shipmentID string, entry ledger.Entry) error {
	pgTx, err := postgres.Unwrap(tx)
	if err != nil {
		return err
	}
	return historyTable.Append(ctx, pgTx, shipmentID, entry)
}

// ListHistory devolve as atualizações da entrega
func (r *PostgresShipmentRepository) ListHistory(ctx context.Context, shipmentID string) ([]ledger.Entry, error) {
	if err := postgres.CheckID("Shipment", shipmentID); err != nil {
		return nil, err
	}
	return historyTable.List(ctx, r.db, shipmentID)
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

func weightOrNil(w *decimal.Decimal) any {
	if w == nil {
		return nil
	}
	return w.String()
}
