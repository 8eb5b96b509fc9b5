package shipments

import (
	"context"
	"fmt"
	"sort"

	"github.com/matheusmosca/order-fulfillment/internal/apperr"
	"github.com/matheusmosca/order-fulfillment/internal/ledger"
	"github.com/matheusmosca/order-fulfillment/internal/memstore"
)

// MemoryShipmentRepository implementa ShipmentRepository em memória
type MemoryShipmentRepository struct {
	store *memstore.Store[Shipment]
}

// NewMemoryShipmentRepository cria uma nova instância de MemoryShipmentRepository
func NewMemoryShipmentRepository() *MemoryShipmentRepository {
	return &MemoryShipmentRepository{store: memstore.New(Shipment.Clone)}
}

func (r *MemoryShipmentRepository) BeginTx(ctx context.Context) (Tx, error) {
	return r.store.Begin(), nil
}

func (r *MemoryShipmentRepository) GetShipment(ctx context.Context, shipmentID string) (*Shipment, error) {
	shipment, ok := r.store.Get(shipmentID)
	if !ok {
		return nil, apperr.NotFound("Shipment", shipmentID)
	}
	return &shipment, nil
}

func (r *MemoryShipmentRepository) GetShipmentForUpdate(ctx context.Context, tx Tx, shipmentID string) (*Shipment, error) {
	mtx, err := memTx(tx)
	if err != nil {
		return nil, err
	}

	shipment, ok := mtx.Get(shipmentID)
	if !ok {
		return nil, apperr.NotFound("Shipment", shipmentID)
	}
	return &shipment, nil
}

func (r *MemoryShipmentRepository) ListShipments(ctx context.Context, filter Filter) ([]Shipment, error) {
	shipments := r.store.Find(func(s Shipment) bool {
		return (filter.OrderID == "" || s.OrderID == filter.OrderID) &&
			(filter.Status == "" || s.Status == filter.Status) &&
			(filter.TrackingNumber == "" || s.TrackingNumber == filter.TrackingNumber)
	})
	sort.SliceStable(shipments, func(i, j int) bool {
		return shipments[i].CreatedAt.After(shipments[j].CreatedAt)
	})
	return shipments, nil
}

func (r *MemoryShipmentRepository) TrackingNumberExists(ctx context.Context, trackingNumber string) (bool, error) {
	found := r.store.Find(func(s Shipment) bool { return s.TrackingNumber == trackingNumber })
	return len(found) > 0, nil
}

func (r *MemoryShipmentRepository) CreateShipment(ctx context.Context, tx Tx, shipment *Shipment) error {
	return r.UpdateShipment(ctx, tx, shipment)
}

func (r *MemoryShipmentRepository) UpdateShipment(ctx context.Context, tx Tx, shipment *Shipment) error {
	mtx, err := memTx(tx)
	if err != nil {
		return err
	}
	mtx.Put(shipment.ID, *shipment)
	return nil
}

func (r *MemoryShipmentRepository) AppendHistory(ctx context.Context, tx Tx, shipmentID string, entry ledger.Entry) error {
	mtx, err := memTx(tx)
	if err != nil {
		return err
	}
	mtx.Append(shipmentID, entry)
	return nil
}

func (r *MemoryShipmentRepository) ListHistory(ctx context.Context, shipmentID string) ([]ledger.Entry, error) {
	return r.store.History(shipmentID), nil
}

func memTx(tx Tx) (*memstore.Tx[Shipment], error) {
	mtx, ok := tx.(*memstore.Tx[Shipment])
	if !ok {
		return nil, fmt.Errorf("unexpected transaction type %T", tx)
	}
	return mtx, nil
}
