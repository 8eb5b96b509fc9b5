package shipments

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status da entrega
const (
	StatusPending        = "PENDING"
	StatusProcessing     = "PROCESSING"
	StatusReadyForPickup = "READY_FOR_PICKUP"
	StatusInTransit      = "IN_TRANSIT"
	StatusOutForDelivery = "OUT_FOR_DELIVERY"
	StatusDelivered      = "DELIVERED"
	StatusFailed         = "FAILED"
	StatusReturned       = "RETURNED"
	StatusCancelled      = "CANCELLED"
)

var validStatuses = map[string]bool{
	StatusPending:        true,
	StatusProcessing:     true,
	StatusReadyForPickup: true,
	StatusInTransit:      true,
	StatusOutForDelivery: true,
	StatusDelivered:      true,
	StatusFailed:         true,
	StatusReturned:       true,
	StatusCancelled:      true,
}

// IsValidStatus informa se o status pertence à máquina de estados
func IsValidStatus(status string) bool {
	return validStatuses[status]
}

// notifiedStatuses são os status de update_status que o pedido precisa saber
var notifiedStatuses = map[string]bool{
	StatusInTransit: true,
	StatusDelivered: true,
	StatusReturned:  true,
	StatusCancelled: true,
}

// DefaultProvider é a transportadora usada quando a criação não informa uma
const DefaultProvider = "STANDARD"

// Shipment representa a entrega de um pedido
type Shipment struct {
	ID                string           `json:"id"`
	OrderID           string           `json:"order_id"`
	TrackingNumber    string           `json:"tracking_number"`
	Status            string           `json:"status"`
	ShippingProvider  string           `json:"shipping_provider"`
	ShippingAddress   json.RawMessage  `json:"shipping_address"`
	ShippingDate      *time.Time       `json:"shipping_date"`
	EstimatedDelivery *time.Time       `json:"estimated_delivery"`
	ActualDelivery    *time.Time       `json:"actual_delivery"`
	Weight            *decimal.Decimal `json:"weight,omitempty"`
	Dimensions        json.RawMessage  `json:"dimensions,omitempty"`
	Notes             string           `json:"notes,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// NewShipment cria uma nova instância de Shipment com status PENDING
func NewShipment(orderID string, provider string, trackingNumber string, address json.RawMessage, now time.Time) *Shipment {
	return &Shipment{
		ID:               uuid.New().String(),
		OrderID:          orderID,
		TrackingNumber:   trackingNumber,
		Status:           StatusPending,
		ShippingProvider: provider,
		ShippingAddress:  address,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Clone devolve uma cópia que não compartilha ponteiros nem slices
func (s Shipment) Clone() Shipment {
	s.ShippingDate = cloneTime(s.ShippingDate)
	s.EstimatedDelivery = cloneTime(s.EstimatedDelivery)
	s.ActualDelivery = cloneTime(s.ActualDelivery)
	if s.Weight != nil {
		w := *s.Weight
		s.Weight = &w
	}
	s.ShippingAddress = append(json.RawMessage(nil), s.ShippingAddress...)
	s.Dimensions = append(json.RawMessage(nil), s.Dimensions...)
	return s
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// CanProcess informa se a entrega pode começar a ser preparada
func (s *Shipment) CanProcess() bool {
	return s.Status == StatusPending
}

// CanShip informa se a entrega pode ser coletada pela transportadora
func (s *Shipment) CanShip() bool {
	return s.Status == StatusProcessing || s.Status == StatusReadyForPickup
}

// CanDeliver informa se a entrega pode ser confirmada
func (s *Shipment) CanDeliver() bool {
	return s.Status == StatusInTransit || s.Status == StatusOutForDelivery
}
