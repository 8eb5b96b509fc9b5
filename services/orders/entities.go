package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/matheusmosca/order-fulfillment/internal/apperr"
	"github.com/matheusmosca/order-fulfillment/internal/transition"
)

// Status do pedido
const (
	StatusCreated        = "CREATED"
	StatusProcessing     = "PROCESSING"
	StatusPaymentPending = "PAYMENT_PENDING"
	StatusPaid           = "PAID"
	StatusShipped        = "SHIPPED"
	StatusDelivered      = "DELIVERED"
	StatusCanceled       = "CANCELED"
	StatusRefunded       = "REFUNDED"
)

var validStatuses = map[string]bool{
	StatusCreated:        true,
	StatusProcessing:     true,
	StatusPaymentPending: true,
	StatusPaid:           true,
	StatusShipped:        true,
	StatusDelivered:      true,
	StatusCanceled:       true,
	StatusRefunded:       true,
}

// IsValidStatus informa se s é um status de pedido conhecido
func IsValidStatus(s string) bool {
	return validStatuses[s]
}

// StrictTransitions é a máquina de estados do fluxo feliz com os desvios
// para CANCELED/REFUNDED. Não é o padrão; veja transition.Permissive.
var StrictTransitions = transition.Table{
	StatusCreated:        {StatusProcessing: true, StatusPaymentPending: true, StatusPaid: true, StatusCanceled: true},
	StatusProcessing:     {StatusPaymentPending: true, StatusPaid: true, StatusCanceled: true},
	StatusPaymentPending: {StatusPaid: true, StatusCanceled: true},
	StatusPaid:           {StatusShipped: true, StatusCanceled: true, StatusRefunded: true},
	StatusShipped:        {StatusDelivered: true, StatusRefunded: true},
	StatusDelivered:      {StatusRefunded: true},
	StatusCanceled:       {},
	StatusRefunded:       {},
}

// Order representa um pedido no sistema
type Order struct {
	ID              string           `json:"id"`
	OrderNumber     string           `json:"order_number"`
	CustomerID      string           `json:"customer_id"`
	Status          string           `json:"status"`
	Items           []OrderItem      `json:"items"`
	TotalAmount     decimal.Decimal  `json:"total_amount"`
	ShippingAddress json.RawMessage  `json:"shipping_address,omitempty"`
	BillingAddress  json.RawMessage  `json:"billing_address,omitempty"`
	PaymentMethod   string           `json:"payment_method,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	Payment         *PaymentSummary  `json:"payment,omitempty"`
	Shipment        *ShipmentSummary `json:"shipment,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// OrderItem guarda o snapshot do produto no momento da compra
type OrderItem struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductType string          `json:"product_type"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	ProductData ProductSnapshot `json:"product_data"`
}

// ProductSnapshot é a cópia dos dados do catálogo guardada no item
type ProductSnapshot struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	Category string           `json:"category,omitempty"`
}

// PaymentSummary é a última notificação de pagamento recebida
type PaymentSummary struct {
	PaymentID     string    `json:"payment_id"`
	Status        string    `json:"status"`
	TransactionID string    `json:"transaction_id,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ShipmentSummary é a última notificação de entrega recebida
type ShipmentSummary struct {
	ShipmentID        string     `json:"shipment_id"`
	Status            string     `json:"status"`
	TrackingNumber    string     `json:"tracking_number,omitempty"`
	ShippingDate      *time.Time `json:"shipping_date,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	ActualDelivery    *time.Time `json:"actual_delivery,omitempty"`
	TrackingURL       string     `json:"tracking_url,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NewOrder cria uma nova instância de Order com status CREATED
func NewOrder(orderNumber string, customerID string, items []OrderItem, now time.Time) *Order {
	order := &Order{
		ID:          uuid.New().String(),
		OrderNumber: orderNumber,
		CustomerID:  customerID,
		Status:      StatusCreated,
		Items:       items,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	order.RecomputeTotal()
	return order
}

// NewOrderItem cria um item com subtotal calculado
func NewOrderItem(productID string, productType string, quantity int, unitPrice decimal.Decimal, snapshot ProductSnapshot) OrderItem {
	item := OrderItem{
		ID:          uuid.New().String(),
		ProductID:   productID,
		ProductType: productType,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		ProductData: snapshot,
	}
	item.Subtotal = item.computeSubtotal()
	return item
}

func (i OrderItem) computeSubtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// RecomputeTotal recalcula o subtotal de cada item e o total do pedido.
// Deve ser chamado antes de persistir qualquer mudança nos itens.
func (o *Order) RecomputeTotal() {
	total := decimal.Zero
	for i := range o.Items {
		o.Items[i].Subtotal = o.Items[i].computeSubtotal()
		total = total.Add(o.Items[i].Subtotal)
	}
	o.TotalAmount = total
}

// AddItem adiciona um item e recalcula o total
func (o *Order) AddItem(item OrderItem) {
	o.Items = append(o.Items, item)
	o.RecomputeTotal()
}

// UpdateItem altera quantidade e/ou preço unitário de um item
func (o *Order) UpdateItem(itemID string, quantity *int, unitPrice *decimal.Decimal) error {
	idx := o.itemIndex(itemID)
	if idx < 0 {
		return apperr.NotFound("Order item", itemID)
	}

	if quantity != nil {
		o.Items[idx].Quantity = *quantity
	}
	if unitPrice != nil {
		o.Items[idx].UnitPrice = *unitPrice
	}
	o.RecomputeTotal()
	return nil
}

// RemoveItem remove um item e recalcula o total
func (o *Order) RemoveItem(itemID string) (OrderItem, error) {
	idx := o.itemIndex(itemID)
	if idx < 0 {
		return OrderItem{}, apperr.NotFound("Order item", itemID)
	}

	removed := o.Items[idx]
	o.Items = append(o.Items[:idx], o.Items[idx+1:]...)
	o.RecomputeTotal()
	return removed, nil
}

func (o *Order) itemIndex(itemID string) int {
	for i, item := range o.Items {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}

// Clone devolve uma cópia profunda do pedido
func (o Order) Clone() Order {
	o.Items = append([]OrderItem(nil), o.Items...)
	for i := range o.Items {
		if p := o.Items[i].ProductData.Price; p != nil {
			price := *p
			o.Items[i].ProductData.Price = &price
		}
	}
	o.ShippingAddress = append(json.RawMessage(nil), o.ShippingAddress...)
	o.BillingAddress = append(json.RawMessage(nil), o.BillingAddress...)
	if o.Payment != nil {
		payment := *o.Payment
		o.Payment = &payment
	}
	if o.Shipment != nil {
		shipment := *o.Shipment
		o.Shipment = &shipment
	}
	return o
}

// paymentStatusMapping move o pedido conforme o status do pagamento
var paymentStatusMapping = map[string]string{
	"PROCESSING": StatusPaymentPending,
	"COMPLETED":  StatusPaid,
	"REFUNDED":   StatusRefunded,
}

// shipmentStatusMapping move o pedido conforme o status da entrega
var shipmentStatusMapping = map[string]string{
	"IN_TRANSIT": StatusShipped,
	"DELIVERED":  StatusDelivered,
}
