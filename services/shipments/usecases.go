package shipments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
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
	"github.com/matheusmosca/order-fulfillment/internal/telemetry"
	"github.com/matheusmosca/order-fulfillment/internal/transition"
)

// trackingNumberAttempts limita a regeneração do número de rastreio em colisões
const trackingNumberAttempts = 10

// weightPrecision é a precisão da coluna weight (NUMERIC(6, 2))
const weightPrecision = 6

// OrderNotifier informa o serviço de pedidos. O resultado pode ser ignorado.
type OrderNotifier interface {
	NotifyShipment(ctx context.Context, orderID string, update notifier.ShipmentUpdate) notifier.Result
}

// CreateShipmentInput representa a requisição para criar uma entrega
type CreateShipmentInput struct {
	OrderID          string           `json:"order_id" binding:"required"`
	ShippingProvider string           `json:"shipping_provider"`
	ShippingAddress  json.RawMessage  `json:"shipping_address"`
	Weight           *decimal.Decimal `json:"weight"`
	Dimensions       json.RawMessage  `json:"dimensions"`
	Notes            string           `json:"notes"`
}

// ShipmentActionInput é o corpo de POST /shipments/process/ e /shipments/ship/
type ShipmentActionInput struct {
	ShipmentID string `json:"shipment_id" binding:"required"`
}

// DeliverInput é o corpo de POST /shipments/deliver/
type DeliverInput struct {
	ShipmentID      string `json:"shipment_id" binding:"required"`
	ProofOfDelivery string `json:"proof_of_delivery"`
}

// UpdateStatusInput é o corpo de POST /shipments/:id/update_status/.
// Note e Description são sinônimos.
type UpdateStatusInput struct {
	Status      string `json:"status" binding:"required"`
	Location    string `json:"location" binding:"max=255"`
	Note        string `json:"note"`
	Description string `json:"description"`
}

// ShipmentView é a representação pública de uma entrega
type ShipmentView struct {
	*Shipment
	ProviderName string         `json:"provider_name"`
	TrackingURL  string         `json:"tracking_url,omitempty"`
	Updates      []ledger.Entry `json:"updates,omitempty"`
}

// TrackingView é a resposta de GET /shipments/:id/tracking/
type TrackingView struct {
	Shipment  *ShipmentView  `json:"shipment"`
	Updates   []ledger.Entry `json:"updates"`
	Simulated bool           `json:"simulated"`
}

// ShipmentUseCase contém a lógica de negócio de entregas
type ShipmentUseCase struct {
	repository  ShipmentRepository
	notifier    OrderNotifier
	transitions transition.Validator
	providers   map[string]config.ProviderConfig
	log         *zap.Logger
	random      idgen.Random
	now         func() time.Time

	transitionsCount metric.Int64Counter
}

// NewShipmentUseCase cria uma nova instância de ShipmentUseCase
func NewShipmentUseCase(
	repository ShipmentRepository,
	orderNotifier OrderNotifier,
	cfg config.ShippingConfig,
	log *zap.Logger,
) *ShipmentUseCase {
	providers := cfg.Providers
	if len(providers) == 0 {
		providers = config.DefaultProviders()
	}

	return &ShipmentUseCase{
		repository:  repository,
		notifier:    orderNotifier,
		transitions: transition.Permissive{},
		providers:   providers,
		log:         log,
		random:      idgen.DefaultRandom,
		now:         time.Now,

		transitionsCount: telemetry.Counter("shipments-service", "shipment_status_transitions_total", "Mudanças de status de entrega"),
	}
}

// WithTransitions troca a regra de transição de update_status
func (uc *ShipmentUseCase) WithTransitions(v transition.Validator) *ShipmentUseCase {
	uc.transitions = v
	return uc
}

// View monta a representação com nome da transportadora e URL de rastreio
func (uc *ShipmentUseCase) View(s *Shipment) *ShipmentView {
	view := &ShipmentView{Shipment: s, ProviderName: s.ShippingProvider}
	if provider, ok := uc.providers[s.ShippingProvider]; ok {
		if provider.Name != "" {
			view.ProviderName = provider.Name
		}
		if provider.TrackingURL != "" {
			view.TrackingURL = provider.TrackingURL + s.TrackingNumber
		}
	}
	return view
}

// CreateShipment gera o número de rastreio e grava a entrega como PENDING
func (uc *ShipmentUseCase) CreateShipment(ctx context.Context, in CreateShipmentInput) (*ShipmentView, error) {
	provider := strings.ToUpper(strings.TrimSpace(in.ShippingProvider))
	if provider == "" {
		provider = DefaultProvider
	}

	var invalid []apperr.Detail
	if in.OrderID == "" {
		invalid = append(invalid, apperr.Detail{Path: "order_id", Info: "order_id is required"})
	}
	if _, ok := uc.providers[provider]; !ok {
		invalid = append(invalid, apperr.Detail{Path: "shipping_provider", Info: fmt.Sprintf("unknown shipping provider %q", provider)})
	}
	if isEmptyJSON(in.ShippingAddress) {
		invalid = append(invalid, apperr.Detail{Path: "shipping_address", Info: "shipping_address is required"})
	}
	if in.Weight != nil {
		switch {
		case !in.Weight.IsPositive():
			invalid = append(invalid, apperr.Detail{Path: "weight", Info: "weight must be greater than 0"})
		case !money.Exact(*in.Weight):
			invalid = append(invalid, apperr.Detail{Path: "weight", Info: "weight must have at most 2 decimal places"})
		case !money.Below(*in.Weight, weightPrecision):
			invalid = append(invalid, apperr.Detail{Path: "weight", Info: "weight must be less than 10000"})
		}
	}
	if len(invalid) > 0 {
		return nil, apperr.ValidationWithDetails("Invalid shipment data", invalid)
	}

	now := uc.now()
	trackingNumber, err := idgen.Unique(ctx, trackingNumberAttempts,
		func() string { return idgen.TrackingNumber(provider, now, uc.random) },
		uc.repository.TrackingNumberExists,
	)
	if err != nil {
		return nil, err
	}

	shipment := NewShipment(in.OrderID, provider, trackingNumber, in.ShippingAddress, now)
	shipment.Weight = in.Weight
	shipment.Dimensions = in.Dimensions
	shipment.Notes = in.Notes

	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := uc.repository.CreateShipment(ctx, tx, shipment); err != nil {
		return nil, err
	}
	entry := ledger.NewEntry(StatusPending, "Shipment created and pending processing", now)
	if err := uc.repository.AppendHistory(ctx, tx, shipment.ID, entry); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit shipment: %w", err)
	}

	uc.log.Info("✅ Shipment created",
		zap.String("shipment_id", shipment.ID),
		zap.String("order_id", shipment.OrderID),
		zap.String("tracking_number", shipment.TrackingNumber),
	)
	return uc.View(shipment), nil
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("{}"))
}

// GetShipment devolve a entrega com as atualizações
func (uc *ShipmentUseCase) GetShipment(ctx context.Context, shipmentID string) (*ShipmentView, error) {
	shipment, err := uc.repository.GetShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	history, err := uc.repository.ListHistory(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	view := uc.View(shipment)
	view.Updates = history
	return view, nil
}

// GetHistory devolve as atualizações da entrega, da mais nova para a mais antiga
func (uc *ShipmentUseCase) GetHistory(ctx context.Context, shipmentID string) ([]ledger.Entry, error) {
	if _, err := uc.repository.GetShipment(ctx, shipmentID); err != nil {
		return nil, err
	}
	return uc.repository.ListHistory(ctx, shipmentID)
}

// ListShipments lista as entregas que satisfazem o filtro
func (uc *ShipmentUseCase) ListShipments(ctx context.Context, filter Filter) ([]*ShipmentView, error) {
	shipments, err := uc.repository.ListShipments(ctx, filter)
	if err != nil {
		return nil, err
	}

	views := make([]*ShipmentView, 0, len(shipments))
	for i := range shipments {
		views = append(views, uc.View(&shipments[i]))
	}
	return views, nil
}

// Tracking devolve as atualizações reais e, quando há poucas, um feed simulado
func (uc *ShipmentUseCase) Tracking(ctx context.Context, shipmentID string) (*TrackingView, error) {
	view, err := uc.GetShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	updates := append([]ledger.Entry{}, view.Updates...)
	simulated := needsSimulation(view.Status, len(updates))
	if simulated {
		updates = append(updates, simulateTracking(view.Shipment, uc.random)...)
	}

	return &TrackingView{Shipment: view, Updates: updates, Simulated: simulated}, nil
}

// ProcessShipment move a entrega de PENDING para PROCESSING
func (uc *ShipmentUseCase) ProcessShipment(ctx context.Context, shipmentID string) (*ShipmentView, error) {
	shipment, err := uc.mutate(ctx, shipmentID, func(s *Shipment, now time.Time) (ledger.Entry, error) {
		if !s.CanProcess() {
			return ledger.Entry{}, apperr.InvalidState("Shipment", "processed", s.Status)
		}
		s.Status = StatusProcessing
		return ledger.NewEntry(StatusProcessing, "Shipment processing has begun", now), nil
	})
	if err != nil {
		return nil, err
	}
	return uc.View(shipment), nil
}

// ShipShipment entrega o pacote à transportadora: define shipping_date,
// estima a entrega e notifica o pedido
func (uc *ShipmentUseCase) ShipShipment(ctx context.Context, shipmentID string) (*ShipmentView, error) {
	shipment, err := uc.mutate(ctx, shipmentID, func(s *Shipment, now time.Time) (ledger.Entry, error) {
		if !s.CanShip() {
			return ledger.Entry{}, apperr.InvalidState("Shipment", "shipped", s.Status)
		}
		s.Status = StatusInTransit
		uc.markShipped(s, now)
		return ledger.NewEntry(StatusInTransit, "Shipment has been picked up by the carrier", now), nil
	})
	if err != nil {
		return nil, err
	}

	uc.notify(ctx, shipment)
	return uc.View(shipment), nil
}

// DeliverShipment confirma a entrega e notifica o pedido
func (uc *ShipmentUseCase) DeliverShipment(ctx context.Context, in DeliverInput) (*ShipmentView, error) {
	shipment, err := uc.mutate(ctx, in.ShipmentID, func(s *Shipment, now time.Time) (ledger.Entry, error) {
		if !s.CanDeliver() {
			return ledger.Entry{}, apperr.InvalidState("Shipment", "delivered", s.Status)
		}
		s.Status = StatusDelivered
		s.ActualDelivery = &now

		note := "Shipment has been delivered successfully"
		if in.ProofOfDelivery != "" {
			note += fmt.Sprintf(" (Proof: %s)", in.ProofOfDelivery)
		}
		return ledger.NewEntry(StatusDelivered, note, now), nil
	})
	if err != nil {
		return nil, err
	}

	uc.notify(ctx, shipment)
	return uc.View(shipment), nil
}

// UpdateStatus aplica uma mudança de status livre (sujeita ao validador de
// transições). Só IN_TRANSIT, DELIVERED, RETURNED e CANCELLED notificam o pedido.
func (uc *ShipmentUseCase) UpdateStatus(ctx context.Context, shipmentID string, in UpdateStatusInput) (*ShipmentView, error) {
	if !IsValidStatus(in.Status) {
		return nil, apperr.Validation("invalid shipment status %q", in.Status)
	}

	note := in.Note
	if note == "" {
		note = in.Description
	}

	shipment, err := uc.mutate(ctx, shipmentID, func(s *Shipment, now time.Time) (ledger.Entry, error) {
		if err := uc.transitions.Validate("Shipment", s.Status, in.Status); err != nil {
			return ledger.Entry{}, err
		}

		previous := s.Status
		s.Status = in.Status

		if in.Status == StatusInTransit && previous != StatusInTransit && s.ShippingDate == nil {
			uc.markShipped(s, now)
		}
		if in.Status == StatusDelivered && s.ActualDelivery == nil {
			s.ActualDelivery = &now
		}

		if note == "" {
			note = fmt.Sprintf("Status changed from %s to %s", previous, in.Status)
		}
		return ledger.NewEntry(in.Status, note, now).WithLocation(in.Location), nil
	})
	if err != nil {
		return nil, err
	}

	if notifiedStatuses[shipment.Status] {
		uc.notify(ctx, shipment)
	}
	return uc.View(shipment), nil
}

// markShipped define shipping_date e a estimativa de entrega pela faixa da
// transportadora. A estimativa fica sempre depois de shipping_date.
func (uc *ShipmentUseCase) markShipped(s *Shipment, now time.Time) {
	minDays, maxDays := uc.providers[s.ShippingProvider].DayRange()
	if minDays < 1 {
		minDays = 1
	}
	if maxDays < minDays {
		maxDays = minDays
	}

	estimated := now.AddDate(0, 0, between(uc.random, minDays, maxDays))
	s.ShippingDate = &now
	s.EstimatedDelivery = &estimated
}

// mutate roda apply sob lock da entrega e grava status e histórico na mesma transação
func (uc *ShipmentUseCase) mutate(ctx context.Context, shipmentID string, apply func(s *Shipment, now time.Time) (ledger.Entry, error)) (*Shipment, error) {
	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	shipment, err := uc.repository.GetShipmentForUpdate(ctx, tx, shipmentID)
	if err != nil {
		return nil, err
	}

	previous := shipment.Status
	now := uc.now()
	entry, err := apply(shipment, now)
	if err != nil {
		return nil, err
	}
	shipment.UpdatedAt = now

	if err := uc.repository.UpdateShipment(ctx, tx, shipment); err != nil {
		return nil, err
	}
	if err := uc.repository.AppendHistory(ctx, tx, shipment.ID, entry); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit shipment change: %w", err)
	}

	telemetry.Inc(ctx, uc.transitionsCount, shipment.Status)
	uc.log.Info("✅ Shipment status updated",
		zap.String("shipment_id", shipment.ID),
		zap.String("from", previous),
		zap.String("to", shipment.Status),
	)
	return shipment, nil
}

func (uc *ShipmentUseCase) notify(ctx context.Context, s *Shipment) {
	uc.notifier.NotifyShipment(ctx, s.OrderID, notifier.ShipmentUpdate{
		Status:            s.Status,
		TrackingNumber:    s.TrackingNumber,
		ShipmentID:        s.ID,
		ShippingDate:      s.ShippingDate,
		EstimatedDelivery: s.EstimatedDelivery,
		ActualDelivery:    s.ActualDelivery,
		TrackingURL:       uc.View(s).TrackingURL,
	})
}
