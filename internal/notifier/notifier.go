// Package notifier envia as atualizações de pagamento e entrega para o
// serviço de pedidos. O envio é best-effort: uma única tentativa com timeout,
// sem fila e sem retry. Falhas são logadas e devolvidas no Result, nunca como
// erro para quem chamou.
package notifier

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/matheusmosca/order-fulfillment/internal/apperr"
	"github.com/matheusmosca/order-fulfillment/internal/telemetry"
)

// PaymentUpdate é o corpo de POST /orders/{id}/update_payment/
type PaymentUpdate struct {
	Status        string `json:"status" binding:"required"`
	TransactionID string `json:"transaction_id"`
	PaymentID     string `json:"payment_id"`
}

// ShipmentUpdate é o corpo de POST /orders/{id}/update_shipment/
type ShipmentUpdate struct {
	Status            string     `json:"status" binding:"required"`
	TrackingNumber    string     `json:"tracking_number"`
	ShipmentID        string     `json:"shipment_id"`
	ShippingDate      *time.Time `json:"shipping_date"`
	EstimatedDelivery *time.Time `json:"estimated_delivery"`
	ActualDelivery    *time.Time `json:"actual_delivery"`
	TrackingURL       string     `json:"tracking_url"`
}

// Result descreve o desfecho de um envio. Quem chama pode ignorá-lo.
type Result struct {
	Delivered  bool
	StatusCode int
	Err        error
}

// HTTPNotifier envia notificações via HTTP para o serviço de pedidos
type HTTPNotifier struct {
	client  *resty.Client
	baseURL string
	log     *zap.Logger
	tracer  trace.Tracer
	sent    metric.Int64Counter
}

// New cria uma nova instância de HTTPNotifier
func New(ordersBaseURL string, timeout time.Duration, log *zap.Logger) *HTTPNotifier {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json")

	return &HTTPNotifier{
		client:  client,
		baseURL: ordersBaseURL,
		log:     log,
		tracer:  otel.Tracer("notifier"),
		sent: telemetry.Counter("notifier", "order_notifications_total",
			"Notificações enviadas ao serviço de pedidos, por desfecho"),
	}
}

// NotifyPayment informa o pedido sobre uma mudança de status de pagamento
func (n *HTTPNotifier) NotifyPayment(ctx context.Context, orderID string, update PaymentUpdate) Result {
	url := fmt.Sprintf("%s/orders/%s/update_payment/", n.baseURL, orderID)
	return n.send(ctx, "payment", orderID, url, update)
}

// NotifyShipment informa o pedido sobre uma mudança de status de entrega
func (n *HTTPNotifier) NotifyShipment(ctx context.Context, orderID string, update ShipmentUpdate) Result {
	url := fmt.Sprintf("%s/orders/%s/update_shipment/", n.baseURL, orderID)
	return n.send(ctx, "shipment", orderID, url, update)
}

func (n *HTTPNotifier) send(ctx context.Context, kind string, orderID string, url string, body any) Result {
	// o estado local já foi commitado; o cancelamento da requisição de origem
	// não deve interromper o envio
	ctx = context.WithoutCancel(ctx)

	ctx, span := n.tracer.Start(ctx, "notify_order."+kind)
	defer span.End()
	span.SetAttributes(
		attribute.String("order_id", orderID),
		attribute.String("notification.kind", kind),
	)

	req := n.client.R().SetContext(ctx).SetBody(body)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := req.Post(url)
	if err == nil && resp.StatusCode() != http.StatusOK {
		err = fmt.Errorf("unexpected status %d", resp.StatusCode())
	}

	if err != nil {
		notifyErr := apperr.Notification("order "+orderID, err)
		span.RecordError(notifyErr)
		span.SetStatus(codes.Error, "notification dropped")
		telemetry.Inc(ctx, n.sent, "dropped")

		n.log.Warn("❌ Order notification dropped",
			zap.String("kind", kind),
			zap.String("order_id", orderID),
			zap.Error(notifyErr),
		)

		result := Result{Err: notifyErr}
		if resp != nil {
			result.StatusCode = resp.StatusCode()
		}
		return result
	}

	telemetry.Inc(ctx, n.sent, "delivered")
	n.log.Info("✅ Order notified",
		zap.String("kind", kind),
		zap.String("order_id", orderID),
	)
	return Result{Delivered: true, StatusCode: resp.StatusCode()}
}
