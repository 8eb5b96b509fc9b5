package orders_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/matheusmosca/order-fulfillment/internal/config"
	"github.com/matheusmosca/order-fulfillment/internal/notifier"
	"github.com/matheusmosca/order-fulfillment/services/orders"
	"github.com/matheusmosca/order-fulfillment/services/payments"
	"github.com/matheusmosca/order-fulfillment/services/shipments"
)

var tracer = noop.NewTracerProvider().Tracer("test")

// collaboratorsServer responde pelos serviços de clientes e produtos
func collaboratorsServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := gin.New()
	r.GET("/customers/:id/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})
	r.GET("/books/:id/", func(c *gin.Context) {
		prices := map[string]string{"p1": "10.00", "p2": "5.00"}
		price, ok := prices[c.Param("id")]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"detail": "not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"id":             c.Param("id"),
			"name":           "Book " + c.Param("id"),
			"price":          price,
			"category":       "books",
			"stock_quantity": 10,
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

type stack struct {
	orders        *httptest.Server
	payments      *httptest.Server
	shipments     *httptest.Server
	notifications *atomic.Int32
}

// newStack sobe os três serviços em memória. notifyURL "" aponta as
// notificações para o serviço de pedidos.
func newStack(t *testing.T, notifyURL string) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()
	collaborators := collaboratorsServer(t)

	orderUseCase := orders.NewOrderUseCase(
		orders.NewMemoryOrderRepository(),
		orders.NewCustomerClient(collaborators.URL, time.Second),
		orders.NewCatalogClient(collaborators.URL, time.Second),
		config.OrdersConfig{NumberAttempts: 5},
		log,
	)
	orderRouter := orders.NewRouter(orders.NewOrderHandler(orderUseCase, tracer, log))

	s := &stack{notifications: &atomic.Int32{}}
	s.orders = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/update_payment/") || strings.HasSuffix(r.URL.Path, "/update_shipment/") {
			s.notifications.Add(1)
		}
		orderRouter.ServeHTTP(w, r)
	}))
	t.Cleanup(s.orders.Close)

	if notifyURL == "" {
		notifyURL = s.orders.URL
	}

	gatewayCfg := config.GatewayConfig{SuccessRate: 1, Timeout: time.Second}
	paymentUseCase := payments.NewPaymentUseCase(
		payments.NewMemoryPaymentRepository(),
		payments.NewDemoGateway(gatewayCfg),
		notifier.New(notifyURL, time.Second, log),
		gatewayCfg,
		log,
	)
	s.payments = httptest.NewServer(payments.NewRouter(payments.NewPaymentHandler(paymentUseCase, tracer, log)))
	t.Cleanup(s.payments.Close)

	shipmentUseCase := shipments.NewShipmentUseCase(
		shipments.NewMemoryShipmentRepository(),
		notifier.New(notifyURL, time.Second, log),
		config.ShippingConfig{Providers: config.DefaultProviders()},
		log,
	)
	s.shipments = httptest.NewServer(shipments.NewRouter(shipments.NewShipmentHandler(shipmentUseCase, tracer, log)))
	t.Cleanup(s.shipments.Close)

	return s
}

type orderBody struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Payment     *struct {
		Status        string `json:"status"`
		TransactionID string `json:"transaction_id"`
	} `json:"payment"`
	Shipment *struct {
		Status         string `json:"status"`
		TrackingNumber string `json:"tracking_number"`
		TrackingURL    string `json:"tracking_url"`
	} `json:"shipment"`
	StatusHistory []struct {
		Status string `json:"status"`
	} `json:"status_history"`
}

type entityBody struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	TransactionID  string `json:"transaction_id"`
	TrackingNumber string `json:"tracking_number"`
}

func post[T any](t *testing.T, url string, body any, want int) T {
	t.Helper()
	var out T
	resp, err := resty.New().R().SetBody(body).SetResult(&out).SetError(&out).Post(url)
	require.NoError(t, err)
	require.Equal(t, want, resp.StatusCode(), resp.String())
	return out
}

func get[T any](t *testing.T, url string) T {
	t.Helper()
	var out T
	resp, err := resty.New().R().SetResult(&out).Get(url)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode(), resp.String())
	return out
}

func createOrder(t *testing.T, s *stack) orderBody {
	t.Helper()
	return post[orderBody](t, s.orders.URL+"/orders/", map[string]any{
		"customer_id": "cust-1",
		"items": []map[string]any{
			{"product_id": "p1", "product_type": "book", "quantity": 2},
			{"product_id": "p2", "product_type": "book", "quantity": 1},
		},
		"shipping_address": map[string]string{"city": "Recife"},
	}, http.StatusCreated)
}

func createPayment(t *testing.T, s *stack, order orderBody) entityBody {
	t.Helper()
	return post[entityBody](t, s.payments.URL+"/payments/", map[string]any{
		"order_id":       order.ID,
		"amount":         order.TotalAmount.String(),
		"payment_method": "CREDIT_CARD",
		"payment_details": map[string]string{
			"card_number":      "4111111111111234",
			"expiry_date":      "12/30",
			"cvv":              "123",
			"card_holder_name": "Ana Souza",
		},
	}, http.StatusCreated)
}

func TestFulfillment_EndToEnd(t *testing.T) {
	// Arrange
	s := newStack(t, "")

	order := createOrder(t, s)
	require.True(t, order.TotalAmount.Equal(decimal.NewFromInt(25)), "total %s", order.TotalAmount)

	// Act: pagamento
	payment := createPayment(t, s, order)
	processed := post[entityBody](t, s.payments.URL+"/payments/process/", map[string]string{"payment_id": payment.ID}, http.StatusOK)

	// Assert
	assert.Equal(t, payments.StatusCompleted, processed.Status)
	paid := get[orderBody](t, s.orders.URL+"/orders/"+order.ID+"/")
	assert.Equal(t, orders.StatusPaid, paid.Status)
	require.NotNil(t, paid.Payment)
	assert.Equal(t, payments.StatusCompleted, paid.Payment.Status)
	assert.NotEmpty(t, paid.Payment.TransactionID)

	// Act: entrega
	shipment := post[entityBody](t, s.shipments.URL+"/shipments/", map[string]any{
		"order_id":          order.ID,
		"shipping_provider": "EXPRESS",
		"shipping_address":  map[string]string{"city": "Recife"},
	}, http.StatusCreated)
	action := map[string]string{"shipment_id": shipment.ID}
	post[entityBody](t, s.shipments.URL+"/shipments/process/", action, http.StatusOK)
	post[entityBody](t, s.shipments.URL+"/shipments/ship/", action, http.StatusOK)

	shipped := get[orderBody](t, s.orders.URL+"/orders/"+order.ID+"/")
	assert.Equal(t, orders.StatusShipped, shipped.Status)
	require.NotNil(t, shipped.Shipment)
	assert.Equal(t, shipment.TrackingNumber, shipped.Shipment.TrackingNumber)
	assert.Equal(t, "https://track.example.com/express/"+shipment.TrackingNumber, shipped.Shipment.TrackingURL)

	post[entityBody](t, s.shipments.URL+"/shipments/deliver/", action, http.StatusOK)

	// Assert: estado final
	delivered := get[orderBody](t, s.orders.URL+"/orders/"+order.ID+"/")
	assert.Equal(t, orders.StatusDelivered, delivered.Status)
	assert.Equal(t, shipments.StatusDelivered, delivered.Shipment.Status)
	assert.Equal(t, int32(3), s.notifications.Load())

	statuses := make([]string, 0, len(delivered.StatusHistory))
	for _, e := range delivered.StatusHistory {
		statuses = append(statuses, e.Status)
	}
	assert.Equal(t, []string{orders.StatusDelivered, orders.StatusShipped, orders.StatusPaid, orders.StatusCreated}, statuses)
}

func TestFulfillment_UnreachableOrdersDoesNotAlterCommittedState(t *testing.T) {
	// Arrange: porta fechada
	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	s := newStack(t, closed.URL)
	order := createOrder(t, s)
	payment := createPayment(t, s, order)

	// Act
	processed := post[entityBody](t, s.payments.URL+"/payments/process/", map[string]string{"payment_id": payment.ID}, http.StatusOK)

	// Assert
	assert.Equal(t, payments.StatusCompleted, processed.Status)
	stored := get[entityBody](t, s.payments.URL+"/payments/"+payment.ID+"/")
	assert.Equal(t, payments.StatusCompleted, stored.Status)

	untouched := get[orderBody](t, s.orders.URL+"/orders/"+order.ID+"/")
	assert.Equal(t, orders.StatusCreated, untouched.Status)
	assert.Nil(t, untouched.Payment)
	assert.Equal(t, int32(0), s.notifications.Load())
}

func TestFulfillment_FailingOrdersEndpointDoesNotAlterShipment(t *testing.T) {
	// Arrange
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(failing.Close)
	s := newStack(t, failing.URL)

	shipment := post[entityBody](t, s.shipments.URL+"/shipments/", map[string]any{
		"order_id":         "order-x",
		"shipping_address": map[string]string{"city": "Recife"},
	}, http.StatusCreated)

	// Act
	updated := post[entityBody](t, s.shipments.URL+"/shipments/"+shipment.ID+"/update_status/",
		map[string]string{"status": shipments.StatusInTransit}, http.StatusOK)

	// Assert
	assert.Equal(t, shipments.StatusInTransit, updated.Status)
	stored := get[entityBody](t, s.shipments.URL+"/shipments/"+shipment.ID+"/")
	assert.Equal(t, shipments.StatusInTransit, stored.Status)
}
