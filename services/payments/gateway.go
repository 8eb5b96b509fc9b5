package payments

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/matheusmosca/order-fulfillment/internal/config"
)

// Códigos de erro devolvidos pelo gateway
const (
	ErrorCodeCardDeclined   = "CARD_DECLINED"
	ErrorCodeRefundFailed   = "REFUND_FAILED"
	ErrorCodeGatewayTimeout = "GATEWAY_TIMEOUT"
)

// ChargeResult é o resultado de uma cobrança
type ChargeResult struct {
	Success       bool      `json:"success"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Status        string    `json:"status"`
	Message       string    `json:"message"`
	ErrorCode     string    `json:"error_code,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// RefundResult é o resultado de um estorno
type RefundResult struct {
	Success       bool      `json:"success"`
	RefundID      string    `json:"refund_id,omitempty"`
	TransactionID string    `json:"transaction_id"`
	Status        string    `json:"status"`
	Message       string    `json:"message"`
	ErrorCode     string    `json:"error_code,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// StatusResult é o status de uma transação no gateway
type StatusResult struct {
	TransactionID string    `json:"transaction_id"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}

// Gateway é o provedor de pagamentos. Recusas vêm no resultado; error só é
// devolvido quando a chamada não completou (timeout, contexto cancelado).
type Gateway interface {
	ProcessPayment(ctx context.Context, amount decimal.Decimal, currency string, details PaymentDetails) (ChargeResult, error)
	RefundPayment(ctx context.Context, transactionID string, amount decimal.Decimal) (RefundResult, error)
	CheckPaymentStatus(ctx context.Context, transactionID string) (StatusResult, error)
}

// Random é a fonte de aleatoriedade do gateway de demonstração
type Random interface {
	Float64() float64
}

type globalRandom struct{}

func (globalRandom) Float64() float64 { return rand.Float64() }

// DemoGateway simula um gateway: aprova com probabilidade SuccessRate,
// recusa cartões terminados em 0000 e sempre aprova pagamento na entrega
type DemoGateway struct {
	successRate float64
	delay       time.Duration
	random      Random
	now         func() time.Time
}

// NewDemoGateway cria uma nova instância de DemoGateway
func NewDemoGateway(cfg config.GatewayConfig) *DemoGateway {
	return &DemoGateway{
		successRate: cfg.SuccessRate,
		delay:       cfg.ProcessingDelay,
		random:      globalRandom{},
		now:         time.Now,
	}
}

// WithRandom troca a fonte de aleatoriedade
func (g *DemoGateway) WithRandom(r Random) *DemoGateway {
	g.random = r
	return g
}

func (g *DemoGateway) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (g *DemoGateway) ProcessPayment(ctx context.Context, amount decimal.Decimal, currency string, details PaymentDetails) (ChargeResult, error) {
	if err := g.wait(ctx, g.delay); err != nil {
		return ChargeResult{}, err
	}

	approved := g.random.Float64() < g.successRate
	if details.Method == MethodCashOnDelivery {
		approved = true
	}
	if strings.HasSuffix(details.CardNumber, "0000") {
		approved = false
	}

	if !approved {
		return ChargeResult{
			Success:   false,
			Status:    StatusFailed,
			Message:   "Payment declined",
			ErrorCode: ErrorCodeCardDeclined,
			Timestamp: g.now(),
		}, nil
	}

	return ChargeResult{
		Success:       true,
		TransactionID: uuid.New().String(),
		Status:        StatusCompleted,
		Message:       "Payment processed successfully",
		Timestamp:     g.now(),
	}, nil
}

func (g *DemoGateway) RefundPayment(ctx context.Context, transactionID string, amount decimal.Decimal) (RefundResult, error) {
	if err := g.wait(ctx, g.delay); err != nil {
		return RefundResult{}, err
	}

	if g.random.Float64() >= g.successRate {
		return RefundResult{
			Success:       false,
			TransactionID: transactionID,
			Status:        StatusFailed,
			Message:       "Refund could not be processed",
			ErrorCode:     ErrorCodeRefundFailed,
			Timestamp:     g.now(),
		}, nil
	}

	return RefundResult{
		Success:       true,
		RefundID:      uuid.New().String(),
		TransactionID: transactionID,
		Status:        StatusRefunded,
		Message:       "Refund processed successfully",
		Timestamp:     g.now(),
	}, nil
}

// CheckPaymentStatus devolve COMPLETED em 90% dos casos, PROCESSING em 5% e
// FAILED em 5%
func (g *DemoGateway) CheckPaymentStatus(ctx context.Context, transactionID string) (StatusResult, error) {
	if err := g.wait(ctx, g.delay*2/5); err != nil {
		return StatusResult{}, err
	}

	status := StatusFailed
	switch r := g.random.Float64(); {
	case r < 0.90:
		status = StatusCompleted
	case r < 0.95:
		status = StatusProcessing
	}

	return StatusResult{
		TransactionID: transactionID,
		Status:        status,
		Timestamp:     g.now(),
	}, nil
}
