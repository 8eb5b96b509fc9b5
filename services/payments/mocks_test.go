package payments

import (
	"context"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/matheusmosca/order-fulfillment/internal/notifier"
)

// MockNotifier simula o envio para o serviço de pedidos
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyPayment(ctx context.Context, orderID string, update notifier.PaymentUpdate) notifier.Result {
	args := m.Called(ctx, orderID, update)
	return args.Get(0).(notifier.Result)
}

// fixedRandom devolve sempre o mesmo valor
type fixedRandom float64

func (r fixedRandom) Float64() float64 { return float64(r) }

// holdingGateway conta os estornos e segura cada um até release fechar
type holdingGateway struct {
	Gateway
	refunds atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func newHoldingGateway(inner Gateway) *holdingGateway {
	return &holdingGateway{
		Gateway: inner,
		entered: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
}

func (g *holdingGateway) RefundPayment(ctx context.Context, transactionID string, amount decimal.Decimal) (RefundResult, error) {
	g.refunds.Add(1)
	g.entered <- struct{}{}
	<-g.release
	return g.Gateway.RefundPayment(ctx, transactionID, amount)
}
