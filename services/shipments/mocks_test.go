package shipments

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/matheusmosca/order-fulfillment/internal/notifier"
)

// MockNotifier simula o envio para o serviço de pedidos
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyShipment(ctx context.Context, orderID string, update notifier.ShipmentUpdate) notifier.Result {
	args := m.Called(ctx, orderID, update)
	return args.Get(0).(notifier.Result)
}

// sequenceRandom devolve os valores na ordem, repetindo o último
type sequenceRandom struct {
	values []int
	next   int
}

func (s *sequenceRandom) IntN(n int) int {
	v := s.values[s.next]
	if s.next < len(s.values)-1 {
		s.next++
	}
	return v % n
}
