package orders

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/matheusmosca/order-fulfillment/internal/redisx"
)

// MockCustomers simula o serviço de clientes
type MockCustomers struct {
	mock.Mock
}

func (m *MockCustomers) CustomerExists(ctx context.Context, customerID string) (bool, error) {
	args := m.Called(ctx, customerID)
	return args.Bool(0), args.Error(1)
}

// MockCatalog simula o serviço de produtos
type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) GetProduct(ctx context.Context, productType string, productID string) (*Product, error) {
	args := m.Called(ctx, productType, productID)
	if p, ok := args.Get(0).(*Product); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCatalog) UpdateStock(ctx context.Context, productType string, productID string, delta int) error {
	args := m.Called(ctx, productType, productID, delta)
	return args.Error(0)
}

// MockRestorer registra as chamadas ao hook de cancelamento
type MockRestorer struct {
	mock.Mock
}

func (m *MockRestorer) Restore(ctx context.Context, order Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

// fakeCache é um StatusCache em memória
type fakeCache struct {
	mu   sync.Mutex
	data map[string]redisx.CachedStatus
	sets int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]redisx.CachedStatus)}
}

func (f *fakeCache) Set(_ context.Context, orderID string, status redisx.CachedStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[orderID] = status
	f.sets++
	return nil
}

func (f *fakeCache) Get(_ context.Context, orderID string) (redisx.CachedStatus, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.data[orderID]
	return status, ok, nil
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

func product(id string, price string, stock int) *Product {
	return &Product{
		ID:            id,
		Name:          "Product " + id,
		Price:         decimal.RequireFromString(price),
		Category:      "books",
		StockQuantity: stock,
	}
}

// heldCache segura os Set de um status até flush, simulando uma escrita
// atrasada que chega depois de uma transição mais nova.
type heldCache struct {
	StatusCache
	hold string
	held []func()
}

func (h *heldCache) Set(ctx context.Context, orderID string, status redisx.CachedStatus) error {
	if status.Status == h.hold {
		h.held = append(h.held, func() { _ = h.StatusCache.Set(ctx, orderID, status) })
		return nil
	}
	return h.StatusCache.Set(ctx, orderID, status)
}

func (h *heldCache) flush() {
	for _, set := range h.held {
		set()
	}
	h.held = nil
}
