package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matheusmosca/order-fulfillment/internal/apperr"
	"github.com/matheusmosca/order-fulfillment/internal/config"
	"github.com/matheusmosca/order-fulfillment/internal/notifier"
	"github.com/matheusmosca/order-fulfillment/internal/redisx"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	repo      *MemoryOrderRepository
	customers *MockCustomers
	catalog   *MockCatalog
	uc        *OrderUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		repo:      NewMemoryOrderRepository(),
		customers: &MockCustomers{},
		catalog:   &MockCatalog{},
	}
	f.uc = NewOrderUseCase(f.repo, f.customers, f.catalog, config.OrdersConfig{NumberAttempts: 5}, zap.NewNop())
	f.uc.now = func() time.Time { return fixedNow }
	return f
}

func twoItemInput() CreateOrderInput {
	return CreateOrderInput{
		CustomerID: "cust-1",
		Items: []ItemInput{
			{ProductID: "p1", ProductType: "book", Quantity: 2},
			{ProductID: "p2", ProductType: "book", Quantity: 1},
		},
		ShippingAddress: []byte(`{"city":"Recife"}`),
	}
}

func (f *fixture) catalogHasBothProducts() {
	f.catalog.On("GetProduct", mock.Anything, "book", "p1").Return(product("p1", "10.00", 50), nil)
	f.catalog.On("GetProduct", mock.Anything, "book", "p2").Return(product("p2", "5.00", 50), nil)
}

func (f *fixture) createOrder(t *testing.T) *Order {
	t.Helper()
	f.customers.On("CustomerExists", mock.Anything, "cust-1").Return(true, nil).Maybe()
	f.catalogHasBothProducts()

	order, err := f.uc.CreateOrder(context.Background(), twoItemInput())
	require.NoError(t, err)
	return order
}

func TestCreateOrder_Success(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.customers.On("CustomerExists", mock.Anything, "cust-1").Return(true, nil)
	f.catalogHasBothProducts()

	// Act
	order, err := f.uc.CreateOrder(context.Background(), twoItemInput())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, order.Status)
	assert.True(t, order.TotalAmount.Equal(dec("25")), "got %s", order.TotalAmount)
	assert.Regexp(t, `^ORD-20250601-\d{6}$`, order.OrderNumber)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "Product p1", order.Items[0].ProductData.Name)
	assert.Equal(t, "books", order.Items[0].ProductData.Category)
	assert.JSONEq(t, `{"city":"Recife"}`, string(order.ShippingAddress))

	history, err := f.uc.GetHistory(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, StatusCreated, history[0].Status)
	assert.Equal(t, "Order created", history[0].Note)

	f.customers.AssertExpectations(t)
	f.catalog.AssertExpectations(t)
}

func TestCreateOrder_CatalogPriceWinsOverClientPrice(t *testing.T) {
	f := newFixture(t)
	f.customers.On("CustomerExists", mock.Anything, "cust-1").Return(true, nil)
	f.catalogHasBothProducts()

	in := twoItemInput()
	in.Items[0].UnitPrice = dec("0.01")

	order, err := f.uc.CreateOrder(context.Background(), in)

	require.NoError(t, err)
	assert.True(t, order.Items[0].UnitPrice.Equal(dec("10")))
}

func TestCreateOrder_CatalogPriceRoundedToCents(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.customers.On("CustomerExists", mock.Anything, "cust-1").Return(true, nil)
	f.catalog.On("GetProduct", mock.Anything, "book", "p1").Return(product("p1", "3.333", 50), nil)
	f.catalog.On("GetProduct", mock.Anything, "book", "p2").Return(product("p2", "5.00", 50), nil)

	// Act
	order, err := f.uc.CreateOrder(context.Background(), twoItemInput())

	// Assert
	require.NoError(t, err)
	assert.True(t, order.Items[0].UnitPrice.Equal(dec("3.33")))
	assert.True(t, order.Items[0].Subtotal.Equal(dec("6.66")))
	assert.True(t, order.TotalAmount.Equal(dec("11.66")))
	assertTotalInvariant(t, order)
}

func TestCreateOrder_PlaceholderPriceWithThreeDecimals(t *testing.T) {
	f := newFixture(t)
	f.customers.On("CustomerExists", mock.Anything, "cust-1").Return(true, nil)
	f.catalog.On("GetProduct", mock.Anything, "book", mock.Anything).Return(nil, ErrCollaboratorUnavailable)

	in := twoItemInput()
	in.Items[0].UnitPrice = dec("3.333")
	in.Items[1].UnitPrice = dec("5")

	_, err := f.uc.CreateOrder(context.Background(), in)

	require.ErrorIs(t, err, apperr.ErrValidation)
	details := apperr.DetailsOf(err)
	require.Len(t, details, 1)
	assert.Equal(t, "items[0]", details[0].Path)
	assert.Contains(t, details[0].Info, "2 decimal places")
}

func TestCreateOrder_CustomerNotFound(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.customers.On("CustomerExists", mock.Anything, "cust-1").Return(false, nil)

	// Act
	order, err := f.uc.CreateOrder(context.Background(), twoItemInput())

	// Assert
	assert.Nil(t, order)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "Customer not found", err.Error())
	f.catalog.AssertNotCalled(t, "GetProduct", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateOrder_CustomerServiceUnavailableAssumesExists(t *testing.T) {
	f := newFixture(t)
	f.customers.On("CustomerExists", mock.Anything, "cust-1").
		Return(false, fmt.Errorf("%w: connection refused", ErrCollaboratorUnavailable))
	f.catalogHasBothProducts()

	order, err := f.uc.CreateOrder(context.Background(), twoItemInput())

	require.NoError(t, err)
	assert.Equal(t, StatusCreated, order.Status)
}

func TestCreateOrder_InvalidProducts(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.customers.On("CustomerExists", mock.Anything, "cust-1").Return(true, nil)
	f.catalog.On("GetProduct", mock.Anything, "book", "p1").Return(nil, ErrProductNotFound)
	f.catalog.On("GetProduct", mock.Anything, "book", "p2").Return(product("p2", "5.00", 0), nil)

	// Act
	_, err := f.uc.CreateOrder(context.Background(), twoItemInput())

	// Assert
	require.ErrorIs(t, err, apperr.ErrValidation)
	details := apperr.DetailsOf(err)
	require.Len(t, details, 2)
	assert.Equal(t, apperr.Detail{Path: "items[0]", Info: "Product not found"}, details[0])
	assert.Equal(t, "items[1]", details[1].Path)
	assert.Contains(t, details[1].Info, "Insufficient stock")
}

func TestCreateOrder_CatalogUnavailableUsesPlaceholder(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.customers.On("CustomerExists", mock.Anything, "cust-1").Return(true, nil)
	f.catalog.On("GetProduct", mock.Anything, "book", mock.Anything).Return(nil, ErrCollaboratorUnavailable)

	in := twoItemInput()
	in.Items[0].UnitPrice = dec("10")
	in.Items[1].UnitPrice = dec("5")

	// Act
	order, err := f.uc.CreateOrder(context.Background(), in)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "Unknown Product", order.Items[0].ProductData.Name)
	assert.Nil(t, order.Items[0].ProductData.Price)
	assert.True(t, order.TotalAmount.Equal(dec("25")))
}

func TestCreateOrder_CatalogUnavailableWithoutPrice(t *testing.T) {
	f := newFixture(t)
	f.customers.On("CustomerExists", mock.Anything, "cust-1").Return(true, nil)
	f.catalog.On("GetProduct", mock.Anything, "book", mock.Anything).Return(nil, ErrCollaboratorUnavailable)

	_, err := f.uc.CreateOrder(context.Background(), twoItemInput())

	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCreateOrder_RequiresItems(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.CreateOrder(context.Background(), CreateOrderInput{CustomerID: "cust-1"})

	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCreateOrder_RegeneratesOrderNumberOnCollision(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.uc.random = &sequenceRandom{values: []int{0}}
	first := f.createOrder(t)
	require.Equal(t, "ORD-20250601-100000", first.OrderNumber)

	// Act
	f.uc.random = &sequenceRandom{values: []int{0, 0, 7}}
	second, err := f.uc.CreateOrder(context.Background(), twoItemInput())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "ORD-20250601-100007", second.OrderNumber)
}

func TestCreateOrder_OrderNumberAttemptsExhausted(t *testing.T) {
	f := newFixture(t)
	f.uc.random = &sequenceRandom{values: []int{0}}
	f.createOrder(t)

	_, err := f.uc.CreateOrder(context.Background(), twoItemInput())

	assert.Error(t, err)
}

func TestTransition_PermissiveAndAlwaysRecorded(t *testing.T) {
	// Arrange
	f := newFixture(t)
	order := f.createOrder(t)
	ctx := context.Background()

	// Act
	steps := []string{StatusDelivered, StatusCreated, StatusCreated, StatusRefunded}
	for _, status := range steps {
		_, err := f.uc.Transition(ctx, order.ID, status, "manual "+status)
		require.NoError(t, err)
	}

	// Assert
	got, err := f.uc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, got.Status)
	require.Len(t, got.StatusHistory, 5)
	assert.Equal(t, StatusRefunded, got.StatusHistory[0].Status)
	assert.Equal(t, StatusCreated, got.StatusHistory[4].Status)
}

func TestTransition_InvalidStatus(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	_, err := f.uc.Transition(context.Background(), order.ID, "LOST", "")

	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestTransition_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.Transition(context.Background(), "missing", StatusPaid, "")

	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTransition_StrictTableRejectsAndLeavesOrderUntouched(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)
	f.uc.WithTransitions(StrictTransitions)

	_, err := f.uc.Transition(context.Background(), order.ID, StatusDelivered, "")

	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	got, _ := f.uc.GetOrder(context.Background(), order.ID)
	assert.Equal(t, StatusCreated, got.Status)
	assert.Len(t, got.StatusHistory, 1)
}

func TestTransition_CancelCallsRestorer(t *testing.T) {
	// Arrange
	f := newFixture(t)
	order := f.createOrder(t)
	restorer := &MockRestorer{}
	restorer.On("Restore", mock.Anything, mock.MatchedBy(func(o Order) bool {
		return o.ID == order.ID && o.Status == StatusCanceled
	})).Return(nil).Once()
	f.uc.WithRestorer(restorer)

	// Act
	_, err := f.uc.Transition(context.Background(), order.ID, StatusCanceled, "customer request")

	// Assert
	require.NoError(t, err)
	restorer.AssertExpectations(t)
}

func TestTransition_CancelRestoresCatalogStockWhenEnabled(t *testing.T) {
	// Arrange
	repo := NewMemoryOrderRepository()
	customers := &MockCustomers{}
	catalog := &MockCatalog{}
	uc := NewOrderUseCase(repo, customers, catalog, config.OrdersConfig{NumberAttempts: 5, RestoreInventoryOnCancel: true}, zap.NewNop())

	customers.On("CustomerExists", mock.Anything, "cust-1").Return(true, nil)
	catalog.On("GetProduct", mock.Anything, "book", "p1").Return(product("p1", "10.00", 50), nil)
	catalog.On("GetProduct", mock.Anything, "book", "p2").Return(product("p2", "5.00", 50), nil)
	catalog.On("UpdateStock", mock.Anything, "book", "p1", 2).Return(nil).Once()
	catalog.On("UpdateStock", mock.Anything, "book", "p2", 1).Return(fmt.Errorf("boom")).Once()

	order, err := uc.CreateOrder(context.Background(), twoItemInput())
	require.NoError(t, err)

	// Act
	canceled, err := uc.Transition(context.Background(), order.ID, StatusCanceled, "")

	// Assert
	require.NoError(t, err, "restoration failures do not fail the cancellation")
	assert.Equal(t, StatusCanceled, canceled.Status)
	catalog.AssertExpectations(t)
}

func TestItemMutations_KeepTotalInvariant(t *testing.T) {
	// Arrange
	f := newFixture(t)
	order := f.createOrder(t)
	ctx := context.Background()
	f.catalog.On("GetProduct", mock.Anything, "ebook", "p3").Return(product("p3", "2.50", 10), nil)

	// Act / Assert
	updated, err := f.uc.AddItem(ctx, order.ID, ItemInput{ProductID: "p3", ProductType: "ebook", Quantity: 4})
	require.NoError(t, err)
	assert.True(t, updated.TotalAmount.Equal(dec("35")))
	assertTotalInvariant(t, updated)

	qty := 1
	updated, err = f.uc.UpdateItem(ctx, order.ID, updated.Items[0].ID, UpdateItemInput{Quantity: &qty})
	require.NoError(t, err)
	assert.True(t, updated.TotalAmount.Equal(dec("25")))
	assertTotalInvariant(t, updated)

	updated, err = f.uc.RemoveItem(ctx, order.ID, updated.Items[1].ID)
	require.NoError(t, err)
	assert.True(t, updated.TotalAmount.Equal(dec("20")))
	assertTotalInvariant(t, updated)

	stored, err := f.uc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalAmount.Equal(dec("20")))
	assertTotalInvariant(t, stored.Order)
}

func TestUpdateItem_RejectsPriceWithThreeDecimals(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	price := dec("3.333")
	_, err := f.uc.UpdateItem(context.Background(), order.ID, order.Items[0].ID, UpdateItemInput{UnitPrice: &price})

	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), "2 decimal places")
}

func TestUpdateItem_RejectsNonPositiveQuantity(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	zero := 0
	_, err := f.uc.UpdateItem(context.Background(), order.ID, order.Items[0].ID, UpdateItemInput{Quantity: &zero})

	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestApplyPaymentUpdate(t *testing.T) {
	// Arrange
	f := newFixture(t)
	order := f.createOrder(t)
	ctx := context.Background()
	update := notifier.PaymentUpdate{Status: "COMPLETED", TransactionID: "tx-1", PaymentID: "pay-1"}

	// Act
	got, err := f.uc.ApplyPaymentUpdate(ctx, order.ID, update)
	require.NoError(t, err)
	_, err = f.uc.ApplyPaymentUpdate(ctx, order.ID, update)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, StatusPaid, got.Status)
	require.NotNil(t, got.Payment)
	assert.Equal(t, "tx-1", got.Payment.TransactionID)

	history, _ := f.uc.GetHistory(ctx, order.ID)
	require.Len(t, history, 2, "repeated notification must not add history")
	assert.Equal(t, StatusPaid, history[0].Status)
}

func TestApplyPaymentUpdate_UnmappedStatusOnlyUpdatesSummary(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	got, err := f.uc.ApplyPaymentUpdate(context.Background(), order.ID, notifier.PaymentUpdate{Status: "FAILED", PaymentID: "pay-1"})

	require.NoError(t, err)
	assert.Equal(t, StatusCreated, got.Status)
	assert.Equal(t, "FAILED", got.Payment.Status)
	history, _ := f.uc.GetHistory(context.Background(), order.ID)
	assert.Len(t, history, 1)
}

func TestApplyPaymentUpdate_LastWriteWins(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)
	ctx := context.Background()

	_, err := f.uc.ApplyPaymentUpdate(ctx, order.ID, notifier.PaymentUpdate{Status: "REFUNDED", PaymentID: "pay-1", TransactionID: "tx-1"})
	require.NoError(t, err)
	got, err := f.uc.ApplyPaymentUpdate(ctx, order.ID, notifier.PaymentUpdate{Status: "COMPLETED", PaymentID: "pay-1", TransactionID: "tx-1"})
	require.NoError(t, err)

	assert.Equal(t, StatusPaid, got.Status)
	assert.Equal(t, "COMPLETED", got.Payment.Status)
}

func TestApplyShipmentUpdate(t *testing.T) {
	// Arrange
	f := newFixture(t)
	order := f.createOrder(t)
	ctx := context.Background()
	shipped := fixedNow.Add(time.Hour)
	estimate := shipped.Add(72 * time.Hour)

	// Act
	got, err := f.uc.ApplyShipmentUpdate(ctx, order.ID, notifier.ShipmentUpdate{
		Status:            "IN_TRANSIT",
		TrackingNumber:    "ST-20250601-ABC123",
		ShipmentID:        "ship-1",
		ShippingDate:      &shipped,
		EstimatedDelivery: &estimate,
		TrackingURL:       "https://track.example.com/standard/ST-20250601-ABC123",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, got.Status)
	require.NotNil(t, got.Shipment)
	assert.Equal(t, "ST-20250601-ABC123", got.Shipment.TrackingNumber)
	assert.Equal(t, estimate, *got.Shipment.EstimatedDelivery)

	got, err = f.uc.ApplyShipmentUpdate(ctx, order.ID, notifier.ShipmentUpdate{Status: "RETURNED", ShipmentID: "ship-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, got.Status)
	assert.Equal(t, "RETURNED", got.Shipment.Status)
}

func TestApplyShipmentUpdate_UnknownOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.ApplyShipmentUpdate(context.Background(), "missing", notifier.ShipmentUpdate{Status: "DELIVERED"})

	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGetStatus_UsesCacheThenStore(t *testing.T) {
	// Arrange
	f := newFixture(t)
	cache := newFakeCache()
	f.uc.WithStatusCache(cache)
	order := f.createOrder(t)
	ctx := context.Background()

	// Act
	fromCache, err := f.uc.GetStatus(ctx, order.ID)
	require.NoError(t, err)

	cache.data = map[string]redisx.CachedStatus{}
	fromStore, err := f.uc.GetStatus(ctx, order.ID)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, StatusCreated, fromCache.Status)
	assert.Equal(t, StatusCreated, fromStore.Status)
	_, refilled, _ := cache.Get(ctx, order.ID)
	assert.True(t, refilled)
}

func TestGetStatus_CacheFollowsTransitions(t *testing.T) {
	f := newFixture(t)
	cache := newFakeCache()
	f.uc.WithStatusCache(cache)
	order := f.createOrder(t)

	_, err := f.uc.Transition(context.Background(), order.ID, StatusProcessing, "")
	require.NoError(t, err)

	status, err := f.uc.GetStatus(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, status.Status)
}

func TestGetStatus_DelayedOlderCacheWriteKeepsNewestStatus(t *testing.T) {
	// Arrange
	f := newFixture(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	cache := &heldCache{StatusCache: redisx.NewStatusCache(rdb, time.Minute), hold: StatusPaid}
	f.uc.WithStatusCache(cache)
	order := f.createOrder(t)
	ctx := context.Background()

	// Act
	f.uc.now = func() time.Time { return fixedNow.Add(time.Second) }
	_, err := f.uc.Transition(ctx, order.ID, StatusPaid, "")
	require.NoError(t, err)

	f.uc.now = func() time.Time { return fixedNow.Add(2 * time.Second) }
	_, err = f.uc.Transition(ctx, order.ID, StatusShipped, "")
	require.NoError(t, err)

	cache.flush()

	// Assert
	status, err := f.uc.GetStatus(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, status.Status)
	assert.True(t, fixedNow.Add(2*time.Second).Equal(status.UpdatedAt))
}

func TestGetStatus_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.GetStatus(context.Background(), "missing")

	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
