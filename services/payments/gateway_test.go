package payments

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheusmosca/order-fulfillment/internal/config"
)

func newGateway(successRate float64, r float64) *DemoGateway {
	return NewDemoGateway(config.GatewayConfig{SuccessRate: successRate}).WithRandom(fixedRandom(r))
}

func card(number string) PaymentDetails {
	return PaymentDetails{Method: MethodCreditCard, CardNumber: number, ExpiryDate: "12/30", CVV: "123", CardHolderName: "Ana"}
}

func TestDemoGateway_ProcessPayment(t *testing.T) {
	tests := []struct {
		name        string
		successRate float64
		random      float64
		details     PaymentDetails
		wantSuccess bool
	}{
		{"approved below success rate", 0.9, 0.5, card("4111111111111234"), true},
		{"declined at success rate", 0.9, 0.9, card("4111111111111234"), false},
		{"suffix 0000 always declined", 1, 0, card("4111111111110000"), false},
		{"cash on delivery always approved", 0, 0.99, PaymentDetails{Method: MethodCashOnDelivery}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGateway(tt.successRate, tt.random)

			result, err := g.ProcessPayment(context.Background(), decimal.NewFromInt(10), "USD", tt.details)

			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, result.Success)
			if tt.wantSuccess {
				assert.NotEmpty(t, result.TransactionID)
				assert.Equal(t, "Payment processed successfully", result.Message)
			} else {
				assert.Empty(t, result.TransactionID)
				assert.Equal(t, ErrorCodeCardDeclined, result.ErrorCode)
				assert.Equal(t, "Payment declined", result.Message)
			}
		})
	}
}

func TestDemoGateway_RefundPayment(t *testing.T) {
	ok, err := newGateway(0.9, 0.2).RefundPayment(context.Background(), "tx-1", decimal.NewFromInt(5))
	require.NoError(t, err)
	assert.True(t, ok.Success)
	assert.NotEmpty(t, ok.RefundID)
	assert.Equal(t, "tx-1", ok.TransactionID)

	failed, err := newGateway(0.9, 0.95).RefundPayment(context.Background(), "tx-1", decimal.NewFromInt(5))
	require.NoError(t, err)
	assert.False(t, failed.Success)
	assert.Equal(t, ErrorCodeRefundFailed, failed.ErrorCode)
}

func TestDemoGateway_CheckPaymentStatus(t *testing.T) {
	tests := []struct {
		random float64
		want   string
	}{
		{0.1, StatusCompleted},
		{0.92, StatusProcessing},
		{0.97, StatusFailed},
	}

	for _, tt := range tests {
		result, err := newGateway(1, tt.random).CheckPaymentStatus(context.Background(), "tx-1")
		require.NoError(t, err)
		assert.Equal(t, tt.want, result.Status)
	}
}

func TestDemoGateway_RespectsContextDeadline(t *testing.T) {
	// Arrange
	g := NewDemoGateway(config.GatewayConfig{SuccessRate: 1, ProcessingDelay: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	// Act
	_, err := g.ProcessPayment(ctx, decimal.NewFromInt(10), "USD", card("4111111111111234"))

	// Assert
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
