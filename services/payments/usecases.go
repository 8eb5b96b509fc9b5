package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/matheusmosca/order-fulfillment/internal/apperr"
	"github.com/matheusmosca/order-fulfillment/internal/config"
	"github.com/matheusmosca/order-fulfillment/internal/ledger"
	"github.com/matheusmosca/order-fulfillment/internal/money"
	"github.com/matheusmosca/order-fulfillment/internal/notifier"
	"github.com/matheusmosca/order-fulfillment/internal/telemetry"
)

// OrderNotifier informa o serviço de pedidos. O resultado pode ser ignorado.
type OrderNotifier interface {
	NotifyPayment(ctx context.Context, orderID string, update notifier.PaymentUpdate) notifier.Result
}

// CreatePaymentInput representa a requisição para criar um pagamento
type CreatePaymentInput struct {
	OrderID        string          `json:"order_id" binding:"required"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	PaymentMethod  string          `json:"payment_method" binding:"required"`
	PaymentDetails PaymentDetails  `json:"payment_details"`
}

// ProcessPaymentInput representa a requisição POST /payments/process/
type ProcessPaymentInput struct {
	PaymentID string `json:"payment_id" binding:"required"`
}

// RefundPaymentInput representa a requisição POST /payments/refund/.
// Sem amount o estorno é do valor total.
type RefundPaymentInput struct {
	PaymentID string           `json:"payment_id" binding:"required"`
	Amount    *decimal.Decimal `json:"amount"`
	Reason    string           `json:"reason"`
}

// ProcessOutcome é a resposta de process, com sucesso ou recusa
type ProcessOutcome struct {
	Success       bool   `json:"success"`
	PaymentID     string `json:"payment_id"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
	Message       string `json:"message"`
	ErrorCode     string `json:"error_code,omitempty"`
}

// RefundOutcome é a resposta de refund, com sucesso ou falha
type RefundOutcome struct {
	Success   bool            `json:"success"`
	PaymentID string          `json:"payment_id"`
	Status    string          `json:"status"`
	RefundID  string          `json:"refund_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Message   string          `json:"message"`
	ErrorCode string          `json:"error_code,omitempty"`
}

// PaymentDetailsView é o pagamento com o histórico, do mais novo para o mais antigo
type PaymentDetailsView struct {
	*Payment
	StatusHistory []ledger.Entry `json:"status_history"`
}

// MarshalJSON mantém payment_details mascarado ao lado do histórico
func (v PaymentDetailsView) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		paymentJSON
		StatusHistory []ledger.Entry `json:"status_history"`
	}{
		paymentJSON:   v.Payment.toJSON(),
		StatusHistory: v.StatusHistory,
	})
}

// PaymentUseCase contém a lógica de negócio de pagamentos
type PaymentUseCase struct {
	repository PaymentRepository
	gateway    Gateway
	notifier   OrderNotifier
	cfg        config.GatewayConfig
	log        *zap.Logger
	now        func() time.Time

	processed metric.Int64Counter
	refunds   metric.Int64Counter
}

// NewPaymentUseCase cria uma nova instância de PaymentUseCase
func NewPaymentUseCase(
	repository PaymentRepository,
	gateway Gateway,
	orderNotifier OrderNotifier,
	cfg config.GatewayConfig,
	log *zap.Logger,
) *PaymentUseCase {
	return &PaymentUseCase{
		repository: repository,
		gateway:    gateway,
		notifier:   orderNotifier,
		cfg:        cfg,
		log:        log,
		now:        time.Now,

		processed: telemetry.Counter("payments-service", "payments_processed_total", "Pagamentos enviados ao gateway, por desfecho"),
		refunds:   telemetry.Counter("payments-service", "payment_refunds_total", "Estornos solicitados, por desfecho"),
	}
}

// CreatePayment valida os dados do método e grava o pagamento como PENDING
func (uc *PaymentUseCase) CreatePayment(ctx context.Context, in CreatePaymentInput) (*Payment, error) {
	details, err := validateCreate(&in)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	payment := NewPayment(in.OrderID, in.Amount, in.Currency, details, now)

	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := uc.repository.CreatePayment(ctx, tx, payment); err != nil {
		return nil, err
	}
	if err := uc.repository.AppendHistory(ctx, tx, payment.ID, ledger.NewEntry(StatusPending, "Payment initiated", now)); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payment: %w", err)
	}

	uc.log.Info("✅ Payment created",
		zap.String("payment_id", payment.ID),
		zap.String("order_id", payment.OrderID),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("method", payment.PaymentMethod),
	)
	return payment, nil
}

func validateCreate(in *CreatePaymentInput) (PaymentDetails, error) {
	var invalid []apperr.Detail
	add := func(path, info string) {
		invalid = append(invalid, apperr.Detail{Path: path, Info: info})
	}

	if in.OrderID == "" {
		add("order_id", "order_id is required")
	}
	switch {
	case !in.Amount.IsPositive():
		add("amount", "amount must be greater than 0")
	case !money.Exact(in.Amount):
		add("amount", "amount must have at most 2 decimal places")
	case !money.Below(in.Amount, amountPrecision):
		add("amount", "amount must be less than 100000000")
	}

	in.Currency = normalizeCurrency(in.Currency)
	if !currencyPattern.MatchString(in.Currency) {
		add("currency", "currency must be a 3-letter ISO code")
	}

	details := in.PaymentDetails
	details.Method = in.PaymentMethod

	if !validMethods[in.PaymentMethod] {
		add("payment_method", fmt.Sprintf("unsupported payment method %q", in.PaymentMethod))
	}

	if IsCardMethod(in.PaymentMethod) {
		details.CardNumber = normalizeCardNumber(details.CardNumber)
		if !cardNumberPattern.MatchString(details.CardNumber) {
			add("payment_details.card_number", "card_number must have 13 to 16 digits")
		}
		if !expiryPattern.MatchString(details.ExpiryDate) {
			add("payment_details.expiry_date", "expiry_date must be in MM/YY format")
		}
		if !cvvPattern.MatchString(details.CVV) {
			add("payment_details.cvv", "cvv must have 3 or 4 digits")
		}
		if details.CardHolderName == "" {
			add("payment_details.card_holder_name", "card_holder_name is required")
		}
	}

	if len(invalid) > 0 {
		return PaymentDetails{}, apperr.ValidationWithDetails("Invalid payment data", invalid)
	}
	return details, nil
}

// GetPayment devolve o pagamento com o histórico
func (uc *PaymentUseCase) GetPayment(ctx context.Context, paymentID string) (*PaymentDetailsView, error) {
	payment, err := uc.repository.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	history, err := uc.repository.ListHistory(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return &PaymentDetailsView{Payment: payment, StatusHistory: history}, nil
}

// GetHistory devolve o histórico do pagamento, do mais novo para o mais antigo
func (uc *PaymentUseCase) GetHistory(ctx context.Context, paymentID string) ([]ledger.Entry, error) {
	if _, err := uc.repository.GetPayment(ctx, paymentID); err != nil {
		return nil, err
	}
	return uc.repository.ListHistory(ctx, paymentID)
}

// ListPayments devolve os pagamentos de um pedido
func (uc *PaymentUseCase) ListPayments(ctx context.Context, orderID string) ([]Payment, error) {
	if orderID == "" {
		return nil, apperr.Validation("order_id query parameter is required")
	}
	return uc.repository.ListPayments(ctx, orderID)
}

// gatewayContext limita a chamada ao gateway. A chamada não é interrompida
// quando a requisição de origem é cancelada.
func (uc *PaymentUseCase) gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), uc.cfg.Timeout)
}

// ProcessPayment envia o pagamento ao gateway. A ida para PROCESSING e o
// resultado são commitados em transações separadas; o gateway é chamado fora
// de qualquer transação. Recusa devolve o outcome junto com um GatewayError.
func (uc *PaymentUseCase) ProcessPayment(ctx context.Context, paymentID string) (*ProcessOutcome, error) {
	payment, err := uc.startProcessing(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	gwCtx, cancel := uc.gatewayContext(ctx)
	result, err := uc.gateway.ProcessPayment(gwCtx, payment.Amount, payment.Currency, payment.Details)
	cancel()
	if err != nil {
		uc.log.Warn("❌ Payment gateway call did not complete",
			zap.String("payment_id", payment.ID),
			zap.Error(err),
		)
		result = ChargeResult{
			Success:   false,
			Status:    StatusFailed,
			Message:   "Payment gateway timeout",
			ErrorCode: ErrorCodeGatewayTimeout,
			Timestamp: uc.now(),
		}
	}

	payment, err = uc.finishProcessing(ctx, paymentID, result)
	if err != nil {
		return nil, err
	}

	outcome := &ProcessOutcome{
		Success:       result.Success,
		PaymentID:     payment.ID,
		Status:        payment.Status,
		TransactionID: payment.TransactionID,
		Message:       result.Message,
		ErrorCode:     result.ErrorCode,
	}

	if !result.Success {
		telemetry.Inc(ctx, uc.processed, "failed")
		uc.log.Info("❌ Payment failed",
			zap.String("payment_id", payment.ID),
			zap.String("error_code", result.ErrorCode),
		)
		return outcome, apperr.Gateway(result.ErrorCode, result.Message)
	}

	telemetry.Inc(ctx, uc.processed, "completed")
	uc.log.Info("✅ Payment completed",
		zap.String("payment_id", payment.ID),
		zap.String("transaction_id", payment.TransactionID),
	)

	uc.notifier.NotifyPayment(ctx, payment.OrderID, notifier.PaymentUpdate{
		Status:        payment.Status,
		TransactionID: payment.TransactionID,
		PaymentID:     payment.ID,
	})
	return outcome, nil
}

func (uc *PaymentUseCase) startProcessing(ctx context.Context, paymentID string) (*Payment, error) {
	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	payment, err := uc.repository.GetPaymentForUpdate(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}
	if !payment.CanProcess() {
		return nil, apperr.InvalidState("Payment", "processed", payment.Status)
	}

	now := uc.now()
	payment.Status = StatusProcessing
	payment.UpdatedAt = now

	if err := uc.repository.UpdatePayment(ctx, tx, payment); err != nil {
		return nil, err
	}
	if err := uc.repository.AppendHistory(ctx, tx, payment.ID, ledger.NewEntry(StatusProcessing, "Payment processing started", now)); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payment processing: %w", err)
	}
	return payment, nil
}

func (uc *PaymentUseCase) finishProcessing(ctx context.Context, paymentID string, result ChargeResult) (*Payment, error) {
	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	payment, err := uc.repository.GetPaymentForUpdate(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	var note string
	if result.Success {
		payment.Status = StatusCompleted
		payment.TransactionID = result.TransactionID
		note = "Payment completed: " + result.Message
	} else {
		payment.Status = StatusFailed
		note = fmt.Sprintf("Payment failed: %s (%s)", result.Message, result.ErrorCode)
	}
	payment.UpdatedAt = now

	if err := uc.repository.UpdatePayment(ctx, tx, payment); err != nil {
		return nil, err
	}
	if err := uc.repository.AppendHistory(ctx, tx, payment.ID, ledger.NewEntry(payment.Status, note, now)); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payment result: %w", err)
	}
	return payment, nil
}

// RefundPayment estorna um pagamento COMPLETED. O pagamento é marcado como
// refund_pending antes da chamada ao gateway, então estornos concorrentes do
// mesmo pagamento recebem InvalidStateError sem chegar ao gateway. Falha do
// gateway fica só no histórico: o status não muda e o pedido não é notificado.
func (uc *PaymentUseCase) RefundPayment(ctx context.Context, in RefundPaymentInput) (*RefundOutcome, error) {
	reason := in.Reason
	if reason == "" {
		reason = "No reason provided"
	}

	payment, amount, err := uc.claimRefund(ctx, in)
	if err != nil {
		return nil, err
	}

	gwCtx, cancel := uc.gatewayContext(ctx)
	result, err := uc.gateway.RefundPayment(gwCtx, payment.TransactionID, amount)
	cancel()
	if err != nil {
		uc.log.Warn("❌ Refund gateway call did not complete",
			zap.String("payment_id", payment.ID),
			zap.Error(err),
		)
		result = RefundResult{
			Success:       false,
			TransactionID: payment.TransactionID,
			Status:        StatusFailed,
			Message:       "Payment gateway timeout",
			ErrorCode:     ErrorCodeGatewayTimeout,
			Timestamp:     uc.now(),
		}
	}

	payment, err = uc.finishRefund(ctx, in.PaymentID, result, reason)
	if err != nil {
		uc.log.Error("❌ Refund result not recorded, payment stays refund_pending",
			zap.String("payment_id", in.PaymentID),
			zap.Bool("gateway_success", result.Success),
			zap.String("refund_id", result.RefundID),
			zap.Error(err),
		)
		return nil, err
	}

	outcome := &RefundOutcome{
		Success:   result.Success,
		PaymentID: payment.ID,
		Status:    payment.Status,
		RefundID:  result.RefundID,
		Amount:    amount,
		Message:   result.Message,
		ErrorCode: result.ErrorCode,
	}

	if !result.Success {
		telemetry.Inc(ctx, uc.refunds, "failed")
		uc.log.Info("❌ Refund failed",
			zap.String("payment_id", payment.ID),
			zap.String("error_code", result.ErrorCode),
		)
		return outcome, apperr.Gateway(result.ErrorCode, result.Message)
	}

	telemetry.Inc(ctx, uc.refunds, "refunded")
	uc.log.Info("↩️ Payment refunded",
		zap.String("payment_id", payment.ID),
		zap.String("refund_id", result.RefundID),
		zap.String("amount", amount.StringFixed(2)),
	)

	uc.notifier.NotifyPayment(ctx, payment.OrderID, notifier.PaymentUpdate{
		Status:        payment.Status,
		TransactionID: payment.TransactionID,
		PaymentID:     payment.ID,
	})
	return outcome, nil
}

// claimRefund valida o estorno e marca o pagamento como refund_pending sob lock
func (uc *PaymentUseCase) claimRefund(ctx context.Context, in RefundPaymentInput) (*Payment, decimal.Decimal, error) {
	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, decimal.Zero, err
	}
	defer tx.Rollback()

	payment, err := uc.repository.GetPaymentForUpdate(ctx, tx, in.PaymentID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if !payment.CanRefund() {
		return nil, decimal.Zero, payment.refundError()
	}

	amount := payment.Amount
	if in.Amount != nil {
		amount = *in.Amount
	}
	if !amount.IsPositive() || amount.GreaterThan(payment.Amount) {
		return nil, decimal.Zero, apperr.Validation("refund amount must be greater than 0 and at most %s", payment.Amount.StringFixed(2))
	}
	if !money.Exact(amount) {
		return nil, decimal.Zero, apperr.Validation("refund amount must have at most 2 decimal places")
	}

	payment.RefundPending = true
	payment.UpdatedAt = uc.now()
	if err := uc.repository.UpdatePayment(ctx, tx, payment); err != nil {
		return nil, decimal.Zero, err
	}
	if err := tx.Commit(); err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to commit refund claim: %w", err)
	}
	return payment, amount, nil
}

// finishRefund libera a marca de estorno e grava o resultado do gateway
func (uc *PaymentUseCase) finishRefund(ctx context.Context, paymentID string, result RefundResult, reason string) (*Payment, error) {
	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	payment, err := uc.repository.GetPaymentForUpdate(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	payment.RefundPending = false
	payment.UpdatedAt = now

	note := fmt.Sprintf("Refund failed: %s (Reason: %s)", result.Message, reason)
	if result.Success {
		payment.Status = StatusRefunded
		note = "Payment refunded: " + reason
	}

	if err := uc.repository.UpdatePayment(ctx, tx, payment); err != nil {
		return nil, err
	}
	entry := ledger.NewEntry(payment.Status, note, now)
	if err := uc.repository.AppendHistory(ctx, tx, payment.ID, entry); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit refund result: %w", err)
	}
	return payment, nil
}

// CheckGatewayStatus consulta o status da transação no gateway
func (uc *PaymentUseCase) CheckGatewayStatus(ctx context.Context, paymentID string) (StatusResult, error) {
	payment, err := uc.repository.GetPayment(ctx, paymentID)
	if err != nil {
		return StatusResult{}, err
	}
	if payment.TransactionID == "" {
		return StatusResult{}, apperr.Validation("Payment %s has no transaction_id", paymentID)
	}

	gwCtx, cancel := uc.gatewayContext(ctx)
	defer cancel()

	result, err := uc.gateway.CheckPaymentStatus(gwCtx, payment.TransactionID)
	if err != nil {
		return StatusResult{}, apperr.Gateway(ErrorCodeGatewayTimeout, "Payment gateway timeout")
	}
	return result, nil
}
