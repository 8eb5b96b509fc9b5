package payments

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/matheusmosca/order-fulfillment/internal/apperr"
)

// Status do pagamento
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
	StatusRefunded   = "REFUNDED"
	StatusCanceled   = "CANCELED"
)

// Métodos de pagamento
const (
	MethodCreditCard     = "CREDIT_CARD"
	MethodDebitCard      = "DEBIT_CARD"
	MethodPayPal         = "PAYPAL"
	MethodBankTransfer   = "BANK_TRANSFER"
	MethodCashOnDelivery = "CASH_ON_DELIVERY"
)

var validMethods = map[string]bool{
	MethodCreditCard:     true,
	MethodDebitCard:      true,
	MethodPayPal:         true,
	MethodBankTransfer:   true,
	MethodCashOnDelivery: true,
}

// IsCardMethod informa se o método exige dados de cartão
func IsCardMethod(method string) bool {
	return method == MethodCreditCard || method == MethodDebitCard
}

// PaymentDetails são os dados específicos do gateway. Nunca sai do serviço
// sem passar por Masked.
type PaymentDetails struct {
	Method         string `json:"method"`
	CardNumber     string `json:"card_number,omitempty"`
	ExpiryDate     string `json:"expiry_date,omitempty"`
	CVV            string `json:"cvv,omitempty"`
	CardHolderName string `json:"card_holder_name,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// Masked devolve uma cópia com número do cartão e CVV mascarados
func (d PaymentDetails) Masked() PaymentDetails {
	if d.CardNumber != "" {
		d.CardNumber = MaskCardNumber(d.CardNumber)
	}
	if d.CVV != "" {
		d.CVV = "***"
	}
	return d
}

// MaskCardNumber mantém apenas os quatro últimos dígitos
func MaskCardNumber(cardNumber string) string {
	if len(cardNumber) < 13 {
		return "XXXX-XXXX-XXXX-XXXX"
	}
	return "XXXX-XXXX-XXXX-" + cardNumber[len(cardNumber)-4:]
}

// Payment representa uma tentativa de pagamento de um pedido
type Payment struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	PaymentMethod string          `json:"payment_method"`
	Status        string          `json:"status"`
	Details       PaymentDetails  `json:"-"`
	TransactionID string          `json:"transaction_id,omitempty"`
	RefundPending bool            `json:"refund_pending,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type paymentFields Payment

type paymentJSON struct {
	paymentFields
	PaymentDetails PaymentDetails `json:"payment_details"`
}

func (p Payment) toJSON() paymentJSON {
	return paymentJSON{paymentFields: paymentFields(p), PaymentDetails: p.Details.Masked()}
}

// MarshalJSON expõe payment_details sempre mascarado
func (p Payment) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.toJSON())
}

// NewPayment cria uma nova instância de Payment com status PENDING
func NewPayment(orderID string, amount decimal.Decimal, currency string, details PaymentDetails, now time.Time) *Payment {
	return &Payment{
		ID:            uuid.New().String(),
		OrderID:       orderID,
		Amount:        amount,
		Currency:      currency,
		PaymentMethod: details.Method,
		Status:        StatusPending,
		Details:       details,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// CanProcess informa se o pagamento pode ir para o gateway
func (p *Payment) CanProcess() bool {
	return p.Status == StatusPending || p.Status == StatusFailed
}

// CanRefund informa se o pagamento pode ser estornado. Só um estorno por vez
// fica em andamento no gateway.
func (p *Payment) CanRefund() bool {
	return p.Status == StatusCompleted && !p.RefundPending
}

// refundError explica por que CanRefund é falso
func (p *Payment) refundError() error {
	if p.Status == StatusCompleted && p.RefundPending {
		return &apperr.Error{
			Kind:    apperr.ErrInvalidState,
			Message: "Payment cannot be refunded (a refund is already in progress)",
		}
	}
	return apperr.InvalidState("Payment", "refunded", p.Status)
}

// amountPrecision é a precisão da coluna payments.amount
const amountPrecision = 10

var (
	cardNumberPattern = regexp.MustCompile(`^[0-9]{13,16}$`)
	cvvPattern        = regexp.MustCompile(`^[0-9]{3,4}$`)
	currencyPattern   = regexp.MustCompile(`^[A-Z]{3}$`)
	expiryPattern     = regexp.MustCompile(`^(0[1-9]|1[0-2])/[0-9]{2}$`)
)

func normalizeCardNumber(cardNumber string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(cardNumber)
}

func normalizeCurrency(currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return "USD"
	}
	return currency
}
