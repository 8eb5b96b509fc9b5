package payments

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/matheusmosca/order-fulfillment/internal/httpx"
)

// ServiceName identifica o serviço em logs, traces e config
const ServiceName = "payments-service"

// NewRouter monta as rotas do serviço de pagamentos
func NewRouter(handler *PaymentHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), otelgin.Middleware(ServiceName))

	r.GET("/health", httpx.Health(ServiceName))

	payments := r.Group("/payments")
	{
		payments.POST("/", handler.CreatePayment)
		payments.GET("/", handler.ListPayments)
		payments.POST("/process/", handler.ProcessPayment)
		payments.POST("/refund/", handler.RefundPayment)

		payments.GET("/:id/", handler.GetPayment)
		payments.GET("/:id/history/", handler.GetHistory)
		payments.GET("/:id/gateway_status/", handler.GatewayStatus)
	}

	return r
}
