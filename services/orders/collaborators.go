package orders

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

var (
	// ErrCollaboratorUnavailable indica falha de rede ou 5xx. O pedido segue
	// assumindo que o recurso existe.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	ErrProductNotFound         = errors.New("product not found")
)

// CustomerDirectory consulta o serviço de clientes
type CustomerDirectory interface {
	CustomerExists(ctx context.Context, customerID string) (bool, error)
}

// ProductCatalog consulta e ajusta o estoque do serviço de produtos
type ProductCatalog interface {
	GetProduct(ctx context.Context, productType string, productID string) (*Product, error)
	UpdateStock(ctx context.Context, productType string, productID string, delta int) error
}

// Product é a visão do catálogo usada na validação e no snapshot do item
type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Category      string          `json:"category"`
	StockQuantity int             `json:"stock_quantity"`
}

func newCollaboratorClient(timeout time.Duration) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
}

func injectTrace(ctx context.Context, req *resty.Request) *resty.Request {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	return req
}

// CustomerClient implementa CustomerDirectory via HTTP
type CustomerClient struct {
	client  *resty.Client
	baseURL string
}

// NewCustomerClient cria uma nova instância de CustomerClient
func NewCustomerClient(baseURL string, timeout time.Duration) *CustomerClient {
	return &CustomerClient{client: newCollaboratorClient(timeout), baseURL: baseURL}
}

// CustomerExists devolve false para 4xx e ErrCollaboratorUnavailable para
// falha de rede ou 5xx
func (c *CustomerClient) CustomerExists(ctx context.Context, customerID string) (bool, error) {
	req := injectTrace(ctx, c.client.R().SetContext(ctx))

	resp, err := req.Get(fmt.Sprintf("%s/customers/%s/", c.baseURL, customerID))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
	}

	switch {
	case resp.StatusCode() == http.StatusOK:
		return true, nil
	case resp.StatusCode() >= http.StatusInternalServerError:
		return false, fmt.Errorf("%w: customer service returned %d", ErrCollaboratorUnavailable, resp.StatusCode())
	default:
		return false, nil
	}
}

// CatalogClient implementa ProductCatalog via HTTP
type CatalogClient struct {
	client  *resty.Client
	baseURL string
}

// NewCatalogClient cria uma nova instância de CatalogClient
func NewCatalogClient(baseURL string, timeout time.Duration) *CatalogClient {
	return &CatalogClient{client: newCollaboratorClient(timeout), baseURL: baseURL}
}

// GetProduct busca GET {base}/{type}s/{id}/
func (c *CatalogClient) GetProduct(ctx context.Context, productType string, productID string) (*Product, error) {
	var product Product
	req := injectTrace(ctx, c.client.R().SetContext(ctx).SetResult(&product))

	resp, err := req.Get(fmt.Sprintf("%s/%ss/%s/", c.baseURL, productType, productID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
	}

	switch {
	case resp.StatusCode() == http.StatusOK:
		return &product, nil
	case resp.StatusCode() >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: product service returned %d", ErrCollaboratorUnavailable, resp.StatusCode())
	default:
		return nil, ErrProductNotFound
	}
}

// UpdateStock envia PATCH {base}/{type}s/{id}/update_stock/ com a variação
// de estoque (positiva para devolver ao estoque)
func (c *CatalogClient) UpdateStock(ctx context.Context, productType string, productID string, delta int) error {
	req := injectTrace(ctx, c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]int{"quantity_change": delta}))

	resp, err := req.Patch(fmt.Sprintf("%s/%ss/%s/update_stock/", c.baseURL, productType, productID))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("update stock for %s %s returned %d", productType, productID, resp.StatusCode())
	}
	return nil
}
