package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matheusmosca/order-fulfillment/internal/config"
)

// Cache de status do pedido: hash order_status:{order_id} com os campos
// status, updated_at (RFC 3339) e version (updated_at em nanossegundos,
// com zeros à esquerda para comparar como texto)
const KeyOrderStatus = "order_status:%s"

// TTLStatusCache é usado quando redis.status_ttl não está configurado
const TTLStatusCache = 5 * time.Minute

// New cria o client. Não conecta; a primeira operação abre a conexão.
func New(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// CachedStatus é o valor guardado para cada pedido
type CachedStatus struct {
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusCache guarda o status atual dos pedidos para leituras rápidas.
// O banco continua sendo a fonte da verdade.
type StatusCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStatusCache cria uma nova instância de StatusCache
func NewStatusCache(rdb *redis.Client, ttl time.Duration) *StatusCache {
	if ttl <= 0 {
		ttl = TTLStatusCache
	}
	return &StatusCache{rdb: rdb, ttl: ttl}
}

// StatusKey monta a chave do pedido
func StatusKey(orderID string) string {
	return fmt.Sprintf(KeyOrderStatus, orderID)
}

// setIfNotOlder só grava quando o cache não tem uma versão mais nova. Uma
// escrita atrasada de um status antigo não sobrescreve o atual.
var setIfNotOlder = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if current and current > ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'status', ARGV[2], 'updated_at', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

func version(t time.Time) string {
	return fmt.Sprintf("%020d", t.UnixNano())
}

// Set grava o status do pedido, a menos que o cache já tenha um UpdatedAt
// mais novo.
func (c *StatusCache) Set(ctx context.Context, orderID string, status CachedStatus) error {
	return setIfNotOlder.Run(ctx, c.rdb,
		[]string{StatusKey(orderID)},
		version(status.UpdatedAt),
		status.Status,
		status.UpdatedAt.UTC().Format(time.RFC3339Nano),
		c.ttl.Milliseconds(),
	).Err()
}

// Get lê o status do pedido. found=false quando a chave não existe.
func (c *StatusCache) Get(ctx context.Context, orderID string) (CachedStatus, bool, error) {
	fields, err := c.rdb.HGetAll(ctx, StatusKey(orderID)).Result()
	if err != nil {
		return CachedStatus{}, false, err
	}
	if len(fields) == 0 {
		return CachedStatus{}, false, nil
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, fields["updated_at"])
	if err != nil {
		return CachedStatus{}, false, fmt.Errorf("invalid cached status: %w", err)
	}
	return CachedStatus{Status: fields["status"], UpdatedAt: updatedAt}, true, nil
}
