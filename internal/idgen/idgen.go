// Package idgen gera números legíveis (pedido, rastreio) e garante unicidade
// contra o armazenamento com um número limitado de tentativas.
package idgen

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ErrExhausted indica que todas as tentativas colidiram
var ErrExhausted = errors.New("could not generate a unique identifier")

// Random é a fonte de aleatoriedade. *rand.Rand satisfaz a interface.
type Random interface {
	IntN(n int) int
}

type globalRandom struct{}

func (globalRandom) IntN(n int) int { return rand.IntN(n) }

// DefaultRandom usa o gerador global de math/rand/v2, seguro para uso concorrente
var DefaultRandom Random = globalRandom{}

// OrderNumber gera ORD-YYYYMMDD-NNNNNN com NNNNNN em [100000, 999999]
func OrderNumber(now time.Time, rnd Random) string {
	return fmt.Sprintf("ORD-%s-%d", now.Format("20060102"), 100000+rnd.IntN(900000))
}

// TrackingNumber gera PP-YYYYMMDD-XXXXXX, onde PP são os dois primeiros
// caracteres do código da transportadora
func TrackingNumber(provider string, now time.Time, rnd Random) string {
	prefix := strings.ToUpper(provider)
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}

	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = alphanumeric[rnd.IntN(len(alphanumeric))]
	}

	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), suffix)
}

// Unique chama generate até obter um valor que exists não encontre
func Unique(ctx context.Context, attempts int, generate func() string, exists func(ctx context.Context, candidate string) (bool, error)) (string, error) {
	for i := 0; i < attempts; i++ {
		candidate := generate()

		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check identifier uniqueness: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrExhausted, attempts)
}
