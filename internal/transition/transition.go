// Package transition isola a regra de quais mudanças de status são aceitas
// pelos endpoints update_status. Os serviços aceitam qualquer mudança
// (Permissive); Table permite trocar por uma máquina de estados estrita sem
// mexer nos use cases.
package transition

import "github.com/matheusmosca/order-fulfillment/internal/apperr"

// Validator decide se from -> to é permitido
type Validator interface {
	Validate(entity string, from string, to string) error
}

// Permissive aceita qualquer transição
type Permissive struct{}

func (Permissive) Validate(string, string, string) error {
	return nil
}

// Table aceita apenas as transições listadas: table[from][to]
type Table map[string]map[string]bool

func (t Table) Validate(entity string, from string, to string) error {
	if t[from][to] {
		return nil
	}
	return apperr.InvalidState(entity, "moved to "+to, from)
}
