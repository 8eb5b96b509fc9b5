// Package money reúne as regras de valores gravados com duas casas decimais
// (colunas NUMERIC(p, 2)).
package money

import "github.com/shopspring/decimal"

// Places é a escala das colunas de valores
const Places = 2

// Exact informa se o valor cabe em duas casas sem arredondamento
func Exact(d decimal.Decimal) bool {
	return d.Equal(d.Round(Places))
}

// Below informa se o valor cabe em uma coluna NUMERIC(precision, 2)
func Below(d decimal.Decimal, precision int32) bool {
	return d.LessThan(decimal.New(1, precision-Places))
}
