package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestExact(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"10", true},
		{"10.5", true},
		{"10.05", true},
		{"10.050", true},
		{"10.005", false},
		{"3.333", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, Exact(decimal.RequireFromString(tt.value)))
		})
	}
}

func TestBelow(t *testing.T) {
	assert.True(t, Below(decimal.RequireFromString("9999.99"), 6))
	assert.False(t, Below(decimal.NewFromInt(10000), 6))
	assert.True(t, Below(decimal.RequireFromString("99999999.99"), 10))
	assert.False(t, Below(decimal.NewFromInt(100000000), 10))
}
