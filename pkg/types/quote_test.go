package types_test

import (
	"testing"

	// Packages
	types "github.com/mutablelogic/go-pgbus/pkg/types"
	assert "github.com/stretchr/testify/assert"
)

func Test_Quote_001(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(`'a'`, types.Quote("a"))
	assert.Equal(`'it''s'`, types.Quote("it's"))
	assert.Equal(`"orders"`, types.DoubleQuote("orders"))
	assert.Equal(`"a""b"`, types.DoubleQuote(`a"b`))
}

func Test_Identifier_001(t *testing.T) {
	assert := assert.New(t)
	tests := []struct {
		In  string
		Out bool
	}{
		{"orders", true},
		{"_orders", true},
		{"orders_2", true},
		{"2orders", false},
		{"Orders", false},
		{"or-ders", false},
		{"", false},
	}
	for _, test := range tests {
		t.Run(test.In, func(t *testing.T) {
			assert.Equal(test.Out, types.IsIdentifier(test.In))
		})
	}
}

func Test_Numeric_001(t *testing.T) {
	assert := assert.New(t)
	assert.True(types.IsNumeric("12"))
	assert.False(types.IsNumeric(""))
	assert.False(types.IsNumeric("1a"))
	assert.True(types.IsSingleQuoted("'a'"))
	assert.False(types.IsSingleQuoted("'"))
	assert.True(types.IsDoubleQuoted(`"a"`))
}
