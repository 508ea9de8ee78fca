package gateway_test

import (
	"testing"

	"app/internal/gateway"

	"github.com/stretchr/testify/assert"
)

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$0.00", gateway.FormatMoney(0))
	assert.Equal(t, "$0.05", gateway.FormatMoney(5))
	assert.Equal(t, "$35.00", gateway.FormatMoney(3500))
	assert.Equal(t, "$2000.00", gateway.FormatMoney(200000))
	assert.Equal(t, "-$12.34", gateway.FormatMoney(-1234))
}

func TestDecimalString(t *testing.T) {
	assert.Equal(t, "59.99", gateway.DecimalString(5999))
	assert.Equal(t, "120.50", gateway.DecimalString(12050))
	assert.Equal(t, "0.00", gateway.DecimalString(0))
	assert.Equal(t, "-1.00", gateway.DecimalString(-100))
}
