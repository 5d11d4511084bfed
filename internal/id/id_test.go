package id

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	a, b := New(), New()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	require.NoError(t, err)
}

func TestTransactionKey_Equal(t *testing.T) {
	d := time.Date(2025, 1, 3, 12, 0, 0, 0, time.UTC)
	k1 := TransactionKey("acct", d, decimal.RequireFromString("-4.0"), "GITHUB")
	k2 := TransactionKey("acct", d.In(time.FixedZone("EST", -5*3600)), decimal.RequireFromString("-4.00"), "GITHUB")
	assert.Equal(t, k1, k2)
}

func TestTransactionKey_Differs(t *testing.T) {
	d := time.Date(2025, 1, 3, 12, 0, 0, 0, time.UTC)
	base := TransactionKey("acct", d, decimal.RequireFromString("-4.00"), "GITHUB")

	tests := []struct {
		name string
		key  string
	}{
		{"account", TransactionKey("other", d, decimal.RequireFromString("-4.00"), "GITHUB")},
		{"date", TransactionKey("acct", d.Add(time.Second), decimal.RequireFromString("-4.00"), "GITHUB")},
		{"amount", TransactionKey("acct", d, decimal.RequireFromString("-4.01"), "GITHUB")},
		{"payee", TransactionKey("acct", d, decimal.RequireFromString("-4.00"), "github")},
	}
	for _, tt := range tests {
		assert.NotEqual(t, base, tt.key, tt.name)
	}
}
