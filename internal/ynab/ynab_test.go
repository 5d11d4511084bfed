package ynab

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/envelopes/internal/model"
)

func TestParseJSON_Envelopes(t *testing.T) {
	inner := `{"id":"b1","accounts":[{"id":"a1","name":"Checking","type":"checking","balance":1000}]}`
	tests := []struct {
		name  string
		input string
	}{
		{"api envelope", `{"data":{"budget":` + inner + `}}`},
		{"budget envelope", `{"budget":` + inner + `}`},
		{"bare budget", inner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := ParseJSON(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, "b1", b.ID)
			require.Len(t, b.Accounts, 1)
			assert.Equal(t, int64(1000), b.Accounts[0].Balance)
		})
	}
}

func TestParseJSON_Malformed(t *testing.T) {
	_, err := ParseJSON(strings.NewReader(`{"budget": [`))
	assert.Error(t, err)

	_, err = ParseJSON(strings.NewReader(`{"budget": null}`))
	assert.NoError(t, err, "null budget key falls back to the raw object")

	_, err = ParseJSON(strings.NewReader(`"just a string"`))
	assert.Error(t, err)
}

func TestBudgetToBatch_Fixture(t *testing.T) {
	f, err := os.Open("../../testdata/ynab_budget.json")
	require.NoError(t, err)
	defer f.Close()

	b, err := ParseJSON(f)
	require.NoError(t, err)
	batch, err := b.ToBatch()
	require.NoError(t, err)

	assert.Equal(t, model.SourceYNABJSON, batch.Source)

	require.Len(t, batch.Accounts, 2, "closed and deleted accounts skipped")
	assert.Equal(t, "Primary Checking", batch.Accounts[0].Account.Name)
	assert.Equal(t, model.AccountTypeChecking, batch.Accounts[0].Account.Type)
	assert.Equal(t, "150.00", batch.Accounts[0].Account.Balance.StringFixed(2))
	assert.Equal(t, model.AccountTypeCredit, batch.Accounts[1].Account.Type)
	assert.Equal(t, "-45.67", batch.Accounts[1].Account.Balance.StringFixed(2))

	require.Len(t, batch.Categories, 2, "hidden and deleted categories skipped")
	assert.Equal(t, "Groceries", batch.Categories[0].Category.Name)
	assert.Equal(t, "400.00", batch.Categories[0].Category.Budgeted.StringFixed(2))
	assert.Equal(t, "0.00", batch.Categories[1].Category.Budgeted.StringFixed(2))

	require.Len(t, batch.Transactions, 3, "deleted transactions skipped")
	first := batch.Transactions[0]
	assert.Equal(t, "acct-checking", first.ExternalAccountID)
	assert.Equal(t, "cat-groceries", first.ExternalCategoryID)
	assert.Equal(t, "-25.00", first.Transaction.Amount.StringFixed(2))
	assert.Equal(t, "Grocery Mart", first.Transaction.Payee)
	assert.Equal(t, "weekly shop", first.Transaction.Notes)
	assert.True(t, first.Transaction.Date.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)))

	assert.Equal(t, model.UnknownPayee, batch.Transactions[1].Transaction.Payee)
	assert.Equal(t, "-12.35", batch.Transactions[1].Transaction.Amount.StringFixed(2))
	assert.Equal(t, "acct-old", batch.Transactions[2].ExternalAccountID, "references are resolved later")
}

func TestMilliunitConversion(t *testing.T) {
	tests := []struct {
		milli int64
		want  string
	}{
		{150000, "150.00"},
		{-25000, "-25.00"},
		{0, "0.00"},
		{1, "0.00"},
		{5, "0.01"},
		{-5, "-0.01"},
		{123456789, "123456.79"},
		{-1, "0.00"},
	}
	for _, tt := range tests {
		b := &Budget{Accounts: []Account{{ID: "a", Name: "x", Balance: tt.milli}}}
		batch, err := b.ToBatch()
		require.NoError(t, err)
		assert.Equal(t, tt.want, batch.Accounts[0].Account.Balance.StringFixed(2), "milliunits %d", tt.milli)
	}
}

func TestBudgetToBatch_BadDate(t *testing.T) {
	b := &Budget{Transactions: []Transaction{{ID: "t1", Date: "someday", AccountID: "a"}}}
	_, err := b.ToBatch()
	assert.ErrorContains(t, err, "parsing date")
}
