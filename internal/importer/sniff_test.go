package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/envelopes/internal/model"
)

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		file string
		data string
		want model.ImportSource
	}{
		{"ynab envelope", "a.json", `{"data":{"budget":{}}}`, model.SourceYNABJSON},
		{"ynab bare budget", "a.json", `{"accounts":[],"category_groups":[]}`, model.SourceYNABJSON},
		{"ynab by transaction shape", "a.json", `{"transactions":[{"account_id":"x"}]}`, model.SourceYNABJSON},
		{"actual with payees", "a.json", `{"data":{"accounts":[],"payees":[]}}`, model.SourceActualBudget},
		{"actual by transaction shape", "a.json", `{"transactions":[{"account":"x"}]}`, model.SourceActualBudget},
		{"chase csv", "b.CSV", "Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\n", model.SourceCSV},
		{"ynab register", "b.csv", "\ufeffAccount,Date,Payee,Memo,Outflow,Inflow\n", model.SourceYNABCSV},
		{"ynab amount column", "b.csv", "Date,Payee,Amount\n", model.SourceYNABCSV},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sniff(tt.file, []byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSniff_Unknown(t *testing.T) {
	for name, data := range map[string]string{
		"notes.txt":   "hello",
		"a.json":      `{"something":"else"}`,
		"broken.json": `{`,
		"a.csv":       "Foo,Bar\n1,2\n",
		"empty.csv":   "",
	} {
		_, err := Sniff(name, []byte(data))
		assert.ErrorIs(t, err, ErrUnknownFormat, name)
	}
}

func TestSniff_Fixtures(t *testing.T) {
	for file, want := range map[string]model.ImportSource{
		"ynab_budget.json":   model.SourceYNABJSON,
		"actual_budget.json": model.SourceActualBudget,
		"ynab_register.csv":  model.SourceYNABCSV,
		"chase_checking.csv": model.SourceCSV,
	} {
		data, err := os.ReadFile(filepath.Join("../../testdata", file))
		require.NoError(t, err)
		got, err := Sniff(file, data)
		require.NoError(t, err, file)
		assert.Equal(t, want, got, file)
	}
}

func copyFixture(t *testing.T, dir, fixture, as string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("../../testdata", fixture))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, as), data, 0o644))
}

func TestImportDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	copyFixture(t, dir, "ynab_budget.json", "budget.json")
	copyFixture(t, dir, "chase_checking.csv", "Chase Checking.csv")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mystery.json"), []byte(`{"x":1}`), 0o644))

	svc, st := newTestService(t)
	results, err := svc.ImportDir(ctx, owner, dir, "")
	require.NoError(t, err)
	require.Len(t, results, 3)

	byFile := map[string]DirResult{}
	for _, r := range results {
		byFile[r.File] = r
	}

	chase := byFile["Chase Checking.csv"]
	require.NoError(t, chase.Err)
	assert.Equal(t, model.SourceCSV, chase.Source)
	assert.Equal(t, 6, chase.Result.TransactionsImported)

	budget := byFile["budget.json"]
	require.NoError(t, budget.Err)
	assert.Equal(t, model.SourceYNABJSON, budget.Source)
	assert.Equal(t, 2, budget.Result.AccountsImported)

	assert.ErrorIs(t, byFile["mystery.json"].Err, ErrUnknownFormat)

	assert.FileExists(t, filepath.Join(dir, "processed", "budget.json"))
	assert.FileExists(t, filepath.Join(dir, "processed", "Chase Checking.csv"))
	assert.FileExists(t, filepath.Join(dir, "mystery.json"))

	accts, err := st.ListAccounts(ctx, owner)
	require.NoError(t, err)
	names := map[string]bool{}
	for _, a := range accts {
		names[a.Name] = true
	}
	assert.True(t, names["Chase Checking"])

	logs, err := svc.Logs(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, logs, 2, "unrecognized files are not runs")

	again, err := svc.ImportDir(ctx, owner, dir, "")
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, "mystery.json", again[0].File)
}
