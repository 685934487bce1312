package cli_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamledger/internal/cli"
	"teamledger/internal/core"
	"teamledger/internal/storage"
)

const ledgerCSV = `№ счета,Команда,Группа,Сумма счета,Материалы,Бензин,Рентабельность,Оплачено
INV-01.03.25,Alpha,"Ivan, Petr","1 500,50",0,100,"1 400,50",да
,Beta,Anna,100,,10,90,
INV-5.3,,Olga,200,20,10,170,no
`

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "POSTGRES_URL", "AMQP_URL", "LOG_LEVEL", "LOG_FORMAT", "PORT",
		"GOOGLE_SPREADSHEET_ID", "GOOGLE_SHEET_RANGE", "GOOGLE_SERVICE_ACCOUNT_JSON",
		"GOOGLE_SERVICE_ACCOUNT_FILE", "GOOGLE_APPLICATION_CREDENTIALS",
	} {
		t.Setenv(key, "")
	}
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "operations.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := cli.NewImportCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func TestCSVCmd_DryRunPrintsOperations(t *testing.T) {
	clearEnv(t)
	path := writeCSV(t, ledgerCSV)

	stdout, stderr, err := runCmd(t, "csv", path, "--dry-run")
	require.NoError(t, err)

	var ops []core.Operation
	var summary string
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "{") {
			var op core.Operation
			require.NoError(t, json.Unmarshal([]byte(line), &op))
			ops = append(ops, op)
			continue
		}
		summary = line
	}

	require.Len(t, ops, 2)
	assert.Equal(t, "INV-01.03.25", ops[0].InvoiceNumber)
	assert.Equal(t, "1500.5", ops[0].Revenue.String())
	assert.False(t, ops[0].MaterialCost.Valid, "zero material cost is stored as null")
	assert.True(t, ops[0].IsPaid)
	assert.Equal(t, "2025-03-01", ops[0].Date.Format("2006-01-02"))

	assert.Nil(t, ops[1].Team)
	assert.Equal(t, "2025-03-05", ops[1].Date.Format("2006-01-02"))
	assert.False(t, ops[1].IsPaid)

	assert.Equal(t, "Rows read: 3, imported: 2, failed: 1", summary)
	assert.Contains(t, stderr, "skipped line 3")
}

func TestCSVCmd_DefaultYear(t *testing.T) {
	clearEnv(t)
	path := writeCSV(t, "Invoice,Revenue\nINV-5.3,10\n")

	stdout, _, err := runCmd(t, "csv", path, "--dry-run", "--default-year", "2024")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"date":"2024-03-05T00:00:00Z"`)
}

func TestCSVCmd_ImportsIntoSQLite(t *testing.T) {
	clearEnv(t)
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	t.Setenv("DATABASE_URL", "sqlite://"+dbPath)
	path := writeCSV(t, ledgerCSV)

	stdout, _, err := runCmd(t, "csv", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Rows read: 3, imported: 2, failed: 1")

	repo, err := storage.NewSQLiteRepository(dbPath)
	require.NoError(t, err)
	defer repo.Close()

	ops, err := repo.ListOperations(context.Background())
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "INV-5.3", ops[0].InvoiceNumber)
	assert.Equal(t, "INV-01.03.25", ops[1].InvoiceNumber)
}

func TestCSVCmd_SemicolonDelimiter(t *testing.T) {
	clearEnv(t)
	path := writeCSV(t, "Invoice;Revenue;Paid\nINV-1.1;1.234,5;yes\n")

	stdout, _, err := runCmd(t, "csv", path, "--dry-run", "--delimiter", ";")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"revenue":1234.5`)
	assert.Contains(t, stdout, `"isPaid":true`)
}

func TestCSVCmd_Errors(t *testing.T) {
	clearEnv(t)

	_, _, err := runCmd(t, "csv", filepath.Join(t.TempDir(), "missing.csv"), "--dry-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening csv")

	path := writeCSV(t, ledgerCSV)
	_, _, err = runCmd(t, "csv", path, "--dry-run", "--delimiter", ";;")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single character")

	_, _, err = runCmd(t, "csv", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
}

func TestSheetsCmd_RequiresSpreadsheet(t *testing.T) {
	clearEnv(t)

	_, _, err := runCmd(t, "sheets", "--dry-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Google Spreadsheet ID is required")
	assert.Contains(t, err.Error(), "Google Sheet range is required")
}
