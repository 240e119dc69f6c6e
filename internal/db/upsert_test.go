package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:        "filing_packages",
		Columns:      []string{"run_id", "filer_id"},
		ConflictKeys: []string{"run_id", "filer_id"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:        "filing_packages",
		ConflictKeys: []string{"run_id"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:   "filing_packages",
		Columns: []string{"run_id", "filer_id"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestQuoteAndJoin(t *testing.T) {
	result := quoteAndJoin([]string{"run_id", "filer_id", "package"})
	assert.Equal(t, `"run_id", "filer_id", "package"`, result)
}

func TestUpsertSQLReplacesNonKeyColumns(t *testing.T) {
	cfg := UpsertConfig{
		Table:        "filing_packages",
		Columns:      []string{"run_id", "filer_id", "ready_to_file", "package"},
		ConflictKeys: []string{"run_id", "filer_id"},
	}
	sql := cfg.upsertSQL("_tmp_upsert_filing_packages")

	assert.Contains(t, sql, `INSERT INTO "filing_packages"`)
	assert.Contains(t, sql, `ON CONFLICT ("run_id", "filer_id")`)
	assert.Contains(t, sql, `"ready_to_file" = EXCLUDED."ready_to_file"`)
	assert.Contains(t, sql, `"package" = EXCLUDED."package"`)
	assert.NotContains(t, sql, `"run_id" = EXCLUDED`)
}
