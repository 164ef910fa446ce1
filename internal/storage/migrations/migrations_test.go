package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	pg, err := Postgres()
	require.NoError(t, err)
	require.NotEmpty(t, pg)
	assert.Equal(t, "001_results.sql", pg[0].Name)
	assert.Contains(t, pg[0].SQL, "backtest_trades")

	ch, err := Clickhouse()
	require.NoError(t, err)
	require.NotEmpty(t, ch)
	stmts, err := SplitStatements(ch[0].SQL)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS ticks")
}

func TestSplitStatements(t *testing.T) {
	stmts, err := SplitStatements("-- header\nCREATE TABLE a (x Int8);\n\nCREATE TABLE b (y Int8);\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"CREATE TABLE a (x Int8)", "CREATE TABLE b (y Int8)"}, stmts)

	_, err = SplitStatements("INSERT INTO a VALUES ('x;y');")
	assert.Error(t, err)

	stmts, err = SplitStatements("SELECT 'it''s';")
	require.NoError(t, err)
	assert.Len(t, stmts, 1)
}
