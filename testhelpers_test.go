package pgromcp_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	pgromcp "github.com/kvanryn/pgromcp"
	"github.com/rs/zerolog"
)

// Integration tests run against a disposable database named by
// PGROMCP_TEST_DATABASE_URL. The engine itself cannot write, so fixtures go
// through a raw pgx connection.
const testDBEnv = "PGROMCP_TEST_DATABASE_URL"

func testConnString(t *testing.T) string {
	t.Helper()
	connStr := os.Getenv(testDBEnv)
	if connStr == "" {
		t.Skipf("%s not set, skipping integration test", testDBEnv)
	}
	return connStr
}

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func defaultConfig() pgromcp.Config {
	return pgromcp.Config{
		Pool: pgromcp.PoolConfig{MaxConns: 5},
		Query: pgromcp.QueryConfig{
			DefaultTimeoutSeconds:       30,
			ListTablesTimeoutSeconds:    10,
			DescribeTableTimeoutSeconds: 10,
			MaxSQLLength:                100000,
			MaxResultLength:             100000,
		},
	}
}

func newTestEngine(t *testing.T, config pgromcp.Config) (*pgromcp.Engine, string) {
	t.Helper()
	connStr := testConnString(t)
	ctx := context.Background()
	eng, err := pgromcp.New(ctx, connStr, config, testLogger())
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(func() { eng.Close(ctx) })
	return eng, connStr
}

// execDirect runs DDL/DML over a plain connection, bypassing the read-only
// engine. Used for fixtures and for verifying that writes did not land.
func execDirect(t *testing.T, connStr string, statements ...string) {
	t.Helper()
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		t.Fatalf("fixture connection failed: %v", err)
	}
	defer conn.Close(ctx)
	for _, sql := range statements {
		if _, err := conn.Exec(ctx, sql); err != nil {
			t.Fatalf("fixture statement failed: %v\nsql: %s", err, sql)
		}
	}
}

// countRows returns the row count of a table via a plain connection.
func countRows(t *testing.T, connStr, table string) int {
	t.Helper()
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		t.Fatalf("count connection failed: %v", err)
	}
	defer conn.Close(ctx)
	var n int
	if err := conn.QueryRow(ctx, "SELECT count(*) FROM "+table).Scan(&n); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return n
}

// setupTable drops and recreates a fixture table. Each test owns distinctly
// named tables so tests can share one database and still run in parallel.
func setupTable(t *testing.T, connStr, table, ddl string, fixtures ...string) {
	t.Helper()
	statements := append([]string{"DROP TABLE IF EXISTS " + table, ddl}, fixtures...)
	execDirect(t, connStr, statements...)
	t.Cleanup(func() {
		execDirect(t, connStr, "DROP TABLE IF EXISTS "+table)
	})
}
