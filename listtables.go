package pgromcp

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// Catalog order, not alphabetical. Callers that need deterministic ordering
// sort the result themselves.
const listTablesSQL = `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = $1
  AND table_type = 'BASE TABLE';
`

// ListTables returns the names of user tables in the configured schema.
// Enumerated fresh on every call — never cached — under the same read-only
// transaction discipline as Query.
func (e *Engine) ListTables(ctx context.Context, input ListTablesInput) (*ListTablesOutput, error) {
	startTime := time.Now()

	release, serr := e.acquireSlot(ctx, "ListTables")
	if serr != nil {
		return nil, serr
	}
	defer release()

	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(e.config.Query.ListTablesTimeoutSeconds)*time.Second)
	defer cancel()

	conn, aerr := e.acquireConn(queryCtx)
	if aerr != nil {
		return nil, aerr
	}
	defer conn.Release()

	tx, err := conn.BeginTx(queryCtx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, classifyQueryErr(err)
	}
	defer tx.Rollback(context.WithoutCancel(ctx))

	rows, err := tx.Query(queryCtx, listTablesSQL, e.config.Schema)
	if err != nil {
		return nil, classifyQueryErr(err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, classifyQueryErr(err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyQueryErr(err)
	}

	e.logger.Info().
		Str("schema", e.config.Schema).
		Dur("duration", time.Since(startTime)).
		Int("table_count", len(tables)).
		Msg("ListTables executed")

	return &ListTablesOutput{Schema: e.config.Schema, Tables: tables}, nil
}
