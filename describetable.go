package pgromcp

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

const describeColumnsSQL = `
SELECT
    column_name,
    data_type,
    CASE is_nullable WHEN 'YES' THEN true ELSE false END AS nullable,
    ordinal_position
FROM information_schema.columns
WHERE table_schema = $1
  AND table_name = $2
ORDER BY ordinal_position;
`

// DescribeTable returns the ordered column descriptors for one table in the
// configured schema. An unknown table yields an empty Columns slice, not an
// error — the catalog query simply returns zero rows. (A table that exists
// with zero columns would look identical, but cannot occur in practice.)
func (e *Engine) DescribeTable(ctx context.Context, input DescribeTableInput) (*DescribeTableOutput, error) {
	startTime := time.Now()

	release, serr := e.acquireSlot(ctx, "DescribeTable")
	if serr != nil {
		return nil, serr
	}
	defer release()

	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(e.config.Query.DescribeTableTimeoutSeconds)*time.Second)
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

	rows, err := tx.Query(queryCtx, describeColumnsSQL, e.config.Schema, input.Table)
	if err != nil {
		return nil, classifyQueryErr(err)
	}
	defer rows.Close()

	columns := []ColumnInfo{}
	for rows.Next() {
		var col ColumnInfo
		if err := rows.Scan(&col.Name, &col.DataType, &col.Nullable, &col.OrdinalPosition); err != nil {
			return nil, classifyQueryErr(err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyQueryErr(err)
	}

	e.logger.Info().
		Str("schema", e.config.Schema).
		Str("table", input.Table).
		Dur("duration", time.Since(startTime)).
		Int("column_count", len(columns)).
		Msg("DescribeTable executed")

	return &DescribeTableOutput{Schema: e.config.Schema, Name: input.Table, Columns: columns}, nil
}
