// Package pgromcp provides strictly read-only PostgreSQL access for AI
// agents through the Model Context Protocol (MCP).
//
// It exposes a query tool plus schema discovery (ListTables, DescribeTable,
// and a postgres://schema/{table} resource). Every caller-supplied SQL
// statement runs inside a transaction opened with AccessMode READ ONLY and
// is always rolled back — the database engine itself rejects mutating
// statements, so enforcement does not depend on inspecting the SQL text.
// The statement classifier (pg_query) is used for logging metadata only and
// never gates execution.
//
// # Library Usage
//
//	eng, err := pgromcp.New(ctx, connString, pgromcp.Config{
//		Pool: pgromcp.PoolConfig{MinConns: 1, MaxConns: 10},
//		Query: pgromcp.QueryConfig{
//			DefaultTimeoutSeconds:       30,
//			ListTablesTimeoutSeconds:    10,
//			DescribeTableTimeoutSeconds: 10,
//		},
//	}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//
//	out := eng.Query(ctx, pgromcp.QueryInput{SQL: "SELECT * FROM users LIMIT 10"})
//	if out.Error != "" {
//		// out.ErrorKind distinguishes connection_error, pool_exhausted,
//		// query_error, and serialization_error. pool_exhausted is the only
//		// retryable kind.
//	}
//
// Or register everything on an MCP server:
//
//	pgromcp.RegisterMCPTools(mcpServer, eng)
//	pgromcp.RegisterMCPResources(mcpServer, eng)
//
// Callers only ever check QueryOutput.Error; Query never returns a Go error
// and never panics on bad SQL, so one misbehaving caller cannot take the
// serving process down.
package pgromcp
