// Package classify derives logging metadata from SQL text using PostgreSQL's
// actual C parser (pg_query). Classification is strictly observational: the
// engine never rejects a statement based on it. Mutation is prevented by the
// read-only transaction, which is the actual trust boundary.
package classify

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Info summarises a SQL string for structured log fields.
type Info struct {
	// Kind is the statement verb of the first statement: "select", "insert",
	// "update", "delete", "explain", "show", "set", or "other". "invalid" when the
	// string does not parse — the statement is still sent to the database,
	// which produces the authoritative error.
	Kind string
	// StatementCount is the number of top-level statements.
	StatementCount int
	// ReadOnly is true when every statement is a read (select/explain/show).
	ReadOnly bool
}

// Statement parses sql and returns its classification. Never returns an
// error: unparseable input yields {Kind: "invalid"}.
func Statement(sql string) Info {
	result, err := pg_query.Parse(sql)
	if err != nil || len(result.Stmts) == 0 {
		return Info{Kind: "invalid"}
	}

	info := Info{
		Kind:           kindOf(result.Stmts[0].Stmt),
		StatementCount: len(result.Stmts),
		ReadOnly:       true,
	}
	for _, stmt := range result.Stmts {
		switch kindOf(stmt.Stmt) {
		case "select", "explain", "show", "set":
		default:
			info.ReadOnly = false
		}
	}
	return info
}

func kindOf(node *pg_query.Node) string {
	switch node.Node.(type) {
	case *pg_query.Node_SelectStmt:
		return "select"
	case *pg_query.Node_InsertStmt:
		return "insert"
	case *pg_query.Node_UpdateStmt:
		return "update"
	case *pg_query.Node_DeleteStmt:
		return "delete"
	case *pg_query.Node_ExplainStmt:
		return "explain"
	case *pg_query.Node_VariableShowStmt:
		return "show"
	case *pg_query.Node_VariableSetStmt:
		return "set"
	default:
		return "other"
	}
}
