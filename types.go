package pgromcp

// QueryInput is the input for the Query tool. The SQL string is executed
// verbatim — there is no bind-parameter substitution.
type QueryInput struct {
	SQL string `json:"sql"`
}

// QueryOutput is the output of the Query tool. All errors (Postgres errors,
// pool errors, serialization failures) are placed in Error with their
// category in ErrorKind; a non-empty Error always means Rows is nil — no
// partial result is ever returned.
type QueryOutput struct {
	Columns   []string                 `json:"columns"`
	Rows      []map[string]interface{} `json:"rows"`
	RowCount  int                      `json:"row_count"`
	Error     string                   `json:"error,omitempty"`
	ErrorKind ErrorKind                `json:"error_kind,omitempty"`
	Retryable bool                     `json:"retryable,omitempty"`
}

// ListTablesInput is the input for the ListTables tool.
type ListTablesInput struct{}

// ListTablesOutput is the output of the ListTables tool. Tables contains
// user table names from the configured schema in catalog-reported order.
type ListTablesOutput struct {
	Schema string   `json:"schema"`
	Tables []string `json:"tables"`
}

// DescribeTableInput is the input for the DescribeTable tool.
type DescribeTableInput struct {
	Table string `json:"table"`
}

// ColumnInfo describes a single column of a table.
type ColumnInfo struct {
	Name            string `json:"name"`
	DataType        string `json:"data_type"`
	Nullable        bool   `json:"nullable"`
	OrdinalPosition int    `json:"ordinal_position"`
}

// DescribeTableOutput is the output of the DescribeTable tool. For an
// unknown table Columns is empty — the catalog query yields zero rows, which
// is deliberately not an error.
type DescribeTableOutput struct {
	Schema  string       `json:"schema"`
	Name    string       `json:"name"`
	Columns []ColumnInfo `json:"columns"`
}
