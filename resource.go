package pgromcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// SchemaPath is the fixed segment of the table schema resource URI.
const SchemaPath = "schema"

// tableSchemaTemplate is the URI template for per-table schema resources.
const tableSchemaTemplate = "postgres://" + SchemaPath + "/{table}"

// RegisterMCPResources registers the postgres://schema/{table} resource
// template. Reading it returns the table's column descriptors as JSON,
// enumerated fresh on every read.
func RegisterMCPResources(mcpServer *server.MCPServer, eng *Engine) {
	template := mcp.NewResourceTemplate(tableSchemaTemplate, "table_schema",
		mcp.WithTemplateDescription("Column definitions (name, data type, nullability) for one table"),
		mcp.WithTemplateMIMEType("application/json"),
	)

	mcpServer.AddResourceTemplate(template, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		table, err := tableFromURI(req.Params.URI)
		if err != nil {
			return nil, err
		}
		output, err := eng.DescribeTable(ctx, DescribeTableInput{Table: table})
		if err != nil {
			return nil, err
		}
		jsonBytes, err := json.MarshalIndent(output.Columns, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal table schema: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

// tableFromURI extracts the table name from a postgres://schema/{table} URI.
func tableFromURI(uri string) (string, error) {
	prefix := "postgres://" + SchemaPath + "/"
	if !strings.HasPrefix(uri, prefix) {
		return "", fmt.Errorf("invalid resource URI %q: expected %s{table}", uri, prefix)
	}
	table := strings.TrimPrefix(uri, prefix)
	if table == "" || strings.Contains(table, "/") {
		return "", fmt.Errorf("invalid resource URI %q: expected %s{table}", uri, prefix)
	}
	return table, nil
}

// ResourceBaseURL derives a display-safe postgres:// URL from the connection
// string: the password is removed, user, host, port, and database are kept.
// Falls back to a placeholder when the connection string is not URL-shaped.
func ResourceBaseURL(connString string) string {
	const fallback = "postgres://localhost/database"
	u, err := url.Parse(connString)
	if err != nil || u.Host == "" {
		return fallback
	}
	safe := &url.URL{Scheme: "postgres", Host: u.Host, Path: u.Path}
	if u.User != nil {
		safe.User = url.User(u.User.Username())
	}
	return safe.String()
}
