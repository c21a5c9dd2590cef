package pgromcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// mathResult is the payload returned by the arithmetic demo tools.
type mathResult struct {
	Operation string  `json:"operation"`
	A         float64 `json:"a"`
	B         float64 `json:"b"`
	Result    float64 `json:"result,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// RegisterMathTools registers four arithmetic demo tools (add, subtract,
// multiply, divide). They exist to verify runtime connectivity without
// touching the database.
func RegisterMathTools(mcpServer *server.MCPServer, eng *Engine) {
	ops := []struct {
		name string
		desc string
		fn   func(a, b float64) mathResult
	}{
		{"math_add", "Add two numbers together.", func(a, b float64) mathResult {
			return mathResult{Operation: "add", A: a, B: b, Result: a + b}
		}},
		{"math_subtract", "Subtract b from a.", func(a, b float64) mathResult {
			return mathResult{Operation: "subtract", A: a, B: b, Result: a - b}
		}},
		{"math_multiply", "Multiply two numbers together.", func(a, b float64) mathResult {
			return mathResult{Operation: "multiply", A: a, B: b, Result: a * b}
		}},
		{"math_divide", "Divide a by b. b must not be zero.", func(a, b float64) mathResult {
			if b == 0 {
				return mathResult{Operation: "divide", A: a, B: b, Error: "Division by zero is not allowed"}
			}
			return mathResult{Operation: "divide", A: a, B: b, Result: a / b}
		}},
	}

	for _, op := range ops {
		fn := op.fn
		tool := mcp.NewTool(op.name,
			mcp.WithDescription(op.desc),
			mcp.WithNumber("a", mcp.Required(), mcp.Description("The first number")),
			mcp.WithNumber("b", mcp.Required(), mcp.Description("The second number")),
			mcp.WithReadOnlyHintAnnotation(true),
		)
		mcpServer.AddTool(tool, eng.loggedToolHandler(op.name, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			a, err := req.RequireFloat("a")
			if err != nil {
				return mcp.NewToolResultError("a parameter is required and must be a number"), nil
			}
			b, err := req.RequireFloat("b")
			if err != nil {
				return mcp.NewToolResultError("b parameter is required and must be a number"), nil
			}
			jsonBytes, err := json.Marshal(fn(a, b))
			if err != nil {
				return mcp.NewToolResultError("failed to marshal result"), nil
			}
			return mcp.NewToolResultText(string(jsonBytes)), nil
		}))
	}
}
