package pgromcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/netip"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kvanryn/pgromcp/internal/classify"
)

// Query executes the caller-supplied SQL verbatim inside a transaction opened
// with AccessMode READ ONLY and always rolls it back, success or failure.
// The database engine rejects any mutating statement inside such a
// transaction — that is the enforcement mechanism, not SQL inspection.
//
// All errors are converted to output.Error/output.ErrorKind; callers never
// see a Go error. Results are all-or-nothing: a non-empty Error means no rows.
func (e *Engine) Query(ctx context.Context, input QueryInput) *QueryOutput {
	startTime := time.Now()
	sql := input.SQL

	release, serr := e.acquireSlot(ctx, "Query")
	if serr != nil {
		return e.handleError(serr)
	}
	defer release()

	if len(sql) > e.config.Query.MaxSQLLength {
		return e.handleError(queryErr(fmt.Errorf(
			"SQL query too long: %d bytes exceeds maximum of %d bytes", len(sql), e.config.Query.MaxSQLLength)))
	}

	// Classification feeds log fields only; an invalid or mutating statement
	// is still sent to the database, which produces the authoritative error.
	stmtInfo := classify.Statement(sql)

	queryTimeout, timeoutRule := e.timeoutMgr.Resolve(sql)
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	conn, aerr := e.acquireConn(queryCtx)
	if aerr != nil {
		return e.handleError(aerr)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(queryCtx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return e.handleError(classifyQueryErr(err))
	}
	// Rollback must still run when the caller disconnected or the query
	// timed out, otherwise the connection goes back to the pool inside an
	// open transaction.
	rollbackCtx := context.WithoutCancel(ctx)
	defer tx.Rollback(rollbackCtx)

	rows, err := tx.Query(queryCtx, sql)
	if err != nil {
		return e.handleError(classifyQueryErr(err))
	}

	result, err := e.collectRows(rows)
	if err != nil {
		return e.handleError(classifyQueryErr(err))
	}

	// Never commit. Roll back eagerly so the connection is clean before
	// serialization work; the deferred rollback is then a no-op.
	tx.Rollback(rollbackCtx)

	result.Rows = e.sanitizer.SanitizeRows(result.Rows)
	e.truncateIfNeeded(result)

	logEvent := e.logger.Info().
		Str("sql", truncateForLog(sql, 200)).
		Str("stmt_kind", stmtInfo.Kind).
		Dur("duration", time.Since(startTime)).
		Int("row_count", result.RowCount)
	if stmtInfo.StatementCount > 1 {
		logEvent = logEvent.Int("stmt_count", stmtInfo.StatementCount)
	}
	if !stmtInfo.ReadOnly {
		logEvent = logEvent.Bool("read_only_stmt", false)
	}
	if timeoutRule != "" {
		logEvent = logEvent.Str("timeout_rule", timeoutRule)
	}
	if e.sanitizer.HasRules() {
		logEvent = logEvent.Bool("sanitized", true)
	}
	logEvent.Msg("query executed")

	return result
}

// collectRows reads all rows from pgx.Rows into a QueryOutput, converting
// every value to its transport-safe form. A value with no conversion rule
// aborts the whole request with a serialization error.
func (e *Engine) collectRows(rows pgx.Rows) (*QueryOutput, error) {
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = fd.Name
	}

	resultRows := make([]map[string]interface{}, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			converted, err := convertValue(values[i])
			if err != nil {
				return nil, serializationErr(col, values[i])
			}
			// NULL columns stay present in the map as explicit nulls.
			row[col] = converted
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &QueryOutput{Columns: columns, Rows: resultRows, RowCount: len(resultRows)}, nil
}

// convertValue converts a pgx-returned value to a JSON-friendly Go type.
// Numeric types stay numeric, character types become strings, date/time
// types become RFC 3339 strings, binary becomes base64, null stays nil.
func convertValue(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return val, nil
	case float32:
		return convertFloat(float64(val), val), nil
	case float64:
		return convertFloat(val, val), nil
	case time.Time:
		return val.Format(time.RFC3339Nano), nil
	case time.Duration:
		return val.String(), nil
	case netip.Prefix:
		return val.String(), nil
	case netip.Addr:
		return val.String(), nil
	case net.HardwareAddr:
		return val.String(), nil
	case pgtype.Numeric:
		if !val.Valid {
			return nil, nil
		}
		if val.NaN {
			return "NaN", nil
		}
		if val.InfinityModifier == pgtype.Infinity {
			return "Infinity", nil
		}
		if val.InfinityModifier == pgtype.NegativeInfinity {
			return "-Infinity", nil
		}
		b, err := val.MarshalJSON()
		if err != nil {
			return nil, err
		}
		return json.Number(b), nil
	case pgtype.Time:
		if !val.Valid {
			return nil, nil
		}
		return formatMicroseconds(val.Microseconds), nil
	case pgtype.Interval:
		if !val.Valid {
			return nil, nil
		}
		return formatInterval(val), nil
	case pgtype.Range[interface{}]:
		if !val.Valid {
			return nil, nil
		}
		return formatRange(val)
	case pgtype.Point:
		if !val.Valid {
			return nil, nil
		}
		return fmt.Sprintf("(%g,%g)", val.P.X, val.P.Y), nil
	case pgtype.Line:
		if !val.Valid {
			return nil, nil
		}
		return fmt.Sprintf("{%g,%g,%g}", val.A, val.B, val.C), nil
	case pgtype.Lseg:
		if !val.Valid {
			return nil, nil
		}
		return fmt.Sprintf("[(%g,%g),(%g,%g)]", val.P[0].X, val.P[0].Y, val.P[1].X, val.P[1].Y), nil
	case pgtype.Box:
		if !val.Valid {
			return nil, nil
		}
		return fmt.Sprintf("(%g,%g),(%g,%g)", val.P[0].X, val.P[0].Y, val.P[1].X, val.P[1].Y), nil
	case pgtype.Path:
		if !val.Valid {
			return nil, nil
		}
		joined := joinPoints(val.P)
		if val.Closed {
			return "(" + joined + ")", nil
		}
		return "[" + joined + "]", nil
	case pgtype.Polygon:
		if !val.Valid {
			return nil, nil
		}
		return "(" + joinPoints(val.P) + ")", nil
	case pgtype.Circle:
		if !val.Valid {
			return nil, nil
		}
		return fmt.Sprintf("<(%g,%g),%g>", val.P.X, val.P.Y, val.R), nil
	case pgtype.Bits:
		if !val.Valid {
			return nil, nil
		}
		return formatBits(val), nil
	case [16]byte:
		// UUID
		return fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16]), nil
	case []byte:
		// bytea — base64 encode
		return base64.StdEncoding.EncodeToString(val), nil
	case map[string]interface{}:
		result := make(map[string]interface{}, len(val))
		for k, item := range val {
			converted, err := convertValue(item)
			if err != nil {
				return nil, err
			}
			result[k] = converted
		}
		return result, nil
	case []interface{}:
		result := make([]interface{}, len(val))
		for i, item := range val {
			converted, err := convertValue(item)
			if err != nil {
				return nil, err
			}
			result[i] = converted
		}
		return result, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// convertFloat keeps regular floats numeric but renders the IEEE specials as
// strings, since JSON has no representation for them.
func convertFloat(f float64, orig interface{}) interface{} {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	return orig
}

func formatMicroseconds(us int64) string {
	hours := us / 3_600_000_000
	us -= hours * 3_600_000_000
	minutes := us / 60_000_000
	us -= minutes * 60_000_000
	seconds := us / 1_000_000
	us -= seconds * 1_000_000
	if us > 0 {
		return fmt.Sprintf("%02d:%02d:%02d.%06d", hours, minutes, seconds, us)
	}
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

func formatInterval(val pgtype.Interval) string {
	out := ""
	if val.Months != 0 {
		out = fmt.Sprintf("%d mon(s)", val.Months)
	}
	if val.Days != 0 {
		if out != "" {
			out += " "
		}
		out += fmt.Sprintf("%d day(s)", val.Days)
	}
	if val.Microseconds != 0 || out == "" {
		if out != "" {
			out += " "
		}
		out += (time.Duration(val.Microseconds) * time.Microsecond).String()
	}
	return out
}

// formatRange renders a range in PostgreSQL's text notation: bracket style by
// bound inclusivity, unbounded sides left blank, "empty" for the empty range.
func formatRange(val pgtype.Range[interface{}]) (string, error) {
	if val.LowerType == pgtype.Empty {
		return "empty", nil
	}
	var sb strings.Builder
	if val.LowerType == pgtype.Inclusive {
		sb.WriteByte('[')
	} else {
		sb.WriteByte('(')
	}
	if val.LowerType != pgtype.Unbounded {
		lower, err := convertValue(val.Lower)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "%v", lower)
	}
	sb.WriteByte(',')
	if val.UpperType != pgtype.Unbounded {
		upper, err := convertValue(val.Upper)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "%v", upper)
	}
	if val.UpperType == pgtype.Inclusive {
		sb.WriteByte(']')
	} else {
		sb.WriteByte(')')
	}
	return sb.String(), nil
}

func joinPoints(points []pgtype.Vec2) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = fmt.Sprintf("(%g,%g)", p.X, p.Y)
	}
	return strings.Join(parts, ",")
}

// formatBits renders a bit string as '0'/'1' characters, MSB first.
func formatBits(val pgtype.Bits) string {
	result := make([]byte, val.Len)
	for i := int32(0); i < val.Len; i++ {
		byteIdx := i / 8
		bitIdx := 7 - (i % 8)
		if val.Bytes[byteIdx]&(1<<uint(bitIdx)) != 0 {
			result[i] = '1'
		} else {
			result[i] = '0'
		}
	}
	return string(result)
}

// handleError converts any error into a QueryOutput carrying the error
// message and its kind. Matching error_prompts guidance is appended so the
// agent can steer itself on the next call.
func (e *Engine) handleError(err error) *QueryOutput {
	classified := classifyQueryErr(err)
	errMsg := classified.Error()

	prompt := e.errPrompts.Match(errMsg)
	patterns := e.errPrompts.MatchedPatterns(errMsg)

	logEvent := e.logger.Error().Err(err).Str("error_kind", string(classified.Kind))
	if len(patterns) > 0 {
		logEvent = logEvent.Strs("error_prompts", patterns)
	}
	logEvent.Msg("query error")

	if prompt != "" {
		errMsg = errMsg + "\n\n" + prompt
	}
	return &QueryOutput{
		Error:     errMsg,
		ErrorKind: classified.Kind,
		Retryable: classified.Retryable(),
	}
}

// truncateIfNeeded drops oversized results, replacing them with a truncated
// error so the agent narrows its query instead of flooding the context.
func (e *Engine) truncateIfNeeded(output *QueryOutput) {
	jsonBytes, _ := json.Marshal(output.Rows)
	jsonStr := string(jsonBytes)
	if utf8.RuneCountInString(jsonStr) <= e.config.Query.MaxResultLength {
		return
	}
	runes := []rune(jsonStr)
	truncated := string(runes[:e.config.Query.MaxResultLength])
	output.Rows = nil
	output.RowCount = 0
	output.Error = truncated + "...[truncated] Result is too long! Add limits in your query!"
	output.ErrorKind = KindQuery
}

// truncateForLog truncates a string for log output to avoid oversized log entries.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	truncateAt := maxLen
	for truncateAt > 0 && !utf8.RuneStart(s[truncateAt]) {
		truncateAt--
	}
	return s[:truncateAt] + "...[truncated]"
}
