package pgromcp

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

func TestConvertValueNullStaysPresent(t *testing.T) {
	t.Parallel()
	got, err := convertValue(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %v", got)
	}

	// A row map with a nil value must serialize the key explicitly.
	row := map[string]interface{}{"col": got}
	b, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(b) != `{"col":null}` {
		t.Errorf("expected explicit null, got %s", b)
	}
}

func TestConvertValuePrimitives(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   interface{}
		want interface{}
	}{
		{int32(42), int32(42)},
		{int64(42), int64(42)},
		{true, true},
		{"hello", "hello"},
		{float64(1.5), float64(1.5)},
	}
	for _, tc := range cases {
		got, err := convertValue(tc.in)
		if err != nil {
			t.Fatalf("unexpected error for %v: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("convertValue(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestConvertValueFloatSpecials(t *testing.T) {
	t.Parallel()
	for in, want := range map[float64]string{
		math.NaN():    "NaN",
		math.Inf(1):   "Infinity",
		math.Inf(-1):  "-Infinity",
	} {
		got, err := convertValue(in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Errorf("convertValue(%v) = %v, want %q", in, got, want)
		}
	}
}

func TestConvertValueTimestamp(t *testing.T) {
	t.Parallel()
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := convertValue(ts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "2024-01-01T00:00:00Z" {
		t.Errorf("expected RFC3339 string, got %v", got)
	}
}

func TestConvertValueBytesBase64(t *testing.T) {
	t.Parallel()
	got, err := convertValue([]byte{0xde, 0xad, 0xbe, 0xef})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "3q2+7w==" {
		t.Errorf("expected base64, got %v", got)
	}
}

func TestConvertValueUUID(t *testing.T) {
	t.Parallel()
	var id [16]byte
	for i := range id {
		id[i] = byte(i)
	}
	got, err := convertValue(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "00010203-0405-0607-0809-0a0b0c0d0e0f" {
		t.Errorf("unexpected uuid string: %v", got)
	}
}

func TestConvertValueTimeOfDay(t *testing.T) {
	t.Parallel()
	v := pgtype.Time{Microseconds: (13*3600 + 30*60 + 5) * 1_000_000, Valid: true}
	got, err := convertValue(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "13:30:05" {
		t.Errorf("expected 13:30:05, got %v", got)
	}
}

func TestConvertValueRange(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   pgtype.Range[interface{}]
		want string
	}{
		{
			"half-open int range",
			pgtype.Range[interface{}]{
				Lower: int64(1), Upper: int64(10),
				LowerType: pgtype.Inclusive, UpperType: pgtype.Exclusive,
				Valid: true,
			},
			"[1,10)",
		},
		{
			"unbounded lower",
			pgtype.Range[interface{}]{
				Upper:     int64(5),
				LowerType: pgtype.Unbounded, UpperType: pgtype.Exclusive,
				Valid: true,
			},
			"(,5)",
		},
		{
			"empty range",
			pgtype.Range[interface{}]{LowerType: pgtype.Empty, UpperType: pgtype.Empty, Valid: true},
			"empty",
		},
	}
	for _, tc := range cases {
		got, err := convertValue(tc.in)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("%s: got %v, want %q", tc.name, got, tc.want)
		}
	}
}

func TestConvertValueGeometry(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   interface{}
		want string
	}{
		{"point", pgtype.Point{P: pgtype.Vec2{X: 1.5, Y: 2}, Valid: true}, "(1.5,2)"},
		{"line", pgtype.Line{A: 1, B: -1, C: 0, Valid: true}, "{1,-1,0}"},
		{"lseg", pgtype.Lseg{P: [2]pgtype.Vec2{{X: 0, Y: 0}, {X: 1, Y: 1}}, Valid: true}, "[(0,0),(1,1)]"},
		{"box", pgtype.Box{P: [2]pgtype.Vec2{{X: 2, Y: 2}, {X: 0, Y: 0}}, Valid: true}, "(2,2),(0,0)"},
		{"open path", pgtype.Path{P: []pgtype.Vec2{{X: 0, Y: 0}, {X: 1, Y: 2}}, Closed: false, Valid: true}, "[(0,0),(1,2)]"},
		{"closed path", pgtype.Path{P: []pgtype.Vec2{{X: 0, Y: 0}, {X: 1, Y: 2}}, Closed: true, Valid: true}, "((0,0),(1,2))"},
		{"polygon", pgtype.Polygon{P: []pgtype.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}, Valid: true}, "((0,0),(1,0),(0,1))"},
		{"circle", pgtype.Circle{P: pgtype.Vec2{X: 1, Y: 1}, R: 2.5, Valid: true}, "<(1,1),2.5>"},
	}
	for _, tc := range cases {
		got, err := convertValue(tc.in)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("%s: got %v, want %q", tc.name, got, tc.want)
		}
	}
}

func TestConvertValueBits(t *testing.T) {
	t.Parallel()
	got, err := convertValue(pgtype.Bits{Bytes: []byte{0b10110000}, Len: 4, Valid: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "1011" {
		t.Errorf("got %v, want 1011", got)
	}
}

func TestConvertValueInvalidRendersNull(t *testing.T) {
	t.Parallel()
	for _, in := range []interface{}{
		pgtype.Point{Valid: false},
		pgtype.Range[interface{}]{Valid: false},
		pgtype.Bits{Valid: false},
		pgtype.Numeric{Valid: false},
	} {
		got, err := convertValue(in)
		if err != nil {
			t.Fatalf("unexpected error for %T: %v", in, err)
		}
		if got != nil {
			t.Errorf("invalid %T should render null, got %v", in, got)
		}
	}
}

func TestConvertValueNestedCollections(t *testing.T) {
	t.Parallel()
	in := map[string]interface{}{
		"ts":   time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		"list": []interface{}{int64(1), nil},
	}
	got, err := convertValue(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := got.(map[string]interface{})
	if m["ts"] != "2024-06-01T12:00:00Z" {
		t.Errorf("expected converted nested timestamp, got %v", m["ts"])
	}
	list := m["list"].([]interface{})
	if list[0] != int64(1) || list[1] != nil {
		t.Errorf("unexpected nested list: %v", list)
	}
}

func TestConvertValueUnsupportedType(t *testing.T) {
	t.Parallel()
	type opaque struct{ x int }
	_, err := convertValue(opaque{x: 1})
	if err == nil {
		t.Fatal("expected error for unsupported type")
	}
}

func TestSerializationErrNamesColumnAndType(t *testing.T) {
	t.Parallel()
	type opaque struct{ x int }
	err := serializationErr("payload", opaque{})
	if err.Kind != KindSerialization {
		t.Errorf("expected serialization kind, got %s", err.Kind)
	}
	if !strings.Contains(err.Error(), `"payload"`) {
		t.Errorf("expected column name in message, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "opaque") {
		t.Errorf("expected Go type in message, got %q", err.Error())
	}
}

func TestTruncateForLog(t *testing.T) {
	t.Parallel()
	if got := truncateForLog("short", 10); got != "short" {
		t.Errorf("expected passthrough, got %q", got)
	}
	got := truncateForLog(strings.Repeat("x", 300), 200)
	if len(got) != 200+len("...[truncated]") {
		t.Errorf("unexpected truncated length %d", len(got))
	}
	// Truncation must not split a multi-byte rune.
	got = truncateForLog("aé"+strings.Repeat("b", 10), 2)
	if got != "a...[truncated]" {
		t.Errorf("truncation split a rune: %q", got)
	}
}
