package errprompt

import (
	"strings"
	"testing"
)

func TestMatchSingleRule(t *testing.T) {
	t.Parallel()
	m, err := NewMatcher([]Rule{
		{Pattern: "does not exist", Message: "check table names"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := m.Match(`relation "users" does not exist`)
	if got != "check table names" {
		t.Errorf("expected prompt, got %q", got)
	}
}

func TestMatchMultipleRulesJoined(t *testing.T) {
	t.Parallel()
	m, err := NewMatcher([]Rule{
		{Pattern: "does not exist", Message: "first"},
		{Pattern: "relation", Message: "second"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := m.Match(`relation "users" does not exist`)
	if got != "first\nsecond" {
		t.Errorf("expected both prompts joined, got %q", got)
	}
}

func TestMatchNoRuleMatches(t *testing.T) {
	t.Parallel()
	m, err := NewMatcher([]Rule{
		{Pattern: "does not exist", Message: "hint"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := m.Match("syntax error at or near SELEC"); got != "" {
		t.Errorf("expected no prompt, got %q", got)
	}
	if patterns := m.MatchedPatterns("syntax error"); patterns != nil {
		t.Errorf("expected nil patterns, got %v", patterns)
	}
}

func TestInvalidPattern(t *testing.T) {
	t.Parallel()
	_, err := NewMatcher([]Rule{{Pattern: "([", Message: "x"}})
	if err == nil {
		t.Fatal("expected error for invalid regex")
	}
}

func TestDefaultRulesCoverUndefinedTable(t *testing.T) {
	t.Parallel()
	m, err := NewMatcher(DefaultRules())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := m.Match(`ERROR: relation "orders" does not exist (SQLSTATE 42P01)`)
	if !strings.Contains(got, "information_schema.tables") {
		t.Errorf("expected information_schema hint, got %q", got)
	}

	got = m.Match(`ERROR: cannot execute INSERT in a read-only transaction (SQLSTATE 25006)`)
	if !strings.Contains(got, "read-only") {
		t.Errorf("expected read-only guidance, got %q", got)
	}
}
