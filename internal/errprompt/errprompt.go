// Package errprompt appends agent guidance to database error messages.
// Rules are regex patterns over the error text; every matching rule's
// message is appended so the agent can self-correct on the next call.
package errprompt

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule maps an error message pattern to a guidance message.
type Rule struct {
	Pattern string
	Message string
}

type compiledRule struct {
	pattern *regexp.Regexp
	message string
}

// Matcher checks error messages against patterns and returns guidance prompts.
type Matcher struct {
	rules []compiledRule
}

// DefaultRules returns the built-in guidance rules. The undefined-table rule
// points agents at the information_schema listing query instead of letting
// them guess table names.
func DefaultRules() []Rule {
	return []Rule{
		{
			Pattern: `relation ".*" does not exist`,
			Message: "Hint: check available tables with: SELECT table_name FROM information_schema.tables WHERE table_schema = 'public'",
		},
		{
			Pattern: `cannot execute .* in a read-only transaction`,
			Message: "This server is read-only. Only SELECT-style queries are supported; writes are rejected by the database and rolled back.",
		},
	}
}

// NewMatcher compiles the given rules. Returns an error on an invalid regex.
func NewMatcher(rules []Rule) (*Matcher, error) {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("errprompt: invalid regex pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, message: r.Message}
	}
	return &Matcher{rules: compiled}, nil
}

// Match checks the error message against all rules (top to bottom) and
// returns the matching guidance messages joined with newlines. Empty string
// when nothing matches.
func (m *Matcher) Match(errMsg string) string {
	var matches []string
	for _, rule := range m.rules {
		if rule.pattern.MatchString(errMsg) {
			matches = append(matches, rule.message)
		}
	}
	return strings.Join(matches, "\n")
}

// MatchedPatterns returns the regex patterns that matched, for log fields.
// Nil when nothing matches.
func (m *Matcher) MatchedPatterns(errMsg string) []string {
	var patterns []string
	for _, rule := range m.rules {
		if rule.pattern.MatchString(errMsg) {
			patterns = append(patterns, rule.pattern.String())
		}
	}
	return patterns
}
