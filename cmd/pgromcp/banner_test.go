package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintBanner_NoColor(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	printBanner(&buf, false)

	out := buf.String()
	if strings.Contains(out, "\033[") {
		t.Error("no-color banner must not contain ANSI escape codes")
	}
	if !strings.Contains(out, "_ __") {
		t.Errorf("unexpected banner content:\n%s", out)
	}
}

func TestPrintBanner_Color(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	printBanner(&buf, true)

	out := buf.String()
	if !strings.Contains(out, "\033[1;36m") {
		t.Error("color banner must contain ANSI escape codes")
	}
	if !strings.Contains(out, "\033[0m") {
		t.Error("color banner must reset after each line")
	}
}
