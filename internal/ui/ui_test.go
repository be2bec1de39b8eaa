package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var b bytes.Buffer
	prevOut, prevColor := Out, color.NoColor
	Out, color.NoColor = &b, true
	t.Cleanup(func() { Out, color.NoColor = prevOut, prevColor })
	return &b
}

func TestTableAligns(t *testing.T) {
	b := capture(t)
	Table([]string{"ADDRESS", "FREQ"}, [][]string{
		{"0xabc", "3"},
		{"0x1", "N/A"},
	})

	lines := strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines: %q", len(lines), b.String())
	}
	if lines[0] != "  ADDRESS  FREQ" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[3] != "  0x1      N/A" {
		t.Errorf("row = %q", lines[3])
	}
}

func TestTableEmpty(t *testing.T) {
	b := capture(t)
	Table([]string{"A"}, nil)
	if b.Len() != 0 {
		t.Errorf("expected no output, got %q", b.String())
	}
}

func TestBanner(t *testing.T) {
	b := capture(t)
	Banner("counterparties")
	if !strings.Contains(b.String(), "ripple: counterparties") {
		t.Errorf("banner = %q", b.String())
	}
}

func TestKV(t *testing.T) {
	b := capture(t)
	KV("nodes", 3)
	if !strings.Contains(b.String(), "nodes:") || !strings.HasSuffix(b.String(), " 3\n") {
		t.Errorf("kv = %q", b.String())
	}
}
