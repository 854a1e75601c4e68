package tui

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != len(bannerLines) {
		t.Fatalf("Expected %d banner lines, got %d", len(bannerLines), len(lines))
	}
	if strings.Contains(buf.String(), "\x1b[") {
		t.Error("A buffer is not a terminal, expected no color codes")
	}
}

func TestNewRenderer(t *testing.T) {
	render, err := NewRenderer(40)
	if err != nil {
		t.Fatalf("NewRenderer failed: %v", err)
	}

	out, err := render("You stand before a **dark** cave.")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(out, "dark") || !strings.Contains(out, "cave") {
		t.Errorf("Expected the description in the rendered output, got %q", out)
	}
}
