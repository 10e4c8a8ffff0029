package ui

import (
	"strings"
	"testing"
)

func TestRenderKeepsText(t *testing.T) {
	for name, render := range map[string]func(string) string{
		"accent": RenderAccent,
		"pass":   RenderPass,
		"warn":   RenderWarn,
		"fail":   RenderFail,
		"muted":  RenderMuted,
		"bold":   RenderBold,
	} {
		if got := render("hello"); !strings.Contains(got, "hello") {
			t.Errorf("%s: %q does not contain the input", name, got)
		}
	}
}

func TestRenderPanel(t *testing.T) {
	out := RenderPanel("Status", []Field{
		{Key: "Driver", Value: "sqlite"},
		{Key: "Tasks", Value: 42},
	})

	for _, want := range []string{"Status", "Driver:", "sqlite", "Tasks:", "42"} {
		if !strings.Contains(out, want) {
			t.Errorf("panel missing %q:\n%s", want, out)
		}
	}
	if lines := strings.Split(out, "\n"); len(lines) < 5 {
		t.Errorf("panel has %d lines, want a bordered block", len(lines))
	}
}
