package debug

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseCategories(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]bool
	}{
		{"empty", "", map[string]bool{}},
		{"single", "sandbox", map[string]bool{"sandbox": true}},
		{"multiple", "sandbox,dispatch", map[string]bool{"sandbox": true, "dispatch": true}},
		{"all", "all", map[string]bool{"all": true}},
		{"with spaces", " sandbox , mcp ", map[string]bool{"sandbox": true, "mcp": true}},
		{"uppercase normalized", "SANDBOX,Mcp", map[string]bool{"sandbox": true, "mcp": true}},
		{"empty segments", "sandbox,,mcp", map[string]bool{"sandbox": true, "mcp": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCategories(tt.input)
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("got[%q] = %v, want %v", k, got[k], v)
				}
			}
			if len(got) != len(tt.want) {
				t.Errorf("len(got) = %d, want %d", len(got), len(tt.want))
			}
		})
	}
}

func TestEnabled(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("sandbox,dispatch")

	if !Enabled("sandbox") {
		t.Error("sandbox should be enabled")
	}
	if !Enabled("dispatch") {
		t.Error("dispatch should be enabled")
	}
	if Enabled("mcp") {
		t.Error("mcp should not be enabled")
	}
}

func TestEnabled_All(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("all")

	for _, c := range []string{"sandbox", "mcp", "anything"} {
		if !Enabled(c) {
			t.Errorf("%s should be enabled via 'all'", c)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"TRACE", LevelTrace},
		{"trace", LevelTrace},
		{"DEBUG", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, LevelTrace, "json"))
	logger.Log(context.Background(), LevelTrace, "deep", "k", "v")

	out := buf.String()
	if !strings.Contains(out, `"level":"TRACE"`) {
		t.Errorf("expected TRACE level label, got %s", out)
	}
	if !strings.Contains(out, `"msg":"deep"`) {
		t.Errorf("expected message, got %s", out)
	}

	buf.Reset()
	logger = slog.New(NewHandler(&buf, slog.LevelWarn, "text"))
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("INFO should be filtered at WARN, got %q", buf.String())
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate short = %q, want %q", got, "short")
	}
	if got := Truncate("this is a long string", 10); got != "this is a ..." {
		t.Errorf("Truncate long = %q, want %q", got, "this is a ...")
	}
}

func TestLog_DisabledCategory(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("")

	// Must not panic or produce output.
	Log("sandbox", "test message", "key", "value")
	Trace("sandbox", "trace message", "key", "value")
	Raw("sandbox", "raw body")
}
