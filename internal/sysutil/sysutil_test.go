package sysutil

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetLogLevel_AllVariants(t *testing.T) {
	orig := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(orig) })

	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"  DeBuG  ", zerolog.DebugLevel}, // case + trim
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel}, // empty -> info
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel}, // alias
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"unknown", zerolog.InfoLevel}, // default
	}

	for _, tc := range cases {
		SetLogLevel(tc.in)
		if got := zerolog.GlobalLevel(); got != tc.want {
			t.Fatalf("SetLogLevel(%q) -> %v; want %v", tc.in, got, tc.want)
		}
	}
}

func TestSetupLogger_JSONAndPretty(t *testing.T) {
	origLevel := zerolog.GlobalLevel()
	origLogger := log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(origLevel)
		log.Logger = origLogger
	})

	var buf bytes.Buffer
	SetupLogger("debug", false, "bodytemp-bot", &buf)
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Fatalf("level not applied")
	}
	log.Info().Str("k", "v").Msg("hello")
	out := buf.String()
	for _, want := range []string{`"service":"bodytemp-bot"`, `"message":"hello"`, `"k":"v"`, `"time":`} {
		if !strings.Contains(out, want) {
			t.Fatalf("json log missing %s: %s", want, out)
		}
	}

	buf.Reset()
	SetupLogger("info", true, "bodytemp-bot", &buf)
	log.Info().Msg("pretty")
	out = buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") || !strings.Contains(out, "pretty") {
		t.Fatalf("expected console output, got %q", out)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	// no args -> ""
	if got := FirstNonEmpty(); got != "" {
		t.Fatalf("FirstNonEmpty() = %q; want \"\"", got)
	}
	// only empties -> ""
	if got := FirstNonEmpty(" ", "\t", "\n"); got != "" {
		t.Fatalf("FirstNonEmpty(empties) = %q; want \"\"", got)
	}
	// picks first non-empty (preserves original spacing)
	if got := FirstNonEmpty("   ", "  hello  ", "world"); got != "  hello  " {
		t.Fatalf("FirstNonEmpty(...) = %q; want %q", got, "  hello  ")
	}
	// first already non-empty
	if got := FirstNonEmpty("alpha", "beta"); got != "alpha" {
		t.Fatalf("FirstNonEmpty(...) = %q; want %q", got, "alpha")
	}
}
