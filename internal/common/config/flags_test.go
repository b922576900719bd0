package config

import (
	"log/slog"
	"testing"
)

func TestUint32SliceFlagSet(t *testing.T) {
	var f Uint32SliceFlag
	if err := f.Set("18080, 18081,18082"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	want := Uint32SliceFlag{18080, 18081, 18082}
	if len(f) != len(want) {
		t.Fatalf("got %v, want %v", f, want)
	}
	for i := range want {
		if f[i] != want[i] {
			t.Fatalf("got %v, want %v", f, want)
		}
	}
}

func TestUint32SliceFlagRejectsGarbage(t *testing.T) {
	var f Uint32SliceFlag
	if err := f.Set("not-a-port"); err == nil {
		t.Fatal("expected an error for a non-numeric port")
	}
}

func TestStringSliceFlagSet(t *testing.T) {
	var f StringSliceFlag
	if err := f.Set("web, worker ,api"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if len(f) != 3 || f[0] != "web" || f[1] != "worker" || f[2] != "api" {
		t.Fatalf("got %v", f)
	}
}

func TestLogLevelFlagSet(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for input, want := range cases {
		var f LogLevelFlag
		if err := f.Set(input); err != nil {
			t.Fatalf("Set(%q) returned error: %v", input, err)
		}
		if f.Level() != want {
			t.Errorf("Set(%q) -> Level() = %v, want %v", input, f.Level(), want)
		}
	}
}

func TestLogLevelFlagRejectsUnknown(t *testing.T) {
	var f LogLevelFlag
	if err := f.Set("verbose"); err == nil {
		t.Fatal("expected an error for an unknown log level")
	}
}
