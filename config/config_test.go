package config

import (
	"log/slog"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "LOG_LEVEL", "OTEL_ENABLED", "MILLER_RABIN_ROUNDS", "ENFORCE_WIENER_BOUND", "DEFAULT_KEY_BITS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8080" {
		t.Errorf("want port 8080, got %s", cfg.Port)
	}
	if cfg.OtelEnabled {
		t.Error("want tracing disabled by default")
	}
	if cfg.MillerRabinRounds != 20 {
		t.Errorf("want 20 rounds, got %d", cfg.MillerRabinRounds)
	}
	if !cfg.EnforceWienerBound {
		t.Error("want Wiener bound enforced by default")
	}
	if cfg.DefaultKeyBits != 1024 {
		t.Errorf("want 1024 default bits, got %d", cfg.DefaultKeyBits)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SAMPLING_RATE", "0.25")
	t.Setenv("MILLER_RABIN_ROUNDS", "40")
	t.Setenv("ENFORCE_WIENER_BOUND", "false")
	t.Setenv("BATCH_WORKERS", "not-a-number")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Errorf("want port 9090, got %s", cfg.Port)
	}
	if !cfg.OtelEnabled {
		t.Error("want tracing enabled")
	}
	if cfg.OtelSamplingRate != 0.25 {
		t.Errorf("want sampling rate 0.25, got %v", cfg.OtelSamplingRate)
	}
	if cfg.MillerRabinRounds != 40 {
		t.Errorf("want 40 rounds, got %d", cfg.MillerRabinRounds)
	}
	if cfg.EnforceWienerBound {
		t.Error("want Wiener bound disabled")
	}
	if cfg.BatchWorkers != 4 {
		t.Errorf("want default batch workers on parse error, got %d", cfg.BatchWorkers)
	}
}

func TestConfig_SlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"DEBUG": slog.LevelDebug,
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"ERROR": slog.LevelError,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelInfo,
	}
	for in, want := range tests {
		cfg := &Config{LogLevel: in}
		if got := cfg.SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q): want %v, got %v", in, want, got)
		}
	}
}
