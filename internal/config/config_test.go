package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Store.Database != "iot" {
		t.Errorf("Store.Database = %q, want iot", cfg.Store.Database)
	}
	if cfg.Store.Collection != "measurements" {
		t.Errorf("Store.Collection = %q, want measurements", cfg.Store.Collection)
	}
	if cfg.Source.ChunkSize != 50000 {
		t.Errorf("Source.ChunkSize = %d, want 50000", cfg.Source.ChunkSize)
	}
	if cfg.Source.EpochUnit != "auto" {
		t.Errorf("Source.EpochUnit = %q, want auto", cfg.Source.EpochUnit)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("Retry.MaxAttempts = %d, want 3", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.Delay != 2*time.Second {
		t.Errorf("Retry.Delay = %v, want 2s", cfg.Retry.Delay)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("MONGODB_DB", "telemetry")
	t.Setenv("CHUNK_SIZE", "1000")
	t.Setenv("EPOCH_UNIT", "ms")
	t.Setenv("KEEP_RAW", "true")
	t.Setenv("INGEST_RETRY_DELAY", "500ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Store.Database != "telemetry" {
		t.Errorf("Store.Database = %q, want telemetry", cfg.Store.Database)
	}
	if cfg.Source.ChunkSize != 1000 {
		t.Errorf("Source.ChunkSize = %d, want 1000", cfg.Source.ChunkSize)
	}
	if cfg.Source.EpochUnit != "ms" {
		t.Errorf("Source.EpochUnit = %q, want ms", cfg.Source.EpochUnit)
	}
	if !cfg.Source.KeepRaw {
		t.Error("Source.KeepRaw = false, want true")
	}
	if cfg.Retry.Delay != 500*time.Millisecond {
		t.Errorf("Retry.Delay = %v, want 500ms", cfg.Retry.Delay)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		envKey  string
		envVal  string
		wantMsg string
	}{
		{"bad chunk size", "CHUNK_SIZE", "-1", "CHUNK_SIZE"},
		{"unparseable chunk size", "CHUNK_SIZE", "lots", "invalid integer"},
		{"bad epoch unit", "EPOCH_UNIT", "minutes", "EPOCH_UNIT"},
		{"bad separator", "CSV_SEP", ";;", "CSV_SEP"},
		{"bad attempts", "INGEST_MAX_ATTEMPTS", "0", "INGEST_MAX_ATTEMPTS"},
		{"bad log format", "LOG_FORMAT", "xml", "LOG_FORMAT"},
		{"bad duration", "MONGODB_CONNECT_TIMEOUT", "soon", "invalid duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.envKey, tt.envVal)
			_, err := Load()
			if err == nil {
				t.Fatalf("Load() succeeded with %s=%s", tt.envKey, tt.envVal)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestSeparatorRune(t *testing.T) {
	tests := []struct {
		sep  string
		want rune
	}{
		{",", ','},
		{";", ';'},
		{"|", '|'},
		{"\\t", '\t'},
		{"\t", '\t'},
		{"", ','},
	}

	for _, tt := range tests {
		s := SourceConfig{Separator: tt.sep}
		if got := s.SeparatorRune(); got != tt.want {
			t.Errorf("SeparatorRune(%q) = %q, want %q", tt.sep, got, tt.want)
		}
	}
}
