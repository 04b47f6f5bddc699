package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":10000" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":10000")
	}
	if cfg.BrainProvider != ProviderAuto {
		t.Fatalf("BrainProvider = %q, want %q", cfg.BrainProvider, ProviderAuto)
	}
	if cfg.MaxFacts != 5 {
		t.Fatalf("MaxFacts = %d, want 5", cfg.MaxFacts)
	}
	if cfg.SummaryMaxTokens != 300 {
		t.Fatalf("SummaryMaxTokens = %d, want 300", cfg.SummaryMaxTokens)
	}
	if cfg.SummaryFormat != SummaryFormatText {
		t.Fatalf("SummaryFormat = %q, want %q", cfg.SummaryFormat, SummaryFormatText)
	}
	if cfg.FactExtraction != FactExtractionKeyword {
		t.Fatalf("FactExtraction = %q, want %q", cfg.FactExtraction, FactExtractionKeyword)
	}
	if cfg.BrainTimeout != 30*time.Second {
		t.Fatalf("BrainTimeout = %v, want 30s", cfg.BrainTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")
	t.Setenv("APP_DATA_DIR", "/tmp/npchat")
	t.Setenv("MEMORY_MAX_FACTS", "0")
	t.Setenv("SUMMARY_FORMAT", "json")
	t.Setenv("SUMMARIZE_ON_SAVE", "true")
	t.Setenv("BRAIN_TIMEOUT", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9090")
	}
	if cfg.MaxFacts != 0 {
		t.Fatalf("MaxFacts = %d, want 0 (unbounded)", cfg.MaxFacts)
	}
	if cfg.SummaryFormat != SummaryFormatJSON {
		t.Fatalf("SummaryFormat = %q, want %q", cfg.SummaryFormat, SummaryFormatJSON)
	}
	if !cfg.SummarizeOnSave {
		t.Fatalf("SummarizeOnSave = false, want true")
	}
	if cfg.BrainTimeout != 5*time.Second {
		t.Fatalf("BrainTimeout = %v, want 5s", cfg.BrainTimeout)
	}
	if got := cfg.RawMemoryDir(); got != filepath.Join("/tmp/npchat", "players") {
		t.Fatalf("RawMemoryDir() = %q", got)
	}
	if got := cfg.SummaryDir(); got != filepath.Join("/tmp/npchat", "summaries") {
		t.Fatalf("SummaryDir() = %q", got)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"bad provider", "BRAIN_PROVIDER", "openai"},
		{"bad summary format", "SUMMARY_FORMAT", "yaml"},
		{"bad extraction mode", "MEMORY_FACT_EXTRACTION", "regex"},
		{"negative facts", "MEMORY_MAX_FACTS", "-1"},
		{"zero summary tokens", "SUMMARY_MAX_TOKENS", "0"},
		{"bad timezone", "TIME_CONTEXT_ZONE", "Mars/Olympus"},
		{"bad timeout", "BRAIN_TIMEOUT", "soon"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setCoreEnvEmpty(t)
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() with %s=%q succeeded, want error", tc.key, tc.value)
			}
		})
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_DATA_DIR",
		"BRAIN_PROVIDER",
		"ANTHROPIC_API_KEY",
		"BRAIN_MODEL",
		"BRAIN_TIMEOUT",
		"BRAIN_MAX_REPLY_TOKENS",
		"SUMMARY_MAX_TOKENS",
		"SUMMARY_FORMAT",
		"SUMMARIZE_ON_SAVE",
		"MEMORY_MAX_FACTS",
		"MEMORY_MAX_HISTORY_TURNS",
		"MEMORY_FACT_EXTRACTION",
		"PERSONA_PROMPT",
		"TIME_CONTEXT_ENABLED",
		"TIME_CONTEXT_ZONE",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
