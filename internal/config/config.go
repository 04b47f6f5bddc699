package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Provider modes accepted for BRAIN_PROVIDER.
const (
	ProviderAuto      = "auto"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Summary output formats accepted for SUMMARY_FORMAT.
const (
	SummaryFormatText = "text"
	SummaryFormatJSON = "json"
)

// Fact extraction strategies accepted for MEMORY_FACT_EXTRACTION.
// Keyword and llm are mutually exclusive per deployment.
const (
	FactExtractionKeyword = "keyword"
	FactExtractionLLM     = "llm"
	FactExtractionOff     = "off"
)

const defaultPersonaPrompt = "You're a helpful NPC assistant in a Roblox game."

// Config contains all runtime settings for the npchat backend.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	DataDir          string

	BrainProvider       string
	AnthropicAPIKey     string
	BrainModel          string
	BrainTimeout        time.Duration
	BrainMaxReplyTokens int

	SummaryMaxTokens int
	SummaryFormat    string
	SummarizeOnSave  bool

	// MaxFacts caps the per-user fact buffer. 0 disables the cap.
	MaxFacts int
	// MaxHistoryTurns caps live history length. 0 disables the cap.
	MaxHistoryTurns int
	FactExtraction  string

	PersonaPrompt      string
	TimeContextEnabled bool
	TimeContextZone    string
}

// RawMemoryDir is the storage root for opaque player transcripts.
func (c Config) RawMemoryDir() string {
	return filepath.Join(c.DataDir, "players")
}

// SummaryDir is the storage root for summarized memory documents. It
// must never be merged with the raw root.
func (c Config) SummaryDir() string {
	return filepath.Join(c.DataDir, "summaries")
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:            envOrDefault("APP_BIND_ADDR", ":10000"),
		MetricsNamespace:    envOrDefault("APP_METRICS_NAMESPACE", "npchat"),
		DataDir:             envOrDefault("APP_DATA_DIR", "data"),
		BrainProvider:       envOrDefault("BRAIN_PROVIDER", ProviderAuto),
		AnthropicAPIKey:     stringsTrimSpace("ANTHROPIC_API_KEY"),
		BrainModel:          envOrDefault("BRAIN_MODEL", "claude-sonnet-4-20250514"),
		SummaryFormat:       envOrDefault("SUMMARY_FORMAT", SummaryFormatText),
		FactExtraction:      envOrDefault("MEMORY_FACT_EXTRACTION", FactExtractionKeyword),
		PersonaPrompt:       envOrDefault("PERSONA_PROMPT", defaultPersonaPrompt),
		TimeContextZone:     envOrDefault("TIME_CONTEXT_ZONE", "UTC"),
		ShutdownTimeout:     15 * time.Second,
		BrainTimeout:        30 * time.Second,
		BrainMaxReplyTokens: 1024,
		SummaryMaxTokens:    300,
		MaxFacts:            5,
		MaxHistoryTurns:     0,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.BrainTimeout, err = durationFromEnv("BRAIN_TIMEOUT", cfg.BrainTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.BrainMaxReplyTokens, err = intFromEnv("BRAIN_MAX_REPLY_TOKENS", cfg.BrainMaxReplyTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.SummaryMaxTokens, err = intFromEnv("SUMMARY_MAX_TOKENS", cfg.SummaryMaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.SummarizeOnSave, err = boolFromEnv("SUMMARIZE_ON_SAVE", cfg.SummarizeOnSave)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxFacts, err = intFromEnv("MEMORY_MAX_FACTS", cfg.MaxFacts)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxHistoryTurns, err = intFromEnv("MEMORY_MAX_HISTORY_TURNS", cfg.MaxHistoryTurns)
	if err != nil {
		return Config{}, err
	}
	cfg.TimeContextEnabled, err = boolFromEnv("TIME_CONTEXT_ENABLED", cfg.TimeContextEnabled)
	if err != nil {
		return Config{}, err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.BrainProvider)) {
	case ProviderAuto, ProviderAnthropic, ProviderMock:
	default:
		return Config{}, fmt.Errorf("invalid BRAIN_PROVIDER: %q (expected auto|anthropic|mock)", cfg.BrainProvider)
	}
	switch cfg.SummaryFormat {
	case SummaryFormatText, SummaryFormatJSON:
	default:
		return Config{}, fmt.Errorf("invalid SUMMARY_FORMAT: %q (expected text|json)", cfg.SummaryFormat)
	}
	switch cfg.FactExtraction {
	case FactExtractionKeyword, FactExtractionLLM, FactExtractionOff:
	default:
		return Config{}, fmt.Errorf("invalid MEMORY_FACT_EXTRACTION: %q (expected keyword|llm|off)", cfg.FactExtraction)
	}
	if cfg.BrainTimeout <= 0 {
		return Config{}, fmt.Errorf("BRAIN_TIMEOUT must be positive")
	}
	if cfg.BrainMaxReplyTokens <= 0 {
		return Config{}, fmt.Errorf("BRAIN_MAX_REPLY_TOKENS must be positive")
	}
	if cfg.SummaryMaxTokens <= 0 {
		return Config{}, fmt.Errorf("SUMMARY_MAX_TOKENS must be positive")
	}
	if cfg.MaxFacts < 0 {
		return Config{}, fmt.Errorf("MEMORY_MAX_FACTS must be >= 0")
	}
	if cfg.MaxHistoryTurns < 0 {
		return Config{}, fmt.Errorf("MEMORY_MAX_HISTORY_TURNS must be >= 0")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return Config{}, fmt.Errorf("APP_DATA_DIR must not be empty")
	}
	if _, err := time.LoadLocation(cfg.TimeContextZone); err != nil {
		return Config{}, fmt.Errorf("TIME_CONTEXT_ZONE parse error: %w", err)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
