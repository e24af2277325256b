package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("nestquery-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Observability.LogJSON {
		t.Fatal("LogJSON should default to false in dev")
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.Database.Backend != BackendPostgres {
		t.Fatalf("Database.Backend = %q", cfg.Database.Backend)
	}
	if cfg.AI.Provider != ProviderOpenAI {
		t.Fatalf("AI.Provider = %q", cfg.AI.Provider)
	}
	if cfg.AI.Temperature != 0 {
		t.Fatalf("AI.Temperature = %v, want deterministic default", cfg.AI.Temperature)
	}
	if cfg.AI.MaxAttempts != 1 {
		t.Fatalf("AI.MaxAttempts = %d, want no retries by default", cfg.AI.MaxAttempts)
	}
	if cfg.Agent.TopN != 5 {
		t.Fatalf("Agent.TopN = %d", cfg.Agent.TopN)
	}
	if cfg.Sessions.TTL != 30*time.Minute {
		t.Fatalf("Sessions.TTL = %s", cfg.Sessions.TTL)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	cfg, err := Load("nestquery-api", mapLookup(map[string]string{"NESTQUERY_PROFILE": "prod"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Observability.LogJSON {
		t.Fatal("LogJSON should default to true in prod")
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	cfg, err := Load("nestquery-api", mapLookup(map[string]string{
		"NESTQUERY_PROFILE":              "test",
		"NESTQUERY_HTTP_ADDR":            ":9999",
		"NESTQUERY_HTTP_READ_TIMEOUT":    "2s",
		"NESTQUERY_LOG_LEVEL":            "error",
		"NESTQUERY_AUTH_REQUIRED":        "true",
		"NESTQUERY_AUTH_STATIC_KEYS":     "k1:student-1:searcher",
		"NESTQUERY_DB_BACKEND":           "DuckDB",
		"NESTQUERY_DB_DSN":               "postgres://example",
		"NESTQUERY_DB_MAX_OPEN_CONNS":    "42",
		"NESTQUERY_DB_QUERY_TIMEOUT":     "3s",
		"NESTQUERY_OBJECTSTORE_BUCKET":   "listings",
		"NESTQUERY_OBJECTSTORE_USE_SSL":  "true",
		"NESTQUERY_AI_PROVIDER":          "anthropic",
		"NESTQUERY_AI_MODEL":             "claude-sonnet-4-5",
		"NESTQUERY_AI_TEMPERATURE":       "0.3",
		"NESTQUERY_AI_TIMEOUT":           "21s",
		"NESTQUERY_AI_MAX_ATTEMPTS":      "3",
		"NESTQUERY_AGENT_TOP_N":          "3",
		"NESTQUERY_SESSION_TTL":          "5m",
		"NESTQUERY_SESSION_CAPACITY":     "10",
		"NESTQUERY_OBJECTSTORE_ENDPOINT": "s3.example.com",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("HTTP.ReadTimeout = %s", cfg.HTTP.ReadTimeout)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required = false, want true")
	}
	if cfg.Database.Backend != BackendDuckDB {
		t.Fatalf("Database.Backend = %q", cfg.Database.Backend)
	}
	if cfg.Database.DSN != "postgres://example" {
		t.Fatalf("Database.DSN = %q", cfg.Database.DSN)
	}
	if cfg.Database.MaxOpenConns != 42 {
		t.Fatalf("Database.MaxOpenConns = %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Database.QueryTimeout != 3*time.Second {
		t.Fatalf("Database.QueryTimeout = %s", cfg.Database.QueryTimeout)
	}
	if cfg.ObjectStore.Bucket != "listings" || !cfg.ObjectStore.UseSSL {
		t.Fatalf("ObjectStore = %+v", cfg.ObjectStore)
	}
	if cfg.AI.Provider != ProviderAnthropic {
		t.Fatalf("AI.Provider = %q", cfg.AI.Provider)
	}
	if cfg.AI.Model != "claude-sonnet-4-5" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
	if cfg.AI.Temperature != 0.3 {
		t.Fatalf("AI.Temperature = %f", cfg.AI.Temperature)
	}
	if cfg.AI.Timeout != 21*time.Second {
		t.Fatalf("AI.Timeout = %s", cfg.AI.Timeout)
	}
	if cfg.AI.MaxAttempts != 3 {
		t.Fatalf("AI.MaxAttempts = %d", cfg.AI.MaxAttempts)
	}
	if cfg.Agent.TopN != 3 {
		t.Fatalf("Agent.TopN = %d", cfg.Agent.TopN)
	}
	if cfg.Sessions.TTL != 5*time.Minute || cfg.Sessions.Capacity != 10 {
		t.Fatalf("Sessions = %+v", cfg.Sessions)
	}
}

func TestLoadHonoursConventionalVariables(t *testing.T) {
	cfg, err := Load("nestquery-api", mapLookup(map[string]string{
		"DATABASE_URL":   "postgres://render/accommodation",
		"OPENAI_API_KEY": "sk-openai",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.DSN != "postgres://render/accommodation" {
		t.Fatalf("Database.DSN = %q", cfg.Database.DSN)
	}
	if cfg.AI.APIKey != "sk-openai" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}

	cfg, err = Load("nestquery-api", mapLookup(map[string]string{
		"DATABASE_URL":          "postgres://render/accommodation",
		"NESTQUERY_DB_DSN":      "postgres://explicit/accommodation",
		"NESTQUERY_AI_PROVIDER": "anthropic",
		"ANTHROPIC_API_KEY":     "sk-ant",
		"OPENAI_API_KEY":        "sk-openai",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.DSN != "postgres://explicit/accommodation" {
		t.Fatalf("Database.DSN = %q", cfg.Database.DSN)
	}
	if cfg.AI.APIKey != "sk-ant" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"NESTQUERY_PROFILE": "oops"},
		{"NESTQUERY_HTTP_READ_TIMEOUT": "NaN"},
		{"NESTQUERY_DB_MAX_OPEN_CONNS": "oops"},
		{"NESTQUERY_DB_BACKEND": "sqlite"},
		{"NESTQUERY_AI_PROVIDER": "gemini"},
		{"NESTQUERY_AI_TEMPERATURE": "bad"},
		{"NESTQUERY_AI_TEMPERATURE": "3"},
		{"NESTQUERY_AI_MAX_ATTEMPTS": "0"},
		{"NESTQUERY_AGENT_TOP_N": "0"},
		{"NESTQUERY_AUTH_REQUIRED": "not-bool"},
		{"NESTQUERY_LOG_LEVEL": "verbose"},
	}
	for _, env := range tests {
		_, err := Load("nestquery-api", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestLoadPicksModelForProvider(t *testing.T) {
	cfg, err := Load("nestquery-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.Model != "gpt-4o-mini" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
	cfg, err = Load("nestquery-api", mapLookup(map[string]string{"NESTQUERY_AI_PROVIDER": "Anthropic"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.Model != "claude-sonnet-4-5" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
}
