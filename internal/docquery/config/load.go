package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/docquery-backend/internal/docquery/budget"
	"github.com/yungbote/docquery-backend/internal/docquery/generation"
	"github.com/yungbote/docquery-backend/internal/docquery/retrieval"
	"github.com/yungbote/docquery-backend/internal/platform/envutil"
)

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		d.Duration = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		u, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		return d.parse(u)
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("duration must be a JSON string like \"5s\" or an int nanoseconds: %w", err)
	}
	d.Duration = time.Duration(n)
	return nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar, got yaml kind %d", value.Kind)
	}
	if value.Tag == "!!int" {
		n, err := strconv.ParseInt(value.Value, 10, 64)
		if err != nil {
			return err
		}
		d.Duration = time.Duration(n)
		return nil
	}
	return d.parse(value.Value)
}

func (d *Duration) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		d.Duration = 0
		return nil
	}
	dd, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dd
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Env: "development",
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: Duration{Duration: 5 * time.Second},
			IdleTimeout:       Duration{Duration: 2 * time.Minute},
			ShutdownTimeout:   Duration{Duration: 15 * time.Second},
			RequestTimeout:    Duration{Duration: 120 * time.Second},
			MaxRequestBytes:   1 << 20,
		},
		Generation: GenerationConfig{
			BaseURL:            generation.DefaultBaseURL,
			Models:             append([]string(nil), generation.DefaultModels...),
			IdentityAPIVersion: generation.DefaultIdentityAPIVersion,
			APIKeyAPIVersion:   generation.DefaultAPIKeyAPIVersion,
			Timeout:            Duration{Duration: 60 * time.Second},
		},
		Budget: BudgetConfig{
			TotalTokens:    budget.DefaultTotalTokens,
			ReservedTokens: budget.DefaultReservedTokens,
			MinBodyTokens:  budget.DefaultMinBodyTokens,
		},
		Retrieval: RetrievalConfig{
			MaxCandidates: retrieval.MaxCandidates,
		},
		Tracing: TracingConfig{
			SampleRatio: 0.1,
		},
	}
}

// LoadDotEnv loads .env files into the process environment without overriding variables
// that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func Load() (*Config, error) {
	cfg := defaultConfig()

	cfgPath := strings.TrimSpace(os.Getenv("DOCQUERY_CONFIG_PATH"))
	if cfgPath == "" {
		cfgPath = findDefaultConfigFile()
	}
	if cfgPath != "" {
		if err := loadFile(cfgPath, cfg); err != nil {
			return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
		}
	}

	applyEnv(cfg)

	if err := normalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findDefaultConfigFile() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for _, name := range []string{"config.yaml", "config.yml", "config.json"} {
		p := filepath.Join(wd, "config", name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// loadFile decodes the file over the defaults, so omitted sections keep their default values.
func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	default:
		return json.Unmarshal(b, cfg)
	}
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("LOG_MODE")); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_FILE")); v != "" {
		cfg.Log.File = v
	}
	if v := strings.TrimSpace(os.Getenv("DOCQUERY_VERSION")); v != "" {
		cfg.Version = v
	}

	if v := strings.TrimSpace(os.Getenv("DOCQUERY_HTTP_ADDR")); v != "" {
		cfg.HTTP.Addr = v
	} else if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.HTTP.Addr = ":" + port
	}
	cfg.HTTP.RequestTimeout.Duration = envutil.Duration("DOCQUERY_REQUEST_TIMEOUT", cfg.HTTP.RequestTimeout.Duration)
	if origins := envutil.List("DOCQUERY_CORS_ORIGINS"); len(origins) > 0 {
		cfg.HTTP.CORSOrigins = origins
	}

	if v := strings.TrimSpace(os.Getenv("DOCQUERY_JWT_SECRET")); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("DOCQUERY_JWT_ISSUER")); v != "" {
		cfg.Auth.Issuer = v
	}
	cfg.Auth.Required = envutil.Bool("DOCQUERY_AUTH_REQUIRED", cfg.Auth.Required)

	if v := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); v != "" {
		cfg.Generation.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("GEMINI_BASE_URL")); v != "" {
		cfg.Generation.BaseURL = v
	}
	if models := envutil.List("DOCQUERY_MODELS"); len(models) > 0 {
		cfg.Generation.Models = models
	}
	cfg.Generation.Timeout.Duration = envutil.Duration("DOCQUERY_GENERATION_TIMEOUT", cfg.Generation.Timeout.Duration)

	cfg.Budget.TotalTokens = envutil.Int("DOCQUERY_TOTAL_TOKENS", cfg.Budget.TotalTokens)
	cfg.Budget.ReservedTokens = envutil.Int("DOCQUERY_RESERVED_TOKENS", cfg.Budget.ReservedTokens)
	cfg.Retrieval.FetchConcurrency = envutil.Int("DOCQUERY_FETCH_CONCURRENCY", cfg.Retrieval.FetchConcurrency)

	if v := strings.TrimSpace(os.Getenv("FIRESTORE_PROJECT_ID")); v != "" {
		cfg.Firestore.ProjectID = v
	} else if v := strings.TrimSpace(os.Getenv("GOOGLE_CLOUD_PROJECT")); v != "" && cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = v
	}
	if v := strings.TrimSpace(os.Getenv("TEXT_GCS_BUCKET_NAME")); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := strings.TrimSpace(os.Getenv("OBJECT_STORAGE_MODE")); v != "" {
		cfg.Storage.Mode = v
	}
	if v := strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")); v != "" {
		cfg.Storage.EmulatorHost = v
	}

	cfg.Metrics.Enabled = envutil.Bool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Tracing.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Tracing.Enabled)
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); v != "" {
		cfg.Tracing.Endpoint = v
	}
	cfg.Tracing.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Tracing.Insecure)
	cfg.Tracing.SampleRatio = envutil.Float("OTEL_SAMPLER_RATIO", cfg.Tracing.SampleRatio)
	if headers := parseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")); headers != nil {
		cfg.Tracing.Headers = headers
	}
}

func normalize(cfg *Config) error {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "development"
	}
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.MaxRequestBytes <= 0 {
		cfg.HTTP.MaxRequestBytes = 1 << 20
	}
	if cfg.HTTP.RequestTimeout.Duration <= 0 {
		cfg.HTTP.RequestTimeout = Duration{Duration: 120 * time.Second}
	}
	if cfg.HTTP.ShutdownTimeout.Duration <= 0 {
		cfg.HTTP.ShutdownTimeout = Duration{Duration: 15 * time.Second}
	}

	g := &cfg.Generation
	g.BaseURL = strings.TrimRight(strings.TrimSpace(g.BaseURL), "/")
	if g.BaseURL == "" {
		g.BaseURL = generation.DefaultBaseURL
	}
	models := make([]string, 0, len(g.Models))
	for _, m := range g.Models {
		if m = strings.TrimSpace(m); m != "" {
			models = append(models, m)
		}
	}
	if len(models) == 0 {
		return errors.New("config must define at least one generation model")
	}
	g.Models = models
	if g.Temperature != nil && (*g.Temperature < 0 || *g.Temperature > 2) {
		return fmt.Errorf("generation.temperature must be within [0, 2], got %v", *g.Temperature)
	}
	if g.MaxOutputTokens < 0 {
		return errors.New("generation.max_output_tokens must not be negative")
	}

	b := &cfg.Budget
	if b.TotalTokens <= 0 {
		b.TotalTokens = budget.DefaultTotalTokens
	}
	if b.ReservedTokens < 0 || b.ReservedTokens >= b.TotalTokens {
		return fmt.Errorf("budget.reserved_tokens must be within [0, %d)", b.TotalTokens)
	}
	if b.MinBodyTokens <= 0 {
		b.MinBodyTokens = budget.DefaultMinBodyTokens
	}

	if cfg.Retrieval.MaxCandidates <= 0 {
		cfg.Retrieval.MaxCandidates = retrieval.MaxCandidates
	}
	if cfg.Retrieval.MaxCandidates > retrieval.MaxCandidates {
		return fmt.Errorf("retrieval.max_candidates must be at most %d", retrieval.MaxCandidates)
	}
	if cfg.Retrieval.FetchConcurrency < 0 {
		cfg.Retrieval.FetchConcurrency = 0
	}

	if cfg.Tracing.SampleRatio < 0 {
		cfg.Tracing.SampleRatio = 0
	}
	if cfg.Tracing.SampleRatio > 1 {
		cfg.Tracing.SampleRatio = 1
	}
	return nil
}

// parseHeaders reads "k1=v1,k2=v2" pairs, skipping malformed entries.
func parseHeaders(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	headers := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		key, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		if !ok || key == "" || val == "" {
			continue
		}
		headers[key] = val
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}
