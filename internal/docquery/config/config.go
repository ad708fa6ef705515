package config

import "time"

type Duration struct {
	Duration time.Duration
}

type HTTPConfig struct {
	Addr              string   `json:"addr" yaml:"addr"`
	ReadHeaderTimeout Duration `json:"read_header_timeout" yaml:"read_header_timeout"`
	IdleTimeout       Duration `json:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout   Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	// RequestTimeout is the wall-clock ceiling for one query, propagated through the request context.
	RequestTimeout  Duration `json:"request_timeout" yaml:"request_timeout"`
	MaxRequestBytes int64    `json:"max_request_bytes" yaml:"max_request_bytes"`
	CORSOrigins     []string `json:"cors_origins,omitempty" yaml:"cors_origins,omitempty"`
}

type AuthConfig struct {
	// JWTSecret verifies HS256 bearer tokens. Empty disables token verification.
	JWTSecret string `json:"jwt_secret,omitempty" yaml:"jwt_secret,omitempty"`
	Issuer    string `json:"issuer,omitempty" yaml:"issuer,omitempty"`
	// Required rejects requests that carry no valid bearer token.
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`
}

type LogConfig struct {
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty" yaml:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty" yaml:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty" yaml:"max_age_days,omitempty"`
}

type GenerationConfig struct {
	BaseURL string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Models  []string `json:"models" yaml:"models"`
	// APIKey enables the key-based fallback after the service identity strategy.
	APIKey             string   `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	IdentityAPIVersion string   `json:"identity_api_version,omitempty" yaml:"identity_api_version,omitempty"`
	APIKeyAPIVersion   string   `json:"api_key_api_version,omitempty" yaml:"api_key_api_version,omitempty"`
	Timeout            Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Temperature        *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxOutputTokens    int      `json:"max_output_tokens,omitempty" yaml:"max_output_tokens,omitempty"`
}

type BudgetConfig struct {
	TotalTokens    int `json:"total_tokens" yaml:"total_tokens"`
	ReservedTokens int `json:"reserved_tokens" yaml:"reserved_tokens"`
	MinBodyTokens  int `json:"min_body_tokens" yaml:"min_body_tokens"`
}

type RetrievalConfig struct {
	MaxCandidates    int `json:"max_candidates" yaml:"max_candidates"`
	FetchConcurrency int `json:"fetch_concurrency,omitempty" yaml:"fetch_concurrency,omitempty"`
}

type FirestoreConfig struct {
	ProjectID           string `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	UsersCollection     string `json:"users_collection,omitempty" yaml:"users_collection,omitempty"`
	DocumentsCollection string `json:"documents_collection,omitempty" yaml:"documents_collection,omitempty"`
}

type StorageConfig struct {
	Bucket       string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Mode         string `json:"mode,omitempty" yaml:"mode,omitempty"`
	EmulatorHost string `json:"emulator_host,omitempty" yaml:"emulator_host,omitempty"`
}

type TracingConfig struct {
	Enabled     bool              `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Endpoint    string            `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Insecure    bool              `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	SampleRatio float64           `json:"sample_ratio,omitempty" yaml:"sample_ratio,omitempty"`
}

type MetricsConfig struct {
	// Enabled exposes Prometheus text metrics on GET /metrics.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

type Config struct {
	Env        string           `json:"env" yaml:"env"`
	Version    string           `json:"version,omitempty" yaml:"version,omitempty"`
	HTTP       HTTPConfig       `json:"http" yaml:"http"`
	Auth       AuthConfig       `json:"auth" yaml:"auth"`
	Log        LogConfig        `json:"log" yaml:"log"`
	Generation GenerationConfig `json:"generation" yaml:"generation"`
	Budget     BudgetConfig     `json:"budget" yaml:"budget"`
	Retrieval  RetrievalConfig  `json:"retrieval" yaml:"retrieval"`
	Firestore  FirestoreConfig  `json:"firestore" yaml:"firestore"`
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	Tracing    TracingConfig    `json:"tracing" yaml:"tracing"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics"`
}
