package config

import "time"

type HTTPConfig struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxRequestBytes   int64
	AllowedOrigins    []string
}

type AuthConfig struct {
	SecretKey          string
	GoogleClientID     string
	GoogleClientSecret string
	SessionTTL         time.Duration
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver     string
	DSN        string
	SQLitePath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a redis address was configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

type PaymentsConfig struct {
	Enabled bool

	// KeyID/KeySecret are the gateway credentials; KeySecret doubles as the
	// shared HMAC secret for payment callbacks.
	KeyID     string
	KeySecret string

	StripeSecretKey string
	SuccessURL      string
	CancelURL       string
	Currency        string
}

type VendorConfig struct {
	APIKey        string
	BaseURL       string
	Timeout       time.Duration
	StreamTimeout time.Duration
}

type ModelsConfig struct {
	CatalogPath  string
	DefaultModel string
	// MockEngines routes every vendor to the in-process mock engine.
	MockEngines bool
}

type QuotaConfig struct {
	FreeAllotment        int
	MaxConcurrentStreams int
}

type DeferredConfig struct {
	Workers int
	Timeout time.Duration
}

type TelemetryConfig struct {
	ServiceName    string
	ServiceVersion string

	OTelEnabled  bool
	OTLPEndpoint string
	OTLPHeaders  map[string]string
	OTLPInsecure bool
	SampleRatio  float64

	MetricsEnabled bool
}

type Config struct {
	Env     string
	LogMode string

	HTTP      HTTPConfig
	Auth      AuthConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Payments  PaymentsConfig
	Models    ModelsConfig
	Quota     QuotaConfig
	Deferred  DeferredConfig
	Telemetry TelemetryConfig

	// Vendors is keyed by vendor name (openai, anthropic, mistral, google, perplexity).
	Vendors map[string]VendorConfig

	PersistTimeout time.Duration
}

func (c *Config) IsProduction() bool { return c.Env == "production" }
