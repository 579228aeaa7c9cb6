package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/chatgateway-backend/internal/platform/envutil"
)

var vendorEnvPrefixes = map[string]string{
	"openai":     "OPENAI",
	"anthropic":  "ANTHROPIC",
	"mistral":    "MISTRAL",
	"google":     "GOOGLE",
	"perplexity": "PERPLEXITY",
}

var vendorDefaultBaseURLs = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"anthropic":  "https://api.anthropic.com",
	"mistral":    "https://api.mistral.ai/v1",
	"google":     "https://generativelanguage.googleapis.com/v1beta",
	"perplexity": "https://api.perplexity.ai",
}

func defaultConfig() *Config {
	return &Config{
		Env:     "development",
		LogMode: "dev",
		HTTP: HTTPConfig{
			Addr:              ":5000",
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       2 * time.Minute,
			ShutdownTimeout:   15 * time.Second,
			MaxRequestBytes:   1 << 20,
			AllowedOrigins:    []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		},
		Auth: AuthConfig{SessionTTL: 30 * 24 * time.Hour},
		Database: DatabaseConfig{
			Driver:     "postgres",
			SQLitePath: "chatgateway.db",
		},
		Payments: PaymentsConfig{Currency: "inr"},
		Models:   ModelsConfig{DefaultModel: "gpt-3.5-turbo"},
		Quota: QuotaConfig{
			FreeAllotment:        20,
			MaxConcurrentStreams: 3,
		},
		Deferred: DeferredConfig{
			Workers: 4,
			Timeout: 10 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "chatgateway",
			SampleRatio: 0.1,
		},
		Vendors:        map[string]VendorConfig{},
		PersistTimeout: 10 * time.Second,
	}
}

// Load reads .env (if present) and the process environment into a Config.
func Load() (*Config, error) {
	if err := envutil.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() (*Config, error) {
	cfg := defaultConfig()

	cfg.Env = strings.ToLower(envutil.String("APP_ENV", cfg.Env))
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	if cfg.IsProduction() && envutil.String("LOG_MODE", "") == "" {
		cfg.LogMode = "prod"
	}

	cfg.HTTP.Addr = envutil.String("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.ShutdownTimeout = envutil.Duration("HTTP_SHUTDOWN_TIMEOUT", cfg.HTTP.ShutdownTimeout)
	cfg.HTTP.MaxRequestBytes = int64(envutil.Int("HTTP_MAX_REQUEST_BYTES", int(cfg.HTTP.MaxRequestBytes)))
	if v := envutil.String("CORS_ALLOWED_ORIGINS", ""); v != "" {
		cfg.HTTP.AllowedOrigins = splitCSV(v)
	}

	cfg.Auth.SecretKey = envutil.String("SECRET_KEY", "")
	cfg.Auth.GoogleClientID = envutil.String("GOOGLE_CLIENT_ID", "")
	cfg.Auth.GoogleClientSecret = envutil.String("GOOGLE_CLIENT_SECRET", "")
	cfg.Auth.SessionTTL = envutil.Duration("SESSION_TTL", cfg.Auth.SessionTTL)

	cfg.Database.Driver = strings.ToLower(envutil.String("DATABASE_DRIVER", cfg.Database.Driver))
	cfg.Database.DSN = envutil.String("DATABASE_URL", postgresDSNFromParts())
	cfg.Database.SQLitePath = envutil.String("SQLITE_PATH", cfg.Database.SQLitePath)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", "")
	cfg.Redis.Password = envutil.String("REDIS_PASSWORD", "")
	cfg.Redis.DB = envutil.Int("REDIS_DB", 0)

	cfg.Payments.Enabled = envutil.Bool("PAYMENTS_ENABLED", false)
	cfg.Payments.KeyID = envutil.String("PAYMENT_GATEWAY_KEY_ID", "")
	cfg.Payments.KeySecret = envutil.String("PAYMENT_GATEWAY_KEY_SECRET", "")
	cfg.Payments.StripeSecretKey = envutil.String("STRIPE_SECRET_KEY", "")
	cfg.Payments.SuccessURL = envutil.String("PAYMENT_SUCCESS_URL", "")
	cfg.Payments.CancelURL = envutil.String("PAYMENT_CANCEL_URL", "")
	cfg.Payments.Currency = strings.ToLower(envutil.String("PAYMENT_CURRENCY", cfg.Payments.Currency))

	cfg.Models.CatalogPath = envutil.String("MODEL_CATALOG_PATH", "")
	cfg.Models.DefaultModel = envutil.String("DEFAULT_CHAT_MODEL", cfg.Models.DefaultModel)
	cfg.Models.MockEngines = envutil.Bool("MOCK_ENGINES", false)

	cfg.Quota.FreeAllotment = envutil.Int("FREE_GENERATION_ALLOTMENT", cfg.Quota.FreeAllotment)
	cfg.Quota.MaxConcurrentStreams = envutil.Int("MAX_CONCURRENT_STREAMS", cfg.Quota.MaxConcurrentStreams)

	cfg.Deferred.Workers = envutil.Int("DEFERRED_WORKERS", cfg.Deferred.Workers)
	cfg.PersistTimeout = envutil.Duration("PERSIST_TIMEOUT", cfg.PersistTimeout)
	cfg.Deferred.Timeout = cfg.PersistTimeout

	cfg.Telemetry.ServiceName = envutil.String("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
	cfg.Telemetry.ServiceVersion = envutil.String("SERVICE_VERSION", "")
	cfg.Telemetry.OTelEnabled = envutil.Bool("OTEL_ENABLED", false)
	cfg.Telemetry.OTLPEndpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	cfg.Telemetry.OTLPHeaders = parseHeaders(envutil.String("OTEL_EXPORTER_OTLP_HEADERS", ""))
	cfg.Telemetry.OTLPInsecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false)
	cfg.Telemetry.SampleRatio = clampRatio(envutil.Float("OTEL_SAMPLER_RATIO", cfg.Telemetry.SampleRatio))
	cfg.Telemetry.MetricsEnabled = envutil.Bool("METRICS_ENABLED", false)

	for vendor, prefix := range vendorEnvPrefixes {
		cfg.Vendors[vendor] = VendorConfig{
			APIKey:        envutil.String(prefix+"_API_KEY", ""),
			BaseURL:       strings.TrimRight(envutil.String(prefix+"_BASE_URL", vendorDefaultBaseURLs[vendor]), "/"),
			Timeout:       envutil.Duration(prefix+"_TIMEOUT", 60*time.Second),
			StreamTimeout: envutil.Duration(prefix+"_STREAM_TIMEOUT", 0),
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Auth.SecretKey == "" {
		errs = append(errs, errors.New("SECRET_KEY environment variable is not set"))
	}
	if c.Auth.GoogleClientID == "" || c.Auth.GoogleClientSecret == "" {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET environment variable is not set"))
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("DATABASE_URL or POSTGRES_* must be set for the postgres driver"))
		}
	case "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver))
	}
	if c.Payments.Enabled {
		if c.Payments.KeySecret == "" {
			errs = append(errs, errors.New("PAYMENT_GATEWAY_KEY_SECRET is required when PAYMENTS_ENABLED"))
		}
		if c.Payments.StripeSecretKey == "" {
			errs = append(errs, errors.New("STRIPE_SECRET_KEY is required when PAYMENTS_ENABLED"))
		}
	}
	if c.Quota.FreeAllotment < 0 {
		errs = append(errs, errors.New("FREE_GENERATION_ALLOTMENT must be >= 0"))
	}
	if c.Deferred.Workers <= 0 {
		c.Deferred.Workers = 1
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = 10 * time.Second
		c.Deferred.Timeout = c.PersistTimeout
	}
	return errors.Join(errs...)
}

func postgresDSNFromParts() string {
	host := envutil.String("POSTGRES_HOST", "")
	if host == "" {
		return ""
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(envutil.String("POSTGRES_USER", "postgres"), envutil.String("POSTGRES_PASSWORD", "")),
		Host:     host + ":" + envutil.String("POSTGRES_PORT", "5432"),
		Path:     "/" + envutil.String("POSTGRES_NAME", "chatgateway"),
		RawQuery: "sslmode=" + envutil.String("POSTGRES_SSLMODE", "disable"),
	}
	return u.String()
}

func splitCSV(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseHeaders reads the OTLP "k1=v1,k2=v2" header list.
func parseHeaders(raw string) map[string]string {
	headers := map[string]string{}
	for _, part := range splitCSV(raw) {
		k, v, ok := strings.Cut(part, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		headers[k] = v
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}

func clampRatio(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
