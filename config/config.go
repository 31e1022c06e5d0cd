// Package config loads the YAML configuration of a flacon application.
//
// Values may reference environment variables as ${VAR} or ${VAR:-default};
// a literal dollar sign is written as $$. Fields absent from the document
// keep the values returned by Default.
package config

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of the configuration document.
type Config struct {
	Name      string          `yaml:"name"`
	Server    ServerConfig    `yaml:"server"`
	Router    RouterConfig    `yaml:"router"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	RequestID RequestIDConfig `yaml:"request_id"`
	CORS      CORSConfig      `yaml:"cors"`
	Admin     AdminConfig     `yaml:"admin"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr              string   `yaml:"addr"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes limits request bodies. Zero means no limit.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// RouterConfig configures dispatch policies of the application.
type RouterConfig struct {
	StrictSlash      bool `yaml:"strict_slash"`
	AutomaticOptions bool `yaml:"automatic_options"`
}

// LogConfig configures the application logger.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is json or console.
	Format string `yaml:"format"`

	// Output is stdout or stderr.
	Output string `yaml:"output"`
}

// MetricsConfig configures the Prometheus exposition.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`

	// Endpoint is the OTLP/gRPC collector address. Spans are sampled but
	// not exported when it is empty.
	Endpoint string `yaml:"endpoint"`

	SamplingRate float64 `yaml:"sampling_rate"`
	Insecure     bool    `yaml:"insecure"`
}

// RateLimitConfig configures the global request rate limit.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

// RequestIDConfig configures request ID propagation.
type RequestIDConfig struct {
	Header        string `yaml:"header"`
	TrustIncoming bool   `yaml:"trust_incoming"`
}

// CORSConfig configures cross-origin access to the application.
type CORSConfig struct {
	Enabled          bool     `yaml:"enabled"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAge           Duration `yaml:"max_age"`
}

// AdminConfig protects the admin endpoints with Basic authentication. They
// are not registered while Password is empty.
type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Default returns the configuration used for every field the document does
// not set.
func Default() *Config {
	return &Config{
		Name: "flacon",
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: Duration(10 * time.Second),
			ShutdownTimeout:   Duration(15 * time.Second),
		},
		Router: RouterConfig{
			AutomaticOptions: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "flacon",
		},
		Tracing: TracingConfig{
			SamplingRate: 1,
		},
		RateLimit: RateLimitConfig{
			RPS: 100,
		},
		RequestID: RequestIDConfig{
			Header: "X-Request-ID",
		},
		CORS: CORSConfig{
			MaxAge: Duration(10 * time.Minute),
		},
		Admin: AdminConfig{
			Username: "admin",
		},
	}
}

// Error reports an invalid configuration field.
type Error struct {
	// Field is the dotted YAML path of the field, e.g. "server.addr".
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *Error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks the configuration and returns the first invalid field as
// an *Error.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("name", "must not be empty")
	}

	if c.Server.Addr == "" {
		return invalid("server.addr", "must not be empty")
	}
	if c.Server.ReadHeaderTimeout < 0 {
		return invalid("server.read_header_timeout", "must not be negative")
	}
	if c.Server.ShutdownTimeout < 0 {
		return invalid("server.shutdown_timeout", "must not be negative")
	}
	if c.Server.MaxBodyBytes < 0 {
		return invalid("server.max_body_bytes", "must not be negative")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level", "unknown level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return invalid("log.format", "unknown format %q", c.Log.Format)
	}
	switch c.Log.Output {
	case "stdout", "stderr":
	default:
		return invalid("log.output", "unknown output %q", c.Log.Output)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return invalid("metrics.path", "must start with a slash")
	}

	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 || math.IsNaN(c.Tracing.SamplingRate) {
		return invalid("tracing.sampling_rate", "must be between 0 and 1")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RPS <= 0 || math.IsInf(c.RateLimit.RPS, 0) || math.IsNaN(c.RateLimit.RPS) {
			return invalid("rate_limit.rps", "must be a positive number")
		}
		if c.RateLimit.Burst < 0 {
			return invalid("rate_limit.burst", "must not be negative")
		}
	}

	if c.RequestID.Header == "" {
		return invalid("request_id.header", "must not be empty")
	}

	if c.CORS.Enabled {
		if len(c.CORS.AllowedOrigins) == 0 {
			return invalid("cors.allowed_origins", "must not be empty")
		}
		if c.CORS.AllowCredentials && slices.Contains(c.CORS.AllowedOrigins, "*") {
			return invalid("cors.allow_credentials", "cannot be combined with the \"*\" origin")
		}
	}

	if c.Admin.Password != "" && c.Admin.Username == "" {
		return invalid("admin.username", "must not be empty")
	}

	return nil
}

// Duration is a time.Duration written in YAML as a Go duration string
// such as "5s" or "1m30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}

	if s == "" {
		*d = 0
		return nil
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}

	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Duration returns d as a time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
