// Package config loads server configuration from YAML, .env and the environment.
package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	CORS      CORSConfig      `yaml:"cors"`
	Log       LogConfig       `yaml:"log"`
	Progress  ProgressConfig  `yaml:"progress"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
	Fanout    FanoutConfig    `yaml:"fanout"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"        env:"SERVER_HTTP_ADDR"        env-default:":8080"`
	GRPCAddr        string        `yaml:"grpc_addr"        env:"SERVER_GRPC_ADDR"        env-default:":8081"`
	GRPCTLSCert     string        `yaml:"grpc_tls_cert"    env:"SERVER_GRPC_TLS_CERT"`
	GRPCTLSKey      string        `yaml:"grpc_tls_key"     env:"SERVER_GRPC_TLS_KEY"`
	HealthInterval  time.Duration `yaml:"health_interval"  env:"SERVER_HEALTH_INTERVAL"  env-default:"10s"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"   env:"SERVER_MAX_BODY_BYTES"   env-default:"1048576"`
	RatePerSecond   float64       `yaml:"rate_per_second"  env:"SERVER_RATE_PER_SECOND"  env-default:"20"`
	RateBurst       int           `yaml:"rate_burst"       env:"SERVER_RATE_BURST"       env-default:"40"`
	// TrustedProxies lists comma separated IPs or CIDRs allowed to set X-Forwarded-For.
	TrustedProxies string `yaml:"trusted_proxies" env:"SERVER_TRUSTED_PROXIES"`
}

// ProxyPrefixes parses TrustedProxies; a bare IP becomes a single-host prefix.
func (c ServerConfig) ProxyPrefixes() ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, s := range SplitList(c.TrustedProxies) {
		if strings.Contains(s, "/") {
			p, err := netip.ParsePrefix(s)
			if err != nil {
				return nil, fmt.Errorf("server.trusted_proxies: %w", err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("server.trusted_proxies: %w", err)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN      string `yaml:"dsn"       env:"DATABASE_DSN"       env-required:"true"`
	MaxConns int32  `yaml:"max_conns" env:"DATABASE_MAX_CONNS" env-default:"10"`
	Migrate  bool   `yaml:"migrate"   env:"DATABASE_MIGRATE"   env-default:"true"`
}

// AuthConfig holds token and sign-in limiter settings.
type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret"        env:"AUTH_JWT_SECRET"        env-required:"true"`
	JWTIssuer       string        `yaml:"jwt_issuer"        env:"AUTH_JWT_ISSUER"        env-default:"course-keeper"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"  env:"AUTH_ACCESS_TOKEN_TTL"  env-default:"2h"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"AUTH_REFRESH_TOKEN_TTL" env-default:"720h"`
	LimiterWindow   time.Duration `yaml:"limiter_window"    env:"AUTH_LIMITER_WINDOW"    env-default:"15m"`
	LimiterMaxFails int           `yaml:"limiter_max_fails" env:"AUTH_LIMITER_MAX_FAILS" env-default:"5"`
	LimiterBlockFor time.Duration `yaml:"limiter_block_for" env:"AUTH_LIMITER_BLOCK_FOR" env-default:"15m"`
}

// CORSConfig holds CORS settings. Lists are comma separated.
type CORSConfig struct {
	AllowedOrigins   string `yaml:"allowed_origins"   env:"CORS_ALLOWED_ORIGINS"   env-default:"*"`
	AllowedMethods   string `yaml:"allowed_methods"   env:"CORS_ALLOWED_METHODS"   env-default:"GET,POST,PATCH,DELETE,OPTIONS"`
	AllowedHeaders   string `yaml:"allowed_headers"   env:"CORS_ALLOWED_HEADERS"   env-default:"Authorization,Content-Type"`
	AllowCredentials bool   `yaml:"allow_credentials" env:"CORS_ALLOW_CREDENTIALS" env-default:"false"`
	MaxAge           int    `yaml:"max_age"           env:"CORS_MAX_AGE"           env-default:"600"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// ProgressConfig selects the progress percentage formula.
type ProgressConfig struct {
	InvertedFormula bool `yaml:"inverted_formula" env:"PROGRESS_INVERTED_FORMULA" env-default:"true"`
}

// BootstrapConfig seeds privileged accounts on an empty database.
type BootstrapConfig struct {
	AdminEmail     string `yaml:"admin_email"     env:"BOOTSTRAP_ADMIN_EMAIL"`
	AdminPassword  string `yaml:"admin_password"  env:"BOOTSTRAP_ADMIN_PASSWORD"`
	EditorEmail    string `yaml:"editor_email"    env:"BOOTSTRAP_EDITOR_EMAIL"`
	EditorPassword string `yaml:"editor_password" env:"BOOTSTRAP_EDITOR_PASSWORD"`
}

// FanoutConfig bounds new-card attachment concurrency.
type FanoutConfig struct {
	Parallelism int `yaml:"parallelism" env:"FANOUT_PARALLELISM" env-default:"4"`
}

// SplitList splits a comma separated setting, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
