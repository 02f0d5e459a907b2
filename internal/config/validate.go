package config

import (
	"fmt"
	"strings"
)

// Validate checks values cleanenv cannot express as tags.
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters (got %d)", len(c.Auth.JWTSecret))
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		return fmt.Errorf("auth: refresh_token_ttl (%s) must exceed access_token_ttl (%s) > 0",
			c.Auth.RefreshTokenTTL, c.Auth.AccessTokenTTL)
	}
	if c.Auth.LimiterMaxFails < 1 {
		return fmt.Errorf("auth.limiter_max_fails must be >= 1 (got %d)", c.Auth.LimiterMaxFails)
	}
	if c.Fanout.Parallelism < 1 {
		return fmt.Errorf("fanout.parallelism must be >= 1 (got %d)", c.Fanout.Parallelism)
	}
	if c.Server.RatePerSecond <= 0 || c.Server.RateBurst < 1 {
		return fmt.Errorf("server: rate_per_second and rate_burst must be positive")
	}
	if _, err := c.Server.ProxyPrefixes(); err != nil {
		return err
	}
	if (c.Server.GRPCTLSCert == "") != (c.Server.GRPCTLSKey == "") {
		return fmt.Errorf("server: grpc_tls_cert and grpc_tls_key go together")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console (got %q)", c.Log.Format)
	}
	if (c.Bootstrap.AdminEmail == "") != (c.Bootstrap.AdminPassword == "") {
		return fmt.Errorf("bootstrap: admin_email and admin_password go together")
	}
	if (c.Bootstrap.EditorEmail == "") != (c.Bootstrap.EditorPassword == "") {
		return fmt.Errorf("bootstrap: editor_email and editor_password go together")
	}
	return nil
}
