package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	toml "github.com/pelletier/go-toml/v2"
)

// Load reads the TOML file at path, applies env overrides and validates.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// LoadFromEnv loads the file named by BEARER_CONFIG, or bearer.toml.
func LoadFromEnv() (Config, error) {
	return Load(envOr(EnvPath, DefaultPath))
}

func Parse(b []byte) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if v := os.Getenv(EnvCertPassword); v != "" {
		cfg.CertPassword = v
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate normalises prefixes and hosts, then reports every problem at once.
// The token URL and key file are not required here; a missing one surfaces
// as a typed failure on the first intercepted request.
func (c *Config) Validate() error {
	var result error

	prefixes := make([]string, 0, len(c.AppliedPathPrefixes))
	for _, p := range c.AppliedPathPrefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		prefixes = append(prefixes, p)
	}
	c.AppliedPathPrefixes = prefixes

	c.ServiceHost = strings.TrimRight(strings.TrimSpace(c.ServiceHost), "/")
	c.TokenURL = strings.TrimSpace(c.TokenURL)
	c.ProxyHost = strings.TrimSpace(c.ProxyHost)

	if c.Enabled {
		if len(c.AppliedPathPrefixes) == 0 {
			result = multierror.Append(result, fmt.Errorf("applied_path_prefixes: at least one prefix is required"))
		}
		if c.ServiceHost == "" {
			result = multierror.Append(result, fmt.Errorf("service_host: required when enabled"))
		} else if err := checkURL(c.ServiceHost); err != nil {
			result = multierror.Append(result, fmt.Errorf("service_host: %w", err))
		}
	}
	if c.TokenURL != "" {
		if err := checkURL(c.TokenURL); err != nil {
			result = multierror.Append(result, fmt.Errorf("token_url: %w", err))
		}
	}
	if c.ProxyPort < 0 || c.ProxyPort > 65535 {
		result = multierror.Append(result, fmt.Errorf("proxy_port: %d out of range", c.ProxyPort))
	}
	if c.Client.ConnectTimeoutMS < 0 {
		result = multierror.Append(result, fmt.Errorf("client.connect_timeout_ms: must not be negative"))
	}
	if c.Client.RequestTimeoutMS < 0 {
		result = multierror.Append(result, fmt.Errorf("client.request_timeout_ms: must not be negative"))
	}
	if c.Cache.TokenLifetimeSeconds <= 0 {
		result = multierror.Append(result, fmt.Errorf("cache.token_lifetime_seconds: must be positive"))
	}
	if c.Cache.AssertionLifetimeSeconds <= 0 {
		result = multierror.Append(result, fmt.Errorf("cache.assertion_lifetime_seconds: must be positive"))
	}
	if c.Cache.SkewMarginMS < 0 {
		result = multierror.Append(result, fmt.Errorf("cache.skew_margin_ms: must not be negative"))
	} else if c.Cache.TokenLifetimeSeconds > 0 && c.Skew() >= c.TokenLifetime() {
		result = multierror.Append(result, fmt.Errorf("cache.skew_margin_ms: must be shorter than the token lifetime"))
	}
	if c.Body.MaxBodyBytes < 0 {
		result = multierror.Append(result, fmt.Errorf("body.max_body_bytes: must not be negative"))
	}

	return result
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q: missing host", raw)
	}
	return nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
