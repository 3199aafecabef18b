// Package config holds the interceptor configuration. It is loaded once at
// startup and treated as read-only afterwards.
package config

import (
	"time"

	"github.com/joeydtaylor/steeze-bearer/pkg/assertion"
	"github.com/joeydtaylor/steeze-bearer/pkg/middleware/body"
	"github.com/joeydtaylor/steeze-bearer/pkg/transport/httpx"
)

const (
	EnvPath         = "BEARER_CONFIG"
	DefaultPath     = "bearer.toml"
	EnvCertPassword = "BEARER_CERT_PASSWORD"

	maskedSecret = "*"
)

type Config struct {
	Enabled             bool     `toml:"enabled" json:"enabled"`
	AppliedPathPrefixes []string `toml:"applied_path_prefixes" json:"applied_path_prefixes"`
	ServiceHost         string   `toml:"service_host" json:"service_host"`
	TokenURL            string   `toml:"token_url" json:"token_url"`
	ProxyHost           string   `toml:"proxy_host" json:"proxy_host"`
	ProxyPort           int      `toml:"proxy_port" json:"proxy_port"`
	EnableHTTP2         bool     `toml:"enable_http2" json:"enable_http2"`
	CertFilename        string   `toml:"cert_filename" json:"cert_filename"`
	CertPassword        string   `toml:"cert_password" json:"cert_password"`
	AuthIssuer          string   `toml:"auth_issuer" json:"auth_issuer"`
	AuthSubject         string   `toml:"auth_subject" json:"auth_subject"`
	AuthAudience        string   `toml:"auth_audience" json:"auth_audience"`

	Client ClientConfig `toml:"client" json:"client"`
	Cache  CacheConfig  `toml:"cache" json:"cache"`
	Body   BodyConfig   `toml:"body" json:"body"`
}

type ClientConfig struct {
	ConnectTimeoutMS   int    `toml:"connect_timeout_ms" json:"connect_timeout_ms"`
	RequestTimeoutMS   int    `toml:"request_timeout_ms" json:"request_timeout_ms"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify" json:"insecure_skip_verify"`
	CAFile             string `toml:"ca_file" json:"ca_file"`
}

type CacheConfig struct {
	TokenLifetimeSeconds     int `toml:"token_lifetime_seconds" json:"token_lifetime_seconds"`
	SkewMarginMS             int `toml:"skew_margin_ms" json:"skew_margin_ms"`
	AssertionLifetimeSeconds int `toml:"assertion_lifetime_seconds" json:"assertion_lifetime_seconds"`
}

type BodyConfig struct {
	Enabled          bool  `toml:"enabled" json:"enabled"`
	CacheRequestBody bool  `toml:"cache_request_body" json:"cache_request_body"`
	MaxBodyBytes     int64 `toml:"max_body_bytes" json:"max_body_bytes"`
}

// Default returns a disabled configuration with every tunable at its default.
func Default() Config {
	return Config{
		Client: ClientConfig{ConnectTimeoutMS: 3000, RequestTimeoutMS: 30000},
		Cache: CacheConfig{
			TokenLifetimeSeconds:     300,
			SkewMarginMS:             5000,
			AssertionLifetimeSeconds: 300,
		},
		Body: BodyConfig{MaxBodyBytes: body.DefaultMaxBytes},
	}
}

// Masked is the copy exposed on the info endpoint; secrets are replaced.
func (c Config) Masked() Config {
	out := c
	out.AppliedPathPrefixes = append([]string(nil), c.AppliedPathPrefixes...)
	if out.CertPassword != "" {
		out.CertPassword = maskedSecret
	}
	return out
}

func (c Config) ClientOptions() httpx.ClientOptions {
	return httpx.ClientOptions{
		ConnectTimeout:     ms(c.Client.ConnectTimeoutMS),
		RequestTimeout:     ms(c.Client.RequestTimeoutMS),
		EnableHTTP2:        c.EnableHTTP2,
		ProxyHost:          c.ProxyHost,
		ProxyPort:          c.ProxyPort,
		InsecureSkipVerify: c.Client.InsecureSkipVerify,
		CAFile:             c.Client.CAFile,
	}
}

func (c Config) SignerOptions() assertion.Options {
	return assertion.Options{
		Issuer:     c.AuthIssuer,
		Subject:    c.AuthSubject,
		Audience:   c.AuthAudience,
		KeyFile:    c.CertFilename,
		Passphrase: c.CertPassword,
		Lifetime:   time.Duration(c.Cache.AssertionLifetimeSeconds) * time.Second,
	}
}

func (c Config) BodyOptions() body.Options {
	return body.Options{
		Enabled:  c.Body.Enabled,
		Cache:    c.Body.CacheRequestBody,
		MaxBytes: c.Body.MaxBodyBytes,
	}
}

func (c Config) TokenLifetime() time.Duration {
	return time.Duration(c.Cache.TokenLifetimeSeconds) * time.Second
}

func (c Config) Skew() time.Duration { return ms(c.Cache.SkewMarginMS) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
