package server

import (
	"log/slog"
)

// Config holds authorization server configuration
type Config struct {
	// Issuer is the server's issuer identifier (base URL), used for
	// security header decisions (HSTS requires an https issuer).
	Issuer string

	// AuthorizationCodeTTL is how long authorization codes are valid
	AuthorizationCodeTTL int64 // seconds, default: 600 (10 minutes)

	// AccessTokenTTL is how long access tokens are valid
	AccessTokenTTL int64 // seconds, default: 3600 (1 hour)

	// SessionTTL is how long a pending authorization session may wait for
	// the resource owner to log in
	SessionTTL int64 // seconds, default: 600 (10 minutes)

	// TrustProxy enables trusting X-Forwarded-For and X-Real-IP headers.
	// Only enable behind a trusted reverse proxy.
	TrustProxy bool // default: false

	// TrustedProxyCount is the number of trusted proxies in front of this
	// server, used with TrustProxy to extract the client IP.
	TrustedProxyCount int // default: 1

	// LoginRateLimit is the sustained per-IP login attempt rate
	LoginRateLimit int // requests/second, default: 5

	// LoginRateBurst is the per-IP login attempt burst size
	LoginRateBurst int // default: 10

	// AuditEnabled turns on security audit logging
	AuditEnabled bool // default: true (via AuditDisabled)

	// AuditDisabled turns audit logging off. Phrased negatively so the
	// zero-value Config audits by default.
	AuditDisabled bool
}

// applyDefaults fills zero-valued fields with safe defaults and warns on
// settings that weaken the deployment.
func applyDefaults(config *Config, logger *slog.Logger) *Config {
	if config.AuthorizationCodeTTL == 0 {
		config.AuthorizationCodeTTL = 600 // 10 minutes
	}
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = 3600 // 1 hour
	}
	if config.SessionTTL == 0 {
		config.SessionTTL = 600 // 10 minutes
	}
	if config.TrustedProxyCount == 0 {
		config.TrustedProxyCount = 1
	}
	if config.LoginRateLimit == 0 {
		config.LoginRateLimit = 5
	}
	if config.LoginRateBurst == 0 {
		config.LoginRateBurst = 10
	}

	config.AuditEnabled = !config.AuditDisabled
	if config.AuditDisabled {
		logger.Warn("Security audit logging is disabled")
	}
	if config.TrustProxy {
		logger.Warn("Proxy headers are trusted for client IP extraction",
			"trusted_proxy_count", config.TrustedProxyCount)
	}

	return config
}
