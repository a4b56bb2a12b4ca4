package config

import "time"

// RateLimitConfig defines the per-minute budgets for the two request
// tiers. Credential endpoints (login, register, forgot/reset password)
// get a much tighter budget than the general API because they are the
// ones worth brute-forcing.
type RateLimitConfig struct {
	Enabled    bool
	AuthPerMin int           // credential endpoints
	APIPerMin  int           // everything else
	TTL        time.Duration // idle bucket expiry in redis
	Prefix     string        // key namespace
}

// LoadRateLimitConfig reads environment variables to build a
// RateLimitConfig. Defaults mirror typical starter settings: 5/min on
// credential endpoints, 100/min elsewhere.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:    envBool("RATE_LIMIT_ENABLED", true),
		AuthPerMin: envInt("RATE_LIMIT_AUTH_PER_MIN", 5),
		APIPerMin:  envInt("RATE_LIMIT_API_PER_MIN", 100),
		TTL:        10 * time.Minute,
		Prefix:     envStr("RATE_LIMIT_PREFIX", "rl"),
	}
	if d, err := time.ParseDuration(envStr("RATE_LIMIT_TTL", "")); err == nil && d > 0 {
		cfg.TTL = d
	}
	if cfg.AuthPerMin < 1 {
		cfg.AuthPerMin = 1
	}
	if cfg.APIPerMin < 1 {
		cfg.APIPerMin = 1
	}
	return cfg
}
