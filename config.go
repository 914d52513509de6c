package authkit

import (
	"errors"
	"fmt"
	"time"

	"github.com/taskify-stack/authkit/token"
)

// Config carries all Service construction parameters. Instances are
// configured during initialization and then treated as immutable; there are
// no runtime knobs.
type Config struct {
	Token   TokenConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls signing and token lifetimes.
type TokenConfig struct {
	// Secret is the symmetric signing key. Required.
	Secret []byte
	// SigningMethod selects the HMAC variant: "hs256" (default), "hs384",
	// or "hs512".
	SigningMethod string
	// AccessTTL is the access-token lifetime. Default 30 minutes.
	AccessTTL time.Duration
	// RefreshTTL is the refresh-token lifetime and the registry entry TTL.
	// Default 7 days.
	RefreshTTL time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls the in-process operation counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			SigningMethod: string(token.MethodHS256),
			AccessTTL:     30 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for contradictions and missing required
// values. Misconfiguration is a constructor-time error, never a runtime panic.
func (c *Config) Validate() error {
	if len(c.Token.Secret) == 0 {
		return errors.New("token signing secret required")
	}
	if c.Token.AccessTTL <= 0 {
		return errors.New("access TTL must be positive")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("refresh TTL must be positive")
	}
	if c.Token.RefreshTTL < c.Token.AccessTTL {
		return errors.New("refresh TTL must not be shorter than access TTL")
	}

	switch token.SigningMethod(c.Token.SigningMethod) {
	case token.MethodHS256, token.MethodHS384, token.MethodHS512:
	case "":
	default:
		return fmt.Errorf("unsupported signing method %q", c.Token.SigningMethod)
	}

	if c.Audit.Enabled && c.Audit.BufferSize < 0 {
		return errors.New("audit buffer size must not be negative")
	}

	return nil
}
