// Package config defines the authentication core's configuration
// surface and the startup validation pipeline that must pass before the
// server accepts traffic.
package config

import (
	"fmt"
	"net"
	"time"

	"github.com/zeromicro/go-zero/rest"
)

// KeySource describes one RSA keypair on disk, keyed by kid.
type KeySource struct {
	Kid            string
	PrivateKeyPath string
	PublicKeyPath  string
}

// Config is the goctl-loadable configuration struct for the auth core's
// HTTP server.
type Config struct {
	rest.RestConf

	JWT struct {
		Issuer           string
		AccessAudience   string
		RefreshAudience  string
		AccessTTL        time.Duration
		RefreshTTL       time.Duration
		ActiveKid        string
		VerificationKids []string
		Keys             []KeySource
		RotateRefresh    bool `json:",default=true"`
	}

	Security struct {
		Store struct {
			RefreshBackend string `json:",options=redis|postgres|mongo|memory"`
		}
		Redis struct {
			Addr     string
			Password string `json:",optional"`
			DB       int    `json:",optional"`
		}
		Postgres struct {
			DSN string `json:",optional"`
		}
		Mongo struct {
			URI      string `json:",optional"`
			Database string `json:",optional"`
		}
		Audit struct {
			NatsUrl string `json:",optional"`
		}
		Attempts struct {
			MaxAttempts   int           `json:",default=5"`
			Window        time.Duration `json:",default=15m"`
			BlockDuration time.Duration `json:",default=15m"`
		}
		RateLimit struct {
			Strategy       string   `json:",options=IP|IP_USER,default=IP_USER"`
			TrustedProxies []string `json:",optional"`
		}
	}

	Metrics struct {
		Namespace string `json:",default=authcore"`
	}
}

// Validate runs the startup validation pipeline: JWT parameters, at
// least one configured key entry, TTL sanity, mandatory trusted-proxy
// CIDRs outside dev mode, and the connection setting of the selected
// refresh backend. It does not read the key files (keymaterial.Load
// does, when the service context is built) and does not dial the
// configured stores.
func (c *Config) Validate() error {
	if c.JWT.Issuer == "" {
		return fmt.Errorf("config: jwt.issuer must not be empty")
	}
	if c.JWT.AccessAudience == "" || c.JWT.RefreshAudience == "" {
		return fmt.Errorf("config: jwt.accessAudience and jwt.refreshAudience must not be empty")
	}
	if c.JWT.AccessAudience == c.JWT.RefreshAudience {
		return fmt.Errorf("config: jwt.accessAudience and jwt.refreshAudience must differ")
	}
	if c.JWT.ActiveKid == "" {
		return fmt.Errorf("config: jwt.activeKid must not be empty")
	}
	if len(c.JWT.Keys) == 0 {
		return fmt.Errorf("config: at least one jwt.keys entry is required")
	}
	if c.JWT.AccessTTL < 5*time.Minute {
		return fmt.Errorf("config: jwt.accessTtl must be at least 5m, got %s", c.JWT.AccessTTL)
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return fmt.Errorf("config: jwt.refreshTtl (%s) must exceed jwt.accessTtl (%s)", c.JWT.RefreshTTL, c.JWT.AccessTTL)
	}

	if c.Mode != "dev" && len(c.Security.RateLimit.TrustedProxies) == 0 {
		return fmt.Errorf("config: security.rateLimit.trustedProxies is mandatory outside dev mode")
	}
	for _, cidr := range c.Security.RateLimit.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("config: invalid trusted proxy CIDR %q: %w", cidr, err)
		}
	}

	switch c.Security.Store.RefreshBackend {
	case "redis":
		if c.Security.Redis.Addr == "" {
			return fmt.Errorf("config: security.redis.addr required for refresh backend %q", c.Security.Store.RefreshBackend)
		}
	case "postgres":
		if c.Security.Postgres.DSN == "" {
			return fmt.Errorf("config: security.postgres.dsn required for refresh backend %q", c.Security.Store.RefreshBackend)
		}
	case "mongo":
		if c.Security.Mongo.URI == "" {
			return fmt.Errorf("config: security.mongo.uri required for refresh backend %q", c.Security.Store.RefreshBackend)
		}
	case "memory":
		// test-only backend, nothing to validate
	default:
		return fmt.Errorf("config: unknown security.store.refreshBackend %q", c.Security.Store.RefreshBackend)
	}

	return nil
}
