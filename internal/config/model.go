// internal/config/model.go
//
// Typed configuration model for the edge personalization service.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `conf/.env`                   – dotenv values,
//   • `conf/edge.yaml`                       – primary static file,
//   • `EDGE_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the Vault client *after* unmarshalling, so secrets stay out of
// flat files while the model only ever stores plain strings.
//
// Validation happens immediately after unmarshal; the service fails fast
// if required fields are missing.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`–Koanf ignores `yaml`
//     tags unless configured otherwise.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.

package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
}

//
// Origin section
//

// Origin describes the static-site origin this service personalizes.
// BaseURL is the scheme+host of the pre-rendered site; Timeout caps a
// single upstream fetch.
type Origin struct {
	BaseURL string        `koanf:"base_url" validate:"required,url"`
	Timeout time.Duration `koanf:"timeout"`
}

//
// Database section
//

// Database holds the DSN template and its secret.
//
// The *template* (`DSN`) is kept in YAML so operators can tweak host,
// port, or flags without touching Vault.  The *secret* portion
// (`Password`) is normally a `vault:` reference resolved at boot.
type Database struct {
	DSN      string `koanf:"dsn"      validate:"required"`
	Password string `koanf:"password" validate:"required"`
}

//
// Redis section
//

// Redis points at the key-value cache backend.
type Redis struct {
	Addr     string `koanf:"addr" validate:"required,hostname_port"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

//
// Cache section
//

// Cache tunes the two KV cache tiers.  FreshnessWindow is the secondary
// staleness check applied to the query-result payload's embedded
// timestamp, independent of the backend TTL.
type Cache struct {
	QueryTTL        time.Duration `koanf:"query_ttl"`
	PageTTL         time.Duration `koanf:"page_ttl"`
	FreshnessWindow time.Duration `koanf:"freshness_window"`
}

//
// Warm section
//

// Warm drives the scheduled cache warmer: which countries × routes to
// pre-populate, how many pairs to warm concurrently, and the cron
// expression for the timer loop.
type Warm struct {
	Countries   []string `koanf:"countries"`
	Routes      []string `koanf:"routes"`
	Concurrency int      `koanf:"concurrency"`
	Cron        string   `koanf:"cron"`
}

//
// Admin section
//

// Admin secures the mutating endpoints.  Token is normally a `vault:`
// reference.
type Admin struct {
	Token string `koanf:"token" validate:"required"`
}

//
// Geo section
//

// Geo configures the GeoLite2 fallback used when the CDN country header
// is absent.  MMDBPath may be empty, in which case only the header and
// the default country are consulted.
type Geo struct {
	MMDBPath       string `koanf:"mmdb_path"`
	DefaultCountry string `koanf:"default_country"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime–never set in YAML or env.  The loader
// discovers `Root` (repo root or EDGE_ROOT override) so later code can
// build absolute file paths.
type Paths struct {
	Root string // EDGE_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Origin   Origin   `koanf:"origin"`
	Database Database `koanf:"database"`
	Redis    Redis    `koanf:"redis"`
	Cache    Cache    `koanf:"cache"`
	Warm     Warm     `koanf:"warm"`
	Admin    Admin    `koanf:"admin"`
	Geo      Geo      `koanf:"geo"`
	Paths    Paths    `koanf:"-"` // not loaded from config files
}

// Defaults fills zero-valued tunables with their production defaults.
// Called by the loader after unmarshal, before validation.
func (c *Config) Defaults() {
	if c.Origin.Timeout == 0 {
		c.Origin.Timeout = 10 * time.Second
	}
	if c.Cache.QueryTTL == 0 {
		c.Cache.QueryTTL = 30 * time.Minute
	}
	if c.Cache.PageTTL == 0 {
		c.Cache.PageTTL = time.Hour
	}
	if c.Cache.FreshnessWindow == 0 {
		c.Cache.FreshnessWindow = 30 * time.Minute
	}
	if c.Warm.Concurrency == 0 {
		c.Warm.Concurrency = 8
	}
	if c.Warm.Cron == "" {
		c.Warm.Cron = "*/30 * * * *"
	}
	if c.Geo.DefaultCountry == "" {
		c.Geo.DefaultCountry = "US"
	}
}
