// internal/config/loader.go
//
// Configuration loader.
//
/*
Context
--------
`Load()` builds one immutable `Config` struct from three layers (highest
precedence last):

  1. Optional `conf/.env` – dotenv values for local development.
  2. `conf/edge.yaml`.
  3. Environment variables prefixed `EDGE_`, where `__` maps to “.”
     (e.g., `EDGE_REDIS__ADDR → redis.addr`).

After merging, the tree is unmarshalled into strongly-typed structs,
filled with defaults, validated, enriched with the runtime root path, and
cached in an `atomic.Pointer` for lock-free reads.  `Reload()` simply
calls `Load()` again and swaps the pointer.

Secret references (`vault:` prefixed values) are left untouched here; the
boot sequence resolves them through internal/vault before wiring the
database and admin surfaces.

Notes
-----
  • `rootDir()` climbs the cwd tree until it finds `conf/edge.yaml`, so
    `go run ./cmd/edge` works from any sub-directory.
  • Logs use the global *sugared* logger (`zap.S()`) so early boot issues
    surface even before the file logger is installed.
  • Oxford commas, two spaces after periods.
*/
package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

var current atomic.Pointer[Config]

/*──────────────────────────── root discovery ───────────────────────────────*/

// rootDir resolves EDGE_ROOT or climbs directories until conf/edge.yaml
// is found.  Falls back to the executable heuristic for the production
// layout (bin/edge next to conf/).
func rootDir() string {
	if r := os.Getenv("EDGE_ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", "edge.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir { // reached filesystem root
			break
		}
		dir = parent
	}

	exe, _ := os.Executable()
	if filepath.Base(filepath.Dir(exe)) == "bin" {
		return filepath.Dir(filepath.Dir(exe))
	}
	return wd
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// Load reads .env, YAML, env overrides, validates, and caches Config.
func Load() (*Config, error) {
	root := rootDir()
	zap.S().Debugw("config root resolved", "root", root)

	// .env (optional, no error if missing)
	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")

	yamlPath := filepath.Join(root, "conf", "edge.yaml")
	if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
		zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
		return nil, err
	}

	// Env overrides: EDGE_REDIS__ADDR → redis.addr
	if err := k.Load(env.Provider("EDGE_", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(s, "EDGE_"), "__", "."))
	}), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}

	cfg.Defaults()
	cfg.Paths.Root = root
	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	current.Store(&cfg)
	zap.S().Infow("config loaded",
		"listen_addr", cfg.HTTP.ListenAddr,
		"origin", cfg.Origin.BaseURL,
		"redis", cfg.Redis.Addr,
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

func Get() *Config  { return current.Load() }
func Reload() error { _, err := Load(); return err }
