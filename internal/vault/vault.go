// internal/vault/vault.go
//
// Vault client wrapper for the edge service.
//
// Context
// -------
//   - Concurrency-safe wrapper around the HashiCorp Vault Go SDK.
//   - Adds background token renewal, KV-v2 helpers, and per-key caching.
//   - Config values of the form `vault:<mount/path>#<key>` – the database
//     password and the admin bearer token – are resolved through Resolve()
//     during boot.
//
// Public workflow
// ---------------
//  1. cli, err := vault.New(ctx)                     // during boot.
//  2. val, err := cli.Resolve(ctx, cfgValue)         // `vault:` or plain.
//
// Notes
// -----
//   - Environment expectations: VAULT_ADDR and VAULT_TOKEN.
//   - Oxford commas, two spaces after periods.
package vault

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"
)

// RefPrefix marks a config value as a Vault reference.
const RefPrefix = "vault:"

// resolveTTL caches resolved secrets briefly so repeated boots of
// sub-systems do not hammer Vault.
const resolveTTL = 5 * time.Minute

//
// SECTION 1.  Public façade
//

// Client is safe for concurrent use.  Create once at startup.  Zero value
// is invalid.
type Client struct {
	api *vault.Client

	cacheMu sync.RWMutex
	cache   map[string]cached // canonical path#key → value + expiry.
}

type cached struct {
	val string
	exp time.Time
}

// New constructs a Vault client and starts a background token-renewal
// loop tied to ctx.
func New(ctx context.Context) (*Client, error) {
	cfg := vault.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return nil, fmt.Errorf("vault env cfg: %w", err)
	}

	apiCli, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault api: %w", err)
	}

	if tok := os.Getenv("VAULT_TOKEN"); tok != "" {
		apiCli.SetToken(tok)
	}

	c := &Client{
		api:   apiCli,
		cache: make(map[string]cached),
	}

	go c.renewLoop(ctx)
	return c, nil
}

// Resolve returns val unchanged unless it carries the `vault:` prefix, in
// which case the referenced KV-v2 secret is fetched.  Reference shape:
// `vault:secret/data-path#field`.
func (c *Client) Resolve(ctx context.Context, val string) (string, error) {
	if !strings.HasPrefix(val, RefPrefix) {
		return val, nil
	}
	ref := strings.TrimPrefix(val, RefPrefix)
	path, key, ok := strings.Cut(ref, "#")
	if !ok {
		return "", fmt.Errorf("malformed vault reference %q (want path#key)", val)
	}
	return c.GetKV(ctx, path, key, resolveTTL)
}

// GetKV fetches one string field from a KV-v2 secret, consulting the
// in-process cache first when ttl > 0.
func (c *Client) GetKV(ctx context.Context, secretPath, key string, ttl time.Duration) (string, error) {
	canonical := secretPath + "#" + key

	if ttl > 0 {
		c.cacheMu.RLock()
		if cv, ok := c.cache[canonical]; ok && time.Now().Before(cv.exp) {
			c.cacheMu.RUnlock()
			return cv.val, nil
		}
		c.cacheMu.RUnlock()
	}

	mount, rel := splitMount(secretPath)
	sec, err := c.api.KVv2(mount).Get(ctx, rel)
	if err != nil {
		return "", fmt.Errorf("vault get %s: %w", secretPath, err)
	}

	raw, ok := sec.Data[key]
	if !ok {
		return "", fmt.Errorf("key %q not found in secret %q", key, secretPath)
	}

	sval, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("value at %s#%s is not a string", secretPath, key)
	}

	if ttl > 0 {
		c.cacheMu.Lock()
		c.cache[canonical] = cached{val: sval, exp: time.Now().Add(ttl)}
		c.cacheMu.Unlock()
	}

	return sval, nil
}

//
// SECTION 2.  Background token renewal
//

func (c *Client) renewLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// Probe the current token.
		sec, err := c.api.Auth().Token().RenewSelf(0)
		if err != nil {
			zap.S().Warnw("vault token renew self failed", "err", err)
			backoff(ctx, 30*time.Second)
			continue
		}

		if sec == nil || !sec.Auth.Renewable {
			zap.S().Infow("vault token not renewable, sleeping 1h")
			backoff(ctx, time.Hour)
			continue
		}

		renewer, err := c.api.NewRenewer(&vault.RenewerInput{
			Secret: sec,
			Grace:  15 * time.Second,
		})
		if err != nil {
			zap.S().Warnw("vault renewer init error", "err", err)
			backoff(ctx, 30*time.Second)
			continue
		}

		go renewer.Renew()

		for {
			select {
			case <-ctx.Done():
				renewer.Stop()
				return
			case err := <-renewer.DoneCh():
				renewer.Stop()
				if err != nil {
					zap.S().Warnw("vault token renewal stopped", "err", err)
				}
				backoff(ctx, 15*time.Second)
				goto probe
			case ev := <-renewer.RenewCh():
				if ev != nil && ev.Secret != nil && ev.Secret.Auth != nil {
					zap.S().Debugw("vault token renewed", "ttl_s", ev.Secret.Auth.LeaseDuration)
				}
			}
		}
	probe:
	}
}

//
// SECTION 3.  Helpers
//

func splitMount(p string) (mount, rel string) {
	if p == "" {
		return "", ""
	}
	parts := strings.SplitN(p, "/", 2)
	mount = parts[0]
	if len(parts) == 2 {
		rel = parts[1]
	}
	return
}

func backoff(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
