// Package oauth2cache implements the OAuth2 client-credentials token
// cache from spec §4.5. Token acquisition is done with
// golang.org/x/oauth2/clientcredentials, the ecosystem-standard library
// for this grant type; the cache wrapper intentionally ignores both the
// library's own Token.Expiry and the upstream's expires_in, stamping a
// fixed now+3300s expiry instead, per spec's "predictable contract"
// requirement.
package oauth2cache

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/anandb/mockrelay/internal/apperrors"
	"github.com/anandb/mockrelay/internal/model"
)

// fixedTTL is the cache lifetime spec §4.5 mandates, independent of
// whatever expires_in the issuer reports.
const fixedTTL = 3300 * time.Second

const fetchTimeout = 30 * time.Second

// nower is overridden in tests so cache-freshness assertions don't need to
// sleep real wall-clock time.
type nower func() time.Time

// Cache acquires and caches client-credentials tokens keyed by
// "tokenUrl:clientId" (spec §4.5). Safe for concurrent use: concurrent
// misses for the same key may each perform a fetch, but the final cache
// write always wins atomically.
type Cache struct {
	log        *zap.Logger
	httpClient *http.Client
	now        nower

	mu      sync.Mutex
	entries map[string]model.TokenCacheEntry
}

func NewCache(log *zap.Logger) *Cache {
	return &Cache{
		log:        log,
		httpClient: &http.Client{Timeout: fetchTimeout},
		now:        time.Now,
		entries:    make(map[string]model.TokenCacheEntry),
	}
}

func cacheKey(cfg *model.OAuth2Config) string {
	return cfg.TokenURL + ":" + cfg.ClientID
}

// GetAccessToken returns a cached token if still fresh, otherwise fetches
// and caches a new one.
func (c *Cache) GetAccessToken(ctx context.Context, cfg *model.OAuth2Config) (string, error) {
	key := cacheKey(cfg)
	now := c.now()

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if ok && !entry.Expired(now) {
		return entry.Token, nil
	}

	token, err := c.fetch(ctx, cfg)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[key] = model.TokenCacheEntry{Token: token, ExpiryInstant: now.Add(fixedTTL)}
	c.mu.Unlock()
	return token, nil
}

func (c *Cache) fetch(ctx context.Context, cfg *model.OAuth2Config) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	ccCfg := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams, // client_id and client_secret go in the form body
	}
	if cfg.Scope != "" {
		ccCfg.Scopes = []string{cfg.Scope}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := ccCfg.Token(ctx)
	if err != nil {
		c.log.Warn("oauth2 token acquisition failed", zap.String("token_url", cfg.TokenURL), zap.Error(err))
		return "", apperrors.TokenAcquisitionError(err, "fetching token from %s", cfg.TokenURL)
	}
	if tok.AccessToken == "" {
		return "", apperrors.TokenAcquisitionError(nil, "response from %s had no access_token", cfg.TokenURL)
	}
	return tok.AccessToken, nil
}
