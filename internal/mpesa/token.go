package mpesa

import (
	"context"
	"time"

	"github.com/WordpressDesigne/mpesaprompt/internal/cache"
	"github.com/WordpressDesigne/mpesaprompt/internal/clock"
	"golang.org/x/sync/singleflight"
)

const (
	// TokenSafetyMargin is how long before expiry a token stops being handed out.
	TokenSafetyMargin = 60 * time.Second

	defaultTokenLifetime = 3599 * time.Second
)

type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

type tokenFetcher func(ctx context.Context, creds Credentials) (Token, error)

// TokenCache hands out bearer tokens per credential identity and renews them
// with at most one in-flight exchange per key.
type TokenCache struct {
	entries *cache.TTLCache[string, Token]
	group   singleflight.Group
	fetch   tokenFetcher
	clock   clock.Clock
}

func NewTokenCache(fetch tokenFetcher, clk clock.Clock) *TokenCache {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &TokenCache{
		entries: cache.NewTTLCacheWithClock[string, Token](clk.Now),
		fetch:   fetch,
		clock:   clk,
	}
}

// Token returns a token valid for at least TokenSafetyMargin, exchanging credentials when needed.
func (c *TokenCache) Token(ctx context.Context, creds Credentials) (string, error) {
	key := creds.cacheKey()
	if tok, ok := c.cached(key); ok {
		return tok.AccessToken, nil
	}

	// The exchange outlives any single caller so a cancelled request does not fail the others.
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		if tok, ok := c.cached(key); ok {
			return tok, nil
		}
		tok, err := c.fetch(detached, creds)
		if err != nil {
			return Token{}, err
		}
		if ttl := tok.ExpiresAt.Sub(c.clock.Now()) - TokenSafetyMargin; ttl > 0 {
			c.entries.Set(key, tok, ttl)
		}
		return tok, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		tok := res.Val.(Token)
		return tok.AccessToken, nil
	}
}

// Invalidate drops the cached token for creds, e.g. after the gateway answers 401.
func (c *TokenCache) Invalidate(creds Credentials) {
	c.entries.Delete(creds.cacheKey())
}

func (c *TokenCache) cached(key string) (Token, bool) {
	tok, ok := c.entries.Get(key)
	if !ok || tok.AccessToken == "" {
		return Token{}, false
	}
	if !c.clock.Now().Before(tok.ExpiresAt.Add(-TokenSafetyMargin)) {
		return Token{}, false
	}
	return tok, true
}
