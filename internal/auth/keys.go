package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/expensetracker/internal/cache"
	"github.com/geocoder89/expensetracker/internal/domain/identity"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
	"google.golang.org/api/googleapi"
)

// GoogleCertsURL publishes the x509 certificates that sign ID tokens.
const GoogleCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

const (
	keySetCacheKey    = "keyset"
	defaultKeySetTTL  = time.Hour
	keySetFetchBudget = 5 * time.Second
)

// KeySource resolves a token's kid to the provider's public key. The key set
// is cached for as long as the provider's Cache-Control allows, and
// concurrent misses share a single fetch.
type KeySource struct {
	url   string
	hc    *http.Client
	cache *cache.Cache
	group singleflight.Group
}

func NewKeySource(url string, hc *http.Client) *KeySource {
	if hc == nil {
		hc = &http.Client{Timeout: keySetFetchBudget}
	}

	return &KeySource{
		url:   url,
		hc:    hc,
		cache: cache.New(defaultKeySetTTL),
	}
}

func (s *KeySource) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if kid == "" {
		return nil, fmt.Errorf("%w: token has no kid", identity.ErrInvalidCredential)
	}

	keys, err := s.keySet(ctx)

	if err != nil {
		return nil, err
	}

	key, ok := keys[kid]

	if !ok {
		return nil, fmt.Errorf("%w: unknown signing key %q", identity.ErrInvalidCredential, kid)
	}

	return key, nil
}

func (s *KeySource) keySet(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	if v, ok := s.cache.Get(keySetCacheKey); ok {
		return v.(map[string]*rsa.PublicKey), nil
	}

	// the shared fetch outlives any single caller, so one cancelled request
	// does not fail everyone waiting on it
	ch := s.group.DoChan(keySetCacheKey, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), keySetFetchBudget)
		defer cancel()

		keys, ttl, err := s.fetch(fetchCtx)

		if err != nil {
			return nil, err
		}

		s.cache.SetWithTTL(keySetCacheKey, keys, ttl)
		return keys, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[string]*rsa.PublicKey), nil

	case <-ctx.Done():
		return nil, fmt.Errorf("%w: waiting for signing keys: %w", identity.ErrUnavailable, ctx.Err())
	}
}

func (s *KeySource) fetch(ctx context.Context) (map[string]*rsa.PublicKey, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)

	if err != nil {
		return nil, 0, fmt.Errorf("build key request: %w", err)
	}

	res, err := s.hc.Do(req)

	if err != nil {
		return nil, 0, fmt.Errorf("%w: fetch signing keys: %w", identity.ErrUnavailable, err)
	}

	defer googleapi.CloseBody(res)

	err = googleapi.CheckResponse(res)

	if err != nil {
		return nil, 0, fmt.Errorf("%w: fetch signing keys: %w", identity.ErrUnavailable, err)
	}

	var certs map[string]string

	err = json.NewDecoder(res.Body).Decode(&certs)

	if err != nil {
		return nil, 0, fmt.Errorf("%w: decode signing keys: %w", identity.ErrUnavailable, err)
	}

	keys := make(map[string]*rsa.PublicKey, len(certs))

	for kid, pem := range certs {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))

		if err != nil {
			return nil, 0, fmt.Errorf("%w: parse key %q: %w", identity.ErrUnavailable, kid, err)
		}
		keys[kid] = key
	}

	return keys, maxAge(res.Header.Get("Cache-Control")), nil
}

// maxAge reads max-age out of a Cache-Control header, falling back to an hour.
func maxAge(header string) time.Duration {
	for _, directive := range strings.Split(header, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")

		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}

		secs, err := strconv.Atoi(value)

		if err != nil || secs <= 0 {
			break
		}

		return time.Duration(secs) * time.Second
	}

	return defaultKeySetTTL
}
