package trust

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	id "zapgate/pkg/domain"
)

// RelayOracle queries an external web-of-trust relay for membership. The
// relay owns the trust graph; this client only asks the question.
//
// Lookups fail closed: when the relay is unreachable the submitter is
// treated as untrusted and goes through the payment path, which is the safe
// default for an admission gate.
type RelayOracle struct {
	baseURL string
	client  *http.Client
}

// NewRelayOracle creates a trust client for the relay at baseURL.
func NewRelayOracle(baseURL string) *RelayOracle {
	return &RelayOracle{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

type trustCheckResponse struct {
	Trusted bool `json:"trusted"`
}

// IsTrusted asks the relay's trust-check endpoint about the pubkey.
func (o *RelayOracle) IsTrusted(ctx context.Context, pubkey id.Pubkey) (bool, error) {
	endpoint := fmt.Sprintf("%s/api/trust-check?pubkey=%s", o.baseURL, url.QueryEscape(pubkey.String()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("build trust-check request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("trust-check request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("trust-check returned status %d", resp.StatusCode)
	}

	var body trustCheckResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decode trust-check response: %w", err)
	}
	return body.Trusted, nil
}

// CachedOracle wraps another oracle with a TTL cache so a burst of
// submissions from one identity does not hammer the relay.
type CachedOracle struct {
	inner Oracle
	ttl   time.Duration

	mu    sync.Mutex
	cache map[id.Pubkey]cachedVerdict
	now   func() time.Time
}

type cachedVerdict struct {
	trusted   bool
	expiresAt time.Time
}

// NewCachedOracle wraps inner with the given cache TTL.
func NewCachedOracle(inner Oracle, ttl time.Duration) *CachedOracle {
	return &CachedOracle{
		inner: inner,
		ttl:   ttl,
		cache: make(map[id.Pubkey]cachedVerdict),
		now:   time.Now,
	}
}

// IsTrusted returns the cached verdict when fresh, otherwise consults the
// inner oracle. Errors are not cached; the next call retries.
func (o *CachedOracle) IsTrusted(ctx context.Context, pubkey id.Pubkey) (bool, error) {
	o.mu.Lock()
	if verdict, ok := o.cache[pubkey]; ok && o.now().Before(verdict.expiresAt) {
		o.mu.Unlock()
		return verdict.trusted, nil
	}
	o.mu.Unlock()

	trusted, err := o.inner.IsTrusted(ctx, pubkey)
	if err != nil {
		return false, err
	}

	o.mu.Lock()
	o.cache[pubkey] = cachedVerdict{trusted: trusted, expiresAt: o.now().Add(o.ttl)}
	o.mu.Unlock()
	return trusted, nil
}
