package applex

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// keyStore resolves Apple signing keys by kid, caching the most
// recently resolved key for the configured TTL. The cache holds a
// single entry on purpose: every refresh replaces it wholesale, and
// expiry is measured from the most recent fetch. Concurrent misses may
// race to fetch; the result is a redundant request, never a stale or
// half-updated read.
type keyStore struct {
	keysURL string
	ttl     time.Duration
	client  *http.Client

	mu        sync.RWMutex
	kid       string
	key       *rsa.PublicKey
	fetchedAt time.Time
}

func newKeyStore(keysURL string, ttl time.Duration, client *http.Client) *keyStore {
	return &keyStore{
		keysURL: keysURL,
		ttl:     ttl,
		client:  client,
	}
}

// resolveKey returns the public key for kid, hitting the network only
// on a cache miss or after the TTL has elapsed.
func (s *keyStore) resolveKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	s.mu.RLock()
	if s.key != nil && s.kid == kid && timeNow().Sub(s.fetchedAt) < s.ttl {
		key := s.key
		s.mu.RUnlock()
		return key, nil
	}
	s.mu.RUnlock()

	set, err := s.fetchKeySet(ctx)
	if err != nil {
		return nil, err
	}

	var match *applePublicKey
	for i := range set.Keys {
		if set.Keys[i].Kid == kid {
			match = &set.Keys[i]
			break
		}
	}
	if match == nil {
		// Legitimate during key rotation, not necessarily an attack.
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, kid)
	}

	key, err := match.rsaPublicKey()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.kid = kid
	s.key = key
	s.fetchedAt = timeNow()
	s.mu.Unlock()

	return key, nil
}

func (s *keyStore) fetchKeySet(ctx context.Context) (*appleKeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.keysURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrKeyFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %s", ErrKeyFetchFailed, resp.Status)
	}

	var set appleKeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrKeyFetchFailed, err)
	}
	if len(set.Keys) == 0 {
		return nil, fmt.Errorf("%w: key set is empty", ErrKeyFetchFailed)
	}
	return &set, nil
}
