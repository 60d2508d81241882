package applex

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// newKeyServer serves an Apple-shaped key document and counts fetches.
func newKeyServer(t *testing.T, keys ...applePublicKey) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var fetches atomic.Int64
	payload, err := json.Marshal(appleKeySet{Keys: keys})
	if err != nil {
		t.Fatalf("marshal key set: %v", err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(payload)
	}))
	t.Cleanup(server.Close)
	return server, &fetches
}

func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestKeyStore_CacheWithinTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedClock(t, now)

	key := generateTestKey(t)
	server, fetches := newKeyServer(t, descriptorFromKey(t, key, "key-1"))
	store := newKeyStore(server.URL, time.Hour, server.Client())

	ctx := context.Background()
	first, err := store.resolveKey(ctx, "key-1")
	if err != nil {
		t.Fatalf("resolveKey: %v", err)
	}
	second, err := store.resolveKey(ctx, "key-1")
	if err != nil {
		t.Fatalf("resolveKey: %v", err)
	}
	if first != second {
		t.Fatal("expected cached key instance")
	}
	if got := fetches.Load(); got != 1 {
		t.Fatalf("expected 1 fetch, got %d", got)
	}
}

func TestKeyStore_RefetchAfterTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := now
	original := timeNow
	timeNow = func() time.Time { return current }
	t.Cleanup(func() { timeNow = original })

	key := generateTestKey(t)
	server, fetches := newKeyServer(t, descriptorFromKey(t, key, "key-1"))
	store := newKeyStore(server.URL, time.Hour, server.Client())

	ctx := context.Background()
	if _, err := store.resolveKey(ctx, "key-1"); err != nil {
		t.Fatalf("resolveKey: %v", err)
	}

	current = now.Add(59 * time.Minute)
	if _, err := store.resolveKey(ctx, "key-1"); err != nil {
		t.Fatalf("resolveKey: %v", err)
	}
	if got := fetches.Load(); got != 1 {
		t.Fatalf("expected 1 fetch within TTL, got %d", got)
	}

	current = now.Add(61 * time.Minute)
	if _, err := store.resolveKey(ctx, "key-1"); err != nil {
		t.Fatalf("resolveKey: %v", err)
	}
	if got := fetches.Load(); got != 2 {
		t.Fatalf("expected exactly 2 fetches after TTL, got %d", got)
	}
}

func TestKeyStore_SingleEntryEviction(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedClock(t, now)

	keyA := generateTestKey(t)
	keyB := generateTestKey(t)
	server, fetches := newKeyServer(t,
		descriptorFromKey(t, keyA, "key-a"),
		descriptorFromKey(t, keyB, "key-b"),
	)
	store := newKeyStore(server.URL, time.Hour, server.Client())

	ctx := context.Background()
	if _, err := store.resolveKey(ctx, "key-a"); err != nil {
		t.Fatalf("resolveKey key-a: %v", err)
	}
	if _, err := store.resolveKey(ctx, "key-b"); err != nil {
		t.Fatalf("resolveKey key-b: %v", err)
	}
	// key-a was evicted when the cache was replaced with key-b.
	if _, err := store.resolveKey(ctx, "key-a"); err != nil {
		t.Fatalf("resolveKey key-a again: %v", err)
	}
	if got := fetches.Load(); got != 3 {
		t.Fatalf("expected 3 fetches for alternating kids, got %d", got)
	}
}

func TestKeyStore_KeyNotFound(t *testing.T) {
	key := generateTestKey(t)
	server, _ := newKeyServer(t, descriptorFromKey(t, key, "key-1"))
	store := newKeyStore(server.URL, time.Hour, server.Client())

	_, err := store.resolveKey(context.Background(), "rotated-away")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestKeyStore_FetchFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "not JSON",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>maintenance</html>"))
			},
		},
		{
			name: "empty key set",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"keys":[]}`))
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			t.Cleanup(server.Close)
			store := newKeyStore(server.URL, time.Hour, server.Client())

			_, err := store.resolveKey(context.Background(), "key-1")
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrKeyFetchFailed) {
				t.Fatalf("expected ErrKeyFetchFailed, got %v", err)
			}
		})
	}
}

func TestKeyStore_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := server.Client()
	server.Close()

	store := newKeyStore(server.URL, time.Hour, client)
	_, err := store.resolveKey(context.Background(), "key-1")
	if !errors.Is(err, ErrKeyFetchFailed) {
		t.Fatalf("expected ErrKeyFetchFailed, got %v", err)
	}
}

func TestKeyStore_ConversionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"keys":[{"kty":"EC","kid":"key-1","use":"sig","alg":"ES256","n":"","e":""}]}`))
	}))
	t.Cleanup(server.Close)

	store := newKeyStore(server.URL, time.Hour, server.Client())
	_, err := store.resolveKey(context.Background(), "key-1")
	if !errors.Is(err, ErrKeyConversionFailed) {
		t.Fatalf("expected ErrKeyConversionFailed, got %v", err)
	}
}

func TestKeyStore_ConcurrentResolves(t *testing.T) {
	key := generateTestKey(t)
	server, fetches := newKeyServer(t, descriptorFromKey(t, key, "key-1"))
	store := newKeyStore(server.URL, time.Hour, server.Client())

	const workers = 16
	done := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			_, err := store.resolveKey(context.Background(), "key-1")
			done <- err
		}()
	}
	for i := 0; i < workers; i++ {
		if err := <-done; err != nil {
			t.Fatalf("resolveKey: %v", err)
		}
	}
	// Races may fetch redundantly but every resolve must succeed.
	if fetches.Load() < 1 {
		t.Fatal("expected at least one fetch")
	}
}
