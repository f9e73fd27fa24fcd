package cache_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shopstream/recommendation-service/internal/adapters/cache"
)

// stubProvider is an in-memory stand-in for the distributed tier
type stubProvider struct {
	mu      sync.Mutex
	data    map[string][]byte
	failAll bool

	setCalls    chan string
	deleteCalls [][]string
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		data:     map[string][]byte{},
		setCalls: make(chan string, 16),
	}
}

func (s *stubProvider) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, errors.New("redis unavailable")
	}
	value, ok := s.data[key]
	if !ok {
		return nil, errors.New("key not found")
	}
	return value, nil
}

func (s *stubProvider) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errors.New("redis unavailable")
	}
	s.data[key] = value
	s.setCalls <- key
	return nil
}

func (s *stubProvider) GetMulti(_ context.Context, keys []string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, errors.New("redis unavailable")
	}
	found := map[string][]byte{}
	for _, key := range keys {
		if value, ok := s.data[key]; ok {
			found[key] = value
		}
	}
	return found, nil
}

func (s *stubProvider) SetMulti(_ context.Context, items map[string][]byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errors.New("redis unavailable")
	}
	for key, value := range items {
		s.data[key] = value
		s.setCalls <- key
	}
	return nil
}

func (s *stubProvider) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errors.New("redis unavailable")
	}
	s.deleteCalls = append(s.deleteCalls, keys)
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func newTieredCache(t *testing.T, remote *stubProvider) *cache.TieredCache {
	t.Helper()
	local := cache.NewLocalCache(100, time.Minute)
	t.Cleanup(local.Close)
	if remote == nil {
		return cache.NewTieredCache(local, nil, nil, cache.TieredCacheConfig{})
	}
	return cache.NewTieredCache(local, remote, nil, cache.TieredCacheConfig{})
}

func TestTieredCache_RemoteHitPopulatesLocalTier(t *testing.T) {
	remote := newStubProvider()
	remote.data["recommendation:9"] = []byte(`{"user_id":9}`)
	tiered := newTieredCache(t, remote)

	value, ok := tiered.Get(context.Background(), "recommendation:9")
	assert.True(t, ok)
	assert.Equal(t, []byte(`{"user_id":9}`), value)

	// Second read must be served locally even if Redis goes away.
	remote.mu.Lock()
	remote.failAll = true
	remote.mu.Unlock()

	value, ok = tiered.Get(context.Background(), "recommendation:9")
	assert.True(t, ok)
	assert.Equal(t, []byte(`{"user_id":9}`), value)
}

func TestTieredCache_RemoteFailureDegradesToMiss(t *testing.T) {
	remote := newStubProvider()
	remote.failAll = true
	tiered := newTieredCache(t, remote)

	_, ok := tiered.Get(context.Background(), "recommendation:1")
	assert.False(t, ok)
}

func TestTieredCache_NilRemoteIsLocalOnly(t *testing.T) {
	tiered := newTieredCache(t, nil)

	tiered.Set(context.Background(), "k", []byte("v"), time.Minute)

	value, ok := tiered.Get(context.Background(), "k")
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), value)
	assert.False(t, tiered.RemoteConfigured())
}

func TestTieredCache_SetWritesRemoteInBackground(t *testing.T) {
	remote := newStubProvider()
	tiered := newTieredCache(t, remote)

	tiered.Set(context.Background(), "recommendation:3", []byte("payload"), time.Minute)

	select {
	case key := <-remote.setCalls:
		assert.Equal(t, "recommendation:3", key)
	case <-time.After(time.Second):
		t.Fatal("remote write never happened")
	}
}

func TestTieredCache_SetMultiWritesBothTiers(t *testing.T) {
	remote := newStubProvider()
	tiered := newTieredCache(t, remote)

	tiered.SetMulti(context.Background(), map[string][]byte{
		"recommendation:7": []byte("seven"),
		"recommendation:8": []byte("eight"),
	}, time.Minute)

	value, ok := tiered.Get(context.Background(), "recommendation:7")
	assert.True(t, ok)
	assert.Equal(t, []byte("seven"), value)

	written := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case key := <-remote.setCalls:
			written[key] = true
		case <-time.After(time.Second):
			t.Fatal("remote batch write never happened")
		}
	}
	assert.True(t, written["recommendation:7"])
	assert.True(t, written["recommendation:8"])
}

func TestTieredCache_GetMultiPartitionsLocalAndRemote(t *testing.T) {
	remote := newStubProvider()
	remote.data["recommendation:2"] = []byte("remote")
	tiered := newTieredCache(t, remote)

	tiered.Set(context.Background(), "recommendation:1", []byte("local"), time.Minute)
	<-remote.setCalls

	found := tiered.GetMulti(context.Background(), []string{
		"recommendation:1", "recommendation:2", "recommendation:3",
	})

	assert.Len(t, found, 2)
	assert.Equal(t, []byte("local"), found["recommendation:1"])
	assert.Equal(t, []byte("remote"), found["recommendation:2"])
	assert.NotContains(t, found, "recommendation:3")
}

func TestTieredCache_GetMultiRemoteFailureResolvesToAbsent(t *testing.T) {
	remote := newStubProvider()
	remote.failAll = true
	tiered := newTieredCache(t, remote)

	found := tiered.GetMulti(context.Background(), []string{"a", "b"})
	assert.Empty(t, found)
}

func TestTieredCache_InvalidateRemovesBothTiers(t *testing.T) {
	remote := newStubProvider()
	tiered := newTieredCache(t, remote)

	tiered.Set(context.Background(), "search:5", []byte("s"), time.Minute)
	tiered.Set(context.Background(), "recommendation:5", []byte("r"), time.Minute)
	<-remote.setCalls
	<-remote.setCalls

	tiered.Invalidate(context.Background(), cache.UserKeys(5)...)

	_, ok := tiered.Get(context.Background(), "search:5")
	assert.False(t, ok)
	_, ok = tiered.Get(context.Background(), "recommendation:5")
	assert.False(t, ok)

	remote.mu.Lock()
	defer remote.mu.Unlock()
	assert.Len(t, remote.deleteCalls, 1)
	assert.Equal(t, cache.UserKeys(5), remote.deleteCalls[0])
}
