package harness

import (
	"context"
	"sync"
	"time"

	"github.com/device-next/devicecheck/platform"
	"github.com/device-next/devicecheck/types"
	"github.com/device-next/devicecheck/utils"
)

// DefaultPermissionTTL bounds permission-state staleness.
const DefaultPermissionTTL = 60 * time.Second

// PermissionManager negotiates and caches capability grants per permission
// category. Check may be served from cache; Request always hits the
// platform, because a cached "denied" must never silently suppress a retry.
// Process-wide singleton.
type PermissionManager struct {
	api   platform.API
	cache *CacheStore[types.PermissionState]

	mu       sync.Mutex
	inflight map[string]*inflightRequest
}

type inflightRequest struct {
	done  chan struct{}
	state types.PermissionState
	err   error
}

// NewPermissionManager creates a manager caching check results for ttl.
// A non-positive ttl falls back to DefaultPermissionTTL.
func NewPermissionManager(api platform.API, ttl time.Duration) *PermissionManager {
	if ttl <= 0 {
		ttl = DefaultPermissionTTL
	}
	return &PermissionManager{
		api:      api,
		cache:    NewCacheStore[types.PermissionState](ttl),
		inflight: make(map[string]*inflightRequest),
	}
}

// Check returns the grant status for category, re-querying the platform's
// check-only capability when the cached state has expired.
func (m *PermissionManager) Check(ctx context.Context, category string) (types.PermissionState, error) {
	return m.cache.Fill(ctx, category, func(ctx context.Context) (types.PermissionState, error) {
		state, err := m.api.CheckPermission(ctx, category)
		if err != nil {
			return types.PermissionState{}, Classify(ErrorUnknown, "permission", err)
		}
		return state, nil
	})
}

// Request performs a live grant request. Concurrent requests for the same
// category collapse into one underlying platform call, with every caller
// receiving the same resolved state. The outcome is written to the cache
// before returning, whether granted or denied.
func (m *PermissionManager) Request(ctx context.Context, category string) (types.PermissionState, error) {
	m.mu.Lock()
	if call, ok := m.inflight[category]; ok {
		m.mu.Unlock()
		select {
		case <-call.done:
			return call.state, call.err
		case <-ctx.Done():
			return types.PermissionState{}, ctx.Err()
		}
	}
	call := &inflightRequest{done: make(chan struct{})}
	m.inflight[category] = call
	m.mu.Unlock()

	state, err := m.api.RequestPermission(ctx, category)
	if err != nil {
		err = Classify(ErrorUnknown, "permission", err)
	} else {
		utils.Verbose("permission %q resolved to %s", category, state.Status)
		m.cache.Put(category, state)
	}

	m.mu.Lock()
	delete(m.inflight, category)
	m.mu.Unlock()

	call.state, call.err = state, err
	close(call.done)
	return state, err
}

// Invalidate drops the cached state for category, forcing the next Check to
// re-query the platform.
func (m *PermissionManager) Invalidate(category string) {
	m.cache.Invalidate(category)
}
