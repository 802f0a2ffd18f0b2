package harness

import (
	"context"
	"time"

	"github.com/device-next/devicecheck/platform"
	"github.com/device-next/devicecheck/types"
	"github.com/device-next/devicecheck/utils"
)

// DefaultDeviceListTTL bounds device-list staleness.
const DefaultDeviceListTTL = 30 * time.Second

// DeviceEnumerationService discovers devices of a given kind, memoizing
// results and deduplicating concurrent discovery calls. It is a
// process-wide singleton shared across test sessions.
type DeviceEnumerationService struct {
	api   platform.API
	cache *CacheStore[[]types.DeviceDescriptor]
}

// NewDeviceEnumerationService creates a service caching results for ttl.
// A non-positive ttl falls back to DefaultDeviceListTTL.
func NewDeviceEnumerationService(api platform.API, ttl time.Duration) *DeviceEnumerationService {
	if ttl <= 0 {
		ttl = DefaultDeviceListTTL
	}
	return &DeviceEnumerationService{
		api:   api,
		cache: NewCacheStore[[]types.DeviceDescriptor](ttl),
	}
}

// Enumerate returns the devices of the requested kind, served from cache
// when fresh. Concurrent callers for the same kind share a single
// underlying discovery call. Zero devices is an empty list, not an error;
// discovery failures are surfaced and never cached.
func (s *DeviceEnumerationService) Enumerate(ctx context.Context, kind types.DeviceKind) ([]types.DeviceDescriptor, error) {
	devices, err := s.cache.Fill(ctx, string(kind), func(ctx context.Context) ([]types.DeviceDescriptor, error) {
		found, err := s.api.EnumerateDevices(ctx, kind)
		if err != nil {
			return nil, Classify(ErrorEnumeration, "enumeration", err)
		}
		utils.Verbose("enumerated %d %s device(s)", len(found), kind)
		if found == nil {
			found = []types.DeviceDescriptor{}
		}
		return found, nil
	})
	if err != nil {
		return nil, err
	}
	return devices, nil
}

// Refresh drops the cached list for kind and enumerates again. Used after a
// permission grant (labels may only be populated post-grant) and on
// device hot-plug events.
func (s *DeviceEnumerationService) Refresh(ctx context.Context, kind types.DeviceKind) ([]types.DeviceDescriptor, error) {
	s.cache.Invalidate(string(kind))
	return s.Enumerate(ctx, kind)
}
