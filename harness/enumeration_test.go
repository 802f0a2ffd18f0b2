package harness_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/device-next/devicecheck/harness"
	"github.com/device-next/devicecheck/platform/sim"
	"github.com/device-next/devicecheck/types"
)

func TestEnumerate_CachesWithinTTL(t *testing.T) {
	plat := sim.New()
	plat.SetDevices(types.VideoInput, types.DeviceDescriptor{ID: "cam-0", Kind: types.VideoInput})
	svc := harness.NewDeviceEnumerationService(plat, time.Minute)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		devices, err := svc.Enumerate(ctx, types.VideoInput)
		if err != nil {
			t.Fatalf("enumerate %d: %v", i, err)
		}
		if len(devices) != 1 || devices[0].ID != "cam-0" {
			t.Fatalf("enumerate %d: unexpected devices %+v", i, devices)
		}
	}

	if calls := plat.EnumerateCalls(types.VideoInput); calls != 1 {
		t.Errorf("expected 1 platform call, got %d", calls)
	}
}

func TestEnumerate_RefreshBypassesCache(t *testing.T) {
	plat := sim.New()
	plat.SetDevices(types.AudioInput, types.DeviceDescriptor{ID: "mic-0", Kind: types.AudioInput})
	svc := harness.NewDeviceEnumerationService(plat, time.Minute)

	ctx := context.Background()
	if _, err := svc.Enumerate(ctx, types.AudioInput); err != nil {
		t.Fatal(err)
	}

	plat.SetDevices(types.AudioInput,
		types.DeviceDescriptor{ID: "mic-0", Kind: types.AudioInput},
		types.DeviceDescriptor{ID: "mic-1", Kind: types.AudioInput})

	// Within TTL the stale list is served.
	devices, err := svc.Enumerate(ctx, types.AudioInput)
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 1 {
		t.Fatalf("expected cached single device, got %d", len(devices))
	}

	devices, err = svc.Refresh(ctx, types.AudioInput)
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 2 {
		t.Fatalf("expected 2 devices after refresh, got %d", len(devices))
	}
	if calls := plat.EnumerateCalls(types.AudioInput); calls != 2 {
		t.Errorf("expected 2 platform calls, got %d", calls)
	}
}

func TestEnumerate_CoalescesConcurrentCalls(t *testing.T) {
	plat := sim.New()
	plat.SetDevices(types.VideoInput, types.DeviceDescriptor{ID: "cam-0", Kind: types.VideoInput})
	plat.SetEnumerateDelay(30 * time.Millisecond)
	svc := harness.NewDeviceEnumerationService(plat, time.Minute)

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			devices, err := svc.Enumerate(context.Background(), types.VideoInput)
			if err != nil {
				t.Errorf("enumerate: %v", err)
				return
			}
			if len(devices) != 1 {
				t.Errorf("expected 1 device, got %d", len(devices))
			}
		}()
	}
	wg.Wait()

	if calls := plat.EnumerateCalls(types.VideoInput); calls != 1 {
		t.Errorf("expected concurrent calls to coalesce into 1, got %d", calls)
	}
}

func TestEnumerate_EmptyListIsNotAnError(t *testing.T) {
	svc := harness.NewDeviceEnumerationService(sim.New(), time.Minute)

	devices, err := svc.Enumerate(context.Background(), types.VideoInput)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if devices == nil || len(devices) != 0 {
		t.Errorf("expected empty list, got %#v", devices)
	}
}

func TestEnumerate_FailuresClassifiedAndNotCached(t *testing.T) {
	plat := sim.New()
	plat.SetDevices(types.VideoInput, types.DeviceDescriptor{ID: "cam-0", Kind: types.VideoInput})
	plat.FailEnumeration(errors.New("bus error"))
	svc := harness.NewDeviceEnumerationService(plat, time.Minute)

	ctx := context.Background()
	_, err := svc.Enumerate(ctx, types.VideoInput)
	if err == nil {
		t.Fatal("expected enumeration error")
	}
	if kind := harness.KindOf(err); kind != harness.ErrorEnumeration {
		t.Errorf("expected EnumerationError, got %s", kind)
	}

	// The failure must not poison the cache.
	plat.FailEnumeration(nil)
	devices, err := svc.Enumerate(ctx, types.VideoInput)
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if len(devices) != 1 {
		t.Errorf("expected 1 device after recovery, got %d", len(devices))
	}
}
