package harness_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/device-next/devicecheck/harness"
	"github.com/device-next/devicecheck/platform"
	"github.com/device-next/devicecheck/platform/sim"
)

func TestStreamManager_AcquireRelease(t *testing.T) {
	plat := sim.New()
	mgr := harness.NewStreamManager(plat)

	handle, err := mgr.Acquire(context.Background(), platform.Constraints{DeviceID: "cam-0", Video: true})
	if err != nil {
		t.Fatal(err)
	}
	if handle.DeviceID != "cam-0" {
		t.Errorf("expected device cam-0, got %s", handle.DeviceID)
	}
	if mgr.Active() != handle {
		t.Error("expected handle to be active")
	}

	mgr.Release()
	if mgr.Active() != nil {
		t.Error("expected no active handle after release")
	}

	sessions := plat.OpenSessions()
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if !sessions[0].Closed() {
		t.Error("expected session to be closed")
	}
	for _, track := range sessions[0].Tracks() {
		if !track.(*sim.Track).Stopped() {
			t.Errorf("expected track %s to be stopped", track.ID())
		}
	}
}

func TestStreamManager_ReleaseSupersedesPendingAcquire(t *testing.T) {
	plat := sim.New()
	plat.SetOpenDelay(50 * time.Millisecond)
	mgr := harness.NewStreamManager(plat)

	errCh := make(chan error, 1)
	go func() {
		_, err := mgr.Acquire(context.Background(), platform.Constraints{DeviceID: "cam-0", Video: true})
		errCh <- err
	}()

	time.Sleep(15 * time.Millisecond)
	mgr.Release()

	err := <-errCh
	if !errors.Is(err, harness.ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	if mgr.Active() != nil {
		t.Error("expected no active handle")
	}

	// The late-arriving session must not leak.
	sessions := plat.OpenSessions()
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if !sessions[0].Closed() {
		t.Error("expected superseded session to be closed on arrival")
	}
}

func TestStreamManager_NewerAcquireWins(t *testing.T) {
	plat := sim.New()
	plat.SetOpenDelay(50 * time.Millisecond)
	mgr := harness.NewStreamManager(plat)

	errCh := make(chan error, 1)
	go func() {
		_, err := mgr.Acquire(context.Background(), platform.Constraints{DeviceID: "cam-0", Video: true})
		errCh <- err
	}()

	time.Sleep(15 * time.Millisecond)
	plat.SetOpenDelay(0)
	handle, err := mgr.Acquire(context.Background(), platform.Constraints{DeviceID: "cam-1", Video: true})
	if err != nil {
		t.Fatal(err)
	}

	if err := <-errCh; !errors.Is(err, harness.ErrSuperseded) {
		t.Fatalf("expected first acquire to be superseded, got %v", err)
	}
	if active := mgr.Active(); active != handle || active.DeviceID != "cam-1" {
		t.Errorf("expected cam-1 handle to win, got %+v", active)
	}
}

func TestStreamManager_SwitchDeviceIsExclusive(t *testing.T) {
	plat := sim.New()
	mgr := harness.NewStreamManager(plat)

	ctx := context.Background()
	if _, err := mgr.Acquire(ctx, platform.Constraints{DeviceID: "cam-0", Video: true}); err != nil {
		t.Fatal(err)
	}

	handle, err := mgr.SwitchDevice(ctx, "cam-1")
	if err != nil {
		t.Fatal(err)
	}
	if handle.DeviceID != "cam-1" {
		t.Errorf("expected cam-1, got %s", handle.DeviceID)
	}

	sessions := plat.OpenSessions()
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if !sessions[0].Closed() {
		t.Error("expected first session closed before second opened")
	}
	if sessions[1].Closed() {
		t.Error("expected second session to stay open")
	}
	if sessions[1].DeviceID() != "cam-1" {
		t.Errorf("expected session for cam-1, got %s", sessions[1].DeviceID())
	}
}

func TestStreamManager_AcquireFailureClassified(t *testing.T) {
	plat := sim.New()
	plat.FailOpen(errors.New("device busy"))
	mgr := harness.NewStreamManager(plat)

	_, err := mgr.Acquire(context.Background(), platform.Constraints{DeviceID: "cam-0", Video: true})
	if err == nil {
		t.Fatal("expected error")
	}
	if kind := harness.KindOf(err); kind != harness.ErrorSessionAcquisition {
		t.Errorf("expected SessionAcquisitionError, got %s", kind)
	}
	if mgr.Active() != nil {
		t.Error("expected no active handle after failure")
	}
}
