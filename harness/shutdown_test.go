package harness

import (
	"errors"
	"fmt"
	"testing"
)

func TestShutdownHook_RegisterAndShutdown(t *testing.T) {
	hook := NewShutdownHook()

	called := false
	hook.Register("camera-reset", func() error {
		called = true
		return nil
	})

	if hook.Count() != 1 {
		t.Errorf("Expected 1 hook, got %d", hook.Count())
	}

	if err := hook.Shutdown(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	if !called {
		t.Error("Hook was not called")
	}

	if hook.Count() != 0 {
		t.Errorf("Expected hooks to be cleared, got %d", hook.Count())
	}
}

func TestShutdownHook_RunsInRegistrationOrder(t *testing.T) {
	hook := NewShutdownHook()

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		hook.Register(name, func() error {
			order = append(order, name)
			return nil
		})
	}

	if err := hook.Shutdown(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(order) != 3 || order[0] != "first" || order[2] != "third" {
		t.Errorf("Hooks ran out of order: %v", order)
	}
}

func TestShutdownHook_ErrorHandling(t *testing.T) {
	hook := NewShutdownHook()

	var ran []string
	hook.Register("success", func() error {
		ran = append(ran, "success")
		return nil
	})
	hook.Register("failure", func() error { return errors.New("cleanup failed") })
	hook.Register("success2", func() error {
		ran = append(ran, "success2")
		return nil
	})

	err := hook.Shutdown()
	if err == nil {
		t.Error("Expected error from failed hook")
	}

	// a failed hook must not stop the rest
	if len(ran) != 2 {
		t.Errorf("Expected remaining hooks to run, got %v", ran)
	}
	if hook.Count() != 0 {
		t.Errorf("Expected hooks to be cleared even after error, got %d", hook.Count())
	}
}

func TestShutdownHook_Deregister(t *testing.T) {
	hook := NewShutdownHook()

	kept := false
	hook.Register("kept", func() error {
		kept = true
		return nil
	})

	removed := false
	deregister := hook.Register("removed", func() error {
		removed = true
		return nil
	})
	deregister()

	if hook.Count() != 1 {
		t.Errorf("Expected 1 hook after deregister, got %d", hook.Count())
	}

	// deregistering twice is a no-op
	deregister()
	if hook.Count() != 1 {
		t.Errorf("Repeat deregister changed the count: %d", hook.Count())
	}

	if err := hook.Shutdown(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if removed {
		t.Error("Deregistered hook was called")
	}
	if !kept {
		t.Error("Remaining hook was not called")
	}
}

func TestShutdownHook_EmptyShutdown(t *testing.T) {
	hook := NewShutdownHook()

	if err := hook.Shutdown(); err != nil {
		t.Errorf("Empty shutdown should not error: %v", err)
	}
}

func TestShutdownHook_ConcurrentRegister(t *testing.T) {
	hook := NewShutdownHook()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(n int) {
			hook.Register(fmt.Sprintf("hook-%d", n), func() error { return nil })
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	if hook.Count() != 10 {
		t.Errorf("Expected 10 hooks, got %d", hook.Count())
	}
}
