package harness

import (
	"fmt"
	"sync"

	"github.com/device-next/devicecheck/utils"
)

// ShutdownHook collects teardown functions so a SIGINT/SIGTERM mid-test
// still releases streams and listeners. Entries run in registration order.
type ShutdownHook struct {
	mu    sync.Mutex
	next  uint64
	order []uint64
	hooks map[uint64]namedHook
}

type namedHook struct {
	name string
	fn   func() error
}

func NewShutdownHook() *ShutdownHook {
	return &ShutdownHook{hooks: make(map[uint64]namedHook)}
}

// Register adds a teardown function under a name used in error reporting.
// The returned func removes the entry again; callers that outlive a single
// run must deregister, or the registry grows for the life of the process.
// Deregistering twice is a no-op.
func (s *ShutdownHook) Register(name string, fn func() error) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.order = append(s.order, id)
	s.hooks[id] = namedHook{name: name, fn: fn}
	s.mu.Unlock()

	utils.Verbose("registered shutdown hook %s", name)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.hooks[id]; !ok {
			return
		}
		delete(s.hooks, id)
		for i, v := range s.order {
			if v == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

// Shutdown runs every registered teardown in order, continuing past
// failures, and clears the registry. Hooks run without the lock held so a
// teardown may itself deregister.
func (s *ShutdownHook) Shutdown() error {
	s.mu.Lock()
	run := make([]namedHook, 0, len(s.order))
	for _, id := range s.order {
		if h, ok := s.hooks[id]; ok {
			run = append(run, h)
		}
	}
	s.order = nil
	s.hooks = make(map[uint64]namedHook)
	s.mu.Unlock()

	if len(run) == 0 {
		return nil
	}
	utils.Verbose("running %d shutdown hook(s)", len(run))

	var errs []error
	for _, h := range run {
		if err := h.fn(); err != nil {
			utils.Verbose("shutdown hook %s failed: %v", h.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown finished with %d failure(s): %v", len(errs), errs)
	}
	return nil
}

// Count reports how many hooks are currently registered.
func (s *ShutdownHook) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hooks)
}
