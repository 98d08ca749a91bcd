package container

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// FakeRuntime is an in-memory Runtime for tests. It records every call
// and can be told to fail the next Run.
type FakeRuntime struct {
	mu      sync.Mutex
	running map[string]RunSpec

	// RunErr, when set, is returned by the next Run call.
	RunErr error

	// Call history, in order.
	RunCalls    []RunSpec
	StopCalls   []string
	RemoveCalls []string
}

// NewFakeRuntime returns an empty fake.
func NewFakeRuntime() *FakeRuntime {
	return &FakeRuntime{running: make(map[string]RunSpec)}
}

func (f *FakeRuntime) Run(ctx context.Context, spec RunSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RunCalls = append(f.RunCalls, spec)
	if f.RunErr != nil {
		err := f.RunErr
		f.RunErr = nil
		return err
	}
	f.running[spec.Name] = spec
	return nil
}

func (f *FakeRuntime) Stop(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StopCalls = append(f.StopCalls, name)
	if _, ok := f.running[name]; !ok {
		return fmt.Errorf("no such container: %s", name)
	}
	delete(f.running, name)
	return nil
}

func (f *FakeRuntime) Remove(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RemoveCalls = append(f.RemoveCalls, name)
	delete(f.running, name)
	return nil
}

func (f *FakeRuntime) Exists(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.running[name]
	return ok, nil
}

func (f *FakeRuntime) ListRunning(ctx context.Context, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for name := range f.running {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names, nil
}

// Running reports whether a container is currently running in the fake.
func (f *FakeRuntime) Running(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.running[name]
	return ok
}
