package docker

import (
	"fmt"
	"sync"
	"time"
)

// ServiceState tracks one service through bring-up. The happy path is
// declared -> building -> waiting-on-dependencies -> starting -> running;
// failed is terminal and reachable from building, waiting and starting.
// "starting" means the container process was launched; it says nothing
// about the process's internal readiness.
type ServiceState string

const (
	StateDeclared ServiceState = "declared"
	StateBuilding ServiceState = "building"
	StateWaiting  ServiceState = "waiting-on-dependencies"
	StateStarting ServiceState = "starting"
	StateRunning  ServiceState = "running"
	StateFailed   ServiceState = "failed"
)

var validTransitions = map[ServiceState][]ServiceState{
	StateDeclared: {StateBuilding, StateWaiting},
	StateBuilding: {StateWaiting, StateFailed},
	StateWaiting:  {StateStarting, StateFailed},
	StateStarting: {StateRunning, StateFailed},
}

type serviceStatus struct {
	state      ServiceState
	launchedAt time.Time
	err        error
}

// stateTracker records per-service states and launch timestamps. Waves may
// start services concurrently, so every access is locked.
type stateTracker struct {
	mu       sync.Mutex
	statuses map[string]*serviceStatus
}

func newStateTracker(names []string) *stateTracker {
	statuses := make(map[string]*serviceStatus, len(names))
	for _, name := range names {
		statuses[name] = &serviceStatus{state: StateDeclared}
	}
	return &stateTracker{statuses: statuses}
}

func (t *stateTracker) transition(name string, next ServiceState) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	status, ok := t.statuses[name]
	if !ok {
		return fmt.Errorf("unknown service %q", name)
	}

	allowed := false
	for _, s := range validTransitions[status.state] {
		if s == next {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("service %q: invalid transition %s -> %s", name, status.state, next)
	}

	status.state = next
	if next == StateStarting {
		status.launchedAt = time.Now()
	}
	return nil
}

// fail marks a service failed from any non-terminal state and keeps the
// first error.
func (t *stateTracker) fail(name string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	status, ok := t.statuses[name]
	if !ok {
		return
	}
	if status.state == StateFailed || status.state == StateRunning {
		return
	}
	status.state = StateFailed
	if status.err == nil {
		status.err = err
	}
}

func (t *stateTracker) state(name string) ServiceState {
	t.mu.Lock()
	defer t.mu.Unlock()

	if status, ok := t.statuses[name]; ok {
		return status.state
	}
	return ""
}

// launchedAt returns when the service's container start was issued; the
// zero time means it never reached starting.
func (t *stateTracker) launchedAt(name string) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	if status, ok := t.statuses[name]; ok {
		return status.launchedAt
	}
	return time.Time{}
}
