package docker

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackup-dev/stackup/graph"
)

func TestStateTrackerHappyPath(t *testing.T) {
	t.Parallel()

	tracker := newStateTracker([]string{"app"})
	assert.Equal(t, StateDeclared, tracker.state("app"))

	require.NoError(t, tracker.transition("app", StateBuilding))
	require.NoError(t, tracker.transition("app", StateWaiting))
	require.NoError(t, tracker.transition("app", StateStarting))
	require.NoError(t, tracker.transition("app", StateRunning))

	assert.Equal(t, StateRunning, tracker.state("app"))
	assert.False(t, tracker.launchedAt("app").IsZero())
}

func TestStateTrackerSkipsBuildingForImageServices(t *testing.T) {
	t.Parallel()

	tracker := newStateTracker([]string{"db"})
	require.NoError(t, tracker.transition("db", StateWaiting))
	require.NoError(t, tracker.transition("db", StateStarting))
	require.NoError(t, tracker.transition("db", StateRunning))
}

func TestStateTrackerRejectsInvalidTransitions(t *testing.T) {
	t.Parallel()

	tracker := newStateTracker([]string{"app"})

	err := tracker.transition("app", StateRunning)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid transition")

	require.NoError(t, tracker.transition("app", StateBuilding))
	assert.Error(t, tracker.transition("app", StateStarting))

	assert.Error(t, tracker.transition("ghost", StateBuilding))
}

func TestStateTrackerFailKeepsFirstError(t *testing.T) {
	t.Parallel()

	tracker := newStateTracker([]string{"app"})
	require.NoError(t, tracker.transition("app", StateBuilding))

	first := errors.New("build failed")
	tracker.fail("app", first)
	tracker.fail("app", errors.New("later"))

	assert.Equal(t, StateFailed, tracker.state("app"))

	// Terminal: nothing leaves failed.
	assert.Error(t, tracker.transition("app", StateWaiting))
}

func TestStateTrackerRunningIsNotFailable(t *testing.T) {
	t.Parallel()

	tracker := newStateTracker([]string{"db"})
	require.NoError(t, tracker.transition("db", StateWaiting))
	require.NoError(t, tracker.transition("db", StateStarting))
	require.NoError(t, tracker.transition("db", StateRunning))

	tracker.fail("db", errors.New("too late"))
	assert.Equal(t, StateRunning, tracker.state("db"))
}

// Launch timestamps must respect dependency order: replaying the topology
// waves through the tracker, every service launches after all of its
// dependencies.
func TestLaunchOrderFollowsDependencyWaves(t *testing.T) {
	t.Parallel()

	deps := map[string][]string{
		"db":      nil,
		"cache":   nil,
		"app":     {"db", "cache"},
		"ingress": {"app"},
	}

	g := graph.New(deps)
	require.NoError(t, g.Validate())
	batches, err := g.Batches()
	require.NoError(t, err)

	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	tracker := newStateTracker(names)

	for _, wave := range batches {
		for _, name := range wave {
			require.NoError(t, tracker.transition(name, StateWaiting))
			require.NoError(t, tracker.transition(name, StateStarting))
			require.NoError(t, tracker.transition(name, StateRunning))
		}
	}

	for name, wants := range deps {
		for _, dep := range wants {
			assert.False(t, tracker.launchedAt(name).Before(tracker.launchedAt(dep)),
				"%s launched before its dependency %s", name, dep)
		}
	}
}
