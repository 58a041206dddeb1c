package hier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusMachineLegalTransition(t *testing.T) {
	sm := newStatusMachine(StatusNew)
	require.NoError(t, sm.transition(StatusExisting))
	assert.Equal(t, StatusExisting, sm.Status())
}

func TestStatusMachineIllegalTransitionRejected(t *testing.T) {
	sm := newStatusMachine(StatusNew)
	err := sm.transition(StatusExistingRemoved)
	require.Error(t, err)
	assert.Equal(t, KindInternal, ErrKind(err))
	assert.Equal(t, StatusNew, sm.Status(), "rejected transition must not mutate status")
}

func TestStatusMachineSameStateIsNoop(t *testing.T) {
	sm := newStatusMachine(StatusExisting)
	require.NoError(t, sm.transition(StatusExisting))
	assert.Equal(t, StatusExisting, sm.Status())
}

func TestStatusMachineListenerFiresAfterUnlock(t *testing.T) {
	sm := newStatusMachine(StatusExisting)
	var seen []Status
	token := sm.AddListener(func(previous, current Status) {
		// A listener that re-reads Status() from inside the callback
		// must not deadlock: transition releases its lock before
		// fanning out (status.go).
		seen = append(seen, sm.Status())
	})
	require.NoError(t, sm.transition(StatusExistingModified))
	assert.Equal(t, []Status{StatusExistingModified}, seen)

	sm.RemoveListener(token)
	require.NoError(t, sm.transition(StatusExisting))
	assert.Len(t, seen, 1, "deregistered listener must not fire again")
}

func TestStatusMachineSelfRemovingListener(t *testing.T) {
	sm := newStatusMachine(StatusExisting)
	var token int
	fired := 0
	token = sm.AddListener(func(previous, current Status) {
		fired++
		sm.RemoveListener(token)
	})
	require.NoError(t, sm.transition(StatusExistingModified))
	require.NoError(t, sm.transition(StatusExisting))
	assert.Equal(t, 1, fired)
}

func TestExistingModifiedCanBeLocallyRemoved(t *testing.T) {
	// Engineering addition beyond the literally enumerated transitions:
	// a dirty entry must still be removable locally.
	sm := newStatusMachine(StatusExistingModified)
	require.NoError(t, sm.transition(StatusExistingRemoved))
}

func TestStatusIsTerminal(t *testing.T) {
	assert.True(t, StatusRemoved.IsTerminal())
	assert.True(t, StatusStaleDestroyed.IsTerminal())
	assert.False(t, StatusExisting.IsTerminal())
	assert.False(t, StatusInvalidated.IsTerminal())
}
