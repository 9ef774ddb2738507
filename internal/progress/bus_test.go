package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishOrdering(t *testing.T) {
	b := NewBus()
	ch := b.Register("dep-1")

	_, err := b.Publish("dep-1", StageRepoClone, StateStarted, "cloning", nil)
	require.NoError(t, err)
	_, err = b.Publish("dep-1", StageRepoClone, StateInProgress, "50%", nil)
	require.NoError(t, err)
	_, err = b.Publish("dep-1", StageRepoClone, StateComplete, "done", nil)
	require.NoError(t, err)

	for i, want := range []State{StateStarted, StateInProgress, StateComplete} {
		evt := <-ch
		assert.Equal(t, want, evt.State)
		assert.Equal(t, i+1, evt.Sequence)
	}
}

func TestBus_RejectsRegression(t *testing.T) {
	b := NewBus()
	b.Register("dep-1")

	_, err := b.Publish("dep-1", StageRepoClone, StateStarted, "", nil)
	require.NoError(t, err)
	_, err = b.Publish("dep-1", StageRepoClone, StateComplete, "", nil)
	require.NoError(t, err)

	// complete after failed (and vice versa) must be rejected.
	_, err = b.Publish("dep-1", StageRepoClone, StateFailed, "", nil)
	assert.ErrorIs(t, err, ErrOutOfOrder)

	// started cannot happen again for an already-started stage.
	_, err = b.Publish("dep-1", StageRepoClone, StateStarted, "", nil)
	assert.ErrorIs(t, err, ErrOutOfOrder)
}

func TestBus_RejectsUnknownStage(t *testing.T) {
	b := NewBus()
	b.Register("dep-1")

	_, err := b.Publish("dep-1", StageTag("not-a-real-stage"), StateStarted, "", nil)
	assert.ErrorIs(t, err, ErrUnknownStage)
}

func TestBus_UnknownDeployment(t *testing.T) {
	b := NewBus()
	_, err := b.Publish("missing", StageRepoClone, StateStarted, "", nil)
	assert.ErrorIs(t, err, ErrUnknownDeployment)
}

func TestBus_SequenceStrictlyIncreasesAcrossStages(t *testing.T) {
	b := NewBus()
	ch := b.Register("dep-1")

	_, _ = b.Publish("dep-1", StageRepoClone, StateStarted, "", nil)
	_, _ = b.Publish("dep-1", StageCodeAnalysis, StateStarted, "", nil)
	_, _ = b.Publish("dep-1", StageRepoClone, StateComplete, "", nil)

	last := 0
	for i := 0; i < 3; i++ {
		evt := <-ch
		assert.Greater(t, evt.Sequence, last)
		last = evt.Sequence
	}
}
