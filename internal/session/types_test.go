package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProjectContext_Ready(t *testing.T) {
	var c ProjectContext
	assert.False(t, c.Ready())

	c.WorkingCopyPath = "/tmp/work/abc"
	assert.True(t, c.Ready())
}

func TestProjectContext_Reset(t *testing.T) {
	c := ProjectContext{RepoURL: "https://example.org/u/r", WorkingCopyPath: "/tmp/x"}
	c.Reset()
	assert.False(t, c.Ready())
	assert.Empty(t, c.RepoURL)
}

func TestProjectContext_SnapshotIsIndependentCopy(t *testing.T) {
	c := ProjectContext{EnvVars: []EnvVar{{Key: "A", Value: "1"}}}
	snap := c.Snapshot()
	snap.EnvVars[0].Value = "mutated"
	assert.Equal(t, "1", c.EnvVars[0].Value)
}

func TestSession_DurableAcrossReconnects(t *testing.T) {
	s := New("sess-1", "inst-1")
	s.Context.WorkingCopyPath = "/tmp/work/sess-1"

	// Simulate transport churn: nothing in Session itself models the
	// transport, so repeated Touch calls (as on reconnect) must never
	// disturb Context.
	for i := 0; i < 5; i++ {
		s.Touch()
	}

	assert.Equal(t, "/tmp/work/sess-1", s.Context.WorkingCopyPath)
}
