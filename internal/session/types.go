// Package session defines the per-connection Session and the ProjectContext
// it carries across reconnects, per spec §3.
package session

import (
	"sync"
	"time"
)

// EnvVar is a single environment variable destined for the deployed
// service. Values marked Secret must never be logged or echoed back in a
// progress message (spec §3, testable property #7).
type EnvVar struct {
	Key    string
	Value  string
	Secret bool
}

// ProjectContext is the per-session record describing the project currently
// under deployment. It is mutated only by the owning Orchestrator — never
// concurrently — so it carries no internal lock; callers that read it from
// another goroutine must Snapshot first.
type ProjectContext struct {
	RepoURL          string
	WorkingCopyPath  string
	Language         string
	Framework        string
	Analysis         *AnalysisSnapshot
	EnvVars          []EnvVar
	DeployedService  string
	DeploymentURL    string
	LastDeploymentID string
}

// AnalysisSnapshot is the subset of an analyzer result the orchestrator
// keeps around for prompting and redeploys; the full AnalysisResult lives
// in package analyzer to avoid an import cycle.
type AnalysisSnapshot struct {
	Language      string
	Framework     string
	EntryPoint    string
	Port          int
	BuildTool     string
	StartCommand  string
	Recommendations []string
	Warnings      []string
}

// Ready reports whether analysis has already completed for this context.
// A non-empty working-copy path is the authoritative signal (spec §3).
func (c *ProjectContext) Ready() bool {
	return c != nil && c.WorkingCopyPath != ""
}

// Reset clears the context back to its zero value, used on explicit user
// reset requests.
func (c *ProjectContext) Reset() {
	*c = ProjectContext{}
}

// Snapshot returns a shallow copy safe to read concurrently with further
// mutation by the owning orchestrator (EnvVars slice is copied).
func (c *ProjectContext) Snapshot() ProjectContext {
	cp := *c
	cp.EnvVars = append([]EnvVar(nil), c.EnvVars...)
	return cp
}

// Session is the process-wide record of one client's conversation. Created
// once per session id and retained across transport loss; only the
// transport binding (owned by the Gateway) comes and goes.
type Session struct {
	ID               string
	ClientInstanceID string
	CreatedAt        time.Time

	mu       sync.Mutex
	lastSeen time.Time

	// Context is owned and mutated exclusively by this session's
	// Orchestrator (single-threaded per session by construction).
	Context *ProjectContext
}

// New creates a Session with a fresh, empty ProjectContext.
func New(id, clientInstanceID string) *Session {
	now := time.Now()
	return &Session{
		ID:               id,
		ClientInstanceID: clientInstanceID,
		CreatedAt:        now,
		lastSeen:         now,
		Context:          &ProjectContext{},
	}
}

// Touch updates the last-seen timestamp (called by the Gateway on any
// inbound frame, including heartbeats).
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// LastSeen returns the last-seen timestamp (thread-safe read for the sweeper).
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
