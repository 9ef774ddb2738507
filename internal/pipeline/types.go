// Package pipeline executes a deployment as the ordered stage sequence
// clone → analyze → synthesize → preflight → build → deploy → verify
// (spec §4.4), publishing structured progress and recording metrics.
package pipeline

import (
	"time"

	"github.com/launchdeck/launchdeck/internal/collaborators"
	"github.com/launchdeck/launchdeck/internal/progress"
)

// StageOutcome is recorded once per stage invocation.
type StageOutcome struct {
	Stage    progress.StageTag
	Success  bool
	Duration time.Duration
	Err      error
}

// DeploymentRecord is the in-memory bookkeeping for one pipeline run (spec
// §3 "DeploymentRecord"). Created at pipeline start, sealed at terminus.
type DeploymentRecord struct {
	DeploymentID string
	ServiceName  string
	ProjectID    string
	Region       string
	ImageTag     string
	StartTime    time.Time

	Outcomes []StageOutcome

	ServiceURL        string
	CostEstimateUSD   float64
	HealthResponseMS  int64
	Sealed            bool
	Failed            bool
	ErrorSummary      string
	RemediationSteps  []string
}

// Seal marks the record terminal; calling it twice is a no-op.
func (r *DeploymentRecord) Seal(failed bool, errSummary string, remediation []string) {
	if r.Sealed {
		return
	}
	r.Sealed = true
	r.Failed = failed
	r.ErrorSummary = errSummary
	r.RemediationSteps = remediation
}

// Input bundles everything a pipeline run needs, gathered by the
// Orchestrator before invoking Run.
type Input struct {
	DeploymentID    string
	RepoURL         string
	Branch          string
	WorkingCopyPath string // empty triggers a fresh clone
	ProjectID       string
	Region          string
	Registry        string
	StagingBucket   string
	EnvVars         map[string]string
	SecretEnvVars   map[string]bool // key -> true if the value must never be logged
	Resources       collaborators.ResourceConfig
}
