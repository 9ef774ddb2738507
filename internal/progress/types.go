// Package progress implements the typed stage-event bus that carries
// deployment progress from the Pipeline Engine to the Session Gateway.
package progress

import "time"

// StageTag identifies one phase of the deployment pipeline. The set is
// closed — adding a stage here must happen in lockstep with the Pipeline
// Engine and the Session Gateway's frame encoder.
type StageTag string

const (
	StageRepoClone         StageTag = "repo-clone"
	StageCodeAnalysis      StageTag = "code-analysis"
	StageDockerfileGen     StageTag = "dockerfile-gen"
	StageRepoAccess        StageTag = "repo-access"
	StageContainerBuild    StageTag = "container-build"
	StageCloudDeployment   StageTag = "cloud-deployment"
	StageHealthVerification StageTag = "health-verification"
)

// allStages is used to validate StageTag values at construction time.
var allStages = map[StageTag]bool{
	StageRepoClone:          true,
	StageCodeAnalysis:       true,
	StageDockerfileGen:      true,
	StageRepoAccess:         true,
	StageContainerBuild:     true,
	StageCloudDeployment:    true,
	StageHealthVerification: true,
}

// Valid reports whether t is one of the closed set of stage tags.
func (t StageTag) Valid() bool { return allStages[t] }

// State is one point in a stage's lifecycle.
type State string

const (
	StateStarted    State = "started"
	StateInProgress State = "in-progress"
	StateComplete   State = "complete"
	StateFailed     State = "failed"
)

// Event is a single ordered notification about a stage's progress.
// Sequence numbers are strictly increasing within one deployment.
type Event struct {
	DeploymentID string
	Stage        StageTag
	State        State
	Message      string
	Details      map[string]any
	Sequence     int
	Timestamp    time.Time
}
