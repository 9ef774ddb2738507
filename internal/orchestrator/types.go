// Package orchestrator implements the per-session conversational core that
// mediates between the Model Broker's function-calling loop and the
// Pipeline Engine (spec §4.2). One Orchestrator is constructed per Session
// and retained across transport loss (spec §5).
package orchestrator

import (
	"fmt"

	"github.com/launchdeck/launchdeck/internal/collaborators"
	"github.com/launchdeck/launchdeck/internal/pipeline"
	"github.com/launchdeck/launchdeck/internal/session"
)

// Function names recognized at the routing boundary (spec §4.2).
const (
	FuncCloneAndAnalyze = "clone-and-analyze"
	FuncDeploy          = "deploy"
	FuncListRepositories = "list-repositories"
	FuncGetLogs         = "get-logs"
)

// simpleCommands is the whitelist of short literals that bias the LLM
// toward calling deploy rather than clone when a project is already
// analyzed (spec §4.2 step 1).
var simpleCommands = map[string]bool{
	"deploy": true, "yes": true, "no": true, "skip": true, "proceed": true,
	"continue": true, "ok": true, "okay": true, "start": true, "go": true,
}

// SendFunc delivers one outbound frame to the session's current transport,
// exactly as handed to the Orchestrator by the Session Gateway. Errors are
// the Gateway's concern (spec §4.1 "send errors must be swallowed
// locally") — the Orchestrator never inspects the return value beyond
// logging.
type SendFunc func(frameType string, payload any) error

// Response is everything Process hands back to the Gateway: the natural-
// language turn plus whatever structured fields the invoked function
// produced (spec §4.2 "preserve fields the function produced beyond the
// text").
type Response struct {
	Text            string
	Intent          string
	RequestEnvVars  bool
	DetectedEnvVars []string
	Actions         []string
	Data            any
	DeploymentURL   string
}

// CloudConfig bundles the process-wide deployment target the Orchestrator
// needs to build a pipeline.Input, read once at startup (spec §6
// "Environment inputs").
type CloudConfig struct {
	ProjectID     string
	Region        string
	Registry      string
	StagingBucket string
	Resources     collaborators.ResourceConfig
}

// deploymentError wraps a pipeline.DeploymentRecord's failure into an error
// so runDeploy can return through the same path as every other function.
type deploymentError struct {
	record *pipeline.DeploymentRecord
}

func (e *deploymentError) Error() string {
	return fmt.Sprintf("deployment %s failed: %s", e.record.DeploymentID, e.record.ErrorSummary)
}

// envVarsFromContext converts the session's EnvVar list into the plain
// map plus secret-flag set pipeline.Input expects.
func envVarsFromContext(vars []session.EnvVar) (map[string]string, map[string]bool) {
	values := make(map[string]string, len(vars))
	secrets := make(map[string]bool, len(vars))
	for _, v := range vars {
		values[v.Key] = v.Value
		secrets[v.Key] = v.Secret
	}
	return values, secrets
}
