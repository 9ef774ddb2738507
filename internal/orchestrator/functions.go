package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/launchdeck/launchdeck/internal/analyzer"
	"github.com/launchdeck/launchdeck/internal/collaborators"
	"github.com/launchdeck/launchdeck/internal/pipeline"
	"github.com/launchdeck/launchdeck/internal/progress"
	"github.com/launchdeck/launchdeck/internal/recipe"
	"github.com/launchdeck/launchdeck/internal/session"
	"github.com/launchdeck/launchdeck/internal/taxonomy"
)

// nowFunc is indirected so tests can pin the clock if ever needed; outside
// tests it is always time.Now.
var nowFunc = time.Now

type cloneArgs struct {
	RepoURL string `json:"repo_url"`
	Branch  string `json:"branch"`
}

type deployArgs struct {
	// EnvVars is an optional set of additional assignments supplied
	// directly in the function call, merged on top of whatever the
	// env-vars-uploaded frame already placed into the context.
	EnvVars map[string]string `json:"env_vars"`
}

type getLogsArgs struct {
	Source string `json:"source"` // "build" | "service", defaults to "service"
	Limit  int    `json:"limit"`
}

// runCloneAndAnalyze executes spec §4.4 stages 1-3 (repo-clone,
// code-analysis, dockerfile-gen) outside of a full pipeline run, since the
// clone-and-analyze function is a distinct conversational step from
// deploy. Results are stored into the session's ProjectContext.
func (o *Orchestrator) runCloneAndAnalyze(ctx context.Context, argsJSON string) (any, Response, error) {
	var args cloneArgs
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil || args.RepoURL == "" {
		err := taxonomy.New(taxonomy.KindValidation, "clone-and-analyze requires a repo_url argument", err)
		return nil, Response{Text: "I need a repository URL to clone and analyze."}, err
	}
	if args.Branch == "" {
		args.Branch = "main"
	}

	opID := newOperationID()
	targetDir := fmt.Sprintf("/tmp/launchdeck/%s", opID)

	git := o.Pipeline.Git
	if git == nil {
		err := taxonomy.New(taxonomy.KindPreflightFailed, "no git collaborator configured", nil)
		return nil, Response{Text: "I can't reach the Git host right now."}, err
	}

	var (
		result analyzer.Result
		rcp    recipe.Recipe
		err    error
	)

	o.runWithProgress(opID, func() {
		o.publishFunctionStage(opID, progress.StageRepoClone, progress.StateStarted, "cloning "+args.RepoURL, nil)

		var lastProgress collaborators.CloneProgress
		cloneErr := git.Clone(ctx, args.RepoURL, args.Branch, targetDir, func(p collaborators.CloneProgress) {
			lastProgress = p
			o.publishFunctionStage(opID, progress.StageRepoClone, progress.StateInProgress, "cloning",
				map[string]any{"bytes": p.BytesReceived, "files": p.FilesWritten})
		})
		if cloneErr != nil {
			o.publishFunctionStage(opID, progress.StageRepoClone, progress.StateFailed, cloneErr.Error(), nil)
			err = taxonomy.New(taxonomy.KindPreflightFailed, "clone failed: "+cloneErr.Error(), cloneErr)
			return
		}
		o.publishFunctionStage(opID, progress.StageRepoClone, progress.StateComplete, "clone complete",
			map[string]any{"bytes": lastProgress.BytesReceived, "files": lastProgress.FilesWritten})

		o.publishFunctionStage(opID, progress.StageCodeAnalysis, progress.StateStarted, "analyzing project", nil)
		result = o.Pipeline.Analyzer.Analyze(ctx, targetDir)
		o.publishFunctionStage(opID, progress.StageCodeAnalysis, progress.StateComplete, "analysis complete",
			map[string]any{"language": result.Language, "framework": result.Framework})

		o.publishFunctionStage(opID, progress.StageDockerfileGen, progress.StateStarted, "synthesizing recipe", nil)
		rcp = o.Pipeline.Recipe.Synthesize(ctx, result)
		if len(rcp.SecurityNotes) > 0 {
			o.publishFunctionStage(opID, progress.StageDockerfileGen, progress.StateInProgress, "security scan findings",
				map[string]any{"findings": rcp.SecurityNotes})
		}
		o.publishFunctionStage(opID, progress.StageDockerfileGen, progress.StateComplete, "recipe synthesized",
			map[string]any{"from_template": rcp.FromTemplate})
	})
	if err != nil {
		return nil, Response{Text: "I couldn't clone that repository: " + err.Error()}, err
	}

	o.storeAnalysis(args.RepoURL, targetDir, result)

	resultPayload := map[string]any{
		"language":      result.Language,
		"framework":     result.Framework,
		"entry_point":   result.EntryPoint,
		"database_hint": result.DatabaseHint,
		"env_var_names": result.EnvVarNames,
		"warnings":      result.Warnings,
	}

	return resultPayload, Response{
		RequestEnvVars:  len(result.EnvVarNames) > 0,
		DetectedEnvVars: result.EnvVarNames,
		Actions:         []string{"deploy"},
	}, nil
}

// storeAnalysis mutates the owning ProjectContext; per spec §3 this is the
// only place allowed to do so, since the Orchestrator owns the context.
func (o *Orchestrator) storeAnalysis(repoURL, workingCopy string, result analyzer.Result) {
	o.Context.RepoURL = repoURL
	o.Context.WorkingCopyPath = workingCopy
	o.Context.Language = result.Language
	o.Context.Framework = result.Framework
	o.Context.Analysis = &session.AnalysisSnapshot{
		Language:        result.Language,
		Framework:       result.Framework,
		EntryPoint:      result.EntryPoint,
		Port:            result.Port,
		BuildTool:       result.BuildTool,
		StartCommand:    result.StartCommand,
		Recommendations: result.Recommendations,
		Warnings:        result.Warnings,
	}
}

// runDeploy implements the deploy function: invoke the full Pipeline Engine
// against the already-analyzed working copy (spec §4.2, §4.4). It is a
// not-found error to call this before clone-and-analyze has populated the
// context (spec §7 "not-found" kind).
func (o *Orchestrator) runDeploy(ctx context.Context, argsJSON string) (any, Response, error) {
	if !o.Context.Ready() {
		err := taxonomy.New(taxonomy.KindNotFound, "no analyzed project in this session; please clone and analyze a repository first", nil)
		return nil, Response{Text: "I don't have a project to deploy yet. Share a repository URL and I'll analyze it first."}, err
	}

	var args deployArgs
	_ = json.Unmarshal([]byte(argsJSON), &args) // empty/absent args are fine

	envVars, secretFlags := envVarsFromContext(o.Context.EnvVars)
	for k, v := range args.EnvVars {
		envVars[k] = v
	}

	deploymentID := newOperationID()
	if o.send != nil {
		_ = o.send("deployment_started", map[string]any{
			"deployment_id": deploymentID,
			"message":       "starting deployment",
			"timestamp":     timeNowRFC3339(),
		})
	}

	resources := o.Cloud.Resources
	input := pipeline.Input{
		DeploymentID:    deploymentID,
		RepoURL:         o.Context.RepoURL,
		WorkingCopyPath: o.Context.WorkingCopyPath,
		ProjectID:       o.Cloud.ProjectID,
		Region:          o.Cloud.Region,
		Registry:        o.Cloud.Registry,
		StagingBucket:   o.Cloud.StagingBucket,
		EnvVars:         envVars,
		SecretEnvVars:   secretFlags,
		Resources:       resources,
	}

	var rec *pipeline.DeploymentRecord
	o.running.Store(true)
	o.runWithProgress(deploymentID, func() {
		rec = o.Pipeline.Run(ctx, input)
	})
	o.running.Store(false)

	if rec.Failed {
		return map[string]any{
			"deployment_id": rec.DeploymentID,
			"error":         rec.ErrorSummary,
			"remediation":   rec.RemediationSteps,
		}, Response{Text: "The deployment failed: " + rec.ErrorSummary}, &deploymentError{record: rec}
	}

	o.Context.DeployedService = rec.ServiceName
	o.Context.DeploymentURL = rec.ServiceURL
	o.Context.LastDeploymentID = rec.DeploymentID

	payload := map[string]any{
		"deployment_id":   rec.DeploymentID,
		"service_url":     rec.ServiceURL,
		"image_tag":       rec.ImageTag,
		"cost_estimate":   rec.CostEstimateUSD,
		"health_ms":       rec.HealthResponseMS,
		"warning":         rec.ErrorSummary != "",
	}
	text := fmt.Sprintf("Your app is live at %s", rec.ServiceURL)
	intent := ""
	if rec.ErrorSummary != "" {
		text = fmt.Sprintf("Your app was deployed to %s, but health verification reported: %s", rec.ServiceURL, rec.ErrorSummary)
		intent = "warning"
	}

	return payload, Response{Text: text, Intent: intent, DeploymentURL: rec.ServiceURL}, nil
}

func (o *Orchestrator) runListRepositories(ctx context.Context) (any, Response, error) {
	if o.Pipeline.Git == nil {
		err := taxonomy.New(taxonomy.KindPreflightFailed, "no git collaborator configured", nil)
		return nil, Response{Text: "I can't reach the Git host right now."}, err
	}

	repos, err := o.Pipeline.Git.ListRepositories(ctx)
	if err != nil {
		wrapped := taxonomy.New(taxonomy.KindPreflightFailed, "listing repositories failed: "+err.Error(), err)
		return nil, Response{Text: "I couldn't list your repositories: " + err.Error()}, wrapped
	}

	names := make([]string, 0, len(repos))
	for _, r := range repos {
		names = append(names, r.Name)
	}
	return map[string]any{"repositories": repos}, Response{
		Text: "Here are your repositories: " + fmt.Sprint(names),
		Data: repos,
	}, nil
}

func (o *Orchestrator) runGetLogs(ctx context.Context, argsJSON string) (any, Response, error) {
	var args getLogsArgs
	_ = json.Unmarshal([]byte(argsJSON), &args)
	if args.Limit <= 0 {
		args.Limit = 100
	}

	if o.Context.LastDeploymentID == "" {
		err := taxonomy.New(taxonomy.KindNotFound, "no prior deployment in this session to fetch logs for", nil)
		return nil, Response{Text: "There's no deployment in this session yet to fetch logs for."}, err
	}

	var lines []string
	var err error
	if args.Source == "build" {
		lines, err = o.Pipeline.Build.FetchLogs(ctx, o.Context.LastDeploymentID)
	} else {
		lines, err = o.Pipeline.Serverless.FetchLogs(ctx, o.Context.DeployedService, args.Limit)
	}
	if err != nil {
		wrapped := taxonomy.New(taxonomy.KindPreflightFailed, "fetching logs failed: "+err.Error(), err)
		return nil, Response{Text: "I couldn't fetch logs: " + err.Error()}, wrapped
	}

	return map[string]any{"lines": lines}, Response{Text: fmt.Sprintf("Fetched %d log lines.", len(lines)), Data: lines}, nil
}
