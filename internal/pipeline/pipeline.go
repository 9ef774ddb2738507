package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/launchdeck/launchdeck/internal/analyzer"
	"github.com/launchdeck/launchdeck/internal/collaborators"
	"github.com/launchdeck/launchdeck/internal/health"
	"github.com/launchdeck/launchdeck/internal/masking"
	"github.com/launchdeck/launchdeck/internal/metrics"
	"github.com/launchdeck/launchdeck/internal/progress"
	"github.com/launchdeck/launchdeck/internal/recipe"
	"github.com/launchdeck/launchdeck/internal/taxonomy"
	"github.com/launchdeck/launchdeck/internal/transient"
)

const (
	buildStageTimeout  = 15 * time.Minute
	deployStageTimeout = 10 * time.Minute
	healthStageTimeout = 2 * time.Minute
)

// Engine wires the stage collaborators together. Every field is an
// interface so tests can substitute fakes.
type Engine struct {
	Git        collaborators.GitClient
	Build      collaborators.CloudBuildClient
	Serverless collaborators.ServerlessClient
	Analyzer   *analyzer.Analyzer
	Recipe     *recipe.Synthesizer
	Health     *health.Verifier
	Bus        *progress.Bus
}

// Run executes the full stage sequence for one deployment (spec §4.4). It
// never panics; every terminal failure is reflected in the returned record
// and also published as a `failed` StageEvent before Run returns.
func (e *Engine) Run(ctx context.Context, in Input) *DeploymentRecord {
	rec := &DeploymentRecord{
		DeploymentID: in.DeploymentID,
		ServiceName:  collaborators.DeriveServiceName(in.RepoURL),
		ProjectID:    in.ProjectID,
		Region:       in.Region,
		StartTime:    time.Now(),
	}

	workingCopy := in.WorkingCopyPath
	var analysisResult analyzer.Result
	var rcp recipe.Recipe

	steps := []struct {
		tag progress.StageTag
		run func() error
	}{
		{progress.StageRepoClone, func() error {
			if workingCopy != "" {
				return nil // already cloned in an earlier turn; anti-reclone invariant
			}
			var err error
			workingCopy, err = e.runClone(ctx, rec, in)
			return err
		}},
		{progress.StageCodeAnalysis, func() error {
			analysisResult = e.Analyzer.Analyze(ctx, workingCopy)
			e.publish(rec, progress.StageCodeAnalysis, progress.StateComplete,
				fmt.Sprintf("analyzed project: %s/%s", analysisResult.Language, analysisResult.Framework),
				map[string]any{"language": analysisResult.Language, "framework": analysisResult.Framework})
			return nil
		}},
		{progress.StageDockerfileGen, func() error {
			rcp = e.Recipe.Synthesize(ctx, analysisResult)
			e.publish(rec, progress.StageDockerfileGen, progress.StateComplete,
				"recipe synthesized", map[string]any{"from_template": rcp.FromTemplate, "size_estimate": rcp.SizeEstimate})
			return nil
		}},
		{progress.StageRepoAccess, func() error {
			return e.runPreflight(ctx, rec, in, rcp)
		}},
		{progress.StageContainerBuild, func() error {
			return e.runBuild(ctx, rec, in, workingCopy)
		}},
		{progress.StageCloudDeployment, func() error {
			return e.runDeploy(ctx, rec, in, rcp, analysisResult)
		}},
		{progress.StageHealthVerification, func() error {
			return e.runHealthVerification(ctx, rec)
		}},
	}

	for _, step := range steps {
		start := time.Now()
		e.publish(rec, step.tag, progress.StateStarted, "starting "+string(step.tag), nil)

		err := step.run()
		duration := time.Since(start)

		if err != nil {
			outcome := metrics.OutcomeFailed
			metrics.RecordStage(string(step.tag), outcome, duration)
			rec.Outcomes = append(rec.Outcomes, StageOutcome{Stage: step.tag, Success: false, Duration: duration, Err: err})

			tErr, _ := err.(*taxonomy.Error)
			var remediation []string
			if tErr != nil {
				remediation = tErr.Remediation
			}

			// health-degraded is the one non-terminal failure kind: the
			// pipeline is still reported successful with a warning.
			if tErr != nil && tErr.Kind == taxonomy.KindHealthDegraded {
				e.publish(rec, step.tag, progress.StateFailed, err.Error(), nil)
				rec.Seal(false, err.Error(), nil)
				return rec
			}

			e.publish(rec, step.tag, progress.StateFailed, err.Error(), map[string]any{"remediation": remediation})
			rec.Seal(true, err.Error(), remediation)
			return rec
		}

		metrics.RecordStage(string(step.tag), metrics.OutcomeSuccess, duration)
		rec.Outcomes = append(rec.Outcomes, StageOutcome{Stage: step.tag, Success: true, Duration: duration})
		if step.tag != progress.StageCodeAnalysis && step.tag != progress.StageDockerfileGen {
			e.publish(rec, step.tag, progress.StateComplete, "completed "+string(step.tag), nil)
		}
	}

	rec.CostEstimateUSD = estimateCost(rcp, analysisResult)
	rec.Seal(false, "", nil)
	return rec
}

func (e *Engine) publish(rec *DeploymentRecord, stage progress.StageTag, state progress.State, msg string, details map[string]any) {
	if e.Bus == nil {
		return
	}
	_, _ = e.Bus.Publish(rec.DeploymentID, stage, state, msg, details)
}

func (e *Engine) runClone(ctx context.Context, rec *DeploymentRecord, in Input) (string, error) {
	if e.Git == nil {
		return "", taxonomy.New(taxonomy.KindPreflightFailed, "no git collaborator configured", nil)
	}
	targetDir := fmt.Sprintf("/tmp/launchdeck/%s", in.DeploymentID)
	branch := in.Branch
	if branch == "" {
		branch = "main"
	}

	var lastProgress collaborators.CloneProgress
	err := e.Git.Clone(ctx, in.RepoURL, branch, targetDir, func(p collaborators.CloneProgress) {
		lastProgress = p
		e.publish(rec, progress.StageRepoClone, progress.StateInProgress,
			"cloning", map[string]any{"bytes": p.BytesReceived, "files": p.FilesWritten})
	})
	if err != nil {
		return "", taxonomy.New(taxonomy.KindPreflightFailed, "clone failed: "+err.Error(), err)
	}
	e.publish(rec, progress.StageRepoClone, progress.StateComplete, "clone complete",
		map[string]any{"bytes": lastProgress.BytesReceived, "files": lastProgress.FilesWritten})
	return targetDir, nil
}

// runPreflight checks that a build collaborator is configured and has
// EnsureSourceBucket create the staging bucket if absent (spec §4.4 stage
// 4); the container image registry is neither checked nor created here.
// It also publishes the findings of the security scan
// computed during recipe synthesis in its preamble (spec §4.4 stage 5,
// §9 supplemented catalog).
func (e *Engine) runPreflight(ctx context.Context, rec *DeploymentRecord, in Input, rcp recipe.Recipe) error {
	if len(rcp.SecurityNotes) > 0 {
		e.publish(rec, progress.StageRepoAccess, progress.StateInProgress, "security scan findings",
			map[string]any{"findings": rcp.SecurityNotes})
	}
	if e.Build == nil {
		return taxonomy.New(taxonomy.KindPreflightFailed, "no build collaborator configured", nil)
	}
	if err := e.Build.EnsureSourceBucket(ctx); err != nil {
		return taxonomy.New(taxonomy.KindPreflightFailed, "staging bucket check failed: "+err.Error(), err,
			"verify the build service account has storage.buckets.create permission")
	}
	return nil
}

func (e *Engine) runBuild(ctx context.Context, rec *DeploymentRecord, in Input, workingCopy string) error {
	buildCtx, cancel := context.WithTimeout(ctx, buildStageTimeout)
	defer cancel()

	objectName := fmt.Sprintf("%s/source.tar.gz", in.DeploymentID)
	imageTag := fmt.Sprintf("%s-docker.pkg.dev/%s/%s/%s:latest", in.Region, in.ProjectID, in.Registry, rec.ServiceName)

	var op *collaborators.BuildOperation
	err := retryStageWrapper(buildCtx, func() error {
		pr, pw := newPipeReader()
		go func() {
			_ = collaborators.WriteSourceArchive(pw, workingCopy)
			_ = pw.Close()
		}()
		if err := e.Build.UploadBlob(buildCtx, objectName, pr); err != nil {
			return err
		}

		submitted, err := e.Build.SubmitBuild(buildCtx, objectName, imageTag)
		if err != nil {
			return err
		}

		op, err = e.pollBuild(buildCtx, rec, submitted.ID)
		return err
	})
	if err != nil {
		return classifyStageError(err, taxonomy.KindBuildFailed, "container build failed")
	}

	rec.ImageTag = op.ImageTag
	if rec.ImageTag == "" {
		rec.ImageTag = imageTag
	}
	return nil
}

func (e *Engine) pollBuild(ctx context.Context, rec *DeploymentRecord, operationID string) (*collaborators.BuildOperation, error) {
	for {
		op, err := e.Build.PollOperation(ctx, operationID)
		if err != nil {
			return nil, err
		}
		if op.Done {
			if op.Error != "" {
				return nil, fmt.Errorf("%s", op.Error)
			}
			return op, nil
		}
		e.publish(rec, progress.StageContainerBuild, progress.StateInProgress, "build in progress", nil)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(4 * time.Second):
		}
	}
}

func (e *Engine) runDeploy(ctx context.Context, rec *DeploymentRecord, in Input, rcp recipe.Recipe, result analyzer.Result) error {
	deployCtx, cancel := context.WithTimeout(ctx, deployStageTimeout)
	defer cancel()

	spec := collaborators.ServiceSpec{
		Name:      rec.ServiceName,
		ImageTag:  rec.ImageTag,
		Port:      8080,
		Resources: in.Resources,
		EnvVars:   in.EnvVars,
		Labels:    map[string]string{"managed-by": "launchdeck"},
	}

	var info *collaborators.ServiceInfo
	err := retryStageWrapper(deployCtx, func() error {
		existing, err := e.Serverless.GetService(deployCtx, rec.ServiceName)
		if err != nil {
			return err
		}
		if existing.Exists {
			info, err = e.Serverless.UpdateService(deployCtx, spec)
		} else {
			info, err = e.Serverless.CreateService(deployCtx, spec)
		}
		return err
	})
	if err != nil {
		return classifyStageError(err, taxonomy.KindDeployFailed, "deployment failed")
	}

	rec.ServiceURL = info.URL
	return nil
}

func (e *Engine) runHealthVerification(ctx context.Context, rec *DeploymentRecord) error {
	healthCtx, cancel := context.WithTimeout(ctx, healthStageTimeout)
	defer cancel()

	if e.Health == nil || rec.ServiceURL == "" {
		return taxonomy.New(taxonomy.KindHealthDegraded, "no health verifier configured", nil)
	}

	result := e.Health.Verify(healthCtx, rec.ServiceURL)
	rec.HealthResponseMS = result.ResponseTime.Milliseconds()

	if !result.Success {
		return taxonomy.New(taxonomy.KindHealthDegraded,
			fmt.Sprintf("health verification did not observe a healthy response: %s", result.ErrorSummary), nil)
	}
	return nil
}

// retryStageWrapper implements the exponential-backoff retry policy for
// stages 5/6: max 3 attempts, base 1s, doubling (spec §4.4 "Retry policy").
// Non-transient errors are not retried.
func retryStageWrapper(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 4 * time.Second
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if attempt >= 3 || !transient.IsNetworkError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx))
}

func classifyStageError(err error, kind taxonomy.Kind, message string) error {
	if perm, ok := err.(*backoff.PermanentError); ok {
		err = perm.Err
	}
	return taxonomy.New(kind, message+": "+err.Error(), err)
}

// estimateCost implements the formula supplemented in spec §9: a flat
// per-vCPU-hour and per-GiB-hour rate applied over an assumed idle
// footprint, since the optimizer collaborator that would price actual
// traffic is out of scope.
func estimateCost(rcp recipe.Recipe, result analyzer.Result) float64 {
	const (
		vcpuHourlyUSD = 0.024
		gibHourlyUSD  = 0.0025
		hoursPerMonth = 730
	)
	vcpu := 1.0
	gib := 0.5
	return (vcpu*vcpuHourlyUSD + gib*gibHourlyUSD) * hoursPerMonth
}

// DescribeEnvVarsForLog renders a redacted summary of env vars for
// progress/log lines (spec §9 "Env-var secrecy"), bridging pipeline.Input's
// plain map plus secret-flag set into masking's typed EnvVar shape.
func DescribeEnvVarsForLog(envVars map[string]string, secretFlags map[string]bool) []string {
	vars := make([]masking.EnvVar, 0, len(envVars))
	for k, v := range envVars {
		vars = append(vars, masking.EnvVar{Key: k, Value: v, Secret: secretFlags[k]})
	}
	return masking.DescribeEnvVars(vars)
}
