package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdeck/launchdeck/internal/analyzer"
	"github.com/launchdeck/launchdeck/internal/broker"
	"github.com/launchdeck/launchdeck/internal/collaborators"
	"github.com/launchdeck/launchdeck/internal/pipeline"
	"github.com/launchdeck/launchdeck/internal/progress"
	"github.com/launchdeck/launchdeck/internal/recipe"
	"github.com/launchdeck/launchdeck/internal/session"
	"github.com/launchdeck/launchdeck/internal/taxonomy"
)

// fakeGit is a scripted GitClient that records how many times Clone was
// called, for the anti-reclone invariant test.
type fakeGit struct {
	cloneCalls int
}

func (f *fakeGit) Clone(ctx context.Context, repoURL, branch, targetDir string, progress func(collaborators.CloneProgress)) error {
	f.cloneCalls++
	progress(collaborators.CloneProgress{BytesReceived: 100, FilesWritten: 3})
	return nil
}
func (f *fakeGit) ValidateCredential(ctx context.Context) error { return nil }
func (f *fakeGit) ListRepositories(ctx context.Context) ([]collaborators.RepositoryRef, error) {
	return []collaborators.RepositoryRef{{Name: "flask-app"}}, nil
}

// fakeProvider returns a scripted function-call response once, then a
// plain text response thereafter.
type fakeProvider struct {
	calls      int
	funcName   string
	funcArgs   string
	textAnswer string
}

func (f *fakeProvider) Name() string { return "primary" }
func (f *fakeProvider) Send(ctx context.Context, history []broker.Message, tools []broker.ToolDefinition) (*broker.Response, error) {
	f.calls++
	if f.calls == 1 && f.funcName != "" {
		return &broker.Response{FunctionCall: &broker.ToolCall{ID: "call-1", Name: f.funcName, Arguments: f.funcArgs}}, nil
	}
	return &broker.Response{Text: f.textAnswer}, nil
}

func newTestOrchestrator(t *testing.T, provider *fakeProvider, git *fakeGit) *Orchestrator {
	t.Helper()
	b := broker.NewBroker(provider, nil, SystemInstruction, Tools())
	eng := &pipeline.Engine{
		Git:      git,
		Analyzer: analyzer.New(nil),
		Recipe:   recipe.New(nil),
		Bus:      progress.NewBus(),
	}
	ctx := &session.ProjectContext{}
	return New("sess-1", ctx, b, eng, progress.NewBus(), CloudConfig{})
}

func TestOrchestrator_CloneAndAnalyzePopulatesContext(t *testing.T) {
	provider := &fakeProvider{funcName: FuncCloneAndAnalyze, funcArgs: `{"repo_url":"https://example.org/u/flask-app"}`, textAnswer: "analyzed"}
	git := &fakeGit{}
	o := newTestOrchestrator(t, provider, git)

	sent := func(string, any) error { return nil }
	resp, err := o.Process(context.Background(), "analyze https://example.org/u/flask-app", sent)

	require.NoError(t, err)
	assert.Equal(t, "analyzed", resp.Text)
	assert.True(t, o.Context.Ready())
	assert.Equal(t, 1, git.cloneCalls)
}

func TestOrchestrator_NeverReclonesOnceContextReady(t *testing.T) {
	provider := &fakeProvider{funcName: FuncCloneAndAnalyze, funcArgs: `{"repo_url":"https://example.org/u/b"}`, textAnswer: "ok"}
	git := &fakeGit{}
	o := newTestOrchestrator(t, provider, git)
	o.Context.WorkingCopyPath = "/tmp/already-cloned"
	o.Context.RepoURL = "https://example.org/u/a"

	sent := func(string, any) error { return nil }
	_, err := o.Process(context.Background(), "analyze https://example.org/u/b", sent)

	require.NoError(t, err)
	assert.Equal(t, 0, git.cloneCalls, "clone must never be invoked once the context already has a working copy")
	assert.Equal(t, "/tmp/already-cloned", o.Context.WorkingCopyPath, "the original project's context must survive the refused reclone")
}

func TestOrchestrator_DeployBeforeAnalyzeIsNotFoundError(t *testing.T) {
	provider := &fakeProvider{funcName: FuncDeploy, textAnswer: "ok"}
	git := &fakeGit{}
	o := newTestOrchestrator(t, provider, git)

	sent := func(string, any) error { return nil }
	_, err := o.Process(context.Background(), "deploy", sent)

	require.Error(t, err)
	var tErr *taxonomy.Error
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, taxonomy.KindNotFound, tErr.Kind)
}
