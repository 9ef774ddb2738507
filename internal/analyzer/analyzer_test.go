package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/launchdeck/launchdeck/internal/broker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClassifier struct {
	resp *broker.Response
	err  error
}

func (f *fakeClassifier) Send(ctx context.Context, userMessage string) (*broker.Response, error) {
	return f.resp, f.err
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestAnalyzer_UsesClassifierResponse(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "requirements.txt", "flask==3.0.0\n")

	resp := &broker.Response{Text: "```json\n{\"language\":\"python\",\"framework\":\"flask\",\"port\":8080,\"database\":\"postgresql\"}\n```"}
	a := New(&fakeClassifier{resp: resp})

	result := a.Analyze(context.Background(), root)
	assert.Equal(t, "python", result.Language)
	assert.Equal(t, "flask", result.Framework)
	assert.Equal(t, "postgresql", result.DatabaseHint)
	assert.Equal(t, 8080, result.Port)
}

func TestAnalyzer_FallsBackOnClassifierError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "go.mod", "module example.com/x\n")

	a := New(&fakeClassifier{err: assertError("broker down")})
	result := a.Analyze(context.Background(), root)

	assert.Equal(t, "golang", result.Language)
	assert.Equal(t, "main.go", result.EntryPoint)
	assert.NotEmpty(t, result.Warnings)
}

func TestAnalyzer_FallsBackOnUnparseableResponse(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"dependencies":{"express":"4.0.0"}}`)

	a := New(&fakeClassifier{resp: &broker.Response{Text: "not json at all"}})
	result := a.Analyze(context.Background(), root)

	// Even though classification failed, the static fallback still detects
	// nodejs from package.json's presence.
	assert.Equal(t, "nodejs", result.Language)
	assert.Equal(t, "express", result.Framework)
	assert.NotEmpty(t, result.Warnings)
}

func TestAnalyzer_NeverErrorsOnEmptyRepo(t *testing.T) {
	root := t.TempDir()
	a := New(&fakeClassifier{err: assertError("down")})
	result := a.Analyze(context.Background(), root)
	assert.Equal(t, languageUnknown, result.Language)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(`{"a":1}`))
}

type assertError string

func (e assertError) Error() string { return string(e) }
