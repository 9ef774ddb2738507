package recipe

import (
	"context"
	"strings"
	"testing"

	"github.com/launchdeck/launchdeck/internal/analyzer"
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

func TestSynthesize_UsesTemplateWhenAvailable(t *testing.T) {
	s := New(nil)
	rec := s.Synthesize(context.Background(), analyzer.Result{
		Language: "python", Framework: "flask", EntryPoint: "app.py",
	})

	require.True(t, rec.FromTemplate)
	assert.Contains(t, rec.Text, "gunicorn")
	assert.Contains(t, rec.Text, "app:app")
	assert.Equal(t, "~150MB", rec.SizeEstimate)
}

func TestSynthesize_FallsBackToLLMForUnknownFramework(t *testing.T) {
	s := New(&fakeClassifier{resp: &broker.Response{Text: "FROM scratch\nCMD [\"x\"]"}})
	rec := s.Synthesize(context.Background(), analyzer.Result{
		Language: "rust", Framework: "actix", EntryPoint: "main",
	})

	assert.False(t, rec.FromTemplate)
	assert.Contains(t, rec.Text, "FROM scratch")
}

func TestSynthesize_FallsBackToGenericWhenLLMFails(t *testing.T) {
	s := New(&fakeClassifier{err: assertError("model down")})
	rec := s.Synthesize(context.Background(), analyzer.Result{
		Language: "rust", Framework: "actix", EntryPoint: "main",
	})

	assert.False(t, rec.FromTemplate)
	assert.Contains(t, rec.Text, "alpine")
}

func TestSanitizeEntryPoint(t *testing.T) {
	assert.Equal(t, "app", sanitizeEntryPoint("app.py", "python"))
	assert.Equal(t, "app", sanitizeEntryPoint("unknown", "python"))
	assert.Equal(t, "servermain", sanitizeEntryPoint("server main!!", "nodejs"))
}

func TestScanRecipe_FlagsMissingNonRootUser(t *testing.T) {
	notes := scanRecipe("FROM golang:1.21\nCOPY . .\nCMD [\"./main\"]\n")
	assert.NotEmpty(t, notes)
}

func TestScanRecipe_FlagsHardcodedSecret(t *testing.T) {
	notes := scanRecipe("FROM alpine\nENV password=\"hunter2\"\nUSER appuser\n")
	found := false
	for _, n := range notes {
		if strings.Contains(n, "hardcoded secret") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestScanRecipe_FlagsCapAdd(t *testing.T) {
	notes := scanRecipe("FROM alpine\nUSER appuser\nRUN run.sh --cap-add=NET_ADMIN\n")
	found := false
	for _, n := range notes {
		if strings.Contains(n, "capability") {
			found = true
		}
	}
	assert.True(t, found)
}

type assertError string

func (e assertError) Error() string { return string(e) }
