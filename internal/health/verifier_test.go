package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVerify_AcceptsAnyStatusBelow500(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound) // 404 is still "healthy" per spec
	}))
	defer srv.Close()

	v := &Verifier{client: srv.Client(), attemptTimeout: time.Second, maxRetries: 2, baseDelay: 10 * time.Millisecond}
	result := v.Verify(context.Background(), srv.URL)

	assert.True(t, result.Success)
	assert.Equal(t, http.StatusNotFound, result.StatusCode)
}

func TestVerify_FailsAfterExhaustingRetriesOn503(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	v := &Verifier{client: srv.Client(), attemptTimeout: time.Second, maxRetries: 2, baseDelay: 5 * time.Millisecond}
	result := v.Verify(context.Background(), srv.URL)

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.ErrorSummary)
}

func TestVerify_SucceedsOnHealthPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	v := &Verifier{client: srv.Client(), attemptTimeout: time.Second, maxRetries: 2, baseDelay: 5 * time.Millisecond}
	result := v.Verify(context.Background(), srv.URL)

	assert.True(t, result.Success)
	assert.Equal(t, srv.URL+"/health", result.Path)
}
