// Package health polls a freshly deployed service until it responds
// healthy or the verification window elapses (spec §4.8).
package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultAttemptTimeout = 30 * time.Second
	defaultMaxRetries     = 5
	defaultBaseDelay      = 2 * time.Second
)

// candidatePaths are tried in order; the first non-5xx response from any of
// them is accepted as healthy (spec §4.8).
var candidatePaths = []string{"/", "/health", "/api/health"}

// Result is the outcome of a verification run.
type Result struct {
	Success      bool
	StatusCode   int
	Path         string
	ResponseTime time.Duration
	ErrorSummary string
}

// Verifier polls a URL with exponential backoff.
type Verifier struct {
	client         *http.Client
	attemptTimeout time.Duration
	maxRetries     int
	baseDelay      time.Duration
}

// New builds a Verifier with the spec's default tuning.
func New() *Verifier {
	return &Verifier{
		client:         &http.Client{Timeout: defaultAttemptTimeout},
		attemptTimeout: defaultAttemptTimeout,
		maxRetries:     defaultMaxRetries,
		baseDelay:      defaultBaseDelay,
	}
}

// Verify polls baseURL and its well-known health paths until any one
// returns a status below 500, or the retry budget is exhausted (spec §4.8,
// testable property #9 "Health tolerance").
func (v *Verifier) Verify(ctx context.Context, baseURL string) Result {
	start := time.Now()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = v.baseDelay
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0 // bounded by the maxRetries attempt check below instead

	var last Result
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		for _, path := range candidatePaths {
			res := v.probe(ctx, baseURL+path)
			last = res
			if res.Success {
				return nil
			}
		}
		if attempt >= v.maxRetries {
			return backoff.Permanent(fmt.Errorf("health verification exhausted %d attempts", attempt))
		}
		return fmt.Errorf("no healthy response yet (attempt %d)", attempt)
	}, backoff.WithContext(bo, ctx))

	last.ResponseTime = time.Since(start)
	if err != nil && !last.Success {
		last.ErrorSummary = err.Error()
	}
	return last
}

func (v *Verifier) probe(ctx context.Context, url string) Result {
	reqCtx, cancel := context.WithTimeout(ctx, v.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return Result{ErrorSummary: err.Error(), Path: url}
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return Result{ErrorSummary: err.Error(), Path: url}
	}
	defer resp.Body.Close()

	return Result{
		Success:    resp.StatusCode < 500,
		StatusCode: resp.StatusCode,
		Path:       url,
	}
}
