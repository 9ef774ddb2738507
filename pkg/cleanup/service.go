// Package cleanup provides the background sweeper that reclaims
// transport-less sessions from the Session Gateway's registries (spec §5,
// §9 "Background cleanup sweeper").
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/launchdeck/launchdeck/internal/gateway"
)

// DefaultGraceThreshold is how long a session may sit without a live
// transport before the sweeper reclaims it, absent an explicit override
// (spec §5 "default 1h").
const DefaultGraceThreshold = 1 * time.Hour

// DefaultSweepInterval is how often the sweeper checks for reclaimable
// sessions.
const DefaultSweepInterval = 5 * time.Minute

// Service periodically reclaims sessions that have been transport-less for
// longer than GraceThreshold. It never reclaims a session with an active
// pipeline (gateway.Hub.Reclaim already enforces this), so a client that
// reconnects mid-deployment always finds its Orchestrator intact.
type Service struct {
	hub             *gateway.Hub
	graceThreshold  time.Duration
	sweepInterval   time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a cleanup Service over hub. A zero graceThreshold or
// sweepInterval falls back to the package defaults.
func NewService(hub *gateway.Hub, graceThreshold, sweepInterval time.Duration) *Service {
	if graceThreshold <= 0 {
		graceThreshold = DefaultGraceThreshold
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	return &Service{hub: hub, graceThreshold: graceThreshold, sweepInterval: sweepInterval}
}

// Start launches the background sweep loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("cleanup sweeper started",
		"grace_threshold", s.graceThreshold,
		"sweep_interval", s.sweepInterval)
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("cleanup sweeper stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.sweep(time.Now())

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

// sweep reclaims every transport-less session whose last-seen timestamp is
// older than graceThreshold. Reclaim itself re-checks liveness and
// in-flight pipeline state under lock immediately before deleting, so a
// session that regains a transport or starts a deployment between the
// snapshot here and the reclaim call is safely skipped.
func (s *Service) sweep(now time.Time) {
	candidates := s.hub.SweepableSessionIDs()
	reclaimed := 0
	for _, id := range candidates {
		lastSeen := s.hub.LastSeen(id)
		if lastSeen.IsZero() || now.Sub(lastSeen) < s.graceThreshold {
			continue
		}
		if s.hub.Reclaim(id) {
			reclaimed++
		}
	}
	if reclaimed > 0 {
		slog.Info("cleanup sweeper reclaimed sessions", "count", reclaimed)
	}
}
