package collector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/greg-randall/townnews/internal/logging"
	"github.com/greg-randall/townnews/internal/metrics"
)

// Orchestrator runs one session across every target in order.
type Orchestrator struct {
	launcher Launcher
	fetcher  Fetcher
	pauser   Pauser
	delays   DelaySource
	logger   *zap.Logger
}

// NewOrchestrator wires an Orchestrator. A nil pauser sleeps on a timer.
func NewOrchestrator(launcher Launcher, fetcher Fetcher, pauser Pauser, delays DelaySource, logger *zap.Logger) *Orchestrator {
	if pauser == nil {
		pauser = TimerPauser{}
	}
	if delays == nil {
		delays = UniformDelay{}
	}
	return &Orchestrator{
		launcher: launcher,
		fetcher:  fetcher,
		pauser:   pauser,
		delays:   delays,
		logger:   logging.OrNop(logger).Named("collector"),
	}
}

// Run returns exactly one Outcome per target, in input order. The only error
// it returns wraps ErrAcquisition.
func (o *Orchestrator) Run(ctx context.Context, targets []Target) ([]Outcome, error) {
	if len(targets) == 0 {
		return nil, nil
	}

	session, err := o.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w: %w", ErrAcquisition, err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			o.logger.Warn("close browser session", zap.Error(cerr))
		}
	}()

	outcomes := make([]Outcome, 0, len(targets))
	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			outcomes = append(outcomes, Outcome{
				Target: target,
				Err:    fmt.Errorf("fetch %s: %w", target.Domain, err),
			})
			continue
		}

		o.logger.Info("fetching",
			zap.Int("index", i+1),
			zap.Int("total", len(targets)),
			zap.String("domain", target.Domain),
		)
		outcomes = append(outcomes, o.fetcher.Fetch(ctx, session, target))

		if i < len(targets)-1 && ctx.Err() == nil {
			delay := o.delays.Next()
			o.logger.Debug("pausing before next site", zap.Duration("delay", delay))
			metrics.ObservePacingDelay(delay)
			o.pauser.Pause(ctx, delay)
		}
	}
	return outcomes, nil
}
