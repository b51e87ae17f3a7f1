package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/couchcryptid/rpp-data-etl-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Stage is one step of a pipeline run.
type Stage struct {
	Name string
	Run  func(ctx context.Context) error
}

// Pipeline runs its stages sequentially, each to completion.
type Pipeline struct {
	stages  []Stage
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(stages []Stage, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		stages:  stages,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once a run has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Run executes every stage in order and stops at the first failure. Later
// stages never see partial output of a failed one.
func (p *Pipeline) Run(ctx context.Context) error {
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	runStart := p.clock.Now()
	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return err
		}

		p.logger.Info("stage started", "stage", stage.Name)
		start := p.clock.Now()
		err := stage.Run(ctx)
		elapsed := p.clock.Since(start)
		p.metrics.StageDuration.WithLabelValues(stage.Name).Observe(elapsed.Seconds())

		if err != nil {
			p.metrics.StageErrors.WithLabelValues(stage.Name).Inc()
			p.logger.Error("stage failed", "stage", stage.Name, "error", err)
			return fmt.Errorf("%s: %w", stage.Name, err)
		}
		p.logger.Info("stage finished", "stage", stage.Name, "duration", elapsed)
	}

	p.metrics.LastSuccess.Set(float64(p.clock.Now().Unix()))
	p.ready.Store(true)
	p.logger.Info("pipeline finished", "stages", len(p.stages), "duration", p.clock.Since(runStart))
	return nil
}
