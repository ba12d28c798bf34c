package application

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ahrav/hitrank/internal/domain"
	"github.com/ahrav/hitrank/internal/ports"
)

// BatchRunner processes many events in parallel. Each worker owns a
// Producer with its own engine from the factory, so no engine is ever
// shared between goroutines.
type BatchRunner struct {
	config   *Config
	registry ports.UnitRegistry
	engines  ports.EngineFactory
	opts     []ProducerOption
	logger   *zap.Logger
}

// NewBatchRunner creates a runner. opts are applied to every worker's
// Producer.
func NewBatchRunner(
	config *Config,
	registry ports.UnitRegistry,
	engines ports.EngineFactory,
	logger *zap.Logger,
	opts ...ProducerOption,
) *BatchRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchRunner{
		config:   config,
		registry: registry,
		engines:  engines,
		opts:     append([]ProducerOption{WithLogger(logger)}, opts...),
		logger:   logger,
	}
}

// Workers returns the number of workers used for n events.
func (b *BatchRunner) Workers(n int) int {
	workers := b.config.Batch.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return max(1, min(workers, n))
}

// Run processes events and returns their results in input order. An engine
// failure is confined to its event, which is reported with the failed
// outcome. Any other stage failure, or cancellation, stops the batch.
func (b *BatchRunner) Run(ctx context.Context, events []domain.Event) ([]domain.EventResult, error) {
	results := make([]domain.EventResult, len(events))
	if len(events) == 0 {
		return results, nil
	}

	workers := b.Workers(len(events))
	var limiter *rate.Limiter
	if eps := b.config.Batch.EventsPerSecond; eps > 0 {
		limiter = rate.NewLimiter(rate.Limit(eps), 1)
	}

	b.logger.Info("processing batch",
		zap.Int("events", len(events)),
		zap.Int("workers", workers),
		zap.Float64("events_per_second", b.config.Batch.EventsPerSecond),
	)

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan int)

	g.Go(func() error {
		defer close(jobs)
		for i := range events {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
			}
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for w := range workers {
		g.Go(func() error {
			engine, err := b.engines()
			if err != nil {
				return fmt.Errorf("worker %d: create engine: %w", w, err)
			}
			producer, err := NewProducer(b.config, b.registry, engine, b.opts...)
			if err != nil {
				return fmt.Errorf("worker %d: %w", w, err)
			}

			for i := range jobs {
				res, err := producer.Produce(gctx, events[i])
				if err != nil {
					if !errors.Is(err, ports.ErrEngineFailure) || gctx.Err() != nil {
						return err
					}
					b.logger.Warn("event failed, continuing batch",
						zap.String("event_id", events[i].ID),
						zap.Error(err),
					)
				}
				results[i] = res
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
