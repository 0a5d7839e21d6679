// Package pool runs accepted rounds on a bounded set of background workers.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	commonerrors "app-deployer/internal/common/errors"
	"app-deployer/internal/common/logger"
	"app-deployer/internal/common/metrics"
	"app-deployer/internal/models"
	"app-deployer/internal/pipeline"
)

var (
	ErrQueueFull = errors.New("pool: queue is full")
	ErrClosed    = errors.New("pool: shut down")
)

// Processor runs one round to completion.
type Processor interface {
	Process(ctx context.Context, req *models.BuildRequest) *pipeline.RoundResult
}

type Config struct {
	Workers   int
	QueueSize int
}

// Pool owns the background workers. Rounds run on a context detached from
// the submitting request; once started a round is never cancelled.
type Pool struct {
	processor Processor
	logger    logger.Logger

	jobs    chan *models.BuildRequest
	results chan *pipeline.RoundResult

	mu          sync.RWMutex
	closed      bool
	wg          sync.WaitGroup
	resultsOnce sync.Once
}

func New(cfg Config, processor Processor, log logger.Logger) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}

	p := &Pool{
		processor: processor,
		logger:    logger.ForComponent(log, "pool"),
		jobs:      make(chan *models.BuildRequest, cfg.QueueSize),
		results:   make(chan *pipeline.RoundResult, cfg.QueueSize),
	}

	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.work(i)
	}
	return p
}

// Submit enqueues req without blocking.
func (p *Pool) Submit(req *models.BuildRequest) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case p.jobs <- req:
		return nil
	default:
		metrics.RoundsRejected.Inc()
		return ErrQueueFull
	}
}

// Results delivers every finished round. It is closed after Shutdown once
// all workers have exited. Results nobody reads are dropped.
func (p *Pool) Results() <-chan *pipeline.RoundResult {
	return p.results
}

// Shutdown stops intake and waits for queued and in-flight rounds until ctx expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.resultsOnce.Do(func() { close(p.results) })
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) work(id int) {
	defer p.wg.Done()
	for req := range p.jobs {
		result := p.run(req)
		select {
		case p.results <- result:
		default:
			metrics.RoundResultsDropped.Inc()
			p.logger.Debug("result channel full, dropping round result", map[string]interface{}{
				"worker":  id,
				"task":    result.Task,
				"roundId": result.RoundID,
			})
		}
	}
}

func (p *Pool) run(req *models.BuildRequest) (result *pipeline.RoundResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("round panicked", map[string]interface{}{
				"task":  req.Task,
				"round": req.Round,
				"panic": r,
			})
			result = &pipeline.RoundResult{
				Task:        req.Task,
				Round:       req.Round,
				Nonce:       req.Nonce,
				Status:      pipeline.StatusFailed,
				FailureKind: commonerrors.ErrCodeInternal,
				Err:         commonerrors.NewInternalError(fmt.Errorf("panic: %v", r)),
			}
		}
	}()
	return p.processor.Process(context.Background(), req)
}
