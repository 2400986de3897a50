package services

import (
	"context"
	"sync"

	"github.com/celestiaorg/maasprov/internal/logger"
)

// JobExecutor runs a single job to completion
type JobExecutor interface {
	Run(ctx context.Context, jobID string)
}

// Dispatcher launches one goroutine per accepted job. Jobs share nothing but the
// store; the only hand-off from the submitting request is the job ID.
type Dispatcher struct {
	ctx      context.Context
	cancel   context.CancelFunc
	executor JobExecutor
	wg       sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewDispatcher creates a dispatcher whose jobs run under a context derived from parent.
// Cancelling parent (or calling Shutdown) makes in-flight MAAS calls fail.
func NewDispatcher(parent context.Context, executor JobExecutor) *Dispatcher {
	ctx, cancel := context.WithCancel(parent)
	return &Dispatcher{
		ctx:      ctx,
		cancel:   cancel,
		executor: executor,
	}
}

// Dispatch starts the job in the background and returns immediately.
// It returns false once the dispatcher is shutting down.
func (d *Dispatcher) Dispatch(jobID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		logger.WarnWithFields("Dispatcher closed, job not started", logger.Fields{"job_id": jobID})
		return false
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.executor.Run(d.ctx, jobID)
	}()
	return true
}

// Wait blocks until every dispatched job finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown stops accepting jobs and waits for running ones. When ctx expires
// first, running jobs are cancelled and Shutdown still waits for them to record
// their state.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		logger.Info("All provisioning jobs finished")
		return nil
	case <-ctx.Done():
		logger.Warn("Shutdown timeout reached, cancelling running provisioning jobs")
		d.cancel()
		<-done
		return ctx.Err()
	}
}
