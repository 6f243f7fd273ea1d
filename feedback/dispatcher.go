/*
dispatcher.go - Background redelivery of pending feedback

PURPOSE:
  Periodically picks up submissions whose mail failed and tries again,
  oldest first, until MaxAttempts is reached.

CONFIGURATION:
  - Interval:    How often to scan (default: 5 minutes)
  - MaxAttempts: Attempts before a row is left alone (default: 5)
  - BatchSize:   Rows per scan (default: 25)
  - Enabled:     Whether the dispatcher runs (default: true)

USAGE:
  d := feedback.NewDispatcher(svc, logger)
  d.Start()
  // ... later
  d.Stop()
*/
package feedback

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher retries undelivered feedback.
type Dispatcher struct {
	Service     *Service
	Interval    time.Duration
	MaxAttempts int
	BatchSize   int
	Enabled     bool

	logger *slog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewDispatcher creates a dispatcher with default settings.
func NewDispatcher(svc *Service, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		Service:     svc,
		Interval:    5 * time.Minute,
		MaxAttempts: 5,
		BatchSize:   25,
		Enabled:     true,
		logger:      logger.With("component", "feedback-dispatcher"),
	}
}

// Start begins the background loop. Calling Start twice is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.Enabled {
		d.logger.Info("disabled, not starting")
		return
	}
	if d.ticker != nil {
		return
	}
	if d.Interval <= 0 {
		d.Interval = 5 * time.Minute
	}

	d.ticker = time.NewTicker(d.Interval)
	d.stop = make(chan struct{})
	d.wg.Add(1)

	go d.run(d.ticker, d.stop)

	d.logger.Info("started", "interval", d.Interval)
}

// Stop stops the loop and waits for an in-flight scan to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ticker != nil {
		d.ticker.Stop()
		close(d.stop)
		d.wg.Wait()
		d.ticker = nil
		d.logger.Info("stopped")
	}
}

func (d *Dispatcher) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer d.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	// Run immediately on start
	d.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			d.RunOnce(ctx)
		case <-stop:
			return
		}
	}
}

// DispatchResult summarises one scan.
type DispatchResult struct {
	Scanned   int
	Delivered int
	Failed    int
}

// RunOnce performs a single scan.
func (d *Dispatcher) RunOnce(ctx context.Context) DispatchResult {
	var res DispatchResult

	pending, err := d.Service.store.ListPending(ctx, d.MaxAttempts, d.BatchSize)
	if err != nil {
		d.logger.Error("failed to list pending feedback", "error", err)
		return res
	}
	res.Scanned = len(pending)

	for _, rec := range pending {
		if ctx.Err() != nil {
			break
		}
		if err := d.Service.Deliver(ctx, rec); err != nil {
			res.Failed++
			d.logger.Warn("redelivery failed", "id", rec.ID, "attempt", rec.Attempts+1, "error", err)
			continue
		}
		res.Delivered++
	}

	if res.Scanned > 0 {
		d.logger.Info("dispatch complete", "scanned", res.Scanned, "delivered", res.Delivered, "failed", res.Failed)
	}
	return res
}
