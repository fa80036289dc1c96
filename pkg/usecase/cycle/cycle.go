// Package cycle drives the periodic pipeline: drain the buffer, render the
// transcript, extract candidates, then reconcile them into the sheet.
package cycle

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kyohei-s/oboegaki/pkg/buffer"
	"github.com/kyohei-s/oboegaki/pkg/model"
	"github.com/kyohei-s/oboegaki/pkg/usecase/extract"
	"github.com/kyohei-s/oboegaki/pkg/usecase/syncer"
	"github.com/kyohei-s/oboegaki/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/robfig/cron/v3"
)

const DefaultInterval = 5 * time.Minute

type Runner struct {
	buf       *buffer.Buffer
	extractor *extract.Extractor
	syncer    *syncer.Syncer
	interval  time.Duration

	cron    *cron.Cron
	running atomic.Bool

	mu        sync.Mutex
	watermark time.Time
	lastCycle time.Time
}

type Option func(*Runner)

func WithInterval(interval time.Duration) Option {
	return func(r *Runner) {
		r.interval = interval
	}
}

func New(buf *buffer.Buffer, extractor *extract.Extractor, sy *syncer.Syncer, opts ...Option) *Runner {
	r := &Runner{
		buf:       buf,
		extractor: extractor,
		syncer:    sy,
		interval:  DefaultInterval,
		watermark: time.Now(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start schedules RunCycle on the fixed interval. Cycle errors are logged,
// never fatal; the next tick runs regardless.
func (r *Runner) Start(ctx context.Context) {
	r.cron = cron.New()
	r.cron.Schedule(cron.Every(r.interval), cron.FuncJob(func() {
		if err := r.RunCycle(ctx); err != nil {
			logging.From(ctx).Error("processing cycle failed", "error", err)
		}
	}))
	r.cron.Start()
	logging.From(ctx).Info("cycle runner started", "interval", r.interval)
}

// Stop halts the schedule and waits for an in-flight cycle to finish.
func (r *Runner) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}

// RunCycle executes one full pass: drain, format, extract, reconcile. Only one
// cycle may be in flight; an overlapping call is skipped. The watermark
// advances as soon as the buffer is drained, so a failing extraction drops
// the drained batch rather than reprocessing it forever.
func (r *Runner) RunCycle(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		logging.From(ctx).Warn("previous cycle still running, skipping tick")
		return nil
	}
	defer r.running.Store(false)

	logger := logging.From(ctx).With("cycle_id", uuid.New().String())
	ctx = logging.With(ctx, logger)

	batch, watermark := r.buf.Drain()

	r.mu.Lock()
	r.watermark = watermark
	r.lastCycle = watermark
	r.mu.Unlock()

	if len(batch) == 0 {
		logger.Debug("no new messages")
		return nil
	}
	logger.Info("processing batch", "messages", len(batch))

	transcript := extract.Transcript(batch)

	candidates, err := r.extractor.Extract(ctx, transcript, watermark)
	if err != nil {
		// The batch is already drained and the watermark advanced:
		// these messages are dropped, not retried
		return goerr.Wrap(err, "extraction failed, dropping batch", goerr.V("messages", len(batch)))
	}

	if len(candidates) == 0 {
		logger.Info("no actionable reminders in batch")
		return nil
	}

	if err := r.syncer.Reconcile(ctx, candidates); err != nil {
		return goerr.Wrap(err, "failed to reconcile reminders", goerr.V("candidates", len(candidates)))
	}

	logger.Info("cycle complete", "candidates", len(candidates))
	return nil
}

// Watermark returns the instant separating processed from unprocessed
// messages.
func (r *Runner) Watermark() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.watermark
}

// LastCycle returns the start instant of the most recent cycle attempt, or
// the zero time if none has run.
func (r *Runner) LastCycle() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastCycle
}

// OnMessage is the push entry point for the messaging layer. It may be
// invoked from any goroutine, zero or more times after any gap.
func (r *Runner) OnMessage(msg *model.Message) {
	r.buf.Append(msg)
}
