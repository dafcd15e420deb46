package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/devclassik/harmoney-backend-sub000/internal/logging"
	"github.com/devclassik/harmoney-backend-sub000/internal/notification"
	"github.com/devclassik/harmoney-backend-sub000/internal/settlement"
)

// QueueNotifications isolates notification delivery from reconciliation work.
const QueueNotifications = "notifications"

// NotifyCreditArgs carries a credit notice to the delivery worker.
type NotifyCreditArgs struct {
	Notice notification.CreditNotice `json:"notice"`
}

func (NotifyCreditArgs) Kind() string { return "notify_credit" }

func (NotifyCreditArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueNotifications, MaxAttempts: 5}
}

// NotifyCreditWorker delivers queued credit notices through the configured sender.
type NotifyCreditWorker struct {
	river.WorkerDefaults[NotifyCreditArgs]
	sender notification.Dispatcher
}

// NewNotifyCreditWorker constructs the delivery worker.
func NewNotifyCreditWorker(sender notification.Dispatcher) *NotifyCreditWorker {
	return &NotifyCreditWorker{sender: sender}
}

func (w *NotifyCreditWorker) Work(ctx context.Context, job *river.Job[NotifyCreditArgs]) error {
	if err := w.sender.NotifyCredit(ctx, job.Args.Notice); err != nil {
		return fmt.Errorf("deliver credit notice %s: %w", job.Args.Notice.Reference, err)
	}
	return nil
}

// Inserter is the part of river.Client used to enqueue jobs.
type Inserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// QueueDispatcher satisfies notification.Dispatcher by enqueuing a delivery job, so a
// slow or failing mail provider never blocks the webhook. Until a client is bound,
// notices go straight to the fallback sender.
type QueueDispatcher struct {
	mu       sync.RWMutex
	inserter Inserter
	fallback notification.Dispatcher
}

// NewQueueDispatcher creates a dispatcher delivering through fallback until Bind is called.
func NewQueueDispatcher(fallback notification.Dispatcher) *QueueDispatcher {
	return &QueueDispatcher{fallback: fallback}
}

// Bind sets the queue client. The River client is built after the services that use
// this dispatcher, so it is bound late.
func (d *QueueDispatcher) Bind(inserter Inserter) {
	d.mu.Lock()
	d.inserter = inserter
	d.mu.Unlock()
}

func (d *QueueDispatcher) NotifyCredit(ctx context.Context, notice notification.CreditNotice) error {
	d.mu.RLock()
	inserter := d.inserter
	d.mu.RUnlock()

	if inserter == nil {
		if d.fallback == nil {
			return fmt.Errorf("no notification sender configured")
		}
		return d.fallback.NotifyCredit(ctx, notice)
	}
	_, err := inserter.Insert(ctx, NotifyCreditArgs{Notice: notice}, nil)
	return err
}

// ReconcileArgs triggers one reconciliation sweep.
type ReconcileArgs struct{}

func (ReconcileArgs) Kind() string { return "reconcile_debits" }

// Sweeper resolves stale debits.
type Sweeper interface {
	Sweep(ctx context.Context, olderThan time.Duration) (settlement.SweepResult, error)
}

// ReconcileWorker runs the sweep on the periodic schedule.
type ReconcileWorker struct {
	river.WorkerDefaults[ReconcileArgs]
	sweeper   Sweeper
	olderThan time.Duration
	logger    *slog.Logger
}

// NewReconcileWorker constructs the sweep worker.
func NewReconcileWorker(sweeper Sweeper, olderThan time.Duration, logger *slog.Logger) *ReconcileWorker {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ReconcileWorker{sweeper: sweeper, olderThan: olderThan, logger: logger}
}

func (w *ReconcileWorker) Work(ctx context.Context, job *river.Job[ReconcileArgs]) error {
	res, err := w.sweeper.Sweep(ctx, w.olderThan)
	if err != nil {
		return fmt.Errorf("reconcile sweep: %w", err)
	}
	if res.Scanned > 0 {
		w.logger.Info("reconcile sweep finished", "job_id", job.ID, "scanned", res.Scanned, "resolved", res.Resolved, "pending", res.Pending)
	}
	return nil
}

func (w *ReconcileWorker) Timeout(*river.Job[ReconcileArgs]) time.Duration {
	return 5 * time.Minute
}

// RunSweepLoop runs the sweep on a ticker until ctx ends. Used when no job queue is
// available, for example with in-memory stores.
func RunSweepLoop(ctx context.Context, sweeper Sweeper, interval, olderThan time.Duration, logger *slog.Logger) {
	worker := NewReconcileWorker(sweeper, olderThan, logger)
	if interval <= 0 {
		worker.logger.Error("reconcile sweep disabled: interval must be positive", "interval", interval)
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := worker.Work(ctx, &river.Job[ReconcileArgs]{JobRow: &rivertype.JobRow{}}); err != nil {
				worker.logger.Error("reconcile sweep failed", "error", err)
			}
		}
	}
}
