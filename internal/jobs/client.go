package jobs

import (
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/devclassik/harmoney-backend-sub000/internal/notification"
)

// ClientConfig wires the background workers.
type ClientConfig struct {
	Sender            notification.Dispatcher
	Sweeper           Sweeper
	ReconcileInterval time.Duration
	ReconcileAfter    time.Duration
	Logger            *slog.Logger
}

// NewClient builds the River client running credit notification delivery and the
// periodic reconciliation sweep. The caller starts and stops it.
func NewClient(pool *pgxpool.Pool, cfg ClientConfig) (*river.Client[pgx.Tx], error) {
	workers := river.NewWorkers()
	river.AddWorker(workers, NewNotifyCreditWorker(cfg.Sender))
	river.AddWorker(workers, NewReconcileWorker(cfg.Sweeper, cfg.ReconcileAfter, cfg.Logger))

	return river.NewClient(riverpgxv5.New(pool), &river.Config{
		Logger: cfg.Logger,
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 2},
			QueueNotifications: {MaxWorkers: 10},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(cfg.ReconcileInterval),
				func() (river.JobArgs, *river.InsertOpts) { return ReconcileArgs{}, nil },
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
	})
}
