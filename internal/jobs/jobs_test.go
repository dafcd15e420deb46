package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devclassik/harmoney-backend-sub000/internal/notification"
	"github.com/devclassik/harmoney-backend-sub000/internal/settlement"
)

type captureSender struct {
	got []notification.CreditNotice
	err error
}

func (c *captureSender) NotifyCredit(_ context.Context, n notification.CreditNotice) error {
	c.got = append(c.got, n)
	return c.err
}

type captureInserter struct {
	args []river.JobArgs
}

func (c *captureInserter) Insert(_ context.Context, args river.JobArgs, _ *river.InsertOpts) (*rivertype.JobInsertResult, error) {
	c.args = append(c.args, args)
	return &rivertype.JobInsertResult{Job: &rivertype.JobRow{ID: int64(len(c.args))}}, nil
}

type sweepFunc func(ctx context.Context, olderThan time.Duration) (settlement.SweepResult, error)

func (f sweepFunc) Sweep(ctx context.Context, olderThan time.Duration) (settlement.SweepResult, error) {
	return f(ctx, olderThan)
}

func notice() notification.CreditNotice {
	return notification.CreditNotice{Email: "ada@example.com", Amount: decimal.NewFromInt(250), Currency: "NGN", Reference: "CRD-1"}
}

func TestQueueDispatcherEnqueuesNotice(t *testing.T) {
	fallback := &captureSender{}
	inserter := &captureInserter{}
	d := NewQueueDispatcher(fallback)
	d.Bind(inserter)
	require.NoError(t, d.NotifyCredit(context.Background(), notice()))

	assert.Empty(t, fallback.got)
	require.Len(t, inserter.args, 1)
	args, ok := inserter.args[0].(NotifyCreditArgs)
	require.True(t, ok)
	assert.Equal(t, "CRD-1", args.Notice.Reference)
	assert.Equal(t, QueueNotifications, args.InsertOpts().Queue)
}

func TestQueueDispatcherFallsBackBeforeBind(t *testing.T) {
	fallback := &captureSender{}
	require.NoError(t, NewQueueDispatcher(fallback).NotifyCredit(context.Background(), notice()))
	assert.Len(t, fallback.got, 1)

	assert.Error(t, NewQueueDispatcher(nil).NotifyCredit(context.Background(), notice()))
}

func TestNotifyCreditWorkerDelivers(t *testing.T) {
	sender := &captureSender{}
	worker := NewNotifyCreditWorker(sender)

	err := worker.Work(context.Background(), &river.Job[NotifyCreditArgs]{JobRow: &rivertype.JobRow{ID: 1}, Args: NotifyCreditArgs{Notice: notice()}})
	require.NoError(t, err)
	require.Len(t, sender.got, 1)

	sender.err = errors.New("smtp down")
	err = worker.Work(context.Background(), &river.Job[NotifyCreditArgs]{JobRow: &rivertype.JobRow{ID: 2}, Args: NotifyCreditArgs{Notice: notice()}})
	require.Error(t, err)
}

func TestReconcileWorkerUsesConfiguredAge(t *testing.T) {
	var seen time.Duration
	worker := NewReconcileWorker(sweepFunc(func(_ context.Context, olderThan time.Duration) (settlement.SweepResult, error) {
		seen = olderThan
		return settlement.SweepResult{Scanned: 2, Resolved: 1, Pending: 1}, nil
	}), 15*time.Minute, nil)

	require.NoError(t, worker.Work(context.Background(), &river.Job[ReconcileArgs]{JobRow: &rivertype.JobRow{ID: 7}}))
	assert.Equal(t, 15*time.Minute, seen)
}

func TestRunSweepLoopStopsWithContext(t *testing.T) {
	calls := make(chan struct{}, 10)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunSweepLoop(ctx, sweepFunc(func(context.Context, time.Duration) (settlement.SweepResult, error) {
			calls <- struct{}{}
			return settlement.SweepResult{}, nil
		}), 10*time.Millisecond, time.Minute, nil)
		close(done)
	}()

	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("sweep never ran")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestRunSweepLoopReturnsOnNonPositiveInterval(t *testing.T) {
	done := make(chan struct{})
	go func() {
		RunSweepLoop(context.Background(), sweepFunc(func(context.Context, time.Duration) (settlement.SweepResult, error) {
			t.Error("sweep should not run")
			return settlement.SweepResult{}, nil
		}), 0, time.Minute, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not return")
	}
}
