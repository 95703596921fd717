package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
)

// QueueName is the River queue the reconciliation passes run on. MaxWorkers
// is 1 and inserts are unique by args, so a slow pass and the next scheduled
// tick can never run concurrently.
const QueueName = "reconcile"

// PassArgs is the (empty) argument payload of a reconciliation pass job
type PassArgs struct{}

// Kind returns the job kind for River
func (PassArgs) Kind() string { return "reconcile_pass" }

// PassWorker runs reconciliation passes as River jobs
type PassWorker struct {
	river.WorkerDefaults[PassArgs]
	reconciler *Reconciler
}

// Work executes one reconciliation pass
func (w *PassWorker) Work(ctx context.Context, job *river.Job[PassArgs]) error {
	return w.reconciler.RunPass(ctx)
}

// NewClient creates a River client that schedules a reconciliation pass at
// the given fixed interval, starting immediately
func NewClient(pool *pgxpool.Pool, reconciler *Reconciler, interval time.Duration) (*river.Client[pgx.Tx], error) {
	workers := river.NewWorkers()
	river.AddWorker(workers, &PassWorker{reconciler: reconciler})

	periodic := []*river.PeriodicJob{
		river.NewPeriodicJob(
			river.PeriodicInterval(interval),
			func() (river.JobArgs, *river.InsertOpts) {
				return PassArgs{}, &river.InsertOpts{
					Queue:      QueueName,
					UniqueOpts: river.UniqueOpts{ByArgs: true},
				}
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
	}

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			QueueName: {MaxWorkers: 1},
		},
		Workers:      workers,
		PeriodicJobs: periodic,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create river client: %w", err)
	}

	return client, nil
}
