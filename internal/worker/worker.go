// Package worker bootstraps the River job queue and the periodic trash purge.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
)

// Purger removes trashed files older than a retention window.
// *note.Service satisfies it.
type Purger interface {
	PurgeExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}

// PurgeTrashArgs asks for every file trashed longer than OlderThan ago to be
// removed.
type PurgeTrashArgs struct {
	OlderThan time.Duration `json:"older_than"`
}

// Kind returns the unique job type identifier for purge jobs.
func (PurgeTrashArgs) Kind() string { return "purge_trash" }

// InsertOpts makes concurrent schedules collapse into one pending job.
func (PurgeTrashArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{UniqueOpts: river.UniqueOpts{ByArgs: true, ByPeriod: time.Hour}}
}

type purgeWorker struct {
	river.WorkerDefaults[PurgeTrashArgs]
	purger Purger
	log    *slog.Logger
}

func (w *purgeWorker) Work(ctx context.Context, job *river.Job[PurgeTrashArgs]) error {
	if w.purger == nil {
		return river.JobCancel(errors.New("purge trash: no purger configured"))
	}
	n, err := w.purger.PurgeExpired(ctx, job.Args.OlderThan)
	if err != nil {
		return fmt.Errorf("purge trash: %w", err)
	}
	w.log.DebugContext(ctx, "purge_trash job executed", "purged", n)
	return nil
}

// Timeout bounds a single purge run.
func (w *purgeWorker) Timeout(*river.Job[PurgeTrashArgs]) time.Duration { return 5 * time.Minute }

// Queue is the interface exposed by both the real River client and noopQueue.
type Queue interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Options configures the queue.
type Options struct {
	Concurrency int
	// Retention enables the periodic purge when positive.
	Retention     time.Duration
	PurgeInterval time.Duration // defaults to one hour
	Purger        Purger
}

// Client wraps river.Client and exposes a Start/Stop lifecycle.
type Client struct {
	client *river.Client[pgx.Tx]
	log    *slog.Logger
}

// Start begins processing queued jobs.
func (c *Client) Start(ctx context.Context) error { return c.client.Start(ctx) }

// Stop gracefully shuts down the worker client.
func (c *Client) Stop(ctx context.Context) error { return c.client.Stop(ctx) }

// noopQueue is used when River is unavailable (e.g. DB_DRIVER=sqlite).
type noopQueue struct{ log *slog.Logger }

func (n *noopQueue) Start(_ context.Context) error {
	n.log.Info("worker queue disabled (River requires postgres); use `marknote purge-trash` instead")
	return nil
}
func (n *noopQueue) Stop(_ context.Context) error { return nil }

// New creates a queue implementation appropriate for the given driver.
//   - "postgres": returns a River client backed by pool. The purge_trash
//     worker is always registered; it is scheduled only when
//     opts.Retention > 0.
//   - anything else: returns a no-op queue that logs a startup notice.
//
// pool may be nil when driver != "postgres".
func New(_ context.Context, pool *pgxpool.Pool, driver string, opts Options, log *slog.Logger) (Queue, error) {
	if driver != "postgres" {
		return &noopQueue{log: log}, nil
	}
	// River refuses to start with an empty Workers bundle.
	workers := river.NewWorkers()
	river.AddWorker(workers, &purgeWorker{purger: opts.Purger, log: log})

	periodic := periodicJobs(opts)
	if len(periodic) > 0 {
		log.Info("trash purge scheduled", "retention", opts.Retention, "interval", interval(opts))
	} else {
		log.Info("trash purge disabled", "retention", opts.Retention)
	}

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: max(opts.Concurrency, 1)},
		},
		Workers:      workers,
		PeriodicJobs: periodic,
		Logger:       log,
	})
	if err != nil {
		return nil, fmt.Errorf("create river client: %w", err)
	}
	return &Client{client: client, log: log}, nil
}

func periodicJobs(opts Options) []*river.PeriodicJob {
	if opts.Retention <= 0 || opts.Purger == nil {
		return nil
	}
	return []*river.PeriodicJob{purgeSchedule(opts)}
}

func interval(opts Options) time.Duration {
	if opts.PurgeInterval > 0 {
		return opts.PurgeInterval
	}
	return time.Hour
}

func purgeSchedule(opts Options) *river.PeriodicJob {
	return river.NewPeriodicJob(
		river.PeriodicInterval(interval(opts)),
		func() (river.JobArgs, *river.InsertOpts) {
			return PurgeTrashArgs{OlderThan: opts.Retention}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)
}

// MigrateRiver runs River's built-in schema migrations against the given pool.
// Only call this when DB_DRIVER=postgres.
func MigrateRiver(ctx context.Context, db *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(db), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("run river migrations: %w", err)
	}
	return nil
}
