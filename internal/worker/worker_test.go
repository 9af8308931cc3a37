package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	got time.Duration
	n   int64
	err error
}

func (f *fakePurger) PurgeExpired(_ context.Context, olderThan time.Duration) (int64, error) {
	f.got = olderThan
	return f.n, f.err
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)) }

func TestNew_SQLiteIsNoop(t *testing.T) {
	q, err := New(context.Background(), nil, "sqlite", Options{Retention: time.Hour, Purger: &fakePurger{}}, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &noopQueue{}, q)
	assert.NoError(t, q.Start(context.Background()))
	assert.NoError(t, q.Stop(context.Background()))
}

func TestPurgeWorker_PassesRetention(t *testing.T) {
	p := &fakePurger{n: 3}
	w := &purgeWorker{purger: p, log: quietLogger()}

	err := w.Work(context.Background(), &river.Job[PurgeTrashArgs]{Args: PurgeTrashArgs{OlderThan: 48 * time.Hour}})
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, p.got)
}

func TestPurgeWorker_PropagatesError(t *testing.T) {
	w := &purgeWorker{purger: &fakePurger{err: errors.New("db gone")}, log: quietLogger()}

	err := w.Work(context.Background(), &river.Job[PurgeTrashArgs]{Args: PurgeTrashArgs{OlderThan: time.Hour}})
	assert.ErrorContains(t, err, "db gone")
}

func TestInterval_DefaultsToHour(t *testing.T) {
	assert.Equal(t, time.Hour, interval(Options{}))
	assert.Equal(t, 10*time.Minute, interval(Options{PurgeInterval: 10 * time.Minute}))
	assert.Equal(t, "purge_trash", PurgeTrashArgs{}.Kind())
}

func TestPeriodicJobs_OnlyWithRetention(t *testing.T) {
	assert.Empty(t, periodicJobs(Options{}))
	assert.Empty(t, periodicJobs(Options{Retention: -time.Hour}))
	assert.Empty(t, periodicJobs(Options{Retention: time.Hour}))
	assert.Len(t, periodicJobs(Options{Retention: 30 * 24 * time.Hour, Purger: &fakePurger{}}), 1)
}

func TestPurgeWorker_CancelsWithoutPurger(t *testing.T) {
	w := &purgeWorker{log: quietLogger()}

	err := w.Work(context.Background(), &river.Job[PurgeTrashArgs]{Args: PurgeTrashArgs{OlderThan: time.Hour}})
	assert.ErrorContains(t, err, "no purger configured")
}

// With retention disabled the client must still carry the purge worker, so
// Start gets as far as the database connection instead of refusing an empty
// Workers bundle. Nothing listens on port 1.
func TestNew_PostgresStartsWithRetentionDisabled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, "postgres://marknote@127.0.0.1:1/marknote?connect_timeout=1")
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	for name, opts := range map[string]Options{
		"with purger":    {Concurrency: 10, Retention: 0, Purger: &fakePurger{}},
		"without purger": {Concurrency: 10, Retention: 0},
	} {
		t.Run(name, func(t *testing.T) {
			q, err := New(ctx, pool, "postgres", opts, quietLogger())
			require.NoError(t, err)
			assert.IsType(t, &Client{}, q)

			err = q.Start(ctx)
			require.Error(t, err)
			assert.NotContains(t, err.Error(), "Worker must be added")
			assert.Contains(t, err.Error(), "initial connection")
		})
	}
}
