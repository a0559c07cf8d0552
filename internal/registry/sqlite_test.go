package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kushagrasharma/censorly/internal/jobs"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	store, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func submitTestJob(t *testing.T, store *SQLite, userID string) string {
	t.Helper()
	cfg := jobs.Config{Mode: jobs.ModeBeep, Threshold: 0.6, Languages: []string{"english"}}
	id, err := store.Submit(context.Background(), userID, "obj://input.mp4", 1024, 30, cfg, time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	return id
}

func TestSubmitAndGet(t *testing.T) {
	store := openTestSQLite(t)
	id := submitTestJob(t, store, "user-1")

	job, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, jobs.StatusPending, job.Status)
	require.Equal(t, "user-1", job.UserID)
	require.Equal(t, jobs.ModeBeep, job.Config.Mode)
}

func TestClaimNextMovesJobToRunning(t *testing.T) {
	store := openTestSQLite(t)
	id := submitTestJob(t, store, "user-1")

	job, err := store.ClaimNext(context.Background(), "worker-1")
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, id, job.ID)
	require.Equal(t, jobs.StatusRunning, job.Status)
	require.NotNil(t, job.StartedAt)
}

func TestClaimNextReturnsNilWhenEmpty(t *testing.T) {
	store := openTestSQLite(t)
	job, err := store.ClaimNext(context.Background(), "worker-1")
	require.NoError(t, err)
	require.Nil(t, job)
}

func TestClaimNextPrefersFewestRunningUser(t *testing.T) {
	store := openTestSQLite(t)
	// user-a already has one running job; user-b has none pending yet.
	idA1 := submitTestJob(t, store, "user-a")
	_, err := store.ClaimNext(context.Background(), "worker-1")
	require.NoError(t, err)

	idA2 := submitTestJob(t, store, "user-a")
	idB1 := submitTestJob(t, store, "user-b")

	job, err := store.ClaimNext(context.Background(), "worker-2")
	require.NoError(t, err)
	require.Equal(t, idB1, job.ID, "user-b has fewer running jobs and should be claimed first")

	_ = idA1
	_ = idA2
}

func TestUpdateProgressRejectsNonRunning(t *testing.T) {
	store := openTestSQLite(t)
	id := submitTestJob(t, store, "user-1")

	err := store.UpdateProgress(context.Background(), id, 50)
	require.Error(t, err, "job is still pending, not running")
}

func TestUpdateProgressIsMonotonic(t *testing.T) {
	store := openTestSQLite(t)
	id := submitTestJob(t, store, "user-1")
	_, err := store.ClaimNext(context.Background(), "worker-1")
	require.NoError(t, err)

	require.NoError(t, store.UpdateProgress(context.Background(), id, 50))
	err = store.UpdateProgress(context.Background(), id, 30)
	require.Error(t, err, "progress must not decrease")

	job, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 50, job.Progress)
}

func TestCompleteMarksTerminal(t *testing.T) {
	store := openTestSQLite(t)
	id := submitTestJob(t, store, "user-1")
	_, err := store.ClaimNext(context.Background(), "worker-1")
	require.NoError(t, err)

	require.NoError(t, store.Complete(context.Background(), id, "obj://out.mp4", 3, 4.5, 12.0))

	job, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	require.True(t, job.Terminal())
	require.Equal(t, jobs.StatusCompleted, job.Status)
	require.Equal(t, "obj://out.mp4", job.OutputObjectRef)
	require.Equal(t, 100, job.Progress)
}

func TestFailRecordsErrorKind(t *testing.T) {
	store := openTestSQLite(t)
	id := submitTestJob(t, store, "user-1")
	_, err := store.ClaimNext(context.Background(), "worker-1")
	require.NoError(t, err)

	require.NoError(t, store.Fail(context.Background(), id, jobs.ErrASRTimeout, "timed out waiting on ASR"))

	job, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	require.True(t, job.Terminal())
	require.Equal(t, jobs.ErrASRTimeout, job.ErrorKind)
}

func TestCancelPendingJob(t *testing.T) {
	store := openTestSQLite(t)
	id := submitTestJob(t, store, "user-1")

	require.NoError(t, store.Cancel(context.Background(), id))

	job, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, jobs.StatusCancelled, job.Status)
}

func TestSubmitPersistsPerJobTuning(t *testing.T) {
	store := openTestSQLite(t)
	cfg := jobs.Config{
		Mode:           jobs.ModeBeep,
		Threshold:      0.6,
		Languages:      []string{"english"},
		PaddingBeforeS: 0.25,
		PaddingAfterS:  0.5,
		EnsemblePolicy: "ml_only",
	}
	id, err := store.Submit(context.Background(), "user-1", "obj://input.mp4", 1024, 30, cfg, time.Now().Add(24*time.Hour))
	require.NoError(t, err)

	job, err := store.ClaimNext(context.Background(), "worker-1")
	require.NoError(t, err)
	require.Equal(t, id, job.ID, "ClaimNext reloads the job row; per-job tuning must survive that round trip")
	require.Equal(t, 0.25, job.Config.PaddingBeforeS)
	require.Equal(t, 0.5, job.Config.PaddingAfterS)
	require.Equal(t, "ml_only", job.Config.EnsemblePolicy)

	reloaded, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 0.25, reloaded.Config.PaddingBeforeS)
	require.Equal(t, 0.5, reloaded.Config.PaddingAfterS)
	require.Equal(t, "ml_only", reloaded.Config.EnsemblePolicy)
}

func TestListFiltersByUserAndStatus(t *testing.T) {
	store := openTestSQLite(t)
	submitTestJob(t, store, "user-1")
	submitTestJob(t, store, "user-1")
	submitTestJob(t, store, "user-2")

	list, err := store.List(context.Background(), "user-1", ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)

	list, err = store.List(context.Background(), "user-1", ListFilter{Status: jobs.StatusRunning})
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestSweepExpiredRemovesOldJobs(t *testing.T) {
	store := openTestSQLite(t)
	cfg := jobs.Config{Mode: jobs.ModeBeep, Threshold: 0.5}
	_, err := store.Submit(context.Background(), "user-1", "obj://in.mp4", 100, 5, cfg, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	n, err := store.SweepExpired(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
