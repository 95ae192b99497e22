//go:build integration

package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ad-tracker/engagement-exchange-go/internal/db"
	"github.com/ad-tracker/engagement-exchange-go/internal/db/models"
	"github.com/ad-tracker/engagement-exchange-go/internal/db/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUsers(t *testing.T, repos *Repositories, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, repos.Users.Upsert(context.Background(), models.NewUser(id, "user")))
	}
}

func seedVideo(t *testing.T, repos *Repositories, owner int64) *models.Video {
	t.Helper()
	v := models.NewVideo(owner, "clip", "https://example.com/clip", "thumb.jpg", 60)
	require.NoError(t, repos.Videos.Create(context.Background(), v, 5))
	return v
}

func TestUserRepository(t *testing.T) {
	td := testutil.SetupTestDatabase(t)
	defer td.Cleanup(t)

	repos := NewRepositories(td.Pool)
	ctx := context.Background()

	t.Run("upsert keeps strikes and refreshes name", func(t *testing.T) {
		td.TruncateTables(t)
		seedUsers(t, repos, 1)

		_, _, err := repos.Users.AddStrike(ctx, 1, 3)
		require.NoError(t, err)
		require.NoError(t, repos.Users.Upsert(ctx, models.NewUser(1, "renamed")))

		u, err := repos.Users.GetByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "renamed", u.DisplayName)
		assert.Equal(t, 1, u.Strikes)
	})

	t.Run("strike threshold bans once", func(t *testing.T) {
		td.TruncateTables(t)
		seedUsers(t, repos, 1)

		var newly []bool
		for i := 0; i < 4; i++ {
			_, banned, err := repos.Users.AddStrike(ctx, 1, 3)
			require.NoError(t, err)
			newly = append(newly, banned)
		}
		assert.Equal(t, []bool{false, false, true, false}, newly)

		ids, err := repos.Users.ListBanned(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, ids)
	})

	t.Run("concurrent strikes are all counted", func(t *testing.T) {
		td.TruncateTables(t)
		seedUsers(t, repos, 1)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _, err := repos.Users.AddStrike(ctx, 1, 3)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		u, err := repos.Users.GetByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 20, u.Strikes)
		assert.True(t, u.Banned)
	})

	t.Run("remove strike floors at zero", func(t *testing.T) {
		td.TruncateTables(t)
		seedUsers(t, repos, 1)

		u, err := repos.Users.RemoveStrike(ctx, 1)
		require.NoError(t, err)
		assert.Zero(t, u.Strikes)
	})

	t.Run("unknown user", func(t *testing.T) {
		td.TruncateTables(t)

		_, err := repos.Users.SetBanned(ctx, 42, true)
		assert.True(t, db.IsNotFound(err))
		_, _, err = repos.Users.AddStrike(ctx, 42, 3)
		assert.True(t, db.IsNotFound(err))
	})

	t.Run("stats", func(t *testing.T) {
		td.TruncateTables(t)
		seedUsers(t, repos, 1, 2, 3)
		_, _, err := repos.Users.AddStrike(ctx, 1, 3)
		require.NoError(t, err)
		_, err = repos.Users.SetBanned(ctx, 2, true)
		require.NoError(t, err)

		stats, err := repos.Users.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, &UserStats{Users: 3, StrikesGiven: 1, Banned: 1}, stats)
	})
}

func TestVideoRepository_ActiveLimit(t *testing.T) {
	td := testutil.SetupTestDatabase(t)
	defer td.Cleanup(t)

	repos := NewRepositories(td.Pool)
	ctx := context.Background()
	td.TruncateTables(t)
	seedUsers(t, repos, 1)

	first := seedVideo(t, repos, 1)
	seedVideo(t, repos, 1)

	err := repos.Videos.Create(ctx, models.NewVideo(1, "third", "", "", 60), 2)
	assert.True(t, db.IsLimitReached(err))

	require.NoError(t, repos.Videos.Deactivate(ctx, first.ID))
	require.NoError(t, repos.Videos.Create(ctx, models.NewVideo(1, "third", "", "", 60), 2))

	videos, err := repos.Videos.ListActiveByOwner(ctx, 1)
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.NotEqual(t, first.ID, videos[0].ID)

	err = repos.Videos.Create(ctx, models.NewVideo(99, "orphan", "", "", 60), 5)
	assert.Error(t, err)
}

func TestTaskRepository(t *testing.T) {
	td := testutil.SetupTestDatabase(t)
	defer td.Cleanup(t)

	repos := NewRepositories(td.Pool)
	ctx := context.Background()

	newTask := func(t *testing.T) *models.Task {
		t.Helper()
		td.TruncateTables(t)
		seedUsers(t, repos, 1, 2)
		va := seedVideo(t, repos, 2)
		vb := seedVideo(t, repos, 1)
		task := models.NewTask(1, 2, va.ID, vb.ID, time.Now().UTC())
		require.NoError(t, repos.Tasks.Create(ctx, task))
		require.NotZero(t, task.ID)
		return task
	}

	t.Run("full lifecycle", func(t *testing.T) {
		task := newTask(t)
		now := time.Now().UTC()

		require.NoError(t, task.SubmitProof(1, "proof-a", now))
		require.NoError(t, task.SubmitProof(2, "proof-b", now))
		require.NoError(t, repos.Tasks.Update(ctx, task))

		open, err := repos.Tasks.GetOpenByUser(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, task.ID, open.ID)
		assert.Equal(t, models.TaskAwaitingVerification, open.Status)

		_, err = task.Verify(1, models.VerdictApproved, now)
		require.NoError(t, err)
		_, err = task.Verify(2, models.VerdictApproved, now)
		require.NoError(t, err)
		require.NoError(t, repos.Tasks.Update(ctx, task))

		got, err := repos.Tasks.GetByID(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TaskResolved, got.Status)
		assert.Equal(t, models.VerdictApproved, got.Resolution)
		require.NotNil(t, got.ProofA)
		assert.Equal(t, "proof-a", *got.ProofA)
		assert.NotNil(t, got.ResolvedAt)

		_, err = repos.Tasks.GetOpenByUser(ctx, 1)
		assert.True(t, db.IsNotFound(err))

		count, err := repos.Tasks.CountByUser(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("terminal rows are not overwritten", func(t *testing.T) {
		task := newTask(t)
		now := time.Now().UTC()

		stale := task.Clone()
		require.NoError(t, task.SubmitProof(1, "proof-a", now))
		require.NoError(t, task.AutoResolve(models.SideA, now))
		require.NoError(t, repos.Tasks.Update(ctx, task))

		require.NoError(t, stale.SubmitProof(2, "late", now))
		err := repos.Tasks.Update(ctx, stale)
		assert.ErrorIs(t, err, models.ErrTaskTerminal)

		n, err := repos.Tasks.CountOpen(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("disputed flag survives resolution", func(t *testing.T) {
		task := newTask(t)

		require.NoError(t, repos.Tasks.MarkDisputed(ctx, task.ID))
		got, err := repos.Tasks.GetByID(ctx, task.ID)
		require.NoError(t, err)
		assert.True(t, got.Disputed)

		err = repos.Tasks.MarkDisputed(ctx, task.ID+100)
		assert.True(t, db.IsNotFound(err))
	})

	t.Run("list open oldest first", func(t *testing.T) {
		first := newTask(t)
		seedUsers(t, repos, 3, 4)
		vc := seedVideo(t, repos, 4)
		vd := seedVideo(t, repos, 3)
		second := models.NewTask(3, 4, vc.ID, vd.ID, first.CreatedAt.Add(time.Minute))
		require.NoError(t, repos.Tasks.Create(ctx, second))

		open, err := repos.Tasks.ListOpen(ctx, 10)
		require.NoError(t, err)
		require.Len(t, open, 2)
		assert.Equal(t, first.ID, open[0].ID)
		assert.Equal(t, second.ID, open[1].ID)

		page, err := repos.Tasks.ListOpenAfter(ctx, open[0].Cursor(), 10)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, second.ID, page[0].ID)

		page, err = repos.Tasks.ListOpenAfter(ctx, open[1].Cursor(), 10)
		require.NoError(t, err)
		assert.Empty(t, page)
	})
}

func TestComplaintRepository(t *testing.T) {
	td := testutil.SetupTestDatabase(t)
	defer td.Cleanup(t)

	repos := NewRepositories(td.Pool)
	ctx := context.Background()
	td.TruncateTables(t)

	seedUsers(t, repos, 1, 2)
	va := seedVideo(t, repos, 2)
	vb := seedVideo(t, repos, 1)
	task := models.NewTask(1, 2, va.ID, vb.ID, time.Now().UTC())
	require.NoError(t, repos.Tasks.Create(ctx, task))

	proof := "proof-b"
	c := models.NewComplaint(1, 2, task.ID, "screenshot is fake", &proof)
	require.NoError(t, repos.Complaints.Create(ctx, c))
	require.NotZero(t, c.ID)

	n, err := repos.Complaints.CountOpen(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	closed, err := repos.Complaints.Close(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintClosed, closed.Status)
	require.NotNil(t, closed.ProofSnapshot)
	assert.Equal(t, proof, *closed.ProofSnapshot)

	open, err := repos.Complaints.List(ctx, models.ComplaintOpen, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, open)

	all, err := repos.Complaints.List(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = repos.Complaints.Close(ctx, c.ID+1)
	assert.True(t, db.IsNotFound(err))
}
