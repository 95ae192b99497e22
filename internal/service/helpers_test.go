package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ad-tracker/engagement-exchange-go/internal/blob"
	"github.com/ad-tracker/engagement-exchange-go/internal/db/memory"
	"github.com/ad-tracker/engagement-exchange-go/internal/db/models"
	"github.com/ad-tracker/engagement-exchange-go/internal/db/repository"
	"github.com/ad-tracker/engagement-exchange-go/internal/notify"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	ctx    context.Context
	clock  *fakeClock
	repos  *repository.Repositories
	rec    *notify.Recorder
	proofs *blob.FSStore
	ex     *Exchange
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	clock := newFakeClock()
	rec := notify.NewRecorder()
	repos := memory.NewStore().Repositories()
	proofs := blob.NewMemStore(clock.Now)

	ex := New(repos, Deps{
		Notifier: rec,
		Proofs:   proofs,
		Logger:   zaptest.NewLogger(t),
		Rules:    DefaultRules(),
		Now:      clock.Now,
	})

	return &harness{
		ctx:    context.Background(),
		clock:  clock,
		repos:  repos,
		rec:    rec,
		proofs: proofs,
		ex:     ex,
	}
}

// register creates a user without videos.
func (h *harness) register(t *testing.T, id int64) {
	t.Helper()
	_, err := h.ex.Accounts.Register(h.ctx, id, "user")
	require.NoError(t, err)
}

// member creates a user with one 60 second video and returns the video.
func (h *harness) member(t *testing.T, id int64) *models.Video {
	t.Helper()
	h.register(t, id)
	v, err := h.ex.Catalog.Upload(h.ctx, id, VideoInput{Title: "clip", ThumbnailRef: "thumb", Duration: 60})
	require.NoError(t, err)
	return v
}

// pair makes a wait and b join, returning the new task.
func (h *harness) pair(t *testing.T, a, b int64) *models.Task {
	t.Helper()
	res, err := h.ex.Pairing.Ready(h.ctx, a)
	require.NoError(t, err)
	require.Equal(t, OutcomeWaiting, res.Outcome)

	res, err = h.ex.Pairing.Ready(h.ctx, b)
	require.NoError(t, err)
	require.Equal(t, OutcomePaired, res.Outcome)
	return res.Task
}

func (h *harness) task(t *testing.T, id int64) *models.Task {
	t.Helper()
	task, err := h.ex.Tasks.Get(h.ctx, id)
	require.NoError(t, err)
	return task
}

func (h *harness) user(t *testing.T, id int64) *models.User {
	t.Helper()
	u, err := h.repos.Users.GetByID(h.ctx, id)
	require.NoError(t, err)
	return u
}
