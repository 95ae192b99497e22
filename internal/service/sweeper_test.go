package service

import (
	"strings"
	"testing"
	"time"

	"github.com/ad-tracker/engagement-exchange-go/internal/db/models"
	"github.com/ad-tracker/engagement-exchange-go/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSweep_StrikesStallingReviewerOnce(t *testing.T) {
	h := newHarness(t)
	h.member(t, 1)
	h.member(t, 2)
	task := h.pair(t, 1, 2)

	_, err := h.ex.Verification.SubmitProof(h.ctx, task.ID, 1, "p1")
	require.NoError(t, err)

	h.clock.Advance(2*time.Hour + time.Minute)
	report, err := h.ex.Sweeper.Sweep(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.AutoResolved)
	assert.Equal(t, 1, report.Struck)

	got := h.task(t, task.ID)
	assert.Equal(t, models.TaskAutoResolved, got.Status)
	assert.Equal(t, models.SideA, got.FavoredSide)
	assert.Equal(t, 1, h.user(t, 2).Strikes)
	assert.Equal(t, 0, h.user(t, 1).Strikes)

	resolved := h.rec.ByKind(notify.KindTaskAutoResolved)
	require.Len(t, resolved, 2)
	assert.ElementsMatch(t, []int64{1, 2}, []int64{resolved[0].UserID, resolved[1].UserID})
	assert.Equal(t, "a", resolved[0].FavoredSide)

	strikes := h.rec.ByKind(notify.KindStrikeIssued)
	require.Len(t, strikes, 1)
	assert.Equal(t, int64(2), strikes[0].UserID)

	h.clock.Advance(2 * time.Hour)
	report, err = h.ex.Sweeper.Sweep(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, report.AutoResolved)
	assert.Zero(t, report.Struck)
	assert.Equal(t, 1, h.user(t, 2).Strikes)
}

func TestSweep_Symmetric(t *testing.T) {
	h := newHarness(t)
	h.member(t, 1)
	h.member(t, 2)
	task := h.pair(t, 1, 2)

	_, err := h.ex.Verification.SubmitProof(h.ctx, task.ID, 2, "p2")
	require.NoError(t, err)

	h.clock.Advance(3 * time.Hour)
	_, err = h.ex.Sweeper.Sweep(h.ctx)
	require.NoError(t, err)

	got := h.task(t, task.ID)
	assert.Equal(t, models.TaskAutoResolved, got.Status)
	assert.Equal(t, models.SideB, got.FavoredSide)
	assert.Equal(t, 1, h.user(t, 1).Strikes)
	assert.Equal(t, 0, h.user(t, 2).Strikes)
}

func TestSweep_LeavesTasksAlone(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, h *harness, taskID int64)
		elapsed time.Duration
	}{
		{
			name: "before the timeout",
			prepare: func(t *testing.T, h *harness, taskID int64) {
				_, err := h.ex.Verification.SubmitProof(h.ctx, taskID, 1, "p1")
				require.NoError(t, err)
			},
			elapsed: 2 * time.Hour,
		},
		{
			name:    "no proof at all",
			prepare: func(t *testing.T, h *harness, taskID int64) {},
			elapsed: 5 * time.Hour,
		},
		{
			name: "both proofs submitted",
			prepare: func(t *testing.T, h *harness, taskID int64) {
				_, err := h.ex.Verification.SubmitProof(h.ctx, taskID, 1, "p1")
				require.NoError(t, err)
				_, err = h.ex.Verification.SubmitProof(h.ctx, taskID, 2, "p2")
				require.NoError(t, err)
			},
			elapsed: 5 * time.Hour,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.member(t, 1)
			h.member(t, 2)
			task := h.pair(t, 1, 2)
			tt.prepare(t, h, task.ID)

			h.clock.Advance(tt.elapsed)
			report, err := h.ex.Sweeper.Sweep(h.ctx)
			require.NoError(t, err)

			assert.Equal(t, 1, report.Scanned)
			assert.Zero(t, report.AutoResolved)
			assert.NotEqual(t, models.TaskAutoResolved, h.task(t, task.ID).Status)
			assert.Zero(t, h.user(t, 1).Strikes)
			assert.Zero(t, h.user(t, 2).Strikes)
		})
	}
}

func TestSweep_SkipsBadRecords(t *testing.T) {
	h := newHarness(t)
	h.member(t, 1)
	h.member(t, 2)

	// task whose reviewer does not exist
	orphan := models.NewTask(55, 77, 1, 2, h.clock.Now())
	ref := "p-orphan"
	orphan.ProofA = &ref
	orphan.Status = models.TaskProofPending
	require.NoError(t, h.repos.Tasks.Create(h.ctx, orphan))

	// task with no creation time
	broken := models.NewTask(88, 89, 1, 2, time.Time{})
	require.NoError(t, h.repos.Tasks.Create(h.ctx, broken))

	h.clock.Advance(time.Minute)
	task := h.pair(t, 1, 2)
	_, err := h.ex.Verification.SubmitProof(h.ctx, task.ID, 2, "p2")
	require.NoError(t, err)

	h.clock.Advance(3 * time.Hour)
	report, err := h.ex.Sweeper.Sweep(h.ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 2, report.AutoResolved)
	assert.Equal(t, 1, report.Struck)
	assert.Equal(t, []int64{77}, report.Unstruck)
	assert.Equal(t, 1, h.user(t, 1).Strikes)

	// The orphan is terminal now, so its lost strike is reported only once.
	report, err = h.ex.Sweeper.Sweep(h.ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Unstruck)
}

func TestSweep_PurgesExpiredProofs(t *testing.T) {
	h := newHarness(t)

	ref, err := h.proofs.Put(h.ctx, strings.NewReader("proof"), "jpg")
	require.NoError(t, err)

	h.clock.Advance(6 * 24 * time.Hour)
	report, err := h.ex.Sweeper.Sweep(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, report.ProofsPurged)
	assert.Equal(t, 1, report.ProofsKept)
	_, err = h.proofs.Stat(h.ctx, ref)
	require.NoError(t, err)

	h.clock.Advance(2 * 24 * time.Hour)
	report, err = h.ex.Sweeper.Sweep(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ProofsPurged)
	_, err = h.proofs.Stat(h.ctx, ref)
	assert.Error(t, err)
}

func TestSweepRunner_StartStop(t *testing.T) {
	h := newHarness(t)
	h.member(t, 1)
	h.member(t, 2)
	task := h.pair(t, 1, 2)
	_, err := h.ex.Verification.SubmitProof(h.ctx, task.ID, 1, "p1")
	require.NoError(t, err)
	h.clock.Advance(3 * time.Hour)

	runner := NewSweepRunner(h.ex.Sweeper, 10*time.Millisecond, zaptest.NewLogger(t))
	runner.Start(h.ctx)
	runner.Start(h.ctx)

	require.Eventually(t, func() bool {
		got, err := h.ex.Tasks.Get(h.ctx, task.ID)
		return err == nil && got.Status == models.TaskAutoResolved
	}, 2*time.Second, 10*time.Millisecond)

	runner.Stop()
	runner.Stop()

	assert.Equal(t, 1, h.user(t, 2).Strikes)
}

func TestSweep_ReachesTasksBeyondOneBatch(t *testing.T) {
	zombies := DefaultRules().SweepBatchSize + 10

	tests := []struct {
		name      string
		batchSize int
	}{
		{name: "default batch", batchSize: DefaultRules().SweepBatchSize},
		{name: "page boundary falls on the last task", batchSize: 7},
		{name: "one task per page", batchSize: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.ex.Sweeper.rules.SweepBatchSize = tt.batchSize

			// Older tasks that never close on their own: half without any
			// proof, half with both proofs and no verdicts.
			for i := 0; i < zombies; i++ {
				a, b := int64(1000+2*i), int64(1001+2*i)
				task := models.NewTask(a, b, 1, 2, h.clock.Now())
				if i%2 == 1 {
					pa, pb := "pa", "pb"
					task.ProofA, task.ProofB = &pa, &pb
					task.Status = models.TaskAwaitingVerification
				}
				require.NoError(t, h.repos.Tasks.Create(h.ctx, task))
			}

			h.member(t, 1)
			h.member(t, 2)
			h.clock.Advance(time.Minute)
			task := h.pair(t, 1, 2)
			_, err := h.ex.Verification.SubmitProof(h.ctx, task.ID, 1, "p1")
			require.NoError(t, err)

			h.clock.Advance(3 * time.Hour)
			report, err := h.ex.Sweeper.Sweep(h.ctx)
			require.NoError(t, err)

			assert.Equal(t, zombies+1, report.Scanned)
			assert.Equal(t, 1, report.AutoResolved)
			assert.Equal(t, 1, report.Struck)
			assert.Equal(t, models.TaskAutoResolved, h.task(t, task.ID).Status)
			assert.Equal(t, 1, h.user(t, 2).Strikes)
		})
	}
}
