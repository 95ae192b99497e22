package service

import (
	"testing"

	"github.com/ad-tracker/engagement-exchange-go/internal/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminStats(t *testing.T) {
	h := newHarness(t)
	for id := int64(1); id <= 5; id++ {
		h.member(t, id)
	}
	task := h.pair(t, 1, 2)
	_, err := h.ex.Pairing.Ready(h.ctx, 3)
	require.NoError(t, err)

	_, err = h.ex.Verification.FileComplaint(h.ctx, 1, task.ID, "fake proof")
	require.NoError(t, err)
	_, err = h.ex.Ledger.Strike(h.ctx, 4, SourceAdmin)
	require.NoError(t, err)
	_, err = h.ex.Ledger.Strike(h.ctx, 4, SourceAdmin)
	require.NoError(t, err)
	_, err = h.ex.Ledger.Ban(h.ctx, 5)
	require.NoError(t, err)

	stats, err := h.ex.Admin.Stats(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, &Stats{
		UserCount:         5,
		ActiveTasks:       1,
		PendingComplaints: 1,
		StrikesGiven:      2,
		BannedCount:       1,
		Waiting:           1,
	}, stats)
}

func TestAdminComplaints(t *testing.T) {
	h := newHarness(t)
	h.member(t, 1)
	h.member(t, 2)
	task := h.pair(t, 1, 2)

	c1, err := h.ex.Verification.FileComplaint(h.ctx, 1, task.ID, "first")
	require.NoError(t, err)
	_, err = h.ex.Verification.FileComplaint(h.ctx, 2, task.ID, "second")
	require.NoError(t, err)

	closed, err := h.ex.Admin.CloseComplaint(h.ctx, c1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintClosed, closed.Status)
	assert.NotNil(t, closed.ClosedAt)

	open, err := h.ex.Admin.ListComplaints(h.ctx, models.ComplaintOpen, 0, 0)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "second", open[0].Reason)

	all, err := h.ex.Admin.ListComplaints(h.ctx, "", 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = h.ex.Admin.CloseComplaint(h.ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}
