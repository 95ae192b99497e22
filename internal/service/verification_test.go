package service

import (
	"bytes"
	"testing"

	"github.com/ad-tracker/engagement-exchange-go/internal/db/models"
	"github.com/ad-tracker/engagement-exchange-go/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyProof_NotifiesReviewee(t *testing.T) {
	h := newHarness(t)
	h.member(t, 1)
	h.member(t, 2)
	task := h.pair(t, 1, 2)

	_, err := h.ex.Verification.SubmitProof(h.ctx, task.ID, 1, "p1")
	require.NoError(t, err)
	_, err = h.ex.Verification.VerifyProof(h.ctx, task.ID, 2, models.VerdictRejected)
	require.NoError(t, err)

	reviewed := h.rec.ByKind(notify.KindProofReviewed)
	require.Len(t, reviewed, 1)
	assert.Equal(t, int64(1), reviewed[0].UserID)
	assert.Equal(t, "rejected", reviewed[0].Decision)
	assert.Equal(t, task.ID, reviewed[0].TaskID)
}

func TestFileComplaint(t *testing.T) {
	h := newHarness(t)
	h.member(t, 1)
	h.member(t, 2)
	h.member(t, 3)
	task := h.pair(t, 1, 2)

	_, err := h.ex.Verification.SubmitProof(h.ctx, task.ID, 2, "p2")
	require.NoError(t, err)

	complaint, err := h.ex.Verification.FileComplaint(h.ctx, 1, task.ID, "  screenshot is fake ")
	require.NoError(t, err)
	assert.Equal(t, int64(1), complaint.ReporterID)
	assert.Equal(t, int64(2), complaint.AccusedID)
	assert.Equal(t, "screenshot is fake", complaint.Reason)
	require.NotNil(t, complaint.ProofSnapshot)
	assert.Equal(t, "p2", *complaint.ProofSnapshot)
	assert.Equal(t, models.ComplaintOpen, complaint.Status)

	stored := h.task(t, task.ID)
	assert.True(t, stored.Disputed)
	assert.Equal(t, models.TaskProofPending, stored.Status)
	assert.Nil(t, stored.ProofA)
	assert.Equal(t, models.VerdictNone, stored.VerifyB)

	// disputes never block the state machine
	_, err = h.ex.Verification.VerifyProof(h.ctx, task.ID, 1, models.VerdictApproved)
	require.NoError(t, err)

	t.Run("outsider", func(t *testing.T) {
		_, err := h.ex.Verification.FileComplaint(h.ctx, 3, task.ID, "nope")
		assert.ErrorIs(t, err, ErrNotAuthorized)
	})

	t.Run("empty reason", func(t *testing.T) {
		_, err := h.ex.Verification.FileComplaint(h.ctx, 1, task.ID, "   ")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("before any proof", func(t *testing.T) {
		c, err := h.ex.Verification.FileComplaint(h.ctx, 2, task.ID, "never sent proof")
		require.NoError(t, err)
		assert.Nil(t, c.ProofSnapshot)
		assert.Equal(t, int64(1), c.AccusedID)
	})

	t.Run("unknown task", func(t *testing.T) {
		_, err := h.ex.Verification.FileComplaint(h.ctx, 1, 999, "x")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestReview(t *testing.T) {
	h := newHarness(t)
	h.member(t, 1)
	h.member(t, 2)
	task := h.pair(t, 1, 2)

	_, err := h.ex.Verification.SubmitProof(h.ctx, task.ID, 1, "p1")
	require.NoError(t, err)
	_, err = h.ex.Verification.SubmitProof(h.ctx, task.ID, 2, "p2")
	require.NoError(t, err)

	res, err := h.ex.Verification.Review(h.ctx, task.ID, 2, ActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, models.VerdictApproved, res.Task.VerifyA)
	assert.Nil(t, res.Complaint)

	res, err = h.ex.Verification.Review(h.ctx, task.ID, 1, ActionReport, "did not watch")
	require.NoError(t, err)
	require.NotNil(t, res.Complaint)
	assert.Equal(t, int64(2), res.Complaint.AccusedID)

	res, err = h.ex.Verification.Review(h.ctx, task.ID, 1, ActionReject, "")
	require.NoError(t, err)
	assert.Equal(t, models.TaskResolved, res.Task.Status)
	assert.Equal(t, models.VerdictRejected, res.Task.Resolution)

	_, err = h.ex.Verification.Review(h.ctx, task.ID, 1, "shrug", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUploadProof(t *testing.T) {
	h := newHarness(t)
	h.member(t, 1)
	h.member(t, 2)
	task := h.pair(t, 1, 2)

	got, err := h.ex.Verification.UploadProof(h.ctx, task.ID, 1, bytes.NewReader([]byte("img")), "png")
	require.NoError(t, err)
	require.NotNil(t, got.ProofA)

	data, err := h.proofs.Get(h.ctx, *got.ProofA)
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), data)

	// a refused upload does not leave an orphaned blob
	_, err = h.ex.Verification.UploadProof(h.ctx, task.ID, 1, bytes.NewReader([]byte("again")), "png")
	assert.ErrorIs(t, err, ErrAlreadySubmitted)

	infos, err := h.proofs.List(h.ctx)
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}
