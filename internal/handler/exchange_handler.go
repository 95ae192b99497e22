package handler

import (
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/ad-tracker/engagement-exchange-go/internal/middleware"
	"github.com/ad-tracker/engagement-exchange-go/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxUploadBytes caps proof and thumbnail images.
const maxUploadBytes = 10 << 20

type registerRequest struct {
	DisplayName string `json:"display_name" binding:"max=64"`
}

type videoRequest struct {
	Title        string `json:"title" form:"title" binding:"required,max=200"`
	Link         string `json:"link" form:"link" binding:"omitempty,url"`
	ThumbnailRef string `json:"thumbnail_ref" form:"thumbnail_ref"`
	Duration     int    `json:"duration" form:"duration" binding:"required"`
}

type proofRequest struct {
	ProofRef string `json:"proof_ref" form:"proof_ref"`
}

type reviewRequest struct {
	Action string `json:"action" binding:"required,oneof=approve reject report"`
	Reason string `json:"reason" binding:"max=1000"`
}

// ExchangeHandler serves the user intents. Every route expects the caller ID
// set by middleware.UserIdentity.
type ExchangeHandler struct {
	ex     *service.Exchange
	logger *zap.Logger
}

// NewExchangeHandler creates a new ExchangeHandler instance.
func NewExchangeHandler(ex *service.Exchange, logger *zap.Logger) *ExchangeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExchangeHandler{ex: ex, logger: logger}
}

// Register creates the caller's account or refreshes the display name.
func (h *ExchangeHandler) Register(c *gin.Context) {
	var req registerRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, h.logger, err)
			return
		}
	}

	user, err := h.ex.Accounts.Register(c.Request.Context(), middleware.UserID(c), req.DisplayName)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Ready enters the caller into the pairing pool.
func (h *ExchangeHandler) Ready(c *gin.Context) {
	res, err := h.ex.Pairing.Ready(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	status := http.StatusAccepted
	if res.Outcome == service.OutcomePaired {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

// UploadVideo lists a video. Multipart requests may carry a thumbnail file.
func (h *ExchangeHandler) UploadVideo(c *gin.Context) {
	var req videoRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, h.logger, err)
		return
	}

	in := service.VideoInput{
		Title:        strings.TrimSpace(req.Title),
		Link:         req.Link,
		ThumbnailRef: req.ThumbnailRef,
		Duration:     req.Duration,
	}
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	file, err := c.FormFile("thumbnail")
	if err != nil {
		video, err := h.ex.Catalog.Upload(ctx, userID, in)
		if err != nil {
			handleError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusCreated, video)
		return
	}

	f, ext, ok := h.openUpload(c, file)
	if !ok {
		return
	}
	defer f.Close()

	video, err := h.ex.Catalog.UploadWithThumbnail(ctx, userID, in, f, ext)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, video)
}

// ListVideos returns the caller's active videos.
func (h *ExchangeHandler) ListVideos(c *gin.Context) {
	videos, err := h.ex.Catalog.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"videos": videos, "count": len(videos)})
}

// RemoveVideo deactivates one of the caller's videos.
func (h *ExchangeHandler) RemoveVideo(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.ex.Catalog.Remove(c.Request.Context(), middleware.UserID(c), id); err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CurrentTask returns the caller's open task.
func (h *ExchangeHandler) CurrentTask(c *gin.Context) {
	view, err := h.ex.Accounts.CurrentTask(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// SubmitProof accepts a proof image upload or a proof reference.
func (h *ExchangeHandler) SubmitProof(c *gin.Context) {
	taskID, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	if file, err := c.FormFile("proof"); err == nil {
		f, ext, ok := h.openUpload(c, file)
		if !ok {
			return
		}
		defer f.Close()

		task, err := h.ex.Verification.UploadProof(ctx, taskID, userID, f, ext)
		if err != nil {
			handleError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, task)
		return
	}

	var req proofRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, h.logger, err)
		return
	}
	task, err := h.ex.Verification.SubmitProof(ctx, taskID, userID, strings.TrimSpace(req.ProofRef))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Review applies approve, reject or report to the partner's proof.
func (h *ExchangeHandler) Review(c *gin.Context) {
	taskID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, h.logger, err)
		return
	}

	res, err := h.ex.Verification.Review(c.Request.Context(), taskID, middleware.UserID(c), service.ReviewAction(req.Action), req.Reason)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	if res.Complaint != nil {
		c.JSON(http.StatusCreated, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Pause takes the caller out of the pool until Resume.
func (h *ExchangeHandler) Pause(c *gin.Context) {
	user, err := h.ex.Accounts.Pause(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Resume clears the paused flag.
func (h *ExchangeHandler) Resume(c *gin.Context) {
	user, err := h.ex.Accounts.Resume(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Status returns the caller's standing.
func (h *ExchangeHandler) Status(c *gin.Context) {
	status, err := h.ex.Accounts.Status(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *ExchangeHandler) openUpload(c *gin.Context, file *multipart.FileHeader) (multipart.File, string, bool) {
	if file.Size > maxUploadBytes {
		writeError(c, http.StatusRequestEntityTooLarge, "upload exceeds 10 MiB")
		return nil, "", false
	}
	f, err := file.Open()
	if err != nil {
		bindError(c, h.logger, err)
		return nil, "", false
	}
	return f, filepath.Ext(file.Filename), true
}
