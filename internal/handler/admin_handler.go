package handler

import (
	"net/http"
	"strconv"

	"github.com/ad-tracker/engagement-exchange-go/internal/db/models"
	"github.com/ad-tracker/engagement-exchange-go/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler serves the moderation API.
type AdminHandler struct {
	ex     *service.Exchange
	logger *zap.Logger
}

// NewAdminHandler creates a new AdminHandler instance.
func NewAdminHandler(ex *service.Exchange, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{ex: ex, logger: logger}
}

type userAction func(c *gin.Context, userID int64) (*models.User, error)

func (h *AdminHandler) userAction(action userAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		user, err := action(c, id)
		if err != nil {
			handleError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// Ban sets the ban flag.
func (h *AdminHandler) Ban() gin.HandlerFunc {
	return h.userAction(func(c *gin.Context, id int64) (*models.User, error) {
		return h.ex.Ledger.Ban(c.Request.Context(), id)
	})
}

// Unban clears the ban flag. Strikes are kept.
func (h *AdminHandler) Unban() gin.HandlerFunc {
	return h.userAction(func(c *gin.Context, id int64) (*models.User, error) {
		return h.ex.Ledger.Unban(c.Request.Context(), id)
	})
}

// Strike adds one strike.
func (h *AdminHandler) Strike() gin.HandlerFunc {
	return h.userAction(func(c *gin.Context, id int64) (*models.User, error) {
		return h.ex.Ledger.Strike(c.Request.Context(), id, service.SourceAdmin)
	})
}

// RemoveStrike removes one strike.
func (h *AdminHandler) RemoveStrike() gin.HandlerFunc {
	return h.userAction(func(c *gin.Context, id int64) (*models.User, error) {
		return h.ex.Ledger.RemoveStrike(c.Request.Context(), id)
	})
}

// GetUser returns one user.
func (h *AdminHandler) GetUser() gin.HandlerFunc {
	return h.userAction(func(c *gin.Context, id int64) (*models.User, error) {
		return h.ex.Admin.GetUser(c.Request.Context(), id)
	})
}

// ListUsers returns a page of users.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	limit, offset := pagination(c)
	users, err := h.ex.Admin.ListUsers(c.Request.Context(), limit, offset)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "limit": limit, "offset": offset})
}

// GetTask returns any task, terminal ones included.
func (h *AdminHandler) GetTask(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	task, err := h.ex.Admin.GetTask(c.Request.Context(), id)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// TakedownVideo deactivates any video.
func (h *AdminHandler) TakedownVideo(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.ex.Catalog.Takedown(c.Request.Context(), id); err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stats returns the dashboard counters.
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.ex.Admin.Stats(c.Request.Context())
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListComplaints returns complaints, filtered by ?status=open|closed.
func (h *AdminHandler) ListComplaints(c *gin.Context) {
	status := c.Query("status")
	switch status {
	case "", models.ComplaintOpen, models.ComplaintClosed:
	default:
		writeError(c, http.StatusBadRequest, "status must be open or closed")
		return
	}

	limit, offset := pagination(c)
	complaints, err := h.ex.Admin.ListComplaints(c.Request.Context(), status, limit, offset)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"complaints": complaints, "limit": limit, "offset": offset})
}

// CloseComplaint marks a complaint handled.
func (h *AdminHandler) CloseComplaint(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	complaint, err := h.ex.Admin.CloseComplaint(c.Request.Context(), id)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

// Sweep runs one anti-cheat pass immediately.
func (h *AdminHandler) Sweep(c *gin.Context) {
	report, err := h.ex.Sweeper.Sweep(c.Request.Context())
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
