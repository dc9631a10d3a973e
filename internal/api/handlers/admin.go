package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/langchou/chargehive/internal/models"
)

const defaultAuditLimit = 100

// ApproveStation 管理员审批通过
// POST /admin/stations/:id/approve?reason=
func (h *Handler) ApproveStation(c *gin.Context) {
	h.decide(c, true)
}

// RejectStation 管理员驳回，reason 必填
// POST /admin/stations/:id/reject?reason=
func (h *Handler) RejectStation(c *gin.Context) {
	h.decide(c, false)
}

func (h *Handler) decide(c *gin.Context, approve bool) {
	adminID, err := userID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	stationID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}

	reason := c.Query("reason")
	ctx := c.Request.Context()

	var rec *models.AuditRecord
	if approve {
		rec, err = h.admin.Approve(ctx, adminID, stationID, reason)
	} else {
		rec, err = h.admin.Reject(ctx, adminID, stationID, reason)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

// ListAuditLogs 审计记录，新的在前
// GET /admin/audit-logs?limit=
func (h *Handler) ListAuditLogs(c *gin.Context) {
	limit := defaultAuditLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			h.respondError(c, models.NewValidationError("limit", "must be between 1 and 1000"))
			return
		}
		limit = n
	}

	trail, err := h.admin.ListAudit(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orEmpty(trail))
}
