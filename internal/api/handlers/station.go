package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/chargehive/internal/models"
)

// CreateStation 创建站点
// POST /stations
// 所有者来自 X-User-Id，请求体中的审批状态和所有者被忽略
func (h *Handler) CreateStation(c *gin.Context) {
	ownerID, err := userID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var in models.StationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respondBindError(c, err)
		return
	}

	st, err := h.stations.CreateStation(c.Request.Context(), ownerID, in)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.logger.Info("Station created via API", zap.Int64("station_id", st.ID), zap.Int64("owner_id", ownerID))
	c.JSON(http.StatusCreated, st)
}

// ListStations 全部站点
func (h *Handler) ListStations(c *gin.Context) {
	list, err := h.stations.ListStations(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orEmpty(list))
}

// GetStation 站点详情
func (h *Handler) GetStation(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}

	st, err := h.stations.GetStation(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// UpdateStation 部分更新站点
// PUT /stations/:id
func (h *Handler) UpdateStation(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}

	var patch models.StationPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.respondBindError(c, err)
		return
	}

	st, err := h.stations.UpdateStation(c.Request.Context(), id, patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// DeleteStation 删除站点及其端口
func (h *Handler) DeleteStation(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.stations.DeleteStation(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}

	h.logger.Info("Station deleted via API", zap.Int64("station_id", id))
	c.Status(http.StatusNoContent)
}

// ListUnapproved 待审批站点
func (h *Handler) ListUnapproved(c *gin.Context) {
	list, err := h.stations.ListUnapproved(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orEmpty(list))
}

// ListApproved 已审批站点
func (h *Handler) ListApproved(c *gin.Context) {
	list, err := h.stations.ListApproved(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orEmpty(list))
}

// ListByOwner 当前用户的站点
// GET /stations/get-station-by-owner
func (h *Handler) ListByOwner(c *gin.Context) {
	ownerID, err := userID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	list, err := h.stations.ListByOwner(c.Request.Context(), ownerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orEmpty(list))
}

type updateStatusRequest struct {
	StationID int64  `json:"stationId" binding:"required,gt=0"`
	Approved  *bool  `json:"approved" binding:"required"`
	Reason    string `json:"reason"`
}

// UpdateStatus 设置审批状态，仅供管理端调用，不写审计
// PUT /stations/update-status
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	st, err := h.stations.SetApprovalStatus(c.Request.Context(), models.ApprovalDecision{
		StationID: req.StationID,
		Approved:  *req.Approved,
		Reason:    req.Reason,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
