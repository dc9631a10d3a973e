package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/langchou/chargehive/internal/models"
)

// AddPort 添加端口
// POST /stations/:id/ports
func (h *Handler) AddPort(c *gin.Context) {
	stationID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}

	var in models.PortInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respondBindError(c, err)
		return
	}

	port, err := h.stations.AddPort(c.Request.Context(), stationID, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, port)
}

// ListPorts 站点端口
func (h *Handler) ListPorts(c *gin.Context) {
	stationID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}

	ports, err := h.stations.ListPorts(c.Request.Context(), stationID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orEmpty(ports))
}

// UpdatePort 所有者更新端口，返回所属站点
// PUT /stations/ports/:portId
func (h *Handler) UpdatePort(c *gin.Context) {
	ownerID, err := userID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	portID, err := pathID(c, "portId")
	if err != nil {
		h.respondError(c, err)
		return
	}

	var in models.PortInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respondBindError(c, err)
		return
	}

	st, err := h.stations.UpdatePort(c.Request.Context(), ownerID, portID, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// RemovePort 删除站点下的端口
func (h *Handler) RemovePort(c *gin.Context) {
	stationID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	portID, err := pathID(c, "portId")
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.stations.RemovePort(c.Request.Context(), stationID, portID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
