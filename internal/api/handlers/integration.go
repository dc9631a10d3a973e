package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// StationExists 返回裸布尔值
func (h *Handler) StationExists(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}

	ok, err := h.stations.StationExists(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ok)
}

// GetPortInfo 站点内的端口
func (h *Handler) GetPortInfo(c *gin.Context) {
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

	port, err := h.stations.GetPortInfo(c.Request.Context(), stationID, portID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, port)
}

// GetTotalEarnings 站点收益，预约服务失败时返回 null
func (h *Handler) GetTotalEarnings(c *gin.Context) {
	stationID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.stations.GetTotalEarnings(c.Request.Context(), stationID))
}
