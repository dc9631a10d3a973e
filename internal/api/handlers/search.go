package handlers

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/langchou/chargehive/internal/models"
	"github.com/langchou/chargehive/internal/search"
)

// SearchStations 按名称、城市、是否有端口过滤
// GET /stations/search?query&city&available
func (h *Handler) SearchStations(c *gin.Context) {
	var crit search.Criteria
	if q := strings.TrimSpace(c.Query("query")); q != "" {
		crit.Query = &q
	}
	if city := strings.TrimSpace(c.Query("city")); city != "" {
		crit.City = &city
	}
	if raw := c.Query("available"); raw != "" {
		available, err := strconv.ParseBool(raw)
		if err != nil {
			h.respondError(c, models.NewValidationError("available", "must be true or false"))
			return
		}
		crit.Available = &available
	}

	list, err := h.stations.SearchStations(c.Request.Context(), crit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orEmpty(list))
}

// FindNearby 附近的已审批站点
// GET /stations/nearby?lat&lng&radiusKm
func (h *Handler) FindNearby(c *gin.Context) {
	verr := &models.ValidationError{}
	lat := queryFloat(c, verr, "lat", nil)
	lng := queryFloat(c, verr, "lng", nil)
	radius := queryFloat(c, verr, "radiusKm", &h.opts.NearbyDefaultRadiusKm)
	if verr.HasErrors() {
		h.respondError(c, verr)
		return
	}

	list, err := h.stations.FindNearby(c.Request.Context(), lat, lng, radius)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orEmpty(list))
}

// queryFloat 读取浮点查询参数，def 为 nil 时必填
func queryFloat(c *gin.Context, verr *models.ValidationError, name string, def *float64) float64 {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		if def != nil {
			return *def
		}
		verr.Add(name, "is required")
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		verr.Add(name, "must be a finite number")
		return 0
	}
	return v
}

// GetAvailability 指定日期的可预约时段
// GET /stations/:id/availability?date=2025-03-01
func (h *Handler) GetAvailability(c *gin.Context) {
	stationID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}

	slots, err := h.stations.GetAvailability(stationID, c.Query("date"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, slots)
}
