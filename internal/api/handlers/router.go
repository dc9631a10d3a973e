package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/langchou/chargehive/internal/metrics"
)

// NewRouter 创建路由，gatherer 为 nil 时不暴露 /metrics
func NewRouter(h *Handler, logger *zap.Logger, m *metrics.Metrics, gatherer prometheus.Gatherer) *gin.Engine {
	useJSONFieldNames()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(accessLogMiddleware(logger.Named("http")))
	router.Use(metricsMiddleware(m))
	router.Use(corsMiddleware())

	h.RegisterRoutes(router)

	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return router
}
