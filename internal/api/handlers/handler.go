package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/langchou/chargehive/internal/models"
	"github.com/langchou/chargehive/internal/search"
	"github.com/langchou/chargehive/pkg/ws"
)

// HeaderUserID 网关注入的用户 ID
const HeaderUserID = "X-User-Id"

// StationService 站点领域操作
type StationService interface {
	CreateStation(ctx context.Context, ownerID int64, in models.StationInput) (*models.Station, error)
	GetStation(ctx context.Context, id int64) (*models.Station, error)
	UpdateStation(ctx context.Context, id int64, patch models.StationPatch) (*models.Station, error)
	DeleteStation(ctx context.Context, id int64) error
	SetApprovalStatus(ctx context.Context, d models.ApprovalDecision) (*models.Station, error)

	AddPort(ctx context.Context, stationID int64, in models.PortInput) (*models.Port, error)
	UpdatePort(ctx context.Context, ownerID, portID int64, in models.PortInput) (*models.Station, error)
	RemovePort(ctx context.Context, stationID, portID int64) error
	ListPorts(ctx context.Context, stationID int64) ([]*models.Port, error)

	ListStations(ctx context.Context) ([]*models.Station, error)
	ListUnapproved(ctx context.Context) ([]*models.Station, error)
	ListApproved(ctx context.Context) ([]*models.Station, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*models.Station, error)
	SearchStations(ctx context.Context, c search.Criteria) ([]*models.Station, error)
	FindNearby(ctx context.Context, lat, lng, radiusKm float64) ([]*models.Station, error)
	GetAvailability(stationID int64, date string) ([]string, error)

	StationExists(ctx context.Context, id int64) (bool, error)
	GetPortInfo(ctx context.Context, stationID, portID int64) (*models.Port, error)
	GetTotalEarnings(ctx context.Context, stationID int64) *models.Earnings
}

// ApprovalService 管理员审批与审计
type ApprovalService interface {
	Approve(ctx context.Context, adminID, stationID int64, reason string) (*models.AuditRecord, error)
	Reject(ctx context.Context, adminID, stationID int64, reason string) (*models.AuditRecord, error)
	ListAudit(ctx context.Context, limit int) ([]*models.AuditRecord, error)
}

// Pinger 存储健康检查
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options 处理器参数
type Options struct {
	NearbyDefaultRadiusKm float64
}

// Handler HTTP 处理器
type Handler struct {
	logger   *zap.Logger
	stations StationService
	admin    ApprovalService
	store    Pinger
	wsHub    *ws.Hub
	opts     Options
	upgrader websocket.Upgrader
}

// NewHandler 创建处理器
func NewHandler(
	logger *zap.Logger,
	stations StationService,
	admin ApprovalService,
	store Pinger,
	wsHub *ws.Hub,
	opts Options,
) *Handler {
	if opts.NearbyDefaultRadiusKm <= 0 {
		opts.NearbyDefaultRadiusKm = 5
	}
	return &Handler{
		logger:   logger,
		stations: stations,
		admin:    admin,
		store:    store,
		wsHub:    wsHub,
		opts:     opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 开发环境允许所有来源
			},
		},
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	stations := r.Group("/stations")
	{
		// 站点
		stations.POST("", h.CreateStation)
		stations.GET("", h.ListStations)
		stations.GET("/:id", h.GetStation)
		stations.PUT("/:id", h.UpdateStation)
		stations.DELETE("/:id", h.DeleteStation)
		stations.GET("/unapproved", h.ListUnapproved)
		stations.GET("/approved", h.ListApproved)
		stations.GET("/get-station-by-owner", h.ListByOwner)
		stations.PUT("/update-status", h.UpdateStatus)

		// 端口
		stations.POST("/:id/ports", h.AddPort)
		stations.GET("/:id/ports", h.ListPorts)
		stations.PUT("/ports/:portId", h.UpdatePort)
		stations.DELETE("/:id/ports/:portId", h.RemovePort)

		// 搜索
		stations.GET("/search", h.SearchStations)
		stations.GET("/nearby", h.FindNearby)
		stations.GET("/:id/availability", h.GetAvailability)

		// 其他服务调用
		stations.GET("/:id/exists", h.StationExists)
		stations.GET("/:id/ports/:portId", h.GetPortInfo)
		stations.GET("/totalearnings/:id", h.GetTotalEarnings)
	}

	admin := r.Group("/admin")
	{
		admin.POST("/stations/:id/approve", h.ApproveStation)
		admin.POST("/stations/:id/reject", h.RejectStation)
		admin.GET("/audit-logs", h.ListAuditLogs)
	}

	// WebSocket
	r.GET("/ws", h.HandleWebSocket)

	// 健康检查
	r.GET("/health", h.HealthCheck)
}

// HandleWebSocket WebSocket 处理
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	if !client.Register() {
		_ = conn.Close()
		return
	}

	// 启动读写协程
	go client.ReadPump()
	go client.WritePump()
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	status, code := "ok", http.StatusOK
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.logger.Warn("Store ping failed", zap.Error(err))
		status, code = "degraded", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":     status,
		"ws_clients": h.wsHub.ClientCount(),
	})
}

// pathID 解析正整数路径参数
func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, models.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}

// userID 读取 X-User-Id
func userID(c *gin.Context) (int64, error) {
	raw := strings.TrimSpace(c.GetHeader(HeaderUserID))
	if raw == "" {
		return 0, models.NewValidationError(HeaderUserID, "header is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, models.NewValidationError(HeaderUserID, "must be a positive integer")
	}
	return id, nil
}

// orEmpty 空集合序列化为 [] 而不是 null
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
