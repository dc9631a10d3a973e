package repository

import (
	"context"

	"github.com/langchou/chargehive/internal/models"
)

// Store 站点与端口的持久化接口
// 读取的站点总是带有当前端口集合，端口按 ID 升序
type Store interface {
	// CreateStation 写入站点及其初始端口，端口在站点 ID 确定后写入
	CreateStation(ctx context.Context, st *models.Station) error
	GetStation(ctx context.Context, id int64) (*models.Station, error)
	ListStations(ctx context.Context) ([]*models.Station, error)
	ListByApproval(ctx context.Context, approved bool) ([]*models.Station, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*models.Station, error)
	StationExists(ctx context.Context, id int64) (bool, error)
	// UpdateStation 只写入 patch 中的非空字段
	UpdateStation(ctx context.Context, id int64, patch models.StationPatch) error
	SetApproved(ctx context.Context, id int64, approved bool) error
	// DeleteStation 删除站点并级联删除端口
	DeleteStation(ctx context.Context, id int64) error

	CreatePort(ctx context.Context, p *models.Port) error
	GetPort(ctx context.Context, portID int64) (*models.Port, error)
	ListPorts(ctx context.Context, stationID int64) ([]*models.Port, error)
	UpdatePort(ctx context.Context, p *models.Port) error
	// DeletePort 仅当端口属于该站点时删除
	DeletePort(ctx context.Context, stationID, portID int64) error

	// RunInTx 在同一事务中执行 fn，fn 返回错误时回滚
	RunInTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}

// AuditLog 审计记录，只追加
type AuditLog interface {
	AppendAudit(ctx context.Context, rec *models.AuditRecord) error
	// ListAudit 按创建时间倒序
	ListAudit(ctx context.Context, limit int) ([]*models.AuditRecord, error)
}
