package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/langchou/chargehive/internal/api/upstream"
	"github.com/langchou/chargehive/internal/metrics"
	"github.com/langchou/chargehive/internal/models"
	"github.com/langchou/chargehive/internal/repository"
)

// StatusUpdater 站点审批状态更新
type StatusUpdater interface {
	SetApprovalStatus(ctx context.Context, d models.ApprovalDecision) (*models.Station, error)
}

// ApprovalRecorder 管理员审批并写审计记录
type ApprovalRecorder struct {
	updater  StatusUpdater
	identity IdentityVerifier
	audit    repository.AuditLog
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewApprovalRecorder 创建审批记录器
func NewApprovalRecorder(
	updater StatusUpdater,
	identityVerifier IdentityVerifier,
	audit repository.AuditLog,
	logger *zap.Logger,
	m *metrics.Metrics,
) *ApprovalRecorder {
	return &ApprovalRecorder{
		updater:  updater,
		identity: identityVerifier,
		audit:    audit,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// Approve 通过审批，reason 可为空
func (r *ApprovalRecorder) Approve(ctx context.Context, adminID, stationID int64, reason string) (*models.AuditRecord, error) {
	return r.Decide(ctx, adminID, models.ApprovalDecision{StationID: stationID, Approved: true, Reason: reason})
}

// Reject 驳回审批，必须给出原因
func (r *ApprovalRecorder) Reject(ctx context.Context, adminID, stationID int64, reason string) (*models.AuditRecord, error) {
	return r.Decide(ctx, adminID, models.ApprovalDecision{StationID: stationID, Approved: false, Reason: reason})
}

// Decide 应用审批决定并追加审计记录
// 管理员身份在修改站点前确认
func (r *ApprovalRecorder) Decide(ctx context.Context, adminID int64, d models.ApprovalDecision) (*models.AuditRecord, error) {
	d.Reason = strings.TrimSpace(d.Reason)
	if !d.Approved && d.Reason == "" {
		return nil, models.NewValidationError("reason", "Reason is required when rejecting")
	}

	adminName, err := r.adminName(ctx, adminID)
	if err != nil {
		return nil, err
	}

	if _, err := r.updater.SetApprovalStatus(ctx, d); err != nil {
		return nil, err
	}

	rec := &models.AuditRecord{
		ID:            uuid.NewString(),
		AdminUsername: adminName,
		Action:        d.Action(),
		TargetEntity:  models.TargetEntityStation,
		TargetID:      d.StationID,
		Details:       auditDetails(d),
		CreatedAt:     r.now().UTC(),
	}
	if err := r.audit.AppendAudit(ctx, rec); err != nil {
		return nil, fmt.Errorf("append audit record: %w", err)
	}

	r.metrics.IncApprovalDecision(rec.Action)
	r.logger.Info("Approval decision recorded",
		zap.Int64("station_id", d.StationID),
		zap.Int64("admin_id", adminID),
		zap.String("action", rec.Action))
	return rec, nil
}

// ListAudit 最近的审计记录
func (r *ApprovalRecorder) ListAudit(ctx context.Context, limit int) ([]*models.AuditRecord, error) {
	return r.audit.ListAudit(ctx, limit)
}

func (r *ApprovalRecorder) adminName(ctx context.Context, adminID int64) (string, error) {
	user, err := r.identity.GetUser(ctx, adminID)
	switch upstream.Classify(err) {
	case upstream.Found:
		return user.Name, nil
	case upstream.NotFound:
		return "", fmt.Errorf("%w: admin %d", models.ErrAdminNotFound, adminID)
	default:
		return "", fmt.Errorf("%w: admin %d: %w", models.ErrAdminNotFound, adminID, models.ErrUpstreamUnavailable)
	}
}

func auditDetails(d models.ApprovalDecision) string {
	verb := "rejected"
	if d.Approved {
		verb = "approved"
	}
	if d.Reason == "" {
		return "Station " + verb
	}
	return "Station " + verb + " with reason: " + d.Reason
}
