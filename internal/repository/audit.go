package repository

import (
	"context"
	"fmt"

	"github.com/langchou/chargehive/internal/models"
)

var _ AuditLog = (*AuditRepository)(nil)

// AuditRepository 审计记录仓库
type AuditRepository struct {
	db *DB
}

// NewAuditRepository 创建审计仓库
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AppendAudit 追加一条审计记录
func (r *AuditRepository) AppendAudit(ctx context.Context, rec *models.AuditRecord) error {
	query := `
		INSERT INTO station_audit_logs (id, admin_username, action, target_entity, target_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		rec.ID,
		rec.AdminUsername,
		rec.Action,
		rec.TargetEntity,
		rec.TargetID,
		rec.Details,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// ListAudit 最近的审计记录
func (r *AuditRepository) ListAudit(ctx context.Context, limit int) ([]*models.AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id::text, admin_username, action, target_entity, target_id, details, created_at
		FROM station_audit_logs
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	records := make([]*models.AuditRecord, 0)
	for rows.Next() {
		rec := &models.AuditRecord{}
		if err := rows.Scan(
			&rec.ID,
			&rec.AdminUsername,
			&rec.Action,
			&rec.TargetEntity,
			&rec.TargetID,
			&rec.Details,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
