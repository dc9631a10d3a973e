package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/langchou/chargehive/internal/metrics"
	"github.com/langchou/chargehive/internal/models"
)

// querier 连接池和事务共有的查询方法
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type scanner interface {
	Scan(dest ...any) error
}

const stationColumns = `id, name, address, city, state, postal_code, latitude, longitude, is_approved, owner_id, created_at, updated_at`

const portColumns = `id, station_id, connector_type, max_power_kw, price_per_hour`

var _ Store = (*StationRepository)(nil)

// StationRepository 基于 PostgreSQL 的站点仓库
type StationRepository struct {
	db      *DB
	q       querier
	inTx    bool
	metrics *metrics.Metrics
}

// NewStationRepository 创建站点仓库
func NewStationRepository(db *DB, m *metrics.Metrics) *StationRepository {
	return &StationRepository{db: db, q: db.Pool, metrics: m}
}

// RunInTx 开启事务，嵌套调用复用外层事务
func (r *StationRepository) RunInTx(ctx context.Context, fn func(tx Store) error) error {
	if r.inTx {
		return fn(r)
	}
	err := pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		return fn(&StationRepository{db: r.db, q: tx, inTx: true, metrics: r.metrics})
	})
	if err != nil {
		return fmt.Errorf("run in tx: %w", err)
	}
	return nil
}

// Ping 检查数据库连接
func (r *StationRepository) Ping(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// CreateStation 创建站点并写入初始端口
func (r *StationRepository) CreateStation(ctx context.Context, st *models.Station) (err error) {
	defer r.observe("create_station", time.Now(), &err)

	return r.RunInTx(ctx, func(tx Store) error {
		txr := tx.(*StationRepository)
		query := `
			INSERT INTO stations (name, address, city, state, postal_code, latitude, longitude, is_approved, owner_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8)
			RETURNING id, is_approved, created_at, updated_at
		`
		err := txr.q.QueryRow(ctx, query,
			st.Name,
			st.Address,
			st.City,
			st.State,
			st.PostalCode,
			st.Latitude,
			st.Longitude,
			st.OwnerID,
		).Scan(&st.ID, &st.Approved, &st.CreatedAt, &st.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert station: %w", err)
		}

		for _, p := range st.Ports {
			p.StationID = st.ID
			if err := txr.insertPort(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetStation 获取站点及端口
func (r *StationRepository) GetStation(ctx context.Context, id int64) (st *models.Station, err error) {
	defer r.observe("get_station", time.Now(), &err)

	query := `SELECT ` + stationColumns + ` FROM stations WHERE id = $1`
	st, err = scanStation(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.StationNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get station: %w", err)
	}

	if st.Ports, err = r.ListPorts(ctx, id); err != nil {
		return nil, err
	}
	return st, nil
}

// ListStations 全部站点
func (r *StationRepository) ListStations(ctx context.Context) (list []*models.Station, err error) {
	defer r.observe("list_stations", time.Now(), &err)
	return r.queryStations(ctx, `SELECT `+stationColumns+` FROM stations ORDER BY id`)
}

// ListByApproval 按审批状态查询
func (r *StationRepository) ListByApproval(ctx context.Context, approved bool) (list []*models.Station, err error) {
	defer r.observe("list_by_approval", time.Now(), &err)
	return r.queryStations(ctx, `SELECT `+stationColumns+` FROM stations WHERE is_approved = $1 ORDER BY id`, approved)
}

// ListByOwner 按所有者查询
func (r *StationRepository) ListByOwner(ctx context.Context, ownerID int64) (list []*models.Station, err error) {
	defer r.observe("list_by_owner", time.Now(), &err)
	return r.queryStations(ctx, `SELECT `+stationColumns+` FROM stations WHERE owner_id = $1 ORDER BY id`, ownerID)
}

// StationExists 站点是否存在
func (r *StationRepository) StationExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM stations WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check station exists: %w", err)
	}
	return exists, nil
}

// UpdateStation 部分更新，未提供的字段由 COALESCE 保留原值
func (r *StationRepository) UpdateStation(ctx context.Context, id int64, patch models.StationPatch) (err error) {
	defer r.observe("update_station", time.Now(), &err)

	query := `
		UPDATE stations SET
			name = COALESCE($2, name),
			address = COALESCE($3, address),
			city = COALESCE($4, city),
			state = COALESCE($5, state),
			postal_code = COALESCE($6, postal_code),
			latitude = COALESCE($7, latitude),
			longitude = COALESCE($8, longitude),
			updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.q.Exec(ctx, query,
		id,
		trimmed(patch.Name),
		trimmed(patch.Address),
		trimmed(patch.City),
		trimmed(patch.State),
		trimmed(patch.PostalCode),
		patch.Latitude,
		patch.Longitude,
	)
	if err != nil {
		return fmt.Errorf("update station: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.StationNotFound(id)
	}
	return nil
}

// SetApproved 设置审批状态
func (r *StationRepository) SetApproved(ctx context.Context, id int64, approved bool) (err error) {
	defer r.observe("set_approved", time.Now(), &err)

	tag, err := r.q.Exec(ctx, `UPDATE stations SET is_approved = $2, updated_at = NOW() WHERE id = $1`, id, approved)
	if err != nil {
		return fmt.Errorf("set station approval: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.StationNotFound(id)
	}
	return nil
}

// DeleteStation 在事务中先删端口再删站点
func (r *StationRepository) DeleteStation(ctx context.Context, id int64) (err error) {
	defer r.observe("delete_station", time.Now(), &err)

	return r.RunInTx(ctx, func(tx Store) error {
		txr := tx.(*StationRepository)
		if _, err := txr.q.Exec(ctx, `DELETE FROM ports WHERE station_id = $1`, id); err != nil {
			return fmt.Errorf("delete station ports: %w", err)
		}
		tag, err := txr.q.Exec(ctx, `DELETE FROM stations WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete station: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return models.StationNotFound(id)
		}
		return nil
	})
}

// CreatePort 创建端口，站点不存在时返回 NotFound
func (r *StationRepository) CreatePort(ctx context.Context, p *models.Port) (err error) {
	defer r.observe("create_port", time.Now(), &err)

	err = r.insertPort(ctx, p)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return models.StationNotFound(p.StationID)
	}
	return err
}

// GetPort 获取端口
func (r *StationRepository) GetPort(ctx context.Context, portID int64) (*models.Port, error) {
	p, err := scanPort(r.q.QueryRow(ctx, `SELECT `+portColumns+` FROM ports WHERE id = $1`, portID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.PortNotFound(portID)
	}
	if err != nil {
		return nil, fmt.Errorf("get port: %w", err)
	}
	return p, nil
}

// ListPorts 站点的端口
func (r *StationRepository) ListPorts(ctx context.Context, stationID int64) ([]*models.Port, error) {
	rows, err := r.q.Query(ctx, `SELECT `+portColumns+` FROM ports WHERE station_id = $1 ORDER BY id`, stationID)
	if err != nil {
		return nil, fmt.Errorf("query ports: %w", err)
	}
	defer rows.Close()

	ports := make([]*models.Port, 0)
	for rows.Next() {
		p, err := scanPort(rows)
		if err != nil {
			return nil, fmt.Errorf("scan port: %w", err)
		}
		ports = append(ports, p)
	}
	return ports, rows.Err()
}

// UpdatePort 更新端口字段，站点归属不变
func (r *StationRepository) UpdatePort(ctx context.Context, p *models.Port) (err error) {
	defer r.observe("update_port", time.Now(), &err)

	query := `
		UPDATE ports SET connector_type = $2, max_power_kw = $3, price_per_hour = $4
		WHERE id = $1
	`
	tag, err := r.q.Exec(ctx, query, p.ID, p.ConnectorType, p.MaxPowerKw, p.PricePerHour)
	if err != nil {
		return fmt.Errorf("update port: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.PortNotFound(p.ID)
	}
	return nil
}

// DeletePort 删除站点下的端口
func (r *StationRepository) DeletePort(ctx context.Context, stationID, portID int64) (err error) {
	defer r.observe("delete_port", time.Now(), &err)

	tag, err := r.q.Exec(ctx, `DELETE FROM ports WHERE id = $1 AND station_id = $2`, portID, stationID)
	if err != nil {
		return fmt.Errorf("delete port: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.PortNotFound(portID)
	}
	return nil
}

func (r *StationRepository) insertPort(ctx context.Context, p *models.Port) error {
	query := `
		INSERT INTO ports (station_id, connector_type, max_power_kw, price_per_hour)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	if err := r.q.QueryRow(ctx, query, p.StationID, p.ConnectorType, p.MaxPowerKw, p.PricePerHour).Scan(&p.ID); err != nil {
		return fmt.Errorf("insert port: %w", err)
	}
	return nil
}

// queryStations 查询站点并一次性加载端口
func (r *StationRepository) queryStations(ctx context.Context, query string, args ...any) ([]*models.Station, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	defer rows.Close()

	stations := make([]*models.Station, 0)
	byID := make(map[int64]*models.Station)
	ids := make([]int64, 0)
	for rows.Next() {
		st, err := scanStation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		st.Ports = make([]*models.Port, 0)
		stations = append(stations, st)
		byID[st.ID] = st
		ids = append(ids, st.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stations: %w", err)
	}
	if len(ids) == 0 {
		return stations, nil
	}

	portRows, err := r.q.Query(ctx, `SELECT `+portColumns+` FROM ports WHERE station_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("query station ports: %w", err)
	}
	defer portRows.Close()

	for portRows.Next() {
		p, err := scanPort(portRows)
		if err != nil {
			return nil, fmt.Errorf("scan port: %w", err)
		}
		if st, ok := byID[p.StationID]; ok {
			st.Ports = append(st.Ports, p)
		}
	}
	return stations, portRows.Err()
}

func (r *StationRepository) observe(op string, start time.Time, err *error) {
	r.metrics.ObserveStore(op, start, *err)
}

func scanStation(row scanner) (*models.Station, error) {
	st := &models.Station{Ports: make([]*models.Port, 0)}
	err := row.Scan(
		&st.ID,
		&st.Name,
		&st.Address,
		&st.City,
		&st.State,
		&st.PostalCode,
		&st.Latitude,
		&st.Longitude,
		&st.Approved,
		&st.OwnerID,
		&st.CreatedAt,
		&st.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func scanPort(row scanner) (*models.Port, error) {
	p := &models.Port{}
	if err := row.Scan(&p.ID, &p.StationID, &p.ConnectorType, &p.MaxPowerKw, &p.PricePerHour); err != nil {
		return nil, err
	}
	return p, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
