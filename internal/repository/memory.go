package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/langchou/chargehive/internal/models"
)

// MemoryStore 内存实现，用于本地运行和测试
// 同时实现 Store 和 AuditLog
type MemoryStore struct {
	mu         sync.RWMutex
	data       memData
	stationSeq int64
	portSeq    int64
	audit      []*models.AuditRecord
	now        func() time.Time
}

type memData struct {
	stations map[int64]*models.Station // 不含端口
	ports    map[int64]*models.Port
}

func (d memData) clone() memData {
	c := memData{
		stations: make(map[int64]*models.Station, len(d.stations)),
		ports:    make(map[int64]*models.Port, len(d.ports)),
	}
	for id, st := range d.stations {
		c.stations[id] = copyStation(st)
	}
	for id, p := range d.ports {
		pc := *p
		c.ports[id] = &pc
	}
	return c
}

// NewMemoryStore 创建内存仓库
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: memData{
			stations: make(map[int64]*models.Station),
			ports:    make(map[int64]*models.Port),
		},
		now: time.Now,
	}
}

var (
	_ Store    = (*MemoryStore)(nil)
	_ Store    = memTx{}
	_ AuditLog = (*MemoryStore)(nil)
)

// memTx 持有写锁期间使用的视图，不再加锁
type memTx struct {
	s *MemoryStore
}

// RunInTx 持有写锁执行 fn，出错时恢复快照
// ID 序列不回退，回滚后也不会复用
func (s *MemoryStore) RunInTx(ctx context.Context, fn func(tx Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.data.clone()
	if err := fn(memTx{s: s}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// Ping 内存仓库总是可用
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) write(ctx context.Context, fn func(tx memTx) error) error {
	return s.RunInTx(ctx, func(tx Store) error { return fn(tx.(memTx)) })
}

func (s *MemoryStore) read() memTx {
	return memTx{s: s}
}

func (s *MemoryStore) CreateStation(ctx context.Context, st *models.Station) error {
	return s.write(ctx, func(tx memTx) error { return tx.CreateStation(ctx, st) })
}

func (s *MemoryStore) GetStation(ctx context.Context, id int64) (*models.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetStation(ctx, id)
}

func (s *MemoryStore) ListStations(ctx context.Context) ([]*models.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListStations(ctx)
}

func (s *MemoryStore) ListByApproval(ctx context.Context, approved bool) ([]*models.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListByApproval(ctx, approved)
}

func (s *MemoryStore) ListByOwner(ctx context.Context, ownerID int64) ([]*models.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListByOwner(ctx, ownerID)
}

func (s *MemoryStore) StationExists(ctx context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().StationExists(ctx, id)
}

func (s *MemoryStore) UpdateStation(ctx context.Context, id int64, patch models.StationPatch) error {
	return s.write(ctx, func(tx memTx) error { return tx.UpdateStation(ctx, id, patch) })
}

func (s *MemoryStore) SetApproved(ctx context.Context, id int64, approved bool) error {
	return s.write(ctx, func(tx memTx) error { return tx.SetApproved(ctx, id, approved) })
}

func (s *MemoryStore) DeleteStation(ctx context.Context, id int64) error {
	return s.write(ctx, func(tx memTx) error { return tx.DeleteStation(ctx, id) })
}

func (s *MemoryStore) CreatePort(ctx context.Context, p *models.Port) error {
	return s.write(ctx, func(tx memTx) error { return tx.CreatePort(ctx, p) })
}

func (s *MemoryStore) GetPort(ctx context.Context, portID int64) (*models.Port, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetPort(ctx, portID)
}

func (s *MemoryStore) ListPorts(ctx context.Context, stationID int64) ([]*models.Port, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListPorts(ctx, stationID)
}

func (s *MemoryStore) UpdatePort(ctx context.Context, p *models.Port) error {
	return s.write(ctx, func(tx memTx) error { return tx.UpdatePort(ctx, p) })
}

func (s *MemoryStore) DeletePort(ctx context.Context, stationID, portID int64) error {
	return s.write(ctx, func(tx memTx) error { return tx.DeletePort(ctx, stationID, portID) })
}

// AppendAudit 追加审计记录
func (s *MemoryStore) AppendAudit(ctx context.Context, rec *models.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rc := *rec
	s.audit = append(s.audit, &rc)
	return nil
}

// ListAudit 按写入顺序倒序返回
func (s *MemoryStore) ListAudit(ctx context.Context, limit int) ([]*models.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.AuditRecord, 0, len(s.audit))
	for i := len(s.audit) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		rc := *s.audit[i]
		out = append(out, &rc)
	}
	return out, nil
}

// --- memTx: 调用方已持有锁 ---

func (tx memTx) RunInTx(ctx context.Context, fn func(tx Store) error) error {
	return fn(tx)
}

func (tx memTx) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (tx memTx) CreateStation(ctx context.Context, st *models.Station) error {
	s := tx.s
	now := s.now()

	s.stationSeq++
	st.ID = s.stationSeq
	st.Approved = false
	st.CreatedAt = now
	st.UpdatedAt = now

	stored := copyStation(st)
	stored.Ports = nil
	s.data.stations[st.ID] = stored

	for _, p := range st.Ports {
		p.StationID = st.ID
		if err := tx.CreatePort(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (tx memTx) GetStation(ctx context.Context, id int64) (*models.Station, error) {
	st, ok := tx.s.data.stations[id]
	if !ok {
		return nil, models.StationNotFound(id)
	}
	return tx.assemble(st), nil
}

func (tx memTx) ListStations(ctx context.Context) ([]*models.Station, error) {
	return tx.filter(func(*models.Station) bool { return true }), nil
}

func (tx memTx) ListByApproval(ctx context.Context, approved bool) ([]*models.Station, error) {
	return tx.filter(func(st *models.Station) bool { return st.Approved == approved }), nil
}

func (tx memTx) ListByOwner(ctx context.Context, ownerID int64) ([]*models.Station, error) {
	return tx.filter(func(st *models.Station) bool { return st.OwnerID == ownerID }), nil
}

func (tx memTx) StationExists(ctx context.Context, id int64) (bool, error) {
	_, ok := tx.s.data.stations[id]
	return ok, nil
}

func (tx memTx) UpdateStation(ctx context.Context, id int64, patch models.StationPatch) error {
	st, ok := tx.s.data.stations[id]
	if !ok {
		return models.StationNotFound(id)
	}
	patch.Apply(st)
	st.UpdatedAt = tx.s.now()
	return nil
}

func (tx memTx) SetApproved(ctx context.Context, id int64, approved bool) error {
	st, ok := tx.s.data.stations[id]
	if !ok {
		return models.StationNotFound(id)
	}
	st.Approved = approved
	st.UpdatedAt = tx.s.now()
	return nil
}

func (tx memTx) DeleteStation(ctx context.Context, id int64) error {
	if _, ok := tx.s.data.stations[id]; !ok {
		return models.StationNotFound(id)
	}
	for pid, p := range tx.s.data.ports {
		if p.StationID == id {
			delete(tx.s.data.ports, pid)
		}
	}
	delete(tx.s.data.stations, id)
	return nil
}

func (tx memTx) CreatePort(ctx context.Context, p *models.Port) error {
	if _, ok := tx.s.data.stations[p.StationID]; !ok {
		return models.StationNotFound(p.StationID)
	}
	tx.s.portSeq++
	p.ID = tx.s.portSeq
	pc := *p
	tx.s.data.ports[p.ID] = &pc
	return nil
}

func (tx memTx) GetPort(ctx context.Context, portID int64) (*models.Port, error) {
	p, ok := tx.s.data.ports[portID]
	if !ok {
		return nil, models.PortNotFound(portID)
	}
	pc := *p
	return &pc, nil
}

func (tx memTx) ListPorts(ctx context.Context, stationID int64) ([]*models.Port, error) {
	return tx.portsOf(stationID), nil
}

func (tx memTx) UpdatePort(ctx context.Context, p *models.Port) error {
	existing, ok := tx.s.data.ports[p.ID]
	if !ok {
		return models.PortNotFound(p.ID)
	}
	existing.ConnectorType = p.ConnectorType
	existing.MaxPowerKw = p.MaxPowerKw
	existing.PricePerHour = p.PricePerHour
	return nil
}

func (tx memTx) DeletePort(ctx context.Context, stationID, portID int64) error {
	p, ok := tx.s.data.ports[portID]
	if !ok || p.StationID != stationID {
		return models.PortNotFound(portID)
	}
	delete(tx.s.data.ports, portID)
	return nil
}

func (tx memTx) filter(match func(*models.Station) bool) []*models.Station {
	out := make([]*models.Station, 0)
	for _, st := range tx.s.data.stations {
		if match(st) {
			out = append(out, tx.assemble(st))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (tx memTx) assemble(st *models.Station) *models.Station {
	c := copyStation(st)
	c.Ports = tx.portsOf(st.ID)
	return c
}

func (tx memTx) portsOf(stationID int64) []*models.Port {
	ports := make([]*models.Port, 0)
	for _, p := range tx.s.data.ports {
		if p.StationID == stationID {
			pc := *p
			ports = append(ports, &pc)
		}
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].ID < ports[j].ID })
	return ports
}

func copyStation(st *models.Station) *models.Station {
	c := *st
	if st.Latitude != nil {
		lat := *st.Latitude
		c.Latitude = &lat
	}
	if st.Longitude != nil {
		lng := *st.Longitude
		c.Longitude = &lng
	}
	c.Ports = nil
	return &c
}
