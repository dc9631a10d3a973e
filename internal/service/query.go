package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/chargehive/internal/models"
	"github.com/langchou/chargehive/internal/search"
	"github.com/langchou/chargehive/pkg/ws"
)

// 可预约时段
const (
	SlotLayout   = "2006-01-02T15:04"
	slotStart    = 8 * time.Hour
	slotLastFrom = 19*time.Hour + 30*time.Minute
	slotStep     = 30 * time.Minute
)

// ListStations 全部站点
func (s *StationService) ListStations(ctx context.Context) ([]*models.Station, error) {
	return s.store.ListStations(ctx)
}

// ListUnapproved 待审批站点
func (s *StationService) ListUnapproved(ctx context.Context) ([]*models.Station, error) {
	return s.store.ListByApproval(ctx, false)
}

// ListApproved 已审批站点
func (s *StationService) ListApproved(ctx context.Context) ([]*models.Station, error) {
	return s.store.ListByApproval(ctx, true)
}

// ListByOwner 所有者的站点
func (s *StationService) ListByOwner(ctx context.Context, ownerID int64) ([]*models.Station, error) {
	return s.store.ListByOwner(ctx, ownerID)
}

// StationExists 站点是否存在
func (s *StationService) StationExists(ctx context.Context, id int64) (bool, error) {
	return s.store.StationExists(ctx, id)
}

// SearchStations 按条件过滤全部站点
func (s *StationService) SearchStations(ctx context.Context, c search.Criteria) ([]*models.Station, error) {
	all, err := s.store.ListStations(ctx)
	if err != nil {
		return nil, err
	}
	return search.Filter(all, c.Predicate()), nil
}

// FindNearby 半径内的已审批站点，按距离升序
func (s *StationService) FindNearby(ctx context.Context, lat, lng, radiusKm float64) ([]*models.Station, error) {
	verr := &models.ValidationError{}
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		verr.Add("lat", "must be between -90 and 90")
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		verr.Add("lng", "must be between -180 and 180")
	}
	if math.IsNaN(radiusKm) || math.IsInf(radiusKm, 0) || radiusKm < 0 {
		verr.Add("radiusKm", "must be a finite, non-negative number")
	}
	if verr.HasErrors() {
		return nil, verr
	}

	approved, err := s.store.ListByApproval(ctx, true)
	if err != nil {
		return nil, err
	}

	ranked := search.Nearby(approved, lat, lng, radiusKm)
	out := make([]*models.Station, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.Station)
	}
	return out, nil
}

// GetAvailability 固定的半小时时段，08:00 到 19:30
// 不查询预约数据，也不检查站点是否存在
func (s *StationService) GetAvailability(stationID int64, date string) ([]string, error) {
	day, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return nil, models.NewValidationError("date", "must be an ISO-8601 date (YYYY-MM-DD)")
	}

	slots := make([]string, 0, 24)
	for t := slotStart; t <= slotLastFrom; t += slotStep {
		slots = append(slots, day.Add(t).Format(SlotLayout))
	}
	return slots, nil
}

// GetTotalEarnings 站点收益，任何失败都返回 nil
func (s *StationService) GetTotalEarnings(ctx context.Context, stationID int64) *models.Earnings {
	earnings, err := s.earnings.GetEarnings(ctx, stationID)
	if err != nil {
		s.logger.Warn("Earnings unavailable", zap.Int64("station_id", stationID), zap.Error(err))
		return nil
	}
	return earnings
}

// Summary 站点统计，用于 websocket 初始消息
func (s *StationService) Summary(ctx context.Context) (*ws.InitData, error) {
	all, err := s.store.ListStations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}

	data := &ws.InitData{TotalStations: len(all)}
	for _, st := range all {
		if st.Approved {
			data.ApprovedStations++
		} else {
			data.UnapprovedStations++
		}
	}
	return data, nil
}
