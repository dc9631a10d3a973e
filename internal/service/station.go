package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/langchou/chargehive/internal/api/identity"
	"github.com/langchou/chargehive/internal/api/upstream"
	"github.com/langchou/chargehive/internal/metrics"
	"github.com/langchou/chargehive/internal/models"
	"github.com/langchou/chargehive/internal/repository"
	"github.com/langchou/chargehive/internal/state"
	"github.com/langchou/chargehive/pkg/ws"
)

// IdentityVerifier 身份服务查询
// 错误按 upstream.Classify 分为 NotFound 和 Unavailable
type IdentityVerifier interface {
	GetUser(ctx context.Context, userID int64) (*identity.User, error)
}

// EarningsProvider 预约服务收益查询
type EarningsProvider interface {
	GetEarnings(ctx context.Context, stationID int64) (*models.Earnings, error)
}

// EventPublisher 站点事件推送
type EventPublisher interface {
	Publish(eventType string, payload interface{})
}

// StationService 站点领域服务
type StationService struct {
	store    repository.Store
	identity IdentityVerifier
	earnings EarningsProvider
	events   EventPublisher
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewStationService 创建站点服务，events 和 m 可以为 nil
func NewStationService(
	store repository.Store,
	identityVerifier IdentityVerifier,
	earnings EarningsProvider,
	events EventPublisher,
	logger *zap.Logger,
	m *metrics.Metrics,
) *StationService {
	return &StationService{
		store:    store,
		identity: identityVerifier,
		earnings: earnings,
		events:   events,
		logger:   logger,
		metrics:  m,
	}
}

// CreateStation 创建站点
// 先确认所有者存在再写入，身份服务不可用时拒绝创建
func (s *StationService) CreateStation(ctx context.Context, ownerID int64, in models.StationInput) (*models.Station, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if err := s.verifyOwner(ctx, ownerID); err != nil {
		return nil, err
	}

	st := in.ToStation(ownerID)
	if err := s.store.CreateStation(ctx, st); err != nil {
		return nil, fmt.Errorf("create station: %w", err)
	}

	s.metrics.IncStationsCreated()
	s.logger.Info("Station created",
		zap.Int64("station_id", st.ID),
		zap.Int64("owner_id", ownerID),
		zap.Int("ports", len(st.Ports)))
	s.publish(ws.MsgTypeStationCreated, st)
	return st, nil
}

// verifyOwner 每次都远程确认，不缓存
func (s *StationService) verifyOwner(ctx context.Context, ownerID int64) error {
	_, err := s.identity.GetUser(ctx, ownerID)
	switch upstream.Classify(err) {
	case upstream.Found:
		return nil
	case upstream.NotFound:
		return fmt.Errorf("%w: owner %d", models.ErrOwnerNotFound, ownerID)
	default:
		s.logger.Warn("Identity service unavailable, rejecting owner",
			zap.Int64("owner_id", ownerID), zap.Error(err))
		return fmt.Errorf("%w: owner %d: %w", models.ErrOwnerNotFound, ownerID, models.ErrUpstreamUnavailable)
	}
}

// GetStation 获取站点及端口
func (s *StationService) GetStation(ctx context.Context, id int64) (*models.Station, error) {
	return s.store.GetStation(ctx, id)
}

// UpdateStation 部分更新，审批状态和所有者不会被修改
func (s *StationService) UpdateStation(ctx context.Context, id int64, patch models.StationPatch) (*models.Station, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return s.store.GetStation(ctx, id)
	}

	var updated *models.Station
	err := s.store.RunInTx(ctx, func(tx repository.Store) error {
		if err := tx.UpdateStation(ctx, id, patch); err != nil {
			return err
		}
		var err error
		updated, err = tx.GetStation(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Station updated", zap.Int64("station_id", id))
	s.publish(ws.MsgTypeStationUpdated, updated)
	return updated, nil
}

// DeleteStation 删除站点及其全部端口
func (s *StationService) DeleteStation(ctx context.Context, id int64) error {
	if err := s.store.DeleteStation(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Station deleted", zap.Int64("station_id", id))
	s.publish(ws.MsgTypeStationDeleted, StationDeletedEvent{StationID: id})
	return nil
}

// SetApprovalStatus 设置审批状态
// 不写审计记录，重复设置相同状态是成功的空操作
func (s *StationService) SetApprovalStatus(ctx context.Context, d models.ApprovalDecision) (*models.Station, error) {
	var (
		st *models.Station
		tr state.Transition
	)
	err := s.store.RunInTx(ctx, func(tx repository.Store) error {
		var err error
		if st, err = tx.GetStation(ctx, d.StationID); err != nil {
			return err
		}

		m := state.NewMachine(st.ID, st.Approved, nil)
		if tr, err = m.Decide(ctx, d.Approved); err != nil {
			return err
		}
		if tr.Changed {
			if err := tx.SetApproved(ctx, st.ID, m.Approved()); err != nil {
				return err
			}
		}
		st.Approved = m.Approved()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Station approval status set",
		zap.Int64("station_id", d.StationID),
		zap.Bool("approved", d.Approved),
		zap.Bool("changed", tr.Changed),
		zap.String("reason", d.Reason))
	if tr.Changed {
		s.publish(ws.MsgTypeStationApprovalChanged, ApprovalChangedEvent{
			StationID: st.ID,
			Approved:  st.Approved,
			From:      tr.From,
			To:        tr.To,
		})
	}
	return st, nil
}

func (s *StationService) publish(eventType string, payload interface{}) {
	if s.events != nil {
		s.events.Publish(eventType, payload)
	}
}
