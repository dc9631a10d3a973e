package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/langchou/chargehive/internal/models"
	"github.com/langchou/chargehive/internal/repository"
	"github.com/langchou/chargehive/pkg/ws"
)

// AddPort 给站点添加端口
func (s *StationService) AddPort(ctx context.Context, stationID int64, in models.PortInput) (*models.Port, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	p := in.ToPort(stationID)
	if err := s.store.CreatePort(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("Port added",
		zap.Int64("station_id", stationID),
		zap.Int64("port_id", p.ID),
		zap.String("connector_type", p.ConnectorType))
	s.publish(ws.MsgTypePortAdded, p)
	return p, nil
}

// UpdatePort 所有者更新端口，返回端口所属站点
func (s *StationService) UpdatePort(ctx context.Context, ownerID, portID int64, in models.PortInput) (*models.Station, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var (
		updated *models.Station
		port    *models.Port
	)
	err := s.store.RunInTx(ctx, func(tx repository.Store) error {
		var err error
		if port, err = tx.GetPort(ctx, portID); err != nil {
			return err
		}
		st, err := tx.GetStation(ctx, port.StationID)
		if err != nil {
			return err
		}
		if st.OwnerID != ownerID {
			return fmt.Errorf("%w: station %d, owner %d", models.ErrOwnershipMismatch, st.ID, ownerID)
		}

		port.ConnectorType = strings.TrimSpace(in.ConnectorType)
		port.MaxPowerKw = in.MaxPowerKw
		port.PricePerHour = in.PricePerHour
		if err := tx.UpdatePort(ctx, port); err != nil {
			return err
		}

		updated, err = tx.GetStation(ctx, st.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Port updated", zap.Int64("station_id", updated.ID), zap.Int64("port_id", portID))
	s.publish(ws.MsgTypePortUpdated, port)
	return updated, nil
}

// RemovePort 删除站点下的端口
func (s *StationService) RemovePort(ctx context.Context, stationID, portID int64) error {
	err := s.store.RunInTx(ctx, func(tx repository.Store) error {
		exists, err := tx.StationExists(ctx, stationID)
		if err != nil {
			return err
		}
		if !exists {
			return models.StationNotFound(stationID)
		}
		return tx.DeletePort(ctx, stationID, portID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Port removed", zap.Int64("station_id", stationID), zap.Int64("port_id", portID))
	s.publish(ws.MsgTypePortRemoved, PortRemovedEvent{StationID: stationID, PortID: portID})
	return nil
}

// ListPorts 站点的端口，站点不存在时返回 NotFound
func (s *StationService) ListPorts(ctx context.Context, stationID int64) ([]*models.Port, error) {
	st, err := s.store.GetStation(ctx, stationID)
	if err != nil {
		return nil, err
	}
	return st.Ports, nil
}

// GetPortInfo 只在指定站点内查找端口
func (s *StationService) GetPortInfo(ctx context.Context, stationID, portID int64) (*models.Port, error) {
	st, err := s.store.GetStation(ctx, stationID)
	if err != nil {
		return nil, err
	}
	p, ok := st.FindPort(portID)
	if !ok {
		return nil, fmt.Errorf("port %d in station %d: %w", portID, stationID, models.ErrNotFound)
	}
	return p, nil
}
