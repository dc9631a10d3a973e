package booking

import (
	"context"
	"fmt"

	"github.com/langchou/chargehive/internal/api/upstream"
	"github.com/langchou/chargehive/internal/models"
)

// ServiceName 预约服务的逻辑名
const ServiceName = "booking-service"

// Client 预约服务客户端
type Client struct {
	caller *upstream.Caller
}

// NewClient 创建预约服务客户端
func NewClient(caller *upstream.Caller) *Client {
	return &Client{caller: caller}
}

// GetEarnings 站点累计收益
func (c *Client) GetEarnings(ctx context.Context, stationID int64) (*models.Earnings, error) {
	var earnings models.Earnings
	if err := c.caller.GetJSON(ctx, fmt.Sprintf("/bookings/earnings/%d", stationID), &earnings); err != nil {
		return nil, fmt.Errorf("get earnings for station %d: %w", stationID, err)
	}
	if earnings.StationID == 0 {
		earnings.StationID = stationID
	}
	return &earnings, nil
}
