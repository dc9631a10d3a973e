package models

import "time"

// 审计动作
const (
	ActionApproveStation = "APPROVE_STATION"
	ActionRejectStation  = "REJECT_STATION"

	TargetEntityStation = "Station"
)

// ApprovalDecision 审批决定（状态转换的载荷，不单独持久化）
type ApprovalDecision struct {
	StationID int64  `json:"stationId" binding:"required"`
	Approved  bool   `json:"approved"`
	Reason    string `json:"reason,omitempty"`
}

// Action 对应的审计动作
func (d ApprovalDecision) Action() string {
	if d.Approved {
		return ActionApproveStation
	}
	return ActionRejectStation
}

// AuditRecord 审计记录，只追加不修改
type AuditRecord struct {
	ID            string    `json:"id" db:"id"`
	AdminUsername string    `json:"adminUsername" db:"admin_username"`
	Action        string    `json:"action" db:"action"`
	TargetEntity  string    `json:"targetEntity" db:"target_entity"`
	TargetID      int64     `json:"targetId" db:"target_id"`
	Details       string    `json:"details" db:"details"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}

// Earnings 站点收益（来自预约服务）
type Earnings struct {
	StationID              int64   `json:"stationId"`
	TotalEarnings          float64 `json:"totalEarnings"`
	TotalCompletedBookings int64   `json:"totalCompletedBookings"`
}
