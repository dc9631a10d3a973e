package service

// StationDeletedEvent 站点删除
type StationDeletedEvent struct {
	StationID int64 `json:"stationId"`
}

// ApprovalChangedEvent 审批状态变化
type ApprovalChangedEvent struct {
	StationID int64  `json:"stationId"`
	Approved  bool   `json:"approved"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// PortRemovedEvent 端口删除
type PortRemovedEvent struct {
	StationID int64 `json:"stationId"`
	PortID    int64 `json:"portId"`
}
