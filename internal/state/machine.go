package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"
)

// 审批状态
const (
	StateUnapproved = "unapproved"
	StateApproved   = "approved"
)

// 审批事件
const (
	EventApprove = "approve"
	EventReject  = "reject"
)

// FromApproved 审批标志对应的状态
func FromApproved(approved bool) string {
	if approved {
		return StateApproved
	}
	return StateUnapproved
}

// EventFor 审批决定对应的事件
func EventFor(approved bool) string {
	if approved {
		return EventApprove
	}
	return EventReject
}

// Transition 一次审批状态转换的结果
type Transition struct {
	StationID int64
	From      string
	To        string
	Changed   bool
}

// Machine 站点审批状态机
// 每次审批按站点当前状态新建，不跨请求保存
type Machine struct {
	stationID int64
	fsm       *fsm.FSM
	onChange  func(stationID int64, from, to string)
}

// NewMachine 创建审批状态机
func NewMachine(stationID int64, approved bool, onChange func(stationID int64, from, to string)) *Machine {
	m := &Machine{
		stationID: stationID,
		onChange:  onChange,
	}

	m.fsm = fsm.NewFSM(
		FromApproved(approved),
		fsm.Events{
			{Name: EventApprove, Src: []string{StateUnapproved, StateApproved}, Dst: StateApproved},
			{Name: EventReject, Src: []string{StateUnapproved, StateApproved}, Dst: StateUnapproved},
		},
		fsm.Callbacks{
			"after_event": func(ctx context.Context, e *fsm.Event) {
				if m.onChange != nil && e.Src != e.Dst {
					m.onChange(m.stationID, e.Src, e.Dst)
				}
			},
		},
	)

	return m
}

// Current 当前状态
func (m *Machine) Current() string {
	return m.fsm.Current()
}

// Approved 当前是否已审批
func (m *Machine) Approved() bool {
	return m.fsm.Current() == StateApproved
}

// Decide 应用审批决定，重复的决定不报错，Changed 为 false
func (m *Machine) Decide(ctx context.Context, approved bool) (Transition, error) {
	from := m.fsm.Current()
	event := EventFor(approved)

	if err := m.fsm.Event(ctx, event); err != nil {
		var noTransition fsm.NoTransitionError
		if !errors.As(err, &noTransition) {
			return Transition{}, fmt.Errorf("trigger event %s: %w", event, err)
		}
	}

	to := m.fsm.Current()
	return Transition{StationID: m.stationID, From: from, To: to, Changed: from != to}, nil
}
