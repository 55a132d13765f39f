package models

import "time"

// Role identifies a party in the approval chain.
type Role string

const (
	RoleTrader      Role = "trader"
	RoleSupervisor  Role = "supervisor"
	RoleRiskManager Role = "risk_manager"
	RoleDirector    Role = "director"
)

// Decision is an approver's verdict on a trade.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ParseDecision maps a wire string to a Decision.
func ParseDecision(s string) (Decision, bool) {
	switch s {
	case "approve":
		return DecisionApprove, true
	case "reject":
		return DecisionReject, true
	}
	return "", false
}

// ApprovalRecord is one entry in a task's append-only approval history.
type ApprovalRecord struct {
	Role      Role      `json:"role"`
	Decision  Decision  `json:"decision"`
	Comment   string    `json:"comment,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TaskStatus is the lifecycle state of an approval task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskApproved  TaskStatus = "approved"
	TaskRejected  TaskStatus = "rejected"
	TaskCancelled TaskStatus = "cancelled"
	TaskExecuted  TaskStatus = "executed"
)

// Terminal reports whether the status admits no further decisions.
// Approved is terminal for decisions but still accepts execute/cancel.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskRejected, TaskCancelled, TaskExecuted:
		return true
	}
	return false
}
