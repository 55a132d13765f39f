// Package events carries workflow state-change notifications out of the
// approval engine. The engine only emits; delivery and rendering belong
// to the subscribing notification/UI layer.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/voltex/riskflow/pkg/models"
)

// Type enumerates workflow event types.
type Type string

const (
	TypeTaskCreated    Type = "task_created"
	TypeApproverNeeded Type = "approver_needed"
	TypeApproved       Type = "approved"
	TypeRejected       Type = "rejected"
	TypeExecuted       Type = "executed"
	TypeCancelled      Type = "cancelled"
)

// Event is one workflow state change. Role carries the next approver
// for approver_needed and the acting approver otherwise. Rollback is
// set on cancellation so already-applied side effects (provisional
// holds) can be reversed by the collaborator.
type Event struct {
	Type     Type              `json:"type"`
	TaskID   uuid.UUID         `json:"task_id"`
	TradeID  uuid.UUID         `json:"trade_id"`
	Status   models.TaskStatus `json:"status"`
	Role     models.Role       `json:"role,omitempty"`
	Level    string            `json:"level,omitempty"`
	Reason   string            `json:"reason,omitempty"`
	Rollback bool              `json:"rollback,omitempty"`
	At       time.Time         `json:"at"`
}
