// Package approval implements the multi-level approval workflow: the
// per-trade task state machine, the workflow step builder and the
// manager that owns the live task set.
package approval

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voltex/riskflow/internal/approval/events"
	"github.com/voltex/riskflow/internal/booking"
	"github.com/voltex/riskflow/pkg/errors"
	"github.com/voltex/riskflow/pkg/models"
)

// Task drives one trade through its resolved approver chain. The chain
// is fixed at creation; only RecordDecision, Execute and Cancel mutate
// the task, each atomically under the task's own lock. The referenced
// trade and assessment are immutable snapshots and are never written
// through the task.
type Task struct {
	mu sync.Mutex

	id                uuid.UUID
	trade             *models.Trade
	assessment        *models.RiskAssessment
	level             models.RiskLevel
	requiredApprovals []models.Role
	currentIndex      int
	history           []models.ApprovalRecord
	status            models.TaskStatus
	receipt           *booking.Receipt
	createdAt         time.Time
	updatedAt         time.Time
}

// Snapshot is a read-only copy of a task's state.
type Snapshot struct {
	ID                uuid.UUID               `json:"id"`
	TradeID           uuid.UUID               `json:"trade_id"`
	Trade             *models.Trade           `json:"trade"`
	Assessment        *models.RiskAssessment  `json:"assessment"`
	Level             models.RiskLevel        `json:"level"`
	RequiredApprovals []models.Role           `json:"required_approvals"`
	CurrentIndex      int                     `json:"current_approval_index"`
	History           []models.ApprovalRecord `json:"approval_history"`
	Status            models.TaskStatus       `json:"status"`
	Receipt           *booking.Receipt        `json:"receipt,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

// CurrentApprover returns the role authorized to act, if any.
func (s Snapshot) CurrentApprover() (models.Role, bool) {
	if s.Status != models.TaskPending || s.CurrentIndex >= len(s.RequiredApprovals) {
		return "", false
	}
	return s.RequiredApprovals[s.CurrentIndex], true
}

// NewTask creates a pending task for a trade with a non-blocked
// assessment. A blocked assessment is refused outright: blocked trades
// never enter the approval chain.
func NewTask(trade *models.Trade, assessment *models.RiskAssessment, level models.RiskLevel, approvers []models.Role) (*Task, error) {
	if trade == nil || assessment == nil {
		return nil, errors.New(errors.KindValidation, "trade and assessment are required")
	}
	if assessment.Blocked() {
		blockers := assessment.Blockers()
		return nil, errors.Newf(errors.KindBlockedAssessment,
			"trade %s is blocked by %d risk check(s); first: %s",
			trade.ID, len(blockers), blockers[0].Message)
	}
	if len(approvers) == 0 {
		return nil, errors.New(errors.KindValidation, "approver chain must not be empty")
	}

	now := time.Now().UTC()
	chain := make([]models.Role, len(approvers))
	copy(chain, approvers)

	return &Task{
		id:                uuid.New(),
		trade:             trade,
		assessment:        assessment,
		level:             level,
		requiredApprovals: chain,
		status:            models.TaskPending,
		createdAt:         now,
		updatedAt:         now,
	}, nil
}

// Restore rebuilds a task from a persisted snapshot; used to resume
// open tasks after a restart.
func Restore(s Snapshot) *Task {
	history := make([]models.ApprovalRecord, len(s.History))
	copy(history, s.History)
	chain := make([]models.Role, len(s.RequiredApprovals))
	copy(chain, s.RequiredApprovals)

	return &Task{
		id:                s.ID,
		trade:             s.Trade,
		assessment:        s.Assessment,
		level:             s.Level,
		requiredApprovals: chain,
		currentIndex:      s.CurrentIndex,
		history:           history,
		status:            s.Status,
		receipt:           s.Receipt,
		createdAt:         s.CreatedAt,
		updatedAt:         s.UpdatedAt,
	}
}

// ID returns the task identifier.
func (t *Task) ID() uuid.UUID { return t.id }

// Snapshot returns a consistent copy of the task's current state. The
// history slice is copied; callers cannot alias internal state.
func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Task) snapshotLocked() Snapshot {
	history := make([]models.ApprovalRecord, len(t.history))
	copy(history, t.history)
	chain := make([]models.Role, len(t.requiredApprovals))
	copy(chain, t.requiredApprovals)

	return Snapshot{
		ID:                t.id,
		TradeID:           t.trade.ID,
		Trade:             t.trade,
		Assessment:        t.assessment,
		Level:             t.level,
		RequiredApprovals: chain,
		CurrentIndex:      t.currentIndex,
		History:           history,
		Status:            t.status,
		Receipt:           t.receipt,
		CreatedAt:         t.createdAt,
		UpdatedAt:         t.updatedAt,
	}
}

// RecordDecision applies one approver's verdict. Only the role at the
// current cursor may act, and only while the task is pending; any other
// call returns InvalidTransition with zero state change. Approval
// advances the cursor; rejection is terminal regardless of position.
func (t *Task) RecordDecision(role models.Role, decision models.Decision, comment string) (events.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != models.TaskPending {
		return events.Event{}, errors.Newf(errors.KindInvalidTransition,
			"task %s is %s; decisions are no longer accepted", t.id, t.status)
	}
	current := t.requiredApprovals[t.currentIndex]
	if role != current {
		return events.Event{}, errors.Newf(errors.KindInvalidTransition,
			"role %s cannot act on task %s; awaiting %s", role, t.id, current)
	}
	if decision != models.DecisionApprove && decision != models.DecisionReject {
		return events.Event{}, errors.Newf(errors.KindInvalidTransition,
			"unknown decision %q", decision)
	}

	now := time.Now().UTC()
	t.history = append(t.history, models.ApprovalRecord{
		Role:      role,
		Decision:  decision,
		Comment:   comment,
		Timestamp: now,
	})
	t.updatedAt = now

	if decision == models.DecisionReject {
		t.status = models.TaskRejected
		return t.eventLocked(events.TypeRejected, role, comment), nil
	}

	t.currentIndex++
	if t.currentIndex >= len(t.requiredApprovals) {
		t.status = models.TaskApproved
		return t.eventLocked(events.TypeApproved, role, ""), nil
	}

	next := t.requiredApprovals[t.currentIndex]
	return t.eventLocked(events.TypeApproverNeeded, next, ""), nil
}

// Execute books the trade through the external collaborator. Valid only
// from approved. A booking failure leaves the task approved and returns
// ExecutionFailure; the call is safely retryable, idempotency-keyed on
// the task ID by the booker.
func (t *Task) Execute(ctx context.Context, booker booking.Booker) (*booking.Receipt, events.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != models.TaskApproved {
		return nil, events.Event{}, errors.Newf(errors.KindInvalidTransition,
			"task %s is %s; only approved tasks can be executed", t.id, t.status)
	}

	receipt, err := booker.Book(ctx, t.trade, t.id)
	if err != nil {
		return nil, events.Event{}, errors.Wrap(errors.KindExecutionFailure,
			"trade booking failed; task remains approved and the call may be retried", err)
	}

	t.status = models.TaskExecuted
	t.receipt = receipt
	t.updatedAt = time.Now().UTC()
	return receipt, t.eventLocked(events.TypeExecuted, "", ""), nil
}

// Cancel aborts a pending or approved task. The emitted event carries
// the rollback flag so provisional side effects can be reversed.
// Terminal tasks (rejected, executed, cancelled) cannot be cancelled.
func (t *Task) Cancel(reason string) (events.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != models.TaskPending && t.status != models.TaskApproved {
		return events.Event{}, errors.Newf(errors.KindInvalidTransition,
			"task %s is %s and cannot be cancelled", t.id, t.status)
	}

	t.status = models.TaskCancelled
	t.updatedAt = time.Now().UTC()

	ev := t.eventLocked(events.TypeCancelled, "", reason)
	ev.Rollback = true
	return ev, nil
}

func (t *Task) eventLocked(typ events.Type, role models.Role, reason string) events.Event {
	return events.Event{
		Type:    typ,
		TaskID:  t.id,
		TradeID: t.trade.ID,
		Status:  t.status,
		Role:    role,
		Level:   t.level.String(),
		Reason:  reason,
		At:      t.updatedAt,
	}
}
