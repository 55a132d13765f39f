package approval

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voltex/riskflow/internal/approval/events"
	"github.com/voltex/riskflow/internal/booking"
	"github.com/voltex/riskflow/pkg/errors"
	"github.com/voltex/riskflow/pkg/metrics"
	"github.com/voltex/riskflow/pkg/models"
)

// Store persists task state across transitions. Implementations must
// tolerate repeated saves of the same task (upsert semantics).
type Store interface {
	SaveTask(ctx context.Context, snap Snapshot) error
}

// Manager owns the live approval task set. Distinct tasks are fully
// independent; each task serializes its own transitions. Events are
// published and state persisted after a transition commits, outside the
// task lock.
type Manager struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*Task

	builder   *Builder
	publisher events.Publisher
	store     Store
	booker    booking.Booker
	log       *zap.Logger
}

// NewManager builds a task manager. store may be nil (no persistence);
// publisher may be nil (no notifications).
func NewManager(builder *Builder, publisher events.Publisher, store Store, booker booking.Booker, log *zap.Logger) *Manager {
	return &Manager{
		tasks:     make(map[uuid.UUID]*Task),
		builder:   builder,
		publisher: publisher,
		store:     store,
		booker:    booker,
		log:       log,
	}
}

// Create builds a task for an assessed, non-blocked trade, registers it
// and notifies the first approver.
func (m *Manager) Create(ctx context.Context, trade *models.Trade, assessment *models.RiskAssessment, level models.RiskLevel, approvers []models.Role) (Snapshot, error) {
	task, err := NewTask(trade, assessment, level, approvers)
	if err != nil {
		return Snapshot{}, err
	}

	m.mu.Lock()
	m.tasks[task.ID()] = task
	m.mu.Unlock()

	metrics.TasksOpen.Inc()

	snap := task.Snapshot()
	m.persist(ctx, snap)

	created := events.Event{
		Type:    events.TypeTaskCreated,
		TaskID:  snap.ID,
		TradeID: snap.TradeID,
		Status:  snap.Status,
		Level:   snap.Level.String(),
		At:      snap.CreatedAt,
	}
	m.publish(ctx, created)

	if next, ok := snap.CurrentApprover(); ok {
		needed := created
		needed.Type = events.TypeApproverNeeded
		needed.Role = next
		m.publish(ctx, needed)
	}

	m.log.Info("approval task created",
		zap.String("task_id", snap.ID.String()),
		zap.String("trade_id", snap.TradeID.String()),
		zap.String("level", snap.Level.String()),
		zap.Int("chain_length", len(snap.RequiredApprovals)),
	)

	return snap, nil
}

// Restore re-registers open tasks loaded from the store at startup.
func (m *Manager) Restore(snaps []Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, snap := range snaps {
		if snap.Status.Terminal() {
			continue
		}
		m.tasks[snap.ID] = Restore(snap)
		metrics.TasksOpen.Inc()
	}
}

// Get returns a snapshot of one task.
func (m *Manager) Get(taskID uuid.UUID) (Snapshot, error) {
	task, err := m.find(taskID)
	if err != nil {
		return Snapshot{}, err
	}
	return task.Snapshot(), nil
}

// List returns snapshots of all live tasks, optionally filtered by status.
func (m *Manager) List(status models.TaskStatus) []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Snapshot, 0, len(m.tasks))
	for _, task := range m.tasks {
		snap := task.Snapshot()
		if status != "" && snap.Status != status {
			continue
		}
		out = append(out, snap)
	}
	return out
}

// Steps resolves the workflow steps for a task's approver chain.
func (m *Manager) Steps(snap Snapshot) []Step {
	return m.builder.StepsFor(snap.RequiredApprovals)
}

// Decide routes an approver's decision to the task.
func (m *Manager) Decide(ctx context.Context, taskID uuid.UUID, role models.Role, decision models.Decision, comment string) (Snapshot, error) {
	task, err := m.find(taskID)
	if err != nil {
		return Snapshot{}, err
	}

	ev, err := task.RecordDecision(role, decision, comment)
	if err != nil {
		return Snapshot{}, err
	}

	metrics.DecisionsTotal.WithLabelValues(string(role), string(decision)).Inc()

	snap := task.Snapshot()
	m.finishTransition(ctx, snap, ev)

	m.log.Info("approval decision recorded",
		zap.String("task_id", snap.ID.String()),
		zap.String("role", string(role)),
		zap.String("decision", string(decision)),
		zap.String("status", string(snap.Status)),
		zap.Int("cursor", snap.CurrentIndex),
	)

	return snap, nil
}

// Execute books an approved task's trade with the execution venue.
func (m *Manager) Execute(ctx context.Context, taskID uuid.UUID) (*booking.Receipt, Snapshot, error) {
	task, err := m.find(taskID)
	if err != nil {
		return nil, Snapshot{}, err
	}

	receipt, ev, err := task.Execute(ctx, m.booker)
	if err != nil {
		return nil, Snapshot{}, err
	}

	snap := task.Snapshot()
	m.finishTransition(ctx, snap, ev)

	m.log.Info("approval task executed",
		zap.String("task_id", snap.ID.String()),
		zap.String("trade_id", snap.TradeID.String()),
		zap.String("booking_reference", receipt.Reference),
	)

	return receipt, snap, nil
}

// Cancel aborts a pending or approved task with a rollback notification.
func (m *Manager) Cancel(ctx context.Context, taskID uuid.UUID, reason string) (Snapshot, error) {
	task, err := m.find(taskID)
	if err != nil {
		return Snapshot{}, err
	}

	ev, err := task.Cancel(reason)
	if err != nil {
		return Snapshot{}, err
	}

	snap := task.Snapshot()
	m.finishTransition(ctx, snap, ev)

	m.log.Info("approval task cancelled",
		zap.String("task_id", snap.ID.String()),
		zap.String("reason", reason),
	)

	return snap, nil
}

func (m *Manager) find(taskID uuid.UUID) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return nil, errors.Newf(errors.KindNotFound, "approval task %s not found", taskID)
	}
	return task, nil
}

func (m *Manager) finishTransition(ctx context.Context, snap Snapshot, ev events.Event) {
	if snap.Status.Terminal() {
		metrics.TasksTerminal.WithLabelValues(string(snap.Status)).Inc()
		metrics.TasksOpen.Dec()
	}
	m.persist(ctx, snap)
	m.publish(ctx, ev)
}

func (m *Manager) persist(ctx context.Context, snap Snapshot) {
	if m.store == nil {
		return
	}
	if err := m.store.SaveTask(ctx, snap); err != nil {
		// Persistence is best effort; in-memory state stays authoritative.
		m.log.Error("failed to persist approval task",
			zap.String("task_id", snap.ID.String()),
			zap.Error(err),
		)
	}
}

func (m *Manager) publish(ctx context.Context, ev events.Event) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(ctx, ev); err != nil {
		m.log.Error("failed to publish workflow event",
			zap.String("event_type", string(ev.Type)),
			zap.String("task_id", ev.TaskID.String()),
			zap.Error(err),
		)
	}
}
