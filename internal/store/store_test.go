package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/voltex/riskflow/internal/approval"
	"github.com/voltex/riskflow/internal/config"
	"github.com/voltex/riskflow/pkg/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.StoreConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "tasks.db"),
	}
	s, err := Open(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, s)
	return s
}

func storedTask(t *testing.T, approvers ...models.Role) *approval.Task {
	t.Helper()
	trade, err := models.NewTrade(models.TradeParams{
		Type:      models.TradeTypeSpot,
		Direction: models.DirectionBuy,
		Volume:    decimal.NewFromInt(500),
		Price:     decimal.NewFromInt(600),
		Period:    "peak",
	})
	require.NoError(t, err)

	assessment := models.NewRiskAssessment([]models.RiskCheckResult{
		{CheckName: "credit_limit", Status: models.CheckPassed, Message: "credit limit check passed"},
		{CheckName: "price_deviation", Status: models.CheckWarning, Message: "price deviates 6.0% from market price"},
	})

	if len(approvers) == 0 {
		approvers = []models.Role{models.RoleTrader, models.RoleSupervisor}
	}
	task, err := approval.NewTask(trade, assessment, models.RiskLevelMedium, approvers)
	require.NoError(t, err)
	return task
}

func TestOpenWithoutDriverDisablesPersistence(t *testing.T) {
	s, err := Open(config.StoreConfig{Driver: "none"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(config.StoreConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestOpenUnknownDriverFails(t *testing.T) {
	_, err := Open(config.StoreConfig{Driver: "oracle"}, zaptest.NewLogger(t))
	require.Error(t, err)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	task := storedTask(t)
	_, err := task.RecordDecision(models.RoleTrader, models.DecisionApprove, "within limits")
	require.NoError(t, err)
	snap := task.Snapshot()

	require.NoError(t, s.SaveTask(ctx, snap))

	loaded, err := s.LoadOpenTasks(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	got := loaded[0]
	assert.Equal(t, snap.ID, got.ID)
	assert.Equal(t, snap.TradeID, got.TradeID)
	assert.Equal(t, models.TaskPending, got.Status)
	assert.Equal(t, models.RiskLevelMedium, got.Level)
	assert.Equal(t, snap.RequiredApprovals, got.RequiredApprovals)
	assert.Equal(t, 1, got.CurrentIndex)

	require.Len(t, got.History, 1)
	assert.Equal(t, models.RoleTrader, got.History[0].Role)
	assert.Equal(t, "within limits", got.History[0].Comment)

	require.NotNil(t, got.Trade)
	assert.True(t, snap.Trade.TotalValue.Equal(got.Trade.TotalValue))
	require.NotNil(t, got.Assessment)
	assert.Len(t, got.Assessment.Warnings(), 1)

	role, ok := got.CurrentApprover()
	require.True(t, ok)
	assert.Equal(t, models.RoleSupervisor, role)
}

func TestRepeatedSavesUpsert(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	task := storedTask(t)
	require.NoError(t, s.SaveTask(ctx, task.Snapshot()))

	_, err := task.RecordDecision(models.RoleTrader, models.DecisionApprove, "")
	require.NoError(t, err)
	require.NoError(t, s.SaveTask(ctx, task.Snapshot()))

	_, err = task.RecordDecision(models.RoleSupervisor, models.DecisionApprove, "")
	require.NoError(t, err)
	require.NoError(t, s.SaveTask(ctx, task.Snapshot()))

	loaded, err := s.LoadOpenTasks(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1, "one row per task regardless of save count")

	got := loaded[0]
	assert.Equal(t, models.TaskApproved, got.Status)
	require.Len(t, got.History, 2)
	assert.Equal(t, models.RoleTrader, got.History[0].Role)
	assert.Equal(t, models.RoleSupervisor, got.History[1].Role)
}

func TestLoadOpenTasksExcludesTerminal(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	open := storedTask(t)
	require.NoError(t, s.SaveTask(ctx, open.Snapshot()))

	rejected := storedTask(t)
	_, err := rejected.RecordDecision(models.RoleTrader, models.DecisionReject, "no")
	require.NoError(t, err)
	require.NoError(t, s.SaveTask(ctx, rejected.Snapshot()))

	cancelled := storedTask(t)
	_, err = cancelled.Cancel("superseded")
	require.NoError(t, err)
	require.NoError(t, s.SaveTask(ctx, cancelled.Snapshot()))

	loaded, err := s.LoadOpenTasks(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, open.ID(), loaded[0].ID)
}

func TestManagerRestoreFromStore(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	task := storedTask(t, models.RoleTrader, models.RoleSupervisor, models.RoleRiskManager)
	_, err := task.RecordDecision(models.RoleTrader, models.DecisionApprove, "")
	require.NoError(t, err)
	require.NoError(t, s.SaveTask(ctx, task.Snapshot()))

	loaded, err := s.LoadOpenTasks(ctx)
	require.NoError(t, err)

	restored := approval.Restore(loaded[0])
	_, err = restored.RecordDecision(models.RoleSupervisor, models.DecisionApprove, "")
	require.NoError(t, err)

	role, ok := restored.Snapshot().CurrentApprover()
	require.True(t, ok)
	assert.Equal(t, models.RoleRiskManager, role)
}
