// Package store persists approval tasks and their decision history so
// in-flight workflows survive a restart. Entity shapes and invariants
// follow the in-memory model; the store is a record, not the authority.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/voltex/riskflow/internal/approval"
	"github.com/voltex/riskflow/internal/booking"
	"github.com/voltex/riskflow/internal/config"
	"github.com/voltex/riskflow/pkg/models"
)

// TaskRecord is the persisted form of an approval task. Trade,
// assessment and receipt are stored as JSON snapshots; they are
// immutable for the task's lifetime so no relational decomposition is
// needed.
type TaskRecord struct {
	ID             string `gorm:"primaryKey;size:36"`
	TradeID        string `gorm:"size:36;index"`
	Status         string `gorm:"size:16;index"`
	Level          string `gorm:"size:16"`
	CurrentIndex   int
	ChainJSON      []byte
	TradeJSON      []byte
	AssessmentJSON []byte
	ReceiptJSON    []byte
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Decisions []DecisionRecord `gorm:"foreignKey:TaskID;references:ID"`
}

// DecisionRecord is one entry of a task's append-only approval history.
type DecisionRecord struct {
	TaskID    string `gorm:"primaryKey;size:36"`
	Seq       int    `gorm:"primaryKey"`
	Role      string `gorm:"size:32"`
	Decision  string `gorm:"size:16"`
	Comment   string
	Timestamp time.Time
}

// Store is a gorm-backed task store (sqlite or postgres).
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

var _ approval.Store = (*Store)(nil)

// Open connects to the configured backend and migrates the schema.
// Driver "none" (or empty) returns a nil store, which the manager
// treats as no persistence.
func Open(cfg config.StoreConfig, log *zap.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}

	if err := db.AutoMigrate(&TaskRecord{}, &DecisionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate task store: %w", err)
	}

	log.Info("task store ready", zap.String("driver", cfg.Driver))
	return &Store{db: db, log: log}, nil
}

// SaveTask upserts the task and appends any new decision records.
func (s *Store) SaveTask(ctx context.Context, snap approval.Snapshot) error {
	record, decisions, err := toRecord(snap)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(record).Error; err != nil {
			return fmt.Errorf("save task %s: %w", snap.ID, err)
		}

		if len(decisions) == 0 {
			return nil
		}
		// History is append-only; existing rows never change.
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&decisions).Error; err != nil {
			return fmt.Errorf("save decisions for task %s: %w", snap.ID, err)
		}
		return nil
	})
}

// LoadOpenTasks returns snapshots of all pending and approved tasks,
// used to resume workflows after a restart.
func (s *Store) LoadOpenTasks(ctx context.Context) ([]approval.Snapshot, error) {
	var records []TaskRecord
	err := s.db.WithContext(ctx).
		Preload("Decisions", func(db *gorm.DB) *gorm.DB { return db.Order("seq") }).
		Where("status IN ?", []string{string(models.TaskPending), string(models.TaskApproved)}).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("load open tasks: %w", err)
	}

	snaps := make([]approval.Snapshot, 0, len(records))
	for _, record := range records {
		snap, err := fromRecord(record)
		if err != nil {
			s.log.Error("skipping unreadable task record",
				zap.String("task_id", record.ID),
				zap.Error(err),
			)
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func toRecord(snap approval.Snapshot) (*TaskRecord, []DecisionRecord, error) {
	chainJSON, err := json.Marshal(snap.RequiredApprovals)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal chain: %w", err)
	}
	tradeJSON, err := json.Marshal(snap.Trade)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal trade: %w", err)
	}
	assessmentJSON, err := json.Marshal(snap.Assessment)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal assessment: %w", err)
	}
	var receiptJSON []byte
	if snap.Receipt != nil {
		if receiptJSON, err = json.Marshal(snap.Receipt); err != nil {
			return nil, nil, fmt.Errorf("marshal receipt: %w", err)
		}
	}

	record := &TaskRecord{
		ID:             snap.ID.String(),
		TradeID:        snap.TradeID.String(),
		Status:         string(snap.Status),
		Level:          snap.Level.String(),
		CurrentIndex:   snap.CurrentIndex,
		ChainJSON:      chainJSON,
		TradeJSON:      tradeJSON,
		AssessmentJSON: assessmentJSON,
		ReceiptJSON:    receiptJSON,
		CreatedAt:      snap.CreatedAt,
		UpdatedAt:      snap.UpdatedAt,
	}

	decisions := make([]DecisionRecord, 0, len(snap.History))
	for i, rec := range snap.History {
		decisions = append(decisions, DecisionRecord{
			TaskID:    record.ID,
			Seq:       i,
			Role:      string(rec.Role),
			Decision:  string(rec.Decision),
			Comment:   rec.Comment,
			Timestamp: rec.Timestamp,
		})
	}

	return record, decisions, nil
}

func fromRecord(record TaskRecord) (approval.Snapshot, error) {
	id, err := uuid.Parse(record.ID)
	if err != nil {
		return approval.Snapshot{}, fmt.Errorf("parse task id: %w", err)
	}
	tradeID, err := uuid.Parse(record.TradeID)
	if err != nil {
		return approval.Snapshot{}, fmt.Errorf("parse trade id: %w", err)
	}

	var chain []models.Role
	if err := json.Unmarshal(record.ChainJSON, &chain); err != nil {
		return approval.Snapshot{}, fmt.Errorf("unmarshal chain: %w", err)
	}
	var trade models.Trade
	if err := json.Unmarshal(record.TradeJSON, &trade); err != nil {
		return approval.Snapshot{}, fmt.Errorf("unmarshal trade: %w", err)
	}
	var assessment models.RiskAssessment
	if err := json.Unmarshal(record.AssessmentJSON, &assessment); err != nil {
		return approval.Snapshot{}, fmt.Errorf("unmarshal assessment: %w", err)
	}
	var receipt *booking.Receipt
	if len(record.ReceiptJSON) > 0 {
		receipt = &booking.Receipt{}
		if err := json.Unmarshal(record.ReceiptJSON, receipt); err != nil {
			return approval.Snapshot{}, fmt.Errorf("unmarshal receipt: %w", err)
		}
	}

	level, _ := models.ParseRiskLevel(record.Level)

	history := make([]models.ApprovalRecord, 0, len(record.Decisions))
	for _, d := range record.Decisions {
		history = append(history, models.ApprovalRecord{
			Role:      models.Role(d.Role),
			Decision:  models.Decision(d.Decision),
			Comment:   d.Comment,
			Timestamp: d.Timestamp,
		})
	}

	return approval.Snapshot{
		ID:                id,
		TradeID:           tradeID,
		Trade:             &trade,
		Assessment:        &assessment,
		Level:             level,
		RequiredApprovals: chain,
		CurrentIndex:      record.CurrentIndex,
		History:           history,
		Status:            models.TaskStatus(record.Status),
		Receipt:           receipt,
		CreatedAt:         record.CreatedAt,
		UpdatedAt:         record.UpdatedAt,
	}, nil
}
