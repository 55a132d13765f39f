// Package booking defines the boundary to the external trade-booking
// collaborator that executes fully approved trades.
package booking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voltex/riskflow/pkg/models"
)

// Receipt confirms that a trade was booked for execution.
type Receipt struct {
	ID        uuid.UUID `json:"id"`
	TaskID    uuid.UUID `json:"task_id"`
	TradeID   uuid.UUID `json:"trade_id"`
	Reference string    `json:"reference"`
	BookedAt  time.Time `json:"booked_at"`
}

// Booker books an approved trade with the execution venue. Book must be
// idempotent per task ID: retrying after a transient failure must not
// double-book.
type Booker interface {
	Book(ctx context.Context, trade *models.Trade, taskID uuid.UUID) (*Receipt, error)
}

// SimBooker is an in-memory booker for development and tests. It is
// idempotent: repeated bookings for the same task return the original
// receipt.
type SimBooker struct {
	mu       sync.Mutex
	receipts map[uuid.UUID]*Receipt
	seq      int
}

// NewSimBooker returns an empty simulated booker.
func NewSimBooker() *SimBooker {
	return &SimBooker{receipts: make(map[uuid.UUID]*Receipt)}
}

// Book records the trade and returns a receipt keyed on the task ID.
func (b *SimBooker) Book(_ context.Context, trade *models.Trade, taskID uuid.UUID) (*Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if r, ok := b.receipts[taskID]; ok {
		return r, nil
	}

	b.seq++
	r := &Receipt{
		ID:        uuid.New(),
		TaskID:    taskID,
		TradeID:   trade.ID,
		Reference: fmt.Sprintf("SIM-%06d", b.seq),
		BookedAt:  time.Now().UTC(),
	}
	b.receipts[taskID] = r
	return r, nil
}
