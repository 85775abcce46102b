package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/l1jgo/gamefactory/internal/core/ident"
	"github.com/l1jgo/gamefactory/internal/core/tag"
)

// Journal operations.
const (
	OpCreate  = "create"
	OpDestroy = "destroy"
	OpReclaim = "reclaim"
)

// JournalEntry is one reference lifecycle record.
type JournalEntry struct {
	Op   string
	ID   ident.Identity
	Slot ident.SlotID
	Type tag.Tag // zero for reclaim
}

// JournalRepo appends lifecycle records for audit and replay.
type JournalRepo struct {
	db Beginner
}

func NewJournalRepo(db Beginner) *JournalRepo {
	return &JournalRepo{db: db}
}

// Write atomically appends a batch of entries in a single transaction.
func (r *JournalRepo) Write(ctx context.Context, entries []JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		if _, err := tx.Exec(ctx,
			`INSERT INTO reference_journal (op, id, slot, type) VALUES ($1, $2, $3, $4)`,
			e.Op, dbID(e.ID), int32(e.Slot), int32(e.Type),
		); err != nil {
			return fmt.Errorf("journal insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Prune drops records older than cutoff.
func (r *JournalRepo) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `DELETE FROM reference_journal WHERE recorded_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("journal prune: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
