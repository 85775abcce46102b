package persist

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/l1jgo/gamefactory/internal/core/ident"
	"github.com/l1jgo/gamefactory/internal/core/tag"
	"github.com/l1jgo/gamefactory/internal/entity"
)

// Beginner starts transactions. *DB and *pgxpool.Pool satisfy it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// SnapshotRepo stores the live reference set so a restarted factory can
// re-announce what it held.
type SnapshotRepo struct {
	db Beginner
}

func NewSnapshotRepo(db Beginner) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// Identities are stored bit-for-bit in a signed BIGINT.
func dbID(id ident.Identity) int64 { return int64(id) }

// Save replaces the stored snapshot with refs in a single transaction.
func (r *SnapshotRepo) Save(ctx context.Context, refs []entity.Summary) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("snapshot begin: %w", err)
	}
	defer tx.Rollback(ctx)

	ids := make([]int64, 0, len(refs))
	for _, s := range refs {
		ids = append(ids, dbID(s.ID))
	}
	// Clear rows that are gone first so a reused slot does not collide.
	if _, err := tx.Exec(ctx,
		`DELETE FROM reference_snapshot WHERE NOT (id = ANY($1))`, ids,
	); err != nil {
		return fmt.Errorf("snapshot prune: %w", err)
	}

	for _, s := range refs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO reference_snapshot (id, slot, base_id, type, name, x, y, z, saved_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
			 ON CONFLICT (id) DO UPDATE SET
			   slot = EXCLUDED.slot, base_id = EXCLUDED.base_id, type = EXCLUDED.type,
			   name = EXCLUDED.name, x = EXCLUDED.x, y = EXCLUDED.y, z = EXCLUDED.z,
			   saved_at = EXCLUDED.saved_at`,
			dbID(s.ID), int32(s.Slot), int32(s.BaseID), int32(s.Type),
			s.Name, s.Pos.X, s.Pos.Y, s.Pos.Z,
		); err != nil {
			return fmt.Errorf("snapshot upsert %v: %w", s.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// Load returns the stored snapshot ordered by identity.
func (r *SnapshotRepo) Load(ctx context.Context) ([]entity.Summary, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot begin: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`SELECT id, slot, base_id, type, name, x, y, z FROM reference_snapshot ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot query: %w", err)
	}
	defer rows.Close()

	var out []entity.Summary
	for rows.Next() {
		var (
			id              int64
			slot, base, typ int32
			s               entity.Summary
		)
		if err := rows.Scan(&id, &slot, &base, &typ, &s.Name, &s.Pos.X, &s.Pos.Y, &s.Pos.Z); err != nil {
			return nil, fmt.Errorf("snapshot scan: %w", err)
		}
		s.ID = ident.Identity(id)
		s.Slot = ident.SlotID(slot)
		s.BaseID = uint32(base)
		s.Type = tag.Tag(typ)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot rows: %w", err)
	}
	return out, nil
}
