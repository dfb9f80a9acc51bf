package alteration

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cytobase/cytobase/errors"
)

// Writer is the write gateway for packed alteration rows. The transactional
// implementation lands each row as it arrives; the buffered one stages rows
// and lands them in batches on Flush. Callers always Flush once at the end
// of a run, which is a no-op on the transactional path.
type Writer interface {
	// WriteRow stores one packed row. Returns ErrDuplicate when the
	// (profile, entity) pair already has a row.
	WriteRow(ctx context.Context, profileID, entityID int, packed string) error
	// Flush lands any staged rows.
	Flush(ctx context.Context) error
}

// TransactionalWriter inserts each row immediately in its own statement.
type TransactionalWriter struct {
	db *sql.DB
}

// NewTransactionalWriter creates the direct-insert writer.
func NewTransactionalWriter(db *sql.DB) *TransactionalWriter {
	return &TransactionalWriter{db: db}
}

func (w *TransactionalWriter) WriteRow(ctx context.Context, profileID, entityID int, packed string) error {
	_, err := w.db.ExecContext(ctx, `
		INSERT INTO cell_alterations (profile_id, entity_id, packed)
		VALUES (?, ?, ?)`,
		profileID, entityID, packed)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return errors.NewDuplicateError("alteration row for profile %d entity %d already stored",
				profileID, entityID)
		}
		return errors.Wrapf(err, "failed to insert alteration row for profile %d entity %d",
			profileID, entityID)
	}
	return nil
}

func (w *TransactionalWriter) Flush(ctx context.Context) error {
	return nil
}

type stagedRow struct {
	profileID int
	entityID  int
	packed    string
}

// BufferedWriter stages rows in memory and lands them on Flush inside one
// transaction, in multi-row insert statements. Suited to full-file imports,
// where the loss of per-row durability buys a much faster load.
type BufferedWriter struct {
	db        *sql.DB
	staged    []stagedRow
	seen      map[[2]int]struct{}
	batchSize int
}

// NewBufferedWriter creates the staging writer.
func NewBufferedWriter(db *sql.DB) *BufferedWriter {
	return &BufferedWriter{
		db:        db,
		seen:      make(map[[2]int]struct{}),
		batchSize: 100,
	}
}

// WriteRow stages the row. Duplicates within the staged set are rejected
// here; duplicates against already-persisted rows surface on Flush.
func (w *BufferedWriter) WriteRow(ctx context.Context, profileID, entityID int, packed string) error {
	key := [2]int{profileID, entityID}
	if _, dup := w.seen[key]; dup {
		return errors.NewDuplicateError("alteration row for profile %d entity %d already staged",
			profileID, entityID)
	}
	w.seen[key] = struct{}{}
	w.staged = append(w.staged, stagedRow{profileID: profileID, entityID: entityID, packed: packed})
	return nil
}

// Flush lands every staged row in one transaction. The first failing batch
// aborts the whole flush and nothing is kept; the stage is cleared only on
// success.
func (w *BufferedWriter) Flush(ctx context.Context) error {
	if len(w.staged) == 0 {
		return nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	for start := 0; start < len(w.staged); start += w.batchSize {
		end := start + w.batchSize
		if end > len(w.staged) {
			end = len(w.staged)
		}
		batch := w.staged[start:end]

		var sb strings.Builder
		sb.WriteString(`INSERT INTO cell_alterations (profile_id, entity_id, packed) VALUES `)
		args := make([]interface{}, 0, len(batch)*3)
		for i, row := range batch {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?, ?)")
			args = append(args, row.profileID, row.entityID, row.packed)
		}
		if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
			return errors.Wrapf(err, "failed to flush alteration batch of %d rows", len(batch))
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit flush")
	}
	w.staged = nil
	w.seen = make(map[[2]int]struct{})
	return nil
}
