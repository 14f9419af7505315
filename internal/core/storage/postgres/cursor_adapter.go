package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/fenceline-lab/fenceline/internal/core/storage"
)

// CursorAdapter implements storage.CursorStore on the same database as
// the event log, so the committed position survives restarts together
// with the log itself.
type CursorAdapter struct {
	db         *sql.DB
	stmtLoad   *sql.Stmt
	stmtCommit *sql.Stmt
}

// NewCursorAdapter prepares the cursor statements against an existing
// database handle (typically Adapter.DB()).
func NewCursorAdapter(db *sql.DB) (*CursorAdapter, error) {
	stmtLoad, err := db.Prepare(queryLoadCursor)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare loadCursor statement: %w", err)
	}

	stmtCommit, err := db.Prepare(queryCommitCursor)
	if err != nil {
		stmtLoad.Close()
		return nil, fmt.Errorf("failed to prepare commitCursor statement: %w", err)
	}

	return &CursorAdapter{db: db, stmtLoad: stmtLoad, stmtCommit: stmtCommit}, nil
}

// Load returns the last committed log position.
// Returns storage.ErrCursorMissing before the first commit.
func (c *CursorAdapter) Load(ctx context.Context) (int64, error) {
	var position int64
	err := c.stmtLoad.QueryRowContext(ctx).Scan(&position)
	if err == sql.ErrNoRows {
		return 0, storage.ErrCursorMissing
	}
	if err != nil {
		return 0, storage.Unavailable(fmt.Errorf("failed to load cursor: %w", err))
	}
	return position, nil
}

// Commit durably records position as the last acknowledged event.
// Called strictly after the event's side effects have been applied.
func (c *CursorAdapter) Commit(ctx context.Context, position int64) error {
	if _, err := c.stmtCommit.ExecContext(ctx, position); err != nil {
		return storage.Unavailable(fmt.Errorf("failed to commit cursor: %w", err))
	}

	slog.Debug("[Postgres] Committed cursor", "position", position)
	return nil
}

// Close releases the prepared statements. The shared database handle is
// owned by the event log adapter and is not closed here.
func (c *CursorAdapter) Close() error {
	if c.stmtLoad != nil {
		c.stmtLoad.Close()
	}
	if c.stmtCommit != nil {
		c.stmtCommit.Close()
	}
	return nil
}
