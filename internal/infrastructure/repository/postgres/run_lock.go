package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

const runLockNamespace = "docuclean.run:"

// RunLock holds a session advisory lock per document for the length of a
// run. The lock lives on a dedicated pooled connection, so a worker that
// dies releases it when postgres closes the session.
type RunLock struct {
	db *sql.DB
}

func NewRunLock(db *sql.DB) *RunLock {
	return &RunLock{db: db}
}

func (l *RunLock) TryAcquire(ctx context.Context, documentID string) (func(), bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("open lock connection: %w", err)
	}

	key := runLockNamespace + documentID
	var acquired bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, key).Scan(&acquired); err != nil {
		_ = conn.Close()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		_ = conn.Close()
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_unlock(hashtext($1))`, key); err != nil {
			slog.Warn("run_lock_release_failed", "document_id", documentID, "error", err)
		}
		_ = conn.Close()
	}
	return release, true, nil
}
