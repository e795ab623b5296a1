package channel

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
)

// ChannelState is the assembled per-channel view: the success-only record
// joined with the most recent attempt. A channel that never succeeded has
// an empty LastSyncedVersion and must be reported as never synced, not as
// stale success.
type ChannelState struct {
	Channel           string
	LastSyncedVersion string
	LastSyncedAt      time.Time
	LastAttemptAt     time.Time
	// LastError is the most recent attempt's error, empty when that
	// attempt succeeded.
	LastError string
}

// NeverSynced reports whether the channel has no successful sync on
// record.
func (s ChannelState) NeverSynced() bool { return s.LastSyncedVersion == "" }

// StateStore persists channel sync state in sqlite. Two tables with
// different write disciplines: channel_state is upserted only by
// successful syncs, sync_attempts is append-only and records every
// attempt. A failed attempt therefore can never corrupt the success
// record.
type StateStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStateStore initializes the channel state schema on the shared
// database handle.
func NewStateStore(db *sql.DB) (*StateStore, error) {
	s := &StateStore{db: db}
	if err := s.initialize(); err != nil {
		return nil, fmt.Errorf("initialize channel state schema: %w", err)
	}
	return s, nil
}

func (s *StateStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS channel_state (
		channel TEXT PRIMARY KEY,
		last_synced_version TEXT NOT NULL,
		last_synced_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS sync_attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		channel TEXT NOT NULL,
		version TEXT NOT NULL,
		attempted_at INTEGER NOT NULL,
		success INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_sync_attempts_channel ON sync_attempts(channel, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordSuccess upserts the success record and appends a successful
// attempt, in one transaction.
func (s *StateStore) RecordSuccess(ctx context.Context, channel, version string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return binderrors.StoreFailed("begin record success", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO channel_state (channel, last_synced_version, last_synced_at) VALUES (?, ?, ?)
		 ON CONFLICT(channel) DO UPDATE SET last_synced_version = excluded.last_synced_version, last_synced_at = excluded.last_synced_at`,
		channel, version, at.Unix(),
	)
	if err != nil {
		return binderrors.StoreFailed("upsert channel state", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sync_attempts (channel, version, attempted_at, success, error) VALUES (?, ?, ?, 1, '')`,
		channel, version, at.Unix(),
	)
	if err != nil {
		return binderrors.StoreFailed("append sync attempt", err)
	}
	if err := tx.Commit(); err != nil {
		return binderrors.StoreFailed("commit record success", err)
	}
	return nil
}

// RecordFailure appends a failed attempt. The success record is not
// touched.
func (s *StateStore) RecordFailure(ctx context.Context, channel, version string, at time.Time, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_attempts (channel, version, attempted_at, success, error) VALUES (?, ?, ?, 0, ?)`,
		channel, version, at.Unix(), msg,
	)
	if err != nil {
		return binderrors.StoreFailed("append sync attempt", err)
	}
	return nil
}

// State returns the assembled view for one channel, nil when the channel
// has neither a success record nor any attempt.
func (s *StateStore) State(ctx context.Context, channel string) (*ChannelState, error) {
	states, err := s.States(ctx)
	if err != nil {
		return nil, err
	}
	for i := range states {
		if states[i].Channel == channel {
			return &states[i], nil
		}
	}
	return nil, nil
}

// States assembles the view for every channel seen in either table,
// sorted by channel name.
func (s *StateStore) States(ctx context.Context) ([]ChannelState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byName := make(map[string]*ChannelState)

	rows, err := s.db.QueryContext(ctx,
		`SELECT channel, last_synced_version, last_synced_at FROM channel_state`)
	if err != nil {
		return nil, binderrors.StoreFailed("query channel state", err)
	}
	defer rows.Close()
	for rows.Next() {
		var st ChannelState
		var syncedAt int64
		if err := rows.Scan(&st.Channel, &st.LastSyncedVersion, &syncedAt); err != nil {
			return nil, binderrors.StoreFailed("scan channel state", err)
		}
		st.LastSyncedAt = time.Unix(syncedAt, 0).UTC()
		byName[st.Channel] = &st
	}
	if err := rows.Err(); err != nil {
		return nil, binderrors.StoreFailed("iterate channel state", err)
	}

	attempts, err := s.db.QueryContext(ctx,
		`SELECT channel, attempted_at, success, error FROM sync_attempts
		 WHERE id IN (SELECT MAX(id) FROM sync_attempts GROUP BY channel)`)
	if err != nil {
		return nil, binderrors.StoreFailed("query sync attempts", err)
	}
	defer attempts.Close()
	for attempts.Next() {
		var channel, errMsg string
		var attemptedAt int64
		var success bool
		if err := attempts.Scan(&channel, &attemptedAt, &success, &errMsg); err != nil {
			return nil, binderrors.StoreFailed("scan sync attempt", err)
		}
		st, ok := byName[channel]
		if !ok {
			st = &ChannelState{Channel: channel}
			byName[channel] = st
		}
		st.LastAttemptAt = time.Unix(attemptedAt, 0).UTC()
		if !success {
			st.LastError = errMsg
		}
	}
	if err := attempts.Err(); err != nil {
		return nil, binderrors.StoreFailed("iterate sync attempts", err)
	}

	out := make([]ChannelState, 0, len(byName))
	for _, st := range byName {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out, nil
}

// Attempts returns the full attempt history for one channel, newest
// first, capped at limit (0 = all).
func (s *StateStore) Attempts(ctx context.Context, channel string, limit int) ([]SyncAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT channel, version, attempted_at, success, error FROM sync_attempts WHERE channel = ? ORDER BY id DESC`
	args := []any{channel}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, binderrors.StoreFailed("query sync attempts", err)
	}
	defer rows.Close()

	var out []SyncAttempt
	for rows.Next() {
		var a SyncAttempt
		var attemptedAt int64
		if err := rows.Scan(&a.Channel, &a.Version, &attemptedAt, &a.Success, &a.Error); err != nil {
			return nil, binderrors.StoreFailed("scan sync attempt", err)
		}
		a.AttemptedAt = time.Unix(attemptedAt, 0).UTC()
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, binderrors.StoreFailed("iterate sync attempts", err)
	}
	return out, nil
}

// SyncAttempt is one row of the append-only attempts ledger.
type SyncAttempt struct {
	Channel     string
	Version     string
	AttemptedAt time.Time
	Success     bool
	Error       string
}
