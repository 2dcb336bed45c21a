package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/loggate/loggate/internal/core"
)

// GetQuota returns the stored quota record, or nil when none exists.
func (s *Store) GetQuota(ctx context.Context, name string) (*core.QuotaState, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("quota name is required")
	}

	row := s.DB.QueryRowContext(ctx, `
		SELECT event_count, window_start, quota_limit, window_unit, remote_enabled, exceeded_notified
		FROM quota_state
		WHERE name = ?
	`, name)

	state, err := scanQuota(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch quota: %w", err)
	}

	return state, nil
}

// PutQuota persists the full quota record inside a transaction so readers
// see either the previous or the new row.
func (s *Store) PutQuota(ctx context.Context, name string, state *core.QuotaState) (err error) {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("quota name is required")
	}
	if state == nil {
		return errors.New("quota state is required")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin quota update: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO quota_state (name, event_count, window_start, quota_limit, window_unit, remote_enabled, exceeded_notified, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			event_count = excluded.event_count,
			window_start = excluded.window_start,
			quota_limit = excluded.quota_limit,
			window_unit = excluded.window_unit,
			remote_enabled = excluded.remote_enabled,
			exceeded_notified = excluded.exceeded_notified,
			updated_at = excluded.updated_at
	`, name, state.EventCount, state.WindowStart.UTC().UnixNano(), state.Limit, string(state.WindowUnit),
		boolToInt(state.RemoteEnabled), boolToInt(state.ExceededNotified), time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("store quota: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit quota update: %w", err)
	}

	return nil
}

// maxQuotaUpdateAttempts bounds UpdateQuota retries under contention.
const maxQuotaUpdateAttempts = 16

// ErrQuotaContended is returned when UpdateQuota keeps losing the race to
// other writers.
var ErrQuotaContended = errors.New("quota record changed concurrently, giving up")

// UpdateQuota applies fn as a compare-and-set: the new row is written only if
// the stored row still matches what fn saw, otherwise fn runs again on the
// newer row. Processes sharing one database file never lose each other's
// updates.
func (s *Store) UpdateQuota(ctx context.Context, name string, fn func(current *core.QuotaState) (*core.QuotaState, error)) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("quota name is required")
	}

	for attempt := 0; attempt < maxQuotaUpdateAttempts; attempt++ {
		current, err := s.GetQuota(ctx, name)
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil || next == nil {
			return err
		}

		var result sql.Result
		if current == nil {
			result, err = s.DB.ExecContext(ctx, `
				INSERT INTO quota_state (name, event_count, window_start, quota_limit, window_unit, remote_enabled, exceeded_notified, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(name) DO NOTHING
			`, name, next.EventCount, next.WindowStart.UTC().UnixNano(), next.Limit, string(next.WindowUnit),
				boolToInt(next.RemoteEnabled), boolToInt(next.ExceededNotified), time.Now().UTC().Unix())
		} else {
			result, err = s.DB.ExecContext(ctx, `
				UPDATE quota_state SET
					event_count = ?, window_start = ?, quota_limit = ?, window_unit = ?,
					remote_enabled = ?, exceeded_notified = ?, updated_at = ?
				WHERE name = ?
					AND event_count = ? AND window_start = ? AND quota_limit = ? AND window_unit = ?
					AND remote_enabled = ? AND exceeded_notified = ?
			`, next.EventCount, next.WindowStart.UTC().UnixNano(), next.Limit, string(next.WindowUnit),
				boolToInt(next.RemoteEnabled), boolToInt(next.ExceededNotified), time.Now().UTC().Unix(),
				name,
				current.EventCount, current.WindowStart.UTC().UnixNano(), current.Limit, string(current.WindowUnit),
				boolToInt(current.RemoteEnabled), boolToInt(current.ExceededNotified))
		}
		if err != nil {
			return fmt.Errorf("store quota: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("store quota: %w", err)
		}
		if affected == 1 {
			return nil
		}
	}

	return ErrQuotaContended
}

type rowScanner interface {
	Scan(dest ...any) error
}

// window_start holds unix nanoseconds so a reloaded record compares equal to
// the one that was written.
func scanQuota(row rowScanner) (*core.QuotaState, error) {
	var (
		eventCount       int
		windowStart      int64
		limit            int
		windowUnit       string
		remoteEnabled    int
		exceededNotified int
	)
	if err := row.Scan(&eventCount, &windowStart, &limit, &windowUnit, &remoteEnabled, &exceededNotified); err != nil {
		return nil, err
	}

	return &core.QuotaState{
		EventCount:       eventCount,
		WindowStart:      time.Unix(0, windowStart).UTC(),
		Limit:            limit,
		WindowUnit:       core.WindowUnit(windowUnit),
		RemoteEnabled:    remoteEnabled != 0,
		ExceededNotified: exceededNotified != 0,
	}, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
