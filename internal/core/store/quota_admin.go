package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/loggate/loggate/internal/core"
)

type QuotaEntry struct {
	Name  string          `json:"name"`
	State core.QuotaState `json:"state"`
}

type QuotaQuery struct {
	All    bool
	Name   string
	Prefix string
}

func (q QuotaQuery) Validate() error {
	if q.All {
		return nil
	}
	if strings.TrimSpace(q.Name) != "" {
		return nil
	}
	if strings.TrimSpace(q.Prefix) != "" {
		return nil
	}
	return errors.New("must specify --all, --record, or --prefix")
}

func (q QuotaQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.All {
		return "", nil, nil
	}
	if name := strings.TrimSpace(q.Name); name != "" {
		return "WHERE name = ?", []any{name}, nil
	}
	prefix := strings.TrimSpace(q.Prefix)
	if prefix == "" {
		return "", nil, errors.New("prefix is required")
	}
	return "WHERE name LIKE ?", []any{prefix + "%"}, nil
}

func (s *Store) ListQuotas(ctx context.Context, q QuotaQuery) ([]QuotaEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT name, event_count, window_start, quota_limit, window_unit, remote_enabled, exceeded_notified
		FROM quota_state
		%s
		ORDER BY name
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list quotas: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []QuotaEntry{}
	for rows.Next() {
		var name string
		state, err := scanQuota(prefixScanner{rows: rows, first: &name})
		if err != nil {
			return nil, fmt.Errorf("scan quotas: %w", err)
		}
		entries = append(entries, QuotaEntry{Name: name, State: *state})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list quotas: %w", err)
	}

	return entries, nil
}

func (s *Store) CountQuotas(ctx context.Context, q QuotaQuery) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	row := s.DB.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*)
		FROM quota_state
		%s
	`, where), args...)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count quotas: %w", err)
	}
	return count, nil
}

// DeleteQuotas removes matching records. The next gateway start recreates
// them from configuration defaults.
func (s *Store) DeleteQuotas(ctx context.Context, q QuotaQuery) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM quota_state
		%s
	`, where), args...)
	if err != nil {
		return 0, fmt.Errorf("delete quotas: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete quotas: %w", err)
	}
	return affected, nil
}

// prefixScanner prepends the name column to a quota row scan.
type prefixScanner struct {
	rows  rowScanner
	first *string
}

func (p prefixScanner) Scan(dest ...any) error {
	return p.rows.Scan(append([]any{p.first}, dest...)...)
}
