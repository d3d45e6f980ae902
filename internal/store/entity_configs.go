package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hurttlocker/zoonotes/internal/entity"
)

// ErrInvalidEntityType is returned for entity types outside the known set.
var ErrInvalidEntityType = errors.New("invalid entity type")

// ListEntityConfigs returns the per-kind toggles ordered by priority.
func (s *SQLiteStore) ListEntityConfigs(ctx context.Context) ([]*EntityConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_type, is_active, priority, updated_at FROM entity_configs ORDER BY priority, entity_type`)
	if err != nil {
		return nil, fmt.Errorf("listing entity configs: %w", err)
	}
	defer rows.Close()

	var out []*EntityConfig
	for rows.Next() {
		var (
			c      EntityConfig
			kind   string
			active int
			ts     string
		)
		if err := rows.Scan(&kind, &active, &c.Priority, &ts); err != nil {
			return nil, fmt.Errorf("scanning entity config: %w", err)
		}
		c.EntityType = entity.Kind(kind)
		c.IsActive = active != 0
		c.UpdatedAt = parseTime(ts)
		out = append(out, &c)
	}
	return out, rows.Err()
}

// UpsertEntityConfig creates or replaces the toggle for one entity kind.
func (s *SQLiteStore) UpsertEntityConfig(ctx context.Context, c EntityConfig) (*EntityConfig, error) {
	kind, err := entity.ParseKind(string(c.EntityType))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEntityType, c.EntityType)
	}
	c.EntityType = kind
	c.UpdatedAt = time.Now().UTC()

	active := 0
	if c.IsActive {
		active = 1
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entity_configs (entity_type, is_active, priority, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(entity_type) DO UPDATE SET
			is_active = excluded.is_active,
			priority = excluded.priority,
			updated_at = excluded.updated_at`,
		string(kind), active, c.Priority, formatTime(c.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("upserting entity config %q: %w", kind, err)
	}
	return &c, nil
}

// DisabledKinds returns the kinds whose toggle is off.
func (s *SQLiteStore) DisabledKinds(ctx context.Context) ([]entity.Kind, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_type FROM entity_configs WHERE is_active = 0 ORDER BY priority, entity_type`)
	if err != nil {
		return nil, fmt.Errorf("listing disabled kinds: %w", err)
	}
	defer rows.Close()

	var out []entity.Kind
	for rows.Next() {
		var kind string
		if err := rows.Scan(&kind); err != nil {
			return nil, fmt.Errorf("scanning disabled kind: %w", err)
		}
		// Rows written by older builds may name kinds that no longer exist.
		if k, err := entity.ParseKind(kind); err == nil {
			out = append(out, k)
		}
	}
	return out, rows.Err()
}
