package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hurttlocker/zoonotes/internal/record"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// FindOrCreateAnimal returns the id of the animal with the given name and
// species, inserting it first if needed. Empty values become "Unknown".
func (s *SQLiteStore) FindOrCreateAnimal(ctx context.Context, name, species string) (int64, error) {
	return findOrCreateAnimal(ctx, s.db, name, species)
}

func findOrCreateAnimal(ctx context.Context, q queryer, name, species string) (int64, error) {
	name = identity(name)
	species = identity(species)
	now := formatTime(time.Now())

	_, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO animals (name, species, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		name, species, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting animal: %w", err)
	}

	var id int64
	err = q.QueryRowContext(ctx,
		`SELECT id FROM animals WHERE name = ? AND species = ?`, name, species,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("looking up animal %q (%s): %w", name, species, err)
	}
	return id, nil
}

func identity(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return record.Unknown
	}
	return v
}

// updateAnimalAge stores the latest known age on the animal row.
func updateAnimalAge(ctx context.Context, q queryer, id int64, age float64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE animals SET age = ?, updated_at = ? WHERE id = ?`,
		age, formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("updating animal age: %w", err)
	}
	return nil
}

const animalColumns = `id, name, species, age, enclosure, created_at, updated_at`

// ListAnimals returns every animal ordered by name.
func (s *SQLiteStore) ListAnimals(ctx context.Context) ([]*Animal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+animalColumns+` FROM animals ORDER BY name, species, id`)
	if err != nil {
		return nil, fmt.Errorf("listing animals: %w", err)
	}
	defer rows.Close()

	var animals []*Animal
	for rows.Next() {
		a, err := scanAnimal(rows)
		if err != nil {
			return nil, err
		}
		animals = append(animals, a)
	}
	return animals, rows.Err()
}

// GetAnimal returns one animal with its latest observation, measurement and
// feeding. Returns ErrNotFound if the id is unknown.
func (s *SQLiteStore) GetAnimal(ctx context.Context, id int64) (*AnimalDetail, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+animalColumns+` FROM animals WHERE id = ?`, id)
	a, err := scanAnimal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("animal %d: %w", id, ErrNotFound)
		}
		return nil, err
	}

	detail := &AnimalDetail{Animal: *a}

	obs, err := s.queryObservations(ctx,
		observationSelect+` WHERE o.animal_id = ? ORDER BY o.timestamp DESC, o.id DESC LIMIT 1`, id)
	if err != nil {
		return nil, err
	}
	if len(obs) > 0 {
		detail.LatestObservation = obs[0]
	}

	ms, err := s.queryMeasurements(ctx,
		measurementSelect+` WHERE m.animal_id = ? ORDER BY m.timestamp DESC, m.id DESC LIMIT 1`, id)
	if err != nil {
		return nil, err
	}
	if len(ms) > 0 {
		detail.LatestMeasurement = ms[0]
	}

	fs, err := s.queryFeedings(ctx,
		feedingSelect+` WHERE f.animal_id = ? ORDER BY f.timestamp DESC, f.id DESC LIMIT 1`, id)
	if err != nil {
		return nil, err
	}
	if len(fs) > 0 {
		detail.LatestFeeding = fs[0]
	}

	return detail, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnimal(r rowScanner) (*Animal, error) {
	var (
		a                    Animal
		age                  sql.NullFloat64
		enclosure            sql.NullString
		createdAt, updatedAt string
	)
	if err := r.Scan(&a.ID, &a.Name, &a.Species, &age, &enclosure, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning animal: %w", err)
	}
	a.Age = nullFloat(age)
	a.Enclosure = nullString(enclosure)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}
