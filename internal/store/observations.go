package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hurttlocker/zoonotes/internal/record"
)

// InsertObservation stores an observation for the animal and returns its id.
func (s *SQLiteStore) InsertObservation(ctx context.Context, animalID int64, o record.Observation) (int64, error) {
	return insertObservation(ctx, s.db, animalID, o)
}

// InsertMeasurement stores a measurement taken at the given time.
func (s *SQLiteStore) InsertMeasurement(ctx context.Context, animalID int64, m record.Measurement, at time.Time) (int64, error) {
	return insertMeasurement(ctx, s.db, animalID, m, at)
}

// InsertFeeding stores a feeding given at the given time.
func (s *SQLiteStore) InsertFeeding(ctx context.Context, animalID int64, f record.Feeding, at time.Time) (int64, error) {
	return insertFeeding(ctx, s.db, animalID, f, at)
}

// SaveRecords writes the animal, observation and the optional measurement
// and feeding rows in one transaction.
func (s *SQLiteStore) SaveRecords(ctx context.Context, r record.Records) (*SaveResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning save transaction: %w", err)
	}
	defer tx.Rollback()

	at := r.Observation.ObservedAt
	if at.IsZero() {
		at = time.Now().UTC()
		r.Observation.ObservedAt = at
	}

	res := &SaveResult{}
	if res.AnimalID, err = findOrCreateAnimal(ctx, tx, r.Animal.Name, r.Animal.Species); err != nil {
		return nil, err
	}
	if res.ObservationID, err = insertObservation(ctx, tx, res.AnimalID, r.Observation); err != nil {
		return nil, err
	}
	if r.Measurement != nil {
		if res.MeasurementID, err = insertMeasurement(ctx, tx, res.AnimalID, *r.Measurement, at); err != nil {
			return nil, err
		}
		if r.Measurement.Age != nil {
			if err := updateAnimalAge(ctx, tx, res.AnimalID, *r.Measurement.Age); err != nil {
				return nil, err
			}
		}
	}
	if r.Feeding != nil {
		if res.FeedingID, err = insertFeeding(ctx, tx, res.AnimalID, *r.Feeding, at); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing save: %w", err)
	}
	return res, nil
}

func insertObservation(ctx context.Context, q queryer, animalID int64, o record.Observation) (int64, error) {
	at := o.ObservedAt
	if at.IsZero() {
		at = time.Now()
	}
	result, err := q.ExecContext(ctx,
		`INSERT INTO observations (animal_id, behavior, health_status, notes, temperature, humidity, audio_file, transcription, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		animalID, o.Behavior, o.HealthStatus, o.Notes, o.Temperature, o.Humidity,
		o.AudioFile, o.Transcription, formatTime(at),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting observation: %w", err)
	}
	return result.LastInsertId()
}

func insertMeasurement(ctx context.Context, q queryer, animalID int64, m record.Measurement, at time.Time) (int64, error) {
	if at.IsZero() {
		at = time.Now()
	}
	result, err := q.ExecContext(ctx,
		`INSERT INTO measurements (animal_id, weight, length, height, temperature, age, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		animalID, m.Weight, m.Length, m.Height, m.Temperature, m.Age, formatTime(at),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting measurement: %w", err)
	}
	return result.LastInsertId()
}

func insertFeeding(ctx context.Context, q queryer, animalID int64, f record.Feeding, at time.Time) (int64, error) {
	if at.IsZero() {
		at = time.Now()
	}
	foodType := f.FoodType
	if foodType == "" {
		foodType = record.Unknown
	}
	result, err := q.ExecContext(ctx,
		`INSERT INTO feedings (animal_id, food_type, quantity, notes, timestamp) VALUES (?, ?, ?, ?, ?)`,
		animalID, foodType, f.Quantity, f.Notes, formatTime(at),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting feeding: %w", err)
	}
	return result.LastInsertId()
}

const observationSelect = `SELECT o.id, o.animal_id, a.name, a.species, o.behavior, o.health_status,
	o.notes, o.temperature, o.humidity, o.audio_file, o.transcription, o.timestamp
	FROM observations o JOIN animals a ON a.id = o.animal_id`

const measurementSelect = `SELECT m.id, m.animal_id, a.name, a.species, m.weight, m.length,
	m.height, m.temperature, m.age, m.timestamp
	FROM measurements m JOIN animals a ON a.id = m.animal_id`

const feedingSelect = `SELECT f.id, f.animal_id, a.name, a.species, f.food_type, f.quantity,
	f.notes, f.timestamp
	FROM feedings f JOIN animals a ON a.id = f.animal_id`

// AnimalLog returns the animal's observations, newest first. Returns
// ErrNotFound if the animal does not exist.
func (s *SQLiteStore) AnimalLog(ctx context.Context, animalID int64, opts ListOpts) ([]*Observation, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM animals WHERE id = ?`, animalID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking animal: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("animal %d: %w", animalID, ErrNotFound)
	}

	opts = opts.normalize()
	return s.queryObservations(ctx,
		observationSelect+` WHERE o.animal_id = ? ORDER BY o.timestamp DESC, o.id DESC LIMIT ? OFFSET ?`,
		animalID, opts.Limit, opts.Offset)
}

// ListObservations returns observations across all animals, newest first.
func (s *SQLiteStore) ListObservations(ctx context.Context, opts ListOpts) ([]*Observation, error) {
	opts = opts.normalize()
	return s.queryObservations(ctx,
		observationSelect+` ORDER BY o.timestamp DESC, o.id DESC LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset)
}

func (s *SQLiteStore) queryObservations(ctx context.Context, query string, args ...any) ([]*Observation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying observations: %w", err)
	}
	defer rows.Close()

	var out []*Observation
	for rows.Next() {
		var (
			o                  Observation
			behavior, health   sql.NullString
			temperature, humid sql.NullFloat64
			ts                 string
		)
		if err := rows.Scan(&o.ID, &o.AnimalID, &o.AnimalName, &o.AnimalSpecies, &behavior, &health,
			&o.Notes, &temperature, &humid, &o.AudioFile, &o.Transcription, &ts); err != nil {
			return nil, fmt.Errorf("scanning observation: %w", err)
		}
		o.Behavior = nullString(behavior)
		o.HealthStatus = nullString(health)
		o.Temperature = nullFloat(temperature)
		o.Humidity = nullFloat(humid)
		o.Timestamp = parseTime(ts)
		out = append(out, &o)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) queryMeasurements(ctx context.Context, query string, args ...any) ([]*Measurement, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying measurements: %w", err)
	}
	defer rows.Close()

	var out []*Measurement
	for rows.Next() {
		var (
			m                                   Measurement
			weight, length, height, temper, age sql.NullFloat64
			ts                                  string
		)
		if err := rows.Scan(&m.ID, &m.AnimalID, &m.AnimalName, &m.AnimalSpecies,
			&weight, &length, &height, &temper, &age, &ts); err != nil {
			return nil, fmt.Errorf("scanning measurement: %w", err)
		}
		m.Weight = nullFloat(weight)
		m.Length = nullFloat(length)
		m.Height = nullFloat(height)
		m.Temperature = nullFloat(temper)
		m.Age = nullFloat(age)
		m.Timestamp = parseTime(ts)
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) queryFeedings(ctx context.Context, query string, args ...any) ([]*Feeding, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying feedings: %w", err)
	}
	defer rows.Close()

	var out []*Feeding
	for rows.Next() {
		var (
			f        Feeding
			quantity sql.NullFloat64
			notes    sql.NullString
			ts       string
		)
		if err := rows.Scan(&f.ID, &f.AnimalID, &f.AnimalName, &f.AnimalSpecies,
			&f.FoodType, &quantity, &notes, &ts); err != nil {
			return nil, fmt.Errorf("scanning feeding: %w", err)
		}
		f.Quantity = nullFloat(quantity)
		f.Notes = nullString(notes)
		f.Timestamp = parseTime(ts)
		out = append(out, &f)
	}
	return out, rows.Err()
}
