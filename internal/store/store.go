// Package store provides the SQLite storage layer for zoonotes.
//
// Everything lives in a single SQLite database file:
// - animals, identified by (name, species)
// - observations with the full transcript
// - measurements and feedings linked to an animal
// - entity_configs toggling which entity kinds populate records
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hurttlocker/zoonotes/internal/entity"
	"github.com/hurttlocker/zoonotes/internal/record"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.zoonotes/zoonotes.db"

// DefaultListLimit caps list queries when the caller passes no limit.
const DefaultListLimit = 10

// MaxListLimit is the largest page list queries return.
const MaxListLimit = 100

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02 15:04:05.000000000"

// Animal is one row of the animals table.
type Animal struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Species   string    `json:"species"`
	Age       *float64  `json:"age"`
	Enclosure *string   `json:"enclosure"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Observation is one stored observation, joined with its animal.
type Observation struct {
	ID            int64     `json:"id"`
	AnimalID      int64     `json:"animal_id"`
	AnimalName    string    `json:"animal_name"`
	AnimalSpecies string    `json:"animal_species"`
	Behavior      *string   `json:"behavior"`
	HealthStatus  *string   `json:"health_status"`
	Notes         string    `json:"notes"`
	Temperature   *float64  `json:"temperature"`
	Humidity      *float64  `json:"humidity"`
	AudioFile     string    `json:"audio_file"`
	Transcription string    `json:"transcription"`
	Timestamp     time.Time `json:"timestamp"`
}

// Measurement is one stored measurement, joined with its animal.
type Measurement struct {
	ID            int64     `json:"id"`
	AnimalID      int64     `json:"animal_id"`
	AnimalName    string    `json:"animal_name"`
	AnimalSpecies string    `json:"animal_species"`
	Weight        *float64  `json:"weight"`
	Length        *float64  `json:"length"`
	Height        *float64  `json:"height"`
	Temperature   *float64  `json:"temperature"`
	Age           *float64  `json:"age"`
	Timestamp     time.Time `json:"timestamp"`
}

// Feeding is one stored feeding, joined with its animal.
type Feeding struct {
	ID            int64     `json:"id"`
	AnimalID      int64     `json:"animal_id"`
	AnimalName    string    `json:"animal_name"`
	AnimalSpecies string    `json:"animal_species"`
	FoodType      string    `json:"food_type"`
	Quantity      *float64  `json:"quantity"`
	Notes         *string   `json:"notes"`
	Timestamp     time.Time `json:"timestamp"`
}

// AnimalDetail is an animal with its most recent records.
type AnimalDetail struct {
	Animal
	LatestObservation *Observation `json:"latest_observation"`
	LatestMeasurement *Measurement `json:"latest_measurement"`
	LatestFeeding     *Feeding     `json:"latest_feeding"`
}

// DailyReport collects everything recorded on one UTC day.
type DailyReport struct {
	Date              string         `json:"date"`
	ObservationsCount int            `json:"observations_count"`
	Observations      []*Observation `json:"observations"`
	MeasurementsCount int            `json:"measurements_count"`
	Measurements      []*Measurement `json:"measurements"`
	FeedingsCount     int            `json:"feedings_count"`
	Feedings          []*Feeding     `json:"feedings"`
}

// EntityConfig toggles whether an entity kind populates records.
type EntityConfig struct {
	EntityType entity.Kind `json:"entity_type"`
	IsActive   bool        `json:"is_active"`
	Priority   int         `json:"priority"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// SaveResult holds the row ids written by SaveRecords. Zero ids mean the
// optional row was not written.
type SaveResult struct {
	AnimalID      int64 `json:"animal_id"`
	ObservationID int64 `json:"observation_id"`
	MeasurementID int64 `json:"measurement_id,omitempty"`
	FeedingID     int64 `json:"feeding_id,omitempty"`
}

// ListOpts controls pagination.
type ListOpts struct {
	Limit  int
	Offset int
}

func (o ListOpts) normalize() ListOpts {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// StoreStats holds observability statistics about the store.
type StoreStats struct {
	AnimalCount      int64 `json:"animals"`
	ObservationCount int64 `json:"observations"`
	MeasurementCount int64 `json:"measurements"`
	FeedingCount     int64 `json:"feedings"`
	DBSizeBytes      int64 `json:"db_size_bytes"`
}

// StoreConfig holds configuration for NewStore.
type StoreConfig struct {
	DBPath string
}

// Store defines the persistence interface.
type Store interface {
	// Writes
	FindOrCreateAnimal(ctx context.Context, name, species string) (int64, error)
	InsertObservation(ctx context.Context, animalID int64, o record.Observation) (int64, error)
	InsertMeasurement(ctx context.Context, animalID int64, m record.Measurement, at time.Time) (int64, error)
	InsertFeeding(ctx context.Context, animalID int64, f record.Feeding, at time.Time) (int64, error)
	SaveRecords(ctx context.Context, r record.Records) (*SaveResult, error)

	// Reads
	ListAnimals(ctx context.Context) ([]*Animal, error)
	GetAnimal(ctx context.Context, id int64) (*AnimalDetail, error)
	AnimalLog(ctx context.Context, animalID int64, opts ListOpts) ([]*Observation, error)
	ListObservations(ctx context.Context, opts ListOpts) ([]*Observation, error)
	DailyReport(ctx context.Context, day time.Time) (*DailyReport, error)

	// Entity configuration
	ListEntityConfigs(ctx context.Context) ([]*EntityConfig, error)
	UpsertEntityConfig(ctx context.Context, c EntityConfig) (*EntityConfig, error)
	DisabledKinds(ctx context.Context) ([]entity.Kind, error)

	// Observability
	Stats(ctx context.Context) (*StoreStats, error)

	// Maintenance
	Vacuum(ctx context.Context) error
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a new SQLite-backed Store.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(cfg StoreConfig) (Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = expandPath(DefaultDBPath)
	}

	// Create parent directory for non-memory databases
	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if cfg.DBPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Enable WAL mode and foreign keys
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{
		db:     db,
		dbPath: cfg.DBPath,
	}

	// Run migrations
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Vacuum runs VACUUM on the database. Manual only, never automatic.
func (s *SQLiteStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// Stats returns row counts and the database size.
func (s *SQLiteStore) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{}

	queries := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM animals", &stats.AnimalCount},
		{"SELECT COUNT(*) FROM observations", &stats.ObservationCount},
		{"SELECT COUNT(*) FROM measurements", &stats.MeasurementCount},
		{"SELECT COUNT(*) FROM feedings", &stats.FeedingCount},
	}

	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("querying stats (%s): %w", q.query, err)
		}
	}

	// Get DB size (only works for file-based DBs)
	if s.dbPath != ":memory:" {
		var pageCount, pageSize int64
		s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
		s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats.DBSizeBytes = pageCount * pageSize
	}

	return stats, nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
