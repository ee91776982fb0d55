package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/phetools-curation-server/internal/domain"
)

// SQLiteStore implements domain.CohortStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite cohort store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS cohorts (
		id TEXT PRIMARY KEY,
		acronym TEXT NOT NULL DEFAULT '',
		cohort_type TEXT NOT NULL,
		individuals INTEGER NOT NULL DEFAULT 0,
		terms INTEGER NOT NULL DEFAULT 0,
		hpo_version TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_cohorts_acronym ON cohorts(acronym);
	CREATE INDEX IF NOT EXISTS idx_cohorts_updated_at ON cohorts(updated_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores a cohort, replacing an earlier version with the same id.
func (s *SQLiteStore) Save(ctx context.Context, cohort *domain.Cohort) error {
	r, err := encode(cohort)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cohorts (
			id, acronym, cohort_type, individuals, terms, hpo_version, body, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			acronym = excluded.acronym,
			cohort_type = excluded.cohort_type,
			individuals = excluded.individuals,
			terms = excluded.terms,
			hpo_version = excluded.hpo_version,
			body = excluded.body,
			updated_at = excluded.updated_at
	`,
		r.id, r.acronym, r.cohortType, r.individuals, r.terms, r.hpoVersion, string(r.body), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save cohort: %w", err)
	}
	return nil
}

// Get retrieves a cohort by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.Cohort, error) {
	var body string
	err := s.db.QueryRowContext(ctx, "SELECT body FROM cohorts WHERE id = ?", id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("cohort %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cohort: %w", err)
	}
	return decode([]byte(body))
}

// List returns cohort summaries, most recently updated first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]domain.CohortRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, acronym, cohort_type, individuals, terms, hpo_version, updated_at
		FROM cohorts
		ORDER BY updated_at DESC, id
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []domain.CohortRecord
	for rows.Next() {
		var (
			rec        domain.CohortRecord
			cohortType string
			updatedAt  time.Time
		)
		if err := rows.Scan(&rec.ID, &rec.Acronym, &cohortType, &rec.Individuals, &rec.Terms, &rec.HPOVersion, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rec.CohortType = domain.CohortType(cohortType)
		rec.UpdatedAt = updatedAt.UTC().Format(time.RFC3339)
		result = append(result, rec)
	}
	return result, rows.Err()
}

// Count returns the number of stored cohorts.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cohorts").Scan(&count)
	return count, err
}

// Delete removes a cohort.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM cohorts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete cohort: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("cohort %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ domain.CohortStore = (*SQLiteStore)(nil)
