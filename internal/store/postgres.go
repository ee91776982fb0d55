package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/phetools-curation-server/internal/domain"
)

// PostgresStore implements domain.CohortStore using PostgreSQL.
// The cohorts table is created by the migrations in migrations/.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL cohort store from an open
// connection.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL cohort store from a
// connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Save upserts a cohort.
func (s *PostgresStore) Save(ctx context.Context, cohort *domain.Cohort) error {
	r, err := encode(cohort)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cohorts (
			id, acronym, cohort_type, individuals, terms, hpo_version, body, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			acronym = EXCLUDED.acronym,
			cohort_type = EXCLUDED.cohort_type,
			individuals = EXCLUDED.individuals,
			terms = EXCLUDED.terms,
			hpo_version = EXCLUDED.hpo_version,
			body = EXCLUDED.body,
			updated_at = NOW()
	`,
		r.id, r.acronym, r.cohortType, r.individuals, r.terms, r.hpoVersion, string(r.body),
	)
	if err != nil {
		return fmt.Errorf("failed to save cohort: %w", err)
	}
	return nil
}

// Get retrieves a cohort by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Cohort, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, "SELECT body FROM cohorts WHERE id = $1", id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("cohort %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cohort: %w", err)
	}
	return decode(body)
}

// List returns cohort summaries, most recently updated first.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]domain.CohortRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, acronym, cohort_type, individuals, terms, hpo_version, updated_at
		FROM cohorts
		ORDER BY updated_at DESC, id
		LIMIT $1 OFFSET $2
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
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cohorts").Scan(&count)
	return count, err
}

// Delete removes a cohort.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM cohorts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete cohort: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete cohort: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("cohort %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

var _ domain.CohortStore = (*PostgresStore)(nil)
