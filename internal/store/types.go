// Package store persists curated cohorts as JSON documents in SQLite or
// PostgreSQL, with summary columns for listing.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/phetools-curation-server/internal/domain"
)

// CohortExport represents the JSON export format.
type CohortExport struct {
	Version    string           `json:"version"`
	ExportedAt time.Time        `json:"exported_at"`
	Count      int              `json:"count"`
	Cohorts    []*domain.Cohort `json:"cohorts"`
}

// maxExportLimit is the maximum number of cohorts to export at once.
const maxExportLimit = 100000

// row holds the columns written for one cohort.
type row struct {
	id          string
	acronym     string
	cohortType  string
	individuals int
	terms       int
	hpoVersion  string
	body        []byte
}

func encode(c *domain.Cohort) (row, error) {
	if c.ID == "" {
		return row{}, domain.NewValidationError("id", "Cohort id is required", nil)
	}
	body, err := json.Marshal(c)
	if err != nil {
		return row{}, fmt.Errorf("failed to encode cohort: %w", err)
	}
	return row{
		id:          c.ID,
		acronym:     c.Acronym,
		cohortType:  string(c.CohortType),
		individuals: len(c.Rows),
		terms:       len(c.TermHeaders),
		hpoVersion:  c.HPOVersion,
		body:        body,
	}, nil
}

func decode(body []byte) (*domain.Cohort, error) {
	var c domain.Cohort
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, fmt.Errorf("failed to decode cohort: %w", err)
	}
	return &c, nil
}

// ExportJSON writes every stored cohort to writer.
func ExportJSON(ctx context.Context, s domain.CohortStore, writer io.Writer) error {
	records, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list cohorts: %w", err)
	}

	export := &CohortExport{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Cohorts:    make([]*domain.Cohort, 0, len(records)),
	}
	for _, rec := range records {
		c, err := s.Get(ctx, rec.ID)
		if err != nil {
			return fmt.Errorf("failed to load cohort %s: %w", rec.ID, err)
		}
		export.Cohorts = append(export.Cohorts, c)
	}
	export.Count = len(export.Cohorts)

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// ImportJSON reads an export and saves the cohorts not yet stored.
func ImportJSON(ctx context.Context, s domain.CohortStore, reader io.Reader) (imported int, skipped int, err error) {
	var export CohortExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, c := range export.Cohorts {
		_, err := s.Get(ctx, c.ID)
		if err == nil {
			skipped++
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}
		if err := s.Save(ctx, c); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}
	return imported, skipped, nil
}
