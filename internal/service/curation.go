package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/phetools-curation-server/internal/domain"
	"github.com/phetools-curation-server/internal/schema"
)

// RowInput is a new individual with a sparse set of annotations. Terms not
// mentioned are not ascertained.
type RowInput struct {
	Individual  domain.IndividualData              `json:"individual"`
	Disease     domain.DiseaseData                 `json:"disease"`
	Gene        domain.GeneVariantData             `json:"gene"`
	Annotations map[domain.TermID]domain.CellValue `json:"annotations"`
}

// CurationService edits cohorts and persists them. Column and row edits are
// serialized; read-only work runs concurrently.
type CurationService struct {
	hierarchy domain.Hierarchy
	store     domain.CohortStore
	variants  domain.VariantValidator
	arranger  *Arranger
	sanitizer *Sanitizer
	merger    *Merger
	qc        *QC
	cfg       domain.CurationConfig
	logger    *logrus.Logger
	now       func() time.Time

	mu sync.Mutex
}

// NewCurationService wires the curation components. store and variants may be
// nil when persistence or remote variant validation is not needed.
func NewCurationService(
	h domain.Hierarchy,
	store domain.CohortStore,
	variants domain.VariantValidator,
	cfg domain.CurationConfig,
	logger *logrus.Logger,
) *CurationService {
	arranger := NewArranger(h, logger)
	sanitizer := NewSanitizer(h, logger, cfg.Workers)
	return &CurationService{
		hierarchy: h,
		store:     store,
		variants:  variants,
		arranger:  arranger,
		sanitizer: sanitizer,
		merger:    NewMerger(arranger, sanitizer, logger),
		qc:        NewQC(h, sanitizer, logger),
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *CurationService) Arranger() *Arranger   { return s.arranger }
func (s *CurationService) Sanitizer() *Sanitizer { return s.sanitizer }
func (s *CurationService) Merger() *Merger       { return s.merger }
func (s *CurationService) QC() *QC               { return s.qc }

// ImportTable parses a template, arranges its term columns in curation order
// and, when configured, sanitizes every row.
func (s *CurationService) ImportTable(ctx context.Context, matrix [][]string) (*domain.Cohort, error) {
	cohort, err := schema.ParseTable(matrix, s.hierarchy)
	if err != nil {
		return nil, err
	}
	s.ArrangeColumns(cohort)
	if s.cfg.AutoSanitize {
		if _, err := s.sanitizer.SanitizeCohort(ctx, cohort); err != nil {
			return nil, err
		}
	}
	s.logger.WithFields(logrus.Fields{
		"individuals": len(cohort.Rows),
		"terms":       len(cohort.TermHeaders),
		"cohort_type": cohort.CohortType,
	}).Info("Imported curation template")
	return cohort, nil
}

// ArrangeColumns reorders the term columns of c in curation order, carrying
// the row values along, and returns the unreachable terms.
func (s *CurationService) ArrangeColumns(c *domain.Cohort) []domain.TermID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.arrangeColumns(c)
}

func (s *CurationService) arrangeColumns(c *domain.Cohort) []domain.TermID {
	headers, unreachable := s.arranger.ArrangeRefs(c.TermHeaders)
	reorderColumns(c, headers)
	return unreachable
}

// reorderColumns lays the rows out on headers. Columns absent from the
// current layout become not ascertained.
func reorderColumns(c *domain.Cohort, headers []domain.TermRef) {
	for i := range c.Rows {
		values := c.RowAnnotations(i)
		cells := make([]domain.CellValue, len(headers))
		for j, h := range headers {
			if v, ok := values[h.ID]; ok {
				cells[j] = v
			} else {
				cells[j] = domain.NotAscertained
			}
		}
		c.Rows[i].CellValues = cells
	}
	c.TermHeaders = headers
}

// AddTermColumn adds a term column, not ascertained for every individual, and
// re-arranges the columns.
func (s *CurationService) AddTermColumn(c *domain.Cohort, term domain.TermRef) error {
	if err := schema.CheckTerms([]domain.TermRef{term}, s.hierarchy); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c.TermIndex(term.ID) >= 0 {
		return domain.NewStructuralError(domain.ErrDuplicateTerm, "%s is already a column", term)
	}
	if err := c.CheckWidth(); err != nil {
		return err
	}
	headers, _ := s.arranger.ArrangeRefs(append(append([]domain.TermRef(nil), c.TermHeaders...), term))
	reorderColumns(c, headers)

	s.logger.WithFields(term.LogFields()).Info("Added term column")
	return nil
}

// RemoveTermColumn drops a term column from the cohort.
func (s *CurationService) RemoveTermColumn(c *domain.Cohort, id domain.TermID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j := c.TermIndex(id)
	if j < 0 {
		return fmt.Errorf("term column %s: %w", id, domain.ErrNotFound)
	}
	if err := c.CheckWidth(); err != nil {
		return err
	}
	c.TermHeaders = append(c.TermHeaders[:j:j], c.TermHeaders[j+1:]...)
	for i := range c.Rows {
		cells := c.Rows[i].CellValues
		c.Rows[i].CellValues = append(cells[:j:j], cells[j+1:]...)
	}

	s.logger.WithField("term_id", id).Info("Removed term column")
	return nil
}

// AddRow validates a new individual and appends it to the cohort. Its
// annotations may only name existing columns.
func (s *CurationService) AddRow(c *domain.Cohort, in RowInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs domain.ValidationErrors
	errs.Add(schema.ValidateFixedCells(schema.FixedCells(in.Individual, in.Disease, in.Gene), len(c.Rows)))
	for id, v := range in.Annotations {
		if c.TermIndex(id) < 0 {
			errs.Add(&domain.TermLookupError{ID: id, Message: "not a column of this cohort"})
		}
		if !v.IsValid() {
			errs.Add(domain.NewCellError(string(id), v.String(), "invalid cell value"))
		}
	}
	if key := in.Individual.PMID + "|" + in.Individual.IndividualID; rowIndex(c, key) >= 0 {
		errs.Add(&domain.CellError{Row: len(c.Rows), Column: schema.IndividualIDColumn.Row1,
			Value: in.Individual.IndividualID, Message: "individual is already curated for " + in.Individual.PMID})
	}
	if err := errs.Err(); err != nil {
		return err
	}

	cells := make([]domain.CellValue, len(c.TermHeaders))
	for j, h := range c.TermHeaders {
		if v, ok := in.Annotations[h.ID]; ok {
			cells[j] = v
		} else {
			cells[j] = domain.NotAscertained
		}
	}
	counts := make(map[string]int)
	for _, k := range in.Gene.AlleleKeys() {
		counts[k]++
	}
	structural, err := schema.StructuralVariants(len(c.Rows), in.Gene)
	if err != nil {
		return err
	}
	for _, sv := range structural {
		c.StructuralVariants[sv.VariantKey] = sv
	}
	addDisease(c, in.Disease, in.Gene)

	c.Rows = append(c.Rows, domain.Row{
		IndividualData: in.Individual,
		DiseaseIDs:     []string{in.Disease.DiseaseID},
		AlleleCounts:   counts,
		CellValues:     cells,
	})
	if s.cfg.AutoSanitize {
		s.sanitizer.sanitizeRow(c, len(c.Rows)-1)
	}

	s.logger.WithFields(logrus.Fields{
		"pmid":          in.Individual.PMID,
		"individual_id": in.Individual.IndividualID,
		"annotations":   len(in.Annotations),
	}).Info("Added individual")
	return nil
}

// DeleteRow removes the individual at index i.
func (s *CurationService) DeleteRow(c *domain.Cohort, i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(c.Rows) {
		return fmt.Errorf("row %d: %w", i, domain.ErrNotFound)
	}
	removed := c.Rows[i]
	c.Rows = append(c.Rows[:i:i], c.Rows[i+1:]...)

	s.logger.WithFields(logrus.Fields{
		"pmid":          removed.IndividualData.PMID,
		"individual_id": removed.IndividualData.IndividualID,
	}).Info("Deleted individual")
	return nil
}

func rowIndex(c *domain.Cohort, key string) int {
	for i, r := range c.Rows {
		if r.Key() == key {
			return i
		}
	}
	return -1
}

func addDisease(c *domain.Cohort, d domain.DiseaseData, g domain.GeneVariantData) {
	gt := domain.GeneTranscriptData{HGNCID: g.HGNCID, GeneSymbol: g.GeneSymbol, Transcript: g.Transcript}
	for i := range c.DiseaseList {
		existing := &c.DiseaseList[i]
		if existing.DiseaseID != d.DiseaseID {
			continue
		}
		if !containsGene(existing.GeneTranscriptList, gt) {
			existing.GeneTranscriptList = append(existing.GeneTranscriptList, gt)
		}
		return
	}
	d.GeneTranscriptList = append(append([]domain.GeneTranscriptData(nil), d.GeneTranscriptList...), gt)
	c.DiseaseList = append(c.DiseaseList, d)
	if len(c.DiseaseList) > 1 && c.CohortType == domain.Mendelian {
		c.CohortType = domain.Melded
	}
}

// ValidateVariants resolves every HGVS allele of the cohort that is not yet in
// its variant dictionary. Lookups run concurrently; failures are returned
// together and do not stop the remaining lookups.
func (s *CurationService) ValidateVariants(ctx context.Context, c *domain.Cohort) error {
	if s.variants == nil {
		return domain.NewMCPError(domain.ErrExternalAPI, "Variant validation is not configured", "", "")
	}

	type job struct{ allele, transcript, key string }
	pending := make(map[string]job)
	for _, d := range c.DiseaseList {
		for _, gt := range d.GeneTranscriptList {
			g := domain.GeneVariantData{GeneSymbol: gt.GeneSymbol, Transcript: gt.Transcript}
			for _, r := range c.Rows {
				for key := range r.AlleleCounts {
					allele, ok := alleleFromKey(key, g)
					if !ok || !domain.IsHGVS(allele) {
						continue
					}
					if _, done := c.HgvsVariants[key]; done {
						continue
					}
					pending[key] = job{allele: allele, transcript: gt.Transcript, key: key}
				}
			}
		}
	}
	if len(pending) == 0 {
		return nil
	}

	var (
		mu   sync.Mutex
		errs domain.ValidationErrors
	)
	results := make(map[string]domain.HgvsVariant, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.sanitizer.workers)
	for _, j := range pending {
		j := j
		g.Go(func() error {
			v, err := s.variants.ValidateHGVS(gctx, j.allele, j.transcript)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs.Add(fmt.Errorf("%s: %w", j.key, err))
				return nil
			}
			results[j.key] = *v
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	for k, v := range results {
		c.HgvsVariants[k] = v
	}
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"validated": len(results),
		"failed":    errs.Len(),
	}).Info("Validated HGVS variants")
	return errs.Err()
}

func alleleFromKey(key string, g domain.GeneVariantData) (string, bool) {
	suffix := "_" + g.GeneSymbol + "_" + g.Transcript
	if len(key) <= len(suffix) || key[len(key)-len(suffix):] != suffix {
		return "", false
	}
	return key[:len(key)-len(suffix)], true
}

// Save stores the cohort, assigning an identifier on first save and recording
// the configured curator.
func (s *CurationService) Save(ctx context.Context, c *domain.Cohort) error {
	if s.store == nil {
		return domain.NewMCPError(domain.ErrDatabaseError, "Cohort storage is not configured", "", "")
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if s.cfg.ORCID != "" {
		c.CurationHistory = append(c.CurationHistory, domain.NewCurationEvent(s.cfg.ORCID, s.now()))
	}
	if err := s.store.Save(ctx, c); err != nil {
		return fmt.Errorf("failed to save cohort %s: %w", c.ID, err)
	}
	s.logger.WithFields(logrus.Fields{
		"cohort_id":   c.ID,
		"individuals": len(c.Rows),
	}).Info("Saved cohort")
	return nil
}

// Load returns a stored cohort.
func (s *CurationService) Load(ctx context.Context, id string) (*domain.Cohort, error) {
	if s.store == nil {
		return nil, domain.NewMCPError(domain.ErrDatabaseError, "Cohort storage is not configured", "", "")
	}
	return s.store.Get(ctx, id)
}

// List returns stored cohort summaries.
func (s *CurationService) List(ctx context.Context, limit, offset int) ([]domain.CohortRecord, int, error) {
	if s.store == nil {
		return nil, 0, domain.NewMCPError(domain.ErrDatabaseError, "Cohort storage is not configured", "", "")
	}
	records, err := s.store.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// Delete removes a stored cohort.
func (s *CurationService) Delete(ctx context.Context, id string) error {
	if s.store == nil {
		return domain.NewMCPError(domain.ErrDatabaseError, "Cohort storage is not configured", "", "")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.WithField("cohort_id", id).Info("Deleted cohort")
	return nil
}
