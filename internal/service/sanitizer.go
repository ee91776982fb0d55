package service

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/phetools-curation-server/internal/domain"
)

// Rule identifies a sanitizer correction.
type Rule int

const (
	// RuleRedundantObserved: an observed ancestor of an observed term is implied.
	RuleRedundantObserved Rule = 1
	// RuleExcludedAncestor: an excluded ancestor contradicts an observed descendant.
	RuleExcludedAncestor Rule = 2
	// RuleRedundantExcluded: an excluded descendant of an excluded term is implied.
	RuleRedundantExcluded Rule = 3
)

func (r Rule) String() string {
	switch r {
	case RuleRedundantObserved:
		return "redundant_observed_ancestor"
	case RuleExcludedAncestor:
		return "excluded_ancestor_of_observed"
	case RuleRedundantExcluded:
		return "redundant_excluded_descendant"
	}
	return "unknown"
}

// MarshalText encodes the rule by name.
func (r Rule) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a rule name written by MarshalText.
func (r *Rule) UnmarshalText(b []byte) error {
	for _, rule := range []Rule{RuleRedundantObserved, RuleExcludedAncestor, RuleRedundantExcluded} {
		if rule.String() == string(b) {
			*r = rule
			return nil
		}
	}
	return fmt.Errorf("unknown sanitizer rule %q", b)
}

// Correction is one cell the sanitizer sets to not ascertained.
type Correction struct {
	Rule       Rule          `json:"rule"`
	Ancestor   domain.TermID `json:"ancestor"`
	Descendant domain.TermID `json:"descendant"`
	Target     domain.TermID `json:"target"`
}

// Sanitizer removes redundant and contradictory annotations from a row using
// ancestor relations of the hierarchy. Only observed and excluded cells take
// part; an observed ancestor above an excluded descendant is left as is.
type Sanitizer struct {
	hierarchy domain.Hierarchy
	logger    *logrus.Logger
	workers   int
}

// NewSanitizer creates a sanitizer. workers bounds row parallelism in
// SanitizeCohort; zero or less uses GOMAXPROCS.
func NewSanitizer(h domain.Hierarchy, logger *logrus.Logger, workers int) *Sanitizer {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Sanitizer{hierarchy: h, logger: logger, workers: workers}
}

// SanitizeRow returns a corrected copy of the annotations. Passes repeat
// until nothing changes, at most once per participating term.
func (s *Sanitizer) SanitizeRow(annotations map[domain.TermID]domain.CellValue) map[domain.TermID]domain.CellValue {
	out, _ := s.sanitize(annotations)
	return out
}

// Corrections lists what the first pass over the annotations would change,
// without changing anything.
func (s *Sanitizer) Corrections(annotations map[domain.TermID]domain.CellValue) []Correction {
	return s.pass(annotations)
}

func (s *Sanitizer) sanitize(annotations map[domain.TermID]domain.CellValue) (map[domain.TermID]domain.CellValue, []Correction) {
	out := make(map[domain.TermID]domain.CellValue, len(annotations))
	participants := 0
	for id, v := range annotations {
		out[id] = v
		if v.IsObserved() || v.IsExcluded() {
			participants++
		}
	}

	var applied []Correction
	for i := 0; i < participants; i++ {
		corrections := s.pass(out)
		if len(corrections) == 0 {
			break
		}
		for _, c := range corrections {
			out[c.Target] = domain.NotAscertained
			s.logger.WithFields(logrus.Fields{
				"term_id":    c.Target,
				"ancestor":   c.Ancestor,
				"descendant": c.Descendant,
				"rule":       c.Rule.String(),
			}).Debug("Sanitizer set cell to not ascertained")
		}
		applied = append(applied, corrections...)
	}
	return out, applied
}

// pass detects the corrections over every ancestor/descendant pair of the
// row. Each target is reported once.
func (s *Sanitizer) pass(annotations map[domain.TermID]domain.CellValue) []Correction {
	ids := make([]domain.TermID, 0, len(annotations))
	for id, v := range annotations {
		if v.IsObserved() || v.IsExcluded() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []Correction
	targeted := make(map[domain.TermID]struct{})
	add := func(c Correction) {
		if _, ok := targeted[c.Target]; ok {
			return
		}
		targeted[c.Target] = struct{}{}
		out = append(out, c)
	}

	for _, anc := range ids {
		for _, desc := range ids {
			if anc == desc || !s.hierarchy.IsDescendantOf(desc, anc) {
				continue
			}
			a, d := annotations[anc], annotations[desc]
			switch {
			case a.IsObserved() && d.IsObserved():
				add(Correction{Rule: RuleRedundantObserved, Ancestor: anc, Descendant: desc, Target: anc})
			case a.IsExcluded() && d.IsObserved():
				add(Correction{Rule: RuleExcludedAncestor, Ancestor: anc, Descendant: desc, Target: anc})
			case a.IsExcluded() && d.IsExcluded():
				add(Correction{Rule: RuleRedundantExcluded, Ancestor: anc, Descendant: desc, Target: desc})
			}
		}
	}
	return out
}

// SanitizeCohort sanitizes every row of the cohort in place and returns the
// number of cells changed. Rows are processed concurrently. When ctx is done
// the context error is returned and some rows may be left unsanitized.
func (s *Sanitizer) SanitizeCohort(ctx context.Context, c *domain.Cohort) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	counts := make([]int, len(c.Rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range c.Rows {
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			counts[i] = s.sanitizeRow(c, i)
			return nil
		})
	}
	err := g.Wait()

	total := 0
	for _, n := range counts {
		total += n
	}
	if err != nil {
		s.logger.WithError(err).WithField("corrections", total).Warn("Cohort sanitization interrupted")
		return total, err
	}
	s.logger.WithFields(logrus.Fields{
		"rows":        len(c.Rows),
		"corrections": total,
	}).Info("Cohort sanitized")
	return total, nil
}

func (s *Sanitizer) sanitizeRow(c *domain.Cohort, i int) int {
	before := c.RowAnnotations(i)
	after, applied := s.sanitize(before)
	if len(applied) == 0 {
		return 0
	}
	for j, h := range c.TermHeaders {
		c.Rows[i].CellValues[j] = after[h.ID]
	}
	return len(applied)
}
