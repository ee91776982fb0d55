package service

import (
	"github.com/sirupsen/logrus"

	"github.com/phetools-curation-server/internal/domain"
)

// ArrangeResult is the curation order of a term set. Ordered covers every
// distinct input term; Unreachable lists the terms that could not be placed
// from the phenotypic abnormality root and were appended last.
type ArrangeResult struct {
	Ordered     []domain.TermID `json:"ordered"`
	Unreachable []domain.TermID `json:"unreachable,omitempty"`
}

// Arranger orders HPO terms for review so that related terms sit together.
type Arranger struct {
	hierarchy domain.Hierarchy
	logger    *logrus.Logger
}

// NewArranger creates an arranger over the given hierarchy.
func NewArranger(h domain.Hierarchy, logger *logrus.Logger) *Arranger {
	return &Arranger{hierarchy: h, logger: logger}
}

// Arrange returns terms in depth-first pre-order from Phenotypic abnormality,
// children visited in the hierarchy's native order. Neoplasm terms are
// collected by a first traversal and placed after all other terms.
func (a *Arranger) Arrange(terms []domain.TermID) ArrangeResult {
	wanted := make(map[domain.TermID]struct{}, len(terms))
	var input []domain.TermID
	for _, id := range terms {
		if _, dup := wanted[id]; dup {
			continue
		}
		wanted[id] = struct{}{}
		input = append(input, id)
	}

	visited := make(map[domain.TermID]struct{})
	neoplasms := a.traverse(domain.NeoplasmID, wanted, visited)
	general := a.traverse(domain.PhenotypicAbnormalityID, wanted, visited)

	ordered := make([]domain.TermID, 0, len(input))
	ordered = append(ordered, general...)
	ordered = append(ordered, neoplasms...)

	placed := make(map[domain.TermID]struct{}, len(ordered))
	for _, id := range ordered {
		placed[id] = struct{}{}
	}
	var unreachable []domain.TermID
	for _, id := range input {
		if _, ok := placed[id]; !ok {
			unreachable = append(unreachable, id)
		}
	}
	if len(unreachable) > 0 {
		a.logger.WithFields(logrus.Fields{
			"count": len(unreachable),
			"terms": unreachable,
		}).Warn("Terms not reachable from the phenotypic abnormality root")
		ordered = append(ordered, unreachable...)
	}

	return ArrangeResult{Ordered: ordered, Unreachable: unreachable}
}

// ArrangeRefs orders term references and also reports unreachable terms.
func (a *Arranger) ArrangeRefs(refs []domain.TermRef) ([]domain.TermRef, []domain.TermID) {
	byID := make(map[domain.TermID]domain.TermRef, len(refs))
	ids := make([]domain.TermID, 0, len(refs))
	for _, r := range refs {
		if _, dup := byID[r.ID]; dup {
			continue
		}
		byID[r.ID] = r
		ids = append(ids, r.ID)
	}
	res := a.Arrange(ids)
	out := make([]domain.TermRef, len(res.Ordered))
	for i, id := range res.Ordered {
		out[i] = byID[id]
	}
	return out, res.Unreachable
}

// traverse runs an iterative pre-order DFS from root over unvisited nodes and
// returns the members of wanted in visiting order. visited is shared between
// traversals.
func (a *Arranger) traverse(root domain.TermID, wanted, visited map[domain.TermID]struct{}) []domain.TermID {
	if !a.hierarchy.TermExists(root) {
		return nil
	}
	var out []domain.TermID
	stack := []domain.TermID{root}
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		if _, seen := visited[cur]; seen {
			continue
		}
		visited[cur] = struct{}{}
		if _, ok := wanted[cur]; ok {
			out = append(out, cur)
		}
		children := a.hierarchy.ChildrenOf(cur)
		// reversed so the first child is popped first
		for i := len(children) - 1; i >= 0; i-- {
			if _, seen := visited[children[i]]; !seen {
				stack = append(stack, children[i])
			}
		}
	}
	return out
}
