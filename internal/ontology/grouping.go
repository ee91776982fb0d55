package ontology

import "github.com/phetools-curation-server/internal/domain"

// TopLevelGroup is an organ-system branch of Phenotypic abnormality and the
// cohort terms that fall under it.
type TopLevelGroup struct {
	Root  domain.TermRef   `json:"root"`
	Terms []domain.TermRef `json:"terms"`
}

// GroupByTopLevel assigns each term to every child of Phenotypic abnormality it
// descends from. Groups follow the native child order and empty groups are
// omitted. Terms outside Phenotypic abnormality are returned separately.
func GroupByTopLevel(h domain.Hierarchy, terms []domain.TermRef) ([]TopLevelGroup, []domain.TermRef) {
	var groups []TopLevelGroup
	placed := make(map[domain.TermID]bool, len(terms))
	for _, root := range h.ChildrenOf(domain.PhenotypicAbnormalityID) {
		label, _ := h.LabelOf(root)
		group := TopLevelGroup{Root: domain.TermRef{ID: root, Label: label}}
		for _, t := range terms {
			if t.ID == root || h.IsDescendantOf(t.ID, root) {
				group.Terms = append(group.Terms, t)
				placed[t.ID] = true
			}
		}
		if len(group.Terms) > 0 {
			groups = append(groups, group)
		}
	}

	var ungrouped []domain.TermRef
	for _, t := range terms {
		if !placed[t.ID] {
			ungrouped = append(ungrouped, t)
		}
	}
	return groups, ungrouped
}
