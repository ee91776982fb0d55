// Package ontology provides an in-memory, read-only HPO graph that satisfies
// domain.Hierarchy, together with an OBO loader.
package ontology

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/phetools-curation-server/internal/domain"
)

// DefaultCacheSize bounds the memoized ancestor checks.
const DefaultCacheSize = 65536

// Term is one ontology class as read from the source file.
type Term struct {
	ID         domain.TermID
	Name       string
	AltIDs     []domain.TermID
	Parents    []domain.TermID
	Obsolete   bool
	ReplacedBy domain.TermID
}

type descendantKey struct {
	id, ancestor domain.TermID
}

// Graph is an immutable DAG keyed by primary identifier. All methods are safe
// for concurrent use.
type Graph struct {
	terms    map[domain.TermID]*Term
	children map[domain.TermID][]domain.TermID
	primary  map[domain.TermID]domain.TermID
	version  string
	cache    *lru.Cache[descendantKey, bool]
}

// GraphOption configures a Graph.
type GraphOption func(*Graph) error

// WithCacheSize sets the size of the ancestor-check cache.
func WithCacheSize(size int) GraphOption {
	return func(g *Graph) error {
		if size <= 0 {
			return fmt.Errorf("cache size must be positive, got %d", size)
		}
		cache, err := lru.New[descendantKey, bool](size)
		if err != nil {
			return fmt.Errorf("failed to create ancestor cache: %w", err)
		}
		g.cache = cache
		return nil
	}
}

// WithVersion records the ontology release.
func WithVersion(version string) GraphOption {
	return func(g *Graph) error {
		g.version = version
		return nil
	}
}

// NewGraph builds a graph from terms. The order of terms fixes the native order of
// every child list. Parents that are not defined are rejected.
func NewGraph(terms []Term, opts ...GraphOption) (*Graph, error) {
	g := &Graph{
		terms:    make(map[domain.TermID]*Term, len(terms)),
		children: make(map[domain.TermID][]domain.TermID),
		primary:  make(map[domain.TermID]domain.TermID, len(terms)),
	}
	for _, opt := range append([]GraphOption{WithCacheSize(DefaultCacheSize)}, opts...) {
		if err := opt(g); err != nil {
			return nil, err
		}
	}

	for i := range terms {
		t := terms[i]
		if _, dup := g.terms[t.ID]; dup {
			return nil, fmt.Errorf("duplicate term %s", t.ID)
		}
		g.terms[t.ID] = &t
		g.primary[t.ID] = t.ID
	}
	for _, t := range terms {
		for _, alt := range t.AltIDs {
			if _, clash := g.terms[alt]; clash {
				return nil, fmt.Errorf("alternate id %s of %s is also a primary id", alt, t.ID)
			}
			g.primary[alt] = t.ID
		}
	}
	for _, t := range terms {
		if t.Obsolete && t.ReplacedBy != "" {
			if _, ok := g.terms[t.ReplacedBy]; ok {
				g.primary[t.ID] = t.ReplacedBy
			}
		}
		for _, p := range t.Parents {
			if _, ok := g.terms[p]; !ok {
				return nil, fmt.Errorf("term %s has undefined parent %s", t.ID, p)
			}
			g.children[p] = append(g.children[p], t.ID)
		}
	}
	return g, nil
}

// Version returns the ontology release, if known.
func (g *Graph) Version() string {
	return g.version
}

// Len returns the number of primary terms.
func (g *Graph) Len() int {
	return len(g.terms)
}

// Term returns the term record for a primary or alternate id.
func (g *Graph) Term(id domain.TermID) (Term, bool) {
	pid, ok := g.primary[id]
	if !ok {
		return Term{}, false
	}
	t, ok := g.terms[pid]
	if !ok {
		return Term{}, false
	}
	return *t, true
}

// TermExists reports whether id is known, as a primary, alternate or obsolete id.
func (g *Graph) TermExists(id domain.TermID) bool {
	_, ok := g.primary[id]
	return ok
}

// LabelOf returns the label of the term id resolves to.
func (g *Graph) LabelOf(id domain.TermID) (string, bool) {
	t, ok := g.Term(id)
	if !ok {
		return "", false
	}
	return t.Name, true
}

// IsObsolete reports whether id names an obsolete class.
func (g *Graph) IsObsolete(id domain.TermID) bool {
	t, ok := g.terms[id]
	return ok && t.Obsolete
}

// PrimaryIDOf resolves alternate and replaced obsolete identifiers.
func (g *Graph) PrimaryIDOf(id domain.TermID) (domain.TermID, bool) {
	pid, ok := g.primary[id]
	return pid, ok
}

// ChildrenOf returns the direct children of id. The returned slice is a copy.
func (g *Graph) ChildrenOf(id domain.TermID) []domain.TermID {
	pid, ok := g.primary[id]
	if !ok {
		return nil
	}
	kids := g.children[pid]
	out := make([]domain.TermID, len(kids))
	copy(out, kids)
	return out
}

// ParentsOf returns the direct parents of id.
func (g *Graph) ParentsOf(id domain.TermID) []domain.TermID {
	t, ok := g.Term(id)
	if !ok {
		return nil
	}
	out := make([]domain.TermID, len(t.Parents))
	copy(out, t.Parents)
	return out
}

// IsDescendantOf reports whether id is a proper descendant of ancestor.
func (g *Graph) IsDescendantOf(id, ancestor domain.TermID) bool {
	from, ok := g.primary[id]
	if !ok {
		return false
	}
	to, ok := g.primary[ancestor]
	if !ok || from == to {
		return false
	}
	key := descendantKey{id: from, ancestor: to}
	if v, ok := g.cache.Get(key); ok {
		return v
	}
	_, found := g.ancestors(from)[to]
	g.cache.Add(key, found)
	return found
}

// Ancestors returns every proper ancestor of id.
func (g *Graph) Ancestors(id domain.TermID) []domain.TermID {
	pid, ok := g.primary[id]
	if !ok {
		return nil
	}
	set := g.ancestors(pid)
	out := make([]domain.TermID, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	return out
}

func (g *Graph) ancestors(id domain.TermID) map[domain.TermID]struct{} {
	seen := make(map[domain.TermID]struct{})
	stack := append([]domain.TermID(nil), g.terms[id].Parents...)
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		if _, ok := seen[cur]; ok {
			continue
		}
		seen[cur] = struct{}{}
		stack = append(stack, g.terms[cur].Parents...)
	}
	return seen
}

var _ domain.Hierarchy = (*Graph)(nil)
