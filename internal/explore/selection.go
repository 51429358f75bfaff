package explore

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ErrAmbiguousElimination indicates an answer referencing values that
// are not in the current candidate set. That is a collaborator bug,
// not an analyst mistake, and aborts the session.
var ErrAmbiguousElimination = errors.New("selection references values outside the candidate set")

// State of a narrowing session.
type State int

const (
	// Active means at least one free dimension still offers a choice.
	Active State = iota
	// Resolved means every dimension is determined or inapplicable.
	Resolved
)

// Selection is the working state of an interactive session: the
// retained grouped table, the dimensions already answered, and the
// ones still free. Eliminate returns a new Selection rather than
// mutating in place, so each round can be inspected in isolation and
// there is nothing to roll back.
type Selection struct {
	Groups []*Group
	Free   []string
	Chosen map[string][]string
}

func NewSelection(groups []*Group, dimensions []string) *Selection {
	free := make([]string, len(dimensions))
	copy(free, dimensions)
	return &Selection{
		Groups: groups,
		Free:   free,
		Chosen: map[string][]string{},
	}
}

// State reports whether any free dimension still offers a defined,
// non-empty choice set.
func (s *Selection) State() State {
	if _, ok := MaxEntropyDimension(s.Groups, s.Free); ok {
		return Active
	}
	return Resolved
}

// Candidates returns the sorted distinct present values of dim across
// the retained groups. An empty result means the dimension is not
// applicable given the choices so far.
func (s *Selection) Candidates(dim string) []string {
	seen := map[string]bool{}
	var out []string
	for _, g := range s.Groups {
		v := g.Dims[dim]
		if !v.Present() || seen[v.String()] {
			continue
		}
		seen[v.String()] = true
		out = append(out, v.String())
	}
	sort.Strings(out)
	return out
}

// Eliminate answers dim with the chosen value subset and returns the
// shrunk Selection. A group survives if its value for dim is chosen OR
// missing: a run the dimension does not apply to is compatible with
// any choice on it, so value filters never eliminate it.
func (s *Selection) Eliminate(dim string, chosen []string) (*Selection, error) {
	valid := map[string]bool{}
	for _, c := range s.Candidates(dim) {
		valid[c] = true
	}
	keep := map[string]bool{}
	for _, c := range chosen {
		if !valid[c] {
			return nil, fmt.Errorf("%w: %q is not a value of dimension %q", ErrAmbiguousElimination, c, dim)
		}
		keep[c] = true
	}

	var retained []*Group
	for _, g := range s.Groups {
		v := g.Dims[dim]
		if !v.Present() || keep[v.String()] {
			retained = append(retained, g)
		}
	}

	free := make([]string, 0, len(s.Free))
	for _, d := range s.Free {
		if d != dim {
			free = append(free, d)
		}
	}

	next := &Selection{
		Groups: retained,
		Free:   free,
		Chosen: make(map[string][]string, len(s.Chosen)+1),
	}
	for d, vals := range s.Chosen {
		next.Chosen[d] = vals
	}
	next.Chosen[dim] = chosen
	return next, nil
}

// DimensionEntropy computes the Shannon entropy (natural log) of the
// distribution of retained-group counts across dim's values. Groups
// with a missing value do not contribute. ok is false when no retained
// group has any value for dim at all: the dimension is not applicable
// and must be excluded from ranking, which is different from an
// applicable but fully determined dimension scoring exactly zero.
func DimensionEntropy(groups []*Group, dim string) (entropy float64, ok bool) {
	counts := map[string]int{}
	total := 0
	for _, g := range groups {
		v := g.Dims[dim]
		if !v.Present() {
			continue
		}
		counts[v.String()]++
		total++
	}
	if total == 0 {
		return 0, false
	}

	p := make([]float64, 0, len(counts))
	for _, c := range counts {
		p = append(p, float64(c)/float64(total))
	}
	return stat.Entropy(p), true
}

// MaxEntropyDimension picks the free dimension carrying the most
// information about the retained groups. Inapplicable dimensions are
// skipped entirely. Ties go to the lexicographically-first name so
// identical data always yields the same question order.
func MaxEntropyDimension(groups []*Group, dims []string) (string, bool) {
	ordered := make([]string, len(dims))
	copy(ordered, dims)
	sort.Strings(ordered)

	best := ""
	bestEntropy := 0.0
	found := false
	for _, dim := range ordered {
		e, ok := DimensionEntropy(groups, dim)
		if !ok {
			continue
		}
		if !found || e > bestEntropy {
			best = dim
			bestEntropy = e
			found = true
		}
	}
	return best, found
}
