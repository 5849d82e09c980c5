// Package reference classifies string leaves into semantic reference kinds
// and resolves candidate targets through the reference index.
package reference

import (
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/schema"
)

// Target is one resolved candidate for a reference-typed value.
// Targets are never persisted; they are recomputed on demand.
type Target struct {
	Kind   schema.RefKind `json:"kind"`
	Key    string         `json:"key"`
	Path   string         `json:"path"`
	Origin models.Origin  `json:"origin"`
}

// Classify returns the reference kind of a scalar value. It is a pure
// function of the descriptor: the kind comes from the schema annotation, so
// identical inputs always yield the identical kind and unrelated strings
// never get speculative reference treatment. The raw value does not
// participate; it is accepted so call sites read like the contract.
func Classify(desc *schema.Descriptor, _ string) schema.RefKind {
	if desc == nil {
		return schema.RefNone
	}
	return desc.Reference
}

// Resolver answers candidate queries against the index.
type Resolver struct {
	idx index.ReferenceIndex
}

// NewResolver creates a resolver over the given index.
func NewResolver(idx index.ReferenceIndex) *Resolver {
	return &Resolver{idx: idx}
}

// Candidates lists every known target of one reference kind.
func (r *Resolver) Candidates(kind schema.RefKind, limit int) ([]Target, error) {
	if kind == schema.RefNone {
		return nil, nil
	}
	rows, err := r.idx.Candidates(string(kind), limit)
	if err != nil {
		return nil, err
	}
	return toTargets(rows), nil
}

// ResolveValue returns the targets matching one raw value exactly. A declared
// kind with no plausible candidate yields zero targets, not an error: callers
// render that as an unresolved reference.
func (r *Resolver) ResolveValue(kind schema.RefKind, raw string) ([]Target, error) {
	if kind == schema.RefNone || raw == "" {
		return nil, nil
	}
	rows, err := r.idx.LookupCandidates(string(kind), raw)
	if err != nil {
		return nil, err
	}
	return toTargets(rows), nil
}

func toTargets(rows []index.CandidateRow) []Target {
	out := make([]Target, len(rows))
	for i, c := range rows {
		out[i] = Target{
			Kind:   schema.RefKind(c.Kind),
			Key:    c.Key,
			Path:   c.Path,
			Origin: models.Origin(c.Origin),
		}
	}
	return out
}
