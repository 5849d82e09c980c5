package overlay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/document"
)

// Manifest is the explicit list of overlay-owned file ids for one category,
// persisted as `<category>.manifest` at the overlay root. Ids stay sorted,
// matching the files the original editor writes.
type Manifest struct {
	IDs []string `json:"ids"`
}

// Has reports whether id is registered.
func (m *Manifest) Has(id string) bool {
	for _, v := range m.IDs {
		if v == id {
			return true
		}
	}
	return false
}

// Warning is one non-blocking manifest inconsistency.
type Warning struct {
	Category Category `json:"category"`
	ID       string   `json:"id"`
	Problem  string   `json:"problem"`
}

func (w Warning) Error() string {
	return fmt.Sprintf("overlay: %s/%s: %s: %v", w.Category, w.ID, w.Problem, apperr.ErrManifestInconsistency)
}

// Unwrap lets errors.Is match ErrManifestInconsistency.
func (w Warning) Unwrap() error { return apperr.ErrManifestInconsistency }

func manifestPath(cat Category) string {
	return string(cat) + ".manifest"
}

// LoadManifest reads a category's manifest; a missing file is an empty
// manifest, not an error.
func (r *Resolver) LoadManifest(cat Category) (*Manifest, error) {
	if !categories[cat].manifested {
		return &Manifest{}, nil
	}
	p := manifestPath(cat)
	if !r.ovl.Exists(p) {
		return &Manifest{}, nil
	}
	data, err := r.ovl.Read(p)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("overlay: parse manifest %s: %w", p, err)
	}
	return &m, nil
}

func (r *Resolver) saveManifest(cat Category, m *Manifest) error {
	sort.Strings(m.IDs)
	ids := document.Array()
	for _, id := range m.IDs {
		ids.Elems = append(ids.Elems, document.Scalar(id))
	}
	root := document.Object()
	root.Members = append(root.Members, document.Member{Name: "ids", Node: ids})
	return r.ovl.Write(manifestPath(cat), document.Encode(root))
}

// AddManifestID registers an id, keeping the list sorted. Adding an existing
// id is a no-op.
func (r *Resolver) AddManifestID(cat Category, id string) error {
	m, err := r.LoadManifest(cat)
	if err != nil {
		return err
	}
	if m.Has(id) {
		return nil
	}
	m.IDs = append(m.IDs, id)
	return r.saveManifest(cat, m)
}

// RemoveManifestID unregisters an id; unknown ids are a no-op.
func (r *Resolver) RemoveManifestID(cat Category, id string) error {
	m, err := r.LoadManifest(cat)
	if err != nil {
		return err
	}
	if !m.Has(id) {
		return nil
	}
	out := m.IDs[:0]
	for _, v := range m.IDs {
		if v != id {
			out = append(out, v)
		}
	}
	m.IDs = out
	return r.saveManifest(cat, m)
}

// CheckConsistency compares a category's manifest against the overlay tree.
// Unmanifested overlay files and manifested-but-missing files are warnings,
// never load blockers.
func (r *Resolver) CheckConsistency(cat Category) ([]Warning, error) {
	spec := categories[cat]
	if !spec.manifested {
		return nil, nil
	}
	m, err := r.LoadManifest(cat)
	if err != nil {
		return nil, err
	}
	files, err := r.ovl.List(spec.dir, spec.exts...)
	if err != nil {
		return nil, err
	}

	var warnings []Warning
	onDisk := make(map[string]struct{}, len(files))
	for _, f := range files {
		id := stem(f.Path)
		onDisk[id] = struct{}{}
		// Shadow copies of base files are legitimately unmanifested; only a
		// genuinely new overlay file must be declared.
		if !m.Has(id) && !r.base.Exists(f.Path) {
			warnings = append(warnings, Warning{Category: cat, ID: id, Problem: "overlay file not in manifest"})
		}
	}
	for _, id := range m.IDs {
		if _, ok := onDisk[id]; !ok {
			warnings = append(warnings, Warning{Category: cat, ID: id, Problem: "manifested file missing on disk"})
		}
	}
	for _, w := range warnings {
		r.logger.Warn("manifest inconsistency",
			slog.String("category", string(w.Category)),
			slog.String("id", w.ID),
			slog.String("problem", w.Problem))
	}
	return warnings, nil
}
