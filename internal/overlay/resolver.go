// Package overlay merges the immutable base dataset and the mutable overlay
// (mod) tree into one logical namespace. The overlay shadows the base by
// matching relative path; manifests track which files the overlay owns.
package overlay

import (
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/storage"
)

// Category is one data category of the merged namespace.
type Category string

const (
	CategoryEntities     Category = "entities"
	CategoryResearch     Category = "research"
	CategoryUniforms     Category = "uniforms"
	CategoryLocalization Category = "localization"
	CategoryTextures     Category = "textures"
	CategorySounds       Category = "sounds"
)

type categorySpec struct {
	dir        string
	exts       []string
	manifested bool   // uniforms carry no manifest, nor do asset categories
	schemaKind string // empty for asset categories
}

var categories = map[Category]categorySpec{
	CategoryEntities:     {dir: "entities", exts: []string{".json"}, manifested: true, schemaKind: "entity"},
	CategoryResearch:     {dir: "research", exts: []string{".json"}, manifested: true, schemaKind: "research"},
	CategoryUniforms:     {dir: "uniforms", exts: []string{".json"}, schemaKind: "uniform"},
	CategoryLocalization: {dir: "localization", exts: []string{".json"}, schemaKind: "localization"},
	CategoryTextures:     {dir: "textures", exts: []string{".png", ".jpg", ".dds"}},
	CategorySounds:       {dir: "sounds", exts: []string{".ogg", ".wav"}},
}

// Categories returns every known category in a stable order.
func Categories() []Category {
	return []Category{
		CategoryEntities, CategoryResearch, CategoryUniforms,
		CategoryLocalization, CategoryTextures, CategorySounds,
	}
}

// ParseCategory validates a category name from a collaborator surface.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if _, ok := categories[c]; !ok {
		return "", fmt.Errorf("overlay: unknown category %q: %w", s, apperr.ErrNotFound)
	}
	return c, nil
}

// SchemaKind returns the schema kind for a category's documents, or "".
func (c Category) SchemaKind() string { return categories[c].schemaKind }

// Dir returns the category's directory relative to either tree root.
func (c Category) Dir() string { return categories[c].dir }

// IsDocument reports whether the category holds JSON documents (as opposed
// to binary assets listed for reference resolution only).
func (c Category) IsDocument() bool { return categories[c].schemaKind != "" }

// CategoryOf derives the category from a logical path's leading directory.
func CategoryOf(logical string) (Category, bool) {
	head := logical
	if i := strings.IndexByte(logical, '/'); i >= 0 {
		head = logical[:i]
	}
	for _, c := range Categories() {
		if categories[c].dir == head {
			return c, true
		}
	}
	return "", false
}

// Resolver merges the two trees. It performs no caching and keeps no mutable
// state of its own, so concurrent reads across open documents are safe; all
// writes go to the overlay provider, which writes atomically.
type Resolver struct {
	base   storage.Provider
	ovl    storage.Provider
	logger *slog.Logger
}

// New creates a resolver over the two trees.
func New(base, ovl storage.Provider, logger *slog.Logger) *Resolver {
	return &Resolver{base: base, ovl: ovl, logger: logger}
}

// Resolve maps a logical path to the physical file that wins: the overlay
// copy if present, else the base copy. Neither tree having it is NotFound.
func (r *Resolver) Resolve(logical string) (string, models.Origin, error) {
	if r.ovl.Exists(logical) {
		return path.Join(r.ovl.Root(), logical), models.OriginOverlay, nil
	}
	if r.base.Exists(logical) {
		return path.Join(r.base.Root(), logical), models.OriginBase, nil
	}
	return "", "", fmt.Errorf("overlay: resolve %s: %w", logical, apperr.ErrNotFound)
}

// Read returns the winning file's bytes and origin.
func (r *Resolver) Read(logical string) ([]byte, models.Origin, error) {
	if r.ovl.Exists(logical) {
		data, err := r.ovl.Read(logical)
		return data, models.OriginOverlay, err
	}
	if r.base.Exists(logical) {
		data, err := r.base.Read(logical)
		return data, models.OriginBase, err
	}
	return nil, "", fmt.Errorf("overlay: read %s: %w", logical, apperr.ErrNotFound)
}

// ReadLayers returns both physical copies of a logical path, either of which
// may be nil. Document load merges them per member rather than letting the
// overlay replace the whole file.
func (r *Resolver) ReadLayers(logical string) (baseData, ovlData []byte, err error) {
	if r.base.Exists(logical) {
		if baseData, err = r.base.Read(logical); err != nil {
			return nil, nil, err
		}
	}
	if r.ovl.Exists(logical) {
		if ovlData, err = r.ovl.Read(logical); err != nil {
			return nil, nil, err
		}
	}
	if baseData == nil && ovlData == nil {
		return nil, nil, fmt.Errorf("overlay: %s: %w", logical, apperr.ErrNotFound)
	}
	return baseData, ovlData, nil
}

// List returns the merged view of one category: every logical path present in
// either tree, overlay entries shadowing base entries of the same path.
func (r *Resolver) List(cat Category) ([]models.Entry, error) {
	spec, ok := categories[cat]
	if !ok {
		return nil, fmt.Errorf("overlay: unknown category %q: %w", cat, apperr.ErrNotFound)
	}
	ovlFiles, err := r.ovl.List(spec.dir, spec.exts...)
	if err != nil {
		return nil, err
	}
	baseFiles, err := r.base.List(spec.dir, spec.exts...)
	if err != nil {
		return nil, err
	}

	out := make([]models.Entry, 0, len(ovlFiles)+len(baseFiles))
	shadowed := make(map[string]struct{}, len(ovlFiles))
	for _, f := range ovlFiles {
		shadowed[f.Path] = struct{}{}
		out = append(out, models.Entry{FileInfo: f, Origin: models.OriginOverlay})
	}
	for _, f := range baseFiles {
		if _, hidden := shadowed[f.Path]; hidden {
			continue
		}
		out = append(out, models.Entry{FileInfo: f, Origin: models.OriginBase})
	}
	return out, nil
}

// WriteOverlay writes a file into the overlay tree.
func (r *Resolver) WriteOverlay(logical string, data []byte) error {
	return r.ovl.Write(logical, data)
}

// DeleteOverlay removes a file from the overlay tree.
func (r *Resolver) DeleteOverlay(logical string) error {
	return r.ovl.Delete(logical)
}

// OverlayHas reports whether the overlay physically holds the path.
func (r *Resolver) OverlayHas(logical string) bool {
	return r.ovl.Exists(logical)
}

// CopyFromBase copies a resolved file into the overlay tree. manifested
// reports whether a manifest id was actually registered for the copy.
//
// With newName empty and addToManifest false, the copy shadows the base file
// under the identical logical path without manifest registration (an
// "override without renaming"). With newName set, a new overlay file is
// created next to the source and, when requested, registered in the
// category's manifest. An existing overlay file under newName is a
// NameCollision.
func (r *Resolver) CopyFromBase(logical, newName string, addToManifest bool) (target string, manifested bool, err error) {
	data, _, err := r.Read(logical)
	if err != nil {
		return "", false, err
	}

	target = logical
	if newName != "" {
		target = siblingPath(logical, newName)
		if r.ovl.Exists(target) {
			return "", false, fmt.Errorf("overlay: copy to %s: %w", target, apperr.ErrNameCollision)
		}
	}
	if err := r.ovl.Write(target, data); err != nil {
		return "", false, err
	}

	if addToManifest && newName != "" {
		cat, ok := CategoryOf(target)
		if ok && categories[cat].manifested {
			if err := r.AddManifestID(cat, stem(target)); err != nil {
				return "", false, err
			}
			manifested = true
		}
	}
	r.logger.Info("copied from base",
		slog.String("source", logical),
		slog.String("target", target),
		slog.Bool("manifested", manifested))
	return target, manifested, nil
}

// siblingPath places name next to logical, keeping the source extension when
// name carries none.
func siblingPath(logical, name string) string {
	if strings.ContainsRune(name, '/') {
		return path.Clean(name)
	}
	dir := path.Dir(logical)
	if path.Ext(name) == "" {
		name += path.Ext(logical)
	}
	return path.Join(dir, name)
}

func stem(logical string) string {
	b := path.Base(logical)
	return strings.TrimSuffix(b, path.Ext(b))
}
