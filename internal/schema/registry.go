package schema

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/othala/internal/apperr"
)

// Registry holds every loaded schema definition keyed by kind.
// It is populated once at startup and read-only afterwards, so concurrent
// reads from multiple open documents need no locking.
type Registry struct {
	defs map[string]*Definition
}

// NewRegistry creates an empty registry. Mostly useful in tests; production
// code goes through LoadDir.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds a validated definition. Duplicate kinds are rejected.
func (r *Registry) Register(def *Definition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("schema: invalid definition %q: %w", def.Kind, err)
	}
	if _, dup := r.defs[def.Kind]; dup {
		return fmt.Errorf("schema: duplicate definition for kind %q", def.Kind)
	}
	r.defs[def.Kind] = def
	return nil
}

// Get returns the root node for a kind, or ErrSchemaMissing. Values of an
// unregistered kind still render upstream as opaque editable scalars.
func (r *Registry) Get(kind string) (*Node, error) {
	def, ok := r.defs[kind]
	if !ok {
		return nil, fmt.Errorf("schema: kind %q: %w", kind, apperr.ErrSchemaMissing)
	}
	return def.Root, nil
}

// Kinds returns every registered kind name.
func (r *Registry) Kinds() []string {
	out := make([]string, 0, len(r.defs))
	for k := range r.defs {
		out = append(out, k)
	}
	return out
}

// LoadDir reads every .yaml/.yml file under dir as one schema definition.
// A malformed file fails the load: schemas ship with the editor, not with
// user mods, so a bad one is a packaging bug.
func LoadDir(dir string, logger *slog.Logger) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("schema: read dir %s: %w", dir, err)
	}
	r := NewRegistry()
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("schema: read %s: %w", name, err)
		}
		var def Definition
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("schema: parse %s: %w", name, err)
		}
		if err := r.Register(&def); err != nil {
			return nil, fmt.Errorf("schema: %s: %w", name, err)
		}
		logger.Debug("schema loaded", slog.String("kind", def.Kind), slog.String("file", name))
	}
	return r, nil
}
