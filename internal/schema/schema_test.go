package schema

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/models"
)

const entityYAML = `
kind: entity
root:
  type: object
  closed: true
  members:
    - name: id
      type: string
      required: true
      readonly: true
    - name: speed
      type: number
      default: 5
    - name: size
      type: string
      enum: [small, large]
    - name: icon
      type: string
      reference: texture-path
    - name: resists
      type: array
      element:
        type: object
        members:
          - name: value
            type: number
    - name: version
      type: number
      materialize: always
`

func loadDef(t *testing.T, src string) *Definition {
	t.Helper()
	var def Definition
	if err := yaml.Unmarshal([]byte(src), &def); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if err := def.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return &def
}

func TestDefinitionParsing(t *testing.T) {
	def := loadDef(t, entityYAML)
	if def.Kind != "entity" {
		t.Errorf("kind = %q", def.Kind)
	}
	if !def.Root.Closed {
		t.Error("root closed flag lost")
	}
	id := def.Root.Member("id")
	if id == nil || !id.Required || !id.ReadOnly {
		t.Errorf("id member = %+v", id)
	}
	if def.Root.Member("icon").Reference != RefTexturePath {
		t.Error("reference kind lost")
	}
	if def.Root.Member("version").Materialize != MaterializeAlways {
		t.Error("materialize flag lost")
	}
}

func TestValidateRejections(t *testing.T) {
	cases := map[string]string{
		"array without element": `
kind: broken
root:
  type: array
`,
		"members on scalar": `
kind: broken
root:
  type: string
  members:
    - name: x
      type: string
`,
		"duplicate member": `
kind: broken
root:
  type: object
  members:
    - name: a
      type: string
    - name: a
      type: number
`,
		"unknown type": `
kind: broken
root:
  type: blob
`,
		"unknown reference": `
kind: broken
root:
  type: string
  reference: spaceship-id
`,
	}
	for name, src := range cases {
		var def Definition
		if err := yaml.Unmarshal([]byte(src), &def); err != nil {
			t.Fatalf("%s: yaml: %v", name, err)
		}
		if err := def.Validate(); err == nil {
			t.Errorf("%s: Validate should fail", name)
		}
	}
}

func TestDescribeAtWalk(t *testing.T) {
	def := loadDef(t, entityYAML)

	desc, err := DescribeAt(def.Root, models.Path{models.MemberStep("speed")})
	if err != nil {
		t.Fatalf("DescribeAt: %v", err)
	}
	if desc.Type != TypeNumber || desc.Default != 5 {
		t.Errorf("speed descriptor = %+v", desc)
	}

	// Array elements share the one element schema.
	p := models.Path{models.MemberStep("resists"), models.IndexStep(3), models.MemberStep("value")}
	desc, err = DescribeAt(def.Root, p)
	if err != nil {
		t.Fatalf("DescribeAt: %v", err)
	}
	if desc.Type != TypeNumber {
		t.Errorf("resists[3].value type = %v, want number", desc.Type)
	}

	// Undeclared location: editable extra, no error.
	desc, err = DescribeAt(def.Root, models.Path{models.MemberStep("undeclared")})
	if err != nil {
		t.Fatalf("DescribeAt: %v", err)
	}
	if !desc.Extra || desc.Type != TypeAny {
		t.Errorf("undeclared descriptor = %+v", desc)
	}

	// Contradicting the schema is an error.
	if _, err := At(def.Root, models.Path{models.IndexStep(0)}); err == nil {
		t.Error("index step into object should fail")
	}
	if _, err := At(def.Root, models.Path{models.MemberStep("speed"), models.MemberStep("deep")}); err == nil {
		t.Error("member step into number leaf should fail")
	}
}

func TestZeroValue(t *testing.T) {
	if v := (&Node{Type: TypeString}).ZeroValue(); v != "" {
		t.Errorf("string zero = %v", v)
	}
	if v := (&Node{Type: TypeNumber, Default: 9}).ZeroValue(); v != 9 {
		t.Errorf("default beats zero: %v", v)
	}
	if v := (&Node{Type: TypeBool}).ZeroValue(); v != false {
		t.Errorf("bool zero = %v", v)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	def := loadDef(t, entityYAML)
	if err := r.Register(def); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(def); err == nil {
		t.Error("duplicate kind should be rejected")
	}
	if _, err := r.Get("entity"); err != nil {
		t.Errorf("Get: %v", err)
	}
	_, err := r.Get("spaceship")
	if !errors.Is(err, apperr.ErrSchemaMissing) {
		t.Errorf("err = %v, want ErrSchemaMissing", err)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "entity.yaml"), []byte(entityYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	// Non-schema files are skipped.
	if err := os.WriteFile(filepath.Join(dir, "README.txt"), []byte("ignore"), 0o644); err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r, err := LoadDir(dir, logger)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(r.Kinds()) != 1 {
		t.Errorf("kinds = %v, want [entity]", r.Kinds())
	}

	// A malformed schema fails the whole load.
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("kind: bad\nroot:\n  type: array\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDir(dir, logger); err == nil {
		t.Error("malformed schema should fail LoadDir")
	}
}
