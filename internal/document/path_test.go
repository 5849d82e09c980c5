package document

import (
	"testing"
)

func TestParsePathRoot(t *testing.T) {
	p, err := ParsePath("$")
	if err != nil {
		t.Fatalf("ParsePath: %v", err)
	}
	if !p.IsRoot() {
		t.Error("$ should parse to the root path")
	}
}

func TestParsePathSteps(t *testing.T) {
	p, err := ParsePath("$.stats.resists[2].value")
	if err != nil {
		t.Fatalf("ParsePath: %v", err)
	}
	if got := p.String(); got != "stats.resists[2].value" {
		t.Errorf("String() = %q", got)
	}
	if len(p) != 4 {
		t.Fatalf("len = %d, want 4", len(p))
	}
	if p[2].Index != 2 || !p[2].IsIndex {
		t.Errorf("step 2 = %+v, want index 2", p[2])
	}
}

func TestParsePathRejectsUnsupported(t *testing.T) {
	for _, bad := range []string{"$..deep", "$.a[*]", "$.a['q','r']"} {
		if _, err := ParsePath(bad); err == nil {
			t.Errorf("ParsePath(%q) should fail", bad)
		}
	}
}

func TestAtMissReturnsNil(t *testing.T) {
	root := Parse([]byte(`{"a": {"b": 1}}`))
	if n := At(root, mustPath(t, "$.a.b")); n == nil {
		t.Error("existing path should resolve")
	}
	if n := At(root, mustPath(t, "$.a.zz")); n != nil {
		t.Error("missing path should return nil")
	}
	if n := At(root, mustPath(t, "$.a.b[0]")); n != nil {
		t.Error("indexing a scalar should return nil")
	}
}
