package schema

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDefaultCatalogueLabels(t *testing.T) {
	cat := Default()
	want := []string{"증여", "매매", "교환", "소비대차", "사용대차", "임대차", "고용", "도급"}
	got := cat.Labels()
	if len(got) != len(want) {
		t.Fatalf("labels: got=%v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("label %d: got=%q want=%q", i, got[i], want[i])
		}
	}
	for _, bad := range []string{OtherLabel, "빌려주기", "", "lease"} {
		if cat.IsSupportedType(bad) {
			t.Fatalf("%q must not be supported", bad)
		}
	}
}

func TestSkeletonMatchesSchema(t *testing.T) {
	cat := Default()
	for _, label := range cat.Labels() {
		cs, _ := cat.Get(label)
		var tree map[string]any
		if err := json.Unmarshal(cs.Skeleton(), &tree); err != nil {
			t.Fatalf("%s: skeleton is not JSON: %v", label, err)
		}
		if !cat.MatchesSchema(label, tree) {
			t.Fatalf("%s: skeleton does not match its own schema: %v", label, Diff(cs.Fields, tree))
		}
		if got := len(cat.CanonicalSchema(label)); got != len(cs.LeafPaths()) {
			t.Fatalf("%s: canonical set size %d vs leaf paths %d", label, got, len(cs.LeafPaths()))
		}
		for path := range cs.ReviewNotes() {
			if !cat.IsValidFieldPath(label, path) {
				t.Fatalf("%s: review note for unknown path %s", label, path)
			}
		}
	}
}

func skeletonTree(t *testing.T, label string) map[string]any {
	t.Helper()
	cs, ok := Default().Get(label)
	if !ok {
		t.Fatalf("missing %s", label)
	}
	var tree map[string]any
	if err := json.Unmarshal(cs.Skeleton(), &tree); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return tree
}

func TestMatchesSchemaRejectsExtraAndMissing(t *testing.T) {
	cat := Default()

	extraTop := skeletonTree(t, "증여")
	extraTop["surprise"] = ""
	if cat.MatchesSchema("증여", extraTop) {
		t.Fatalf("extra top-level key accepted")
	}

	extraNested := skeletonTree(t, "증여")
	extraNested["donor"].(map[string]any)["nickname"] = ""
	if cat.MatchesSchema("증여", extraNested) {
		t.Fatalf("extra nested key accepted")
	}

	missingDeep := skeletonTree(t, "증여")
	delete(missingDeep["gifted_property"].(map[string]any)["details"].(map[string]any), "area")
	if cat.MatchesSchema("증여", missingDeep) {
		t.Fatalf("missing deep key accepted")
	}

	flattened := skeletonTree(t, "증여")
	flattened["donor"] = "홍길동"
	if cat.MatchesSchema("증여", flattened) {
		t.Fatalf("leaf in place of group accepted")
	}

	if cat.MatchesSchema("빌려주기", map[string]any{}) {
		t.Fatalf("unsupported type matched")
	}
}

func TestFieldPaths(t *testing.T) {
	cat := Default()
	if !cat.IsValidFieldPath("증여", "donor.name") {
		t.Fatalf("donor.name should be valid")
	}
	if !cat.IsValidFieldPath("증여", "gifted_property.details.area") {
		t.Fatalf("nested leaf should be valid")
	}
	if cat.IsValidFieldPath("증여", "donor") {
		t.Fatalf("group path is not a field path")
	}
	if cat.IsValidFieldPath("증여", "donor.nickname") {
		t.Fatalf("unknown path accepted")
	}
}

func TestBlankLeaves(t *testing.T) {
	cs, _ := Default().Get("증여")
	tree := skeletonTree(t, "증여")
	tree["donor"].(map[string]any)["name"] = "홍길동"
	blank := cs.BlankLeaves(tree)
	for _, p := range blank {
		if p == "donor.name" {
			t.Fatalf("filled field reported blank")
		}
	}
	if len(blank) != len(cs.LeafPaths())-1 {
		t.Fatalf("blank: got=%d want=%d", len(blank), len(cs.LeafPaths())-1)
	}
}

func TestLoadRejectsBrokenDocuments(t *testing.T) {
	cases := map[string]string{
		"no label":      "types:\n- fields:\n    a: x\n",
		"dotted key":    "types:\n- label: t\n  fields:\n    a.b: x\n",
		"unknown notes": "types:\n- label: t\n  fields:\n    a: x\n  review:\n    b: y\n",
		"duplicate":     "types:\n- label: t\n  fields:\n    a: x\n- label: t\n  fields:\n    a: x\n",
	}
	for name, doc := range cases {
		if _, err := Load([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	cat, err := Load([]byte("types:\n- label: t\n  fields:\n    a: x\n    g:\n      b: y\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cs, _ := cat.Get("t")
	if got := strings.Join(cs.LeafPaths(), ","); got != "a,g.b" {
		t.Fatalf("leaf order: got=%s", got)
	}
}
