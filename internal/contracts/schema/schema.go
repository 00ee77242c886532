// Package schema holds the canonical field trees of every supported contract
// type and the validation gates the generation pipeline applies to
// collaborator output.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed schemas.yaml
var embedded []byte

// OtherLabel is what the classifier answers when nothing fits. It is never supported.
const OtherLabel = "기타"

// Field is one node of a canonical field tree. Leaves carry a description,
// inner nodes carry children in declaration order.
type Field struct {
	Key         string
	Description string
	Children    []*Field
}

func (f *Field) IsLeaf() bool { return len(f.Children) == 0 }

// ContractSchema is the canonical shape of one contract type.
type ContractSchema struct {
	Label  string
	Fields []*Field

	leaves    map[string]string
	leafOrder []string
	review    map[string]string
}

// Catalog indexes schemas by label.
type Catalog struct {
	order   []string
	schemas map[string]*ContractSchema
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the catalogue compiled into the binary.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Load(embedded)
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("schema: embedded catalogue is invalid: %v", defaultErr))
	}
	return defaultCat
}

type fileDoc struct {
	Types []struct {
		Label  string    `yaml:"label"`
		Fields yaml.Node `yaml:"fields"`
		Review yaml.Node `yaml:"review"`
	} `yaml:"types"`
}

// Load parses a catalogue document. Key order of the YAML mapping is kept so
// prompts and skeletons list fields the way the document declares them.
func Load(data []byte) (*Catalog, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalogue: %w", err)
	}
	cat := &Catalog{schemas: map[string]*ContractSchema{}}
	for _, t := range doc.Types {
		label := strings.TrimSpace(t.Label)
		if label == "" {
			return nil, fmt.Errorf("type without label")
		}
		if _, dup := cat.schemas[label]; dup {
			return nil, fmt.Errorf("duplicate type %q", label)
		}
		fields, err := decodeFields(&t.Fields)
		if err != nil {
			return nil, fmt.Errorf("type %q: %w", label, err)
		}
		if len(fields) == 0 {
			return nil, fmt.Errorf("type %q has no fields", label)
		}
		cs := &ContractSchema{
			Label:  label,
			Fields: fields,
			leaves: map[string]string{},
			review: map[string]string{},
		}
		walk(fields, "", func(path string, f *Field) {
			cs.leaves[path] = f.Description
			cs.leafOrder = append(cs.leafOrder, path)
		})
		if t.Review.Kind != 0 {
			notes, err := decodeFields(&t.Review)
			if err != nil {
				return nil, fmt.Errorf("type %q review: %w", label, err)
			}
			var bad error
			walk(notes, "", func(path string, f *Field) {
				if _, ok := cs.leaves[path]; !ok && bad == nil {
					bad = fmt.Errorf("type %q review note for unknown field %q", label, path)
				}
				cs.review[path] = f.Description
			})
			if bad != nil {
				return nil, bad
			}
		}
		cat.order = append(cat.order, label)
		cat.schemas[label] = cs
	}
	return cat, nil
}

func decodeFields(n *yaml.Node) ([]*Field, error) {
	if n.Kind == yaml.DocumentNode && len(n.Content) == 1 {
		n = n.Content[0]
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected mapping", n.Line)
	}
	out := make([]*Field, 0, len(n.Content)/2)
	seen := map[string]bool{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		if key == "" || strings.Contains(key, ".") {
			return nil, fmt.Errorf("line %d: invalid key %q", n.Content[i].Line, key)
		}
		if seen[key] {
			return nil, fmt.Errorf("line %d: duplicate key %q", n.Content[i].Line, key)
		}
		seen[key] = true
		val := n.Content[i+1]
		f := &Field{Key: key}
		switch val.Kind {
		case yaml.ScalarNode:
			f.Description = val.Value
		case yaml.MappingNode:
			children, err := decodeFields(val)
			if err != nil {
				return nil, err
			}
			if len(children) == 0 {
				return nil, fmt.Errorf("line %d: empty group %q", val.Line, key)
			}
			f.Children = children
		default:
			return nil, fmt.Errorf("line %d: unsupported value for %q", val.Line, key)
		}
		out = append(out, f)
	}
	return out, nil
}

func walk(fields []*Field, prefix string, leaf func(path string, f *Field)) {
	for _, f := range fields {
		path := joinPath(prefix, f.Key)
		if f.IsLeaf() {
			leaf(path, f)
			continue
		}
		walk(f.Children, path, leaf)
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// Labels lists supported types in catalogue order.
func (c *Catalog) Labels() []string {
	return append([]string(nil), c.order...)
}

func (c *Catalog) Get(label string) (*ContractSchema, bool) {
	cs, ok := c.schemas[strings.TrimSpace(label)]
	return cs, ok
}

func (c *Catalog) IsSupportedType(label string) bool {
	_, ok := c.Get(label)
	return ok
}

// CanonicalSchema returns the set of dot-joined leaf paths for label, or nil.
func (c *Catalog) CanonicalSchema(label string) map[string]struct{} {
	cs, ok := c.Get(label)
	if !ok {
		return nil
	}
	out := make(map[string]struct{}, len(cs.leaves))
	for p := range cs.leaves {
		out[p] = struct{}{}
	}
	return out
}

func (c *Catalog) IsValidFieldPath(label, path string) bool {
	cs, ok := c.Get(label)
	if !ok {
		return false
	}
	_, ok = cs.leaves[path]
	return ok
}

// MatchesSchema reports whether tree has exactly the canonical key set at every depth.
func (c *Catalog) MatchesSchema(label string, tree map[string]any) bool {
	cs, ok := c.Get(label)
	if !ok {
		return false
	}
	return len(Diff(cs.Fields, tree)) == 0
}

// Diff lists every path where tree departs from fields: missing keys, extra
// keys, and leaves that are objects or groups that are not.
func Diff(fields []*Field, tree map[string]any) []string {
	var out []string
	diff(fields, tree, "", &out)
	sort.Strings(out)
	return out
}

func diff(fields []*Field, tree map[string]any, prefix string, out *[]string) {
	want := make(map[string]*Field, len(fields))
	for _, f := range fields {
		want[f.Key] = f
	}
	for k := range tree {
		if _, ok := want[k]; !ok {
			*out = append(*out, "extra:"+joinPath(prefix, k))
		}
	}
	for _, f := range fields {
		path := joinPath(prefix, f.Key)
		v, ok := tree[f.Key]
		if !ok {
			*out = append(*out, "missing:"+path)
			continue
		}
		sub, isObj := v.(map[string]any)
		switch {
		case f.IsLeaf() && isObj:
			*out = append(*out, "object_at_leaf:"+path)
		case !f.IsLeaf() && !isObj:
			*out = append(*out, "leaf_at_group:"+path)
		case !f.IsLeaf():
			diff(f.Children, sub, path, out)
		}
	}
}

// LeafPaths returns leaf paths in declaration order.
func (cs *ContractSchema) LeafPaths() []string {
	return append([]string(nil), cs.leafOrder...)
}

func (cs *ContractSchema) Description(path string) string { return cs.leaves[path] }

// ReviewNotes maps leaf paths to the legal risk of leaving that field blank.
func (cs *ContractSchema) ReviewNotes() map[string]string {
	out := make(map[string]string, len(cs.review))
	for k, v := range cs.review {
		out[k] = v
	}
	return out
}

// Skeleton renders the field tree as JSON with empty string leaves, keeping declaration order.
func (cs *ContractSchema) Skeleton() []byte {
	var buf bytes.Buffer
	writeSkeleton(&buf, cs.Fields)
	return buf.Bytes()
}

func writeSkeleton(buf *bytes.Buffer, fields []*Field) {
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(f.Key)
		buf.Write(k)
		buf.WriteByte(':')
		if f.IsLeaf() {
			buf.WriteString(`""`)
			continue
		}
		writeSkeleton(buf, f.Children)
	}
	buf.WriteByte('}')
}

// Guide renders "path: description" lines for prompting the extractor.
func (cs *ContractSchema) Guide() string {
	var b strings.Builder
	for _, p := range cs.leafOrder {
		b.WriteString(p)
		b.WriteString(": ")
		b.WriteString(cs.leaves[p])
		b.WriteByte('\n')
	}
	return b.String()
}

// BlankLeaves lists leaf paths whose value in tree is missing, null or blank text.
func (cs *ContractSchema) BlankLeaves(tree map[string]any) []string {
	var out []string
	for _, p := range cs.leafOrder {
		v, ok := lookup(tree, p)
		if !ok || v == nil {
			out = append(out, p)
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			out = append(out, p)
		}
	}
	return out
}

func lookup(tree map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = tree
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
