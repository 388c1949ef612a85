// Package schemafile reads and writes declarative model definitions:
//
//	models:
//	  user:
//	    associations:
//	      posts: {kind: hasMany, inverse: author}
//	  post:
//	    associations:
//	      author: {kind: belongsTo, model: user, inverse: posts}
//	      comments: {kind: hasMany}
//
// Associations keep their document order, which is the order they are
// registered in. An optional irregular mapping adds singular/plural pairs
// to the naming rules:
//
//	irregular:
//	  goose: geese
package schemafile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/pantry/pkg/orm"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Association kinds and the inverse value that disables inference.
const (
	KindBelongsTo = "belongsTo"
	KindHasMany   = "hasMany"
	InverseNone   = "none"
)

// File is the top-level schema document.
type File struct {
	Irregular map[string]string `yaml:"irregular,omitempty"`
	Models    map[string]Model  `yaml:"models"`
}

// Model lists the associations of one model.
type Model struct {
	Associations Associations `yaml:"associations,omitempty"`
}

// Association is one entry under a model's associations.
type Association struct {
	Key         string `yaml:"-"`
	Kind        string `yaml:"kind"`
	Model       string `yaml:"model,omitempty"`
	Inverse     string `yaml:"inverse,omitempty"`
	Polymorphic bool   `yaml:"polymorphic,omitempty"`
}

// Associations is an ordered mapping of key to Association.
type Associations []Association

// UnmarshalYAML decodes a mapping while keeping key order.
func (as *Associations) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: associations must be a mapping", n.Line)
	}
	out := make(Associations, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		if err := checkFields(key.Value, val); err != nil {
			return err
		}
		var a Association
		if err := val.Decode(&a); err != nil {
			return err
		}
		a.Key = key.Value
		out = append(out, a)
	}
	*as = out
	return nil
}

var associationFields = map[string]bool{"kind": true, "model": true, "inverse": true, "polymorphic": true}

func checkFields(key string, n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: association %s must be a mapping", n.Line, key)
	}
	for i := 0; i < len(n.Content); i += 2 {
		if f := n.Content[i]; !associationFields[f.Value] {
			return fmt.Errorf("line %d: association %s has unknown field %q", f.Line, key, f.Value)
		}
	}
	return nil
}

// MarshalYAML encodes the associations as a mapping in slice order.
func (as Associations) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, a := range as {
		var v yaml.Node
		if err := v.Encode(a); err != nil {
			return nil, err
		}
		v.Style = yaml.FlowStyle
		n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: a.Key}, &v)
	}
	return n, nil
}

// Read parses the schema document at path.
func Read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}
	f, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Load reads the schema document at path and converts it.
func Load(path string) (orm.Models, error) {
	f, err := Read(path)
	if err != nil {
		return nil, err
	}
	return f.Definitions()
}

// IrregularRegistrar accepts singular/plural pairs.
type IrregularRegistrar interface {
	Irregular(singular, plural string)
}

// ApplyIrregular registers the document's irregular pairs with r in
// singular order.
func (f *File) ApplyIrregular(r IrregularRegistrar) {
	singulars := make([]string, 0, len(f.Irregular))
	for s := range f.Irregular {
		singulars = append(singulars, s)
	}
	sort.Strings(singulars)
	for _, s := range singulars {
		r.Irregular(s, f.Irregular[s])
	}
}

// Decode parses a schema document. Unknown fields are rejected.
func Decode(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}
	return &f, nil
}

// Encode writes f as YAML.
func Encode(w io.Writer, f *File) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encoding schema: %w", err)
	}
	return enc.Close()
}

// Definitions converts the document into registrable definitions.
func (f *File) Definitions() (orm.Models, error) {
	out := make(orm.Models, len(f.Models))
	names := make([]string, 0, len(f.Models))
	for name := range f.Models {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		specs := make([]orm.AssociationSpec, 0, len(f.Models[name].Associations))
		for _, a := range f.Models[name].Associations {
			spec, err := a.spec()
			if err != nil {
				return nil, fmt.Errorf("model %s: %w", name, err)
			}
			specs = append(specs, spec)
		}
		out[name] = orm.Define(specs...)
	}
	return out, nil
}

func (a Association) spec() (orm.AssociationSpec, error) {
	var opts []orm.AssociationOption
	if a.Model != "" {
		opts = append(opts, orm.ModelName(a.Model))
	}
	switch a.Inverse {
	case "":
	case InverseNone:
		opts = append(opts, orm.NoInverse())
	default:
		opts = append(opts, orm.Inverse(a.Inverse))
	}
	if a.Polymorphic {
		opts = append(opts, orm.Polymorphic())
	}

	switch a.Kind {
	case KindBelongsTo:
		return orm.BelongsTo(a.Key, opts...), nil
	case KindHasMany:
		return orm.HasMany(a.Key, opts...), nil
	default:
		return orm.AssociationSpec{}, fmt.Errorf("%w: %s has kind %q, want %s or %s",
			types.ErrInvalidAssociation, a.Key, a.Kind, KindBelongsTo, KindHasMany)
	}
}

// Example returns the schema written by "pantry init".
func Example() *File {
	return &File{Models: map[string]Model{
		"user": {Associations: Associations{
			{Key: "posts", Kind: KindHasMany, Inverse: "author"},
		}},
		"post": {Associations: Associations{
			{Key: "author", Kind: KindBelongsTo, Model: "user", Inverse: "posts"},
			{Key: "comments", Kind: KindHasMany},
		}},
		"comment": {Associations: Associations{
			{Key: "post", Kind: KindBelongsTo},
		}},
	}}
}
