package orm

import (
	"fmt"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Kind is the shape of an association.
type Kind int

// Association kinds.
const (
	KindBelongsTo Kind = iota + 1 // owner holds the key
	KindHasMany                   // related records hold the key
)

// String returns "belongsTo" or "hasMany".
func (k Kind) String() string {
	switch k {
	case KindBelongsTo:
		return "belongsTo"
	case KindHasMany:
		return "hasMany"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// AssociationSpec declares one association on a Definition.
type AssociationSpec struct {
	Key         string
	Kind        Kind
	ModelName   string
	Inverse     string
	NoInverse   bool
	Polymorphic bool
}

// AssociationOption customizes an AssociationSpec.
type AssociationOption func(*AssociationSpec)

// ModelName names the related model when it differs from the key
// ("author" -> "user").
func ModelName(name string) AssociationOption {
	return func(s *AssociationSpec) { s.ModelName = name }
}

// Inverse names the reciprocal association on the related model.
func Inverse(key string) AssociationOption {
	return func(s *AssociationSpec) { s.Inverse = key }
}

// NoInverse declares that the association has no reciprocal.
func NoInverse() AssociationOption {
	return func(s *AssociationSpec) { s.NoInverse = true }
}

// Polymorphic lets the association point at records of any model.
func Polymorphic() AssociationOption {
	return func(s *AssociationSpec) { s.Polymorphic = true }
}

// BelongsTo declares an owner-to-one association.
func BelongsTo(key string, opts ...AssociationOption) AssociationSpec {
	return newSpec(key, KindBelongsTo, opts)
}

// HasMany declares an owner-to-many association.
func HasMany(key string, opts ...AssociationOption) AssociationSpec {
	return newSpec(key, KindHasMany, opts)
}

func newSpec(key string, kind Kind, opts []AssociationOption) AssociationSpec {
	s := AssociationSpec{Key: key, Kind: kind}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Definition declares the associations of one model.
type Definition struct {
	Associations []AssociationSpec
}

// Define builds a Definition from association specs.
func Define(specs ...AssociationSpec) *Definition {
	return &Definition{Associations: append([]AssociationSpec(nil), specs...)}
}

// Clone returns an independent copy so one Definition can be registered
// with many schemas.
func (d *Definition) Clone() *Definition {
	if d == nil {
		return &Definition{}
	}
	return Define(d.Associations...)
}

// Models maps model names to their definitions.
type Models map[string]*Definition

// Association is a wired association descriptor. It is created by
// Schema.RegisterModel and shared by every Model of the owner type.
type Association struct {
	// Key is the property name on the owner ("author").
	Key string

	// Kind is belongs-to or has-many.
	Kind Kind

	// OwnerModelName is the dasherized model that declares the association.
	OwnerModelName string

	// ModelName is the dasherized related model. For polymorphic
	// associations it is derived from the key and only informative.
	ModelName string

	// Polymorphic reports whether the related model varies per record.
	Polymorphic bool

	// ForeignKey is the field that stores the link ("authorId"). For a
	// has-many whose inverse resolves it is the inverse's key, settled once
	// every model in a registration batch is known.
	ForeignKey string

	// Holder is the model whose records store ForeignKey. It is empty for
	// polymorphic has-many, whose holders are found by key.
	Holder string

	explicitInverse string
	noInverse       bool
	schema          *Schema

	// defaultKey is the has-many key used when no inverse resolves.
	defaultKey string
}

// HasExplicitInverse reports whether an inverse was named at declaration.
func (a *Association) HasExplicitInverse() bool { return a.explicitInverse != "" }

// Inverse resolves the reciprocal association; nil when there is none.
func (a *Association) Inverse() (*Association, error) {
	return a.schema.InverseFor(a)
}

// ForeignKeyArray returns the key holder model and the key name.
func (a *Association) ForeignKeyArray() (string, string) {
	return a.Holder, a.ForeignKey
}

// String renders the association for logs and errors.
func (a *Association) String() string {
	target := a.ModelName
	if a.Polymorphic {
		target = "*"
	}
	return fmt.Sprintf("%s %s.%s -> %s (%s)", a.Kind, a.OwnerModelName, a.Key, target, a.ForeignKey)
}

// valueFor returns what a belongs-to key field stores for target.
func (a *Association) valueFor(target *Model) any {
	if target == nil || target.ID() == "" {
		return nil
	}
	if a.Polymorphic {
		return types.Ref{Type: target.ModelName(), ID: target.ID()}
	}
	return target.ID()
}

// refersTo reports whether a stored key value points at target. poly says
// whether the field holds a Ref.
func refersTo(v any, target *Model, poly bool) bool {
	if v == nil || target == nil || target.ID() == "" {
		return false
	}
	if poly {
		ref, ok := types.AsRef(v)
		return ok && ref.Type == target.ModelName() && ref.ID == target.ID()
	}
	return types.Stringify(v) == target.ID()
}
