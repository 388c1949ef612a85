package orm

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/mesh-intelligence/pantry/internal/inflect"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Schema is the registry of model definitions bound to one store.
type Schema struct {
	store     types.Store
	inflector types.Inflector
	logger    *slog.Logger

	mu      sync.RWMutex
	entries map[string]*modelEntry
	order   []string

	dependents            map[string][]*Association
	polymorphicDependents []*Association

	names  nameCache
	serial atomic.Uint64
}

// modelEntry is the per-type accessor table built at registration.
type modelEntry struct {
	name       string
	table      string
	registered bool
	def        *Definition

	associations []*Association
	byKey        map[string]*Association

	// foreignKeys lists every key field stored on this type's records,
	// including default keys of other models' has-many associations that
	// have no inverse.
	foreignKeys []string

	// belongsTo maps a key field to the belongs-to association that owns it.
	belongsTo map[string]*Association
}

func (e *modelEntry) hasForeignKey(fk string) bool {
	return slices.Contains(e.foreignKeys, fk)
}

// Option configures a Schema.
type Option func(*Schema)

// WithLogger sets the logger for registration and cascade events.
// A nil logger discards output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Schema) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSchema binds a schema to store and inflector. Register models with
// RegisterModels before querying.
func NewSchema(store types.Store, inflector types.Inflector, opts ...Option) (*Schema, error) {
	if store == nil {
		return nil, types.ErrNoStore
	}
	if inflector == nil {
		return nil, types.ErrNoInflector
	}
	s := &Schema{
		store:      store,
		inflector:  inflector,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		entries:    map[string]*modelEntry{},
		dependents: map[string][]*Association{},
		names:      newNameCache(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DefaultInflector returns the English inflector pantry uses by default.
func DefaultInflector() types.Inflector { return inflect.New() }

// Store returns the backing store.
func (s *Schema) Store() types.Store { return s.store }

// Inflector returns the naming engine.
func (s *Schema) Inflector() types.Inflector { return s.inflector }

// RegisterModels registers every definition in name order, then settles
// has-many keys against the whole set. Nothing is registered when any
// definition fails.
func (s *Schema) RegisterModels(models Models) error {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make([]*modelEntry, 0, len(names))
	for _, name := range names {
		e, err := s.stageLocked(name, models[name])
		if err != nil {
			s.unstageLocked(staged)
			return err
		}
		staged = append(staged, e)
	}
	return s.commitLocked(staged)
}

// RegisterModel wires one definition into the schema and creates its
// table when the store lacks one. Has-many keys of every registered model
// are settled again, since the new model may complete an inverse pair.
func (s *Schema) RegisterModel(name string, def *Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.stageLocked(name, def)
	if err != nil {
		return err
	}
	return s.commitLocked([]*modelEntry{e})
}

// stageLocked adds a registered entry for def without wiring keys.
func (s *Schema) stageLocked(name string, def *Definition) (*modelEntry, error) {
	modelName := s.modelNameFor(name)
	if e, ok := s.entries[modelName]; ok && e.registered {
		return nil, fmt.Errorf("%w: %s", types.ErrModelRegistered, modelName)
	}
	def = def.Clone()

	assocs, err := s.buildAssociations(modelName, def)
	if err != nil {
		return nil, err
	}

	entry := s.entryLocked(modelName)
	entry.registered = true
	entry.def = def
	entry.associations = assocs
	for _, a := range assocs {
		entry.byKey[a.Key] = a
	}
	s.order = append(s.order, modelName)
	return entry, nil
}

// unstageLocked reverts stageLocked for staged and rewires the rest.
func (s *Schema) unstageLocked(staged []*modelEntry) {
	if len(staged) == 0 {
		return
	}
	drop := map[string]bool{}
	for _, e := range staged {
		drop[e.name] = true
		e.registered = false
		e.def = nil
		e.associations = nil
		e.byKey = map[string]*Association{}
	}
	s.order = slices.DeleteFunc(s.order, func(name string) bool { return drop[name] })
	// The remaining models wired cleanly before staging.
	_ = s.wireLocked()
}

// commitLocked wires keys for the whole schema and creates tables for
// staged. A wiring failure unregisters staged.
func (s *Schema) commitLocked(staged []*modelEntry) error {
	if err := s.wireLocked(); err != nil {
		s.unstageLocked(staged)
		return err
	}
	for _, e := range staged {
		if !s.store.HasTable(e.table) {
			if _, err := s.store.CreateTable(e.table); err != nil {
				return fmt.Errorf("creating table for %s: %w", e.name, err)
			}
		}
		s.logger.Debug("model registered",
			"model", e.name,
			"table", e.table,
			"associations", len(e.associations),
		)
	}
	return nil
}

// buildAssociations turns specs into descriptors and rejects two
// belongs-to specs that would store the same key field.
func (s *Schema) buildAssociations(owner string, def *Definition) ([]*Association, error) {
	out := make([]*Association, 0, len(def.Associations))
	seen := map[string]bool{}
	keys := map[string]string{}

	for _, spec := range def.Associations {
		if spec.Key == "" {
			return nil, fmt.Errorf("%w: %s has an association without a key", types.ErrInvalidAssociation, owner)
		}
		if spec.Kind != KindBelongsTo && spec.Kind != KindHasMany {
			return nil, fmt.Errorf("%w: %s.%s has unknown kind %s", types.ErrInvalidAssociation, owner, spec.Key, spec.Kind)
		}
		if seen[spec.Key] {
			return nil, fmt.Errorf("%w: %s declares %q twice", types.ErrInvalidAssociation, owner, spec.Key)
		}
		seen[spec.Key] = true

		a := &Association{
			Key:             spec.Key,
			Kind:            spec.Kind,
			OwnerModelName:  owner,
			Polymorphic:     spec.Polymorphic,
			explicitInverse: spec.Inverse,
			noInverse:       spec.NoInverse,
			schema:          s,
		}
		if spec.ModelName != "" {
			a.ModelName = s.modelNameFor(spec.ModelName)
		} else {
			a.ModelName = s.modelNameFor(spec.Key)
		}

		switch a.Kind {
		case KindBelongsTo:
			a.Holder = owner
			a.ForeignKey = s.inflector.Camelize(spec.Key) + "Id"
			if prev, ok := keys[a.ForeignKey]; ok {
				return nil, fmt.Errorf("%w: %s.%s and %s.%s both store %s",
					types.ErrAmbiguousInverse, owner, prev, owner, a.Key, a.ForeignKey)
			}
			keys[a.ForeignKey] = a.Key
		case KindHasMany:
			back := owner
			if spec.Inverse != "" {
				back = spec.Inverse
			}
			a.defaultKey = s.inflector.Camelize(back) + "Id"
			a.ForeignKey = a.defaultKey
			if !a.Polymorphic {
				a.Holder = a.ModelName
			}
		}
		out = append(out, a)
	}
	return out, nil
}

// wireLocked derives every key field, belongs-to index, and dependency
// entry from the registered definitions. A has-many whose inverse
// resolves shares the inverse's key; one without an inverse stores its
// default key on the related model. Two has-many of one owner that would
// store the same default key on a registered model are ambiguous. A
// has-many whose inverse lookup fails registers nothing; the error
// surfaces when the association is used.
func (s *Schema) wireLocked() error {
	for _, e := range s.entries {
		e.foreignKeys = nil
		e.belongsTo = map[string]*Association{}
	}
	s.dependents = map[string][]*Association{}
	s.polymorphicDependents = nil

	for _, name := range s.order {
		e := s.entries[name]
		for _, a := range e.associations {
			if a.Kind == KindBelongsTo {
				e.belongsTo[a.ForeignKey] = a
				e.addForeignKey(a.ForeignKey)
			}
			s.addDependentAssociationLocked(a)
		}
	}

	for _, name := range s.order {
		e := s.entries[name]
		claimed := map[string]string{}
		for _, a := range e.associations {
			if a.Kind != KindHasMany {
				continue
			}
			a.ForeignKey = a.defaultKey
			inv, err := s.inverseLocked(a)
			if err != nil {
				continue
			}
			if inv != nil {
				a.ForeignKey = inv.ForeignKey
				continue
			}
			if a.Holder == "" {
				continue
			}
			holder := s.entryLocked(a.Holder)
			if holder.registered {
				slot := a.Holder + "." + a.ForeignKey
				if prev, ok := claimed[slot]; ok {
					return fmt.Errorf(
						"%w: %s.%s and %s.%s would both store %s on %s; name the inverses explicitly",
						types.ErrAmbiguousInverse, e.name, prev, e.name, a.Key, a.ForeignKey, a.Holder)
				}
				claimed[slot] = a.Key
			}
			holder.addForeignKey(a.ForeignKey)
		}
	}
	return nil
}

// entryLocked returns the entry for modelName, creating a placeholder
// when another model has added keys to it before registration.
func (s *Schema) entryLocked(modelName string) *modelEntry {
	e, ok := s.entries[modelName]
	if !ok {
		e = &modelEntry{
			name:      modelName,
			table:     s.tableNameFor(modelName),
			byKey:     map[string]*Association{},
			belongsTo: map[string]*Association{},
		}
		s.entries[modelName] = e
	}
	return e
}

func (e *modelEntry) addForeignKey(fk string) {
	if !e.hasForeignKey(fk) {
		e.foreignKeys = append(e.foreignKeys, fk)
	}
}

// AddDependentAssociation records that destroying a modelName record must
// clear a's key field. Registration indexes every declared association
// this way; callers use it for links the definitions do not declare.
// Polymorphic belongs-to associations are indexed apart because any model
// may be their target. Entries added here are kept until the next
// registration rebuilds the index.
func (s *Schema) AddDependentAssociation(a *Association, modelName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addDependentLocked(a, modelName)
}

func (s *Schema) addDependentAssociationLocked(a *Association) {
	switch a.Kind {
	case KindBelongsTo:
		s.addDependentLocked(a, a.ModelName)
	case KindHasMany:
		s.addDependentLocked(a, a.OwnerModelName)
	}
}

func (s *Schema) addDependentLocked(a *Association, modelName string) {
	if a.Kind == KindBelongsTo && a.Polymorphic {
		s.polymorphicDependents = append(s.polymorphicDependents, a)
		return
	}
	modelName = s.modelNameFor(modelName)
	s.dependents[modelName] = append(s.dependents[modelName], a)
}

// DependentAssociationsFor returns the associations whose key fields may
// point at a modelName record, in registration order. Polymorphic
// belongs-to associations are always included.
func (s *Schema) DependentAssociationsFor(modelName string) []*Association {
	s.mu.RLock()
	defer s.mu.RUnlock()
	direct := s.dependents[s.modelNameFor(modelName)]
	out := make([]*Association, 0, len(direct)+len(s.polymorphicDependents))
	out = append(out, direct...)
	return append(out, s.polymorphicDependents...)
}

// AssociationsFor returns the associations declared by modelName keyed by
// property name.
func (s *Schema) AssociationsFor(modelName string) (map[string]*Association, error) {
	e, err := s.lookup(modelName)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*Association, len(e.byKey))
	for k, a := range e.byKey {
		out[k] = a
	}
	return out, nil
}

// HasModelForModelName reports whether modelName is registered.
func (s *Schema) HasModelForModelName(modelName string) bool {
	_, err := s.lookup(modelName)
	return err == nil
}

// ModelNames returns registered model names in registration order.
func (s *Schema) ModelNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// ModelClassFor returns the query surface bound to modelName.
func (s *Schema) ModelClassFor(modelName string) (*ModelClass, error) {
	e, err := s.lookup(modelName)
	if err != nil {
		return nil, err
	}
	return &ModelClass{schema: s, entry: e}, nil
}

// TableName returns the table that stores a type: "blog-post" and
// "blogPost" both map to "blogPosts".
func (s *Schema) TableName(typ string) string {
	return s.tableNameFor(typ)
}

// ToModelName returns the dasherized singular model name for a type or
// association key: "blogPosts" -> "blog-post".
func (s *Schema) ToModelName(typ string) string {
	return s.modelNameFor(typ)
}

func (s *Schema) lookup(modelName string) (*modelEntry, error) {
	name := s.modelNameFor(modelName)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	if !ok || !e.registered {
		return nil, fmt.Errorf("%w: %s", types.ErrModelNotRegistered, name)
	}
	return e, nil
}

func (s *Schema) tableFor(e *modelEntry) (types.Table, error) {
	t, err := s.store.Table(e.table)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", e.name, err)
	}
	return t, nil
}

// holdersOf returns the registered models whose records store fk.
func (s *Schema) holdersOf(fk string) []*modelEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*modelEntry
	for _, name := range s.order {
		if e := s.entries[name]; e.hasForeignKey(fk) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Schema) nextSerial() uint64 {
	return s.serial.Add(1)
}

// nameCache memoizes inflector output per schema.
type nameCache struct {
	mu     sync.Mutex
	models map[string]string
	tables map[string]string
}

func newNameCache() nameCache {
	return nameCache{models: map[string]string{}, tables: map[string]string{}}
}

func (s *Schema) modelNameFor(typ string) string {
	s.names.mu.Lock()
	defer s.names.mu.Unlock()
	if v, ok := s.names.models[typ]; ok {
		return v
	}
	v := s.inflector.Singularize(s.inflector.Dasherize(typ))
	s.names.models[typ] = v
	return v
}

func (s *Schema) tableNameFor(typ string) string {
	s.names.mu.Lock()
	defer s.names.mu.Unlock()
	if v, ok := s.names.tables[typ]; ok {
		return v
	}
	v := s.inflector.Camelize(s.inflector.Pluralize(s.inflector.Dasherize(typ)))
	s.names.tables[typ] = v
	return v
}
