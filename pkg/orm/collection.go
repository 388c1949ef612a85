package orm

import (
	"slices"
	"strings"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// ResultSet is the part of the collection API shared by Collection and
// PolymorphicCollection.
type ResultSet interface {
	Models() []*Model
	Len() int
	At(i int) *Model
	Includes(m *Model) bool
	Save() error
	Destroy() error
	Reload() error
	Update(key string, value any) error
	UpdateAttrs(attrs map[string]any) error
	ToJSON() []types.Record
	String() string
}

var (
	_ ResultSet = (*Collection)(nil)
	_ ResultSet = (*PolymorphicCollection)(nil)
)

// modelList is the ordered handle list both collection kinds are built on.
type modelList []*Model

func (ms modelList) at(i int) *Model {
	if i < 0 || i >= len(ms) {
		return nil
	}
	return ms[i]
}

func (ms modelList) includes(m *Model) bool {
	if m == nil {
		return false
	}
	key := m.String()
	return slices.ContainsFunc(ms, func(x *Model) bool { return x.String() == key })
}

func (ms modelList) each(fn func(*Model) error) error {
	for _, m := range ms {
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}

func (ms modelList) filter(fn func(*Model) bool) modelList {
	out := modelList{}
	for _, m := range ms {
		if fn(m) {
			out = append(out, m)
		}
	}
	return out
}

func (ms modelList) sorted(cmp func(a, b *Model) int) modelList {
	out := slices.Clone(ms)
	slices.SortStableFunc(out, cmp)
	return out
}

func (ms modelList) slice(begin, end int) modelList {
	begin = clamp(begin, len(ms))
	end = clamp(end, len(ms))
	if end < begin {
		return modelList{}
	}
	return slices.Clone(ms[begin:end])
}

// clamp maps negative positions from the end, as slicing does in most
// collection libraries, and bounds the result to [0, n].
func clamp(i, n int) int {
	if i < 0 {
		i += n
	}
	return max(0, min(i, n))
}

func (ms modelList) without(m *Model) modelList {
	key := m.String()
	return slices.DeleteFunc(ms, func(x *Model) bool { return x.String() == key })
}

func (ms modelList) toJSON() []types.Record {
	out := make([]types.Record, len(ms))
	for i, m := range ms {
		out[i] = m.ToJSON()
	}
	return out
}

func (ms modelList) join() string {
	parts := make([]string, len(ms))
	for i, m := range ms {
		parts[i] = m.String()
	}
	return strings.Join(parts, ",")
}

// Collection is an ordered list of handles of one model. Filter, Sort and
// Slice return new collections; Add, Remove and MergeCollection change
// the receiver.
type Collection struct {
	modelName string
	models    modelList
}

// NewCollection builds a collection of modelName.
func NewCollection(modelName string, ms ...*Model) (*Collection, error) {
	if modelName == "" {
		return nil, types.ErrNoModelName
	}
	return &Collection{modelName: modelName, models: slices.Clone(modelList(ms))}, nil
}

// ModelName returns the model every member belongs to.
func (c *Collection) ModelName() string { return c.modelName }

// Models returns a copy of the member list.
func (c *Collection) Models() []*Model { return slices.Clone(c.models) }

// Len returns the number of members.
func (c *Collection) Len() int { return len(c.models) }

// At returns the i'th member, or nil when out of range.
func (c *Collection) At(i int) *Model { return c.models.at(i) }

// IDs returns the member ids in order.
func (c *Collection) IDs() []string {
	ids := make([]string, len(c.models))
	for i, m := range c.models {
		ids[i] = m.ID()
	}
	return ids
}

// Includes reports whether a member renders the same as m.
func (c *Collection) Includes(m *Model) bool { return c.models.includes(m) }

// Save saves every member, stopping at the first error.
func (c *Collection) Save() error { return c.models.each((*Model).Save) }

// Destroy destroys every member, stopping at the first error.
func (c *Collection) Destroy() error { return c.models.each((*Model).Destroy) }

// Reload reloads every member, stopping at the first error.
func (c *Collection) Reload() error { return c.models.each((*Model).Reload) }

// Update updates one attribute on every member.
func (c *Collection) Update(key string, value any) error {
	return c.models.each(func(m *Model) error { return m.Update(key, value) })
}

// UpdateAttrs updates several attributes on every member.
func (c *Collection) UpdateAttrs(attrs map[string]any) error {
	return c.models.each(func(m *Model) error { return m.UpdateAttrs(attrs) })
}

// Filter returns the members accepted by fn.
func (c *Collection) Filter(fn func(*Model) bool) *Collection {
	return &Collection{modelName: c.modelName, models: c.models.filter(fn)}
}

// Sort returns the members ordered by cmp. Equal members keep their order.
func (c *Collection) Sort(cmp func(a, b *Model) int) *Collection {
	return &Collection{modelName: c.modelName, models: c.models.sorted(cmp)}
}

// Slice returns members [begin, end). Out-of-range bounds are clamped and
// negative bounds count from the end.
func (c *Collection) Slice(begin, end int) *Collection {
	return &Collection{modelName: c.modelName, models: c.models.slice(begin, end)}
}

// Add appends m and returns the receiver.
func (c *Collection) Add(m *Model) *Collection {
	c.models = append(c.models, m)
	return c
}

// Remove drops every member that renders the same as m and returns the
// receiver.
func (c *Collection) Remove(m *Model) *Collection {
	if m != nil {
		c.models = c.models.without(m)
	}
	return c
}

// MergeCollection appends the members of other and returns the receiver.
func (c *Collection) MergeCollection(other ResultSet) *Collection {
	if other != nil {
		c.models = append(c.models, other.Models()...)
	}
	return c
}

// ToJSON returns the members' attributes in order.
func (c *Collection) ToJSON() []types.Record { return c.models.toJSON() }

// String returns "collection:<model>(<member>,...)".
func (c *Collection) String() string {
	return "collection:" + c.modelName + "(" + c.models.join() + ")"
}

// PolymorphicCollection is an ordered list of handles of mixed models.
type PolymorphicCollection struct {
	models modelList
}

// NewPolymorphicCollection builds a collection from ms.
func NewPolymorphicCollection(ms ...*Model) *PolymorphicCollection {
	return &PolymorphicCollection{models: slices.Clone(modelList(ms))}
}

// Models returns a copy of the member list.
func (c *PolymorphicCollection) Models() []*Model { return slices.Clone(c.models) }

// Len returns the number of members.
func (c *PolymorphicCollection) Len() int { return len(c.models) }

// At returns the i'th member, or nil when out of range.
func (c *PolymorphicCollection) At(i int) *Model { return c.models.at(i) }

// Includes reports whether a member renders the same as m.
func (c *PolymorphicCollection) Includes(m *Model) bool { return c.models.includes(m) }

// Save saves every member, stopping at the first error.
func (c *PolymorphicCollection) Save() error { return c.models.each((*Model).Save) }

// Destroy destroys every member, stopping at the first error.
func (c *PolymorphicCollection) Destroy() error { return c.models.each((*Model).Destroy) }

// Reload reloads every member, stopping at the first error.
func (c *PolymorphicCollection) Reload() error { return c.models.each((*Model).Reload) }

// Update updates one attribute on every member.
func (c *PolymorphicCollection) Update(key string, value any) error {
	return c.models.each(func(m *Model) error { return m.Update(key, value) })
}

// UpdateAttrs updates several attributes on every member.
func (c *PolymorphicCollection) UpdateAttrs(attrs map[string]any) error {
	return c.models.each(func(m *Model) error { return m.UpdateAttrs(attrs) })
}

// Filter returns the members accepted by fn.
func (c *PolymorphicCollection) Filter(fn func(*Model) bool) *PolymorphicCollection {
	return &PolymorphicCollection{models: c.models.filter(fn)}
}

// Sort returns the members ordered by cmp. Equal members keep their order.
func (c *PolymorphicCollection) Sort(cmp func(a, b *Model) int) *PolymorphicCollection {
	return &PolymorphicCollection{models: c.models.sorted(cmp)}
}

// Slice returns members [begin, end) with clamped bounds.
func (c *PolymorphicCollection) Slice(begin, end int) *PolymorphicCollection {
	return &PolymorphicCollection{models: c.models.slice(begin, end)}
}

// Add appends m and returns the receiver.
func (c *PolymorphicCollection) Add(m *Model) *PolymorphicCollection {
	c.models = append(c.models, m)
	return c
}

// Remove drops every member that renders the same as m.
func (c *PolymorphicCollection) Remove(m *Model) *PolymorphicCollection {
	if m != nil {
		c.models = c.models.without(m)
	}
	return c
}

// MergeCollection appends the members of other.
func (c *PolymorphicCollection) MergeCollection(other ResultSet) *PolymorphicCollection {
	if other != nil {
		c.models = append(c.models, other.Models()...)
	}
	return c
}

// ToJSON returns the members' attributes in order.
func (c *PolymorphicCollection) ToJSON() []types.Record { return c.models.toJSON() }

// String returns "collection:(<member>,...)".
func (c *PolymorphicCollection) String() string {
	return "collection:(" + c.models.join() + ")"
}
