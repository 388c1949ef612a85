// Package inflect provides the default name translations between model
// names ("blog-post") and table names ("blogPosts").
package inflect

import (
	"strings"
	"sync"

	"github.com/iancoleman/strcase"
	"github.com/jinzhu/inflection"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

var _ types.Inflector = (*Inflector)(nil)

// Inflector implements types.Inflector with English pluralization rules.
// Irregular pairs registered on one Inflector do not affect any other.
type Inflector struct {
	mu        sync.RWMutex
	plurals   map[string]string
	singulars map[string]string
}

// New returns an Inflector with the default rules only.
func New() *Inflector {
	return &Inflector{plurals: map[string]string{}, singulars: map[string]string{}}
}

// Irregular registers a singular/plural pair that the default rules get
// wrong ("goose", "geese"). It applies to the last dash-separated word,
// so "snow-goose" pluralizes to "snow-geese". Schemas memoize names,
// so register pairs before the models that use them.
func (in *Inflector) Irregular(singular, plural string) {
	singular, plural = strings.ToLower(singular), strings.ToLower(plural)
	in.mu.Lock()
	defer in.mu.Unlock()
	in.plurals[singular] = plural
	in.singulars[plural] = singular
}

// Pluralize returns the plural of word ("post" -> "posts").
func (in *Inflector) Pluralize(word string) string {
	if w, ok := in.irregular(word, in.plurals); ok {
		return w
	}
	return inflection.Plural(word)
}

// Singularize returns the singular of word ("people" -> "person").
func (in *Inflector) Singularize(word string) string {
	if w, ok := in.irregular(word, in.singulars); ok {
		return w
	}
	return inflection.Singular(word)
}

func (in *Inflector) irregular(word string, table map[string]string) (string, bool) {
	prefix, last := "", word
	if i := strings.LastIndexByte(word, '-'); i >= 0 {
		prefix, last = word[:i+1], word[i+1:]
	}
	in.mu.RLock()
	w, ok := table[strings.ToLower(last)]
	in.mu.RUnlock()
	if !ok {
		return "", false
	}
	return prefix + w, true
}

// Camelize returns word in lower camel case ("blog-post" -> "blogPost").
func (*Inflector) Camelize(word string) string {
	return strcase.ToLowerCamel(word)
}

// Dasherize returns word in kebab case ("blogPost" -> "blog-post").
func (*Inflector) Dasherize(word string) string {
	return strcase.ToKebab(word)
}
