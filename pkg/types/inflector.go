package types

// Inflector translates between model names and table names.
// Model names are dasherized singulars ("blog-post"); table names are
// camelized plurals ("blogPosts").
type Inflector interface {
	Pluralize(word string) string
	Singularize(word string) string
	Camelize(word string) string
	Dasherize(word string) string
}
