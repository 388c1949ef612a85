package schemafile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pantry/internal/inflect"
	"github.com/mesh-intelligence/pantry/pkg/memdb"
	"github.com/mesh-intelligence/pantry/pkg/orm"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

const blogSchema = `
models:
  user:
    associations:
      posts: {kind: hasMany, inverse: author}
  post:
    associations:
      author: {kind: belongsTo, model: user, inverse: posts}
      comments: {kind: hasMany}
      tags: {kind: hasMany, inverse: none}
  comment:
    associations:
      commentable: {kind: belongsTo, polymorphic: true}
  tag: {}
`

func TestDecode(t *testing.T) {
	f, err := Decode(strings.NewReader(blogSchema))
	require.NoError(t, err)
	require.Len(t, f.Models, 4)

	post := f.Models["post"].Associations
	require.Len(t, post, 3)
	assert.Equal(t, []string{"author", "comments", "tags"}, []string{post[0].Key, post[1].Key, post[2].Key})
	assert.Equal(t, Association{Key: "author", Kind: KindBelongsTo, Model: "user", Inverse: "posts"}, post[0])
	assert.True(t, f.Models["comment"].Associations[0].Polymorphic)
	assert.Empty(t, f.Models["tag"].Associations)
}

func TestDefinitions(t *testing.T) {
	f, err := Decode(strings.NewReader(blogSchema))
	require.NoError(t, err)
	models, err := f.Definitions()
	require.NoError(t, err)

	assert.Equal(t, orm.Define(
		orm.BelongsTo("author", orm.ModelName("user"), orm.Inverse("posts")),
		orm.HasMany("comments"),
		orm.HasMany("tags", orm.NoInverse()),
	), models["post"])
	assert.Equal(t, orm.Define(orm.BelongsTo("commentable", orm.Polymorphic())), models["comment"])
	assert.Equal(t, orm.Define(), models["tag"])
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
		wantMsg string
	}{
		{
			name:    "unknown kind",
			doc:     "models:\n  post:\n    associations:\n      author: {kind: hasOne}\n",
			wantErr: types.ErrInvalidAssociation,
		},
		{
			name:    "unknown association field",
			doc:     "models:\n  post:\n    associations:\n      author: {kind: belongsTo, modle: user}\n",
			wantMsg: `unknown field "modle"`,
		},
		{
			name:    "unknown top-level field",
			doc:     "modles: {}\n",
			wantMsg: "field modles not found",
		},
		{
			name:    "associations not a mapping",
			doc:     "models:\n  post:\n    associations: [author]\n",
			wantMsg: "must be a mapping",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Decode(strings.NewReader(tt.doc))
			if err == nil {
				_, err = f.Definitions()
			}
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestEmptyDocument(t *testing.T) {
	f, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	models, err := f.Definitions()
	require.NoError(t, err)
	assert.Empty(t, models)
}

func TestExampleRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Example()))

	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	models, err := Load(path)
	require.NoError(t, err)
	want, err := Example().Definitions()
	require.NoError(t, err)
	assert.Equal(t, want, models)

	s, err := orm.NewSchema(memdb.New(), orm.DefaultInflector())
	require.NoError(t, err)
	require.NoError(t, s.RegisterModels(models))
	assert.Equal(t, []string{"comment", "post", "user"}, s.ModelNames())
}

func TestIrregularNames(t *testing.T) {
	doc := `
irregular:
  goose: geese
models:
  farm:
    associations:
      geese: {kind: hasMany}
  goose:
    associations:
      farm: {kind: belongsTo}
`
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	f, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"goose": "geese"}, f.Irregular)

	in := inflect.New()
	f.ApplyIrregular(in)
	models, err := f.Definitions()
	require.NoError(t, err)

	s, err := orm.NewSchema(memdb.New(), in)
	require.NoError(t, err)
	require.NoError(t, s.RegisterModels(models))
	assert.Equal(t, "geese", s.TableName("goose"))
	assert.Contains(t, s.Store().TableNames(), "geese")

	assocs, err := s.AssociationsFor("farm")
	require.NoError(t, err)
	assert.Equal(t, "goose", assocs["geese"].ModelName)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
