package orm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

func TestModelLifecycle(t *testing.T) {
	tests := []struct {
		name  string
		check func(t *testing.T, s *Schema)
	}{
		{
			name: "new handle is unsaved with nil keys",
			check: func(t *testing.T, s *Schema) {
				p, err := s.New("post", map[string]any{"title": "Draft"})
				require.NoError(t, err)

				assert.True(t, p.IsNew())
				assert.False(t, p.IsSaved())
				assert.Empty(t, p.ID())
				assert.Equal(t, "model:post:null", p.String())
				assert.Equal(t, types.Record{"title": "Draft", "authorId": nil}, p.Attrs())
				assert.Equal(t, 0, mustTable(t, s, "posts").Len())
			},
		},
		{
			name: "save assigns an id and inserts",
			check: func(t *testing.T, s *Schema) {
				p, err := s.New("post", map[string]any{"title": "Draft"})
				require.NoError(t, err)
				require.NoError(t, p.Save())

				assert.True(t, p.IsSaved())
				assert.Equal(t, "1", p.ID())
				assert.Equal(t, "model:post:1", p.String())
				assert.Equal(t, 1, mustTable(t, s, "posts").Len())
			},
		},
		{
			name: "create then find round trips",
			check: func(t *testing.T, s *Schema) {
				p := mustCreate(t, s, "post", map[string]any{"title": "Hello", "views": 3})

				found, err := s.Find("post", p.ID())
				require.NoError(t, err)
				assert.Equal(t, p.Attrs(), found.Attrs())
				assert.True(t, p.Equals(found))
			},
		},
		{
			name: "set is in memory until save",
			check: func(t *testing.T, s *Schema) {
				p := mustCreate(t, s, "post", map[string]any{"title": "Hello"})
				require.NoError(t, p.Set("title", "Changed"))

				v, _ := p.Get("title")
				assert.Equal(t, "Changed", v)
				assert.Equal(t, "Hello", mustTable(t, s, "posts").Find(p.ID())["title"])

				require.NoError(t, p.Save())
				assert.Equal(t, "Changed", mustTable(t, s, "posts").Find(p.ID())["title"])
			},
		},
		{
			name: "reload discards unsaved edits",
			check: func(t *testing.T, s *Schema) {
				p := mustCreate(t, s, "post", map[string]any{"title": "Hello"})
				require.NoError(t, p.Set("title", "Changed"))
				require.NoError(t, p.Reload())

				v, _ := p.Get("title")
				assert.Equal(t, "Hello", v)
			},
		},
		{
			name: "update persists at once",
			check: func(t *testing.T, s *Schema) {
				p := mustCreate(t, s, "post", map[string]any{"title": "Hello"})
				require.NoError(t, p.Update("title", "Updated"))
				require.NoError(t, p.UpdateAttrs(map[string]any{"views": 10, "draft": false}))

				rec := mustTable(t, s, "posts").Find(p.ID())
				assert.Equal(t, "Updated", rec["title"])
				assert.Equal(t, 10, rec["views"])
				assert.Equal(t, false, rec["draft"])
			},
		},
		{
			name: "update on a new handle fails",
			check: func(t *testing.T, s *Schema) {
				p, err := s.New("post", nil)
				require.NoError(t, err)
				assert.ErrorIs(t, p.Update("title", "x"), types.ErrUnsaved)
				assert.ErrorIs(t, p.Reload(), types.ErrUnsaved)
			},
		},
		{
			name: "id cannot change once saved",
			check: func(t *testing.T, s *Schema) {
				p := mustCreate(t, s, "post", nil)
				assert.ErrorIs(t, p.Set("id", "9"), types.ErrInvalidID)
				assert.ErrorIs(t, p.Update("id", "9"), types.ErrInvalidID)
			},
		},
		{
			name: "association keys are rejected by set",
			check: func(t *testing.T, s *Schema) {
				p := mustCreate(t, s, "post", nil)
				assert.ErrorIs(t, p.Set("author", nil), types.ErrWrongKind)
			},
		},
		{
			name: "new handle with an explicit id",
			check: func(t *testing.T, s *Schema) {
				p, err := s.New("post", map[string]any{"id": "42", "title": "Preset"})
				require.NoError(t, err)
				assert.True(t, p.IsNew())
				require.NoError(t, p.Save())

				found, err := s.Find("post", "42")
				require.NoError(t, err)
				assert.Equal(t, "Preset", found.Attrs()["title"])
			},
		},
		{
			name: "destroy removes the record",
			check: func(t *testing.T, s *Schema) {
				p := mustCreate(t, s, "post", nil)
				require.NoError(t, p.Destroy())

				assert.True(t, p.IsDestroyed())
				assert.False(t, p.IsSaved())
				assert.True(t, p.IsNew())
				_, err := s.Find("post", p.ID())
				assert.ErrorIs(t, err, types.ErrNotFound)
				assert.ErrorIs(t, p.Save(), types.ErrDestroyed)
				assert.ErrorIs(t, p.Set("title", "x"), types.ErrDestroyed)
				assert.NoError(t, p.Destroy())
			},
		},
		{
			name: "destroying a new handle touches nothing",
			check: func(t *testing.T, s *Schema) {
				mustCreate(t, s, "post", nil)
				p, err := s.New("post", nil)
				require.NoError(t, err)
				require.NoError(t, p.Destroy())

				assert.True(t, p.IsDestroyed())
				assert.True(t, p.IsNew())
				assert.False(t, p.IsSaved())
				assert.Equal(t, 1, mustTable(t, s, "posts").Len())
			},
		},
		{
			name: "reload of a removed record fails",
			check: func(t *testing.T, s *Schema) {
				p := mustCreate(t, s, "post", nil)
				other, err := s.Find("post", p.ID())
				require.NoError(t, err)
				require.NoError(t, other.Destroy())

				assert.ErrorIs(t, p.Reload(), types.ErrNotFound)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, newTestSchema(t, blogModels()))
		})
	}
}

func TestModelEquals(t *testing.T) {
	s := newTestSchema(t, blogModels())
	p := mustCreate(t, s, "post", nil)
	same, err := s.Find("post", p.ID())
	require.NoError(t, err)
	u := mustCreate(t, s, "user", nil)
	draft, err := s.New("post", nil)
	require.NoError(t, err)
	other, err := s.New("post", nil)
	require.NoError(t, err)

	assert.True(t, p.Equals(same))
	assert.False(t, p.Equals(u), "same id, different model")
	assert.True(t, draft.Equals(draft))
	assert.False(t, draft.Equals(other))
	assert.False(t, p.Equals(nil))
}

func TestModelJSON(t *testing.T) {
	s := newTestSchema(t, blogModels())
	u := mustCreate(t, s, "user", map[string]any{"name": "Link"})
	p := mustCreate(t, s, "post", map[string]any{"title": "Hello", "author": u})

	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1","title":"Hello","authorId":"1"}`, string(b))

	js := p.ToJSON()
	js["title"] = "mutated"
	v, _ := p.Get("title")
	assert.Equal(t, "Hello", v)
}

func mustTable(t *testing.T, s *Schema, name string) types.Table {
	t.Helper()
	tbl, err := s.Store().Table(name)
	require.NoError(t, err)
	return tbl
}
