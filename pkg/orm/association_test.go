package orm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

func TestBelongsTo(t *testing.T) {
	tests := []struct {
		name  string
		check func(t *testing.T, s *Schema)
	}{
		{
			name: "create with a saved parent stores its id",
			check: func(t *testing.T, s *Schema) {
				u := mustCreate(t, s, "user", map[string]any{"name": "Link"})
				p := mustCreate(t, s, "post", map[string]any{"title": "Hello", "author": u})

				assert.Equal(t, u.ID(), mustTable(t, s, "posts").Find(p.ID())["authorId"])
				author, err := p.Parent("author")
				require.NoError(t, err)
				assert.True(t, author.Equals(u))
			},
		},
		{
			name: "unsaved parent is saved first",
			check: func(t *testing.T, s *Schema) {
				u, err := s.New("user", map[string]any{"name": "Zelda"})
				require.NoError(t, err)
				p, err := s.New("post", map[string]any{"author": u})
				require.NoError(t, err)

				got, err := p.Parent("author")
				require.NoError(t, err)
				assert.Same(t, u, got)

				require.NoError(t, p.Save())
				assert.True(t, u.IsSaved())
				assert.Equal(t, u.ID(), p.Attrs()["authorId"])
			},
		},
		{
			name: "setting the key drops the unsaved parent",
			check: func(t *testing.T, s *Schema) {
				existing := mustCreate(t, s, "user", nil)
				u, err := s.New("user", nil)
				require.NoError(t, err)
				p, err := s.New("post", map[string]any{"author": u})
				require.NoError(t, err)

				require.NoError(t, p.Set("authorId", existing.ID()))
				require.NoError(t, p.Save())
				assert.True(t, u.IsNew())

				author, err := p.Parent("author")
				require.NoError(t, err)
				assert.True(t, author.Equals(existing))
			},
		},
		{
			name: "nil parent clears the key",
			check: func(t *testing.T, s *Schema) {
				u := mustCreate(t, s, "user", nil)
				p := mustCreate(t, s, "post", map[string]any{"author": u})
				require.NoError(t, p.Update("author", nil))

				assert.Nil(t, mustTable(t, s, "posts").Find(p.ID())["authorId"])
				author, err := p.Parent("author")
				require.NoError(t, err)
				assert.Nil(t, author)
			},
		},
		{
			name: "dangling key reads as no parent",
			check: func(t *testing.T, s *Schema) {
				p := mustCreate(t, s, "post", map[string]any{"authorId": "99"})
				author, err := p.Parent("author")
				require.NoError(t, err)
				assert.Nil(t, author)
			},
		},
		{
			name: "wrong model is rejected",
			check: func(t *testing.T, s *Schema) {
				c := mustCreate(t, s, "comment", nil)
				p := mustCreate(t, s, "post", nil)
				assert.ErrorIs(t, p.SetParent("author", c), types.ErrWrongType)
				assert.ErrorIs(t, p.SetParent("comments", c), types.ErrWrongKind)
				assert.ErrorIs(t, p.SetParent("missing", c), types.ErrInvalidAssociation)
			},
		},
		{
			name: "create parent saves both",
			check: func(t *testing.T, s *Schema) {
				p := mustCreate(t, s, "post", nil)
				u, err := p.CreateParent("author", map[string]any{"name": "Impa"})
				require.NoError(t, err)

				assert.True(t, u.IsSaved())
				assert.Equal(t, u.ID(), mustTable(t, s, "posts").Find(p.ID())["authorId"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, newTestSchema(t, blogModels()))
		})
	}
}

func TestHasMany(t *testing.T) {
	tests := []struct {
		name  string
		check func(t *testing.T, s *Schema)
	}{
		{
			name: "children are read through the store",
			check: func(t *testing.T, s *Schema) {
				u := mustCreate(t, s, "user", nil)
				mustCreate(t, s, "post", map[string]any{"title": "a", "author": u})
				mustCreate(t, s, "post", map[string]any{"title": "b", "author": u})
				mustCreate(t, s, "post", map[string]any{"title": "c"})

				ids, err := u.ChildIDs("posts")
				require.NoError(t, err)
				assert.Equal(t, []string{"1", "2"}, ids)

				mustCreate(t, s, "post", map[string]any{"title": "d", "author": u})
				ids, err = u.ChildIDs("posts")
				require.NoError(t, err)
				assert.Equal(t, []string{"1", "2", "4"}, ids)
			},
		},
		{
			name: "set children relinks on save",
			check: func(t *testing.T, s *Schema) {
				u := mustCreate(t, s, "user", nil)
				p1 := mustCreate(t, s, "post", map[string]any{"author": u})
				p2 := mustCreate(t, s, "post", map[string]any{"author": u})
				p3, err := s.New("post", map[string]any{"title": "new"})
				require.NoError(t, err)

				require.NoError(t, u.SetChildren("posts", p2, p3))
				kids, err := u.Children("posts")
				require.NoError(t, err)
				assert.Equal(t, 2, kids.Len())

				require.NoError(t, u.Save())
				assert.True(t, p3.IsSaved())

				posts := mustTable(t, s, "posts")
				assert.Nil(t, posts.Find(p1.ID())["authorId"])
				assert.Equal(t, u.ID(), posts.Find(p2.ID())["authorId"])
				assert.Equal(t, u.ID(), posts.Find(p3.ID())["authorId"])

				ids, err := u.ChildIDs("posts")
				require.NoError(t, err)
				assert.Equal(t, []string{p2.ID(), p3.ID()}, ids)
			},
		},
		{
			name: "new owner saves children with its id",
			check: func(t *testing.T, s *Schema) {
				p1, err := s.New("post", map[string]any{"title": "a"})
				require.NoError(t, err)
				u, err := s.New("user", map[string]any{"posts": []*Model{p1}})
				require.NoError(t, err)

				kids, err := u.Children("posts")
				require.NoError(t, err)
				assert.Equal(t, []*Model{p1}, kids.Models())

				require.NoError(t, u.Save())
				assert.Equal(t, u.ID(), mustTable(t, s, "posts").Find(p1.ID())["authorId"])

				author, err := p1.Parent("author")
				require.NoError(t, err)
				assert.True(t, author.Equals(u))
			},
		},
		{
			name: "add and create child",
			check: func(t *testing.T, s *Schema) {
				u := mustCreate(t, s, "user", nil)
				mustCreate(t, s, "post", map[string]any{"author": u})
				c, err := u.CreateChild("posts", map[string]any{"title": "second"})
				require.NoError(t, err)

				assert.True(t, c.IsSaved())
				ids, err := u.ChildIDs("posts")
				require.NoError(t, err)
				assert.Equal(t, []string{"1", c.ID()}, ids)
			},
		},
		{
			name: "new owner has no children",
			check: func(t *testing.T, s *Schema) {
				u, err := s.New("user", nil)
				require.NoError(t, err)
				kids, err := u.Children("posts")
				require.NoError(t, err)
				assert.Equal(t, 0, kids.Len())
			},
		},
		{
			name: "inferred inverse key",
			check: func(t *testing.T, s *Schema) {
				p := mustCreate(t, s, "post", nil)
				c := mustCreate(t, s, "comment", map[string]any{"post": p})

				kids, err := p.Children("comments")
				require.NoError(t, err)
				require.Equal(t, 1, kids.Len())
				assert.True(t, kids.At(0).Equals(c))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, newTestSchema(t, blogModels()))
		})
	}
}

func TestHasManyAmbiguousInverse(t *testing.T) {
	s := newTestSchema(t, Models{
		"user": Define(HasMany("posts")),
		"post": Define(BelongsTo("author", ModelName("user")), BelongsTo("editor", ModelName("user"))),
	})
	u := mustCreate(t, s, "user", nil)
	p := mustCreate(t, s, "post", map[string]any{"author": u})
	assert.Equal(t, u.ID(), p.Attrs()["authorId"])

	_, err := u.Children("posts")
	assert.ErrorIs(t, err, types.ErrAmbiguousInverse)
}

func TestDestroyWithAmbiguousHasMany(t *testing.T) {
	s := newTestSchema(t, Models{
		"user": Define(HasMany("posts")),
		"post": Define(BelongsTo("author", ModelName("user")), BelongsTo("editor", ModelName("user"))),
	})
	u := mustCreate(t, s, "user", nil)
	p := mustCreate(t, s, "post", map[string]any{"author": u, "editor": u})

	require.NoError(t, u.Destroy())
	assert.True(t, u.IsDestroyed())

	row := mustTable(t, s, "posts").Find(p.ID())
	assert.Nil(t, row["authorId"])
	assert.Nil(t, row["editorId"])
	assert.NotContains(t, row, "userId")
	assert.Equal(t, 0, mustTable(t, s, "users").Len())
}

func oneToOneModels() Models {
	return Models{
		"user":    Define(BelongsTo("profile")),
		"profile": Define(BelongsTo("user")),
	}
}

func TestOneToOne(t *testing.T) {
	tests := []struct {
		name  string
		check func(t *testing.T, s *Schema)
	}{
		{
			name: "saving one side links both",
			check: func(t *testing.T, s *Schema) {
				pr := mustCreate(t, s, "profile", map[string]any{"bio": "hero"})
				u := mustCreate(t, s, "user", map[string]any{"profile": pr})

				assert.Equal(t, pr.ID(), mustTable(t, s, "users").Find(u.ID())["profileId"])
				assert.Equal(t, u.ID(), mustTable(t, s, "profiles").Find(pr.ID())["userId"])
			},
		},
		{
			name: "cycle between unsaved handles",
			check: func(t *testing.T, s *Schema) {
				u, err := s.New("user", map[string]any{"name": "Link"})
				require.NoError(t, err)
				pr, err := s.New("profile", map[string]any{"bio": "hero"})
				require.NoError(t, err)
				require.NoError(t, u.SetParent("profile", pr))

				back, err := pr.Parent("user")
				require.NoError(t, err)
				assert.Same(t, u, back)

				require.NoError(t, u.Save())
				require.True(t, u.IsSaved())
				require.True(t, pr.IsSaved())

				assert.Equal(t, pr.ID(), mustTable(t, s, "users").Find(u.ID())["profileId"])
				assert.Equal(t, u.ID(), mustTable(t, s, "profiles").Find(pr.ID())["userId"])
				assert.Equal(t, u.ID(), pr.Attrs()["userId"])
			},
		},
		{
			name: "new partner replaces the old one",
			check: func(t *testing.T, s *Schema) {
				pr := mustCreate(t, s, "profile", nil)
				u1 := mustCreate(t, s, "user", map[string]any{"profile": pr})
				u2 := mustCreate(t, s, "user", nil)

				require.NoError(t, u2.Update("profile", pr))

				users := mustTable(t, s, "users")
				assert.Nil(t, users.Find(u1.ID())["profileId"])
				assert.Equal(t, pr.ID(), users.Find(u2.ID())["profileId"])
				assert.Equal(t, u2.ID(), mustTable(t, s, "profiles").Find(pr.ID())["userId"])
			},
		},
		{
			name: "clearing one side clears the other",
			check: func(t *testing.T, s *Schema) {
				pr := mustCreate(t, s, "profile", nil)
				u := mustCreate(t, s, "user", map[string]any{"profile": pr})
				require.NoError(t, u.Update("profile", nil))

				assert.Nil(t, mustTable(t, s, "profiles").Find(pr.ID())["userId"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, newTestSchema(t, oneToOneModels()))
		})
	}
}

func polymorphicModels() Models {
	return Models{
		"comment": Define(BelongsTo("commentable", Polymorphic())),
		"post":    Define(HasMany("comments", Inverse("commentable"))),
		"video":   Define(HasMany("comments", Inverse("commentable"))),
	}
}

func TestPolymorphicBelongsTo(t *testing.T) {
	s := newTestSchema(t, polymorphicModels())
	p := mustCreate(t, s, "post", nil)
	v := mustCreate(t, s, "video", nil)
	cp := mustCreate(t, s, "comment", map[string]any{"body": "on post", "commentable": p})
	cv := mustCreate(t, s, "comment", map[string]any{"body": "on video", "commentable": v})

	assert.Equal(t, types.Ref{Type: "post", ID: p.ID()}, cp.Attrs()["commentableId"])

	parent, err := cv.Parent("commentable")
	require.NoError(t, err)
	assert.Equal(t, "video", parent.ModelName())
	assert.True(t, parent.Equals(v))

	kids, err := p.Children("comments")
	require.NoError(t, err)
	require.Equal(t, 1, kids.Len())
	assert.True(t, kids.At(0).Equals(cp))

	_, err = cp.NewParent("commentable", nil)
	assert.ErrorIs(t, err, types.ErrWrongType)
	np, err := cp.NewParentOfType("commentable", "video", map[string]any{"title": "clip"})
	require.NoError(t, err)
	require.NoError(t, cp.Save())
	assert.Equal(t, types.Ref{Type: "video", ID: np.ID()}, mustTable(t, s, "comments").Find(cp.ID())["commentableId"])
}

func TestPolymorphicBelongsToFromFixtures(t *testing.T) {
	s := newTestSchema(t, polymorphicModels())
	require.NoError(t, s.Store().LoadData(map[string][]types.Record{
		"posts":    {{"id": "1"}},
		"comments": {{"id": "1", "commentableId": map[string]any{"type": "post", "id": "1"}}},
	}))
	c, err := s.Find("comment", "1")
	require.NoError(t, err)
	parent, err := c.Parent("commentable")
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, "model:post:1", parent.String())
}

func TestPolymorphicHasMany(t *testing.T) {
	s := newTestSchema(t, Models{
		"user":  Define(HasMany("things", Polymorphic())),
		"car":   Define(BelongsTo("user")),
		"house": Define(BelongsTo("user")),
	})
	u := mustCreate(t, s, "user", nil)
	car, err := s.New("car", nil)
	require.NoError(t, err)
	house, err := s.New("house", nil)
	require.NoError(t, err)

	require.NoError(t, u.SetChildren("things", car, house))
	require.NoError(t, u.Save())

	kids, err := u.Children("things")
	require.NoError(t, err)
	require.IsType(t, &PolymorphicCollection{}, kids)
	assert.Equal(t, "collection:(model:car:1,model:house:1)", kids.String())

	_, err = u.NewChild("things", nil)
	assert.ErrorIs(t, err, types.ErrWrongType)
	boat, err := u.NewChildOfType("things", "car", map[string]any{"kind": "boat"})
	require.NoError(t, err)
	require.NoError(t, u.Save())
	assert.Equal(t, u.ID(), mustTable(t, s, "cars").Find(boat.ID())["userId"])

	require.NoError(t, u.Destroy())
	assert.Nil(t, mustTable(t, s, "cars").Find(car.ID())["userId"])
	assert.Nil(t, mustTable(t, s, "houses").Find(house.ID())["userId"])
}

func TestDestroyCascade(t *testing.T) {
	tests := []struct {
		name  string
		check func(t *testing.T, s *Schema)
	}{
		{
			name: "children are unlinked, not deleted",
			check: func(t *testing.T, s *Schema) {
				u := mustCreate(t, s, "user", nil)
				p1 := mustCreate(t, s, "post", map[string]any{"author": u})
				p2 := mustCreate(t, s, "post", map[string]any{"author": u})

				require.NoError(t, u.Destroy())

				posts := mustTable(t, s, "posts")
				assert.Equal(t, 2, posts.Len())
				assert.Nil(t, posts.Find(p1.ID())["authorId"])
				assert.Nil(t, posts.Find(p2.ID())["authorId"])
				assert.Equal(t, 0, mustTable(t, s, "users").Len())
			},
		},
		{
			name: "unrelated records keep their keys",
			check: func(t *testing.T, s *Schema) {
				u1 := mustCreate(t, s, "user", nil)
				u2 := mustCreate(t, s, "user", nil)
				p := mustCreate(t, s, "post", map[string]any{"author": u2})

				require.NoError(t, u1.Destroy())
				assert.Equal(t, u2.ID(), mustTable(t, s, "posts").Find(p.ID())["authorId"])
			},
		},
		{
			name: "destroying a child leaves the parent",
			check: func(t *testing.T, s *Schema) {
				p := mustCreate(t, s, "post", nil)
				c := mustCreate(t, s, "comment", map[string]any{"post": p})
				require.NoError(t, c.Destroy())

				assert.Equal(t, 1, mustTable(t, s, "posts").Len())
				kids, err := p.Children("comments")
				require.NoError(t, err)
				assert.Equal(t, 0, kids.Len())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, newTestSchema(t, blogModels()))
		})
	}
}

func TestDestroyPolymorphicTarget(t *testing.T) {
	s := newTestSchema(t, polymorphicModels())
	p := mustCreate(t, s, "post", nil)
	v := mustCreate(t, s, "video", nil)
	cp := mustCreate(t, s, "comment", map[string]any{"commentable": p})
	cv := mustCreate(t, s, "comment", map[string]any{"commentable": v})

	require.NoError(t, p.Destroy())

	comments := mustTable(t, s, "comments")
	assert.Nil(t, comments.Find(cp.ID())["commentableId"])
	assert.Equal(t, types.Ref{Type: "video", ID: v.ID()}, comments.Find(cv.ID())["commentableId"])
}
