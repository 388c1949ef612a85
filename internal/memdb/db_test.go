package memdb

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

func TestDBTables(t *testing.T) {
	db := New()

	users, err := db.CreateTable("users")
	require.NoError(t, err)
	assert.Equal(t, "users", users.Name())

	_, err = db.CreateTable("users")
	assert.ErrorIs(t, err, types.ErrTableExists)

	_, err = db.Table("posts")
	assert.ErrorIs(t, err, types.ErrTableNotFound)

	_, err = db.CreateTable("posts")
	require.NoError(t, err)
	assert.True(t, db.HasTable("posts"))
	assert.Equal(t, []string{"users", "posts"}, db.TableNames())
}

func TestDBTableIdentity(t *testing.T) {
	db := New(WithTableIdentity("tokens", NewUUIDIdentity))

	users, err := db.CreateTable("users")
	require.NoError(t, err)
	tokens, err := db.CreateTable("tokens")
	require.NoError(t, err)

	u, err := users.Insert(types.Record{})
	require.NoError(t, err)
	tok, err := tokens.Insert(types.Record{})
	require.NoError(t, err)

	assert.Equal(t, "1", u.ID())
	assert.Len(t, tok.ID(), 36)
}

func TestDBLoadDataAndEmpty(t *testing.T) {
	db := New()
	err := db.LoadData(map[string][]types.Record{
		"users": {{"id": 1, "name": "Link"}, {"id": 2, "name": "Zelda"}},
		"posts": {{"title": "Hello", "userId": 1}},
	})
	require.NoError(t, err)

	users, err := db.Table("users")
	require.NoError(t, err)
	assert.Equal(t, 2, users.Len())

	next, err := users.Insert(types.Record{"name": "Epona"})
	require.NoError(t, err)
	assert.Equal(t, "3", next.ID())

	err = db.LoadData(map[string][]types.Record{"users": {{"id": 1}}})
	assert.ErrorIs(t, err, types.ErrIDTaken)

	db.EmptyData()
	assert.Equal(t, 0, users.Len())
	assert.True(t, db.HasTable("posts"))

	again, err := users.Insert(types.Record{})
	require.NoError(t, err)
	assert.Equal(t, "1", again.ID())
}

func TestDBDumpGolden(t *testing.T) {
	db := New()
	users, err := db.CreateTable("users")
	require.NoError(t, err)
	posts, err := db.CreateTable("posts")
	require.NoError(t, err)

	_, err = users.InsertMany([]types.Record{{"name": "Link"}, {"name": "Zelda"}})
	require.NoError(t, err)
	_, err = posts.Insert(types.Record{"title": "Hello", "userId": "1"})
	require.NoError(t, err)

	data, err := json.MarshalIndent(db.Dump(), "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "dump", data)
}

func TestDBDumpIsACopy(t *testing.T) {
	db := New()
	users, err := db.CreateTable("users")
	require.NoError(t, err)
	_, err = users.Insert(types.Record{"name": "Link"})
	require.NoError(t, err)

	dump := db.Dump()
	dump["users"][0]["name"] = "changed"

	assert.Equal(t, "Link", users.Find("1")["name"])
}

func TestDBLoadDataStoresRefs(t *testing.T) {
	db := New()
	require.NoError(t, db.LoadData(map[string][]types.Record{
		"comments": {
			{"id": "1", "commentableId": map[string]any{"type": "post", "id": "1"}},
			{"id": "2", "commentableId": types.Ref{Type: "post", ID: "1"}},
		},
	}))

	comments, err := db.Table("comments")
	require.NoError(t, err)
	assert.Equal(t, types.Ref{Type: "post", ID: "1"}, comments.Find("1")["commentableId"])
	assert.Len(t, comments.Where(types.Query{"commentableId": types.Ref{Type: "post", ID: "1"}}), 2)
}
