package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/draftwire/draftwire/config"
	"github.com/draftwire/draftwire/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGormTestPersister(t *testing.T) Persister {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	cfg := &config.Config{PersistenceConfig: config.PersistenceConfig{Type: "sqlite", DSN: dsn}}
	persister, err := NewPersister(cfg)
	require.NoError(t, err)
	require.NotNil(t, persister)
	t.Cleanup(func() { persister.Close() })
	return persister
}

func TestGormUpdateBlogFields(t *testing.T) {
	persister := newGormTestPersister(t)

	// the missing-id contract is the same on every backend
	err := persister.UpdateBlogFields("nope", map[string]interface{}{"draft_title": "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	date := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, persister.StoreBlog(types.Blog{
		Id:         "b1",
		DraftTitle: "keep me",
		DraftSlug:  "keep-slug",
		DraftDate:  &date,
	}))

	require.NoError(t, persister.UpdateBlogFields("b1", map[string]interface{}{
		"draft_title":   "changed",
		"draft_changed": true,
		"updated_at":    time.Now(),
	}))

	blog := &types.Blog{Id: "b1"}
	require.NoError(t, persister.GetBlog(blog))
	assert.Equal(t, "changed", blog.DraftTitle)
	assert.True(t, blog.DraftChanged)
	assert.Equal(t, "keep-slug", blog.DraftSlug)
	require.NotNil(t, blog.DraftDate)
	assert.True(t, blog.DraftDate.Equal(date))
}

func TestGormRoomRoundTrip(t *testing.T) {
	persister := newGormTestPersister(t)

	assert.ErrorIs(t, persister.GetRoom(&types.Room{Name: "nope"}), ErrNotFound)

	require.NoError(t, persister.StoreRoom(types.Room{
		Name:  "r1",
		Users: types.MemberList{{Id: "c1", UserName: "alice"}},
	}))

	room := &types.Room{Name: "r1"}
	require.NoError(t, persister.GetRoom(room))
	require.Len(t, room.Users, 1)
	assert.Equal(t, "alice", room.Users[0].UserName)

	require.NoError(t, persister.DeleteRoom(room))
	assert.ErrorIs(t, persister.GetRoom(&types.Room{Name: "r1"}), ErrNotFound)
}
