package draft

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/draftwire/draftwire/config"
	"github.com/draftwire/draftwire/persistence"
	"github.com/draftwire/draftwire/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type fakeStore struct {
	objects map[string][]byte
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeStore) PresignGet(ctx context.Context, key string) (string, error) {
	return "https://blobs.test/" + key, nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.objects, key)
	return nil
}

func newTestPersister(t *testing.T) persistence.Persister {
	t.Helper()
	cfg := &config.Config{PersistenceConfig: config.PersistenceConfig{Type: "buntdb", DSN: ":memory:"}}
	persister, err := persistence.NewPersister(cfg)
	require.NoError(t, err)
	require.NotNil(t, persister)
	t.Cleanup(func() { persister.Close() })
	return persister
}

func seedBlog(t *testing.T, persister persistence.Persister, blog types.Blog) {
	t.Helper()
	require.NoError(t, persister.StoreBlog(blog))
}

func TestUpdateTitleDivergence(t *testing.T) {
	persister := newTestPersister(t)
	editor := NewEditor(persister, nil)
	seedBlog(t, persister, types.Blog{Id: "b1", DraftTitle: "old"})

	changed, err := editor.UpdateTitle("b1", "old")
	require.NoError(t, err)
	assert.False(t, changed, "identical title must not write")

	changed, err = editor.UpdateTitle("b1", "new")
	require.NoError(t, err)
	assert.True(t, changed)

	blog, err := editor.Get("b1")
	require.NoError(t, err)
	assert.Equal(t, "new", blog.DraftTitle)
	assert.True(t, blog.DraftChanged)
}

func TestUpdateSlugEmptyIncoming(t *testing.T) {
	persister := newTestPersister(t)
	editor := NewEditor(persister, nil)
	seedBlog(t, persister, types.Blog{Id: "b1", DraftSlug: "a-slug"})

	changed, err := editor.UpdateSlug("b1", "")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestUpdateDateComparesInstants(t *testing.T) {
	persister := newTestPersister(t)
	editor := NewEditor(persister, nil)
	utc := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	seedBlog(t, persister, types.Blog{Id: "b1", DraftDate: &utc})

	// same instant, different zone representation
	elsewhere := utc.In(time.FixedZone("X", 3600))
	changed, err := editor.UpdateDate("b1", &elsewhere)
	require.NoError(t, err)
	assert.False(t, changed)

	later := utc.Add(time.Hour)
	changed, err = editor.UpdateDate("b1", &later)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestUpdateContentKeyOrderIsNoChange(t *testing.T) {
	persister := newTestPersister(t)
	editor := NewEditor(persister, nil)
	seedBlog(t, persister, types.Blog{Id: "b1", DraftContent: datatypes.JSON(`{"a":1,"b":{"c":2,"d":3}}`)})

	var incoming interface{}
	require.NoError(t, json.Unmarshal([]byte(`{"b":{"d":3,"c":2},"a":1}`), &incoming))
	changed, err := editor.UpdateContent("b1", incoming)
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, json.Unmarshal([]byte(`{"b":{"d":3,"c":2},"a":42}`), &incoming))
	changed, err = editor.UpdateContent("b1", incoming)
	require.NoError(t, err)
	assert.True(t, changed)

	blog, err := editor.Get("b1")
	require.NoError(t, err)
	assert.True(t, blog.DraftChanged)
}

func TestUpdateCoverImageReplacesObject(t *testing.T) {
	persister := newTestPersister(t)
	store := newFakeStore()
	editor := NewEditor(persister, store)
	seedBlog(t, persister, types.Blog{Id: "b1", DraftCoverImageKey: "b1/old.png"})

	changed, err := editor.UpdateCoverImage(context.Background(), "b1", "new.png", "image/png", []byte("img"))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Contains(t, store.deleted, "b1/old.png")

	blog, err := editor.Get("b1")
	require.NoError(t, err)
	assert.NotEmpty(t, blog.DraftCoverImageKey)
	assert.Equal(t, "https://blobs.test/"+blog.DraftCoverImageKey, blog.DraftCoverImageUrl)

	// re-uploading the same image is still a change: a new object is
	// stored and the previous one deleted
	firstKey := blog.DraftCoverImageKey
	changed, err = editor.UpdateCoverImage(context.Background(), "b1", "new.png", "image/png", []byte("img"))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Contains(t, store.deleted, firstKey)
}

func TestRemoveCoverImage(t *testing.T) {
	persister := newTestPersister(t)
	store := newFakeStore()
	editor := NewEditor(persister, store)
	seedBlog(t, persister, types.Blog{Id: "b1", DraftCoverImageKey: "b1/old.png", DraftCoverImageUrl: "https://blobs.test/b1/old.png"})

	removed, err := editor.RemoveCoverImage(context.Background(), "b1", false)
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = editor.RemoveCoverImage(context.Background(), "b1", true)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Contains(t, store.deleted, "b1/old.png")

	blog, err := editor.Get("b1")
	require.NoError(t, err)
	assert.Empty(t, blog.DraftCoverImageKey)
	assert.Empty(t, blog.DraftCoverImageUrl)
}

func TestPublishCopiesDraftFields(t *testing.T) {
	persister := newTestPersister(t)
	editor := NewEditor(persister, nil)
	date := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	seedBlog(t, persister, types.Blog{
		Id:                 "b1",
		Title:              "published before",
		DraftTitle:         "draft title",
		DraftSlug:          "draft-slug",
		DraftContent:       datatypes.JSON(`{"a":1}`),
		DraftDate:          &date,
		DraftCoverImageKey: "b1/cover.png",
		DraftCoverImageUrl: "https://blobs.test/b1/cover.png",
		DraftChanged:       true,
	})

	explicit := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, editor.Publish("b1", &explicit))

	blog, err := editor.Get("b1")
	require.NoError(t, err)
	assert.Equal(t, "draft title", blog.Title)
	assert.Equal(t, "draft-slug", blog.Slug)
	assert.Equal(t, "b1/cover.png", blog.CoverImageKey)
	assert.Equal(t, "https://blobs.test/b1/cover.png", blog.CoverImageUrl)
	require.NotNil(t, blog.Date)
	assert.True(t, blog.Date.Equal(date))
	require.NotNil(t, blog.PublishedDate)
	assert.True(t, blog.PublishedDate.Equal(explicit))
	assert.Equal(t, types.StatusPublished, blog.Status)
	assert.False(t, blog.DraftChanged)

	var content interface{}
	require.NoError(t, json.Unmarshal([]byte(blog.Content), &content))
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, content)
}

func TestPublishKeepsStoredDateWhenNoneGiven(t *testing.T) {
	persister := newTestPersister(t)
	editor := NewEditor(persister, nil)
	scheduled := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	seedBlog(t, persister, types.Blog{Id: "b1", DraftTitle: "t", PublishedDate: &scheduled})

	require.NoError(t, editor.Publish("b1", nil))

	blog, err := editor.Get("b1")
	require.NoError(t, err)
	require.NotNil(t, blog.PublishedDate)
	assert.True(t, blog.PublishedDate.Equal(scheduled))
}

func TestAutoPublishDue(t *testing.T) {
	persister := newTestPersister(t)
	editor := NewEditor(persister, nil)
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	seedBlog(t, persister, types.Blog{Id: "due", DraftTitle: "due title", PublishedDate: &past})
	seedBlog(t, persister, types.Blog{Id: "later", DraftTitle: "later title", PublishedDate: &future})
	seedBlog(t, persister, types.Blog{Id: "unscheduled", DraftTitle: "no date"})

	ids, err := editor.AutoPublishDue(now)
	require.NoError(t, err)
	assert.Equal(t, []string{"due"}, ids)

	blog, err := editor.Get("due")
	require.NoError(t, err)
	assert.Equal(t, types.StatusPublished, blog.Status)
	assert.Equal(t, "due title", blog.Title)
	// the scheduled instant is preserved, not overwritten
	require.NotNil(t, blog.PublishedDate)
	assert.True(t, blog.PublishedDate.Equal(past))

	blog, err = editor.Get("later")
	require.NoError(t, err)
	assert.Empty(t, blog.Status)
	assert.Empty(t, blog.Title)
}

func TestAutoPublishShortCircuitsWhenPublished(t *testing.T) {
	persister := newTestPersister(t)
	editor := NewEditor(persister, nil)
	past := time.Now().Add(-time.Hour)
	seedBlog(t, persister, types.Blog{Id: "b1", DraftTitle: "v1", PublishedDate: &past})

	require.NoError(t, editor.AutoPublish("b1"))
	blog, err := editor.Get("b1")
	require.NoError(t, err)
	assert.Equal(t, "v1", blog.Title)

	// a later draft edit must not leak into the published fields via a
	// redundant auto-publish
	changed, err := editor.UpdateTitle("b1", "v2")
	require.NoError(t, err)
	assert.True(t, changed)
	require.NoError(t, editor.AutoPublish("b1"))

	blog, err = editor.Get("b1")
	require.NoError(t, err)
	assert.Equal(t, "v1", blog.Title)
	assert.Equal(t, "v2", blog.DraftTitle)
}

func TestUpdatePublishedDateDivergence(t *testing.T) {
	persister := newTestPersister(t)
	editor := NewEditor(persister, nil)
	scheduled := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	seedBlog(t, persister, types.Blog{Id: "b1", PublishedDate: &scheduled})

	same := scheduled
	changed, err := editor.UpdatePublishedDate("b1", &same)
	require.NoError(t, err)
	assert.False(t, changed)

	later := scheduled.Add(48 * time.Hour)
	changed, err = editor.UpdatePublishedDate("b1", &later)
	require.NoError(t, err)
	assert.True(t, changed)
}
