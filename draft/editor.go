package draft

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/draftwire/draftwire/blob"
	"github.com/draftwire/draftwire/globals"
	"github.com/draftwire/draftwire/persistence"
	"github.com/draftwire/draftwire/types"
	"gorm.io/datatypes"
)

// Editor writes draft field groups, each one gated by divergence
// detection: a write (and the broadcast it triggers) happens only when
// the incoming value differs from the persisted one. Field groups are
// independent, updates to different groups do not block each other.
type Editor struct {
	persister persistence.Persister
	store     blob.ObjectStore
}

func NewEditor(persister persistence.Persister, store blob.ObjectStore) *Editor {
	return &Editor{persister: persister, store: store}
}

// Get reads the full document.
func (e *Editor) Get(id string) (*types.Blog, error) {
	blog := &types.Blog{Id: id}
	if err := e.persister.GetBlog(blog); err != nil {
		return nil, err
	}
	return blog, nil
}

// writeGroup persists one draft field group and flags the document as
// changed since the last publish.
func (e *Editor) writeGroup(id string, fields map[string]interface{}) error {
	fields["draft_changed"] = true
	fields["updated_at"] = time.Now()
	return e.persister.UpdateBlogFields(id, fields)
}

func (e *Editor) UpdateTitle(id, title string) (bool, error) {
	blog, err := e.Get(id)
	if err != nil {
		return false, err
	}
	if blog.DraftTitle == title {
		return false, nil
	}
	err = e.writeGroup(id, map[string]interface{}{"draft_title": title})
	return err == nil, err
}

// UpdateSlug ignores empty incoming slugs, a draft slug can not be
// cleared through this path.
func (e *Editor) UpdateSlug(id, slug string) (bool, error) {
	blog, err := e.Get(id)
	if err != nil {
		return false, err
	}
	if slug == "" || blog.DraftSlug == slug {
		return false, nil
	}
	err = e.writeGroup(id, map[string]interface{}{"draft_slug": slug})
	return err == nil, err
}

// UpdateDate compares by instant, not by string representation.
func (e *Editor) UpdateDate(id string, date *time.Time) (bool, error) {
	blog, err := e.Get(id)
	if err != nil {
		return false, err
	}
	if date == nil {
		return false, nil
	}
	if blog.DraftDate != nil && blog.DraftDate.Equal(*date) {
		return false, nil
	}
	err = e.writeGroup(id, map[string]interface{}{"draft_date": date})
	return err == nil, err
}

// UpdatePublishedDate sets the scheduled publish instant. This is the
// trigger the auto-publish check fires on; the publish transition
// itself still owns the copy of the draft fields.
func (e *Editor) UpdatePublishedDate(id string, date *time.Time) (bool, error) {
	blog, err := e.Get(id)
	if err != nil {
		return false, err
	}
	if date == nil {
		return false, nil
	}
	if blog.PublishedDate != nil && blog.PublishedDate.Equal(*date) {
		return false, nil
	}
	err = e.writeGroup(id, map[string]interface{}{"published_date": date})
	return err == nil, err
}

// UpdateContent writes the structured draft body when its canonical
// digest differs from the persisted one. The content may arrive with
// semantically-identical but differently-ordered keys, which must not
// count as a change.
func (e *Editor) UpdateContent(id string, content interface{}) (bool, error) {
	blog, err := e.Get(id)
	if err != nil {
		return false, err
	}
	if content == nil {
		return false, nil
	}
	same, err := Equal(blog.DraftContent, content)
	if err != nil {
		return false, fmt.Errorf("could not compare content: %w", err)
	}
	if same {
		return false, nil
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return false, err
	}
	err = e.writeGroup(id, map[string]interface{}{"draft_content": datatypes.JSON(raw)})
	return err == nil, err
}

// UpdateCoverImage stores the new image in the blob store first, then
// replaces the draft cover field group with the new key and its signed
// read URL. The previous draft object is deleted best-effort.
func (e *Editor) UpdateCoverImage(ctx context.Context, id, imageName, contentType string, data []byte) (bool, error) {
	if e.store == nil {
		return false, fmt.Errorf("no blob store configured")
	}
	blog, err := e.Get(id)
	if err != nil {
		return false, err
	}
	key := fmt.Sprintf("%s/%d%s", id, time.Now().UnixMilli(), imageName)
	if err := e.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return false, fmt.Errorf("could not store cover image: %w", err)
	}
	url, err := e.store.PresignGet(ctx, key)
	if err != nil {
		return false, fmt.Errorf("could not resolve cover image url: %w", err)
	}
	if blog.DraftCoverImageKey != "" {
		if err := e.store.Delete(ctx, blog.DraftCoverImageKey); err != nil {
			globals.AppLogger.Error("could not delete previous cover image", "key", blog.DraftCoverImageKey, "error", err)
		}
	}
	// the key embeds the upload instant, an upload is always a change
	err = e.writeGroup(id, map[string]interface{}{
		"draft_cover_image_key": key,
		"draft_cover_image_url": url,
	})
	return err == nil, err
}

// RemoveCoverImage deletes the stored draft object and clears the cover
// field group.
func (e *Editor) RemoveCoverImage(ctx context.Context, id string, remove bool) (bool, error) {
	if !remove {
		return false, nil
	}
	blog, err := e.Get(id)
	if err != nil {
		return false, err
	}
	if blog.DraftCoverImageKey != "" && e.store != nil {
		if err := e.store.Delete(ctx, blog.DraftCoverImageKey); err != nil {
			globals.AppLogger.Error("could not delete cover image", "key", blog.DraftCoverImageKey, "error", err)
		}
	}
	err = e.writeGroup(id, map[string]interface{}{
		"draft_cover_image_key": "",
		"draft_cover_image_url": "",
	})
	return err == nil, err
}
