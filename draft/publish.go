package draft

import (
	"encoding/json"
	"time"

	"github.com/draftwire/draftwire/globals"
	"github.com/draftwire/draftwire/types"
	"gorm.io/datatypes"
)

// canonicalContent serializes the structured draft body into the
// canonical published representation.
func canonicalContent(content datatypes.JSON) (string, error) {
	var generic interface{}
	if len(content) > 0 {
		if err := json.Unmarshal(content, &generic); err != nil {
			return "", err
		}
	}
	out, err := json.MarshalIndent(generic, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// publishedFieldCopy builds the copy of every draft field onto its
// published counterpart.
func publishedFieldCopy(blog *types.Blog) (map[string]interface{}, error) {
	content, err := canonicalContent(blog.DraftContent)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"title":           blog.DraftTitle,
		"slug":            blog.DraftSlug,
		"cover_image_key": blog.DraftCoverImageKey,
		"cover_image_url": blog.DraftCoverImageUrl,
		"date":            blog.DraftDate,
		"content":         content,
		"status":          types.StatusPublished,
		"draft_changed":   false,
		"updated_at":      time.Now(),
	}, nil
}

// Publish promotes the draft fields into the published fields and flips
// the status. The transition is one-directional, there is no un-publish.
// When an explicit date is given it becomes the published date,
// otherwise the stored one is left untouched.
func (e *Editor) Publish(id string, publishedDate *time.Time) error {
	blog, err := e.Get(id)
	if err != nil {
		return err
	}
	fields, err := publishedFieldCopy(blog)
	if err != nil {
		return err
	}
	if publishedDate != nil {
		fields["published_date"] = publishedDate
	}
	return e.persister.UpdateBlogFields(id, fields)
}

// AutoPublish performs the same field copy as Publish but never touches
// the published date. Safe to invoke redundantly: once the document is
// published it short-circuits without a write.
func (e *Editor) AutoPublish(id string) error {
	blog, err := e.Get(id)
	if err != nil {
		return err
	}
	if blog.Status == types.StatusPublished {
		return nil
	}
	fields, err := publishedFieldCopy(blog)
	if err != nil {
		return err
	}
	return e.persister.UpdateBlogFields(id, fields)
}

// AutoPublishDue publishes every unpublished document whose scheduled
// publish instant has passed. Per-document failures are logged and the
// scan continues. The ids of the documents that transitioned are
// returned so their rooms can be refreshed.
func (e *Editor) AutoPublishDue(now time.Time) ([]string, error) {
	blogs, err := e.persister.GetBlogs()
	if err != nil {
		return nil, err
	}
	published := make([]string, 0)
	for _, blog := range blogs {
		if blog.Status == types.StatusPublished {
			continue
		}
		if blog.PublishedDate == nil || blog.PublishedDate.After(now) {
			continue
		}
		if err := e.AutoPublish(blog.Id); err != nil {
			globals.AppLogger.Error("could not auto-publish", "blog", blog.Id, "error", err)
			continue
		}
		published = append(published, blog.Id)
	}
	return published, nil
}
