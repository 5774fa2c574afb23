package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/draftwire/draftwire/config"
	"github.com/draftwire/draftwire/types"
	"github.com/tidwall/buntdb"
	"gorm.io/datatypes"
)

// BuntDBPersist stores all records as JSON documents in a single
// buntdb file (or fully in memory with the ":memory:" DSN). Every
// Update call is one serialized transaction, which gives the same
// per-record atomicity as the gorm backend.
type BuntDBPersist struct {
	db *buntdb.DB
}

func NewBuntPersister(cfg *config.Config) (Persister, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, nil // no or wrong configuration, ignore the persister
	}
	db, err := buntdb.Open(cfg.PersistenceConfig.DSN)
	if err != nil {
		return nil, err
	}
	return &BuntDBPersist{db: db}, nil
}

func roomKey(name string) string   { return "room:" + name }
func threadKey(name string) string { return "thread:" + name }
func blogKey(id string) string     { return "blog:" + id }

func (p *BuntDBPersist) StoreRoom(room types.Room) error {
	raw, err := json.Marshal(room)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(roomKey(room.Name), string(raw), nil)
		return err
	})
}

func (p *BuntDBPersist) GetRoom(room *types.Room) error {
	if room.Name == "" {
		return fmt.Errorf("no room name")
	}
	return p.db.View(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(roomKey(room.Name))
		if err == buntdb.ErrNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(raw), room)
	})
}

func (p *BuntDBPersist) GetRooms() ([]*types.Room, error) {
	rooms := make([]*types.Room, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		var innerErr error
		err := tx.AscendKeys("room:*", func(key, value string) bool {
			room := &types.Room{}
			if innerErr = json.Unmarshal([]byte(value), room); innerErr != nil {
				return false
			}
			rooms = append(rooms, room)
			return true
		})
		if err != nil {
			return err
		}
		return innerErr
	})
	return rooms, err
}

func (p *BuntDBPersist) DeleteRoom(room *types.Room) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(roomKey(room.Name))
		if err == buntdb.ErrNotFound {
			return nil
		}
		return err
	})
}

func (p *BuntDBPersist) AppendMessage(roomName string, msg types.Message) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		thread := types.Thread{RoomName: roomName, Timestamp: time.Now()}
		raw, err := tx.Get(threadKey(roomName))
		if err == nil {
			if err := json.Unmarshal([]byte(raw), &thread); err != nil {
				return err
			}
		} else if err != buntdb.ErrNotFound {
			return err
		}
		thread.Messages = append(thread.Messages, msg)
		out, err := json.Marshal(thread)
		if err != nil {
			return err
		}
		_, _, err = tx.Set(threadKey(roomName), string(out), nil)
		return err
	})
}

func (p *BuntDBPersist) GetThread(thread *types.Thread) error {
	if thread.RoomName == "" {
		return fmt.Errorf("no room name")
	}
	return p.db.View(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(threadKey(thread.RoomName))
		if err == buntdb.ErrNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(raw), thread)
	})
}

func (p *BuntDBPersist) MarkMessageDeleted(roomName, messageId string) (bool, error) {
	found := false
	err := p.db.Update(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(threadKey(roomName))
		if err == buntdb.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		thread := types.Thread{}
		if err := json.Unmarshal([]byte(raw), &thread); err != nil {
			return err
		}
		for i := range thread.Messages {
			if thread.Messages[i].Id == messageId {
				thread.Messages[i].IsDeleted = true
				found = true
				break
			}
		}
		if !found {
			return nil
		}
		out, err := json.Marshal(thread)
		if err != nil {
			return err
		}
		_, _, err = tx.Set(threadKey(roomName), string(out), nil)
		return err
	})
	return found, err
}

func (p *BuntDBPersist) StoreBlog(blog types.Blog) error {
	raw, err := json.Marshal(blog)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(blogKey(blog.Id), string(raw), nil)
		return err
	})
}

func (p *BuntDBPersist) GetBlog(blog *types.Blog) error {
	if blog.Id == "" {
		return fmt.Errorf("no blog id")
	}
	return p.db.View(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(blogKey(blog.Id))
		if err == buntdb.ErrNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(raw), blog)
	})
}

func (p *BuntDBPersist) GetBlogs() ([]*types.Blog, error) {
	blogs := make([]*types.Blog, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		var innerErr error
		err := tx.AscendKeys("blog:*", func(key, value string) bool {
			blog := &types.Blog{}
			if innerErr = json.Unmarshal([]byte(value), blog); innerErr != nil {
				return false
			}
			blogs = append(blogs, blog)
			return true
		})
		if err != nil {
			return err
		}
		return innerErr
	})
	return blogs, err
}

func (p *BuntDBPersist) UpdateBlogFields(id string, fields map[string]interface{}) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(blogKey(id))
		if err == buntdb.ErrNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		blog := types.Blog{}
		if err := json.Unmarshal([]byte(raw), &blog); err != nil {
			return err
		}
		for col, val := range fields {
			if err := applyBlogField(&blog, col, val); err != nil {
				return err
			}
		}
		out, err := json.Marshal(blog)
		if err != nil {
			return err
		}
		_, _, err = tx.Set(blogKey(id), string(out), nil)
		return err
	})
}

func (p *BuntDBPersist) Close() error {
	return p.db.Close()
}

// applyBlogField mirrors the gorm column-name based partial update for
// the document-style backend.
func applyBlogField(blog *types.Blog, col string, val interface{}) error {
	switch col {
	case "title":
		blog.Title = asString(val)
	case "slug":
		blog.Slug = asString(val)
	case "content":
		blog.Content = asString(val)
	case "status":
		blog.Status = asString(val)
	case "date":
		blog.Date = asTime(val)
	case "published_date":
		blog.PublishedDate = asTime(val)
	case "cover_image_key":
		blog.CoverImageKey = asString(val)
	case "cover_image_url":
		blog.CoverImageUrl = asString(val)
	case "draft_title":
		blog.DraftTitle = asString(val)
	case "draft_slug":
		blog.DraftSlug = asString(val)
	case "draft_content":
		switch v := val.(type) {
		case datatypes.JSON:
			blog.DraftContent = v
		case []byte:
			blog.DraftContent = datatypes.JSON(v)
		case nil:
			blog.DraftContent = nil
		default:
			return fmt.Errorf("unexpected draft_content value %T", val)
		}
	case "draft_date":
		blog.DraftDate = asTime(val)
	case "draft_cover_image_key":
		blog.DraftCoverImageKey = asString(val)
	case "draft_cover_image_url":
		blog.DraftCoverImageUrl = asString(val)
	case "draft_changed":
		b, ok := val.(bool)
		if !ok {
			return fmt.Errorf("unexpected draft_changed value %T", val)
		}
		blog.DraftChanged = b
	case "updated_at":
		if t := asTime(val); t != nil {
			blog.UpdatedAt = *t
		}
	default:
		return fmt.Errorf("unknown blog column %q", col)
	}
	return nil
}

func asString(val interface{}) string {
	if val == nil {
		return ""
	}
	if s, ok := val.(string); ok {
		return s
	}
	return fmt.Sprint(val)
}

func asTime(val interface{}) *time.Time {
	switch v := val.(type) {
	case *time.Time:
		return v
	case time.Time:
		return &v
	default:
		return nil
	}
}
