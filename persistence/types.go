package persistence

import (
	"errors"
	"fmt"

	"github.com/draftwire/draftwire/config"
	"github.com/draftwire/draftwire/types"
)

// ErrNotFound is returned by all backends when a record does not exist,
// independent of the underlying driver error.
var ErrNotFound = errors.New("record not found")

// Persister is the storage collaborator of the room, chat and draft
// services. The persisted records are the single source of truth; any
// in-process mirror is refreshed from here, never the reverse.
type Persister interface {
	StoreRoom(types.Room) error
	GetRoom(*types.Room) error
	GetRooms() ([]*types.Room, error)
	DeleteRoom(*types.Room) error

	// AppendMessage upsert-creates the room's thread and pushes the
	// message. The write is atomic per thread.
	AppendMessage(roomName string, msg types.Message) error
	GetThread(*types.Thread) error
	// MarkMessageDeleted flips the soft-delete flag of the identified
	// message. It reports false when the thread or message is absent.
	MarkMessageDeleted(roomName, messageId string) (bool, error)

	StoreBlog(types.Blog) error
	GetBlog(*types.Blog) error
	GetBlogs() ([]*types.Blog, error)
	// UpdateBlogFields writes a partial field set (column name -> value)
	// atomically with respect to that field set only.
	UpdateBlogFields(id string, fields map[string]interface{}) error

	Close() error
}

// NewPersister picks the backend from the configuration.
func NewPersister(cfg *config.Config) (Persister, error) {
	switch cfg.PersistenceConfig.Type {
	case "sqlite", "postgres":
		return NewGormPersister(cfg)

	case "buntdb":
		return NewBuntPersister(cfg)

	case "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown persistence type %q", cfg.PersistenceConfig.Type)
	}
}
