package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mitchellh/hashstructure/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Message is one entry of a room's chat thread. Once appended its
// position is immutable, deletion only flips IsDeleted.
type Message struct {
	Id        string    `json:"id" hash:"ignore"`
	User      string    `json:"user"`
	Message   string    `json:"message"`
	File      string    `json:"file"`
	IsDeleted bool      `json:"isDeleted" hash:"ignore"`
	Timestamp time.Time `json:"timestamp"`
}

// CreateId derives the message identity from its content and creation
// instant. IsDeleted is excluded, so the id is stable across the
// soft-delete flag flip.
func (m *Message) CreateId() error {
	hash, err := hashstructure.Hash(m, hashstructure.FormatV2, nil)
	if err != nil {
		return err
	}
	m.Id = fmt.Sprintf("%016x%016x", hash, uint64(m.Timestamp.UnixNano()))
	return nil
}

// Thread is the per-room append log. It is upsert-created on the first
// message and never deleted, even when the room record goes away.
type Thread struct {
	RoomName  string      `json:"roomName" gorm:"primaryKey"`
	Messages  MessageList `json:"messages"`
	Timestamp time.Time   `json:"timestamp"`
}

// MessageList is stored as a single JSON column, need to implement driver.Valuer, sql.Scanner interface
type MessageList []Message

// Value return json value, implement driver.Valuer interface
func (l MessageList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	ba, err := l.MarshalJSON()
	return string(ba), err
}

// Scan scan value into the list, implements sql.Scanner interface
func (l *MessageList) Scan(val interface{}) error {
	var ba []byte
	switch v := val.(type) {
	case []byte:
		ba = v
	case string:
		ba = []byte(v)
	case nil:
		*l = nil
		return nil
	default:
		return errors.New(fmt.Sprint("failed to unmarshal message list value:", val))
	}
	t := make([]Message, 0)
	err := json.Unmarshal(ba, &t)
	*l = MessageList(t)
	return err
}

// MarshalJSON to output non base64 encoded []byte
func (l MessageList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("null"), nil
	}
	t := ([]Message)(l)
	return json.Marshal(t)
}

// UnmarshalJSON to deserialize []byte
func (l *MessageList) UnmarshalJSON(b []byte) error {
	t := make([]Message, 0)
	err := json.Unmarshal(b, &t)
	*l = MessageList(t)
	return err
}

// GormDataType gorm common data type
func (l MessageList) GormDataType() string {
	return "messagelist"
}

// GormDBDataType gorm db data type
func (MessageList) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "sqlite":
		return "JSON"
	case "mysql":
		return "JSON"
	case "postgres":
		return "JSONB"
	}
	return ""
}
