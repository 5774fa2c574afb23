package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Member is one participant of a room, identified by its connection id.
// Display names are not unique across connections, connection ids are.
type Member struct {
	Id       string `json:"id"`
	UserName string `json:"userName"`
}

// MemberList is stored as a single JSON column, need to implement driver.Valuer, sql.Scanner interface
type MemberList []Member

// Value return json value, implement driver.Valuer interface
func (l MemberList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	ba, err := l.MarshalJSON()
	return string(ba), err
}

// Scan scan value into the list, implements sql.Scanner interface
func (l *MemberList) Scan(val interface{}) error {
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
		return errors.New(fmt.Sprint("failed to unmarshal member list value:", val))
	}
	t := make([]Member, 0)
	err := json.Unmarshal(ba, &t)
	*l = MemberList(t)
	return err
}

// MarshalJSON to output non base64 encoded []byte
func (l MemberList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("null"), nil
	}
	t := ([]Member)(l)
	return json.Marshal(t)
}

// UnmarshalJSON to deserialize []byte
func (l *MemberList) UnmarshalJSON(b []byte) error {
	t := make([]Member, 0)
	err := json.Unmarshal(b, &t)
	*l = MemberList(t)
	return err
}

// GormDataType gorm common data type
func (l MemberList) GormDataType() string {
	return "memberlist"
}

// GormDBDataType gorm db data type
func (MemberList) GormDBDataType(db *gorm.DB, field *schema.Field) string {
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
