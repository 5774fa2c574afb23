package types

import "time"

// Room is a named group of connected participants. The persisted record
// is the source of truth for membership; a room with no members is
// deleted, not kept around empty.
type Room struct {
	Name      string     `json:"name" gorm:"primaryKey"`
	Users     MemberList `json:"users"`
	CreatedAt time.Time  `json:"-"`
	UpdatedAt time.Time  `json:"-"`
}
