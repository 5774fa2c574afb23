package registry

import (
	"errors"
	"fmt"

	"github.com/draftwire/draftwire/globals"
	"github.com/draftwire/draftwire/persistence"
	"github.com/draftwire/draftwire/types"
	lru "github.com/hashicorp/golang-lru"
)

const mirrorSize = 1024

// ErrRoomNotFound is reported when leave is requested for a room that
// has no persisted record.
var ErrRoomNotFound = errors.New("room does not exist")

// RoomUpdate describes the outcome of one membership mutation.
type RoomUpdate struct {
	Room    *types.Room
	Deleted bool
}

// Registry owns room membership. The persisted record is authoritative;
// the lru mirror is refreshed from the store after every mutation and
// is only used for cheap membership reads.
type Registry struct {
	persister persistence.Persister
	mirror    *lru.Cache
}

func NewRegistry(persister persistence.Persister) (*Registry, error) {
	if persister == nil {
		return nil, fmt.Errorf("registry requires a persister")
	}
	mirror, err := lru.New(mirrorSize)
	if err != nil {
		return nil, err
	}
	return &Registry{persister: persister, mirror: mirror}, nil
}

// Warm loads all persisted rooms into the mirror. Called once at
// startup, failures only cost cache hits.
func (r *Registry) Warm() {
	rooms, err := r.persister.GetRooms()
	if err != nil {
		globals.AppLogger.Error("could not warm room mirror", "error", err)
		return
	}
	for _, room := range rooms {
		r.mirror.Add(room.Name, room.Users)
	}
}

// JoinOrCreate adds the member to the room, creating the room when it
// does not exist yet. A prior entry with the same display name is
// replaced (last connection wins). The full membership after the write
// is returned.
func (r *Registry) JoinOrCreate(roomName string, member types.Member) (*types.Room, error) {
	room := &types.Room{Name: roomName}
	err := r.persister.GetRoom(room)
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		room.Users = types.MemberList{member}

	case err != nil:
		return nil, err

	default:
		users := room.Users[:0]
		for _, u := range room.Users {
			if u.UserName != member.UserName {
				users = append(users, u)
			}
		}
		room.Users = append(users, member)
	}
	if err := r.persister.StoreRoom(*room); err != nil {
		return nil, err
	}
	r.refresh(roomName)
	return room, nil
}

// Leave removes the member identified by connection id. When the last
// member leaves, the room record is deleted.
func (r *Registry) Leave(roomName, connId string) (*types.Room, bool, error) {
	room := &types.Room{Name: roomName}
	err := r.persister.GetRoom(room)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, false, ErrRoomNotFound
	}
	if err != nil {
		return nil, false, err
	}
	users := make(types.MemberList, 0, len(room.Users))
	for _, u := range room.Users {
		if u.Id != connId {
			users = append(users, u)
		}
	}
	room.Users = users
	if len(room.Users) == 0 {
		if err := r.persister.DeleteRoom(room); err != nil {
			return nil, false, err
		}
		r.mirror.Remove(roomName)
		return room, true, nil
	}
	if err := r.persister.StoreRoom(*room); err != nil {
		return nil, false, err
	}
	r.refresh(roomName)
	return room, false, nil
}

// DisconnectAll applies leave semantics for the connection id on every
// known room. It scans the authoritative store rather than any
// in-process snapshot, runs to completion on per-room failures and is
// idempotent: a second call for the same connection id is a no-op.
func (r *Registry) DisconnectAll(connId string) []RoomUpdate {
	updates := make([]RoomUpdate, 0)
	rooms, err := r.persister.GetRooms()
	if err != nil {
		globals.AppLogger.Error("could not list rooms on disconnect", "error", err)
		return updates
	}
	for _, room := range rooms {
		isMember := false
		for _, u := range room.Users {
			if u.Id == connId {
				isMember = true
				break
			}
		}
		if !isMember {
			continue
		}
		updated, deleted, err := r.Leave(room.Name, connId)
		if err != nil {
			globals.AppLogger.Error("could not leave room on disconnect", "room", room.Name, "error", err)
			continue
		}
		updates = append(updates, RoomUpdate{Room: updated, Deleted: deleted})
	}
	return updates
}

// Members returns the mirrored membership of a room. The mirror may lag
// the store; broadcast decisions that matter must use the live
// connection layer or an authoritative read instead.
func (r *Registry) Members(roomName string) (types.MemberList, bool) {
	if v, ok := r.mirror.Get(roomName); ok {
		if users, ok := v.(types.MemberList); ok {
			return users, true
		}
	}
	return nil, false
}

// refresh re-reads the authoritative record into the mirror, never the
// reverse.
func (r *Registry) refresh(roomName string) {
	room := &types.Room{Name: roomName}
	if err := r.persister.GetRoom(room); err != nil {
		r.mirror.Remove(roomName)
		return
	}
	r.mirror.Add(roomName, room.Users)
}
