package registry

import (
	"testing"

	"github.com/draftwire/draftwire/config"
	"github.com/draftwire/draftwire/persistence"
	"github.com/draftwire/draftwire/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, persistence.Persister) {
	t.Helper()
	cfg := &config.Config{PersistenceConfig: config.PersistenceConfig{Type: "buntdb", DSN: ":memory:"}}
	persister, err := persistence.NewPersister(cfg)
	require.NoError(t, err)
	require.NotNil(t, persister)
	t.Cleanup(func() { persister.Close() })
	reg, err := NewRegistry(persister)
	require.NoError(t, err)
	return reg, persister
}

func memberNames(users types.MemberList) []string {
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.UserName)
	}
	return names
}

func TestJoinOrCreateAndLeave(t *testing.T) {
	reg, _ := newTestRegistry(t)

	room, err := reg.JoinOrCreate("r1", types.Member{Id: "c-alice", UserName: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, memberNames(room.Users))

	room, err = reg.JoinOrCreate("r1", types.Member{Id: "c-bob", UserName: "bob"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, memberNames(room.Users))

	room, deleted, err := reg.Leave("r1", "c-alice")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, []string{"bob"}, memberNames(room.Users))

	_, deleted, err = reg.Leave("r1", "c-bob")
	require.NoError(t, err)
	assert.True(t, deleted, "room must be dropped when the last member leaves")

	_, _, err = reg.Leave("r1", "c-bob")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestJoinLastConnectionWins(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.JoinOrCreate("r1", types.Member{Id: "c-old", UserName: "alice"})
	require.NoError(t, err)
	room, err := reg.JoinOrCreate("r1", types.Member{Id: "c-new", UserName: "alice"})
	require.NoError(t, err)

	require.Len(t, room.Users, 1)
	assert.Equal(t, "c-new", room.Users[0].Id)
}

func TestDisconnectAll(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.JoinOrCreate("shared", types.Member{Id: "c1", UserName: "alice"})
	require.NoError(t, err)
	_, err = reg.JoinOrCreate("shared", types.Member{Id: "c2", UserName: "bob"})
	require.NoError(t, err)
	_, err = reg.JoinOrCreate("solo", types.Member{Id: "c1", UserName: "alice"})
	require.NoError(t, err)

	updates := reg.DisconnectAll("c1")
	require.Len(t, updates, 2)
	byRoom := make(map[string]RoomUpdate, len(updates))
	for _, u := range updates {
		byRoom[u.Room.Name] = u
	}
	assert.False(t, byRoom["shared"].Deleted)
	assert.Equal(t, []string{"bob"}, memberNames(byRoom["shared"].Room.Users))
	assert.True(t, byRoom["solo"].Deleted)

	// second disconnect for the same id is a no-op
	assert.Empty(t, reg.DisconnectAll("c1"))
}

func TestMembersMirror(t *testing.T) {
	reg, persister := newTestRegistry(t)

	_, ok := reg.Members("r1")
	assert.False(t, ok)

	_, err := reg.JoinOrCreate("r1", types.Member{Id: "c1", UserName: "alice"})
	require.NoError(t, err)

	users, ok := reg.Members("r1")
	require.True(t, ok)
	assert.Equal(t, []string{"alice"}, memberNames(users))

	// a fresh registry sees nothing until warmed from the store
	cold, err := NewRegistry(persister)
	require.NoError(t, err)
	_, ok = cold.Members("r1")
	assert.False(t, ok)
	cold.Warm()
	users, ok = cold.Members("r1")
	require.True(t, ok)
	assert.Equal(t, []string{"alice"}, memberNames(users))
}
