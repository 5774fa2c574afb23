package chat

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/draftwire/draftwire/config"
	"github.com/draftwire/draftwire/persistence"
	"github.com/draftwire/draftwire/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	objects map[string][]byte
}

func (f *fakeStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[key] = data
	return nil
}

func (f *fakeStore) PresignGet(ctx context.Context, key string) (string, error) {
	return "https://blobs.test/" + key, nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func newTestLog(t *testing.T, store *fakeStore) *Log {
	t.Helper()
	cfg := &config.Config{PersistenceConfig: config.PersistenceConfig{Type: "buntdb", DSN: ":memory:"}}
	persister, err := persistence.NewPersister(cfg)
	require.NoError(t, err)
	require.NotNil(t, persister)
	t.Cleanup(func() { persister.Close() })
	if store == nil {
		return NewLog(persister, nil)
	}
	return NewLog(persister, store)
}

func TestAppendAndHistory(t *testing.T) {
	log := newTestLog(t, nil)

	history, err := log.History("r1")
	require.NoError(t, err)
	assert.Empty(t, history)

	first, err := log.Append(context.Background(), "r1", "alice", "hello", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, first.Id)
	assert.False(t, first.IsDeleted)

	second, err := log.Append(context.Background(), "r1", "bob", "hi alice", nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.Id, second.Id)

	history, err = log.History("r1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[0].Message)
	assert.Equal(t, "hi alice", history[1].Message)
}

func TestAppendWithAttachment(t *testing.T) {
	store := &fakeStore{}
	log := newTestLog(t, store)

	msg, err := log.Append(context.Background(), "r1", "alice", "", &types.FileUpload{
		FileName:   "cat.png",
		FileType:   "image/png",
		FileBuffer: []byte{0x89, 0x50, 0x4e, 0x47},
	})
	require.NoError(t, err)
	assert.Empty(t, msg.Message, "empty text with an attachment is a valid message")
	assert.True(t, strings.HasPrefix(msg.File, "https://blobs.test/chats/r1/"))
	assert.True(t, strings.HasSuffix(msg.File, "-cat.png"))
	assert.Len(t, store.objects, 1)
}

func TestAppendAttachmentWithoutStore(t *testing.T) {
	log := newTestLog(t, nil)

	_, err := log.Append(context.Background(), "r1", "x", "", &types.FileUpload{
		FileName:   "cat.png",
		FileBuffer: []byte{1},
	})
	assert.Error(t, err)
}

func TestSoftDelete(t *testing.T) {
	log := newTestLog(t, nil)

	msg, err := log.Append(context.Background(), "r1", "alice", "oops", nil)
	require.NoError(t, err)
	_, err = log.Append(context.Background(), "r1", "bob", "keep", nil)
	require.NoError(t, err)

	found, err := log.SoftDelete("r1", msg.Id)
	require.NoError(t, err)
	assert.True(t, found)

	// the thread keeps its length, the message only carries the flag
	history, err := log.History("r1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].IsDeleted)
	assert.Equal(t, "oops", history[0].Message)
	assert.False(t, history[1].IsDeleted)

	found, err = log.SoftDelete("r1", "no-such-id")
	require.NoError(t, err)
	assert.False(t, found)

	found, err = log.SoftDelete("no-such-room", msg.Id)
	require.NoError(t, err)
	assert.False(t, found)
}
