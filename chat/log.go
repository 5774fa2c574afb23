package chat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/draftwire/draftwire/blob"
	"github.com/draftwire/draftwire/globals"
	"github.com/draftwire/draftwire/persistence"
	"github.com/draftwire/draftwire/types"
	"github.com/google/uuid"
)

// Log is the per-room chat append log. Messages are only ever appended
// or soft-deleted, never removed.
type Log struct {
	persister persistence.Persister
	store     blob.ObjectStore
}

func NewLog(persister persistence.Persister, store blob.ObjectStore) *Log {
	return &Log{persister: persister, store: store}
}

// Append stores the attachment (if any) in the blob store, then pushes
// a message carrying the resolved URL onto the room's thread. Both text
// and attachment may be empty, that is not an error. The stored message
// is returned for broadcasting.
func (l *Log) Append(ctx context.Context, roomName, userName, text string, file *types.FileUpload) (types.Message, error) {
	fileUrl := ""
	if file != nil && len(file.FileBuffer) > 0 {
		url, err := l.uploadAttachment(ctx, roomName, file)
		if err != nil {
			return types.Message{}, err
		}
		fileUrl = url
	}
	msg := types.Message{
		User:      userName,
		Message:   text,
		File:      fileUrl,
		Timestamp: time.Now(),
	}
	if err := msg.CreateId(); err != nil {
		return types.Message{}, fmt.Errorf("could not hash message: %w", err)
	}
	if err := l.persister.AppendMessage(roomName, msg); err != nil {
		return types.Message{}, fmt.Errorf("could not append message: %w", err)
	}
	return msg, nil
}

// SoftDelete flips the delete flag of the identified message. A missing
// thread or message is reported as found=false, not as an error.
func (l *Log) SoftDelete(roomName, messageId string) (bool, error) {
	found, err := l.persister.MarkMessageDeleted(roomName, messageId)
	if err != nil {
		return false, fmt.Errorf("could not mark message deleted: %w", err)
	}
	if !found {
		globals.AppLogger.Info("message not found", "room", roomName, "messageId", messageId)
	}
	return found, nil
}

// History returns the full thread of a room, oldest first. A room
// without a thread yet yields an empty slice.
func (l *Log) History(roomName string) ([]types.Message, error) {
	thread := &types.Thread{RoomName: roomName}
	err := l.persister.GetThread(thread)
	if errors.Is(err, persistence.ErrNotFound) {
		return []types.Message{}, nil
	}
	if err != nil {
		return nil, err
	}
	return thread.Messages, nil
}

func (l *Log) uploadAttachment(ctx context.Context, roomName string, file *types.FileUpload) (string, error) {
	if l.store == nil {
		return "", fmt.Errorf("no blob store configured")
	}
	key := fmt.Sprintf("chats/%s/%s-%s", roomName, uuid.NewString(), file.FileName)
	err := l.store.Put(ctx, key, bytes.NewReader(file.FileBuffer), int64(len(file.FileBuffer)), file.FileType)
	if err != nil {
		return "", fmt.Errorf("could not store attachment: %w", err)
	}
	url, err := l.store.PresignGet(ctx, key)
	if err != nil {
		return "", fmt.Errorf("could not resolve attachment url: %w", err)
	}
	return url, nil
}
