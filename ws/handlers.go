package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/draftwire/draftwire/globals"
	"github.com/draftwire/draftwire/registry"
	"github.com/draftwire/draftwire/types"
	"github.com/folkengine/goname"
	"github.com/mitchellh/mapstructure"
)

// dispatch routes one inbound socket event to its handler. Every
// failure is caught here or below: logged, possibly acked, never fatal
// to the connection.
func (h *Hub) dispatch(c *Client, message *types.WebsocketMessage) {
	switch message.Event {
	case types.EventCreateOrJoinRoom:
		h.handleCreateOrJoinRoom(c, message.Data)
	case types.EventSendMessageToRoom:
		h.handleSendMessage(c, message.Data)
	case types.EventDeleteMessage:
		h.handleDeleteMessage(c, message.Data)
	case types.EventLeaveRoom:
		h.handleLeaveRoom(c, message.Data)
	case types.EventJoinDraftRoom:
		h.handleJoinDraftRoom(c, message.Data)
	case types.EventInitialRequest:
		h.handleInitialRequest(c, message.Data)
	case types.EventDraftTitle:
		h.handleDraftTitle(c, message.Data)
	case types.EventDraftSlug:
		h.handleDraftSlug(c, message.Data)
	case types.EventDraftDate:
		h.handleDraftDate(c, message.Data)
	case types.EventPublishDate:
		h.handlePublishDate(c, message.Data)
	case types.EventDraftContent:
		h.handleDraftContent(c, message.Data)
	case types.EventCoverImages:
		h.handleCoverImages(c, message.Data)
	case types.EventRemoveCoverImages:
		h.handleRemoveCoverImages(c, message.Data)
	case types.EventPublished:
		h.handlePublished(c, message.Data)
	case types.EventSchedulePublish, types.EventSchedulePublishOld:
		h.handleSchedulePublish(c, message.Data)
	default:
		globals.AppLogger.Info("unknown event", "event", message.Event, "connId", c.ConnId)
	}
}

// decodePayload unmarshals the raw event data into a generic map and
// weak-decodes it into the typed request, tolerating clients that send
// numbers as strings and vice versa.
func decodePayload(data json.RawMessage, out interface{}) error {
	payload := make(map[string]interface{})
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	return mapstructure.WeakDecode(payload, out)
}

// parseDate accepts RFC3339 instants, empty means absent.
func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		globals.AppLogger.Error("could not parse date", "value", s, "error", err)
		return nil
	}
	return &t
}

func (h *Hub) handleCreateOrJoinRoom(c *Client, data json.RawMessage) {
	req := types.JoinRoomRequest{}
	if err := decodePayload(data, &req); err != nil {
		globals.AppLogger.Error("could not decode join request", "error", err)
		h.EmitTo(c, types.EventAck, types.Ack{For: types.EventCreateOrJoinRoom, Status: types.AckStatusError, Message: "Failed to join room."})
		return
	}
	if req.RoomName == "" {
		h.EmitTo(c, types.EventAck, types.Ack{For: types.EventCreateOrJoinRoom, Status: types.AckStatusError, Message: "roomName is required."})
		return
	}
	userName := req.UserName
	if userName == "" {
		userName = goname.New(goname.FantasyMap).FirstLast() + " (guest)"
	}
	room, err := h.Registry.JoinOrCreate(req.RoomName, types.Member{Id: c.ConnId, UserName: userName})
	if err != nil {
		globals.AppLogger.Error("could not join room", "room", req.RoomName, "error", err)
		h.EmitTo(c, types.EventAck, types.Ack{For: types.EventCreateOrJoinRoom, Status: types.AckStatusError, Message: "Failed to join room."})
		return
	}
	h.Subscribe(c, req.RoomName)
	history, err := h.Chat.History(req.RoomName)
	if err != nil {
		globals.AppLogger.Error("could not load chat history", "room", req.RoomName, "error", err)
		history = []types.Message{}
	}
	h.EmitTo(c, types.EventAck, types.Ack{For: types.EventCreateOrJoinRoom, Status: types.AckStatusSuccess, Messages: history})
	h.BroadcastToRoom(req.RoomName, types.EventRoomMessage, types.RoomMessagePayload{
		Message:     userName + " has joined the room.",
		Users:       room.Users,
		ChatMessage: history,
	})
}

func (h *Hub) handleSendMessage(c *Client, data json.RawMessage) {
	req := types.SendMessageRequest{}
	// json directly so the base64 file buffer decodes to raw bytes
	if err := json.Unmarshal(data, &req); err != nil {
		globals.AppLogger.Error("could not decode message request", "error", err)
		return
	}
	if req.RoomName == "" {
		globals.AppLogger.Info("message without room name dropped", "connId", c.ConnId)
		return
	}
	msg, err := h.Chat.Append(context.Background(), req.RoomName, req.UserName, req.Message, req.File)
	if err != nil {
		globals.AppLogger.Error("could not append message", "room", req.RoomName, "error", err)
		return
	}
	room := &types.Room{Name: req.RoomName}
	if err := h.Persister.GetRoom(room); err != nil {
		globals.AppLogger.Error("room not found after append", "room", req.RoomName, "error", err)
		return
	}
	// broadcast only when there is a live subscriber right now, the
	// stored membership does not count
	if h.Subscribers(req.RoomName) > 0 {
		h.BroadcastToRoom(req.RoomName, types.EventNewMessage, types.NewMessagePayload{
			Users:       room.Users,
			ChatMessage: msg,
		})
	} else {
		globals.AppLogger.Debug("no live subscribers", "room", req.RoomName)
	}
}

func (h *Hub) handleDeleteMessage(c *Client, data json.RawMessage) {
	req := types.DeleteMessageRequest{}
	if err := decodePayload(data, &req); err != nil {
		globals.AppLogger.Error("could not decode delete request", "error", err)
		return
	}
	found, err := h.Chat.SoftDelete(req.RoomName, req.MessageId)
	if err != nil {
		globals.AppLogger.Error("could not delete message", "room", req.RoomName, "error", err)
		return
	}
	if found {
		h.BroadcastToRoom(req.RoomName, types.EventMessageDeleted, types.MessageDeletedPayload{MessageId: req.MessageId})
	}
}

// handleLeaveRoom covers both leave shapes: a bare room-id string is a
// collaboration room leave (live subscription only), an object with a
// roomName is a chat room leave going through the membership registry.
func (h *Hub) handleLeaveRoom(c *Client, data json.RawMessage) {
	var roomId string
	if err := json.Unmarshal(data, &roomId); err == nil && roomId != "" {
		h.leaveDraftRoom(c, roomId)
		return
	}
	req := types.LeaveRoomRequest{}
	if err := decodePayload(data, &req); err != nil {
		globals.AppLogger.Error("could not decode leave request", "error", err)
		h.EmitTo(c, types.EventAck, types.Ack{For: types.EventLeaveRoom, Status: types.AckStatusError, Message: "Failed to leave room."})
		return
	}
	room, deleted, err := h.Registry.Leave(req.RoomName, c.ConnId)
	if errors.Is(err, registry.ErrRoomNotFound) {
		h.EmitTo(c, types.EventAck, types.Ack{For: types.EventLeaveRoom, Status: types.AckStatusError, Message: "Room does not exist."})
		return
	}
	if err != nil {
		globals.AppLogger.Error("could not leave room", "room", req.RoomName, "error", err)
		h.EmitTo(c, types.EventAck, types.Ack{For: types.EventLeaveRoom, Status: types.AckStatusError, Message: "Failed to leave room."})
		return
	}
	h.Unsubscribe(c, req.RoomName)
	if !deleted {
		h.BroadcastToRoom(req.RoomName, types.EventRoomMessage, types.RoomMessagePayload{
			Message: c.ConnId + " has left the room.",
			Users:   room.Users,
		})
	}
	h.EmitTo(c, types.EventAck, types.Ack{For: types.EventLeaveRoom, Status: types.AckStatusSuccess, Message: "You have left the room."})
}

// leaveDraftRoom drops the client from a collaboration room and pushes
// the refreshed live user list to the remaining participants.
func (h *Hub) leaveDraftRoom(c *Client, roomId string) {
	h.Unsubscribe(c, roomId)
	h.BroadcastToRoom(roomId, types.EventRoomNotice, "A user has left the room: "+roomId)
	ids := h.SubscriberIds(roomId)
	h.BroadcastToRoom(roomId, types.EventRoomUsers, types.RoomUsersPayload{TotalUsers: len(ids), UserIDs: ids})
}

// HandleDisconnect applies leave semantics to every room the connection
// was a member of. Called once per socket teardown, it must run to
// completion; per-room failures are logged inside the registry and the
// remaining rooms are still processed.
func (h *Hub) HandleDisconnect(c *Client) {
	updates := h.Registry.DisconnectAll(c.ConnId)
	for _, u := range updates {
		if u.Deleted {
			continue
		}
		h.BroadcastToRoom(u.Room.Name, types.EventRoomMessage, types.RoomMessagePayload{
			Message: c.ConnId + " has disconnected.",
			Users:   u.Room.Users,
		})
	}
	h.UnsubscribeAll(c)
}

func (h *Hub) handleJoinDraftRoom(c *Client, data json.RawMessage) {
	var roomId string
	if err := json.Unmarshal(data, &roomId); err != nil || roomId == "" {
		globals.AppLogger.Error("could not decode draft room id", "error", err)
		return
	}
	h.Subscribe(c, roomId)
	h.BroadcastToRoomExcept(roomId, types.EventRoomNotice, "A new user has joined the room: "+roomId, c)
	ids := h.SubscriberIds(roomId)
	h.BroadcastToRoom(roomId, types.EventRoomUsers, types.RoomUsersPayload{TotalUsers: len(ids), UserIDs: ids})
}

func (h *Hub) handleInitialRequest(c *Client, data json.RawMessage) {
	var id string
	if err := json.Unmarshal(data, &id); err != nil || id == "" {
		globals.AppLogger.Error("could not decode document id", "error", err)
		return
	}
	blog, err := h.Editor.Get(id)
	if err != nil {
		globals.AppLogger.Error("could not load document", "blog", id, "error", err)
		return
	}
	h.EmitTo(c, types.EventInitialProperty, blog)
}

// refreshAndBroadcast re-reads the canonical document after a write and
// pushes it to every subscriber of the collaboration room.
func (h *Hub) refreshAndBroadcast(roomId, blogId string) {
	blog, err := h.Editor.Get(blogId)
	if err != nil {
		globals.AppLogger.Error("could not reload document", "blog", blogId, "error", err)
		return
	}
	h.BroadcastToRoom(roomId, types.EventInitialProperty, blog)
}

func (h *Hub) handleDraftTitle(c *Client, data json.RawMessage) {
	req := types.DraftTitleRequest{}
	if err := decodePayload(data, &req); err != nil {
		globals.AppLogger.Error("could not decode title update", "error", err)
		return
	}
	changed, err := h.Editor.UpdateTitle(req.DraftDetails.Id, req.DraftTitle)
	if err != nil {
		globals.AppLogger.Error("could not update title", "blog", req.DraftDetails.Id, "error", err)
		return
	}
	if changed {
		h.refreshAndBroadcast(req.RoomId, req.DraftDetails.Id)
	}
}

func (h *Hub) handleDraftSlug(c *Client, data json.RawMessage) {
	req := types.DraftSlugRequest{}
	if err := decodePayload(data, &req); err != nil {
		globals.AppLogger.Error("could not decode slug update", "error", err)
		return
	}
	changed, err := h.Editor.UpdateSlug(req.DraftDetails.Id, req.DraftSlug)
	if err != nil {
		globals.AppLogger.Error("could not update slug", "blog", req.DraftDetails.Id, "error", err)
		return
	}
	if changed {
		h.refreshAndBroadcast(req.RoomId, req.DraftDetails.Id)
	}
}

func (h *Hub) handleDraftDate(c *Client, data json.RawMessage) {
	req := types.DraftDateRequest{}
	if err := decodePayload(data, &req); err != nil {
		globals.AppLogger.Error("could not decode date update", "error", err)
		return
	}
	changed, err := h.Editor.UpdateDate(req.DraftDetails.Id, parseDate(req.DraftDate))
	if err != nil {
		globals.AppLogger.Error("could not update date", "blog", req.DraftDetails.Id, "error", err)
		return
	}
	if changed {
		h.refreshAndBroadcast(req.RoomId, req.DraftDetails.Id)
	}
}

func (h *Hub) handlePublishDate(c *Client, data json.RawMessage) {
	req := types.PublishDateRequest{}
	if err := decodePayload(data, &req); err != nil {
		globals.AppLogger.Error("could not decode publish date update", "error", err)
		return
	}
	changed, err := h.Editor.UpdatePublishedDate(req.BlogId, parseDate(req.PublishedDate))
	if err != nil {
		globals.AppLogger.Error("could not update publish date", "blog", req.BlogId, "error", err)
		return
	}
	if changed {
		h.refreshAndBroadcast(req.RoomId, req.BlogId)
	}
}

func (h *Hub) handleDraftContent(c *Client, data json.RawMessage) {
	req := types.DraftContentRequest{}
	if err := decodePayload(data, &req); err != nil {
		globals.AppLogger.Error("could not decode content update", "error", err)
		return
	}
	changed, err := h.Editor.UpdateContent(req.DraftDetails.Id, req.EditorContent)
	if err != nil {
		globals.AppLogger.Error("could not update content", "blog", req.DraftDetails.Id, "error", err)
		return
	}
	if changed {
		h.refreshAndBroadcast(req.RoomId, req.DraftDetails.Id)
	}
}

func (h *Hub) handleCoverImages(c *Client, data json.RawMessage) {
	req := types.CoverImageRequest{}
	// json directly so the base64 image buffer decodes to raw bytes
	if err := json.Unmarshal(data, &req); err != nil {
		globals.AppLogger.Error("could not decode cover image update", "error", err)
		return
	}
	changed, err := h.Editor.UpdateCoverImage(context.Background(), req.DirName, req.ImageName, req.FileType, req.BinaryData)
	if err != nil {
		globals.AppLogger.Error("could not update cover image", "blog", req.DirName, "error", err)
		return
	}
	if changed {
		h.refreshAndBroadcast(req.RoomId, req.DirName)
	}
}

func (h *Hub) handleRemoveCoverImages(c *Client, data json.RawMessage) {
	req := types.RemoveCoverImageRequest{}
	if err := decodePayload(data, &req); err != nil {
		globals.AppLogger.Error("could not decode cover image removal", "error", err)
		return
	}
	removed, err := h.Editor.RemoveCoverImage(context.Background(), req.DirName, req.Remove)
	if err != nil {
		globals.AppLogger.Error("could not remove cover image", "blog", req.DirName, "error", err)
		return
	}
	if removed {
		h.refreshAndBroadcast(req.RoomId, req.DirName)
	}
}

func (h *Hub) handlePublished(c *Client, data json.RawMessage) {
	req := types.PublishRequest{}
	if err := decodePayload(data, &req); err != nil {
		globals.AppLogger.Error("could not decode publish request", "error", err)
		return
	}
	if err := h.Editor.Publish(req.BlogId, parseDate(req.PublishedDate)); err != nil {
		globals.AppLogger.Error("could not publish", "blog", req.BlogId, "error", err)
		return
	}
	h.refreshAndBroadcast(req.RoomId, req.BlogId)
}

func (h *Hub) handleSchedulePublish(c *Client, data json.RawMessage) {
	var id string
	if err := json.Unmarshal(data, &id); err != nil || id == "" {
		globals.AppLogger.Error("could not decode schedule check id", "error", err)
		return
	}
	blog, err := h.Editor.Get(id)
	if err != nil {
		globals.AppLogger.Error("could not load document", "blog", id, "error", err)
		return
	}
	if blog.PublishedDate == nil || blog.PublishedDate.After(time.Now()) {
		return
	}
	if err := h.Editor.AutoPublish(id); err != nil {
		globals.AppLogger.Error("could not auto-publish", "blog", id, "error", err)
		return
	}
	h.refreshAndBroadcast(id, id)
}
