package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/draftwire/draftwire/chat"
	"github.com/draftwire/draftwire/config"
	"github.com/draftwire/draftwire/draft"
	"github.com/draftwire/draftwire/globals"
	"github.com/draftwire/draftwire/persistence"
	"github.com/draftwire/draftwire/registry"
	"github.com/draftwire/draftwire/types"
	"github.com/robfig/cron/v3"
)

const (
	maxMessageSize       = 50 << 20 // attachments arrive inline, base64-encoded
	pongWait             = 2 * time.Minute
	pingPeriod           = time.Minute
	writeWait            = 10 * time.Second
	sendChannelSize      = 1000
	broadcastChannelSize = 1000
)

// RoomBroadcast targets every client currently subscribed to a room.
// Except, when set, skips that one client (sender-excluded notices).
type RoomBroadcast struct {
	RoomName string
	Message  []byte
	Except   *Client
}

// Hub coordinates presence and broadcasts. Clients subscribe to rooms
// by event; the subscription sets here are the live connection layer,
// distinct from the persisted membership records.
type Hub struct {
	// Registered clients.
	clients map[*Client]struct{}

	// Live subscribers per room.
	rooms map[string]map[*Client]struct{}

	// Broadcast messages to all subscribers of a room.
	Broadcast chan RoomBroadcast

	// Register a new client to the hub.
	Register chan *Client

	// Unregister a client from the hub.
	Unregister chan *Client

	// global configuration
	Cfg *config.Config

	// persistence
	Persister persistence.Persister

	Registry *registry.Registry
	Chat     *chat.Log
	Editor   *draft.Editor

	// mutex for manipulating the clients and subscriptions
	sync.RWMutex
}

func NewHub(cfg *config.Config, persister persistence.Persister, reg *registry.Registry, chatLog *chat.Log, editor *draft.Editor) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		Broadcast:  make(chan RoomBroadcast, broadcastChannelSize),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Cfg:        cfg,
		Persister:  persister,
		Registry:   reg,
		Chat:       chatLog,
		Editor:     editor,
	}
}

// Subscribers returns the number of live subscribers of a room. This is
// the count broadcast decisions are made on, never the persisted
// membership mirror.
func (h *Hub) Subscribers(roomName string) int {
	h.RLock()
	defer h.RUnlock()
	return len(h.rooms[roomName])
}

// SubscriberIds returns the connection ids currently subscribed to a room.
func (h *Hub) SubscriberIds(roomName string) []string {
	h.RLock()
	defer h.RUnlock()
	ids := make([]string, 0, len(h.rooms[roomName]))
	for c := range h.rooms[roomName] {
		ids = append(ids, c.ConnId)
	}
	return ids
}

func (h *Hub) Subscribe(c *Client, roomName string) {
	h.Lock()
	defer h.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	subs, ok := h.rooms[roomName]
	if !ok {
		subs = make(map[*Client]struct{})
		h.rooms[roomName] = subs
	}
	subs[c] = struct{}{}
}

func (h *Hub) Unsubscribe(c *Client, roomName string) {
	h.Lock()
	defer h.Unlock()
	h.unsubscribeLocked(c, roomName)
}

// UnsubscribeAll drops the client from every room subscription.
func (h *Hub) UnsubscribeAll(c *Client) {
	h.Lock()
	defer h.Unlock()
	for roomName := range h.rooms {
		h.unsubscribeLocked(c, roomName)
	}
}

func (h *Hub) unsubscribeLocked(c *Client, roomName string) {
	if subs, ok := h.rooms[roomName]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.rooms, roomName)
		}
	}
}

// BroadcastToRoom marshals the event envelope and queues it for every
// live subscriber of the room. Callers pass the post-write canonical
// state, never an optimistic pre-write view.
func (h *Hub) BroadcastToRoom(roomName, event string, payload interface{}) {
	h.broadcastExcept(roomName, event, payload, nil)
}

// BroadcastToRoomExcept is BroadcastToRoom minus one client, used for
// "someone else joined" notices.
func (h *Hub) BroadcastToRoomExcept(roomName, event string, payload interface{}, except *Client) {
	h.broadcastExcept(roomName, event, payload, except)
}

func (h *Hub) broadcastExcept(roomName, event string, payload interface{}, except *Client) {
	data, err := json.Marshal(payload)
	if err != nil {
		globals.AppLogger.Error("could not marshal broadcast payload", "event", event, "error", err)
		return
	}
	msg, err := json.Marshal(types.WebsocketMessage{Event: event, Data: data})
	if err != nil {
		globals.AppLogger.Error("could not marshal broadcast envelope", "event", event, "error", err)
		return
	}
	h.Broadcast <- RoomBroadcast{RoomName: roomName, Message: msg, Except: except}
}

// EmitTo sends an event to a single client only (acks, initial state).
func (h *Hub) EmitTo(c *Client, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		globals.AppLogger.Error("could not marshal payload", "event", event, "error", err)
		return
	}
	msg, err := json.Marshal(types.WebsocketMessage{Event: event, Data: data})
	if err != nil {
		globals.AppLogger.Error("could not marshal envelope", "event", event, "error", err)
		return
	}
	h.RLock()
	if _, ok := h.clients[c]; ok {
		c.Send <- msg
	}
	h.RUnlock()
}

// Run is the main hub event loop handling register, unregister and broadcast events.
func (h *Hub) Run() {
	cronRunner := cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if h.Editor != nil && h.Cfg != nil && h.Cfg.SchedulerConfig.PublishCron != "" {
		entryId, err := cronRunner.AddFunc(h.Cfg.SchedulerConfig.PublishCron, h.runScheduledPublish)
		if err != nil {
			globals.AppLogger.Error("could not schedule auto-publish check", "error", err)
		} else {
			defer cronRunner.Remove(entryId)
		}
	}
	defer cronRunner.Stop()
	cronRunner.Start()
	for {
		select {
		case client := <-h.Register:
			globals.AppLogger.Debug("register new client", "connId", client.ConnId)
			h.Lock()
			h.clients[client] = struct{}{}
			h.Unlock()
			client.Done()

		case client := <-h.Unregister:
			go func() {
				h.RLock()
				if _, ok := h.clients[client]; ok {
					h.RUnlock()
					globals.AppLogger.Debug("unregister client", "connId", client.ConnId)
					h.Lock()
					delete(h.clients, client)
					for roomName := range h.rooms {
						h.unsubscribeLocked(client, roomName)
					}
					// probably already closed, just to make sure
					client.conn.Close()
					// wait for all loops and write operations to be
					// finished, only then it is safe to close the channel
					client.Wait()
					close(client.Send)
					h.Unlock()
				} else {
					h.RUnlock()
				}
			}()

		case message := <-h.Broadcast:
			go func() {
				var wg sync.WaitGroup
				h.RLock()
				for client := range h.rooms[message.RoomName] {
					if client == message.Except {
						continue
					}
					wg.Add(1)
					client.Add(1)
					go func(c *Client) {
						defer wg.Done()
						defer c.Done()
						c.Send <- message.Message
					}(client)
				}
				wg.Wait()
				h.RUnlock()
			}()
		}
	}
}

// runScheduledPublish is the recurring auto-publish check. Documents
// whose scheduled instant has passed are published and their rooms get
// the refreshed canonical state.
func (h *Hub) runScheduledPublish() {
	ids, err := h.Editor.AutoPublishDue(time.Now())
	if err != nil {
		globals.AppLogger.Error("auto-publish scan failed", "error", err)
		return
	}
	for _, id := range ids {
		blog, err := h.Editor.Get(id)
		if err != nil {
			globals.AppLogger.Error("could not reload published document", "blog", id, "error", err)
			continue
		}
		h.BroadcastToRoom(id, types.EventInitialProperty, blog)
	}
}
