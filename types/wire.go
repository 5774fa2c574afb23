package types

import "encoding/json"

// Inbound socket events.
const (
	EventCreateOrJoinRoom  = "createOrJoinRoom"
	EventSendMessageToRoom = "sendMessageToRoom"
	EventDeleteMessage     = "deleteMessage"
	EventLeaveRoom         = "leaveRoom"
	EventJoinDraftRoom     = "joinRoom"
	EventInitialRequest    = "userId"
	EventDraftTitle        = "draftTitle"
	EventDraftSlug         = "draftSlug"
	EventDraftDate         = "draftDate"
	EventPublishDate       = "publishDate"
	EventDraftContent      = "draftContentUpdate"
	EventCoverImages       = "coverImages"
	EventRemoveCoverImages = "removeCoverImages"
	EventPublished         = "Published"
	EventSchedulePublish   = "schedulePublish"
	// misspelled variant still sent by older clients
	EventSchedulePublishOld = "shedulePublish"
)

// Outbound socket events.
const (
	EventAck             = "ack"
	EventRoomMessage     = "roomMessage"
	EventNewMessage      = "newMessage"
	EventMessageDeleted  = "messageDeleted"
	EventRoomNotice      = "message"
	EventRoomUsers       = "roomUsers"
	EventInitialProperty = "initialProperty"
)

// JSON-serialized WebsocketMessage is what is actually sent via the Websocket connection
type WebsocketMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// FileUpload carries a binary attachment inline in a socket event. The
// buffer is base64 on the wire and must be stored in the blob store
// before the message referencing it is appended.
type FileUpload struct {
	FileName   string `json:"fileName"`
	FileBuffer []byte `json:"fileBuffer"`
	FileType   string `json:"fileType"`
}

type JoinRoomRequest struct {
	RoomName string `json:"roomName" mapstructure:"roomName"`
	UserName string `json:"userName" mapstructure:"userName"`
}

// SendMessageRequest is decoded with encoding/json directly so the
// base64 file buffer ends up as raw bytes.
type SendMessageRequest struct {
	RoomName string      `json:"roomName"`
	UserName string      `json:"userName"`
	Message  string      `json:"message"`
	File     *FileUpload `json:"file"`
}

type DeleteMessageRequest struct {
	RoomName  string `json:"roomName" mapstructure:"roomName"`
	MessageId string `json:"messageId" mapstructure:"messageId"`
}

type LeaveRoomRequest struct {
	RoomName string `json:"roomName" mapstructure:"roomName"`
}

// DraftDetails identifies the blog document a draft update applies to.
type DraftDetails struct {
	Id string `json:"id" mapstructure:"id"`
}

type DraftTitleRequest struct {
	DraftDetails DraftDetails `json:"draftDetails" mapstructure:"draftDetails"`
	RoomId       string       `json:"roomId" mapstructure:"roomId"`
	DraftTitle   string       `json:"draft_title" mapstructure:"draft_title"`
}

type DraftSlugRequest struct {
	DraftDetails DraftDetails `json:"draftDetails" mapstructure:"draftDetails"`
	RoomId       string       `json:"roomId" mapstructure:"roomId"`
	DraftSlug    string       `json:"draft_slug" mapstructure:"draft_slug"`
}

type DraftDateRequest struct {
	DraftDetails DraftDetails `json:"draftDetails" mapstructure:"draftDetails"`
	RoomId       string       `json:"roomId" mapstructure:"roomId"`
	DraftDate    string       `json:"draft_date" mapstructure:"draft_date"`
}

type PublishDateRequest struct {
	BlogId        string `json:"userId" mapstructure:"userId"`
	RoomId        string `json:"roomId" mapstructure:"roomId"`
	PublishedDate string `json:"published_date" mapstructure:"published_date"`
}

type DraftContentRequest struct {
	DraftDetails  DraftDetails `json:"draftDetails" mapstructure:"draftDetails"`
	RoomId        string       `json:"roomId" mapstructure:"roomId"`
	EditorContent interface{}  `json:"editorContent" mapstructure:"editorContent"`
}

// CoverImageRequest is decoded with encoding/json directly (binary payload).
type CoverImageRequest struct {
	DirName    string `json:"dirName"`
	RoomId     string `json:"roomId"`
	ImageName  string `json:"imageName"`
	BinaryData []byte `json:"binaryData"`
	FileType   string `json:"fileType"`
}

type RemoveCoverImageRequest struct {
	DirName string `json:"dirName" mapstructure:"dirName"`
	RoomId  string `json:"roomId" mapstructure:"roomId"`
	Remove  bool   `json:"remove" mapstructure:"remove"`
}

type PublishRequest struct {
	BlogId        string `json:"blogId" mapstructure:"blogId"`
	RoomId        string `json:"roomId" mapstructure:"roomId"`
	PublishedDate string `json:"published_date" mapstructure:"published_date"`
}

const (
	AckStatusSuccess = "success"
	AckStatusError   = "error"
)

// Ack is the request/response-style reply sent to the requesting client
// only. For is the inbound event being acknowledged.
type Ack struct {
	For      string    `json:"for"`
	Status   string    `json:"status"`
	Message  string    `json:"message,omitempty"`
	Messages []Message `json:"messages,omitempty"`
}

// RoomMessagePayload is broadcast on membership changes.
type RoomMessagePayload struct {
	Message     string     `json:"message"`
	Users       MemberList `json:"users"`
	ChatMessage []Message  `json:"chatMessage,omitempty"`
}

// NewMessagePayload is broadcast after a message is appended.
type NewMessagePayload struct {
	Users       MemberList `json:"users"`
	ChatMessage Message    `json:"chatMessage"`
}

type MessageDeletedPayload struct {
	MessageId string `json:"MessageId"`
}

// RoomUsersPayload reflects the live subscribers of a draft room, not
// the persisted membership.
type RoomUsersPayload struct {
	TotalUsers int      `json:"totalUsers"`
	UserIDs    []string `json:"userIDs"`
}
