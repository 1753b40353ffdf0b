package models

import "encoding/json"

/*
LEARNING: COLLABORATION WIRE PROTOCOL

Every WebSocket frame is a JSON object with a "type" field.

Client → server:
  join        {docId, identity?}
  change      {docId, content}            full-buffer replacement
  operations  {docId, operations: [...]}  insert/delete replay
  upload      {docId, content, filename}

Server → client:
  initialContent {content}        only to the joiner
  presence       {identities}     to the whole document group
  change         {content}        to the other members
  uploadAck      {content, filename}
  syncError      {message}
*/

// EventType names a protocol event
type EventType string

const (
	EventJoin           EventType = "join"
	EventChange         EventType = "change"
	EventOperations     EventType = "operations"
	EventUpload         EventType = "upload"
	EventInitialContent EventType = "initialContent"
	EventPresence       EventType = "presence"
	EventUploadAck      EventType = "uploadAck"
	EventSyncError      EventType = "syncError"
)

// ClientMessage is an inbound frame.
// Content is a pointer so a missing field can be told apart from "".
type ClientMessage struct {
	Type       EventType       `json:"type"`
	DocID      string          `json:"docId"`
	Identity   string          `json:"identity,omitempty"`
	Content    *string         `json:"content,omitempty"`
	Filename   string          `json:"filename,omitempty"`
	Operations json.RawMessage `json:"operations,omitempty"`
}

// ContentMessage carries a full buffer (initialContent, change)
type ContentMessage struct {
	Type    EventType `json:"type"`
	Content string    `json:"content"`
}

// PresenceMessage carries the presence set of a document
type PresenceMessage struct {
	Type       EventType `json:"type"`
	Identities []string  `json:"identities"`
}

// UploadAckMessage confirms an upload to the uploader
type UploadAckMessage struct {
	Type     EventType `json:"type"`
	Content  string    `json:"content"`
	Filename string    `json:"filename"`
}

// SyncErrorMessage tells a client its request failed
type SyncErrorMessage struct {
	Type    EventType `json:"type"`
	Message string    `json:"message"`
}
