package models

import "encoding/json"

// Frame is the envelope for every websocket event, inbound and outbound.
type Frame struct {
	Type string      `json:"type"` // "join","leave","change","draw","clear","undo","redo","grant","sync","update","permissions","error"
	Data interface{} `json:"data"`
}

type JoinRequest struct {
	RoomID string `json:"roomId"`
}

type LeaveRequest struct {
	RoomID string `json:"roomId"`
}

// ContentChange replaces the whole stored blob for a room.
type ContentChange struct {
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
}

// BoardOp carries a drawing operation. Only RoomID is interpreted; the rest of
// the payload is relayed verbatim to the other room members.
type BoardOp struct {
	RoomID string `json:"roomId"`
}

type PermissionSet struct {
	CanEdit          bool `json:"canEdit"`
	CanChat          bool `json:"canChat"`
	CanDownloadNotes bool `json:"canDownloadNotes"`
}

type GrantRequest struct {
	RoomID      string        `json:"roomId"`
	TargetID    string        `json:"targetId"`
	Permissions PermissionSet `json:"permissions"`
	IsHost      bool          `json:"isHost"`
}

/*** Outbound payloads ***/

// SyncResponse is unicast to a joining connection with the room's current
// content, including the empty default so the client can tell "synced" apart
// from "still waiting".
type SyncResponse struct {
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
}

// UpdateEvent is broadcast to every room member except the sender. Content is
// set for whole-blob replaces; Op and OpData are set for drawing operations.
type UpdateEvent struct {
	RoomID  string          `json:"roomId"`
	Content string          `json:"content,omitempty"`
	Op      string          `json:"op,omitempty"`
	OpData  json.RawMessage `json:"opData,omitempty"`
}

// PermissionUpdate notifies a room that a participant's capabilities changed.
type PermissionUpdate struct {
	RoomID      string        `json:"roomId"`
	Identity    string        `json:"identity"`
	Permissions PermissionSet `json:"permissions"`
	IsHost      bool          `json:"isHost"`
}

/*** Room status (REST surface) ***/

type RoomInfo struct {
	RoomID       string `json:"roomId"`
	Host         string `json:"host"`
	Status       string `json:"status"` // "active"
	Participants int    `json:"participants"`
	CreatedAt    string `json:"createdAt"`
}
