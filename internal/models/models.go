package models

type Language string

const (
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
)

// Languages is the closed set of buffer channels, in display order.
var Languages = []Language{LangPython, LangJavaScript}

func (l Language) Valid() bool {
	return l == LangPython || l == LangJavaScript
}

type Role string

const (
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

/*** WebSocket event names ***/
const (
	EventInitialState     = "initial-state"
	EventCodeUpdate       = "code-update"
	EventLanguageChange   = "language-change"
	EventCursorSelection  = "cursor-selection-update"
	EventEditorCount      = "editor-count-update"
	EventUserDisconnected = "user-disconnected"
	EventRoleUpdate       = "role-update"
)

type WSFrame struct {
	Type string      `json:"type"` // one of the Event* names above
	Data interface{} `json:"data"`
}

type InitialState struct {
	Python         string   `json:"python"`
	JavaScript     string   `json:"javascript"`
	Language       Language `json:"language"`
	CanEdit        bool     `json:"canEdit"`
	MaxEditors     int      `json:"maxEditors"`
	CurrentEditors int      `json:"currentEditors"`
}

type CodeUpdate struct {
	Language Language `json:"language"`
	Code     string   `json:"code"`
}

type Range struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// CursorSelection is what an editor sends; the server tags it before relaying.
type CursorSelection struct {
	Ranges []Range `json:"ranges"`
}

type RemoteCursor struct {
	UserID string  `json:"userId"`
	Color  string  `json:"color"`
	Ranges []Range `json:"ranges"`
}

type EditorCount struct {
	CurrentEditors int `json:"currentEditors"`
	MaxEditors     int `json:"maxEditors"`
}

type RoleUpdate struct {
	CanEdit bool `json:"canEdit"`
}

// Snapshot is the authoritative buffer state handed to new connections.
type Snapshot struct {
	Python     string   `json:"python"`
	JavaScript string   `json:"javascript"`
	Language   Language `json:"language"`
}

// Occupancy is the read-only view served over HTTP and logged by the reporter.
type Occupancy struct {
	Language       Language `json:"language"`
	CurrentEditors int      `json:"currentEditors"`
	MaxEditors     int      `json:"maxEditors"`
	Connections    int      `json:"connections"`
	Viewers        int      `json:"viewers"`
}

/*** Presence mirror ***/
const (
	PresenceConnected      = "connected"
	PresenceDisconnected   = "disconnected"
	PresenceEditorCount    = "editor-count"
	PresenceLanguageChange = "language-change"
	PresenceCursorExpired  = "cursor-expired"
)

// PresenceEvent is published to Redis for observers outside this process.
type PresenceEvent struct {
	Type           string   `json:"type"`
	ConnectionID   string   `json:"connectionId,omitempty"`
	Role           Role     `json:"role,omitempty"`
	CurrentEditors int      `json:"currentEditors"`
	MaxEditors     int      `json:"maxEditors"`
	Language       Language `json:"language,omitempty"`
	InstanceID     string   `json:"instanceId"`
	Timestamp      string   `json:"timestamp"`
}
