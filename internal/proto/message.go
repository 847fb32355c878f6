package proto

import "encoding/json"

// Socket events and Sails URLs used by the Floatplane real-time endpoints.
const (
	EventRadioChatter = "radioChatter"

	URLJoinRadio         = "/RadioMessage/joinLivestreamRadioFrequency"
	URLLeaveRadio        = "/RadioMessage/leaveLivestreamRadioFrequency"
	URLSocketConnect     = "/api/v3/socket/connect"
	URLSocketDisconnect  = "/api/v3/socket/disconnect"
	ChannelPrefix        = "/live/"
	LeaveMessage         = "Bye!"
	SailsSDKVersion      = "0.13.8"
	SailsSDKPlatform     = "go"
	SailsSDKLanguage     = "go"
	SessionCookieName    = "sails.sid"
	DefaultSocketPath    = "/socket.io/"
	DefaultSocketVersion = 3
)

// UserType is the chat role of a sender. Unknown values are kept as-is.
type UserType string

const (
	UserTypeNormal    UserType = "Normal"
	UserTypeModerator UserType = "Moderator"
	UserTypeAdmin     UserType = "Admin"
)

// EmoteRef is an emote advertised by the server.
type EmoteRef struct {
	Code  string `json:"code"`
	Image string `json:"image"`
}

// ChatEvent is a single "radioChatter" push.
type ChatEvent struct {
	Channel  string     `json:"channel"`
	ID       string     `json:"id"`
	Username string     `json:"username"`
	UserGUID string     `json:"userGUID"`
	Message  string     `json:"message"`
	Emotes   []EmoteRef `json:"emotes,omitempty"`
	UserType UserType   `json:"userType"`
	Success  *bool      `json:"success,omitempty"`
}

// RadioRequest is the body of the join and leave requests.
type RadioRequest struct {
	Channel string  `json:"channel"`
	Message *string `json:"message"`
}

// JoinRadio builds the join body for a channel id.
func JoinRadio(channelID string) RadioRequest {
	return RadioRequest{Channel: ChannelPrefix + channelID}
}

// LeaveRadio builds the leave body for a channel id.
func LeaveRadio(channelID string) RadioRequest {
	msg := LeaveMessage
	return RadioRequest{Channel: ChannelPrefix + channelID, Message: &msg}
}

// JoinResponse is the body of a successful join.
type JoinResponse struct {
	Success bool       `json:"success"`
	Emotes  []EmoteRef `json:"emotes"`
}

// LeaveResponse is the body of a leave acknowledgement.
type LeaveResponse struct {
	Success bool `json:"success"`
}

// FrontendConnectResponse is the body of the frontend socket connect call.
type FrontendConnectResponse struct {
	Message string `json:"message"`
}

// Inbound is a command sent by a local WebSocket listener.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	InboundTypeSubscribe   = "subscribe"
	InboundTypeUnsubscribe = "unsubscribe"
)

// SubscribeData names the channel of a subscribe or unsubscribe command.
type SubscribeData struct {
	Channel string `json:"channel"`
}

// Outbound is the envelope the local bridge sends to its WebSocket listeners.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

const (
	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	OutboundEventChatter      = "chatter"
	OutboundEventConnected    = "connected"
	OutboundEventDisconnected = "disconnected"
	OutboundEventState        = "state"
	OutboundEventHistory      = "history"
)

// EventChatter is a rendered chat line as seen by local listeners.
type EventChatter struct {
	Channel  string    `json:"channel"`
	ID       string    `json:"id"`
	User     string    `json:"user"`
	UserType UserType  `json:"user_type,omitempty"`
	Text     string    `json:"text"`
	Segments []Segment `json:"segments,omitempty"`
	TS       int64     `json:"ts"`
}

// Segment is one styled piece of a rendered chat line.
type Segment struct {
	Kind  string `json:"kind"`
	Text  string `json:"text"`
	Color string `json:"color,omitempty"`
	Emote string `json:"emote,omitempty"`
}

// EventHistory replays the recent lines of a channel to a new listener.
type EventHistory struct {
	Channel string         `json:"channel"`
	Lines   []EventChatter `json:"lines"`
}

// EventState notifies listeners about a connection state change.
type EventState struct {
	Channel string `json:"channel"`
	State   string `json:"state"`
}

// Error describes a fault forwarded to listeners.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
