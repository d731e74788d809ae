package protocol

import (
	"encoding/json"

	"github.com/stormboard/stormboard/internal/board"
	"github.com/stormboard/stormboard/internal/presence"
)

// EventType identifies server-to-client event variants.
type EventType string

const (
	EventSessionState           EventType = "session_state"
	EventParticipantJoined      EventType = "participant_joined"
	EventParticipantReconnected EventType = "participant_reconnected"
	EventParticipantOffline     EventType = "participant_offline"
	EventParticipantLeft        EventType = "participant_left"
	EventStickerAdded           EventType = "sticker_added"
	EventStickerUpdated         EventType = "sticker_updated"
	EventStickerMoved           EventType = "sticker_moved"
	EventStickerDeleted         EventType = "sticker_deleted"
	EventConnectionAdded        EventType = "connection_added"
	EventConnectionDeleted      EventType = "connection_deleted"
	EventPhaseChanged           EventType = "phase_changed"
	EventWorkshopStarted        EventType = "workshop_started"
	EventTimerSync              EventType = "timer_sync"
	EventTimerPaused            EventType = "timer_paused"
	EventCursorUpdate           EventType = "cursor_update"
	EventAIConnected            EventType = "ai_connected"
	EventAIDisconnected         EventType = "ai_disconnected"
	EventVideoPeers             EventType = "video_peers"
	EventVideoPeerJoined        EventType = "video_peer_joined"
	EventVideoPeerLeft          EventType = "video_peer_left"
	EventVideoOffer             EventType = "video_offer"
	EventVideoAnswer            EventType = "video_answer"
	EventVideoICECandidate      EventType = "video_ice_candidate"
	EventVideoMuteStatus        EventType = "video_mute_status"
	EventScreenShareStarted     EventType = "screen_share_started"
	EventScreenShareStopped     EventType = "screen_share_stopped"
	EventError                  EventType = "error"
)

// ServerEvent is embedded by every server-to-client payload so transports
// and metrics can name frames without reflection.
type ServerEvent struct {
	Event EventType `json:"event"`
}

func (e ServerEvent) EventType() string { return string(e.Event) }

func evt(t EventType) ServerEvent { return ServerEvent{Event: t} }

// Feedback is advisory facilitation output attached to sticker_added.
// It never blocks creation and never mutates stored text.
type Feedback struct {
	Kind       string `json:"type"`
	StickerID  string `json:"sticker_id"`
	Issue      string `json:"issue,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Message    string `json:"message,omitempty"`
}

type SessionState struct {
	ServerEvent
	Session        *board.Session         `json:"session"`
	Stickers       []board.Sticker        `json:"stickers"`
	Connections    []board.Connection     `json:"connections"`
	Participants   []presence.Participant `json:"participants"`
	IsReconnection bool                   `json:"is_reconnection"`
}

func NewSessionState(sess *board.Session, stickers []board.Sticker, conns []board.Connection, participants []presence.Participant, reconnection bool) SessionState {
	return SessionState{
		ServerEvent:    evt(EventSessionState),
		Session:        sess,
		Stickers:       stickers,
		Connections:    conns,
		Participants:   participants,
		IsReconnection: reconnection,
	}
}

type ParticipantJoined struct {
	ServerEvent
	SID  string `json:"sid"`
	Name string `json:"name"`
}

func NewParticipantJoined(sid, name string) ParticipantJoined {
	return ParticipantJoined{ServerEvent: evt(EventParticipantJoined), SID: sid, Name: name}
}

type ParticipantReconnected struct {
	ServerEvent
	SID     string `json:"sid"`
	Name    string `json:"name"`
	Message string `json:"message,omitempty"`
}

func NewParticipantReconnected(sid, name, message string) ParticipantReconnected {
	return ParticipantReconnected{ServerEvent: evt(EventParticipantReconnected), SID: sid, Name: name, Message: message}
}

type ParticipantOffline struct {
	ServerEvent
	SID     string `json:"sid"`
	Message string `json:"message,omitempty"`
}

func NewParticipantOffline(sid, message string) ParticipantOffline {
	return ParticipantOffline{ServerEvent: evt(EventParticipantOffline), SID: sid, Message: message}
}

type ParticipantLeft struct {
	ServerEvent
	SID string `json:"sid"`
}

func NewParticipantLeft(sid string) ParticipantLeft {
	return ParticipantLeft{ServerEvent: evt(EventParticipantLeft), SID: sid}
}

type StickerAdded struct {
	ServerEvent
	Sticker    *board.Sticker `json:"sticker"`
	AuthorSID  string         `json:"author_sid"`
	AIFeedback *Feedback      `json:"ai_feedback,omitempty"`
}

func NewStickerAdded(st *board.Sticker, authorSID string, feedback *Feedback) StickerAdded {
	return StickerAdded{ServerEvent: evt(EventStickerAdded), Sticker: st, AuthorSID: authorSID, AIFeedback: feedback}
}

type StickerUpdated struct {
	ServerEvent
	Sticker   *board.Sticker `json:"sticker"`
	AuthorSID string         `json:"author_sid"`
}

func NewStickerUpdated(st *board.Sticker, authorSID string) StickerUpdated {
	return StickerUpdated{ServerEvent: evt(EventStickerUpdated), Sticker: st, AuthorSID: authorSID}
}

type StickerMoved struct {
	ServerEvent
	StickerID string         `json:"sticker_id"`
	Position  board.Position `json:"position"`
	AuthorSID string         `json:"author_sid"`
}

func NewStickerMoved(stickerID string, pos board.Position, authorSID string) StickerMoved {
	return StickerMoved{ServerEvent: evt(EventStickerMoved), StickerID: stickerID, Position: pos, AuthorSID: authorSID}
}

type StickerDeleted struct {
	ServerEvent
	StickerID string `json:"sticker_id"`
	AuthorSID string `json:"author_sid"`
}

func NewStickerDeleted(stickerID, authorSID string) StickerDeleted {
	return StickerDeleted{ServerEvent: evt(EventStickerDeleted), StickerID: stickerID, AuthorSID: authorSID}
}

type ConnectionAdded struct {
	ServerEvent
	Connection *board.Connection `json:"connection"`
	AuthorSID  string            `json:"author_sid"`
}

func NewConnectionAdded(conn *board.Connection, authorSID string) ConnectionAdded {
	return ConnectionAdded{ServerEvent: evt(EventConnectionAdded), Connection: conn, AuthorSID: authorSID}
}

type ConnectionDeleted struct {
	ServerEvent
	ConnectionID string `json:"connection_id"`
	AuthorSID    string `json:"author_sid"`
}

func NewConnectionDeleted(connectionID, authorSID string) ConnectionDeleted {
	return ConnectionDeleted{ServerEvent: evt(EventConnectionDeleted), ConnectionID: connectionID, AuthorSID: authorSID}
}

type PhaseChanged struct {
	ServerEvent
	Phase     board.Phase `json:"phase"`
	AuthorSID string      `json:"author_sid"`
}

func NewPhaseChanged(phase board.Phase, authorSID string) PhaseChanged {
	return PhaseChanged{ServerEvent: evt(EventPhaseChanged), Phase: phase, AuthorSID: authorSID}
}

type WorkshopStarted struct {
	ServerEvent
	SessionID       string      `json:"session_id"`
	StartedAt       string      `json:"started_at"`
	StartedBy       string      `json:"started_by"`
	DurationMinutes int         `json:"duration_minutes"`
	Phase           board.Phase `json:"phase"`
}

type TimerSync struct {
	ServerEvent
	SessionID       string      `json:"session_id"`
	StartedAt       *string     `json:"started_at"`
	DurationMinutes int         `json:"duration_minutes"`
	Phase           board.Phase `json:"phase"`
}

type TimerPaused struct {
	ServerEvent
	Paused         bool   `json:"paused"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
	AuthorSID      string `json:"author_sid"`
}

func NewTimerPaused(paused bool, elapsed int, authorSID string) TimerPaused {
	return TimerPaused{ServerEvent: evt(EventTimerPaused), Paused: paused, ElapsedSeconds: elapsed, AuthorSID: authorSID}
}

type CursorUpdate struct {
	ServerEvent
	SID  string  `json:"sid"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Name string  `json:"name"`
}

func NewCursorUpdate(sid string, x, y float64, name string) CursorUpdate {
	return CursorUpdate{ServerEvent: evt(EventCursorUpdate), SID: sid, X: x, Y: y, Name: name}
}

type AIStatus struct {
	ServerEvent
	HostID  string `json:"host_id,omitempty"`
	Message string `json:"message,omitempty"`
}

type VideoPeers struct {
	ServerEvent
	Peers []string `json:"peers"`
}

func NewVideoPeers(peers []string) VideoPeers {
	return VideoPeers{ServerEvent: evt(EventVideoPeers), Peers: peers}
}

type VideoPeerJoined struct {
	ServerEvent
	PeerID string `json:"peer_id"`
	Name   string `json:"name"`
}

func NewVideoPeerJoined(peerID, name string) VideoPeerJoined {
	return VideoPeerJoined{ServerEvent: evt(EventVideoPeerJoined), PeerID: peerID, Name: name}
}

type VideoPeerLeft struct {
	ServerEvent
	PeerID string `json:"peer_id"`
}

func NewVideoPeerLeft(peerID string) VideoPeerLeft {
	return VideoPeerLeft{ServerEvent: evt(EventVideoPeerLeft), PeerID: peerID}
}

type VideoSignal struct {
	ServerEvent
	FromID    string          `json:"from_id"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

func NewVideoOfferEvent(fromID string, sdp json.RawMessage) VideoSignal {
	return VideoSignal{ServerEvent: evt(EventVideoOffer), FromID: fromID, SDP: sdp}
}

func NewVideoAnswerEvent(fromID string, sdp json.RawMessage) VideoSignal {
	return VideoSignal{ServerEvent: evt(EventVideoAnswer), FromID: fromID, SDP: sdp}
}

func NewVideoICEEvent(fromID string, candidate json.RawMessage) VideoSignal {
	return VideoSignal{ServerEvent: evt(EventVideoICECandidate), FromID: fromID, Candidate: candidate}
}

type VideoMuteStatus struct {
	ServerEvent
	PeerID     string `json:"peer_id"`
	AudioMuted bool   `json:"audio_muted"`
	VideoMuted bool   `json:"video_muted"`
}

func NewVideoMuteStatus(peerID string, audioMuted, videoMuted bool) VideoMuteStatus {
	return VideoMuteStatus{ServerEvent: evt(EventVideoMuteStatus), PeerID: peerID, AudioMuted: audioMuted, VideoMuted: videoMuted}
}

type ScreenShareStatus struct {
	ServerEvent
	PeerID string `json:"peer_id"`
}

func NewScreenShareStarted(peerID string) ScreenShareStatus {
	return ScreenShareStatus{ServerEvent: evt(EventScreenShareStarted), PeerID: peerID}
}

func NewScreenShareStopped(peerID string) ScreenShareStatus {
	return ScreenShareStatus{ServerEvent: evt(EventScreenShareStopped), PeerID: peerID}
}

type ErrorEvent struct {
	ServerEvent
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorEvent(code, message string) ErrorEvent {
	return ErrorEvent{ServerEvent: evt(EventError), Code: code, Message: message}
}
