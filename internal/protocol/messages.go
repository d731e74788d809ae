package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stormboard/stormboard/internal/board"
)

// MessageType identifies client action variants.
type MessageType string

const (
	TypeJoinSession      MessageType = "join_session"
	TypeLeaveSession     MessageType = "leave_session"
	TypeAddSticker       MessageType = "add_sticker"
	TypeUpdateSticker    MessageType = "update_sticker"
	TypeMoveSticker      MessageType = "move_sticker"
	TypeDeleteSticker    MessageType = "delete_sticker"
	TypeAddConnection    MessageType = "add_connection"
	TypeDeleteConnection MessageType = "delete_connection"
	TypeUpdatePhase      MessageType = "update_phase"
	TypeStartWorkshop    MessageType = "start_workshop"
	TypeSyncTimer        MessageType = "sync_timer"
	TypePauseTimer       MessageType = "pause_timer"
	TypeCursorMove       MessageType = "cursor_move"
	TypeAIConnected      MessageType = "ai_connected"
	TypeAIDisconnected   MessageType = "ai_disconnected"
	TypeVideoJoin        MessageType = "video_join"
	TypeVideoLeave       MessageType = "video_leave"
	TypeVideoOffer       MessageType = "video_offer"
	TypeVideoAnswer      MessageType = "video_answer"
	TypeVideoICE         MessageType = "video_ice_candidate"
	TypeVideoMute        MessageType = "video_mute"
	TypeScreenShareStart MessageType = "screen_share_start"
	TypeScreenShareStop  MessageType = "screen_share_stop"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type JoinSession struct {
	Type            MessageType `json:"type"`
	SessionID       string      `json:"session_id"`
	ParticipantName string      `json:"participant_name"`
}

type LeaveSession struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

type AddSticker struct {
	Type        MessageType    `json:"type"`
	SessionID   string         `json:"session_id"`
	StickerType string         `json:"sticker_type"`
	Text        string         `json:"text"`
	Position    board.Position `json:"position"`
	Author      string         `json:"author"`
}

type UpdateSticker struct {
	Type      MessageType     `json:"type"`
	SessionID string          `json:"session_id"`
	StickerID string          `json:"sticker_id"`
	Text      *string         `json:"text,omitempty"`
	Position  *board.Position `json:"position,omitempty"`
}

type MoveSticker struct {
	Type      MessageType    `json:"type"`
	SessionID string         `json:"session_id"`
	StickerID string         `json:"sticker_id"`
	Position  board.Position `json:"position"`
}

type DeleteSticker struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	StickerID string      `json:"sticker_id"`
}

type AddConnection struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	SourceID  string      `json:"source_id"`
	TargetID  string      `json:"target_id"`
	Label     string      `json:"label,omitempty"`
}

type DeleteConnection struct {
	Type         MessageType `json:"type"`
	SessionID    string      `json:"session_id"`
	ConnectionID string      `json:"connection_id"`
}

type UpdatePhase struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Phase     string      `json:"phase"`
}

type StartWorkshop struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	HostName  string      `json:"host_name"`
}

type SyncTimer struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

type PauseTimer struct {
	Type           MessageType `json:"type"`
	SessionID      string      `json:"session_id"`
	Paused         bool        `json:"paused"`
	ElapsedSeconds int         `json:"elapsed_seconds"`
}

type CursorMove struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	X         float64     `json:"x"`
	Y         float64     `json:"y"`
	Name      string      `json:"name"`
}

type AIConnected struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	HostID    string      `json:"host_id"`
}

type AIDisconnected struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

type VideoJoin struct {
	Type            MessageType `json:"type"`
	SessionID       string      `json:"session_id"`
	ParticipantName string      `json:"participant_name"`
}

type VideoLeave struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

type VideoOffer struct {
	Type     MessageType     `json:"type"`
	TargetID string          `json:"target_id"`
	SDP      json.RawMessage `json:"sdp"`
}

type VideoAnswer struct {
	Type     MessageType     `json:"type"`
	TargetID string          `json:"target_id"`
	SDP      json.RawMessage `json:"sdp"`
}

type VideoICECandidate struct {
	Type      MessageType     `json:"type"`
	TargetID  string          `json:"target_id"`
	Candidate json.RawMessage `json:"candidate"`
}

type VideoMute struct {
	Type       MessageType `json:"type"`
	SessionID  string      `json:"session_id"`
	AudioMuted bool        `json:"audio_muted"`
	VideoMuted bool        `json:"video_muted"`
}

type ScreenShareStart struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

type ScreenShareStop struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

// ParseClientMessage decodes one websocket frame into its typed action,
// rejecting malformed payloads before they reach business logic.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeJoinSession:
		var msg JoinSession
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("join_session: session_id required")
		}
		if msg.ParticipantName == "" {
			msg.ParticipantName = "Anonymous"
		}
		return msg, nil
	case TypeLeaveSession:
		var msg LeaveSession
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("leave_session: session_id required")
		}
		return msg, nil
	case TypeAddSticker:
		var msg AddSticker
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Text == "" {
			return nil, errors.New("add_sticker: session_id and text required")
		}
		if _, err := board.ParseStickerType(msg.StickerType); err != nil {
			return nil, fmt.Errorf("add_sticker: %w", err)
		}
		if msg.Author == "" {
			msg.Author = "Anonymous"
		}
		return msg, nil
	case TypeUpdateSticker:
		var msg UpdateSticker
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.StickerID == "" {
			return nil, errors.New("update_sticker: session_id and sticker_id required")
		}
		if msg.Text == nil && msg.Position == nil {
			return nil, errors.New("update_sticker: nothing to update")
		}
		return msg, nil
	case TypeMoveSticker:
		var msg MoveSticker
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.StickerID == "" {
			return nil, errors.New("move_sticker: session_id and sticker_id required")
		}
		return msg, nil
	case TypeDeleteSticker:
		var msg DeleteSticker
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.StickerID == "" {
			return nil, errors.New("delete_sticker: session_id and sticker_id required")
		}
		return msg, nil
	case TypeAddConnection:
		var msg AddConnection
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.SourceID == "" || msg.TargetID == "" {
			return nil, errors.New("add_connection: session_id, source_id and target_id required")
		}
		return msg, nil
	case TypeDeleteConnection:
		var msg DeleteConnection
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.ConnectionID == "" {
			return nil, errors.New("delete_connection: session_id and connection_id required")
		}
		return msg, nil
	case TypeUpdatePhase:
		var msg UpdatePhase
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("update_phase: session_id required")
		}
		if _, err := board.ParsePhase(msg.Phase); err != nil {
			return nil, fmt.Errorf("update_phase: %w", err)
		}
		return msg, nil
	case TypeStartWorkshop:
		var msg StartWorkshop
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("start_workshop: session_id required")
		}
		if msg.HostName == "" {
			msg.HostName = "Host"
		}
		return msg, nil
	case TypeSyncTimer:
		var msg SyncTimer
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("sync_timer: session_id required")
		}
		return msg, nil
	case TypePauseTimer:
		var msg PauseTimer
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("pause_timer: session_id required")
		}
		return msg, nil
	case TypeCursorMove:
		var msg CursorMove
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("cursor_move: session_id required")
		}
		return msg, nil
	case TypeAIConnected:
		var msg AIConnected
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("ai_connected: session_id required")
		}
		return msg, nil
	case TypeAIDisconnected:
		var msg AIDisconnected
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("ai_disconnected: session_id required")
		}
		return msg, nil
	case TypeVideoJoin:
		var msg VideoJoin
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("video_join: session_id required")
		}
		if msg.ParticipantName == "" {
			msg.ParticipantName = "Anonymous"
		}
		return msg, nil
	case TypeVideoLeave:
		var msg VideoLeave
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("video_leave: session_id required")
		}
		return msg, nil
	case TypeVideoOffer:
		var msg VideoOffer
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.TargetID == "" || len(msg.SDP) == 0 {
			return nil, errors.New("video_offer: target_id and sdp required")
		}
		return msg, nil
	case TypeVideoAnswer:
		var msg VideoAnswer
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.TargetID == "" || len(msg.SDP) == 0 {
			return nil, errors.New("video_answer: target_id and sdp required")
		}
		return msg, nil
	case TypeVideoICE:
		var msg VideoICECandidate
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.TargetID == "" || len(msg.Candidate) == 0 {
			return nil, errors.New("video_ice_candidate: target_id and candidate required")
		}
		return msg, nil
	case TypeVideoMute:
		var msg VideoMute
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("video_mute: session_id required")
		}
		return msg, nil
	case TypeScreenShareStart:
		var msg ScreenShareStart
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("screen_share_start: session_id required")
		}
		return msg, nil
	case TypeScreenShareStop:
		var msg ScreenShareStop
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("screen_share_stop: session_id required")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
