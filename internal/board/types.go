package board

import (
	"fmt"
	"time"
)

// Phase is a workshop stage. The order below is the canonical agenda, but
// phase changes are not constrained to move forward: a facilitator may
// rewind at any time.
type Phase string

const (
	PhaseOrientation      Phase = "orientation"
	PhaseEventElicitation Phase = "event_elicitation"
	PhaseEventRefinement  Phase = "event_refinement"
	PhaseCommandPolicy    Phase = "command_policy"
	PhaseTimelineOrdering Phase = "timeline_ordering"
	PhaseSummary          Phase = "summary"
)

// ParsePhase validates a phase name coming from the wire.
func ParsePhase(s string) (Phase, error) {
	switch Phase(s) {
	case PhaseOrientation, PhaseEventElicitation, PhaseEventRefinement,
		PhaseCommandPolicy, PhaseTimelineOrdering, PhaseSummary:
		return Phase(s), nil
	}
	return "", fmt.Errorf("unknown phase %q", s)
}

// StickerType classifies a note on the canvas.
type StickerType string

const (
	TypeEvent          StickerType = "event"
	TypeCommand        StickerType = "command"
	TypePolicy         StickerType = "policy"
	TypeReadModel      StickerType = "read_model"
	TypeExternalSystem StickerType = "external_system"
	TypeAggregate      StickerType = "aggregate"
	TypeActor          StickerType = "actor"
)

// ParseStickerType validates a sticker type coming from the wire.
func ParseStickerType(s string) (StickerType, error) {
	switch StickerType(s) {
	case TypeEvent, TypeCommand, TypePolicy, TypeReadModel,
		TypeExternalSystem, TypeAggregate, TypeActor:
		return StickerType(s), nil
	}
	return "", fmt.Errorf("unknown sticker type %q", s)
}

// Position is a 2D canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Session is an event storming workshop.
type Session struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Phase           Phase      `json:"phase"`
	DurationMinutes int        `json:"duration_minutes"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
}

// Sticker is a typed, positioned note owned by exactly one session.
type Sticker struct {
	ID        string      `json:"id"`
	SessionID string      `json:"session_id"`
	Type      StickerType `json:"type"`
	Text      string      `json:"text"`
	Position  Position    `json:"position"`
	Author    string      `json:"author"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Connection is a directed "triggers" edge between two stickers.
type Connection struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"source_id"`
	TargetID  string    `json:"target_id"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionCreate is the payload for creating a session.
type SessionCreate struct {
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
}

// StickerCreate is the payload for creating a sticker.
type StickerCreate struct {
	Type     StickerType `json:"type"`
	Text     string      `json:"text"`
	Position Position    `json:"position"`
	Author   string      `json:"author"`
}

// StickerUpdate carries optional text and position changes.
type StickerUpdate struct {
	Text     *string   `json:"text,omitempty"`
	Position *Position `json:"position,omitempty"`
}

// ConnectionCreate is the payload for creating a connection.
type ConnectionCreate struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Label    string `json:"label,omitempty"`
}
