package presence

import (
	"context"
	"time"

	"github.com/stormboard/stormboard/internal/board"
)

// Participant is the ephemeral identity of a connected human. The identity
// key across reconnects is Name, not the connection id.
type Participant struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Online       bool    `json:"online"`
	OfflineSince float64 `json:"offline_since,omitempty"`
	Reconnected  bool    `json:"reconnected,omitempty"`
}

// PhaseTimer is the session-scoped countdown state.
type PhaseTimer struct {
	Phase   board.Phase `json:"phase"`
	EndTime float64     `json:"end_time"`
}

// TTLs configures expiry of ephemeral state. Zero values fall back to the
// defaults used by the hosted service.
type TTLs struct {
	Participant     time.Duration
	PhaseTimer      time.Duration
	StickerPosition time.Duration
}

func (t TTLs) withDefaults() TTLs {
	if t.Participant <= 0 {
		t.Participant = 24 * time.Hour
	}
	if t.PhaseTimer <= 0 {
		t.PhaseTimer = 2 * time.Hour
	}
	if t.StickerPosition <= 0 {
		t.StickerPosition = time.Hour
	}
	return t
}

// Store is the TTL-bound fast backend for presence, timers and live drag
// positions. It is never authoritative: losing its contents degrades UX
// but not canvas truth.
type Store interface {
	SessionParticipants(ctx context.Context, sessionID string) ([]Participant, error)
	// AddParticipant registers a participant. When a participant with the
	// same name already exists its connection id is replaced and true is
	// returned, marking a reconnection.
	AddParticipant(ctx context.Context, sessionID string, p Participant) (bool, error)
	FindParticipantByName(ctx context.Context, sessionID, name string) (*Participant, error)
	RemoveParticipant(ctx context.Context, sessionID, participantID string) error
	MarkParticipantOffline(ctx context.Context, sessionID, participantID string) error

	SetPhaseTimer(ctx context.Context, sessionID string, timer PhaseTimer) error
	PhaseTimer(ctx context.Context, sessionID string) (*PhaseTimer, error)

	SetStickerPosition(ctx context.Context, stickerID string, pos board.Position) error
	StickerPosition(ctx context.Context, stickerID string) (*board.Position, error)

	// PublishEvent fans an event out to out-of-process subscribers.
	// Best-effort: delivery is not guaranteed and errors are advisory.
	PublishEvent(ctx context.Context, channel string, event any) error

	Ping(ctx context.Context) error
	Close() error
}
