package presence

import (
	"context"
	"sync"
	"time"

	"github.com/stormboard/stormboard/internal/board"
)

type expiring[T any] struct {
	value     T
	expiresAt time.Time
}

// InMemoryStore is a process-local ephemeral store for local/dev use. TTL
// semantics match the redis backend; the clock is injectable for tests.
type InMemoryStore struct {
	mu           sync.RWMutex
	ttls         TTLs
	now          func() time.Time
	participants map[string]expiring[[]Participant]
	timers       map[string]expiring[PhaseTimer]
	positions    map[string]expiring[board.Position]
}

func NewInMemoryStore(ttls TTLs) *InMemoryStore {
	return &InMemoryStore{
		ttls:         ttls.withDefaults(),
		now:          time.Now,
		participants: make(map[string]expiring[[]Participant]),
		timers:       make(map[string]expiring[PhaseTimer]),
		positions:    make(map[string]expiring[board.Position]),
	}
}

// SetClock replaces the time source. Test hook.
func (s *InMemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *InMemoryStore) SessionParticipants(_ context.Context, sessionID string) ([]Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.participants[sessionID]
	if !ok || s.now().After(entry.expiresAt) {
		return nil, nil
	}
	out := make([]Participant, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

func (s *InMemoryStore) setParticipants(sessionID string, participants []Participant) {
	s.participants[sessionID] = expiring[[]Participant]{
		value:     participants,
		expiresAt: s.now().Add(s.ttls.Participant),
	}
}

func (s *InMemoryStore) liveParticipants(sessionID string) []Participant {
	entry, ok := s.participants[sessionID]
	if !ok || s.now().After(entry.expiresAt) {
		return nil
	}
	return entry.value
}

func (s *InMemoryStore) AddParticipant(_ context.Context, sessionID string, p Participant) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	participants := s.liveParticipants(sessionID)

	reconnection := false
	for i := range participants {
		if participants[i].Name == p.Name {
			participants[i].ID = p.ID
			participants[i].Online = true
			participants[i].OfflineSince = 0
			participants[i].Reconnected = true
			reconnection = true
			break
		}
	}
	if !reconnection {
		p.Online = true
		participants = append(participants, p)
	}
	s.setParticipants(sessionID, participants)
	return reconnection, nil
}

func (s *InMemoryStore) FindParticipantByName(_ context.Context, sessionID, name string) (*Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.liveParticipants(sessionID) {
		if p.Name == name {
			out := p
			return &out, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) RemoveParticipant(_ context.Context, sessionID, participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	participants := s.liveParticipants(sessionID)
	kept := make([]Participant, 0, len(participants))
	for _, p := range participants {
		if p.ID != participantID {
			kept = append(kept, p)
		}
	}
	s.setParticipants(sessionID, kept)
	return nil
}

func (s *InMemoryStore) MarkParticipantOffline(_ context.Context, sessionID, participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	participants := s.liveParticipants(sessionID)
	for i := range participants {
		if participants[i].ID == participantID {
			participants[i].Online = false
			participants[i].OfflineSince = float64(s.now().UnixMilli()) / 1000
			break
		}
	}
	s.setParticipants(sessionID, participants)
	return nil
}

func (s *InMemoryStore) SetPhaseTimer(_ context.Context, sessionID string, timer PhaseTimer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[sessionID] = expiring[PhaseTimer]{
		value:     timer,
		expiresAt: s.now().Add(s.ttls.PhaseTimer),
	}
	return nil
}

func (s *InMemoryStore) PhaseTimer(_ context.Context, sessionID string) (*PhaseTimer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.timers[sessionID]
	if !ok || s.now().After(entry.expiresAt) {
		return nil, nil
	}
	out := entry.value
	return &out, nil
}

func (s *InMemoryStore) SetStickerPosition(_ context.Context, stickerID string, pos board.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[stickerID] = expiring[board.Position]{
		value:     pos,
		expiresAt: s.now().Add(s.ttls.StickerPosition),
	}
	return nil
}

func (s *InMemoryStore) StickerPosition(_ context.Context, stickerID string) (*board.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.positions[stickerID]
	if !ok || s.now().After(entry.expiresAt) {
		return nil, nil
	}
	out := entry.value
	return &out, nil
}

func (s *InMemoryStore) PublishEvent(_ context.Context, _ string, _ any) error {
	// No out-of-process subscribers without redis.
	return nil
}

func (s *InMemoryStore) Ping(_ context.Context) error { return nil }

func (s *InMemoryStore) Close() error { return nil }
