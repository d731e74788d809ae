package board

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process store for local/dev use and tests.
type InMemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	stickers    map[string]*Sticker
	connections map[string]*Connection
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:    make(map[string]*Session),
		stickers:    make(map[string]*Sticker),
		connections: make(map[string]*Connection),
	}
}

func (s *InMemoryStore) CreateSession(_ context.Context, data SessionCreate) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &Session{
		ID:              uuid.NewString(),
		Title:           data.Title,
		Description:     data.Description,
		Phase:           PhaseOrientation,
		DurationMinutes: data.DurationMinutes,
		CreatedAt:       time.Now().UTC(),
	}
	s.sessions[sess.ID] = sess
	out := *sess
	return &out, nil
}

func (s *InMemoryStore) GetSession(_ context.Context, sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *sess
	return &out, nil
}

func (s *InMemoryStore) UpdateSessionPhase(_ context.Context, sessionID string, phase Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	sess.Phase = phase
	return nil
}

func (s *InMemoryStore) StartSession(_ context.Context, sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	now := time.Now().UTC()
	sess.StartedAt = &now
	out := *sess
	return &out, nil
}

func (s *InMemoryStore) EndSession(_ context.Context, sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	now := time.Now().UTC()
	sess.EndedAt = &now
	out := *sess
	return &out, nil
}

func (s *InMemoryStore) CreateSticker(_ context.Context, sessionID string, data StickerCreate) (*Sticker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return nil, ErrNotFound
	}
	now := time.Now().UTC()
	st := &Sticker{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Type:      data.Type,
		Text:      data.Text,
		Position:  data.Position,
		Author:    data.Author,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.stickers[st.ID] = st
	out := *st
	return &out, nil
}

func (s *InMemoryStore) GetStickers(_ context.Context, sessionID string) ([]Sticker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Sticker
	for _, st := range s.stickers {
		if st.SessionID == sessionID {
			out = append(out, *st)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) UpdateSticker(_ context.Context, stickerID string, data StickerUpdate) (*Sticker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stickers[stickerID]
	if !ok {
		return nil, ErrNotFound
	}
	if data.Text != nil {
		st.Text = *data.Text
	}
	if data.Position != nil {
		st.Position = *data.Position
	}
	st.UpdatedAt = time.Now().UTC()
	out := *st
	return &out, nil
}

func (s *InMemoryStore) DeleteSticker(_ context.Context, stickerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stickers[stickerID]; !ok {
		return ErrNotFound
	}
	delete(s.stickers, stickerID)
	for id, c := range s.connections {
		if c.SourceID == stickerID || c.TargetID == stickerID {
			delete(s.connections, id)
		}
	}
	return nil
}

func (s *InMemoryStore) CreateConnection(_ context.Context, data ConnectionCreate) (*Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stickers[data.SourceID]; !ok {
		return nil, ErrNotFound
	}
	if _, ok := s.stickers[data.TargetID]; !ok {
		return nil, ErrNotFound
	}
	conn := &Connection{
		ID:        uuid.NewString(),
		SourceID:  data.SourceID,
		TargetID:  data.TargetID,
		Label:     data.Label,
		CreatedAt: time.Now().UTC(),
	}
	s.connections[conn.ID] = conn
	out := *conn
	return &out, nil
}

func (s *InMemoryStore) GetConnections(_ context.Context, sessionID string) ([]Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Connection
	for _, c := range s.connections {
		src, ok := s.stickers[c.SourceID]
		if ok && src.SessionID == sessionID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) DeleteConnection(_ context.Context, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.connections[connectionID]; !ok {
		return ErrNotFound
	}
	delete(s.connections, connectionID)
	return nil
}

func (s *InMemoryStore) Ping(_ context.Context) error { return nil }

func (s *InMemoryStore) Close() error { return nil }
