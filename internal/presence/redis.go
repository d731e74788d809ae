package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stormboard/stormboard/internal/board"
)

// RedisStore keeps ephemeral session state in Redis with blunt TTLs.
type RedisStore struct {
	client *redis.Client
	ttls   TTLs
}

func NewRedisStore(ctx context.Context, redisURL string, ttls TTLs) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisStore{client: client, ttls: ttls.withDefaults()}, nil
}

func participantsKey(sessionID string) string {
	return "session:" + sessionID + ":participants"
}

func phaseTimerKey(sessionID string) string {
	return "session:" + sessionID + ":phase_timer"
}

func positionKey(stickerID string) string {
	return "sticker:" + stickerID + ":position"
}

func (s *RedisStore) SessionParticipants(ctx context.Context, sessionID string) ([]Participant, error) {
	data, err := s.client.Get(ctx, participantsKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get participants: %w", err)
	}
	var out []Participant
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("decode participants: %w", err)
	}
	return out, nil
}

func (s *RedisStore) setParticipants(ctx context.Context, sessionID string, participants []Participant) error {
	blob, err := json.Marshal(participants)
	if err != nil {
		return fmt.Errorf("encode participants: %w", err)
	}
	if err := s.client.Set(ctx, participantsKey(sessionID), blob, s.ttls.Participant).Err(); err != nil {
		return fmt.Errorf("set participants: %w", err)
	}
	return nil
}

func (s *RedisStore) AddParticipant(ctx context.Context, sessionID string, p Participant) (bool, error) {
	participants, err := s.SessionParticipants(ctx, sessionID)
	if err != nil {
		return false, err
	}

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
	if err := s.setParticipants(ctx, sessionID, participants); err != nil {
		return false, err
	}
	return reconnection, nil
}

func (s *RedisStore) FindParticipantByName(ctx context.Context, sessionID, name string) (*Participant, error) {
	participants, err := s.SessionParticipants(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for i := range participants {
		if participants[i].Name == name {
			p := participants[i]
			return &p, nil
		}
	}
	return nil, nil
}

func (s *RedisStore) RemoveParticipant(ctx context.Context, sessionID, participantID string) error {
	participants, err := s.SessionParticipants(ctx, sessionID)
	if err != nil {
		return err
	}
	kept := participants[:0]
	for _, p := range participants {
		if p.ID != participantID {
			kept = append(kept, p)
		}
	}
	return s.setParticipants(ctx, sessionID, kept)
}

func (s *RedisStore) MarkParticipantOffline(ctx context.Context, sessionID, participantID string) error {
	participants, err := s.SessionParticipants(ctx, sessionID)
	if err != nil {
		return err
	}
	for i := range participants {
		if participants[i].ID == participantID {
			participants[i].Online = false
			participants[i].OfflineSince = float64(time.Now().UnixMilli()) / 1000
			break
		}
	}
	return s.setParticipants(ctx, sessionID, participants)
}

func (s *RedisStore) SetPhaseTimer(ctx context.Context, sessionID string, timer PhaseTimer) error {
	key := phaseTimerKey(sessionID)
	err := s.client.HSet(ctx, key, map[string]any{
		"phase":    string(timer.Phase),
		"end_time": strconv.FormatFloat(timer.EndTime, 'f', -1, 64),
	}).Err()
	if err != nil {
		return fmt.Errorf("set phase timer: %w", err)
	}
	if err := s.client.Expire(ctx, key, s.ttls.PhaseTimer).Err(); err != nil {
		return fmt.Errorf("expire phase timer: %w", err)
	}
	return nil
}

func (s *RedisStore) PhaseTimer(ctx context.Context, sessionID string) (*PhaseTimer, error) {
	data, err := s.client.HGetAll(ctx, phaseTimerKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get phase timer: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	end, err := strconv.ParseFloat(data["end_time"], 64)
	if err != nil {
		return nil, fmt.Errorf("decode phase timer: %w", err)
	}
	return &PhaseTimer{Phase: board.Phase(data["phase"]), EndTime: end}, nil
}

func (s *RedisStore) SetStickerPosition(ctx context.Context, stickerID string, pos board.Position) error {
	key := positionKey(stickerID)
	err := s.client.HSet(ctx, key, map[string]any{
		"x": strconv.FormatFloat(pos.X, 'f', -1, 64),
		"y": strconv.FormatFloat(pos.Y, 'f', -1, 64),
	}).Err()
	if err != nil {
		return fmt.Errorf("set sticker position: %w", err)
	}
	if err := s.client.Expire(ctx, key, s.ttls.StickerPosition).Err(); err != nil {
		return fmt.Errorf("expire sticker position: %w", err)
	}
	return nil
}

func (s *RedisStore) StickerPosition(ctx context.Context, stickerID string) (*board.Position, error) {
	data, err := s.client.HGetAll(ctx, positionKey(stickerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get sticker position: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	x, errX := strconv.ParseFloat(data["x"], 64)
	y, errY := strconv.ParseFloat(data["y"], 64)
	if errX != nil || errY != nil {
		return nil, fmt.Errorf("decode sticker position for %s", stickerID)
	}
	return &board.Position{X: x, Y: y}, nil
}

func (s *RedisStore) PublishEvent(ctx context.Context, channel string, event any) error {
	blob, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := s.client.Publish(ctx, channel, blob).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
