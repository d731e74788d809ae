// Package canvas routes client actions onto the durable and ephemeral
// stores and fans the results out to session rooms. One rule holds
// everywhere: a durable mutation broadcasts only after it committed; a
// failed write is reported to the originating connection alone.
package canvas

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/stormboard/stormboard/internal/board"
	"github.com/stormboard/stormboard/internal/facilitator"
	"github.com/stormboard/stormboard/internal/hub"
	"github.com/stormboard/stormboard/internal/observability"
	"github.com/stormboard/stormboard/internal/presence"
	"github.com/stormboard/stormboard/internal/protocol"
)

// Adviser is the validation hook invoked on sticker creation.
type Adviser func(board.StickerType, string) *facilitator.Advice

type Router struct {
	store   board.Store
	live    presence.Store
	hub     *hub.Hub
	advise  Adviser
	metrics *observability.Metrics
}

func NewRouter(store board.Store, live presence.Store, h *hub.Hub, metrics *observability.Metrics) *Router {
	return &Router{
		store:   store,
		live:    live,
		hub:     h,
		advise:  facilitator.AdviseSticker,
		metrics: metrics,
	}
}

// SetAdviser replaces the validation hook. Passing nil disables feedback.
func (r *Router) SetAdviser(a Adviser) { r.advise = a }

// HandleMessage dispatches one parsed canvas action for connID. Callers
// invoke it synchronously from the connection's read loop, which keeps
// per-connection ordering intact.
func (r *Router) HandleMessage(ctx context.Context, connID string, msg any) {
	switch m := msg.(type) {
	case protocol.JoinSession:
		r.handleJoin(ctx, connID, m)
	case protocol.LeaveSession:
		r.handleLeave(ctx, connID, m)
	case protocol.AddSticker:
		r.handleAddSticker(ctx, connID, m)
	case protocol.UpdateSticker:
		r.handleUpdateSticker(ctx, connID, m)
	case protocol.MoveSticker:
		r.handleMoveSticker(ctx, connID, m)
	case protocol.DeleteSticker:
		r.handleDeleteSticker(ctx, connID, m)
	case protocol.AddConnection:
		r.handleAddConnection(ctx, connID, m)
	case protocol.DeleteConnection:
		r.handleDeleteConnection(ctx, connID, m)
	case protocol.UpdatePhase:
		r.handleUpdatePhase(ctx, connID, m)
	case protocol.StartWorkshop:
		r.handleStartWorkshop(ctx, connID, m)
	case protocol.SyncTimer:
		r.handleSyncTimer(ctx, connID, m)
	case protocol.PauseTimer:
		r.broadcast(ctx, m.SessionID, protocol.NewTimerPaused(m.Paused, m.ElapsedSeconds, connID), "")
	case protocol.CursorMove:
		r.broadcast(ctx, m.SessionID, protocol.NewCursorUpdate(connID, m.X, m.Y, m.Name), connID)
	case protocol.AIConnected:
		r.broadcast(ctx, m.SessionID, protocol.AIStatus{
			ServerEvent: protocol.ServerEvent{Event: protocol.EventAIConnected},
			HostID:      m.HostID,
			Message:     "AI 퍼실리테이터가 연결되었습니다.",
		}, "")
	case protocol.AIDisconnected:
		r.broadcast(ctx, m.SessionID, protocol.AIStatus{
			ServerEvent: protocol.ServerEvent{Event: protocol.EventAIDisconnected},
			Message:     "AI 퍼실리테이터 연결이 해제되었습니다.",
		}, "")
	}
}

// Disconnect handles a transport-level close without an explicit leave:
// the participant record is kept and marked offline so a later join with
// the same name recovers identity.
func (r *Router) Disconnect(ctx context.Context, connID string) {
	for _, sessionID := range r.hub.Rooms(connID) {
		if err := r.live.MarkParticipantOffline(ctx, sessionID, connID); err != nil {
			r.storeErr("presence", "mark_offline", err)
		}
		r.hub.Leave(sessionID, connID)
		r.broadcast(ctx, sessionID,
			protocol.NewParticipantOffline(connID, "연결이 끊어졌습니다. 재접속을 기다리는 중..."), "")
	}
	if r.metrics != nil {
		r.metrics.RoomEvents.WithLabelValues("disconnected").Inc()
	}
}

func (r *Router) handleJoin(ctx context.Context, connID string, m protocol.JoinSession) {
	sess, err := r.store.GetSession(ctx, m.SessionID)
	if err != nil {
		r.fail(connID, "board", "get_session", err)
		return
	}

	existing, err := r.live.FindParticipantByName(ctx, m.SessionID, m.ParticipantName)
	if err != nil {
		r.fail(connID, "presence", "find_participant", err)
		return
	}
	isReconnection := existing != nil

	// The stale connection must stop receiving room traffic before the
	// new one takes over the identity.
	if isReconnection && existing.ID != "" && existing.ID != connID {
		r.hub.Leave(m.SessionID, existing.ID)
	}
	r.hub.Join(m.SessionID, connID)

	if _, err := r.live.AddParticipant(ctx, m.SessionID, presence.Participant{
		ID:   connID,
		Name: m.ParticipantName,
	}); err != nil {
		r.fail(connID, "presence", "add_participant", err)
		return
	}

	if isReconnection {
		r.broadcast(ctx, m.SessionID, protocol.NewParticipantReconnected(
			connID, m.ParticipantName,
			fmt.Sprintf("%s님이 다시 접속했습니다.", m.ParticipantName)), "")
	} else {
		r.broadcast(ctx, m.SessionID, protocol.NewParticipantJoined(connID, m.ParticipantName), "")
	}
	if r.metrics != nil {
		if isReconnection {
			r.metrics.RoomEvents.WithLabelValues("reconnected").Inc()
		} else {
			r.metrics.RoomEvents.WithLabelValues("joined").Inc()
		}
	}

	// Full snapshot to the joiner only, so any client resynchronizes
	// after a network interruption without an event log.
	stickers, err := r.store.GetStickers(ctx, m.SessionID)
	if err != nil {
		r.fail(connID, "board", "get_stickers", err)
		return
	}
	conns, err := r.store.GetConnections(ctx, m.SessionID)
	if err != nil {
		r.fail(connID, "board", "get_connections", err)
		return
	}
	participants, err := r.live.SessionParticipants(ctx, m.SessionID)
	if err != nil {
		r.fail(connID, "presence", "participants", err)
		return
	}

	r.hub.Unicast(connID, protocol.NewSessionState(sess, stickers, conns, participants, isReconnection))
}

func (r *Router) handleLeave(ctx context.Context, connID string, m protocol.LeaveSession) {
	r.hub.Leave(m.SessionID, connID)
	if err := r.live.RemoveParticipant(ctx, m.SessionID, connID); err != nil {
		r.storeErr("presence", "remove_participant", err)
	}
	r.broadcast(ctx, m.SessionID, protocol.NewParticipantLeft(connID), "")
	if r.metrics != nil {
		r.metrics.RoomEvents.WithLabelValues("left").Inc()
	}
}

func (r *Router) handleAddSticker(ctx context.Context, connID string, m protocol.AddSticker) {
	stickerType, err := board.ParseStickerType(m.StickerType)
	if err != nil {
		r.errTo(connID, "invalid_sticker_type", err.Error())
		return
	}

	sticker, err := r.store.CreateSticker(ctx, m.SessionID, board.StickerCreate{
		Type:     stickerType,
		Text:     m.Text,
		Position: m.Position,
		Author:   m.Author,
	})
	if err != nil {
		r.fail(connID, "board", "create_sticker", err)
		return
	}

	var feedback *protocol.Feedback
	if r.advise != nil {
		if advice := r.advise(stickerType, m.Text); advice != nil {
			feedback = &protocol.Feedback{
				Kind:       advice.Kind,
				StickerID:  sticker.ID,
				Issue:      advice.Issue,
				Suggestion: advice.Suggestion,
				Message:    advice.Message,
			}
		}
	}

	r.broadcast(ctx, m.SessionID, protocol.NewStickerAdded(sticker, connID, feedback), "")
}

func (r *Router) handleUpdateSticker(ctx context.Context, connID string, m protocol.UpdateSticker) {
	sticker, err := r.store.UpdateSticker(ctx, m.StickerID, board.StickerUpdate{
		Text:     m.Text,
		Position: m.Position,
	})
	if err != nil {
		r.fail(connID, "board", "update_sticker", err)
		return
	}
	r.broadcast(ctx, m.SessionID, protocol.NewStickerUpdated(sticker, connID), "")
}

func (r *Router) handleMoveSticker(ctx context.Context, connID string, m protocol.MoveSticker) {
	// Live drag is ephemeral only: no durable write, no updated_at bump.
	if err := r.live.SetStickerPosition(ctx, m.StickerID, m.Position); err != nil {
		r.fail(connID, "presence", "set_position", err)
		return
	}
	r.broadcast(ctx, m.SessionID, protocol.NewStickerMoved(m.StickerID, m.Position, connID), connID)
}

func (r *Router) handleDeleteSticker(ctx context.Context, connID string, m protocol.DeleteSticker) {
	if err := r.store.DeleteSticker(ctx, m.StickerID); err != nil {
		r.fail(connID, "board", "delete_sticker", err)
		return
	}
	r.broadcast(ctx, m.SessionID, protocol.NewStickerDeleted(m.StickerID, connID), "")
}

func (r *Router) handleAddConnection(ctx context.Context, connID string, m protocol.AddConnection) {
	conn, err := r.store.CreateConnection(ctx, board.ConnectionCreate{
		SourceID: m.SourceID,
		TargetID: m.TargetID,
		Label:    m.Label,
	})
	if err != nil {
		r.fail(connID, "board", "create_connection", err)
		return
	}
	r.broadcast(ctx, m.SessionID, protocol.NewConnectionAdded(conn, connID), "")
}

func (r *Router) handleDeleteConnection(ctx context.Context, connID string, m protocol.DeleteConnection) {
	if err := r.store.DeleteConnection(ctx, m.ConnectionID); err != nil {
		r.fail(connID, "board", "delete_connection", err)
		return
	}
	r.broadcast(ctx, m.SessionID, protocol.NewConnectionDeleted(m.ConnectionID, connID), "")
}

func (r *Router) handleUpdatePhase(ctx context.Context, connID string, m protocol.UpdatePhase) {
	phase, err := board.ParsePhase(m.Phase)
	if err != nil {
		r.errTo(connID, "invalid_phase", err.Error())
		return
	}
	// Any connected client may set any phase, including rewinding.
	if err := r.store.UpdateSessionPhase(ctx, m.SessionID, phase); err != nil {
		r.fail(connID, "board", "update_phase", err)
		return
	}
	r.broadcast(ctx, m.SessionID, protocol.NewPhaseChanged(phase, connID), "")
}

func (r *Router) handleStartWorkshop(ctx context.Context, connID string, m protocol.StartWorkshop) {
	sess, err := r.store.StartSession(ctx, m.SessionID)
	if err != nil {
		r.fail(connID, "board", "start_session", err)
		return
	}
	if sess.StartedAt == nil {
		r.errTo(connID, "start_failed", "failed to start workshop")
		return
	}

	end := sess.StartedAt.Add(time.Duration(sess.DurationMinutes) * time.Minute)
	if err := r.live.SetPhaseTimer(ctx, m.SessionID, presence.PhaseTimer{
		Phase:   sess.Phase,
		EndTime: float64(end.UnixMilli()) / 1000,
	}); err != nil {
		r.storeErr("presence", "set_phase_timer", err)
	}

	r.broadcast(ctx, m.SessionID, protocol.WorkshopStarted{
		ServerEvent:     protocol.ServerEvent{Event: protocol.EventWorkshopStarted},
		SessionID:       m.SessionID,
		StartedAt:       sess.StartedAt.Format(time.RFC3339Nano),
		StartedBy:       m.HostName,
		DurationMinutes: sess.DurationMinutes,
		Phase:           sess.Phase,
	}, "")
	if r.metrics != nil {
		r.metrics.RoomEvents.WithLabelValues("workshop_started").Inc()
	}
}

func (r *Router) handleSyncTimer(ctx context.Context, connID string, m protocol.SyncTimer) {
	sess, err := r.store.GetSession(ctx, m.SessionID)
	if err != nil {
		r.fail(connID, "board", "get_session", err)
		return
	}
	var startedAt *string
	if sess.StartedAt != nil {
		s := sess.StartedAt.Format(time.RFC3339Nano)
		startedAt = &s
	}
	r.hub.Unicast(connID, protocol.TimerSync{
		ServerEvent:     protocol.ServerEvent{Event: protocol.EventTimerSync},
		SessionID:       m.SessionID,
		StartedAt:       startedAt,
		DurationMinutes: sess.DurationMinutes,
		Phase:           sess.Phase,
	})
}

// broadcast fans an event out to the session room and mirrors it onto the
// pub/sub channel for out-of-process followers.
func (r *Router) broadcast(ctx context.Context, sessionID string, event any, exclude string) {
	r.hub.Broadcast(sessionID, event, exclude)
	if err := r.live.PublishEvent(ctx, "session:"+sessionID+":events", event); err != nil {
		r.storeErr("presence", "publish", err)
	}
}

// fail maps a store error onto the taxonomy and reports it to the
// originating connection only. Nothing is broadcast.
func (r *Router) fail(connID, backend, op string, err error) {
	r.storeErr(backend, op, err)
	if errors.Is(err, board.ErrNotFound) {
		r.errTo(connID, "not_found", "requested entity does not exist")
		return
	}
	r.errTo(connID, "store_error", "operation failed, please retry")
}

func (r *Router) errTo(connID, code, message string) {
	r.hub.Unicast(connID, protocol.NewErrorEvent(code, message))
}

func (r *Router) storeErr(backend, op string, err error) {
	if err == nil {
		return
	}
	log.Printf("%s %s failed: %v", backend, op, err)
	if r.metrics != nil {
		r.metrics.StoreErrors.WithLabelValues(backend, op).Inc()
	}
}
