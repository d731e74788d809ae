package canvas

import (
	"context"
	"errors"
	"testing"

	"github.com/stormboard/stormboard/internal/board"
	"github.com/stormboard/stormboard/internal/hub"
	"github.com/stormboard/stormboard/internal/presence"
	"github.com/stormboard/stormboard/internal/protocol"
)

type fixture struct {
	router  *Router
	hub     *hub.Hub
	store   board.Store
	live    presence.Store
	clients []*hub.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := board.NewInMemoryStore()
	live := presence.NewInMemoryStore(presence.TTLs{})
	h := hub.New(32, nil)
	return &fixture{
		router: NewRouter(store, live, h, nil),
		hub:    h,
		store:  store,
		live:   live,
	}
}

func (f *fixture) newSession(t *testing.T) *board.Session {
	t.Helper()
	sess, err := f.store.CreateSession(context.Background(), board.SessionCreate{
		Title:           "order flow",
		DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return sess
}

func drain(c *hub.Client) []any {
	var out []any
	for {
		select {
		case msg := <-c.Outbox():
			out = append(out, msg)
		default:
			return out
		}
	}
}

// join is a setup helper: it performs the join and then drains every
// client registered so far, since the join broadcast reaches the whole
// room and would otherwise pollute later frame counts.
func join(t *testing.T, f *fixture, sessionID, connID, name string) *hub.Client {
	t.Helper()
	c := f.hub.Register(connID)
	f.clients = append(f.clients, c)
	f.router.HandleMessage(context.Background(), connID, protocol.JoinSession{
		SessionID:       sessionID,
		ParticipantName: name,
	})
	for _, cl := range f.clients {
		drain(cl)
	}
	return c
}

func TestJoinDeliversSnapshotToJoinerOnly(t *testing.T) {
	f := newFixture(t)
	sess := f.newSession(t)

	a := f.hub.Register("conn-a")
	f.router.HandleMessage(context.Background(), "conn-a", protocol.JoinSession{
		SessionID:       sess.ID,
		ParticipantName: "지민",
	})

	got := drain(a)
	if len(got) != 2 {
		t.Fatalf("joiner received %d frames, want joined + session_state", len(got))
	}
	state, ok := got[1].(protocol.SessionState)
	if !ok {
		t.Fatalf("second frame = %T, want SessionState", got[1])
	}
	if state.Session.ID != sess.ID || state.IsReconnection {
		t.Fatalf("unexpected snapshot: %+v", state)
	}
	if len(state.Participants) != 1 || state.Participants[0].Name != "지민" {
		t.Fatalf("participants = %+v, want [지민]", state.Participants)
	}
}

func TestJoinUnknownSessionFailsLoudly(t *testing.T) {
	f := newFixture(t)
	a := f.hub.Register("conn-a")

	f.router.HandleMessage(context.Background(), "conn-a", protocol.JoinSession{
		SessionID:       "nope",
		ParticipantName: "지민",
	})

	got := drain(a)
	if len(got) != 1 {
		t.Fatalf("received %d frames, want 1 error", len(got))
	}
	e, ok := got[0].(protocol.ErrorEvent)
	if !ok || e.Code != "not_found" {
		t.Fatalf("frame = %+v, want not_found error", got[0])
	}
	if rooms := f.hub.Rooms("conn-a"); len(rooms) != 0 {
		t.Fatalf("failed join still entered rooms %v", rooms)
	}
}

func TestRejoinWithSameNameIsReconnection(t *testing.T) {
	f := newFixture(t)
	sess := f.newSession(t)
	join(t, f, sess.ID, "conn-old", "지민")
	other := join(t, f, sess.ID, "conn-other", "하늘")

	fresh := f.hub.Register("conn-new")
	f.router.HandleMessage(context.Background(), "conn-new", protocol.JoinSession{
		SessionID:       sess.ID,
		ParticipantName: "지민",
	})

	var reconnected bool
	for _, msg := range drain(other) {
		if r, ok := msg.(protocol.ParticipantReconnected); ok {
			reconnected = true
			if r.SID != "conn-new" || r.Name != "지민" {
				t.Fatalf("unexpected reconnect event: %+v", r)
			}
		}
	}
	if !reconnected {
		t.Fatalf("room never saw participant_reconnected")
	}

	got := drain(fresh)
	state, ok := got[len(got)-1].(protocol.SessionState)
	if !ok || !state.IsReconnection {
		t.Fatalf("snapshot = %+v, want is_reconnection=true", got[len(got)-1])
	}

	// The stale connection must stop receiving room traffic.
	members := f.hub.Members(sess.ID)
	for _, id := range members {
		if id == "conn-old" {
			t.Fatalf("stale connection still in room: %v", members)
		}
	}
}

func TestOfflineParticipantSurvivesDisconnect(t *testing.T) {
	f := newFixture(t)
	sess := f.newSession(t)
	join(t, f, sess.ID, "conn-a", "지민")
	other := join(t, f, sess.ID, "conn-b", "하늘")

	f.router.Disconnect(context.Background(), "conn-a")

	got := drain(other)
	if len(got) != 1 {
		t.Fatalf("room received %d frames, want 1 participant_offline", len(got))
	}
	off, ok := got[0].(protocol.ParticipantOffline)
	if !ok || off.SID != "conn-a" {
		t.Fatalf("frame = %+v, want participant_offline for conn-a", got[0])
	}

	participants, err := f.live.SessionParticipants(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("SessionParticipants: %v", err)
	}
	if len(participants) != 2 {
		t.Fatalf("participant record dropped on disconnect: %+v", participants)
	}
	for _, p := range participants {
		if p.Name == "지민" && p.Online {
			t.Fatalf("disconnected participant still online: %+v", p)
		}
	}
}

func TestLeaveRemovesParticipantRecord(t *testing.T) {
	f := newFixture(t)
	sess := f.newSession(t)
	join(t, f, sess.ID, "conn-a", "지민")
	other := join(t, f, sess.ID, "conn-b", "하늘")

	f.router.HandleMessage(context.Background(), "conn-a", protocol.LeaveSession{SessionID: sess.ID})

	got := drain(other)
	if len(got) != 1 {
		t.Fatalf("room received %d frames, want 1 participant_left", len(got))
	}
	participants, _ := f.live.SessionParticipants(context.Background(), sess.ID)
	if len(participants) != 1 || participants[0].Name != "하늘" {
		t.Fatalf("participants = %+v, want only 하늘", participants)
	}
}

type failingStore struct {
	board.Store
}

func (failingStore) CreateSticker(context.Context, string, board.StickerCreate) (*board.Sticker, error) {
	return nil, errors.New("postgres is down")
}

func TestFailedWriteNeverBroadcasts(t *testing.T) {
	f := newFixture(t)
	sess := f.newSession(t)
	f.router.store = failingStore{f.store}

	sender := join(t, f, sess.ID, "conn-a", "지민")
	other := join(t, f, sess.ID, "conn-b", "하늘")

	f.router.HandleMessage(context.Background(), "conn-a", protocol.AddSticker{
		SessionID:   sess.ID,
		StickerType: "event",
		Text:        "Order Placed",
		Author:      "지민",
	})

	if got := drain(other); len(got) != 0 {
		t.Fatalf("room saw %d frames for a failed write, want 0", len(got))
	}
	got := drain(sender)
	if len(got) != 1 {
		t.Fatalf("sender received %d frames, want 1 error", len(got))
	}
	e, ok := got[0].(protocol.ErrorEvent)
	if !ok || e.Code != "store_error" {
		t.Fatalf("frame = %+v, want store_error", got[0])
	}

	stickers, _ := f.store.GetStickers(context.Background(), sess.ID)
	if len(stickers) != 0 {
		t.Fatalf("stickers = %+v, want none", stickers)
	}
}

func TestAddEventStickerCarriesFeedback(t *testing.T) {
	f := newFixture(t)
	sess := f.newSession(t)
	sender := join(t, f, sess.ID, "conn-a", "지민")

	f.router.HandleMessage(context.Background(), "conn-a", protocol.AddSticker{
		SessionID:   sess.ID,
		StickerType: "event",
		Text:        "주문 생성",
		Author:      "지민",
	})

	got := drain(sender)
	if len(got) != 1 {
		t.Fatalf("received %d frames, want 1 sticker_added", len(got))
	}
	added, ok := got[0].(protocol.StickerAdded)
	if !ok {
		t.Fatalf("frame = %T, want StickerAdded", got[0])
	}
	if added.AIFeedback == nil || added.AIFeedback.Issue != "command_not_event" {
		t.Fatalf("feedback = %+v, want command_not_event", added.AIFeedback)
	}
	if added.AIFeedback.Suggestion != "주문 생성됨" {
		t.Fatalf("suggestion = %q, want 주문 생성됨", added.AIFeedback.Suggestion)
	}
	if added.AIFeedback.StickerID != added.Sticker.ID {
		t.Fatalf("feedback targets %q, sticker is %q", added.AIFeedback.StickerID, added.Sticker.ID)
	}

	// The sticker is stored verbatim; feedback never rewrites it.
	stickers, _ := f.store.GetStickers(context.Background(), sess.ID)
	if len(stickers) != 1 || stickers[0].Text != "주문 생성" {
		t.Fatalf("stored stickers = %+v", stickers)
	}
}

func TestAddCommandStickerStaysSilent(t *testing.T) {
	f := newFixture(t)
	sess := f.newSession(t)
	sender := join(t, f, sess.ID, "conn-a", "지민")

	f.router.HandleMessage(context.Background(), "conn-a", protocol.AddSticker{
		SessionID:   sess.ID,
		StickerType: "command",
		Text:        "주문 생성",
		Author:      "지민",
	})

	got := drain(sender)
	added, ok := got[0].(protocol.StickerAdded)
	if !ok {
		t.Fatalf("frame = %T, want StickerAdded", got[0])
	}
	if added.AIFeedback != nil {
		t.Fatalf("command sticker got feedback: %+v", added.AIFeedback)
	}
}

func TestMoveStickerIsEphemeralAndExcludesSender(t *testing.T) {
	f := newFixture(t)
	sess := f.newSession(t)
	sender := join(t, f, sess.ID, "conn-a", "지민")
	other := join(t, f, sess.ID, "conn-b", "하늘")

	sticker, err := f.store.CreateSticker(context.Background(), sess.ID, board.StickerCreate{
		Type: board.TypeEvent, Text: "Order Placed", Position: board.Position{X: 1, Y: 1},
	})
	if err != nil {
		t.Fatalf("CreateSticker: %v", err)
	}

	f.router.HandleMessage(context.Background(), "conn-a", protocol.MoveSticker{
		SessionID: sess.ID,
		StickerID: sticker.ID,
		Position:  board.Position{X: 500, Y: 250},
	})

	if got := drain(sender); len(got) != 0 {
		t.Fatalf("sender echoed its own move, %d frames", len(got))
	}
	got := drain(other)
	if len(got) != 1 {
		t.Fatalf("room received %d frames, want 1 sticker_moved", len(got))
	}
	moved := got[0].(protocol.StickerMoved)
	if moved.Position.X != 500 || moved.AuthorSID != "conn-a" {
		t.Fatalf("unexpected move event: %+v", moved)
	}

	// Live position lands in the ephemeral store, durable record untouched.
	pos, err := f.live.StickerPosition(context.Background(), sticker.ID)
	if err != nil || pos == nil || pos.X != 500 {
		t.Fatalf("ephemeral position = %+v, err %v", pos, err)
	}
	stored, _ := f.store.GetStickers(context.Background(), sess.ID)
	if stored[0].Position.X != 1 {
		t.Fatalf("durable position changed by move: %+v", stored[0].Position)
	}
}

func TestDeleteStickerBroadcastsAfterCascade(t *testing.T) {
	f := newFixture(t)
	sess := f.newSession(t)
	sender := join(t, f, sess.ID, "conn-a", "지민")

	ctx := context.Background()
	src, _ := f.store.CreateSticker(ctx, sess.ID, board.StickerCreate{Type: board.TypeCommand, Text: "주문 생성"})
	dst, _ := f.store.CreateSticker(ctx, sess.ID, board.StickerCreate{Type: board.TypeEvent, Text: "주문 생성됨"})
	if _, err := f.store.CreateConnection(ctx, board.ConnectionCreate{SourceID: src.ID, TargetID: dst.ID}); err != nil {
		t.Fatalf("CreateConnection: %v", err)
	}

	f.router.HandleMessage(ctx, "conn-a", protocol.DeleteSticker{SessionID: sess.ID, StickerID: src.ID})

	got := drain(sender)
	if len(got) != 1 {
		t.Fatalf("received %d frames, want 1 sticker_deleted", len(got))
	}
	conns, _ := f.store.GetConnections(ctx, sess.ID)
	if len(conns) != 0 {
		t.Fatalf("incident connections survived delete: %+v", conns)
	}
}

func TestAddConnectionMissingEndpoint(t *testing.T) {
	f := newFixture(t)
	sess := f.newSession(t)
	sender := join(t, f, sess.ID, "conn-a", "지민")
	other := join(t, f, sess.ID, "conn-b", "하늘")

	f.router.HandleMessage(context.Background(), "conn-a", protocol.AddConnection{
		SessionID: sess.ID,
		SourceID:  "ghost-1",
		TargetID:  "ghost-2",
	})

	got := drain(sender)
	if len(got) != 1 {
		t.Fatalf("sender received %d frames, want 1 error", len(got))
	}
	if e, ok := got[0].(protocol.ErrorEvent); !ok || e.Code != "not_found" {
		t.Fatalf("frame = %+v, want not_found error", got[0])
	}
	if got := drain(other); len(got) != 0 {
		t.Fatalf("room saw %d frames for a failed connection, want 0", len(got))
	}
}

func TestUpdatePhaseBroadcastsToRoom(t *testing.T) {
	f := newFixture(t)
	sess := f.newSession(t)
	sender := join(t, f, sess.ID, "conn-a", "지민")
	other := join(t, f, sess.ID, "conn-b", "하늘")

	f.router.HandleMessage(context.Background(), "conn-a", protocol.UpdatePhase{
		SessionID: sess.ID,
		Phase:     "event_elicitation",
	})

	for _, c := range []*hub.Client{sender, other} {
		got := drain(c)
		if len(got) != 1 {
			t.Fatalf("received %d frames, want 1 phase_changed", len(got))
		}
		pc := got[0].(protocol.PhaseChanged)
		if pc.Phase != board.PhaseEventElicitation {
			t.Fatalf("phase = %q", pc.Phase)
		}
	}
	updated, _ := f.store.GetSession(context.Background(), sess.ID)
	if updated.Phase != board.PhaseEventElicitation {
		t.Fatalf("stored phase = %q", updated.Phase)
	}
}

func TestStartWorkshopSeedsPhaseTimer(t *testing.T) {
	f := newFixture(t)
	sess := f.newSession(t)
	sender := join(t, f, sess.ID, "conn-a", "지민")

	f.router.HandleMessage(context.Background(), "conn-a", protocol.StartWorkshop{
		SessionID: sess.ID,
		HostName:  "지민",
	})

	got := drain(sender)
	if len(got) != 1 {
		t.Fatalf("received %d frames, want 1 workshop_started", len(got))
	}
	started := got[0].(protocol.WorkshopStarted)
	if started.DurationMinutes != 60 || started.StartedBy != "지민" {
		t.Fatalf("unexpected workshop_started: %+v", started)
	}

	timer, err := f.live.PhaseTimer(context.Background(), sess.ID)
	if err != nil || timer == nil {
		t.Fatalf("phase timer not seeded: %+v, err %v", timer, err)
	}
	if timer.EndTime <= 0 {
		t.Fatalf("timer end_time = %v", timer.EndTime)
	}
}

func TestSyncTimerUnicastsToRequester(t *testing.T) {
	f := newFixture(t)
	sess := f.newSession(t)
	sender := join(t, f, sess.ID, "conn-a", "지민")
	other := join(t, f, sess.ID, "conn-b", "하늘")

	f.router.HandleMessage(context.Background(), "conn-a", protocol.SyncTimer{SessionID: sess.ID})

	if got := drain(other); len(got) != 0 {
		t.Fatalf("sync_timer leaked to the room, %d frames", len(got))
	}
	got := drain(sender)
	if len(got) != 1 {
		t.Fatalf("requester received %d frames, want 1 timer_sync", len(got))
	}
	sync := got[0].(protocol.TimerSync)
	if sync.StartedAt != nil {
		t.Fatalf("unstarted session reported started_at %v", *sync.StartedAt)
	}
}

func TestPauseTimerRelaysElapsedAsIs(t *testing.T) {
	f := newFixture(t)
	sess := f.newSession(t)
	join(t, f, sess.ID, "conn-a", "지민")
	other := join(t, f, sess.ID, "conn-b", "하늘")

	f.router.HandleMessage(context.Background(), "conn-a", protocol.PauseTimer{
		SessionID:      sess.ID,
		Paused:         true,
		ElapsedSeconds: 754,
	})

	got := drain(other)
	if len(got) != 1 {
		t.Fatalf("received %d frames, want 1 timer_paused", len(got))
	}
	paused := got[0].(protocol.TimerPaused)
	if !paused.Paused || paused.ElapsedSeconds != 754 {
		t.Fatalf("unexpected timer_paused: %+v", paused)
	}
}

func TestCursorMoveExcludesSender(t *testing.T) {
	f := newFixture(t)
	sess := f.newSession(t)
	sender := join(t, f, sess.ID, "conn-a", "지민")
	other := join(t, f, sess.ID, "conn-b", "하늘")

	f.router.HandleMessage(context.Background(), "conn-a", protocol.CursorMove{
		SessionID: sess.ID, X: 12, Y: 34, Name: "지민",
	})

	if got := drain(sender); len(got) != 0 {
		t.Fatalf("sender echoed its own cursor, %d frames", len(got))
	}
	got := drain(other)
	if len(got) != 1 {
		t.Fatalf("received %d frames, want 1 cursor_update", len(got))
	}
	cur := got[0].(protocol.CursorUpdate)
	if cur.SID != "conn-a" || cur.X != 12 {
		t.Fatalf("unexpected cursor_update: %+v", cur)
	}
}
