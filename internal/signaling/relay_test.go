package signaling

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/stormboard/stormboard/internal/hub"
	"github.com/stormboard/stormboard/internal/protocol"
)

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

func videoJoin(r *Relay, h *hub.Hub, sessionID, connID, name string) *hub.Client {
	c := h.Register(connID)
	h.Join(sessionID, connID)
	r.HandleMessage(connID, protocol.VideoJoin{SessionID: sessionID, ParticipantName: name})
	return c
}

func TestJoinerReceivesExistingPeers(t *testing.T) {
	h := hub.New(16, nil)
	r := NewRelay(h, nil)

	a := videoJoin(r, h, "s1", "peer-a", "지민")
	drain(a)
	b := videoJoin(r, h, "s1", "peer-b", "하늘")

	var peers []string
	for _, msg := range drain(b) {
		if p, ok := msg.(protocol.VideoPeers); ok {
			peers = p.Peers
		}
	}
	if len(peers) != 1 || peers[0] != "peer-a" {
		t.Fatalf("joiner peer list = %v, want [peer-a]", peers)
	}

	got := drain(a)
	if len(got) != 1 {
		t.Fatalf("existing peer received %d frames, want 1 video_peer_joined", len(got))
	}
	joined, ok := got[0].(protocol.VideoPeerJoined)
	if !ok || joined.PeerID != "peer-b" || joined.Name != "하늘" {
		t.Fatalf("frame = %+v, want peer-b joined", got[0])
	}
}

func TestMeshJoinSymmetry(t *testing.T) {
	h := hub.New(16, nil)
	r := NewRelay(h, nil)

	clients := map[string]*hub.Client{}
	for _, id := range []string{"p1", "p2", "p3"} {
		clients[id] = videoJoin(r, h, "s1", id, id)
	}

	// Every pair must be discoverable from exactly one side: the later
	// joiner holds the earlier one in its peer list, the earlier one got
	// a join notification. Both directions together cover each pair once.
	knows := map[string]map[string]bool{}
	for id, c := range clients {
		knows[id] = map[string]bool{}
		for _, msg := range drain(c) {
			switch m := msg.(type) {
			case protocol.VideoPeers:
				for _, p := range m.Peers {
					knows[id][p] = true
				}
			case protocol.VideoPeerJoined:
				knows[id][m.PeerID] = true
			}
		}
	}
	for _, pair := range [][2]string{{"p1", "p2"}, {"p1", "p3"}, {"p2", "p3"}} {
		if !knows[pair[0]][pair[1]] && !knows[pair[1]][pair[0]] {
			t.Fatalf("pair %v never discovered each other: %+v", pair, knows)
		}
	}

	got := r.Peers("s1")
	sort.Strings(got)
	if len(got) != 3 {
		t.Fatalf("mesh members = %v, want 3", got)
	}
}

func TestOfferForwardedVerbatim(t *testing.T) {
	h := hub.New(16, nil)
	r := NewRelay(h, nil)
	videoJoin(r, h, "s1", "peer-a", "지민")
	b := videoJoin(r, h, "s1", "peer-b", "하늘")
	drain(b)

	sdp := json.RawMessage(`{"type":"offer","sdp":"v=0\r\no=- 42 2 IN IP4 127.0.0.1"}`)
	r.HandleMessage("peer-a", protocol.VideoOffer{TargetID: "peer-b", SDP: sdp})

	got := drain(b)
	if len(got) != 1 {
		t.Fatalf("target received %d frames, want 1", len(got))
	}
	sig, ok := got[0].(protocol.VideoSignal)
	if !ok || sig.FromID != "peer-a" {
		t.Fatalf("frame = %+v, want signal from peer-a", got[0])
	}
	if string(sig.SDP) != string(sdp) {
		t.Fatalf("SDP altered in transit:\n got %s\nwant %s", sig.SDP, sdp)
	}
}

func TestSignalToMissingTargetIsSilent(t *testing.T) {
	h := hub.New(16, nil)
	r := NewRelay(h, nil)
	a := videoJoin(r, h, "s1", "peer-a", "지민")
	drain(a)

	r.HandleMessage("peer-a", protocol.VideoOffer{TargetID: "ghost", SDP: json.RawMessage(`{}`)})

	if got := drain(a); len(got) != 0 {
		t.Fatalf("sender received %d frames for a dropped signal, want 0", len(got))
	}
}

func TestMuteBroadcastExcludesSender(t *testing.T) {
	h := hub.New(16, nil)
	r := NewRelay(h, nil)
	a := videoJoin(r, h, "s1", "peer-a", "지민")
	b := videoJoin(r, h, "s1", "peer-b", "하늘")
	drain(a)
	drain(b)

	r.HandleMessage("peer-a", protocol.VideoMute{SessionID: "s1", AudioMuted: true})

	if got := drain(a); len(got) != 0 {
		t.Fatalf("sender echoed its own mute, %d frames", len(got))
	}
	got := drain(b)
	if len(got) != 1 {
		t.Fatalf("peer received %d frames, want 1", len(got))
	}
	mute := got[0].(protocol.VideoMuteStatus)
	if mute.PeerID != "peer-a" || !mute.AudioMuted || mute.VideoMuted {
		t.Fatalf("unexpected mute status: %+v", mute)
	}
}

func TestDisconnectTearsDownPeer(t *testing.T) {
	h := hub.New(16, nil)
	r := NewRelay(h, nil)
	a := videoJoin(r, h, "s1", "peer-a", "지민")
	b := videoJoin(r, h, "s1", "peer-b", "하늘")
	drain(a)
	drain(b)

	r.Disconnect("peer-a")

	got := drain(b)
	if len(got) != 1 {
		t.Fatalf("peer received %d frames, want 1 video_peer_left", len(got))
	}
	left, ok := got[0].(protocol.VideoPeerLeft)
	if !ok || left.PeerID != "peer-a" {
		t.Fatalf("frame = %+v, want peer-a left", got[0])
	}
	if peers := r.Peers("s1"); len(peers) != 1 || peers[0] != "peer-b" {
		t.Fatalf("mesh = %v, want [peer-b]", peers)
	}

	// Disconnecting a connection that never joined a mesh is a no-op.
	r.Disconnect("never-joined")
}

func TestVideoLeaveIndependentOfCanvasRoom(t *testing.T) {
	h := hub.New(16, nil)
	r := NewRelay(h, nil)
	a := videoJoin(r, h, "s1", "peer-a", "지민")
	b := videoJoin(r, h, "s1", "peer-b", "하늘")
	drain(a)
	drain(b)

	r.HandleMessage("peer-a", protocol.VideoLeave{SessionID: "s1"})

	if peers := r.Peers("s1"); len(peers) != 1 {
		t.Fatalf("mesh = %v, want only peer-b", peers)
	}
	// Explicit leave echoes the departure back to the leaver too.
	got := drain(a)
	if len(got) != 1 {
		t.Fatalf("leaver received %d frames, want 1 video_peer_left", len(got))
	}
	if left, ok := got[0].(protocol.VideoPeerLeft); !ok || left.PeerID != "peer-a" {
		t.Fatalf("frame = %+v, want own video_peer_left", got[0])
	}
	// Canvas room membership is untouched by leaving the mesh.
	members := h.Members("s1")
	if len(members) != 2 {
		t.Fatalf("canvas room = %v, want both connections", members)
	}
}
