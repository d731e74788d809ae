// Package signaling relays WebRTC negotiation frames between mesh peers.
// The relay never inspects SDP or ICE payloads; it addresses frames and
// forwards them verbatim. Media flows peer to peer, never through here.
package signaling

import (
	"sync"

	"github.com/stormboard/stormboard/internal/hub"
	"github.com/stormboard/stormboard/internal/observability"
	"github.com/stormboard/stormboard/internal/protocol"
)

// Relay tracks which connections opted into a session's video mesh and
// forwards signaling between them. Membership is independent of canvas
// room membership: a participant can storm without a camera.
type Relay struct {
	mu      sync.RWMutex
	peers   map[string]map[string]string // sessionID -> peerID -> display name
	byPeer  map[string]string            // peerID -> sessionID
	hub     *hub.Hub
	metrics *observability.Metrics
}

func NewRelay(h *hub.Hub, metrics *observability.Metrics) *Relay {
	return &Relay{
		peers:   make(map[string]map[string]string),
		byPeer:  make(map[string]string),
		hub:     h,
		metrics: metrics,
	}
}

// HandleMessage dispatches one parsed video action for connID. Signaling
// is fire-and-forget: a missing target drops the frame silently, the
// initiating client recovers through its own renegotiation timers.
func (r *Relay) HandleMessage(connID string, msg any) {
	switch m := msg.(type) {
	case protocol.VideoJoin:
		r.handleJoin(connID, m)
	case protocol.VideoLeave:
		r.leave(connID, m.SessionID)
	case protocol.VideoOffer:
		r.hub.Unicast(m.TargetID, protocol.NewVideoOfferEvent(connID, m.SDP))
	case protocol.VideoAnswer:
		r.hub.Unicast(m.TargetID, protocol.NewVideoAnswerEvent(connID, m.SDP))
	case protocol.VideoICECandidate:
		r.hub.Unicast(m.TargetID, protocol.NewVideoICEEvent(connID, m.Candidate))
	case protocol.VideoMute:
		r.hub.Broadcast(m.SessionID, protocol.NewVideoMuteStatus(connID, m.AudioMuted, m.VideoMuted), connID)
	case protocol.ScreenShareStart:
		r.hub.Broadcast(m.SessionID, protocol.NewScreenShareStarted(connID), connID)
	case protocol.ScreenShareStop:
		r.hub.Broadcast(m.SessionID, protocol.NewScreenShareStopped(connID), connID)
	}
}

// Disconnect removes the connection from its mesh, if any, and tells the
// remaining peers to tear down their peer connections.
func (r *Relay) Disconnect(connID string) {
	r.mu.RLock()
	sessionID, ok := r.byPeer[connID]
	r.mu.RUnlock()
	if ok {
		r.leave(connID, sessionID)
	}
}

// Peers returns the current mesh members for a session.
func (r *Relay) Peers(sessionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.peers[sessionID]))
	for id := range r.peers[sessionID] {
		out = append(out, id)
	}
	return out
}

func (r *Relay) handleJoin(connID string, m protocol.VideoJoin) {
	r.mu.Lock()
	existing := make([]string, 0, len(r.peers[m.SessionID]))
	for id := range r.peers[m.SessionID] {
		if id != connID {
			existing = append(existing, id)
		}
	}
	if r.peers[m.SessionID] == nil {
		r.peers[m.SessionID] = make(map[string]string)
	}
	r.peers[m.SessionID][connID] = m.ParticipantName
	r.byPeer[connID] = m.SessionID
	r.mu.Unlock()

	// The joiner initiates offers toward every existing peer; existing
	// peers only learn the newcomer's id and wait. One side offering is
	// what keeps the mesh glare-free.
	r.hub.Unicast(connID, protocol.NewVideoPeers(existing))
	r.hub.Broadcast(m.SessionID, protocol.NewVideoPeerJoined(connID, m.ParticipantName), connID)
	if r.metrics != nil {
		r.metrics.RoomEvents.WithLabelValues("video_joined").Inc()
	}
}

func (r *Relay) leave(connID, sessionID string) {
	r.mu.Lock()
	delete(r.peers[sessionID], connID)
	if len(r.peers[sessionID]) == 0 {
		delete(r.peers, sessionID)
	}
	delete(r.byPeer, connID)
	r.mu.Unlock()

	// The whole room hears the departure, the leaver included, so its UI
	// can confirm its own teardown.
	r.hub.Broadcast(sessionID, protocol.NewVideoPeerLeft(connID), "")
	if r.metrics != nil {
		r.metrics.RoomEvents.WithLabelValues("video_left").Inc()
	}
}
