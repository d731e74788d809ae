package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/stormboard/stormboard/internal/board"
	"github.com/stormboard/stormboard/internal/canvas"
	"github.com/stormboard/stormboard/internal/config"
	"github.com/stormboard/stormboard/internal/hub"
	"github.com/stormboard/stormboard/internal/observability"
	"github.com/stormboard/stormboard/internal/presence"
	"github.com/stormboard/stormboard/internal/protocol"
	"github.com/stormboard/stormboard/internal/signaling"
)

type Server struct {
	cfg      config.Config
	store    board.Store
	live     presence.Store
	hub      *hub.Hub
	router   *canvas.Router
	relay    *signaling.Relay
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, store board.Store, live presence.Store, h *hub.Hub, router *canvas.Router, relay *signaling.Relay, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		store:   store,
		live:    live,
		hub:     h,
		router:  router,
		relay:   relay,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the
				// same origin, so an unrelated website cannot join a workshop
				// with the visitor's cookies and network position.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/ws", s.handleWS)

	r.Post("/api/sessions", s.handleCreateSession)
	r.Get("/api/sessions/{id}", s.handleGetSession)
	r.Post("/api/sessions/{id}/start", s.handleStartSession)
	r.Post("/api/sessions/{id}/end", s.handleEndSession)
	r.Patch("/api/sessions/{id}/phase", s.handleUpdatePhase)
	r.Get("/api/sessions/{id}/stickers", s.handleListStickers)
	r.Post("/api/sessions/{id}/stickers", s.handleCreateSticker)
	r.Patch("/api/stickers/{id}", s.handleUpdateSticker)
	r.Delete("/api/stickers/{id}", s.handleDeleteSticker)
	r.Get("/api/sessions/{id}/connections", s.handleListConnections)
	r.Post("/api/sessions/{id}/connections", s.handleCreateConnection)
	r.Delete("/api/connections/{id}", s.handleDeleteConnection)
	r.Get("/api/sessions/{id}/export/json", s.handleExportJSON)
	r.Get("/api/sessions/{id}/export/mermaid", s.handleExportMermaid)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "board_store_unavailable", err.Error())
		return
	}
	if err := s.live.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "presence_store_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	client := s.hub.Register(connID)
	s.metrics.ActiveConnections.Inc()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range client.Outbox() {
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WSWriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
			s.metrics.WSMessages.WithLabelValues("outbound", eventNameOf(msg)).Inc()
		}
	}()

	conn.SetReadLimit(s.cfg.WSReadLimit)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.hub.Unicast(connID, protocol.NewErrorEvent("invalid_message", err.Error()))
			continue
		}
		s.metrics.WSMessages.WithLabelValues("inbound", clientTypeOf(parsed)).Inc()

		// Dispatch stays synchronous so a connection's actions apply in
		// the order its user performed them.
		switch parsed.(type) {
		case protocol.VideoJoin, protocol.VideoLeave, protocol.VideoOffer,
			protocol.VideoAnswer, protocol.VideoICECandidate, protocol.VideoMute,
			protocol.ScreenShareStart, protocol.ScreenShareStop:
			s.relay.HandleMessage(connID, parsed)
		default:
			s.router.HandleMessage(r.Context(), connID, parsed)
		}
	}

	s.router.Disconnect(r.Context(), connID)
	s.relay.Disconnect(connID)
	s.hub.Unregister(connID)
	<-writerDone
	s.metrics.ActiveConnections.Dec()
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func respondStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, board.ErrNotFound) {
		respondError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, "store_error", err.Error())
}

func eventNameOf(msg any) string {
	type typed interface{ EventType() string }
	if t, ok := msg.(typed); ok {
		return t.EventType()
	}
	return "unknown"
}

func clientTypeOf(v any) string {
	switch m := v.(type) {
	case protocol.JoinSession:
		return string(m.Type)
	case protocol.LeaveSession:
		return string(m.Type)
	case protocol.AddSticker:
		return string(m.Type)
	case protocol.UpdateSticker:
		return string(m.Type)
	case protocol.MoveSticker:
		return string(m.Type)
	case protocol.DeleteSticker:
		return string(m.Type)
	case protocol.AddConnection:
		return string(m.Type)
	case protocol.DeleteConnection:
		return string(m.Type)
	case protocol.UpdatePhase:
		return string(m.Type)
	case protocol.StartWorkshop:
		return string(m.Type)
	case protocol.SyncTimer:
		return string(m.Type)
	case protocol.PauseTimer:
		return string(m.Type)
	case protocol.CursorMove:
		return string(m.Type)
	case protocol.AIConnected:
		return string(m.Type)
	case protocol.AIDisconnected:
		return string(m.Type)
	case protocol.VideoJoin:
		return string(m.Type)
	case protocol.VideoLeave:
		return string(m.Type)
	case protocol.VideoOffer:
		return string(m.Type)
	case protocol.VideoAnswer:
		return string(m.Type)
	case protocol.VideoICECandidate:
		return string(m.Type)
	case protocol.VideoMute:
		return string(m.Type)
	case protocol.ScreenShareStart:
		return string(m.Type)
	case protocol.ScreenShareStop:
		return string(m.Type)
	default:
		return "unknown"
	}
}
