package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/stormboard/stormboard/internal/board"
)

// REST endpoints cover workshop setup and inspection. Realtime edits go
// through the websocket; these handlers do not fan out to rooms.

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req board.SessionCreate
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		req.Title = "Event Storming Session"
	}
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = s.cfg.DefaultSessionMinutes
	}

	sess, err := s.store.CreateSession(r.Context(), req)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.StartSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.EndSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleUpdatePhase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phase string `json:"phase"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	phase, err := board.ParsePhase(req.Phase)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_phase", err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.store.UpdateSessionPhase(r.Context(), id, phase); err != nil {
		respondStoreError(w, err)
		return
	}
	sess, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleListStickers(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetSession(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}
	stickers, err := s.store.GetStickers(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stickers)
}

func (s *Server) handleCreateSticker(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type     string         `json:"type"`
		Text     string         `json:"text"`
		Position board.Position `json:"position"`
		Author   string         `json:"author"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	stickerType, err := board.ParseStickerType(req.Type)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_sticker_type", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}
	if strings.TrimSpace(req.Author) == "" {
		req.Author = "Anonymous"
	}

	sticker, err := s.store.CreateSticker(r.Context(), chi.URLParam(r, "id"), board.StickerCreate{
		Type:     stickerType,
		Text:     req.Text,
		Position: req.Position,
		Author:   req.Author,
	})
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sticker)
}

func (s *Server) handleUpdateSticker(w http.ResponseWriter, r *http.Request) {
	var req board.StickerUpdate
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Text == nil && req.Position == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "nothing to update")
		return
	}

	sticker, err := s.store.UpdateSticker(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sticker)
}

func (s *Server) handleDeleteSticker(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSticker(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetSession(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}
	conns, err := s.store.GetConnections(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, conns)
}

func (s *Server) handleCreateConnection(w http.ResponseWriter, r *http.Request) {
	var req board.ConnectionCreate
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.SourceID == "" || req.TargetID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "source_id and target_id are required")
		return
	}

	conn, err := s.store.CreateConnection(r.Context(), req)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, conn)
}

func (s *Server) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteConnection(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}
