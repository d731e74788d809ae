package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/stormboard/stormboard/internal/board"
)

// mermaidClassDefs colors nodes with the conventional event storming
// palette so exported diagrams read the same as the canvas.
const mermaidClassDefs = `
    classDef event fill:#ff9800,stroke:#f57c00,color:#000
    classDef command fill:#2196f3,stroke:#1976d2,color:#fff
    classDef policy fill:#9c27b0,stroke:#7b1fa2,color:#fff
    classDef read_model fill:#4caf50,stroke:#388e3c,color:#fff
    classDef external_system fill:#e91e63,stroke:#c2185b,color:#fff
    `

type exportPayload struct {
	Session     *board.Session     `json:"session"`
	Stickers    []board.Sticker    `json:"stickers"`
	Connections []board.Connection `json:"connections"`
}

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	stickers, err := s.store.GetStickers(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	conns, err := s.store.GetConnections(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, exportPayload{Session: sess, Stickers: stickers, Connections: conns})
}

func (s *Server) handleExportMermaid(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	stickers, err := s.store.GetStickers(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	conns, err := s.store.GetConnections(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"mermaid":       renderMermaid(stickers, conns),
		"session_title": sess.Title,
	})
}

func renderMermaid(stickers []board.Sticker, conns []board.Connection) string {
	lines := []string{"flowchart LR"}

	nodeIDs := make(map[string]string, len(stickers))
	for i, st := range stickers {
		nodeID := fmt.Sprintf("n%d", i)
		nodeIDs[st.ID] = nodeID
		lines = append(lines, fmt.Sprintf(`    %s["%s"]:::%s`, nodeID, mermaidLabel(st.Text), st.Type))
	}

	for _, c := range conns {
		source, okS := nodeIDs[c.SourceID]
		target, okT := nodeIDs[c.TargetID]
		if !okS || !okT {
			continue
		}
		if c.Label != "" {
			lines = append(lines, fmt.Sprintf(`    %s -->|"%s"| %s`, source, mermaidLabel(c.Label), target))
		} else {
			lines = append(lines, fmt.Sprintf("    %s --> %s", source, target))
		}
	}

	lines = append(lines, mermaidClassDefs)
	return strings.Join(lines, "\n")
}

// mermaidLabel makes sticker text safe inside a quoted mermaid node and
// caps runaway labels.
func mermaidLabel(text string) string {
	text = strings.ReplaceAll(text, `"`, "'")
	text = strings.ReplaceAll(text, "\n", " ")
	if runes := []rune(text); len(runes) > 50 {
		return string(runes[:50])
	}
	return text
}
