package board

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a session, sticker or connection endpoint
// does not exist. Creating a connection with a missing endpoint sticker
// fails with this error instead of silently persisting nothing.
var ErrNotFound = errors.New("board: not found")

// Store is the authoritative persistence contract for canvas state.
type Store interface {
	CreateSession(ctx context.Context, data SessionCreate) (*Session, error)
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	UpdateSessionPhase(ctx context.Context, sessionID string, phase Phase) error
	StartSession(ctx context.Context, sessionID string) (*Session, error)
	EndSession(ctx context.Context, sessionID string) (*Session, error)

	CreateSticker(ctx context.Context, sessionID string, data StickerCreate) (*Sticker, error)
	GetStickers(ctx context.Context, sessionID string) ([]Sticker, error)
	UpdateSticker(ctx context.Context, stickerID string, data StickerUpdate) (*Sticker, error)
	// DeleteSticker removes the sticker and every connection incident to it.
	DeleteSticker(ctx context.Context, stickerID string) error

	CreateConnection(ctx context.Context, data ConnectionCreate) (*Connection, error)
	GetConnections(ctx context.Context, sessionID string) ([]Connection, error)
	DeleteConnection(ctx context.Context, connectionID string) error

	Ping(ctx context.Context) error
	Close() error
}
