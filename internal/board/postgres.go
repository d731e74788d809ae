package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists canvas state in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			phase TEXT NOT NULL,
			duration_minutes INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			started_at TIMESTAMPTZ,
			ended_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS stickers (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			text TEXT NOT NULL,
			x DOUBLE PRECISION NOT NULL,
			y DOUBLE PRECISION NOT NULL,
			author TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS connections (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL REFERENCES stickers(id) ON DELETE CASCADE,
			target_id TEXT NOT NULL REFERENCES stickers(id) ON DELETE CASCADE,
			label TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_stickers_session_created ON stickers (session_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_connections_source ON connections (source_id);`,
		`CREATE INDEX IF NOT EXISTS idx_connections_target ON connections (target_id);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, data SessionCreate) (*Session, error) {
	sess := &Session{
		ID:              uuid.NewString(),
		Title:           data.Title,
		Description:     data.Description,
		Phase:           PhaseOrientation,
		DurationMinutes: data.DurationMinutes,
		CreatedAt:       time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, title, description, phase, duration_minutes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sess.ID, sess.Title, sess.Description, string(sess.Phase), sess.DurationMinutes, sess.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var (
		sess  Session
		phase string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, description, phase, duration_minutes, created_at, started_at, ended_at
		 FROM sessions WHERE id=$1`, sessionID,
	).Scan(&sess.ID, &sess.Title, &sess.Description, &phase, &sess.DurationMinutes,
		&sess.CreatedAt, &sess.StartedAt, &sess.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	sess.Phase = Phase(phase)
	return &sess, nil
}

func (s *PostgresStore) UpdateSessionPhase(ctx context.Context, sessionID string, phase Phase) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET phase=$2 WHERE id=$1`, sessionID, string(phase))
	if err != nil {
		return fmt.Errorf("update session phase: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) StartSession(ctx context.Context, sessionID string) (*Session, error) {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET started_at=$2 WHERE id=$1`, sessionID, now)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return s.GetSession(ctx, sessionID)
}

func (s *PostgresStore) EndSession(ctx context.Context, sessionID string) (*Session, error) {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET ended_at=$2 WHERE id=$1`, sessionID, now)
	if err != nil {
		return nil, fmt.Errorf("end session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return s.GetSession(ctx, sessionID)
}

func (s *PostgresStore) CreateSticker(ctx context.Context, sessionID string, data StickerCreate) (*Sticker, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
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
	_, err := s.pool.Exec(ctx,
		`INSERT INTO stickers (id, session_id, type, text, x, y, author, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		st.ID, st.SessionID, string(st.Type), st.Text, st.Position.X, st.Position.Y,
		st.Author, st.CreatedAt, st.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create sticker: %w", err)
	}
	return st, nil
}

func (s *PostgresStore) GetStickers(ctx context.Context, sessionID string) ([]Sticker, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, type, text, x, y, author, created_at, updated_at
		 FROM stickers WHERE session_id=$1 ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query stickers: %w", err)
	}
	defer rows.Close()

	var stickers []Sticker
	for rows.Next() {
		var (
			st    Sticker
			stype string
		)
		if err := rows.Scan(&st.ID, &st.SessionID, &stype, &st.Text,
			&st.Position.X, &st.Position.Y, &st.Author, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan sticker row: %w", err)
		}
		st.Type = StickerType(stype)
		stickers = append(stickers, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sticker rows: %w", err)
	}
	return stickers, nil
}

func (s *PostgresStore) UpdateSticker(ctx context.Context, stickerID string, data StickerUpdate) (*Sticker, error) {
	sets := []string{"updated_at=now()"}
	args := []any{stickerID}
	if data.Text != nil {
		args = append(args, *data.Text)
		sets = append(sets, fmt.Sprintf("text=$%d", len(args)))
	}
	if data.Position != nil {
		args = append(args, data.Position.X)
		sets = append(sets, fmt.Sprintf("x=$%d", len(args)))
		args = append(args, data.Position.Y)
		sets = append(sets, fmt.Sprintf("y=$%d", len(args)))
	}

	var (
		st    Sticker
		stype string
	)
	query := fmt.Sprintf(
		`UPDATE stickers SET %s WHERE id=$1
		 RETURNING id, session_id, type, text, x, y, author, created_at, updated_at`,
		strings.Join(sets, ", "))
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&st.ID, &st.SessionID, &stype, &st.Text,
		&st.Position.X, &st.Position.Y, &st.Author, &st.CreatedAt, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update sticker: %w", err)
	}
	st.Type = StickerType(stype)
	return &st, nil
}

func (s *PostgresStore) DeleteSticker(ctx context.Context, stickerID string) error {
	// Incident connections go away via ON DELETE CASCADE.
	tag, err := s.pool.Exec(ctx, `DELETE FROM stickers WHERE id=$1`, stickerID)
	if err != nil {
		return fmt.Errorf("delete sticker: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateConnection(ctx context.Context, data ConnectionCreate) (*Connection, error) {
	// Endpoints are verified one by one so a self-loop (source == target)
	// on an existing sticker is accepted.
	for _, id := range []string{data.SourceID, data.TargetID} {
		var exists bool
		err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM stickers WHERE id=$1)`, id).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("check connection endpoint: %w", err)
		}
		if !exists {
			return nil, ErrNotFound
		}
	}

	conn := &Connection{
		ID:        uuid.NewString(),
		SourceID:  data.SourceID,
		TargetID:  data.TargetID,
		Label:     data.Label,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO connections (id, source_id, target_id, label, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		conn.ID, conn.SourceID, conn.TargetID, conn.Label, conn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create connection: %w", err)
	}
	return conn, nil
}

func (s *PostgresStore) GetConnections(ctx context.Context, sessionID string) ([]Connection, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, c.source_id, c.target_id, c.label, c.created_at
		 FROM connections c
		 JOIN stickers src ON src.id = c.source_id
		 WHERE src.session_id=$1
		 ORDER BY c.created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query connections: %w", err)
	}
	defer rows.Close()

	var conns []Connection
	for rows.Next() {
		var c Connection
		if err := rows.Scan(&c.ID, &c.SourceID, &c.TargetID, &c.Label, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan connection row: %w", err)
		}
		conns = append(conns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connection rows: %w", err)
	}
	return conns, nil
}

func (s *PostgresStore) DeleteConnection(ctx context.Context, connectionID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM connections WHERE id=$1`, connectionID)
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
