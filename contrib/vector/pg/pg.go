// Package pg persists knowledge base vectors in PostgreSQL via the pgvector
// extension. It is the durable alternative to the in-memory store for
// deployments that keep the index across restarts.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"

	cfgpkg "github.com/sweetpotato0/ticketpilot/config"
	errorskg "github.com/sweetpotato0/ticketpilot/errors"
	"github.com/sweetpotato0/ticketpilot/vector"
)

// Config holds the connection and schema settings for the pgvector store.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	// Dimension is the fixed vector width; rows of any other width are
	// rejected at insert time. Defaults to 1536.
	Dimension int
	// Table is the backing table name. Defaults to "kb_vectors".
	Table string
}

// DefaultConfig returns settings for a local development database.
func DefaultConfig() *Config {
	return &Config{
		Host:      "127.0.0.1",
		Port:      5432,
		User:      "postgres",
		Password:  "postgres",
		DBName:    "ticketpilot",
		SSLMode:   "disable",
		Dimension: 1536,
		Table:     "kb_vectors",
	}
}

// Store implements vector.VectorStore on top of pgvector.
type Store struct {
	db        *sql.DB
	dimension int
	table     string
}

// New opens the database, verifies connectivity and ensures the vector
// extension and backing table exist.
func New(ctx context.Context, config *Config) (*Store, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Dimension <= 0 {
		config.Dimension = 1536
	}
	if config.Table == "" {
		config.Table = "kb_vectors"
	}
	if err := cfgpkg.ValidatePostgresConfig(config.Host, config.Port, config.User, config.DBName, config.SSLMode); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{db: db, dimension: config.Dimension, table: config.Table}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("enable pgvector extension: %w", err)
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id         VARCHAR(255) PRIMARY KEY,
		text       TEXT NOT NULL,
		embedding  vector(%d) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`, s.table, s.dimension)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// AddEmbedding upserts one embedding keyed by ID.
func (s *Store) AddEmbedding(ctx context.Context, embedding *vector.Embedding) error {
	if embedding == nil || embedding.ID == "" {
		return fmt.Errorf("%w: embedding requires an ID", errorskg.ErrInvalidInput)
	}
	if len(embedding.Vector) != s.dimension {
		return fmt.Errorf("%w: embedding %s is %d-dimensional, store expects %d",
			errorskg.ErrInvalidInput, embedding.ID, len(embedding.Vector), s.dimension)
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, text, embedding)
		VALUES ($1, $2, $3::vector)
		ON CONFLICT (id) DO UPDATE SET
			text = EXCLUDED.text,
			embedding = EXCLUDED.embedding,
			created_at = CURRENT_TIMESTAMP`, s.table)
	if _, err := s.db.ExecContext(ctx, query, embedding.ID, embedding.Text, encodeVector(embedding.Vector)); err != nil {
		return fmt.Errorf("upsert embedding %s: %w", embedding.ID, err)
	}
	return nil
}

// Search returns up to topK embeddings nearest to the query vector. pgvector's
// <-> operator orders by distance, so the closest rows come first.
func (s *Store) Search(ctx context.Context, queryVector []float32, topK int) ([]*vector.Embedding, error) {
	if len(queryVector) != s.dimension {
		return nil, fmt.Errorf("%w: query vector is %d-dimensional, store expects %d",
			errorskg.ErrInvalidInput, len(queryVector), s.dimension)
	}
	if topK <= 0 {
		topK = 10
	}

	query := fmt.Sprintf(`SELECT id, text, embedding FROM %s
		ORDER BY embedding <-> $1::vector
		LIMIT $2`, s.table)
	rows, err := s.db.QueryContext(ctx, query, encodeVector(queryVector), topK)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	out := make([]*vector.Embedding, 0, topK)
	for rows.Next() {
		emb, err := scanEmbedding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, emb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return out, nil
}

// GetEmbedding fetches one embedding by ID.
func (s *Store) GetEmbedding(ctx context.Context, id string) (*vector.Embedding, error) {
	query := fmt.Sprintf("SELECT id, text, embedding FROM %s WHERE id = $1", s.table)
	row := s.db.QueryRowContext(ctx, query, id)

	emb, err := scanEmbedding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: embedding %s", errorskg.ErrNotFound, id)
	}
	return emb, err
}

// DeleteEmbedding removes one embedding by ID.
func (s *Store) DeleteEmbedding(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.table)
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete embedding %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: embedding %s", errorskg.ErrNotFound, id)
	}
	return nil
}

// Clear drops every embedding.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s", s.table)); err != nil {
		return fmt.Errorf("truncate %s: %w", s.table, err)
	}
	return nil
}

// Count returns the number of stored embeddings.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return n, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmbedding(row rowScanner) (*vector.Embedding, error) {
	var id, text, raw string
	if err := row.Scan(&id, &text, &raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan embedding row: %w", err)
	}
	vec, err := decodeVector(raw)
	if err != nil {
		return nil, fmt.Errorf("embedding %s: %w", id, err)
	}
	return &vector.Embedding{ID: id, Text: text, Vector: vec}, nil
}

// encodeVector renders a vector in pgvector's literal form: [0.1,0.2,...].
func encodeVector(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func decodeVector(raw string) ([]float32, error) {
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	vec := make([]float32, len(parts))
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("parse vector component %d (%q): %w", i, part, err)
		}
		vec[i] = float32(f)
	}
	return vec, nil
}
