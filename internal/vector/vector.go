// Package vector persists reference passages with their embeddings in a
// local sqlite database and answers top-k cosine-similarity queries. The
// pipeline treats it as a pure lookup: failures degrade to an empty
// retrieval context, never to a failed generation.
package vector

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Passage is one stored reference excerpt.
type Passage struct {
	ID        string
	Source    string
	Ref       string
	Content   string
	CreatedAt time.Time
}

// Match couples a stored passage with its similarity to the query.
type Match struct {
	Passage Passage
	Score   float64
}

// Store is the sqlite-backed passage index.
type Store struct {
	db *sql.DB
}

// Open opens or creates the store at path and applies migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS passages (
  id TEXT PRIMARY KEY,
  source TEXT NOT NULL,
  ref TEXT NOT NULL DEFAULT '',
  content TEXT NOT NULL,
  embedding BLOB NOT NULL,
  dim INTEGER NOT NULL,
  created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_passages_source ON passages(source);
`)
	return err
}

// Add stores a passage with its embedding, replacing any existing row
// with the same ID. A missing ID gets a fresh UUID.
func (s *Store) Add(ctx context.Context, p Passage, embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("vector: empty embedding for passage from %q", p.Source)
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO passages(id, source, ref, content, embedding, dim, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  source=excluded.source,
  ref=excluded.ref,
  content=excluded.content,
  embedding=excluded.embedding,
  dim=excluded.dim,
  created_at=excluded.created_at;
`, p.ID, p.Source, p.Ref, p.Content, encodeEmbedding(embedding), len(embedding), p.CreatedAt)
	return err
}

// Query returns the topK most similar passages, best first. Only rows
// whose embedding dimension matches the query are considered.
func (s *Store) Query(ctx context.Context, embedding []float32, topK int) ([]Match, error) {
	if topK <= 0 || len(embedding) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, source, ref, content, embedding, created_at
FROM passages WHERE dim=?;
`, len(embedding))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var p Passage
		var blob []byte
		if err := rows.Scan(&p.ID, &p.Source, &p.Ref, &p.Content, &blob, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, Match{Passage: p, Score: Cosine(embedding, decodeEmbedding(blob))})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Passage.ID < out[j].Passage.ID
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// Count returns the number of stored passages.
func (s *Store) Count(ctx context.Context) (int, error) {
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM passages;")
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// DeleteSource removes every passage ingested from one source, so a
// changed reference file can be re-indexed cleanly.
func (s *Store) DeleteSource(ctx context.Context, source string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM passages WHERE source=?;", source)
	return err
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Cosine returns the cosine similarity of two equal-length vectors, or 0
// when lengths differ or either vector has no magnitude.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
