package retrieval

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	_ "modernc.org/sqlite"
)

// Match is a ranked query result. Distance is cosine distance, lower is
// closer.
type Match struct {
	ContentID string
	Path      string
	Distance  float64
}

// Store persists library embeddings in sqlite and answers brute-force
// nearest-neighbor queries. Vectors are L2-normalized on write so cosine
// similarity reduces to a dot product at query time.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the vector store at the given database path.
func OpenStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate vector store: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS library_items (
			content_id TEXT PRIMARY KEY,
			path       TEXT NOT NULL,
			embedding  BLOB NOT NULL,
			indexed_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_library_path ON library_items(path);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Has reports whether a content id is already indexed.
func (s *Store) Has(contentID string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM library_items WHERE content_id = ?`, contentID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check indexed: %w", err)
	}
	return true, nil
}

// Put inserts or replaces an item's embedding.
func (s *Store) Put(contentID, path string, embedding []float32) error {
	vec := normalize(embedding)
	_, err := s.db.Exec(`
		INSERT INTO library_items (content_id, path, embedding, indexed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(content_id) DO UPDATE SET path = excluded.path,
			embedding = excluded.embedding, indexed_at = excluded.indexed_at
	`, contentID, path, encodeEmbedding(vec), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store embedding: %w", err)
	}
	return nil
}

// Count returns the number of indexed items.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM library_items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}

// Query returns the topK nearest items to the query vector by cosine
// distance, closest first.
func (s *Store) Query(embedding []float32, topK int) ([]Match, error) {
	query := normalize(embedding)

	rows, err := s.db.Query(`SELECT content_id, path, embedding FROM library_items`)
	if err != nil {
		return nil, fmt.Errorf("scan items: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var blob []byte
		if err := rows.Scan(&m.ContentID, &m.Path, &blob); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		vec := decodeEmbedding(blob)
		m.Distance = 1 - dot(query, vec)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeEmbedding(blob []byte) []float32 {
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}
