package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Postgres stores vectors in a pgvector column and queries them with
// the `<->` L2 distance operator.
type Postgres struct {
	db   *sql.DB
	dims int

	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgres(dsn string, dims int) (*Postgres, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if dims <= 0 {
		dims = 768
	}
	return &Postgres{db: db, dims: dims}, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) ensureSchema() error {
	p.schemaOnce.Do(func() {
		_, p.schemaErr = p.db.Exec(fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS ladder_examples (
  id TEXT PRIMARY KEY,
  document TEXT NOT NULL DEFAULT '',
  metadata JSONB NOT NULL DEFAULT '{}',
  embedding vector(%d) NOT NULL
);
`, p.dims))
	})
	return p.schemaErr
}

func (p *Postgres) Add(ctx context.Context, entries []Entry) error {
	if err := p.ensureSchema(); err != nil {
		return err
	}
	for _, e := range entries {
		if len(e.Vector) != p.dims {
			return ErrDimensionMismatch
		}
		meta, err := json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
		_, err = p.db.ExecContext(ctx, `
INSERT INTO ladder_examples (id, document, metadata, embedding)
VALUES ($1, $2, $3, $4::vector)
ON CONFLICT (id)
DO UPDATE SET document=EXCLUDED.document,
  metadata=EXCLUDED.metadata,
  embedding=EXCLUDED.embedding`,
			e.ID, e.Document, meta, vectorLiteral(e.Vector))
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) Query(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if err := p.ensureSchema(); err != nil {
		return nil, err
	}
	if len(vector) != p.dims {
		return nil, ErrDimensionMismatch
	}
	if k <= 0 {
		return nil, nil
	}
	rows, err := p.db.QueryContext(ctx, `
SELECT id, document, metadata, embedding <-> $1::vector AS distance
FROM ladder_examples
ORDER BY embedding <-> $1::vector
LIMIT $2`, vectorLiteral(vector), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			h    Hit
			meta []byte
		)
		if err := rows.Scan(&h.ID, &h.Document, &meta, &h.Distance); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &h.Metadata); err != nil {
				return nil, err
			}
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (p *Postgres) Count(ctx context.Context) (int, error) {
	if err := p.ensureSchema(); err != nil {
		return 0, err
	}
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ladder_examples`).Scan(&n)
	return n, err
}

// Reset empties the example table. The schema stays in place.
func (p *Postgres) Reset(ctx context.Context) error {
	if err := p.ensureSchema(); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx, `DELETE FROM ladder_examples`)
	return err
}

// vectorLiteral renders a vector in pgvector's input syntax: [1,2,3].
func vectorLiteral(vec []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
