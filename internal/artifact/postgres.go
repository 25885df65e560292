package artifact

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	pkgerrors "github.com/pkg/errors"

	apperr "laddergen/internal/errors"
)

// Postgres stores artifacts as bytea rows, one per key.
type Postgres struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) ensureSchema() error {
	p.schemaOnce.Do(func() {
		_, p.schemaErr = p.db.Exec(`
CREATE TABLE IF NOT EXISTS artifacts (
  key TEXT PRIMARY KEY,
  data BYTEA NOT NULL DEFAULT ''::bytea,
  content_type TEXT NOT NULL DEFAULT '',
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
	})
	return p.schemaErr
}

func (p *Postgres) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if strings.TrimSpace(key) == "" {
		return pkgerrors.Wrap(apperr.ErrInvalidInput, "artifact key is required")
	}
	if err := p.ensureSchema(); err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}
	_, err := p.db.ExecContext(ctx, `
INSERT INTO artifacts (key, data, content_type, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (key)
DO UPDATE SET data=EXCLUDED.data,
  content_type=EXCLUDED.content_type,
  updated_at=EXCLUDED.updated_at`,
		key, data, contentType)
	return err
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, string, error) {
	if err := p.ensureSchema(); err != nil {
		return nil, "", err
	}
	var (
		data        []byte
		contentType string
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT data, content_type FROM artifacts WHERE key=$1`, key).
		Scan(&data, &contentType)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, "", pkgerrors.Wrapf(apperr.ErrNotFound, "artifact %s", key)
	}
	if err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}

func (p *Postgres) GetURL(ctx context.Context, key string) (string, error) {
	return "", nil
}

func (p *Postgres) List(ctx context.Context, prefix string) ([]string, error) {
	if err := p.ensureSchema(); err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT key FROM artifacts WHERE key LIKE $1 || '%' ORDER BY key`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
