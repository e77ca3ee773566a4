package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/dunamismax/transformd/internal/domain"
	"github.com/dunamismax/transformd/internal/storage"
)

const resourceSchemaSQL = `
CREATE TABLE IF NOT EXISTS resources (
	path TEXT PRIMARY KEY,
	parent_path TEXT NOT NULL,
	position BIGSERIAL,
	type TEXT NOT NULL,
	mime_type TEXT NOT NULL DEFAULT '',
	binary_key TEXT NOT NULL DEFAULT '',
	properties JSONB NOT NULL DEFAULT '{}'::jsonb,
	last_replication_action TEXT,
	last_replicated_by TEXT,
	last_replicated_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS resources_parent_path_idx ON resources (parent_path, position);
`

const resourceColumns = `path, type, mime_type, binary_key, properties,
	last_replication_action, last_replicated_by, last_replicated_at`

// BinaryStore keeps resource binaries outside the database.
type BinaryStore interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte, contentType string) error
}

type PostgresRepository struct {
	db       *sql.DB
	binaries BinaryStore
}

func NewPostgresRepository(ctx context.Context, db *sql.DB, binaries BinaryStore) (*PostgresRepository, error) {
	if binaries == nil {
		return nil, errors.New("binary store is required")
	}
	repo := &PostgresRepository{db: db, binaries: binaries}
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, resourceSchemaSQL); err != nil {
		return fmt.Errorf("ensure resources schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Put(ctx context.Context, res domain.Resource, binary []byte) error {
	res.Path = path.Clean(res.Path)
	if binary != nil && res.BinaryKey == "" {
		res.BinaryKey = "binaries" + res.Path
	}

	props, err := json.Marshal(nonNilProperties(res.Properties))
	if err != nil {
		return fmt.Errorf("marshal resource properties: %w", err)
	}

	if binary != nil {
		if err := r.binaries.Write(ctx, res.BinaryKey, binary, res.MimeType); err != nil {
			return err
		}
	}

	_, err = r.db.ExecContext(
		ctx,
		`INSERT INTO resources (path, parent_path, type, mime_type, binary_key, properties)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (path) DO UPDATE
		 SET type = EXCLUDED.type,
		     mime_type = EXCLUDED.mime_type,
		     binary_key = EXCLUDED.binary_key,
		     properties = EXCLUDED.properties`,
		res.Path,
		domain.ParentPath(res.Path),
		res.Type,
		res.MimeType,
		res.BinaryKey,
		props,
	)
	if err != nil {
		return fmt.Errorf("upsert resource %s: %w", res.Path, err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, p string) (domain.Resource, bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+resourceColumns+` FROM resources WHERE path = $1`, path.Clean(p))
	res, err := scanResource(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Resource{}, false, nil
		}
		return domain.Resource{}, false, fmt.Errorf("query resource %s: %w", p, err)
	}
	return res, true, nil
}

func (r *PostgresRepository) Children(ctx context.Context, p string) ([]domain.Resource, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE parent_path = $1 ORDER BY position`,
		path.Clean(p),
	)
	if err != nil {
		return nil, fmt.Errorf("query children of %s: %w", p, err)
	}
	defer rows.Close()

	var out []domain.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child of %s: %w", p, err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate children of %s: %w", p, err)
	}
	return out, nil
}

func (r *PostgresRepository) ReadBinary(ctx context.Context, res domain.Resource) ([]byte, error) {
	if !res.HasBinary() {
		return nil, fmt.Errorf("%w: %s", ErrNoBinary, res.Path)
	}
	data, err := r.binaries.Read(ctx, res.BinaryKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, fmt.Errorf("%w: binary of %s", ErrNotFound, res.Path)
	}
	return data, err
}

func (r *PostgresRepository) SetReplicationStatus(ctx context.Context, p string, status domain.ReplicationStatus) error {
	result, err := r.db.ExecContext(
		ctx,
		`UPDATE resources
		 SET last_replication_action = $1, last_replicated_by = $2, last_replicated_at = $3
		 WHERE path = $4`,
		status.LastAction,
		status.LastBy,
		status.At,
		path.Clean(p),
	)
	if err != nil {
		return fmt.Errorf("update replication status %s: %w", p, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (domain.Resource, error) {
	var (
		res    domain.Resource
		props  []byte
		action sql.NullString
		by     sql.NullString
		replAt sql.NullTime
	)
	if err := row.Scan(&res.Path, &res.Type, &res.MimeType, &res.BinaryKey, &props, &action, &by, &replAt); err != nil {
		return domain.Resource{}, err
	}
	if len(props) > 0 {
		if err := json.Unmarshal(props, &res.Properties); err != nil {
			return domain.Resource{}, fmt.Errorf("unmarshal resource properties: %w", err)
		}
	}
	if action.Valid {
		res.Replication = &domain.ReplicationStatus{
			LastAction: action.String,
			LastBy:     by.String,
			At:         replAt.Time,
		}
	}
	return res, nil
}

func nonNilProperties(p map[string]any) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	return p
}
