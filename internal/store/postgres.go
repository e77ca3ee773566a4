package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/dunamismax/transformd/internal/domain"
)

const workItemSchemaSQL = `
CREATE TABLE IF NOT EXISTS work_items (
	id TEXT PRIMARY KEY,
	process TEXT NOT NULL,
	payload_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	initiator TEXT NOT NULL DEFAULT '',
	args JSONB NOT NULL DEFAULT '{}',
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

// OpenPostgres opens and pings a lib/pq connection pool.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

type PostgresWorkItemStore struct {
	db *sql.DB
}

func NewPostgresWorkItemStore(ctx context.Context, db *sql.DB) (*PostgresWorkItemStore, error) {
	store := &PostgresWorkItemStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *PostgresWorkItemStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, workItemSchemaSQL); err != nil {
		return fmt.Errorf("ensure work_items schema: %w", err)
	}
	return nil
}

func (s *PostgresWorkItemStore) Create(ctx context.Context, item domain.WorkItem) error {
	argsJSON, err := marshalArgs(item.Args)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO work_items (id, process, payload_type, payload, initiator, args, status, error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		item.ID,
		item.Process,
		item.PayloadType,
		item.Payload,
		item.Initiator,
		argsJSON,
		item.Status,
		item.Error,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert work item: %w", err)
	}

	return nil
}

func (s *PostgresWorkItemStore) Get(ctx context.Context, id string) (domain.WorkItem, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, process, payload_type, payload, initiator, args, status, error, created_at, updated_at
		 FROM work_items
		 WHERE id = $1`,
		id,
	)

	var (
		item     domain.WorkItem
		argsJSON []byte
	)
	if err := row.Scan(
		&item.ID,
		&item.Process,
		&item.PayloadType,
		&item.Payload,
		&item.Initiator,
		&argsJSON,
		&item.Status,
		&item.Error,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.WorkItem{}, false, nil
		}
		return domain.WorkItem{}, false, fmt.Errorf("query work item: %w", err)
	}

	if err := json.Unmarshal(argsJSON, &item.Args); err != nil {
		return domain.WorkItem{}, false, fmt.Errorf("unmarshal work item args: %w", err)
	}

	return item, true, nil
}

func (s *PostgresWorkItemStore) UpdateStatus(ctx context.Context, id, status, errMsg string) (domain.WorkItem, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE work_items
		 SET status = $1, error = $2, updated_at = $3
		 WHERE id = $4`,
		status,
		errorFor(status, errMsg),
		now,
		id,
	)
	if err != nil {
		return domain.WorkItem{}, fmt.Errorf("update work item status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.WorkItem{}, ErrWorkItemNotFound
	}

	item, ok, err := s.Get(ctx, id)
	if err != nil {
		return domain.WorkItem{}, err
	}
	if !ok {
		return domain.WorkItem{}, ErrWorkItemNotFound
	}

	return item, nil
}

func marshalArgs(args map[string]any) ([]byte, error) {
	if args == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal work item args: %w", err)
	}
	return data, nil
}
