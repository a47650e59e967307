package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

// timeFormat is fixed-width so that stored times sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// SQLStore is a Store backed by a sqlite database. The table is created on
// first successful use; a failed creation is retried by the next call.
type SQLStore struct {
	db          *sql.DB
	mtx         sync.Mutex
	initialized bool
}

// NewSQLStore returns a store backed by db.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Open opens a sqlite database at path and returns a store backed by it. The
// caller closes the returned database.
func Open(path string) (*SQLStore, *sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&mode=rwc")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping history database at %s: %w", path, err)
	}
	return NewSQLStore(db), db, nil
}

func (s *SQLStore) initialize(ctx context.Context) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.initialized {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `
	create table if not exists tee_history (
		id text primary key,
		query_id text not null,
		path text not null,
		rows bigint not null,
		bytes bigint not null,
		status text not null,
		error text not null default '',
		started_at text not null,
		finished_at text not null
	);

	create index if not exists tee_history_finished_at_idx on tee_history(finished_at);
	`); err != nil {
		return fmt.Errorf("failed to create history table: %w", err)
	}
	s.initialized = true
	return nil
}

// Record stores an entry.
func (s *SQLStore) Record(ctx context.Context, entry Entry) error {
	if err := s.initialize(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
	insert into tee_history (id, query_id, path, rows, bytes, status, error, started_at, finished_at)
	values ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID.String(),
		entry.QueryID.String(),
		entry.Path,
		entry.Rows,
		entry.Bytes,
		string(entry.Status),
		entry.Error,
		entry.StartedAt.UTC().Format(timeFormat),
		entry.FinishedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to record history entry: %w", err)
	}
	return nil
}

// List returns up to limit entries, most recent first. A limit of zero or
// less returns every entry.
func (s *SQLStore) List(ctx context.Context, limit int) ([]Entry, error) {
	if err := s.initialize(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
	select id, query_id, path, rows, bytes, status, error, started_at, finished_at
	from tee_history order by finished_at desc, rowid desc limit $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()
	entries := []Entry{}
	for rows.Next() {
		var entry Entry
		var id, queryID, status, started, finished string
		if err := rows.Scan(
			&id, &queryID, &entry.Path, &entry.Rows, &entry.Bytes, &status, &entry.Error, &started, &finished,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		if entry.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("failed to parse entry id: %w", err)
		}
		if entry.QueryID, err = uuid.Parse(queryID); err != nil {
			return nil, fmt.Errorf("failed to parse query id: %w", err)
		}
		if entry.StartedAt, err = time.Parse(timeFormat, started); err != nil {
			return nil, fmt.Errorf("failed to parse start time: %w", err)
		}
		if entry.FinishedAt, err = time.Parse(timeFormat, finished); err != nil {
			return nil, fmt.Errorf("failed to parse finish time: %w", err)
		}
		entry.Status = Status(status)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return entries, nil
}
