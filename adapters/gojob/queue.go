package gojob

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	sqlqueue "github.com/goliatone/go-job/queue/adapters/postgres"
	_ "github.com/mattn/go-sqlite3"
)

const DefaultQueueName = "inbox_webhooks"

// DeadLetter is a message the worker gave up on.
type DeadLetter struct {
	ID       string
	Message  *job.ExecutionMessage
	Attempts int
	Reason   string
}

// Tables names the SQL tables backing one queue.
type Tables struct {
	Messages    string
	DeadLetters string
	Status      string
}

// TablesFor derives SQL-safe table names from a queue name such as
// "inbox:webhooks".
func TablesFor(name string) Tables {
	base := strings.Trim(strings.NewReplacer(":", "_", "-", "_", ".", "_", " ", "_").Replace(strings.TrimSpace(name)), "_")
	if base == "" {
		base = DefaultQueueName
	}
	return Tables{
		Messages:    base,
		DeadLetters: base + "_dlq",
		Status:      base + "_status",
	}
}

// Queue serves go-job's SQL queue storage. Deliveries are leased, retried
// with a delay and dead-lettered in SQL tables, so several workers can share
// one database.
type Queue struct {
	*sqlqueue.Adapter

	db     *sql.DB
	tables Tables
	ownsDB bool
}

// NewMemoryQueue runs the SQL queue on a private in-memory SQLite database.
// Messages are lost on Close.
func NewMemoryQueue(ctx context.Context, name string, opts ...sqlqueue.Option) (*Queue, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("gojob: open memory queue: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	q, err := NewSQLQueue(ctx, db, sqlqueue.DialectSQLite, name, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	q.ownsDB = true
	return q, nil
}

// NewSQLQueue creates the queue tables on db when missing. db stays owned by
// the caller.
func NewSQLQueue(ctx context.Context, db *sql.DB, dialect sqlqueue.Dialect, name string, opts ...sqlqueue.Option) (*Queue, error) {
	if db == nil {
		return nil, fmt.Errorf("gojob: queue database is required")
	}
	tables := TablesFor(name)
	storageOpts := []sqlqueue.Option{
		sqlqueue.WithDialect(dialect),
		sqlqueue.WithTableName(tables.Messages),
		sqlqueue.WithDLQTableName(tables.DeadLetters),
		sqlqueue.WithStatusTableName(tables.Status),
	}
	storage := sqlqueue.NewStorage(db, append(storageOpts, opts...)...)
	if err := storage.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("gojob: migrate queue tables: %w", err)
	}
	return &Queue{
		Adapter: sqlqueue.NewAdapter(storage),
		db:      db,
		tables:  tables,
	}, nil
}

func (q *Queue) Tables() Tables {
	return q.tables
}

// Pending counts messages that are waiting, delayed or leased.
func (q *Queue) Pending(ctx context.Context) (int, error) {
	var count int
	row := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+q.tables.Messages)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("gojob: count pending messages: %w", err)
	}
	return count, nil
}

// DeadLetters lists dead-lettered messages, oldest first.
func (q *Queue) DeadLetters(ctx context.Context) ([]DeadLetter, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT id, payload, attempts, last_error FROM "+q.tables.DeadLetters+" ORDER BY dead_lettered_at ASC")
	if err != nil {
		return nil, fmt.Errorf("gojob: list dead letters: %w", err)
	}
	defer rows.Close()

	var out []DeadLetter
	for rows.Next() {
		var (
			letter  DeadLetter
			payload string
			reason  sql.NullString
		)
		if err := rows.Scan(&letter.ID, &payload, &letter.Attempts, &reason); err != nil {
			return nil, fmt.Errorf("gojob: scan dead letter: %w", err)
		}
		msg, err := queue.DecodeExecutionMessage([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("gojob: decode dead letter %q: %w", letter.ID, err)
		}
		letter.Message = msg
		letter.Reason = reason.String
		out = append(out, letter)
	}
	return out, rows.Err()
}

// Close releases the database when the queue opened it.
func (q *Queue) Close() error {
	if q == nil || !q.ownsDB || q.db == nil {
		return nil
	}
	return q.db.Close()
}

var (
	_ queue.Enqueuer             = (*Queue)(nil)
	_ queue.Dequeuer             = (*Queue)(nil)
	_ queue.DispatchStatusReader = (*Queue)(nil)
)
