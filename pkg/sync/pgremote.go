package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// notifyChannel is the Postgres channel carrying row-change notifications.
const notifyChannel = "board_tasks_changes"

// PgRemote is a PostgreSQL-backed Remote. The realtime feed rides a row
// trigger that publishes each change on a LISTEN/NOTIFY channel.
type PgRemote struct {
	pool *pgxpool.Pool
}

// NewPgRemote creates a PgRemote.
func NewPgRemote(pool *pgxpool.Pool) *PgRemote {
	return &PgRemote{pool: pool}
}

// EnsureTable creates the board_tasks table and its change trigger if they
// don't exist.
func (s *PgRemote) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS board_tasks (
			id             TEXT PRIMARY KEY,
			title          TEXT NOT NULL,
			description    TEXT NOT NULL DEFAULT '',
			time_estimate  INTEGER NOT NULL DEFAULT 30,
			priority       TEXT NOT NULL DEFAULT 'medium',
			status         TEXT NOT NULL DEFAULT 'pending',
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			scheduled_date TEXT NOT NULL DEFAULT '',
			scheduled_time TEXT NOT NULL DEFAULT '',
			tags           TEXT[] DEFAULT '{}'
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_board_tasks_date ON board_tasks(scheduled_date) WHERE scheduled_date != ''`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		CREATE OR REPLACE FUNCTION board_tasks_notify() RETURNS trigger AS $$
		DECLARE
			payload TEXT;
		BEGIN
			IF TG_OP = 'DELETE' THEN
				payload := json_build_object('type', 'delete', 'row', row_to_json(OLD))::text;
			ELSIF TG_OP = 'INSERT' THEN
				payload := json_build_object('type', 'insert', 'row', row_to_json(NEW))::text;
			ELSE
				payload := json_build_object('type', 'update', 'row', row_to_json(NEW))::text;
			END IF;
			PERFORM pg_notify('`+notifyChannel+`', payload);
			RETURN NULL;
		END;
		$$ LANGUAGE plpgsql`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'board_tasks_notify') THEN
				CREATE TRIGGER board_tasks_notify
					AFTER INSERT OR UPDATE OR DELETE ON board_tasks
					FOR EACH ROW EXECUTE FUNCTION board_tasks_notify();
			END IF;
		END
		$$`)
	return err
}

// SelectAll returns every row, oldest first.
func (s *PgRemote) SelectAll(ctx context.Context) ([]Row, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, description, time_estimate, priority, status, created_at, scheduled_date, scheduled_time, tags
		FROM board_tasks ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.Title, &r.Description, &r.TimeEstimate, &r.Priority, &r.Status, &r.CreatedAt, &r.ScheduledDate, &r.ScheduledTime, &r.Tags); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return out, nil
}

// Upsert writes full rows keyed by id, last write wins.
func (s *PgRemote) Upsert(ctx context.Context, rows []Row) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO board_tasks (id, title, description, time_estimate, priority, status, created_at, scheduled_date, scheduled_time, tags)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE SET
				title = EXCLUDED.title,
				description = EXCLUDED.description,
				time_estimate = EXCLUDED.time_estimate,
				priority = EXCLUDED.priority,
				status = EXCLUDED.status,
				created_at = EXCLUDED.created_at,
				scheduled_date = EXCLUDED.scheduled_date,
				scheduled_time = EXCLUDED.scheduled_time,
				tags = EXCLUDED.tags`,
			r.ID, r.Title, r.Description, r.TimeEstimate, r.Priority, r.Status, r.CreatedAt, r.ScheduledDate, r.ScheduledTime, r.Tags)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range rows {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert task: %w", err)
		}
	}
	return nil
}

// Delete removes rows by id.
func (s *PgRemote) Delete(ctx context.Context, ids []string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM board_tasks WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("delete tasks: %w", err)
	}
	return nil
}

// Subscribe holds a dedicated connection on LISTEN and decodes each
// notification payload into a feed event. Events are delivered on a
// background goroutine in notification order.
func (s *PgRemote) Subscribe(ctx context.Context, onChange func(Event)) (func(), error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen conn: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", notifyChannel, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer conn.Release()
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("sync: notification wait: %v", err)
				}
				return
			}
			var ev struct {
				Type EventType `json:"type"`
				Row  Row       `json:"row"`
			}
			if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
				log.Printf("sync: decode notification: %v", err)
				continue
			}
			onChange(Event{Type: ev.Type, Row: ev.Row})
		}
	}()
	return cancel, nil
}
