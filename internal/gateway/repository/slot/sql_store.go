package slot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type dialect struct {
	driver string
	schema string
	// dollar placeholders ($1, $2) instead of ?
	dollar bool
}

var (
	sqliteDialect = dialect{
		driver: "sqlite",
		schema: `
CREATE TABLE IF NOT EXISTS history_slots (
  slot_key TEXT PRIMARY KEY,
  payload TEXT NOT NULL,
  updated_at TEXT NOT NULL
)`,
	}
	postgresDialect = dialect{
		driver: "pgx",
		dollar: true,
		schema: `
CREATE TABLE IF NOT EXISTS history_slots (
  slot_key TEXT PRIMARY KEY,
  payload TEXT NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
	}
)

// SQLStore keeps slots in a single table. Both backends share the queries.
type SQLStore struct {
	db *sql.DB
	d  dialect

	schemaOnce sync.Once
	schemaErr  error
}

func NewSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if strings.TrimSpace(path) == "" {
		path = "data/history.db"
	}
	db, err := sql.Open(sqliteDialect.driver, path)
	if err != nil {
		return nil, err
	}
	// sqlite serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	return newSQLStore(ctx, db, sqliteDialect)
}

func NewPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("slot: postgres dsn is empty")
	}
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, err
	}
	return newSQLStore(ctx, db, postgresDialect)
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*SQLStore, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("slot: %s ping: %w", d.driver, err)
	}
	s := &SQLStore{db: db, d: d}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		if _, err := s.db.ExecContext(ctx, s.d.schema); err != nil {
			s.schemaErr = fmt.Errorf("slot: create schema: %w", err)
		}
	})
	return s.schemaErr
}

func (s *SQLStore) rebind(q string) string {
	if !s.d.dollar {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Load(ctx context.Context, key string) ([]byte, error) {
	key, err := checkKey(key)
	if err != nil {
		return nil, err
	}
	var payload string
	err = s.db.QueryRowContext(ctx, s.rebind(`SELECT payload FROM history_slots WHERE slot_key = ?`), key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(payload), nil
}

func (s *SQLStore) Save(ctx context.Context, key string, data []byte) error {
	key, err := checkKey(key)
	if err != nil {
		return err
	}
	var updated any = time.Now().UTC()
	if !s.d.dollar {
		updated = time.Now().UTC().Format(time.RFC3339Nano)
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
INSERT INTO history_slots (slot_key, payload, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (slot_key) DO UPDATE SET
  payload = excluded.payload,
  updated_at = excluded.updated_at`), key, string(data), updated)
	return err
}

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
