package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

// SQLiteBackend keeps namespaces in a single kv table. Reads and writes use
// separate handles; the write handle is limited to one connection.
type SQLiteBackend struct {
	readDB  *sql.DB
	writeDB *sql.DB
	now     func() time.Time
}

var _ Backend = (*SQLiteBackend)(nil)

func OpenSQLite(dbPath string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating storage dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	b := &SQLiteBackend{writeDB: writeDB, now: time.Now}
	// The schema must exist before a read-only handle can open the file.
	if err := b.init(); err != nil {
		writeDB.Close()
		return nil, err
	}

	readDB, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}
	b.readDB = readDB
	return b, nil
}

func (b *SQLiteBackend) init() error {
	_, err := b.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			namespace  TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Close() error {
	var errs []error
	if b.readDB != nil {
		errs = append(errs, b.readDB.Close())
	}
	if b.writeDB != nil {
		errs = append(errs, b.writeDB.Close())
	}
	return errors.Join(errs...)
}

func (b *SQLiteBackend) Get(namespace string) (string, bool, error) {
	query, args, err := sq.Select("value").
		From("kv").
		Where(sq.Eq{"namespace": namespace}).
		ToSql()
	if err != nil {
		return "", false, fmt.Errorf("building read query: %w", err)
	}

	var value string
	err = b.readDB.QueryRow(query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", namespace, err)
	}
	return value, true, nil
}

func (b *SQLiteBackend) Set(namespace, value string) error {
	query, args, err := sq.Insert("kv").
		Columns("namespace", "value", "updated_at").
		Values(namespace, value, b.now().UTC()).
		Suffix("ON CONFLICT(namespace) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("building write query: %w", err)
	}

	if _, err := b.writeDB.Exec(query, args...); err != nil {
		return fmt.Errorf("writing %s: %w", namespace, err)
	}
	return nil
}

// Namespaces lists stored namespaces with their last write time.
func (b *SQLiteBackend) Namespaces() (map[string]time.Time, error) {
	query, args, err := sq.Select("namespace", "updated_at").
		From("kv").
		OrderBy("namespace").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list query: %w", err)
	}

	rows, err := b.readDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing namespaces: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var (
			ns string
			at time.Time
		)
		if err := rows.Scan(&ns, &at); err != nil {
			return nil, fmt.Errorf("scanning namespace: %w", err)
		}
		out[ns] = at
	}
	return out, rows.Err()
}
