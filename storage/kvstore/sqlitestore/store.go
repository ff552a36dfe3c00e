package sqlitestore

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/cmrsapp/console/storage/kvstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

type store struct {
	db *sqlx.DB
}

var _ kvstore.Store = (*store)(nil) // interface compliance check

// Open opens (and creates if needed) the local state database at path.
func Open(path string) (kvstore.Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening state db")
	}
	if _, err = db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "creating state table")
	}
	return &store{db: db}, nil
}

func (s *store) Get(key string) (string, error) {
	var val string
	if err := s.db.Get(&val, "SELECT value FROM state WHERE key = ?", key); err != nil {
		if err == sql.ErrNoRows {
			return "", kvstore.ErrKeyNotFound
		}
		return "", errors.Wrap(err, "getting state value")
	}
	return val, nil
}

func (s *store) Set(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO state (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return errors.Wrap(err, "setting state value")
}

func (s *store) Delete(keys ...string) error {
	for _, key := range keys {
		if _, err := s.db.Exec("DELETE FROM state WHERE key = ?", key); err != nil {
			return errors.Wrap(err, "deleting state value")
		}
	}
	return nil
}

func (s *store) Close() error { return s.db.Close() }
