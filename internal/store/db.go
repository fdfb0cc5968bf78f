// Package store persists users and message envelopes in sqlite. Envelope
// content is opaque ciphertext and is stored and returned verbatim.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	public_key TEXT,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	from_user TEXT NOT NULL,
	to_user TEXT NOT NULL,
	encrypted_content TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	delivered INTEGER DEFAULT 0,
	FOREIGN KEY (from_user) REFERENCES users(id),
	FOREIGN KEY (to_user) REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_messages_to_user ON messages(to_user, delivered);
CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp);
`

// Open connects to the sqlite database at path, enables WAL, and creates
// the schema if missing.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return db, nil
}
