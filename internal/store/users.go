package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/QuizzityMC/CanaryTalk-Endtoend/internal/canaryerr"
)

// searchLimit caps directory search results.
const searchLimit = 20

// User is one registered identity.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	PublicKey    string
	CreatedAt    int64
}

// UserRef is the public subset returned by search.
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Users is the identity directory backed by the users table.
type Users struct {
	db *sql.DB
}

// NewUsers returns a directory over db.
func NewUsers(db *sql.DB) *Users {
	return &Users{db: db}
}

// Create inserts a new user and returns it with a fresh id. A duplicate
// username fails with canaryerr.ErrConflict.
func (s *Users) Create(ctx context.Context, username, passwordHash, publicKey string) (*User, error) {
	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		PublicKey:    publicKey,
		CreatedAt:    time.Now().UnixMilli(),
	}

	var key any
	if publicKey != "" {
		key = publicKey
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, public_key, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash, key, u.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("username %q: %w", username, canaryerr.ErrConflict)
		}
		return nil, fmt.Errorf("%w: insert user: %v", canaryerr.ErrPersistence, err)
	}
	return u, nil
}

// GetByUsername looks up a user by exact username.
func (s *Users) GetByUsername(ctx context.Context, username string) (*User, error) {
	var (
		u   User
		key sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, public_key, created_at FROM users WHERE username = ?`,
		username).Scan(&u.ID, &u.Username, &u.PasswordHash, &key, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %q: %w", username, canaryerr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select user: %v", canaryerr.ErrPersistence, err)
	}
	u.PublicKey = key.String
	return &u, nil
}

// SetPublicKey replaces the stored key material for a user. The caller is
// responsible for checking that the acting identity owns userID.
func (s *Users) SetPublicKey(ctx context.Context, userID, publicKey string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET public_key = ? WHERE id = ?`, publicKey, userID)
	if err != nil {
		return fmt.Errorf("%w: update public key: %v", canaryerr.ErrPersistence, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", userID, canaryerr.ErrNotFound)
	}
	return nil
}

// Search returns up to searchLimit users whose username contains fragment.
func (s *Users) Search(ctx context.Context, fragment string) ([]UserRef, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username FROM users WHERE username LIKE ? LIMIT ?`,
		"%"+fragment+"%", searchLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: search users: %v", canaryerr.ErrPersistence, err)
	}
	defer rows.Close()

	users := []UserRef{}
	for rows.Next() {
		var ref UserRef
		if err := rows.Scan(&ref.ID, &ref.Username); err != nil {
			return nil, fmt.Errorf("%w: scan user: %v", canaryerr.ErrPersistence, err)
		}
		users = append(users, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: search users: %v", canaryerr.ErrPersistence, err)
	}
	return users, nil
}
