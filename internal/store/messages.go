package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/QuizzityMC/CanaryTalk-Endtoend/internal/canaryerr"
)

// Envelope is one stored message. EncryptedContent is opaque; the relay
// never parses it. Delivered only ever moves false to true.
type Envelope struct {
	ID               string
	FromUser         string
	ToUser           string
	EncryptedContent string
	Timestamp        int64
	Delivered        bool
}

// Messages is the offline mailbox backed by the messages table.
type Messages struct {
	db *sql.DB
}

// NewMessages returns a mailbox over db.
func NewMessages(db *sql.DB) *Messages {
	return &Messages{db: db}
}

// Append durably inserts an envelope.
func (s *Messages) Append(ctx context.Context, env *Envelope) error {
	delivered := 0
	if env.Delivered {
		delivered = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, from_user, to_user, encrypted_content, timestamp, delivered) VALUES (?, ?, ?, ?, ?, ?)`,
		env.ID, env.FromUser, env.ToUser, env.EncryptedContent, env.Timestamp, delivered)
	if err != nil {
		return fmt.Errorf("%w: insert message: %v", canaryerr.ErrPersistence, err)
	}
	return nil
}

// MarkDelivered flips the delivered flag on a single envelope, used after
// a successful live forward.
func (s *Messages) MarkDelivered(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET delivered = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: mark delivered: %v", canaryerr.ErrPersistence, err)
	}
	return nil
}

// FetchAndMarkDelivered returns toUser's undelivered envelopes in timestamp
// order and marks exactly that set delivered, in one transaction. An
// envelope appended concurrently is either included in the result or left
// pending for the next flush; it is never marked without being returned.
func (s *Messages) FetchAndMarkDelivered(ctx context.Context, toUser string) ([]Envelope, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin flush: %v", canaryerr.ErrPersistence, err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, from_user, to_user, encrypted_content, timestamp FROM messages
		 WHERE to_user = ? AND delivered = 0 ORDER BY timestamp ASC`, toUser)
	if err != nil {
		return nil, fmt.Errorf("%w: select pending: %v", canaryerr.ErrPersistence, err)
	}

	var pending []Envelope
	for rows.Next() {
		var env Envelope
		if err := rows.Scan(&env.ID, &env.FromUser, &env.ToUser, &env.EncryptedContent, &env.Timestamp); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: scan pending: %v", canaryerr.ErrPersistence, err)
		}
		pending = append(pending, env)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("%w: read pending: %v", canaryerr.ErrPersistence, err)
	}

	if len(pending) == 0 {
		return nil, tx.Commit()
	}

	// Update only the ids just read, not everything addressed to the user,
	// so an envelope appended mid-flush cannot be marked without being
	// returned.
	placeholders := make([]string, len(pending))
	args := make([]any, len(pending))
	for i, env := range pending {
		placeholders[i] = "?"
		args[i] = env.ID
	}
	query := fmt.Sprintf(`UPDATE messages SET delivered = 1 WHERE id IN (%s)`,
		strings.Join(placeholders, ", "))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("%w: mark batch delivered: %v", canaryerr.ErrPersistence, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit flush: %v", canaryerr.ErrPersistence, err)
	}
	for i := range pending {
		pending[i].Delivered = true
	}
	return pending, nil
}
