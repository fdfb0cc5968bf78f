package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/QuizzityMC/CanaryTalk-Endtoend/internal/auth"
	"github.com/QuizzityMC/CanaryTalk-Endtoend/internal/protocol"
	"github.com/QuizzityMC/CanaryTalk-Endtoend/internal/store"
)

// Router orchestrates delivery: every send is persisted first, then
// forwarded live when the recipient is reachable; connects flush the
// offline mailbox exactly once.
//
// Send and OnConnect serialize per recipient so that a connect-time flush
// and a concurrent live forward can never double-deliver or reorder an
// envelope: a sender either lands before the flush transaction (and is
// included in the pending batch) or after registration (and is forwarded
// live behind the batch).
type Router struct {
	registry *Registry
	messages *store.Messages
	log      *logrus.Logger

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewRouter returns a Router over the given registry and mailbox.
func NewRouter(registry *Registry, messages *store.Messages, log *logrus.Logger) *Router {
	return &Router{
		registry:  registry,
		messages:  messages,
		log:       log,
		userLocks: make(map[string]*sync.Mutex),
	}
}

func (r *Router) userLock(userID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	mu, ok := r.userLocks[userID]
	if !ok {
		mu = &sync.Mutex{}
		r.userLocks[userID] = mu
	}
	return mu
}

// Send persists an envelope for toUserID and forwards it live if the
// recipient has a connection. The returned ack is unconditional; its
// Delivered field reflects only whether a live forward was queued, not
// confirmed receipt.
func (r *Router) Send(ctx context.Context, from auth.Identity, toUserID, encryptedContent string) (protocol.MessageSent, error) {
	env := &store.Envelope{
		ID:               uuid.NewString(),
		FromUser:         from.UserID,
		ToUser:           toUserID,
		EncryptedContent: encryptedContent,
		Timestamp:        time.Now().UnixMilli(),
	}

	mu := r.userLock(toUserID)
	mu.Lock()
	defer mu.Unlock()

	if err := r.messages.Append(ctx, env); err != nil {
		return protocol.MessageSent{}, err
	}
	messagesStored.Inc()

	delivered := false
	if recipient, ok := r.registry.Lookup(toUserID); ok {
		delivered = recipient.trySend(protocol.ServerFrame{
			Event: protocol.EventNewMessage,
			Data: protocol.NewMessage{
				MessageID:        env.ID,
				FromUserID:       from.UserID,
				FromUsername:     from.Username,
				EncryptedContent: encryptedContent,
				Timestamp:        env.Timestamp,
			},
		})
		if delivered {
			messagesForwarded.Inc()
			if err := r.messages.MarkDelivered(ctx, env.ID); err != nil {
				// The recipient has the message; worst case the next flush
				// is skipped because the flag never flipped, so log loudly.
				r.log.WithError(err).WithField("messageId", env.ID).
					Error("mark delivered after live forward")
			}
		}
	}

	return protocol.MessageSent{
		MessageID: env.ID,
		Timestamp: env.Timestamp,
		Delivered: delivered,
	}, nil
}

// OnConnect registers c as its identity's live connection and flushes the
// offline mailbox to it, oldest first, as a single pending_messages batch.
// A superseded connection for the same identity is closed (last connect
// wins). Runs before the client's read loop handles further traffic.
func (r *Router) OnConnect(ctx context.Context, c *Client) error {
	userID := c.identity.UserID

	mu := r.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	if prev := r.registry.Register(userID, c); prev != nil && prev != c {
		r.log.WithFields(logrus.Fields{
			"userId":   userID,
			"username": c.identity.Username,
		}).Info("connection superseded")
		prev.close()
	}

	pending, err := r.messages.FetchAndMarkDelivered(ctx, userID)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	batch := make([]protocol.PendingMessage, len(pending))
	for i, env := range pending {
		batch[i] = protocol.PendingMessage{
			ID:               env.ID,
			FromUser:         env.FromUser,
			ToUser:           env.ToUser,
			EncryptedContent: env.EncryptedContent,
			Timestamp:        env.Timestamp,
		}
	}
	c.trySend(protocol.ServerFrame{
		Event: protocol.EventPendingMessages,
		Data:  protocol.PendingMessages{Messages: batch},
	})
	messagesFlushed.Add(float64(len(batch)))
	return nil
}

// NotifyTyping forwards an ephemeral typing hint if the recipient is
// online. Offline recipients are a silent no-op.
func (r *Router) NotifyTyping(from auth.Identity, toUserID string) {
	recipient, ok := r.registry.Lookup(toUserID)
	if !ok {
		return
	}
	recipient.trySend(protocol.ServerFrame{
		Event: protocol.EventUserTyping,
		Data: protocol.UserTyping{
			FromUserID:   from.UserID,
			FromUsername: from.Username,
		},
	})
}
