// Package server is the CanaryTalk relay: a REST surface for accounts and
// key material, and a websocket endpoint over which authenticated clients
// exchange opaque encrypted messages.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/QuizzityMC/CanaryTalk-Endtoend/internal/auth"
	"github.com/QuizzityMC/CanaryTalk-Endtoend/internal/config"
	"github.com/QuizzityMC/CanaryTalk-Endtoend/internal/protocol"
	"github.com/QuizzityMC/CanaryTalk-Endtoend/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server holds all dependencies of the relay.
type Server struct {
	cfg      *config.Config
	log      *logrus.Logger
	gate     *auth.Gate
	users    *store.Users
	registry *Registry
	router   *Router
}

// New wires a Server over an open database.
func New(cfg *config.Config, db *sql.DB, log *logrus.Logger) *Server {
	registry := NewRegistry()
	return &Server{
		cfg:      cfg,
		log:      log,
		gate:     auth.NewGate(cfg.JWTSecret, cfg.TokenTTL),
		users:    store.NewUsers(db),
		registry: registry,
		router:   NewRouter(registry, store.NewMessages(db), log),
	}
}

// Handler returns the full HTTP handler: REST routes, metrics, health,
// and the websocket endpoint, wrapped in CORS.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/users/public-key", s.handleSetPublicKey).Methods(http.MethodPost)
	// Registered before the {username} route so "search" is never taken
	// for a username.
	api.HandleFunc("/users/search/{query}", s.handleSearch).Methods(http.MethodGet)
	api.HandleFunc("/users/{username}/public-key", s.handleGetPublicKey).Methods(http.MethodGet)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWS)

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(r)
}

// handleWS upgrades the connection and starts the client pumps. The
// connection stays unregistered until its first authenticate frame
// verifies.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := newClient(s, conn)
	s.log.WithField("remote", conn.RemoteAddr().String()).Debug("client connected")

	go client.writePump()
	go client.readPump()
}

// handleFrame dispatches one inbound frame. Domain errors are reported as
// events; the connection is never torn down for them.
func (s *Server) handleFrame(c *Client, frame protocol.Frame) {
	switch frame.Event {
	case protocol.EventAuthenticate:
		s.handleAuthenticate(c, frame.Data)
	case protocol.EventSendMessage:
		s.handleSendMessage(c, frame.Data)
	case protocol.EventTyping:
		s.handleTyping(c, frame.Data)
	default:
		c.trySend(protocol.ServerFrame{
			Event: protocol.EventError,
			Data:  protocol.ErrorData{Error: "Unknown event"},
		})
	}
}

func (s *Server) handleAuthenticate(c *Client, data json.RawMessage) {
	var req protocol.AuthenticateData
	if err := json.Unmarshal(data, &req); err != nil || req.Token == "" {
		c.trySend(protocol.ServerFrame{
			Event: protocol.EventAuthError,
			Data:  protocol.ErrorData{Error: "Invalid token"},
		})
		return
	}

	identity, err := s.gate.Verify(req.Token)
	if err != nil {
		c.trySend(protocol.ServerFrame{
			Event: protocol.EventAuthError,
			Data:  protocol.ErrorData{Error: "Invalid token"},
		})
		return
	}

	c.identity = identity
	c.authed = true
	c.trySend(protocol.ServerFrame{
		Event: protocol.EventAuthenticated,
		Data:  protocol.Authenticated{UserID: identity.UserID, Username: identity.Username},
	})

	if err := s.router.OnConnect(context.Background(), c); err != nil {
		s.log.WithError(err).WithField("userId", identity.UserID).
			Error("flush pending messages")
	}

	s.log.WithFields(logrus.Fields{
		"userId":   identity.UserID,
		"username": identity.Username,
	}).Info("user authenticated")
}

func (s *Server) handleSendMessage(c *Client, data json.RawMessage) {
	if !c.authed {
		c.trySend(protocol.ServerFrame{
			Event: protocol.EventError,
			Data:  protocol.ErrorData{Error: "Not authenticated"},
		})
		return
	}

	var req protocol.SendMessageData
	if err := json.Unmarshal(data, &req); err != nil || req.ToUserID == "" || req.EncryptedContent == "" {
		c.trySend(protocol.ServerFrame{
			Event: protocol.EventError,
			Data:  protocol.ErrorData{Error: "Invalid message"},
		})
		return
	}

	ack, err := s.router.Send(context.Background(), c.identity, req.ToUserID, req.EncryptedContent)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"fromUserId": c.identity.UserID,
			"toUserId":   req.ToUserID,
		}).Error("send message")
		c.trySend(protocol.ServerFrame{
			Event: protocol.EventError,
			Data:  protocol.ErrorData{Error: "Failed to send message"},
		})
		return
	}

	c.trySend(protocol.ServerFrame{Event: protocol.EventMessageSent, Data: ack})
}

func (s *Server) handleTyping(c *Client, data json.RawMessage) {
	if !c.authed {
		return
	}

	var req protocol.TypingData
	if err := json.Unmarshal(data, &req); err != nil || req.ToUserID == "" {
		return
	}

	s.router.NotifyTyping(c.identity, req.ToUserID)
}
