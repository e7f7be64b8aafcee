package rooms

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/smartwell-la/smartwell-platform/internal/api/respond"
	"github.com/smartwell-la/smartwell-platform/internal/appointments"
	"github.com/smartwell-la/smartwell-platform/internal/http/middleware"
	"github.com/smartwell-la/smartwell-platform/pkg/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browser origin checks are handled by the CORS layer.
		return true
	},
}

// Handler serves room token issuance and the websocket endpoint.
type Handler struct {
	tokens       *TokenStore
	hub          *Hub
	appointments appointments.Repository
	logger       *logging.Logger
}

// NewHandler creates the rooms HTTP handler.
func NewHandler(tokens *TokenStore, hub *Hub, repo appointments.Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{tokens: tokens, hub: hub, appointments: repo, logger: logger}
}

// AuthedRoutes mounts endpoints that require a logged-in participant.
func (h *Handler) AuthedRoutes(r chi.Router) {
	r.Post("/appointments/{id}/room/token", h.CreateToken)
}

// PublicRoutes mounts the websocket endpoint, which authenticates with
// the join token instead of a JWT.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Get("/rooms/ws", h.ServeWS)
}

// CreateToken issues a join token for the caller's confirmed session.
func (h *Handler) CreateToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Unauthorized(w, "authentication required")
		return
	}

	a, err := h.appointments.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, appointments.ErrAppointmentNotFound) {
			respond.NotFound(w, "appointment not found")
			return
		}
		h.logger.Error("failed to load appointment for room", "error", err)
		respond.Internal(w)
		return
	}

	token, expiresAt, err := h.tokens.CreateJoinToken(r.Context(), a, userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotParticipant):
			respond.Forbidden(w, "you are not a participant of this session")
		case errors.Is(err, ErrNotJoinable):
			respond.Conflict(w, "session is not confirmed")
		case errors.Is(err, ErrSessionOver):
			respond.Conflict(w, "session already ended")
		default:
			h.logger.Error("failed to create join token", "appointment_id", a.ID, "error", err)
			respond.Internal(w)
		}
		return
	}

	respond.OK(w, "room token issued", map[string]any{
		"token":      token,
		"expires_at": expiresAt,
	})
}

// ServeWS upgrades the connection and attaches the caller to their room.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	claim, err := h.tokens.ValidateToken(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			respond.Unauthorized(w, "invalid or expired room token")
			return
		}
		h.logger.Error("token validation failed", "error", err)
		respond.Internal(w)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	p := &Participant{
		UserID: claim.UserID,
		Role:   claim.Role,
		RoomID: claim.AppointmentID,
		Send:   make(chan []byte, 32),
		conn:   conn,
		hub:    h.hub,
	}
	h.hub.Join(p)

	go h.writePump(p, conn)
	go h.readPump(p, conn)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (h *Handler) readPump(p *Participant, conn *websocket.Conn) {
	defer func() {
		h.hub.Leave(p)
		conn.Close()
	}()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Type == EventSignal {
			h.hub.Relay(p, msg.Data)
		}
	}
}

func (h *Handler) writePump(p *Participant, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case data, ok := <-p.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
