// Package livesim provides a local stand-in for the live API: a
// websocket endpoint speaking the session wire protocol, plus a REST
// surface for injecting invocations into connected consoles by hand.
// It exists so the console can be driven end to end without network
// access or an API key.
package livesim

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Robert54/live-api-web-console/internal/log"
)

// Session represents one connected console.
type Session struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time

	mu         sync.Mutex
	lastSeen   time.Time
	model      string
	configured bool
	responses  [][]ToolResponse
}

// Send writes one frame to the console.
func (s *Session) Send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Conn.WriteJSON(v)
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) setConfigured(model string) {
	s.mu.Lock()
	s.model = model
	s.configured = true
	s.mu.Unlock()
}

func (s *Session) isConfigured() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configured
}

func (s *Session) recordResponses(batch []ToolResponse) {
	s.mu.Lock()
	s.responses = append(s.responses, batch)
	s.mu.Unlock()
}

// Responses returns every acknowledgment batch the console has sent.
func (s *Session) Responses() [][]ToolResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]ToolResponse{}, s.responses...)
}

// Hub manages simulated live sessions.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	setups           atomic.Uint64
	textTurns        atomic.Uint64
	audioChunks      atomic.Uint64
	toolResponses    atomic.Uint64
}

// NewHub creates a new session hub.
func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]*Session),
	}
}

// RegisterRoutes registers the session websocket endpoint on a Fiber
// app.
func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Use("/live", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/live", websocket.New(h.handleSession))
}

// handleSession owns one console connection for its lifetime.
func (h *Hub) handleSession(c *websocket.Conn) {
	session := &Session{
		ID:        uuid.NewString(),
		Conn:      c,
		Connected: time.Now(),
		lastSeen:  time.Now(),
	}

	h.mu.Lock()
	h.sessions[session.ID] = session
	count := len(h.sessions)
	h.mu.Unlock()
	log.Info("livesim: session connected", "session", session.ID, "total", count)

	defer func() {
		h.mu.Lock()
		delete(h.sessions, session.ID)
		count := len(h.sessions)
		h.mu.Unlock()
		log.Info("livesim: session disconnected", "session", session.ID, "total", count)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			log.Debug("livesim: read ended", "session", session.ID, "error", err)
			return
		}

		session.touch()
		h.messagesReceived.Add(1)

		frame, err := ParseClientFrame(data)
		if err != nil {
			log.Warn("livesim: bad frame", "session", session.ID, "error", err)
			continue
		}
		if !h.handleFrame(session, frame) {
			return
		}
	}
}

// handleFrame reacts to one decoded frame. It returns false when the
// connection should be dropped.
func (h *Hub) handleFrame(s *Session, frame *ClientFrame) bool {
	// The first frame of a session must be setup.
	if !s.isConfigured() && frame.Setup == nil {
		log.Warn("livesim: frame before setup, closing", "session", s.ID)
		return false
	}

	switch {
	case frame.Setup != nil:
		s.setConfigured(frame.Setup.Model)
		h.setups.Add(1)
		log.Info("livesim: session configured",
			"session", s.ID,
			"model", frame.Setup.Model,
			"voice", frame.Setup.Voice,
			"declarations", frame.Setup.Declarations,
			"search", frame.Setup.GoogleSearch,
		)
		h.send(s, SetupCompleteFrame())

	case len(frame.Turns) > 0:
		h.textTurns.Add(1)
		// Echo the last turn back as a closed model turn.
		reply := "Heard: " + frame.Turns[len(frame.Turns)-1]
		h.send(s, TextTurnFrame(reply, true))

	case frame.MediaChunks > 0:
		h.audioChunks.Add(uint64(frame.MediaChunks))

	case len(frame.Responses) > 0:
		s.recordResponses(frame.Responses)
		h.toolResponses.Add(uint64(len(frame.Responses)))
		log.Info("livesim: acknowledgments received",
			"session", s.ID,
			"count", len(frame.Responses),
		)
	}
	return true
}

func (h *Hub) send(s *Session, frame any) {
	if err := s.Send(frame); err != nil {
		log.Warn("livesim: send failed", "session", s.ID, "error", err)
		return
	}
	h.messagesSent.Add(1)
}

// SendToolCalls delivers an invocation batch to one session, filling
// in missing ids. It returns the ids used.
func (h *Hub) SendToolCalls(sessionID string, calls []ToolCall) ([]string, error) {
	session, err := h.session(sessionID)
	if err != nil {
		return nil, err
	}

	ids := fillIDs(calls)
	if err := session.Send(ToolCallFrame(calls)); err != nil {
		return nil, err
	}
	h.messagesSent.Add(1)
	return ids, nil
}

// SendCancellation tells one session to abandon the given invocation
// ids.
func (h *Hub) SendCancellation(sessionID string, ids []string) error {
	session, err := h.session(sessionID)
	if err != nil {
		return err
	}
	if err := session.Send(CancellationFrame(ids)); err != nil {
		return err
	}
	h.messagesSent.Add(1)
	return nil
}

// BroadcastToolCalls delivers an invocation batch to every session.
func (h *Hub) BroadcastToolCalls(calls []ToolCall) []string {
	ids := fillIDs(calls)
	frame := ToolCallFrame(calls)

	for _, session := range h.Sessions() {
		if err := session.Send(frame); err != nil {
			log.Warn("livesim: broadcast failed", "session", session.ID, "error", err)
			continue
		}
		h.messagesSent.Add(1)
	}
	return ids
}

// BroadcastCancellation tells every session to abandon the given ids.
func (h *Hub) BroadcastCancellation(ids []string) {
	frame := CancellationFrame(ids)
	for _, session := range h.Sessions() {
		if err := session.Send(frame); err != nil {
			log.Warn("livesim: broadcast failed", "session", session.ID, "error", err)
			continue
		}
		h.messagesSent.Add(1)
	}
}

func fillIDs(calls []ToolCall) []string {
	ids := make([]string, len(calls))
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = uuid.NewString()
		}
		ids[i] = calls[i].ID
	}
	return ids
}

func (h *Hub) session(id string) (*Session, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	session, ok := h.sessions[id]
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "session not connected")
	}
	return session, nil
}

// Sessions returns all connected sessions.
func (h *Hub) Sessions() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// SessionCount returns the number of connected sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Stats contains hub statistics.
type Stats struct {
	SessionCount     int    `json:"session_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	Setups           uint64 `json:"setups"`
	TextTurns        uint64 `json:"text_turns"`
	AudioChunks      uint64 `json:"audio_chunks"`
	ToolResponses    uint64 `json:"tool_responses"`
}

// GetStats returns hub statistics.
func (h *Hub) GetStats() Stats {
	return Stats{
		SessionCount:     h.SessionCount(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		Setups:           h.setups.Load(),
		TextTurns:        h.textTurns.Load(),
		AudioChunks:      h.audioChunks.Load(),
		ToolResponses:    h.toolResponses.Load(),
	}
}

// SessionInfo contains info about a connected session.
type SessionInfo struct {
	ID         string    `json:"id"`
	Model      string    `json:"model"`
	Configured bool      `json:"configured"`
	Connected  time.Time `json:"connected"`
	LastSeen   time.Time `json:"last_seen"`
}

// GetSessionInfos returns info about all connected sessions.
func (h *Hub) GetSessionInfos() []SessionInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(h.sessions))
	for _, s := range h.sessions {
		s.mu.Lock()
		infos = append(infos, SessionInfo{
			ID:         s.ID,
			Model:      s.model,
			Configured: s.configured,
			Connected:  s.Connected,
			LastSeen:   s.lastSeen,
		})
		s.mu.Unlock()
	}
	return infos
}

// RegisterAPIRoutes registers REST routes for driving sessions.
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	// Inject an invocation batch into every session.
	api.Post("/calls", func(c *fiber.Ctx) error {
		var body struct {
			Calls []ToolCall `json:"calls"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
		if len(body.Calls) == 0 {
			return c.Status(400).JSON(fiber.Map{"error": "calls is required"})
		}

		ids := h.BroadcastToolCalls(body.Calls)
		return c.JSON(fiber.Map{"status": "sent", "ids": ids})
	})

	// Cancel invocations in every session.
	api.Post("/cancel", func(c *fiber.Ctx) error {
		var body struct {
			IDs []string `json:"ids"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}

		h.BroadcastCancellation(body.IDs)
		return c.JSON(fiber.Map{"status": "sent"})
	})

	sessions := api.Group("/sessions")

	// List connected sessions
	sessions.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"sessions": h.GetSessionInfos(),
			"count":    h.SessionCount(),
		})
	})

	// Get hub stats
	sessions.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})

	// Inject an invocation batch into one session
	sessions.Post("/:id/calls", func(c *fiber.Ctx) error {
		var body struct {
			Calls []ToolCall `json:"calls"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
		if len(body.Calls) == 0 {
			return c.Status(400).JSON(fiber.Map{"error": "calls is required"})
		}

		ids, err := h.SendToolCalls(c.Params("id"), body.Calls)
		if err != nil {
			return c.Status(404).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "sent", "ids": ids})
	})

	// Cancel invocations in one session
	sessions.Post("/:id/cancel", func(c *fiber.Ctx) error {
		var body struct {
			IDs []string `json:"ids"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}

		if err := h.SendCancellation(c.Params("id"), body.IDs); err != nil {
			return c.Status(404).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "sent"})
	})

	// List acknowledgments one session has sent
	sessions.Get("/:id/responses", func(c *fiber.Ctx) error {
		session, err := h.session(c.Params("id"))
		if err != nil {
			return c.Status(404).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"responses": session.Responses()})
	})
}
