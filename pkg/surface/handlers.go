package surface

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/Robert54/live-api-web-console/pkg/hub"
)

// handleState returns the current display state frame.
func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.frame("state"))
}

// handleStats returns the surface counters.
func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.GetStats())
}

// handleLogs returns the recent log entries.
func (s *Server) handleLogs(c *fiber.Ctx) error {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	return c.JSON(s.logs)
}

// handleHealth reports liveness.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"uptime": s.GetStats().Uptime,
	})
}

// SayRequest is the request body for sending text into the session.
type SayRequest struct {
	Text string `json:"text"`
}

// handleSay forwards dashboard text input to the live session.
func (s *Server) handleSay(c *fiber.Ctx) error {
	var req SayRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "text is required",
		})
	}

	if s.OnSay == nil {
		return c.Status(503).JSON(fiber.Map{
			"error": "session not connected",
		})
	}
	if err := s.OnSay(req.Text); err != nil {
		return c.Status(502).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	s.countMu.Lock()
	s.messagesSent++
	s.countMu.Unlock()

	s.AddLog("info", "say: "+req.Text)
	return c.JSON(fiber.Map{"sent": true})
}

// handleStateWS feeds display state frames to a dashboard.
func (s *Server) handleStateWS(c *websocket.Conn) {
	hub.NewClient(s.stateHub, c).Run()
}

// handleLogsWS feeds log entries to a dashboard.
func (s *Server) handleLogsWS(c *websocket.Conn) {
	hub.NewClient(s.logHub, c).Run()
}
