// Package surface provides the console dashboard: REST access to the
// display state, websocket feeds for state and logs, and static asset
// serving. It implements the renderer the bridge draws charts on.
package surface

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/Robert54/live-api-web-console/internal/log"
	"github.com/Robert54/live-api-web-console/pkg/bridge"
	"github.com/Robert54/live-api-web-console/pkg/display"
	"github.com/Robert54/live-api-web-console/pkg/hub"
)

// The surface is the renderer the bridge draws charts on.
var _ bridge.Renderer = (*Server)(nil)

// maxLogEntries bounds the in-memory log ring served to dashboards.
const maxLogEntries = 200

// StateFrame is the shape pushed to dashboards and returned by the
// state endpoint. Type is "snapshot" on join and "state" afterwards.
type StateFrame struct {
	Type       string            `json:"type"`
	State      display.State     `json:"state"`
	Inspection bool              `json:"inspection"`
	Chart      display.ChartSpec `json:"chart,omitempty"`
}

// LogEntry represents a log line for the dashboard.
type LogEntry struct {
	Time    string `json:"time"`
	Level   string `json:"level"` // debug, info, warn, error
	Message string `json:"message"`
}

// Stats summarizes what the surface has seen since it started.
type Stats struct {
	Uptime         string `json:"uptime"`
	Mode           string `json:"mode"`
	ChartsRendered int    `json:"charts_rendered"`
	Inspections    int    `json:"inspections"`
	StateChanges   int    `json:"state_changes"`
	MessagesSent   int    `json:"messages_sent"`
	Errors         int    `json:"errors"`
	StateClients   int    `json:"state_clients"`
	LogClients     int    `json:"log_clients"`
}

// Server is the dashboard server.
type Server struct {
	app  *fiber.App
	addr string

	started time.Time

	// Display state mirror, fed by the bridge callbacks
	state      display.State
	inspection bool
	chart      display.ChartSpec
	stateMu    sync.RWMutex

	// Log buffer (last maxLogEntries entries)
	logs   []LogEntry
	logsMu sync.RWMutex

	// Counters
	charts       int
	inspections  int
	stateChanges int
	messagesSent int
	errors       int
	countMu      sync.Mutex

	// Hubs for websocket broadcast
	stateHub *hub.Hub
	logHub   *hub.Hub

	// OnSay, when set, forwards dashboard text input into the session.
	OnSay func(text string) error
}

// NewServer creates a dashboard server listening on addr. staticDir is
// served at the root; pass "" to disable static assets.
func NewServer(addr, staticDir string) *Server {
	s := &Server{
		addr:    addr,
		started: time.Now(),
		logs:    make([]LogEntry, 0, maxLogEntries),
	}
	s.stateHub = hub.New("state", s.snapshotFrame)
	s.logHub = hub.New("logs", s.snapshotLogs)

	app := fiber.New(fiber.Config{
		AppName:               "Live Console",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Get("/stats", s.handleStats)
	api.Get("/logs", s.handleLogs)
	api.Get("/health", s.handleHealth)
	api.Post("/say", s.handleSay)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/state", websocket.New(s.handleStateWS))
	app.Get("/ws/logs", websocket.New(s.handleLogsWS))

	// Static files
	if staticDir != "" {
		app.Static("/", staticDir)
	}

	s.app = app
	return s
}

// Start starts the hubs and serves until Shutdown. It blocks.
func (s *Server) Start() error {
	go s.stateHub.Run()
	go s.logHub.Run()

	log.Info("surface: dashboard listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("surface: server stopped", "error", err)
		}
	}()
}

// Shutdown gracefully stops the server and disconnects every
// dashboard.
func (s *Server) Shutdown() error {
	s.stateHub.Stop()
	s.logHub.Stop()
	return s.app.Shutdown()
}

// Render stores the parsed chart and pushes it to dashboards. It
// satisfies the renderer the bridge draws on.
func (s *Server) Render(spec display.ChartSpec) error {
	s.stateMu.Lock()
	s.chart = spec
	s.stateMu.Unlock()

	s.countMu.Lock()
	s.charts++
	s.countMu.Unlock()

	s.broadcastState()
	return nil
}

// SetState mirrors the bridge display state and pushes it to
// dashboards.
func (s *Server) SetState(st display.State) {
	s.stateMu.Lock()
	if st.Mode != display.ModeChart {
		s.chart = nil
	}
	s.state = st
	s.stateMu.Unlock()

	s.countMu.Lock()
	s.stateChanges++
	if st.Mode == display.ModeInspection {
		s.inspections++
	}
	s.countMu.Unlock()

	s.broadcastState()
}

// SetInspection mirrors the inspection presence flag.
func (s *Server) SetInspection(present bool) {
	s.stateMu.Lock()
	changed := s.inspection != present
	s.inspection = present
	s.stateMu.Unlock()

	if changed {
		s.broadcastState()
	}
}

// State returns the current frame as served to dashboards.
func (s *Server) State() StateFrame {
	return s.frame("state")
}

// AddLog adds a log entry to the ring and broadcasts it.
func (s *Server) AddLog(level, message string) {
	entry := LogEntry{
		Time:    time.Now().Format("15:04:05"),
		Level:   level,
		Message: message,
	}

	s.logsMu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogEntries {
		s.logs = s.logs[1:]
	}
	s.logsMu.Unlock()

	s.logHub.BroadcastJSON(fiber.Map{"type": "log", "entry": entry})
}

// RecordError counts an error and surfaces it on the dashboard log.
func (s *Server) RecordError(err error) {
	s.countMu.Lock()
	s.errors++
	s.countMu.Unlock()

	s.AddLog("error", err.Error())
}

// GetStats assembles the current counters.
func (s *Server) GetStats() Stats {
	s.stateMu.RLock()
	mode := s.state.Mode.String()
	s.stateMu.RUnlock()

	s.countMu.Lock()
	defer s.countMu.Unlock()
	return Stats{
		Uptime:         time.Since(s.started).Round(time.Second).String(),
		Mode:           mode,
		ChartsRendered: s.charts,
		Inspections:    s.inspections,
		StateChanges:   s.stateChanges,
		MessagesSent:   s.messagesSent,
		Errors:         s.errors,
		StateClients:   s.stateHub.ClientCount(),
		LogClients:     s.logHub.ClientCount(),
	}
}

// frame assembles a StateFrame of the given type under the state lock.
func (s *Server) frame(typ string) StateFrame {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return StateFrame{
		Type:       typ,
		State:      s.state,
		Inspection: s.inspection,
		Chart:      s.chart,
	}
}

func (s *Server) broadcastState() {
	s.stateHub.BroadcastJSON(s.frame("state"))
}

// snapshotFrame is the state hub's join snapshot.
func (s *Server) snapshotFrame() []byte {
	data, err := json.Marshal(s.frame("snapshot"))
	if err != nil {
		return nil
	}
	return data
}

// snapshotLogs is the log hub's join snapshot: the whole ring in one
// frame.
func (s *Server) snapshotLogs() []byte {
	s.logsMu.RLock()
	entries := append([]LogEntry{}, s.logs...)
	s.logsMu.RUnlock()

	data, err := json.Marshal(fiber.Map{"type": "logs", "entries": entries})
	if err != nil {
		return nil
	}
	return data
}
