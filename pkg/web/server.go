// Package web exposes the scanning session over HTTP and streams its
// events to websocket clients.
package web

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/assetscan/internal/log"
	"github.com/teslashibe/assetscan/pkg/camera"
	"github.com/teslashibe/assetscan/pkg/hub"
	"github.com/teslashibe/assetscan/pkg/lookup"
	"github.com/teslashibe/assetscan/pkg/scan"
)

// Scanner is the session surface the server drives. *scan.Controller
// implements it.
type Scanner interface {
	Start(ctx context.Context, facing camera.FacingMode) error
	Stop() error
	SwitchCamera(ctx context.Context) error
	SetTorch(on bool) (bool, error)
	ToggleTorch() (bool, error)
	RetryLookup(ctx context.Context) (*lookup.Asset, error)
	Snapshot() scan.Snapshot
}

// Server is the HTTP and websocket front of a scanner.
type Server struct {
	app     *fiber.App
	addr    string
	scanner Scanner
	cameras *camera.Manager
	events  *hub.Hub
	logger  *slog.Logger
}

// NewServer creates a server. events carries the scanner's events to
// websocket clients; feed it with Notifier.
func NewServer(addr string, scanner Scanner, cameras *camera.Manager, events *hub.Hub) *Server {
	if cameras == nil {
		cameras = camera.NewManager()
	}
	s := &Server{
		addr:    addr,
		scanner: scanner,
		cameras: cameras,
		events:  events,
		logger:  log.Component("web"),
	}
	cameras.OnConfigChange = s.broadcastCameraConfig

	app := fiber.New(fiber.Config{
		AppName:               "assetscan",
		DisableStartupMessage: true,
	})

	// CORS for the console running on another origin
	app.Use(cors.New())

	api := app.Group("/api")

	sc := api.Group("/scan")
	sc.Get("/status", s.handleStatus)
	sc.Post("/start", s.handleStart)
	sc.Post("/stop", s.handleStop)
	sc.Post("/switch", s.handleSwitch)
	sc.Post("/torch", s.handleTorch)
	sc.Post("/lookup/retry", s.handleRetryLookup)

	cam := api.Group("/camera")
	cam.Get("/config", s.handleGetCameraConfig)
	cam.Put("/config", s.handleSetCameraConfig)
	cam.Get("/presets", s.handleGetPresets)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// Notifier returns a scan.Notifier that broadcasts every event to the
// hub's clients.
func Notifier(h *hub.Hub) scan.Notifier {
	return scan.NotifierFunc(func(e scan.Event) {
		if err := h.BroadcastJSON(e); err != nil {
			log.Warn("event encode failed", "type", e.Type, "error", err)
		}
	})
}

// Start runs the event hub and serves until Shutdown.
func (s *Server) Start() error {
	go s.events.Run()
	s.logger.Info("listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// Shutdown stops serving and disconnects websocket clients.
func (s *Server) Shutdown() error {
	s.events.Stop()
	return s.app.Shutdown()
}
