package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/assetscan/pkg/camera"
	"github.com/teslashibe/assetscan/pkg/hub"
	"github.com/teslashibe/assetscan/pkg/lookup"
	"github.com/teslashibe/assetscan/pkg/scan"
)

// StartRequest is the body of POST /api/scan/start.
type StartRequest struct {
	Facing camera.FacingMode `json:"facing"`
}

// TorchRequest is the body of POST /api/scan/torch. A missing On toggles.
type TorchRequest struct {
	On *bool `json:"on"`
}

// handleStatus returns the scanner snapshot
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.scanner.Snapshot())
}

func (s *Server) handleStart(c *fiber.Ctx) error {
	var req StartRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
	}
	if req.Facing != "" && !req.Facing.Valid() {
		return badRequest(c, "facing must be environment or user")
	}

	if err := s.scanner.Start(c.UserContext(), req.Facing); err != nil {
		return s.fail(c, "start", err)
	}
	return c.JSON(s.scanner.Snapshot())
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	if err := s.scanner.Stop(); err != nil {
		return s.fail(c, "stop", err)
	}
	return c.JSON(s.scanner.Snapshot())
}

func (s *Server) handleSwitch(c *fiber.Ctx) error {
	if err := s.scanner.SwitchCamera(c.UserContext()); err != nil {
		return s.fail(c, "switch", err)
	}
	return c.JSON(s.scanner.Snapshot())
}

func (s *Server) handleTorch(c *fiber.Ctx) error {
	var req TorchRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
	}

	var (
		on  bool
		err error
	)
	if req.On == nil {
		on, err = s.scanner.ToggleTorch()
	} else {
		on, err = s.scanner.SetTorch(*req.On)
	}
	if err != nil {
		return s.fail(c, "torch", err)
	}
	return c.JSON(fiber.Map{"torch": on})
}

func (s *Server) handleRetryLookup(c *fiber.Ctx) error {
	asset, err := s.scanner.RetryLookup(c.UserContext())
	if err != nil {
		return s.fail(c, "lookup", err)
	}
	return c.JSON(fiber.Map{"asset": asset})
}

// handleGetCameraConfig returns the capture configuration
func (s *Server) handleGetCameraConfig(c *fiber.Ctx) error {
	return c.JSON(s.cameras.GetConfig())
}

// handleSetCameraConfig updates the capture configuration; it applies
// from the next session on
func (s *Server) handleSetCameraConfig(c *fiber.Ctx) error {
	var params map[string]interface{}
	if err := c.BodyParser(&params); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := s.cameras.UpdateConfig(params); err != nil {
		return badRequest(c, err.Error())
	}
	return c.JSON(s.cameras.GetConfig())
}

func (s *Server) handleGetPresets(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"presets": camera.PresetNames(),
		"current": s.cameras.GetConfig(),
	})
}

// cameraConfigMessage tells clients the capture configuration changed.
type cameraConfigMessage struct {
	Type   string        `json:"type"`
	Config camera.Config `json:"config"`
}

func (s *Server) broadcastCameraConfig(cfg camera.Config) error {
	return s.events.BroadcastJSON(cameraConfigMessage{Type: "camera_config", Config: cfg})
}

// snapshotMessage greets a websocket client with the current state.
type snapshotMessage struct {
	Type     string        `json:"type"`
	Snapshot scan.Snapshot `json:"snapshot"`
}

// handleEventsWS streams scan events until the client disconnects
func (s *Server) handleEventsWS(conn *websocket.Conn) {
	greeting, err := hub.EncodeJSON(snapshotMessage{Type: "snapshot", Snapshot: s.scanner.Snapshot()})
	if err != nil {
		s.logger.Warn("snapshot encode failed", "error", err)
		conn.Close()
		return
	}
	hub.NewClient(s.events, conn, greeting).Run()
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func (s *Server) fail(c *fiber.Ctx, op string, err error) error {
	status := statusFor(err)
	body := fiber.Map{"error": err.Error()}
	if kind := camera.KindOf(err); kind != "" {
		body["kind"] = kind
	}
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "op", op, "error", err)
	} else {
		s.logger.Debug("request rejected", "op", op, "status", status, "error", err)
	}
	return c.Status(status).JSON(body)
}

// statusFor maps scanner errors to HTTP status codes.
func statusFor(err error) int {
	var apiErr *lookup.APIError
	switch {
	case errors.Is(err, scan.ErrSessionActive),
		errors.Is(err, scan.ErrSwitchInProgress),
		errors.Is(err, scan.ErrNotStreaming),
		errors.Is(err, scan.ErrStopped):
		return fiber.StatusConflict
	case errors.Is(err, scan.ErrClosed):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, scan.ErrNoResult):
		return fiber.StatusNotFound
	case errors.As(err, &apiErr):
		return fiber.StatusBadGateway
	case errors.Is(err, lookup.ErrLookupFailed):
		return fiber.StatusGatewayTimeout
	}

	switch camera.KindOf(err) {
	case camera.KindPermissionDenied:
		return fiber.StatusForbidden
	case camera.KindDeviceNotFound:
		return fiber.StatusNotFound
	case camera.KindDeviceBusy:
		return fiber.StatusConflict
	case camera.KindConstraintUnsatisfiable:
		return fiber.StatusUnprocessableEntity
	}
	return fiber.StatusInternalServerError
}
