package web

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-laser/pkg/alert"
	"github.com/teslashibe/go-laser/pkg/hub"
	"github.com/teslashibe/go-laser/pkg/paths"
	"github.com/teslashibe/go-laser/pkg/session"
)

// SavePathRequest is the body of POST /save_path.
type SavePathRequest struct {
	Name string          `json:"name"`
	Path json.RawMessage `json:"path"`
}

func errorJSON(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func ok(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleIndex serves the browser client page
func (s *Server) handleIndex(c *fiber.Ctx) error {
	path := filepath.Join(s.cfg.WebDir, IndexFile)
	if _, err := os.Stat(path); err != nil {
		return c.Status(fiber.StatusNotFound).SendString(IndexFile + " not found")
	}
	return c.SendFile(path)
}

// handleOffer answers a WebRTC offer and opens a tracking session
func (s *Server) handleOffer(c *fiber.Ctx) error {
	var offer session.Description
	if err := json.Unmarshal(c.Body(), &offer); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}

	_, answer, err := s.deps.Sessions.Open(c.UserContext(), offer)
	switch {
	case err == nil:
		return c.JSON(answer)
	case errors.Is(err, session.ErrSessionBusy):
		return errorJSON(c, fiber.StatusConflict, err)
	case errors.Is(err, session.ErrNegotiation):
		s.logger.Warn("offer rejected", "error", err)
		return errorJSON(c, fiber.StatusBadRequest, err)
	default:
		s.logger.Error("open session", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, err)
	}
}

// handleSavePath stores a drawn path
func (s *Server) handleSavePath(c *fiber.Ctx) error {
	var req SavePathRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}

	if _, err := s.deps.Paths.Save(c.UserContext(), req.Name, req.Path); err != nil {
		if errors.Is(err, paths.ErrInvalidPoints) {
			return errorJSON(c, fiber.StatusBadRequest, err)
		}
		s.logger.Error("save path", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, err)
	}
	return ok(c)
}

// handleGetPaths returns every saved path
func (s *Server) handleGetPaths(c *fiber.Ctx) error {
	entries, err := s.deps.Paths.List(c.UserContext())
	if err != nil {
		s.logger.Error("list paths", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(entries)
}

// handleSendAlert mails a detection alert
func (s *Server) handleSendAlert(c *fiber.Ctx) error {
	var a alert.Alert
	if err := json.Unmarshal(c.Body(), &a); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}

	err := s.deps.Alerts.Send(c.UserContext(), a)
	switch {
	case err == nil:
		return ok(c)
	case errors.Is(err, alert.ErrInvalidRecipient):
		return errorJSON(c, fiber.StatusBadRequest, err)
	case errors.Is(err, alert.ErrRateLimited):
		return errorJSON(c, fiber.StatusTooManyRequests, err)
	case errors.Is(err, alert.ErrNotConfigured):
		return errorJSON(c, fiber.StatusServiceUnavailable, err)
	default:
		return errorJSON(c, fiber.StatusInternalServerError, err)
	}
}

// handleStatus returns the current controller and session status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	if s.deps.Status == nil {
		return c.JSON(fiber.Map{})
	}
	return c.JSON(s.deps.Status())
}

// handleStatusWS sends a status snapshot, then streams hub events
func (s *Server) handleStatusWS(c *websocket.Conn) {
	if s.deps.Status != nil {
		msg, err := hub.NewEventMessage(hub.EventStatus, s.deps.Status())
		if err == nil {
			if err := c.WriteMessage(websocket.TextMessage, msg.Data); err != nil {
				return
			}
		}
	}
	if s.deps.Hub == nil {
		return
	}
	hub.NewClient(s.deps.Hub, c).Run(s.ctx)
}
