package handler

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/iranverse/avatar-engine/internal/domain"
	"github.com/iranverse/avatar-engine/internal/session"
)

// SessionManager is the session registry the handler drives.
type SessionManager interface {
	Start(ctx context.Context, userID string, gender domain.Gender) *session.Controller
	Get(id uuid.UUID) (*session.Controller, bool)
	HandleRaw(id uuid.UUID, raw []byte) error
	Retry(id uuid.UUID) error
	Skip(id uuid.UUID) error
	Cancel(id uuid.UUID) error
}

// SessionHandler handles creation session lifecycle requests.
type SessionHandler struct {
	manager SessionManager
	logger  *slog.Logger
}

func NewSessionHandler(manager SessionManager, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		manager: manager,
		logger:  logger,
	}
}

// CreateSessionRequest request for starting a creation session
type CreateSessionRequest struct {
	UserID string `json:"user_id"`
	Gender string `json:"gender"`
}

// Create POST /v1/sessions - start a creation session
// @Summary Start avatar creation session
// @Description Starts a session driving the embedded avatar-creation surface
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body CreateSessionRequest true "Session start request"
// @Success 201 {object} domain.SessionSnapshot
// @Failure 400 {object} domain.AppError
// @Router /v1/sessions [post]
func (h *SessionHandler) Create(c *fiber.Ctx) error {
	var req CreateSessionRequest

	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return domain.ErrBadRequest
	}

	ctrl := h.manager.Start(c.UserContext(), req.UserID, domain.NormalizeGender(req.Gender))

	h.logger.Info("creation session started",
		"session_id", ctrl.ID(),
		"user_id", req.UserID,
	)

	return c.Status(fiber.StatusCreated).JSON(ctrl.Snapshot())
}

// Get GET /v1/sessions/:id - current session state
// @Summary Get session state
// @Tags sessions
// @Produce json
// @Success 200 {object} domain.SessionSnapshot
// @Failure 404 {object} domain.AppError
// @Router /v1/sessions/{id} [get]
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	ctrl, ok := h.manager.Get(id)
	if !ok {
		return domain.ErrSessionNotFound
	}

	return c.JSON(ctrl.Snapshot())
}

// Message POST /v1/sessions/:id/messages - relay one raw channel message
// over HTTP instead of the websocket. The body is passed to the session
// untouched; whatever the creation surface produced is what the session
// sees.
// @Summary Relay a creation-surface message
// @Tags sessions
// @Accept json
// @Success 202
// @Failure 404 {object} domain.AppError
// @Router /v1/sessions/{id}/messages [post]
func (h *SessionHandler) Message(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	raw := make([]byte, len(c.Body()))
	copy(raw, c.Body())

	if err := h.manager.HandleRaw(id, raw); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusAccepted)
}

// Retry POST /v1/sessions/:id/retry - recover from Error or TimedOut
// @Summary Retry a failed session
// @Tags sessions
// @Success 202
// @Failure 404 {object} domain.AppError
// @Router /v1/sessions/{id}/retry [post]
func (h *SessionHandler) Retry(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	if err := h.manager.Retry(id); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusAccepted)
}

// Skip POST /v1/sessions/:id/skip - complete with the fallback avatar
// @Summary Skip creation and use the default avatar
// @Tags sessions
// @Success 202
// @Failure 404 {object} domain.AppError
// @Router /v1/sessions/{id}/skip [post]
func (h *SessionHandler) Skip(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	if err := h.manager.Skip(id); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusAccepted)
}

// Delete DELETE /v1/sessions/:id - cancel a session
// @Summary Cancel a session
// @Tags sessions
// @Success 204
// @Failure 404 {object} domain.AppError
// @Router /v1/sessions/{id} [delete]
func (h *SessionHandler) Delete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	if err := h.manager.Cancel(id); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}
