package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gridwatt/csms-core/internal/domain"
	"github.com/gridwatt/csms-core/internal/ports"
)

type SessionHandler struct {
	service ports.SessionService
	log     *zap.Logger
}

func NewSessionHandler(service ports.SessionService, log *zap.Logger) *SessionHandler {
	return &SessionHandler{service: service, log: log}
}

type startSessionReq struct {
	AccountRef  string `json:"accountRef"`
	Identifier  string `json:"chargePointIdentifier"`
	ConnectorID int    `json:"connectorId"`
	ServiceID   string `json:"serviceId,omitempty"`
}

func (h *SessionHandler) Start(c *fiber.Ctx) error {
	var req startSessionReq
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	ref, ok := domain.ParseAccountRef(req.AccountRef)
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "invalid account reference")
	}

	sess, err := h.service.Start(c.Context(), ref, req.Identifier, req.ConnectorID, req.ServiceID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(sess)
}

func (h *SessionHandler) Pause(c *fiber.Ctx) error {
	sess, err := h.service.Pause(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(sess)
}

func (h *SessionHandler) Resume(c *fiber.Ctx) error {
	sess, err := h.service.Resume(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(sess)
}

func (h *SessionHandler) Stop(c *fiber.Ctx) error {
	sess, err := h.service.Stop(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(sess)
}

type forceStopReq struct {
	Reason  string `json:"reason"`
	Note    string `json:"note,omitempty"`
	ActorID string `json:"actorId"`
}

// ForceStop is the admin stop path. It shares the settlement primitive with
// the watchdog but always records the acting admin.
func (h *SessionHandler) ForceStop(c *fiber.Ctx) error {
	var req forceStopReq
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Reason == "" {
		req.Reason = "Admin stop"
	}
	if req.ActorID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "actorId is required")
	}

	sess, err := h.service.ForceStop(c.Context(), c.Params("id"), req.Reason, req.Note, false, req.ActorID)
	if err != nil {
		return err
	}
	return c.JSON(sess)
}

func (h *SessionHandler) Get(c *fiber.Ctx) error {
	sess, err := h.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(sess)
}

func (h *SessionHandler) GetLiveByAccount(c *fiber.Ctx) error {
	ref, ok := domain.ParseAccountRef(c.Params("ref"))
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "invalid account reference")
	}

	sess, err := h.service.GetLiveByAccount(c.Context(), ref)
	if err != nil {
		return err
	}
	if sess == nil {
		return domain.ErrNotFound
	}
	return c.JSON(sess)
}

func (h *SessionHandler) GetHistoryByAccount(c *fiber.Ctx) error {
	ref, ok := domain.ParseAccountRef(c.Params("ref"))
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "invalid account reference")
	}

	sessions, err := h.service.ListHistoryByAccount(c.Context(), ref)
	if err != nil {
		return err
	}
	return c.JSON(sessions)
}

func (h *SessionHandler) ListLive(c *fiber.Ctx) error {
	sessions, err := h.service.ListLive(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(sessions)
}
