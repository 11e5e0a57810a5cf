package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gridwatt/csms-core/internal/ports"
)

type ChargePointHandler struct {
	service ports.ChargePointService
	log     *zap.Logger
}

func NewChargePointHandler(service ports.ChargePointService, log *zap.Logger) *ChargePointHandler {
	return &ChargePointHandler{service: service, log: log}
}

func (h *ChargePointHandler) List(c *fiber.Ctx) error {
	filter := make(map[string]interface{})
	if status := c.Query("status"); status != "" {
		filter["status"] = status
	}
	if sim := c.Query("is_simulation"); sim != "" {
		filter["is_simulation"] = sim == "true"
	}

	cps, err := h.service.List(c.Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(cps)
}

func (h *ChargePointHandler) Get(c *fiber.Ctx) error {
	cp, err := h.service.GetByIdentifier(c.Context(), c.Params("identifier"))
	if err != nil {
		return err
	}
	return c.JSON(cp)
}

type statusPushReq struct {
	Identifier  string     `json:"identifier"`
	ConnectorID int        `json:"connectorId"`
	Status      string     `json:"status"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// PushStatus is the out-of-band status update used by bridges that bypass
// the full protocol flow.
func (h *ChargePointHandler) PushStatus(c *fiber.Ctx) error {
	var req statusPushReq
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Identifier == "" || req.Status == "" {
		return fiber.NewError(fiber.StatusBadRequest, "identifier and status are required")
	}
	if req.ConnectorID <= 0 {
		req.ConnectorID = 1
	}

	if err := h.service.PushStatus(c.Context(), req.Identifier, req.ConnectorID, req.Status, req.Timestamp); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusOK)
}
