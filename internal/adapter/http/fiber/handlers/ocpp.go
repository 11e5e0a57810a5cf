package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	v16 "github.com/gridwatt/csms-core/internal/adapter/ocpp/v16"
)

// OCPPHandler exposes the protocol dispatcher over HTTP for bridges that
// deliver OCPP calls as plain JSON instead of a websocket session.
type OCPPHandler struct {
	dispatcher *v16.Handlers
	log        *zap.Logger
}

func NewOCPPHandler(dispatcher *v16.Handlers, log *zap.Logger) *OCPPHandler {
	return &OCPPHandler{dispatcher: dispatcher, log: log}
}

type protocolCallReq struct {
	ChargePointIdentifier string          `json:"chargePointIdentifier"`
	Action                string          `json:"action"`
	Payload               json.RawMessage `json:"payload"`
}

func (h *OCPPHandler) HandleCall(c *fiber.Ctx) error {
	var req protocolCallReq
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.ChargePointIdentifier == "" || req.Action == "" {
		return fiber.NewError(fiber.StatusBadRequest, "chargePointIdentifier and action are required")
	}
	if len(req.Payload) == 0 {
		req.Payload = json.RawMessage("{}")
	}

	response, err := h.dispatcher.HandleMessage(c.Context(), req.ChargePointIdentifier, req.Action, req.Payload)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"response": response})
}
