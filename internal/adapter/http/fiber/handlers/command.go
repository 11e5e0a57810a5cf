package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gridwatt/csms-core/internal/ports"
)

// CommandHandler relays remote commands to the device bridge and returns the
// bridge's JSON answer verbatim.
type CommandHandler struct {
	bridge ports.BridgeClient
	log    *zap.Logger
}

func NewCommandHandler(bridge ports.BridgeClient, log *zap.Logger) *CommandHandler {
	return &CommandHandler{bridge: bridge, log: log}
}

type remoteStartReq struct {
	ChargePointID string `json:"cpId"`
	IdTag         string `json:"idTag"`
	ConnectorID   int    `json:"connectorId"`
}

func (h *CommandHandler) RemoteStart(c *fiber.Ctx) error {
	var req remoteStartReq
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.ConnectorID <= 0 {
		req.ConnectorID = 1
	}

	resp, err := h.bridge.RemoteStartTransaction(c.Context(), req.ChargePointID, req.IdTag, req.ConnectorID)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

type remoteStopReq struct {
	ChargePointID string `json:"cpId"`
	TransactionID int    `json:"transactionId"`
}

func (h *CommandHandler) RemoteStop(c *fiber.Ctx) error {
	var req remoteStopReq
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	resp, err := h.bridge.RemoteStopTransaction(c.Context(), req.ChargePointID, req.TransactionID)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}
