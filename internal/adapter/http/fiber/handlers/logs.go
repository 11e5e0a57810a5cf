package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gridwatt/csms-core/internal/ports"
)

// LogHandler receives bulk log deliveries from bridges that cannot speak
// the protocol directly.
type LogHandler struct {
	ingest ports.LogIngestService
	log    *zap.Logger
}

func NewLogHandler(ingest ports.LogIngestService, log *zap.Logger) *LogHandler {
	return &LogHandler{ingest: ingest, log: log}
}

type ingestReq struct {
	Batches []ports.LogBatch `json:"batches"`
}

func (h *LogHandler) Ingest(c *fiber.Ctx) error {
	var req ingestReq
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	updated, err := h.ingest.Ingest(c.Context(), req.Batches)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"updated": updated})
}
