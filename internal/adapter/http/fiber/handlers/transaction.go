package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gridwatt/csms-core/internal/domain"
	"github.com/gridwatt/csms-core/internal/ports"
)

// TransactionHandler exposes read-only access to settlement records.
type TransactionHandler struct {
	repo ports.TransactionRepository
	log  *zap.Logger
}

func NewTransactionHandler(repo ports.TransactionRepository, log *zap.Logger) *TransactionHandler {
	return &TransactionHandler{repo: repo, log: log}
}

func (h *TransactionHandler) GetByReference(c *fiber.Ctx) error {
	tx, err := h.repo.FindByReference(c.Context(), c.Params("reference"))
	if err != nil {
		return err
	}
	if tx == nil {
		return domain.ErrNotFound
	}
	return c.JSON(tx)
}

func (h *TransactionHandler) GetBySession(c *fiber.Ctx) error {
	tx, err := h.repo.FindBySession(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	if tx == nil {
		return domain.ErrNotFound
	}
	return c.JSON(tx)
}

func (h *TransactionHandler) ListByAccount(c *fiber.Ctx) error {
	ref, ok := domain.ParseAccountRef(c.Params("ref"))
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "invalid account reference")
	}

	txs, err := h.repo.FindByAccount(c.Context(), ref.Kind, ref.ID)
	if err != nil {
		return err
	}
	return c.JSON(txs)
}
