package history

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/dialpay/dial_pay/internal/registry"
	"github.com/dialpay/dial_pay/internal/settlement"
)

const defaultLimit = 10

// Handler exposes the history endpoint.
type Handler struct {
	aggregator *Aggregator
}

// NewHandler constructs a history handler.
func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{aggregator: aggregator}
}

// Query returns the transfers touching an identity hash or wallet address.
func (h *Handler) Query(c *fiber.Ctx) error {
	ref := c.Params("ref")
	if ref == "" {
		return fiber.NewError(http.StatusBadRequest, "missing identity hash or wallet address")
	}

	limit := defaultLimit
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return fiber.NewError(http.StatusBadRequest, "invalid limit")
		}
		limit = parsed
	}

	records, err := h.aggregator.Query(c.UserContext(), ref, limit)
	if err != nil {
		if errors.Is(err, registry.ErrNotRegistered) {
			return fiber.NewError(http.StatusNotFound, "no registration for wallet address")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	out := make([]fiber.Map, 0, len(records))
	for _, rec := range records {
		out = append(out, fiber.Map{
			"transaction_id": rec.TxID,
			"direction":      rec.Direction,
			"from_phone":     rec.FromPhone,
			"to_phone":       rec.ToPhone,
			"amount":         settlement.FromBaseUnits(rec.Amount).String(),
			"token":          rec.Token,
			"timestamp":      rec.Timestamp,
		})
	}

	return c.JSON(fiber.Map{"ref": ref, "transfers": out})
}
