package transfer

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/dialpay/dial_pay/internal/registry"
	"github.com/dialpay/dial_pay/internal/settlement"
)

// Handler exposes the transfer endpoint.
type Handler struct {
	service *Service
}

// NewHandler constructs a transfer handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	ToPhone   string `json:"to_phone"`
	FromPhone string `json:"from_phone"`
	Amount    string `json:"amount"`
	Token     string `json:"token"`
}

// Send settles a phone-to-phone transfer.
func (h *Handler) Send(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	outcome, err := h.service.HandleTransfer(c.UserContext(), Input{
		ToPhone:   req.ToPhone,
		FromPhone: req.FromPhone,
		Amount:    req.Amount,
		Token:     req.Token,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput),
			errors.Is(err, settlement.ErrInvalidAmount),
			errors.Is(err, settlement.ErrUnsupportedToken):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, registry.ErrNotRegistered):
			return fiber.NewError(http.StatusNotFound, "recipient not registered")
		case errors.Is(err, settlement.ErrReverted):
			return fiber.NewError(http.StatusUnprocessableEntity, "transfer reverted on ledger")
		case errors.Is(err, settlement.ErrTimeout):
			// Funds may or may not have moved; never report this as a plain failure.
			return fiber.NewError(http.StatusGatewayTimeout, "transfer status unknown, please check the ledger")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"transaction_id": outcome.TxID,
		"to_address":     outcome.ToAddress,
		"amount":         outcome.Amount,
		"token":          outcome.Token,
		"warnings":       outcome.Warnings(),
	})
}
