package routes

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/dialpay/dial_pay/internal/chain"
	"github.com/dialpay/dial_pay/internal/phonehash"
	"github.com/dialpay/dial_pay/internal/registry"
)

type registrationRequest struct {
	Phone         string `json:"phone"`
	WalletAddress string `json:"wallet_address"`
	Metadata      string `json:"metadata"`
}

// RegisterDevRegistrationRoute seeds registrations into the simulated chain.
// Development only: real enrollment happens in an external flow writing to
// the remote store.
func RegisterDevRegistrationRoute(api fiber.Router, sim *chain.SimChain, hasher *phonehash.Hasher, schemaID string) {
	api.Post("/registrations", func(c *fiber.Ctx) error {
		var req registrationRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if req.Phone == "" || req.WalletAddress == "" {
			return fiber.NewError(http.StatusBadRequest, "phone and wallet_address are required")
		}

		hash := hasher.HashPhone(req.Phone)
		payload := registry.EncodeRegistration(registry.Registration{
			IdentityHash:  hash,
			WalletAddress: req.WalletAddress,
			Metadata:      req.Metadata,
			RegisteredAt:  time.Now().UTC(),
		})
		chain.SeedEntry(sim, schemaID, sim.Signer(), hash, chain.EntryRawEncoded, payload)

		return c.Status(http.StatusCreated).JSON(fiber.Map{
			"identity_hash":  hash,
			"wallet_address": req.WalletAddress,
		})
	})
}
