package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/wallet-pass-service/internal/api/dto"
	"github.com/spec-kit/wallet-pass-service/internal/service"
)

// GoogleWalletHandler exposes save links for Google Wallet.
type GoogleWalletHandler struct {
	wallet *service.GoogleWalletService
}

// NewGoogleWalletHandler constructs handler.
func NewGoogleWalletHandler(wallet *service.GoogleWalletService) *GoogleWalletHandler {
	return &GoogleWalletHandler{wallet: wallet}
}

// SaveURL handles GET /v1/google/save?bid=&cid=.
func (h *GoogleWalletHandler) SaveURL(c *fiber.Ctx) error {
	link, err := h.wallet.SaveURL(c.UserContext(), c.Query("bid"), c.Query("cid"))
	if err != nil {
		return err
	}
	if c.QueryBool("redirect") {
		return c.Redirect(link, fiber.StatusFound)
	}
	return c.JSON(fiber.Map{"data": dto.SaveURLResponse{SaveURL: link}})
}
