package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/wallet-pass-service/internal/api/dto"
	"github.com/spec-kit/wallet-pass-service/internal/auth"
	"github.com/spec-kit/wallet-pass-service/internal/passkit"
	"github.com/spec-kit/wallet-pass-service/internal/service"
	apperrors "github.com/spec-kit/wallet-pass-service/pkg/util/errorutil"
)

// PassKitHandler serves the wallet web-service callbacks under /v1/api/:bid/v1.
type PassKitHandler struct {
	passes *service.PassKitService
}

// NewPassKitHandler constructs handler.
func NewPassKitHandler(passes *service.PassKitService) *PassKitHandler {
	return &PassKitHandler{passes: passes}
}

// Register handles POST /devices/:deviceId/registrations/:passType/:serial.
func (h *PassKitHandler) Register(c *fiber.Ctx) error {
	customer, ok := auth.CustomerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("unauthorized")
	}
	var req dto.RegisterDeviceRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	created, err := h.passes.RegisterDevice(c.UserContext(), customer, c.Params("deviceId"), c.Params("passType"), req.PushToken)
	if err != nil {
		return err
	}
	if created {
		return c.SendStatus(http.StatusCreated)
	}
	return c.SendStatus(http.StatusOK)
}

// Unregister handles DELETE /devices/:deviceId/registrations/:passType/:serial.
func (h *PassKitHandler) Unregister(c *fiber.Ctx) error {
	customer, ok := auth.CustomerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("unauthorized")
	}
	if err := h.passes.UnregisterDevice(c.UserContext(), customer, c.Params("deviceId"), c.Params("passType")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusOK)
}

// UpdatedSerials handles GET /devices/:deviceId/registrations/:passType.
func (h *PassKitHandler) UpdatedSerials(c *fiber.Ctx) error {
	update, err := h.passes.UpdatedSerials(c.UserContext(), c.Params("bid"), c.Params("deviceId"), c.Params("passType"), c.Query("passesUpdatedSince"))
	if err != nil {
		return err
	}
	if update == nil {
		return c.SendStatus(http.StatusNoContent)
	}
	return c.JSON(dto.SerialsResponse{SerialNumbers: update.SerialNumbers, LastUpdated: update.LastUpdated})
}

// LatestPass handles GET /passes/:passType/:serial.
func (h *PassKitHandler) LatestPass(c *fiber.Ctx) error {
	customer, ok := auth.CustomerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("unauthorized")
	}
	var since time.Time
	if raw := c.Get(fiber.HeaderIfModifiedSince); raw != "" {
		if parsed, err := http.ParseTime(raw); err == nil {
			since = parsed
		}
	}

	issued, err := h.passes.LatestPass(c.UserContext(), customer, c.Params("passType"), since)
	if errors.Is(err, service.ErrNotModified) {
		return c.SendStatus(http.StatusNotModified)
	}
	if err != nil {
		return err
	}
	return sendPass(c, issued)
}

// Log handles POST /log.
func (h *PassKitHandler) Log(c *fiber.Ctx) error {
	var req dto.LogRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	h.passes.LogMessages(c.Params("bid"), req.Logs)
	return c.SendStatus(http.StatusOK)
}

func sendPass(c *fiber.Ctx, issued *passkit.Issued) error {
	c.Set(fiber.HeaderContentType, passkit.MIMEType)
	if !issued.LastModified.IsZero() {
		c.Set(fiber.HeaderLastModified, issued.LastModified.UTC().Format(http.TimeFormat))
	}
	return c.Status(http.StatusOK).Send(issued.Data)
}
