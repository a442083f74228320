package handlers

import (
	"mime"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/wallet-pass-service/internal/service"
	apperrors "github.com/spec-kit/wallet-pass-service/pkg/util/errorutil"
)

// GenerateHandler serves the one-shot pass download used by internal tools.
// Failures are answered in plain text, including the cause of 500s.
type GenerateHandler struct {
	passes *service.PassKitService
}

// NewGenerateHandler constructs handler.
func NewGenerateHandler(passes *service.PassKitService) *GenerateHandler {
	return &GenerateHandler{passes: passes}
}

// Issue handles GET /v1/pass?bid=&cid=.
func (h *GenerateHandler) Issue(c *fiber.Ctx) error {
	bid, cid := c.Query("bid"), c.Query("cid")
	issued, err := h.passes.IssuePass(c.UserContext(), bid, cid)
	if err != nil {
		de := apperrors.ToDomainError(err)
		body := de.Message
		if de.HTTPStatus >= http.StatusInternalServerError {
			body = err.Error()
		}
		return c.Status(de.HTTPStatus).SendString(body)
	}
	c.Set(fiber.HeaderContentDisposition, attachment(issued.Serial+".pkpass"))
	return sendPass(c, issued)
}

func attachment(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}
