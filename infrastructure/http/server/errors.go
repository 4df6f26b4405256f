package server

import (
	"campus-chat/errors"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id"`
}

func (s *Server) writeError(c *fiber.Ctx, err error) error {
	status := errors.HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
		message = "internal error"
	}
	return c.Status(status).JSON(errorResponse{
		Error:     message,
		Code:      errors.CodeOf(err),
		RequestID: c.GetRespHeader(fiber.HeaderXRequestID),
	})
}

// handleFiberError renders the router's own failures, such as unknown routes,
// with the same envelope.
func (s *Server) handleFiberError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if !stderrors.As(err, &fe) {
		return s.writeError(c, err)
	}
	return c.Status(fe.Code).JSON(errorResponse{
		Error:     fe.Message,
		Code:      strings.ReplaceAll(strings.ToLower(http.StatusText(fe.Code)), " ", "_"),
		RequestID: c.GetRespHeader(fiber.HeaderXRequestID),
	})
}
