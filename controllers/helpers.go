package controller

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"taskflow/services"
	"taskflow/utils"
)

var kindStatus = map[services.Kind]int{
	services.KindNotFound:         fiber.StatusNotFound,
	services.KindForbidden:        fiber.StatusForbidden,
	services.KindConflict:         fiber.StatusConflict,
	services.KindLimitExceeded:    fiber.StatusTooManyRequests,
	services.KindInvalidInput:     fiber.StatusBadRequest,
	services.KindInvalidOperation: fiber.StatusUnprocessableEntity,
	services.KindUnauthorized:     fiber.StatusUnauthorized,
}

// respondError renders a service error. Untyped errors are internal: they are
// logged and reported, and the client gets a generic message.
func respondError(c *fiber.Ctx, log *logrus.Entry, err error) error {
	if status, ok := kindStatus[services.KindOf(err)]; ok {
		return utils.ErrorResponse(c, status, err.Error(), nil)
	}
	utils.LogError(log, "internal", err, map[string]interface{}{
		"method": c.Method(),
		"path":   c.Path(),
	})
	return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Internal server error", nil)
}

func paramID(c *fiber.Ctx, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
