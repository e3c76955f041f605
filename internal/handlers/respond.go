package handlers

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"euphony/internal/apperr"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// bind parses the request body into dst and validates it.
func bind(c *fiber.Ctx, v *validator.Validate, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return apperr.Wrap(apperr.KindValidation, "", "Invalid request body", err)
	}
	if err := v.Struct(dst); err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return apperr.Wrap(apperr.KindValidation, "", "Invalid request body", err)
		}
		errorMessages := make(map[string]string)
		for _, e := range validationErrors {
			errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
		return apperr.Validation("", errorMessages)
	}
	return nil
}

// paramID reads a numeric path parameter.
func paramID(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("", map[string]string{name: fmt.Sprintf("'%s' is not a valid id", raw)})
	}
	return uint(id), nil
}

// respondError writes err as {"kind", "message"} with the status of its
// kind. Server-side failures are logged.
func respondError(c *fiber.Ctx, logger *logrus.Entry, err error) error {
	status := apperr.HTTPStatus(err)
	kind := apperr.KindOf(err)
	body := fiber.Map{
		"kind":    kind.String(),
		"message": apperr.MessageOf(err),
	}
	if fields := apperr.FieldsOf(err); len(fields) > 0 {
		body["errors"] = fields
	}

	entry := logger.WithField("path", c.Path()).WithField("method", c.Method()).WithError(err)
	switch {
	case kind == apperr.KindCriticalInconsistency:
		entry.Error("stores left inconsistent, manual reconciliation required")
	case status >= fiber.StatusInternalServerError:
		entry.Error("request failed")
	default:
		entry.Debug("request rejected")
	}
	return c.Status(status).JSON(body)
}
