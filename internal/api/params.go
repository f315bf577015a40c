package api

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tagwise/tagwise/internal/errors"
)

// idParam parses a numeric path parameter.
func idParam(ctx echo.Context, name string) (uint, error) {
	raw := ctx.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, errors.Newf("invalid %s %q", name, raw).
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	return uint(id), nil
}

// bindError wraps a request decoding failure as a validation error.
func bindError(err error) error {
	return errors.New(err).
		Component("api").
		Category(errors.CategoryValidation).
		Build()
}

// uintQuery parses an optional numeric query parameter, returning
// fallback when absent.
func uintQuery(ctx echo.Context, name string, fallback uint) (uint, error) {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, errors.Newf("invalid %s %q", name, raw).
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	return uint(value), nil
}
