package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"mahber_app_echo/internal/services"
)

type errorBody struct {
	Error string `json:"error"`
}

// CustomErrorHandler translates domain errors and echo HTTPErrors into
// JSON responses. Internal details never leak; a failed allocation reports
// only the user-facing reason.
func CustomErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "Something went wrong. Please try again later."

	switch {
	case errors.Is(err, services.ErrMahberNotFound),
		errors.Is(err, services.ErrMemberNotFound),
		errors.Is(err, services.ErrContributionNotFound):
		code = http.StatusNotFound
		message = err.Error()

	case errors.Is(err, services.ErrNoTermFound),
		errors.Is(err, services.ErrNoActiveTerm):
		code = http.StatusUnprocessableEntity
		message = "no billing schedule configured"

	case errors.Is(err, services.ErrOverpayment):
		code = http.StatusUnprocessableEntity
		message = services.ErrOverpayment.Error()

	case errors.Is(err, services.ErrUnchargeableAmount):
		code = http.StatusUnprocessableEntity
		message = services.ErrUnchargeableAmount.Error()

	case errors.Is(err, services.ErrGateway):
		code = http.StatusBadGateway
		message = "payment gateway unavailable"

	default:
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if msg, ok := he.Message.(string); ok && msg != "" {
				message = msg
			} else {
				message = http.StatusText(code)
			}
		}
	}

	// Log the error
	c.Logger().Error(err)

	if jsonErr := c.JSON(code, errorBody{Error: message}); jsonErr != nil {
		c.Logger().Error(jsonErr)
	}
}
