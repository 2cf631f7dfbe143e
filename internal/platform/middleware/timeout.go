package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/alexanderkiel/flare/internal/platform/fhir"
)

// RequestTimeout sets a deadline on the request context. All data-store
// calls made for the request are cancelled once it passes. A handler that
// returns the deadline error without writing a response gets a 504
// OperationOutcome. A non-positive timeout disables the deadline.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 {
				return next(c)
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if errors.Is(err, context.DeadlineExceeded) && !c.Response().Committed {
				return c.JSON(http.StatusGatewayTimeout,
					fhir.TimeoutOutcome("request processing exceeded the allowed time limit"))
			}
			return err
		}
	}
}
