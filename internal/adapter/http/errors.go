package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"library-fines/internal/domain/book"
	"library-fines/internal/domain/borrow"
	"library-fines/internal/domain/gateway"
	"library-fines/internal/domain/payment"
	"library-fines/internal/domain/user"
	"library-fines/internal/usecase/audit"
	"library-fines/internal/usecase/fine"
	ucPayment "library-fines/internal/usecase/payment"
)

// statusFor maps domain errors to a status code and the message the client
// sees. Unknown errors are 500 with a generic message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, fine.ErrInvalidInput),
		errors.Is(err, fine.ErrUnknownMode),
		errors.Is(err, ucPayment.ErrInvalidInput),
		errors.Is(err, audit.ErrInvalidInput),
		errors.Is(err, payment.ErrAmountMismatch):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, payment.ErrVerificationFailed):
		return http.StatusBadRequest, payment.ErrVerificationFailed.Error()
	case errors.Is(err, payment.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, borrow.ErrNotFound),
		errors.Is(err, payment.ErrNotFound),
		errors.Is(err, user.ErrNotFound),
		errors.Is(err, book.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, payment.ErrAlreadyPaid),
		errors.Is(err, payment.ErrNotPaid),
		errors.Is(err, payment.ErrDuplicateOrder),
		errors.Is(err, payment.ErrInvalidTransition),
		errors.Is(err, payment.ErrVersionConflict),
		errors.Is(err, borrow.ErrVersionConflict),
		errors.Is(err, audit.ErrStaleFine):
		return http.StatusConflict, err.Error()
	case errors.Is(err, gateway.ErrRejected):
		return http.StatusBadGateway, "payment gateway rejected the request"
	case errors.Is(err, gateway.ErrUnavailable):
		return http.StatusServiceUnavailable, gateway.ErrUnavailable.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeError(c echo.Context, logger *zap.Logger, err error) error {
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.Error(err))
	}
	return c.JSON(code, ErrorResponse{Error: msg})
}

func badBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
}

func invalid(c echo.Context, err error) error {
	return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
}

// bindValid binds then validates req, writing the 400/422 response itself.
// ok is false when a response was written.
func bindValid(c echo.Context, req any) (ok bool, err error) {
	if err := c.Bind(req); err != nil {
		return false, badBody(c)
	}
	if err := c.Validate(req); err != nil {
		return false, invalid(c, err)
	}
	return true, nil
}
