package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/posbridge/internal/app/service/attempt"
	"github.com/fatflowers/posbridge/internal/app/service/payment"
	"github.com/fatflowers/posbridge/internal/app/service/statistics"
	"github.com/fatflowers/posbridge/pkg/logctx"
	"github.com/fatflowers/posbridge/pkg/response"
)

// httpStatus maps service errors to the status the POS API answers with.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, payment.ErrInvalidCheckout),
		errors.Is(err, attempt.ErrInvalidScan),
		errors.Is(err, statistics.ErrInvalidDataItem):
		return http.StatusBadRequest
	case errors.Is(err, attempt.ErrAttemptNotFound):
		return http.StatusNotFound
	case errors.Is(err, payment.ErrAttemptFinal),
		errors.Is(err, payment.ErrNotApproved),
		errors.Is(err, payment.ErrOrderInFlight):
		return http.StatusConflict
	case errors.Is(err, payment.ErrGatewayFailure),
		errors.Is(err, payment.ErrOrderNotCreated):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides everything but the sentinel text of expected errors.
func publicMessage(status int, err error) string {
	switch status {
	case http.StatusBadRequest:
		return err.Error()
	case http.StatusNotFound:
		return attempt.ErrAttemptNotFound.Error()
	case http.StatusConflict:
		for _, sentinel := range []error{payment.ErrAttemptFinal, payment.ErrNotApproved, payment.ErrOrderInFlight} {
			if errors.Is(err, sentinel) {
				return sentinel.Error()
			}
		}
	case http.StatusBadGateway:
		if errors.Is(err, payment.ErrOrderNotCreated) {
			return payment.ErrOrderNotCreated.Error()
		}
		return payment.ErrGatewayFailure.Error()
	}
	return "internal error"
}

// abortWithError writes {error} with the mapped status. Unexpected errors are
// logged here and never echoed to the client.
func abortWithError(c *gin.Context, base *zap.SugaredLogger, err error) {
	status := httpStatus(err)
	if status == http.StatusInternalServerError {
		logctx.FromGin(c, base).Errorw("http_request_failed", "path", c.FullPath(), "error", err)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": publicMessage(status, err)})
}

// adminError is the admin envelope form of abortWithError.
func adminError(c *gin.Context, base *zap.SugaredLogger, err error) {
	status := httpStatus(err)
	code := response.APIResponseCodeError
	switch status {
	case http.StatusBadRequest:
		code = response.APIResponseCodeBadRequest
	case http.StatusNotFound:
		code = response.APIResponseCodeNotFound
	case http.StatusConflict:
		code = response.APIResponseCodeConflict
	case http.StatusBadGateway:
		code = response.APIResponseCodeGateway
	default:
		logctx.FromGin(c, base).Errorw("admin_request_failed", "path", c.FullPath(), "error", err)
	}
	_ = c.Error(err)
	c.JSON(http.StatusOK, response.ErrorT[any](code, publicMessage(status, err)))
}
