package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/thrillee/bulksms/internal/api/handlers/dto"
	"github.com/thrillee/bulksms/internal/campaign"
	"github.com/thrillee/bulksms/internal/dispatch"
	"github.com/thrillee/bulksms/internal/gateway"
	"github.com/thrillee/bulksms/internal/payment"
	"github.com/thrillee/bulksms/internal/reconcile"
	"github.com/thrillee/bulksms/pkg/errormapper"
)

// errorCode classifies a domain error into an internal error code.
func errorCode(err error) string {
	var nf *dispatch.NotFoundError
	var validation *campaign.ValidationError
	switch {
	case errors.As(err, &validation):
		return errormapper.ErrorCodeValidationFailure
	case errors.As(err, &nf), errors.Is(err, campaign.ErrNotFound), errors.Is(err, payment.ErrUnknownProvider):
		return errormapper.ErrorCodeNotFound
	case errors.Is(err, campaign.ErrNotEditable), errors.Is(err, dispatch.ErrCampaignNotSendable):
		return errormapper.ErrorCodeCampaignNotSendable
	case errors.Is(err, dispatch.ErrCampaignInFlight):
		return errormapper.ErrorCodeCampaignInFlight
	case errors.Is(err, dispatch.ErrInsufficientCredit):
		return errormapper.ErrorCodeInsufficientCredit
	case errors.Is(err, reconcile.ErrUnknownMessage):
		return errormapper.ErrorCodeUnknownMessage
	case errors.Is(err, payment.ErrInvalidPayload), errors.Is(err, payment.ErrAmountTooSmall),
		errors.Is(err, gateway.ErrCallbackMissingMessageID):
		return errormapper.ErrorCodeValidationFailure
	case gateway.IsUnreachable(err):
		return errormapper.ErrorCodeGatewayUnreachable
	}
	if _, ok := gateway.IsRejected(err); ok {
		return errormapper.ErrorCodeGatewayRejected
	}
	return errormapper.ErrorCodeSystemError
}

// respondError writes err with the status its code maps to. Internal
// failures are not echoed to the client.
func respondError(c *gin.Context, err error) {
	code := errorCode(err)
	body := dto.ErrorResponse{Code: code, Error: errormapper.Message(code, err.Error())}
	if code == errormapper.ErrorCodeSystemError {
		body.Error = "internal error"
	}
	var validation *campaign.ValidationError
	if errors.As(err, &validation) {
		body.Field = validation.Field
	}
	c.JSON(errormapper.HTTPStatus(code), body)
}

func abortWithCode(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(errormapper.HTTPStatus(code), dto.ErrorResponse{Code: code, Error: message})
}
