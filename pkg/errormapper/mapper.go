package errormapper

import (
	"log/slog"
	"net/http"
	"strings"
)

var internalToHTTP = map[string]int{
	ErrorCodeValidationFailure:   http.StatusBadRequest,
	ErrorCodeInsufficientCredit:  http.StatusPaymentRequired,
	ErrorCodeGatewayRejected:     http.StatusBadGateway,
	ErrorCodeGatewayUnreachable:  http.StatusServiceUnavailable,
	ErrorCodeNotFound:            http.StatusNotFound,
	ErrorCodeUnknownMessage:      http.StatusNotFound,
	ErrorCodeCampaignNotSendable: http.StatusConflict,
	ErrorCodeCampaignInFlight:    http.StatusConflict,
	ErrorCodeUnauthorized:        http.StatusUnauthorized,
	ErrorCodeSystemError:         http.StatusInternalServerError,
	ErrorCodeQueueError:          http.StatusServiceUnavailable,
}

// Human readable text returned alongside the code.
var internalToMessage = map[string]string{
	ErrorCodeInsufficientCredit:  "Insufficient SMS credits, top up your balance",
	ErrorCodeGatewayRejected:     "The SMS gateway rejected the message",
	ErrorCodeGatewayUnreachable:  "The SMS gateway is temporarily unreachable",
	ErrorCodeCampaignNotSendable: "Campaign has already been sent",
	ErrorCodeCampaignInFlight:    "Campaign is already being sent",
	ErrorCodeNotFound:            "Resource not found",
}

// HTTPStatus translates an internal error code to an HTTP status code.
func HTTPStatus(internalCode string) int {
	internalCode = strings.ToUpper(internalCode)
	if status, ok := internalToHTTP[internalCode]; ok {
		return status
	}
	slog.Debug("No specific mapping found for error code, returning default",
		slog.String("internal_code", internalCode),
	)
	return http.StatusInternalServerError
}

// Message returns a user-facing description for an internal code, or fallback.
func Message(internalCode, fallback string) string {
	if msg, ok := internalToMessage[strings.ToUpper(internalCode)]; ok {
		return msg
	}
	return fallback
}
