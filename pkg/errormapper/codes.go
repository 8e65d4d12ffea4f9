package errormapper

const (
	// Validation Failures
	ErrorCodeValidationFailure = "VALIDATION_FAIL"

	// Billing Failures
	ErrorCodeInsufficientCredit = "INSUFFICIENT_CREDIT"
	ErrorCodeReservationFailed  = "RESERVATION_FAILED"

	// Gateway Failures
	ErrorCodeGatewayRejected    = "GATEWAY_REJECTED"
	ErrorCodeGatewayUnreachable = "GATEWAY_UNREACHABLE"

	// Campaign State
	ErrorCodeNotFound            = "NOT_FOUND"
	ErrorCodeCampaignNotSendable = "CAMPAIGN_NOT_SENDABLE"
	ErrorCodeCampaignInFlight    = "CAMPAIGN_IN_FLIGHT"

	// Callbacks
	ErrorCodeUnknownMessage = "UNKNOWN_MESSAGE"
	ErrorCodeUnauthorized   = "UNAUTHORIZED"

	// System Errors
	ErrorCodeSystemError = "SYS_ERR"
	ErrorCodeQueueError  = "QUEUE_ERR"
)
