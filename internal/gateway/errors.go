package gateway

import (
	"errors"
	"fmt"
	"strconv"
)

// Kind classifies a coded gateway rejection.
type Kind string

const (
	KindInvalidToken         Kind = "invalid_token"
	KindInvalidSignature     Kind = "invalid_signature"
	KindSubjectMissing       Kind = "subject_missing"
	KindSignatureNotApproved Kind = "signature_not_approved"
	KindInvalidRecipient     Kind = "invalid_recipient"
	KindEmptyContent         Kind = "empty_content"
	KindContentTooLong       Kind = "content_too_long"
	KindInvalidTimestamp     Kind = "invalid_timestamp"
	KindInsufficientBalance  Kind = "gateway_insufficient_balance"
	KindAccountSuspended     Kind = "account_suspended"
	KindUnknown              Kind = "unknown"
)

// CodeInfo is one row of the gateway's numeric error catalog.
type CodeInfo struct {
	Kind        Kind
	Message     string
	Remediation string
}

var codeTable = map[int]CodeInfo{
	100: {KindInvalidToken, "The API token is invalid or expired", "Check GATEWAY_TOKEN against the gateway dashboard"},
	101: {KindInvalidSignature, "The request key does not match the signed fields", "Verify GATEWAY_PRIVATE_KEY and that the timestamp is sent unchanged"},
	102: {KindSubjectMissing, "The message subject is missing", "Set GATEWAY_SUBJECT or provide a subject per request"},
	103: {KindSignatureNotApproved, "The sender signature is not approved", "Request approval for this sender name or use an approved one"},
	104: {KindInvalidRecipient, "The recipient number is invalid", "Use the international format without spaces, e.g. 221771234567"},
	105: {KindEmptyContent, "The message content is empty", "Check the template renders non-empty text for this contact"},
	106: {KindContentTooLong, "The message content exceeds the gateway limit", "Shorten the template or split the campaign"},
	107: {KindInvalidTimestamp, "The request timestamp is invalid or too old", "Check the server clock is synchronised"},
	108: {KindInsufficientBalance, "The gateway account balance is insufficient", "Recharge the reseller account with the gateway"},
	109: {KindAccountSuspended, "The gateway account is suspended", "Contact the gateway provider support"},
}

// LookupCode returns the catalog entry for code, or an unknown-kind entry.
func LookupCode(code int) CodeInfo {
	if info, ok := codeTable[code]; ok {
		return info
	}
	return CodeInfo{
		Kind:        KindUnknown,
		Message:     "Unrecognised gateway error code " + strconv.Itoa(code),
		Remediation: "Inspect the raw gateway response",
	}
}

// RejectedError is returned when the gateway answered with an application
// error code. The message was not accepted.
type RejectedError struct {
	Code        int
	Kind        Kind
	Message     string
	Remediation string
	Raw         string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("gateway rejected message (code %d, %s): %s", e.Code, e.Kind, e.Message)
}

// UnreachableError is returned on transport failure: timeout, refused
// connection, an uncoded 5xx, or an open circuit breaker.
type UnreachableError struct {
	Cause error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("gateway unreachable: %v", e.Cause)
}

func (e *UnreachableError) Unwrap() error { return e.Cause }

var ErrCircuitOpen = errors.New("circuit breaker open")

// IsRejected reports whether err is a coded gateway rejection.
func IsRejected(err error) (*RejectedError, bool) {
	var rej *RejectedError
	ok := errors.As(err, &rej)
	return rej, ok
}

// IsUnreachable reports whether err is a transport level failure.
func IsUnreachable(err error) bool {
	var unreachable *UnreachableError
	return errors.As(err, &unreachable)
}
