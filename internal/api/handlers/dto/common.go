package dto

// PaginationResponse echoes the page that was served.
type PaginationResponse struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
	Count  int   `json:"count"` // records in this page
}

// PaginatedListResponse is a generic wrapper for list API responses.
type PaginatedListResponse struct {
	Data       any                `json:"data"`
	Pagination PaginationResponse `json:"pagination"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
	// Record is the audit row of a failed send, when one was written.
	Record      any `json:"record,omitempty"`
	GatewayCode int `json:"gateway_code,omitempty"`
}
