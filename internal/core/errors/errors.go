package errors

const (
	HttpInternalError         = "internal_error"
	HttpInvalidJsonError      = "invalid_json"
	HttpMalformedReadingError = "malformed_reading"
	HttpInvalidQueryError     = "invalid_query"
	HttpNoDataError           = "no_data"
	HttpInvalidPolicyError    = "invalid_policy"
	HttpTimeoutError          = "timeout"
)

// ErrorResponse is the error response body for ingestion and query errors.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
