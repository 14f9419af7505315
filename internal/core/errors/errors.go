package errors

const (
	HttpInternalError    = "internal_error"
	HttpInvalidJsonError = "invalid_json"
	HttpValidationError  = "validation_failed"
	HttpUnknownRuleError = "unknown_rule"
	HttpStoreUnavailable = "store_unavailable"
	HttpLogAppendError   = "log_append_failed"
)

// ErrorResponse is the error response body for ingestion and query errors.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
