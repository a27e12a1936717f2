package errs

// Wire error codes sent in error envelopes.
const (
	CodeInvalidJSON        = "invalid_json"
	CodeUnknownMessageType = "unknown_message_type"
	CodeAccessDenied       = "access_denied"
	CodeMissingChannelID   = "missing_channel_id"
	CodeInternalError      = "internal_error"
)

var (
	ErrInvalidJSON        = NewCodeError(CodeInvalidJSON, "invalid JSON format")
	ErrUnknownMessageType = NewCodeError(CodeUnknownMessageType, "unknown message type")
	ErrAccessDenied       = NewCodeError(CodeAccessDenied, "access denied to channel")
	ErrMissingChannelID   = NewCodeError(CodeMissingChannelID, "channel ID is required")
	ErrInternalError      = NewCodeError(CodeInternalError, "internal server error")
)
