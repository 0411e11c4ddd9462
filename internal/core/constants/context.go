package constants

type contextKey string

// ContextRequestIdKey carries the generated request ID through handler and
// relay layers for log correlation.
const ContextRequestIdKey contextKey = "request_id"
