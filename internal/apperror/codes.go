package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidFormat   Code = "INVALID_FORMAT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeValidationError Code = "VALIDATION_ERROR"

	// Configuration
	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	// External service errors
	CodeServiceTimeout     Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"

	// System errors
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Node transport error codes
const (
	// HTTP / JSON-RPC
	CodeNodeConnectionFailed Code = "NODE_CONNECTION_FAILED"
	CodeNodeStatusError      Code = "NODE_STATUS_ERROR"
	CodeNodeRPCError         Code = "NODE_RPC_ERROR"
	CodeInvalidResponse      Code = "INVALID_RESPONSE"

	// Event socket
	CodeSocketConnectionFailed Code = "SOCKET_CONNECTION_FAILED"
	CodeSocketAuthFailed       Code = "SOCKET_AUTH_FAILED"
	CodeSocketSubscribeFailed  Code = "SOCKET_SUBSCRIBE_FAILED"
	CodeSocketNotConnected     Code = "SOCKET_NOT_CONNECTED"
	CodeSocketClosed           Code = "SOCKET_CLOSED"
	CodeSocketSendError        Code = "SOCKET_SEND_ERROR"
	CodeSocketCallFailed       Code = "SOCKET_CALL_FAILED"
	CodeSocketProtocolError    Code = "SOCKET_PROTOCOL_ERROR"

	// Event delivery
	CodeEventHandlerFailed Code = "EVENT_HANDLER_FAILED"
	CodeInvalidChainEntry  Code = "INVALID_CHAIN_ENTRY"

	// Circuit breaker errors
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)
