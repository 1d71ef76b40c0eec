package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeServiceTimeout:     "Node request timeout",
	CodeServiceUnavailable: "Node temporarily unavailable",
	CodeRateLimitExceeded:  "Client-side rate limit exceeded",

	CodeInternalError: "Internal error",
	CodeUnknownError:  "An unknown error occurred",

	CodeNodeConnectionFailed: "Failed to reach node",
	CodeNodeStatusError:      "Node returned an error status",
	CodeNodeRPCError:         "Node RPC call failed",
	CodeInvalidResponse:      "Node returned an unreadable response",

	CodeSocketConnectionFailed: "Failed to open node socket",
	CodeSocketAuthFailed:       "Node socket authentication failed",
	CodeSocketSubscribeFailed:  "Node socket subscription failed",
	CodeSocketNotConnected:     "Node socket is not connected",
	CodeSocketClosed:           "Node socket closed",
	CodeSocketSendError:        "Failed to write to node socket",
	CodeSocketCallFailed:       "Node socket call failed",
	CodeSocketProtocolError:    "Unexpected node socket frame",

	CodeEventHandlerFailed: "Event handler failed",
	CodeInvalidChainEntry:  "Invalid chain entry payload",

	CodeCircuitOpen: "Circuit breaker is open",
}
