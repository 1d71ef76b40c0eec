package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Kind says where a failure came from. It never changes the serialized shape.
type Kind string

const (
	KindConnection     Kind = "connection"
	KindStatus         Kind = "status"
	KindRPC            Kind = "rpc"
	KindDecode         Kind = "decode"
	KindInvalidRequest Kind = "invalid_request"
)

// maxBodyInMessage caps how much of an unstructured error body is quoted.
const maxBodyInMessage = 256

// Failure is the normalized transport error. It serializes as
// {"error":{"message":...}} whatever its origin.
type Failure struct {
	Message string
	Kind    Kind
	// Status is the HTTP status, zero for connection failures.
	Status int
	// Code is the RPC fault code, nil when the node sent none.
	Code *int

	raw json.RawMessage
}

type failureBody struct {
	Message string `json:"message"`
	Code    *int   `json:"code,omitempty"`
}

type failureEnvelope struct {
	Error failureBody `json:"error"`
}

// Error implements error.
func (f *Failure) Error() string {
	return f.Message
}

// MarshalJSON emits the node's own error body when it was already in the
// normalized shape, else a synthesized one.
func (f *Failure) MarshalJSON() ([]byte, error) {
	if len(f.raw) > 0 {
		return f.raw, nil
	}
	return json.Marshal(failureEnvelope{Error: failureBody{Message: f.Message, Code: f.Code}})
}

// UnmarshalJSON accepts the normalized shape.
func (f *Failure) UnmarshalJSON(data []byte) error {
	var env failureEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	f.Message = env.Error.Message
	f.Code = env.Error.Code
	return nil
}

// ConnectionFailure normalizes an error raised before any response arrived.
// Credentials embedded in rawURL are scrubbed from the message.
func ConnectionFailure(err error, rawURL string) *Failure {
	msg := "connection failed"
	if err != nil {
		msg = scrub(err.Error(), rawURL)
	}
	return &Failure{Message: msg, Kind: KindConnection}
}

// StatusFailure normalizes a non-2xx response. A body already shaped as
// {"error":{"message":string}} is kept verbatim.
func StatusFailure(status int, body []byte, rawURL string) *Failure {
	if raw, msg, code, ok := structuredError(body); ok {
		return &Failure{Message: msg, Kind: KindStatus, Status: status, Code: code, raw: raw}
	}

	class := "Client"
	if status >= http.StatusInternalServerError {
		class = "Server"
	}
	msg := fmt.Sprintf("%d %s Error: %s for url: %s", status, class, http.StatusText(status), Redact(rawURL))

	if text := strings.TrimSpace(string(body)); text != "" && len(text) <= maxBodyInMessage {
		msg += ": " + text
	}

	return &Failure{Message: msg, Kind: KindStatus, Status: status}
}

// RPCFailure normalizes a JSON-RPC error member.
func RPCFailure(code int, message string) *Failure {
	if message == "" {
		message = fmt.Sprintf("rpc error %d", code)
	}
	c := code
	return &Failure{Message: message, Kind: KindRPC, Code: &c}
}

// DecodeFailure reports a 2xx response whose body is not JSON.
func DecodeFailure(err error) *Failure {
	return &Failure{Message: "invalid json response: " + err.Error(), Kind: KindDecode}
}

// InvalidRequest reports a call rejected before anything was sent.
func InvalidRequest(message string) *Failure {
	return &Failure{Message: message, Kind: KindInvalidRequest}
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

func structuredError(body []byte) (json.RawMessage, string, *int, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, "", nil, false
	}

	var env struct {
		Error *struct {
			Message *string `json:"message"`
			Code    *int    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, "", nil, false
	}
	if env.Error == nil || env.Error.Message == nil || *env.Error.Message == "" {
		return nil, "", nil, false
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return nil, "", nil, false
	}
	return compact.Bytes(), *env.Error.Message, env.Error.Code, true
}

func scrub(msg, rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return msg
	}
	if pw, ok := u.User.Password(); ok && pw != "" {
		msg = strings.ReplaceAll(msg, pw, "xxxxx")
		msg = strings.ReplaceAll(msg, url.QueryEscape(pw), "xxxxx")
	}
	return msg
}
