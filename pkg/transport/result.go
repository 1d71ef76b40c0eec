package transport

import (
	"encoding/json"
	"fmt"
)

// Result is the outcome of a REST or RPC call: raw JSON data on success or
// a Failure. Exactly one of the two is set.
type Result struct {
	data json.RawMessage
	err  *Failure
}

// Success wraps a JSON value. An empty value becomes JSON null.
func Success(data json.RawMessage) Result {
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return Result{data: data}
}

// Fail wraps a Failure.
func Fail(f *Failure) Result {
	if f == nil {
		f = &Failure{Message: "unknown failure", Kind: KindConnection}
	}
	return Result{err: f}
}

// OK reports whether the call succeeded.
func (r Result) OK() bool {
	return r.err == nil
}

// Data returns the raw JSON value, nil on failure.
func (r Result) Data() json.RawMessage {
	return r.data
}

// Failure returns the failure, nil on success.
func (r Result) Failure() *Failure {
	return r.err
}

// Err returns the failure as an error, nil on success.
func (r Result) Err() error {
	if r.err == nil {
		return nil
	}
	return r.err
}

// MarshalJSON emits the data or the normalized error shape.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.err != nil {
		return r.err.MarshalJSON()
	}
	return r.data, nil
}

// Decode unmarshals a successful Result into T. A failed Result returns its
// *Failure; a body that does not fit T returns a decode Failure.
func Decode[T any](r Result) (T, error) {
	var out T
	if r.err != nil {
		return out, r.err
	}
	if err := json.Unmarshal(r.data, &out); err != nil {
		return out, &Failure{Message: fmt.Sprintf("decode result: %v", err), Kind: KindDecode}
	}
	return out, nil
}
