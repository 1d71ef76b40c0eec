package sio

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Arg is one top-level argument of an event or ack: either raw JSON or a
// binary attachment.
type Arg struct {
	JSON   json.RawMessage
	Binary []byte
}

// IsBinary reports whether the argument is an attachment.
func (a Arg) IsBinary() bool {
	return a.Binary != nil
}

// IsNull reports whether the argument is JSON null.
func (a Arg) IsNull() bool {
	return !a.IsBinary() && (len(a.JSON) == 0 || bytes.Equal(bytes.TrimSpace(a.JSON), []byte("null")))
}

// MarshalJSON renders attachments as base64 strings.
func (a Arg) MarshalJSON() ([]byte, error) {
	if a.IsBinary() {
		return json.Marshal(a.Binary)
	}
	if len(a.JSON) == 0 {
		return []byte("null"), nil
	}
	return a.JSON, nil
}

type placeholder struct {
	Placeholder bool `json:"_placeholder"`
	Num         *int `json:"num"`
}

// Args splits Data into top-level arguments and substitutes attachment
// placeholders with their buffers. Nested placeholders are left as JSON.
func (p *Packet) Args() ([]Arg, error) {
	if len(p.Data) == 0 {
		return nil, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(p.Data, &raw); err != nil {
		return nil, fmt.Errorf("%w: payload is not an array: %v", ErrMalformed, err)
	}

	args := make([]Arg, len(raw))
	for i, r := range raw {
		args[i] = Arg{JSON: r}

		trimmed := bytes.TrimSpace(r)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			continue
		}

		var ph placeholder
		if err := json.Unmarshal(trimmed, &ph); err != nil || !ph.Placeholder || ph.Num == nil {
			continue
		}
		if *ph.Num < 0 || *ph.Num >= len(p.Buffers) {
			return nil, fmt.Errorf("%w: attachment %d of %d", ErrMalformed, *ph.Num, len(p.Buffers))
		}
		buf := p.Buffers[*ph.Num]
		if buf == nil {
			buf = []byte{}
		}
		args[i] = Arg{Binary: buf}
	}
	return args, nil
}

// EventName splits an event packet into its name and arguments.
func (p *Packet) EventName() (string, []Arg, error) {
	args, err := p.Args()
	if err != nil {
		return "", nil, err
	}
	if len(args) == 0 || args[0].IsBinary() {
		return "", nil, fmt.Errorf("%w: event without name", ErrMalformed)
	}

	var name string
	if err := json.Unmarshal(args[0].JSON, &name); err != nil {
		return "", nil, fmt.Errorf("%w: event name: %v", ErrMalformed, err)
	}
	return name, args[1:], nil
}

// Reassembler collects the attachment frames that follow a binary packet.
// It is not safe for concurrent use; the socket read loop owns it.
type Reassembler struct {
	pending *Packet
}

// Pending reports whether attachments are still expected.
func (r *Reassembler) Pending() bool {
	return r.pending != nil
}

// Start takes a freshly decoded packet. It returns the packet when it is
// already complete, or nil when attachments must follow.
func (r *Reassembler) Start(p *Packet) (*Packet, error) {
	if r.pending != nil {
		return nil, fmt.Errorf("%w: packet arrived while %d attachments pending",
			ErrMalformed, r.pending.Attachments-len(r.pending.Buffers))
	}
	if !p.Type.IsBinary() || p.Attachments == 0 {
		return p, nil
	}
	r.pending = p
	return nil, nil
}

// Add appends an attachment payload, already stripped of its frame prefix.
// It returns the packet once every attachment has arrived.
func (r *Reassembler) Add(buf []byte) (*Packet, error) {
	if r.pending == nil {
		return nil, fmt.Errorf("%w: unexpected attachment", ErrMalformed)
	}
	r.pending.Buffers = append(r.pending.Buffers, buf)
	if len(r.pending.Buffers) < r.pending.Attachments {
		return nil, nil
	}
	p := r.pending
	r.pending = nil
	return p, nil
}

// Reset drops any partially assembled packet.
func (r *Reassembler) Reset() {
	r.pending = nil
}
