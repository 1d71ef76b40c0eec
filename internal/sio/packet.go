// Package sio encodes and decodes the engine.io v3 / socket.io v2 framing
// the node speaks on its event socket.
package sio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// EngineType is the engine.io packet type, the first byte of every text frame.
type EngineType byte

const (
	EngineOpen    EngineType = '0'
	EngineClose   EngineType = '1'
	EnginePing    EngineType = '2'
	EnginePong    EngineType = '3'
	EngineMessage EngineType = '4'
	EngineUpgrade EngineType = '5'
	EngineNoop    EngineType = '6'
)

// binaryPrefix leads every binary attachment frame.
const binaryPrefix = 0x04

var (
	ErrEmptyFrame    = errors.New("sio: empty frame")
	ErrUnknownType   = errors.New("sio: unknown packet type")
	ErrMalformed     = errors.New("sio: malformed packet")
	ErrNotAttachment = errors.New("sio: binary frame without attachment prefix")
)

// Handshake is the payload of the engine.io open packet. Intervals are in
// milliseconds on the wire.
type Handshake struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int64    `json:"pingInterval"`
	PingTimeout  int64    `json:"pingTimeout"`
}

// Interval returns the ping interval.
func (h Handshake) Interval() time.Duration {
	return time.Duration(h.PingInterval) * time.Millisecond
}

// Timeout returns the ping timeout.
func (h Handshake) Timeout() time.Duration {
	return time.Duration(h.PingTimeout) * time.Millisecond
}

// ParseEngine splits a text frame into its engine.io type and payload.
func ParseEngine(frame []byte) (EngineType, []byte, error) {
	if len(frame) == 0 {
		return 0, nil, ErrEmptyFrame
	}
	t := EngineType(frame[0])
	if t < EngineOpen || t > EngineNoop {
		return 0, nil, fmt.Errorf("%w: engine %q", ErrUnknownType, frame[0])
	}
	return t, frame[1:], nil
}

// ParseHandshake decodes an open packet payload.
func ParseHandshake(payload []byte) (Handshake, error) {
	var h Handshake
	if err := json.Unmarshal(payload, &h); err != nil {
		return h, fmt.Errorf("%w: handshake: %v", ErrMalformed, err)
	}
	return h, nil
}

// EncodeEngine builds an engine.io text frame.
func EncodeEngine(t EngineType, payload []byte) []byte {
	out := make([]byte, 0, len(payload)+1)
	out = append(out, byte(t))
	return append(out, payload...)
}

// ParseAttachment strips the engine.io prefix from a binary frame.
func ParseAttachment(frame []byte) ([]byte, error) {
	if len(frame) == 0 || frame[0] != binaryPrefix {
		return nil, ErrNotAttachment
	}
	return frame[1:], nil
}

// PacketType is the socket.io packet type.
type PacketType int

const (
	Connect PacketType = iota
	Disconnect
	Event
	Ack
	Error
	BinaryEvent
	BinaryAck
)

func (t PacketType) String() string {
	switch t {
	case Connect:
		return "connect"
	case Disconnect:
		return "disconnect"
	case Event:
		return "event"
	case Ack:
		return "ack"
	case Error:
		return "error"
	case BinaryEvent:
		return "binary_event"
	case BinaryAck:
		return "binary_ack"
	default:
		return "unknown"
	}
}

// IsBinary reports whether packets of this type carry attachments.
func (t PacketType) IsBinary() bool {
	return t == BinaryEvent || t == BinaryAck
}

// Packet is a socket.io packet. Data holds the JSON payload as sent, with
// attachment placeholders left in place; Buffers holds the attachments.
type Packet struct {
	Type        PacketType
	Namespace   string
	ID          uint64
	HasID       bool
	Attachments int
	Data        json.RawMessage
	Buffers     [][]byte
}

// DecodePacket parses the payload of an engine.io message packet.
func DecodePacket(payload []byte) (*Packet, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyFrame
	}

	p := &Packet{Type: PacketType(payload[0] - '0'), Namespace: "/"}
	if payload[0] < '0' || p.Type > BinaryAck {
		return nil, fmt.Errorf("%w: socket %q", ErrUnknownType, payload[0])
	}
	i := 1

	if p.Type.IsBinary() {
		dash := bytes.IndexByte(payload[i:], '-')
		if dash < 0 {
			return nil, fmt.Errorf("%w: missing attachment count", ErrMalformed)
		}
		n, err := strconv.Atoi(string(payload[i : i+dash]))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: attachment count %q", ErrMalformed, payload[i:i+dash])
		}
		p.Attachments = n
		i += dash + 1
	}

	if i < len(payload) && payload[i] == '/' {
		end := bytes.IndexByte(payload[i:], ',')
		if end < 0 {
			p.Namespace = string(payload[i:])
			i = len(payload)
		} else {
			p.Namespace = string(payload[i : i+end])
			i += end + 1
		}
	}

	start := i
	for i < len(payload) && payload[i] >= '0' && payload[i] <= '9' {
		i++
	}
	if i > start {
		id, err := strconv.ParseUint(string(payload[start:i]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: ack id: %v", ErrMalformed, err)
		}
		p.ID, p.HasID = id, true
	}

	if rest := bytes.TrimSpace(payload[i:]); len(rest) > 0 {
		if !json.Valid(rest) {
			return nil, fmt.Errorf("%w: invalid json data", ErrMalformed)
		}
		p.Data = append(json.RawMessage(nil), rest...)
	}

	return p, nil
}

// Encode renders the packet as an engine.io message frame. Outbound
// attachments are not supported.
func (p *Packet) Encode() []byte {
	var b bytes.Buffer
	b.WriteByte(byte(EngineMessage))
	b.WriteByte(byte('0' + p.Type))

	if p.Type.IsBinary() {
		b.WriteString(strconv.Itoa(p.Attachments))
		b.WriteByte('-')
	}
	if p.Namespace != "" && p.Namespace != "/" {
		b.WriteString(p.Namespace)
		b.WriteByte(',')
	}
	if p.HasID {
		b.WriteString(strconv.FormatUint(p.ID, 10))
	}
	b.Write(p.Data)
	return b.Bytes()
}

// NewEvent builds an event packet [name, args...]. id, when non-zero,
// requests an acknowledgement.
func NewEvent(id uint64, name string, args ...any) (*Packet, error) {
	payload := make([]any, 0, len(args)+1)
	payload = append(payload, name)
	payload = append(payload, args...)

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("sio: encode event %q: %w", name, err)
	}
	return &Packet{Type: Event, ID: id, HasID: id != 0, Data: data}, nil
}
