// Package chain decodes the fixed-layout chain entries hsd pushes over its
// socket channel.
package chain

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
)

// EntrySize is the serialized size of a chain entry.
const EntrySize = 304

// ErrInvalidLength is returned when a buffer is not exactly EntrySize bytes.
// It signals a protocol mismatch with the node and is never retried.
var ErrInvalidLength = errors.New("chain: invalid entry length")

// Entry is a decoded chain entry (block header plus chain metadata).
type Entry struct {
	Hash         string `json:"hash"`
	Height       uint32 `json:"height"`
	Nonce        uint32 `json:"nonce"`
	Time         uint64 `json:"time"`
	PrevBlock    string `json:"prevBlock"`
	TreeRoot     string `json:"treeRoot"`
	ExtraNonce   string `json:"extraNonce"`
	ReservedRoot string `json:"reservedRoot"`
	WitnessRoot  string `json:"witnessRoot"`
	MerkleRoot   string `json:"merkleRoot"`
	Version      uint32 `json:"version"`
	Bits         uint32 `json:"bits"`
	Mask         string `json:"mask"`
	Chainwork    string `json:"chainwork"`
}

// Decode parses a raw chain entry. Integers are little-endian, hash-like
// fields are rendered as lowercase hex in wire order.
func Decode(buf []byte) (*Entry, error) {
	if len(buf) != EntrySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidLength, len(buf), EntrySize)
	}

	return &Entry{
		Hash:         readHex(buf[0:32]),
		Height:       readUint32LE(buf[32:36]),
		Nonce:        readUint32LE(buf[36:40]),
		Time:         readUint64LE(buf[40:48]),
		PrevBlock:    readHex(buf[48:80]),
		TreeRoot:     readHex(buf[80:112]),
		ExtraNonce:   readHex(buf[112:136]),
		ReservedRoot: readHex(buf[136:168]),
		WitnessRoot:  readHex(buf[168:200]),
		MerkleRoot:   readHex(buf[200:232]),
		Version:      readUint32LE(buf[232:236]),
		Bits:         readUint32LE(buf[236:240]),
		Mask:         readHex(buf[240:272]),
		Chainwork:    readHex(buf[272:304]),
	}, nil
}

func readUint32LE(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

func readUint64LE(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

func readHex(b []byte) string {
	return hex.EncodeToString(b)
}
