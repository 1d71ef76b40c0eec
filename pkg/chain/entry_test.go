package chain_test

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/handshake-client/pkg/chain"
)

// sampleEntry builds a buffer where every field carries a distinct pattern.
func sampleEntry() []byte {
	buf := make([]byte, chain.EntrySize)
	for i := 0; i < 32; i++ {
		buf[i] = byte(i)
	}
	binary.LittleEndian.PutUint32(buf[32:36], 125000)
	binary.LittleEndian.PutUint32(buf[36:40], 0xdeadbeef)
	binary.LittleEndian.PutUint64(buf[40:48], 1650000000)
	copy(buf[48:80], bytes.Repeat([]byte{0x11}, 32))
	copy(buf[80:112], bytes.Repeat([]byte{0x22}, 32))
	copy(buf[112:136], bytes.Repeat([]byte{0x33}, 24))
	copy(buf[136:168], bytes.Repeat([]byte{0x44}, 32))
	copy(buf[168:200], bytes.Repeat([]byte{0x55}, 32))
	copy(buf[200:232], bytes.Repeat([]byte{0x66}, 32))
	binary.LittleEndian.PutUint32(buf[232:236], 0)
	binary.LittleEndian.PutUint32(buf[236:240], 0x1c00ffff)
	copy(buf[240:272], bytes.Repeat([]byte{0x77}, 32))
	copy(buf[272:304], bytes.Repeat([]byte{0x88}, 32))
	return buf
}

func TestDecode_Fields(t *testing.T) {
	entry, err := chain.Decode(sampleEntry())
	require.NoError(t, err)

	assert.Equal(t, "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f", entry.Hash)
	assert.Equal(t, uint32(125000), entry.Height)
	assert.Equal(t, uint32(0xdeadbeef), entry.Nonce)
	assert.Equal(t, uint64(1650000000), entry.Time)
	assert.Equal(t, strings.Repeat("11", 32), entry.PrevBlock)
	assert.Equal(t, strings.Repeat("22", 32), entry.TreeRoot)
	assert.Equal(t, strings.Repeat("33", 24), entry.ExtraNonce)
	assert.Equal(t, strings.Repeat("44", 32), entry.ReservedRoot)
	assert.Equal(t, strings.Repeat("55", 32), entry.WitnessRoot)
	assert.Equal(t, strings.Repeat("66", 32), entry.MerkleRoot)
	assert.Equal(t, uint32(0), entry.Version)
	assert.Equal(t, uint32(0x1c00ffff), entry.Bits)
	assert.Equal(t, strings.Repeat("77", 32), entry.Mask)
	assert.Equal(t, strings.Repeat("88", 32), entry.Chainwork)
}

func TestDecode_Deterministic(t *testing.T) {
	buf := sampleEntry()

	first, err := chain.Decode(buf)
	require.NoError(t, err)
	second, err := chain.Decode(buf)
	require.NoError(t, err)

	assert.Equal(t, *first, *second)
}

func TestDecode_Lengths(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"empty", 0, true},
		{"one short", chain.EntrySize - 1, true},
		{"exact", chain.EntrySize, false},
		{"one long", chain.EntrySize + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := chain.Decode(make([]byte, tt.size))
			if tt.wantErr {
				require.ErrorIs(t, err, chain.ErrInvalidLength)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDecode_LittleEndianHeight(t *testing.T) {
	buf := make([]byte, chain.EntrySize)

	copy(buf[32:36], []byte{0x01, 0x00, 0x00, 0x00})
	entry, err := chain.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), entry.Height)

	copy(buf[32:36], []byte{0x00, 0x00, 0x00, 0x01})
	entry, err = chain.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(16777216), entry.Height)
}

func TestDecode_HexIsNotReversed(t *testing.T) {
	buf := make([]byte, chain.EntrySize)
	copy(buf[0:32], bytes.Repeat([]byte{0xAA}, 32))
	buf[48] = 0x01

	entry, err := chain.Decode(buf)
	require.NoError(t, err)

	assert.Equal(t, strings.Repeat("aa", 32), entry.Hash)
	assert.True(t, strings.HasPrefix(entry.PrevBlock, "01"))
	assert.Len(t, entry.ExtraNonce, 48)
}
