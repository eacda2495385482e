// Package ktx2 reads the container layout of KTX 2.0 texture files: header,
// key/value metadata and the per-level byte ranges. Payloads are returned as
// stored; supercompressed levels are not inflated.
package ktx2

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

var Identifier = [12]byte{0xAB, 0x4B, 0x54, 0x58, 0x20, 0x32, 0x30, 0xBB, 0x0D, 0x0A, 0x1A, 0x0A}

const (
	headerSize     = 12 + 9*4
	indexSize      = 4*4 + 2*8
	levelEntrySize = 3 * 8
)

type Supercompression uint32

const (
	SupercompressionNone Supercompression = iota
	SupercompressionBasisLZ
	SupercompressionZstandard
	SupercompressionZLIB
)

func (s Supercompression) String() string {
	switch s {
	case SupercompressionNone:
		return "none"
	case SupercompressionBasisLZ:
		return "basislz"
	case SupercompressionZstandard:
		return "zstd"
	case SupercompressionZLIB:
		return "zlib"
	}
	return "unknown"
}

type Header struct {
	VkFormat               uint32
	TypeSize               uint32
	PixelWidth             uint32
	PixelHeight            uint32
	PixelDepth             uint32
	LayerCount             uint32
	FaceCount              uint32
	LevelCount             uint32
	SupercompressionScheme Supercompression
}

type index struct {
	DfdByteOffset uint32
	DfdByteLength uint32
	KvdByteOffset uint32
	KvdByteLength uint32
	SgdByteOffset uint64
	SgdByteLength uint64
}

type levelEntry struct {
	ByteOffset             uint64
	ByteLength             uint64
	UncompressedByteLength uint64
}

type Level struct {
	Data                   []byte
	UncompressedByteLength uint64
}

type Texture struct {
	Header
	// Levels[0] is the base mip level.
	Levels    []Level
	KeyValues map[string][]byte
}

// IsIdentifier reports whether data starts with the KTX 2.0 magic.
func IsIdentifier(data []byte) bool {
	return len(data) >= len(Identifier) && bytes.Equal(data[:len(Identifier)], Identifier[:])
}

func Parse(data []byte) (*Texture, error) {
	if !IsIdentifier(data) {
		return nil, errors.New("ktx2: missing file identifier")
	}
	if len(data) < headerSize+indexSize {
		return nil, errors.Errorf("ktx2: truncated header (%d bytes)", len(data))
	}

	r := bytes.NewReader(data[len(Identifier):])
	var hdr Header
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, errors.Wrap(err, "ktx2: read header")
	}
	var idx index
	if err := binary.Read(r, binary.LittleEndian, &idx); err != nil {
		return nil, errors.Wrap(err, "ktx2: read index")
	}

	if hdr.PixelWidth == 0 {
		return nil, errors.New("ktx2: zero pixel width")
	}
	if hdr.FaceCount != 1 && hdr.FaceCount != 6 {
		return nil, errors.Errorf("ktx2: invalid face count %d", hdr.FaceCount)
	}

	// levelCount 0 asks the loader to generate mips; one level is stored.
	levels := hdr.LevelCount
	if levels == 0 {
		levels = 1
	}
	if uint64(headerSize+indexSize)+uint64(levels)*levelEntrySize > uint64(len(data)) {
		return nil, errors.Errorf("ktx2: level index for %d levels exceeds file", levels)
	}

	tex := &Texture{Header: hdr, Levels: make([]Level, levels)}
	for i := range tex.Levels {
		var entry levelEntry
		if err := binary.Read(r, binary.LittleEndian, &entry); err != nil {
			return nil, errors.Wrapf(err, "ktx2: read level %d", i)
		}
		payload, err := span(data, entry.ByteOffset, entry.ByteLength)
		if err != nil {
			return nil, errors.Wrapf(err, "ktx2: level %d", i)
		}
		tex.Levels[i] = Level{Data: payload, UncompressedByteLength: entry.UncompressedByteLength}
	}

	kvd, err := span(data, uint64(idx.KvdByteOffset), uint64(idx.KvdByteLength))
	if err != nil {
		return nil, errors.Wrap(err, "ktx2: key/value data")
	}
	if tex.KeyValues, err = parseKeyValues(kvd); err != nil {
		return nil, err
	}

	return tex, nil
}

func span(data []byte, offset, length uint64) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	end := offset + length
	if end < offset || end > uint64(len(data)) {
		return nil, errors.Errorf("range %d+%d outside %d byte file", offset, length, len(data))
	}
	return data[offset:end], nil
}

// parseKeyValues splits the key/value block: each entry is a uint32 length,
// a NUL-terminated key, the value, and padding to 4 bytes.
func parseKeyValues(kvd []byte) (map[string][]byte, error) {
	out := make(map[string][]byte)
	for len(kvd) > 0 {
		if len(kvd) < 4 {
			return nil, errors.New("ktx2: truncated key/value length")
		}
		n := binary.LittleEndian.Uint32(kvd)
		kvd = kvd[4:]
		if uint64(n) > uint64(len(kvd)) {
			return nil, errors.Errorf("ktx2: key/value entry of %d bytes exceeds block", n)
		}
		entry := kvd[:n]
		nul := bytes.IndexByte(entry, 0)
		if nul < 0 {
			return nil, errors.New("ktx2: key/value entry without key terminator")
		}
		out[string(entry[:nul])] = entry[nul+1:]

		padded := (n + 3) &^ 3
		if uint64(padded) > uint64(len(kvd)) {
			padded = uint32(len(kvd))
		}
		kvd = kvd[padded:]
	}
	return out, nil
}
