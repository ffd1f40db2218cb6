package rom

import (
	"bytes"
	"fmt"
	"io"

	"github.com/danbrakeley/dromos/lib/dromoserr"
)

// NES header parsing (iNES and NES 2.0).
//
// NES 2.0 format specification: https://www.nesdev.org/wiki/NES_2.0
// iNES format specification: https://www.nesdev.org/wiki/INES
//
// Header layout (16 bytes):
//
//	Offset  Size  Description
//	0x00    4     Magic: "NES" + 0x1A
//	0x04    1     PRG-ROM size LSB (16 KB units for iNES 1.0)
//	0x05    1     CHR-ROM size LSB (8 KB units for iNES 1.0, 0 = CHR-RAM)
//	0x06    1     Flags 6: mapper low nibble, mirroring, battery, trainer, four-screen
//	0x07    1     Flags 7: mapper high nibble, NES 2.0 identifier
//	0x08    1     NES 2.0: mapper MSB + submapper
//
// Bytes 9-15 are not consulted; a header rebuilt from the descriptor leaves
// them zero, so byte-exact reconstruction relies on the raw header bytes.
const (
	nesHeaderSize  = 16
	nesTrainerSize = 512
)

var nesMagic = []byte{0x4E, 0x45, 0x53, 0x1A}

// ParseNESHeader parses a 16-byte iNES/NES 2.0 header. It does no I/O; a
// magic mismatch is reported by a false result.
func ParseNESHeader(header [nesHeaderSize]byte) (*Header, bool) {
	if !bytes.Equal(header[0:4], nesMagic) {
		return nil, false
	}

	flags6 := header[6]
	flags7 := header[7]
	isNES2 := (flags7 & 0x0C) == 0x08

	mirroring := MirroringHorizontal
	switch {
	case flags6&0x08 != 0:
		mirroring = MirroringFourScreen
	case flags6&0x01 != 0:
		mirroring = MirroringVertical
	}

	mapper := int(flags7&0xF0) | int(flags6>>4)
	submapper := 0
	if isNES2 {
		byte8 := header[8]
		mapper |= int(byte8&0x0F) << 8
		submapper = int(byte8 >> 4)
	}

	return &Header{
		PRGROMSize: int(header[4]) * 16 * 1024,
		CHRROMSize: int(header[5]) * 8 * 1024,
		HasTrainer: flags6&0x04 != 0,
		Mapper:     mapper,
		Mirroring:  mirroring,
		HasBattery: flags6&0x02 != 0,
		IsNES2:     isNES2,
		Submapper:  submapper,
	}, true
}

// BuildNESHeader rebuilds a 16-byte header from a descriptor. The trainer
// bit is always cleared: dromos never preserves trainer bytes, so a
// header that still claimed one would lie about the body that follows.
func BuildNESHeader(h *Header) [nesHeaderSize]byte {
	var out [nesHeaderSize]byte
	copy(out[0:4], nesMagic)

	out[4] = byte(h.PRGROMSize / (16 * 1024))
	out[5] = byte(h.CHRROMSize / (8 * 1024))

	flags6 := byte(h.Mapper&0x0F) << 4
	switch h.Mirroring {
	case MirroringVertical:
		flags6 |= 0x01
	case MirroringFourScreen:
		flags6 |= 0x08
	}
	if h.HasBattery {
		flags6 |= 0x02
	}
	out[6] = flags6

	flags7 := byte(h.Mapper & 0xF0)
	if h.IsNES2 {
		flags7 |= 0x08
	}
	out[7] = flags7

	if h.IsNES2 {
		out[8] = byte((h.Mapper>>8)&0x0F) | byte(h.Submapper&0x0F)<<4
	}

	return out
}

// ReadNES reads an NES ROM file: it reads the 16-byte header, skips the
// trainer region if present, and returns everything that follows as the
// body, together with the parsed header and the raw header bytes. Returns
// *dromoserr.InvalidRomFile if the magic bytes don't match what the ".nes"
// extension promised.
func ReadNES(r io.Reader, path string) ([]byte, *Header, []byte, error) {
	var rawHeader [nesHeaderSize]byte
	if _, err := io.ReadFull(r, rawHeader[:]); err != nil {
		return nil, nil, nil, fmt.Errorf("reading NES header: %w", err)
	}

	header, ok := ParseNESHeader(rawHeader)
	if !ok {
		return nil, nil, nil, &dromoserr.InvalidRomFile{Path: path}
	}

	if header.HasTrainer {
		if _, err := io.CopyN(io.Discard, r, nesTrainerSize); err != nil {
			return nil, nil, nil, fmt.Errorf("skipping NES trainer: %w", err)
		}
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("reading NES body: %w", err)
	}

	return body, header, rawHeader[:], nil
}

// ReconstructNES emits a byte-exact NES file from raw header bytes (when
// available), falling back to rebuilding the header from the descriptor,
// and finally to the body alone if neither is available.
func ReconstructNES(rawHeader []byte, header *Header, body []byte) []byte {
	var headerBytes []byte
	switch {
	case len(rawHeader) == nesHeaderSize:
		headerBytes = rawHeader
	case header != nil:
		built := BuildNESHeader(header)
		headerBytes = built[:]
	}

	out := make([]byte, 0, len(headerBytes)+len(body))
	out = append(out, headerBytes...)
	out = append(out, body...)
	return out
}
