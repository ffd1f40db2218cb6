package rom

import (
	"bytes"
	"testing"
)

func makeINESHeader(prgBanks, chrBanks, flags6, flags7 byte) [nesHeaderSize]byte {
	var h [nesHeaderSize]byte
	copy(h[0:4], nesMagic)
	h[4] = prgBanks
	h[5] = chrBanks
	h[6] = flags6
	h[7] = flags7
	return h
}

func TestParseNESHeader_BasicNROM(t *testing.T) {
	h := makeINESHeader(2, 1, 0x00, 0x00)
	info, ok := ParseNESHeader(h)
	if !ok {
		t.Fatalf("expected valid header")
	}
	if info.PRGROMSize != 32*1024 {
		t.Errorf("PRGROMSize = %d, want %d", info.PRGROMSize, 32*1024)
	}
	if info.CHRROMSize != 8*1024 {
		t.Errorf("CHRROMSize = %d, want %d", info.CHRROMSize, 8*1024)
	}
	if info.Mapper != 0 {
		t.Errorf("Mapper = %d, want 0", info.Mapper)
	}
	if info.Mirroring != MirroringHorizontal {
		t.Errorf("Mirroring = %v, want Horizontal", info.Mirroring)
	}
	if info.IsNES2 {
		t.Errorf("IsNES2 = true, want false")
	}
}

func TestParseNESHeader_NES20Submapper(t *testing.T) {
	h := makeINESHeader(4, 2, 0x10, 0x08)
	h[8] = 0x52 // submapper 5, extended mapper bits = 2

	info, ok := ParseNESHeader(h)
	if !ok {
		t.Fatalf("expected valid NES 2.0 header")
	}
	if !info.IsNES2 {
		t.Errorf("IsNES2 = false, want true")
	}
	if info.Submapper != 5 {
		t.Errorf("Submapper = %d, want 5", info.Submapper)
	}
	if info.Mapper != 0x201 {
		t.Errorf("Mapper = %#x, want 0x201", info.Mapper)
	}
}

func TestParseNESHeader_MirroringModes(t *testing.T) {
	cases := []struct {
		flags6 byte
		want   Mirroring
	}{
		{0x00, MirroringHorizontal},
		{0x01, MirroringVertical},
		{0x08, MirroringFourScreen},
		{0x09, MirroringFourScreen}, // four-screen wins even if vertical bit also set
	}
	for _, c := range cases {
		h := makeINESHeader(1, 1, c.flags6, 0x00)
		info, ok := ParseNESHeader(h)
		if !ok {
			t.Fatalf("expected valid header")
		}
		if info.Mirroring != c.want {
			t.Errorf("flags6=%#x: Mirroring = %v, want %v", c.flags6, info.Mirroring, c.want)
		}
	}
}

func TestParseNESHeader_MapperNumber(t *testing.T) {
	// Mapper 4 (MMC3): low nibble in flags6 bits 4-7, high nibble in flags7 bits 4-7.
	h := makeINESHeader(1, 0, 0x40, 0x00)
	info, _ := ParseNESHeader(h)
	if info.Mapper != 4 {
		t.Errorf("Mapper = %d, want 4", info.Mapper)
	}

	// Mapper 69 (Sunsoft FME-7).
	h2 := makeINESHeader(1, 0, 0x50, 0x40)
	info2, _ := ParseNESHeader(h2)
	if info2.Mapper != 69 {
		t.Errorf("Mapper = %d, want 69", info2.Mapper)
	}
}

func TestParseNESHeader_InvalidMagic(t *testing.T) {
	h := makeINESHeader(1, 1, 0, 0)
	h[3] = 0x00 // should be 0x1A
	if _, ok := ParseNESHeader(h); ok {
		t.Errorf("expected invalid magic to fail")
	}
}

func TestBuildNESHeader_RoundTrip(t *testing.T) {
	original := &Header{
		PRGROMSize: 32 * 1024,
		CHRROMSize: 8 * 1024,
		Mapper:     4,
		Mirroring:  MirroringVertical,
		HasBattery: true,
	}

	built := BuildNESHeader(original)
	parsed, ok := ParseNESHeader(built)
	if !ok {
		t.Fatalf("expected rebuilt header to parse")
	}
	if parsed.PRGROMSize != original.PRGROMSize ||
		parsed.CHRROMSize != original.CHRROMSize ||
		parsed.Mapper != original.Mapper ||
		parsed.Mirroring != original.Mirroring ||
		parsed.HasBattery != original.HasBattery {
		t.Errorf("round trip mismatch: got %+v, want %+v", parsed, original)
	}
}

func TestBuildNESHeader_ClearsTrainer(t *testing.T) {
	original := &Header{PRGROMSize: 16 * 1024, HasTrainer: true}

	built := BuildNESHeader(original)
	parsed, ok := ParseNESHeader(built)
	if !ok {
		t.Fatalf("expected rebuilt header to parse")
	}
	if parsed.HasTrainer {
		t.Errorf("HasTrainer = true, want false (trainer bit must be cleared)")
	}
}

func TestBuildNESHeader_NES20RoundTrip(t *testing.T) {
	original := &Header{
		PRGROMSize: 64 * 1024,
		CHRROMSize: 16 * 1024,
		Mapper:     0x105,
		Mirroring:  MirroringFourScreen,
		HasBattery: true,
		IsNES2:     true,
		Submapper:  3,
	}

	built := BuildNESHeader(original)
	parsed, ok := ParseNESHeader(built)
	if !ok {
		t.Fatalf("expected rebuilt NES 2.0 header to parse")
	}
	if parsed.Mapper != original.Mapper {
		t.Errorf("Mapper = %#x, want %#x", parsed.Mapper, original.Mapper)
	}
	if !parsed.IsNES2 {
		t.Errorf("IsNES2 = false, want true")
	}
	if parsed.Submapper != 3 {
		t.Errorf("Submapper = %d, want 3", parsed.Submapper)
	}
}

func TestReadNES_InvalidMagic(t *testing.T) {
	h := makeINESHeader(1, 1, 0, 0)
	h[0] = 'X'
	r := bytes.NewReader(h[:])

	if _, _, _, err := ReadNES(r, "bad.nes"); err == nil {
		t.Errorf("expected error for invalid magic")
	}
}

func TestReadNES_SkipsTrainer(t *testing.T) {
	h := makeINESHeader(1, 1, 0x04, 0x00) // trainer bit set
	var buf bytes.Buffer
	buf.Write(h[:])
	buf.Write(make([]byte, nesTrainerSize)) // trainer region
	body := bytes.Repeat([]byte{0xAA}, 1024)
	buf.Write(body)

	gotBody, header, rawHeader, err := ReadNES(&buf, "trainer.nes")
	if err != nil {
		t.Fatalf("ReadNES() error = %v", err)
	}
	if !header.HasTrainer {
		t.Errorf("HasTrainer = false, want true")
	}
	if !bytes.Equal(gotBody, body) {
		t.Errorf("body mismatch: trainer bytes leaked into body")
	}
	if len(rawHeader) != nesHeaderSize {
		t.Errorf("rawHeader length = %d, want %d", len(rawHeader), nesHeaderSize)
	}
}

func TestReconstructNES_PrefersRawHeader(t *testing.T) {
	h := makeINESHeader(1, 1, 0x00, 0x00)
	body := []byte{1, 2, 3}

	out := ReconstructNES(h[:], nil, body)
	if !bytes.Equal(out[:nesHeaderSize], h[:]) {
		t.Errorf("expected raw header bytes to be used verbatim")
	}
	if !bytes.Equal(out[nesHeaderSize:], body) {
		t.Errorf("expected body to follow header")
	}
}

func TestReconstructNES_FallsBackToDescriptor(t *testing.T) {
	header := &Header{PRGROMSize: 16 * 1024, CHRROMSize: 8 * 1024}
	body := []byte{9, 8, 7}

	out := ReconstructNES(nil, header, body)
	parsed, ok := ParseNESHeader([nesHeaderSize]byte(out[:nesHeaderSize]))
	if !ok {
		t.Fatalf("expected rebuilt header to parse")
	}
	if parsed.PRGROMSize != header.PRGROMSize {
		t.Errorf("PRGROMSize mismatch after fallback rebuild")
	}
	if !bytes.Equal(out[nesHeaderSize:], body) {
		t.Errorf("expected body to follow rebuilt header")
	}
}

func TestReconstructNES_BodyOnlyWhenNoHeaderAvailable(t *testing.T) {
	body := []byte{1, 2, 3}
	out := ReconstructNES(nil, nil, body)
	if !bytes.Equal(out, body) {
		t.Errorf("expected body-only output when no header is available")
	}
}
