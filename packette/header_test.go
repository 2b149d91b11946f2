package packette

import (
	"bytes"
	"testing"
)

func sampleHeader() Header {
	return Header{
		BoardID:      BoardID{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff},
		RelOffset:    512,
		SeqNum:       1234567,
		EventNum:     7,
		TriggerLow:   99,
		ChannelMask:  0b10001,
		NumSamples:   512,
		Channel:      4,
		TotalSamples: 1024,
		Drs4Stop:     126,
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	want := sampleHeader()
	buf := want.Encode()
	if len(buf) != HeaderSize {
		t.Fatalf("Encode() produced %d bytes, want %d", len(buf), HeaderSize)
	}

	got, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestDecodeHeaderShortRead(t *testing.T) {
	h := sampleHeader()
	buf := h.Encode()
	if _, err := DecodeHeader(buf[:HeaderSize-1]); err != ErrShortRead {
		t.Fatalf("DecodeHeader(torn buf): got %v, want ErrShortRead", err)
	}
}

func TestHasChannel(t *testing.T) {
	h := sampleHeader()
	if !h.HasChannel(0) || !h.HasChannel(4) {
		t.Errorf("expected channels 0 and 4 present in mask %b", h.ChannelMask)
	}
	if h.HasChannel(1) || h.HasChannel(63) {
		t.Errorf("unexpected channel present in mask %b", h.ChannelMask)
	}
}

func TestBoardIDString(t *testing.T) {
	b := BoardID{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	if got, want := b.String(), "aa:bb:cc:dd:ee:ff"; got != want {
		t.Errorf("BoardID.String() = %q, want %q", got, want)
	}
}

func TestEncodeDecodeSamples(t *testing.T) {
	samples := []int16{0, 16, 32, -1, NotData, MaskedData}
	buf := EncodeSamples(samples)
	got := DecodeSamples(buf)
	if len(got) != len(samples) {
		t.Fatalf("DecodeSamples returned %d samples, want %d", len(got), len(samples))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], samples[i])
		}
	}
}

func TestIsValidSample(t *testing.T) {
	cases := []struct {
		s     int16
		valid bool
	}{
		{0, true},
		{16, true},
		{NotData, false},
		{MaskedData, false},
		{FlagUnderflow, false},
		{FlagOverflow, false},
		{int16(0x10 | NotData), false},
	}
	for _, c := range cases {
		if got := IsValidSample(c.s); got != c.valid {
			t.Errorf("IsValidSample(%#x) = %v, want %v", c.s, got, c.valid)
		}
	}
}

func TestHeaderPayloadLen(t *testing.T) {
	h := sampleHeader()
	if got, want := h.PayloadLen(), 1024; got != want {
		t.Errorf("PayloadLen() = %d, want %d", got, want)
	}
}

// sanity check that Encode/DecodeHeader agree byte-for-byte with a
// hand-built buffer for the fixed prefix (board id + rel_offset).
func TestHeaderWireOrder(t *testing.T) {
	h := sampleHeader()
	buf := h.Encode()
	if !bytes.Equal(buf[0:6], h.BoardID[:]) {
		t.Errorf("board id not at offset 0")
	}
	if buf[6] != 0x00 || buf[7] != 0x02 {
		t.Errorf("rel_offset not little-endian at offset 6: %v", buf[6:8])
	}
}
