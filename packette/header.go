// Package packette decodes and encodes the packette wire protocol: the
// fixed 40-byte transport header used by the digitizer board firmware to
// deliver fragments of an event's waveform samples.
//
// The header layout and the low-bit sample flag convention are the wire
// contract; everything in this package is concerned only with turning bytes
// into a Header (and back), not with what an event or a run is.
package packette

import "encoding/binary"

// HeaderSize is the size in bytes of a packette transport header.
const HeaderSize = 40

// NumChannels is the number of independent waveform channels a single event
// can carry; channel_mask is 64 bits wide and Header.Channel is 0..63.
const NumChannels = 64

// SCALength is the length of the switched-capacitor array ring: the fixed
// size of a channel's cached view in either coordinate system.
const SCALength = 1024

// Sample flag bits. The low 4 bits of every 16-bit sample are reserved; a
// sample is valid iff none of them are set.
const (
	FlagUnderflow = 0x1
	FlagOverflow  = 0x2
	// NotData marks a cached-view position outside the channel's declared
	// total_samples. A position inside total_samples that no fragment
	// wrote is not flagged; it holds 0.
	NotData = 0x4
	// MaskedData marks a position explicitly masked out (around the stop
	// sample by default, or by an explicit Channel.Mask call).
	MaskedData = 0x8

	flagMask = 0xF
)

// IsValidSample reports whether none of the reserved low 4 flag bits are
// set on s.
func IsValidSample(s int16) bool {
	return s&flagMask == 0
}

// BoardID is the 6-byte MAC-like identifier carried by every packet of a
// run; it is constant for the run's lifetime.
type BoardID [6]byte

// String renders a BoardID in the conventional colon-separated hex form,
// e.g. "aa:bb:cc:dd:ee:ff".
func (b BoardID) String() string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 0, 17)
	for i, v := range b {
		if i > 0 {
			out = append(out, ':')
		}
		out = append(out, hexDigits[v>>4], hexDigits[v&0xf])
	}
	return string(out)
}

// Header is the fixed 40-byte packette transport header, decoded in
// wire (little-endian) order regardless of host endianness.
type Header struct {
	BoardID      BoardID
	RelOffset    uint16
	SeqNum       uint64
	EventNum     uint32
	TriggerLow   uint32
	ChannelMask  uint64
	NumSamples   uint16
	Channel      uint16
	TotalSamples uint16
	Drs4Stop     uint16
}

// HasChannel reports whether channel c is present in this header's
// channel_mask.
func (h *Header) HasChannel(c uint16) bool {
	return h.ChannelMask&(1<<c) != 0
}

// PayloadLen is the number of bytes of sample payload that follow this
// header on the wire.
func (h *Header) PayloadLen() int {
	return int(h.NumSamples) * 2
}

// headerCursor is a small byte-slice reader for the fixed header layout,
// in the same spirit as a hand-rolled binary decoder over a fixed-size
// buffer: no allocation, no reflection, just little-endian field reads in
// wire order.
type headerCursor struct {
	buf []byte
}

func (c *headerCursor) bytes(n int) []byte {
	b := c.buf[:n]
	c.buf = c.buf[n:]
	return b
}

func (c *headerCursor) u16() uint16 {
	x := binary.LittleEndian.Uint16(c.buf)
	c.buf = c.buf[2:]
	return x
}

func (c *headerCursor) u32() uint32 {
	x := binary.LittleEndian.Uint32(c.buf)
	c.buf = c.buf[4:]
	return x
}

func (c *headerCursor) u64() uint64 {
	x := binary.LittleEndian.Uint64(c.buf)
	c.buf = c.buf[8:]
	return x
}

// DecodeHeader decodes a packette transport header from buf. buf must be
// at least HeaderSize bytes; callers that read fewer bytes from a file or
// socket (a torn tail, or data simply not arrived yet) should treat that as
// ErrShortRead rather than call DecodeHeader.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrShortRead
	}

	c := headerCursor{buf: buf[:HeaderSize]}

	var h Header
	copy(h.BoardID[:], c.bytes(6))
	h.RelOffset = c.u16()
	h.SeqNum = c.u64()
	h.EventNum = c.u32()
	h.TriggerLow = c.u32()
	h.ChannelMask = c.u64()
	h.NumSamples = c.u16()
	h.Channel = c.u16()
	h.TotalSamples = c.u16()
	h.Drs4Stop = c.u16()

	return h, nil
}

// Encode renders h back into its 40-byte wire form. It is used by tests
// and by anything synthesizing packette traffic (e.g. a simulated board).
func (h *Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:6], h.BoardID[:])
	binary.LittleEndian.PutUint16(buf[6:8], h.RelOffset)
	binary.LittleEndian.PutUint64(buf[8:16], h.SeqNum)
	binary.LittleEndian.PutUint32(buf[16:20], h.EventNum)
	binary.LittleEndian.PutUint32(buf[20:24], h.TriggerLow)
	binary.LittleEndian.PutUint64(buf[24:32], h.ChannelMask)
	binary.LittleEndian.PutUint16(buf[32:34], h.NumSamples)
	binary.LittleEndian.PutUint16(buf[34:36], h.Channel)
	binary.LittleEndian.PutUint16(buf[36:38], h.TotalSamples)
	binary.LittleEndian.PutUint16(buf[38:40], h.Drs4Stop)
	return buf
}

// EncodeSamples renders samples as little-endian 16-bit wire payload,
// suitable for appending directly after Encode()'s header bytes.
func EncodeSamples(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// DecodeSamples reads little-endian 16-bit samples from buf. len(buf) must
// be even; it is the caller's responsibility to pass exactly
// Header.PayloadLen() bytes.
func DecodeSamples(buf []byte) []int16 {
	samples := make([]int16, len(buf)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}
	return samples
}
