// Package packet implements picoNet's framed packet codec: a 12-byte
// big-endian header plus raw payload bytes, per SPEC_FULL.md §3 and
// §4.7.
package packet

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed wire size of a Header.
const HeaderSize = 12

// Header is the 12-byte packet header (§3, "Packet header"). Sequence
// is stored in a 32-bit field for header alignment but carries 16-bit
// semantics: both peers must agree to only ever populate it with
// values in [0, 65535] and compare it with the half-window rule in
// IsSequenceGreater.
type Header struct {
	ProtocolID  uint32
	Sequence    uint32
	Ack         uint16
	AckBitfield uint16
}

// Packet is a header plus opaque payload bytes.
type Packet struct {
	Header  Header
	Payload []byte
}

// Pack writes the header fields big-endian into a 12-byte prefix and
// appends the payload (§4.7).
func Pack(p Packet) []byte {
	buf := make([]byte, HeaderSize+len(p.Payload))
	binary.BigEndian.PutUint32(buf[0:4], p.Header.ProtocolID)
	binary.BigEndian.PutUint32(buf[4:8], p.Header.Sequence)
	binary.BigEndian.PutUint16(buf[8:10], p.Header.Ack)
	binary.BigEndian.PutUint16(buf[10:12], p.Header.AckBitfield)
	copy(buf[HeaderSize:], p.Payload)
	return buf
}

// ErrTooSmall is returned by Unpack when the buffer is shorter than
// HeaderSize (§4.7, §7 "Protocol error (net)").
var ErrTooSmall = fmt.Errorf("packet: buffer shorter than header size (%d bytes)", HeaderSize)

// Unpack decodes a buffer into a Packet. No length field is present;
// the datagram boundary is the frame boundary, so every byte after the
// header is payload.
func Unpack(buf []byte) (Packet, error) {
	if len(buf) < HeaderSize {
		return Packet{}, ErrTooSmall
	}
	h := Header{
		ProtocolID:  binary.BigEndian.Uint32(buf[0:4]),
		Sequence:    binary.BigEndian.Uint32(buf[4:8]),
		Ack:         binary.BigEndian.Uint16(buf[8:10]),
		AckBitfield: binary.BigEndian.Uint16(buf[10:12]),
	}
	payload := make([]byte, len(buf)-HeaderSize)
	copy(payload, buf[HeaderSize:])
	return Packet{Header: h, Payload: payload}, nil
}

// Handshake literals (§4.6): distinguishable from application packets
// because the header's minimum size (12 bytes) exceeds these 4-byte
// literals.
var (
	HandshakeChallenge = []byte{0xDE, 0xAD, 0xBE, 0xEF}
	HandshakeResponse  = []byte{0xCA, 0xFE, 0xBA, 0xBE}
)

// IsHandshakeChallenge reports whether buf is exactly the challenge
// literal.
func IsHandshakeChallenge(buf []byte) bool { return equalBytes(buf, HandshakeChallenge) }

// IsHandshakeResponse reports whether buf is exactly the response
// literal.
func IsHandshakeResponse(buf []byte) bool { return equalBytes(buf, HandshakeResponse) }

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// IsSequenceGreater implements the half-window comparison from §3:
// s1 > s2 iff (s1>s2 && s1-s2<=2^15) || (s1<s2 && s2-s1>2^15).
// Sequences are 16-bit; callers must keep both operands in
// [0, 65535].
func IsSequenceGreater(s1, s2 uint16) bool {
	if s1 > s2 {
		return s1-s2 <= 32768
	}
	if s1 < s2 {
		return s2-s1 > 32768
	}
	return false
}
