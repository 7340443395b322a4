package packet_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roguevault/internal/netcode/packet"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	p := packet.Packet{
		Header: packet.Header{
			ProtocolID:  0x524F4755,
			Sequence:    42,
			Ack:         41,
			AckBitfield: 0b1011,
		},
		Payload: []byte("hello"),
	}
	buf := packet.Pack(p)
	assert.Len(t, buf, packet.HeaderSize+len("hello"))

	got, err := packet.Unpack(buf)
	require.NoError(t, err)
	assert.Equal(t, p.Header, got.Header)
	assert.Equal(t, p.Payload, got.Payload)
}

func TestUnpackTooShortIsError(t *testing.T) {
	_, err := packet.Unpack([]byte{0x01, 0x02, 0x03})
	assert.ErrorIs(t, err, packet.ErrTooSmall)
}

func TestUnpackEmptyPayloadIsValid(t *testing.T) {
	buf := packet.Pack(packet.Packet{Header: packet.Header{ProtocolID: 1, Sequence: 0}})
	got, err := packet.Unpack(buf)
	require.NoError(t, err)
	assert.Empty(t, got.Payload)
}

func TestHandshakeLiteralsAreDistinguishable(t *testing.T) {
	assert.True(t, packet.IsHandshakeChallenge(packet.HandshakeChallenge))
	assert.False(t, packet.IsHandshakeChallenge(packet.HandshakeResponse))
	assert.True(t, packet.IsHandshakeResponse(packet.HandshakeResponse))
	assert.False(t, packet.IsHandshakeResponse(packet.HandshakeChallenge))
}

func TestIsSequenceGreaterWithinWindow(t *testing.T) {
	assert.True(t, packet.IsSequenceGreater(5, 3))
	assert.False(t, packet.IsSequenceGreater(3, 5))
	assert.False(t, packet.IsSequenceGreater(3, 3))
}

func TestIsSequenceGreaterAcrossWraparound(t *testing.T) {
	// 1 is "greater" than 65534 because the gap the other way (65534->1)
	// is only 3, well within the half window, while 1->65534 the long
	// way round would be the larger, implausible jump.
	assert.True(t, packet.IsSequenceGreater(1, 65534))
	assert.False(t, packet.IsSequenceGreater(65534, 1))
}
