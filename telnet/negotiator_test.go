package telnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialNegotiation(t *testing.T) {
	n := NewNegotiator(DefaultTerminalProfile())
	got := n.InitialNegotiation()
	want := []byte{
		0xFF, 0xFB, 0x03, // WILL SGA
		0xFF, 0xFD, 0x03, // DO SGA
		0xFF, 0xFC, 0x01, // WONT ECHO
		0xFF, 0xFB, 0x18, // WILL TERMINAL_TYPE
		0xFF, 0xFB, 0x1F, // WILL NAWS
	}
	assert.Equal(t, want, got)
}

func TestHandleCommand_PlainData(t *testing.T) {
	n := NewNegotiator(DefaultTerminalProfile())
	data, replies := n.HandleCommand([]byte("hello"))
	assert.Equal(t, []byte("hello"), data)
	assert.Empty(t, replies)
}

func TestHandleCommand_IACEscape(t *testing.T) {
	n := NewNegotiator(DefaultTerminalProfile())
	data, replies := n.HandleCommand([]byte{'H', 0xFF, 0xFF, 't', 'e', 'l'})
	assert.Equal(t, []byte{'H', 0xFF, 't', 'e', 'l'}, data)
	assert.Empty(t, replies)
}

func TestHandleCommand_ByteByByteMatchesOneShot(t *testing.T) {
	input := []byte{'H', 0xFF, 0xFF, 't', 0xFF, 0xFD, 0x03, 'x'}

	n1 := NewNegotiator(DefaultTerminalProfile())
	oneShotData, oneShotReplies := n1.HandleCommand(input)

	n2 := NewNegotiator(DefaultTerminalProfile())
	var streamedData []byte
	var streamedReplies [][]byte
	for _, b := range input {
		d, r := n2.HandleCommand([]byte{b})
		streamedData = append(streamedData, d...)
		streamedReplies = append(streamedReplies, r...)
	}

	assert.Equal(t, oneShotData, streamedData)
	assert.Equal(t, oneShotReplies, streamedReplies)
}

func TestNegotiate_CommonOptionAccepted(t *testing.T) {
	n := NewNegotiator(DefaultTerminalProfile())
	_, replies := n.HandleCommand(EncodeCommand(DO, SuppressGA))
	require.Len(t, replies, 1)
	assert.Equal(t, EncodeCommand(WILL, SuppressGA), replies[0])
	assert.True(t, n.OurOption(SuppressGA))
}

func TestNegotiate_TheirOptionTracksWillWont(t *testing.T) {
	n := NewNegotiator(DefaultTerminalProfile())
	assert.False(t, n.TheirOption(SuppressGA))

	_, _ = n.HandleCommand(EncodeCommand(WILL, SuppressGA))
	assert.True(t, n.TheirOption(SuppressGA))

	_, _ = n.HandleCommand(EncodeCommand(WONT, SuppressGA))
	assert.False(t, n.TheirOption(SuppressGA))
}

func TestNegotiate_UnknownOptionRejected(t *testing.T) {
	n := NewNegotiator(DefaultTerminalProfile())
	unknown := Option(88)
	_, replies := n.HandleCommand(EncodeCommand(DO, unknown))
	require.Len(t, replies, 1)
	assert.Equal(t, EncodeCommand(WONT, unknown), replies[0])
	assert.False(t, n.OurOption(unknown))
}

func TestNegotiate_DontWontAlwaysAccepted(t *testing.T) {
	n := NewNegotiator(DefaultTerminalProfile())
	_, replies := n.HandleCommand(EncodeCommand(DONT, Echo))
	require.Len(t, replies, 1)
	assert.Equal(t, EncodeCommand(WONT, Echo), replies[0])
}

func TestTerminalTypeSendSequence(t *testing.T) {
	n := NewNegotiator(DefaultTerminalProfile())
	input := []byte{0xFF, 0xFD, 0x18, 0xFF, 0xFA, 0x18, 0x01, 0xFF, 0xF0}
	_, replies := n.HandleCommand(input)
	require.Len(t, replies, 2)
	assert.Equal(t, []byte{0xFF, 0xFB, 0x18}, replies[0])
	want := append([]byte{0xFF, 0xFA, 0x18, 0x00}, []byte("VT100")...)
	want = append(want, 0xFF, 0xF0)
	assert.Equal(t, want, replies[1])
}

func TestNegotiate_DontWontOnHandledOptionIsSilent(t *testing.T) {
	n := NewNegotiator(DefaultTerminalProfile())

	_, replies := n.HandleCommand(EncodeCommand(DO, TerminalType))
	require.Len(t, replies, 1)
	require.True(t, n.OurOption(TerminalType))

	// DONT must be delegated to the registered handler too, which
	// leaves state untouched, rather than falling through to the
	// generic path and flipping OurOption false with an AcceptResponse.
	_, replies = n.HandleCommand(EncodeCommand(DONT, TerminalType))
	assert.Empty(t, replies)
	assert.True(t, n.OurOption(TerminalType))
}

func TestNAWSDoSendsSize(t *testing.T) {
	n := NewNegotiator(TerminalProfile{TermType: "VT100", Width: 80, Height: 24})
	_, replies := n.HandleCommand(EncodeCommand(DO, NAWS))
	require.Len(t, replies, 1)
	want := append(EncodeCommand(WILL, NAWS), EncodeSubneg(NAWS, []byte{0, 80, 0, 24})...)
	assert.Equal(t, want, replies[0])
}
