package transport

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byuccl/coast/internal/model"
)

func TestFrameRoundTrip(t *testing.T) {
	payloads := [][]byte{
		{},
		[]byte("hit breakpoint"),
		bytes.Repeat([]byte{0xAB}, 70000), // exercise a multi-Read-syscall payload
	}
	for _, p := range payloads {
		var buf bytes.Buffer
		require.NoError(t, Send(&buf, p))
		got, err := Recv(&buf)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestRecvShortHeaderFailsConnectionLost(t *testing.T) {
	_, err := Recv(bytes.NewReader([]byte{0x00, 0x01}))
	require.ErrorIs(t, err, model.ErrConnectionLost)
}

func TestRecvRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Send(&buf, nil))
	bad := []byte{0xFF, 0xFF, 0xFF, 0xFF} // declares ~4GB payload
	_, err := Recv(bytes.NewReader(bad))
	require.Error(t, err)
}
