package debugagent

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byuccl/coast/internal/boards"
	"github.com/byuccl/coast/internal/transport"
)

func TestCeilDuration(t *testing.T) {
	assert.Equal(t, 2.0, ceilDuration(1.2))
	assert.Equal(t, 2.0, ceilDuration(2.0))
}

func TestDispatchUnrecognizedCommand(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer serverSide.Close()
	defer clientSide.Close()

	a := New(boards.Pynq, "gdb", "/tmp/fw.elf", 1234, nil)
	a.conn = transport.NewConn(serverSide)
	client := transport.NewConn(clientSide)

	done := make(chan struct{})
	go func() {
		reply, err := client.RecvString()
		require.NoError(t, err)
		assert.Equal(t, "invalid command: bogus", reply)
		close(done)
	}()

	finished, err := a.dispatch("bogus")
	require.NoError(t, err)
	assert.False(t, finished)
	<-done
}
