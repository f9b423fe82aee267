package control

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/boombox/internal/errmsg"
)

func startServer(t *testing.T, handle func(Command)) (net.Addr, context.CancelFunc) {
	t.Helper()

	cmds := make(chan Command)
	srv := NewServer("127.0.0.1:0", cmds)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	go func() {
		for {
			select {
			case cmd := <-cmds:
				handle(cmd)
			case <-ctx.Done():
				return
			}
		}
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("Serve did not return")
		}
	})
	return srv.Addr(), cancel
}

func dial(t *testing.T, addr net.Addr) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	return conn, bufio.NewReader(conn)
}

func TestServer_ForwardsCommandsAndWritesReplies(t *testing.T) {
	got := make(chan Command, 4)
	addr, _ := startServer(t, func(cmd Command) {
		got <- cmd
		cmd.Respond(errmsg.OK(cmd.Kind.String()))
	})

	conn, r := dial(t, addr)

	_, err := conn.Write([]byte("next\r\nboombox:inbox\n"))
	require.NoError(t, err)

	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "# OK, next\n", line)

	line, err = r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "# OK, select\n", line)

	first := <-got
	assert.Equal(t, Next, first.Kind)
	assert.Equal(t, SourceNetwork, first.Source)
	second := <-got
	assert.Equal(t, Select, second.Kind)
	assert.Equal(t, "boombox:inbox", second.URI)
}

func TestServer_UnsupportedCommand(t *testing.T) {
	addr, _ := startServer(t, func(cmd Command) {
		t.Errorf("unexpected command %v", cmd.Kind)
	})

	conn, r := dial(t, addr)
	_, err := conn.Write([]byte("rewind\n"))
	require.NoError(t, err)

	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "# ERR, unsupported command\n", line)
}

func TestServer_CancelClosesClients(t *testing.T) {
	addr, cancel := startServer(t, func(Command) {})

	_, r := dial(t, addr)
	cancel()

	_, err := r.ReadString('\n')
	assert.Error(t, err)
}
