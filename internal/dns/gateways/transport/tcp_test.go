package transport

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caprine/goatd/internal/dns/common/log"
	"github.com/caprine/goatd/internal/dns/domain"
	"github.com/caprine/goatd/internal/dns/gateways/wire"
	"github.com/caprine/goatd/internal/dns/services/resolver"
)

func startTCP(t *testing.T, sink QuerySink, idle time.Duration) (*TCPTransport, net.Conn) {
	t.Helper()
	transport := NewTCPTransport(TCPOptions{
		Addr:        "127.0.0.1:0",
		Codec:       wire.NewMessageCodec(log.NewNoopLogger()),
		Logger:      log.NewNoopLogger(),
		IdleTimeout: idle,
	})
	require.NoError(t, transport.Start(context.Background(), sink))
	t.Cleanup(func() { _ = transport.Stop() })

	conn, err := net.Dial("tcp", transport.Address())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return transport, conn
}

func writeFramed(t *testing.T, conn net.Conn, msg []byte) {
	t.Helper()
	framed := make([]byte, 2+len(msg))
	binary.BigEndian.PutUint16(framed[:2], uint16(len(msg)))
	copy(framed[2:], msg)
	_, err := conn.Write(framed)
	require.NoError(t, err)
}

func readFramed(t *testing.T, conn net.Conn) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var lenBuf [2]byte
	_, err := io.ReadFull(conn, lenBuf[:])
	require.NoError(t, err)
	msg := make([]byte, binary.BigEndian.Uint16(lenBuf[:]))
	_, err = io.ReadFull(conn, msg)
	require.NoError(t, err)
	return msg
}

func TestTCPTransport_QueryResponse(t *testing.T) {
	sink := &stubSink{answers: []domain.ResourceRecord{
		aRecord(t, "www.example.goat", "192.0.2.10", 300),
	}}
	_, conn := startTCP(t, sink, 0)

	writeFramed(t, conn, packQuery(t, 0x4321, "www.example.goat", dns.TypeA))
	reply := unpack(t, readFramed(t, conn))

	assert.Equal(t, uint16(0x4321), reply.Id)
	assert.True(t, reply.Authoritative)
	require.Len(t, reply.Answer, 1)

	client := sink.lastClient()
	require.NotNil(t, client)
	assert.Equal(t, "tcp", client.Network())
}

func TestTCPTransport_PipelinedQueriesAnsweredInOrder(t *testing.T) {
	sink := &stubSink{}
	_, conn := startTCP(t, sink, 0)

	writeFramed(t, conn, packQuery(t, 1, "a.example.goat", dns.TypeA))
	writeFramed(t, conn, packQuery(t, 2, "b.example.goat", dns.TypeA))
	writeFramed(t, conn, packQuery(t, 3, "c.example.goat", dns.TypeA))

	for want := uint16(1); want <= 3; want++ {
		reply := unpack(t, readFramed(t, conn))
		assert.Equal(t, want, reply.Id)
	}
}

func TestTCPTransport_OverloadGetsServFail(t *testing.T) {
	sink := &stubSink{err: resolver.ErrTimedOut}
	_, conn := startTCP(t, sink, 0)

	writeFramed(t, conn, packQuery(t, 5, "www.example.goat", dns.TypeA))
	reply := unpack(t, readFramed(t, conn))

	assert.Equal(t, dns.RcodeServerFailure, reply.Rcode)

	// The connection survives the overload reply.
	writeFramed(t, conn, packQuery(t, 6, "www.example.goat", dns.TypeA))
	reply = unpack(t, readFramed(t, conn))
	assert.Equal(t, uint16(6), reply.Id)
}

func TestTCPTransport_UnsupportedOpcodeKeepsConnection(t *testing.T) {
	sink := &stubSink{}
	_, conn := startTCP(t, sink, 0)

	writeFramed(t, conn, packStatusQuery(t, 8, "www.example.goat"))
	reply := unpack(t, readFramed(t, conn))
	assert.Equal(t, dns.RcodeNotImplemented, reply.Rcode)

	writeFramed(t, conn, packQuery(t, 9, "www.example.goat", dns.TypeA))
	reply = unpack(t, readFramed(t, conn))
	assert.Equal(t, uint16(9), reply.Id)
}

func TestTCPTransport_MalformedGetsFormErrThenClose(t *testing.T) {
	sink := &stubSink{}
	_, conn := startTCP(t, sink, 0)

	writeFramed(t, conn, []byte{0xBE, 0xEF, 0x80, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})
	reply := unpack(t, readFramed(t, conn))
	assert.Equal(t, uint16(0xBEEF), reply.Id)
	assert.Equal(t, dns.RcodeFormatError, reply.Rcode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 2)
	_, err := io.ReadFull(conn, buf)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 0, sink.queryCount())
}

func TestTCPTransport_IdleConnectionClosed(t *testing.T) {
	sink := &stubSink{}
	_, conn := startTCP(t, sink, 100*time.Millisecond)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 2)
	_, err := io.ReadFull(conn, buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestTCPTransport_StopWaitsForConnections(t *testing.T) {
	sink := &stubSink{}
	transport, conn := startTCP(t, sink, 0)

	writeFramed(t, conn, packQuery(t, 11, "www.example.goat", dns.TypeA))
	_ = readFramed(t, conn)
	_ = conn.Close()

	require.NoError(t, transport.Stop())
	_, err := net.DialTimeout("tcp", transport.Address(), 200*time.Millisecond)
	assert.Error(t, err)
}
