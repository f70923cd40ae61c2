package transport

import (
	"context"
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

func startUDP(t *testing.T, sink QuerySink, formErr bool) (*UDPTransport, net.Conn) {
	t.Helper()
	transport := NewUDPTransport(UDPOptions{
		Addr:           "127.0.0.1:0",
		Codec:          wire.NewMessageCodec(log.NewNoopLogger()),
		Logger:         log.NewNoopLogger(),
		FormErrReplies: formErr,
	})
	require.NoError(t, transport.Start(context.Background(), sink))
	t.Cleanup(func() { _ = transport.Stop() })

	conn, err := net.Dial("udp", transport.Address())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return transport, conn
}

func udpExchange(t *testing.T, conn net.Conn, query []byte) []byte {
	t.Helper()
	_, err := conn.Write(query)
	require.NoError(t, err)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	return buf[:n]
}

func TestUDPTransport_QueryResponse(t *testing.T) {
	sink := &stubSink{answers: []domain.ResourceRecord{
		aRecord(t, "www.example.goat", "192.0.2.10", 300),
	}}
	_, conn := startUDP(t, sink, false)

	reply := unpack(t, udpExchange(t, conn, packQuery(t, 0x1234, "www.example.goat", dns.TypeA)))

	assert.Equal(t, uint16(0x1234), reply.Id)
	assert.True(t, reply.Response)
	assert.True(t, reply.Authoritative)
	assert.Equal(t, dns.RcodeSuccess, reply.Rcode)
	require.Len(t, reply.Answer, 1)
	a, ok := reply.Answer[0].(*dns.A)
	require.True(t, ok)
	assert.Equal(t, "192.0.2.10", a.A.String())

	client := sink.lastClient()
	require.NotNil(t, client)
	assert.Equal(t, "udp", client.Network())
}

func TestUDPTransport_UnsupportedOpcodeGetsNotImp(t *testing.T) {
	sink := &stubSink{}
	_, conn := startUDP(t, sink, false)

	reply := unpack(t, udpExchange(t, conn, packStatusQuery(t, 7, "www.example.goat")))

	assert.Equal(t, dns.RcodeNotImplemented, reply.Rcode)
	assert.Equal(t, 0, sink.queryCount())
}

func TestUDPTransport_MalformedDroppedSilently(t *testing.T) {
	sink := &stubSink{}
	_, conn := startUDP(t, sink, false)

	// QR bit set marks this as a response, which the decoder rejects.
	garbage := []byte{0xBE, 0xEF, 0x80, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	_, err := conn.Write(garbage)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	buf := make([]byte, 512)
	_, err = conn.Read(buf)
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
	assert.Equal(t, 0, sink.queryCount())
}

func TestUDPTransport_MalformedGetsFormErrWhenEnabled(t *testing.T) {
	sink := &stubSink{}
	_, conn := startUDP(t, sink, true)

	garbage := []byte{0xBE, 0xEF, 0x80, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	reply := unpack(t, udpExchange(t, conn, garbage))

	assert.Equal(t, uint16(0xBEEF), reply.Id)
	assert.Equal(t, dns.RcodeFormatError, reply.Rcode)
	assert.Equal(t, 0, sink.queryCount())
}

func TestUDPTransport_OverloadDroppedSilently(t *testing.T) {
	sink := &stubSink{err: resolver.ErrQueueFull}
	_, conn := startUDP(t, sink, false)

	_, err := conn.Write(packQuery(t, 9, "www.example.goat", dns.TypeA))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	buf := make([]byte, 512)
	_, err = conn.Read(buf)
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestUDPTransport_StartTwiceFails(t *testing.T) {
	sink := &stubSink{}
	transport, _ := startUDP(t, sink, false)
	assert.Error(t, transport.Start(context.Background(), sink))
}

func TestUDPTransport_StopIsIdempotent(t *testing.T) {
	transport := NewUDPTransport(UDPOptions{
		Addr:   "127.0.0.1:0",
		Codec:  wire.NewMessageCodec(log.NewNoopLogger()),
		Logger: log.NewNoopLogger(),
	})
	require.NoError(t, transport.Start(context.Background(), &stubSink{}))
	assert.NoError(t, transport.Stop())
	assert.NoError(t, transport.Stop())
}
