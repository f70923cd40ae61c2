package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/url"
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

func startDoH(t *testing.T, sink QuerySink) (*DoHTransport, string) {
	t.Helper()
	transport := NewDoHTransport(DoHOptions{
		Addr:   "127.0.0.1:0",
		Codec:  wire.NewMessageCodec(log.NewNoopLogger()),
		Logger: log.NewNoopLogger(),
	})
	require.NoError(t, transport.Start(context.Background(), sink))
	t.Cleanup(func() { _ = transport.Stop() })
	return transport, "http://" + transport.Address()
}

func dohClient() *http.Client {
	return &http.Client{Timeout: 2 * time.Second}
}

func TestDoHTransport_GETQuery(t *testing.T) {
	sink := &stubSink{answers: []domain.ResourceRecord{
		aRecord(t, "www.example.goat", "192.0.2.10", 300),
	}}
	_, base := startDoH(t, sink)

	query := packQuery(t, 0xABCD, "www.example.goat", dns.TypeA)
	encoded := base64.RawURLEncoding.EncodeToString(query)
	resp, err := dohClient().Get(base + "/dns-query?dns=" + url.QueryEscape(encoded))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, dnsMessageType, resp.Header.Get("Content-Type"))
	assert.Equal(t, "max-age=300", resp.Header.Get("Cache-Control"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	reply := unpack(t, body)
	assert.Equal(t, uint16(0xABCD), reply.Id)
	require.Len(t, reply.Answer, 1)

	client := sink.lastClient()
	require.NotNil(t, client)
	assert.Equal(t, "doh", client.Network())
}

func TestDoHTransport_POSTQuery(t *testing.T) {
	sink := &stubSink{}
	_, base := startDoH(t, sink)

	query := packQuery(t, 0x0101, "www.example.goat", dns.TypeA)
	resp, err := dohClient().Post(base+"/dns-query", dnsMessageType, bytes.NewReader(query))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0101), unpack(t, body).Id)
}

func TestDoHTransport_GETMissingParam(t *testing.T) {
	_, base := startDoH(t, &stubSink{})
	resp, err := dohClient().Get(base + "/dns-query")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDoHTransport_GETBadBase64(t *testing.T) {
	_, base := startDoH(t, &stubSink{})
	resp, err := dohClient().Get(base + "/dns-query?dns=%21%21not-base64%21%21")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDoHTransport_POSTWrongContentType(t *testing.T) {
	_, base := startDoH(t, &stubSink{})
	query := packQuery(t, 1, "www.example.goat", dns.TypeA)
	resp, err := dohClient().Post(base+"/dns-query", "text/plain", bytes.NewReader(query))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestDoHTransport_MalformedMessage(t *testing.T) {
	_, base := startDoH(t, &stubSink{})
	garbage := []byte{0xBE, 0xEF, 0x80, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	resp, err := dohClient().Post(base+"/dns-query", dnsMessageType, bytes.NewReader(garbage))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDoHTransport_OverloadGets503(t *testing.T) {
	_, base := startDoH(t, &stubSink{err: resolver.ErrQueueFull})
	query := packQuery(t, 2, "www.example.goat", dns.TypeA)
	resp, err := dohClient().Post(base+"/dns-query", dnsMessageType, bytes.NewReader(query))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestDoHTransport_UnsupportedOpcodeGetsNotImp(t *testing.T) {
	sink := &stubSink{}
	_, base := startDoH(t, sink)

	resp, err := dohClient().Post(base+"/dns-query", dnsMessageType, bytes.NewReader(packStatusQuery(t, 3, "www.example.goat")))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, dns.RcodeNotImplemented, unpack(t, body).Rcode)
	assert.Equal(t, 0, sink.queryCount())
}

func TestDoHTransport_MethodNotAllowed(t *testing.T) {
	_, base := startDoH(t, &stubSink{})
	req, err := http.NewRequest(http.MethodDelete, base+"/dns-query", nil)
	require.NoError(t, err)
	resp, err := dohClient().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestDoHTransport_MetricsEndpoint(t *testing.T) {
	_, base := startDoH(t, &stubSink{})
	resp, err := dohClient().Get(base + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "goatd_resolve_duration_seconds")
}
