// Package transport provides the network listeners for the DNS server.
// Each transport converts between its protocol framing and raw DNS
// messages, then hands decoded questions to the dispatch layer; the
// service layer never sees sockets.
package transport

import (
	"context"
	"net"
	"time"

	"github.com/caprine/goatd/internal/dns/domain"
)

// ServerTransport defines the interface for DNS server transport
// implementations. UDP, TCP and DoH implement this interface while
// providing the same dispatch contract to the service layer.
type ServerTransport interface {
	// Start begins listening and feeding queries into the sink. It
	// returns once the listener is bound; serving continues in the
	// background until Stop or ctx cancellation.
	Start(ctx context.Context, sink QuerySink) error

	// Stop gracefully shuts down the transport.
	Stop() error

	// Address returns the network address the transport is bound to.
	Address() string
}

// QuerySink accepts decoded queries for resolution. Implemented by
// resolver.Dispatcher; Submit never blocks past the reply timeout and
// fails fast when the server is saturated.
type QuerySink interface {
	Submit(ctx context.Context, q domain.Question, client net.Addr) (domain.DNSResponse, error)
}

// TransportType represents the DNS transport protocols supported.
type TransportType string

const (
	// TransportUDP is standard DNS over UDP (RFC 1035).
	TransportUDP TransportType = "udp"

	// TransportTCP is DNS over TCP (RFC 1035 §4.2.2, RFC 7766).
	TransportTCP TransportType = "tcp"

	// TransportDoH is DNS over HTTPS (RFC 8484).
	TransportDoH TransportType = "doh"
)

const (
	// DefaultUDPPayloadSize is the largest UDP response sent before
	// truncation, per the DNS flag day 2020 recommendation.
	DefaultUDPPayloadSize = 1232

	// maxTCPMessage is the largest message the 2-byte length framing
	// can carry.
	maxTCPMessage = 65535

	// defaultIdleTimeout closes TCP connections with no queries.
	defaultIdleTimeout = 30 * time.Second
)

// dohClientAddr carries the HTTP client address through the dispatch
// path while identifying the transport as DoH.
type dohClientAddr string

func (dohClientAddr) Network() string  { return "doh" }
func (a dohClientAddr) String() string { return string(a) }
