package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/caprine/goatd/internal/dns/common/log"
	"github.com/caprine/goatd/internal/dns/common/metrics"
	"github.com/caprine/goatd/internal/dns/domain"
	"github.com/caprine/goatd/internal/dns/gateways/wire"
)

// UDPTransport implements ServerTransport for standard DNS over UDP.
// It handles socket management, datagram reception and transmission, and
// wire format conversion while delegating DNS logic to the dispatch layer.
type UDPTransport struct {
	addr        string
	conn        *net.UDPConn
	codec       wire.DNSCodec
	logger      log.Logger
	payloadSize int

	// formErrReplies makes undecodable datagrams earn a FORMERR instead
	// of the default silent drop.
	formErrReplies bool

	mu      sync.RWMutex
	running bool
}

// UDPOptions configures a UDPTransport.
type UDPOptions struct {
	Addr   string
	Codec  wire.DNSCodec
	Logger log.Logger

	// PayloadSize caps response datagrams; zero means
	// DefaultUDPPayloadSize.
	PayloadSize int

	// FormErrReplies answers malformed datagrams with FORMERR when the
	// transaction ID is recoverable. Off by default: an authoritative
	// server on the open internet should not amplify garbage.
	FormErrReplies bool
}

// NewUDPTransport creates a new UDP transport instance.
func NewUDPTransport(opts UDPOptions) *UDPTransport {
	if opts.PayloadSize <= 0 {
		opts.PayloadSize = DefaultUDPPayloadSize
	}
	return &UDPTransport{
		addr:           opts.Addr,
		codec:          opts.Codec,
		logger:         opts.Logger,
		payloadSize:    opts.PayloadSize,
		formErrReplies: opts.FormErrReplies,
	}
}

// Start binds the UDP socket and launches the read loop.
func (t *UDPTransport) Start(ctx context.Context, sink QuerySink) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("UDP transport already running")
	}

	udpAddr, err := net.ResolveUDPAddr("udp", t.addr)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address %s: %w", t.addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("failed to bind UDP socket on %s: %w", t.addr, err)
	}
	t.conn = conn
	t.running = true

	t.logger.Info(map[string]any{
		"transport": "udp",
		"address":   conn.LocalAddr().String(),
	}, "DNS transport started")

	go t.listenLoop(ctx, sink)
	return nil
}

// Stop closes the socket, which unblocks the read loop.
func (t *UDPTransport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil
	}
	t.running = false
	err := t.conn.Close()
	t.logger.Info(map[string]any{
		"transport": "udp",
		"address":   t.addr,
	}, "DNS transport stopped")
	return err
}

// Address returns the bound address.
func (t *UDPTransport) Address() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.conn != nil {
		return t.conn.LocalAddr().String()
	}
	return t.addr
}

func (t *UDPTransport) listenLoop(ctx context.Context, sink QuerySink) {
	buffer := make([]byte, maxTCPMessage)
	for {
		n, clientAddr, err := t.conn.ReadFromUDP(buffer)
		if err != nil {
			t.mu.RLock()
			running := t.running
			t.mu.RUnlock()
			if !running || ctx.Err() != nil {
				return
			}
			t.logger.Warn(map[string]any{"error": err.Error()}, "Failed to read UDP packet")
			continue
		}
		packet := make([]byte, n)
		copy(packet, buffer[:n])
		go t.handlePacket(ctx, packet, clientAddr, sink)
	}
}

// handlePacket processes a single datagram. Every failure mode on UDP
// resolves to either a small error reply or a silent drop; the loop never
// stalls on one client.
func (t *UDPTransport) handlePacket(ctx context.Context, data []byte, clientAddr *net.UDPAddr, sink QuerySink) {
	query, err := t.codec.DecodeQuery(data)
	switch {
	case errors.Is(err, wire.ErrUnsupportedOpcode):
		t.send(domain.NewDNSErrorResponse(query, domain.RCodeNotImp), clientAddr)
		return
	case err != nil:
		metrics.DroppedTotal.WithLabelValues("decode").Inc()
		t.logger.Warn(map[string]any{
			"client": clientAddr.String(),
			"error":  err.Error(),
			"size":   len(data),
		}, "Failed to decode DNS query")
		if t.formErrReplies && len(data) >= 2 {
			t.send(domain.DNSResponse{
				ID:    binary.BigEndian.Uint16(data[0:2]),
				RCode: domain.RCodeFormErr,
			}, clientAddr)
		}
		return
	}

	response, err := sink.Submit(ctx, query, clientAddr)
	if err != nil {
		// Queue-full and timeout are silent on UDP; the client
		// retransmits or falls back to TCP.
		t.logger.Debug(map[string]any{
			"client":   clientAddr.String(),
			"query_id": query.ID,
			"error":    err.Error(),
		}, "Dropped UDP query without response")
		return
	}
	t.send(response, clientAddr)
}

func (t *UDPTransport) send(response domain.DNSResponse, clientAddr *net.UDPAddr) {
	data, err := t.codec.EncodeResponse(response, t.payloadSize)
	if err != nil {
		t.logger.Error(map[string]any{
			"client":   clientAddr.String(),
			"query_id": response.ID,
			"error":    err.Error(),
		}, "Failed to encode DNS response")
		return
	}
	if len(data) >= 4 && data[2]&0x02 != 0 {
		metrics.TruncatedTotal.Inc()
	}
	if _, err := t.conn.WriteToUDP(data, clientAddr); err != nil {
		t.logger.Error(map[string]any{
			"client": clientAddr.String(),
			"error":  err.Error(),
		}, "Failed to send DNS response")
	}
}

var _ ServerTransport = (*UDPTransport)(nil)
