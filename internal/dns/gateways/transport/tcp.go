package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/caprine/goatd/internal/dns/common/log"
	"github.com/caprine/goatd/internal/dns/domain"
	"github.com/caprine/goatd/internal/dns/gateways/wire"
	"github.com/caprine/goatd/internal/dns/services/resolver"
)

// TCPTransport implements ServerTransport for DNS over TCP with the
// 2-octet length framing of RFC 1035 §4.2.2. Each connection is served by
// one goroutine and its queries are answered strictly in arrival order,
// so pipelined clients can match responses by position as well as by ID.
type TCPTransport struct {
	addr        string
	listener    net.Listener
	codec       wire.DNSCodec
	logger      log.Logger
	idleTimeout time.Duration

	mu      sync.RWMutex
	running bool
	conns   sync.WaitGroup
}

// TCPOptions configures a TCPTransport.
type TCPOptions struct {
	Addr   string
	Codec  wire.DNSCodec
	Logger log.Logger

	// IdleTimeout closes connections with no traffic; zero means
	// defaultIdleTimeout.
	IdleTimeout time.Duration
}

// NewTCPTransport creates a new TCP transport instance.
func NewTCPTransport(opts TCPOptions) *TCPTransport {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = defaultIdleTimeout
	}
	return &TCPTransport{
		addr:        opts.Addr,
		codec:       opts.Codec,
		logger:      opts.Logger,
		idleTimeout: opts.IdleTimeout,
	}
}

// Start binds the listener and launches the accept loop.
func (t *TCPTransport) Start(ctx context.Context, sink QuerySink) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("TCP transport already running")
	}
	listener, err := net.Listen("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("failed to bind TCP listener on %s: %w", t.addr, err)
	}
	t.listener = listener
	t.running = true

	t.logger.Info(map[string]any{
		"transport": "tcp",
		"address":   listener.Addr().String(),
	}, "DNS transport started")

	go t.acceptLoop(ctx, sink)
	return nil
}

// Stop closes the listener and waits for open connections to finish
// their current query.
func (t *TCPTransport) Stop() error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = false
	err := t.listener.Close()
	t.mu.Unlock()

	t.conns.Wait()
	t.logger.Info(map[string]any{
		"transport": "tcp",
		"address":   t.addr,
	}, "DNS transport stopped")
	return err
}

// Address returns the bound address.
func (t *TCPTransport) Address() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.listener != nil {
		return t.listener.Addr().String()
	}
	return t.addr
}

func (t *TCPTransport) acceptLoop(ctx context.Context, sink QuerySink) {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			t.mu.RLock()
			running := t.running
			t.mu.RUnlock()
			if !running || ctx.Err() != nil {
				return
			}
			t.logger.Warn(map[string]any{"error": err.Error()}, "Failed to accept TCP connection")
			continue
		}
		t.conns.Add(1)
		go func() {
			defer t.conns.Done()
			defer conn.Close()
			t.serveConn(ctx, conn, sink)
		}()
	}
}

// serveConn reads length-framed queries until the client goes away, the
// connection idles out, or the client violates the protocol. Errors on
// this connection never affect any other.
func (t *TCPTransport) serveConn(ctx context.Context, conn net.Conn, sink QuerySink) {
	clientAddr := conn.RemoteAddr()
	for {
		if err := conn.SetReadDeadline(time.Now().Add(t.idleTimeout)); err != nil {
			return
		}
		msg, err := readFrame(conn)
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				t.logger.Debug(map[string]any{
					"client": clientAddr.String(),
					"error":  err.Error(),
				}, "Closing TCP connection")
			}
			return
		}

		query, err := t.codec.DecodeQuery(msg)
		switch {
		case errors.Is(err, wire.ErrUnsupportedOpcode):
			if !t.reply(conn, domain.NewDNSErrorResponse(query, domain.RCodeNotImp), clientAddr) {
				return
			}
			continue
		case err != nil:
			// A parseable transaction ID earns a FORMERR; then the
			// connection closes, since framing sync is suspect.
			if len(msg) >= 2 {
				t.reply(conn, domain.DNSResponse{
					ID:    binary.BigEndian.Uint16(msg[0:2]),
					RCode: domain.RCodeFormErr,
				}, clientAddr)
			}
			return
		}

		response, err := sink.Submit(ctx, query, clientAddr)
		if err != nil {
			// TCP clients get an explicit SERVFAIL on overload so they
			// do not wait out their own timeout.
			if errors.Is(err, resolver.ErrQueueFull) || errors.Is(err, resolver.ErrTimedOut) {
				if !t.reply(conn, domain.NewDNSErrorResponse(query, domain.RCodeServFail), clientAddr) {
					return
				}
				continue
			}
			return
		}
		if !t.reply(conn, response, clientAddr) {
			return
		}
	}
}

// reply encodes and writes one framed response, reporting success.
func (t *TCPTransport) reply(conn net.Conn, response domain.DNSResponse, clientAddr net.Addr) bool {
	data, err := t.codec.EncodeResponse(response, maxTCPMessage)
	if err != nil {
		t.logger.Error(map[string]any{
			"client":   clientAddr.String(),
			"query_id": response.ID,
			"error":    err.Error(),
		}, "Failed to encode DNS response")
		return false
	}
	framed := make([]byte, 2+len(data))
	binary.BigEndian.PutUint16(framed[0:2], uint16(len(data)))
	copy(framed[2:], data)
	if _, err := conn.Write(framed); err != nil {
		t.logger.Debug(map[string]any{
			"client": clientAddr.String(),
			"error":  err.Error(),
		}, "Failed to write DNS response")
		return false
	}
	return true
}

// readFrame reads one length-prefixed DNS message.
func readFrame(conn net.Conn) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return nil, err
	}
	msgLen := binary.BigEndian.Uint16(lenBuf[:])
	if msgLen == 0 {
		return nil, fmt.Errorf("zero-length DNS message frame")
	}
	msg := make([]byte, msgLen)
	if _, err := io.ReadFull(conn, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

var _ ServerTransport = (*TCPTransport)(nil)
