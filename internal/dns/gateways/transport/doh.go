package transport

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/caprine/goatd/internal/dns/common/log"
	"github.com/caprine/goatd/internal/dns/domain"
	"github.com/caprine/goatd/internal/dns/gateways/wire"
	"github.com/caprine/goatd/internal/dns/services/resolver"
)

// dnsMessageType is the RFC 8484 media type for DNS wire messages over
// HTTP.
const dnsMessageType = "application/dns-message"

// DoHTransport implements ServerTransport for DNS over HTTPS (RFC 8484).
// The server speaks h2c so a TLS-terminating proxy in front of it can
// keep end-to-end HTTP/2. The Prometheus endpoint shares the mux.
type DoHTransport struct {
	addr   string
	codec  wire.DNSCodec
	logger log.Logger

	mu       sync.RWMutex
	running  bool
	listener net.Listener
	server   *http.Server
}

// DoHOptions configures a DoHTransport.
type DoHOptions struct {
	Addr   string
	Codec  wire.DNSCodec
	Logger log.Logger
}

// NewDoHTransport creates a new DoH transport instance.
func NewDoHTransport(opts DoHOptions) *DoHTransport {
	return &DoHTransport{
		addr:   opts.Addr,
		codec:  opts.Codec,
		logger: opts.Logger,
	}
}

// Start binds the listener and serves HTTP in the background.
func (t *DoHTransport) Start(ctx context.Context, sink QuerySink) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("DoH transport already running")
	}
	listener, err := net.Listen("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("failed to bind DoH listener on %s: %w", t.addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/dns-query", t.queryHandler(ctx, sink))
	mux.Handle("/metrics", promhttp.Handler())

	t.listener = listener
	t.server = &http.Server{
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	t.running = true

	t.logger.Info(map[string]any{
		"transport": "doh",
		"address":   listener.Addr().String(),
	}, "DNS transport started")

	go func() {
		if err := t.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error(map[string]any{"error": err.Error()}, "DoH server stopped unexpectedly")
		}
	}()
	return nil
}

// Stop shuts the HTTP server down gracefully.
func (t *DoHTransport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil
	}
	t.running = false
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := t.server.Shutdown(ctx)
	t.logger.Info(map[string]any{
		"transport": "doh",
		"address":   t.addr,
	}, "DNS transport stopped")
	return err
}

// Address returns the bound address.
func (t *DoHTransport) Address() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.listener != nil {
		return t.listener.Addr().String()
	}
	return t.addr
}

// queryHandler serves /dns-query per RFC 8484: GET with a base64url
// "dns" parameter or POST with an application/dns-message body.
func (t *DoHTransport) queryHandler(ctx context.Context, sink QuerySink) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, status := extractMessage(r)
		if status != http.StatusOK {
			http.Error(w, http.StatusText(status), status)
			return
		}

		query, err := t.codec.DecodeQuery(raw)
		if err != nil && !errors.Is(err, wire.ErrUnsupportedOpcode) {
			http.Error(w, "malformed DNS message", http.StatusBadRequest)
			return
		}

		var response domain.DNSResponse
		if errors.Is(err, wire.ErrUnsupportedOpcode) {
			response = domain.NewDNSErrorResponse(query, domain.RCodeNotImp)
		} else {
			response, err = sink.Submit(ctx, query, dohClientAddr(r.RemoteAddr))
			if errors.Is(err, resolver.ErrQueueFull) || errors.Is(err, resolver.ErrTimedOut) {
				http.Error(w, "server overloaded", http.StatusServiceUnavailable)
				return
			}
			if err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
		}

		data, err := t.codec.EncodeResponse(response, maxTCPMessage)
		if err != nil {
			t.logger.Error(map[string]any{
				"client": r.RemoteAddr,
				"error":  err.Error(),
			}, "Failed to encode DoH response")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", dnsMessageType)
		w.Header().Set("Cache-Control", fmt.Sprintf("max-age=%d", minAnswerTTL(response)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	})
}

// extractMessage pulls the raw DNS message out of the request, returning
// a non-200 status on protocol misuse.
func extractMessage(r *http.Request) ([]byte, int) {
	switch r.Method {
	case http.MethodGet:
		encoded := r.URL.Query().Get("dns")
		if encoded == "" {
			return nil, http.StatusBadRequest
		}
		raw, err := base64.RawURLEncoding.DecodeString(encoded)
		if err != nil {
			return nil, http.StatusBadRequest
		}
		return raw, http.StatusOK
	case http.MethodPost:
		if r.Header.Get("Content-Type") != dnsMessageType {
			return nil, http.StatusUnsupportedMediaType
		}
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxTCPMessage+1))
		if err != nil || len(raw) == 0 || len(raw) > maxTCPMessage {
			return nil, http.StatusBadRequest
		}
		return raw, http.StatusOK
	default:
		return nil, http.StatusMethodNotAllowed
	}
}

// minAnswerTTL is the HTTP cache lifetime: the smallest TTL in the
// answer section, zero for negative or empty answers.
func minAnswerTTL(resp domain.DNSResponse) uint32 {
	if len(resp.Answers) == 0 {
		return 0
	}
	min := resp.Answers[0].TTL()
	for _, rr := range resp.Answers[1:] {
		if rr.TTL() < min {
			min = rr.TTL()
		}
	}
	return min
}

var _ ServerTransport = (*DoHTransport)(nil)
