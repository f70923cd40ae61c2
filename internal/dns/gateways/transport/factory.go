package transport

import (
	"fmt"
	"time"

	"github.com/caprine/goatd/internal/dns/common/log"
	"github.com/caprine/goatd/internal/dns/gateways/wire"
)

// Options carries the settings shared by all transport constructors.
// Fields that only apply to one transport are ignored by the others.
type Options struct {
	Addr   string
	Codec  wire.DNSCodec
	Logger log.Logger

	// UDP only.
	PayloadSize    int
	FormErrReplies bool

	// TCP only.
	IdleTimeout time.Duration
}

// NewTransport creates a transport instance for the given type. The
// factory keeps cmd wiring uniform across listeners.
func NewTransport(transportType TransportType, opts Options) (ServerTransport, error) {
	switch transportType {
	case TransportUDP:
		return NewUDPTransport(UDPOptions{
			Addr:           opts.Addr,
			Codec:          opts.Codec,
			Logger:         opts.Logger,
			PayloadSize:    opts.PayloadSize,
			FormErrReplies: opts.FormErrReplies,
		}), nil

	case TransportTCP:
		return NewTCPTransport(TCPOptions{
			Addr:        opts.Addr,
			Codec:       opts.Codec,
			Logger:      opts.Logger,
			IdleTimeout: opts.IdleTimeout,
		}), nil

	case TransportDoH:
		return NewDoHTransport(DoHOptions{
			Addr:   opts.Addr,
			Codec:  opts.Codec,
			Logger: opts.Logger,
		}), nil

	default:
		return nil, fmt.Errorf("unsupported transport type: %s", transportType)
	}
}

// SupportedTransports returns the transport types this build can serve.
func SupportedTransports() []TransportType {
	return []TransportType{TransportUDP, TransportTCP, TransportDoH}
}
