package wire

import (
	"errors"

	"github.com/caprine/goatd/internal/dns/domain"
)

// DNSCodec translates between RFC 1035 wire messages and domain objects.
// One implementation serves all transports; UDP, TCP and DoH differ only
// in the size limit they pass to EncodeResponse.
type DNSCodec interface {
	// DecodeQuery parses a query message. On ErrUnsupportedOpcode the
	// returned Question still carries the transaction ID so the caller
	// can reply NOTIMP.
	DecodeQuery(data []byte) (domain.Question, error)

	// EncodeResponse serializes a response. When limit > 0 and the
	// message would exceed it, records are dropped (additional first,
	// then authority, then answers) and TC is set.
	EncodeResponse(resp domain.DNSResponse, limit int) ([]byte, error)
}

var (
	// ErrHeader marks a message too short or structurally wrong at the
	// header/question level.
	ErrHeader = errors.New("malformed DNS header")

	// ErrName marks an invalid name encoding: bad label length, overall
	// length over 255 octets, or a pointer out of bounds.
	ErrName = errors.New("malformed DNS name")

	// ErrNameLoop marks a compression pointer chain that exceeds the
	// follow budget or points forward.
	ErrNameLoop = errors.New("DNS name compression loop")

	// ErrUnsupportedOpcode marks a syntactically valid query whose
	// opcode is not QUERY.
	ErrUnsupportedOpcode = errors.New("unsupported opcode")
)
