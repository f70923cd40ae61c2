// Package wire provides encoding and decoding of DNS messages.
// It handles the DNS wire format as specified in RFC 1035.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/caprine/goatd/internal/dns/common/log"
	"github.com/caprine/goatd/internal/dns/domain"
)

// Header flag bits (RFC 1035 §4.1.1).
const (
	flagQR uint16 = 1 << 15
	flagAA uint16 = 1 << 10
	flagTC uint16 = 1 << 9
	flagRD uint16 = 1 << 8
)

// maxPointerFollows bounds compression pointer chains. A legitimate name
// has at most 127 labels, but real messages never chain pointers this
// deep; anything past the budget is treated as hostile.
const maxPointerFollows = 16

// messageCodec implements DNSCodec for all transports.
type messageCodec struct {
	logger log.Logger
}

// NewMessageCodec creates and returns a new instance of messageCodec using
// the provided logger.
func NewMessageCodec(logger log.Logger) *messageCodec {
	return &messageCodec{
		logger: logger,
	}
}

// DecodeQuery parses a DNS query message from data.
func (c *messageCodec) DecodeQuery(data []byte) (domain.Question, error) {
	if len(data) < 12 {
		return domain.Question{}, fmt.Errorf("%w: message too short (%d bytes)", ErrHeader, len(data))
	}
	id := binary.BigEndian.Uint16(data[0:2])
	flags := binary.BigEndian.Uint16(data[2:4])
	if flags&flagQR != 0 {
		return domain.Question{}, fmt.Errorf("%w: QR set on a query", ErrHeader)
	}
	qdCount := binary.BigEndian.Uint16(data[4:6])
	if qdCount != 1 {
		return domain.Question{}, fmt.Errorf("%w: expected exactly one question, got %d", ErrHeader, qdCount)
	}

	name, offset, err := decodeName(data, 12)
	if err != nil {
		return domain.Question{}, err
	}
	if offset+4 > len(data) {
		return domain.Question{}, fmt.Errorf("%w: truncated question", ErrHeader)
	}
	qtype := binary.BigEndian.Uint16(data[offset : offset+2])
	qclass := binary.BigEndian.Uint16(data[offset+2 : offset+4])

	q, err := domain.NewQuestion(id, name, domain.RRType(qtype), domain.RRClass(qclass))
	if err != nil {
		return domain.Question{}, fmt.Errorf("%w: %v", ErrHeader, err)
	}
	q.RecursionDesired = flags&flagRD != 0

	// Opcode check comes last so the returned Question is complete and
	// the caller can synthesize a NOTIMP reply for it.
	if opcode := (flags >> 11) & 0xF; opcode != 0 {
		return q, fmt.Errorf("%w: opcode %d", ErrUnsupportedOpcode, opcode)
	}
	return q, nil
}

// decodeName decodes a domain name from a DNS message at the specified
// offset, handling label compression as defined in RFC 1035. It returns
// the name and the offset of the first byte after the name in the
// original stream. Pointers must point strictly backward.
func decodeName(data []byte, offset int) (string, int, error) {
	var labels []string
	nameLen := 0
	next := 0
	follows := 0
	pos := offset
	for {
		if pos >= len(data) {
			return "", 0, fmt.Errorf("%w: offset out of bounds", ErrName)
		}
		b := data[pos]
		switch {
		case b == 0:
			if next == 0 {
				next = pos + 1
			}
			return strings.Join(labels, "."), next, nil
		case b&0xC0 == 0xC0:
			if pos+1 >= len(data) {
				return "", 0, fmt.Errorf("%w: compression pointer truncated", ErrName)
			}
			ptr := int(binary.BigEndian.Uint16(data[pos:pos+2]) & 0x3FFF)
			if next == 0 {
				next = pos + 2
			}
			if ptr >= pos {
				return "", 0, fmt.Errorf("%w: pointer to offset %d does not point backward", ErrNameLoop, ptr)
			}
			follows++
			if follows > maxPointerFollows {
				return "", 0, fmt.Errorf("%w: more than %d pointer follows", ErrNameLoop, maxPointerFollows)
			}
			pos = ptr
		case b&0xC0 != 0:
			return "", 0, fmt.Errorf("%w: reserved label type 0x%02x", ErrName, b&0xC0)
		default:
			length := int(b)
			if pos+1+length > len(data) {
				return "", 0, fmt.Errorf("%w: label length out of bounds", ErrName)
			}
			nameLen += length + 1
			// The 255-octet limit is on the wire form, which includes
			// the terminating root octet.
			if nameLen+1 > 255 {
				return "", 0, fmt.Errorf("%w: name exceeds 255 octets", ErrName)
			}
			labels = append(labels, string(data[pos+1:pos+1+length]))
			pos += 1 + length
		}
	}
}

// EncodeResponse serializes a DNSResponse into wire format. When limit > 0
// and the message exceeds it, additional records are dropped first, then
// authority, then answers from the end, and TC is set; the counts in the
// header always match what was serialized.
func (c *messageCodec) EncodeResponse(resp domain.DNSResponse, limit int) ([]byte, error) {
	if len(resp.Answers) > 65535 || len(resp.Authority) > 65535 || len(resp.Additional) > 65535 {
		return nil, fmt.Errorf("too many records for a single message")
	}
	an, ns, ar := len(resp.Answers), len(resp.Authority), len(resp.Additional)
	truncated := resp.Truncated
	for {
		msg, err := c.encode(resp, an, ns, ar, truncated)
		if err != nil {
			return nil, err
		}
		if limit <= 0 || len(msg) <= limit {
			if truncated && !resp.Truncated {
				c.logger.Debug(map[string]any{
					"id":    resp.ID,
					"size":  len(msg),
					"limit": limit,
				}, "Truncated DNS response to fit size limit")
			}
			return msg, nil
		}
		truncated = true
		switch {
		case ar > 0:
			ar = 0
		case ns > 0:
			ns = 0
		case an > 0:
			an--
		default:
			return nil, fmt.Errorf("response header exceeds %d byte limit", limit)
		}
	}
}

// encode writes the header, question and the first an/ns/ar records of
// each section.
func (c *messageCodec) encode(resp domain.DNSResponse, an, ns, ar int, truncated bool) ([]byte, error) {
	w := newMessageWriter()

	flags := flagQR | uint16(resp.RCode)&0xF
	if resp.Authoritative {
		flags |= flagAA
	}
	if truncated {
		flags |= flagTC
	}
	qdCount := uint16(0)
	if resp.Question != nil {
		qdCount = 1
		if resp.Question.RecursionDesired {
			flags |= flagRD
		}
	}

	_ = binary.Write(&w.buf, binary.BigEndian, resp.ID)
	_ = binary.Write(&w.buf, binary.BigEndian, flags)
	_ = binary.Write(&w.buf, binary.BigEndian, qdCount)
	_ = binary.Write(&w.buf, binary.BigEndian, uint16(an))
	_ = binary.Write(&w.buf, binary.BigEndian, uint16(ns))
	_ = binary.Write(&w.buf, binary.BigEndian, uint16(ar))

	if resp.Question != nil {
		if err := w.writeName(resp.Question.Name); err != nil {
			return nil, err
		}
		_ = binary.Write(&w.buf, binary.BigEndian, uint16(resp.Question.Type))
		_ = binary.Write(&w.buf, binary.BigEndian, uint16(resp.Question.Class))
	}

	for _, rr := range resp.Answers[:an] {
		if err := w.writeRecord(rr); err != nil {
			return nil, err
		}
	}
	for _, rr := range resp.Authority[:ns] {
		if err := w.writeRecord(rr); err != nil {
			return nil, err
		}
	}
	for _, rr := range resp.Additional[:ar] {
		if err := w.writeRecord(rr); err != nil {
			return nil, err
		}
	}
	return w.buf.Bytes(), nil
}

// messageWriter accumulates a wire message and remembers the offset of
// every owner name suffix it has written, so later names can compress to
// 14-bit pointers.
type messageWriter struct {
	buf   bytes.Buffer
	names map[string]int
}

func newMessageWriter() *messageWriter {
	return &messageWriter{names: make(map[string]int)}
}

// writeName emits a domain name, compressing against earlier names: the
// longest suffix already present in the message becomes a pointer and only
// the preceding labels are written out.
func (w *messageWriter) writeName(name string) error {
	if name == "" {
		w.buf.WriteByte(0)
		return nil
	}
	labels := strings.Split(name, ".")
	for i, label := range labels {
		if len(label) == 0 || len(label) > 63 {
			return fmt.Errorf("invalid label %q in name %q", label, name)
		}
		suffix := strings.Join(labels[i:], ".")
		if off, ok := w.names[suffix]; ok {
			w.buf.Write([]byte{0xC0 | byte(off>>8), byte(off)})
			return nil
		}
		// First occurrence of this suffix; remember where it starts if a
		// 14-bit pointer can still reach it.
		if off := w.buf.Len(); off < 0x4000 {
			w.names[suffix] = off
		}
		w.buf.WriteByte(byte(len(label)))
		w.buf.WriteString(label)
	}
	w.buf.WriteByte(0)
	return nil
}

// writeRecord emits one resource record. RDATA is written as stored;
// names inside RDATA are never compressed.
func (w *messageWriter) writeRecord(rr domain.ResourceRecord) error {
	if err := w.writeName(rr.Name); err != nil {
		return err
	}
	if len(rr.Data) > 65535 {
		return fmt.Errorf("resource record data too large: %d bytes (max 65535)", len(rr.Data))
	}
	_ = binary.Write(&w.buf, binary.BigEndian, uint16(rr.Type))
	_ = binary.Write(&w.buf, binary.BigEndian, uint16(rr.Class))
	_ = binary.Write(&w.buf, binary.BigEndian, rr.TTL())
	_ = binary.Write(&w.buf, binary.BigEndian, uint16(len(rr.Data)))
	w.buf.Write(rr.Data)
	return nil
}

var _ DNSCodec = &messageCodec{}
