package transport

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"

	"github.com/caprine/goatd/internal/dns/domain"
)

// stubSink implements QuerySink with a canned response, recording what
// the transports submit.
type stubSink struct {
	err     error
	rcode   domain.RCode
	answers []domain.ResourceRecord

	mu      sync.Mutex
	queries []domain.Question
	clients []net.Addr
}

func (s *stubSink) Submit(_ context.Context, q domain.Question, client net.Addr) (domain.DNSResponse, error) {
	s.mu.Lock()
	s.queries = append(s.queries, q)
	s.clients = append(s.clients, client)
	s.mu.Unlock()
	if s.err != nil {
		return domain.DNSResponse{}, s.err
	}
	return domain.DNSResponse{
		ID:            q.ID,
		RCode:         s.rcode,
		Authoritative: true,
		Question:      &q,
		Answers:       s.answers,
	}, nil
}

func (s *stubSink) lastClient() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.clients) == 0 {
		return nil
	}
	return s.clients[len(s.clients)-1]
}

func (s *stubSink) queryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

// packQuery builds a standard query using an independent implementation
// so the tests exercise real interop, not a round trip through our own
// codec.
func packQuery(t *testing.T, id uint16, name string, qtype uint16) []byte {
	t.Helper()
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	m.Id = id
	data, err := m.Pack()
	require.NoError(t, err)
	return data
}

// packStatusQuery builds a query with the STATUS opcode, which the
// server does not implement.
func packStatusQuery(t *testing.T, id uint16, name string) []byte {
	t.Helper()
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeA)
	m.Id = id
	m.Opcode = dns.OpcodeStatus
	data, err := m.Pack()
	require.NoError(t, err)
	return data
}

// aRecord builds an IN A answer for stub responses.
func aRecord(t *testing.T, name, ip string, ttl uint32) domain.ResourceRecord {
	t.Helper()
	addr := net.ParseIP(ip).To4()
	require.NotNil(t, addr)
	rr, err := domain.NewResourceRecord(name, domain.RRTypeA, domain.RRClassIN, ttl, addr, ip)
	require.NoError(t, err)
	return rr
}

func unpack(t *testing.T, data []byte) *dns.Msg {
	t.Helper()
	m := new(dns.Msg)
	require.NoError(t, m.Unpack(data))
	return m
}
