package resolver

import (
	"context"
	"net"

	"github.com/caprine/goatd/internal/dns/domain"
	"github.com/caprine/goatd/internal/dns/repos/zonestore"
)

// ZoneSource provides the current zone snapshot. Implemented by
// zonestore.Store.
type ZoneSource interface {
	Current() *zonestore.Snapshot
}

// AnswerCache stores lookup results scoped to a snapshot generation.
// Implemented by msgcache.Cache.
type AnswerCache interface {
	Get(q domain.Question, generation uint64) (domain.LookupResult, bool)
	Set(q domain.Question, generation uint64, res domain.LookupResult)
}

// DNSResponder processes one DNS query and returns a DNS response. The
// transport handles all network protocol details; the responder only sees
// domain objects.
type DNSResponder interface {
	HandleRequest(ctx context.Context, q domain.Question, clientAddr net.Addr) domain.DNSResponse
}
