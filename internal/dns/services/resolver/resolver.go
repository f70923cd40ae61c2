// Package resolver answers DNS questions from the loaded zone data. It
// owns the authoritative decision tree: what gets an answer, what gets a
// negative answer with the SOA attached, and what gets refused.
package resolver

import (
	"context"
	"net"
	"time"

	"github.com/caprine/goatd/internal/dns/common/log"
	"github.com/caprine/goatd/internal/dns/common/metrics"
	"github.com/caprine/goatd/internal/dns/common/rrdata"
	"github.com/caprine/goatd/internal/dns/domain"
	"github.com/caprine/goatd/internal/dns/repos/zonestore"
)

// rfc8482TTL is the TTL on the synthetic HINFO answer to ANY queries.
const rfc8482TTL = 3600

// chaosNames are the CH-class admin probes the server understands.
var chaosNames = map[string]struct{}{
	"version.bind":   {},
	"version.server": {},
}

type Resolver struct {
	store    ZoneSource
	cache    AnswerCache
	logger   log.Logger
	hostname string
	admin    []*net.IPNet
}

type ResolverOptions struct {
	Store  ZoneSource
	Cache  AnswerCache // nil disables answer caching
	Logger log.Logger

	// Hostname is what CH TXT admin queries report.
	Hostname string
	// AdminNets lists the networks allowed to ask CH admin questions.
	AdminNets []*net.IPNet
}

func NewResolver(opts ResolverOptions) *Resolver {
	return &Resolver{
		store:    opts.Store,
		cache:    opts.Cache,
		logger:   opts.Logger,
		hostname: opts.Hostname,
		admin:    opts.AdminNets,
	}
}

// HandleRequest resolves one question against the current snapshot.
func (r *Resolver) HandleRequest(ctx context.Context, q domain.Question, clientAddr net.Addr) domain.DNSResponse {
	start := time.Now()
	resp := r.resolve(ctx, q, clientAddr)
	metrics.ResolveDuration.Observe(time.Since(start).Seconds())
	metrics.QueriesTotal.WithLabelValues(transportLabel(clientAddr), resp.RCode.String()).Inc()

	r.logger.Debug(map[string]any{
		"name":   q.Name,
		"type":   q.Type.String(),
		"class":  q.Class.String(),
		"client": addrString(clientAddr),
		"rcode":  resp.RCode.String(),
	}, "Resolved query")
	return resp
}

func (r *Resolver) resolve(_ context.Context, q domain.Question, clientAddr net.Addr) domain.DNSResponse {
	if q.Class == domain.RRClassCH {
		return r.resolveChaos(q, clientAddr)
	}
	if q.Class != domain.RRClassIN {
		return domain.NewDNSErrorResponse(q, domain.RCodeNotImp)
	}

	snap := r.store.Current()
	if snap == nil {
		return domain.NewDNSErrorResponse(q, domain.RCodeRefused)
	}

	result := r.lookup(snap, q)

	if q.Type == domain.RRTypeANY {
		return r.resolveANY(q, snap, result)
	}

	switch result.Outcome {
	case domain.LookupAnswer:
		return r.answer(q, result.Records, nil)
	case domain.LookupNoData:
		return r.negative(q, snap, result.Zone, domain.RCodeNoError)
	case domain.LookupNXDomain:
		return r.negative(q, snap, result.Zone, domain.RCodeNXDomain)
	default:
		return domain.NewDNSErrorResponse(q, domain.RCodeRefused)
	}
}

// lookup consults the answer cache before the snapshot. Results are keyed
// by generation, so a cached entry is exactly what the snapshot would say.
func (r *Resolver) lookup(snap *zonestore.Snapshot, q domain.Question) domain.LookupResult {
	if r.cache == nil {
		return snap.Lookup(q)
	}
	if res, ok := r.cache.Get(q, snap.Generation()); ok {
		return res
	}
	res := snap.Lookup(q)
	r.cache.Set(q, snap.Generation(), res)
	return res
}

// resolveANY answers the ANY pseudo-type per RFC 8482: one synthetic
// HINFO instead of everything at the name. Nonexistent names still get
// their negative answer, built from the same snapshot the lookup ran
// against.
func (r *Resolver) resolveANY(q domain.Question, snap *zonestore.Snapshot, result domain.LookupResult) domain.DNSResponse {
	switch result.Outcome {
	case domain.LookupAnswer, domain.LookupNoData:
		data, err := rrdata.Encode(domain.RRTypeHINFO, `"RFC8482" ""`)
		if err != nil {
			r.logger.Error(map[string]any{"error": err.Error()}, "Failed to encode RFC 8482 HINFO")
			return domain.NewDNSErrorResponse(q, domain.RCodeServFail)
		}
		hinfo, err := domain.NewResourceRecord(q.Name, domain.RRTypeHINFO, domain.RRClassIN, rfc8482TTL, data, `"RFC8482" ""`)
		if err != nil {
			return domain.NewDNSErrorResponse(q, domain.RCodeServFail)
		}
		return r.answer(q, []domain.ResourceRecord{hinfo}, nil)
	case domain.LookupNXDomain:
		return r.negative(q, snap, result.Zone, domain.RCodeNXDomain)
	default:
		return domain.NewDNSErrorResponse(q, domain.RCodeRefused)
	}
}

// resolveChaos answers version.bind / version.server TXT probes for
// clients inside the admin allow-list and refuses everything else in the
// CH class.
func (r *Resolver) resolveChaos(q domain.Question, clientAddr net.Addr) domain.DNSResponse {
	_, known := chaosNames[q.Name]
	if !known || (q.Type != domain.RRTypeTXT && q.Type != domain.RRTypeANY) {
		return domain.NewDNSErrorResponse(q, domain.RCodeRefused)
	}
	if !r.adminAllowed(clientAddr) {
		r.logger.Warn(map[string]any{
			"name":   q.Name,
			"client": addrString(clientAddr),
		}, "CH admin query from outside the allow-list")
		return domain.NewDNSErrorResponse(q, domain.RCodeRefused)
	}

	data, err := rrdata.Encode(domain.RRTypeTXT, r.hostname)
	if err != nil {
		return domain.NewDNSErrorResponse(q, domain.RCodeServFail)
	}
	txt, err := domain.NewResourceRecord(q.Name, domain.RRTypeTXT, domain.RRClassCH, 0, data, r.hostname)
	if err != nil {
		return domain.NewDNSErrorResponse(q, domain.RCodeServFail)
	}
	return r.answer(q, []domain.ResourceRecord{txt}, nil)
}

// adminAllowed reports whether the client IP falls inside any admin net.
func (r *Resolver) adminAllowed(clientAddr net.Addr) bool {
	ip := addrIP(clientAddr)
	if ip == nil {
		return false
	}
	for _, n := range r.admin {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func (r *Resolver) answer(q domain.Question, answers, authority []domain.ResourceRecord) domain.DNSResponse {
	resp, err := domain.NewDNSResponse(q, domain.RCodeNoError, true, answers, authority, nil)
	if err != nil {
		r.logger.Error(map[string]any{
			"name":  q.Name,
			"error": err.Error(),
		}, "Failed to assemble response")
		return domain.NewDNSErrorResponse(q, domain.RCodeServFail)
	}
	return resp
}

// negative builds a NOERROR/NXDOMAIN response with the zone SOA in the
// authority section (RFC 2308) so resolvers can cache the negative.
func (r *Resolver) negative(q domain.Question, snap *zonestore.Snapshot, zone *domain.Zone, rcode domain.RCode) domain.DNSResponse {
	resp := domain.NewDNSErrorResponse(q, rcode)
	resp.Authoritative = true
	if snap != nil && zone != nil {
		if soa, ok := snap.SOARecord(zone); ok {
			resp.Authority = []domain.ResourceRecord{soa}
		}
	}
	return resp
}

func addrIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP
	case *net.TCPAddr:
		return a.IP
	default:
		if addr == nil {
			return nil
		}
		host, _, err := net.SplitHostPort(addr.String())
		if err != nil {
			return net.ParseIP(addr.String())
		}
		return net.ParseIP(host)
	}
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}

func transportLabel(addr net.Addr) string {
	if addr == nil {
		return "unknown"
	}
	return addr.Network()
}

var _ DNSResponder = (*Resolver)(nil)
