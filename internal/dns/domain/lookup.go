package domain

// LookupOutcome classifies what a zone store lookup found.
type LookupOutcome int

const (
	// LookupAnswer means one or more matching records were found.
	LookupAnswer LookupOutcome = iota
	// LookupNoData means the name exists but holds no records of the
	// requested type (NOERROR with an empty answer section, RFC 2308).
	LookupNoData
	// LookupNXDomain means the name does not exist anywhere in the zone.
	LookupNXDomain
	// LookupNotAuthoritative means no loaded zone covers the name.
	LookupNotAuthoritative
)

// String returns the outcome name for logging.
func (o LookupOutcome) String() string {
	switch o {
	case LookupAnswer:
		return "answer"
	case LookupNoData:
		return "nodata"
	case LookupNXDomain:
		return "nxdomain"
	case LookupNotAuthoritative:
		return "notauthoritative"
	default:
		return "unknown"
	}
}

// LookupResult is what the zone store returns for a question. Zone is set
// whenever the name fell inside a loaded zone, so the resolver can place
// the SOA in the authority section for negative answers.
type LookupResult struct {
	Outcome LookupOutcome
	Records []ResourceRecord
	Zone    *Zone
}
