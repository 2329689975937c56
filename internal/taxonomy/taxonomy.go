package taxonomy

import (
	"strings"

	"github.com/dreamware/mcspy/internal/storage"
)

// Strategy recovers (prefix, bin, item) from one key naming convention.
type Strategy interface {
	// Name identifies the convention in parse summaries.
	Name() string
	// Applies reports whether key uses this convention.
	Applies(key string) bool
	// Split divides key into its fields. ok is false when the fields cannot
	// be recovered even though the convention applies.
	Split(key string) (prefix, bin, item string, ok bool)
}

// PercentColonStrategy handles keys whose fields are joined by an encoded
// colon, e.g. "site%3Acache_page%3Anode%2F1". It applies only when the key
// holds no literal colon at all.
type PercentColonStrategy struct{}

const encodedColon = "%3A"

func (PercentColonStrategy) Name() string { return "percent-colon" }

func (PercentColonStrategy) Applies(key string) bool {
	return strings.Contains(key, encodedColon) && !strings.Contains(key, ":")
}

func (PercentColonStrategy) Split(key string) (string, string, string, bool) {
	return splitTwice(key, encodedColon)
}

// DashStrategy handles keys whose fields are joined by dashes, e.g.
// "site-cache_menu-main-links". Only the first two dashes delimit fields; the
// rest belong to the item.
type DashStrategy struct{}

func (DashStrategy) Name() string { return "dash" }

func (DashStrategy) Applies(key string) bool {
	return strings.Contains(key, "-")
}

func (DashStrategy) Split(key string) (string, string, string, bool) {
	return splitTwice(key, "-")
}

// splitTwice cuts key at the first two occurrences of sep. A key with a
// single separator has no bin boundary and is rejected.
func splitTwice(key, sep string) (string, string, string, bool) {
	prefix, rest, ok := strings.Cut(key, sep)
	if !ok {
		return "", "", "", false
	}
	bin, item, ok := strings.Cut(rest, sep)
	if !ok {
		return "", "", "", false
	}
	if prefix == "" || bin == "" {
		return "", "", "", false
	}
	return prefix, bin, item, true
}

// DefaultStrategies is the built-in priority order. Encoded-colon keys are
// unambiguous and win over the dash fallback.
func DefaultStrategies() []Strategy {
	return []Strategy{PercentColonStrategy{}, DashStrategy{}}
}

// Parser applies an ordered list of strategies. The first strategy that
// applies to a key decides the outcome; later strategies are not consulted
// even if that one fails to split the key.
type Parser struct {
	strategies []Strategy
}

// NewParser returns a parser using strategies in order. With no arguments it
// uses DefaultStrategies.
func NewParser(strategies ...Strategy) *Parser {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Parser{strategies: strategies}
}

// NoStrategy is the Rejected key for keys no strategy applies to.
const NoStrategy = "none"

// Parse classifies one raw record. ok is false for unparseable keys.
func (p *Parser) Parse(raw storage.RawRecord) (storage.ParsedRecord, bool) {
	rec, _, ok := p.parse(raw)
	return rec, ok
}

// parse also returns the name of the deciding strategy, or NoStrategy.
func (p *Parser) parse(raw storage.RawRecord) (storage.ParsedRecord, string, bool) {
	for _, s := range p.strategies {
		if !s.Applies(raw.Key) {
			continue
		}
		prefix, bin, item, ok := s.Split(raw.Key)
		if !ok {
			return storage.ParsedRecord{}, s.Name(), false
		}
		return storage.ParsedRecord{Slab: raw.Slab, Prefix: prefix, Bin: bin, Item: item}, s.Name(), true
	}
	return storage.ParsedRecord{}, NoStrategy, false
}

// Result summarizes a ParseAll run.
type Result struct {
	Records     []storage.ParsedRecord
	Filtered    int            // raw records rejected by the key filter
	Unparseable int            // raw records no strategy could split
	Rejected    map[string]int // unparseable records by deciding strategy name
}

// ParseAll classifies records in order. Records for which match returns
// false are skipped before parsing; a nil match accepts everything.
func (p *Parser) ParseAll(records []storage.RawRecord, match func(key string) bool) Result {
	res := Result{
		Records:  make([]storage.ParsedRecord, 0, len(records)),
		Rejected: make(map[string]int),
	}
	for _, r := range records {
		if match != nil && !match(r.Key) {
			res.Filtered++
			continue
		}
		parsed, name, ok := p.parse(r)
		if !ok {
			res.Unparseable++
			res.Rejected[name]++
			continue
		}
		res.Records = append(res.Records, parsed)
	}
	return res
}
