// Package upstream resolves the set of level-12 basins draining into a dam's
// outlet basin.
package upstream

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Method selects the upstream resolution strategy.
type Method int

const (
	// AncestorTrace walks the reversed next_down graph until no new basin
	// is found.
	AncestorTrace Method = iota + 1
	// FullAggregate returns every basin surviving pruning. It is an
	// approximation: tributary layouts below the dam can leak in.
	FullAggregate
	// PfafTrail classifies each candidate from Pfafstetter digits alone.
	PfafTrail
)

// DefaultMethod is used when no method is configured.
const DefaultMethod = PfafTrail

var methodNames = map[Method]string{
	AncestorTrace: "ancestor_trace",
	FullAggregate: "full_aggregate",
	PfafTrail:     "pfaf_trail",
}

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return "unknown"
}

// ParseMethod accepts a method name ("pfaf_trail"), its numeric form ("3"),
// or an empty string for DefaultMethod.
func ParseMethod(s string) (Method, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return DefaultMethod, nil
	case "1", "ancestor_trace", "ancestor-trace", "trace":
		return AncestorTrace, nil
	case "2", "full_aggregate", "full-aggregate", "aggregate":
		return FullAggregate, nil
	case "3", "pfaf_trail", "pfaf-trail", "pfaf":
		return PfafTrail, nil
	default:
		return 0, eris.Errorf("upstream: unknown method %q", s)
	}
}
