package traffic

import "strings"

// DiscoveryPort is the UDP port the drones use for periodic HELLO
// announcements.
const DiscoveryPort = 7000

// pathTags maps known HTTP path prefixes to tags. Checked in slice order so
// a more specific prefix can never be shadowed by a more general one.
//
// ANTI-ENTROPY is deliberately absent: anti-entropy exchanges share the
// /delta endpoint with plain delta pushes and are distinguishable only by
// the optional X-Message-Type header (rule 1). A /delta frame without the
// header is tagged DELTA; path inspection alone cannot do better.
var pathTags = []struct {
	prefix string
	tag    MessageType
}{
	{"/stats", TypeStats},
	{"/state", TypeState},
	{"/delta", TypeDelta},
	{"/position", TypePosition},
}

// classifyRecord applies the classification policy in priority order,
// first match wins:
//
//  1. explicit application type hint (X-Message-Type header), normalized;
//  2. UDP traffic on the discovery port is HELLO;
//  3. TCP frames with an HTTP path hint, via the prefix table;
//  4. UNKNOWN.
func classifyRecord(r Record) MessageType {
	if r.TypeHint != "" {
		return NormalizeType(r.TypeHint)
	}
	if r.Transport == UDP && (r.SrcPort == DiscoveryPort || r.DstPort == DiscoveryPort) {
		return TypeHello
	}
	if r.Transport == TCP && r.URI != "" {
		for _, pt := range pathTags {
			if strings.HasPrefix(r.URI, pt.prefix) {
				return pt.tag
			}
		}
	}
	return TypeUnknown
}

// Classify folds a capture source's records into aggregate statistics.
// Every record is counted exactly once under exactly one tag, so summing
// the per-type buckets reproduces the global totals.
func Classify(records []Record) *SourceStats {
	stats := newSourceStats()
	for _, r := range records {
		stats.observe(r, classifyRecord(r))
	}
	stats.finalize()
	return stats
}
