package telemetry

import "fmt"

// FailureKind distinguishes why a per-node fetch failed. Each kind is
// recoverable: the node is excluded from the current round and the loop
// continues.
type FailureKind int

const (
	// KindNetwork covers timeouts, refused connections and non-2xx status.
	KindNetwork FailureKind = iota
	// KindParse covers responses that are not valid JSON.
	KindParse
	// KindSchema covers valid JSON missing the expected structure.
	KindSchema
)

func (k FailureKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindParse:
		return "parse"
	case KindSchema:
		return "schema"
	default:
		return "unknown"
	}
}

// FetchError wraps a per-node telemetry failure with its kind and, for
// parse failures, the offending raw body so it can be logged verbatim.
type FetchError struct {
	Kind FailureKind
	Op   string // "state" or "stats"
	Body string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s failure: %v", e.Op, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
