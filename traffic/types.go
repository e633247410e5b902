// Package traffic reconstructs per-message-type statistics from packet
// captures taken on the emulated mesh. Raw pcaps are decoded by an external
// tool (tshark); this package consumes the decoded field tuples, classifies
// each frame with a prioritized rule list and reconciles requests against
// responses per type.
package traffic

import (
	"strings"

	"github.com/DataDog/sketches-go/ddsketch"
)

// MessageType is one of the fixed classification tags. UNKNOWN is a real
// bucket, not an error: every frame lands somewhere, so the per-type totals
// always sum to the global totals.
type MessageType string

const (
	TypeDelta       MessageType = "DELTA"
	TypeAntiEntropy MessageType = "ANTI-ENTROPY"
	TypeState       MessageType = "STATE"
	TypeStats       MessageType = "STATS"
	TypePosition    MessageType = "POSITION"
	TypeHello       MessageType = "HELLO"
	TypeUnknown     MessageType = "UNKNOWN"
)

// MessageTypes lists every bucket in report order.
var MessageTypes = []MessageType{
	TypeDelta, TypeAntiEntropy, TypeState, TypeStats,
	TypePosition, TypeHello, TypeUnknown,
}

// NormalizeType case-normalizes an application-supplied type hint onto the
// fixed tag set. Hints outside the set degrade to UNKNOWN.
func NormalizeType(hint string) MessageType {
	t := MessageType(strings.ToUpper(strings.TrimSpace(hint)))
	for _, known := range MessageTypes {
		if t == known {
			return t
		}
	}
	return TypeUnknown
}

// Transport is the frame's transport protocol.
type Transport int

const (
	UDP Transport = iota
	TCP
)

func (t Transport) String() string {
	if t == UDP {
		return "udp"
	}
	return "tcp"
}

// Record is one decoded frame, consumed exactly once during
// classification and never mutated afterward.
type Record struct {
	Frame     int       // capture frame number
	Length    int       // frame length in bytes
	Transport Transport
	SrcPort   int
	DstPort   int

	// Application-layer hints, present only when the decoder saw them.
	Method     string // HTTP method of a request frame
	URI        string // request path, or the request path a response answers
	IsResponse bool
	TypeHint   string // value of the X-Message-Type header, if any
}

// TypeStat aggregates one message-type bucket. Count and Bytes only grow
// as records are folded in.
type TypeStat struct {
	Count     int64 `json:"count"`
	Bytes     int64 `json:"bytes"`
	Requests  int64 `json:"requests"`
	Responses int64 `json:"responses"`
	// PctUnresponded is (requests-responses)/requests*100, and 0 by
	// definition when there were no requests.
	PctUnresponded float64 `json:"percentage_unresponded"`
}

func (ts *TypeStat) add(size int, isRequest bool) {
	ts.Count++
	ts.Bytes += int64(size)
	if isRequest {
		ts.Requests++
	} else {
		ts.Responses++
	}
}

func (ts *TypeStat) finalize() {
	if ts.Requests > 0 {
		ts.PctUnresponded = float64(ts.Requests-ts.Responses) / float64(ts.Requests) * 100.0
	} else {
		ts.PctUnresponded = 0.0
	}
}

// SourceStats aggregates one capture source (one node's interface).
type SourceStats struct {
	TotalPackets  int64                        `json:"total_packets"`
	TotalBytes    int64                        `json:"total_bytes"`
	UDPPackets    int64                        `json:"udp_packets"`
	UDPBytes      int64                        `json:"udp_bytes"`
	TCPPackets    int64                        `json:"tcp_packets"`
	TCPBytes      int64                        `json:"tcp_bytes"`
	AvgPacketSize float64                      `json:"avg_packet_size"`
	ByType        map[MessageType]*TypeStat    `json:"by_message_type"`

	sizes *ddsketch.DDSketch
}

func newSourceStats() *SourceStats {
	byType := make(map[MessageType]*TypeStat, len(MessageTypes))
	for _, mt := range MessageTypes {
		byType[mt] = &TypeStat{}
	}
	sketch, err := ddsketch.NewDefaultDDSketch(0.01)
	if err != nil {
		panic(err)
	}
	return &SourceStats{ByType: byType, sizes: sketch}
}

func (s *SourceStats) observe(r Record, mt MessageType) {
	s.TotalPackets++
	s.TotalBytes += int64(r.Length)
	if r.Transport == UDP {
		s.UDPPackets++
		s.UDPBytes += int64(r.Length)
	} else {
		s.TCPPackets++
		s.TCPBytes += int64(r.Length)
	}
	s.sizes.Add(float64(r.Length))
	s.ByType[mt].add(r.Length, !r.IsResponse)
}

func (s *SourceStats) finalize() {
	if s.TotalPackets > 0 {
		s.AvgPacketSize = float64(s.TotalBytes) / float64(s.TotalPackets)
	} else {
		s.AvgPacketSize = 0
	}
	for _, ts := range s.ByType {
		ts.finalize()
	}
}

// SizeQuantile returns the q-quantile of the observed packet sizes, or 0
// when the source saw no packets.
func (s *SourceStats) SizeQuantile(q float64) float64 {
	if s.sizes == nil || s.TotalPackets == 0 {
		return 0
	}
	v, err := s.sizes.GetValueAtQuantile(q)
	if err != nil {
		return 0
	}
	return v
}
