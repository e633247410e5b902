package traffic

import (
	"math"
	"testing"
)

func udpHello(size int) Record {
	return Record{Length: size, Transport: UDP, SrcPort: 34567, DstPort: DiscoveryPort}
}

func httpReq(size int, uri, hint string) Record {
	return Record{Length: size, Transport: TCP, Method: "POST", URI: uri, TypeHint: hint}
}

func httpResp(size int, uri, hint string) Record {
	return Record{Length: size, Transport: TCP, URI: uri, IsResponse: true, TypeHint: hint}
}

func TestClassifyRecordPriorityOrder(t *testing.T) {
	cases := []struct {
		name string
		rec  Record
		want MessageType
	}{
		{"header hint wins over path", httpReq(100, "/delta", "ANTI-ENTROPY"), TypeAntiEntropy},
		{"header hint case normalized", httpReq(100, "/delta", "delta"), TypeDelta},
		{"unknown hint degrades", httpReq(100, "/delta", "BOGUS"), TypeUnknown},
		{"udp discovery port", udpHello(60), TypeHello},
		{"udp hint beats port rule", Record{Length: 60, Transport: UDP, DstPort: DiscoveryPort, TypeHint: "DELTA"}, TypeDelta},
		{"udp other port", Record{Length: 60, Transport: UDP, SrcPort: 1234, DstPort: 4321}, TypeUnknown},
		{"path delta", httpReq(100, "/delta", ""), TypeDelta},
		{"path state", httpReq(100, "/state", ""), TypeState},
		{"path stats not shadowed by state", httpReq(100, "/stats", ""), TypeStats},
		{"path position", httpReq(100, "/position", ""), TypePosition},
		{"unknown path", httpReq(100, "/sensor", ""), TypeUnknown},
		{"tcp without uri", Record{Length: 100, Transport: TCP}, TypeUnknown},
	}
	for _, c := range cases {
		if got := classifyRecord(c.rec); got != c.want {
			t.Errorf("%s: got %s, want %s", c.name, got, c.want)
		}
	}
}

func TestClassifyBucketTotalsMatchGlobals(t *testing.T) {
	records := []Record{
		udpHello(60), udpHello(60), udpHello(62),
		httpReq(200, "/delta", "DELTA"),
		httpResp(150, "/delta", "DELTA"),
		httpReq(300, "/delta", "ANTI-ENTROPY"),
		httpReq(90, "/state", ""),
		httpResp(900, "/state", ""),
		httpReq(90, "/stats", ""),
		httpReq(120, "/position", ""),
		httpReq(100, "/whatever", ""),
	}
	s := Classify(records)

	var count, bytes int64
	for _, ts := range s.ByType {
		count += ts.Count
		bytes += ts.Bytes
	}
	if count != s.TotalPackets {
		t.Errorf("per-type counts sum to %d, total is %d", count, s.TotalPackets)
	}
	if bytes != s.TotalBytes {
		t.Errorf("per-type bytes sum to %d, total is %d", bytes, s.TotalBytes)
	}
	if s.UDPPackets+s.TCPPackets != s.TotalPackets {
		t.Error("udp+tcp packet split does not cover the total")
	}
	if s.UDPBytes+s.TCPBytes != s.TotalBytes {
		t.Error("udp+tcp byte split does not cover the total")
	}
	if s.ByType[TypeHello].Count != 3 || s.ByType[TypeDelta].Count != 2 {
		t.Errorf("bucket counts: hello=%d delta=%d", s.ByType[TypeHello].Count, s.ByType[TypeDelta].Count)
	}
	if s.ByType[TypeUnknown].Count != 1 {
		t.Errorf("unknown bucket = %d, want 1", s.ByType[TypeUnknown].Count)
	}
}

func TestUnrespondedPercentage(t *testing.T) {
	records := []Record{
		httpReq(100, "/delta", "DELTA"),
		httpReq(100, "/delta", "DELTA"),
		httpReq(100, "/delta", "DELTA"),
		httpReq(100, "/delta", "DELTA"),
		httpResp(80, "/delta", "DELTA"),
		httpResp(80, "/state", ""), // responses only, no requests
	}
	s := Classify(records)

	delta := s.ByType[TypeDelta]
	if delta.Requests != 4 || delta.Responses != 1 {
		t.Fatalf("delta req/resp = %d/%d", delta.Requests, delta.Responses)
	}
	if got := delta.PctUnresponded; math.Abs(got-75.0) > 1e-9 {
		t.Errorf("delta unresponded = %v, want 75", got)
	}
	state := s.ByType[TypeState]
	if state.Requests != 0 {
		t.Fatalf("state requests = %d", state.Requests)
	}
	if state.PctUnresponded != 0.0 {
		t.Errorf("unresponded with zero requests = %v, want 0", state.PctUnresponded)
	}
}

func TestClassifyEmptyInput(t *testing.T) {
	s := Classify(nil)
	if s.TotalPackets != 0 || s.TotalBytes != 0 {
		t.Errorf("empty classify totals = %d/%d", s.TotalPackets, s.TotalBytes)
	}
	if s.AvgPacketSize != 0 {
		t.Errorf("avg packet size on empty input = %v, want 0", s.AvgPacketSize)
	}
	for mt, ts := range s.ByType {
		if ts.Count != 0 || ts.PctUnresponded != 0 {
			t.Errorf("bucket %s not zeroed: %+v", mt, ts)
		}
	}
}

func TestAverageAndQuantiles(t *testing.T) {
	records := []Record{udpHello(100), udpHello(200), udpHello(300)}
	s := Classify(records)
	if s.AvgPacketSize != 200 {
		t.Errorf("avg size = %v, want 200", s.AvgPacketSize)
	}
	p50 := s.SizeQuantile(0.5)
	if p50 < 180 || p50 > 220 {
		t.Errorf("p50 = %v, want about 200", p50)
	}
	empty := Classify(nil)
	if empty.SizeQuantile(0.5) != 0 {
		t.Error("quantile on empty source should be 0")
	}
}

func TestAggregateRecomputesShares(t *testing.T) {
	// Source a: 1 UDP packet of 100 bytes (100% udp).
	// Source b: 99 TCP request packets of 100 bytes (0% udp).
	a := Classify([]Record{udpHello(100)})
	var recs []Record
	for i := 0; i < 99; i++ {
		recs = append(recs, httpReq(100, "/delta", ""))
	}
	b := Classify(recs)

	g := Aggregate(map[string]*SourceStats{"a": a, "b": b})
	if g.TotalPackets != 100 || g.TotalBytes != 10000 {
		t.Fatalf("totals = %d/%d", g.TotalPackets, g.TotalBytes)
	}
	// Averaging per-source shares would claim 50%; the real share is 1%.
	if math.Abs(g.UDPShare-1.0) > 1e-9 {
		t.Errorf("udp share = %v, want 1.0", g.UDPShare)
	}
	if g.AvgPacketSize != 100 {
		t.Errorf("avg size = %v, want 100", g.AvgPacketSize)
	}
	if g.ByType[TypeDelta].Count != 99 || g.ByType[TypeHello].Count != 1 {
		t.Errorf("aggregated buckets: %+v", g.ByType)
	}
	// unresponded recomputed from summed requests/responses
	if g.ByType[TypeDelta].PctUnresponded != 100.0 {
		t.Errorf("aggregated delta unresponded = %v", g.ByType[TypeDelta].PctUnresponded)
	}
}

func TestAggregateEmpty(t *testing.T) {
	g := Aggregate(nil)
	if g.TotalPackets != 0 || g.AvgPacketSize != 0 || g.UDPShare != 0 {
		t.Errorf("empty aggregate = %+v", g)
	}
}

func TestNormalizeType(t *testing.T) {
	cases := map[string]MessageType{
		"DELTA":        TypeDelta,
		"delta":        TypeDelta,
		" Anti-Entropy ": TypeAntiEntropy,
		"HELLO":        TypeHello,
		"nonsense":     TypeUnknown,
		"":             TypeUnknown,
	}
	for in, want := range cases {
		if got := NormalizeType(in); got != want {
			t.Errorf("NormalizeType(%q) = %s, want %s", in, got, want)
		}
	}
}
