package traffic

// GlobalReport sums the per-source statistics across a whole run.
// Percentage fields are recomputed from the summed numerators and
// denominators; averaging per-source percentages would weight a nearly
// idle interface the same as a busy one.
type GlobalReport struct {
	Sources       int                       `json:"sources"`
	TotalPackets  int64                     `json:"total_packets"`
	TotalBytes    int64                     `json:"total_bytes"`
	UDPPackets    int64                     `json:"udp_packets"`
	UDPBytes      int64                     `json:"udp_bytes"`
	TCPPackets    int64                     `json:"tcp_packets"`
	TCPBytes      int64                     `json:"tcp_bytes"`
	AvgPacketSize float64                   `json:"avg_packet_size"`
	UDPShare      float64                   `json:"udp_packet_share"`
	ByType        map[MessageType]*TypeStat `json:"by_message_type"`
}

// Aggregate sums all numeric fields across capture sources.
func Aggregate(perSource map[string]*SourceStats) GlobalReport {
	g := GlobalReport{ByType: make(map[MessageType]*TypeStat, len(MessageTypes))}
	for _, mt := range MessageTypes {
		g.ByType[mt] = &TypeStat{}
	}
	for _, s := range perSource {
		g.Sources++
		g.TotalPackets += s.TotalPackets
		g.TotalBytes += s.TotalBytes
		g.UDPPackets += s.UDPPackets
		g.UDPBytes += s.UDPBytes
		g.TCPPackets += s.TCPPackets
		g.TCPBytes += s.TCPBytes
		for mt, ts := range s.ByType {
			agg, ok := g.ByType[mt]
			if !ok {
				agg = &TypeStat{}
				g.ByType[mt] = agg
			}
			agg.Count += ts.Count
			agg.Bytes += ts.Bytes
			agg.Requests += ts.Requests
			agg.Responses += ts.Responses
		}
	}
	if g.TotalPackets > 0 {
		g.AvgPacketSize = float64(g.TotalBytes) / float64(g.TotalPackets)
		g.UDPShare = float64(g.UDPPackets) / float64(g.TotalPackets) * 100.0
	}
	for _, ts := range g.ByType {
		ts.finalize()
	}
	return g
}
