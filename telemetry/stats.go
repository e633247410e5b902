package telemetry

// Stats is the decoded /stats response: nested per-subsystem counter
// blocks reported by the drone.
type Stats struct {
	Dissemination DisseminationStats `json:"dissemination"`
	Network       NetworkStats       `json:"network"`
	SensorSystem  SensorStats        `json:"sensor_system"`
	Control       ControlStats       `json:"control"`
	Uptime        float64            `json:"uptime"`
}

type DisseminationStats struct {
	Running           bool    `json:"running"`
	Fanout            int     `json:"fanout"`
	DefaultTTL        int     `json:"default_ttl"`
	SentCount         int64   `json:"sent_count"`
	ReceivedCount     int64   `json:"received_count"`
	DroppedCount      int64   `json:"dropped_count"`
	CacheSize         int     `json:"cache_size"`
	NeighborCount     int     `json:"neighbor_count"`
	DeltaSent         int64   `json:"delta_messages_sent"`
	AntiEntropyCount  int64   `json:"anti_entropy_count"`
	AntiEntropySec    float64 `json:"anti_entropy_interval_sec"`
	DeltaPushSec      float64 `json:"delta_push_interval_sec"`
	HelloSent         int64   `json:"hello_messages_sent"`
	BytesSentTotal    int64   `json:"bytes_sent"`
	BytesRecvTotal    int64   `json:"bytes_received"`
	DuplicatesDropped int64   `json:"duplicates_dropped"`
}

type NetworkStats struct {
	NeighborIDs  []string `json:"neighbor_ids"`
	NeighborURLs []string `json:"neighbor_urls"`
}

type SensorStats struct {
	Position     Position        `json:"position"`
	ReadingCount int64           `json:"reading_count"`
	Generator    SensorGenerator `json:"generator"`
}

type SensorGenerator struct {
	ActiveFires int `json:"active_fires"`
}

type ControlStats struct {
	Running bool `json:"running"`
}

// Position is a node's reported location in the simulated area.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// NeighborCount prefers the explicit id list and falls back to the
// dissemination counter when the list is absent.
func (s *Stats) NeighborCount() int {
	if s.Network.NeighborIDs != nil {
		return len(s.Network.NeighborIDs)
	}
	return s.Dissemination.NeighborCount
}
