package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const canonicalState = `{
	"all_deltas": [
		{"cell": {"x": 3, "y": 7}, "meta": {"detected_by": "drone-go-1", "timestamp": 1700000000000, "confidence": 92.5}},
		{"cell": {"x": 3, "y": 7}, "meta": {"detected_by": "drone-go-2", "timestamp": 1700000001000, "confidence": 88.0}},
		{"cell": {"x": 4, "y": 1}, "meta": {"detected_by": "drone-go-1", "timestamp": 1700000002000, "confidence": 75.0}}
	],
	"total_deltas": 3,
	"unique_sensors": 2
}`

const legacyState = `{
	"latest_readings": {
		"drone-go-1": {"cell": {"x": 3, "y": 7}, "meta": {"detected_by": "drone-go-1", "timestamp": 1700000000000, "confidence": 92.5}},
		"drone-go-2": {"cell": {"x": 4, "y": 1}, "meta": {"detected_by": "drone-go-2", "timestamp": 1700000001000, "confidence": 60.0}}
	}
}`

func TestFetchStateCanonicalSchema(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/state" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(canonicalState))
	}))
	defer srv.Close()

	st, err := NewClient(srv.URL, time.Second).FetchState(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Legacy() {
		t.Error("canonical response flagged as legacy")
	}
	set := st.DeltaSet()
	// duplicate cell 3,7 dedups by identifier
	if set.Len() != 2 || !set.Has("3,7") || !set.Has("4,1") {
		t.Errorf("delta set = %v", set)
	}
	meta, ok := st.FirstMeta()
	if !ok || meta.Confidence != 92.5 || meta.Timestamp != 1700000000000 {
		t.Errorf("first meta = %+v ok=%v", meta, ok)
	}
}

func TestFetchStateLegacySchema(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(legacyState))
	}))
	defer srv.Close()

	st, err := NewClient(srv.URL, time.Second).FetchState(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !st.Legacy() {
		t.Error("legacy response not flagged")
	}
	set := st.DeltaSet()
	if set.Len() != 2 || !set.Has("3,7") || !set.Has("4,1") {
		t.Errorf("delta set = %v", set)
	}
}

func TestFetchStateMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"all_deltas": [`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).FetchState(context.Background())
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != KindParse {
		t.Fatalf("want parse FetchError, got %v", err)
	}
	if fe.Body == "" {
		t.Error("parse error did not capture the raw body")
	}
}

func TestFetchStateMissingKeys(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"something_else": 1}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).FetchState(context.Background())
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != KindSchema {
		t.Fatalf("want schema FetchError, got %v", err)
	}
}

func TestFetchStateNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 20*time.Millisecond).FetchState(context.Background())
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != KindNetwork {
		t.Fatalf("want network FetchError, got %v", err)
	}
}

func TestFetchStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stats" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"dissemination": {"running": true, "fanout": 3, "default_ttl": 4,
				"sent_count": 120, "received_count": 118, "dropped_count": 7,
				"cache_size": 40, "anti_entropy_count": 2},
			"network": {"neighbor_ids": ["drone-go-2", "drone-go-3"]},
			"sensor_system": {"position": {"x": 100, "y": 250}, "reading_count": 12,
				"generator": {"active_fires": 3}},
			"control": {"running": true},
			"uptime": 93.5
		}`))
	}))
	defer srv.Close()

	st, err := NewClient(srv.URL, time.Second).FetchStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Dissemination.SentCount != 120 || st.Dissemination.DroppedCount != 7 {
		t.Errorf("dissemination = %+v", st.Dissemination)
	}
	if st.NeighborCount() != 2 {
		t.Errorf("neighbor count = %d, want 2", st.NeighborCount())
	}
	if st.SensorSystem.Position.X != 100 || st.Uptime != 93.5 {
		t.Errorf("stats = %+v", st)
	}
}

func TestNeighborCountFallback(t *testing.T) {
	s := Stats{Dissemination: DisseminationStats{NeighborCount: 5}}
	if s.NeighborCount() != 5 {
		t.Errorf("fallback neighbor count = %d, want 5", s.NeighborCount())
	}
}

func TestPushPositionAndInjectReading(t *testing.T) {
	var gotPos, gotSensor string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b := make([]byte, r.ContentLength)
		r.Body.Read(b)
		switch r.URL.Path {
		case "/position":
			gotPos = string(b)
		case "/sensor":
			gotSensor = string(b)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	if err := c.PushPosition(context.Background(), Position{X: 12, Y: 34}); err != nil {
		t.Fatal(err)
	}
	if gotPos != `{"x":12,"y":34}` {
		t.Errorf("position body = %s", gotPos)
	}
	r := Reading{X: 1, Y: 2, TimestampMS: 1700000000000, Confidence: 80}
	if err := c.InjectReading(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if gotSensor != `{"x":1,"y":2,"timestamp_ms":1700000000000,"confidence":80}` {
		t.Errorf("sensor body = %s", gotSensor)
	}
}
