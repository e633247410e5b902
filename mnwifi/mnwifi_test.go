package mnwifi

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestProcRegistryStopTerminates(t *testing.T) {
	r := NewProcRegistry(time.Second, nil)
	p, err := r.Start("sleeper", "sh", "-c", "sleep 30")
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		r.Stop(p)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not terminate the process")
	}
	// a second Stop on an exited process is a no-op
	r.Stop(p)
}

func TestProcRegistryStopAllReverseOrder(t *testing.T) {
	r := NewProcRegistry(time.Second, nil)
	var procs []*Proc
	for i := 0; i < 3; i++ {
		p, err := r.Start("sleeper", "sh", "-c", "sleep 30")
		if err != nil {
			t.Fatal(err)
		}
		procs = append(procs, p)
	}
	r.StopAll()
	for _, p := range procs {
		select {
		case <-p.done:
		default:
			t.Errorf("process %s still running after StopAll", p.Name)
		}
	}
}

func TestStartLoggedWritesOutput(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "out.log")

	r := NewProcRegistry(time.Second, nil)
	p, err := r.StartLogged("echoer", logPath, "sh", "-c", "echo hello")
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Wait(); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "hello\n" {
		t.Errorf("log contents = %q", b)
	}
}

func writePositionFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, "position-"+name+"-mn-telemetry.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestTelemetryDirPositions(t *testing.T) {
	dir := t.TempDir()
	writePositionFile(t, dir, "dr1", "10.0,20.0,0.0\n33.4,44.9,0.0\n")
	writePositionFile(t, dir, "dr2", "")
	// dr3 has no file yet

	src := TelemetryDir{Dir: dir, Names: []string{"dr1", "dr2", "dr3"}}
	got, err := src.Positions()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("positions = %v, want only dr1", got)
	}
	if p := got["dr1"]; p.X != 33 || p.Y != 44 {
		t.Errorf("dr1 position = %+v, want last line {33 44}", p)
	}
}

func TestTelemetryDirMalformedLine(t *testing.T) {
	dir := t.TempDir()
	writePositionFile(t, dir, "dr1", "not-a-position\n")

	src := TelemetryDir{Dir: dir, Names: []string{"dr1"}}
	if _, err := src.Positions(); err == nil {
		t.Error("malformed line accepted")
	}
}
