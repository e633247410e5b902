package mnwifi

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/heitortanoue/fanet-harness/telemetry"
)

// TelemetryDir reads the position files the emulator's telemetry module
// appends to, one file per node named position-<name>-mn-telemetry.txt,
// each line a comma-separated x,y,z sample. The last line is the node's
// current position.
type TelemetryDir struct {
	Dir   string
	Names []string
}

// Positions returns the latest known position of each node. Nodes whose
// file is missing or still empty are absent from the map; the emulator
// creates the files lazily.
func (d TelemetryDir) Positions() (map[string]telemetry.Position, error) {
	out := make(map[string]telemetry.Position, len(d.Names))
	for _, name := range d.Names {
		path := filepath.Join(d.Dir, fmt.Sprintf("position-%s-mn-telemetry.txt", name))
		pos, ok, err := lastPosition(path)
		if err != nil {
			return nil, err
		}
		if ok {
			out[name] = pos
		}
	}
	return out, nil
}

func lastPosition(path string) (telemetry.Position, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return telemetry.Position{}, false, nil
		}
		return telemetry.Position{}, false, err
	}
	defer f.Close()

	var last string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			last = line
		}
	}
	if err := sc.Err(); err != nil {
		return telemetry.Position{}, false, err
	}
	if last == "" {
		return telemetry.Position{}, false, nil
	}
	return parsePosition(last)
}

func parsePosition(line string) (telemetry.Position, bool, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 2 {
		return telemetry.Position{}, false, fmt.Errorf("malformed position line %q", line)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return telemetry.Position{}, false, fmt.Errorf("malformed position line %q: %w", line, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return telemetry.Position{}, false, fmt.Errorf("malformed position line %q: %w", line, err)
	}
	return telemetry.Position{X: int(x), Y: int(y)}, true, nil
}
