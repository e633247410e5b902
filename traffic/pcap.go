package traffic

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// Capture validation failures. Each is recoverable: the source contributes
// zero to aggregation and the cause is reported.
var (
	ErrPcapMissing   = errors.New("capture file does not exist")
	ErrPcapEmpty     = errors.New("capture file is empty")
	ErrPcapTooSmall  = errors.New("capture file is smaller than a pcap header")
	ErrPcapTruncated = errors.New("capture was cut short")
)

// pcapHeaderSize is the minimum size of a structurally valid pcap file.
const pcapHeaderSize = 24

// ValidatePcap checks that a capture file exists and is structurally
// plausible before any decoding is attempted. A capture whose writer was
// killed mid-flush typically fails here or, later, as ErrPcapTruncated.
func ValidatePcap(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrPcapMissing, path)
	}
	if fi.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrPcapEmpty, path)
	}
	if fi.Size() < pcapHeaderSize {
		return fmt.Errorf("%w: %s is %d bytes", ErrPcapTooSmall, path, fi.Size())
	}
	return nil
}

// Decoder turns a capture file into decoded frame records. The production
// decoder shells out to tshark; tests substitute a fake.
type Decoder interface {
	Decode(path string) ([]Record, error)
}

// TsharkDecoder decodes captures with two tshark passes: one for UDP
// frames, one for HTTP-bearing TCP frames. The harness never parses raw
// packet bytes itself.
type TsharkDecoder struct {
	Bin string // tshark binary, defaults to "tshark"
}

func (d *TsharkDecoder) bin() string {
	if d.Bin == "" {
		return "tshark"
	}
	return d.Bin
}

func (d *TsharkDecoder) Decode(path string) ([]Record, error) {
	udp, err := d.run(path, "udp",
		"frame.number", "frame.len", "udp.srcport", "udp.dstport")
	if err != nil {
		return nil, err
	}
	http, err := d.run(path, "http",
		"frame.number", "frame.len", "http.request.method", "http.request.uri",
		"http.response_for.uri", "http.request.line", "http.response.line")
	if err != nil {
		return nil, err
	}

	var records []Record
	for _, parts := range udp {
		records = append(records, Record{
			Frame:     atoi(field(parts, 0)),
			Length:    atoi(field(parts, 1)),
			Transport: UDP,
			SrcPort:   atoi(field(parts, 2)),
			DstPort:   atoi(field(parts, 3)),
		})
	}
	for _, parts := range http {
		r := Record{
			Frame:     atoi(field(parts, 0)),
			Length:    atoi(field(parts, 1)),
			Transport: TCP,
			Method:    field(parts, 2),
			URI:       field(parts, 3),
		}
		if respFor := field(parts, 4); respFor != "" || field(parts, 6) != "" {
			r.IsResponse = true
			if r.URI == "" {
				r.URI = pathOf(respFor)
			}
		}
		// The response header value wins when both directions carry the
		// marker on one frame, as in the original pipeline.
		if hint := messageTypeOf(field(parts, 5)); hint != "" {
			r.TypeHint = hint
		}
		if hint := messageTypeOf(field(parts, 6)); hint != "" {
			r.TypeHint = hint
		}
		records = append(records, r)
	}
	return records, nil
}

// run executes one tshark field-extraction pass and splits the output into
// per-frame field tuples.
func (d *TsharkDecoder) run(path, filter string, fields ...string) ([][]string, error) {
	args := []string{"-r", path, "-Y", filter, "-T", "fields"}
	for _, f := range fields {
		args = append(args, "-e", f)
	}
	args = append(args, "-E", "separator=|")

	out, err := exec.Command(d.bin(), args...).Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) && strings.Contains(string(ee.Stderr), "cut short") {
			return nil, fmt.Errorf("%w: %s", ErrPcapTruncated, path)
		}
		return nil, fmt.Errorf("tshark %s pass on %s: %w", filter, path, err)
	}

	var rows [][]string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line == "" {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 2 {
			continue
		}
		rows = append(rows, parts)
	}
	return rows, nil
}

var messageTypeRe = regexp.MustCompile(`X-Message-Type:\s*([A-Za-z-]+)`)

// messageTypeOf extracts the custom marker header value from a tshark
// header-line field, which concatenates every header line of the frame.
func messageTypeOf(headerLines string) string {
	m := messageTypeRe.FindStringSubmatch(headerLines)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// pathOf strips scheme and host from a full response_for URI.
func pathOf(uri string) string {
	if i := strings.Index(uri, "://"); i >= 0 {
		rest := uri[i+3:]
		if j := strings.Index(rest, "/"); j >= 0 {
			return rest[j:]
		}
		return "/"
	}
	return uri
}

func field(parts []string, i int) string {
	if i >= len(parts) {
		return ""
	}
	return strings.TrimSpace(parts[i])
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
