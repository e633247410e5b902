package mnwifi

import (
	"os"
	"path/filepath"
)

// Capture is a running tcpdump writing one interface's traffic to a pcap
// file under <dir>/pcaps/<name>.pcap.
type Capture struct {
	Name string
	Path string
	proc *Proc
	reg  *ProcRegistry
}

// StartCapture launches tcpdump on the given interface. The resulting
// pcap is laid out where the traffic analyzer expects it.
func (r *ProcRegistry) StartCapture(dir, name, iface string) (*Capture, error) {
	pcapDir := filepath.Join(dir, "pcaps")
	if err := os.MkdirAll(pcapDir, 0755); err != nil {
		return nil, err
	}
	path := filepath.Join(pcapDir, name+".pcap")
	proc, err := r.Start("tcpdump-"+name, "tcpdump", "-i", iface, "-w", path)
	if err != nil {
		return nil, err
	}
	return &Capture{Name: name, Path: path, proc: proc, reg: r}, nil
}

// Stop ends the capture gracefully so tcpdump flushes its buffers; a
// killed tcpdump leaves a pcap the analyzer will reject as truncated.
func (c *Capture) Stop() {
	c.reg.Stop(c.proc)
}
