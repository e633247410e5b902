package mnwifi

import (
	"fmt"
	"os/exec"
	"strings"
)

// ApplyLoss adds a netem qdisc dropping the given percentage of packets
// on one interface.
func ApplyLoss(iface string, lossPercent float64) error {
	out, err := exec.Command("tc", "qdisc", "add", "dev", iface,
		"root", "netem", "loss", fmt.Sprintf("%g%%", lossPercent)).CombinedOutput()
	if err != nil {
		return fmt.Errorf("netem loss on %s: %w: %s", iface, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// ClearLoss removes the root qdisc from one interface. A missing qdisc is
// not an error; cleanup paths call this unconditionally.
func ClearLoss(iface string) error {
	out, err := exec.Command("tc", "qdisc", "del", "dev", iface, "root").CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if strings.Contains(msg, "No such file or directory") ||
			strings.Contains(msg, "Cannot delete qdisc with handle of zero") {
			return nil
		}
		return fmt.Errorf("clear netem on %s: %w: %s", iface, err, msg)
	}
	return nil
}
