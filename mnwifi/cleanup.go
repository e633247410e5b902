package mnwifi

import (
	"os/exec"

	"go.uber.org/zap"
)

// Cleanup removes whatever a previous run left behind on the emulation
// host: stray controllers, lingering tcpdumps, tc rules on the wireless
// interfaces, and the emulator's own state. Every step is best-effort;
// most fail harmlessly when there is nothing to clean.
func Cleanup(log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	steps := []struct {
		what string
		cmd  string
	}{
		{"stray controllers", "pkill -9 -f controller"},
		{"controller port", "fuser -k 6653/tcp"},
		{"lingering tcpdump", "pkill -9 tcpdump"},
		{"tc rules", "for iface in $(ip link show | grep -o '[a-z0-9]*-wlan0'); do tc qdisc del dev $iface root; done"},
		{"emulator state", "mn -c"},
	}
	for _, s := range steps {
		if out, err := exec.Command("sh", "-c", s.cmd).CombinedOutput(); err != nil {
			log.Debug("cleanup step failed",
				zap.String("step", s.what), zap.ByteString("output", out), zap.Error(err))
		}
	}
	log.Info("emulation host cleaned")
}

// KillLeftoverDrones kills any drone binaries a crashed run left running.
func KillLeftoverDrones(execName string, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := exec.Command("killall", "-9", execName).Run(); err == nil {
		log.Warn("killed leftover drone processes", zap.String("exec", execName))
	}
}
