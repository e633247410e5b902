// Command testbed manages drone deployments on real remote machines over
// SSH: install the binary, measure inter-node latency, start a run with
// captures, and pull back the logs and pcaps for the traffic analyzer.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"
)

var (
	serverListFilePath = flag.String("l", "servers.json", "path to the server list file")
	install            = flag.String("install", "", "install the given drone binary on all servers")
	runDrones          = flag.Bool("run", false, "start the drones; extra args are passed to the binary")
	downloadResults    = flag.String("dl", "", "download logs and pcaps, storing them with the given prefix")
	measure            = flag.Bool("ping", false, "measure pairwise latency between the servers")
	tcpPort            = flag.Int("tcp-port", 8080, "drone telemetry port")
	udpPort            = flag.Int("udp-port", 7000, "drone discovery port")
)

func main() {
	flag.Parse()

	servers, err := ReadServerInfo(*serverListFilePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if len(servers) == 0 {
		fmt.Fprintln(os.Stderr, "empty server list")
		os.Exit(1)
	}

	clients := make([]*ssh.Client, len(servers))
	connWg := &sync.WaitGroup{} // wait for the ssh connections
	connWg.Add(len(servers))
	for i, s := range servers {
		go func(i int, s Server) {
			defer connWg.Done()
			client, err := connectSSH(s)
			if err != nil {
				fmt.Println(err)
				os.Exit(1)
			}
			fmt.Printf("Connected to %v\n", s.Location)
			clients[i] = client
		}(i, s)
	}
	connWg.Wait()

	if *install != "" {
		runAll(servers, clients, func(i int, s Server, c *ssh.Client) error {
			if err := killDrone(c); err != nil {
				return err
			}
			if err := uploadFile(s, *install, "fanet-drone"); err != nil {
				return err
			}
			return runRemote(c, "chmod +x fanet-drone")
		})
	}

	if *measure {
		printLatencyTable(servers, clients)
	}

	if *runDrones {
		extra := strings.Join(flag.Args(), " ")
		runAll(servers, clients, func(i int, s Server, c *ssh.Client) error {
			if err := killDrone(c); err != nil {
				return err
			}
			// capture first so the drone's startup traffic is in the pcap
			capCmd := fmt.Sprintf(
				"bash -c 'nohup tcpdump -i any -w capture.pcap port %d or port %d > /dev/null 2>&1 &'",
				*tcpPort, *udpPort)
			if err := runRemote(c, capCmd); err != nil {
				return err
			}
			cmd := fmt.Sprintf(
				"bash -c 'ufw disable ; nohup ./fanet-drone -id=drone-go-%d -tcp-port=%d -udp-port=%d %s > log.txt 2>&1 &'",
				i+1, *tcpPort, *udpPort, extra)
			if err := runRemote(c, cmd); err != nil {
				return err
			}
			fmt.Println(s.Location, "started running")
			return nil
		})
	}

	if *downloadResults != "" {
		runAll(servers, clients, func(i int, s Server, c *ssh.Client) error {
			if err := killDrone(c); err != nil {
				return err
			}
			if err := copyBackFile(s, "log.txt", fmt.Sprintf("%s-%d.log", *downloadResults, i)); err != nil {
				return err
			}
			return copyBackFile(s, "capture.pcap", fmt.Sprintf("%s-%d.pcap", *downloadResults, i))
		})
	}
}

// printLatencyTable pings every other server from each server and prints
// the mean RTT matrix.
func printLatencyTable(servers []Server, clients []*ssh.Client) {
	n := len(servers)
	rtt := make([][]float64, n)
	for i := range rtt {
		rtt[i] = make([]float64, n)
	}
	runAll(servers, clients, func(i int, s Server, c *ssh.Client) error {
		for j, peer := range servers {
			if j == i {
				continue
			}
			cmd := fmt.Sprintf("ping -c 10 %s | tail -n1 | cut -f5 -d'/'", peer.PublicIP)
			out, err := outputRemote(c, cmd)
			if err != nil {
				return err
			}
			mean, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
			if err != nil {
				return RemoteError{err, "unparseable ping output from " + s.Location}
			}
			rtt[i][j] = mean
		}
		return nil
	})

	fmt.Printf("%-20s", "mean RTT (ms)")
	for j := range servers {
		fmt.Printf(" %9d", j)
	}
	fmt.Println()
	for i, s := range servers {
		fmt.Printf("%-20s", fmt.Sprintf("%d %s", i, s.Location))
		for j := range servers {
			if i == j {
				fmt.Printf(" %9s", "-")
			} else {
				fmt.Printf(" %9.1f", rtt[i][j])
			}
		}
		fmt.Println()
	}
}
