package main

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

type RemoteError struct {
	inner   error
	problem string
}

func (e RemoteError) Error() string {
	if e.inner != nil {
		return e.problem + ": " + e.inner.Error()
	}
	return e.problem
}

func connectSSH(s Server) (*ssh.Client, error) {
	key, err := os.ReadFile(s.KeyPath)
	if err != nil {
		return nil, RemoteError{err, "error reading key " + s.KeyPath}
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, RemoteError{err, "error parsing key " + s.KeyPath}
	}
	config := &ssh.ClientConfig{
		User:            s.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}
	client, err := ssh.Dial("tcp", fmt.Sprintf("%s:%d", s.PublicIP, s.Port), config)
	if err != nil {
		return nil, RemoteError{err, "error dialing " + s.PublicIP}
	}
	return client, nil
}

// runAll executes fn against every server in parallel and reports
// failures without stopping the rest.
func runAll(servers []Server, clients []*ssh.Client, fn func(int, Server, *ssh.Client) error) {
	wg := &sync.WaitGroup{}
	wg.Add(len(clients))
	for i := range clients {
		go func(i int, s Server, c *ssh.Client) {
			defer wg.Done()
			err := fn(i, s, c)
			if err != nil {
				switch err := err.(type) {
				case *exec.ExitError:
					fmt.Printf("error executing local command for server %v: %s\n", i, err.Stderr)
				case *ssh.ExitError:
					fmt.Printf("error executing command on server %v: %s\n", i, err.Msg())
				default:
					fmt.Printf("error executing on server %v: %v\n", i, err)
				}
			}
		}(i, servers[i], clients[i])
	}
	wg.Wait()
}

func runRemote(c *ssh.Client, cmd string) error {
	sess, err := c.NewSession()
	if err != nil {
		return RemoteError{err, "error creating session"}
	}
	defer sess.Close()
	return sess.Run(cmd)
}

func outputRemote(c *ssh.Client, cmd string) ([]byte, error) {
	sess, err := c.NewSession()
	if err != nil {
		return nil, RemoteError{err, "error creating session"}
	}
	defer sess.Close()
	return sess.Output(cmd)
}

// TODO: use go-native ssh for file transfer
func copyBackFile(s Server, from, dest string) error {
	fromStr := fmt.Sprintf("%s@%s:%s", s.User, s.PublicIP, from)
	cmdArgs := []string{"-o", "StrictHostKeyChecking=no", "-o", "UserKnownHostsFile=/dev/null", "-i", s.KeyPath, fromStr, dest}
	return exec.Command("scp", cmdArgs...).Run()
}

func uploadFile(s Server, from, dest string) error {
	toStr := fmt.Sprintf("%s@%s:%s", s.User, s.PublicIP, dest)
	cmdArgs := []string{"-o", "StrictHostKeyChecking=no", "-o", "UserKnownHostsFile=/dev/null", "-i", s.KeyPath, from, toStr}
	return exec.Command("scp", cmdArgs...).Run()
}

func killDrone(c *ssh.Client) error {
	pkill, err := c.NewSession()
	if err != nil {
		return RemoteError{err, "error creating session"}
	}
	pkill.Run(`killall -w fanet-drone; pkill -TERM tcpdump; sleep 1`)
	pkill.Close()
	return nil
}
