package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// Server is one remote machine in the physical testbed.
type Server struct {
	Location string `json:"location"`
	User     string `json:"user"`
	PublicIP string `json:"public_ip"`
	Port     int    `json:"port"`
	KeyPath  string `json:"key_path"`
}

// ReadServerInfo parses the server list file.
func ReadServerInfo(path string) ([]Server, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var servers []Server
	if err := json.Unmarshal(b, &servers); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range servers {
		if servers[i].PublicIP == "" {
			return nil, fmt.Errorf("%s: server %d has no public_ip", path, i)
		}
		if servers[i].Port == 0 {
			servers[i].Port = 22
		}
		if servers[i].User == "" {
			servers[i].User = "root"
		}
	}
	return servers, nil
}
