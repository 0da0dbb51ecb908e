package config

import (
	"crypto/rand"
	"encoding/base64"
	"net"
	"os"
)

// deriveNodeID picks a default node_id from the first network interface's
// MAC address, falling back to the hostname, falling back to 16 random
// bytes — all base64-encoded.
func deriveNodeID() string {
	if mac := firstMACAddress(); mac != "" {
		return mac
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return base64.StdEncoding.EncodeToString([]byte(hostname))
	}

	raw := make([]byte, 16)
	_, _ = rand.Read(raw)
	return base64.StdEncoding.EncodeToString(raw)
}

func firstMACAddress() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if len(iface.HardwareAddr) == 0 {
			continue
		}
		return base64.StdEncoding.EncodeToString(iface.HardwareAddr)
	}
	return ""
}
