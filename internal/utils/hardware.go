package utils

import (
	"crypto/sha256"
	"encoding/binary"
	"net"
	"os"
)

// machineFingerprint is the MAC address of the first active physical interface,
// or the hostname when there is none.
func machineFingerprint() string {
	interfaces, err := net.Interfaces()
	if err == nil {
		for _, i := range interfaces {
			if i.Flags&net.FlagUp != 0 && i.Flags&net.FlagLoopback == 0 && len(i.HardwareAddr) > 0 {
				return i.HardwareAddr.String()
			}
		}
	}

	host, err := os.Hostname()
	if err != nil || host == "" {
		return "unknown-host"
	}
	return host
}

// NodeID derives a snowflake node id (0-1023) from this machine, so instances
// started without SNOWFLAKE_NODE still get distinct order-number sequences.
func NodeID() int64 {
	hash := sha256.Sum256([]byte(machineFingerprint() + "hospitality-node"))
	return int64(binary.BigEndian.Uint16(hash[:2]) % 1024)
}
