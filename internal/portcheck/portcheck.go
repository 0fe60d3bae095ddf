// Package portcheck decides whether a local TCP port can host the OAuth
// redirect listener, waiting out a lingering TIME_WAIT socket when needed.
package portcheck

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

var (
	// ErrInvalidPort means the port is outside the usable range.
	ErrInvalidPort = errors.New("invalid port")
	// ErrPortInUse means another process holds the port; waiting won't help.
	ErrPortInUse = errors.New("port in use")
	// ErrPortStillUnavailable means the TIME_WAIT linger outlasted our wait.
	ErrPortStillUnavailable = errors.New("port still unavailable")
	// ErrCancelled means the user interrupted the wait.
	ErrCancelled = errors.New("login cancelled")
)

// Available reports whether a TCP port can currently be bound on loopback.
// The probe binds the port and releases it immediately.
func Available(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}

// Kernel connection-table sources. Overridden in tests.
var (
	procTCPPaths   = []string{"/proc/net/tcp", "/proc/net/tcp6"}
	finTimeoutPath = "/proc/sys/net/ipv4/tcp_fin_timeout"
)

const (
	// timeWaitState is the TCP_TIME_WAIT value in the st column of /proc/net/tcp.
	timeWaitState = "06"
	// defaultTimeWaitSec is 2*MSL, the usual linger when the kernel won't say.
	defaultTimeWaitSec = 60
)

// TimeWait reports whether port is tied up by a TIME_WAIT socket and, if so,
// the platform's linger duration in seconds. The check is advisory: if the
// connection table can't be read (unsupported platform, permissions), it
// reports (false, 0) and the caller treats the port like any other busy one.
func TimeWait(port int) (bool, int) {
	for _, path := range procTCPPaths {
		table, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if tableHasTimeWait(table, port) {
			return true, timeWaitTimeout()
		}
	}
	return false, 0
}

// tableHasTimeWait scans a /proc/net/tcp-format table for a TIME_WAIT entry
// whose local or remote port matches.
func tableHasTimeWait(table []byte, port int) bool {
	for _, line := range strings.Split(string(table), "\n") {
		fields := strings.Fields(line)
		// sl local_address rem_address st ...
		if len(fields) < 4 || fields[3] != timeWaitState {
			continue
		}
		if hexPort(fields[1]) == port || hexPort(fields[2]) == port {
			return true
		}
	}
	return false
}

// hexPort extracts the port from an "ADDR:PORT" hex pair.
func hexPort(addr string) int {
	i := strings.LastIndexByte(addr, ':')
	if i < 0 {
		return -1
	}
	p, err := strconv.ParseInt(addr[i+1:], 16, 32)
	if err != nil {
		return -1
	}
	return int(p)
}

// timeWaitTimeout reads the kernel's FIN timeout, falling back to the
// default linger when the sysctl file is missing or unreadable.
func timeWaitTimeout() int {
	data, err := os.ReadFile(finTimeoutPath)
	if err != nil {
		return defaultTimeWaitSec
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || n <= 0 {
		return defaultTimeWaitSec
	}
	return n
}
