package bridge

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnixPathCase is returned for unix socket paths the event engine cannot bind.
// The engine lowercases the whole address, so a mixed-case path would bind elsewhere.
var ErrUnixPathCase = errors.New("bridge: unix socket path must be lowercase")

// splitAddr turns "tcp://host:port" or "unix:///path" into a network and address.
// An address without a scheme is tcp.
func splitAddr(addr string) (network, address string) {
	if i := strings.Index(addr, "://"); i >= 0 {
		return addr[:i], addr[i+3:]
	}
	return "tcp", addr
}

// protoAddr renders addr in the scheme-prefixed form the event engine expects
func protoAddr(addr string) string {
	network, address := splitAddr(addr)
	return network + "://" + address
}

// checkListenAddr rejects addresses the event engine would rewrite
func checkListenAddr(addr string) error {
	network, address := splitAddr(addr)
	if strings.HasPrefix(network, "unix") && strings.ToLower(address) != address {
		return fmt.Errorf("%w: %s", ErrUnixPathCase, address)
	}
	return nil
}
