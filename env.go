package consolefwd

import (
	"net"
	"os"
	"strconv"
	"strings"
)

// LookupFunc reads one environment variable, reporting whether it is set
type LookupFunc func(key string) (string, bool)

// OSLookup reads the process environment
func OSLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// MapLookup serves variables from a fixed map
func MapLookup(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

// Environment variables consulted for the dev server URL, in priority order
const (
	EnvForwardURL    = "CONSOLE_FORWARD_URL"
	EnvDevServerURL  = "DEV_SERVER_URL"
	EnvDevServerHost = "DEV_SERVER_HOST"
	EnvDevServerPort = "DEV_SERVER_PORT"
	EnvPort          = "PORT"
)

// directURLVars hold a complete sink base URL
var directURLVars = []string{EnvForwardURL, EnvDevServerURL}

// frameworkURLVars are set by common dev tooling
var frameworkURLVars = []string{
	"VITE_DEV_SERVER_URL",
	"ELECTRON_RENDERER_URL",
	"WEBPACK_DEV_SERVER_URL",
	"NEXT_PUBLIC_DEV_SERVER_URL",
}

// DiscoverDevServerURL derives the sink base URL from the environment.
// Order: direct URL variables, framework URL variables, host plus optional port
// (default 3001), then a bare numeric PORT. Empty values count as unset.
func DiscoverDevServerURL(lookup LookupFunc) (string, bool) {
	if lookup == nil {
		return "", false
	}

	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	for _, key := range directURLVars {
		if v, ok := get(key); ok {
			return v, true
		}
	}

	for _, key := range frameworkURLVars {
		if v, ok := get(key); ok {
			return v, true
		}
	}

	if host, ok := get(EnvDevServerHost); ok {
		if !strings.Contains(host, "://") {
			host = "http://" + host
		}
		if hostHasPort(host) {
			return host, true
		}
		port, ok := get(EnvDevServerPort)
		if !ok {
			port = defaultHostPort
		}
		return host + ":" + port, true
	}

	if port, ok := get(EnvPort); ok {
		if n, err := strconv.Atoi(port); err == nil && n > 0 && n < 65536 {
			return "http://localhost:" + port, true
		}
	}

	return "", false
}

// hostHasPort reports whether a scheme-prefixed host already names a port
func hostHasPort(host string) bool {
	authority := host[strings.Index(host, "://")+3:]
	if i := strings.IndexByte(authority, '/'); i >= 0 {
		authority = authority[:i]
	}
	_, port, err := net.SplitHostPort(authority)
	return err == nil && port != ""
}
