package cluster

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
)

// DefaultPort is the memcache port assumed when an address omits one.
const DefaultPort = 11211

// ErrInvalidServer is returned when a server address cannot be parsed.
var ErrInvalidServer = errors.New("invalid server address")

// ServerInfo identifies one cache server of the cluster.
type ServerInfo struct {
	Host string
	Port int
}

// Addr returns the dialable host:port form.
func (s ServerInfo) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// String returns the same form as Addr, used in reports and log lines.
func (s ServerInfo) String() string {
	return s.Addr()
}

// ParseServer parses "host", "host:port" or "[v6]:port".
// A missing port defaults to DefaultPort.
func ParseServer(addr string) (ServerInfo, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ServerInfo{}, fmt.Errorf("%w: empty", ErrInvalidServer)
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// No port present; the whole string is the host.
		if strings.Count(addr, ":") > 1 && !strings.HasPrefix(addr, "[") {
			return ServerInfo{Host: addr, Port: DefaultPort}, nil
		}
		if strings.Contains(addr, ":") {
			return ServerInfo{}, fmt.Errorf("%w: %q: %v", ErrInvalidServer, addr, err)
		}
		return ServerInfo{Host: addr, Port: DefaultPort}, nil
	}
	if host == "" {
		return ServerInfo{}, fmt.Errorf("%w: %q: missing host", ErrInvalidServer, addr)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return ServerInfo{}, fmt.Errorf("%w: %q: bad port", ErrInvalidServer, addr)
	}

	return ServerInfo{Host: host, Port: port}, nil
}

// ParseServerList parses a comma separated list such as
// "10.0.0.1:11211,10.0.0.2:11211". Empty entries are skipped.
func ParseServerList(list string) ([]ServerInfo, error) {
	return parseAll(strings.Split(list, ","))
}

// SplitServerList parses a shell-quoted, whitespace separated list, as used in
// the MCSPY_SERVERS environment variable. Each word may itself be a comma list.
func SplitServerList(list string) ([]ServerInfo, error) {
	words, err := shellquote.Split(list)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidServer, err)
	}

	var parts []string
	for _, w := range words {
		parts = append(parts, strings.Split(w, ",")...)
	}
	return parseAll(parts)
}

func parseAll(parts []string) ([]ServerInfo, error) {
	servers := make([]ServerInfo, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		s, err := ParseServer(p)
		if err != nil {
			return nil, err
		}
		servers = append(servers, s)
	}
	return servers, nil
}

// AddrList returns the host:port form of every server, in order.
func AddrList(servers []ServerInfo) []string {
	addrs := make([]string, len(servers))
	for i, s := range servers {
		addrs[i] = s.Addr()
	}
	return addrs
}

// Addrs renders a server list for log output.
func Addrs(servers []ServerInfo) string {
	return shellquote.Join(AddrList(servers)...)
}
