package shared

import "net"

// IPMatcher matches addresses against a list of IPs and CIDR ranges.
// Entries that parse as neither are ignored.
type IPMatcher struct {
	ips  map[string]bool
	nets []*net.IPNet
}

// NewIPMatcher builds a matcher from entries such as "127.0.0.1" or "10.0.0.0/8".
func NewIPMatcher(entries []string) *IPMatcher {
	m := &IPMatcher{ips: make(map[string]bool)}
	for _, e := range entries {
		if _, n, err := net.ParseCIDR(e); err == nil {
			m.nets = append(m.nets, n)
			continue
		}
		if ip := net.ParseIP(e); ip != nil {
			m.ips[ip.String()] = true
		}
	}
	return m
}

// Empty reports whether the matcher admits nothing.
func (m *IPMatcher) Empty() bool {
	return m == nil || (len(m.ips) == 0 && len(m.nets) == 0)
}

// Contains reports whether ip is listed or inside a listed range.
func (m *IPMatcher) Contains(ip net.IP) bool {
	if m == nil || ip == nil {
		return false
	}
	if m.ips[ip.String()] {
		return true
	}
	for _, n := range m.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ContainsAddr matches a host or host:port string such as r.RemoteAddr.
func (m *IPMatcher) ContainsAddr(addr string) bool {
	return m.Contains(net.ParseIP(HostOnly(addr)))
}

// HostOnly strips the port from addr when present.
func HostOnly(addr string) string {
	if h, _, err := net.SplitHostPort(addr); err == nil {
		return h
	}
	return addr
}
