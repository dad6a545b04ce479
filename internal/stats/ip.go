package stats

import (
	"encoding/binary"
	"net"
	"strconv"
	"strings"
)

// MatchCIDR reports whether ip falls inside the IPv4 range given in
// CIDR notation: (ip & mask) == (network & mask). Malformed input
// never matches.
func MatchCIDR(ip, cidr string) bool {
	parts := strings.SplitN(cidr, "/", 2)
	if len(parts) != 2 {
		return false
	}
	prefix, err := strconv.Atoi(parts[1])
	if err != nil || prefix < 0 || prefix > 32 {
		return false
	}

	addr := ipv4ToUint32(ip)
	network := ipv4ToUint32(parts[0])
	if addr == 0 && ip != "0.0.0.0" {
		return false
	}
	if network == 0 && parts[0] != "0.0.0.0" {
		return false
	}

	var mask uint32
	if prefix > 0 {
		mask = ^uint32(0) << (32 - prefix)
	}
	return addr&mask == network&mask
}

// IsPrivateIP reports whether ip is in a private or reserved IPv4
// range (RFC1918, loopback, link-local). These are never sent to
// threat-intel lookups.
func IsPrivateIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, cidr := range privateRanges {
		if cidr.Contains(parsed) {
			return true
		}
	}
	return false
}

var privateRanges = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}

func ipv4ToUint32(ip string) uint32 {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return 0
	}
	v4 := parsed.To4()
	if v4 == nil {
		return 0
	}
	return binary.BigEndian.Uint32(v4)
}
