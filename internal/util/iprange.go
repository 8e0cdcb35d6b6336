package util

import (
	"encoding/binary"
	"net"
	"strconv"
	"strings"
)

// IPInRange reports whether an IPv4 address falls inside a configured
// allow-list entry. Three range forms are supported:
//
//	wildcard:  "173.245.48.*" or "173.245.*.*"
//	CIDR:      "173.245.48.0/20" or "173.245.48.0/255.255.240.0"
//	start-end: "173.245.48.0-173.245.63.255"
//
// A bare address is an exact match. Malformed ranges never match.
func IPInRange(ip string, ipRange string) bool {
	addr := parseIPv4(ip)
	if addr == nil {
		return false
	}

	switch {
	case strings.Contains(ipRange, "/"):
		return inCIDRRange(addr, ipRange)
	case strings.Contains(ipRange, "*"):
		// Wildcard is lowered to an explicit start-end range
		lower := strings.ReplaceAll(ipRange, "*", "0")
		upper := strings.ReplaceAll(ipRange, "*", "255")
		return inStartEndRange(addr, lower+"-"+upper)
	case strings.Contains(ipRange, "-"):
		return inStartEndRange(addr, ipRange)
	default:
		exact := parseIPv4(ipRange)
		return exact != nil && addr.Equal(exact)
	}
}

// IPInAnyRange reports whether the address matches at least one entry
func IPInAnyRange(ip string, ranges []string) bool {
	for _, r := range ranges {
		if IPInRange(ip, r) {
			return true
		}
	}
	return false
}

func inCIDRRange(addr net.IP, ipRange string) bool {
	base, mask, found := strings.Cut(ipRange, "/")
	if !found {
		return false
	}

	// Short-form bases ("173.245/16") are padded with zero octets
	missing := 3 - strings.Count(base, ".")
	if missing > 0 {
		base += strings.Repeat(".0", missing)
	}

	if strings.Contains(mask, ".") {
		// Dotted netmask form
		maskIP := parseIPv4(mask)
		baseIP := parseIPv4(base)
		if maskIP == nil || baseIP == nil {
			return false
		}
		m := net.IPMask(maskIP.To4())
		return baseIP.Mask(m).Equal(addr.Mask(m))
	}

	bits, err := strconv.Atoi(mask)
	if err != nil || bits < 0 || bits > 32 {
		return false
	}
	_, network, err := net.ParseCIDR(base + "/" + strconv.Itoa(bits))
	if err != nil {
		return false
	}
	return network.Contains(addr)
}

func inStartEndRange(addr net.IP, ipRange string) bool {
	start, end, found := strings.Cut(ipRange, "-")
	if !found {
		return false
	}
	startIP := parseIPv4(strings.TrimSpace(start))
	endIP := parseIPv4(strings.TrimSpace(end))
	if startIP == nil || endIP == nil {
		return false
	}
	v := ipv4ToUint32(addr)
	return v >= ipv4ToUint32(startIP) && v <= ipv4ToUint32(endIP)
}

func parseIPv4(s string) net.IP {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return nil
	}
	return ip.To4()
}

func ipv4ToUint32(ip net.IP) uint32 {
	return binary.BigEndian.Uint32(ip.To4())
}
