package media

import (
	"net"
	"strings"
)

// cgnat is the shared address space used by carrier grade NAT and by
// overlay VPNs such as WARP and Tailscale.
var cgnat = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

var tunnelNames = []string{"tun", "tap", "wg", "ppp", "warp", "utun"}

type iface struct {
	name     string
	up       bool
	loopback bool
	addrs    []net.IP
}

// ShouldForceRelay reports whether this host is likely behind a VPN or CGNAT
// where direct paths rarely work and TURN should be used from the start.
func ShouldForceRelay() bool {
	return restrictive(systemInterfaces())
}

func systemInterfaces() []iface {
	list, err := net.Interfaces()
	if err != nil {
		return nil
	}

	out := make([]iface, 0, len(list))
	for _, ni := range list {
		info := iface{
			name:     ni.Name,
			up:       ni.Flags&net.FlagUp != 0,
			loopback: ni.Flags&net.FlagLoopback != 0,
		}
		if addrs, err := ni.Addrs(); err == nil {
			for _, addr := range addrs {
				switch v := addr.(type) {
				case *net.IPNet:
					info.addrs = append(info.addrs, v.IP)
				case *net.IPAddr:
					info.addrs = append(info.addrs, v.IP)
				}
			}
		}
		out = append(out, info)
	}
	return out
}

func restrictive(ifaces []iface) bool {
	for _, ni := range ifaces {
		if !ni.up || ni.loopback {
			continue
		}

		name := strings.ToLower(ni.name)
		for _, prefix := range tunnelNames {
			if strings.Contains(name, prefix) {
				return true
			}
		}

		for _, ip := range ni.addrs {
			if cgnat.Contains(ip) {
				return true
			}
		}
	}
	return false
}
