package discovery

import (
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/HerbHall/gatesync/pkg/models"
)

// virtualInterfaceHints marks interfaces that are almost certainly not
// the LAN the terminal lives on. Matching is by substring of the
// lowercased interface name.
var virtualInterfaceHints = []string{
	"vmware", "vbox", "virtualbox", "vmnet", "veth", "docker", "br-",
	"virbr", "hyper-v", "vethernet", "wsl", "tap", "tun", "utun",
	"zt", "tailscale", "wg", "loopback",
}

// physicalInterfaceHints marks interfaces scanned first. This is a
// scan-order preference only; a match on a "virtual" interface is still
// a match.
var physicalInterfaceHints = []string{
	"eth", "en", "wlan", "wl", "wi-fi", "wifi", "wireless", "ethernet", "lan",
}

// interfaceLister is swapped out in tests.
var interfaceLister = net.Interfaces

// enumerateSubnets returns one candidate per distinct /24 prefix found
// on the host's non-loopback IPv4 interfaces, physical-looking
// interfaces first.
func enumerateSubnets() ([]models.SubnetCandidate, error) {
	ifaces, err := interfaceLister()
	if err != nil {
		return nil, fmt.Errorf("discovery: list interfaces: %w", err)
	}

	seen := make(map[string]bool)
	var candidates []models.SubnetCandidate

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipNet.IP.To4()
			if ip == nil || ip.IsLoopback() {
				continue
			}
			prefix := fmt.Sprintf("%d.%d.%d.", ip[0], ip[1], ip[2])
			if seen[prefix] {
				continue
			}
			seen[prefix] = true
			candidates = append(candidates, models.SubnetCandidate{
				InterfaceName: iface.Name,
				LocalAddress:  ip.String(),
				Prefix:        prefix,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return interfaceRank(candidates[i].InterfaceName) < interfaceRank(candidates[j].InterfaceName)
	})
	return candidates, nil
}

// interfaceRank orders physical-looking interfaces before unknown ones,
// virtual-looking ones last.
func interfaceRank(name string) int {
	lower := strings.ToLower(name)
	for _, hint := range virtualInterfaceHints {
		if strings.Contains(lower, hint) {
			return 2
		}
	}
	for _, hint := range physicalInterfaceHints {
		if strings.HasPrefix(lower, hint) {
			return 0
		}
	}
	return 1
}

// subnetHosts generates all 254 host addresses of a /24 prefix.
func subnetHosts(prefix string) []string {
	hosts := make([]string, 0, 254)
	for i := 1; i <= 254; i++ {
		hosts = append(hosts, fmt.Sprintf("%s%d", prefix, i))
	}
	return hosts
}
