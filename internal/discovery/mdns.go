//go:build !windows

package discovery

import (
	"context"
	"time"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"
)

// mdnsServiceTypes are the service types access terminals have been
// seen announcing. The fast path exists to skip a full sweep when the
// device advertises itself; it is never required for correctness.
var mdnsServiceTypes = []string{
	"_http._tcp",
	"_https._tcp",
	"_psia._tcp",
	"_CGI._tcp",
}

// mdnsHosts performs a one-shot query per service type and returns the
// distinct IPv4 addresses that answered.
func mdnsHosts(ctx context.Context, logger *zap.Logger) []string {
	seen := make(map[string]bool)
	var hosts []string

	for _, service := range mdnsServiceTypes {
		if ctx.Err() != nil {
			break
		}

		entries := make(chan *mdns.ServiceEntry, 16)
		collected := make(chan []string, 1)
		go func() {
			var found []string
			for entry := range entries {
				if entry.AddrV4 != nil {
					found = append(found, entry.AddrV4.String())
				}
			}
			collected <- found
		}()

		err := mdns.Query(&mdns.QueryParam{
			Service:     service,
			Timeout:     time.Second,
			Entries:     entries,
			DisableIPv6: true,
		})
		close(entries)
		for _, addr := range <-collected {
			if !seen[addr] {
				seen[addr] = true
				hosts = append(hosts, addr)
			}
		}
		if err != nil {
			logger.Debug("mdns query failed", zap.String("service", service), zap.Error(err))
		}
	}

	if len(hosts) > 0 {
		logger.Info("mdns fast path found hosts", zap.Int("count", len(hosts)))
	}
	return hosts
}
