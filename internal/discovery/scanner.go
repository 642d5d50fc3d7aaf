package discovery

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"go.uber.org/zap"

	"github.com/HerbHall/gatesync/pkg/models"
)

// runPool runs fn over hosts with a fixed-size worker pool. Workers
// pull indexes from a shared cursor; each result slot is owned by
// exactly one task, so callers need no locking as long as fn writes
// only to its own index.
func (e *Engine) runPool(ctx context.Context, hosts []string, fn func(i int, host string)) {
	workers := e.cfg.Concurrency
	if workers > len(hosts) {
		workers = len(hosts)
	}

	var cursor atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(cursor.Add(1)) - 1
				if i >= len(hosts) || ctx.Err() != nil {
					return
				}
				if e.limiter != nil {
					if err := e.limiter.Wait(ctx); err != nil {
						return
					}
				}
				fn(i, hosts[i])
			}
		}()
	}
	wg.Wait()
}

// scanSubnet probes all 254 hosts of a /24 prefix and returns every
// address that produced any identity. Hosts answering ICMP are probed
// in a first pass; the silent remainder is only probed in a second pass
// when the first pass produced no match, so sparse subnets resolve fast
// without giving up on devices that drop ping.
func (e *Engine) scanSubnet(ctx context.Context, prefix string) []models.DiscoveryCandidate {
	hosts := subnetHosts(prefix)
	identities := make([]*models.DeviceIdentity, len(hosts))
	silent := make([]bool, len(hosts))

	start := time.Now()
	e.runPool(ctx, hosts, func(i int, host string) {
		if e.ping(ctx, host, e.cfg.PingTimeout) {
			identities[i] = e.probeHost(ctx, host)
		} else {
			silent[i] = true
		}
	})

	if !e.anyMatch(identities) {
		e.runPool(ctx, hosts, func(i int, host string) {
			if silent[i] {
				identities[i] = e.probeHost(ctx, host)
			}
		})
	}

	var candidates []models.DiscoveryCandidate
	for i, identity := range identities {
		if identity != nil {
			candidates = append(candidates, models.DiscoveryCandidate{
				Address:  hosts[i],
				Identity: *identity,
			})
		}
	}

	e.logger.Info("subnet scanned",
		zap.String("prefix", prefix+"0/24"),
		zap.Int("responders", len(candidates)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return candidates
}

func (e *Engine) anyMatch(identities []*models.DeviceIdentity) bool {
	for _, identity := range identities {
		if identity == nil {
			continue
		}
		if _, ok := matchIdentity(*identity, e.cfg.TargetName); ok {
			return true
		}
	}
	return false
}

// pingHost sends a single ICMP echo and reports whether a reply
// arrived. Failures are treated as "no reply"; unprivileged ICMP not
// being available must never break a sweep.
func pingHost(ctx context.Context, address string, timeout time.Duration) bool {
	pinger, err := probing.NewPinger(address)
	if err != nil {
		return false
	}
	pinger.Count = 1
	pinger.Timeout = timeout
	pinger.SetPrivileged(runtime.GOOS == "windows")

	done := make(chan error, 1)
	go func() {
		done <- pinger.Run()
	}()

	select {
	case err := <-done:
		return err == nil && pinger.Statistics().PacketsRecv > 0
	case <-ctx.Done():
		pinger.Stop()
		return false
	}
}
