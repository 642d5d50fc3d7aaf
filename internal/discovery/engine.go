// Package discovery re-locates the access-control terminal on the LAN
// when its configured address goes stale. Resolution is a three-state
// flow: Verify the configured address directly; on failure Scan all
// local subnets with a bounded worker pool; Resolved emits the address
// of record as a value for the caller to persist.
package discovery

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/HerbHall/gatesync/internal/probe"
	"github.com/HerbHall/gatesync/pkg/catalog"
	"github.com/HerbHall/gatesync/pkg/models"
)

// Config controls one Engine.
type Config struct {
	// TargetName is the descriptor candidate identities are matched
	// against. Required; discovery refuses to run without it.
	TargetName string

	Port   int
	Secure bool

	// Concurrency caps simultaneously in-flight probes during a sweep,
	// independent of subnet size.
	Concurrency int

	// PerHostTimeout bounds one candidate probe. Deliberately shorter
	// than the operational timeout used for the configured address.
	PerHostTimeout time.Duration
	PingTimeout    time.Duration

	// ProbesPerSecond caps probe launch rate across the whole pool so a
	// /24 burst does not flood the LAN. Zero disables the limiter.
	ProbesPerSecond int

	// EnableMDNS turns on the one-shot mDNS fast path before the
	// subnet sweep.
	EnableMDNS bool

	// EnableSNMP adds an SNMP sysName/sysDescr query for hosts that
	// answer ping but not the HTTP probe.
	EnableSNMP    bool
	SNMPCommunity string
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 80
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 50
	}
	if c.PerHostTimeout <= 0 {
		c.PerHostTimeout = time.Second
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = 300 * time.Millisecond
	}
	if c.SNMPCommunity == "" {
		c.SNMPCommunity = "public"
	}
}

// Engine resolves the terminal's address. It holds no state across
// Resolve calls; every run is independent.
type Engine struct {
	cfg     Config
	logger  *zap.Logger
	limiter *rate.Limiter
	catalog *catalog.Catalog

	// Probe and ping indirection points; tests swap these for
	// simulated subnets.
	probeHost func(ctx context.Context, address string) *models.DeviceIdentity
	ping      func(ctx context.Context, address string, timeout time.Duration) bool
	mdnsHosts func(ctx context.Context, logger *zap.Logger) []string
	subnets   func() ([]models.SubnetCandidate, error)
}

// New creates an Engine probing candidates with the given prober. The
// prober is re-bounded to the short per-host timeout; the caller's
// operational timeout is not used during sweeps.
func New(cfg Config, p *probe.Prober, logger *zap.Logger) *Engine {
	cfg.applyDefaults()

	hostProber := p.WithTimeout(cfg.PerHostTimeout)
	e := &Engine{
		cfg:     cfg,
		logger:  logger,
		catalog: catalog.New(),
		ping:    pingHost,
		subnets: enumerateSubnets,
	}
	if cfg.ProbesPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.ProbesPerSecond), cfg.Concurrency)
	}
	e.probeHost = func(ctx context.Context, address string) *models.DeviceIdentity {
		identity := hostProber.Identity(ctx, address, cfg.Port, cfg.Secure)
		if identity == nil && cfg.EnableSNMP {
			identity = snmpIdentity(address, cfg.SNMPCommunity, cfg.PerHostTimeout)
		}
		return identity
	}
	if cfg.EnableMDNS {
		e.mdnsHosts = mdnsHosts
	}
	return e
}

// Resolve returns the terminal address of record. configuredAddress may
// be empty (nothing to verify, go straight to scanning). The result is
// a value: persisting a changed address is the caller's job, not the
// engine's.
func (e *Engine) Resolve(ctx context.Context, configuredAddress string) (*models.DiscoveryResult, error) {
	if e.cfg.TargetName == "" {
		return nil, ErrEmptyTarget
	}

	// Verify.
	if configuredAddress != "" {
		if identity := e.probeHost(ctx, configuredAddress); identity != nil {
			e.logger.Debug("configured address verified",
				zap.String("address", configuredAddress),
				zap.String("device_name", identity.DeviceName),
			)
			return &models.DiscoveryResult{
				Address:  configuredAddress,
				Changed:  false,
				Identity: *identity,
			}, nil
		}

		alive := e.ping(ctx, configuredAddress, e.cfg.PingTimeout)
		e.logger.Warn("configured address failed verification, scanning",
			zap.String("address", configuredAddress),
			zap.Bool("answers_icmp", alive),
		)
	}

	// Fast path: mDNS announcements, when enabled.
	var candidates []models.DiscoveryCandidate
	if e.mdnsHosts != nil {
		for _, host := range e.mdnsHosts(ctx, e.logger) {
			if identity := e.probeHost(ctx, host); identity != nil {
				candidates = append(candidates, models.DiscoveryCandidate{Address: host, Identity: *identity})
			}
		}
		if result := e.selectMatch(candidates, configuredAddress); result != nil {
			return result, nil
		}
	}

	// Scan.
	subnets, err := e.subnets()
	if err != nil {
		return nil, err
	}

	var prefixes []string
	for _, subnet := range subnets {
		prefixes = append(prefixes, subnet.Prefix)
		e.logger.Info("scanning subnet",
			zap.String("interface", subnet.InterfaceName),
			zap.String("prefix", subnet.Prefix+"0/24"),
		)

		candidates = append(candidates, e.scanSubnet(ctx, subnet.Prefix)...)

		// Early exit: stop sweeping further subnets once any
		// accumulated candidate matches.
		if result := e.selectMatch(candidates, configuredAddress); result != nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	if len(candidates) == 0 {
		return nil, &NoDevicesError{Prefixes: prefixes}
	}

	e.logUnmatched(candidates)
	return nil, &NoMatchError{Target: e.cfg.TargetName, Candidates: candidates}
}

// selectMatch returns a result for the first candidate matching the
// target, nil when none does. First-found wins; additional same-sweep
// matches are logged but not disambiguated (known limitation of the
// substring tiers).
func (e *Engine) selectMatch(candidates []models.DiscoveryCandidate, configuredAddress string) *models.DiscoveryResult {
	var result *models.DiscoveryResult
	for _, candidate := range candidates {
		tier, ok := matchIdentity(candidate.Identity, e.cfg.TargetName)
		if !ok {
			continue
		}
		if result != nil {
			e.logger.Warn("additional candidate also matches target, keeping first",
				zap.String("address", candidate.Address),
				zap.String("tier", string(tier)),
			)
			continue
		}
		e.logger.Info("target device located",
			zap.String("address", candidate.Address),
			zap.String("device_name", candidate.Identity.DeviceName),
			zap.String("model", candidate.Identity.Model),
			zap.String("match_tier", string(tier)),
		)
		result = &models.DiscoveryResult{
			Address:  candidate.Address,
			Changed:  candidate.Address != configuredAddress,
			Identity: candidate.Identity,
			Tier:     tier,
		}
	}
	return result
}

// logUnmatched narrates every responder before a no-match failure,
// annotated with catalog vendor info where the model is recognized, so
// the operator can fix the target-name setting without packet captures.
func (e *Engine) logUnmatched(candidates []models.DiscoveryCandidate) {
	for _, candidate := range candidates {
		fields := []zap.Field{
			zap.String("address", candidate.Address),
			zap.String("device_name", candidate.Identity.DeviceName),
			zap.String("model", candidate.Identity.Model),
			zap.String("serial", candidate.Identity.SerialNumber),
			zap.String("source", string(candidate.Identity.Source)),
		}
		if entry, ok := e.catalog.Lookup(candidate.Identity.Model); ok {
			fields = append(fields, zap.String("vendor", entry.Vendor))
		}
		e.logger.Info("unmatched responder", fields...)
	}
}
