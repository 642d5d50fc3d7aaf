// Package pipeline orchestrates one sync run: resolve the terminal's
// address, pull the day's events, aggregate them into attendance
// records, and deliver the batch to the cloud service. Each run is
// journaled in the local store.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/gatesync/internal/attendance"
	"github.com/HerbHall/gatesync/internal/cloud"
	"github.com/HerbHall/gatesync/internal/config"
	"github.com/HerbHall/gatesync/internal/discovery"
	"github.com/HerbHall/gatesync/internal/probe"
	"github.com/HerbHall/gatesync/internal/status"
	"github.com/HerbHall/gatesync/internal/store"
	"github.com/HerbHall/gatesync/internal/terminal"
	"github.com/HerbHall/gatesync/pkg/models"
)

const dateLayout = "2006-01-02"

// Resolver locates the terminal on the network.
type Resolver interface {
	Resolve(ctx context.Context, configuredAddress string) (*models.DiscoveryResult, error)
}

// EventSource pulls raw attendance events for a time window.
type EventSource interface {
	Events(ctx context.Context, start, end time.Time, fetchAll bool) ([]models.RawEvent, error)
}

// Sender delivers an aggregated batch.
type Sender interface {
	Dispatch(ctx context.Context, records []models.AttendanceRecord, date string) (cloud.Result, error)
}

// Pipeline runs the full terminal-to-cloud sync.
type Pipeline struct {
	cfg       *config.Config
	resolver  Resolver
	sender    Sender
	runs      *store.RunRepository
	addresses *store.AddressRepository
	metrics   *status.Metrics
	logger    *zap.Logger
	threshold attendance.Threshold

	// events builds an EventSource for a terminal address; replaced in
	// tests, and re-invoked after discovery relocates the terminal.
	events func(host string) EventSource

	// saveHost persists a healed terminal address.
	saveHost func(host string) error
}

// New wires a Pipeline from configuration. The store must already be
// migrated.
func New(cfg *config.Config, db *store.SQLiteStore, metrics *status.Metrics, logger *zap.Logger) (*Pipeline, error) {
	hour, minute, err := cfg.Checkout()
	if err != nil {
		return nil, err
	}

	prober := probe.New(cfg.Terminal.Username, cfg.Terminal.Password,
		cfg.Terminal.Timeout, cfg.Terminal.InsecureTLS, logger)

	engine := discovery.New(discovery.Config{
		TargetName:      cfg.Terminal.TargetName,
		Port:            cfg.Terminal.Port,
		Secure:          cfg.Terminal.Secure,
		Concurrency:     cfg.Discovery.Concurrency,
		PerHostTimeout:  cfg.Discovery.PerHostTimeout,
		PingTimeout:     cfg.Discovery.PingTimeout,
		ProbesPerSecond: int(cfg.Discovery.ProbesPerSecond),
		EnableMDNS:      cfg.Discovery.EnableMDNS,
		EnableSNMP:      cfg.Discovery.EnableSNMP,
		SNMPCommunity:   cfg.Discovery.SNMPCommunity,
	}, prober, logger)

	sender := cloud.New(cfg.Cloud.Endpoint, cfg.Cloud.APIKey, cfg.Cloud.SchoolCode,
		cfg.Cloud.Attempts, cfg.Cloud.RetryDelay, cfg.Cloud.Timeout, logger)

	p := &Pipeline{
		cfg:       cfg,
		resolver:  engine,
		sender:    sender,
		runs:      store.NewRunRepository(db.DB()),
		addresses: store.NewAddressRepository(db.DB()),
		metrics:   metrics,
		logger:    logger,
		threshold: attendance.Threshold{Hour: hour, Minute: minute},
		saveHost:  cfg.SaveTerminalHost,
	}
	p.events = func(host string) EventSource {
		return terminal.New(prober, host, cfg.Terminal.Port, cfg.Terminal.Secure,
			cfg.Terminal.PageSize, logger)
	}
	return p, nil
}

// Run syncs one day's attendance. The run is journaled whether it
// succeeds or fails.
func (p *Pipeline) Run(ctx context.Context, day time.Time) error {
	date := day.Format(dateLayout)
	run := &store.SyncRun{Date: date, TerminalAddress: p.cfg.Terminal.Host}
	if err := p.runs.Create(ctx, run); err != nil {
		return err
	}

	err := p.run(ctx, day, run)
	if err != nil {
		run.Status = store.RunStatusFailed
		run.ErrorMsg = err.Error()
		p.metrics.RunsTotal.WithLabelValues(store.RunStatusFailed).Inc()
		p.metrics.LastRunSuccess.Set(0)
	} else {
		run.Status = store.RunStatusCompleted
		p.metrics.RunsTotal.WithLabelValues(store.RunStatusCompleted).Inc()
		p.metrics.LastRunSuccess.Set(1)
	}
	p.metrics.LastRunUnix.SetToCurrentTime()

	if finishErr := p.runs.Finish(ctx, run); finishErr != nil {
		p.logger.Error("journal run", zap.Error(finishErr))
	}
	return err
}

func (p *Pipeline) run(ctx context.Context, day time.Time, run *store.SyncRun) error {
	result, err := p.resolver.Resolve(ctx, p.cfg.Terminal.Host)
	if err != nil {
		return fmt.Errorf("resolve terminal: %w", err)
	}
	run.TerminalAddress = result.Address

	if result.Changed {
		p.healAddress(ctx, result)
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, day.Location())

	events, err := p.events(result.Address).Events(ctx, start, end, p.cfg.Terminal.FetchAll)
	if err != nil {
		return fmt.Errorf("fetch events: %w", err)
	}
	run.EventsFetched = len(events)
	p.metrics.EventsFetched.Add(float64(len(events)))

	records := attendance.Aggregate(events, p.threshold)
	run.Records = len(records)

	p.logger.Info("aggregated attendance",
		zap.String("date", run.Date),
		zap.Int("events", len(events)),
		zap.Int("records", len(records)),
	)

	outcome, err := p.sender.Dispatch(ctx, records, run.Date)
	run.Attempts = outcome.Attempts
	run.Delivered = outcome.Delivered
	p.metrics.DispatchAttempts.Add(float64(outcome.Attempts))
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	p.metrics.RecordsDelivered.Add(float64(outcome.Count))
	return nil
}

// healAddress persists a relocated terminal address to the config file
// and the history table. Persistence failures are logged, not fatal:
// the in-memory address is already updated and the sync proceeds.
func (p *Pipeline) healAddress(ctx context.Context, result *models.DiscoveryResult) {
	previous := p.cfg.Terminal.Host
	p.logger.Warn("terminal address changed",
		zap.String("previous", previous),
		zap.String("address", result.Address),
		zap.String("match_tier", string(result.Tier)),
	)

	if err := p.saveHost(result.Address); err != nil {
		p.logger.Error("persist terminal address", zap.Error(err))
	}
	err := p.addresses.Record(ctx, store.AddressChange{
		Address:    result.Address,
		Previous:   previous,
		DeviceName: result.Identity.DeviceName,
	})
	if err != nil {
		p.logger.Error("record address change", zap.Error(err))
	}
	p.metrics.AddressChanges.Inc()
}
