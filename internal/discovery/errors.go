package discovery

import (
	"errors"
	"fmt"
	"strings"

	"github.com/HerbHall/gatesync/pkg/models"
)

// ErrEmptyTarget means the target-name descriptor is unset. This is a
// configuration error, not a discovery failure: binding to "whatever
// answered first" risks syncing attendance from the wrong physical
// terminal, so a blind fallback is rejected outright.
var ErrEmptyTarget = errors.New("discovery: device target name is not configured")

// NoDevicesError means the sweep finished without a single host
// producing an identity. Carries the scanned prefixes so an operator
// can see which networks were actually covered.
type NoDevicesError struct {
	Prefixes []string
}

func (e *NoDevicesError) Error() string {
	return fmt.Sprintf("discovery: no devices responded on scanned subnets [%s]",
		strings.Join(e.Prefixes, ", "))
}

// NoMatchError means devices answered but none matched the target
// descriptor. Enumerates every candidate found so the operator can
// correct the target-name setting.
type NoMatchError struct {
	Target     string
	Candidates []models.DiscoveryCandidate
}

func (e *NoMatchError) Error() string {
	found := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		found[i] = fmt.Sprintf("%s (name=%q model=%q serial=%q)",
			c.Address, c.Identity.DeviceName, c.Identity.Model, c.Identity.SerialNumber)
	}
	return fmt.Sprintf("discovery: no device matching %q; found %d candidate(s): %s",
		e.Target, len(e.Candidates), strings.Join(found, "; "))
}
