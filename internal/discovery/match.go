package discovery

import (
	"strings"

	"github.com/HerbHall/gatesync/pkg/models"
)

// matchIdentity checks a candidate identity against the target
// descriptor. Three tiers, strongest first:
//
//  1. an identity field equals the target name
//  2. an identity field and the target name contain one another
//  3. the raw payload contains the target name
//
// The containment and raw tiers trade precision for robustness against
// firmware field-naming inconsistency and can over-match on short or
// generic model strings; callers log the tier so weak evidence is
// visible.
func matchIdentity(identity models.DeviceIdentity, target string) (models.MatchTier, bool) {
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" {
		return "", false
	}

	substring := false
	for _, field := range identity.Fields() {
		field = strings.ToLower(strings.TrimSpace(field))
		if field == "" {
			continue
		}
		if field == target {
			return models.MatchTierField, true
		}
		if strings.Contains(field, target) || strings.Contains(target, field) {
			substring = true
		}
	}
	if substring {
		return models.MatchTierSubstring, true
	}

	if strings.Contains(strings.ToLower(identity.Raw), target) {
		return models.MatchTierRaw, true
	}
	return "", false
}
