// Package models defines the shared data types exchanged between the
// gatesync discovery, terminal, attendance, and cloud components.
package models

// IdentitySource indicates how a device identity was obtained from a
// probe response. Lower-fidelity sources are kept distinguishable so
// callers can judge how much to trust a match.
type IdentitySource string

const (
	IdentitySourceJSON IdentitySource = "json"
	IdentitySourceXML  IdentitySource = "xml"
	IdentitySourceText IdentitySource = "text"
	IdentitySourceSNMP IdentitySource = "snmp"
)

// DeviceIdentity is the normalized result of probing a device-info
// endpoint. Every field is optional because firmware varies; Raw keeps
// the unparsed payload for last-resort substring matching.
type DeviceIdentity struct {
	DeviceName      string         `json:"device_name,omitempty"`
	Model           string         `json:"model,omitempty"`
	SerialNumber    string         `json:"serial_number,omitempty"`
	FirmwareVersion string         `json:"firmware_version,omitempty"`
	MACAddress      string         `json:"mac_address,omitempty"`
	Source          IdentitySource `json:"source,omitempty"`
	Raw             string         `json:"-"`
}

// Empty reports whether no identity field was extracted. A partially
// populated identity is still valid evidence of a device.
func (d DeviceIdentity) Empty() bool {
	return d.DeviceName == "" && d.Model == "" && d.SerialNumber == "" &&
		d.FirmwareVersion == "" && d.MACAddress == ""
}

// Fields returns the matchable identity fields in a fixed order.
func (d DeviceIdentity) Fields() []string {
	return []string{d.DeviceName, d.Model, d.SerialNumber, d.MACAddress}
}

// RawEvent is a single scan recorded by the terminal. Time is the
// device's local wall clock, "YYYY-MM-DDTHH:MM:SS"; no timezone math is
// performed anywhere in the pipeline.
type RawEvent struct {
	PersonID      string `json:"person_id"`
	Name          string `json:"name,omitempty"`
	CardNo        string `json:"card_no,omitempty"`
	Time          string `json:"time"`
	Direction     string `json:"direction,omitempty"`
	DoorNo        int    `json:"door_no,omitempty"`
	EventTypeCode int    `json:"event_type_code,omitempty"`
	SerialNo      int    `json:"serial_no,omitempty"`
}

// AttendanceRecord is one person's aggregated in/out pair for a day.
// TimeOut is empty when no event at or after the checkout threshold was
// seen; a single morning badge-in is not evidence of departure.
type AttendanceRecord struct {
	PersonID string `json:"adm_no"`
	TimeIn   string `json:"time_in"`
	TimeOut  string `json:"time_out,omitempty"`
}

// SubnetCandidate is one scannable local subnet, keyed by its /24 prefix
// (e.g. "192.168.1."). Candidates are deduplicated by prefix before a
// sweep; ordering favors physical interfaces but is only a scan-order
// preference.
type SubnetCandidate struct {
	InterfaceName string `json:"interface_name"`
	LocalAddress  string `json:"local_address"`
	Prefix        string `json:"prefix"`
}

// DiscoveryCandidate is a host that answered a probe during a sweep,
// whether or not it matched the target descriptor.
type DiscoveryCandidate struct {
	Address  string         `json:"address"`
	Identity DeviceIdentity `json:"identity"`
}

// MatchTier records how strong the evidence for a discovery match was.
type MatchTier string

const (
	// MatchTierField means an identity field equalled the target name.
	MatchTierField MatchTier = "field"
	// MatchTierSubstring means an identity field and the target name
	// were substrings of one another.
	MatchTierSubstring MatchTier = "substring"
	// MatchTierRaw means only the unparsed payload contained the target
	// name. Weakest evidence; can over-match on generic model strings.
	MatchTierRaw MatchTier = "raw"
)

// DiscoveryResult is the terminal address of record after resolution.
// Changed reports whether the address differs from the configured one,
// in which case the caller is responsible for persisting it and
// rebuilding any live client bound to the old address.
type DiscoveryResult struct {
	Address  string         `json:"address"`
	Changed  bool           `json:"changed"`
	Identity DeviceIdentity `json:"identity"`
	Tier     MatchTier      `json:"tier,omitempty"`
}
