package discovery

import (
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/HerbHall/gatesync/pkg/models"
)

const (
	oidSysDescr = "1.3.6.1.2.1.1.1.0"
	oidSysName  = "1.3.6.1.2.1.1.5.0"
)

// snmpIdentity queries sysName/sysDescr over SNMP v2c. Secondary
// evidence for hosts that answer ping but not the HTTP probe; access
// terminals commonly expose SNMP even when their web service is bound
// to a non-default port. Best effort like every other probe path.
func snmpIdentity(address, community string, timeout time.Duration) *models.DeviceIdentity {
	client := &gosnmp.GoSNMP{
		Target:    address,
		Port:      161,
		Community: community,
		Version:   gosnmp.Version2c,
		Timeout:   timeout,
		Retries:   0,
	}
	if err := client.Connect(); err != nil {
		return nil
	}
	defer client.Conn.Close()

	packet, err := client.Get([]string{oidSysName, oidSysDescr})
	if err != nil {
		return nil
	}

	identity := models.DeviceIdentity{Source: models.IdentitySourceSNMP}
	for _, variable := range packet.Variables {
		value, ok := variable.Value.([]byte)
		if !ok {
			continue
		}
		switch variable.Name {
		case "." + oidSysName:
			identity.DeviceName = string(value)
		case "." + oidSysDescr:
			identity.Model = string(value)
			identity.Raw = string(value)
		}
	}
	if identity.Empty() {
		return nil
	}
	return &identity
}
