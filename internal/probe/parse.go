package probe

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"strings"

	"github.com/HerbHall/gatesync/pkg/models"
)

// ParseIdentity normalizes a device-info response body into an
// identity. The chain is fixed priority: JSON decode, then structural
// XML, then targeted text extraction against the raw bytes. Each stage
// tags its result so a raw-text match is never mistaken for a
// structured parse downstream. Returns nil only when every stage came
// back empty.
func ParseIdentity(body []byte) *models.DeviceIdentity {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}

	if looksLikeJSON(trimmed) {
		if id := parseJSONIdentity(trimmed); id != nil {
			return id
		}
	}
	if id := parseXMLIdentity(trimmed); id != nil {
		return id
	}
	return parseTextIdentity(trimmed)
}

func looksLikeJSON(body []byte) bool {
	return body[0] == '{' || body[0] == '['
}

// identityFields maps the canonical field names. Firmware emits both
// lowerCamel and UpperCamel spellings; lookups are case-insensitive.
var identityFields = []string{"deviceName", "model", "serialNumber", "firmwareVersion", "macAddress"}

// parseJSONIdentity decodes a flat object or one nested under a single
// wrapper key (e.g. {"DeviceInfo": {...}}).
func parseJSONIdentity(body []byte) *models.DeviceIdentity {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}

	fields := collectJSONFields(payload)
	if len(fields) == 0 {
		// Single wrapper object: descend one level and retry.
		for _, v := range payload {
			if nested, ok := v.(map[string]any); ok {
				if fields = collectJSONFields(nested); len(fields) > 0 {
					break
				}
			}
		}
	}

	return buildIdentity(fields, models.IdentitySourceJSON, body)
}

func collectJSONFields(obj map[string]any) map[string]string {
	fields := make(map[string]string)
	for key, value := range obj {
		s, ok := value.(string)
		if !ok {
			continue
		}
		for _, name := range identityFields {
			if strings.EqualFold(key, name) {
				fields[name] = strings.TrimSpace(s)
			}
		}
	}
	return fields
}

// parseXMLIdentity walks the token stream and captures the character
// data of any element whose local name matches an identity field,
// regardless of nesting or namespace.
func parseXMLIdentity(body []byte) *models.DeviceIdentity {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	fields := make(map[string]string)

	var current string
	for {
		token, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := token.(type) {
		case xml.StartElement:
			current = ""
			for _, name := range identityFields {
				if strings.EqualFold(t.Name.Local, name) {
					current = name
				}
			}
		case xml.CharData:
			if current != "" {
				fields[current] = strings.TrimSpace(string(t))
			}
		case xml.EndElement:
			current = ""
		}
	}

	return buildIdentity(fields, models.IdentitySourceXML, body)
}

// parseTextIdentity is the degraded last resort: scan the raw payload
// for <field>value</field> and "field":"value" shapes without any
// structural parse. Keeps the probe useful against firmware that emits
// broken markup.
func parseTextIdentity(body []byte) *models.DeviceIdentity {
	raw := string(body)
	lower := strings.ToLower(raw)
	fields := make(map[string]string)

	for _, name := range identityFields {
		if v := extractTagged(raw, lower, strings.ToLower(name)); v != "" {
			fields[name] = v
		} else if v := extractQuoted(raw, lower, strings.ToLower(name)); v != "" {
			fields[name] = v
		}
	}

	return buildIdentity(fields, models.IdentitySourceText, body)
}

// extractTagged pulls the text between <name...> and the next '<'.
func extractTagged(raw, lower, name string) string {
	open := strings.Index(lower, "<"+name)
	if open < 0 {
		return ""
	}
	start := strings.IndexByte(raw[open:], '>')
	if start < 0 {
		return ""
	}
	start += open + 1
	end := strings.IndexByte(raw[start:], '<')
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(raw[start : start+end])
}

// extractQuoted pulls the value of a "name":"value" pair.
func extractQuoted(raw, lower, name string) string {
	key := `"` + name + `"`
	at := strings.Index(lower, key)
	if at < 0 {
		return ""
	}
	rest := raw[at+len(key):]
	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		return ""
	}
	rest = strings.TrimSpace(rest[colon+1:])
	if len(rest) == 0 || rest[0] != '"' {
		return ""
	}
	rest = rest[1:]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

// buildIdentity assembles the record, discarding it when every field is
// empty. Partial identities are kept; they are still evidence.
func buildIdentity(fields map[string]string, source models.IdentitySource, body []byte) *models.DeviceIdentity {
	identity := models.DeviceIdentity{
		DeviceName:      fields["deviceName"],
		Model:           fields["model"],
		SerialNumber:    fields["serialNumber"],
		FirmwareVersion: fields["firmwareVersion"],
		MACAddress:      fields["macAddress"],
		Source:          source,
		Raw:             string(body),
	}
	if identity.Empty() {
		return nil
	}
	return &identity
}
