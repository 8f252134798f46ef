package webhooks

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed fieldmap.yaml
var defaultFieldMap []byte

// FieldMap translates property names between the CRM and the ERP.
type FieldMap struct {
	HubSpotToNetSuite map[string]string `yaml:"hubspot_to_netsuite"`
	NetSuiteToHubSpot map[string]string `yaml:"netsuite_to_hubspot"`
	ContactIDField    string            `yaml:"netsuite_contact_id_field"`
	EmailField        string            `yaml:"netsuite_email_field"`
}

// LoadFieldMap reads the map at path, or the built-in map when path is empty.
func LoadFieldMap(path string) (*FieldMap, error) {
	raw := defaultFieldMap
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("webhooks: read field map: %w", err)
		}
		raw = b
	}
	return ParseFieldMap(raw)
}

// ParseFieldMap decodes a YAML field map. ERP keys are matched
// case-insensitively.
func ParseFieldMap(raw []byte) (*FieldMap, error) {
	var m FieldMap
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("webhooks: parse field map: %w", err)
	}
	if len(m.HubSpotToNetSuite) == 0 && len(m.NetSuiteToHubSpot) == 0 {
		return nil, fmt.Errorf("webhooks: field map is empty")
	}
	m.HubSpotToNetSuite = lowerKeys(m.HubSpotToNetSuite)
	m.NetSuiteToHubSpot = lowerKeys(m.NetSuiteToHubSpot)
	m.ContactIDField = strings.ToLower(m.ContactIDField)
	if m.EmailField == "" {
		m.EmailField = "email"
	}
	m.EmailField = strings.ToLower(m.EmailField)
	return &m, nil
}

// NetSuiteField returns the ERP field for a CRM property.
func (m *FieldMap) NetSuiteField(property string) (string, bool) {
	f, ok := m.HubSpotToNetSuite[strings.ToLower(property)]
	return f, ok
}

// ToHubSpot maps an ERP payload to CRM properties. Unmapped and
// identifying fields are dropped.
func (m *FieldMap) ToHubSpot(fields map[string]any) map[string]string {
	out := make(map[string]string)
	for k, v := range fields {
		prop, ok := m.NetSuiteToHubSpot[strings.ToLower(k)]
		if !ok {
			continue
		}
		out[prop] = stringify(v)
	}
	return out
}

func lowerKeys(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToLower(k)] = v
	}
	return out
}

// lookup finds a flat payload value by case-insensitive key.
func lookup(fields map[string]any, key string) string {
	if key == "" {
		return ""
	}
	for k, v := range fields {
		if strings.ToLower(k) == key {
			return strings.TrimSpace(stringify(v))
		}
	}
	return ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any:
		// Record references arrive as {"id": ..., "refName": ...}.
		if name, ok := t["refName"]; ok {
			return stringify(name)
		}
		return stringify(t["id"])
	default:
		return fmt.Sprint(t)
	}
}
