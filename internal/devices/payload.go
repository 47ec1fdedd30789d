package devices

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/neomind-iot/neomind/pkg/models"
)

// validateParams checks supplied command parameters against the definition:
// every required parameter must be present (or have a default), and every
// supplied value must coerce to its declared type.
func validateParams(def models.CommandDef, params map[string]any) (map[string]models.MetricValue, error) {
	resolved := make(map[string]models.MetricValue, len(def.Parameters))

	for _, p := range def.Parameters {
		raw, supplied := params[p.Name]
		if !supplied {
			if p.Required {
				if p.Default == nil {
					return nil, fmt.Errorf("devices: missing required parameter %q", p.Name)
				}
				raw = *p.Default
			} else {
				continue
			}
		}
		rawJSON, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("devices: marshal parameter %q: %w", p.Name, err)
		}
		value, err := models.CoerceToDataType(rawJSON, p.Type)
		if err != nil {
			return nil, fmt.Errorf("devices: parameter %q: %w", p.Name, err)
		}
		resolved[p.Name] = value
	}

	return resolved, nil
}

// buildCommandPayload validates params against the command definition and
// renders the payload template, substituting {{device_id}} and {{param}}
// placeholders.
func buildCommandPayload(def models.CommandDef, deviceID string, params map[string]any) ([]byte, error) {
	resolved, err := validateParams(def, params)
	if err != nil {
		return nil, err
	}

	body := def.PayloadTemplate
	body = strings.ReplaceAll(body, "{{device_id}}", deviceID)
	for name, value := range resolved {
		rendered, err := value.Render()
		if err != nil {
			return nil, fmt.Errorf("devices: render parameter %q: %w", name, err)
		}
		placeholder := "{{" + name + "}}"
		if strings.Contains(body, "\""+placeholder+"\"") {
			// Preserve the JSON type instead of producing a double-quoted
			// number/bool when the template quoted the placeholder.
			body = strings.ReplaceAll(body, "\""+placeholder+"\"", rendered)
		} else {
			body = strings.ReplaceAll(body, placeholder, rendered)
		}
	}

	if body == "" {
		// No template configured: fall back to a plain JSON object of the
		// resolved parameters, addressed by device id implicitly via topic.
		plain := make(map[string]any, len(resolved))
		for k, v := range resolved {
			plain[k] = metricValueToAny(v)
		}
		return json.Marshal(plain)
	}

	if !json.Valid([]byte(body)) {
		return nil, fmt.Errorf("devices: rendered command payload is not valid JSON")
	}
	return []byte(body), nil
}

func metricValueToAny(v models.MetricValue) any {
	switch v.Kind {
	case models.DataTypeInt:
		return v.Int
	case models.DataTypeFloat:
		return v.Float
	case models.DataTypeBool:
		return v.Bool
	case models.DataTypeString:
		return v.String
	case models.DataTypeArray:
		return v.Array
	default:
		return nil
	}
}
