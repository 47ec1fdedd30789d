package ruledsl

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/neomind-iot/neomind/pkg/models"
)

func parseAction(line string) (models.Action, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return models.Action{}, false, nil
	}
	upper := strings.ToUpper(line)

	switch {
	case strings.HasPrefix(upper, "NOTIFY"):
		return parseNotify(line[6:])
	case strings.HasPrefix(upper, "EXECUTE"):
		return parseExecute(line[7:])
	case strings.HasPrefix(upper, "SET"):
		return parseSet(line[3:])
	case strings.HasPrefix(upper, "DELAY"):
		return parseDelay(line[5:])
	case strings.HasPrefix(upper, "ALERT"):
		return parseAlert(line[5:])
	case strings.HasPrefix(upper, "HTTP"):
		return parseHTTP(line[4:])
	case strings.HasPrefix(upper, "LOG"):
		return parseLog(line[3:])
	}
	return models.Action{}, false, fmt.Errorf("%w: unrecognized action %q", ErrParse, line)
}

func parseNotify(rest string) (models.Action, bool, error) {
	rest = strings.TrimSpace(rest)
	msg, _, ok := extractQuotedString(rest)
	if !ok {
		return models.Action{}, false, fmt.Errorf("%w: NOTIFY requires a quoted message", ErrParse)
	}
	return models.Action{Kind: models.ActionNotify, Message: msg}, true, nil
}

// parseExecute parses EXECUTE device.command(key=value, ...).
func parseExecute(rest string) (models.Action, bool, error) {
	rest = strings.TrimSpace(rest)
	open := strings.Index(rest, "(")
	if open < 0 {
		return models.Action{}, false, fmt.Errorf("%w: EXECUTE requires device.command(...)", ErrParse)
	}
	head := strings.TrimSpace(rest[:open])
	parts := strings.SplitN(head, ".", 2)
	if len(parts) != 2 {
		return models.Action{}, false, fmt.Errorf("%w: EXECUTE target must be device.command", ErrParse)
	}
	paramsStr := strings.TrimSuffix(strings.TrimSpace(rest[open+1:]), ")")
	return models.Action{
		Kind:       models.ActionExecute,
		Device:     parts[0],
		Command:    parts[1],
		Parameters: parseParams(paramsStr),
	}, true, nil
}

// parseSet parses SET device.property = value.
func parseSet(rest string) (models.Action, bool, error) {
	rest = strings.TrimSpace(rest)
	eq := strings.Index(rest, "=")
	if eq < 0 {
		return models.Action{}, false, fmt.Errorf("%w: SET requires device.property = value", ErrParse)
	}
	left := strings.TrimSpace(rest[:eq])
	valueStr := strings.TrimSpace(rest[eq+1:])
	parts := strings.Split(left, ".")
	if len(parts) < 2 {
		return models.Action{}, false, fmt.Errorf("%w: SET target must be device.property", ErrParse)
	}
	property := parts[len(parts)-1]
	device := strings.Join(parts[:len(parts)-1], ".")
	return models.Action{
		Kind:     models.ActionSet,
		Device:   device,
		Property: property,
		Value:    parseScalarValue(valueStr),
	}, true, nil
}

func parseDelay(rest string) (models.Action, bool, error) {
	d, ok := parseDuration(strings.TrimSpace(rest))
	if !ok {
		return models.Action{}, false, fmt.Errorf("%w: invalid DELAY duration %q", ErrParse, rest)
	}
	return models.Action{Kind: models.ActionDelay, Delay: d}, true, nil
}

func parseAlert(rest string) (models.Action, bool, error) {
	strs := extractAllQuotedStrings(rest)
	if len(strs) < 2 {
		return models.Action{}, false, fmt.Errorf("%w: ALERT requires a title and message", ErrParse)
	}
	upper := strings.ToUpper(rest)
	level := "info"
	switch {
	case strings.Contains(upper, " CRITICAL"):
		level = "critical"
	case strings.Contains(upper, " ERROR"):
		level = "error"
	case strings.Contains(upper, " WARNING"):
		level = "warning"
	}
	return models.Action{
		Kind:    models.ActionAlert,
		Message: strs[0] + ": " + strs[1],
		Level:   level,
	}, true, nil
}

func parseHTTP(rest string) (models.Action, bool, error) {
	fields := strings.Fields(strings.TrimSpace(rest))
	if len(fields) < 2 {
		return models.Action{}, false, fmt.Errorf("%w: HTTP requires METHOD url", ErrParse)
	}
	method := strings.ToUpper(fields[0])
	switch method {
	case "GET", "POST", "PUT", "DELETE", "PATCH":
	default:
		method = "GET"
	}
	return models.Action{Kind: models.ActionHTTP, Method: method, URL: fields[1]}, true, nil
}

func parseLog(rest string) (models.Action, bool, error) {
	rest = strings.TrimSpace(rest)
	upper := strings.ToUpper(rest)
	level := "info"
	for _, lv := range []string{"ALERT", "INFO", "WARNING", "ERROR"} {
		if strings.HasPrefix(upper, lv) {
			level = strings.ToLower(lv)
			break
		}
	}
	message := "rule triggered"
	if msg, _, ok := extractQuotedString(rest); ok {
		message = msg
	}
	return models.Action{Kind: models.ActionLog, Level: level, Message: message}, true, nil
}

// extractQuotedString returns the first quoted substring, the text after
// its closing quote, and whether one was found.
func extractQuotedString(input string) (string, string, bool) {
	start := strings.IndexByte(input, '"')
	if start < 0 {
		return "", input, false
	}
	end := strings.IndexByte(input[start+1:], '"')
	if end < 0 {
		return "", input, false
	}
	end += start + 1
	return input[start+1 : end], strings.TrimSpace(input[end+1:]), true
}

func extractAllQuotedStrings(input string) []string {
	var out []string
	rest := input
	for {
		s, tail, ok := extractQuotedString(rest)
		if !ok {
			break
		}
		out = append(out, s)
		rest = tail
	}
	return out
}

// parseParams parses "key=value, key2=value2" into typed JSON-ish values.
func parseParams(input string) map[string]any {
	params := map[string]any{}
	input = strings.TrimSpace(input)
	if input == "" {
		return params
	}
	for _, pair := range strings.Split(input, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		params[key] = anyFromScalar(strings.TrimSpace(kv[1]))
	}
	return params
}

func anyFromScalar(value string) any {
	if strings.HasPrefix(value, `"`) {
		return strings.Trim(value, `"`)
	}
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	if value == "true" {
		return true
	}
	if value == "false" {
		return false
	}
	return value
}

func parseScalarValue(value string) models.MetricValue {
	switch v := anyFromScalar(value).(type) {
	case int64:
		return models.IntValue(v)
	case float64:
		return models.FloatValue(v)
	case bool:
		return models.BoolValue(v)
	case string:
		return models.StringValue(v)
	default:
		return models.StringValue(value)
	}
}

func parseDuration(input string) (time.Duration, bool) {
	fields := strings.Fields(input)
	if len(fields) != 2 {
		return 0, false
	}
	n, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(fields[1]) {
	case "second", "seconds":
		return time.Duration(n) * time.Second, true
	case "minute", "minutes":
		return time.Duration(n) * time.Minute, true
	case "hour", "hours":
		return time.Duration(n) * time.Hour, true
	}
	return 0, false
}
