package models

import "time"

// BusEventType discriminates the event variants published on the internal
// event bus connecting the broker adapter, device service, rule engine, and
// the conversational agent.
type BusEventType string

const (
	BusEventDeviceOnline  BusEventType = "device.online"
	BusEventDeviceOffline BusEventType = "device.offline"
	BusEventDeviceMetric  BusEventType = "device.metric"
	BusEventDeviceCommand BusEventType = "device.command_result"
	BusEventRuleFired     BusEventType = "rule.fired"
	BusEventDeviceUnknown BusEventType = "device.unknown" // reading from an unregistered device id
)

// BusEvent is the envelope published on the event bus. Exactly one of the
// typed fields below is populated, matching Type.
type BusEvent struct {
	Type BusEventType `json:"type"`
	Time time.Time    `json:"time"`

	DeviceID string       `json:"device_id,omitempty"`
	Point    *Point       `json:"point,omitempty"`
	Command  *CommandRecord `json:"command,omitempty"`
	RuleID   string       `json:"rule_id,omitempty"`
	RuleName string       `json:"rule_name,omitempty"`

	// RawPayload carries the original bytes for BusEventDeviceUnknown, so the
	// auto-onboard sink can inspect it without re-parsing from the broker.
	RawPayload []byte `json:"raw_payload,omitempty"`
	Topic      string `json:"topic,omitempty"`
}
