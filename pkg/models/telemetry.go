package models

import "time"

// Point is a single timestamped metric reading from a device.
type Point struct {
	DeviceID  string      `json:"device_id"`
	Metric    string      `json:"metric"`
	Value     MetricValue `json:"value"`
	Timestamp time.Time   `json:"timestamp"`
}

// Snapshot is the latest known value for every metric a device has reported.
type Snapshot struct {
	DeviceID string             `json:"device_id"`
	Values   map[string]Point   `json:"values"`
	AsOf     time.Time          `json:"as_of"`
}
