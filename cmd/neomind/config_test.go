package main

import (
	"testing"
	"time"

	"github.com/neomind-iot/neomind/internal/config"
)

func TestBrokerConfigFromCfgAppliesOverrides(t *testing.T) {
	c := config.BrokerConfig{
		URL:            "mqtt://broker.local:1883",
		ClientID:       "kitchen-bridge",
		TopicPrefix:    "home",
		KeepAlive:      60,
		ConnectTimeout: 5 * time.Second,
	}
	got := brokerConfigFromCfg(c)
	if got.BrokerURL != c.URL {
		t.Errorf("BrokerURL = %q, want %q", got.BrokerURL, c.URL)
	}
	if got.ClientID != c.ClientID {
		t.Errorf("ClientID = %q, want %q", got.ClientID, c.ClientID)
	}
	if got.TopicPrefix != c.TopicPrefix {
		t.Errorf("TopicPrefix = %q, want %q", got.TopicPrefix, c.TopicPrefix)
	}
	if got.KeepAlive != 60 {
		t.Errorf("KeepAlive = %d, want 60", got.KeepAlive)
	}
	if got.ConnectTimeout != 5*time.Second {
		t.Errorf("ConnectTimeout = %v, want 5s", got.ConnectTimeout)
	}
}

func TestBrokerConfigFromCfgFallsBackToDefaults(t *testing.T) {
	got := brokerConfigFromCfg(config.BrokerConfig{})
	def := got
	if def.BrokerURL == "" || def.ClientID == "" || def.TopicPrefix == "" {
		t.Fatalf("expected defaults to be applied, got %+v", got)
	}
}

func TestOfflineConfigFromCfgDerivesCheckInterval(t *testing.T) {
	cfg := offlineConfigFromCfg(9 * time.Minute)
	if cfg.CheckInterval != 3*time.Minute {
		t.Errorf("CheckInterval = %v, want 3m", cfg.CheckInterval)
	}
	if cfg.MissedIntervals != 3 {
		t.Errorf("MissedIntervals = %d, want 3", cfg.MissedIntervals)
	}
}

func TestOfflineConfigFromCfgDefaultsWhenUnset(t *testing.T) {
	cfg := offlineConfigFromCfg(0)
	if cfg.CheckInterval <= 0 {
		t.Fatalf("expected a positive default check interval, got %v", cfg.CheckInterval)
	}
}
