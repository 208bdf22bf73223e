package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the daemon's top-level yaml configuration, adapted from the
// teacher's single monolithic Config: one struct per concern, loaded
// from a single yaml document at startup.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	RTP        RTPConfig        `yaml:"rtp"`
	Model      ModelConfig      `yaml:"model"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	GeoIP      GeoIPConfig      `yaml:"geoip"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig controls the WebSocket ingest/egress endpoint.
type ServerConfig struct {
	Listen          string     `yaml:"listen"`
	MaxSessions     int        `yaml:"max_sessions"`
	MaxSessionsIP   int        `yaml:"max_sessions_ip"`
	SessionTimeout  int        `yaml:"session_timeout_sec"`
	EnableCORS      bool       `yaml:"enable_cors"`
	ZstdCompression bool       `yaml:"zstd_compression"`
	Opus            OpusConfig `yaml:"opus"`
}

// OpusConfig controls optional Opus-encoded WebSocket egress, built only
// when the binary is compiled with `-tags opus` (libopus is a cgo
// dependency, so it stays opt-in rather than a default build
// requirement).
type OpusConfig struct {
	Enabled    bool `yaml:"enabled"`
	Bitrate    int  `yaml:"bitrate"`
	Complexity int  `yaml:"complexity"`
}

// RTPConfig controls the optional multicast RTP ingest path, for sites
// feeding this daemon from an existing RTP PCM multicast group instead
// of (or alongside) WebSocket uploads.
type RTPConfig struct {
	Enabled     bool   `yaml:"enabled"`
	MulticastIP string `yaml:"multicast_ip"`
	Port        int    `yaml:"port"`
	Interface   string `yaml:"interface"`
}

// ModelConfig optionally overrides the embedded placeholder RNN model
// with an external manifest/weights pair.
type ModelConfig struct {
	ManifestPath string `yaml:"manifest_path"`
	WeightsPath  string `yaml:"weights_path"`
}

// PrometheusConfig controls metrics exposition and optional push-gateway
// publishing.
type PrometheusConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Listen       string `yaml:"listen"`
	PushEnabled  bool   `yaml:"push_enabled"`
	PushGateway  string `yaml:"push_gateway"`
	PushInterval int    `yaml:"push_interval_sec"`
	JobName      string `yaml:"job_name"`
}

// MQTTConfig controls the optional VAD/session telemetry publisher.
type MQTTConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Broker          string `yaml:"broker"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	Topic           string `yaml:"topic"`
	PublishInterval int    `yaml:"publish_interval_sec"`
}

// GeoIPConfig controls the optional session-origin lookups used by the
// session analytics API.
type GeoIPConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Database string `yaml:"database"`
}

// LoggingConfig controls the destination and verbosity of daemon logs.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// LoadConfig reads and parses the yaml config at path, filling in
// defaults a zero-value Config wouldn't have.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:         ":8090",
			MaxSessions:    256,
			MaxSessionsIP:  8,
			SessionTimeout: 300,
		},
		Prometheus: PrometheusConfig{
			Enabled: true,
			Listen:  ":9100",
			JobName: "rnnoise_go",
		},
		MQTT: MQTTConfig{
			Topic:           "rnnoise/telemetry",
			PublishInterval: 30,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
