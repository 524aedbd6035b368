package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds a node's recognized runtime options. Durations are stored
// as whole seconds rather than time.Duration: yaml.v3 has no built-in
// "60s"-string codec for time.Duration, and a bare integer round-trips
// unambiguously.
type Config struct {
	// PublishingIntervalSeconds is the period of the identity-publisher timer.
	PublishingIntervalSeconds int `yaml:"publishing_interval"`
	// HeadMergerJitterMaxSeconds bounds the random desync sleep before a head merge.
	HeadMergerJitterMaxSeconds int `yaml:"head_merger_jitter_max"`
	// ContentFetchIntervalSeconds is the period of the missing-content pass.
	ContentFetchIntervalSeconds int `yaml:"content_fetch_interval"`
	// MissingEventChanCapacity bounds the authors-with-missing dedup channel.
	MissingEventChanCapacity int `yaml:"missing_event_chan_capacity"`
	// DevMode shortens timers and raises logging verbosity.
	DevMode bool `yaml:"dev_mode"`
	// PerConnRPCConcurrency bounds concurrent RPC handlers per connection.
	PerConnRPCConcurrency int `yaml:"per_conn_rpc_concurrency"`
	// IdsNodesKeepLatest bounds the endpoint cache kept per resolved id.
	IdsNodesKeepLatest int `yaml:"ids_nodes_keep_latest"`
	// MultiClientMax bounds how many identities multiclient keeps cached.
	MultiClientMax int `yaml:"multi_client_max"`

	// DataDir is where the node's bbolt database and identity file live.
	// It has no built-in default since it is deployment-specific, not a
	// tunable of the replication/publishing algorithms.
	DataDir string `yaml:"data_dir"`
	// ListenAddr is the address the QUIC transport binds.
	ListenAddr string `yaml:"listen_addr"`
	// LogLevel and LogJSON configure pkg/log, mirroring the
	// --log-level/--log-json cobra flags of cmd/rostra-node.
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		PublishingIntervalSeconds:   60,
		HeadMergerJitterMaxSeconds:  60,
		ContentFetchIntervalSeconds: 600,
		MissingEventChanCapacity:    100,
		DevMode:                     false,
		PerConnRPCConcurrency:       32,
		IdsNodesKeepLatest:          10,
		MultiClientMax:              16,
		ListenAddr:                  "0.0.0.0:4433",
		LogLevel:                    "info",
		LogJSON:                     true,
	}
}

// PublishingInterval is PublishingIntervalSeconds as a time.Duration.
func (c Config) PublishingInterval() time.Duration {
	return time.Duration(c.PublishingIntervalSeconds) * time.Second
}

// HeadMergerJitterMax is HeadMergerJitterMaxSeconds as a time.Duration.
func (c Config) HeadMergerJitterMax() time.Duration {
	return time.Duration(c.HeadMergerJitterMaxSeconds) * time.Second
}

// ContentFetchInterval is ContentFetchIntervalSeconds as a time.Duration.
func (c Config) ContentFetchInterval() time.Duration {
	return time.Duration(c.ContentFetchIntervalSeconds) * time.Second
}

// applyDevMode shortens timers and raises logging verbosity for local
// development: a 10s content-fetch pass instead of 10 minutes, debug-level
// console logging.
func (c *Config) applyDevMode() {
	if !c.DevMode {
		return
	}
	c.ContentFetchIntervalSeconds = 10
	c.LogLevel = "debug"
	c.LogJSON = false
}

// Load reads path (if it exists) as YAML, applying its values over
// Default(), then applies dev_mode's timer/logging overrides. A missing
// file is not an error: an un-configured node still gets every default.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				cfg.applyDevMode()
				return cfg, nil
			}
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	cfg.applyDevMode()
	return cfg, nil
}
