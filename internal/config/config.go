/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package config loads the node's YAML configuration, grounded on
// gaikwadabhishek-aistore's CLI config loading convention (a direct
// gopkg.in/yaml.v2 dependency).
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config bounds the simulation's runtime behavior: shard count, snapshot
// cadence, and the external collaborators' wiring. The Delivery block is
// parsed but not applied: entity runtimes build their delivery trackers
// from delivery.DefaultConfig().
type Config struct {
	NodeID       string        `yaml:"node_id"`
	ShardCount   uint64        `yaml:"shard_count"`
	MapDataPath  string        `yaml:"map_data_path"`
	NatsURL      string        `yaml:"nats_url"`
	SnapshotEvery time.Duration `yaml:"snapshot_every"`

	Delivery struct {
		BaseBackoff time.Duration `yaml:"base_backoff"`
		MaxBackoff  time.Duration `yaml:"max_backoff"`
		MaxAttempts int           `yaml:"max_attempts"`
	} `yaml:"delivery"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`

	Visualization struct {
		Addr string `yaml:"addr"`
		Path string `yaml:"path"`
	} `yaml:"visualization"`
}

// Default returns a Config with the stated defaults: ~10s
// snapshot period, 6696/ws for visualization.
func Default() Config {
	c := Config{
		NodeID:        "node-0",
		ShardCount:    16,
		MapDataPath:   "map.json",
		NatsURL:       "nats://127.0.0.1:4222",
		SnapshotEvery: 10 * time.Second,
	}
	c.Delivery.BaseBackoff = 100 * time.Millisecond
	c.Delivery.MaxBackoff = 30 * time.Second
	c.Delivery.MaxAttempts = 0
	c.Metrics.Addr = ":9696"
	c.Visualization.Addr = ":6696"
	c.Visualization.Path = "/ws"
	return c
}

// Load reads and parses a YAML config file, starting from Default() so
// an omitted field keeps its default rather than zeroing out.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.WithMessagef(err, "could not read config file %q", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.WithMessagef(err, "could not parse config file %q", path)
	}
	return cfg, nil
}
