// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config implements the node's recognized configuration options
// (spec §6) and their environment presets, following the teacher's
// Parameters/Default/Valid pattern (config/config.go, config/presets.go)
// adapted from Avalanche consensus-sampling knobs to QNet's port/storage/
// reputation/pruning knobs.
package config

import (
	"errors"
	"fmt"
	"time"
)

// NodeType is the recognized value of the node_type option.
type NodeType string

const (
	NodeTypeLight NodeType = "light"
	NodeTypeFull  NodeType = "full"
	NodeTypeSuper NodeType = "super"
)

// Config is the full set of recognized node configuration options
// (spec §6's "Configuration (recognized options and effect)" table).
type Config struct {
	P2PPort     int    `json:"p2p_port" yaml:"p2p_port"`
	APIPort     int    `json:"api_port" yaml:"api_port"`
	RPCPort     int    `json:"rpc_port" yaml:"rpc_port"`
	MetricsPort int    `json:"metrics_port" yaml:"metrics_port"`
	DataDir     string `json:"data_dir" yaml:"data_dir"`

	NodeType NodeType `json:"node_type" yaml:"node_type"`
	NodeID   string   `json:"node_id" yaml:"node_id"` // opaque; derived from the PQ public key if empty
	Region   string   `json:"region" yaml:"region"`

	BootstrapPeers []string `json:"bootstrap_peers" yaml:"bootstrap_peers"`

	ConsensusThreshold float64 `json:"consensus_threshold" yaml:"consensus_threshold"`
	BanThreshold       float64 `json:"ban_threshold" yaml:"ban_threshold"`
	RateLimitPerMin    int     `json:"rate_limit_per_min" yaml:"rate_limit_per_min"`

	MempoolMaxBytes uint64 `json:"mempool_max_bytes" yaml:"mempool_max_bytes"`

	PruningWindowBlocks   uint64 `json:"pruning_window_blocks" yaml:"pruning_window_blocks"`
	SnapshotFullIntervalH int    `json:"snapshot_full_interval_h" yaml:"snapshot_full_interval_h"`
	SnapshotIncrIntervalH int    `json:"snapshot_incr_interval_h" yaml:"snapshot_incr_interval_h"`
}

// Default returns the configuration spec §6 names as defaults for every
// recognized option.
func Default() Config {
	return Config{
		P2PPort:     9876,
		APIPort:     8001,
		RPCPort:     9877,
		MetricsPort: 9090,
		DataDir:     "./data",

		NodeType: NodeTypeFull,
		Region:   "default",

		ConsensusThreshold: 70.0,
		BanThreshold:       10.0,
		RateLimitPerMin:    30,

		MempoolMaxBytes: 256 << 20,

		PruningWindowBlocks:   100_000,
		SnapshotFullIntervalH: 12,
		SnapshotIncrIntervalH: 1,
	}
}

var (
	ErrInvalidPort        = errors.New("config: port must be in [1, 65535]")
	ErrPortCollision       = errors.New("config: p2p_port, api_port, rpc_port, and metrics_port must be distinct")
	ErrInvalidNodeType     = errors.New("config: node_type must be one of light, full, super")
	ErrEmptyDataDir        = errors.New("config: data_dir must not be empty")
	ErrInvalidThreshold    = errors.New("config: consensus_threshold and ban_threshold must be in [0, 100]")
	ErrInvalidRateLimit    = errors.New("config: rate_limit_per_min must be positive")
	ErrInvalidPruningWindow = errors.New("config: pruning_window_blocks must be positive")
)

// Valid checks every recognized option against the bounds spec §6 implies,
// returning the first violation found.
func (c Config) Valid() error {
	for _, p := range []int{c.P2PPort, c.APIPort, c.RPCPort, c.MetricsPort} {
		if p < 1 || p > 65535 {
			return ErrInvalidPort
		}
	}
	if c.P2PPort == c.APIPort || c.P2PPort == c.RPCPort || c.P2PPort == c.MetricsPort ||
		c.APIPort == c.RPCPort || c.APIPort == c.MetricsPort || c.RPCPort == c.MetricsPort {
		return ErrPortCollision
	}
	switch c.NodeType {
	case NodeTypeLight, NodeTypeFull, NodeTypeSuper:
	default:
		return ErrInvalidNodeType
	}
	if c.DataDir == "" {
		return ErrEmptyDataDir
	}
	if c.ConsensusThreshold < 0 || c.ConsensusThreshold > 100 || c.BanThreshold < 0 || c.BanThreshold > 100 {
		return ErrInvalidThreshold
	}
	if c.RateLimitPerMin <= 0 {
		return ErrInvalidRateLimit
	}
	if c.PruningWindowBlocks == 0 {
		return ErrInvalidPruningWindow
	}
	return nil
}

// SnapshotFullInterval and SnapshotIncrInterval convert the hour-valued
// options into time.Duration for the storage package's snapshot scheduler.
func (c Config) SnapshotFullInterval() time.Duration {
	return time.Duration(c.SnapshotFullIntervalH) * time.Hour
}

func (c Config) SnapshotIncrInterval() time.Duration {
	return time.Duration(c.SnapshotIncrIntervalH) * time.Hour
}

// Mainnet, Testnet, and Local are the environment presets a deployment picks
// from by name. Each starts from Default: Mainnet changes only Region;
// Testnet also lowers ConsensusThreshold to 60; Local moves every port and
// DataDir and clears BootstrapPeers.
func Mainnet() Config {
	c := Default()
	c.Region = "mainnet"
	return c
}

func Testnet() Config {
	c := Default()
	c.Region = "testnet"
	c.ConsensusThreshold = 60.0 // lower bar so small testnets can finalize
	return c
}

func Local() Config {
	c := Default()
	c.P2PPort = 19876
	c.APIPort = 18001
	c.RPCPort = 19877
	c.MetricsPort = 19090
	c.DataDir = "./data/local"
	c.BootstrapPeers = nil
	c.Region = "local"
	return c
}

// Preset resolves a named environment preset, as accepted by cmd/qnetd's
// --preset flag.
func Preset(name string) (Config, error) {
	switch name {
	case "mainnet":
		return Mainnet(), nil
	case "testnet":
		return Testnet(), nil
	case "local", "":
		return Local(), nil
	default:
		return Config{}, fmt.Errorf("config: unrecognized network preset %q", name)
	}
}
