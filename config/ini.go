// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// LoadINI parses the on-disk config.ini layout spec §6 describes
// (flat key=value pairs, '#' comments, optional [section] headers which are
// accepted but ignored since QNet's option set is not nested) on top of
// base, overriding only the keys present in r. No INI library appears
// anywhere in the retrieval pack, so this scanner is implemented directly
// on bufio.Scanner — the narrowest stdlib surface that covers the format.
func LoadINI(r io.Reader, base Config) (Config, error) {
	c := base
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			continue // section headers are accepted but unused
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return c, fmt.Errorf("config: line %d: expected key=value, got %q", lineNo, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if err := setField(&c, key, value); err != nil {
			return c, fmt.Errorf("config: line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return c, fmt.Errorf("config: scanning config.ini: %w", err)
	}
	return c, nil
}

func setField(c *Config, key, value string) error {
	switch key {
	case "p2p_port":
		return setInt(&c.P2PPort, value)
	case "api_port":
		return setInt(&c.APIPort, value)
	case "rpc_port":
		return setInt(&c.RPCPort, value)
	case "metrics_port":
		return setInt(&c.MetricsPort, value)
	case "data_dir":
		c.DataDir = value
	case "node_type":
		c.NodeType = NodeType(value)
	case "node_id":
		c.NodeID = value
	case "region":
		c.Region = value
	case "bootstrap_peers":
		c.BootstrapPeers = splitNonEmpty(value, ",")
	case "consensus_threshold":
		return setFloat(&c.ConsensusThreshold, value)
	case "ban_threshold":
		return setFloat(&c.BanThreshold, value)
	case "rate_limit_per_min":
		return setInt(&c.RateLimitPerMin, value)
	case "mempool_max_bytes":
		return setUint64(&c.MempoolMaxBytes, value)
	case "pruning_window_blocks":
		return setUint64(&c.PruningWindowBlocks, value)
	case "snapshot_full_interval_h":
		return setInt(&c.SnapshotFullIntervalH, value)
	case "snapshot_incr_interval_h":
		return setInt(&c.SnapshotIncrIntervalH, value)
	default:
		return fmt.Errorf("unrecognized option %q", key)
	}
	return nil
}

func setInt(dst *int, value string) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("expected integer, got %q: %w", value, err)
	}
	*dst = v
	return nil
}

func setUint64(dst *uint64, value string) error {
	v, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return fmt.Errorf("expected unsigned integer, got %q: %w", value, err)
	}
	*dst = v
	return nil
}

func setFloat(dst *float64, value string) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("expected float, got %q: %w", value, err)
	}
	*dst = v
	return nil
}

func splitNonEmpty(value, sep string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
