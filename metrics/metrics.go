// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics registers every long-running task's Prometheus
// instrumentation under the "qnet" namespace, following the teacher's
// Registerer/Registry/MultiGatherer idiom (api/metrics/metrics.go,
// gatherer.go) built on github.com/prometheus/client_golang.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Namespace prefixes every metric this package registers (spec §6's
// metrics_port endpoint; "Metrics ... qnet_-namespaced" in the ambient
// stack).
const Namespace = "qnet"

// Registerer is the narrow registration surface callers depend on, kept
// distinct from prometheus.Registerer only so call sites don't import
// the prometheus package directly outside this package and api/.
type Registerer interface {
	prometheus.Registerer
}

// Registry is a Registerer that can also be scraped.
type Registry interface {
	prometheus.Registerer
	prometheus.Gatherer
}

// NewRegistry returns a fresh, empty Prometheus registry.
func NewRegistry() Registry {
	return prometheus.NewRegistry()
}

// MultiGatherer merges metrics gathered from several subsystem registries
// under one /metrics scrape (spec §6's single metrics_port endpoint
// serving counters registered by every subsystem).
type MultiGatherer interface {
	prometheus.Gatherer
	Register(name string, gatherer prometheus.Gatherer) error
}

type multiGatherer struct {
	gatherers map[string]prometheus.Gatherer
}

func NewMultiGatherer() MultiGatherer {
	return &multiGatherer{gatherers: make(map[string]prometheus.Gatherer)}
}

func (mg *multiGatherer) Register(name string, gatherer prometheus.Gatherer) error {
	if _, exists := mg.gatherers[name]; exists {
		return errAlreadyRegistered(name)
	}
	mg.gatherers[name] = gatherer
	return nil
}

func (mg *multiGatherer) Gather() ([]*dto.MetricFamily, error) {
	var result []*dto.MetricFamily
	for _, g := range mg.gatherers {
		families, err := g.Gather()
		if err != nil {
			return nil, err
		}
		result = append(result, families...)
	}
	return result, nil
}

// Node bundles every counter/gauge/histogram cmd/qnetd registers once at
// startup and threads through to microblock/macroblock/chainmgr/mempool/p2p.
type Node struct {
	MicroBlocksProduced  prometheus.Counter
	MicroBlocksRejected  prometheus.Counter
	MacroBlocksFinalized prometheus.Counter
	ChainHeight          prometheus.Gauge

	MempoolSize    prometheus.Gauge
	MempoolBytes   prometheus.Gauge
	BundlesApplied prometheus.Counter

	PeersConnected  prometheus.Gauge
	GossipSent      prometheus.Counter
	GossipReceived  prometheus.Counter
	PeersBenched    prometheus.Gauge

	PingCommitmentsEmitted prometheus.Counter

	ReputationJails prometheus.Counter
	ReputationBans  prometheus.Gauge

	BlockProductionLatency prometheus.Histogram
}

// NewNode constructs and registers every Node metric against registerer.
func NewNode(registerer Registerer) (*Node, error) {
	n := &Node{
		MicroBlocksProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Name: "microblocks_produced_total", Help: "Microblocks this node has produced.",
		}),
		MicroBlocksRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Name: "microblocks_rejected_total", Help: "Microblocks rejected by the validation pipeline.",
		}),
		MacroBlocksFinalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Name: "macroblocks_finalized_total", Help: "Macroblock windows finalized.",
		}),
		ChainHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Name: "chain_height", Help: "Current head microblock height.",
		}),
		MempoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Name: "mempool_size", Help: "Pending transaction count.",
		}),
		MempoolBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Name: "mempool_bytes", Help: "Pending transaction total byte size.",
		}),
		BundlesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Name: "bundles_applied_total", Help: "Private MEV bundles included in a block.",
		}),
		PeersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Name: "peers_connected", Help: "Currently connected peer count.",
		}),
		GossipSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Name: "gossip_messages_sent_total", Help: "Gossip envelopes sent.",
		}),
		GossipReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Name: "gossip_messages_received_total", Help: "Gossip envelopes received.",
		}),
		PeersBenched: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Name: "peers_benched", Help: "Peers currently under soft or hard ban.",
		}),
		PingCommitmentsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Name: "ping_commitments_emitted_total", Help: "Light-node ping attestation transactions emitted.",
		}),
		ReputationJails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Name: "reputation_jails_total", Help: "Nodes jailed for malicious behavior.",
		}),
		ReputationBans: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Name: "reputation_network_banned", Help: "Nodes currently under a network-level ban.",
		}),
		BlockProductionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace, Name: "block_production_latency_seconds", Help: "Wall-clock time to build and sign one microblock.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	collectors := []prometheus.Collector{
		n.MicroBlocksProduced, n.MicroBlocksRejected, n.MacroBlocksFinalized, n.ChainHeight,
		n.MempoolSize, n.MempoolBytes, n.BundlesApplied,
		n.PeersConnected, n.GossipSent, n.GossipReceived, n.PeersBenched,
		n.PingCommitmentsEmitted, n.ReputationJails, n.ReputationBans,
		n.BlockProductionLatency,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return n, nil
}
