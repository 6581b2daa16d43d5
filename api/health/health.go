// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package health implements the /api/v1/node/health aggregate check (spec
// §6), following the teacher's Checker/Report composition idiom
// (api/health/health.go) generalized from an arbitrary named-check registry
// to the specific height/peers/status/producer report the node exposes.
package health

import (
	"context"
	"time"

	"github.com/luxfi/qnet/types"
)

// Checker is one independent health probe (storage reachable, p2p has
// peers, producer schedule is live, ...).
type Checker interface {
	HealthCheck(context.Context) (any, error)
}

// Check is the per-probe result folded into a Report.
type Check struct {
	Name     string        `json:"name"`
	Healthy  bool          `json:"healthy"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report is the full aggregate health document, matching spec §6's
// node/health response contract:
// {height, peers, status, producer_of_current_round}.
type Report struct {
	Height                 uint64   `json:"height"`
	Peers                  int      `json:"peers"`
	Status                 string   `json:"status"`
	ProducerOfCurrentRound string   `json:"producer_of_current_round"`
	Checks                 []Check  `json:"checks,omitempty"`
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Registry runs a named set of Checkers and folds them into one Report.
type Registry struct {
	checks map[string]Checker
}

func NewRegistry() *Registry {
	return &Registry{checks: make(map[string]Checker)}
}

func (r *Registry) Register(name string, c Checker) {
	r.checks[name] = c
}

// Snapshot is the chain-state view the caller supplies to fill in the
// height/peers/producer fields alongside the registered Checkers' results.
type Snapshot struct {
	Height                 uint64
	Peers                  int
	ProducerOfCurrentRound types.Address
}

// Run executes every registered Checker and produces the aggregate Report.
func (r *Registry) Run(ctx context.Context, snap Snapshot) Report {
	report := Report{
		Height:                 snap.Height,
		Peers:                  snap.Peers,
		ProducerOfCurrentRound: snap.ProducerOfCurrentRound.String(),
		Status:                 StatusHealthy,
	}

	allHealthy := true
	for name, checker := range r.checks {
		start := time.Now()
		_, err := checker.HealthCheck(ctx)
		check := Check{Name: name, Duration: time.Since(start)}
		if err != nil {
			check.Healthy = false
			check.Error = err.Error()
			allHealthy = false
		} else {
			check.Healthy = true
		}
		report.Checks = append(report.Checks, check)
	}

	if !allHealthy {
		report.Status = StatusDegraded
	}
	if snap.Peers == 0 {
		report.Status = StatusUnhealthy
	}
	return report
}
