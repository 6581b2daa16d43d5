// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

// FinalityLevel is the coarse finality classification spec §6 defines for
// /api/v1/transaction/{hash}.
type FinalityLevel string

const (
	FinalityPending        FinalityLevel = "Pending"
	FinalityInBlock        FinalityLevel = "InBlock"
	FinalityQuickConfirmed FinalityLevel = "QuickConfirmed"
	FinalityNearFinal      FinalityLevel = "NearFinal"
	FinalityFullyFinalized FinalityLevel = "FullyFinalized"
)

// FinalityReport is the wire contract of spec §6's finality-indicator
// response.
type FinalityReport struct {
	Level            FinalityLevel `json:"level"`
	Confirmations    uint64        `json:"confirmations"`
	SafetyPercentage float64       `json:"safety_percentage"`
	TimeToFinalityS  uint64        `json:"time_to_finality_s"`
	RiskAssessment   string        `json:"risk_assessment"`
}

// microBlockIntervalSeconds is the target per-block cadence used to convert
// a confirmation count into the reported time_to_finality_s (spec §4.7:
// 500ms build gate, ~1s effective cadence once network latency is folded in).
const microBlockIntervalSeconds = 1

// macroblockConfirmations is the confirmation depth at which a transaction's
// containing window has macroblock-finalized (spec §3/§4.8: 90-block window).
const macroblockConfirmations = 90

// Finality classifies confirmations into spec §6's five-level scheme and
// fills in the accompanying safety/time/risk fields.
func Finality(confirmations uint64) FinalityReport {
	r := FinalityReport{Confirmations: confirmations}
	switch {
	case confirmations == 0:
		r.Level = FinalityPending
		r.SafetyPercentage = 0
		r.RiskAssessment = "transaction not yet included in a block"
	case confirmations >= 1 && confirmations <= 4:
		r.Level = FinalityInBlock
		r.SafetyPercentage = 92.0
		r.RiskAssessment = "included; a short fork could still revert it"
	case confirmations >= 5 && confirmations <= 29:
		r.Level = FinalityQuickConfirmed
		r.SafetyPercentage = 92.0 + float64(confirmations-4)*0.2
		r.RiskAssessment = "low risk of reversal absent a large-scale reorg"
	case confirmations >= 30 && confirmations <= 89:
		r.Level = FinalityNearFinal
		r.SafetyPercentage = 99.0
		r.RiskAssessment = "very low risk; approaching macroblock finalization"
	default:
		r.Level = FinalityFullyFinalized
		r.SafetyPercentage = 100.0
		r.RiskAssessment = "finalized by macroblock commit-reveal quorum; cannot revert"
	}
	if confirmations < macroblockConfirmations {
		r.TimeToFinalityS = (macroblockConfirmations - confirmations) * microBlockIntervalSeconds
	}
	return r
}
