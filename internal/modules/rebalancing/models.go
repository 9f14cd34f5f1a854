// Package rebalancing orchestrates the full analysis cycle: snapshot,
// compliance evaluation, gap derivation and recommendation generation.
package rebalancing

import (
	"time"

	"github.com/avramidis/optsentry/internal/domain"
	"github.com/avramidis/optsentry/internal/modules/allocation"
	"github.com/avramidis/optsentry/internal/modules/chains"
)

// RecommendationType is the kind of trade action proposed
type RecommendationType string

const (
	RecommendationOpen   RecommendationType = "open"
	RecommendationClose  RecommendationType = "close"
	RecommendationRoll   RecommendationType = "roll"
	RecommendationAdjust RecommendationType = "adjust"
)

// Priority tiers, lower is more urgent
const (
	PriorityCritical = 1
	PriorityHigh     = 2
	PriorityMedium   = 3
	PriorityLow      = 4
)

// TradeRecommendation is one proposed action. Recommendations are produced
// fresh each cycle - each cycle's set fully replaces the previous one.
type TradeRecommendation struct {
	ID              string             `json:"id"`
	Type            RecommendationType `json:"type"`
	Priority        int                `json:"priority"`
	Symbol          string             `json:"symbol"`
	Underlying      string             `json:"underlying"`
	Strategy        string             `json:"strategy"`
	Action          string             `json:"action"`
	LimitPrice      float64            `json:"limit_price"` // 0 = market-on-close semantics
	Quantity        int                `json:"quantity"`
	TargetDTE       int                `json:"target_dte,omitempty"`
	TargetDelta     float64            `json:"target_delta,omitempty"`
	CapitalRequired float64            `json:"capital_required"`
	ExpectedReturn  float64            `json:"expected_return"`
	ExpectedRisk    float64            `json:"expected_risk"`
	Confidence      float64            `json:"confidence"` // 0-1
	Rationale       string             `json:"rationale"`
}

// EventStatus is the lifecycle state of a rebalancing event
type EventStatus string

const (
	EventPending  EventStatus = "pending"
	EventApproved EventStatus = "approved"
	EventExecuted EventStatus = "executed"
	EventRejected EventStatus = "rejected"
)

// EventSummary aggregates a cycle's recommendation set
type EventSummary struct {
	TotalCapitalRequired float64 `json:"total_capital_required"`
	ExpectedReturn       float64 `json:"expected_return"`
	OpeningCount         int     `json:"opening_count"`
	ClosingCount         int     `json:"closing_count"`
}

// Event is the top-level unit of rebalancing work. Exactly one event is
// current at a time - publishing a new one supersedes the prior.
type Event struct {
	ID              string                       `json:"id"`
	TriggerReason   string                       `json:"trigger_reason"`
	CreatedAt       time.Time                    `json:"created_at"`
	Status          EventStatus                  `json:"status"`
	Snapshot        domain.Snapshot              `json:"snapshot"`
	Chains          []chains.Chain               `json:"chains"`
	Checks          []allocation.ComplianceCheck `json:"checks"`
	Gaps            []allocation.Gap             `json:"gaps"`
	Stages          []StageResult                `json:"stages"`
	Recommendations []TradeRecommendation        `json:"recommendations"`
	Summary         EventSummary                 `json:"summary"`
}

// summarize recomputes the event summary from its recommendation list
func summarize(recs []TradeRecommendation) EventSummary {
	var s EventSummary
	for _, rec := range recs {
		s.TotalCapitalRequired += rec.CapitalRequired
		s.ExpectedReturn += rec.ExpectedReturn
		switch rec.Type {
		case RecommendationOpen:
			s.OpeningCount++
		case RecommendationClose, RecommendationAdjust:
			s.ClosingCount++
		}
	}
	return s
}

// StageResult is the explicit outcome of one recommendation stage: either
// data, or empty with the logged cause. A failed stage never aborts the
// cycle.
type StageResult struct {
	Stage           string                `json:"stage"`
	Recommendations []TradeRecommendation `json:"recommendations"`
	Degraded        bool                  `json:"degraded"`
	Cause           string                `json:"cause,omitempty"`
}
