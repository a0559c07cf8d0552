// Package quota gates job submission against a per-user monthly budget,
// read from an external subscription collaborator before a job enters
// the pipeline runner.
package quota

import (
	"context"
	"sync"
	"time"
)

// PlanLimits is one user's current entitlement.
type PlanLimits struct {
	// PlanTier names the user's subscription plan (free|basic|pro|
	// enterprise). The worker resolves ASR quality from this via
	// asr.QualityForTier — the detector itself never sees it.
	PlanTier           string
	MonthlyMinutes     float64
	MonthlyMinutesUsed float64
}

// Remaining reports the unused minutes left this billing period.
func (p PlanLimits) Remaining() float64 {
	return max(0, p.MonthlyMinutes-p.MonthlyMinutesUsed)
}

// Provider resolves and records per-user quota usage.
type Provider interface {
	PlanLimits(ctx context.Context, userID string) (PlanLimits, error)
	RecordUsage(ctx context.Context, userID string, minutes float64) error
}

// InMemory is a stub Provider for single-node deployments without a
// billing collaborator: every user gets a fixed monthly allowance tracked
// in-process, reset monthly by resetIfDue; usage is not persisted and is
// lost on process restart. Plan tier defaults to
// "free" for any user that hasn't been assigned one via SetPlanTier.
type InMemory struct {
	mu             sync.Mutex
	monthlyMinutes float64
	used           map[string]float64
	resetAt        map[string]time.Time
	tiers          map[string]string
}

// NewInMemory creates a stub provider granting monthlyMinutes to every user.
func NewInMemory(monthlyMinutes float64) *InMemory {
	return &InMemory{
		monthlyMinutes: monthlyMinutes,
		used:           make(map[string]float64),
		resetAt:        make(map[string]time.Time),
		tiers:          make(map[string]string),
	}
}

// SetPlanTier assigns userID's subscription plan tier, consulted by the
// next PlanLimits call.
func (p *InMemory) SetPlanTier(userID, tier string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tiers[userID] = tier
}

func (p *InMemory) PlanLimits(ctx context.Context, userID string) (PlanLimits, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetIfDue(userID)
	tier := p.tiers[userID]
	if tier == "" {
		tier = "free"
	}
	return PlanLimits{PlanTier: tier, MonthlyMinutes: p.monthlyMinutes, MonthlyMinutesUsed: p.used[userID]}, nil
}

func (p *InMemory) RecordUsage(ctx context.Context, userID string, minutes float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetIfDue(userID)
	p.used[userID] += minutes
	return nil
}

func (p *InMemory) resetIfDue(userID string) {
	reset, ok := p.resetAt[userID]
	now := time.Now()
	if !ok || now.After(reset) {
		p.used[userID] = 0
		p.resetAt[userID] = now.AddDate(0, 1, 0)
	}
}
