// Package budget implements spec.md §6 `token_budget`: daily/monthly LLM
// token accounting with a downgrade path, generalized from the teacher's
// Claude-session wall-clock tracker (vthunder-bud2/internal/budget) to
// per-call token accounting backed by the Memory Substrate's token_usage
// table instead of an in-process session tracker.
package budget

import (
	"fmt"
	"time"

	"github.com/vthunder/mneme/internal/logging"
	"github.com/vthunder/mneme/internal/memory"
)

// Usage source: vthunder-bud2/internal/budget/budget.go's ThinkingBudget,
// rebased onto memory.Store.TokenUsageSince instead of SessionTracker.
type Ledger struct {
	store *memory.Store

	DailyLimit         int
	MonthlyLimit       int
	DowngradeThreshold float64 // fraction of DailyLimit that triggers a downgrade
}

// NewLedger returns a Ledger backed by store with the given limits.
func NewLedger(store *memory.Store, dailyLimit, monthlyLimit int, downgradeThreshold float64) *Ledger {
	return &Ledger{
		store:              store,
		DailyLimit:         dailyLimit,
		MonthlyLimit:       monthlyLimit,
		DowngradeThreshold: downgradeThreshold,
	}
}

// Record accounts one completed LLM call.
func (l *Ledger) Record(provider, model string, promptTokens, outputTokens int) error {
	err := l.store.SaveTokenUsage(memory.TokenUsageRecord{
		Timestamp:    time.Now(),
		PromptTokens: promptTokens,
		OutputTokens: outputTokens,
		Provider:     provider,
		Model:        model,
	})
	if err != nil {
		return fmt.Errorf("budget: record usage: %w", err)
	}
	return nil
}

// Status is the current accounting snapshot against both limits.
type Status struct {
	TodaySpent      int
	DailyLimit      int
	MonthSpent      int
	MonthlyLimit    int
	ShouldDowngrade bool
	Exhausted       bool
}

// Check reports the current spend against both limits and whether the
// reasoning loop should downgrade to a cheaper model or the rule layer
// before the hard limit is hit (spec.md §6 "downgrade path").
func (l *Ledger) Check() (Status, error) {
	dayStart := time.Now().Truncate(24 * time.Hour)
	monthStart := time.Date(time.Now().Year(), time.Now().Month(), 1, 0, 0, 0, 0, time.Local)

	today, err := l.store.TokenUsageSince(dayStart)
	if err != nil {
		return Status{}, fmt.Errorf("budget: today usage: %w", err)
	}
	month, err := l.store.TokenUsageSince(monthStart)
	if err != nil {
		return Status{}, fmt.Errorf("budget: month usage: %w", err)
	}

	status := Status{
		TodaySpent:   today,
		DailyLimit:   l.DailyLimit,
		MonthSpent:   month,
		MonthlyLimit: l.MonthlyLimit,
	}
	if l.DailyLimit > 0 {
		status.ShouldDowngrade = float64(today) >= l.DowngradeThreshold*float64(l.DailyLimit)
		status.Exhausted = today >= l.DailyLimit
	}
	if l.MonthlyLimit > 0 && month >= l.MonthlyLimit {
		status.Exhausted = true
	}
	return status, nil
}

// LogStatus logs the current budget status, matching the teacher's
// `[budget]`-tagged one-line summary convention.
func (l *Ledger) LogStatus() {
	status, err := l.Check()
	if err != nil {
		logging.Warn("budget", "status check failed: %v", err)
		return
	}
	logging.Info("budget", "today %dk/%dk tokens, month %dk/%dk, downgrade=%v exhausted=%v",
		status.TodaySpent/1000, status.DailyLimit/1000,
		status.MonthSpent/1000, status.MonthlyLimit/1000,
		status.ShouldDowngrade, status.Exhausted)
}
