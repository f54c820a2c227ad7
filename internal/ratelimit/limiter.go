// Package ratelimit throttles mini-app requests per bot and end-user with a
// sliding window.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/botforge/botforge/pkg/config"
)

// Result captures the outcome of a rate-limit evaluation.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Rule allows Limit requests per Window. A zero rule disables limiting.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Enabled reports whether the rule limits anything.
func (r Rule) Enabled() bool {
	return r.Limit > 0 && r.Window > 0
}

// RuleFromConfig builds the tap rule. A disabled config yields a zero rule.
func RuleFromConfig(cfg config.RateLimitConfig) Rule {
	if !cfg.Enabled {
		return Rule{}
	}
	return Rule{Limit: cfg.Taps, Window: cfg.Window}
}

// Limiter evaluates rule for key and records the attempt.
type Limiter interface {
	Check(ctx context.Context, key string, rule Rule) (*Result, error)
}

// TapKey scopes the limit to one end-user of one bot.
func TapKey(botID, userID int64) string {
	return fmt.Sprintf("tap:%d:%d", botID, userID)
}

func allowAll(now time.Time, rule Rule) *Result {
	return &Result{Allowed: true, Remaining: rule.Limit, ResetAt: now.Add(rule.Window)}
}
