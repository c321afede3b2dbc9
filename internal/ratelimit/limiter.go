package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	countPrefix   = "ratelimit:count:"
	blockedPrefix = "ratelimit:blocked:"
	violationsKey = "ratelimit:violations:"
	suspiciousSet = "ratelimit:suspicious"

	statsAllowedKey    = "ratelimit:stats:allowed"
	statsDeniedKey     = "ratelimit:stats:denied"
	statsViolationsKey = "ratelimit:stats:violations"

	violationsTTL = 24 * time.Hour
	opTimeout     = 2 * time.Second
)

// Rule configures one action's window. FailClosed controls behavior when Redis
// is unreachable: generation denies, validation reads allow.
type Rule struct {
	Limit           int
	Window          time.Duration
	Cooldown        time.Duration
	SuspiciousAfter int
	FailClosed      bool
}

// Result of a limiter check.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Stats is the admin-facing counter snapshot.
type Stats struct {
	Allowed        int64 `json:"allowed"`
	Denied         int64 `json:"denied"`
	Violations     int64 `json:"violations"`
	BlockedKeys    int   `json:"blocked_keys"`
	SuspiciousKeys int   `json:"suspicious_keys"`
}

// Limiter is a fixed-window counter over Redis, keyed by (action, client key).
// Counters tolerate slightly stale reads; the invariant-critical paths live in
// the persistence layer, not here.
type Limiter struct {
	Rdb   *redis.Client
	Rules map[string]Rule
}

func New(rdb *redis.Client, rules map[string]Rule) *Limiter {
	return &Limiter{Rdb: rdb, Rules: rules}
}

// Check counts one request for (key, action) and returns whether it is allowed.
// Exceeding the limit blocks the key for the rule's cooldown; repeated
// violations escalate the key into the suspicious set. A Redis error is
// returned alongside the rule's fail-open/fail-closed decision.
func (l *Limiter) Check(ctx context.Context, key, action string) (Result, error) {
	rule, ok := l.Rules[action]
	if !ok {
		return Result{Allowed: true, Remaining: -1}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := time.Now()
	blockedKey := blockedPrefix + action + ":" + key

	ttl, err := l.Rdb.TTL(ctx, blockedKey).Result()
	if err != nil {
		return l.unavailable(rule, err)
	}
	if ttl > 0 {
		l.bumpStat(ctx, statsDeniedKey)
		return Result{Allowed: false, Remaining: 0, ResetAt: now.Add(ttl)}, nil
	}

	windowStart := now.Truncate(rule.Window)
	resetAt := windowStart.Add(rule.Window)
	countKey := countPrefix + action + ":" + key + ":" + strconv.FormatInt(windowStart.Unix(), 10)

	n, err := l.Rdb.Incr(ctx, countKey).Result()
	if err != nil {
		return l.unavailable(rule, err)
	}
	if n == 1 {
		l.Rdb.Expire(ctx, countKey, rule.Window)
	}

	if int(n) > rule.Limit {
		l.Rdb.Set(ctx, blockedKey, "1", rule.Cooldown)
		l.bumpStat(ctx, statsDeniedKey)
		l.bumpStat(ctx, statsViolationsKey)

		v, err := l.Rdb.Incr(ctx, violationsKey+key).Result()
		if err == nil {
			l.Rdb.Expire(ctx, violationsKey+key, violationsTTL)
			if rule.SuspiciousAfter > 0 && int(v) >= rule.SuspiciousAfter {
				l.Rdb.SAdd(ctx, suspiciousSet, key)
			}
		}
		return Result{Allowed: false, Remaining: 0, ResetAt: now.Add(rule.Cooldown)}, nil
	}

	l.bumpStat(ctx, statsAllowedKey)
	remaining := rule.Limit - int(n)
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: true, Remaining: remaining, ResetAt: resetAt}, nil
}

// BlockedKeys returns currently blocked "action:key" entries.
func (l *Limiter) BlockedKeys(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var out []string
	iter := l.Rdb.Scan(ctx, 0, blockedPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val()[len(blockedPrefix):])
	}
	return out, iter.Err()
}

// SuspiciousKeys returns keys escalated after repeated violations.
func (l *Limiter) SuspiciousKeys(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return l.Rdb.SMembers(ctx, suspiciousSet).Result()
}

// IsSuspicious reports whether a key is in the suspicious set.
func (l *Limiter) IsSuspicious(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return l.Rdb.SIsMember(ctx, suspiciousSet, key).Result()
}

// GetStats returns the counter snapshot for the admin monitoring surface.
func (l *Limiter) GetStats(ctx context.Context) (Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var s Stats
	s.Allowed, _ = l.Rdb.Get(ctx, statsAllowedKey).Int64()
	s.Denied, _ = l.Rdb.Get(ctx, statsDeniedKey).Int64()
	s.Violations, _ = l.Rdb.Get(ctx, statsViolationsKey).Int64()

	blocked, err := l.BlockedKeys(ctx)
	if err != nil {
		return s, err
	}
	s.BlockedKeys = len(blocked)

	n, err := l.Rdb.SCard(ctx, suspiciousSet).Result()
	if err != nil {
		return s, err
	}
	s.SuspiciousKeys = int(n)
	return s, nil
}

// unavailable applies the rule's failure policy when limiter storage is down.
func (l *Limiter) unavailable(rule Rule, err error) (Result, error) {
	log.Warn().Err(err).Bool("fail_closed", rule.FailClosed).Msg("rate limiter storage unavailable")
	if rule.FailClosed {
		return Result{Allowed: false}, err
	}
	return Result{Allowed: true, Remaining: -1}, err
}

func (l *Limiter) bumpStat(ctx context.Context, key string) {
	l.Rdb.Incr(ctx, key)
}
