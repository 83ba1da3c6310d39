// Package generate turns visions into today's actions. A text backend is
// consulted when one is configured and within its rate limit; every other
// path ends in the deterministic fallback, so Generate never fails.
package generate

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"dailyvision/internal/backend"
	"dailyvision/internal/config"
	"dailyvision/internal/domain"
)

type Source string

const (
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
	SourceCache    Source = "cache"
)

type Result struct {
	Actions []domain.DailyAction `json:"actions"`
	Cached  bool                 `json:"cached"`
	Source  Source               `json:"source" enum:"ai,fallback,cache"`
	Reason  string               `json:"reason,omitempty"`
}

const (
	ReasonRateLimited     = "rate limited"
	ReasonBackendDisabled = "backend disabled"
	ReasonBackendFailed   = "backend failed"
	ReasonCanceled        = "request canceled"
	ReasonNoVisions       = "no visions"
)

type Generator struct {
	Backend    backend.Backend
	Limiter    RateLimiter
	Cache      Cache
	Timeout    time.Duration
	MaxActions int
	MinMinutes int
	MaxMinutes int
	Now        func() time.Time
	NewID      func() string
	Logger     *log.Logger

	group singleflight.Group
}

// New wires a generator from config with in-memory rate and cache stores.
// Both are scoped to the generator, so limits hold only while it lives.
func New(cfg config.Generator, b backend.Backend, logger *log.Logger) *Generator {
	return &Generator{
		Backend:    b,
		Limiter:    NewMemoryRateLimiter(cfg.RateLimit.Requests, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second),
		Cache:      NewMemoryCache(cfg.Cache.Size, time.Duration(cfg.Cache.TTLSeconds)*time.Second),
		Timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
		MaxActions: cfg.MaxActions,
		MinMinutes: cfg.MinActionMinutes,
		MaxMinutes: cfg.MaxActionMinutes,
		Logger:     logger,
	}
}

func (g *Generator) logger() *log.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return log.Default()
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g *Generator) newID() string {
	if g.NewID != nil {
		return g.NewID()
	}
	return uuid.NewString()
}

func (g *Generator) maxActions() int {
	if g.MaxActions > 0 {
		return g.MaxActions
	}
	return 2
}

func (g *Generator) timeout() time.Duration {
	if g.Timeout > 0 {
		return g.Timeout
	}
	return 20 * time.Second
}

// Generate produces at most MaxActions actions for visions. It never returns
// an empty list when visions is non-empty.
func (g *Generator) Generate(ctx context.Context, visions []domain.Vision, identity string, allocations map[string]int) Result {
	if len(visions) == 0 {
		return Result{Actions: []domain.DailyAction{}, Source: SourceFallback, Reason: ReasonNoVisions}
	}

	if g.Limiter != nil {
		exceeded, err := g.Limiter.Exceeded(ctx, identity)
		if err != nil {
			g.logger().Printf("generate: rate check for %s failed: %v", identity, err)
		}
		if exceeded {
			return g.fallback(visions, allocations, ReasonRateLimited)
		}
	}

	ids := make([]string, 0, len(visions))
	for _, v := range visions {
		ids = append(ids, v.ID)
	}
	key := CacheKey(identity, ids, allocations)
	if g.Cache != nil {
		entry, ok, err := g.Cache.Get(ctx, key)
		if err != nil {
			g.logger().Printf("generate: cache lookup failed: %v", err)
		}
		if ok {
			return Result{Actions: g.finish(entry.Data, allocations), Cached: true, Source: SourceCache}
		}
	}

	if g.Backend == nil {
		return g.fallback(visions, allocations, ReasonBackendDisabled)
	}

	ch := g.group.DoChan(key, func() (any, error) {
		return g.call(context.WithoutCancel(ctx), key, identity, visions, allocations), nil
	})
	select {
	case res := <-ch:
		r := res.Val.(Result)
		r.Actions = append([]domain.DailyAction(nil), r.Actions...)
		return r
	case <-ctx.Done():
		return g.fallback(visions, allocations, ReasonCanceled)
	}
}

// call performs one physical backend request and caches its outcome. A
// request denied by the limiter is not cached.
func (g *Generator) call(ctx context.Context, key, identity string, visions []domain.Vision, allocations map[string]int) Result {
	if g.Limiter != nil {
		ok, err := g.Limiter.Acquire(ctx, identity)
		if err != nil {
			g.logger().Printf("generate: rate acquire for %s failed: %v", identity, err)
		}
		if !ok {
			return g.fallback(visions, allocations, ReasonRateLimited)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout())
	defer cancel()

	minM, maxM := g.MinMinutes, g.MaxMinutes
	if minM <= 0 {
		minM = MinActionMinutes
	}
	if maxM <= 0 {
		maxM = 25
	}
	var res Result
	reply, err := g.Backend.Complete(callCtx, systemPrompt, buildUserPrompt(visions, allocations, g.maxActions(), minM, maxM))
	if err == nil {
		var actions []domain.DailyAction
		actions, err = parseReply(reply, visions)
		if err == nil {
			res = Result{Actions: g.finish(orderActions(actions, visions), allocations), Source: SourceAI}
		}
	}
	if err != nil {
		g.logger().Printf("generate: backend for %s failed, using fallback: %v", identity, err)
		res = g.fallback(visions, allocations, ReasonBackendFailed)
	}

	if g.Cache != nil {
		if err := g.Cache.Set(ctx, CacheEntry{Key: key, Data: res.Actions, CreatedAt: g.now()}); err != nil {
			g.logger().Printf("generate: cache store failed: %v", err)
		}
	}
	return res
}

func (g *Generator) fallback(visions []domain.Vision, allocations map[string]int, reason string) Result {
	return Result{
		Actions: g.finish(Fallback(visions, g.maxActions()), allocations),
		Source:  SourceFallback,
		Reason:  reason,
	}
}

// finish caps the list, clamps durations and assigns ids.
func (g *Generator) finish(actions []domain.DailyAction, allocations map[string]int) []domain.DailyAction {
	if len(actions) > g.maxActions() {
		actions = actions[:g.maxActions()]
	}
	out := make([]domain.DailyAction, len(actions))
	for i, a := range actions {
		alloc, ok := allocations[a.VisionID]
		a.EstimatedTimeMinutes = ClampMinutes(a.EstimatedTimeMinutes, alloc, ok)
		if a.ID == "" {
			a.ID = g.newID()
		}
		out[i] = a
	}
	return out
}

// orderActions sorts backend actions by their vision's priority, keeping the
// backend's order within one vision.
func orderActions(actions []domain.DailyAction, visions []domain.Vision) []domain.DailyAction {
	prio := make(map[string]int, len(visions))
	for _, v := range visions {
		prio[v.ID] = v.Priority
	}
	out := append([]domain.DailyAction(nil), actions...)
	sort.SliceStable(out, func(i, j int) bool { return prio[out[i].VisionID] < prio[out[j].VisionID] })
	return out
}
