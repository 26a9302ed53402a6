// Package chaos injects seeded faults into command handling: dropped
// attempts, delays, and journal commits that fail after the book has
// already changed.
package chaos

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/ismaiel54/limit-order-book/internal/metrics"
	"go.uber.org/zap"
)

var (
	// ErrInjectedDrop fails a handling attempt before the book is touched
	ErrInjectedDrop = errors.New("chaos: injected drop")
	// ErrInjectedCommitFailure fails a journal commit after the book changed
	ErrInjectedCommitFailure = errors.New("chaos: injected commit failure")
)

// Target is the command a fault would hit
type Target struct {
	Symbol  string
	Command string
}

// Chaos decides, from a seeded RNG, which faults to inject.
// A nil *Chaos injects nothing.
type Chaos struct {
	cfg    Config
	logger *zap.Logger
	mu     sync.Mutex
	rng    *rand.Rand
	start  time.Time
}

// New validates cfg, folds in its profile and returns a Chaos
func New(cfg Config, logger *zap.Logger) (*Chaos, error) {
	if cfg.Profile != "" {
		p, err := ParseProfile(cfg.Profile)
		if err != nil {
			return nil, err
		}
		p.apply(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chaos config: %w", err)
	}

	return &Chaos{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		start:  time.Now(),
	}, nil
}

// Applies reports whether faults may be injected for t
func (c *Chaos) Applies(t Target) bool {
	if c == nil || !c.cfg.Enabled {
		return false
	}
	if c.cfg.WindowMs > 0 && time.Since(c.start) > time.Duration(c.cfg.WindowMs)*time.Millisecond {
		return false
	}
	if c.cfg.TargetSymbol != "" && c.cfg.TargetSymbol != t.Symbol {
		return false
	}
	if len(c.cfg.TargetCommands) > 0 && !slices.Contains(c.cfg.TargetCommands, t.Command) {
		return false
	}
	return true
}

// Before runs ahead of applying a command: it may delay, then may drop
func (c *Chaos) Before(ctx context.Context, t Target) error {
	if !c.Applies(t) {
		return nil
	}

	if d := c.delay(); d > 0 {
		c.injected("delay", t, zap.Duration("delay", d))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}

	if c.roll(c.cfg.DropPct) {
		c.injected("drop", t)
		return ErrInjectedDrop
	}
	return nil
}

// FailCommit reports whether the journal commit for t should fail
func (c *Chaos) FailCommit(t Target) bool {
	if !c.Applies(t) || !c.roll(c.cfg.CommitFailPct) {
		return false
	}
	c.injected("commit_fail", t)
	return true
}

func (c *Chaos) roll(pct int) bool {
	if pct <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Intn(100) < pct
}

func (c *Chaos) delay() time.Duration {
	lo, hi := c.cfg.DelayMsMin, c.cfg.DelayMsMax
	if hi <= 0 && lo <= 0 {
		return 0
	}

	ms := lo
	if hi > lo {
		c.mu.Lock()
		ms += c.rng.Intn(hi - lo + 1)
		c.mu.Unlock()
	}
	return time.Duration(ms) * time.Millisecond
}

func (c *Chaos) injected(kind string, t Target, fields ...zap.Field) {
	metrics.ChaosInjected.WithLabelValues(kind).Inc()
	c.logger.Info("chaos "+kind+" injected", append(fields,
		zap.String("symbol", t.Symbol),
		zap.String("command", t.Command),
	)...)
}
