package registry

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"tokenizerd/internal/tokenizer"
)

// attempt is one ordered classification step.
type attempt struct {
	probe  tokenizer.Probe
	family tokenizer.Family
}

// classifier maps a model name to a family. Each decision is made once per
// name and memoized, whether or not the later construction succeeds.
type classifier struct {
	attempts []attempt
	fallback tokenizer.Family

	mu    sync.RWMutex
	memo  map[string]tokenizer.Family
	group singleflight.Group
	log   zerolog.Logger
}

func newClassifier(providers []tokenizer.Provider, log zerolog.Logger) *classifier {
	c := &classifier{
		fallback: providers[0].Family(),
		memo:     make(map[string]tokenizer.Family),
		log:      log,
	}
	for _, p := range providers {
		for _, pr := range p.Probes() {
			c.attempts = append(c.attempts, attempt{probe: pr, family: p.Family()})
		}
	}
	return c
}

// classify returns the memoized family for name, running the probes on the
// first call. Concurrent first calls share one probe run.
func (c *classifier) classify(ctx context.Context, name string) tokenizer.Family {
	if f, ok := c.family(name); ok {
		return f
	}
	v, _, _ := c.group.Do(name, func() (any, error) {
		if f, ok := c.family(name); ok {
			return f, nil
		}
		f, via := c.probe(ctx, name)
		c.mu.Lock()
		c.memo[name] = f
		c.mu.Unlock()
		c.log.Debug().Str("event", "classified").Str("model", name).
			Str("family", string(f)).Str("probe", via).Msg("registry")
		return f, nil
	})
	return v.(tokenizer.Family)
}

// probe runs the attempts in order and stops at the first hit.
func (c *classifier) probe(ctx context.Context, name string) (tokenizer.Family, string) {
	for _, a := range c.attempts {
		if a.probe.Run(ctx, name) == tokenizer.Hit {
			return a.family, a.probe.Name
		}
	}
	return c.fallback, "fallback"
}

func (c *classifier) family(name string) (tokenizer.Family, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.memo[name]
	return f, ok
}
