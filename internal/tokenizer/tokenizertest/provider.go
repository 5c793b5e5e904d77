// Package tokenizertest provides an in-memory tokenizer.Provider that counts
// probe and construct calls, for registry and HTTP tests.
package tokenizertest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"tokenizerd/internal/tokenizer"
)

// Provider accepts a fixed set of model names. Tokens are counted as
// whitespace-separated words times PerWord.
type Provider struct {
	family  tokenizer.Family
	PerWord int
	// Delay is slept inside Construct.
	Delay time.Duration
	// Gate, when non-nil, blocks Construct until it is closed.
	Gate chan struct{}

	mu         sync.Mutex
	accept     map[string]bool
	fail       map[string]error
	constructs map[string]int
	probes     map[string]int
	panics     map[string]bool
}

// NewProvider returns a provider for family that accepts models.
func NewProvider(family tokenizer.Family, models ...string) *Provider {
	p := &Provider{
		family:     family,
		PerWord:    1,
		accept:     make(map[string]bool),
		fail:       make(map[string]error),
		constructs: make(map[string]int),
		probes:     make(map[string]int),
		panics:     make(map[string]bool),
	}
	for _, m := range models {
		p.accept[m] = true
	}
	return p
}

// Accept adds models to the accepted set.
func (p *Provider) Accept(models ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range models {
		p.accept[m] = true
	}
}

// Fail makes Construct return err for model even if it probes as a hit.
func (p *Provider) Fail(model string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		err = errors.New("construct failed")
	}
	p.fail[model] = err
}

// Panic makes Construct panic for model.
func (p *Provider) Panic(model string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.panics[model] = true
}

// Constructs returns how many times Construct ran for model.
func (p *Provider) Constructs(model string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.constructs[model]
}

// ProbeCalls returns how many times the provider's probe ran for model.
func (p *Provider) ProbeCalls(model string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.probes[model]
}

func (p *Provider) Family() tokenizer.Family { return p.family }

func (p *Provider) Probes() []tokenizer.Probe {
	return []tokenizer.Probe{{Name: "fake_" + string(p.family), Run: func(_ context.Context, model string) tokenizer.Outcome {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.probes[model]++
		if p.accept[model] {
			return tokenizer.Hit
		}
		return tokenizer.Miss
	}}}
}

func (p *Provider) Construct(ctx context.Context, model string) (tokenizer.Tokenizer, error) {
	p.mu.Lock()
	p.constructs[model]++
	failErr, failing := p.fail[model]
	accepted := p.accept[model]
	panics := p.panics[model]
	p.mu.Unlock()

	if p.Gate != nil {
		select {
		case <-p.Gate:
		case <-ctx.Done():
			return nil, tokenizer.NewError(tokenizer.KindIO, model, ctx.Err())
		}
	}
	if p.Delay > 0 {
		time.Sleep(p.Delay)
	}
	if panics {
		panic("tokenizertest: construct panic for " + model)
	}
	if failing {
		return nil, tokenizer.NewError(tokenizer.KindIO, model, failErr)
	}
	if !accepted {
		return nil, tokenizer.NewError(tokenizer.KindNotFound, model, errors.New("unknown model"))
	}
	return &Tokenizer{model: model, family: p.family, perWord: p.PerWord}, nil
}

// Tokenizer is the instance built by Provider.
type Tokenizer struct {
	model   string
	family  tokenizer.Family
	perWord int
}

// NewTokenizer returns a standalone fake tokenizer.
func NewTokenizer(model string, family tokenizer.Family) *Tokenizer {
	return &Tokenizer{model: model, family: family, perWord: 1}
}

func (t *Tokenizer) CountTokens(text string) tokenizer.Result {
	return tokenizer.Result{
		TokenCount: len(strings.Fields(text)) * t.perWord,
		Model:      t.model,
		Tokenizer:  t.family,
	}
}

func (t *Tokenizer) Model() string            { return t.model }
func (t *Tokenizer) Family() tokenizer.Family { return t.family }
