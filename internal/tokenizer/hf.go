package tokenizer

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// HubProvider resolves family B tokenizers from a local tokenizer directory
// first and from the hub second.
type HubProvider struct {
	hub   *HubClient
	local map[string]string
	log   zerolog.Logger
}

// NewHubProvider scans localDir once for tokenizer.json files and returns a
// provider backed by hub. hub may be nil to disable network access.
func NewHubProvider(hub *HubClient, localDir string, log zerolog.Logger) (*HubProvider, error) {
	local, err := ScanDir(localDir)
	if err != nil {
		return nil, err
	}
	if len(local) > 0 {
		log.Info().Int("count", len(local)).Str("dir", localDir).Msg("local tokenizers discovered")
	}
	return &HubProvider{hub: hub, local: local, log: log}, nil
}

func (p *HubProvider) Family() Family { return FamilyB }

// LocalModels lists model ids available from the local tokenizer directory.
func (p *HubProvider) LocalModels() []string {
	return sortedKeys(p.local)
}

func (p *HubProvider) Probes() []Probe {
	return []Probe{{Name: "hub_vocab", Run: p.probe}}
}

func (p *HubProvider) probe(ctx context.Context, model string) Outcome {
	if _, ok := p.local[model]; ok {
		return Hit
	}
	if p.hub == nil {
		return Miss
	}
	ok, err := p.hub.Exists(ctx, model)
	if err != nil {
		p.log.Debug().Str("model", model).Err(err).Msg("hub probe failed")
		return Miss
	}
	if ok {
		return Hit
	}
	return Miss
}

// Construct loads the vocabulary and builds the engine selected at build time.
func (p *HubProvider) Construct(ctx context.Context, model string) (Tokenizer, error) {
	data, err := p.vocab(ctx, model)
	if err != nil {
		return nil, err
	}
	return newHFEngine(model, data)
}

func (p *HubProvider) vocab(ctx context.Context, model string) ([]byte, error) {
	if path, ok := p.local[model]; ok {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errIO(model, err)
		}
		return b, nil
	}
	if p.hub == nil {
		return nil, errNotFound(model, fmt.Errorf("no local vocabulary and hub disabled"))
	}
	return p.hub.Fetch(ctx, model)
}
