package tokenizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	tiktokenloader "github.com/pkoukk/tiktoken-go-loader"
)

// TiktokenProvider resolves family A tokenizers. A name is accepted either as
// a model alias (gpt-4o, gpt-3.5-turbo, ...) or as a raw encoding id
// (o200k_base, cl100k_base, ...).
type TiktokenProvider struct{}

// NewTiktokenProvider returns a family A provider. When offline is set the
// BPE ranks are read from the tables embedded by tiktoken-go-loader instead of
// being downloaded. The loader is process-wide in tiktoken-go.
func NewTiktokenProvider(offline bool) *TiktokenProvider {
	if offline {
		tiktoken.SetBpeLoader(tiktokenloader.NewOfflineLoader())
	}
	return &TiktokenProvider{}
}

func (p *TiktokenProvider) Family() Family { return FamilyA }

func (p *TiktokenProvider) Probes() []Probe {
	return []Probe{
		{Name: "tiktoken_model", Run: func(_ context.Context, model string) Outcome {
			if _, err := tiktoken.EncodingForModel(model); err != nil {
				return Miss
			}
			return Hit
		}},
		{Name: "tiktoken_encoding", Run: func(_ context.Context, model string) Outcome {
			if _, err := tiktoken.GetEncoding(model); err != nil {
				return Miss
			}
			return Hit
		}},
	}
}

// Construct tries the model alias table first and the encoding id second.
func (p *TiktokenProvider) Construct(_ context.Context, model string) (Tokenizer, error) {
	if model == "" {
		return nil, errValidation(model, fmt.Errorf("empty model name"))
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		var encErr error
		enc, encErr = tiktoken.GetEncoding(model)
		if encErr != nil {
			return nil, errValidation(model, fmt.Errorf("invalid model or tokenizer name: %v", encErr))
		}
	}
	return &tiktokenTokenizer{model: model, enc: enc, specials: specialsOf(enc)}, nil
}

// knownSpecials lists the special tokens of the encodings tiktoken-go ships.
var knownSpecials = []string{
	"<|endoftext|>",
	"<|fim_prefix|>",
	"<|fim_middle|>",
	"<|fim_suffix|>",
	"<|endofprompt|>",
}

// specialsOf returns the known special tokens enc encodes as a single id.
// Others are ordinary text for that encoding.
func specialsOf(enc *tiktoken.Tiktoken) []string {
	var out []string
	for _, s := range knownSpecials {
		if len(enc.Encode(s, []string{s}, nil)) == 1 {
			out = append(out, s)
		}
	}
	return out
}

type tiktokenTokenizer struct {
	model    string
	enc      *tiktoken.Tiktoken
	specials []string
}

// CheckText rejects text containing one of the encoding's special tokens.
func (t *tiktokenTokenizer) CheckText(text string) error {
	for _, s := range t.specials {
		if strings.Contains(text, s) {
			return errValidation(t.model, fmt.Errorf("text contains disallowed special token %q", s))
		}
	}
	return nil
}

func (t *tiktokenTokenizer) CountTokens(text string) Result {
	return Result{
		TokenCount: len(t.enc.Encode(text, nil, nil)),
		Model:      t.model,
		Tokenizer:  FamilyA,
	}
}

func (t *tiktokenTokenizer) Model() string  { return t.model }
func (t *tiktokenTokenizer) Family() Family { return FamilyA }
