//go:build hftokenizers

package tokenizer

import (
	"fmt"

	"github.com/daulet/tokenizers"
)

// newHFEngine loads the vocabulary into the Rust tokenizers library.
func newHFEngine(model string, data []byte) (Tokenizer, error) {
	tk, err := tokenizers.FromBytes(data)
	if err != nil {
		return nil, errValidation(model, fmt.Errorf("load tokenizer.json: %w", err))
	}
	return &rustTokenizer{model: model, tk: tk}, nil
}

// rustTokenizer is never closed: registry entries live for the process.
type rustTokenizer struct {
	model string
	tk    *tokenizers.Tokenizer
}

func (t *rustTokenizer) CountTokens(text string) Result {
	ids, _ := t.tk.Encode(text, true)
	return Result{TokenCount: len(ids), Model: t.model, Tokenizer: FamilyB}
}

func (t *rustTokenizer) Model() string  { return t.model }
func (t *rustTokenizer) Family() Family { return FamilyB }
