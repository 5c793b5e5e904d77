package tokenizer

import "context"

// Family identifies a tokenizer construction strategy. The values double as
// the wire tag reported in count responses.
type Family string

const (
	// FamilyA is the fast, table-driven encoding family.
	FamilyA Family = "openai"
	// FamilyB is the fetched-vocabulary family.
	FamilyB Family = "huggingface"
)

// Result is the outcome of a count.
type Result struct {
	TokenCount int
	Model      string
	Tokenizer  Family
}

// Tokenizer counts tokens for one model. Implementations are read-only after
// construction and safe for concurrent use.
type Tokenizer interface {
	CountTokens(text string) Result
	Model() string
	Family() Family
}

// TextChecker is implemented by tokenizers that refuse some inputs. A
// non-nil error is a *Error of KindValidation.
type TextChecker interface {
	CheckText(text string) error
}

// Outcome is the discriminated result of a classification probe.
type Outcome int

const (
	Miss Outcome = iota
	Hit
)

func (o Outcome) String() string {
	if o == Hit {
		return "hit"
	}
	return "miss"
}

// Probe is one classification attempt. Run must not return an error for
// "not this family"; it reports Miss instead.
type Probe struct {
	Name string
	Run  func(ctx context.Context, model string) Outcome
}

// Provider constructs tokenizers for a single family.
type Provider interface {
	Family() Family
	// Probes returns the provider's classification attempts in order.
	Probes() []Probe
	// Construct builds a tokenizer for model. Errors are *Error values.
	Construct(ctx context.Context, model string) (Tokenizer, error)
}
