package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"tokenizerd/internal/tokenizer"
	"tokenizerd/internal/tokenizer/tokenizertest"
)

func TestClassifierOrderAndFallback(t *testing.T) {
	a := tokenizertest.NewProvider(tokenizer.FamilyA, "gpt-4o", "shared")
	b := tokenizertest.NewProvider(tokenizer.FamilyB, "org/model", "shared")
	c := newClassifier([]tokenizer.Provider{a, b}, zerolog.Nop())
	ctx := context.Background()

	assert.Equal(t, tokenizer.FamilyA, c.classify(ctx, "gpt-4o"))
	assert.Equal(t, tokenizer.FamilyB, c.classify(ctx, "org/model"))
	assert.Equal(t, tokenizer.FamilyA, c.classify(ctx, "shared"))
	assert.Equal(t, 0, b.ProbeCalls("shared"), "first hit short-circuits")
	assert.Equal(t, tokenizer.FamilyA, c.classify(ctx, "neither"))
	assert.Equal(t, 1, b.ProbeCalls("neither"))
}

func TestClassifierProbesOncePerName(t *testing.T) {
	a := tokenizertest.NewProvider(tokenizer.FamilyA)
	b := tokenizertest.NewProvider(tokenizer.FamilyB, "org/model")
	c := newClassifier([]tokenizer.Provider{a, b}, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, tokenizer.FamilyB, c.classify(context.Background(), "org/model"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, a.ProbeCalls("org/model"))
	assert.Equal(t, 1, b.ProbeCalls("org/model"))

	// Accepting the name later does not change a memoized decision.
	a.Accept("org/model")
	assert.Equal(t, tokenizer.FamilyB, c.classify(context.Background(), "org/model"))
}
