//go:build !hftokenizers

package tokenizer

// newHFEngine builds the pure-Go BPE engine. Build with -tags=hftokenizers to
// use the Rust tokenizers bindings instead.
func newHFEngine(model string, data []byte) (Tokenizer, error) {
	return newBPETokenizer(model, data)
}
