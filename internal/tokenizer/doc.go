// Package tokenizer defines the token-counting capability served by the
// registry and the two provider families that construct it:
//
//   - tiktoken.go: family A, table-driven OpenAI encodings (tiktoken-go).
//   - hub.go, localdir.go: family B vocabulary sources (local directory,
//     Hugging Face hub with an on-disk cache).
//   - hf.go: family B provider; hf_engine*.go select the engine by build tag.
//   - bpe.go: pure-Go byte-level BPE engine for tokenizer.json files.
//
// Build tags:
//
//   - Default: family B tokenizers run on the pure-Go BPE engine.
//   - `-tags=hftokenizers`: family B uses github.com/daulet/tokenizers (cgo,
//     requires libtokenizers.a on the linker path).
package tokenizer
