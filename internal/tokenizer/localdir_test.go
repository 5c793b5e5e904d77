package tokenizer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	write := func(rel string) {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("{}"), 0o644))
	}
	write("Qwen/Qwen2.5-7B/tokenizer.json")
	write("gpt2/tokenizer.json")
	write("gpt2/vocab.txt")
	write("tokenizer.json") // at the root: no model id

	models, err := ScanDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"Qwen/Qwen2.5-7B", "gpt2"}, sortedKeys(models))
	assert.Equal(t, filepath.Join(dir, "gpt2", "tokenizer.json"), models["gpt2"])
}

func TestScanDirEmptyAndMissing(t *testing.T) {
	models, err := ScanDir("")
	require.NoError(t, err)
	assert.Empty(t, models)

	_, err = ScanDir(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
