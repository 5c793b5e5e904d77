package tokenizer

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"tokenizerd/internal/common/fsutil"
)

// vocabFile is the file name of a family B vocabulary.
const vocabFile = "tokenizer.json"

// ScanDir walks dir for tokenizer.json files and returns the model ids they
// belong to. The id is the slash-separated directory path relative to dir,
// e.g. <dir>/Qwen/Qwen2.5-7B/tokenizer.json yields "Qwen/Qwen2.5-7B".
// An empty dir yields no models.
func ScanDir(dir string) (map[string]string, error) {
	models := make(map[string]string)
	if dir == "" {
		return models, nil
	}
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != vocabFile {
			return nil
		}
		rel, err := filepath.Rel(abs, filepath.Dir(p))
		if err != nil || rel == "." {
			return nil
		}
		models[filepath.ToSlash(rel)] = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan dir: %w", err)
	}
	return models, nil
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
