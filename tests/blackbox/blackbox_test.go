package blackbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"testing"
	"time"
)

// tinyVocab merges "Hello" and " world" into one token each.
const tinyVocab = `{
  "pre_tokenizer": {"type": "ByteLevel", "add_prefix_space": false, "use_regex": true},
  "model": {
    "type": "BPE",
    "vocab": {"H": 0, "e": 1, "l": 2, "o": 3, "Ġ": 4, "w": 5, "r": 6, "d": 7,
              "He": 8, "ll": 9, "llo": 10, "Hello": 11, "Ġw": 12, "or": 13,
              "Ġwor": 14, "ld": 15, "Ġworld": 16},
    "merges": ["H e", "l l", "ll o", "He llo", "Ġ w", "o r", "Ġw or", "l d", "Ġwor ld"]
  }
}`

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func projectRootFromThisFile(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// this file: <root>/tests/blackbox/blackbox_test.go
	return filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
}

func buildBinary(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("blackbox tests build the binary; skipped in -short mode")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not in PATH")
	}
	binPath := filepath.Join(t.TempDir(), "tokenizerd")
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/tokenizerd")
	cmd.Dir = projectRootFromThisFile(t)
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(out))
	}
	return binPath
}

// createTokenizerDir lays out <dir>/<model>/tokenizer.json for each model.
func createTokenizerDir(t *testing.T, models ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, m := range models {
		p := filepath.Join(dir, filepath.FromSlash(m))
		if err := os.MkdirAll(p, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", p, err)
		}
		if err := os.WriteFile(filepath.Join(p, "tokenizer.json"), []byte(tinyVocab), 0o644); err != nil {
			t.Fatalf("write vocab %s: %v", p, err)
		}
	}
	return dir
}

// baseArgs keeps the binary off the network: embedded tiktoken ranks and no hub.
func baseArgs(port int, tokDir string) []string {
	return []string{
		"--addr", fmt.Sprintf("127.0.0.1:%d", port),
		"--default-model", "cl100k_base",
		"--tiktoken-offline",
		"--hub-disabled",
		"--tokenizer-dir", tokDir,
		"--log-format", "console",
	}
}

func startServer(t *testing.T, bin string, args ...string) string {
	t.Helper()
	port := findFreePort(t)
	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	cmd := exec.Command(bin, append(baseArgs(port, args[0]), args[1:]...)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() { _ = cmd.Process.Kill(); _ = cmd.Wait() })
	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := http.Get(base + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not become healthy in time")
		}
		time.Sleep(50 * time.Millisecond)
	}
	return base
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func postJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

type countResp struct {
	TokenCount int    `json:"token_count"`
	Model      string `json:"model"`
	Tokenizer  string `json:"tokenizer"`
}

func countTokens(t *testing.T, base, model, text string) countResp {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{"model": model, "text": text})
	resp, body := postJSON(t, base+"/tokenizers/count", payload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("count %s: %d %s", model, resp.StatusCode, string(body))
	}
	var out countResp
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("count json: %v body=%s", err, string(body))
	}
	return out
}

func TestBlackbox_Flow(t *testing.T) {
	bin := buildBinary(t)
	tokDir := createTokenizerDir(t, "acme/tiny")
	base := startServer(t, bin, tokDir, "--preload", "acme/tiny")

	resp, body := get(t, base+"/readyz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/readyz %d %s", resp.StatusCode, string(body))
	}

	resp, body = get(t, base+"/tokenizers/list")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/tokenizers/list %d %s", resp.StatusCode, string(body))
	}
	var list struct {
		Active []string `json:"active_tokenizers"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("list json: %v body=%s", err, string(body))
	}
	if !slices.Equal(list.Active, []string{"acme/tiny", "cl100k_base"}) {
		t.Fatalf("active=%v", list.Active)
	}

	if got := countTokens(t, base, "acme/tiny", "Hello world"); got.TokenCount != 2 || got.Tokenizer != "huggingface" {
		t.Fatalf("acme/tiny: %+v", got)
	}
	if got := countTokens(t, base, "cl100k_base", "Hello world"); got.TokenCount != 2 || got.Tokenizer != "openai" {
		t.Fatalf("cl100k_base: %+v", got)
	}
	// Unknown names are answered by the default.
	if got := countTokens(t, base, "nope/missing", "Hello world"); got.Model != "cl100k_base" {
		t.Fatalf("fallback: %+v", got)
	}

	resp, body = postJSON(t, base+"/tokenizers/count", []byte(`{"text":"hi"}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing model: expected 400, got %d %s", resp.StatusCode, string(body))
	}
}

func TestBlackbox_PreloadFailureExits(t *testing.T) {
	bin := buildBinary(t)
	port := findFreePort(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	args := append(baseArgs(port, t.TempDir()), "--preload", "nope/missing")
	out, err := exec.CommandContext(ctx, bin, args...).CombinedOutput()
	var exitErr *exec.ExitError
	if err == nil || !errors.As(err, &exitErr) || exitErr.ExitCode() == 0 {
		t.Fatalf("expected non-zero exit, got err=%v output=%s", err, string(out))
	}
	if !bytes.Contains(out, []byte("nope/missing")) {
		t.Fatalf("expected the failing name in output: %s", string(out))
	}
}
