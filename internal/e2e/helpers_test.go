package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tokenizerd/internal/httpapi"
	"tokenizerd/internal/registry"
	"tokenizerd/internal/tokenizer"
	"tokenizerd/pkg/types"
)

// newServer wires providers into a registry behind the real router.
func newServer(t *testing.T, preload []string, providers ...tokenizer.Provider) (*httptest.Server, *registry.Registry) {
	t.Helper()
	reg, err := registry.New(context.Background(), registry.Config{
		Providers: providers,
		Preload:   preload,
		Logger:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	srv := httptest.NewServer(httpapi.NewMux(reg))
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = reg.Close(ctx)
	})
	return srv, reg
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func count(t *testing.T, base, model, text string) types.CountResponse {
	t.Helper()
	payload, _ := json.Marshal(types.CountRequest{Text: text, Model: model})
	resp, body := httpPostJSON(t, base+"/tokenizers/count", payload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("count %s: status %d body=%s", model, resp.StatusCode, body)
	}
	var out types.CountResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func listActive(t *testing.T, base string) []string {
	t.Helper()
	resp, body := httpGet(t, base+"/tokenizers/list")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: status %d", resp.StatusCode)
	}
	var out types.ListResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out.ActiveTokenizers
}

// eventually polls cond until it holds or two seconds pass.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
