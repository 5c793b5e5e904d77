package tokenizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"tokenizerd/internal/common/fsutil"
)

// Defaults applied when corresponding HubConfig fields are unset.
const (
	DefaultHubEndpoint = "https://huggingface.co"
	defaultRevision    = "main"
	defaultHubTimeout  = 30 * time.Second
	defaultHubRetries  = 3
	maxVocabBytes      = 64 << 20
)

// HubConfig configures access to a Hugging Face compatible hub.
type HubConfig struct {
	Endpoint   string
	Token      string
	Revision   string
	CacheDir   string
	RateLimit  float64 // requests per second; <= 0 disables throttling
	Timeout    time.Duration
	MaxRetries int
	RetryWait  time.Duration // minimum backoff between retries
	Logger     zerolog.Logger
}

// HubClient fetches tokenizer.json files and keeps them in an on-disk cache.
type HubClient struct {
	endpoint string
	token    string
	revision string
	cacheDir string
	client   *retryablehttp.Client
	limiter  *rate.Limiter
	log      zerolog.Logger
}

// NewHubClient builds a client from cfg, applying defaults for unset fields.
func NewHubClient(cfg HubConfig) (*HubClient, error) {
	h := &HubClient{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		token:    cfg.Token,
		revision: cfg.Revision,
		log:      cfg.Logger,
	}
	if h.endpoint == "" {
		h.endpoint = DefaultHubEndpoint
	}
	if _, err := url.Parse(h.endpoint); err != nil {
		return nil, fmt.Errorf("hub endpoint: %w", err)
	}
	if h.revision == "" {
		h.revision = defaultRevision
	}
	if cfg.CacheDir != "" {
		dir, err := fsutil.ExpandHome(cfg.CacheDir)
		if err != nil {
			return nil, err
		}
		h.cacheDir = dir
	}
	c := retryablehttp.NewClient()
	c.RetryMax = cfg.MaxRetries
	if c.RetryMax <= 0 {
		c.RetryMax = defaultHubRetries
	}
	c.HTTPClient.Timeout = cfg.Timeout
	if c.HTTPClient.Timeout <= 0 {
		c.HTTPClient.Timeout = defaultHubTimeout
	}
	if cfg.RetryWait > 0 {
		c.RetryWaitMin = cfg.RetryWait
		c.RetryWaitMax = 4 * cfg.RetryWait
	}
	c.Logger = hubLogger{l: cfg.Logger}
	h.client = c
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return h, nil
}

func (h *HubClient) vocabURL(model string) string {
	return h.endpoint + "/" + model + "/resolve/" + url.PathEscape(h.revision) + "/" + vocabFile
}

func (h *HubClient) cachePath(model string) string {
	if h.cacheDir == "" {
		return ""
	}
	return filepath.Join(h.cacheDir, "hub", filepath.FromSlash(model), h.revision, vocabFile)
}

// Exists reports whether model has a vocabulary, either cached or on the hub.
func (h *HubClient) Exists(ctx context.Context, model string) (bool, error) {
	if err := validateModelName(model); err != nil {
		return false, nil
	}
	if p := h.cachePath(model); p != "" && fsutil.FileExists(p) {
		return true, nil
	}
	resp, err := h.do(ctx, http.MethodHead, model)
	if err != nil {
		return false, errIO(model, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case isMissingStatus(resp.StatusCode):
		return false, nil
	default:
		return false, errIO(model, fmt.Errorf("hub HEAD status %d", resp.StatusCode))
	}
}

// Fetch returns the tokenizer.json bytes for model, preferring the cache.
func (h *HubClient) Fetch(ctx context.Context, model string) ([]byte, error) {
	if err := validateModelName(model); err != nil {
		return nil, errValidation(model, err)
	}
	cp := h.cachePath(model)
	if cp != "" && fsutil.FileExists(cp) {
		b, err := os.ReadFile(cp)
		if err == nil {
			return b, nil
		}
		h.log.Warn().Str("model", model).Err(err).Msg("hub cache read failed; refetching")
	}
	resp, err := h.do(ctx, http.MethodGet, model)
	if err != nil {
		return nil, errIO(model, err)
	}
	defer resp.Body.Close()
	if isMissingStatus(resp.StatusCode) {
		return nil, errNotFound(model, fmt.Errorf("hub status %d", resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errIO(model, fmt.Errorf("hub status %d", resp.StatusCode))
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxVocabBytes+1))
	if err != nil {
		return nil, errIO(model, fmt.Errorf("read body: %w", err))
	}
	if len(b) > maxVocabBytes {
		return nil, errValidation(model, fmt.Errorf("vocabulary exceeds %d bytes", maxVocabBytes))
	}
	if cp != "" {
		if err := fsutil.WriteFileAtomic(cp, b, 0o644); err != nil {
			h.log.Warn().Str("model", model).Err(err).Msg("hub cache write failed")
		}
	}
	return b, nil
}

func (h *HubClient) do(ctx context.Context, method, model string) (*http.Response, error) {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, h.vocabURL(model), nil)
	if err != nil {
		return nil, err
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	return h.client.Do(req)
}

// The hub answers 401 for unknown repos to avoid leaking private names.
func isMissingStatus(code int) bool {
	return code == http.StatusNotFound || code == http.StatusUnauthorized || code == http.StatusForbidden
}

var errBadModelName = errors.New("invalid model name")

// validateModelName accepts "name" and "org/name" ids made of letters,
// digits, '-', '_' and '.'.
func validateModelName(model string) error {
	if model == "" || strings.HasPrefix(model, "/") || strings.HasSuffix(model, "/") {
		return errBadModelName
	}
	if strings.Count(model, "/") > 1 || strings.Contains(model, "..") {
		return errBadModelName
	}
	for _, r := range model {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == '/':
		default:
			return errBadModelName
		}
	}
	return nil
}

// hubLogger adapts zerolog to retryablehttp.LeveledLogger.
type hubLogger struct{ l zerolog.Logger }

func (h hubLogger) Error(msg string, kv ...interface{}) { h.l.Error().Fields(kv).Msg(msg) }
func (h hubLogger) Info(msg string, kv ...interface{})  { h.l.Debug().Fields(kv).Msg(msg) }
func (h hubLogger) Debug(msg string, kv ...interface{}) { h.l.Debug().Fields(kv).Msg(msg) }
func (h hubLogger) Warn(msg string, kv ...interface{})  { h.l.Warn().Fields(kv).Msg(msg) }
