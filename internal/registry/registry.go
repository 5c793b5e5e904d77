package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/rs/zerolog"

	"tokenizerd/internal/tokenizer"
	"tokenizerd/pkg/types"
)

// Registry maps model names to tokenizers. One lock guards the resident
// instances, the outstanding load tickets, the failure marks and the load
// queue.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]tokenizer.Tokenizer
	tickets   map[string]time.Time
	failures  map[string]string
	queue     deque.Deque[string]
	cond      *sync.Cond
	closed    bool
	wg        sync.WaitGroup

	def        tokenizer.Tokenizer
	defName    string
	workers    int
	providers  map[tokenizer.Family]tokenizer.Provider
	classifier *classifier
	pub        EventPublisher
	log        zerolog.Logger
	startTime  time.Time
}

// New builds the default tokenizer and every preload name synchronously, then
// starts the background load pool. A failure on either path is returned and
// the registry must not be used.
func New(ctx context.Context, cfg Config) (*Registry, error) {
	if len(cfg.Providers) == 0 {
		return nil, errNoProviders
	}
	cfg = cfg.withDefaults()
	r := &Registry{
		instances: make(map[string]tokenizer.Tokenizer),
		tickets:   make(map[string]time.Time),
		failures:  make(map[string]string),
		defName:   cfg.DefaultModel,
		workers:   cfg.Workers,
		providers: make(map[tokenizer.Family]tokenizer.Provider, len(cfg.Providers)),
		pub:       cfg.Publisher,
		log:       cfg.Logger,
		startTime: time.Now(),
	}
	r.cond = sync.NewCond(&r.mu)
	for _, p := range cfg.Providers {
		if _, dup := r.providers[p.Family()]; !dup {
			r.providers[p.Family()] = p
		}
	}
	r.classifier = newClassifier(cfg.Providers, cfg.Logger)

	if err := r.RegisterSync(ctx, cfg.DefaultModel); err != nil {
		return nil, startupError{model: cfg.DefaultModel, err: err}
	}
	r.mu.RLock()
	r.def = r.instances[cfg.DefaultModel]
	r.mu.RUnlock()

	for _, name := range cfg.Preload {
		if err := r.RegisterSync(ctx, name); err != nil {
			return nil, startupError{model: name, preload: true, err: err}
		}
	}
	r.startWorkers(cfg.Workers)
	r.emit("registry_ready", cfg.DefaultModel, map[string]any{"preloaded": len(cfg.Preload), "workers": cfg.Workers})
	return r, nil
}

// Lookup returns the tokenizer for name without waiting on construction.
// Failed names and names that are not resident yet get the default tokenizer;
// the latter are scheduled for a background load.
func (r *Registry) Lookup(name string) tokenizer.Tokenizer {
	r.mu.RLock()
	if _, failed := r.failures[name]; failed {
		r.mu.RUnlock()
		return r.def
	}
	if tk, ok := r.instances[name]; ok {
		r.mu.RUnlock()
		return tk
	}
	r.mu.RUnlock()

	r.scheduleLoad(name)
	return r.def
}

// RegisterSync classifies and constructs name on the calling goroutine and
// installs the result. It is a no-op for resident names. Construction errors
// are returned to the caller and do not mark the name as failed.
func (r *Registry) RegisterSync(ctx context.Context, name string) error {
	r.mu.Lock()
	if _, ok := r.instances[name]; ok {
		r.mu.Unlock()
		return nil
	}
	if cause, failed := r.failures[name]; failed {
		r.mu.Unlock()
		return loadFailedError{model: name, cause: cause}
	}
	if _, ticketed := r.tickets[name]; ticketed {
		r.mu.Unlock()
		return loadInProgressError{model: name}
	}
	r.tickets[name] = time.Now()
	r.mu.Unlock()

	start := time.Now()
	family, tk, err := r.build(ctx, name)
	observeLoad(string(family), time.Since(start).Seconds(), err)

	r.mu.Lock()
	delete(r.tickets, name)
	if err == nil {
		r.instances[name] = tk
	}
	r.mu.Unlock()

	if err != nil {
		r.emit("register_failed", name, map[string]any{"family": string(family), "error": err.Error()})
		return err
	}
	r.emit("registered", name, map[string]any{"family": string(family)})
	return nil
}

// ListActive returns the resident names in ascending order. Loading and failed
// names are not listed.
func (r *Registry) ListActive() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.instances))
	for name := range r.instances {
		out = append(out, name)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Default returns the default tokenizer.
func (r *Registry) Default() tokenizer.Tokenizer { return r.def }

// Ready reports whether the registry can serve lookups.
func (r *Registry) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.def != nil && !r.closed
}

// Status builds a detailed view of every name the registry knows about.
func (r *Registry) Status() types.RegistryStatus {
	r.mu.RLock()
	entries := make([]types.TokenizerStatus, 0, len(r.instances)+len(r.tickets)+len(r.failures))
	for name, tk := range r.instances {
		entries = append(entries, types.TokenizerStatus{Model: name, State: "resident", Family: string(tk.Family())})
	}
	for name := range r.tickets {
		entries = append(entries, types.TokenizerStatus{Model: name, State: "loading"})
	}
	for name, cause := range r.failures {
		entries = append(entries, types.TokenizerStatus{Model: name, State: "failed", Error: cause})
	}
	resp := types.RegistryStatus{
		Default:       r.defName,
		Workers:       r.workers,
		Queued:        r.queue.Len(),
		UptimeSeconds: int64(time.Since(r.startTime).Seconds()),
	}
	r.mu.RUnlock()

	for i := range entries {
		if entries[i].Family != "" {
			continue
		}
		if f, ok := r.classifier.family(entries[i].Model); ok {
			entries[i].Family = string(f)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Model < entries[j].Model })
	resp.Tokenizers = entries
	return resp
}

// Close stops the load workers. Idle workers exit at once; a worker that is
// constructing finishes first. Close returns ctx.Err() if that takes longer
// than ctx allows. Lookups keep working after Close but no longer schedule
// loads.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.cond.Broadcast()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.emit("registry_closed", r.defName, nil)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
