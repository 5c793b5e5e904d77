package registry

import (
	"context"
	"fmt"
	"time"

	"tokenizerd/internal/tokenizer"
)

// startWorkers launches the background load pool.
func (r *Registry) startWorkers(n int) {
	for i := 0; i < n; i++ {
		r.wg.Add(1)
		go r.worker()
	}
}

// scheduleLoad installs a load ticket for name and queues it, unless name is
// already resident, ticketed, or failed.
func (r *Registry) scheduleLoad(name string) {
	if !r.enqueue(name) {
		return
	}
	r.emit("load_scheduled", name, nil)
}

func (r *Registry) enqueue(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	if _, ok := r.instances[name]; ok {
		return false
	}
	if _, ok := r.tickets[name]; ok {
		return false
	}
	if _, ok := r.failures[name]; ok {
		return false
	}
	r.tickets[name] = time.Now()
	r.queue.PushBack(name)
	loadQueueDepth.Set(float64(r.queue.Len()))
	r.cond.Signal()
	return true
}

// worker pops names off the queue until Close. A construction that never
// returns holds its worker for good.
func (r *Registry) worker() {
	defer r.wg.Done()
	for {
		r.mu.Lock()
		for r.queue.Len() == 0 && !r.closed {
			r.cond.Wait()
		}
		if r.closed {
			r.mu.Unlock()
			return
		}
		name := r.queue.PopFront()
		loadQueueDepth.Set(float64(r.queue.Len()))
		r.mu.Unlock()

		r.load(name)
	}
}

// load builds name and settles its ticket into an instance or a failure mark.
func (r *Registry) load(name string) {
	loadsInflight.Inc()
	defer loadsInflight.Dec()

	start := time.Now()
	family, tk, err := r.build(context.Background(), name)
	elapsed := time.Since(start)
	observeLoad(string(family), elapsed.Seconds(), err)

	r.mu.Lock()
	delete(r.tickets, name)
	_, resident := r.instances[name]
	switch {
	case resident:
		// A synchronous registration won the race; keep its instance.
	case err != nil:
		r.failures[name] = err.Error()
	default:
		r.instances[name] = tk
	}
	r.mu.Unlock()

	if err != nil {
		r.emit("load_failed", name, map[string]any{"family": string(family), "error": err.Error()})
		return
	}
	r.emit("load_done", name, map[string]any{"family": string(family), "duration_ms": elapsed.Milliseconds()})
}

// build classifies name and constructs it with the matching provider. A
// panicking provider is reported as an error.
func (r *Registry) build(ctx context.Context, name string) (family tokenizer.Family, tk tokenizer.Tokenizer, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			tk = nil
			err = fmt.Errorf("construct %q panicked: %v", name, rec)
		}
	}()
	family = r.classifier.classify(ctx, name)
	p, ok := r.providers[family]
	if !ok {
		return family, nil, fmt.Errorf("no provider for family %q", family)
	}
	tk, err = p.Construct(ctx, name)
	if err == nil && tk == nil {
		err = fmt.Errorf("provider %q returned no tokenizer for %q", family, name)
	}
	return family, tk, err
}
