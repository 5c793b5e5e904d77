package registry

import "sync"

// Event represents a registry lifecycle event: a name, the model it concerns
// and optional fields.
type Event struct {
	Name   string
	Model  string
	Fields map[string]any
}

// EventPublisher receives events from the registry. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// emit logs e with an event field and hands it to the publisher.
func (r *Registry) emit(name, model string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	ev := r.log.Debug()
	if _, failed := fields["error"]; failed {
		ev = r.log.Warn()
	}
	ev.Str("event", name).Str("model", model).Fields(fields).Msg("registry")
	r.pub.Publish(Event{Name: name, Model: model, Fields: fields})
}

// MemoryPublisher records every event. Tests use it to count lifecycle
// transitions per model.
type MemoryPublisher struct {
	mu  sync.Mutex
	log []Event
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log = append(p.log, e)
}

// Events returns a copy of the recorded events, oldest first.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.log...)
}

// Count returns how many events named name were published for model.
func (p *MemoryPublisher) Count(name, model string) (n int) {
	for _, e := range p.Events() {
		if e.Name == name && e.Model == model {
			n++
		}
	}
	return n
}
