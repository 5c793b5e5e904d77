// Package registry owns the process-wide tokenizer cache. It is split by
// concern:
//
//   - registry.go: Registry type, New, Lookup, RegisterSync, ListActive, Status.
//   - config.go: Config and package defaults; New applies defaults.
//   - classifier.go: memoized family classification over provider probes.
//   - loader.go: fixed worker pool that builds tokenizers in the background.
//   - errors.go: startup error types and helpers.
//   - events.go: lifecycle events and the in-memory publisher.
//   - metrics.go: load counters and queue gauges.
//
// A lookup never waits on construction. Names that are not resident yet are
// scheduled for a background load and answered with the default tokenizer,
// and names whose construction failed keep answering with the default for the
// rest of the process lifetime. Resident entries are never replaced or evicted.
package registry
