package registry

import (
	"github.com/rs/zerolog"

	"tokenizerd/internal/tokenizer"
)

// Defaults applied when corresponding Config fields are unset.
const (
	DefaultModel   = "o200k_base"
	defaultWorkers = 3
)

// Config encapsulates all tunables for Registry construction.
type Config struct {
	// Providers in classification order. A name that no provider claims is
	// assigned to the first provider's family.
	Providers []tokenizer.Provider
	// DefaultModel is built synchronously by New and served for every name
	// that is not resident.
	DefaultModel string
	// Preload names are built synchronously after the default, in order.
	Preload []string
	// Workers is the size of the background load pool.
	Workers   int
	Publisher EventPublisher
	Logger    zerolog.Logger
}

func (c Config) withDefaults() Config {
	if c.DefaultModel == "" {
		c.DefaultModel = DefaultModel
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
	return c
}
