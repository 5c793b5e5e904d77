package types

// TokenizerStatus describes one name known to the registry.
type TokenizerStatus struct {
	// Model name as requested.
	// example: Qwen/Qwen2.5-7B-Instruct
	Model string `json:"model" example:"Qwen/Qwen2.5-7B-Instruct"`
	// One of resident, loading or failed.
	// example: resident
	State string `json:"state" example:"resident"`
	// Classified family, empty until classification ran.
	// example: huggingface
	Family string `json:"family,omitempty" example:"huggingface"`
	// Construction error for failed names.
	Error string `json:"error,omitempty"`
}

// RegistryStatus is returned by GET /tokenizers/status.
type RegistryStatus struct {
	// Name of the default tokenizer.
	// example: o200k_base
	Default string `json:"default" example:"o200k_base"`
	// Number of background load workers.
	// example: 3
	Workers int `json:"workers" example:"3"`
	// Loads waiting for a free worker.
	// example: 0
	Queued int `json:"queued" example:"0"`
	// Every resident, loading and failed name, sorted by model.
	Tokenizers []TokenizerStatus `json:"tokenizers"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
}
