package types

// CountRequest is the body of POST /tokenizers/count.
type CountRequest struct {
	// Text to tokenize. An empty string yields a zero count.
	// example: Hello world
	Text string `json:"text" example:"Hello world"`
	// Model or encoding name to count against. Unknown names fall back to the
	// default tokenizer.
	// example: gpt-4o
	Model string `json:"model" example:"gpt-4o"`
}

// CountResponse is returned by POST /tokenizers/count. Model and Tokenizer
// describe the tokenizer that actually counted, which is the default one when
// the requested model is not resident yet.
type CountResponse struct {
	// Number of tokens in text.
	// example: 2
	TokenCount int `json:"token_count" example:"2"`
	// Model whose tokenizer produced the count.
	// example: gpt-4o
	Model string `json:"model" example:"gpt-4o"`
	// Tokenizer family tag: openai or huggingface.
	// example: openai
	Tokenizer string `json:"tokenizer" example:"openai"`
}

// ListResponse is returned by GET /tokenizers/list.
type ListResponse struct {
	// Names of resident tokenizers.
	// example: ["o200k_base","gpt-4o"]
	ActiveTokenizers []string `json:"active_tokenizers" example:"o200k_base,gpt-4o"`
}

// ServiceInfo is returned by GET /.
type ServiceInfo struct {
	// example: tokenizerd
	Service string `json:"service" example:"tokenizerd"`
	// example: 0.1.0
	Version string `json:"version" example:"0.1.0"`
	// example: running
	Status string `json:"status" example:"running"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: Field 'model' is required
	Error string `json:"error" example:"Field 'model' is required"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
