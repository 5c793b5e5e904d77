package main

// General API documentation for swaggo. Run `swag init -g docs.go -d cmd/tokenizerd` to regenerate
// swagger_doc.go after changing handler annotations.
//
// @title           tokenizerd API
// @version         1.0
// @description     Token counting across OpenAI and Hugging Face tokenizers.
//
// @contact.name   tokenizerd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
