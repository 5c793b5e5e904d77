//go:build swagger

package main

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {"name": "tokenizerd maintainers"},
        "license": {"name": "MIT", "url": "https://opensource.org/licenses/MIT"},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/tokenizers/count": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["tokenizers"],
                "summary": "Count tokens",
                "parameters": [{
                    "in": "body", "name": "request", "required": true,
                    "schema": {"$ref": "#/definitions/types.CountRequest"}
                }],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.CountResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "415": {"description": "Unsupported Media Type", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/tokenizers/list": {
            "get": {
                "produces": ["application/json"],
                "tags": ["tokenizers"],
                "summary": "List resident tokenizers",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ListResponse"}}}
            }
        },
        "/tokenizers/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["tokenizers"],
                "summary": "Registry status",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.RegistryStatus"}}}
            }
        }
    },
    "definitions": {
        "types.CountRequest": {
            "type": "object",
            "properties": {
                "text": {"type": "string", "example": "Hello world"},
                "model": {"type": "string", "example": "gpt-4o"}
            }
        },
        "types.CountResponse": {
            "type": "object",
            "properties": {
                "token_count": {"type": "integer", "example": 2},
                "model": {"type": "string", "example": "gpt-4o"},
                "tokenizer": {"type": "string", "example": "openai"}
            }
        },
        "types.ListResponse": {
            "type": "object",
            "properties": {
                "active_tokenizers": {"type": "array", "items": {"type": "string"}}
            }
        },
        "types.TokenizerStatus": {
            "type": "object",
            "properties": {
                "model": {"type": "string"},
                "state": {"type": "string", "example": "resident"},
                "family": {"type": "string"},
                "error": {"type": "string"}
            }
        },
        "types.RegistryStatus": {
            "type": "object",
            "properties": {
                "default": {"type": "string", "example": "o200k_base"},
                "workers": {"type": "integer"},
                "queued": {"type": "integer"},
                "tokenizers": {"type": "array", "items": {"$ref": "#/definitions/types.TokenizerStatus"}},
                "uptime_seconds": {"type": "integer"}
            }
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "tokenizerd API",
	Description:      "Token counting across OpenAI and Hugging Face tokenizers.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
