// Package docs registers the OpenAPI document served at /swagger/doc.json.
// Regenerate with: swag init -g cmd/ledgerwise-core/main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "User login",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/domain.LoginRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.LoginResponse"}},
                    "400": {"description": "Invalid request body", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "401": {"description": "Invalid credentials or account disabled", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Authentication"],
                "summary": "Logout user",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/http.StatusResponse"}}}
            }
        },
        "/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Authentication"],
                "summary": "Get current session",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.AuthContext"}}}
            }
        },
        "/assistant/chat": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Assistant"],
                "summary": "Chat turn",
                "description": "Answers a question grounded in the caller's products, sales and debts",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/domain.ChatRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.ChatResponse"}},
                    "400": {"description": "Empty message and image", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "402": {"description": "Active plan required", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "403": {"description": "Conversation belongs to another user", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "413": {"description": "Request body too large", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "502": {"description": "Generation failed", "schema": {"$ref": "#/definitions/http.ChatErrorResponse"}},
                    "503": {"description": "Retrieval unavailable", "schema": {"$ref": "#/definitions/http.ChatErrorResponse"}}
                }
            }
        },
        "/assistant/conversations": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Assistant"],
                "summary": "Create conversation",
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/http.ConversationCreatedResponse"}}}
            }
        },
        "/assistant/conversations/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Assistant"],
                "summary": "Get conversation",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Conversation"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/assistant/index/refresh": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Assistant"],
                "summary": "Rebuild the caller's index",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.IndexRefreshResponse"}},
                    "503": {"description": "Index unavailable", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/assistant/status": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Assistant"],
                "summary": "Assistant status",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/http.AssistantStatusResponse"}}}
            }
        }
    },
    "definitions": {
        "domain.LoginRequest": {
            "type": "object",
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "domain.LoginResponse": {
            "type": "object",
            "properties": {"token": {"type": "string"}, "expires_at": {"type": "string"}}
        },
        "domain.AuthContext": {
            "type": "object",
            "properties": {
                "user_id": {"type": "string"},
                "email": {"type": "string"},
                "currency": {"type": "string"},
                "plan": {"type": "string", "enum": ["free", "basic", "pro"]},
                "plan_expires_at": {"type": "string"},
                "session_id": {"type": "string"}
            }
        },
        "domain.ChatRequest": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "imageBase64": {"type": "string"},
                "conversationId": {"type": "string"}
            }
        },
        "domain.ChatResponse": {
            "type": "object",
            "properties": {
                "response": {"type": "string"},
                "conversationId": {"type": "string"},
                "sources": {"type": "array", "items": {"type": "string"}},
                "timestamp": {"type": "string"}
            }
        },
        "domain.Message": {
            "type": "object",
            "properties": {
                "role": {"type": "string", "enum": ["user", "assistant"]},
                "content": {"type": "string"},
                "image_analysis": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "domain.Conversation": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "user_id": {"type": "string"},
                "messages": {"type": "array", "items": {"$ref": "#/definitions/domain.Message"}},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "http.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "http.ChatErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "kind": {"type": "string", "enum": ["retrieval", "generation"]},
                "conversationId": {"type": "string"},
                "userMessageRecorded": {"type": "boolean"}
            }
        },
        "http.StatusResponse": {
            "type": "object",
            "properties": {"status": {"type": "string"}}
        },
        "http.ConversationCreatedResponse": {
            "type": "object",
            "properties": {"conversationId": {"type": "string"}}
        },
        "http.IndexRefreshResponse": {
            "type": "object",
            "properties": {"status": {"type": "string"}, "documents": {"type": "integer"}}
        },
        "http.AssistantStatusResponse": {
            "type": "object",
            "properties": {
                "embeddingAvailable": {"type": "boolean"},
                "llmAvailable": {"type": "boolean"},
                "canChat": {"type": "boolean"},
                "cachedUsers": {"type": "integer"},
                "inFlightBuilds": {"type": "integer"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "JWT Bearer token. Format: \"Bearer {token}\"",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Ledgerwise Core API",
	Description:      "Finance assistant API. Answers questions grounded in each user's own products, sales and debts.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
