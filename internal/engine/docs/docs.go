// Package docs holds the OpenAPI document served under /swagger. Regenerate with
// swag init -g cmd/signal-service/main.go -o internal/engine/docs.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/signals": {
            "get": {
                "produces": ["application/json"],
                "tags": ["signals"],
                "summary": "List signals",
                "parameters": [
                    {"type": "integer", "name": "user_id", "in": "query"},
                    {"type": "string", "name": "status", "in": "query"},
                    {"type": "string", "name": "market", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.SignalPage"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.ActionResult"}}
                }
            }
        },
        "/signals/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["signals"],
                "summary": "Get a signal by ID",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.ActionResult"}}
                }
            }
        },
        "/signals/{id}/buy": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["signals"],
                "summary": "Buy a pending signal",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.ManualBuyRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.ActionResult"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/dto.ActionResult"}}
                }
            }
        },
        "/signals/{id}/close": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["signals"],
                "summary": "Close a bought signal",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.ManualCloseRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.ActionResult"}}
                }
            }
        },
        "/users/{user_id}/signal-stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["signals"],
                "summary": "Get signal statistics for a user",
                "parameters": [{"type": "integer", "name": "user_id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.SignalStats"}}
                }
            }
        },
        "/users/{user_id}/auto-trading-settings": {
            "get": {
                "produces": ["application/json"],
                "tags": ["settings"],
                "summary": "Get auto-trading settings",
                "parameters": [{"type": "integer", "name": "user_id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            },
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["settings"],
                "summary": "Update auto-trading settings",
                "parameters": [
                    {"type": "integer", "name": "user_id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/admin/signals": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Create a manual signal",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/dto.ActionResult"}}}
            }
        },
        "/admin/scheduler/start": {
            "post": {"tags": ["admin"], "summary": "Start the scheduler", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.ActionResult"}}}}
        },
        "/admin/scheduler/stop": {
            "post": {"tags": ["admin"], "summary": "Stop the scheduler", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.ActionResult"}}}}
        },
        "/admin/scheduler/status": {
            "get": {"tags": ["admin"], "summary": "Scheduler status", "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}}
        },
        "/admin/scheduler/tasks/{type}/run": {
            "post": {
                "tags": ["admin"],
                "summary": "Run a sweep now",
                "parameters": [{"type": "string", "name": "type", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.ActionResult"}}}
            }
        },
        "/executions": {
            "get": {
                "tags": ["executions"],
                "summary": "List sweep runs",
                "parameters": [
                    {"type": "string", "name": "task_type", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"type": "object"}}}}
            }
        },
        "/executions/{id}": {
            "get": {
                "tags": ["executions"],
                "summary": "Get an execution history by ID",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        }
    },
    "definitions": {
        "dto.ActionResult": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {}
            }
        },
        "dto.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "dto.ManualBuyRequest": {
            "type": "object",
            "required": ["user_id"],
            "properties": {
                "user_id": {"type": "integer"},
                "amount": {"type": "string"}
            }
        },
        "dto.ManualCloseRequest": {
            "type": "object",
            "required": ["user_id"],
            "properties": {
                "user_id": {"type": "integer"},
                "exit_price": {"type": "string"}
            }
        },
        "dto.SignalPage": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"type": "object"}},
                "total": {"type": "integer"},
                "limit": {"type": "integer"},
                "offset": {"type": "integer"}
            }
        },
        "dto.SignalStats": {
            "type": "object",
            "properties": {
                "user_id": {"type": "integer"},
                "total_signals": {"type": "integer"},
                "executed_signals": {"type": "integer"},
                "execution_rate": {"type": "number"},
                "wins": {"type": "integer"},
                "losses": {"type": "integer"},
                "win_rate": {"type": "number"},
                "avg_win_percent": {"type": "number"},
                "avg_loss_percent": {"type": "number"},
                "total_profit_loss": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Surge Signal API",
	Description:      "Crypto surge signals, auto-trading settings and sweep scheduling.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
