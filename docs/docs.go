// Package docs registers the OpenAPI description served at /swagger/*any.
// Regenerate with `swag init -g cmd/bodytemp/main.go -o docs`.
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
        "/callback": {
            "post": {
                "description": "Verifies the X-Line-Signature of the raw body, then registers each text message as a body-temperature reading and replies to the sender. Non-text events are ignored.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Webhook"],
                "summary": "LINE webhook",
                "operationId": "lineCallback",
                "parameters": [
                    {"type": "string", "description": "Base64 HMAC-SHA256 of the body", "name": "X-Line-Signature", "in": "header", "required": true},
                    {"description": "LINE webhook payload", "name": "body", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.WebhookAck"}},
                    "400": {"description": "Malformed payload", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Missing or invalid signature", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "413": {"description": "Body too large", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/v1/dashboard/{anon}/readings": {
            "get": {
                "description": "Returns readings behind an anonymized name, newest first.",
                "produces": ["application/json"],
                "tags": ["Dashboard"],
                "summary": "List readings for a dashboard link",
                "operationId": "listReadings",
                "parameters": [
                    {"type": "string", "description": "Anonymized name", "name": "anon", "in": "path", "required": true},
                    {"type": "string", "description": "Return 304 if ETag matches", "name": "If-None-Match", "in": "header"},
                    {"minimum": 1, "type": "integer", "default": 1, "description": "Page number", "name": "page", "in": "query"},
                    {"maximum": 100, "minimum": 1, "type": "integer", "default": 20, "description": "Items per page", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListReadingsResponse"}, "headers": {"ETag": {"type": "string", "description": "Weak ETag for current result"}}},
                    "304": {"description": "Not Modified", "schema": {"type": "string"}},
                    "404": {"description": "Unknown dashboard", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Anonymized name shared by several senders", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/v1/dashboard/{anon}/readings.xlsx": {
            "get": {
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "tags": ["Dashboard"],
                "summary": "Download readings as a workbook",
                "operationId": "exportReadings",
                "parameters": [
                    {"type": "string", "description": "Anonymized name", "name": "anon", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "404": {"description": "Unknown dashboard", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Anonymized name shared by several senders", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "not_found"},
                "message": {"type": "string", "example": "resource not found"},
                "request_id": {"type": "string", "example": "123e4567-e89b-12d3-a456-426614174000"}
            }
        },
        "handlers.ListReadingsResponse": {
            "type": "object",
            "properties": {
                "anonymized_name": {"type": "string"},
                "pagination": {"$ref": "#/definitions/handlers.Pagination"},
                "readings": {"type": "array", "items": {"$ref": "#/definitions/handlers.Reading"}}
            }
        },
        "handlers.Pagination": {
            "type": "object",
            "properties": {
                "has_next": {"type": "boolean", "example": true},
                "page": {"type": "integer", "example": 1},
                "page_size": {"type": "integer", "example": 20},
                "total": {"type": "integer", "example": 42},
                "total_pages": {"type": "integer", "example": 3}
            }
        },
        "handlers.Reading": {
            "type": "object",
            "properties": {
                "datetime": {"type": "string", "example": "2024-05-01T08:30:00"},
                "temperature": {"type": "number", "example": 36.5}
            }
        },
        "handlers.WebhookAck": {
            "type": "object",
            "properties": {
                "failed": {"type": "integer", "example": 1},
                "message": {"type": "string", "example": "ok"},
                "processed": {"type": "integer", "example": 1},
                "received": {"type": "integer", "example": 2},
                "skipped": {"type": "integer", "example": 0}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Body temperature intake bot",
	Description:      "LINE webhook that records body-temperature readings, plus a read-only dashboard API.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
