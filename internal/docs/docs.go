// Package docs holds the OpenAPI description served under /swagger when
// SWAGGER_ENABLED is set. It mirrors the godoc annotations on the handlers.
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
        "/accounts": {
            "get": {
                "description": "Returns each tracked account with its cursor, in-flight flag, last cycle result and ledger counts.",
                "produces": ["application/json"],
                "tags": ["Accounts"],
                "summary": "List tracked accounts",
                "operationId": "listAccounts",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListAccountsResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/accounts/{account}/cycles": {
            "post": {
                "description": "Runs a full fetch, publish, anchor and patch cycle for the account and waits for it. A failed cycle returns 502 with the result body.",
                "produces": ["application/json"],
                "tags": ["Accounts"],
                "summary": "Run one cycle now",
                "operationId": "triggerCycle",
                "parameters": [
                    {"type": "string", "example": "alice", "description": "Tracked account", "name": "account", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.CycleResultResponse"}},
                    "404": {"description": "Unknown account", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Cycle already in flight", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "502": {"description": "Cycle failed", "schema": {"$ref": "#/definitions/handlers.CycleResultResponse"}}
                }
            }
        },
        "/cycles": {
            "get": {
                "description": "Returns journaled cycle runs, newest first. Supports a weak ETag via If-None-Match and may return 304.",
                "produces": ["application/json"],
                "tags": ["Cycles"],
                "summary": "List cycle runs (paginated)",
                "operationId": "listCycles",
                "parameters": [
                    {"type": "string", "example": "alice", "description": "Restrict to one account", "name": "account", "in": "query"},
                    {"type": "string", "description": "Return 304 if ETag matches", "name": "If-None-Match", "in": "header"},
                    {"minimum": 1, "type": "integer", "default": 1, "description": "Page number", "name": "page", "in": "query"},
                    {"maximum": 100, "minimum": 1, "type": "integer", "default": 20, "description": "Items per page", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/handlers.ListCyclesResponse"},
                        "headers": {"ETag": {"type": "string", "description": "Weak ETag for current result"}}
                    },
                    "304": {"description": "Not Modified", "schema": {"type": "string"}},
                    "404": {"description": "Unknown account", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Journal disabled", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.CycleRun": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "account": {"type": "string"},
                "state": {"type": "string"},
                "reached": {"type": "string"},
                "fetched": {"type": "integer"},
                "published": {"type": "integer"},
                "existing": {"type": "integer"},
                "created": {"type": "integer"},
                "patched": {"type": "integer"},
                "failures": {"type": "integer"},
                "cursor": {"type": "string"},
                "error": {"type": "string"},
                "started_at": {"type": "string"},
                "finished_at": {"type": "string"}
            }
        },
        "handlers.AccountResponse": {
            "type": "object",
            "properties": {
                "account": {"type": "string", "example": "alice"},
                "cursor": {"type": "string", "example": "1710000000000000001"},
                "in_flight": {"type": "boolean"},
                "last": {"$ref": "#/definitions/handlers.CycleResultResponse"},
                "anchors": {"type": "object", "additionalProperties": {"type": "integer", "format": "int64"}}
            }
        },
        "handlers.CycleResultResponse": {
            "type": "object",
            "properties": {
                "run_id": {"type": "string", "example": "5b0c7f2e-8f43-4c4e-9d6b-0c1f8e0f6d11"},
                "account": {"type": "string", "example": "alice"},
                "state": {"type": "string", "example": "done"},
                "reached": {"type": "string", "example": "anchored"},
                "fetched": {"type": "integer"},
                "reposts": {"type": "integer"},
                "malformed": {"type": "integer"},
                "published": {"type": "integer"},
                "existing": {"type": "integer"},
                "created": {"type": "integer"},
                "patched": {"type": "integer"},
                "item_failures": {"type": "integer"},
                "cursor": {"type": "string"},
                "error": {"type": "string"},
                "started_at": {"type": "string"},
                "finished_at": {"type": "string"},
                "duration_ms": {"type": "integer"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string", "example": "123e4567-e89b-12d3-a456-426614174000"},
                "code": {"type": "string", "example": "unknown_account"},
                "message": {"type": "string", "example": "account is not tracked"}
            }
        },
        "handlers.ListAccountsResponse": {
            "type": "object",
            "properties": {
                "accounts": {"type": "array", "items": {"$ref": "#/definitions/handlers.AccountResponse"}}
            }
        },
        "handlers.ListCyclesResponse": {
            "type": "object",
            "properties": {
                "cycles": {"type": "array", "items": {"$ref": "#/definitions/domain.CycleRun"}},
                "pagination": {"$ref": "#/definitions/handlers.Pagination"}
            }
        },
        "handlers.Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"},
                "has_next": {"type": "boolean"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "anchord admin API",
	Description:      "Operational surface of the tweet anchoring daemon: account status, manual cycles and cycle history.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
