// Package docs registers the keyvisor OpenAPI document with swag. The
// swagger build of internal/httpapi links it in and serves it at
// /swagger/doc.json.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/counters": {
            "get": {
                "produces": ["application/json"],
                "tags": ["counters"],
                "summary": "List counters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.CountersResponse"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["counters"],
                "summary": "Add a counter",
                "parameters": [
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.AddCounterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/types.Counter"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "415": {"description": "Unsupported Media Type", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/counters/{id}": {
            "delete": {
                "tags": ["counters"],
                "summary": "Remove a counter and cancel its worker",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/uploads": {
            "get": {
                "produces": ["application/json"],
                "tags": ["uploads"],
                "summary": "List uploads",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.UploadsResponse"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["uploads"],
                "summary": "Request an upload of a local file",
                "parameters": [
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.AddUploadRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/types.Upload"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "415": {"description": "Unsupported Media Type", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/uploads/{id}": {
            "delete": {
                "tags": ["uploads"],
                "summary": "Remove an upload, aborting it if in flight",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/events": {
            "get": {
                "produces": ["text/event-stream"],
                "tags": ["events"],
                "summary": "Stream bus events as Server-Sent Events",
                "parameters": [
                    {"type": "array", "items": {"type": "string"}, "collectionFormat": "multi", "name": "type", "in": "query", "description": "Event types to include; repeat or comma separate"}
                ],
                "responses": {
                    "200": {"description": "event stream", "schema": {"$ref": "#/definitions/types.Event"}}
                }
            }
        },
        "/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Worker status per entity kind",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}
                }
            }
        },
        "/healthz": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["system"],
                "summary": "Liveness probe",
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/readyz": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["system"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "ready"},
                    "503": {"description": "starting"}
                }
            }
        },
        "/metrics": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["system"],
                "summary": "Prometheus metrics",
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "types.AddCounterRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string", "example": "foo"},
                "interval_ms": {"type": "integer", "example": 500},
                "limit": {"type": "integer", "example": 10}
            }
        },
        "types.AddUploadRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string", "example": "report.pdf"},
                "path": {"type": "string", "example": "/tmp/report.pdf"}
            }
        },
        "types.Counter": {
            "type": "object",
            "properties": {
                "count": {"type": "integer", "example": 3},
                "id": {"type": "string", "example": "foo"},
                "interval_ms": {"type": "integer", "example": 1000},
                "limit": {"type": "integer", "example": 10}
            }
        },
        "types.CountersResponse": {
            "type": "object",
            "properties": {
                "counters": {"type": "array", "items": {"$ref": "#/definitions/types.Counter"}}
            }
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer", "example": 400},
                "error": {"type": "string", "example": "invalid JSON body"}
            }
        },
        "types.Event": {
            "type": "object",
            "properties": {
                "data": {},
                "key": {"type": "string", "example": "foo"},
                "time_unix_ms": {"type": "integer", "example": 1700000000000},
                "type": {"type": "string", "example": "counter.increment"}
            }
        },
        "types.KindStatus": {
            "type": "object",
            "properties": {
                "kind": {"type": "string", "example": "counter"},
                "workers": {"type": "array", "items": {"$ref": "#/definitions/types.WorkerStatus"}}
            }
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "kinds": {"type": "array", "items": {"$ref": "#/definitions/types.KindStatus"}},
                "ready": {"type": "boolean", "example": true},
                "server_time_unix": {"type": "integer", "example": 1700000000},
                "uptime_seconds": {"type": "integer", "example": 3600}
            }
        },
        "types.Upload": {
            "type": "object",
            "properties": {
                "attempt": {"type": "integer", "example": 1},
                "error": {"type": "string"},
                "id": {"type": "string", "example": "9b2f7f44-4c8a-4b4e-9a39-2f4a1f0e8c11"},
                "location": {"type": "string"},
                "name": {"type": "string", "example": "report.pdf"},
                "path": {"type": "string", "example": "/var/spool/keyvisor/report.pdf"},
                "sent": {"type": "integer", "example": 524288},
                "size": {"type": "integer", "example": 1048576},
                "status": {"type": "string", "example": "uploading"}
            }
        },
        "types.UploadsResponse": {
            "type": "object",
            "properties": {
                "uploads": {"type": "array", "items": {"$ref": "#/definitions/types.Upload"}}
            }
        },
        "types.WorkerStatus": {
            "type": "object",
            "properties": {
                "ended_unix_ms": {"type": "integer"},
                "error": {"type": "string"},
                "incarnation": {"type": "integer", "example": 1},
                "key": {"type": "string", "example": "foo"},
                "started_unix_ms": {"type": "integer", "example": 1700000000000},
                "state": {"type": "string", "example": "running"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "keyvisor API",
	Description:      "HTTP API for the per-entity task supervisor: counters, uploads and the live event stream.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
