// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

// Package docs registers the OpenAPI document of the circulation API with
// swag. It is regenerated from the handler annotations by go generate in
// cmd/server.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "GitHub Repository",
            "url": "https://github.com/tomtom215/circulation/issues"
        },
        "license": {
            "name": "AGPL-3.0-or-later",
            "url": "https://www.gnu.org/licenses/agpl-3.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Core"
                ],
                "summary": "Health check",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/models.HealthStatus"
                                        }
                                    }
                                }
                            ]
                        }
                    }
                }
            }
        },
        "/api/v1/patrons/{patronID}/loans": {
            "get": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "description": "Returns the loans recorded locally for a patron. Run a sync first to pick up vendor changes.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Loans"
                ],
                "summary": "List loans",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Patron ID",
                        "name": "patronID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "type": "array",
                                            "items": {
                                                "$ref": "#/definitions/models.Loan"
                                            }
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "404": {
                        "description": "Patron not found",
                        "schema": {
                            "$ref": "#/definitions/circulation.ProblemDetail"
                        }
                    }
                }
            },
            "post": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "description": "Checks a title out. When no copy is free the patron joins the hold queue and a hold is returned instead.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Loans"
                ],
                "summary": "Borrow a title",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Patron ID",
                        "name": "patronID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Patron PIN",
                        "name": "X-Patron-Pin",
                        "in": "header"
                    },
                    {
                        "description": "Pool and optional delivery mechanism",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/models.BorrowRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Existing loan or hold",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/api.BorrowResult"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "201": {
                        "description": "New loan or hold",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/api.BorrowResult"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "$ref": "#/definitions/circulation.ProblemDetail"
                        }
                    },
                    "404": {
                        "description": "Patron or pool not found",
                        "schema": {
                            "$ref": "#/definitions/circulation.ProblemDetail"
                        }
                    },
                    "403": {
                        "description": "Loan or hold limit reached",
                        "schema": {
                            "$ref": "#/definitions/circulation.ProblemDetail"
                        }
                    },
                    "502": {
                        "description": "Vendor unavailable",
                        "schema": {
                            "$ref": "#/definitions/circulation.ProblemDetail"
                        }
                    }
                }
            }
        },
        "/api/v1/patrons/{patronID}/loans/{poolID}": {
            "delete": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "tags": [
                    "Loans"
                ],
                "summary": "Return a loan",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Patron ID",
                        "name": "patronID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Patron PIN",
                        "name": "X-Patron-Pin",
                        "in": "header"
                    },
                    {
                        "type": "integer",
                        "description": "License pool ID",
                        "name": "poolID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "Returned"
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "$ref": "#/definitions/circulation.ProblemDetail"
                        }
                    },
                    "404": {
                        "description": "Patron or pool not found",
                        "schema": {
                            "$ref": "#/definitions/circulation.ProblemDetail"
                        }
                    }
                }
            }
        },
        "/api/v1/patrons/{patronID}/loans/{poolID}/fulfill": {
            "get": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Loans"
                ],
                "summary": "Fulfill a loan",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Patron ID",
                        "name": "patronID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Patron PIN",
                        "name": "X-Patron-Pin",
                        "in": "header"
                    },
                    {
                        "type": "integer",
                        "description": "License pool ID",
                        "name": "poolID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "integer",
                        "description": "Delivery mechanism ID of the pool",
                        "name": "mechanism",
                        "in": "query",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Where a streaming reader sends the patron back to",
                        "name": "return_url",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/circulation.Fulfillment"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "302": {
                        "description": "Redirect to the content link"
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "$ref": "#/definitions/circulation.ProblemDetail"
                        }
                    },
                    "404": {
                        "description": "Patron or pool not found",
                        "schema": {
                            "$ref": "#/definitions/circulation.ProblemDetail"
                        }
                    }
                }
            }
        },
        "/api/v1/patrons/{patronID}/holds": {
            "get": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Holds"
                ],
                "summary": "List holds",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Patron ID",
                        "name": "patronID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "type": "array",
                                            "items": {
                                                "$ref": "#/definitions/models.Hold"
                                            }
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "404": {
                        "description": "Patron not found",
                        "schema": {
                            "$ref": "#/definitions/circulation.ProblemDetail"
                        }
                    }
                }
            },
            "post": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "description": "A title the patron already waits for answers with the local hold.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Holds"
                ],
                "summary": "Place a hold",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Patron ID",
                        "name": "patronID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Patron PIN",
                        "name": "X-Patron-Pin",
                        "in": "header"
                    },
                    {
                        "description": "Pool and optional notification email",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/models.HoldRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Existing hold",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/api.BorrowResult"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "201": {
                        "description": "New hold",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/api.BorrowResult"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "$ref": "#/definitions/circulation.ProblemDetail"
                        }
                    },
                    "404": {
                        "description": "Patron or pool not found",
                        "schema": {
                            "$ref": "#/definitions/circulation.ProblemDetail"
                        }
                    },
                    "403": {
                        "description": "Hold limit reached",
                        "schema": {
                            "$ref": "#/definitions/circulation.ProblemDetail"
                        }
                    }
                }
            }
        },
        "/api/v1/patrons/{patronID}/holds/{poolID}": {
            "delete": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "tags": [
                    "Holds"
                ],
                "summary": "Release a hold",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Patron ID",
                        "name": "patronID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Patron PIN",
                        "name": "X-Patron-Pin",
                        "in": "header"
                    },
                    {
                        "type": "integer",
                        "description": "License pool ID",
                        "name": "poolID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "Released"
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "$ref": "#/definitions/circulation.ProblemDetail"
                        }
                    },
                    "404": {
                        "description": "Patron or pool not found",
                        "schema": {
                            "$ref": "#/definitions/circulation.ProblemDetail"
                        }
                    }
                }
            }
        },
        "/api/v1/patrons/{patronID}/sync": {
            "post": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Sync"
                ],
                "summary": "Sync a bookshelf",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Patron ID",
                        "name": "patronID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Patron PIN",
                        "name": "X-Patron-Pin",
                        "in": "header"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/models.SyncResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "401": {
                        "description": "Vendor rejected the patron credentials",
                        "schema": {
                            "$ref": "#/definitions/circulation.ProblemDetail"
                        }
                    },
                    "404": {
                        "description": "Patron not found",
                        "schema": {
                            "$ref": "#/definitions/circulation.ProblemDetail"
                        }
                    }
                }
            }
        },
        "/api/v1/pools/{poolID}/availability": {
            "post": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Availability"
                ],
                "summary": "Refresh pool availability",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "License pool ID",
                        "name": "poolID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/models.AvailabilityResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "404": {
                        "description": "Pool not found",
                        "schema": {
                            "$ref": "#/definitions/circulation.ProblemDetail"
                        }
                    }
                }
            }
        },
        "/api/v1/titles/{titleID}/availability": {
            "post": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Availability"
                ],
                "summary": "Import a vendor title",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Overdrive title ID",
                        "name": "titleID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Known pool refreshed",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/models.AvailabilityResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "201": {
                        "description": "Pool created",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/models.AvailabilityResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "404": {
                        "description": "Vendor could not report on the title",
                        "schema": {
                            "$ref": "#/definitions/circulation.ProblemDetail"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "api.BorrowResult": {
            "type": "object",
            "properties": {
                "hold": {
                    "$ref": "#/definitions/models.Hold"
                },
                "loan": {
                    "$ref": "#/definitions/models.Loan"
                },
                "type": {
                    "type": "string",
                    "enum": [
                        "loan",
                        "hold"
                    ]
                }
            }
        },
        "circulation.Fulfillment": {
            "type": "object",
            "properties": {
                "collection_id": {
                    "type": "integer"
                },
                "content_link": {
                    "type": "string"
                },
                "content_type": {
                    "type": "string"
                },
                "data_source": {
                    "type": "string"
                },
                "identifier": {
                    "type": "string"
                },
                "identifier_type": {
                    "type": "string"
                },
                "scope_string": {
                    "type": "string"
                },
                "type": {
                    "type": "string",
                    "enum": [
                        "redirect",
                        "fetch",
                        "manifest"
                    ]
                }
            }
        },
        "circulation.ProblemDetail": {
            "type": "object",
            "properties": {
                "debug_message": {
                    "type": "string",
                    "description": "Raw vendor detail, only populated in debug mode."
                },
                "detail": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                },
                "title": {
                    "type": "string"
                },
                "type": {
                    "type": "string"
                }
            }
        },
        "models.APIResponse": {
            "type": "object",
            "properties": {
                "data": {},
                "metadata": {
                    "$ref": "#/definitions/models.Metadata"
                },
                "status": {
                    "type": "string"
                }
            }
        },
        "models.AvailabilityResponse": {
            "type": "object",
            "properties": {
                "changed": {
                    "type": "boolean"
                },
                "is_new": {
                    "type": "boolean"
                },
                "pool": {
                    "$ref": "#/definitions/models.LicensePool"
                }
            }
        },
        "models.BorrowRequest": {
            "type": "object",
            "required": [
                "pool_id"
            ],
            "properties": {
                "content_type": {
                    "type": "string",
                    "maxLength": 255
                },
                "drm_scheme": {
                    "type": "string",
                    "maxLength": 255
                },
                "pool_id": {
                    "type": "integer",
                    "minimum": 1
                }
            }
        },
        "models.HealthStatus": {
            "type": "object",
            "properties": {
                "database_connected": {
                    "type": "boolean"
                },
                "last_monitor_run": {
                    "type": "string",
                    "format": "date-time"
                },
                "status": {
                    "type": "string"
                },
                "uptime_seconds": {
                    "type": "number"
                },
                "version": {
                    "type": "string"
                }
            }
        },
        "models.Hold": {
            "type": "object",
            "properties": {
                "end": {
                    "type": "string",
                    "format": "date-time"
                },
                "id": {
                    "type": "integer"
                },
                "license_pool_id": {
                    "type": "integer"
                },
                "patron_id": {
                    "type": "integer"
                },
                "position": {
                    "type": "integer",
                    "description": "Zero means the title is ready to borrow."
                },
                "start": {
                    "type": "string",
                    "format": "date-time"
                }
            }
        },
        "models.HoldRequest": {
            "type": "object",
            "required": [
                "pool_id"
            ],
            "properties": {
                "email": {
                    "type": "string"
                },
                "pool_id": {
                    "type": "integer",
                    "minimum": 1
                }
            }
        },
        "models.Identifier": {
            "type": "object",
            "properties": {
                "identifier": {
                    "type": "string"
                },
                "type": {
                    "type": "string"
                }
            }
        },
        "models.LicensePool": {
            "type": "object",
            "properties": {
                "collection_id": {
                    "type": "integer"
                },
                "data_source": {
                    "type": "string"
                },
                "id": {
                    "type": "integer"
                },
                "identifier": {
                    "$ref": "#/definitions/models.Identifier"
                },
                "last_checked": {
                    "type": "string",
                    "format": "date-time"
                },
                "licenses_available": {
                    "type": "integer"
                },
                "licenses_owned": {
                    "type": "integer"
                },
                "licenses_reserved": {
                    "type": "integer"
                },
                "open_access": {
                    "type": "boolean"
                },
                "patrons_in_hold_queue": {
                    "type": "integer"
                },
                "work_id": {
                    "type": "integer"
                }
            }
        },
        "models.Loan": {
            "type": "object",
            "properties": {
                "end": {
                    "type": "string",
                    "format": "date-time"
                },
                "external_identifier": {
                    "type": "string"
                },
                "fulfillment_id": {
                    "type": "integer"
                },
                "id": {
                    "type": "integer"
                },
                "license_pool_id": {
                    "type": "integer"
                },
                "patron_id": {
                    "type": "integer"
                },
                "start": {
                    "type": "string",
                    "format": "date-time"
                }
            }
        },
        "models.Metadata": {
            "type": "object",
            "properties": {
                "query_time_ms": {
                    "type": "integer"
                },
                "request_id": {
                    "type": "string"
                },
                "timestamp": {
                    "type": "string",
                    "format": "date-time"
                }
            }
        },
        "models.SyncResponse": {
            "type": "object",
            "properties": {
                "holds_created": {
                    "type": "integer"
                },
                "holds_deleted": {
                    "type": "integer"
                },
                "holds_updated": {
                    "type": "integer"
                },
                "loans_created": {
                    "type": "integer"
                },
                "loans_deleted": {
                    "type": "integer"
                },
                "loans_updated": {
                    "type": "integer"
                }
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Staff JWT, sent as \"Bearer <token>\".",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds the document's general info. cmd/server sets Version
// and Host at startup.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:6500",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Circulation API",
	Description:      "Patron circulation and bookshelf sync against an Overdrive collection.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
