// Package docs holds the swagger document served under /swagger/.
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
        "/v1/elections": {
            "post": {
                "summary": "Initialize an election",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "string", "name": "Idempotency-Key", "in": "header"},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/InitializeElectionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ElectionResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "422": {"description": "Invalid configuration", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/elections/{election_id}": {
            "get": {
                "summary": "Get an election",
                "parameters": [
                    {"type": "string", "name": "election_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ElectionResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/elections/{election_id}/candidates": {
            "get": {
                "summary": "List candidates with tallies",
                "parameters": [
                    {"type": "string", "name": "election_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/CandidateListResponse"}}
                }
            },
            "post": {
                "summary": "Register a candidate before the election starts",
                "parameters": [
                    {"type": "string", "name": "election_id", "in": "path", "required": true},
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "string", "name": "Idempotency-Key", "in": "header"},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddCandidateRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/CandidateResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/elections/{election_id}/votes": {
            "post": {
                "summary": "Cast a D21 ballot",
                "parameters": [
                    {"type": "string", "name": "election_id", "in": "path", "required": true},
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "string", "name": "Idempotency-Key", "in": "header"},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CastVoteRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/VoterRecordResponse"}},
                    "400": {"description": "Ballot lists exceed the plus/minus slots", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "422": {"description": "Invalid ballot", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/elections/{election_id}/votes/me": {
            "get": {
                "summary": "Get the caller's voter record",
                "parameters": [
                    {"type": "string", "name": "election_id", "in": "path", "required": true},
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/VoterRecordResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/elections/{election_id}/finalize": {
            "post": {
                "summary": "Finalize an ended election",
                "parameters": [
                    {"type": "string", "name": "election_id", "in": "path", "required": true},
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "string", "name": "Idempotency-Key", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ElectionResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/elections/{election_id}/budget": {
            "get": {
                "summary": "Get the plus and minus vote budget",
                "parameters": [
                    {"type": "string", "name": "election_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/VoteBudgetResponse"}}
                }
            }
        }
    },
    "definitions": {
        "ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "InitializeElectionRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "start_time": {"type": "integer"},
                "end_time": {"type": "integer"},
                "num_winners": {"type": "integer"},
                "allow_minus_votes": {"type": "boolean"}
            }
        },
        "ElectionResponse": {
            "type": "object",
            "properties": {
                "election_id": {"type": "string"},
                "authority": {"type": "string"},
                "name": {"type": "string"},
                "description": {"type": "string"},
                "start_time": {"type": "integer"},
                "end_time": {"type": "integer"},
                "num_winners": {"type": "integer"},
                "allow_minus_votes": {"type": "boolean"},
                "candidate_count": {"type": "integer"},
                "voter_count": {"type": "integer"},
                "is_finalized": {"type": "boolean"},
                "finalized_at": {"type": "integer"},
                "replayed": {"type": "boolean"}
            }
        },
        "AddCandidateRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"}
            }
        },
        "CandidateResponse": {
            "type": "object",
            "properties": {
                "election_id": {"type": "string"},
                "candidate_id": {"type": "integer"},
                "name": {"type": "string"},
                "description": {"type": "string"},
                "plus_votes": {"type": "integer"},
                "minus_votes": {"type": "integer"}
            }
        },
        "CandidateListResponse": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/CandidateResponse"}}
            }
        },
        "CastVoteRequest": {
            "type": "object",
            "properties": {
                "plus_votes": {"type": "array", "items": {"type": "integer"}},
                "minus_votes": {"type": "array", "items": {"type": "integer"}}
            }
        },
        "VoterRecordResponse": {
            "type": "object",
            "properties": {
                "election_id": {"type": "string"},
                "voter": {"type": "string"},
                "plus_votes": {"type": "array", "items": {"type": "integer"}},
                "minus_votes": {"type": "array", "items": {"type": "integer"}},
                "has_voted": {"type": "boolean"},
                "cast_at": {"type": "integer"},
                "voter_count": {"type": "integer"}
            }
        },
        "VoteBudgetResponse": {
            "type": "object",
            "properties": {
                "election_id": {"type": "string"},
                "max_plus_votes": {"type": "integer"},
                "max_minus_votes": {"type": "integer"},
                "candidate_count": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "D21 Election Engine API",
	Description:      "Plus/minus (D21) elections: setup, candidate registration, ballots and finalization.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
