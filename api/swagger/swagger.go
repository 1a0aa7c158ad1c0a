package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "GradeSync API",
        "description": "Grade entry sessions with bulk operations, partial-failure saves and an offline queue.",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {
            "name": "Grading",
            "description": "Grading sessions, bulk operations and saves"
        },
        {
            "name": "Connectivity",
            "description": "Connectivity signals and the offline queue"
        },
        {
            "name": "Observability",
            "description": "Counters and health"
        }
    ],
    "paths": {
        "/grading/sessions": {
            "post": {
                "tags": [
                    "Grading"
                ],
                "summary": "Open a grading session",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/OpenSessionRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "502": {
                        "description": "Grade API error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            },
            "get": {
                "tags": [
                    "Grading"
                ],
                "summary": "List open grading sessions",
                "description": "Teachers see their own sessions; admins see all.",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/grading/sessions/{id}": {
            "get": {
                "tags": [
                    "Grading"
                ],
                "summary": "Get the merged grade view of a session",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Session ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Session not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            },
            "delete": {
                "tags": [
                    "Grading"
                ],
                "summary": "Close a grading session, discarding unsaved edits",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Session ID"
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    }
                }
            }
        },
        "/grading/sessions/{id}/grades": {
            "put": {
                "tags": [
                    "Grading"
                ],
                "summary": "Record a grade edit for one student",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Session ID"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpsertGradeRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/grading/sessions/{id}/bulk": {
            "post": {
                "tags": [
                    "Grading"
                ],
                "summary": "Apply a bulk operation to selected students",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Session ID"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/BulkOperationRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "No targets, no operation or invalid parameters",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/grading/sessions/{id}/save": {
            "post": {
                "tags": [
                    "Grading"
                ],
                "summary": "Save every pending edit of a session",
                "description": "Per-student failures are reported in the counts, never as an error status.",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Session ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Saved (possibly partially)",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "202": {
                        "description": "Queued offline",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Save already in progress",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/grading/sessions/{id}/reset": {
            "post": {
                "tags": [
                    "Grading"
                ],
                "summary": "Discard the unsaved edits of a session",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Session ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/grading/sessions/{id}/statistics": {
            "get": {
                "tags": [
                    "Grading"
                ],
                "summary": "Aggregate statistics over the merged view",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Session ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/grading/sessions/{id}/export": {
            "get": {
                "tags": [
                    "Grading"
                ],
                "summary": "Download the grade sheet",
                "produces": [
                    "text/csv",
                    "application/pdf"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Session ID"
                    },
                    {
                        "name": "format",
                        "in": "query",
                        "type": "string",
                        "enum": [
                            "csv",
                            "pdf"
                        ],
                        "default": "csv"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "File",
                        "schema": {
                            "type": "file"
                        }
                    }
                }
            }
        },
        "/grading/connectivity": {
            "get": {
                "tags": [
                    "Connectivity"
                ],
                "summary": "Current connectivity state and offline queue depth",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            },
            "post": {
                "tags": [
                    "Connectivity"
                ],
                "summary": "Signal a connectivity change",
                "description": "Going back online with queued grades starts a background flush. An explicit offline signal holds until an explicit online signal.",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ConnectivityRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/grading/offline-queue": {
            "get": {
                "tags": [
                    "Connectivity"
                ],
                "summary": "List grades waiting in the offline queue",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/grading/offline-queue/flush": {
            "post": {
                "tags": [
                    "Connectivity"
                ],
                "summary": "Replay the offline queue now",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/metrics/snapshot": {
            "get": {
                "tags": [
                    "Observability"
                ],
                "summary": "Grade sync counters as JSON",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "Assessment": {
            "type": "object",
            "required": [
                "id",
                "max_score"
            ],
            "properties": {
                "id": {
                    "type": "string"
                },
                "title": {
                    "type": "string"
                },
                "max_score": {
                    "type": "number"
                },
                "pass_mark": {
                    "type": "number"
                },
                "type": {
                    "type": "string",
                    "enum": [
                        "quiz",
                        "test",
                        "assignment",
                        "project",
                        "exam"
                    ]
                },
                "rubric": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/RubricCriterion"
                    }
                }
            }
        },
        "RubricCriterion": {
            "type": "object",
            "required": [
                "id"
            ],
            "properties": {
                "id": {
                    "type": "string"
                },
                "label": {
                    "type": "string"
                },
                "max_points": {
                    "type": "number"
                }
            }
        },
        "Student": {
            "type": "object",
            "required": [
                "id"
            ],
            "properties": {
                "id": {
                    "type": "string"
                },
                "display_name": {
                    "type": "string"
                },
                "class_id": {
                    "type": "string"
                }
            }
        },
        "GradeRecord": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "student_id": {
                    "type": "string"
                },
                "assessment_id": {
                    "type": "string"
                },
                "score": {
                    "type": "number"
                },
                "percentage": {
                    "type": "number"
                },
                "letter_grade": {
                    "type": "string",
                    "enum": [
                        "A",
                        "B",
                        "C",
                        "D",
                        "F"
                    ]
                },
                "feedback": {
                    "type": "string"
                },
                "rubric_scores": {
                    "type": "object",
                    "additionalProperties": {
                        "type": "number"
                    }
                },
                "excused": {
                    "type": "boolean"
                },
                "excuse_reason": {
                    "type": "string"
                },
                "created_at": {
                    "type": "string",
                    "format": "date-time"
                },
                "updated_at": {
                    "type": "string",
                    "format": "date-time"
                }
            }
        },
        "OpenSessionRequest": {
            "type": "object",
            "required": [
                "assessment"
            ],
            "properties": {
                "assessment": {
                    "$ref": "#/definitions/Assessment"
                },
                "students": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/Student"
                    }
                }
            }
        },
        "UpsertGradeRequest": {
            "type": "object",
            "required": [
                "student_id"
            ],
            "properties": {
                "student_id": {
                    "type": "string"
                },
                "score": {
                    "type": "number"
                },
                "feedback": {
                    "type": "string"
                },
                "rubric_scores": {
                    "type": "object",
                    "additionalProperties": {
                        "type": "number"
                    }
                },
                "excused": {
                    "type": "boolean",
                    "description": "false clears an excusal"
                },
                "excuse_reason": {
                    "type": "string"
                }
            }
        },
        "OperationSpec": {
            "type": "object",
            "required": [
                "kind"
            ],
            "properties": {
                "kind": {
                    "type": "string",
                    "enum": [
                        "apply_score",
                        "add_points",
                        "apply_curve",
                        "late_penalty",
                        "excuse",
                        "apply_feedback",
                        "apply_rubric"
                    ]
                },
                "curve_type": {
                    "type": "string",
                    "enum": [
                        "add_points",
                        "multiply",
                        "set_highest"
                    ]
                },
                "penalty_type": {
                    "type": "string",
                    "enum": [
                        "percentage",
                        "points"
                    ]
                },
                "value": {
                    "type": "number"
                },
                "points": {
                    "type": "number"
                },
                "factor": {
                    "type": "number"
                },
                "percent": {
                    "type": "number"
                },
                "reason": {
                    "type": "string"
                },
                "text": {
                    "type": "string"
                },
                "append": {
                    "type": "boolean"
                },
                "scores": {
                    "type": "object",
                    "additionalProperties": {
                        "type": "number"
                    }
                }
            }
        },
        "BulkOperationRequest": {
            "type": "object",
            "properties": {
                "student_ids": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "operation": {
                    "$ref": "#/definitions/OperationSpec"
                }
            }
        },
        "ConnectivityRequest": {
            "type": "object",
            "required": [
                "online"
            ],
            "properties": {
                "online": {
                    "type": "boolean"
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "meta": {
                    "type": "object"
                },
                "request_id": {
                    "type": "string"
                }
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
