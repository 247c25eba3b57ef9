package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Practicum API",
        "description": "Teaching practicum platform: observation periods, school and mentor submissions, evaluations, reports and system operations",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": [
        "http",
        "https"
    ],
    "tags": [
        {"name": "Authentication", "description": "Cookie sessions and password flows"},
        {"name": "Eligibility", "description": "Submission gates per observation period"},
        {"name": "Schools", "description": "Practicum school of the student"},
        {"name": "Mentors", "description": "Supervising teacher of the student"},
        {"name": "Evaluations", "description": "Write-once attempts, lesson plans and video links"},
        {"name": "Observations", "description": "Observation periods and enrollments"},
        {"name": "Reports", "description": "Evaluation summaries and exports"},
        {"name": "System", "description": "Status, logs, reset and backups"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Session cookie set", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "No session", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/evaluation/check-eligibility": {
            "get": {
                "tags": ["Eligibility"],
                "summary": "Evaluation eligibility",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/school-info/save": {
            "post": {
                "tags": ["Schools"],
                "summary": "Save school info",
                "responses": {
                    "200": {"description": "Saved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "changeWindowExpired or requiresConfirmation", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/mentor-info/save": {
            "post": {
                "tags": ["Mentors"],
                "summary": "Save mentor info",
                "responses": {
                    "200": {"description": "Saved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "mentorOccupied", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/evaluation/save-week": {
            "post": {
                "tags": ["Evaluations"],
                "summary": "Submit an evaluation attempt",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveWeekRequest"}}
                ],
                "responses": {
                    "201": {"description": "Stored", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "alreadySubmitted or invalid answers", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/evaluation/submit-lesson-plan": {
            "post": {
                "tags": ["Evaluations"],
                "summary": "Upload lesson plan",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "observationId", "in": "formData", "type": "string", "required": true},
                    {"name": "lessonPlanFile", "in": "formData", "type": "file", "required": true}
                ],
                "responses": {
                    "201": {"description": "Stored", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Wrong year level", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/evaluation-summary": {
            "get": {
                "tags": ["Reports"],
                "summary": "Evaluation summary",
                "parameters": [
                    {"name": "observationId", "in": "query", "type": "string"},
                    {"name": "yearLevel", "in": "query", "type": "integer"},
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "evaluationNum", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/system/status": {
            "get": {
                "tags": ["System"],
                "summary": "Platform status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["System"],
                "summary": "Change platform status",
                "responses": {
                    "200": {"description": "Updated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/system/reset-database": {
            "post": {
                "tags": ["System"],
                "summary": "Reset database",
                "responses": {
                    "200": {"description": "Reset completed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "requiresConfirmation or invalid code", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "userId": {"type": "string"},
                "email": {"type": "string"},
                "password": {"type": "string"},
                "rememberMe": {"type": "boolean"}
            }
        },
        "SaveWeekRequest": {
            "type": "object",
            "properties": {
                "observationId": {"type": "string"},
                "week": {"type": "integer", "minimum": 1, "maximum": 3},
                "evaluationNum": {"type": "integer", "minimum": 1, "maximum": 9},
                "answers": {"type": "object", "additionalProperties": {"type": "integer", "minimum": 1, "maximum": 5}}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "pageSize": {"type": "integer"},
                "totalCount": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
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
