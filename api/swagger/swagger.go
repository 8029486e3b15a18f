package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Substitution API",
        "description": "Substitute teacher recommendation and assignment",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Substitutions", "description": "Ranking, offers and the daily roster"},
        {"name": "Leaves", "description": "Offers issued per leave"},
        {"name": "System", "description": "Engine counters"}
    ],
    "paths": {
        "/substitutions/recommendations": {
            "get": {
                "tags": ["Substitutions"],
                "summary": "Rank substitute candidates for a vacated period",
                "parameters": [
                    {"name": "leaveId", "in": "query", "type": "string"},
                    {"name": "subject", "in": "query", "type": "string", "required": true},
                    {"name": "day", "in": "query", "type": "string", "required": true},
                    {"name": "period", "in": "query", "type": "integer", "required": true},
                    {"name": "date", "in": "query", "type": "string", "format": "date", "required": true},
                    {"name": "excludeTeacherId", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "includeUnavailable", "in": "query", "type": "boolean"},
                    {"name": "candidateSubject", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Ranked candidates", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid vacancy", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutions/offers": {
            "get": {
                "tags": ["Substitutions"],
                "summary": "List offers",
                "parameters": [
                    {"name": "leaveId", "in": "query", "type": "string"},
                    {"name": "teacherId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "date", "in": "query", "type": "string", "format": "date"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Substitutions"],
                "summary": "Offer a vacated period to candidate teachers",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateOffersRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Vacancy already filled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutions/offers/mine": {
            "get": {
                "tags": ["Substitutions"],
                "summary": "Offers sent to the current teacher",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutions/offers/{id}": {
            "get": {
                "tags": ["Substitutions"],
                "summary": "Get an offer",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not the offered teacher", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Substitutions"],
                "summary": "Withdraw an offer",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Withdrawn"}
                }
            }
        },
        "/substitutions/offers/{id}/respond": {
            "post": {
                "tags": ["Substitutions"],
                "summary": "Accept or reject an offer",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RespondOfferRequest"}}
                ],
                "responses": {
                    "200": {"description": "Updated offer", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "ALREADY_RESOLVED or CONFLICT_LOST", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "PERSISTENCE_FAILURE, safe to retry", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutions/offers/{id}/complete": {
            "post": {
                "tags": ["Substitutions"],
                "summary": "Mark an accepted substitution as delivered",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Completed offer", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Not accepted or date not reached", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutions/roster": {
            "get": {
                "tags": ["Substitutions"],
                "summary": "Daily substitution roster",
                "produces": ["application/json", "text/csv", "application/pdf"],
                "parameters": [
                    {"name": "date", "in": "query", "type": "string", "format": "date", "required": true},
                    {"name": "format", "in": "query", "type": "string", "enum": ["json", "csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Roster"}
                }
            }
        },
        "/leaves/{id}/offers": {
            "get": {
                "tags": ["Leaves"],
                "summary": "Every offer issued for a leave",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Leave not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teachers/{id}/substitution-offers": {
            "get": {
                "tags": ["Substitutions"],
                "summary": "Offers sent to a teacher",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/system/metrics": {
            "get": {
                "tags": ["System"],
                "summary": "Engine counters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "VacancyRequest": {
            "type": "object",
            "required": ["subject", "dayOfWeek", "periodNumber", "date"],
            "properties": {
                "leaveId": {"type": "string"},
                "subject": {"type": "string"},
                "dayOfWeek": {"type": "string"},
                "periodNumber": {"type": "integer"},
                "date": {"type": "string", "format": "date"},
                "originalTeacherId": {"type": "string"},
                "className": {"type": "string"}
            }
        },
        "CreateOffersRequest": {
            "type": "object",
            "required": ["vacancy", "candidateTeacherIds"],
            "properties": {
                "vacancy": {"$ref": "#/definitions/VacancyRequest"},
                "candidateTeacherIds": {"type": "array", "items": {"type": "string"}},
                "notes": {"type": "string"}
            }
        },
        "RespondOfferRequest": {
            "type": "object",
            "required": ["decision"],
            "properties": {
                "decision": {"type": "string", "enum": ["accept", "reject"]},
                "rejectionReason": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
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
