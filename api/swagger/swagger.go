package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "WiFi Presence API",
        "description": "Capture ingest, session finalization and anomaly scoring for WiFi based attendance",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Captures", "description": "Raw sighting ingest"},
        {"name": "Sessions", "description": "Session finalization"},
        {"name": "Live", "description": "Live dashboard view"},
        {"name": "Classifier", "description": "Anomaly scorer checks"},
        {"name": "Attendance", "description": "Finalized attendance records"},
        {"name": "Devices", "description": "Device registry"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check (database, classifier status)",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Database unavailable"}
                }
            }
        },
        "/api/v1/captures": {
            "post": {
                "tags": ["Captures"],
                "summary": "Ingest one device sighting",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordSightingRequest"}}
                ],
                "responses": {
                    "201": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Missing device_id or ap_id", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/captures/status": {
            "get": {
                "tags": ["Captures"],
                "summary": "Pending capture status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/sessions/finalize": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Finalize pending sightings into attendance records",
                "parameters": [
                    {"name": "async", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "Finalized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "Persistence failure, nothing consumed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/sessions/finalize/jobs/{id}": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Status of a queued finalization run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown job", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/live": {
            "get": {
                "tags": ["Live"],
                "summary": "Devices currently seen",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/live/start": {
            "post": {
                "tags": ["Live"],
                "summary": "Enable live monitoring",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/live/stop": {
            "post": {
                "tags": ["Live"],
                "summary": "Disable live monitoring and clear the view",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/classifier/test": {
            "post": {
                "tags": ["Classifier"],
                "summary": "Score a caller supplied feature vector",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/FeatureVector"}}
                ],
                "responses": {
                    "200": {"description": "Verdict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/attendance": {
            "get": {
                "tags": ["Attendance"],
                "summary": "List attendance records, newest first",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["present", "absent", "flagged", "suspicious", "all"]},
                    {"name": "device_id", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string", "format": "date-time"},
                    {"name": "to", "in": "query", "type": "string", "format": "date-time"},
                    {"name": "limit", "in": "query", "type": "integer", "maximum": 500}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/attendance/export": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Download attendance records",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "400": {"description": "Unsupported format", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/devices": {
            "get": {
                "tags": ["Devices"],
                "summary": "List registered devices",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Devices"],
                "summary": "Register or update a device identity",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterDeviceRequest"}}
                ],
                "responses": {
                    "201": {"description": "Registered", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "RecordSightingRequest": {
            "type": "object",
            "properties": {
                "device_id": {"type": "string"},
                "ap_id": {"type": "string"},
                "rssi": {"type": "integer", "description": "dBm, defaults to -99"},
                "timestamp": {"type": "string", "format": "date-time"}
            },
            "required": ["device_id", "ap_id"]
        },
        "FeatureVector": {
            "type": "object",
            "properties": {
                "duration_total": {"type": "number"},
                "ap_switches": {"type": "integer"},
                "frag_count": {"type": "integer"},
                "bytes_total": {"type": "integer"},
                "rssi_mean": {"type": "number"},
                "rssi_std": {"type": "number"},
                "invalid_rssi_count": {"type": "integer"},
                "login_hour": {"type": "integer"},
                "weekday": {"type": "integer"},
                "start_minute_of_day": {"type": "integer"}
            }
        },
        "RegisterDeviceRequest": {
            "type": "object",
            "properties": {
                "device_id": {"type": "string"},
                "student_name": {"type": "string"},
                "matric_number": {"type": "string"},
                "class_name": {"type": "string"}
            },
            "required": ["device_id"]
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
